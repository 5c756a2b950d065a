package ratelimit

import (
	"sync"
	"time"
)

// FixedWindowLimiter caps how often a keyed operation may run inside a fixed
// window. The settlement poller uses it as a backstop so a misconfigured
// interval can never hammer the status endpoint.
type FixedWindowLimiter struct {
	sync.RWMutex
	counts map[string]int // key: transaction reference
	limit  int
	window time.Duration
}

func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	rl := &FixedWindowLimiter{
		counts: make(map[string]int),
		limit:  limit,
		window: window,
	}
	go rl.cleanup()
	return rl
}

func (rl *FixedWindowLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	for range ticker.C {
		rl.Lock()
		rl.counts = make(map[string]int) // reset all
		rl.Unlock()
	}
}

// Allow reports whether the key may proceed, and if not, how long until the
// window resets.
func (rl *FixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	rl.RLock()
	count, exists := rl.counts[key]
	rl.RUnlock()

	if !exists || count < rl.limit {
		rl.Lock()
		if !exists {
			go rl.resetCount(key)
		}

		rl.counts[key]++
		rl.Unlock()
		return true, 0
	}

	return false, rl.window
}

func (rl *FixedWindowLimiter) resetCount(key string) {
	time.Sleep(rl.window)
	rl.Lock()
	delete(rl.counts, key)
	rl.Unlock()
}
