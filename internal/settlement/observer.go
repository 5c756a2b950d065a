package settlement

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pesa/internal/payments"
	"pesa/internal/ratelimit"
)

// StatusChecker fetches the authoritative status of one transaction.
// Satisfied by *payments.Service.
type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionID string) (*payments.Status, error)
}

// Config bounds the polling loop. The old mobile clients polled from
// view-level timers with no visible cadence or cutoff; both are explicit
// configuration here.
type Config struct {
	Interval time.Duration // time between status checks
	Deadline time.Duration // give up and report pending after this long
}

const (
	DefaultInterval = 3 * time.Second
	DefaultDeadline = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	return c
}

// Poller resolves a mobile-money or card transaction by polling the status
// endpoint until a terminal state. One instance per reference; instances share
// nothing, so concurrent transactions never contend.
type Poller struct {
	checker StatusChecker
	limiter *ratelimit.FixedWindowLimiter // optional backstop, may be nil
	logger  *zap.SugaredLogger
	cfg     Config

	transactionID string
	reference     string

	once     sync.Once
	outcomes chan Outcome
}

func NewPoller(init *payments.Initiation, checker StatusChecker, limiter *ratelimit.FixedWindowLimiter, logger *zap.SugaredLogger, cfg Config) *Poller {
	return &Poller{
		checker:       checker,
		limiter:       limiter,
		logger:        logger,
		cfg:           cfg.withDefaults(),
		transactionID: init.TransactionID,
		reference:     init.Reference,
		outcomes:      make(chan Outcome, 1),
	}
}

// Outcomes delivers exactly one Outcome, then the channel is closed. If the
// context given to Run is cancelled first (user dismissed the payment screen),
// the channel closes without a value.
func (p *Poller) Outcomes() <-chan Outcome {
	return p.outcomes
}

// Run polls until terminal, deadline, or cancellation, then returns. It issues
// one check immediately and then one per interval tick. A failed check is
// logged and swallowed; the next tick retries it, so a flaky network never
// kills a pending transaction.
func (p *Poller) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()
	defer close(p.outcomes)

	if p.check(ctx) {
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				// Deadline is not evidence of failure. Report pending and let
				// the user re-check rather than fabricating a failed state.
				p.emit(Outcome{Kind: KindPending, Reference: p.reference})
			}
			return
		case <-ticker.C:
			if p.check(ctx) {
				return
			}
		}
	}
}

// check performs one status request. Returns true once a terminal outcome has
// been emitted, which stops the loop the instant it is known.
func (p *Poller) check(ctx context.Context) bool {
	if p.limiter != nil {
		if ok, retryAfter := p.limiter.Allow(p.reference); !ok {
			p.logger.Warnw("status check suppressed by limiter", "reference", p.reference, "retry_after", retryAfter)
			return false
		}
	}

	status, err := p.checker.CheckStatus(ctx, p.transactionID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warnw("status check failed, will retry on next tick", "reference", p.reference, "error", err)
		}
		return false
	}

	if !status.State.Terminal() {
		return false
	}

	p.emit(fromStatus(status))
	p.logger.Infow("transaction settled", "reference", p.reference, "state", status.State)
	return true
}

// emit delivers the outcome at most once. Terminal states are never re-entered
// or overwritten, whatever later polls might claim.
func (p *Poller) emit(outcome Outcome) {
	p.once.Do(func() {
		p.outcomes <- outcome
	})
}
