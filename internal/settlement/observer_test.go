package settlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pesa/internal/payments"
	"pesa/internal/ratelimit"
)

type checkerFunc func(ctx context.Context, transactionID string) (*payments.Status, error)

func (f checkerFunc) CheckStatus(ctx context.Context, transactionID string) (*payments.Status, error) {
	return f(ctx, transactionID)
}

// scriptedChecker returns each status in order; the last one repeats.
func scriptedChecker(calls *atomic.Int32, script ...*payments.Status) checkerFunc {
	return func(ctx context.Context, transactionID string) (*payments.Status, error) {
		n := int(calls.Add(1))
		if n > len(script) {
			n = len(script)
		}
		return script[n-1], nil
	}
}

func status(ref string, state payments.State) *payments.Status {
	return &payments.Status{
		TransactionID: "tx-" + ref,
		Reference:     ref,
		Amount:        "10000.00",
		Currency:      "UGX",
		State:         state,
	}
}

func testInitiation(ref string) *payments.Initiation {
	return &payments.Initiation{
		TransactionID: "tx-" + ref,
		Reference:     ref,
		Amount:        "10000.00",
		Currency:      "UGX",
		Channel:       payments.ChannelMobileMoney,
		Network:       payments.NetworkMTN,
	}
}

func TestPollingStopsAtTerminalSuccess(t *testing.T) {
	// Mobile money deposit: first poll pending, second success. The poller
	// must deliver Succeeded with the polled amount and never issue a third
	// check.
	var calls atomic.Int32
	checker := scriptedChecker(&calls,
		status("ref-a", payments.StatePending),
		status("ref-a", payments.StateSuccess),
	)

	p := NewPoller(testInitiation("ref-a"), checker, nil, zap.NewNop().Sugar(), Config{
		Interval: 10 * time.Millisecond,
		Deadline: time.Second,
	})
	go p.Run(context.Background())

	outcome, ok := <-p.Outcomes()
	require.True(t, ok)
	assert.Equal(t, KindSucceeded, outcome.Kind)
	assert.Equal(t, "ref-a", outcome.Reference)
	require.NotNil(t, outcome.Status)
	assert.Equal(t, "10000.00", outcome.Status.Amount)

	// Give the loop time to misbehave if it were going to.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load(), "no poll after terminal state")
}

func TestPollErrorsAreSwallowedAndRetried(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(ctx context.Context, transactionID string) (*payments.Status, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("network blip")
		case 2:
			return status("ref-b", payments.StatePending), nil
		default:
			return status("ref-b", payments.StateSuccess), nil
		}
	})

	p := NewPoller(testInitiation("ref-b"), checker, nil, zap.NewNop().Sugar(), Config{
		Interval: 5 * time.Millisecond,
		Deadline: time.Second,
	})
	go p.Run(context.Background())

	outcome := <-p.Outcomes()
	assert.Equal(t, KindSucceeded, outcome.Kind)
}

func TestTerminalStateIsMonotonic(t *testing.T) {
	// Once success has been emitted, a contradictory failed status from a
	// later poll must change nothing.
	var calls atomic.Int32
	checker := scriptedChecker(&calls,
		status("ref-c", payments.StateSuccess),
		status("ref-c", payments.StateFailed),
	)

	p := NewPoller(testInitiation("ref-c"), checker, nil, zap.NewNop().Sugar(), Config{})

	assert.True(t, p.check(context.Background()))
	assert.True(t, p.check(context.Background())) // contradictory terminal, ignored

	outcome := <-p.outcomes
	assert.Equal(t, KindSucceeded, outcome.Kind)

	select {
	case extra := <-p.outcomes:
		t.Fatalf("second outcome emitted: %+v", extra)
	default:
	}
}

func TestExactlyOnceDeliveryUnderConcurrentPolls(t *testing.T) {
	checker := checkerFunc(func(ctx context.Context, transactionID string) (*payments.Status, error) {
		return status("ref-d", payments.StateSuccess), nil
	})

	p := NewPoller(testInitiation("ref-d"), checker, nil, zap.NewNop().Sugar(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.check(context.Background())
		}()
	}
	wg.Wait()

	delivered := 0
	for {
		select {
		case <-p.outcomes:
			delivered++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, delivered)
}

func TestDeadlineYieldsPendingOutcome(t *testing.T) {
	checker := checkerFunc(func(ctx context.Context, transactionID string) (*payments.Status, error) {
		return status("ref-e", payments.StatePending), nil
	})

	p := NewPoller(testInitiation("ref-e"), checker, nil, zap.NewNop().Sugar(), Config{
		Interval: 5 * time.Millisecond,
		Deadline: 40 * time.Millisecond,
	})
	go p.Run(context.Background())

	outcome, ok := <-p.Outcomes()
	require.True(t, ok)
	assert.Equal(t, KindPending, outcome.Kind, "deadline is not evidence of failure")
}

func TestDismissCancelsPolling(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(ctx context.Context, transactionID string) (*payments.Status, error) {
		calls.Add(1)
		return status("ref-f", payments.StatePending), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(testInitiation("ref-f"), checker, nil, zap.NewNop().Sugar(), Config{
		Interval: 5 * time.Millisecond,
		Deadline: time.Minute,
	})

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	_, ok := <-p.Outcomes()
	assert.False(t, ok, "no outcome on user dismissal")

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "ticker stopped on cancellation")
}

func TestLimiterBackstopSuppressesChecks(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(ctx context.Context, transactionID string) (*payments.Status, error) {
		calls.Add(1)
		return status("ref-g", payments.StatePending), nil
	})

	limiter := ratelimit.NewFixedWindowLimiter(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPoller(testInitiation("ref-g"), checker, limiter, zap.NewNop().Sugar(), Config{
		Interval: 5 * time.Millisecond,
		Deadline: time.Minute,
	})
	go p.Run(ctx)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "limiter caps status checks")
}

func TestOutcomeCanRetry(t *testing.T) {
	retryable := status("ref-h", payments.StateFailed)
	retryable.Error = &payments.ErrorDetails{ErrorCode: "TIMEOUT", Message: "try again", CanRetry: true, Severity: "warning"}

	dead := status("ref-h", payments.StateFailed)
	dead.Error = &payments.ErrorDetails{ErrorCode: "BLOCKED", Message: "card blocked", CanRetry: false, Severity: "critical"}

	assert.True(t, failed(retryable).CanRetry())
	assert.False(t, failed(dead).CanRetry())
	assert.False(t, succeeded(status("ref-h", payments.StateSuccess)).CanRetry())
	assert.False(t, Outcome{Kind: KindCancelled, Reference: "ref-h"}.CanRetry())
	assert.False(t, Outcome{Kind: KindPending, Reference: "ref-h"}.CanRetry())
}

func TestFromStatusMapping(t *testing.T) {
	assert.Equal(t, KindSucceeded, fromStatus(status("r", payments.StateSuccess)).Kind)
	assert.Equal(t, KindFailed, fromStatus(status("r", payments.StateFailed)).Kind)
	assert.Equal(t, KindPending, fromStatus(status("r", payments.StatePending)).Kind)
}
