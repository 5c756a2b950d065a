package settlement

import "pesa/internal/payments"

// Kind is the normalized result category handed to the presenter.
type Kind string

const (
	KindPending   Kind = "pending"
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
	KindCancelled Kind = "cancelled"
)

// Outcome is the one value the presenter receives per transaction. Only the
// settlement observers construct it; callers never build one by hand.
type Outcome struct {
	Kind      Kind
	Reference string
	// Status is the server's authoritative record, set for Succeeded and
	// Failed. Pending and Cancelled may carry the last known status or nil.
	Status *payments.Status
}

// CanRetry reports whether the UI may offer a retry. A retry re-invokes
// initiation and always produces a fresh reference. Cancelled is deliberately
// non-retryable here: the user walked away, nothing failed.
func (o Outcome) CanRetry() bool {
	if o.Kind != KindFailed {
		return false
	}
	if o.Status == nil || o.Status.Error == nil {
		return false
	}
	return o.Status.Error.CanRetry
}

func succeeded(status *payments.Status) Outcome {
	return Outcome{Kind: KindSucceeded, Reference: status.Reference, Status: status}
}

func failed(status *payments.Status) Outcome {
	return Outcome{Kind: KindFailed, Reference: status.Reference, Status: status}
}

func fromStatus(status *payments.Status) Outcome {
	switch status.State {
	case payments.StateSuccess:
		return succeeded(status)
	case payments.StateFailed:
		return failed(status)
	default:
		return Outcome{Kind: KindPending, Reference: status.Reference, Status: status}
	}
}
