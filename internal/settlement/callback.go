package settlement

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"pesa/internal/payments"
)

// Verifier re-confirms a provider callback against the server. Satisfied by
// *payments.Service.
type Verifier interface {
	VerifySDK(ctx context.Context, transactionID, providerRef, callbackStatus string) (*payments.Status, error)
}

// ProviderDelegate is the completion contract the native payment SDK adapter
// drives. The SDK is a black box; it calls exactly one of these, once.
type ProviderDelegate interface {
	OnSuccess(providerRef string)
	OnFailure(providerRef string)
	OnCancel()
}

// Callback status strings the verification endpoint expects.
const (
	callbackSuccessful = "successful"
	callbackFailed     = "failed"
)

// CallbackSession resolves an SDK-channel transaction. It does not poll: it
// sits as the SDK's completion sink and, on success or failure, forwards the
// provider reference to the verification endpoint. The server's answer is
// authoritative; the raw callback never reaches the presenter directly.
type CallbackSession struct {
	verifier Verifier
	logger   *zap.SugaredLogger

	ctx           context.Context
	transactionID string
	reference     string

	once     sync.Once
	outcomes chan Outcome
}

var _ ProviderDelegate = (*CallbackSession)(nil)

// NewCallbackSession binds a session to one SDK initiation. ctx covers the
// whole wait; cancelling it while the SDK is still up is handled by the UI
// layer calling OnCancel through the adapter.
func NewCallbackSession(ctx context.Context, init *payments.Initiation, verifier Verifier, logger *zap.SugaredLogger) *CallbackSession {
	return &CallbackSession{
		verifier:      verifier,
		logger:        logger,
		ctx:           ctx,
		transactionID: init.TransactionID,
		reference:     init.Reference,
		outcomes:      make(chan Outcome, 1),
	}
}

// Outcomes delivers exactly one Outcome and is then closed.
func (s *CallbackSession) Outcomes() <-chan Outcome {
	return s.outcomes
}

func (s *CallbackSession) OnSuccess(providerRef string) {
	s.complete(callbackSuccessful, providerRef)
}

func (s *CallbackSession) OnFailure(providerRef string) {
	s.complete(callbackFailed, providerRef)
}

// OnCancel means the user dismissed the SDK before completion. Nothing failed
// and there is nothing to verify; the outcome is a distinct Cancelled, not
// Failed.
func (s *CallbackSession) OnCancel() {
	s.once.Do(func() {
		s.logger.Infow("sdk payment cancelled by user", "reference", s.reference)
		s.outcomes <- Outcome{Kind: KindCancelled, Reference: s.reference}
		close(s.outcomes)
	})
}

func (s *CallbackSession) complete(callbackStatus, providerRef string) {
	s.once.Do(func() {
		defer close(s.outcomes)

		status, err := s.verifier.VerifySDK(s.ctx, s.transactionID, providerRef, callbackStatus)
		if err != nil {
			// Verification failing tells us nothing about the charge. Report
			// pending so the user can re-check, instead of guessing failed.
			s.logger.Warnw("sdk verification failed", "reference", s.reference, "error", err)
			s.outcomes <- Outcome{Kind: KindPending, Reference: s.reference}
			return
		}

		s.logger.Infow("sdk transaction verified", "reference", s.reference, "state", status.State)
		s.outcomes <- fromStatus(status)
	})
}
