package payments

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pesa/internal/api"
)

// Service initiates deposits and withdrawals across the three settlement
// channels. It never retries on its own: a caller-initiated retry is a fresh
// initiation and gets a brand-new server-issued reference, because the remote
// system treats every initiation as a new charge attempt.
type Service struct {
	client *api.Client
	creds  api.CredentialProvider
	logger *zap.SugaredLogger
}

func NewService(client *api.Client, creds api.CredentialProvider, logger *zap.SugaredLogger) *Service {
	return &Service{client: client, creds: creds, logger: logger}
}

// InitiateMobileMoney starts a mobile-money push deposit. The operator sends
// the prompt out-of-band; settlement is observed by polling. Validation
// failures are caught locally and never cost a network round-trip.
func (s *Service) InitiateMobileMoney(ctx context.Context, amount, currency string, network Network, phone string) (*Initiation, error) {
	req := mobileMoneyRequest{
		Amount:      amount,
		Currency:    currency,
		Network:     network,
		PhoneNumber: normalizePhone(phone),
	}
	if err := validate.Struct(req); err != nil {
		return nil, &api.Error{Code: api.CodeValidation, Message: validationMessage(err)}
	}

	resp, err := api.Post[initiationResponse](ctx, s.client, "/deposits/mobile-money", req)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("mobile money deposit initiated", "reference", resp.Reference, "network", network)

	return &Initiation{
		TransactionID: resp.TransactionID,
		Reference:     resp.Reference,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		Channel:       ChannelMobileMoney,
		Network:       network,
	}, nil
}

// InitiateCard starts a card charge and returns the URL that drives the
// embedded web view.
func (s *Service) InitiateCard(ctx context.Context, amount, currency string, card CardDetails) (*Initiation, error) {
	req := cardRequest{
		Amount:      amount,
		Currency:    currency,
		CardNumber:  card.Number,
		CVV:         card.CVV,
		ExpiryMonth: card.ExpiryMonth,
		ExpiryYear:  card.ExpiryYear,
	}
	if err := validate.Struct(req); err != nil {
		return nil, &api.Error{Code: api.CodeValidation, Message: validationMessage(err)}
	}

	resp, err := api.Post[initiationResponse](ctx, s.client, "/deposits/card", req)
	if err != nil {
		return nil, err
	}

	paymentURL := resp.PaymentData.paymentURL()
	if paymentURL == "" {
		return nil, &api.Error{Code: api.CodeUnknown, Message: fmt.Sprintf("card initiation %s returned no payment url", resp.Reference)}
	}
	s.logger.Infow("card deposit initiated", "reference", resp.Reference)

	return &Initiation{
		TransactionID: resp.TransactionID,
		Reference:     resp.Reference,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		Channel:       ChannelCard,
		PaymentURL:    paymentURL,
	}, nil
}

// InitiateSDK fetches the bootstrap parameters for the native provider SDK.
// An anonymous SDK bootstrap is meaningless, so a missing credential fails
// here instead of bouncing off the server.
func (s *Service) InitiateSDK(ctx context.Context, amount, currency string) (*Initiation, error) {
	if _, ok := s.creds.Token(); !ok {
		return nil, &api.Error{Code: api.CodeUnauthorized, Message: "sdk initiation requires a logged-in user"}
	}

	req := sdkInitRequest{Amount: amount, Currency: currency}
	if err := validate.Struct(req); err != nil {
		return nil, &api.Error{Code: api.CodeValidation, Message: validationMessage(err)}
	}

	resp, err := api.Post[sdkInitResponse](ctx, s.client, "/deposits/sdk/initiate", req)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("sdk deposit initiated", "tx_ref", resp.TxRef)

	return &Initiation{
		TransactionID: resp.TransactionID,
		Reference:     resp.TxRef,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		Channel:       ChannelSDK,
		SDK: &SDKParams{
			TxRef:         resp.TxRef,
			PublicKey:     resp.SDKConfig.PublicKey,
			EncryptionKey: resp.SDKConfig.EncryptionKey,
			Customer:      resp.User,
		},
	}, nil
}

// WithdrawMobileMoney starts a mobile-money withdrawal. Same validation and
// settlement path as the deposit variant.
func (s *Service) WithdrawMobileMoney(ctx context.Context, amount, currency string, network Network, phone string) (*Initiation, error) {
	req := mobileMoneyRequest{
		Amount:      amount,
		Currency:    currency,
		Network:     network,
		PhoneNumber: normalizePhone(phone),
	}
	if err := validate.Struct(req); err != nil {
		return nil, &api.Error{Code: api.CodeValidation, Message: validationMessage(err)}
	}

	resp, err := api.Post[initiationResponse](ctx, s.client, "/withdrawals/mobile-money", req)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("mobile money withdrawal initiated", "reference", resp.Reference, "network", network)

	return &Initiation{
		TransactionID: resp.TransactionID,
		Reference:     resp.Reference,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		Channel:       ChannelMobileMoney,
		Network:       network,
	}, nil
}

// CheckStatus fetches the authoritative status of one transaction. Each call
// is a fresh, independent request; the settlement observer polls this.
func (s *Service) CheckStatus(ctx context.Context, transactionID string) (*Status, error) {
	status, err := api.Get[Status](ctx, s.client, fmt.Sprintf("/deposits/%s/check", transactionID), nil)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// VerifySDK re-confirms a provider callback server-side. The provider's word
// is never trusted directly; the server's transaction record is authoritative.
func (s *Service) VerifySDK(ctx context.Context, transactionID, providerRef, callbackStatus string) (*Status, error) {
	req := sdkVerifyRequest{
		TransactionID: transactionID,
		FlwRef:        providerRef,
		Status:        callbackStatus,
	}
	resp, err := api.Post[sdkVerifyResponse](ctx, s.client, "/deposits/sdk/verify", req)
	if err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}
