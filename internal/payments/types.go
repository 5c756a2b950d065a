package payments

import "encoding/json"

// Network is the mobile-money operator a push prompt is sent through.
type Network string

const (
	NetworkMTN    Network = "MTN"
	NetworkAirtel Network = "AIRTEL"
)

// Channel is the settlement path, chosen once at initiation and immutable for
// the lifetime of the transaction.
type Channel string

const (
	ChannelMobileMoney Channel = "mobile_money"
	ChannelCard        Channel = "card"
	ChannelSDK         Channel = "sdk"
)

// State of a transaction as reported by the status endpoint.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Terminal reports whether no further transitions are valid for this state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// ErrorDetails is only populated on a failed status.
type ErrorDetails struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	CanRetry  bool   `json:"can_retry"`
	Severity  string `json:"severity"`
}

// Status is the authoritative server-side view of one transaction attempt.
type Status struct {
	TransactionID string        `json:"transaction_id"`
	Reference     string        `json:"reference"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	State         State         `json:"status"`
	Error         *ErrorDetails `json:"error_details,omitempty"`
}

// Customer identifies the paying user to the provider SDK.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
}

// SDKParams are the bootstrap parameters handed verbatim to the provider SDK.
type SDKParams struct {
	TxRef         string
	PublicKey     string
	EncryptionKey string
	Customer      Customer
}

// Initiation is the single-use result of one initiation call. The reference is
// server-issued and globally unique per attempt; a retry always produces a new
// one. Exactly one of the channel payload fields is set, per Channel.
type Initiation struct {
	TransactionID string
	Reference     string
	Amount        string
	Currency      string
	Channel       Channel
	Network       Network    // mobile money only
	PaymentURL    string     // card only: drives the embedded web view
	SDK           *SDKParams // sdk only
}

// CardDetails are forwarded to the remote processor, which owns all card
// validation beyond the fields being present.
type CardDetails struct {
	Number      string
	CVV         string
	ExpiryMonth string
	ExpiryYear  string
}

// wire shapes

type initiationResponse struct {
	TransactionID string      `json:"transaction_id"`
	Reference     string      `json:"reference"`
	Amount        string      `json:"amount"`
	Currency      string      `json:"currency"`
	PaymentData   paymentData `json:"payment_data"`
}

type paymentData struct {
	Mode             string `json:"mode"`
	URL              string `json:"url"`
	AuthorizationURL string `json:"authorization_url"`
	RedirectURL      string `json:"redirect_url"`
}

// paymentURL resolves the redirect target for card charges: first non-empty of
// url, authorization_url, redirect_url, in that order.
func (p paymentData) paymentURL() string {
	for _, u := range []string{p.URL, p.AuthorizationURL, p.RedirectURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

type sdkInitResponse struct {
	TransactionID string   `json:"transaction_id"`
	TxRef         string   `json:"tx_ref"`
	Amount        string   `json:"amount"`
	Currency      string   `json:"currency"`
	User          Customer `json:"user"`
	SDKConfig     struct {
		PublicKey     string `json:"public_key"`
		EncryptionKey string `json:"encryption_key"`
	} `json:"sdk_config"`
}

type sdkVerifyResponse struct {
	Transaction Status          `json:"transaction"`
	Wallet      json.RawMessage `json:"wallet,omitempty"`
}
