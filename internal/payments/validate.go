package payments

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var phonePattern = regexp.MustCompile(`^\+[0-9]{9,15}$`)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Positive decimal amount, e.g. "10000" or "10000.00".
	_ = validate.RegisterValidation("posdecimal", func(fl validator.FieldLevel) bool {
		v, err := strconv.ParseFloat(fl.Field().String(), 64)
		return err == nil && v > 0
	})

	// International MSISDN with leading +. Phones are normalized before
	// validation, so a bare local number is a caller bug, not user input.
	_ = validate.RegisterValidation("intlphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
}

type mobileMoneyRequest struct {
	Amount      string  `json:"amount" validate:"required,posdecimal"`
	Currency    string  `json:"currency" validate:"required,oneof=UGX KES TZS RWF NGN GHS USD EUR GBP"`
	Network     Network `json:"network" validate:"required,oneof=MTN AIRTEL"`
	PhoneNumber string  `json:"phone_number" validate:"required,intlphone"`
}

// Card fields are only checked for presence; validation is the remote payment
// processor's job.
type cardRequest struct {
	Amount      string `json:"amount" validate:"required,posdecimal"`
	Currency    string `json:"currency" validate:"required,oneof=UGX KES TZS RWF NGN GHS USD EUR GBP"`
	CardNumber  string `json:"card_number" validate:"required"`
	CVV         string `json:"cvv" validate:"required"`
	ExpiryMonth string `json:"expiry_month" validate:"required"`
	ExpiryYear  string `json:"expiry_year" validate:"required"`
}

type sdkInitRequest struct {
	Amount   string `json:"amount" validate:"required,posdecimal"`
	Currency string `json:"currency" validate:"required,oneof=UGX KES TZS RWF NGN GHS USD EUR GBP"`
}

type sdkVerifyRequest struct {
	TransactionID string `json:"transaction_id"`
	FlwRef        string `json:"flw_ref"`
	Status        string `json:"status"`
}

// normalizePhone strips whitespace and guarantees the leading + the server
// expects. "256 772 123456" and "+256772123456" both come out the same.
func normalizePhone(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

// validationMessage turns the first validator failure into the message users
// see. Local validation mirrors what the server would reject anyway, so the
// wording stays close to the server's own.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "The information you provided is invalid."
	}
	fe := errs[0]
	switch fe.Field() {
	case "Amount":
		return "Amount must be a positive number."
	case "Currency":
		return "That currency is not supported."
	case "Network":
		return "Choose a supported mobile money network."
	case "PhoneNumber":
		return "Enter a valid phone number."
	case "CardNumber", "CVV", "ExpiryMonth", "ExpiryYear":
		return "Fill in all card details."
	}
	return "The information you provided is invalid."
}
