package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Code identifies one failure class. The set is closed: every caller switches on
// these, so new causes must be added here instead of string-matching downstream.
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeRateLimited  Code = "RATE_LIMIT_EXCEEDED"
	CodeServerError  Code = "SERVER_ERROR"
	CodeNoConnection Code = "NO_INTERNET_CONNECTION"
	CodeTimeout      Code = "TIMEOUT"
	CodeNetwork      Code = "NETWORK_ERROR"
	CodeUnknown      Code = "UNKNOWN"
)

// Error is the only error type the transport returns.
type Error struct {
	Code    Code
	Message string // extracted server message or transport detail
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// userMessages are the fixed strings shown to users. Raw transport text never
// leaks to the UI except for the catch-all unknown case.
var userMessages = map[Code]string{
	CodeUnauthorized: "Your session has expired. Please log in again.",
	CodeForbidden:    "You don't have permission to do that.",
	CodeNotFound:     "We couldn't find what you were looking for.",
	CodeRateLimited:  "Too many attempts. Please wait a moment and try again.",
	CodeServerError:  "Something went wrong on our end. Please try again later.",
	CodeNoConnection: "No internet connection. Check your network and try again.",
	CodeTimeout:      "The request took too long. Please try again.",
	CodeNetwork:      "We couldn't reach the server. Please try again.",
	CodeUnknown:      "Something went wrong. Please try again.",
}

func (e *Error) UserMessage() string {
	if e.Code == CodeValidation && e.Message != "" {
		return e.Message
	}
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return userMessages[CodeUnknown]
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// classifyStatus maps an HTTP status to an error. Status codes are consulted
// before any transport-level cause. Returns nil for statuses the envelope
// decoder should handle itself (2xx and the odd 400-with-envelope).
func classifyStatus(status int, validationMsg string) *Error {
	switch {
	case status == 401:
		return newError(CodeUnauthorized, "unauthorized")
	case status == 403:
		return newError(CodeForbidden, "forbidden")
	case status == 404:
		return newError(CodeNotFound, "not found")
	case status == 422:
		if validationMsg == "" {
			validationMsg = "The information you provided is invalid."
		}
		return newError(CodeValidation, validationMsg)
	case status == 429:
		return newError(CodeRateLimited, "rate limit exceeded")
	case status >= 500:
		return newError(CodeServerError, "server error")
	}
	return nil
}

// classifyTransport maps a failed round trip (no HTTP response at all) to an
// error. Order matters: deadline and connectivity checks come before the
// generic unreachable cases.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, "request deadline exceeded")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CodeTimeout, "request deadline exceeded")
	}

	// Device-level connectivity loss (airplane mode, dead interface).
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.ENETDOWN) {
		return newError(CodeNoConnection, "no internet connection")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ECONNREFUSED) {
		return newError(CodeNetwork, "cannot reach server")
	}

	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &recErr) || strings.Contains(err.Error(), "tls:") {
		return newError(CodeNetwork, "secure connection failed")
	}

	return newError(CodeUnknown, err.Error())
}
