package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusCodeMapping(t *testing.T) {
	// Body content is irrelevant: the status alone decides the code.
	cases := []struct {
		status int
		want   Code
	}{
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusUnprocessableEntity, CodeValidation},
		{http.StatusTooManyRequests, CodeRateLimited},
		{http.StatusInternalServerError, CodeServerError},
		{http.StatusBadGateway, CodeServerError},
		{http.StatusServiceUnavailable, CodeServerError},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"some":"irrelevant body"}`))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, NewMemoryCredentials("t"), zap.NewNop().Sugar())
			_, err := Post[struct{}](context.Background(), client, "/x", nil)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.want, apiErr.Code)
		})
	}
}

func TestValidationMessageExtractedFrom422(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"bad request","errors":{"amount":["too small"]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("t"), zap.NewNop().Sugar())
	_, err := Post[struct{}](context.Background(), client, "/x", nil)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeValidation, apiErr.Code)
	assert.Equal(t, "too small", apiErr.Message)
}

func TestClassifyTransport(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"context deadline", context.DeadlineExceeded, CodeTimeout},
		{"net timeout", &timeoutError{}, CodeTimeout},
		{"network down", syscall.ENETDOWN, CodeNoConnection},
		{"network unreachable", syscall.ENETUNREACH, CodeNoConnection},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example"}, CodeNetwork},
		{"connection refused", syscall.ECONNREFUSED, CodeNetwork},
		{"tls failure", errors.New("tls: handshake failure"), CodeNetwork},
		{"anything else", errors.New("weird transport explosion"), CodeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyTransport(tc.err)
			assert.Equal(t, tc.want, got.Code)
		})
	}
}

func TestTransportMessagesArePreserved(t *testing.T) {
	assert.Equal(t, "cannot reach server", classifyTransport(&net.DNSError{Err: "no such host"}).Message)
	assert.Equal(t, "secure connection failed", classifyTransport(errors.New("tls: bad certificate")).Message)
}

func TestRequestTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, NewMemoryCredentials("t"), zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Post[struct{}](ctx, client, "/slow", nil)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeTimeout, apiErr.Code)
}

func TestUserMessagesAreFixedAndNonTechnical(t *testing.T) {
	raw := classifyTransport(errors.New("read tcp 10.0.0.1: connection reset"))
	assert.Equal(t, CodeUnknown, raw.Code)
	// Only the unknown case may carry raw transport text in Message; every
	// other code maps to a fixed string.
	for code, msg := range userMessages {
		e := newError(code, "internal detail")
		if code == CodeUnknown {
			continue
		}
		assert.Equal(t, msg, e.UserMessage(), "code %s", code)
	}
}

func TestIsCode(t *testing.T) {
	err := error(newError(CodeForbidden, "forbidden"))
	assert.True(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), CodeForbidden))
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }
