package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the typed transport every service goes through. It is stateless
// per call and safe for concurrent use; one instance is shared by all in-flight
// transactions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialProvider
	logger     *zap.SugaredLogger
}

func NewClient(baseURL string, creds CredentialProvider, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creds:      creds,
		logger:     logger,
	}
}

// WithHTTPClient swaps the underlying http.Client (custom timeouts, test
// transports). Returns the client for chaining during construction.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type requestOptions struct {
	public bool
}

type RequestOption func(*requestOptions)

// Public marks a request as unauthenticated; no Authorization header is sent.
func Public() RequestOption {
	return func(o *requestOptions) { o.public = true }
}

// Post issues a JSON POST to a server-relative endpoint and decodes the
// envelope's data into T.
func Post[T any](ctx context.Context, c *Client, endpoint string, body any, opts ...RequestOption) (T, error) {
	var zero T
	raw, err := c.do(ctx, http.MethodPost, endpoint, body, opts...)
	if err != nil {
		return zero, err
	}
	return decode[T](raw)
}

// Get issues a GET with the given query parameters; identical decode path.
func Get[T any](ctx context.Context, c *Client, endpoint string, query map[string]string, opts ...RequestOption) (T, error) {
	var zero T
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		endpoint = endpoint + "?" + q.Encode()
	}
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil, opts...)
	if err != nil {
		return zero, err
	}
	return decode[T](raw)
}

// Upload multipart-encodes a binary payload plus scalar fields. Used by the
// avatar upload flow, not by the payment core, but it shares the envelope and
// error path with everything else.
func Upload[T any](ctx context.Context, c *Client, endpoint, fieldName, filename string, file io.Reader, fields map[string]string, opts ...RequestOption) (T, error) {
	var zero T

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		return zero, newError(CodeUnknown, err.Error())
	}
	if _, err := io.Copy(part, file); err != nil {
		return zero, newError(CodeUnknown, err.Error())
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return zero, newError(CodeUnknown, err.Error())
		}
	}
	if err := mw.Close(); err != nil {
		return zero, newError(CodeUnknown, err.Error())
	}

	raw, err := c.doRaw(ctx, http.MethodPost, endpoint, &buf, mw.FormDataContentType(), opts...)
	if err != nil {
		return zero, err
	}
	return decode[T](raw)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, newError(CodeUnknown, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(payload)
	}
	return c.doRaw(ctx, method, endpoint, reader, "application/json", opts...)
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body io.Reader, contentType string, opts ...RequestOption) (json.RawMessage, error) {
	var options requestOptions
	for _, opt := range opts {
		opt(&options)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, newError(CodeUnknown, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	// Auth is attached when available. A missing credential never fails the
	// request eagerly; the server rejects and the 401 path below handles it.
	if !options.public {
		if token, ok := c.creds.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := classifyTransport(err)
		c.logger.Warnw("request failed", "method", method, "endpoint", endpoint, "code", apiErr.Code)
		return nil, apiErr
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	// The envelope is decoded even on failure statuses: 422 bodies carry the
	// field-level validation messages we surface to users.
	var env Envelope
	envOK := json.Unmarshal(raw, &env) == nil

	if resp.StatusCode == http.StatusUnauthorized {
		c.creds.Expired()
	}

	validationMsg := ""
	if envOK && !env.Success {
		validationMsg = env.failureMessage()
	}
	if apiErr := classifyStatus(resp.StatusCode, validationMsg); apiErr != nil {
		c.logger.Warnw("request rejected", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "code", apiErr.Code)
		return nil, apiErr
	}

	if !envOK {
		return nil, newError(CodeUnknown, fmt.Sprintf("unexpected response: http=%d", resp.StatusCode))
	}
	if !env.Success {
		return nil, newError(CodeValidation, env.failureMessage())
	}
	return env.Data, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, newError(CodeUnknown, fmt.Sprintf("decode response: %v", err))
	}
	return out, nil
}
