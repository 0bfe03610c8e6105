package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/shared"
)

// maxRetries caps automatic refresh-and-retry cycles per logical call.
const maxRetries = 1

// Authenticator hands out bearer tokens.
//
// Token returns a usable access token, refreshing first when the stored one is missing or expired,
// or unconditionally when force is set.
type Authenticator interface {
	Token(ctx context.Context, force bool) (string, error)
}

// RequestOptions describe one call. Headers never override Authorization or Content-Type.
//
// Body is sent as-is when it is a []byte and JSON-encoded otherwise.
type RequestOptions struct {
	Method  string
	Headers http.Header
	Query   url.Values
	Body    any
}

// Client performs authenticated calls against the Spotify Web API.
type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	logger     *log.Logger
}

// ClientOpts configure a [Client].
type ClientOpts struct {
	BaseURL    string
	Auth       Authenticator
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewClient creates a [Client]. BaseURL defaults to the public Spotify API.
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = shared.DefaultConfig().API.BaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		auth:       opts.Auth,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "client"),
	}
}

// Request performs a call and decodes a validated T.
//
// It returns nil, nil when the response carries no JSON body (204, empty or non-JSON).
func Request[T any](ctx context.Context, c *Client, endpoint string, opts RequestOptions) (*T, error) {
	var out T
	ok, err := c.Do(ctx, endpoint, opts, &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// Do performs a call, decoding into out when the response has a JSON body.
//
// The boolean reports whether out was populated. A nil out discards the body.
func (c *Client) Do(ctx context.Context, endpoint string, opts RequestOptions, out any) (bool, error) {
	return c.do(ctx, endpoint, opts, out, 0)
}

func (c *Client) do(ctx context.Context, endpoint string, opts RequestOptions, out any, attempt int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, shared.Aborted(ctx, err)
	}
	if c.auth == nil {
		return false, shared.ErrMissingToken
	}

	token, err := c.auth.Token(ctx, false)
	if err != nil {
		return false, shared.Aborted(ctx, err)
	}

	req, err := c.newRequest(ctx, endpoint, opts, token)
	if err != nil {
		return false, err
	}

	c.logger.Debug("request", "method", req.Method, "endpoint", endpoint, "attempt", attempt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, shared.Aborted(ctx, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, shared.Aborted(ctx, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		httpErr := &shared.HTTPError{Status: resp.StatusCode, Message: errorMessage(payload, resp.StatusCode)}
		if attempt >= maxRetries {
			c.logger.Warn("unauthorized after retry", "endpoint", endpoint)
			return false, httpErr
		}

		c.logger.Info("unauthorized, refreshing token", "endpoint", endpoint)
		if _, err := c.auth.Token(ctx, true); err != nil {
			if aborted := shared.Aborted(ctx, err); errors.Is(aborted, shared.ErrAborted) {
				return false, aborted
			}
			return false, fmt.Errorf("%w (refresh: %w)", httpErr, err)
		}
		return c.do(ctx, endpoint, opts, out, attempt+1)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		httpErr := &shared.HTTPError{Status: resp.StatusCode, Message: errorMessage(payload, resp.StatusCode)}
		c.logger.Warn("request failed", "endpoint", endpoint, "status", resp.StatusCode, "message", httpErr.Message)
		return false, httpErr
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(payload)) == 0 || !isJSON(resp.Header) {
		return false, nil
	}
	if out == nil {
		return false, nil
	}

	if err := decodeResponse(endpoint, payload, out); err != nil {
		c.logger.Error("response failed validation", "endpoint", endpoint, "error", err)
		return false, err
	}
	return true, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, opts RequestOptions, token string) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint, opts.Query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

// resolve joins relative endpoints onto the base URL. Absolute URLs (pagination links) pass through.
func (c *Client) resolve(endpoint string, query url.Values) string {
	u := endpoint
	if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
		u = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	if len(query) == 0 {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + query.Encode()
	}
	return u + "?" + query.Encode()
}

func isJSON(h http.Header) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// errorMessage pulls a human-readable message out of an error body.
//
// It tries error.message, a string error, then error_description, and falls back to the status text.
func errorMessage(payload []byte, status int) string {
	var body struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Message          string          `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}

		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}

		if body.ErrorDescription != "" {
			return body.ErrorDescription
		}
		if body.Message != "" {
			return body.Message
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
