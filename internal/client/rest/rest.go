// Package rest is the JSON-over-HTTP caller shared by the fleet API clients.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

var (
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTransport is returned when the request never produced a response.
	ErrTransport = errors.New("transport failure")
)

// StatusError is returned for non-2xx responses other than 401/403.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx response from fleet API: %d; %s", e.Code, string(e.Body))
}

// RetryPolicy bounds the retries of idempotent requests. MaxRetries counts the
// attempts made after the first one, so a request is sent at most MaxRetries+1 times.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
}

// Client sends JSON requests relative to a base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryPolicy
	logger     *zerolog.Logger
}

// NewClient creates a new Client.
func NewClient(baseURL string, client *http.Client, retry RetryPolicy, logger zerolog.Logger) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("HTTP client is nil")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("error parsing base URL: %w", err)
	}
	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		retry:      retry,
		logger:     &logger,
	}, nil
}

// Get issues a GET to path and decodes the body into out. Transport failures and
// 5xx responses are retried with exponential backoff.
func (c *Client) Get(ctx context.Context, token string, out any, path ...string) error {
	endpoint, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to create request URL: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := c.do(ctx, http.MethodGet, endpoint, token, nil, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Debug().Err(err).Int("attempt", attempt).Str("endpoint", endpoint).Msg("retrying request")
		return err
	}
	err = backoff.Retry(op, backoff.WithContext(c.backOff(), ctx))
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

// Post issues a single POST with body encoded as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, token string, body, out any, path ...string) error {
	endpoint, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to create request URL: %w", err)
	}
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, token, reqBytes, out)
}

func (c *Client) backOff() backoff.BackOff {
	expBackOff := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		expBackOff.InitialInterval = c.retry.InitialInterval
	}
	expBackOff.MaxElapsedTime = 0
	return backoff.WithMaxRetries(expBackOff, c.retry.MaxRetries)
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &unauthorizedError{status: resp.StatusCode, body: bodyBytes}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return &StatusError{Code: resp.StatusCode, Body: bodyBytes}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// unauthorizedError keeps the body of a 401/403 so callers can read a service message.
type unauthorizedError struct {
	status int
	body   []byte
}

func (e *unauthorizedError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnauthorized, e.status)
}

func (e *unauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ResponseBody returns the body of a failed response carried by err, if any.
func ResponseBody(err error) ([]byte, bool) {
	var unauthorized *unauthorizedError
	if errors.As(err, &unauthorized) {
		return unauthorized.body, true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Body, true
	}
	return nil, false
}

func retryable(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= http.StatusInternalServerError
	}
	return false
}
