package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Base represents the root XML response from Last.fm API.
type Base struct {
	XMLName xml.Name `xml:"lfm"`
	Status  string   `xml:"status,attr"`
	Inner   []byte   `xml:",innerxml"`
}

// APIError represents an error response from the Last.fm API.
type APIError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

const (
	apiStatusFailed = "failed"

	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// retryableError marks a failed attempt that may succeed if repeated.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// call signs and POSTs an API method, retrying temporary failures with
// exponential backoff. It returns the inner XML of a successful <lfm>
// response.
func (c *Client) call(ctx context.Context, method string, params map[string]string, requiresAuth bool) ([]byte, error) {
	reqParams := make(map[string]string, len(params)+3)
	for k, v := range params {
		reqParams[k] = v
	}
	reqParams["method"] = method
	reqParams["api_key"] = c.apiKey

	if requiresAuth {
		if c.sessionKey == "" {
			return nil, ErrNoSessionKey
		}
		reqParams["sk"] = c.sessionKey
	}

	form := url.Values{}
	for k, v := range reqParams {
		form.Set(k, v)
	}
	form.Set("api_sig", calculateSignature(reqParams, c.apiSecret))
	body := form.Encode()

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", method, attempt, c.maxAttempts)

		inner, err := c.do(ctx, body)
		if err == nil {
			c.logDebugf("lastfm: %s succeeded", method)
			return inner, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		lastErr = retryable.err

		if attempt == c.maxAttempts {
			break
		}
		c.logDebugf("lastfm: %s failed, retrying in %v: %v", method, backoff, lastErr)
		if !sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}

	var lastfmErr *Error
	if errors.As(lastErr, &lastfmErr) {
		return nil, lastfmErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do performs a single request. Failures worth repeating are wrapped in
// *retryableError.
func (c *Client) do(ctx context.Context, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil && shouldRetryNetworkError(err) {
			return nil, &retryableError{err: fmt.Errorf("http request failed: %w", err)}
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error: %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var base Base
	if err := xml.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	if base.Status == apiStatusFailed {
		var apiErr APIError
		if err := xml.Unmarshal(base.Inner, &apiErr); err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}

		lastfmErr := &Error{
			Code:    apiErr.Code,
			Message: strings.TrimSpace(apiErr.Message),
		}
		if lastfmErr.Temporary() {
			return nil, &retryableError{err: lastfmErr}
		}
		return nil, lastfmErr
	}

	return base.Inner, nil
}

// shouldRetryNetworkError checks if a network error is retryable.
func shouldRetryNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff doubles the backoff, capped at maxBackoff.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
