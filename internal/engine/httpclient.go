package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMalformedResponse marks a response body that could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPStatusError is a non-2xx response. Adapters map Status onto the
// failure taxonomy via KindFromStatus.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// HTTPClient is a small wrapper over net/http with JSON helpers and bounded
// retries. Only transport-level failures are retried: a delivered status code
// (even 429 or 502) returns immediately so the credential-rotation and
// skip decisions happen exactly once per response upstream.
type HTTPClient struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewHTTPClient builds a client. timeout bounds a single request end to end
// (zero defers entirely to the caller's context), retries counts additional
// transport attempts, backoff is the base of the exponential wait.
func NewHTTPClient(timeout time.Duration, retries int, backoff time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: backoff,
	}
}

// DoJSON sends an optional JSON body and decodes a JSON response into out
// (skipped when out is nil). Non-2xx responses return *HTTPStatusError with
// up to 4KB of body for context.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, headers map[string]string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	tries := c.retries + 1
	if tries < 1 {
		tries = 1
	}
	for attempt := 0; attempt < tries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if waitErr := c.wait(ctx, attempt); waitErr != nil {
				return waitErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			return nil
		}

		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return &HTTPStatusError{Status: resp.StatusCode, Body: string(b)}
	}
	return lastErr
}

// GetText fetches a text body (up to limit bytes, 0 for 1MB default).
func (c *HTTPClient) GetText(ctx context.Context, url string, headers map[string]string, limit int64) (string, error) {
	if limit <= 0 {
		limit = 1 << 20
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPStatusError{Status: resp.StatusCode, Body: string(b)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *HTTPClient) wait(ctx context.Context, attempt int) error {
	select {
	case <-time.After(c.backoff * time.Duration(1<<attempt)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
