package httpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// maxErrorBody caps how much of an error response is kept in the message
const maxErrorBody = 512

// client performs bridge requests for one provider
type client struct {
	httpClient *http.Client
	baseURL    string
	credential string
	maxRetries int
	backoff    time.Duration
}

// do sends a JSON request and decodes the JSON response into out.
// 5xx responses are retried with linear backoff; 429 honours Retry-After.
// Every failure wraps domain.ErrProviderError.
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.credential != "" {
			req.Header.Set("Authorization", "Bearer "+c.credential)
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s %s: %v", domain.ErrProviderError, method, path, err)
		}

		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		if !retryable || attempt >= c.maxRetries {
			break
		}

		wait := time.Duration(attempt+1) * c.backoff
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s returned %d: %s",
			domain.ErrProviderError, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrProviderError, path, err)
	}
	return nil
}
