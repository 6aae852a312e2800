package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// errNotFound is returned by the client for 404 responses
var errNotFound = errors.New("github: not found")

// Client provides the GitHub contents API operations the provider needs.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration

	// maxRateLimitWait bounds how long a rate-limited request waits for reset
	maxRateLimitWait time.Duration
}

// NewClient creates a new GitHub API client.
func NewClient(token string, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Client{
		token:            token,
		httpClient:       httpClient,
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		maxRetries:       cfg.MaxRetries,
		backoff:          backoff,
		maxRateLimitWait: 5 * time.Minute,
	}
}

// FileContent represents file metadata from the contents API.
type FileContent struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
}

// putFileRequest is the body of a create-or-update contents call.
type putFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putFileResponse struct {
	Content *FileContent `json:"content"`
}

// GetFileContent returns the file's metadata, or nil if it does not exist.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, branch string) (*FileContent, error) {
	apiPath := contentsPath(owner, repo, path)
	if branch != "" {
		apiPath += "?ref=" + url.QueryEscape(branch)
	}

	var content FileContent
	err := c.doRequest(ctx, http.MethodGet, apiPath, nil, &content)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// PutFile creates the file, or replaces it when sha names the current blob.
func (c *Client) PutFile(ctx context.Context, owner, repo, path, branch, message string, content []byte, sha string) (*FileContent, error) {
	req := putFileRequest{
		Message: message,
		Content: encodeContent(content),
		SHA:     sha,
		Branch:  branch,
	}
	var resp putFileResponse
	if err := c.doRequest(ctx, http.MethodPut, contentsPath(owner, repo, path), req, &resp); err != nil {
		return nil, err
	}
	if resp.Content == nil {
		return nil, fmt.Errorf("%w: github returned no content for %s", domain.ErrProviderError, path)
	}
	return resp.Content, nil
}

// doRequest performs an authenticated HTTP request with retry logic.
// Rate-limited responses wait for X-RateLimit-Reset when it is near;
// 5xx responses are retried with linear backoff.
func (c *Client) doRequest(ctx context.Context, method, path string, in, out any) error {
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

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: github %s %s: %v", domain.ErrProviderError, method, path, err)
		}

		if attempt >= c.maxRetries {
			break
		}

		// Check for rate limiting
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			if wait, ok := c.rateLimitWait(resp); ok {
				resp.Body.Close()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
					continue
				}
			}
		}

		// Success or non-retryable error
		if resp.StatusCode < 500 {
			break
		}

		resp.Body.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: github API error %d: %s", domain.ErrProviderError, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode github response: %v", domain.ErrProviderError, err)
	}
	return nil
}

// rateLimitWait reports how long to wait before retrying a rate-limited
// response. Resets further away than maxRateLimitWait are not waited for.
func (c *Client) rateLimitWait(resp *http.Response) (time.Duration, bool) {
	if after := resp.Header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(after); err == nil && secs >= 0 {
			wait := time.Duration(secs) * time.Second
			return wait, wait <= c.maxRateLimitWait
		}
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return 0, false
	}
	reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if reset <= 0 {
		return 0, false
	}
	wait := time.Until(time.Unix(reset, 0))
	if wait < 0 {
		wait = 0
	}
	return wait, wait <= c.maxRateLimitWait
}

func contentsPath(owner, repo, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), strings.Join(segments, "/"))
}
