package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

// cachingBetaHeader is added when the inbound Anthropic request carried any
// cache-control annotation, per spec.md §4.6/§6. Informational only: most
// OpenAI-compatible upstreams ignore unrecognized headers.
const cachingBetaHeader = "anthropic-beta"
const cachingBetaValue = "prompt-caching-2024-07-31"

// DefaultTransport clones http.DefaultTransport and bounds the wait for
// upstream response headers, mirroring the teacher's proxy.DefaultTransport
// (same rationale: prevent an unresponsive upstream from hanging a request
// indefinitely). Returns a fresh instance on each call.
func DefaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}

// Client sends transformed chat-completion requests to the configured
// OpenAI-compatible upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client against baseURL (e.g. "https://api.example.com/v1"),
// using transport for the underlying round trips. A nil transport falls
// back to DefaultTransport().
func New(baseURL string, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = DefaultTransport()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Transport: transport},
	}
}

// Send POSTs body to <baseURL>/chat/completions and returns the raw
// response for the caller to branch on (status forwarding, streaming vs.
// buffered decode) per spec.md §7's upstream-error forwarding policy. The
// caller owns closing resp.Body.
func (c *Client) Send(ctx context.Context, req *schema.ChatCompletionRequest, apiKey string, hasCacheControl bool) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", bearer(apiKey))
	if hasCacheControl {
		httpReq.Header.Set(cachingBetaHeader, cachingBetaValue)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	return resp, nil
}

// bearer prefixes key with "Bearer " if the caller supplied a bare
// credential rather than a pre-formed Authorization header value, per
// spec.md §6's "prefixed with Bearer if absent" rule.
func bearer(key string) string {
	if strings.HasPrefix(key, "Bearer ") {
		return key
	}
	return "Bearer " + key
}
