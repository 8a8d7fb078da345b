// Package hipchat talks to the chat host: its capabilities documents, the OAuth
// token endpoint and the room notification API.
package hipchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bollustrado/mortimmy/internal/buildinfo"
)

const (
	DefaultTimeout = 15 * time.Second

	// host capabilities documents rarely change, installable documents are never cached
	hostCapabilitiesTTL = 10 * time.Minute
)

type Client struct {
	httpClient *http.Client
	userAgent  string

	capabilities *cache.Cache
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every outbound call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		userAgent:    buildinfo.UserAgent(),
		capabilities: cache.New(hostCapabilitiesTTL, 2*hostCapabilitiesTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, op, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, op, dest)
}

func (c *Client) postJSON(ctx context.Context, op, url, bearer string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, op, nil)
}

// do sends req and decodes a 2xx body into dest. With a nil dest the body is discarded.
func (c *Client) do(req *http.Request, op string, dest any) error {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{
			Op:         op,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}
