// Package api is a minimal client for the streaming server's public HTTP API:
// instance config, stream status, the viewer keep-alive ping, video variants and
// anonymous chat registration.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/livewatch/telemetry"
)

// ErrUnexpectedStatus is wrapped by every non-2xx response error.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Endpoint paths relative to the server base URL.
const (
	PathConfig   = "/api/config"
	PathStatus   = "/api/status"
	PathPing     = "/api/ping"
	PathVariants = "/api/video/variants"
	PathRegister = "/api/chat/register"
	PathSocket   = "/ws"
	PathStream   = "/hls/stream.m3u8"
)

// Client talks to one streaming server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for baseURL with a bounded default timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// URL resolves an endpoint path against the base URL.
func (c *Client) URL(path string) string { return strings.TrimRight(c.BaseURL, "/") + path }

// SocketURL returns the chat websocket URL for an access token.
func (c *Client) SocketURL(accessToken string) (string, error) {
	u, err := url.Parse(c.URL(PathSocket))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("accessToken", accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StreamURL returns the HLS master playlist URL.
func (c *Client) StreamURL() string { return c.URL(PathStream) }

// GetConfig fetches the instance config.
func (c *Client) GetConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := c.getJSON(ctx, PathConfig, &cfg); err != nil {
		return Config{}, fmt.Errorf("fetch config: %w", err)
	}
	return cfg, nil
}

// GetStatus fetches the current stream status.
func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	ctx, span := telemetry.StartSpan(ctx, "api", "GetStatus")
	defer span.End()
	var st Status
	if err := c.getJSON(ctx, PathStatus, &st); err != nil {
		telemetry.RecordError(span, err)
		return Status{}, fmt.Errorf("stream status: %w", err)
	}
	telemetry.SetSpanSuccess(span)
	return st, nil
}

// Ping tells the server this viewer is still watching. The body is ignored.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, PathPing, nil)
	if err != nil {
		return fmt.Errorf("viewer ping: %w", err)
	}
	drainClose(resp)
	return nil
}

// GetVariants lists the stream output variants for quality selection.
func (c *Client) GetVariants(ctx context.Context) ([]Variant, error) {
	var out []Variant
	if err := c.getJSON(ctx, PathVariants, &out); err != nil {
		return nil, fmt.Errorf("video variants: %w", err)
	}
	return out, nil
}

// Register exchanges a desired display name for an access token.
func (c *Client) Register(ctx context.Context, displayName string) (Registration, error) {
	ctx, span := telemetry.StartSpan(ctx, "api", "Register")
	defer span.End()
	body, err := json.Marshal(map[string]string{"displayName": displayName})
	if err != nil {
		return Registration{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, PathRegister, bytes.NewReader(body))
	if err != nil {
		telemetry.RecordError(span, err)
		return Registration{}, fmt.Errorf("chat registration: %w", err)
	}
	defer closeBody(resp)
	var reg Registration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		telemetry.RecordError(span, err)
		return Registration{}, fmt.Errorf("decode registration: %w", err)
	}
	if reg.AccessToken == "" {
		err := errors.New("empty accessToken in registration response")
		telemetry.RecordError(span, err)
		return Registration{}, err
	}
	telemetry.SetSpanSuccess(span)
	return reg, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		closeBody(resp)
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	closeBody(resp)
}
