package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of a failed response is kept for messages.
const maxErrorBody = 64 << 10

// APIClient issues JSON requests against the banking back-end.
// Credentials are attached by the transport, not here.
type APIClient struct {
	client *http.Client
	base   string
	logger *zap.Logger
}

// NewAPIClient builds a client for baseURL. transport is usually a BearerTransport.
func NewAPIClient(baseURL string, transport http.RoundTripper, timeout time.Duration, logger *zap.Logger) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		client: &http.Client{Timeout: timeout, Transport: transport},
		base:   strings.TrimRight(baseURL, "/"),
		logger: logger,
	}
}

// APIError is a non-2xx answer from the back-end.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	if msg := e.ServerMessage(); msg != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
}

// ServerMessage extracts the back-end's {"error": "..."} text, or "message" as a second choice.
func (e *APIError) ServerMessage() string {
	if len(e.Body) == 0 || !gjson.ValidBytes(e.Body) {
		return ""
	}
	for _, field := range []string{"error", "message"} {
		v := gjson.GetBytes(e.Body, field)
		if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func (c *APIClient) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *APIClient) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *APIClient) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *APIClient) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends one request. in is JSON-encoded when non-nil; out is decoded when
// non-nil and the body is not empty. Failures are never retried.
func (c *APIClient) Do(ctx context.Context, method, path string, in, out any) error {
	if c.base == "" {
		return errors.New("api url not configured")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: b}
		c.logger.Debug("api request rejected", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
