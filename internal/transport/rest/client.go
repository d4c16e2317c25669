// Package rest talks to the message backend over HTTP: bulk fetch and the
// durable create and delete writes.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/message"
)

const messagesPath = "/api/messages"

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Client is the backend's REST API. Failed requests are not retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for baseURL. A nil httpClient gets a default
// with a 15 second timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// FetchAll returns every message the backend holds. Malformed elements
// are skipped.
func (c *Client) FetchAll(ctx context.Context) ([]message.Record, error) {
	body, err := c.do(ctx, http.MethodGet, messagesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	recs, skipped, err := message.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if skipped > 0 {
		c.logger.Warn("skipped malformed records", zap.Int("skipped", skipped))
	}
	return recs, nil
}

// CreateMessage persists rec.
func (c *Client) CreateMessage(ctx context.Context, rec message.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, messagesPath, payload); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// DeleteMessage deletes the message stored under id.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, messagesPath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
