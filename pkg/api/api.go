// pkg/api/api.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RequestError is returned when the service answers with an error body
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("receipt service returned %d: %s", e.StatusCode, e.Message)
}

// Client calls a receipt service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Above the service's own fetch timeout
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract posts to the extract endpoint
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	return c.post(ctx, ExtractPath, req)
}

// Lookup posts to the allow-listed lookup endpoint. A refused link comes back
// as a *RequestError carrying the service's reason.
func (c *Client) Lookup(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	return c.post(ctx, LookupPath, req)
}

func (c *Client) post(ctx context.Context, path string, req ExtractRequest) (*ExtractResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		ExtractResponse
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if envelope.Error != "" || resp.StatusCode != http.StatusOK {
		message := envelope.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: message}
	}
	return &envelope.ExtractResponse, nil
}
