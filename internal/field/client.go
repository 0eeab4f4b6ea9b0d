// Package field implements the REST client for the field-service execution
// platform. All calls authenticate with a static API key header; resources
// carry an externalId supplied by us, which the client uses for
// lookup-before-create idempotency.
package field

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
)

const apiKeyHeader = "X-Api-Key"

// Client wraps interactions with the execution platform API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError describes a non-2xx response from the platform.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("field api: status %d: %s", e.Status, e.Body)
}

// IsDocumentConflict reports whether the error is the platform's natural-key
// rejection for an already-registered document number.
func (e *APIError) IsDocumentConflict() bool {
	if e.Status != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(e.Body, "document number already exists") ||
		strings.Contains(e.Body, "documentNumber")
}

// Record is the subset of any platform resource the sync engine cares about.
type Record struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("field api: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("field api: decode response: %w", err)
		}
	}
	return nil
}

// List endpoints return either a bare array or an {items: [...]} envelope
// depending on the resource; decodeList accepts both.
func decodeList(raw json.RawMessage) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var envelope struct {
		Items []Record `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("field api: decode list: %w", err)
	}
	return envelope.Items, nil
}

func (c *Client) search(ctx context.Context, resource, key, value string) (*Record, error) {
	path := fmt.Sprintf("/%s?%s=%s", resource, key, url.QueryEscape(value))
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	records, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (c *Client) create(ctx context.Context, resource string, payload any) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, "/"+resource, payload, &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("field api: %s create returned no id", resource)
	}
	return &rec, nil
}

func (c *Client) update(ctx context.Context, resource, id string, payload any) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/%s/%s", resource, id), payload, nil)
}
