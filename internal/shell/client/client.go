// Package client provides a typed HTTP client for the job template route.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/jobtemplates/internal/core/domain"
)

// jobTemplatesPath mirrors the server's route.
const jobTemplatesPath = "/api/job_templates"

// Client talks to a job template server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string // e.g. "http://localhost:8080"
	Timeout time.Duration
}

// NewClient creates a new client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// errorBody is the error envelope returned by the server.
type errorBody struct {
	Code    domain.ErrorCode `json:"code"`
	Errors  []string         `json:"errors"`
	Context string           `json:"context"`
}

// =============================================================================
// Operations
// =============================================================================

// List returns every registered job template.
func (c *Client) List(ctx context.Context) ([]domain.JobTemplate, error) {
	var templates []domain.JobTemplate
	if err := c.do(ctx, http.MethodGet, nil, &templates); err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []domain.JobTemplate{}
	}
	return templates, nil
}

// Get returns the named template, or nil when it is not registered.
func (c *Client) Get(ctx context.Context, name string) (*domain.JobTemplate, error) {
	templates, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i], nil
		}
	}
	return nil, nil
}

// Create registers a template, overwriting any template of the same name.
func (c *Client) Create(ctx context.Context, name string, body json.RawMessage) (bool, error) {
	return c.boolCall(ctx, http.MethodPost, domain.JobTemplateCreate{Name: name, Template: body})
}

// Update replaces the body of an existing template. A missing name yields a
// *domain.Error with code UNABLE_TO_UPDATE.
func (c *Client) Update(ctx context.Context, name string, body json.RawMessage) (bool, error) {
	return c.boolCall(ctx, http.MethodPatch, domain.JobTemplateUpdate{Name: name, Template: body})
}

// Delete removes a template and reports whether it existed.
func (c *Client) Delete(ctx context.Context, name string) (bool, error) {
	return c.boolCall(ctx, http.MethodDelete, domain.JobTemplateDelete{Name: name})
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) boolCall(ctx context.Context, method string, payload interface{}) (bool, error) {
	var result domain.BoolResult
	if err := c.do(ctx, method, payload, &result); err != nil {
		return false, err
	}
	return result.Result, nil
}

// do sends a request to the job template route. Error responses are decoded
// into *domain.Error; anything else unexpected becomes a plain error.
func (c *Client) do(ctx context.Context, method string, payload, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+jobTemplatesPath, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Code != "" {
			c.logger.Debug("server rejected request",
				"method", method,
				"status", resp.StatusCode,
				"code", eb.Code,
				"context", eb.Context,
			)
			return domain.NewError(eb.Code, eb.Errors...)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
