package qaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

type RealClient struct {
	baseURL    string
	endpoints  Endpoints
	httpClient *http.Client
}

type Option func(*RealClient)

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *RealClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithEndpoints(e Endpoints) Option {
	return func(c *RealClient) {
		c.endpoints = e.withDefaults()
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *RealClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewRealClient creates a client for the backend rooted at baseURL.
func NewRealClient(baseURL string, opts ...Option) (*RealClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	c := &RealClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: DefaultEndpoints(),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *RealClient) GetMetrics(ctx context.Context) (*MetricsSnapshot, error) {
	var snapshot MetricsSnapshot
	if err := c.do(ctx, http.MethodGet, c.endpoints.Metrics, nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *RealClient) GetExecutions(ctx context.Context, opts ListOptions) ([]ExecutionRecord, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limite", strconv.Itoa(opts.Limit))
	}
	if opts.Kind != "" {
		params.Set("tipo", opts.Kind)
	}
	if opts.Status != "" {
		params.Set("status", string(opts.Status))
	}

	path := c.endpoints.Executions
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var records []ExecutionRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *RealClient) GetPipelines(ctx context.Context) ([]PipelineStatus, error) {
	var pipelines []PipelineStatus
	if err := c.do(ctx, http.MethodGet, c.endpoints.Pipelines, nil, &pipelines); err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (c *RealClient) GetSystem(ctx context.Context) (*SystemUtilization, error) {
	var util SystemUtilization
	if err := c.do(ctx, http.MethodGet, c.endpoints.System, nil, &util); err != nil {
		return nil, err
	}
	return &util, nil
}

func (c *RealClient) RunTests(ctx context.Context, req RunRequest) (*RunAck, error) {
	var ack RunAck
	if err := c.do(ctx, http.MethodPost, c.endpoints.RunTests, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *RealClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %w: %d %s", method, path, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
