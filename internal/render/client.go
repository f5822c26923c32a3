// Package render wraps the external image-composition service. The service
// is slow and fallible: submissions get their own bounded retry budget and
// results are polled until a terminal status or the wall-clock budget runs
// out. Only an error that survives this adapter consumes a job retry.
package render

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

	"github.com/rs/zerolog"

	"tryonserver/internal/domain"
)

// ErrTimedOut indicates the poll budget elapsed before a terminal status.
var ErrTimedOut = errors.New("render: timed out waiting for result")

// Options configures the composition client.
type Options struct {
	BaseURL       string
	APIKey        string
	PollInterval  time.Duration
	PollBudget    time.Duration
	SubmitRetries int
	HTTPClient    *http.Client
	Logger        zerolog.Logger
}

// Client performs HTTP calls against the composition service.
type Client struct {
	baseURL       string
	apiKey        string
	pollInterval  time.Duration
	pollBudget    time.Duration
	submitRetries int
	httpClient    *http.Client
	logger        zerolog.Logger
}

// Request names the two source images for one composition.
type Request struct {
	GarmentURL string
	SubjectURL string
	JobID      string
}

// Result is the downloaded output of a successful composition.
type Result struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

type submitPayload struct {
	GarmentURL string `json:"garment_url"`
	SubjectURL string `json:"subject_url"`
	Reference  string `json:"reference,omitempty"`
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type statusResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusCanceled  = "canceled"

	submitBackoffBase = 500 * time.Millisecond
)

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollBudget := opts.PollBudget
	if pollBudget <= 0 {
		pollBudget = 60 * time.Second
	}
	submitRetries := opts.SubmitRetries
	if submitRetries <= 0 {
		submitRetries = 3
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        strings.TrimSpace(opts.APIKey),
		pollInterval:  pollInterval,
		pollBudget:    pollBudget,
		submitRetries: submitRetries,
		httpClient:    httpClient,
		logger:        opts.Logger,
	}
}

// Render submits one composition and blocks until a terminal status, then
// downloads the single output image. The call holds the worker for up to
// submit retries plus the poll budget.
func (c *Client) Render(ctx context.Context, req Request) (*Result, error) {
	jobID, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	outputURL, err := c.pollUntilDone(ctx, jobID)
	if err != nil {
		return nil, err
	}
	data, contentType, err := c.fetch(ctx, outputURL)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, ContentType: contentType, SourceURL: outputURL}, nil
}

// Submit posts a composition request, retrying transient failures with
// exponential backoff. These retries are the adapter's own budget and do not
// consume the job-level retry cap.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if req.GarmentURL == "" || req.SubjectURL == "" {
		return "", fmt.Errorf("%w: render submit requires garment and subject urls", domain.ErrValidation)
	}
	body, err := json.Marshal(submitPayload{GarmentURL: req.GarmentURL, SubjectURL: req.SubjectURL, Reference: req.JobID})
	if err != nil {
		return "", fmt.Errorf("render: encode request: %w", err)
	}

	var lastErr error
	delay := submitBackoffBase
	for attempt := 1; attempt <= c.submitRetries; attempt++ {
		id, err := c.submitOnce(ctx, body)
		if err == nil {
			return id, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt).Str("job_id", req.JobID).Msg("render: submit failed")
		if attempt < c.submitRetries {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}
	}
	return "", fmt.Errorf("%w: submit after %d attempts: %v", domain.ErrProviderFailure, c.submitRetries, lastErr)
}

func (c *Client) submitOnce(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("render: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("render: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("render: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("render: submit status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("render: decode response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("render: submit rejected: %s", decoded.Error)
	}
	if decoded.ID == "" {
		return "", errors.New("render: submit returned empty job id")
	}
	return decoded.ID, nil
}

// pollUntilDone polls at a fixed interval until the external job is terminal
// or the wall-clock budget elapses. A succeeded status with no output is an
// error in its own right.
func (c *Client) pollUntilDone(ctx context.Context, externalID string) (string, error) {
	deadline := time.Now().Add(c.pollBudget)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.pollOnce(ctx, externalID)
		if err == nil {
			switch status.Status {
			case statusSucceeded:
				if len(status.Output) == 0 || status.Output[0] == "" {
					return "", fmt.Errorf("%w: succeeded without output", domain.ErrProviderFailure)
				}
				return status.Output[0], nil
			case statusFailed, statusCanceled:
				msg := status.Error
				if msg == "" {
					msg = status.Status
				}
				return "", fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
			}
		} else {
			c.logger.Warn().Err(err).Str("external_id", externalID).Msg("render: poll failed")
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: %v budget exceeded", ErrTimedOut, c.pollBudget)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, externalID string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("render: build status request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render: status request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("render: read status: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("render: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("render: decode status: %w", err)
	}
	return &decoded, nil
}

func (c *Client) fetch(ctx context.Context, outputURL string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("render: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("render: download output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("render: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("render: read output: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}
