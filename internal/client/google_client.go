package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/qdispatch/api/internal/config"
)

// GoogleClient talks to the Google quantum engine REST API.
type GoogleClient struct {
	httpClient  *http.Client
	baseURL     string
	projectID   string
	accessToken string
}

// GoogleRunRequest submits a circuit program against a processor.
type GoogleRunRequest struct {
	Processor   string `json:"processor"`
	Program     string `json:"program"`
	Repetitions int    `json:"repetitions"`
}

// GoogleJob is the engine's job resource; State carries the lifecycle label
// under executionStatus.
type GoogleJob struct {
	Name            string                 `json:"name"`
	ExecutionStatus *GoogleExecutionStatus `json:"executionStatus,omitempty"`
}

type GoogleExecutionStatus struct {
	State string `json:"state"`
}

// GoogleJobResult wraps the measurement histogram of a finished job.
type GoogleJobResult struct {
	Result *GoogleResultData `json:"result,omitempty"`
}

type GoogleResultData struct {
	Histogram map[string]float64 `json:"histogram"`
}

// NewGoogleClient creates a new quantum engine client
func NewGoogleClient(cfg *config.GoogleConfig) *GoogleClient {
	return &GoogleClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:     cfg.BaseURL,
		projectID:   cfg.ProjectID,
		accessToken: cfg.AccessToken,
	}
}

// IsConfigured returns true if the client has a project and access token
func (c *GoogleClient) IsConfigured() bool {
	return c.projectID != "" && c.accessToken != ""
}

// WithCredentials returns a copy of the client using caller-supplied project
// and token, falling back to the configured values for empty fields.
func (c *GoogleClient) WithCredentials(projectID, accessToken string) *GoogleClient {
	clone := *c
	if projectID != "" {
		clone.projectID = projectID
	}
	if accessToken != "" {
		clone.accessToken = accessToken
	}
	return &clone
}

// RunProgram submits a circuit to a processor and returns the engine job name.
func (c *GoogleClient) RunProgram(ctx context.Context, processor, source string, repetitions int) (string, error) {
	req := &GoogleRunRequest{
		Processor:   processor,
		Program:     source,
		Repetitions: repetitions,
	}

	endpoint := fmt.Sprintf("/v1alpha1/projects/%s/programs:run", c.projectID)
	var job GoogleJob
	if err := c.post(ctx, endpoint, req, &job); err != nil {
		return "", fmt.Errorf("failed to submit program to quantum engine: %w", err)
	}
	if job.Name == "" {
		return "", fmt.Errorf("quantum engine returned no job name")
	}
	return job.Name, nil
}

// JobState retrieves the engine's own state label for a job, verbatim.
func (c *GoogleClient) JobState(ctx context.Context, jobName string) (string, error) {
	var job GoogleJob
	if err := c.get(ctx, fmt.Sprintf("/v1alpha1/%s", jobName), &job); err != nil {
		return "", err
	}
	if job.ExecutionStatus == nil || job.ExecutionStatus.State == "" {
		return "", fmt.Errorf("quantum engine returned no state for job %s", jobName)
	}
	return job.ExecutionStatus.State, nil
}

// JobResult retrieves the measurement histogram for a finished job.
func (c *GoogleClient) JobResult(ctx context.Context, jobName string) (*GoogleJobResult, error) {
	var result GoogleJobResult
	if err := c.get(ctx, fmt.Sprintf("/v1alpha1/%s/result", jobName), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *GoogleClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *GoogleClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *GoogleClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	log.Printf("[Quantum Engine] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Quantum Engine] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("quantum engine error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
