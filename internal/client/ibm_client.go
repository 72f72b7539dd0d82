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

// IBMClient talks to the IBM quantum runtime REST API. Submission is attempted
// against the current sampler endpoint first and falls back to the previous
// generation when that fails, since accounts are migrated at different times.
type IBMClient struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

// IBMJobRequest is the submission payload shared by both API generations.
type IBMJobRequest struct {
	Backend string       `json:"backend"`
	Params  IBMJobParams `json:"params"`
	Program string       `json:"program_id"`
}

type IBMJobParams struct {
	Circuits          []string `json:"circuits"`
	Shots             int      `json:"shots"`
	OptimizationLevel int      `json:"optimization_level,omitempty"`
}

type IBMJobResponse struct {
	ID string `json:"id"`
}

// IBMJobStatus carries the provider's lifecycle label. Older deployments
// report a flat status string, newer ones nest it under state.
type IBMJobStatus struct {
	Status string       `json:"status,omitempty"`
	State  *IBMJobState `json:"state,omitempty"`
}

type IBMJobState struct {
	Status string `json:"status"`
}

// Label returns whichever status representation the provider filled in.
func (s *IBMJobStatus) Label() string {
	if s.State != nil && s.State.Status != "" {
		return s.State.Status
	}
	return s.Status
}

// IBMJobResult is the per-submission result list of the runtime API; each
// entry's data object keys register payloads by classical-register name.
type IBMJobResult struct {
	Results []IBMPubResult `json:"results"`
}

type IBMPubResult struct {
	Data map[string]IBMRegisterData `json:"data"`
}

type IBMRegisterData struct {
	Counts map[string]float64 `json:"counts"`
}

// NewIBMClient creates a new IBM runtime API client
func NewIBMClient(cfg *config.IBMConfig) *IBMClient {
	return &IBMClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
	}
}

// IsConfigured returns true if the client has an API token
func (c *IBMClient) IsConfigured() bool {
	return c.apiToken != ""
}

// WithToken returns a copy of the client using a caller-supplied API token.
func (c *IBMClient) WithToken(token string) *IBMClient {
	clone := *c
	clone.apiToken = token
	return &clone
}

// SubmitJob submits a sampler job and returns the provider job id. The v2
// sampler program is tried first; any submission error falls back to the v1
// program before the failure is surfaced.
func (c *IBMClient) SubmitJob(ctx context.Context, backendName, source string, shots, optimizationLevel int) (string, error) {
	req := &IBMJobRequest{
		Backend: backendName,
		Program: "sampler",
		Params: IBMJobParams{
			Circuits:          []string{source},
			Shots:             shots,
			OptimizationLevel: optimizationLevel,
		},
	}

	var result IBMJobResponse
	if err := c.post(ctx, "/v2/jobs", req, &result); err != nil {
		log.Printf("[IBM API] v2 sampler submission failed, falling back to v1: %v", err)
		if err := c.post(ctx, "/v1/jobs", req, &result); err != nil {
			return "", fmt.Errorf("failed to submit job to IBM runtime: %w", err)
		}
	}
	if result.ID == "" {
		return "", fmt.Errorf("IBM runtime returned no job id")
	}
	return result.ID, nil
}

// JobStatus retrieves the provider's own status label for a job, verbatim.
func (c *IBMClient) JobStatus(ctx context.Context, jobID string) (string, error) {
	var status IBMJobStatus
	if err := c.get(ctx, fmt.Sprintf("/v1/jobs/%s", jobID), &status); err != nil {
		return "", err
	}
	label := status.Label()
	if label == "" {
		return "", fmt.Errorf("IBM runtime returned no status for job %s", jobID)
	}
	return label, nil
}

// JobResults retrieves the raw result payload for a completed job.
func (c *IBMClient) JobResults(ctx context.Context, jobID string) (*IBMJobResult, error) {
	var result IBMJobResult
	if err := c.get(ctx, fmt.Sprintf("/v1/jobs/%s/results", jobID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *IBMClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
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
func (c *IBMClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *IBMClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	log.Printf("[IBM API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[IBM API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[IBM API] ✗ %s %s — failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[IBM API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("IBM API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
