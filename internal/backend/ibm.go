package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdispatch/api/internal/client"
	"github.com/qdispatch/api/internal/model"
)

const defaultIBMDevice = "ibm_brisbane"

// IBMHardware submits circuits to the IBM quantum runtime. Missing credentials
// surface as submission failures, not as unavailability: the provider stays in
// the catalog so the failure is observable on the job. A client carrying
// per-request credentials is bound to the provider job id at submit time so
// polling and result fetch run under the same identity; entries live as long
// as the job records themselves.
type IBMHardware struct {
	client *client.IBMClient

	mu    sync.Mutex
	bound map[string]*client.IBMClient
}

func NewIBMHardware(c *client.IBMClient) *IBMHardware {
	return &IBMHardware{client: c, bound: make(map[string]*client.IBMClient)}
}

func (h *IBMHardware) Name() string { return model.ProviderIBM }

func (h *IBMHardware) Available() bool { return true }

func (h *IBMHardware) Submit(ctx context.Context, source string, shots int, device string, params map[string]any) (string, error) {
	c := h.client
	if token, ok := params["api_token"].(string); ok && token != "" {
		c = c.WithToken(token)
	}
	if !c.IsConfigured() {
		return "", fmt.Errorf("IBM API token not configured")
	}

	if device == "" {
		device = defaultIBMDevice
	}
	optimizationLevel := 0
	if lvl, ok := params["optimization_level"].(float64); ok {
		optimizationLevel = int(lvl)
	}

	providerJobID, err := c.SubmitJob(ctx, device, source, shots, optimizationLevel)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.bound[providerJobID] = c
	h.mu.Unlock()
	return providerJobID, nil
}

// jobClient returns the client that submitted the job, falling back to the
// configured one for ids this process never submitted.
func (h *IBMHardware) jobClient(providerJobID string) *client.IBMClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.bound[providerJobID]; ok {
		return c
	}
	return h.client
}

func (h *IBMHardware) Poll(ctx context.Context, providerJobID string) (string, error) {
	return h.jobClient(providerJobID).JobStatus(ctx, providerJobID)
}

// FetchResult maps the runtime result list onto the per-submission sub-result
// shape; register names pass through for the normalizer to probe.
func (h *IBMHardware) FetchResult(ctx context.Context, providerJobID string) (*RawResult, error) {
	result, err := h.jobClient(providerJobID).JobResults(ctx, providerJobID)
	if err != nil {
		return nil, err
	}

	pubs := make([]PubResult, 0, len(result.Results))
	for _, r := range result.Results {
		registers := make(map[string]RegisterData, len(r.Data))
		for name, reg := range r.Data {
			registers[name] = RegisterData{Counts: reg.Counts}
		}
		pubs = append(pubs, PubResult{Registers: registers})
	}

	return &RawResult{
		PubResults: pubs,
		Metadata: map[string]any{
			"platform":        "ibm",
			"provider_job_id": providerJobID,
		},
	}, nil
}
