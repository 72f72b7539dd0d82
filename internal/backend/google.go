package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdispatch/api/internal/client"
	"github.com/qdispatch/api/internal/model"
)

const defaultGoogleProcessor = "rainbow"

// GoogleHardware submits circuits to the Google quantum engine. A client
// carrying per-request credentials is bound to the engine job name at submit
// time so polling and result fetch run under the same identity.
type GoogleHardware struct {
	client *client.GoogleClient

	mu    sync.Mutex
	bound map[string]*client.GoogleClient
}

func NewGoogleHardware(c *client.GoogleClient) *GoogleHardware {
	return &GoogleHardware{client: c, bound: make(map[string]*client.GoogleClient)}
}

func (h *GoogleHardware) Name() string { return model.ProviderGoogle }

func (h *GoogleHardware) Available() bool { return true }

func (h *GoogleHardware) Submit(ctx context.Context, source string, shots int, device string, params map[string]any) (string, error) {
	projectID, _ := params["project_id"].(string)
	accessToken, _ := params["access_token"].(string)
	c := h.client.WithCredentials(projectID, accessToken)
	if !c.IsConfigured() {
		return "", fmt.Errorf("Google quantum engine credentials not configured")
	}

	if device == "" {
		device = defaultGoogleProcessor
	}
	providerJobID, err := c.RunProgram(ctx, device, source, shots)
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
func (h *GoogleHardware) jobClient(providerJobID string) *client.GoogleClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.bound[providerJobID]; ok {
		return c
	}
	return h.client
}

func (h *GoogleHardware) Poll(ctx context.Context, providerJobID string) (string, error) {
	return h.jobClient(providerJobID).JobState(ctx, providerJobID)
}

// FetchResult maps the engine histogram onto the nested data-object shape.
func (h *GoogleHardware) FetchResult(ctx context.Context, providerJobID string) (*RawResult, error) {
	result, err := h.jobClient(providerJobID).JobResult(ctx, providerJobID)
	if err != nil {
		return nil, err
	}

	raw := &RawResult{
		Metadata: map[string]any{
			"platform":        "google",
			"provider_job_id": providerJobID,
		},
	}
	if result.Result != nil && len(result.Result.Histogram) > 0 {
		raw.Data = &Data{Counts: result.Result.Histogram}
	}
	return raw, nil
}
