package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdispatch/api/internal/client"
	"github.com/qdispatch/api/internal/config"
	"github.com/qdispatch/api/internal/model"
)

const defaultBraketDevice = "arn:aws:braket:::device/quantum-simulator/amazon/sv1"

// AWSHardware submits circuits as Braket quantum tasks. The shared client is
// built from service configuration; per-job credentials in the parameter bag
// get a one-off client, bound to the task ARN at submit time so polling and
// result fetch run under the same identity.
type AWSHardware struct {
	client *client.BraketClient
	cfg    *config.AWSConfig

	mu    sync.Mutex
	bound map[string]*client.BraketClient
}

func NewAWSHardware(c *client.BraketClient, cfg *config.AWSConfig) *AWSHardware {
	return &AWSHardware{client: c, cfg: cfg, bound: make(map[string]*client.BraketClient)}
}

func (h *AWSHardware) Name() string { return model.ProviderAWS }

func (h *AWSHardware) Available() bool { return true }

// taskClient picks the client for a submission, honoring credential overrides
// from the parameter bag.
func (h *AWSHardware) taskClient(params map[string]any) (*client.BraketClient, error) {
	accessKey, _ := params["access_key"].(string)
	secretKey, _ := params["secret_key"].(string)
	if accessKey != "" && secretKey != "" {
		override := *h.cfg
		override.AccessKeyID = accessKey
		override.SecretAccessKey = secretKey
		if region, ok := params["region"].(string); ok && region != "" {
			override.Region = region
		}
		return client.NewBraketClient(&override)
	}
	if h.client == nil || !h.client.IsConfigured() {
		return nil, fmt.Errorf("AWS Braket credentials not configured")
	}
	return h.client, nil
}

func (h *AWSHardware) Submit(ctx context.Context, source string, shots int, device string, params map[string]any) (string, error) {
	c, err := h.taskClient(params)
	if err != nil {
		return "", err
	}
	if device == "" {
		device = defaultBraketDevice
	}
	providerJobID, err := c.CreateTask(ctx, device, source, shots)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.bound[providerJobID] = c
	h.mu.Unlock()
	return providerJobID, nil
}

// jobClient returns the client that submitted the task, falling back to the
// configured one for ARNs this process never submitted.
func (h *AWSHardware) jobClient(providerJobID string) (*client.BraketClient, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.bound[providerJobID]; ok {
		return c, nil
	}
	if h.client == nil {
		return nil, fmt.Errorf("AWS Braket credentials not configured")
	}
	return h.client, nil
}

func (h *AWSHardware) Poll(ctx context.Context, providerJobID string) (string, error) {
	c, err := h.jobClient(providerJobID)
	if err != nil {
		return "", err
	}
	return c.TaskStatus(ctx, providerJobID)
}

// FetchResult maps the task's results.json onto the direct counts shape, or
// onto a probability mapping when the task ran in probability mode.
func (h *AWSHardware) FetchResult(ctx context.Context, providerJobID string) (*RawResult, error) {
	c, err := h.jobClient(providerJobID)
	if err != nil {
		return nil, err
	}
	result, err := c.TaskResult(ctx, providerJobID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"platform":        "aws",
		"provider_job_id": providerJobID,
	}

	if len(result.MeasurementCounts) > 0 {
		return &RawResult{Counts: result.MeasurementCounts, Metadata: metadata}, nil
	}
	if len(result.MeasurementProbabilities) > 0 {
		metadata["result_type"] = "probabilities"
		return &RawResult{Counts: result.MeasurementProbabilities, Metadata: metadata}, nil
	}
	return &RawResult{Metadata: metadata}, nil
}
