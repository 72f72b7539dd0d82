package model

import "time"

// Job represents a circuit execution job tracked by the registry.
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	BackendType BackendType    `json:"backendType"`
	Provider    string         `json:"backendProvider"`
	DeviceID    string         `json:"backendName,omitempty"`
	Shots       int            `json:"shots"`
	Parameters  map[string]any `json:"parameters,omitempty"`

	// CircuitKey is the storage key of the persisted circuit source; the
	// source itself is carried so the runner never reads the store back.
	CircuitKey string `json:"circuitKey"`
	Circuit    string `json:"-"`

	// ProviderJobID is the remote provider's own tracking id, set once after
	// a successful hardware submission and never overwritten.
	ProviderJobID string `json:"providerJobId,omitempty"`
	// ProviderStatus is the provider's own lifecycle label, passed through
	// verbatim for observability.
	ProviderStatus string `json:"providerStatus,omitempty"`

	Error  *string `json:"error,omitempty"`
	Result []byte  `json:"-"` // persisted ExecutionResult JSON

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ExecutionResult is the uniform record every backend response is reduced to.
// Either Counts is present with Success=true, or Error is set with
// Success=false; the two are mutually exclusive.
type ExecutionResult struct {
	Counts        map[string]float64 `json:"counts,omitempty"`
	Metadata      map[string]any     `json:"metadata"`
	ExecutionTime float64            `json:"executionTime"`
	Success       bool               `json:"success"`
	Error         string             `json:"error,omitempty"`
}
