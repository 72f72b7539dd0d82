package model

import "time"

// ExecuteRequest represents the request body for circuit execution
type ExecuteRequest struct {
	CircuitFile     string         `json:"circuitFile" validate:"required,min=1"`
	Shots           int            `json:"shots" validate:"min=0"`
	BackendType     BackendType    `json:"backendType" validate:"required,oneof=simulator hardware"`
	BackendProvider string         `json:"backendProvider" validate:"required,min=1"`
	BackendName     string         `json:"backendName" validate:"omitempty,max=128"`
	AsyncMode       bool           `json:"asyncMode"`
	Parameters      map[string]any `json:"parameters"`
}

// ExecuteResponse represents the response for circuit execution.
// In sync mode the job is terminal and Counts are populated (sync failures
// surface as a provider error response instead); in async mode the job is
// queued and the caller polls the status endpoint.
type ExecuteResponse struct {
	JobID         string             `json:"jobId"`
	Status        JobStatus          `json:"status"`
	ExecutionMode string             `json:"executionMode"`
	Counts        map[string]float64 `json:"counts,omitempty"`
	ExecutionTime float64            `json:"executionTime,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// JobStatusResponse represents the status-inquiry response for a job
type JobStatusResponse struct {
	JobID          string      `json:"jobId"`
	Status         JobStatus   `json:"status"`
	BackendType    BackendType `json:"backendType"`
	Provider       string      `json:"backendProvider"`
	DeviceID       string      `json:"backendName,omitempty"`
	Shots          int         `json:"shots"`
	ProviderJobID  string      `json:"providerJobId,omitempty"`
	ProviderStatus string      `json:"providerStatus,omitempty"`
	Error          *string     `json:"error,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

// CancelResponse represents the response for job cancellation
type CancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// ProviderInfo describes one selectable backend provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ProvidersResponse lists the closed provider sets and their availability
type ProvidersResponse struct {
	Simulators []ProviderInfo `json:"simulators"`
	Hardware   []ProviderInfo `json:"hardware"`
}
