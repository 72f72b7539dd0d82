package model

// Backend types
type BackendType string

const (
	BackendTypeSimulator BackendType = "simulator"
	BackendTypeHardware  BackendType = "hardware"
)

// Simulator providers (closed set)
const (
	ProviderQiskit = "qiskit"
	ProviderCirq   = "cirq"
	ProviderBraket = "braket"
)

// Hardware providers (closed set)
const (
	ProviderIBM    = "ibm"
	ProviderAWS    = "aws"
	ProviderGoogle = "google"
)

var SimulatorProviders = []string{ProviderQiskit, ProviderBraket, ProviderCirq}

var HardwareProviders = []string{ProviderAWS, ProviderIBM, ProviderGoogle}

// ProvidersFor returns the valid provider set for a backend type.
func ProvidersFor(t BackendType) []string {
	if t == BackendTypeHardware {
		return HardwareProviders
	}
	return SimulatorProviders
}

// ValidProvider reports whether provider belongs to the closed set for t.
func ValidProvider(t BackendType, provider string) bool {
	for _, p := range ProvidersFor(t) {
		if p == provider {
			return true
		}
	}
	return false
}

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Execution modes
const (
	ExecutionModeSync  = "sync"
	ExecutionModeAsync = "async"
)
