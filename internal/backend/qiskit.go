package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/qdispatch/api/internal/model"
	"github.com/qdispatch/api/internal/qasm"
)

// QiskitSimulator runs circuits on the embedded aer-style sampling kernel and
// reports counts through the direct accessor shape.
type QiskitSimulator struct{}

func NewQiskitSimulator() *QiskitSimulator {
	return &QiskitSimulator{}
}

func (s *QiskitSimulator) Name() string { return model.ProviderQiskit }

func (s *QiskitSimulator) Available() bool { return true }

func (s *QiskitSimulator) SupportsProbabilities() bool { return false }

func (s *QiskitSimulator) Execute(ctx context.Context, source string, shots int, params map[string]any) (*RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shots <= 0 {
		return nil, fmt.Errorf("qiskit simulator requires shots > 0, got %d", shots)
	}

	circuit, err := qasm.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse circuit: %w", err)
	}

	start := time.Now()
	raw, err := circuit.SampleCounts(shots, newRNG(params))
	if err != nil {
		return nil, fmt.Errorf("qiskit simulation failed: %w", err)
	}

	counts := make(map[string]float64, len(raw))
	for k, v := range raw {
		counts[k] = float64(v)
	}

	return &RawResult{
		Counts: counts,
		Metadata: map[string]any{
			"platform":       "qiskit",
			"backend":        "aer_simulator",
			"shots":          shots,
			"qubits":         circuit.QubitCount,
			"execution_time": time.Since(start).Seconds(),
		},
	}, nil
}
