package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/qdispatch/api/internal/model"
	"github.com/qdispatch/api/internal/qasm"
)

// CirqSimulator runs circuits on the sampling kernel and reports counts
// through the nested data-object shape cirq-style results use.
type CirqSimulator struct{}

func NewCirqSimulator() *CirqSimulator {
	return &CirqSimulator{}
}

func (s *CirqSimulator) Name() string { return model.ProviderCirq }

func (s *CirqSimulator) Available() bool { return true }

func (s *CirqSimulator) SupportsProbabilities() bool { return false }

func (s *CirqSimulator) Execute(ctx context.Context, source string, shots int, params map[string]any) (*RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shots <= 0 {
		return nil, fmt.Errorf("cirq simulator requires shots > 0, got %d", shots)
	}

	circuit, err := qasm.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse circuit: %w", err)
	}
	if len(circuit.Measures) == 0 {
		return nil, fmt.Errorf("cirq simulator requires at least one measurement")
	}

	start := time.Now()
	raw, err := circuit.SampleCounts(shots, newRNG(params))
	if err != nil {
		return nil, fmt.Errorf("cirq simulation failed: %w", err)
	}

	counts := make(map[string]float64, len(raw))
	for k, v := range raw {
		counts[k] = float64(v)
	}

	return &RawResult{
		Data: &Data{Counts: counts},
		Metadata: map[string]any{
			"platform":       "cirq",
			"backend":        "cirq_simulator",
			"shots":          shots,
			"qubits":         circuit.QubitCount,
			"execution_time": time.Since(start).Seconds(),
		},
	}, nil
}
