package backend

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/qdispatch/api/internal/model"
	"github.com/qdispatch/api/internal/qasm"
)

// BraketSimulator runs circuits on the sampling kernel in the manner of the
// braket local simulator: sampled counts for shots > 0, and a per-index
// probability vector when shots = 0.
type BraketSimulator struct{}

func NewBraketSimulator() *BraketSimulator {
	return &BraketSimulator{}
}

func (s *BraketSimulator) Name() string { return model.ProviderBraket }

func (s *BraketSimulator) Available() bool { return true }

func (s *BraketSimulator) SupportsProbabilities() bool { return true }

func (s *BraketSimulator) Execute(ctx context.Context, source string, shots int, params map[string]any) (*RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shots < 0 {
		return nil, fmt.Errorf("braket simulator requires shots >= 0, got %d", shots)
	}

	circuit, err := qasm.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse circuit: %w", err)
	}

	start := time.Now()
	metadata := map[string]any{
		"platform": "braket",
		"backend":  "braket_local_simulator",
		"shots":    shots,
		"qubits":   circuit.QubitCount,
	}

	if shots == 0 {
		probs, err := circuit.Probabilities()
		if err != nil {
			return nil, fmt.Errorf("braket probability calculation failed: %w", err)
		}
		metadata["execution_time"] = time.Since(start).Seconds()
		return &RawResult{
			Probabilities: probs,
			QubitCount:    circuit.QubitCount,
			Metadata:      metadata,
		}, nil
	}

	raw, err := circuit.SampleCounts(shots, newRNG(params))
	if err != nil {
		return nil, fmt.Errorf("braket simulation failed: %w", err)
	}
	counts := make(map[string]float64, len(raw))
	for k, v := range raw {
		counts[k] = float64(v)
	}
	metadata["execution_time"] = time.Since(start).Seconds()

	return &RawResult{Counts: counts, Metadata: metadata}, nil
}

// newRNG builds the sampling source, honoring an optional "seed" parameter so
// callers can make sampling reproducible.
func newRNG(params map[string]any) *rand.Rand {
	if params != nil {
		switch v := params["seed"].(type) {
		case float64:
			return rand.New(rand.NewSource(int64(v)))
		case int:
			return rand.New(rand.NewSource(int64(v)))
		case int64:
			return rand.New(rand.NewSource(v))
		}
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
