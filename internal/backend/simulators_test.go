package backend

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/qdispatch/api/internal/model"
)

const bellSource = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
h q[0];
cx q[0], q[1];
measure q[0] -> c[0];
measure q[1] -> c[1];
`

const identitySource = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[1];
creg c[1];
measure q[0] -> c[0];
`

func TestQiskitSimulatorExecute(t *testing.T) {
	sim := NewQiskitSimulator()
	if sim.Name() != model.ProviderQiskit || !sim.Available() {
		t.Fatal("unexpected adapter identity")
	}

	raw, err := sim.Execute(context.Background(), identitySource, 1024, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// Direct counts shape with every shot on the zero state.
	if raw.Counts["0"] != 1024 {
		t.Errorf("expected counts {\"0\": 1024}, got %v", raw.Counts)
	}
	if raw.Metadata["backend"] != "aer_simulator" {
		t.Errorf("unexpected metadata: %v", raw.Metadata)
	}
}

func TestQiskitSimulatorRejectsZeroShots(t *testing.T) {
	sim := NewQiskitSimulator()
	if _, err := sim.Execute(context.Background(), identitySource, 0, nil); err == nil {
		t.Error("expected rejection of shots=0")
	}
	if sim.SupportsProbabilities() {
		t.Error("qiskit adapter should not offer probability mode")
	}
}

func TestQiskitSimulatorParseError(t *testing.T) {
	sim := NewQiskitSimulator()
	_, err := sim.Execute(context.Background(), "qreg q[1]; frobnicate q[0];", 100, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported gate") {
		t.Errorf("expected a parse failure, got %v", err)
	}
}

func TestCirqSimulatorExecute(t *testing.T) {
	sim := NewCirqSimulator()

	raw, err := sim.Execute(context.Background(), bellSource, 512, map[string]any{"seed": 11})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// Nested data-object shape.
	if raw.Counts != nil {
		t.Error("cirq adapter should not use the direct counts shape")
	}
	if raw.Data == nil {
		t.Fatal("expected nested data counts")
	}
	total := 0.0
	for outcome, n := range raw.Data.Counts {
		if outcome != "00" && outcome != "11" {
			t.Errorf("impossible bell outcome %q", outcome)
		}
		total += n
	}
	if total != 512 {
		t.Errorf("counts sum to %v, want 512", total)
	}
}

func TestCirqSimulatorRequiresMeasurements(t *testing.T) {
	sim := NewCirqSimulator()
	_, err := sim.Execute(context.Background(), "qreg q[1]; h q[0];", 100, nil)
	if err == nil || !strings.Contains(err.Error(), "measurement") {
		t.Errorf("expected measurement requirement, got %v", err)
	}
}

func TestBraketSimulatorSampling(t *testing.T) {
	sim := NewBraketSimulator()
	if !sim.SupportsProbabilities() {
		t.Fatal("braket adapter should offer probability mode")
	}

	raw, err := sim.Execute(context.Background(), bellSource, 256, map[string]any{"seed": 5})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	total := 0.0
	for _, n := range raw.Counts {
		total += n
	}
	if total != 256 {
		t.Errorf("counts sum to %v, want 256", total)
	}
}

func TestBraketSimulatorProbabilityMode(t *testing.T) {
	sim := NewBraketSimulator()

	raw, err := sim.Execute(context.Background(), bellSource, 0, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if raw.Counts != nil {
		t.Error("probability mode should not produce counts")
	}
	if raw.QubitCount != 2 || len(raw.Probabilities) != 4 {
		t.Fatalf("expected a 4-entry vector over 2 qubits, got %d entries over %d qubits",
			len(raw.Probabilities), raw.QubitCount)
	}
	sum := 0.0
	for _, p := range raw.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", sum)
	}
}

func TestBraketSimulatorRejectsNegativeShots(t *testing.T) {
	sim := NewBraketSimulator()
	if _, err := sim.Execute(context.Background(), bellSource, -1, nil); err == nil {
		t.Error("expected rejection of negative shots")
	}
}

func TestSimulatorSeedReproducible(t *testing.T) {
	sim := NewQiskitSimulator()
	params := map[string]any{"seed": float64(99)}

	first, err := sim.Execute(context.Background(), bellSource, 200, params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	second, err := sim.Execute(context.Background(), bellSource, 200, params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for k, v := range first.Counts {
		if second.Counts[k] != v {
			t.Fatalf("seeded runs differ: %v vs %v", first.Counts, second.Counts)
		}
	}
}

func TestCatalogRouting(t *testing.T) {
	c := NewCatalog()
	c.Register(NewQiskitSimulator())
	c.Register(NewBraketSimulator())

	if _, ok := c.Simulator(model.ProviderQiskit); !ok {
		t.Error("qiskit simulator missing from catalog")
	}
	if _, ok := c.Hardware(model.ProviderIBM); ok {
		t.Error("unregistered hardware adapter found")
	}
	if !c.Available(model.BackendTypeSimulator, model.ProviderQiskit) {
		t.Error("registered simulator should be available")
	}
	if c.Available(model.BackendTypeSimulator, model.ProviderCirq) {
		t.Error("unregistered simulator should be unavailable")
	}

	c.Disable(model.ProviderQiskit)
	if c.Available(model.BackendTypeSimulator, model.ProviderQiskit) {
		t.Error("disabled provider should be unavailable")
	}

	infos := c.Providers(model.BackendTypeSimulator)
	if len(infos) != 3 {
		t.Fatalf("expected the full closed set, got %d entries", len(infos))
	}
}
