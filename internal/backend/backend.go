// Package backend holds the provider adapters the dispatch engine routes to:
// three local simulators and three hardware providers, all reporting results
// through the RawResult shapes the normalizer understands.
package backend

import (
	"context"
	"fmt"

	"github.com/qdispatch/api/internal/model"
)

// Simulator is the capability contract for local, in-process execution.
type Simulator interface {
	Name() string
	Available() bool
	// SupportsProbabilities reports whether shots=0 probability mode is valid
	// for this adapter.
	SupportsProbabilities() bool
	Execute(ctx context.Context, source string, shots int, params map[string]any) (*RawResult, error)
}

// Hardware is the capability contract for remote two-phase execution: submit
// returns the provider's own job id, poll samples the provider's lifecycle
// label, and FetchResult retrieves the raw result once the provider reports a
// terminal status.
type Hardware interface {
	Name() string
	Available() bool
	Submit(ctx context.Context, source string, shots int, device string, params map[string]any) (string, error)
	Poll(ctx context.Context, providerJobID string) (string, error)
	FetchResult(ctx context.Context, providerJobID string) (*RawResult, error)
}

// RawResult is the union of response shapes the six adapters produce. Exactly
// one of the outcome fields is expected to be populated; the normalizer probes
// them in a fixed order.
type RawResult struct {
	// Counts is the direct outcome→count accessor (qiskit/braket sampling,
	// aws task results, pending placeholders).
	Counts map[string]float64
	// Data is the nested data-object shape (cirq, google engine histogram).
	Data *Data
	// PubResults is the per-submission sub-result list of the multi-generation
	// hardware runtime shape (ibm).
	PubResults []PubResult
	// Probabilities is a per-basis-index probability vector (shots=0 mode);
	// QubitCount gives the key width for bitstring conversion.
	Probabilities []float64
	QubitCount    int

	Metadata map[string]any
}

// Data is a nested result data object carrying counts.
type Data struct {
	Counts map[string]float64
}

// PubResult is one per-submission sub-result whose data object keys register
// data by classical-register name. The name in play is not always known in
// advance.
type PubResult struct {
	Registers map[string]RegisterData
}

// RegisterData is the per-register payload offering a counts accessor.
type RegisterData struct {
	Counts map[string]float64
}

// GetCounts returns the register's counts, or an error when the register holds
// no outcome data.
func (r RegisterData) GetCounts() (map[string]float64, error) {
	if len(r.Counts) == 0 {
		return nil, fmt.Errorf("register has no counts")
	}
	return r.Counts, nil
}

// Catalog is the routing table from (backend type, provider) to an adapter.
// An operator can disable individual providers without removing them from the
// closed validity sets.
type Catalog struct {
	simulators map[string]Simulator
	hardware   map[string]Hardware
	disabled   map[string]bool
}

func NewCatalog() *Catalog {
	return &Catalog{
		simulators: make(map[string]Simulator),
		hardware:   make(map[string]Hardware),
		disabled:   make(map[string]bool),
	}
}

func (c *Catalog) Register(s Simulator) {
	c.simulators[s.Name()] = s
}

func (c *Catalog) RegisterHardware(h Hardware) {
	c.hardware[h.Name()] = h
}

// Disable marks a provider unavailable regardless of what the adapter reports.
func (c *Catalog) Disable(name string) {
	c.disabled[name] = true
}

func (c *Catalog) Simulator(name string) (Simulator, bool) {
	s, ok := c.simulators[name]
	return s, ok
}

func (c *Catalog) Hardware(name string) (Hardware, bool) {
	h, ok := c.hardware[name]
	return h, ok
}

// Available reports whether the named provider is registered for the backend
// type and currently reports itself available.
func (c *Catalog) Available(t model.BackendType, provider string) bool {
	if c.disabled[provider] {
		return false
	}
	if t == model.BackendTypeHardware {
		h, ok := c.hardware[provider]
		return ok && h.Available()
	}
	s, ok := c.simulators[provider]
	return ok && s.Available()
}

// Providers lists the closed provider set for a backend type together with
// current availability.
func (c *Catalog) Providers(t model.BackendType) []model.ProviderInfo {
	names := model.ProvidersFor(t)
	infos := make([]model.ProviderInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, model.ProviderInfo{Name: name, Available: c.Available(t, name)})
	}
	return infos
}
