package backend

import (
	"log"
	"sort"

	"github.com/qdispatch/api/internal/qasm"
)

// SentinelKey is the diagnostic counts key emitted when no extraction strategy
// can locate outcome data. Normalization degrades to this observable state
// rather than failing the job: partial metadata such as a provider job id is
// still worth committing.
const SentinelKey = "error_extracting_counts"

// defaultRegisters are the classical-register names tried when the circuit's
// own declaration doesn't match the provider response.
var defaultRegisters = []string{"c", "meas", "measurement"}

// extraction is one independently testable step of the fallback ladder.
type extraction struct {
	name string
	run  func(raw *RawResult, hints []string) (map[string]float64, map[string]any)
}

var extractions = []extraction{
	{"counts", fromCounts},
	{"data.counts", fromDataCounts},
	{"pub_results", fromPubResults},
	{"probabilities", fromProbabilities},
}

// Normalize reduces a raw adapter result to the uniform counts mapping plus
// metadata. registerHints are the circuit's declared classical registers in
// order; common fallback names are appended automatically. Values pass through
// unrounded and unrenormalized.
func Normalize(raw *RawResult, registerHints []string) (map[string]float64, map[string]any) {
	metadata := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		metadata[k] = v
	}

	hints := registerHints
	for _, name := range defaultRegisters {
		if !contains(hints, name) {
			hints = append(hints, name)
		}
	}

	for _, e := range extractions {
		counts, extra := e.run(raw, hints)
		if counts == nil {
			continue
		}
		for k, v := range extra {
			metadata[k] = v
		}
		return counts, metadata
	}

	log.Printf("normalize: no extraction strategy matched, emitting sentinel counts")
	metadata["error"] = "could not locate counts in provider result"
	return map[string]float64{SentinelKey: 1}, metadata
}

func fromCounts(raw *RawResult, _ []string) (map[string]float64, map[string]any) {
	if len(raw.Counts) == 0 {
		return nil, nil
	}
	return raw.Counts, nil
}

func fromDataCounts(raw *RawResult, _ []string) (map[string]float64, map[string]any) {
	if raw.Data == nil || len(raw.Data.Counts) == 0 {
		return nil, nil
	}
	return raw.Data.Counts, nil
}

// fromPubResults handles the per-submission sub-result shape: take the first
// sub-result, try the hinted register names, then probe every register the
// data object exposes and use the first one offering counts.
func fromPubResults(raw *RawResult, hints []string) (map[string]float64, map[string]any) {
	if len(raw.PubResults) == 0 {
		return nil, nil
	}
	pub := raw.PubResults[0]

	for _, name := range hints {
		reg, ok := pub.Registers[name]
		if !ok {
			continue
		}
		if counts, err := reg.GetCounts(); err == nil {
			return counts, map[string]any{"register": name}
		}
	}

	// Exhaustive probe, in sorted order so the pick is deterministic.
	names := make([]string, 0, len(pub.Registers))
	for name := range pub.Registers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if counts, err := pub.Registers[name].GetCounts(); err == nil {
			log.Printf("normalize: recovered counts from undeclared register %q", name)
			return counts, map[string]any{"register": name}
		}
	}
	return nil, nil
}

// fromProbabilities converts a per-index probability vector into a mapping
// keyed by the zero-padded binary rendering of the index.
func fromProbabilities(raw *RawResult, _ []string) (map[string]float64, map[string]any) {
	if len(raw.Probabilities) == 0 {
		return nil, nil
	}
	width := raw.QubitCount
	counts := make(map[string]float64, len(raw.Probabilities))
	for i, p := range raw.Probabilities {
		counts[qasm.BitString(i, width)] = p
	}
	return counts, map[string]any{"result_type": "probabilities"}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
