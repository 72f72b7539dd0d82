package qasm

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
)

const pi = math.Pi

// Probabilities runs the circuit's gate list on a statevector and returns the
// outcome distribution over the full qubit register, indexed by basis state.
// Qubit i occupies bit i of the index, so the binary rendering of an index
// reads q[n-1]...q[0] left to right.
func (c *Circuit) Probabilities() ([]float64, error) {
	state := make([]complex128, 1<<uint(c.QubitCount))
	state[0] = 1

	for _, g := range c.Gates {
		if err := apply(state, g); err != nil {
			return nil, err
		}
	}

	probs := make([]float64, len(state))
	for i, amp := range state {
		probs[i] = real(amp)*real(amp) + imag(amp)*imag(amp)
	}
	return probs, nil
}

// SampleCounts draws shots samples from the circuit's outcome distribution and
// aggregates them under classical-register keys. The returned counts always
// sum to exactly shots.
func (c *Circuit) SampleCounts(shots int, rng *rand.Rand) (map[string]int, error) {
	probs, err := c.Probabilities()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := 0; i < shots; i++ {
		basis := sampleIndex(probs, rng.Float64())
		counts[c.outcomeKey(basis)]++
	}
	return counts, nil
}

// outcomeKey maps a sampled basis state onto the classical-register bitstring:
// clbit j takes the value of the qubit measured into it, c[0] is the rightmost
// character. Circuits without measurements key by the full qubit register.
func (c *Circuit) outcomeKey(basis int) string {
	width := c.ClbitCount
	if len(c.Measures) == 0 || width == 0 {
		return BitString(basis, c.QubitCount)
	}

	bits := make([]byte, width)
	for i := range bits {
		bits[i] = '0'
	}
	for _, m := range c.Measures {
		if basis&(1<<uint(m.Qubit)) != 0 {
			bits[width-1-m.Clbit] = '1'
		}
	}
	return string(bits)
}

// BitString renders a basis index as a zero-padded binary string of the given
// width.
func BitString(index, width int) string {
	if width <= 0 {
		return "0"
	}
	s := make([]byte, width)
	for i := 0; i < width; i++ {
		if index&(1<<uint(width-1-i)) != 0 {
			s[i] = '1'
		} else {
			s[i] = '0'
		}
	}
	return string(s)
}

func sampleIndex(probs []float64, r float64) int {
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(probs) - 1
}

func apply(state []complex128, g Gate) error {
	switch g.Name {
	case "id":
		return nil
	case "x":
		return apply1(state, g.Qubits[0], [4]complex128{0, 1, 1, 0})
	case "y":
		return apply1(state, g.Qubits[0], [4]complex128{0, -1i, 1i, 0})
	case "z":
		return apply1(state, g.Qubits[0], [4]complex128{1, 0, 0, -1})
	case "h":
		inv := complex(1/math.Sqrt2, 0)
		return apply1(state, g.Qubits[0], [4]complex128{inv, inv, inv, -inv})
	case "s":
		return apply1(state, g.Qubits[0], [4]complex128{1, 0, 0, 1i})
	case "sdg":
		return apply1(state, g.Qubits[0], [4]complex128{1, 0, 0, -1i})
	case "t":
		return apply1(state, g.Qubits[0], [4]complex128{1, 0, 0, cmplx.Exp(1i * pi / 4)})
	case "tdg":
		return apply1(state, g.Qubits[0], [4]complex128{1, 0, 0, cmplx.Exp(-1i * pi / 4)})
	case "rx":
		th := g.Params[0] / 2
		c, s := complex(math.Cos(th), 0), complex(0, -math.Sin(th))
		return apply1(state, g.Qubits[0], [4]complex128{c, s, s, c})
	case "ry":
		th := g.Params[0] / 2
		c, s := complex(math.Cos(th), 0), complex(math.Sin(th), 0)
		return apply1(state, g.Qubits[0], [4]complex128{c, -s, s, c})
	case "rz":
		th := g.Params[0] / 2
		return apply1(state, g.Qubits[0], [4]complex128{cmplx.Exp(complex(0, -th)), 0, 0, cmplx.Exp(complex(0, th))})
	case "u1", "p":
		return apply1(state, g.Qubits[0], [4]complex128{1, 0, 0, cmplx.Exp(complex(0, g.Params[0]))})
	case "cx":
		return applyControlled(state, g.Qubits[0], g.Qubits[1], [4]complex128{0, 1, 1, 0})
	case "cz":
		return applyControlled(state, g.Qubits[0], g.Qubits[1], [4]complex128{1, 0, 0, -1})
	case "swap":
		return applySwap(state, g.Qubits[0], g.Qubits[1])
	}
	return fmt.Errorf("unsupported gate %q", g.Name)
}

// apply1 applies a 2x2 matrix {m00,m01,m10,m11} to one qubit.
func apply1(state []complex128, q int, m [4]complex128) error {
	mask := 1 << uint(q)
	for i := range state {
		if i&mask != 0 {
			continue
		}
		j := i | mask
		a, b := state[i], state[j]
		state[i] = m[0]*a + m[1]*b
		state[j] = m[2]*a + m[3]*b
	}
	return nil
}

func applyControlled(state []complex128, control, target int, m [4]complex128) error {
	if control == target {
		return fmt.Errorf("controlled gate with identical control and target qubit %d", control)
	}
	cmask := 1 << uint(control)
	tmask := 1 << uint(target)
	for i := range state {
		if i&cmask == 0 || i&tmask != 0 {
			continue
		}
		j := i | tmask
		a, b := state[i], state[j]
		state[i] = m[0]*a + m[1]*b
		state[j] = m[2]*a + m[3]*b
	}
	return nil
}

func applySwap(state []complex128, a, b int) error {
	if a == b {
		return nil
	}
	amask := 1 << uint(a)
	bmask := 1 << uint(b)
	for i := range state {
		if i&amask != 0 && i&bmask == 0 {
			j := (i &^ amask) | bmask
			state[i], state[j] = state[j], state[i]
		}
	}
	return nil
}
