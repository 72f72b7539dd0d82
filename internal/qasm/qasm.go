// Package qasm provides a minimal OpenQASM 2.0 reader and sampler used by the
// local simulator adapters. It covers the common gate set; anything outside it
// is rejected so the caller can surface a clear execution error.
package qasm

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxQubits bounds the statevector size (1<<25 amplitudes).
const MaxQubits = 25

// Register is a declared quantum or classical register.
type Register struct {
	Name string
	Size int
}

// Gate is a single gate application on resolved qubit indices.
type Gate struct {
	Name   string
	Qubits []int
	Params []float64
}

// Measure maps one qubit onto one classical bit.
type Measure struct {
	Qubit int
	Clbit int
}

// Circuit is a parsed OpenQASM 2.0 program.
type Circuit struct {
	QubitCount int
	ClbitCount int
	Qregs      []Register
	Cregs      []Register
	Gates      []Gate
	Measures   []Measure
}

// Parse reads an OpenQASM 2.0 program. Supported statements: version header,
// include, qreg, creg, barrier, measure and the gate set the simulator kernel
// implements.
func Parse(source string) (*Circuit, error) {
	c := &Circuit{}
	qoffsets := map[string]int{}
	coffsets := map[string]int{}

	for _, stmt := range statements(source) {
		switch {
		case strings.HasPrefix(stmt, "OPENQASM"):
			version := strings.TrimSpace(strings.TrimPrefix(stmt, "OPENQASM"))
			if !strings.HasPrefix(version, "2") {
				return nil, fmt.Errorf("unsupported OpenQASM version %q", version)
			}
		case strings.HasPrefix(stmt, "include"):
			// qelib1.inc defines the standard gates; nothing to load.
		case strings.HasPrefix(stmt, "qreg "):
			reg, err := parseRegister(strings.TrimPrefix(stmt, "qreg "))
			if err != nil {
				return nil, err
			}
			qoffsets[reg.Name] = c.QubitCount
			c.Qregs = append(c.Qregs, reg)
			c.QubitCount += reg.Size
			if c.QubitCount > MaxQubits {
				return nil, fmt.Errorf("circuit uses %d qubits, max %d", c.QubitCount, MaxQubits)
			}
		case strings.HasPrefix(stmt, "creg "):
			reg, err := parseRegister(strings.TrimPrefix(stmt, "creg "))
			if err != nil {
				return nil, err
			}
			coffsets[reg.Name] = c.ClbitCount
			c.Cregs = append(c.Cregs, reg)
			c.ClbitCount += reg.Size
		case strings.HasPrefix(stmt, "barrier"):
			// No effect on sampling.
		case strings.HasPrefix(stmt, "measure "):
			if err := c.parseMeasure(strings.TrimPrefix(stmt, "measure "), qoffsets, coffsets); err != nil {
				return nil, err
			}
		default:
			if err := c.parseGate(stmt, qoffsets); err != nil {
				return nil, err
			}
		}
	}

	if c.QubitCount == 0 {
		return nil, fmt.Errorf("circuit declares no quantum register")
	}
	return c, nil
}

// RegisterNames returns the declared classical register names in order. The
// first entry is the register a provider result is most likely keyed by.
func (c *Circuit) RegisterNames() []string {
	names := make([]string, 0, len(c.Cregs))
	for _, r := range c.Cregs {
		names = append(names, r.Name)
	}
	return names
}

func statements(source string) []string {
	var out []string
	for _, line := range strings.Split(source, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				out = append(out, stmt)
			}
		}
	}
	return out
}

func parseRegister(decl string) (Register, error) {
	decl = strings.TrimSpace(decl)
	open := strings.Index(decl, "[")
	close := strings.Index(decl, "]")
	if open <= 0 || close <= open {
		return Register{}, fmt.Errorf("malformed register declaration %q", decl)
	}
	size, err := strconv.Atoi(decl[open+1 : close])
	if err != nil || size <= 0 {
		return Register{}, fmt.Errorf("malformed register size in %q", decl)
	}
	return Register{Name: strings.TrimSpace(decl[:open]), Size: size}, nil
}

// resolveBits resolves an operand like "q[2]" to one index, or "q" to the
// whole register.
func resolveBits(operand string, offsets map[string]int, regs []Register) ([]int, error) {
	operand = strings.TrimSpace(operand)
	name := operand
	index := -1
	if open := strings.Index(operand, "["); open >= 0 {
		close := strings.Index(operand, "]")
		if close <= open {
			return nil, fmt.Errorf("malformed operand %q", operand)
		}
		name = strings.TrimSpace(operand[:open])
		i, err := strconv.Atoi(operand[open+1 : close])
		if err != nil {
			return nil, fmt.Errorf("malformed operand index %q", operand)
		}
		index = i
	}

	base, ok := offsets[name]
	if !ok {
		return nil, fmt.Errorf("unknown register %q", name)
	}
	var size int
	for _, r := range regs {
		if r.Name == name {
			size = r.Size
		}
	}
	if index >= 0 {
		if index >= size {
			return nil, fmt.Errorf("index %d out of range for register %q", index, name)
		}
		return []int{base + index}, nil
	}
	bits := make([]int, size)
	for i := range bits {
		bits[i] = base + i
	}
	return bits, nil
}

func (c *Circuit) parseMeasure(rest string, qoffsets, coffsets map[string]int) error {
	parts := strings.Split(rest, "->")
	if len(parts) != 2 {
		return fmt.Errorf("malformed measure statement %q", rest)
	}
	qubits, err := resolveBits(parts[0], qoffsets, c.Qregs)
	if err != nil {
		return err
	}
	clbits, err := resolveBits(parts[1], coffsets, c.Cregs)
	if err != nil {
		return err
	}
	if len(qubits) != len(clbits) {
		return fmt.Errorf("measure operand size mismatch in %q", rest)
	}
	for i := range qubits {
		c.Measures = append(c.Measures, Measure{Qubit: qubits[i], Clbit: clbits[i]})
	}
	return nil
}

func (c *Circuit) parseGate(stmt string, qoffsets map[string]int) error {
	head := stmt
	var params []float64
	if open := strings.Index(stmt, "("); open >= 0 {
		close := strings.Index(stmt, ")")
		if close <= open {
			return fmt.Errorf("malformed gate statement %q", stmt)
		}
		for _, p := range strings.Split(stmt[open+1:close], ",") {
			v, err := parseAngle(p)
			if err != nil {
				return fmt.Errorf("gate %q: %w", stmt, err)
			}
			params = append(params, v)
		}
		head = stmt[:open] + " " + stmt[close+1:]
	}

	fields := strings.SplitN(strings.TrimSpace(head), " ", 2)
	if len(fields) != 2 {
		return fmt.Errorf("malformed gate statement %q", stmt)
	}
	name := strings.ToLower(strings.TrimSpace(fields[0]))
	arity, ok := gateArity[name]
	if !ok {
		return fmt.Errorf("unsupported gate %q", name)
	}

	operands := strings.Split(fields[1], ",")
	if len(operands) != arity {
		return fmt.Errorf("gate %q expects %d operands, got %d", name, arity, len(operands))
	}

	if arity == 1 {
		// Single-qubit gates broadcast over a whole register.
		qubits, err := resolveBits(operands[0], qoffsets, c.Qregs)
		if err != nil {
			return err
		}
		for _, q := range qubits {
			c.Gates = append(c.Gates, Gate{Name: name, Qubits: []int{q}, Params: params})
		}
		return nil
	}

	qubits := make([]int, 0, arity)
	for _, op := range operands {
		bits, err := resolveBits(op, qoffsets, c.Qregs)
		if err != nil {
			return err
		}
		if len(bits) != 1 {
			return fmt.Errorf("gate %q requires indexed operands", name)
		}
		qubits = append(qubits, bits[0])
	}
	c.Gates = append(c.Gates, Gate{Name: name, Qubits: qubits, Params: params})
	return nil
}

var gateArity = map[string]int{
	"id": 1, "x": 1, "y": 1, "z": 1, "h": 1,
	"s": 1, "sdg": 1, "t": 1, "tdg": 1,
	"rx": 1, "ry": 1, "rz": 1, "u1": 1, "p": 1,
	"cx": 2, "cz": 2, "swap": 2,
}

// parseAngle evaluates the angle grammar qelib headers use: a decimal number,
// "pi", or products/quotients of the two ("2*pi", "pi/4", "-pi/2").
func parseAngle(expr string) (float64, error) {
	expr = strings.ReplaceAll(strings.TrimSpace(expr), " ", "")
	if expr == "" {
		return 0, fmt.Errorf("empty angle expression")
	}
	sign := 1.0
	if strings.HasPrefix(expr, "-") {
		sign = -1.0
		expr = expr[1:]
	}

	num := expr
	den := ""
	if i := strings.Index(expr, "/"); i >= 0 {
		num, den = expr[:i], expr[i+1:]
	}

	value, err := parseTerm(num)
	if err != nil {
		return 0, err
	}
	if den != "" {
		d, err := parseTerm(den)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("division by zero in angle %q", expr)
		}
		value /= d
	}
	return sign * value, nil
}

func parseTerm(term string) (float64, error) {
	value := 1.0
	for _, factor := range strings.Split(term, "*") {
		switch {
		case factor == "pi":
			value *= pi
		default:
			f, err := strconv.ParseFloat(factor, 64)
			if err != nil {
				return 0, fmt.Errorf("malformed angle term %q", term)
			}
			value *= f
		}
	}
	return value, nil
}
