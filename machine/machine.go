// Package machine implements a minimal virtual machine that executes the
// searcher one probe per step, exposing registers and a flat memory image
// through the gdbserver.Target contract. The table and the input byte
// live in memory, so a debugger that patches them changes what the
// program does.
package machine

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpflab/vmdbg/fixture"
	"github.com/bpflab/vmdbg/gdbserver"
)

// Memory layout. The text section is synthetic (there is no real
// instruction stream) but the program counter walks it at one slot per
// step so breakpoints on text addresses behave as expected.
const (
	// TextBase is where execution starts.
	TextBase uint64 = 0x100

	// Stride is how far the program counter advances per step.
	Stride uint64 = 8

	// TableBase is where the sorted table is loaded.
	TableBase uint64 = 0x1000

	// MemSize is the size of the flat address space.
	MemSize uint64 = 0x2000
)

// Register conventions. The remaining registers are scratch and start at
// zero.
const (
	RegResult = 0 // result value once halted
	RegInput  = 1 // address of the input byte
	RegQuery  = 2 // query byte, loaded on the first step
	RegLo     = 3 // lower range bound, inclusive
	RegHi     = 4 // upper range bound, exclusive
	RegMid    = 5 // most recent probe index
)

// ErrBadAddress is returned for memory accesses outside the image.
var ErrBadAddress = errors.New("machine: address out of range")

// Mode selects which searcher the machine executes.
type Mode int

const (
	// ModeFaithful reproduces the artifact byte for byte: skewed probe
	// formula, range capped at 26, divergence on most queries.
	ModeFaithful Mode = iota

	// ModeCorrected runs the fixed searcher: true midpoint, full range.
	ModeCorrected
)

func (m Mode) String() string {
	switch m {
	case ModeCorrected:
		return "corrected"
	default:
		return "faithful"
	}
}

// ParseMode parses a mode name as it appears in configuration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "faithful", "":
		return ModeFaithful, nil
	case "corrected":
		return ModeCorrected, nil
	default:
		return ModeFaithful, fmt.Errorf("unknown search mode %q", s)
	}
}

type phase int

const (
	phaseFetch phase = iota
	phaseProbe
	phaseDone
)

// Machine is a single-threaded debug target. It is not safe for
// concurrent use; each debug session owns its own instance.
type Machine struct {
	mode     Mode
	table    fixture.Table
	input    byte
	tableLen uint64

	mem   []byte
	regs  gdbserver.Registers
	phase phase
	last  gdbserver.Stop
}

var _ gdbserver.Target = (*Machine)(nil)

// Option configures a Machine.
type Option func(*Machine)

// WithMode selects the searcher variant.
func WithMode(mode Mode) Option {
	return func(m *Machine) {
		m.mode = mode
	}
}

// WithInput sets the query byte the program reads on startup.
func WithInput(input byte) Option {
	return func(m *Machine) {
		m.input = input
	}
}

// WithTable loads a table other than the canonical one.
func WithTable(t fixture.Table) Option {
	return func(m *Machine) {
		m.table = t
	}
}

// New builds a machine in its reset state. By default it runs the
// faithful searcher over the canonical table with input 0.
func New(opts ...Option) *Machine {
	m := &Machine{
		mode:  ModeFaithful,
		table: fixture.Canonical(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.tableLen = m.table.Len()
	m.Reset()

	return m
}

// Factory returns a gdbserver.TargetFactory producing fresh machines
// with the given options.
func Factory(opts ...Option) gdbserver.TargetFactory {
	return func() gdbserver.Target {
		return New(opts...)
	}
}

// inputAddr is where the input byte sits: right after the table.
func (m *Machine) inputAddr() uint64 {
	return TableBase + m.tableLen
}

// Reset rebuilds the memory image and registers to their boot state.
func (m *Machine) Reset() {
	m.mem = make([]byte, MemSize)
	copy(m.mem[TableBase:], m.table.Values())
	m.mem[m.inputAddr()] = m.input

	m.regs = gdbserver.Registers{PC: TextBase}
	m.regs.R[RegInput] = m.inputAddr()

	m.phase = phaseFetch
	m.last = gdbserver.Stop{}
}

func (m *Machine) ReadRegisters() (gdbserver.Registers, error) {
	return m.regs, nil
}

func (m *Machine) WriteRegisters(regs gdbserver.Registers) error {
	m.regs = regs

	return nil
}

func (m *Machine) ReadMemory(addr uint64, buf []byte) error {
	if err := checkRange(addr, uint64(len(buf))); err != nil {
		return err
	}

	copy(buf, m.mem[addr:])

	return nil
}

func (m *Machine) WriteMemory(addr uint64, data []byte) error {
	if err := checkRange(addr, uint64(len(data))); err != nil {
		return err
	}

	copy(m.mem[addr:], data)

	return nil
}

func checkRange(addr, length uint64) error {
	if addr >= MemSize || length > MemSize-addr {
		return fmt.Errorf("%w: [%#x, %#x)", ErrBadAddress, addr, addr+length)
	}

	return nil
}

// Offsets reports the text base and the table base (data and bss share
// it; the image has no separate bss).
func (m *Machine) Offsets() (text, data, bss uint64) {
	return TextBase, TableBase, TableBase
}

// Step executes one unit of work: first the input fetch, then one probe
// of the search per step. Once the machine halts or faults, further
// steps report the same stop.
func (m *Machine) Step(ctx context.Context) (gdbserver.Stop, error) {
	if err := ctx.Err(); err != nil {
		return gdbserver.Stop{}, err
	}

	switch m.phase {
	case phaseDone:
		return m.last, nil
	case phaseFetch:
		return m.fetch(), nil
	default:
		return m.probe(), nil
	}
}

// fetch loads the query byte from memory and initializes the search
// range. The input address comes from the register file so a debugger
// can repoint it before the first step.
func (m *Machine) fetch() gdbserver.Stop {
	addr := m.regs.R[RegInput]
	if addr >= MemSize {
		return m.fault(gdbserver.SignalSegv)
	}

	m.regs.R[RegQuery] = uint64(m.mem[addr])
	m.regs.R[RegLo] = 0

	if m.mode == ModeCorrected {
		m.regs.R[RegHi] = m.tableLen
	} else {
		m.regs.R[RegHi] = fixture.EntrypointHi
	}

	m.phase = phaseProbe

	return m.advance()
}

// probe runs one iteration of the search loop against the live memory
// image and register file.
func (m *Machine) probe() gdbserver.Stop {
	lo := m.regs.R[RegLo]
	hi := m.regs.R[RegHi]
	query := byte(m.regs.R[RegQuery])

	if m.mode == ModeCorrected {
		// Mirrors Lookup: the loop runs while lo < hi, and a miss is an
		// exhausted range, never a probe outside the table.
		if lo >= hi {
			return m.halt(fixture.NotFoundSentinel)
		}
	} else if hi-lo <= 1 {
		v, ok := m.tableAt(lo)
		if !ok {
			return m.fault(gdbserver.SignalSegv)
		}

		if v == query {
			return m.halt(uint64(v))
		}

		return m.halt(fixture.NotFoundSentinel)
	}

	size := hi - lo

	var mid uint64
	if m.mode == ModeCorrected {
		mid = lo + (hi-lo)/2
	} else {
		mid = hi - lo/2
	}

	m.regs.R[RegMid] = mid

	v, ok := m.tableAt(mid)
	if !ok {
		return m.fault(gdbserver.SignalSegv)
	}

	switch {
	case v < query:
		if m.mode == ModeCorrected {
			lo = mid + 1
		} else {
			lo = mid
		}
	case v > query:
		hi = mid
	default:
		return m.halt(uint64(v))
	}

	// The faithful probe formula can leave the range exactly where it
	// was; the original program recurses until the stack runs out. Model
	// that as an abort instead of spinning forever.
	if m.mode == ModeFaithful && hi-lo >= size {
		return m.fault(gdbserver.SignalAbort)
	}

	m.regs.R[RegLo] = lo
	m.regs.R[RegHi] = hi

	return m.advance()
}

// tableAt reads table[i] from the memory image, so patched memory is
// what the program sees.
func (m *Machine) tableAt(i uint64) (byte, bool) {
	if i >= m.tableLen {
		return 0, false
	}

	return m.mem[TableBase+i], true
}

func (m *Machine) advance() gdbserver.Stop {
	m.regs.PC += Stride

	return gdbserver.Stop{Kind: gdbserver.StopStep, PC: m.regs.PC}
}

func (m *Machine) halt(result uint64) gdbserver.Stop {
	m.regs.R[RegResult] = result
	m.phase = phaseDone
	m.last = gdbserver.Stop{
		Kind:   gdbserver.StopHalted,
		PC:     m.regs.PC,
		Status: byte(result),
	}

	return m.last
}

func (m *Machine) fault(signal byte) gdbserver.Stop {
	m.phase = phaseDone
	m.last = gdbserver.Stop{
		Kind:   gdbserver.StopFault,
		PC:     m.regs.PC,
		Signal: signal,
	}

	return m.last
}

// Run steps the machine to completion and returns the final stop. It is
// the non-interactive path used by the CLI's query command.
func (m *Machine) Run(ctx context.Context) (gdbserver.Stop, error) {
	for {
		stop, err := m.Step(ctx)
		if err != nil {
			return gdbserver.Stop{}, err
		}

		if stop.Kind != gdbserver.StopStep {
			return stop, nil
		}
	}
}
