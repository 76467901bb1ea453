// Package gdbserver serves the GDB Remote Serial Protocol over TCP or a
// Unix socket, bridging debugger commands onto a Target. Each accepted
// connection becomes an independent session with its own target instance
// and breakpoint table.
package gdbserver

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// NumRegs is the number of general registers the wire format carries
	// (r0..r10), followed by the program counter.
	NumRegs = 11

	regSlots = NumRegs + 1

	// RegisterBlockLen is the size of the 'g'/'G' register block: twelve
	// little-endian 64-bit slots.
	RegisterBlockLen = regSlots * 8
)

// Unix signal numbers used in stop replies.
const (
	SignalInterrupt byte = 2
	SignalTrap      byte = 5
	SignalAbort     byte = 6
	SignalSegv      byte = 11
)

// ErrBadRegisterBlock is returned when a register block has the wrong size.
var ErrBadRegisterBlock = errors.New("bad register block")

// Registers is the target register file as seen by the debugger.
type Registers struct {
	R  [NumRegs]uint64
	PC uint64
}

// Encode packs the registers into the wire layout: r0..r10 then pc, each
// little-endian 64-bit.
func (r Registers) Encode() []byte {
	out := make([]byte, RegisterBlockLen)

	for i, v := range r.R {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}

	binary.LittleEndian.PutUint64(out[NumRegs*8:], r.PC)

	return out
}

// DecodeRegisters unpacks a wire register block.
func DecodeRegisters(data []byte) (Registers, error) {
	if len(data) != RegisterBlockLen {
		return Registers{}, fmt.Errorf("%w: %d bytes, want %d",
			ErrBadRegisterBlock, len(data), RegisterBlockLen)
	}

	var regs Registers

	for i := range regs.R {
		regs.R[i] = binary.LittleEndian.Uint64(data[i*8:])
	}

	regs.PC = binary.LittleEndian.Uint64(data[NumRegs*8:])

	return regs, nil
}

// StopKind classifies why a target paused.
type StopKind int

const (
	// StopStep means the step completed and the target can keep going.
	StopStep StopKind = iota

	// StopHalted means the program finished; Status carries its exit
	// status.
	StopHalted

	// StopFault means the program died; Signal carries the signal number.
	StopFault
)

// Stop describes a paused target.
type Stop struct {
	Kind   StopKind
	PC     uint64
	Status byte
	Signal byte
}

// Target is the debuggee contract. Implementations are driven by a single
// session goroutine at a time and need not be safe for concurrent use.
type Target interface {
	// ReadRegisters returns the current register file.
	ReadRegisters() (Registers, error)

	// WriteRegisters replaces the register file, program counter included.
	WriteRegisters(regs Registers) error

	// ReadMemory fills buf from the target address space starting at addr.
	ReadMemory(addr uint64, buf []byte) error

	// WriteMemory stores data into the target address space at addr.
	WriteMemory(addr uint64, data []byte) error

	// Step executes one unit of work and reports why the target paused.
	// Once halted or faulted, further steps report the same stop.
	Step(ctx context.Context) (Stop, error)

	// Reset returns the target to its initial state.
	Reset()

	// Offsets reports the section bases for the qOffsets query.
	Offsets() (text, data, bss uint64)
}

// TargetFactory builds a fresh Target for each debug session.
type TargetFactory func() Target
