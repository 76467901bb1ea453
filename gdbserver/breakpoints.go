package gdbserver

import "slices"

// fewThreshold is the breakpoint count beyond which the linear list is
// promoted to a map. Debug sessions rarely exceed a handful, so the list
// stays small and cache-friendly in the common case.
const fewThreshold = 30

// Breakpoints tracks software breakpoint addresses with an adaptive
// representation: a plain slice while small, a map once large.
// Not safe for concurrent use; each session owns its own table.
type Breakpoints struct {
	few  []uint64
	many map[uint64]struct{}
}

// Set inserts a breakpoint at addr. Setting an existing address is a
// no-op, matching the debugger's idempotent Z0 semantics.
func (b *Breakpoints) Set(addr uint64) {
	if b.many != nil {
		b.many[addr] = struct{}{}

		return
	}

	if slices.Contains(b.few, addr) {
		return
	}

	if len(b.few) >= fewThreshold {
		b.many = make(map[uint64]struct{}, len(b.few)+1)
		for _, a := range b.few {
			b.many[a] = struct{}{}
		}

		b.many[addr] = struct{}{}
		b.few = nil

		return
	}

	b.few = append(b.few, addr)
}

// Clear removes a breakpoint, reporting whether it existed.
func (b *Breakpoints) Clear(addr uint64) bool {
	if b.many != nil {
		if _, ok := b.many[addr]; !ok {
			return false
		}

		delete(b.many, addr)

		return true
	}

	i := slices.Index(b.few, addr)
	if i < 0 {
		return false
	}

	b.few = slices.Delete(b.few, i, i+1)

	return true
}

// Check reports whether addr carries a breakpoint.
func (b *Breakpoints) Check(addr uint64) bool {
	if b.many != nil {
		_, ok := b.many[addr]

		return ok
	}

	return slices.Contains(b.few, addr)
}

// Len returns the number of set breakpoints.
func (b *Breakpoints) Len() int {
	if b.many != nil {
		return len(b.many)
	}

	return len(b.few)
}
