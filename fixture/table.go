// Package fixture implements the bounded array searcher used as a debuggee
// program by the rest of the repository. The searcher operates over a small,
// immutable, sorted table of byte values and deliberately preserves the exact
// semantics of the compiled artifact it models, including a non-midpoint
// probe formula. See Search for details; Lookup is the corrected reference.
package fixture

import (
	"errors"
	"fmt"

	"github.com/zeebo/xxh3"
)

var (
	// ErrUnsorted is returned when constructing a Table from values that
	// are not in non-decreasing order.
	ErrUnsorted = errors.New("table values are not sorted")

	// ErrOutOfRange is returned when a search probes an index outside the
	// table. The original artifact would read out of bounds here; a defined
	// error replaces that.
	ErrOutOfRange = errors.New("index out of range")
)

// Table is an immutable, non-decreasing sequence of byte values.
// Duplicates are permitted. The zero Table is empty and usable.
type Table struct {
	values []byte
}

// NewTable builds a Table from the given values. The values are copied, so
// the caller may reuse the slice. Returns ErrUnsorted if the values are not
// in non-decreasing order.
func NewTable(values []byte) (Table, error) {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return Table{}, fmt.Errorf("%w: value %d at index %d follows %d",
				ErrUnsorted, values[i], i, values[i-1])
		}
	}

	owned := make([]byte, len(values))
	copy(owned, values)

	return Table{values: owned}, nil
}

// MustTable is like NewTable but panics on invalid input.
// Intended for fixed literals known to be sorted.
func MustTable(values []byte) Table {
	t, err := NewTable(values)
	if err != nil {
		panic(err)
	}

	return t
}

// Canonical returns the canonical 27-entry fixture table.
func Canonical() Table {
	return MustTable([]byte{
		0, 1, 3, 7, 7, 7, 9, 13, 17, 17, 18, 19, 20, 27,
		31, 34, 37, 37, 37, 42, 49, 194, 200, 201, 210, 210, 240,
	})
}

// Len returns the number of values in the table.
func (t Table) Len() uint64 {
	return uint64(len(t.values))
}

// At returns the value at index i, or ErrOutOfRange.
func (t Table) At(i uint64) (byte, error) {
	if i >= uint64(len(t.values)) {
		return 0, fmt.Errorf("%w: index %d, table length %d", ErrOutOfRange, i, len(t.values))
	}

	return t.values[i], nil
}

// Values returns a copy of the table contents.
func (t Table) Values() []byte {
	out := make([]byte, len(t.values))
	copy(out, t.values)

	return out
}

// Fingerprint returns a stable identity hash of the table contents.
// External harnesses use it to pin the exact fixture revision they were
// built against.
func (t Table) Fingerprint() uint64 {
	return xxh3.Hash(t.values)
}
