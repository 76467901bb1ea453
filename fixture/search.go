package fixture

import (
	"errors"
	"fmt"
)

const (
	// NotFoundSentinel is the value Entrypoint returns when the query is
	// absent. The canonical table tops out at 240, so the sentinel cannot
	// collide with a real match there.
	NotFoundSentinel uint64 = 255

	// EntrypointHi is the upper range bound the compiled artifact passes to
	// the searcher: 26 for a 27-entry table. The off-by-one is part of the
	// artifact's observable behavior and is kept as-is.
	EntrypointHi uint64 = 26
)

var (
	// ErrDiverged is returned when a probe fails to shrink the search
	// range. The probe formula below is not a true midpoint, and for most
	// queries on the canonical table the range [0,26) maps back onto
	// itself; the original artifact recurses until it exhausts its stack.
	ErrDiverged = errors.New("search range stopped shrinking")

	// ErrEmptyInput is returned by Entrypoint when no input byte is
	// available. The original contract requires at least one byte.
	ErrEmptyInput = errors.New("input must carry at least one byte")
)

// Search runs the searcher over the half-open index range [lo, hi) of the
// table, preserving the artifact's exact semantics:
//
//   - base case: a range of at most one candidate checks table[lo] only
//   - probe index: mid = hi - lo/2, which is NOT a midpoint (the division
//     binds to lo alone); it is kept literally because it changes which
//     queries are findable
//   - table[mid] < query continues in [mid, hi), > continues in [lo, mid)
//
// Two behaviors that are undefined in the artifact become defined errors:
// probing outside the table returns ErrOutOfRange, and a probe that fails
// to strictly shrink the range returns ErrDiverged instead of recursing
// forever.
func Search(t Table, lo, hi uint64, query byte) (Result, error) {
	for {
		if hi-lo <= 1 {
			v, err := t.At(lo)
			if err != nil {
				return NotFound(), err
			}

			if v == query {
				return Found(v), nil
			}

			return NotFound(), nil
		}

		size := hi - lo

		mid := hi - lo/2 // kept exactly as the artifact computes it
		v, err := t.At(mid)
		if err != nil {
			return NotFound(), err
		}

		switch {
		case v < query:
			lo = mid
		case v > query:
			hi = mid
		default:
			return Found(v), nil
		}

		// Unsigned arithmetic: a wrapped range shows up here as a huge
		// size and is rejected along with the non-shrinking case.
		if hi-lo >= size {
			return NotFound(), fmt.Errorf("%w: range [%d,%d) for query %d",
				ErrDiverged, lo, hi, query)
		}
	}
}

// Lookup is the corrected reference searcher: true midpoint, full range,
// total over any sorted table. With duplicates it returns one of the
// matching values (all duplicates are equal bytes, so the distinction is
// unobservable).
func Lookup(t Table, query byte) Result {
	lo, hi := uint64(0), t.Len()

	for lo < hi {
		mid := lo + (hi-lo)/2

		v, err := t.At(mid)
		if err != nil {
			// Unreachable: mid < hi <= Len by construction.
			return NotFound()
		}

		switch {
		case v < query:
			lo = mid + 1
		case v > query:
			hi = mid
		default:
			return Found(v)
		}
	}

	return NotFound()
}

// Entrypoint mirrors the compiled artifact's entry contract: it reads
// exactly one byte from input, searches the canonical table over [0, 26),
// and returns the matched value widened to 64 bits, or NotFoundSentinel.
//
// Queries the artifact cannot answer (it would recurse forever) return
// ErrDiverged; empirically that is every query below 240 — the only
// findable value under the flawed probe formula is 240 itself.
func Entrypoint(input []byte) (uint64, error) {
	if len(input) == 0 {
		return NotFoundSentinel, ErrEmptyInput
	}

	res, err := Search(Canonical(), 0, EntrypointHi, input[0])
	if err != nil {
		return NotFoundSentinel, err
	}

	return res.Uint64(NotFoundSentinel), nil
}
