package fixture

import "fmt"

// Result is the outcome of a search: either Found(value) or NotFound.
// It replaces the original artifact's sentinel encoding (255 meaning
// absent), which is ambiguous for tables that may legitimately contain 255.
// The sentinel survives only at the Entrypoint boundary.
type Result struct {
	value byte
	found bool
}

// Found creates a Result carrying a matched value.
func Found(value byte) Result {
	return Result{value: value, found: true}
}

// NotFound creates an empty Result.
func NotFound() Result {
	return Result{}
}

// Get returns the matched value and whether a match was found.
func (r Result) Get() (byte, bool) {
	return r.value, r.found
}

// GetOrElse returns the matched value, or def when nothing was found.
func (r Result) GetOrElse(def byte) byte {
	if r.found {
		return r.value
	}

	return def
}

// NonEmpty returns true when the Result carries a matched value.
func (r Result) NonEmpty() bool {
	return r.found
}

// Empty returns true when nothing was found.
func (r Result) Empty() bool {
	return !r.found
}

// Uint64 widens the matched value to 64 bits, or returns sentinel when
// nothing was found. This is the encoding the compiled artifact uses on
// its return path.
func (r Result) Uint64(sentinel uint64) uint64 {
	if r.found {
		return uint64(r.value)
	}

	return sentinel
}

// String returns "Found(value)" or "NotFound".
func (r Result) String() string {
	if r.found {
		return fmt.Sprintf("Found(%d)", r.value)
	}

	return "NotFound"
}
