package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The faithful searcher's observable map over the canonical table with the
// artifact's entry range [0, 26), traced exhaustively:
//
//   - 240 is the only findable value (the first probe is index 26)
//   - 241..255 terminate at the base case and miss
//   - everything below 240 maps the range back onto itself and diverges
func TestSearchFaithfulMap(t *testing.T) {
	t.Parallel()

	table := Canonical()

	for q := 0; q < 256; q++ {
		query := byte(q)

		res, err := Search(table, 0, EntrypointHi, query)

		switch {
		case query == 240:
			require.NoError(t, err, "query %d", q)
			val, ok := res.Get()
			assert.True(t, ok, "query %d", q)
			assert.Equal(t, byte(240), val)
		case query > 240:
			require.NoError(t, err, "query %d", q)
			assert.True(t, res.Empty(), "query %d", q)
		default:
			require.ErrorIs(t, err, ErrDiverged, "query %d", q)
			assert.True(t, res.Empty(), "query %d", q)
		}
	}
}

func TestSearchDivergesForTableValues(t *testing.T) {
	t.Parallel()

	table := Canonical()

	// Every value actually present in the table, except 240, is
	// unreachable under the flawed probe formula.
	for _, v := range table.Values() {
		if v == 240 {
			continue
		}

		_, err := Search(table, 0, EntrypointHi, v)
		require.ErrorIs(t, err, ErrDiverged, "value %d", v)
	}
}

func TestSearchOutOfRange(t *testing.T) {
	t.Parallel()

	table := MustTable([]byte{1, 2, 3})

	// The base case probes table[lo] unconditionally.
	_, err := Search(table, 5, 6, 2)
	require.ErrorIs(t, err, ErrOutOfRange)

	// The recursive case can probe past the end when hi overshoots.
	_, err = Search(table, 0, 10, 2)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestSearchIsPure(t *testing.T) {
	t.Parallel()

	table := Canonical()

	first, err1 := Search(table, 0, EntrypointHi, 240)
	second, err2 := Search(table, 0, EntrypointHi, 240)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestLookupFindsEveryTableValue(t *testing.T) {
	t.Parallel()

	table := Canonical()

	for _, v := range table.Values() {
		res := Lookup(table, v)

		val, ok := res.Get()
		require.True(t, ok, "value %d", v)
		assert.Equal(t, v, val)
	}
}

func TestLookupMisses(t *testing.T) {
	t.Parallel()

	table := Canonical()

	// 5 sits between 3 and 7; 255 is the sentinel value and absent.
	for _, q := range []byte{2, 5, 50, 100, 195, 241, 255} {
		res := Lookup(table, q)
		assert.True(t, res.Empty(), "query %d", q)
	}
}

func TestLookupBounds(t *testing.T) {
	t.Parallel()

	table := Canonical()

	first := Lookup(table, 0)
	assert.Equal(t, byte(0), first.GetOrElse(99))

	// Index 26 is reachable for the corrected searcher.
	last := Lookup(table, 240)
	assert.Equal(t, byte(240), last.GetOrElse(99))

	empty := Lookup(Table{}, 7)
	assert.True(t, empty.Empty())
}

func TestEntrypoint(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		out, err := Entrypoint([]byte{240})
		require.NoError(t, err)
		assert.Equal(t, uint64(240), out)
	})

	t.Run("not found above table max", func(t *testing.T) {
		t.Parallel()

		for _, in := range []byte{241, 250, 255} {
			out, err := Entrypoint([]byte{in})
			require.NoError(t, err, "input %d", in)
			assert.Equal(t, NotFoundSentinel, out, "input %d", in)
		}
	})

	t.Run("diverging query", func(t *testing.T) {
		t.Parallel()

		for _, in := range []byte{0, 5, 7, 37, 210, 239} {
			out, err := Entrypoint([]byte{in})
			require.ErrorIs(t, err, ErrDiverged, "input %d", in)
			assert.Equal(t, NotFoundSentinel, out, "input %d", in)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, err := Entrypoint(nil)
		require.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("only the first byte is read", func(t *testing.T) {
		t.Parallel()

		out, err := Entrypoint([]byte{240, 0, 7})
		require.NoError(t, err)
		assert.Equal(t, uint64(240), out)
	})
}
