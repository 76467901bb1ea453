package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionEmpty(t *testing.T) {
	t.Parallel()

	var c Collection

	assert.False(t, c.HasError())
	assert.Zero(t, c.Len())
	require.NoError(t, c.GetError())
}

func TestCollectionIgnoresNil(t *testing.T) {
	t.Parallel()

	var c Collection

	c.Add(nil)

	assert.False(t, c.HasError())
}

func TestCollectionSingle(t *testing.T) {
	t.Parallel()

	var c Collection

	sentinel := errors.New("boom")
	c.Add(sentinel)

	assert.True(t, c.HasError())

	// A single error comes back unwrapped.
	assert.Same(t, sentinel, c.GetError()) //nolint:testifylint
}

func TestCollectionJoins(t *testing.T) {
	t.Parallel()

	var c Collection

	first := errors.New("first")
	second := errors.New("second")

	c.Add(first)
	c.Add(nil)
	c.Add(second)

	assert.Equal(t, 2, c.Len())

	err := c.GetError()
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
}

func TestCollectionClear(t *testing.T) {
	t.Parallel()

	var c Collection

	c.Add(errors.New("boom"))
	c.Clear()

	assert.False(t, c.HasError())
	require.NoError(t, c.GetError())
}
