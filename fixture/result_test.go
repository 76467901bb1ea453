package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultFound(t *testing.T) {
	t.Parallel()

	r := Found(7)
	assert.True(t, r.NonEmpty())
	assert.False(t, r.Empty())

	v, ok := r.Get()
	assert.True(t, ok)
	assert.Equal(t, byte(7), v)

	assert.Equal(t, byte(7), r.GetOrElse(42))
	assert.Equal(t, uint64(7), r.Uint64(NotFoundSentinel))
	assert.Equal(t, "Found(7)", r.String())
}

func TestResultNotFound(t *testing.T) {
	t.Parallel()

	r := NotFound()
	assert.True(t, r.Empty())
	assert.False(t, r.NonEmpty())

	v, ok := r.Get()
	assert.False(t, ok)
	assert.Equal(t, byte(0), v)

	assert.Equal(t, byte(42), r.GetOrElse(42))
	assert.Equal(t, NotFoundSentinel, r.Uint64(NotFoundSentinel))
	assert.Equal(t, "NotFound", r.String())
}

// The sentinel is distinguishable from a legitimate 255 match only through
// the tagged Result, never through the widened encoding.
func TestResultSentinelCollision(t *testing.T) {
	t.Parallel()

	found := Found(255)
	missed := NotFound()

	assert.Equal(t, found.Uint64(NotFoundSentinel), missed.Uint64(NotFoundSentinel))
	assert.NotEqual(t, found, missed)
}
