package bitkey_test

import (
	"testing"

	"github.com/olapio/starcache/bitkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	k := bitkey.Make(130)
	assert.True(t, k.IsEmpty())
	k = k.Set(0).Set(63).Set(64).Set(129)
	for _, pos := range []int{0, 63, 64, 129} {
		assert.True(t, k.Get(pos), "bit %d", pos)
	}
	assert.False(t, k.Get(1))
	assert.False(t, k.IsEmpty())
	assert.Equal(t, "{0, 63, 64, 129}", k.String())

	cleared := k.Clear(64)
	assert.False(t, cleared.Get(64))
	// Clear copies; the original is untouched.
	assert.True(t, k.Get(64))
}

func TestUnionIntersectSuperset(t *testing.T) {
	a := bitkey.Make(8).Set(1).Set(3)
	b := bitkey.Make(8).Set(3).Set(5)
	u := a.Union(b)
	assert.True(t, u.Get(1) && u.Get(3) && u.Get(5))
	i := a.Intersect(b)
	assert.True(t, i.Get(3))
	assert.False(t, i.Get(1) || i.Get(5))
	assert.True(t, u.IsSuperset(a))
	assert.True(t, u.IsSuperset(b))
	assert.False(t, a.IsSuperset(b))
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(bitkey.Make(8).Set(0)))
}

func TestEqualHashAcrossWidths(t *testing.T) {
	a := bitkey.Make(10).Set(2)
	b := bitkey.Make(200).Set(2)
	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())
	c := b.Set(150)
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash(), c.Hash())
}
