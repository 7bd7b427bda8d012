package sparse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_DefaultValue(t *testing.T) {
	m := NewMap(0, 0, -1)

	assert.Equal(t, -1.0, m.Get("missing"))
	assert.Equal(t, -1.0, m.Remove("missing"))
	assert.Equal(t, -1.0, m.Put("a", 2))
	assert.Equal(t, 2.0, m.Put("a", 3))
	assert.Equal(t, 3.0, m.Get("a"))
	assert.Equal(t, -1.0, m.Default())
}

func TestMap_PutGetRemove(t *testing.T) {
	m := NewMap(4, 0.5, 0)

	for i := range 1000 {
		m.Put(Key(fmt.Sprintf("k%d", i)), float64(i))
	}
	require.Equal(t, 1000, m.Len())
	assert.GreaterOrEqual(t, float64(m.Capacity())*0.5, 1000.0)

	for i := range 1000 {
		k := Key(fmt.Sprintf("k%d", i))
		v, ok := m.Lookup(k)
		require.True(t, ok, "key %s", k)
		assert.Equal(t, float64(i), v)
	}

	for i := 0; i < 1000; i += 2 {
		assert.Equal(t, float64(i), m.Remove(Key(fmt.Sprintf("k%d", i))))
	}
	assert.Equal(t, 500, m.Len())
	assert.False(t, m.Contains("k0"))
	assert.True(t, m.Contains("k1"))
}

func TestMap_TombstonesReused(t *testing.T) {
	m := NewMap(8, 0.75, 0)
	capacity := m.Capacity()

	for i := range 10000 {
		k := Key(fmt.Sprintf("churn%d", i%4))
		m.Put(k, 1)
		m.Remove(k)
	}

	assert.Equal(t, 0, m.Len())
	// Churn on a handful of keys may trigger a cleanup rehash but never
	// unbounded growth.
	assert.LessOrEqual(t, m.Capacity(), capacity*2)
}

func TestMap_ChurnKeepsTableSize(t *testing.T) {
	m := NewMap(8, 0.75, 0)
	capacity := m.Capacity()

	for i := range 100_000 {
		k := Key(fmt.Sprintf("f%d", i))
		m.Put(k, 1)
		m.Remove(k)
	}
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, capacity, m.Capacity(), "tombstones are purged in place")
	assert.Zero(t, m.Rehashes())

	for i := range 1000 {
		m.Put(Key(fmt.Sprintf("live%d", i)), 1)
		m.Put(Key(fmt.Sprintf("gone%d", i)), 1)
		m.Remove(Key(fmt.Sprintf("gone%d", i)))
	}
	assert.Equal(t, 1000, m.Len())
	assert.LessOrEqual(t, m.Capacity(), 4096, "sized by live entries, not by every key ever held")
	for i := range 1000 {
		require.True(t, m.Contains(Key(fmt.Sprintf("live%d", i))))
	}
}

func TestMap_Sweep(t *testing.T) {
	m := NewMap(0, 0, 0)
	for i := range 10 {
		m.Put(Key(fmt.Sprintf("k%d", i)), float64(i))
	}

	m.Sweep(func(_ Key, v float64) (float64, bool) {
		return v * 10, int(v)%2 == 1
	})

	assert.Equal(t, 5, m.Len())
	assert.Equal(t, 30.0, m.Get("k3"))
	assert.False(t, m.Contains("k4"))
}

func TestMap_RangeStops(t *testing.T) {
	m := NewMap(0, 0, 0)
	for i := range 10 {
		m.Put(Key(fmt.Sprintf("k%d", i)), 1)
	}

	seen := 0
	m.Range(func(Key, float64) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}

func TestMap_CopyIsDeep(t *testing.T) {
	m := NewMap(0, 0, 0)
	m.Put("a", 1)

	c := m.Copy()
	c.Put("a", 2)
	c.Put("b", 3)

	assert.Equal(t, 1.0, m.Get("a"))
	assert.False(t, m.Contains("b"))
	assert.Equal(t, 2, c.Len())
}

func TestMap_Clear(t *testing.T) {
	m := NewMap(0, 0, 0)
	m.Put("a", 1)
	m.Put("b", 2)
	capacity := m.Capacity()

	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Contains("a"))
	assert.Equal(t, capacity, m.Capacity())
}

func TestMap_AnyKeys(t *testing.T) {
	m := NewMap(0, 0, 0)

	_, err := m.PutAny("s", 1)
	require.NoError(t, err)
	_, err = m.PutAny([]byte("b"), 2)
	require.NoError(t, err)
	_, err = m.PutAny(Key("k"), 3)
	require.NoError(t, err)

	v, err := m.GetAny([]byte("s"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	ok, err := m.ContainsAny("b")
	require.NoError(t, err)
	assert.True(t, ok)

	prev, err := m.RemoveAny("k")
	require.NoError(t, err)
	assert.Equal(t, 3.0, prev)

	_, err = m.GetAny(42)
	require.ErrorIs(t, err, ErrInvalidKeyType)
	_, err = m.PutAny(1.5, 1)
	require.ErrorIs(t, err, ErrInvalidKeyType)
	_, err = m.ContainsAny(struct{}{})
	require.ErrorIs(t, err, ErrInvalidKeyType)
	_, err = m.RemoveAny(nil)
	require.ErrorIs(t, err, ErrInvalidKeyType)
}

func TestKey_ValueSemantics(t *testing.T) {
	b := []byte("feature")
	k := KeyFromBytes(b)
	b[0] = 'F'

	assert.Equal(t, NewKey("feature"), k)
	assert.Equal(t, "feature", k.String())
	assert.Equal(t, k.hash(), NewKey("feature").hash())

	out := k.Bytes()
	out[0] = 'X'
	assert.Equal(t, "feature", k.String())
}
