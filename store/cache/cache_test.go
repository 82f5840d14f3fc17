package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	t.Parallel()
	c := New[string, int](10, time.Minute)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestOverwrite(t *testing.T) {
	t.Parallel()
	c := New[string, string](10, time.Minute)

	c.SetWithDefaultTTL("k", "first")
	c.SetWithDefaultTTL("k", "second")
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "second", v)
	require.Equal(t, 1, c.Len())
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()
	c := New[string, int](10, time.Minute)

	c.Set("short", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("short")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestLRUEviction(t *testing.T) {
	t.Parallel()
	c := New[int, int](3, time.Minute)

	for i := 1; i <= 3; i++ {
		c.Set(i, i, 0)
	}
	// Touch 1 so it is most recently used, then overflow.
	_, ok := c.Get(1)
	require.True(t, ok)
	c.Set(4, 4, 0)

	_, ok = c.Get(2)
	require.False(t, ok, "least recently used entry should be evicted")
	for _, k := range []int{1, 3, 4} {
		_, ok := c.Get(k)
		require.True(t, ok, "key %d should survive", k)
	}
}

func TestRemoveAndPurge(t *testing.T) {
	t.Parallel()
	c := New[string, int](10, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Remove("a")
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Purge()
	require.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	require.False(t, ok)
}
