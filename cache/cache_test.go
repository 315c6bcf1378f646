package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func TestTTL(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, err := New[string, int](Config{Size: 2, TTL: time.Minute, Clock: clk.now})
	require.NoError(t, err)

	c.Put("a", 1)
	v, at, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, clk.t, at)

	clk.t = clk.t.Add(59 * time.Second)
	_, _, ok = c.Get("a")
	assert.True(t, ok)

	clk.t = clk.t.Add(time.Second)
	_, _, ok = c.Get("a")
	assert.False(t, ok, "entry expires at ttl")

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestTTLEvictsLeastRecent(t *testing.T) {
	c, err := New[string, int](Config{Size: 2})
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	_, _, _ = c.Get("a")
	c.Put("c", 3)

	_, _, ok := c.Get("b")
	assert.False(t, ok)
	_, _, ok = c.Get("a")
	assert.True(t, ok)
}

func TestPurge(t *testing.T) {
	c, err := New[int, string](Config{})
	require.NoError(t, err)
	c.Put(1, "x")
	c.Purge()
	_, _, ok := c.Get(1)
	assert.False(t, ok)
	hits, misses := c.Stats()
	assert.Zero(t, hits)
	assert.Equal(t, int64(1), misses)
}
