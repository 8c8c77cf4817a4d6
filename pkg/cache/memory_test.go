package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGetDelete(t *testing.T) {
	c := New(Options{Enabled: true, TTL: time.Minute})
	defer c.Close()

	c.Set("a", []byte("1"))
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(Options{Enabled: true, TTL: 10 * time.Millisecond})
	defer c.Close()

	c.Set("a", []byte("1"))
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.collect()
	assert.Zero(t, c.Len())
}

func TestDeletePrefix(t *testing.T) {
	c := New(Options{Enabled: true})
	defer c.Close()

	c.Set("schools:list", []byte("x"))
	c.Set("schools:search:a", []byte("y"))
	c.Set("image:1", []byte("z"))

	assert.Equal(t, 2, c.DeletePrefix("schools:"))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("image:1")
	assert.True(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestItemLimits(t *testing.T) {
	c := New(Options{Enabled: true, MaxItemSize: 4})
	defer c.Close()

	c.Set("big", []byte("12345"))
	_, ok := c.Get("big")
	assert.False(t, ok)
}

func TestPruneKeepsWithinCapacity(t *testing.T) {
	c := New(Options{Enabled: true, MaxSizeMB: 1, MaxItemSize: 512 << 10})
	defer c.Close()

	chunk := bytes.Repeat([]byte{1}, 300<<10)
	for _, k := range []string{"a", "b", "c", "d"} {
		c.Set(k, chunk)
	}

	c.RLock()
	defer c.RUnlock()
	assert.LessOrEqual(t, c.totalSize, c.maxSize)
}

func TestDisabledIsPassThrough(t *testing.T) {
	c := New(Options{Enabled: false})
	defer c.Close()

	c.Set("a", []byte("1"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.DeletePrefix(""))
	assert.False(t, c.Enabled())
}
