package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resp(body string) *Response {
	return &Response{Status: 200, ContentType: "application/json", Body: []byte(body)}
}

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", resp("1"))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(got.Body))

	c.Set("a", resp("2"))
	got, _ = c.Get("a")
	assert.Equal(t, "2", string(got.Body))
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2, time.Minute)
	c.Set("a", resp("a"))
	c.Set("b", resp("b"))

	// Touch a so b becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", resp("c"))
	assert.Equal(t, 2, c.Size())

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache(10, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", resp("a"))
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entry removed on Get")
}

func TestLRUCache_Invalidate(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	c.Set("a", resp("a"))
	c.Set("b", resp("b"))

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.InvalidateAll()
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_SetIfGeneration(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	gen := c.Generation()
	assert.True(t, c.SetIfGeneration("a", resp("a"), gen))

	stale := c.Generation()
	c.InvalidateAll()
	assert.False(t, c.SetIfGeneration("b", resp("b"), stale))
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestLRUCache_Defaults(t *testing.T) {
	c := NewLRUCache(0, 0)
	assert.Equal(t, 1, c.maxSize)
	assert.Equal(t, 30*time.Second, c.ttl)
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache(50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (n*200+j)%80)
				c.Set(key, resp(key))
				c.Get(key)
				if j%50 == 0 {
					c.InvalidateAll()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}
