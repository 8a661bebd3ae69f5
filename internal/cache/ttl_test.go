package cache

import (
	"testing"
	"time"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestKey_RoundsCoordinates(t *testing.T) {
	a := domain.BoundingBox{MinLon: -2.000001, MinLat: 51.5, MaxLon: -1.5, MaxLat: 52.00004}
	b := domain.BoundingBox{MinLon: -2.00003, MinLat: 51.50001, MaxLon: -1.5, MaxLat: 52}

	assert.Equal(t, "-2.0000:51.5000:-1.5000:52.0000:64:48", Key(a, 64, 48))
	assert.Equal(t, Key(a, 64, 48), Key(b, 64, 48))
	assert.NotEqual(t, Key(a, 64, 48), Key(a, 32, 48))
}

func TestTTL_GetSet(t *testing.T) {
	c := NewTTL[int](time.Minute, 0, clockwork.NewFakeClock())

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
}

func TestTTL_ExpiresLazily(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[string](30*time.Minute, 0, clock)

	c.Set("grid", "value")
	clock.Advance(30 * time.Minute)
	_, ok := c.Get("grid")
	assert.True(t, ok, "entry is valid up to its expiry instant")

	clock.Advance(time.Second)
	assert.Equal(t, 1, c.Len(), "expired entry lingers until read")
	_, ok = c.Get("grid")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTL_SetRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTL[int](time.Minute, 0, clock)

	c.Set("a", 1)
	clock.Advance(50 * time.Second)
	c.Set("a", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTL_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewTTL[int](time.Hour, 2, clockwork.NewFakeClock())

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTTL_Defaults(t *testing.T) {
	c := NewTTL[int](0, 0, nil)
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.NotNil(t, c.clock)
}
