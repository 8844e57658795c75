package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, syncWrites bool) *RistrettoCache {
	t.Helper()

	cfg := DefaultRistrettoConfig(100, zap.NewNop())
	cfg.SyncWrites = syncWrites

	c, err := NewRistrettoCache(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c.(*RistrettoCache)
}

func TestRistrettoCache(t *testing.T) {
	c := newTestCache(t, true)

	t.Run("set-and-get", func(t *testing.T) {
		require.True(t, c.Set("fv:KX", 55, time.Hour))

		v, ok := c.Get("fv:KX")
		require.True(t, ok, "sync writes should be readable immediately")
		assert.Equal(t, 55, v)
	})

	t.Run("get-missing-key", func(t *testing.T) {
		_, ok := c.Get("nonexistent")
		assert.False(t, ok)
	})

	t.Run("overwrite", func(t *testing.T) {
		c.Set("fv:KY", 40, time.Hour)
		c.Set("fv:KY", 42, time.Hour)

		v, ok := c.Get("fv:KY")
		require.True(t, ok)
		assert.Equal(t, 42, v)
	})

	t.Run("delete", func(t *testing.T) {
		c.Set("delete-me", "x", time.Hour)
		c.Delete("delete-me")

		_, ok := c.Get("delete-me")
		assert.False(t, ok)
	})

	t.Run("ttl-expiration", func(t *testing.T) {
		c.Set("short", "x", 50*time.Millisecond)

		_, ok := c.Get("short")
		require.True(t, ok)

		// Ristretto expires on a 1s bucket cleanup, but Get also checks expiry.
		assert.Eventually(t, func() bool {
			_, ok := c.Get("short")
			return !ok
		}, 3*time.Second, 20*time.Millisecond)
	})
}

func TestRistrettoCache_AsyncWrites(t *testing.T) {
	c := newTestCache(t, false)

	c.Set("k", "v", time.Hour)
	c.Wait()

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestNewRistrettoCache_RequiresLogger(t *testing.T) {
	cfg := DefaultRistrettoConfig(10, nil)
	_, err := NewRistrettoCache(cfg)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "market:KXBTC-26MAR09-T90000", Key("market", "KXBTC-26MAR09-T90000"))
}
