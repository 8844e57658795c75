package cache

import "time"

// Cache is a TTL key-value cache for market metadata and fair values.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found or expired.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. It returns false if the write was dropped.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Wait blocks until pending writes are visible to Get.
	Wait()

	// Close closes the cache and releases resources.
	Close()
}

// Key joins a namespace and an id into a cache key.
func Key(namespace, id string) string {
	return namespace + ":" + id
}
