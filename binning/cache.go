package binning

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
)

// DefaultCacheSize is the number of partitions a Cache keeps.
const DefaultCacheSize = 4

// Key identifies the partition of a geometry and shape.
func Key(geo geometry.Geometry, s frame.Shape) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], geo.Fingerprint())
	binary.LittleEndian.PutUint64(buf[8:], uint64(s.Rows))
	binary.LittleEndian.PutUint64(buf[16:], uint64(s.Cols))
	return xxhash.Sum64(buf[:])
}

// Cache memoizes partitions by Key, evicting the oldest entry when full.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*Partition
	order    []uint64
	builds   int
}

// NewCache returns a cache holding up to capacity partitions.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{capacity: capacity, entries: make(map[uint64]*Partition)}
}

// Get returns the cached partition for geo and s, building it on a miss.
// hit reports whether the partition came from the cache.
func (c *Cache) Get(geo geometry.Geometry, s frame.Shape) (p *Partition, hit bool, err error) {
	key := Key(geo, s)

	c.mu.Lock()
	if p, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return p, true, nil
	}
	c.mu.Unlock()

	p, err = FromGeometry(geo, s)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.builds++
	if _, ok := c.entries[key]; !ok {
		if len(c.order) == c.capacity {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = p
	return p, false, nil
}

// Builds returns how many partitions were built.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

// Len returns the number of cached partitions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
