package core

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/signalsfoundry/orrery/model"
)

// PathCache shares sampled paths between bodies with the same shape. A path
// depends only on (a, e, n), so two bodies on congruent orbits with
// different orientations read the same samples.
type PathCache struct {
	mu      sync.Mutex
	entries map[uint64][]pathEntry

	hits, misses int
}

type pathEntry struct {
	a, e float64
	n    int
	path OrbitPath
}

// NewPathCache constructs an empty cache.
func NewPathCache() *PathCache {
	return &PathCache{entries: make(map[uint64][]pathEntry)}
}

// Get returns the cached path for elems and pointCount, sampling it on first
// use. Errors are not cached.
func (c *PathCache) Get(elems model.OrbitalElementSet, pointCount int) (OrbitPath, error) {
	key := pathKey(elems.SemiMajorAxis, elems.Eccentricity, pointCount)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries[key] {
		if e.a == elems.SemiMajorAxis && e.e == elems.Eccentricity && e.n == pointCount {
			c.hits++
			return e.path, nil
		}
	}

	path, err := SampleOrbit(elems, pointCount)
	if err != nil {
		return OrbitPath{}, err
	}
	c.misses++
	c.entries[key] = append(c.entries[key], pathEntry{
		a:    elems.SemiMajorAxis,
		e:    elems.Eccentricity,
		n:    pointCount,
		path: path,
	})
	return path, nil
}

// Stats returns hit and miss counts.
func (c *PathCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of distinct cached paths.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, bucket := range c.entries {
		n += len(bucket)
	}
	return n
}

func pathKey(a, e float64, n int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(a))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(e))
	binary.LittleEndian.PutUint64(buf[16:], uint64(n))
	return xxhash.Sum64(buf[:])
}
