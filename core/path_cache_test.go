package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/orrery/model"
)

func TestPathCache_SharesCongruentOrbits(t *testing.T) {
	c := NewPathCache()

	a := model.OrbitalElementSet{Name: "a", SemiMajorAxis: 1.5, Eccentricity: 0.1, Inclination: 0.2}
	b := model.OrbitalElementSet{Name: "b", SemiMajorAxis: 1.5, Eccentricity: 0.1, AscendingNode: 2}

	pa, err := c.Get(a, 100)
	require.NoError(t, err)
	pb, err := c.Get(b, 100)
	require.NoError(t, err)

	assert.Equal(t, pa.Points(), pb.Points())
	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, c.Len())
}

func TestPathCache_DistinguishesShapeAndDensity(t *testing.T) {
	c := NewPathCache()
	base := model.OrbitalElementSet{SemiMajorAxis: 1}

	_, err := c.Get(base, 100)
	require.NoError(t, err)
	_, err = c.Get(base, 200)
	require.NoError(t, err)
	_, err = c.Get(model.OrbitalElementSet{SemiMajorAxis: 1, Eccentricity: 0.3}, 100)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
}

func TestPathCache_ErrorsAreNotCached(t *testing.T) {
	c := NewPathCache()
	_, err := c.Get(model.OrbitalElementSet{SemiMajorAxis: 1}, 2)
	require.ErrorIs(t, err, ErrInvalidSampleCount)
	assert.Equal(t, 0, c.Len())
}
