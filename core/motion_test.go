package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/orrery/model"
)

func unitPath(t *testing.T, n int) OrbitPath {
	t.Helper()
	path, err := SampleOrbit(model.OrbitalElementSet{SemiMajorAxis: 1}, n)
	require.NoError(t, err)
	return path
}

func TestStaticMotionModel_NoChange(t *testing.T) {
	m := &StaticMotionModel{Position: mgl64.Vec3{1, 2, 3}}
	for range 10 {
		m.Advance(1)
	}
	if m.PlanarPosition() != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("static motion should not change position, got %v", m.PlanarPosition())
	}
}

func TestKeplerAngularSpeed(t *testing.T) {
	assert.InDelta(t, 0.01, KeplerAngularSpeed(1, 0.01), tol)
	assert.InDelta(t, 0.01/8, KeplerAngularSpeed(4, 0.01), tol)

	inner := KeplerAngularSpeed(0.387, DefaultSpeedConstant)
	outer := KeplerAngularSpeed(30.07, DefaultSpeedConstant)
	if inner <= outer {
		t.Fatalf("inner body should be faster: inner=%v outer=%v", inner, outer)
	}
}

func TestAdvance_ZeroSpeedIsIdempotent(t *testing.T) {
	s, err := NewOrbitalMotionState(unitPath(t, 100), 0)
	require.NoError(t, err)
	s.SetCursor(12.5)
	for range 1000 {
		s.Advance(1)
	}
	require.Equal(t, 12.5, s.Cursor())
}

func TestAdvance_WrapKeepsRemainder(t *testing.T) {
	s, err := NewOrbitalMotionState(unitPath(t, 10), 3)
	require.NoError(t, err)

	s.Advance(1) // 3
	s.Advance(1) // 6
	s.Advance(1) // 9
	s.Advance(1) // 12 -> 2
	require.InDelta(t, 2, s.Cursor(), tol)

	s2, err := NewOrbitalMotionState(unitPath(t, 10), 0.75)
	require.NoError(t, err)
	s2.SetCursor(9.5)
	s2.Advance(1)
	require.InDelta(t, 0.25, s2.Cursor(), tol)
}

func TestAdvance_CursorStaysInRange(t *testing.T) {
	const n = 37
	for _, speed := range []float64{0.013, 1, 3.7, 36.99, 37, 250.5, -4.2} {
		s, err := NewOrbitalMotionState(unitPath(t, n), speed)
		require.NoError(t, err)
		for range 5 * n {
			s.Advance(1)
			c := s.Cursor()
			if c < 0 || c >= n {
				t.Fatalf("speed %v: cursor %v left [0, %d)", speed, c, n)
			}
			_ = s.PlanarPosition()
		}
	}
}

func TestAdvance_LargeDelta(t *testing.T) {
	s, err := NewOrbitalMotionState(unitPath(t, 100), 1)
	require.NoError(t, err)
	s.Advance(1234.5)
	require.InDelta(t, 34.5, s.Cursor(), 1e-9)
}

func TestPlanarPosition_NearestSampleBelow(t *testing.T) {
	path := unitPath(t, 4)
	s, err := NewOrbitalMotionState(path, 0.6)
	require.NoError(t, err)

	s.Advance(1) // 0.6
	require.Equal(t, path.At(0), s.PlanarPosition())
	s.Advance(1) // 1.2
	require.Equal(t, path.At(1), s.PlanarPosition())
}

func TestNewOrbitalMotionState_Validation(t *testing.T) {
	_, err := NewOrbitalMotionState(OrbitPath{}, 1)
	require.ErrorIs(t, err, ErrInvalidSampleCount)

	_, err = NewOrbitalMotionState(unitPath(t, 4), math.NaN())
	require.Error(t, err)
}

func TestNewKeplerMotion(t *testing.T) {
	s, err := NewKeplerMotion(model.OrbitalElementSet{SemiMajorAxis: 4, Eccentricity: 0.1}, 64, 0.08)
	require.NoError(t, err)
	assert.Equal(t, 64, s.Path().Len())
	assert.InDelta(t, 0.01, s.AngularSpeed(), tol)

	_, err = NewKeplerMotion(model.OrbitalElementSet{SemiMajorAxis: 1, Eccentricity: 2}, 64, 0.08)
	require.ErrorIs(t, err, model.ErrInvalidOrbitalElements)
}
