package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// DefaultSpeedConstant is k in k/√a³. With a in AU, Earth covers its
// 1000-sample path in 100000 frames.
const DefaultSpeedConstant = 0.01

// MotionModel moves a body along its own orbital frame one frame at a time.
type MotionModel interface {
	Advance(deltaTicks float64)
	PlanarPosition() mgl64.Vec3
}

// StaticMotionModel never moves. It is used for the central body.
type StaticMotionModel struct {
	Position mgl64.Vec3
}

// Advance for static motion does nothing.
func (m *StaticMotionModel) Advance(float64) {
	// no-op
}

// PlanarPosition returns the fixed position.
func (m *StaticMotionModel) PlanarPosition() mgl64.Vec3 { return m.Position }

// KeplerAngularSpeed returns k/√a³, the number of path samples a body with
// semi-major axis a covers per tick. Larger orbits are slower, which is
// Kepler's third law at a qualitative level only.
func KeplerAngularSpeed(semiMajorAxis, k float64) float64 {
	return k / math.Sqrt(semiMajorAxis*semiMajorAxis*semiMajorAxis)
}

// OrbitalMotionState is a body's progress cursor along a sampled path.
// The cursor is a real-valued index and always lies in [0, path.Len()).
type OrbitalMotionState struct {
	path         OrbitPath
	cursor       float64
	angularSpeed float64
}

// NewOrbitalMotionState starts a cursor at sample 0.
func NewOrbitalMotionState(path OrbitPath, angularSpeed float64) (*OrbitalMotionState, error) {
	if path.Len() < MinPointCount {
		return nil, fmt.Errorf("%w: path has %d samples", ErrInvalidSampleCount, path.Len())
	}
	if math.IsNaN(angularSpeed) || math.IsInf(angularSpeed, 0) {
		return nil, fmt.Errorf("angular speed %v is not finite", angularSpeed)
	}
	return &OrbitalMotionState{path: path, angularSpeed: angularSpeed}, nil
}

// NewKeplerMotion samples the body's path and derives its speed from the
// semi-major axis.
func NewKeplerMotion(elems model.OrbitalElementSet, pointCount int, k float64) (*OrbitalMotionState, error) {
	path, err := SampleOrbit(elems, pointCount)
	if err != nil {
		return nil, err
	}
	return NewOrbitalMotionState(path, KeplerAngularSpeed(elems.SemiMajorAxis, k))
}

// Advance moves the cursor by angularSpeed·deltaTicks samples. Overflow past
// the end wraps by subtracting the path length, so the fractional remainder
// carries into the next lap.
func (s *OrbitalMotionState) Advance(deltaTicks float64) {
	s.cursor = wrapCursor(s.cursor+s.angularSpeed*deltaTicks, float64(s.path.Len()))
}

func wrapCursor(c, n float64) float64 {
	if c >= 0 && c < n {
		return c
	}
	c = math.Mod(c, n)
	if c < 0 {
		c += n
	}
	// c+n can round up to exactly n for tiny negative c.
	if c >= n {
		c = 0
	}
	return c
}

// PlanarPosition is the nearest sample at or below the cursor.
func (s *OrbitalMotionState) PlanarPosition() mgl64.Vec3 {
	return s.path.At(int(math.Floor(s.cursor)))
}

// Cursor returns the real-valued sample index.
func (s *OrbitalMotionState) Cursor() float64 { return s.cursor }

// SetCursor moves the cursor, wrapping it into range.
func (s *OrbitalMotionState) SetCursor(c float64) {
	s.cursor = wrapCursor(c, float64(s.path.Len()))
}

// AngularSpeed returns samples per tick.
func (s *OrbitalMotionState) AngularSpeed() float64 { return s.angularSpeed }

// Path returns the shared, read-only path.
func (s *OrbitalMotionState) Path() OrbitPath { return s.path }
