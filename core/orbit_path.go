package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// DefaultPointCount is the number of samples taken around one revolution
// when a caller has no preference.
const DefaultPointCount = 1000

// MinPointCount is the smallest sample count that still describes a closed
// curve.
const MinPointCount = 3

var (
	ErrInvalidSampleCount = errors.New("invalid sample count")
	ErrUnknownParent      = errors.New("unknown parent body")
)

// OrbitPath is one full revolution sampled at uniform true-anomaly steps.
// Points lie in the orbital plane, which is the X/Z plane with +Y as its
// normal. An OrbitPath is never mutated after SampleOrbit returns it, so it
// can be shared between any number of readers.
type OrbitPath struct {
	points []mgl64.Vec3
}

// Len returns the number of samples.
func (p OrbitPath) Len() int { return len(p.points) }

// At returns sample i. It panics if i is out of range, like a slice index.
func (p OrbitPath) At(i int) mgl64.Vec3 { return p.points[i] }

// Points returns a copy of the samples.
func (p OrbitPath) Points() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(p.points))
	copy(out, p.points)
	return out
}

// SampleOrbit walks the ellipse described by elems in pointCount uniform
// true-anomaly steps. Sample i sits at anomaly 2πi/pointCount and radius
// a(1-e²)/(1+e·cos ν), with the focus at the origin and periapsis on +X.
//
// Steps are uniform in angle, not in time, so bodies appear to move at a
// near-constant angular rate rather than speeding up at periapsis.
func SampleOrbit(elems model.OrbitalElementSet, pointCount int) (OrbitPath, error) {
	if pointCount < MinPointCount {
		return OrbitPath{}, fmt.Errorf("%w: %d (need at least %d)", ErrInvalidSampleCount, pointCount, MinPointCount)
	}
	if err := elems.Validate(); err != nil {
		return OrbitPath{}, err
	}

	a, e := elems.SemiMajorAxis, elems.Eccentricity
	semiLatusRectum := a * (1 - e*e)

	points := make([]mgl64.Vec3, pointCount)
	for i := range points {
		angle := float64(i) / float64(pointCount) * 2 * math.Pi
		r := semiLatusRectum / (1 + e*math.Cos(angle))
		points[i] = mgl64.Vec3{r * math.Cos(angle), 0, r * math.Sin(angle)}
	}
	return OrbitPath{points: points}, nil
}
