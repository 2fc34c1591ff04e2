package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOrbitalElements is returned when an element set cannot describe a
// closed elliptical orbit.
var ErrInvalidOrbitalElements = errors.New("invalid orbital elements")

// OrbitalElementSet is the static description of one body's orbit.
// Angles are in radians; SemiMajorAxis is in scene length units.
type OrbitalElementSet struct {
	Name string

	SemiMajorAxis       float64
	Eccentricity        float64
	Inclination         float64
	AscendingNode       float64
	ArgumentOfPeriapsis float64

	// Rendering hints. The core never interprets these.
	Color         Color
	DisplayRadius float64
}

// Validate reports whether the element set describes a closed orbit
// (0 <= e < 1, a > 0). Out-of-range values are rejected, never clamped.
func (e OrbitalElementSet) Validate() error {
	if math.IsNaN(e.SemiMajorAxis) || math.IsInf(e.SemiMajorAxis, 0) || e.SemiMajorAxis <= 0 {
		return fmt.Errorf("%w: %q semi-major axis %v must be positive", ErrInvalidOrbitalElements, e.Name, e.SemiMajorAxis)
	}
	if math.IsNaN(e.Eccentricity) || e.Eccentricity < 0 || e.Eccentricity >= 1 {
		return fmt.Errorf("%w: %q eccentricity %v outside [0, 1)", ErrInvalidOrbitalElements, e.Name, e.Eccentricity)
	}
	for _, angle := range []float64{e.Inclination, e.AscendingNode, e.ArgumentOfPeriapsis} {
		if math.IsNaN(angle) || math.IsInf(angle, 0) {
			return fmt.Errorf("%w: %q has a non-finite angle", ErrInvalidOrbitalElements, e.Name)
		}
	}
	return nil
}

// Periapsis returns the closest distance to the focus, a(1-e).
func (e OrbitalElementSet) Periapsis() float64 {
	return e.SemiMajorAxis * (1 - e.Eccentricity)
}

// Apoapsis returns the farthest distance from the focus, a(1+e).
func (e OrbitalElementSet) Apoapsis() float64 {
	return e.SemiMajorAxis * (1 + e.Eccentricity)
}
