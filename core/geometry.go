package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// WorldUp is the scene's up axis. Orbital planes and camera polar angles are
// both measured against it.
var WorldUp = mgl64.Vec3{0, 1, 0}

// Spherical is a point relative to an origin, as (radius, polar, azimuth).
// Polar is measured from +Y, azimuth around +Y starting at +Z.
type Spherical struct {
	Radius  float64
	Polar   float64
	Azimuth float64
}

// SphericalFromVector converts a Cartesian offset into spherical form.
// The zero vector maps to the zero Spherical.
func SphericalFromVector(v mgl64.Vec3) Spherical {
	r := v.Len()
	if r == 0 {
		return Spherical{}
	}
	return Spherical{
		Radius:  r,
		Polar:   math.Acos(mgl64.Clamp(v.Y()/r, -1, 1)),
		Azimuth: math.Atan2(v.X(), v.Z()),
	}
}

// Vector converts back to a Cartesian offset.
func (s Spherical) Vector() mgl64.Vec3 {
	sinPolar := math.Sin(s.Polar)
	return mgl64.Vec3{
		s.Radius * sinPolar * math.Sin(s.Azimuth),
		s.Radius * math.Cos(s.Polar),
		s.Radius * sinPolar * math.Cos(s.Azimuth),
	}
}

// ClampPolar keeps the polar angle inside [eps, π-eps].
func (s Spherical) ClampPolar(eps float64) Spherical {
	s.Polar = mgl64.Clamp(s.Polar, eps, math.Pi-eps)
	return s
}

// Orient places a point sampled in the orbital plane into world space:
// argument of periapsis about the plane normal, inclination about the line
// of nodes, then longitude of the ascending node about the world up axis.
func Orient(v mgl64.Vec3, elems model.OrbitalElementSet) mgl64.Vec3 {
	m := mgl64.Rotate3DY(elems.AscendingNode).
		Mul3(mgl64.Rotate3DX(elems.Inclination)).
		Mul3(mgl64.Rotate3DY(elems.ArgumentOfPeriapsis))
	return m.Mul3x1(v)
}
