package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orrery/model"
)

const (
	// wgs72MuKm3S2 is the WGS72 gravitational parameter that go-satellite's
	// GravityWGS72 constants are built on.
	wgs72MuKm3S2 = 398600.8
	// EarthRadiusKm is the WGS72 equatorial radius. TLE-derived semi-major
	// axes are expressed in multiples of it.
	EarthRadiusKm = 6378.135
)

// ElementsFromTLE propagates a two-line element set with SGP4 to time at and
// converts the resulting ECI state vector into osculating Keplerian elements.
// The semi-major axis is returned in Earth radii.
func ElementsFromTLE(name, line1, line2 string, at time.Time) (model.OrbitalElementSet, error) {
	if err := checkTLE(line1, line2); err != nil {
		return model.OrbitalElementSet{}, fmt.Errorf("%w: %q: %v", model.ErrInvalidOrbitalElements, name, err)
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)

	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	pos, vel := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	r := mgl64.Vec3{pos.X, pos.Y, pos.Z}
	v := mgl64.Vec3{vel.X, vel.Y, vel.Z}
	if r.Len() < EarthRadiusKm/2 || math.IsNaN(r.Len()) || math.IsNaN(v.Len()) {
		return model.OrbitalElementSet{}, fmt.Errorf("%w: %q: SGP4 propagation failed at %s",
			model.ErrInvalidOrbitalElements, name, at.Format(time.RFC3339))
	}

	elems, err := elementsFromStateVector(r, v, wgs72MuKm3S2)
	if err != nil {
		return model.OrbitalElementSet{}, fmt.Errorf("%q: %w", name, err)
	}
	elems.Name = name
	elems.SemiMajorAxis /= EarthRadiusKm
	return elems, elems.Validate()
}

// tleLineLen is the fixed width of a TLE line, checksum included.
const tleLineLen = 69

// tleField is a fixed column range of a TLE line holding a number, with
// the rewrite go-satellite applies before parsing it.
type tleField struct {
	name       string
	line       int
	from, to   int
	integer    bool
	impliedDot bool // "0001817" means 0.0001817
}

var tleFields = []tleField{
	{name: "catalog number", line: 1, from: 2, to: 7, integer: true},
	{name: "epoch year", line: 1, from: 18, to: 20, integer: true},
	{name: "epoch day", line: 1, from: 20, to: 32},
	{name: "mean motion derivative", line: 1, from: 33, to: 43},
	{name: "inclination", line: 2, from: 8, to: 16},
	{name: "ascending node", line: 2, from: 17, to: 25},
	{name: "eccentricity", line: 2, from: 26, to: 33, impliedDot: true},
	{name: "argument of perigee", line: 2, from: 34, to: 42},
	{name: "mean anomaly", line: 2, from: 43, to: 51},
	{name: "mean motion", line: 2, from: 52, to: 63},
}

// checkTLE rejects anything go-satellite's parser cannot read: it slices
// fixed columns and exits the process on malformed numbers.
func checkTLE(line1, line2 string) error {
	lines := [2]string{strings.TrimRight(line1, " \r\n"), strings.TrimRight(line2, " \r\n")}
	for i, l := range lines {
		n := i + 1
		if len(l) < tleLineLen {
			return fmt.Errorf("tle line %d: %d columns, want %d", n, len(l), tleLineLen)
		}
		if l[0] != byte('0'+n) || l[1] != ' ' {
			return fmt.Errorf("tle line %d: must start with %q", n, strconv.Itoa(n)+" ")
		}
		if want, got := tleChecksum(l), l[tleLineLen-1]; got != want {
			return fmt.Errorf("tle line %d: checksum %c, want %c", n, got, want)
		}
	}
	if lines[0][2:7] != lines[1][2:7] {
		return fmt.Errorf("tle lines describe different objects (%s, %s)", lines[0][2:7], lines[1][2:7])
	}

	for _, f := range tleFields {
		raw := strings.ReplaceAll(lines[f.line-1][f.from:f.to], " ", "")
		var err error
		switch {
		case f.integer:
			_, err = strconv.ParseInt(raw, 10, 64)
		case f.impliedDot:
			_, err = strconv.ParseFloat("."+raw, 64)
		default:
			_, err = strconv.ParseFloat(raw, 64)
		}
		if err != nil {
			return fmt.Errorf("tle line %d: %s: %q is not a number", f.line, f.name, raw)
		}
	}
	for _, exp := range [][2]int{{44, 52}, {53, 61}} {
		if err := checkExponentField(lines[0][exp[0]:exp[1]]); err != nil {
			return fmt.Errorf("tle line 1: %w", err)
		}
	}
	return nil
}

// checkExponentField validates the packed "s.dddddsE" form used for the
// second derivative of mean motion and BSTAR, rewritten the way
// go-satellite does before parsing.
func checkExponentField(col string) error {
	raw := strings.ReplaceAll(col[0:1]+"."+col[1:6]+"e"+col[6:8], " ", "")
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("%q is not a packed exponent", col)
	}
	return nil
}

// tleChecksum is the modulo-10 sum of the digits of the first 68 columns,
// counting each minus sign as one.
func tleChecksum(line string) byte {
	sum := 0
	for _, c := range line[:tleLineLen-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return byte('0' + sum%10)
}

// elementsFromStateVector converts an inertial position/velocity pair into
// Keplerian elements. The reference plane is the frame's X/Y plane.
func elementsFromStateVector(r, v mgl64.Vec3, mu float64) (model.OrbitalElementSet, error) {
	const eps = 1e-10

	rMag, vMag := r.Len(), v.Len()
	h := r.Cross(v)
	hMag := h.Len()
	if hMag < eps {
		return model.OrbitalElementSet{}, fmt.Errorf("%w: radial trajectory", model.ErrInvalidOrbitalElements)
	}

	energy := vMag*vMag/2 - mu/rMag
	eVec := r.Mul(vMag*vMag - mu/rMag).Sub(v.Mul(r.Dot(v))).Mul(1 / mu)
	e := eVec.Len()
	if energy >= 0 || e >= 1 {
		return model.OrbitalElementSet{}, fmt.Errorf("%w: open trajectory (e=%.4f)", model.ErrInvalidOrbitalElements, e)
	}

	node := mgl64.Vec3{0, 0, 1}.Cross(h)
	nMag := node.Len()

	elems := model.OrbitalElementSet{
		SemiMajorAxis: -mu / (2 * energy),
		Eccentricity:  e,
		Inclination:   math.Acos(mgl64.Clamp(h.Z()/hMag, -1, 1)),
	}

	if nMag > eps {
		elems.AscendingNode = normalizeAngle(math.Atan2(node.Y(), node.X()))
	}

	switch {
	case e < eps:
		elems.ArgumentOfPeriapsis = 0
	case nMag > eps:
		w := math.Acos(mgl64.Clamp(node.Dot(eVec)/(nMag*e), -1, 1))
		if eVec.Z() < 0 {
			w = 2*math.Pi - w
		}
		elems.ArgumentOfPeriapsis = w
	default:
		// Equatorial: measure periapsis from +X.
		elems.ArgumentOfPeriapsis = normalizeAngle(math.Atan2(eVec.Y(), eVec.X()))
	}
	return elems, nil
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
