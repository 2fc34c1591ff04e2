package core

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/orrery/model"
)

// ISS sample TLE.
const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9993"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257767"
)

func TestElementsFromTLE_ISS(t *testing.T) {
	at := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	elems, err := ElementsFromTLE("ISS", issLine1, issLine2, at)
	require.NoError(t, err)

	assert.Equal(t, "ISS", elems.Name)
	// ~6790 km, i.e. roughly 1.065 Earth radii.
	assert.Greater(t, elems.SemiMajorAxis, 1.04)
	assert.Less(t, elems.SemiMajorAxis, 1.09)
	assert.Less(t, elems.Eccentricity, 0.01)
	assert.InDelta(t, 51.6459*math.Pi/180, elems.Inclination, 0.01)
}

func TestElementsFromStateVector_CircularEquatorial(t *testing.T) {
	const mu = 1.0
	r := mgl64.Vec3{1, 0, 0}
	v := mgl64.Vec3{0, 1, 0}

	elems, err := elementsFromStateVector(r, v, mu)
	require.NoError(t, err)
	assert.InDelta(t, 1, elems.SemiMajorAxis, 1e-9)
	assert.InDelta(t, 0, elems.Eccentricity, 1e-9)
	assert.InDelta(t, 0, elems.Inclination, 1e-9)
}

func TestElementsFromStateVector_Polar(t *testing.T) {
	const mu = 1.0
	r := mgl64.Vec3{0, 1, 0}
	v := mgl64.Vec3{0, 0, 1.1}

	elems, err := elementsFromStateVector(r, v, mu)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, elems.Inclination, 1e-9)
	assert.Greater(t, elems.Eccentricity, 0.0)
	assert.Less(t, elems.Eccentricity, 1.0)
	// Starting at periapsis: r(1+e) equals the specific angular momentum squared.
	assert.InDelta(t, elems.Periapsis(), 1, 1e-9)
}

func TestElementsFromStateVector_Escape(t *testing.T) {
	_, err := elementsFromStateVector(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 2, 0}, 1)
	require.ErrorIs(t, err, model.ErrInvalidOrbitalElements)

	_, err = elementsFromStateVector(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.5, 0, 0}, 1)
	require.ErrorIs(t, err, model.ErrInvalidOrbitalElements)
}

// restamp recomputes the checksum column after a test edits a line.
func restamp(line string) string {
	return line[:tleLineLen-1] + string(tleChecksum(line))
}

func TestElementsFromTLE_MalformedLinesAreErrors(t *testing.T) {
	at := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	cases := map[string][2]string{
		"truncated":          {"1 25544U", "2 25544"},
		"empty":              {"", ""},
		"swapped":            {issLine2, issLine1},
		"bad checksum":       {issLine1[:68] + "0", issLine2},
		"letters in field":   {issLine1, restamp(issLine2[:8] + " 51.6x59" + issLine2[16:])},
		"bad epoch":          {restamp(issLine1[:18] + "2x" + issLine1[20:]), issLine2},
		"bad packed bstar":   {restamp(issLine1[:53] + " 1x270-4" + issLine1[61:]), issLine2},
		"different objects":  {issLine1, restamp(issLine2[:2] + "25545" + issLine2[7:])},
		"eccentricity text":  {issLine1, restamp(issLine2[:26] + "00o1817" + issLine2[33:])},
		"mean motion garble": {issLine1, restamp(issLine2[:52] + "15.49.70953" + issLine2[63:])},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ElementsFromTLE("X", lines[0], lines[1], at)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidOrbitalElements)
		})
	}
}

func TestTLEChecksum(t *testing.T) {
	assert.Equal(t, byte('3'), tleChecksum(issLine1))
	assert.Equal(t, byte('7'), tleChecksum(issLine2))
	require.NoError(t, checkTLE(issLine1+"  ", issLine2+"\r\n"))
}
