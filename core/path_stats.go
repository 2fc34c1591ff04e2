package core

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PathStats summarises the focal distances along a sampled path.
type PathStats struct {
	Samples      int
	MinRadius    float64
	MaxRadius    float64
	MeanRadius   float64
	StdDevRadius float64
	// Circumference is the length of the closed polyline through the samples.
	Circumference float64
}

// SummarizePath measures a path. An empty path yields the zero value.
func SummarizePath(path OrbitPath) PathStats {
	n := path.Len()
	if n == 0 {
		return PathStats{}
	}

	radii := make([]float64, n)
	var perimeter float64
	for i := range n {
		p := path.At(i)
		radii[i] = p.Len()
		perimeter += path.At((i + 1) % n).Sub(p).Len()
	}

	mean, std := stat.MeanStdDev(radii, nil)
	return PathStats{
		Samples:       n,
		MinRadius:     floats.Min(radii),
		MaxRadius:     floats.Max(radii),
		MeanRadius:    mean,
		StdDevRadius:  std,
		Circumference: perimeter,
	}
}
