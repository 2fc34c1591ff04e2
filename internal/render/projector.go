// Package render holds what every renderer shares: projecting world points
// through the camera pose onto a 2-D surface, and styling the scene graph
// from the engine's catalog.
package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// Lens describes a perspective camera.
type Lens struct {
	FOV  float64 // vertical, degrees
	Near float64
	Far  float64
}

// DefaultLens matches the camera of the classic browser scene.
var DefaultLens = Lens{FOV: 75, Near: 0.1, Far: 1000}

// Viewport is a pixel surface. CellAspect is the height/width ratio of one
// pixel; terminals use about 2.
type Viewport struct {
	Width      int
	Height     int
	CellAspect float64
}

// Point is a projected point in surface coordinates, origin top-left.
type Point struct {
	X, Y  float64
	Depth float64 // NDC z in [-1, 1]
}

// Projector maps world positions to surface coordinates for one pose.
type Projector struct {
	vp  Viewport
	mvp mgl64.Mat4
}

// NewProjector builds a projector. A zero-sized viewport yields a projector
// that reports nothing as visible.
func NewProjector(pose model.CameraPose, lens Lens, vp Viewport) Projector {
	if vp.CellAspect <= 0 {
		vp.CellAspect = 1
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return Projector{vp: vp}
	}
	aspect := float64(vp.Width) / (float64(vp.Height) * vp.CellAspect)
	up := pose.Up
	if up.Len() == 0 {
		up = mgl64.Vec3{0, 1, 0}
	}
	proj := mgl64.Perspective(mgl64.DegToRad(lens.FOV), aspect, lens.Near, lens.Far)
	view := mgl64.LookAtV(pose.Position, pose.Target, up)
	return Projector{vp: vp, mvp: proj.Mul4(view)}
}

// Project returns p's surface position and whether it lies inside the view
// frustum.
func (pr Projector) Project(p mgl64.Vec3) (Point, bool) {
	if pr.vp.Width <= 0 || pr.vp.Height <= 0 {
		return Point{}, false
	}
	clip := pr.mvp.Mul4x1(p.Vec4(1))
	w := clip.W()
	if w <= 0 || math.IsNaN(w) {
		return Point{}, false
	}
	ndc := clip.Vec3().Mul(1 / w)
	if ndc.Z() < -1 || ndc.Z() > 1 {
		return Point{}, false
	}
	pt := Point{
		X:     (ndc.X() + 1) / 2 * float64(pr.vp.Width),
		Y:     (1 - ndc.Y()) / 2 * float64(pr.vp.Height),
		Depth: ndc.Z(),
	}
	inside := pt.X >= 0 && pt.X < float64(pr.vp.Width) && pt.Y >= 0 && pt.Y < float64(pr.vp.Height)
	return pt, inside
}

func (pr Projector) Viewport() Viewport { return pr.vp }
