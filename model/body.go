package model

import "github.com/go-gl/mathgl/mgl64"

// Body is one renderable object in the scene: either the fixed central body
// or something orbiting along its element set.
type Body struct {
	ID       string
	Elements OrbitalElementSet

	// Central marks the body at the focus. It never moves and its element
	// set only carries rendering hints.
	Central bool

	// ParentID, when set, makes the body orbit the parent's current
	// position rather than the focus (moons).
	ParentID string
}

// CameraPose is the full camera state handed to the renderer each frame.
// The camera always looks at Target.
type CameraPose struct {
	Position mgl64.Vec3 `json:"position"`
	Target   mgl64.Vec3 `json:"target"`
	Up       mgl64.Vec3 `json:"up"`
}

// Distance returns the camera-to-target distance.
func (p CameraPose) Distance() float64 {
	return p.Position.Sub(p.Target).Len()
}
