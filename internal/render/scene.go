package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/kb"
)

// StyleScene copies names, colours, radii and parent-relative orbit lines
// from the engine's bodies into the scene graph. Call it once after
// NewEngine.
func StyleScene(g *kb.SceneGraph, e *core.Engine) error {
	for _, id := range e.BodyIDs() {
		b, _ := e.Body(id)
		trace, _ := e.LocalTrace(id)
		style := kb.Style{
			Name:     b.Elements.Name,
			Color:    b.Elements.Color,
			Radius:   b.Elements.DisplayRadius,
			Central:  b.Central,
			ParentID: b.ParentID,
			Trace:    trace,
		}
		if style.Name == "" {
			style.Name = id
		}
		if err := g.SetStyle(id, style); err != nil {
			return fmt.Errorf("style %q: %w", id, err)
		}
	}
	return nil
}

// WorldTrace offsets a body's orbit line by its parent's position in snap.
func WorldTrace(snap kb.Snapshot, b kb.BodyState) []mgl64.Vec3 {
	if len(b.Style.Trace) == 0 {
		return nil
	}
	var origin mgl64.Vec3
	if b.Style.ParentID != "" {
		if parent, ok := snap.Body(b.Style.ParentID); ok {
			origin = parent.Position
		}
	}
	out := make([]mgl64.Vec3, len(b.Style.Trace))
	for i, p := range b.Style.Trace {
		out[i] = p.Add(origin)
	}
	return out
}
