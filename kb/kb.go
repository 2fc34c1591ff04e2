// Package kb holds the renderable scene: body positions, display styles and
// the camera pose, published to subscribers once per rendered frame.
package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

var (
	ErrBodyExists   = errors.New("body already exists")
	ErrBodyNotFound = errors.New("body not found")
)

// Style is display metadata for a body. Trace is the orbit line relative to
// the parent's position and must not be modified once set.
type Style struct {
	Name     string
	Color    model.Color
	Radius   float64
	Central  bool
	ParentID string
	Trace    []mgl64.Vec3
}

// BodyState is one body as of the last rendered frame.
type BodyState struct {
	ID       string
	Position mgl64.Vec3
	Style    Style
}

// Snapshot is an immutable copy of the scene taken by Render.
type Snapshot struct {
	Frame  uint64
	Bodies []BodyState
	Camera model.CameraPose
}

// Body looks up a body in the snapshot by ID.
func (s Snapshot) Body(id string) (BodyState, bool) {
	for _, b := range s.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return BodyState{}, false
}

type subscription struct {
	id int
	fn func(Snapshot)
}

// SceneGraph is an in-memory, thread-safe scene. The frame loop writes it;
// renderers on other goroutines read snapshots.
type SceneGraph struct {
	mu sync.RWMutex

	order  []string
	bodies map[string]*BodyState
	camera model.CameraPose
	frame  uint64
	last   Snapshot

	subs   []subscription
	nextID int
}

// NewSceneGraph constructs an empty scene.
func NewSceneGraph() *SceneGraph {
	return &SceneGraph{bodies: make(map[string]*BodyState)}
}

// AddBody registers a body at its initial position.
func (g *SceneGraph) AddBody(id string, initial mgl64.Vec3) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.bodies[id]; exists {
		return fmt.Errorf("%w: %q", ErrBodyExists, id)
	}
	g.bodies[id] = &BodyState{ID: id, Position: initial, Style: Style{Name: id}}
	g.order = append(g.order, id)
	return nil
}

// SetBodyPosition moves an existing body.
func (g *SceneGraph) SetBodyPosition(id string, pos mgl64.Vec3) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	b.Position = pos
	return nil
}

// SetStyle attaches display metadata to an existing body.
func (g *SceneGraph) SetStyle(id string, style Style) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	style.Trace = append([]mgl64.Vec3(nil), style.Trace...)
	b.Style = style
	return nil
}

func (g *SceneGraph) SetCameraPose(pose model.CameraPose) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.camera = pose
}

// Render publishes the current state as a new snapshot.
func (g *SceneGraph) Render() error {
	g.mu.Lock()
	g.frame++
	snap := Snapshot{
		Frame:  g.frame,
		Bodies: make([]BodyState, 0, len(g.order)),
		Camera: g.camera,
	}
	for _, id := range g.order {
		snap.Bodies = append(snap.Bodies, *g.bodies[id])
	}
	g.last = snap
	subs := make([]func(Snapshot), len(g.subs))
	for i, s := range g.subs {
		subs[i] = s.fn
	}
	g.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

// Snapshot returns the most recently rendered snapshot. Before the first
// Render it is empty.
func (g *SceneGraph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

// Len returns the number of registered bodies.
func (g *SceneGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Subscribe registers a callback for rendered frames. It returns an
// unsubscribe function that is safe to call more than once.
func (g *SceneGraph) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.subs = append(g.subs, subscription{id: id, fn: fn})

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, s := range g.subs {
			if s.id == id {
				g.subs = append(g.subs[:i], g.subs[i+1:]...)
				return
			}
		}
	}
}
