package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
)

// Scene is the renderable collaborator. The engine only ever hands it plain
// positions and poses.
type Scene interface {
	AddBody(id string, initial mgl64.Vec3) error
	SetBodyPosition(id string, pos mgl64.Vec3) error
	SetCameraPose(pose model.CameraPose)
	Render() error
}

// CameraRig recomputes the camera pose. Update is called exactly once per
// frame.
type CameraRig interface {
	Update() model.CameraPose
}

// FrameRecorder receives per-frame measurements.
type FrameRecorder interface {
	RecordFrame(d time.Duration)
	SetSceneBodies(n int)
	SetCameraDistance(d float64)
}

type bodyState struct {
	body   model.Body
	motion MotionModel
	parent int // index into Engine.bodies, -1 for the focus
	world  mgl64.Vec3
}

// Engine owns every body's motion state and drives one frame at a time:
// advance bodies, update the camera, render.
type Engine struct {
	scene  Scene
	camera CameraRig
	log    logging.Logger

	pointCount    int
	speedConstant float64
	paths         *PathCache
	recorder      FrameRecorder

	bodies        []*bodyState
	index         map[string]int
	frame         int
	tickListeners []func(int)
	debugEvery    rate.Sometimes
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithPointCount sets the number of samples per orbit.
func WithPointCount(n int) EngineOption {
	return func(e *Engine) { e.pointCount = n }
}

// WithSpeedConstant sets k in k/√a³.
func WithSpeedConstant(k float64) EngineOption {
	return func(e *Engine) { e.speedConstant = k }
}

// WithPathCache shares sampled paths with other engines.
func WithPathCache(c *PathCache) EngineOption {
	return func(e *Engine) { e.paths = c }
}

// WithCameraRig attaches the camera controller.
func WithCameraRig(c CameraRig) EngineOption {
	return func(e *Engine) { e.camera = c }
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithFrameRecorder attaches an optional metrics recorder.
func WithFrameRecorder(r FrameRecorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine samples every body in cat, creates its motion state and
// registers it with scene at its starting position.
func NewEngine(ctx context.Context, cat *Catalog, scene Scene, opts ...EngineOption) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("NewEngine: catalog is nil")
	}
	if scene == nil {
		return nil, fmt.Errorf("NewEngine: scene is nil")
	}

	e := &Engine{
		scene:         scene,
		pointCount:    DefaultPointCount,
		speedConstant: DefaultSpeedConstant,
		index:         make(map[string]int),
		debugEvery:    rate.Sometimes{Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.log == nil {
		e.log = logging.Noop()
	}
	if e.paths == nil {
		e.paths = NewPathCache()
	}

	central := &bodyState{
		body:   cat.Central,
		motion: &StaticMotionModel{},
		parent: -1,
	}
	if err := e.addBody(central); err != nil {
		return nil, err
	}

	for _, b := range cat.Bodies {
		path, err := e.paths.Get(b.Elements, e.pointCount)
		if err != nil {
			return nil, fmt.Errorf("NewEngine: body %q: %w", b.ID, err)
		}
		motion, err := NewOrbitalMotionState(path, KeplerAngularSpeed(b.Elements.SemiMajorAxis, e.speedConstant))
		if err != nil {
			return nil, fmt.Errorf("NewEngine: body %q: %w", b.ID, err)
		}

		parent := -1
		if b.ParentID != "" {
			idx, ok := e.index[b.ParentID]
			if !ok {
				return nil, fmt.Errorf("NewEngine: %w: %q (parent of %q)", ErrUnknownParent, b.ParentID, b.ID)
			}
			parent = idx
		}

		if err := e.addBody(&bodyState{body: b, motion: motion, parent: parent}); err != nil {
			return nil, err
		}
	}

	if e.recorder != nil {
		e.recorder.SetSceneBodies(len(e.bodies))
	}
	hits, misses := e.paths.Stats()
	e.log.Info(ctx, "engine ready",
		logging.String("catalog", cat.Name),
		logging.Int("bodies", len(e.bodies)),
		logging.Int("point_count", e.pointCount),
		logging.Int("path_cache_hits", hits),
		logging.Int("path_cache_misses", misses),
	)
	return e, nil
}

func (e *Engine) addBody(s *bodyState) error {
	if _, exists := e.index[s.body.ID]; exists {
		return fmt.Errorf("NewEngine: duplicate body %q", s.body.ID)
	}
	s.world = e.worldPosition(s)
	if err := e.scene.AddBody(s.body.ID, s.world); err != nil {
		return fmt.Errorf("NewEngine: add body %q: %w", s.body.ID, err)
	}
	e.index[s.body.ID] = len(e.bodies)
	e.bodies = append(e.bodies, s)
	return nil
}

// worldPosition orients the body's planar sample and offsets it by its
// parent's position from this frame. Parents precede children in e.bodies,
// so the parent has already moved.
func (e *Engine) worldPosition(s *bodyState) mgl64.Vec3 {
	pos := s.motion.PlanarPosition()
	if !s.body.Central {
		pos = Orient(pos, s.body.Elements)
	}
	if s.parent >= 0 {
		pos = pos.Add(e.bodies[s.parent].world)
	}
	return pos
}

// RegisterTickListener adds a callback invoked after every rendered frame
// with the frame index.
func (e *Engine) RegisterTickListener(fn func(int)) {
	e.tickListeners = append(e.tickListeners, fn)
}

// Tick runs one frame with a delta of one tick.
func (e *Engine) Tick(ctx context.Context) error {
	return e.Step(ctx, 1)
}

// Step runs one frame, advancing every body by deltaTicks.
func (e *Engine) Step(ctx context.Context, deltaTicks float64) error {
	start := time.Now()

	// All bodies advance before any is pushed to the scene.
	for _, s := range e.bodies {
		s.motion.Advance(deltaTicks)
		s.world = e.worldPosition(s)
	}
	for _, s := range e.bodies {
		if err := e.scene.SetBodyPosition(s.body.ID, s.world); err != nil {
			return fmt.Errorf("frame %d: body %q: %w", e.frame, s.body.ID, err)
		}
	}

	if e.camera != nil {
		pose := e.camera.Update()
		e.scene.SetCameraPose(pose)
		if e.recorder != nil {
			e.recorder.SetCameraDistance(pose.Distance())
		}
	}

	if err := e.scene.Render(); err != nil {
		return fmt.Errorf("frame %d: render: %w", e.frame, err)
	}

	if e.recorder != nil {
		e.recorder.RecordFrame(time.Since(start))
	}
	e.debugEvery.Do(func() {
		e.log.Debug(ctx, "frame rendered",
			logging.Int("frame", e.frame),
			logging.Duration("elapsed", time.Since(start)),
		)
	})

	frame := e.frame
	e.frame++
	for _, fn := range e.tickListeners {
		fn(frame)
	}
	return nil
}

// Frame returns the number of frames rendered so far.
func (e *Engine) Frame() int { return e.frame }

// BodyIDs lists bodies in update order (central body first).
func (e *Engine) BodyIDs() []string {
	ids := make([]string, len(e.bodies))
	for i, s := range e.bodies {
		ids[i] = s.body.ID
	}
	return ids
}

// Body returns the body definition for id.
func (e *Engine) Body(id string) (model.Body, bool) {
	idx, ok := e.index[id]
	if !ok {
		return model.Body{}, false
	}
	return e.bodies[idx].body, true
}

// Position returns a body's world position as of the last frame.
func (e *Engine) Position(id string) (mgl64.Vec3, bool) {
	idx, ok := e.index[id]
	if !ok {
		return mgl64.Vec3{}, false
	}
	return e.bodies[idx].world, true
}

// Motion exposes a body's motion model.
func (e *Engine) Motion(id string) (MotionModel, bool) {
	idx, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return e.bodies[idx].motion, true
}

// LocalTrace returns a body's oriented orbit line relative to its parent.
// The central body has none.
func (e *Engine) LocalTrace(id string) ([]mgl64.Vec3, bool) {
	idx, ok := e.index[id]
	if !ok {
		return nil, false
	}
	s := e.bodies[idx]
	m, ok := s.motion.(*OrbitalMotionState)
	if !ok {
		return nil, false
	}
	pts := m.Path().Points()
	for i, p := range pts {
		pts[i] = Orient(p, s.body.Elements)
	}
	return pts, true
}

// OrbitTrace returns a body's full path in world space, offset by its
// parent's current position.
func (e *Engine) OrbitTrace(id string) ([]mgl64.Vec3, bool) {
	pts, ok := e.LocalTrace(id)
	if !ok {
		return nil, false
	}
	if s := e.bodies[e.index[id]]; s.parent >= 0 {
		origin := e.bodies[s.parent].world
		for i := range pts {
			pts[i] = pts[i].Add(origin)
		}
	}
	return pts, true
}
