// Package camctl implements the orbit camera controller: pointer drags
// rotate or pan around a target, the wheel zooms, and all input is
// accumulated between frames and applied once by Update.
package camctl

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
)

// PolarEpsilon keeps the camera off the poles of its orbit sphere.
const PolarEpsilon = 0.01

// Hard limits on the camera-to-target distance. They keep the spherical
// form well defined however long the wheel is held.
const (
	MinZoomRadius = 1e-6
	MaxZoomRadius = 1e9
)

const (
	DefaultRotateSpeed = 1.0
	DefaultZoomSpeed   = 1.2
	DefaultPanSpeed    = 1.0
)

// ErrDegenerateCameraStart is returned when the camera starts at its target.
var ErrDegenerateCameraStart = errors.New("camera position equals target")

// Mode is the current drag mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRotating
	ModePanning
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRotating:
		return "rotating"
	case ModePanning:
		return "panning"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Config describes the starting pose and tuning of a Controller.
type Config struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3

	// Zero speeds take the defaults.
	RotateSpeed float64
	ZoomSpeed   float64
	PanSpeed    float64

	Width  int
	Height int

	// Distance clamps applied after zoom. Zero disables a bound.
	MinRadius float64
	MaxRadius float64

	Logger logging.Logger
}

// Controller is the orbit camera state machine. It is not safe for
// concurrent use; feed it from other goroutines through a Queue.
type Controller struct {
	position mgl64.Vec3
	target   mgl64.Vec3

	rotateSpeed float64
	zoomSpeed   float64
	panSpeed    float64
	minRadius   float64
	maxRadius   float64

	width  int
	height int

	mode   Mode
	anchor mgl64.Vec2

	deltaAzimuth float64
	deltaPolar   float64
	pan          mgl64.Vec3
	scale        float64

	log logging.Logger
}

// New validates cfg and returns a controller in ModeIdle.
func New(cfg Config) (*Controller, error) {
	if cfg.Position.ApproxEqual(cfg.Target) {
		return nil, fmt.Errorf("camctl.New: %w: %v", ErrDegenerateCameraStart, cfg.Position)
	}
	c := &Controller{
		position:    cfg.Position,
		target:      cfg.Target,
		rotateSpeed: orDefault(cfg.RotateSpeed, DefaultRotateSpeed),
		zoomSpeed:   orDefault(cfg.ZoomSpeed, DefaultZoomSpeed),
		panSpeed:    orDefault(cfg.PanSpeed, DefaultPanSpeed),
		minRadius:   cfg.MinRadius,
		maxRadius:   cfg.MaxRadius,
		width:       cfg.Width,
		height:      cfg.Height,
		scale:       1,
		log:         cfg.Logger,
	}
	if c.log == nil {
		c.log = logging.Noop()
	}
	for name, v := range map[string]float64{
		"rotate speed": c.rotateSpeed,
		"zoom speed":   c.zoomSpeed,
		"pan speed":    c.panSpeed,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("camctl.New: %s must be positive, got %v", name, v)
		}
	}
	if c.minRadius < 0 || c.maxRadius < 0 || c.minRadius > MaxZoomRadius ||
		(c.maxRadius > 0 && c.minRadius > c.maxRadius) {
		return nil, fmt.Errorf("camctl.New: invalid radius bounds [%v, %v]", c.minRadius, c.maxRadius)
	}
	return c, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// HandleEvent dispatches ev according to its kind and the current mode.
func (c *Controller) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventPointerDown:
		c.PointerDown(ev.Button, ev.X, ev.Y)
	case EventPointerMove:
		c.PointerMove(ev.X, ev.Y)
	case EventPointerUp:
		c.PointerUp()
	case EventWheel:
		c.Wheel(ev.Delta)
	case EventResize:
		c.SetViewport(ev.Width, ev.Height)
	}
}

// PointerDown starts a rotate (primary) or pan (secondary) drag. Other
// buttons, and presses during a drag, are ignored.
func (c *Controller) PointerDown(b Button, x, y float64) {
	if c.mode != ModeIdle {
		return
	}
	switch b {
	case ButtonPrimary:
		c.mode = ModeRotating
	case ButtonSecondary:
		c.mode = ModePanning
	default:
		return
	}
	c.anchor = mgl64.Vec2{x, y}
}

// PointerMove accumulates the drag delta since the last anchor.
func (c *Controller) PointerMove(x, y float64) {
	if c.mode == ModeIdle {
		return
	}
	current := mgl64.Vec2{x, y}
	delta := current.Sub(c.anchor)
	c.anchor = current

	if c.width <= 0 || c.height <= 0 {
		c.log.Debug(context.Background(), "dropping drag delta on degenerate viewport",
			logging.String("mode", c.mode.String()),
			logging.Int("width", c.width),
			logging.Int("height", c.height),
		)
		return
	}
	w, h := float64(c.width), float64(c.height)

	switch c.mode {
	case ModeRotating:
		c.deltaAzimuth -= 2 * math.Pi * delta.X() / w * c.rotateSpeed
		c.deltaPolar -= 2 * math.Pi * delta.Y() / h * c.rotateSpeed
	case ModePanning:
		right, up := c.basis()
		if !finite(right) || !finite(up) {
			c.log.Debug(context.Background(), "dropping pan delta without a camera basis")
			return
		}
		c.pan = c.pan.
			Add(right.Mul(-2 * delta.X() / w * c.panSpeed)).
			Add(up.Mul(2 * delta.Y() / h * c.panSpeed))
	}
}

// PointerUp ends any drag.
func (c *Controller) PointerUp() {
	c.mode = ModeIdle
	c.anchor = mgl64.Vec2{}
}

// Wheel zooms in for negative deltas and out for positive ones. A zero
// delta does nothing.
func (c *Controller) Wheel(delta float64) {
	switch {
	case delta < 0:
		c.scale /= c.zoomSpeed
	case delta > 0:
		c.scale *= c.zoomSpeed
	}
}

// SetViewport records the input surface size used to normalise drags.
func (c *Controller) SetViewport(width, height int) {
	c.width, c.height = width, height
}

// basis returns the camera's right and up vectors: the first two columns
// of its world matrix.
func (c *Controller) basis() (mgl64.Vec3, mgl64.Vec3) {
	world := mgl64.LookAtV(c.position, c.target, core.WorldUp).Inv()
	return world.Col(0).Vec3(), world.Col(1).Vec3()
}

func finite(v mgl64.Vec3) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Update applies everything accumulated since the previous call, resets
// the pending state and returns the new pose.
func (c *Controller) Update() model.CameraPose {
	s := core.SphericalFromVector(c.position.Sub(c.target))

	s.Azimuth += c.deltaAzimuth
	s.Polar += c.deltaPolar
	s = s.ClampPolar(PolarEpsilon)

	s.Radius = c.zoomedRadius(s.Radius)

	c.target = c.target.Add(c.pan)
	c.position = c.target.Add(s.Vector())

	c.deltaAzimuth, c.deltaPolar = 0, 0
	c.pan = mgl64.Vec3{}
	c.scale = 1

	return c.Pose()
}

// zoomedRadius applies the pending zoom scale. The result always lies in
// [MinZoomRadius, MaxZoomRadius] and the configured bounds; a scale that
// would overflow keeps the current radius.
func (c *Controller) zoomedRadius(r float64) float64 {
	lo, hi := MinZoomRadius, MaxZoomRadius
	if c.minRadius > lo {
		lo = c.minRadius
	}
	if c.maxRadius > 0 && c.maxRadius < hi {
		hi = c.maxRadius
	}
	if zoomed := r * c.scale; !math.IsNaN(zoomed) && !math.IsInf(zoomed, 0) {
		r = zoomed
	}
	return mgl64.Clamp(r, lo, hi)
}

// Pose returns the pose as of the last Update.
func (c *Controller) Pose() model.CameraPose {
	return model.CameraPose{Position: c.position, Target: c.target, Up: core.WorldUp}
}

// Spherical returns the camera offset from the target in spherical form.
func (c *Controller) Spherical() core.Spherical {
	return core.SphericalFromVector(c.position.Sub(c.target))
}

func (c *Controller) Mode() Mode { return c.mode }
