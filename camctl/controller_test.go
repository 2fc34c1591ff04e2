package camctl

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := New(Config{
		Position: mgl64.Vec3{0, 0, 10},
		Width:    100,
		Height:   100,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func vecNear(a, b mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if !scalar.EqualWithinAbs(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

func TestNewRejectsDegenerateStart(t *testing.T) {
	_, err := New(Config{Position: mgl64.Vec3{1, 2, 3}, Target: mgl64.Vec3{1, 2, 3}})
	if !errors.Is(err, ErrDegenerateCameraStart) {
		t.Fatalf("expected ErrDegenerateCameraStart, got %v", err)
	}
}

func TestNewRejectsNegativeSpeed(t *testing.T) {
	for _, cfg := range []Config{
		{Position: mgl64.Vec3{0, 0, 1}, RotateSpeed: -1},
		{Position: mgl64.Vec3{0, 0, 1}, ZoomSpeed: -1.2},
		{Position: mgl64.Vec3{0, 0, 1}, PanSpeed: math.NaN()},
		{Position: mgl64.Vec3{0, 0, 1}, MinRadius: 5, MaxRadius: 2},
	} {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestModeTransitions(t *testing.T) {
	c := newTestController(t)
	if c.Mode() != ModeIdle {
		t.Fatalf("initial mode = %v", c.Mode())
	}

	c.PointerDown(ButtonMiddle, 0, 0)
	if c.Mode() != ModeIdle {
		t.Fatalf("middle button should be ignored, mode = %v", c.Mode())
	}

	c.PointerDown(ButtonPrimary, 0, 0)
	if c.Mode() != ModeRotating {
		t.Fatalf("primary press: mode = %v, want rotating", c.Mode())
	}
	c.PointerDown(ButtonSecondary, 0, 0)
	if c.Mode() != ModeRotating {
		t.Fatalf("press during drag should be ignored, mode = %v", c.Mode())
	}
	c.Wheel(-1)
	if c.Mode() != ModeRotating {
		t.Fatalf("wheel changed mode to %v", c.Mode())
	}
	c.PointerUp()
	if c.Mode() != ModeIdle {
		t.Fatalf("release: mode = %v, want idle", c.Mode())
	}

	c.PointerDown(ButtonSecondary, 0, 0)
	if c.Mode() != ModePanning {
		t.Fatalf("secondary press: mode = %v, want panning", c.Mode())
	}
}

func TestMoveWhileIdleDoesNothing(t *testing.T) {
	c := newTestController(t)
	before := c.Pose()
	c.PointerMove(50, 50)
	if got := c.Update(); !vecNear(got.Position, before.Position) || !vecNear(got.Target, before.Target) {
		t.Fatalf("idle move changed pose: %+v", got)
	}
}

func TestZeroRotateDragLeavesAnglesUnchanged(t *testing.T) {
	c := newTestController(t)
	before := c.Spherical()

	c.PointerDown(ButtonPrimary, 40, 40)
	c.PointerMove(40, 40)
	c.PointerUp()
	c.Update()

	after := c.Spherical()
	if !scalar.EqualWithinAbs(before.Polar, after.Polar, tol) ||
		!scalar.EqualWithinAbs(before.Azimuth, after.Azimuth, tol) ||
		!scalar.EqualWithinAbs(before.Radius, after.Radius, tol) {
		t.Fatalf("zero drag changed spherical: %+v -> %+v", before, after)
	}
}

func TestRotateDragTurnsAzimuth(t *testing.T) {
	c := newTestController(t)

	// A quarter of the viewport width is a quarter turn.
	c.PointerDown(ButtonPrimary, 0, 50)
	c.PointerMove(25, 50)
	pose := c.Update()

	if !vecNear(pose.Position, mgl64.Vec3{-10, 0, 0}) {
		t.Fatalf("position after quarter turn = %v", pose.Position)
	}
	if !vecNear(pose.Target, mgl64.Vec3{}) {
		t.Fatalf("rotation moved target to %v", pose.Target)
	}
}

func TestPolarClampUnderExtremeInput(t *testing.T) {
	for _, dy := range []float64{-1e6, 1e6} {
		c := newTestController(t)
		c.PointerDown(ButtonPrimary, 0, 0)
		c.PointerMove(0, dy)
		c.Update()

		polar := c.Spherical().Polar
		if polar < PolarEpsilon-tol || polar > math.Pi-PolarEpsilon+tol {
			t.Fatalf("dy=%v: polar %v escaped [ε, π-ε]", dy, polar)
		}
		if !scalar.EqualWithinAbs(c.Spherical().Radius, 10, 1e-6) {
			t.Fatalf("dy=%v: radius drifted to %v", dy, c.Spherical().Radius)
		}
	}
}

func TestZoomIsMultiplicativeAndOrderIndependent(t *testing.T) {
	a := newTestController(t)
	a.Wheel(-3)
	a.Wheel(1)
	a.Wheel(-1)
	a.Update()

	b := newTestController(t)
	b.Wheel(1)
	b.Wheel(-1)
	b.Wheel(-2)
	b.Update()

	want := 10 / DefaultZoomSpeed
	if got := a.Spherical().Radius; !scalar.EqualWithinAbs(got, want, tol) {
		t.Fatalf("radius a = %v, want %v", got, want)
	}
	if !scalar.EqualWithinAbs(a.Spherical().Radius, b.Spherical().Radius, tol) {
		t.Fatalf("order dependent zoom: %v vs %v", a.Spherical().Radius, b.Spherical().Radius)
	}
}

func TestZeroWheelIsNoop(t *testing.T) {
	c := newTestController(t)
	c.Wheel(0)
	c.Update()
	if !scalar.EqualWithinAbs(c.Spherical().Radius, 10, tol) {
		t.Fatalf("zero wheel delta changed radius to %v", c.Spherical().Radius)
	}
}

func TestRadiusBounds(t *testing.T) {
	c, err := New(Config{Position: mgl64.Vec3{0, 0, 10}, MinRadius: 9, MaxRadius: 11})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		c.Wheel(-1)
	}
	c.Update()
	if got := c.Spherical().Radius; !scalar.EqualWithinAbs(got, 9, tol) {
		t.Fatalf("radius = %v, want clamp at 9", got)
	}
	for i := 0; i < 5; i++ {
		c.Wheel(1)
	}
	c.Update()
	if got := c.Spherical().Radius; !scalar.EqualWithinAbs(got, 11, tol) {
		t.Fatalf("radius = %v, want clamp at 11", got)
	}
}

func TestSecondaryDragPansAlongRightAxis(t *testing.T) {
	c := newTestController(t)

	c.PointerDown(ButtonSecondary, 20, 20)
	c.PointerMove(30, 20)
	c.PointerUp()
	pose := c.Update()

	// Camera looks down -Z, so right is +X and up is +Y.
	if !scalar.EqualWithinAbs(pose.Target.X(), -0.2, tol) {
		t.Fatalf("target right component = %v, want -0.2", pose.Target.X())
	}
	if !scalar.EqualWithinAbs(pose.Target.Y(), 0, tol) || !scalar.EqualWithinAbs(pose.Target.Z(), 0, tol) {
		t.Fatalf("pan leaked off the right axis: %v", pose.Target)
	}
	if !vecNear(pose.Position, mgl64.Vec3{-0.2, 0, 10}) {
		t.Fatalf("camera did not follow target: %v", pose.Position)
	}
}

func TestDegenerateViewportDropsDelta(t *testing.T) {
	c, err := New(Config{Position: mgl64.Vec3{0, 0, 10}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.PointerDown(ButtonPrimary, 0, 0)
	c.PointerMove(30, 30)
	c.PointerUp()
	c.PointerDown(ButtonSecondary, 0, 0)
	c.PointerMove(30, 30)
	pose := c.Update()

	for i := 0; i < 3; i++ {
		if math.IsNaN(pose.Position[i]) || math.IsInf(pose.Position[i], 0) {
			t.Fatalf("non-finite position %v", pose.Position)
		}
	}
	if !vecNear(pose.Position, mgl64.Vec3{0, 0, 10}) || !vecNear(pose.Target, mgl64.Vec3{}) {
		t.Fatalf("degenerate viewport moved camera: %+v", pose)
	}

	c.HandleEvent(Event{Kind: EventResize, Width: 100, Height: 100})
	c.PointerMove(40, 30)
	if pose := c.Update(); vecNear(pose.Target, mgl64.Vec3{}) {
		t.Fatalf("pan after resize had no effect")
	}
}

func TestUpdateConsumesPendingStateOnce(t *testing.T) {
	c := newTestController(t)
	c.PointerDown(ButtonPrimary, 0, 0)
	c.PointerMove(10, 5)
	c.Wheel(1)

	first := c.Update()
	second := c.Update()
	if !vecNear(first.Position, second.Position) || !vecNear(first.Target, second.Target) {
		t.Fatalf("second update reapplied input: %+v vs %+v", first, second)
	}
}

func TestHandleEventDispatch(t *testing.T) {
	c := newTestController(t)
	c.HandleEvent(Event{Kind: EventPointerDown, Button: ButtonSecondary, X: 1, Y: 1})
	if c.Mode() != ModePanning {
		t.Fatalf("mode = %v", c.Mode())
	}
	c.HandleEvent(Event{Kind: EventPointerUp})
	c.HandleEvent(Event{Kind: EventWheel, Delta: 1})
	c.Update()
	if got := c.Spherical().Radius; !scalar.EqualWithinAbs(got, 12, tol) {
		t.Fatalf("radius = %v, want 12", got)
	}
}

func TestSustainedZoomKeepsPoseFinite(t *testing.T) {
	c := newTestController(t)
	check := func(stage string) {
		t.Helper()
		pose := c.Pose()
		if !finite(pose.Position) || !finite(pose.Target) {
			t.Fatalf("%s: pose not finite: %+v", stage, pose)
		}
		s := c.Spherical()
		if !(s.Polar > 0 && s.Polar < math.Pi) {
			t.Fatalf("%s: polar %v outside (0, π)", stage, s.Polar)
		}
		if s.Radius < MinZoomRadius*(1-1e-6) || s.Radius > MaxZoomRadius*(1+1e-6) {
			t.Fatalf("%s: radius %v outside hard limits", stage, s.Radius)
		}
	}

	for i := 0; i < 5000; i++ {
		c.Wheel(-1)
		c.Update()
	}
	check("after zooming in")
	if got := c.Spherical().Radius; !scalar.EqualWithinAbs(got, MinZoomRadius, 1e-12) {
		t.Fatalf("radius = %v, want floor %v", got, MinZoomRadius)
	}

	for i := 0; i < 5000; i++ {
		c.Wheel(1)
		c.Update()
	}
	check("after zooming out")

	c.PointerDown(ButtonSecondary, 50, 50)
	c.PointerMove(60, 50)
	c.PointerUp()
	c.Update()
	check("after pan")
}

func TestOneFrameOfExtremeZoom(t *testing.T) {
	c := newTestController(t)
	for i := 0; i < 10000; i++ {
		c.Wheel(-1)
	}
	c.Update()
	if got := c.Spherical().Radius; got < MinZoomRadius*(1-1e-6) {
		t.Fatalf("radius = %v after underflowing scale", got)
	}
	for i := 0; i < 10000; i++ {
		c.Wheel(1)
	}
	c.Update()
	if got := c.Spherical().Radius; math.IsInf(got, 0) || got > MaxZoomRadius*(1+1e-6) {
		t.Fatalf("radius = %v after overflowing scale", got)
	}
}

func TestNewRejectsMinRadiusAboveHardLimit(t *testing.T) {
	if _, err := New(Config{Position: mgl64.Vec3{0, 0, 10}, MinRadius: 2 * MaxZoomRadius}); err == nil {
		t.Fatal("expected error for min radius above the hard limit")
	}
}
