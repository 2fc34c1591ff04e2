package term

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/orrery/camctl"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

type stubEngine struct {
	ticks int
	err   error
}

func (s *stubEngine) Tick(context.Context) error {
	s.ticks++
	return s.err
}

func newTestModel(t *testing.T, eng *stubEngine) (Model, *camctl.Queue, *kb.SceneGraph, *timectrl.FrameClock) {
	t.Helper()
	g := kb.NewSceneGraph()
	q := camctl.NewQueue()
	clock := timectrl.NewFrameClock(time.Time{}, time.Millisecond)
	m, err := New(context.Background(), Config{Clock: clock, Engine: eng, Scene: g, Input: q})
	require.NoError(t, err)
	return m, q, g, clock
}

func TestTranslateMouse(t *testing.T) {
	cases := []struct {
		name string
		msg  tea.MouseMsg
		want camctl.Event
	}{
		{"left press", tea.MouseMsg{X: 3, Y: 4, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
			camctl.Event{Kind: camctl.EventPointerDown, Button: camctl.ButtonPrimary, X: 3, Y: 4}},
		{"right press", tea.MouseMsg{X: 1, Y: 2, Action: tea.MouseActionPress, Button: tea.MouseButtonRight},
			camctl.Event{Kind: camctl.EventPointerDown, Button: camctl.ButtonSecondary, X: 1, Y: 2}},
		{"motion", tea.MouseMsg{X: 5, Y: 6, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
			camctl.Event{Kind: camctl.EventPointerMove, X: 5, Y: 6}},
		{"release", tea.MouseMsg{X: 5, Y: 6, Action: tea.MouseActionRelease},
			camctl.Event{Kind: camctl.EventPointerUp, X: 5, Y: 6}},
		{"wheel up", tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp},
			camctl.Event{Kind: camctl.EventWheel, Delta: -1}},
		{"wheel down", tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown},
			camctl.Event{Kind: camctl.EventWheel, Delta: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := translateMouse(tc.msg)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := translateMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonBackward})
	assert.False(t, ok)
}

func TestUpdateWindowSizeQueuesResize(t *testing.T) {
	m, q, _, _ := newTestModel(t, &stubEngine{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 25})
	m = next.(Model)

	assert.Equal(t, 80, m.width)
	assert.Equal(t, 24, m.height)
	assert.Equal(t, 1, q.Len())

	c, err := camctl.New(camctl.Config{Position: mgl64.Vec3{0, 0, 10}})
	require.NoError(t, err)
	q.Drain(c)
	// The resized controller now accepts drags.
	c.PointerDown(camctl.ButtonPrimary, 0, 0)
	c.PointerMove(20, 0)
	assert.NotEqual(t, 0.0, c.Update().Position.X())
}

func TestUpdateFrameStepsClockAndEngine(t *testing.T) {
	eng := &stubEngine{}
	m, _, _, clock := newTestModel(t, eng)

	next, cmd := m.Update(frameMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Equal(t, 1, eng.ticks)
	assert.Equal(t, 1, clock.Frames())
	assert.NoError(t, next.(Model).Err())
}

func TestUpdateFrameErrorQuits(t *testing.T) {
	eng := &stubEngine{err: errors.New("boom")}
	m, _, _, _ := newTestModel(t, eng)

	next, cmd := m.Update(frameMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.EqualError(t, next.(Model).Err(), "boom")
}

func TestUpdateKeys(t *testing.T) {
	m, q, _, _ := newTestModel(t, &stubEngine{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, q.Len())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewDrawsBodiesAndTraces(t *testing.T) {
	m, _, g, _ := newTestModel(t, &stubEngine{})
	require.NoError(t, g.AddBody("sun", mgl64.Vec3{}))
	require.NoError(t, g.AddBody("planet", mgl64.Vec3{1, 0, 0}))
	require.NoError(t, g.SetStyle("sun", kb.Style{Name: "Sun", Central: true, Color: 0xffff00}))
	require.NoError(t, g.SetStyle("planet", kb.Style{
		Name:  "Planet",
		Color: 0x3366ff,
		Trace: []mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {-1, 0, 0}, {0, -1, 0}},
	}))
	g.SetCameraPose(model.CameraPose{Position: mgl64.Vec3{0, 0, 5}, Up: mgl64.Vec3{0, 1, 0}})
	require.NoError(t, g.Render())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 21})
	view := next.(Model).View()

	assert.Contains(t, view, string(glyphCentral))
	assert.Contains(t, view, string(glyphBody))
	assert.Contains(t, view, string(glyphTrace))
	assert.Contains(t, view, "frame 1")
	assert.Len(t, strings.Split(view, "\n"), 21)
}

func TestViewBeforeResize(t *testing.T) {
	m, _, _, _ := newTestModel(t, &stubEngine{})
	assert.Contains(t, m.View(), "waiting")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
