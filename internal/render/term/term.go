// Package term draws the scene in a terminal with bubbletea. Mouse drags
// and the wheel drive the camera; each tea tick advances one frame.
package term

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/orrery/camctl"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

// cellAspect is the height/width ratio of a terminal cell.
const cellAspect = 2.0

const (
	glyphTrace   = '·'
	glyphBody    = '●'
	glyphCentral = '☀'
)

// Ticker advances the simulation by one frame.
type Ticker interface {
	Tick(ctx context.Context) error
}

// InputSink accepts camera input. camctl.Queue satisfies it.
type InputSink interface {
	Push(ev camctl.Event) bool
}

// Config wires a Model to the simulation.
type Config struct {
	Clock  *timectrl.FrameClock
	Engine Ticker
	Scene  *kb.SceneGraph
	Input  InputSink
	Lens   render.Lens
	Logger logging.Logger
}

type frameMsg time.Time

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	clock  *timectrl.FrameClock
	engine Ticker
	scene  *kb.SceneGraph
	input  InputSink
	lens   render.Lens
	log    logging.Logger

	width  int
	height int
	err    error
}

// New validates cfg and builds a Model.
func New(ctx context.Context, cfg Config) (Model, error) {
	if cfg.Clock == nil || cfg.Engine == nil || cfg.Scene == nil || cfg.Input == nil {
		return Model{}, fmt.Errorf("term.New: clock, engine, scene and input are required")
	}
	if cfg.Lens == (render.Lens{}) {
		cfg.Lens = render.DefaultLens
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	return Model{
		ctx:    ctx,
		clock:  cfg.Clock,
		engine: cfg.Engine,
		scene:  cfg.Scene,
		input:  cfg.Input,
		lens:   cfg.Lens,
		log:    cfg.Logger,
	}, nil
}

// Err reports the error that stopped the program, if any.
func (m Model) Err() error { return m.err }

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(m.clock.Interval(), func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.nextFrame()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "+", "=":
			m.input.Push(camctl.Event{Kind: camctl.EventWheel, Delta: -1})
		case "-", "_":
			m.input.Push(camctl.Event{Kind: camctl.EventWheel, Delta: 1})
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height-1
		m.input.Push(camctl.Event{Kind: camctl.EventResize, Width: m.width, Height: m.height})
	case tea.MouseMsg:
		if ev, ok := translateMouse(msg); ok {
			m.input.Push(ev)
		}
	case frameMsg:
		m.clock.Step()
		if err := m.engine.Tick(m.ctx); err != nil {
			m.err = err
			m.log.Error(m.ctx, "frame failed", logging.Err(err))
			return m, tea.Quit
		}
		return m, m.nextFrame()
	}
	return m, nil
}

// translateMouse maps a terminal mouse event onto controller input. Wheel
// up zooms in, matching a negative browser wheel delta.
func translateMouse(msg tea.MouseMsg) (camctl.Event, bool) {
	x, y := float64(msg.X), float64(msg.Y)
	switch msg.Action {
	case tea.MouseActionMotion:
		return camctl.Event{Kind: camctl.EventPointerMove, X: x, Y: y}, true
	case tea.MouseActionRelease:
		return camctl.Event{Kind: camctl.EventPointerUp, X: x, Y: y}, true
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			return camctl.Event{Kind: camctl.EventWheel, Delta: -1}, true
		case tea.MouseButtonWheelDown:
			return camctl.Event{Kind: camctl.EventWheel, Delta: 1}, true
		case tea.MouseButtonLeft:
			return camctl.Event{Kind: camctl.EventPointerDown, Button: camctl.ButtonPrimary, X: x, Y: y}, true
		case tea.MouseButtonRight:
			return camctl.Event{Kind: camctl.EventPointerDown, Button: camctl.ButtonSecondary, X: x, Y: y}, true
		case tea.MouseButtonMiddle:
			return camctl.Event{Kind: camctl.EventPointerDown, Button: camctl.ButtonMiddle, X: x, Y: y}, true
		}
	}
	return camctl.Event{}, false
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "waiting for terminal size…"
	}
	snap := m.scene.Snapshot()
	grid := rasterize(snap, m.lens, m.width, m.height)

	var b strings.Builder
	for _, row := range grid {
		writeRow(&b, row)
		b.WriteByte('\n')
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf(
		"frame %d  bodies %d  distance %.2f  drag: rotate  right-drag: pan  wheel/+/-: zoom  q: quit",
		snap.Frame, len(snap.Bodies), snap.Camera.Distance(),
	)))
	return b.String()
}

var statusStyle = lipgloss.NewStyle().Faint(true)

type cell struct {
	glyph rune
	color model.Color
	dim   bool
	depth float64
}

// rasterize projects traces, then bodies, into a width×height cell grid.
// Bodies win over traces; nearer bodies win over farther ones.
func rasterize(snap kb.Snapshot, lens render.Lens, width, height int) [][]cell {
	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, width)
	}
	pr := render.NewProjector(snap.Camera, lens, render.Viewport{Width: width, Height: height, CellAspect: cellAspect})

	for _, b := range snap.Bodies {
		for _, p := range render.WorldTrace(snap, b) {
			pt, ok := pr.Project(p)
			if !ok {
				continue
			}
			c := &grid[int(pt.Y)][int(pt.X)]
			if c.glyph == 0 {
				*c = cell{glyph: glyphTrace, color: b.Style.Color, dim: true, depth: pt.Depth}
			}
		}
	}
	for _, b := range snap.Bodies {
		pt, ok := pr.Project(b.Position)
		if !ok {
			continue
		}
		c := &grid[int(pt.Y)][int(pt.X)]
		if c.glyph != 0 && !c.dim && c.depth <= pt.Depth {
			continue
		}
		glyph := glyphBody
		if b.Style.Central {
			glyph = glyphCentral
		}
		*c = cell{glyph: glyph, color: b.Style.Color, depth: pt.Depth}
	}
	return grid
}

// writeRow renders runs of identically styled cells with one style call.
func writeRow(b *strings.Builder, row []cell) {
	for i := 0; i < len(row); {
		j := i + 1
		for j < len(row) && row[j].glyph == row[i].glyph && row[j].color == row[i].color && row[j].dim == row[i].dim {
			j++
		}
		var run strings.Builder
		for k := i; k < j; k++ {
			if row[k].glyph == 0 {
				run.WriteByte(' ')
			} else {
				run.WriteRune(row[k].glyph)
			}
		}
		if row[i].glyph == 0 {
			b.WriteString(run.String())
		} else {
			b.WriteString(styleFor(row[i].color, row[i].dim).Render(run.String()))
		}
		i = j
	}
}

// styleFor returns the foreground style for a body colour. Traces are
// darkened in Lab space so they stay the body's hue.
func styleFor(c model.Color, dim bool) lipgloss.Style {
	r, g, bl := c.RGB()
	col := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(bl) / 255}
	if dim {
		col = col.BlendLab(colorful.Color{}, 0.55).Clamped()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(col.Hex()))
}
