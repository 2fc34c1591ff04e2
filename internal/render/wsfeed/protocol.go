package wsfeed

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/camctl"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

// Outbound message types.
const (
	TypeScene = "scene"
	TypeFrame = "frame"
)

// SceneMessage is sent once on connect: static display data for every body.
type SceneMessage struct {
	Type   string      `json:"type"`
	Bodies []SceneBody `json:"bodies"`
}

type SceneBody struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Color   string       `json:"color"`
	Radius  float64      `json:"radius"`
	Central bool         `json:"central,omitempty"`
	Parent  string       `json:"parent,omitempty"`
	Trace   []mgl64.Vec3 `json:"trace,omitempty"`
}

// FrameMessage carries per-frame positions and the camera pose.
type FrameMessage struct {
	Type   string           `json:"type"`
	Frame  uint64           `json:"frame"`
	Bodies []BodyPosition   `json:"bodies"`
	Camera model.CameraPose `json:"camera"`
}

type BodyPosition struct {
	ID       string     `json:"id"`
	Position mgl64.Vec3 `json:"position"`
}

// InputMessage is what clients send. Type is one of pointerdown,
// pointermove, pointerup, wheel or resize; buttons follow the DOM numbering
// (0 primary, 1 middle, 2 secondary).
type InputMessage struct {
	Type   string  `json:"type"`
	Button int     `json:"button,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Delta  float64 `json:"delta,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// Event converts the message into controller input.
func (m InputMessage) Event() (camctl.Event, error) {
	kind, err := camctl.ParseEventKind(m.Type)
	if err != nil {
		return camctl.Event{}, err
	}
	ev := camctl.Event{Kind: kind, X: m.X, Y: m.Y, Delta: m.Delta, Width: m.Width, Height: m.Height}
	if kind == camctl.EventPointerDown {
		switch m.Button {
		case 0:
			ev.Button = camctl.ButtonPrimary
		case 1:
			ev.Button = camctl.ButtonMiddle
		case 2:
			ev.Button = camctl.ButtonSecondary
		default:
			return camctl.Event{}, fmt.Errorf("unsupported button %d", m.Button)
		}
	}
	return ev, nil
}

func sceneMessage(snap kb.Snapshot) SceneMessage {
	msg := SceneMessage{Type: TypeScene, Bodies: make([]SceneBody, 0, len(snap.Bodies))}
	for _, b := range snap.Bodies {
		msg.Bodies = append(msg.Bodies, SceneBody{
			ID:      b.ID,
			Name:    b.Style.Name,
			Color:   b.Style.Color.Hex(),
			Radius:  b.Style.Radius,
			Central: b.Style.Central,
			Parent:  b.Style.ParentID,
			Trace:   b.Style.Trace,
		})
	}
	return msg
}

func frameMessage(snap kb.Snapshot) FrameMessage {
	msg := FrameMessage{
		Type:   TypeFrame,
		Frame:  snap.Frame,
		Bodies: make([]BodyPosition, 0, len(snap.Bodies)),
		Camera: snap.Camera,
	}
	for _, b := range snap.Bodies {
		msg.Bodies = append(msg.Bodies, BodyPosition{ID: b.ID, Position: b.Position})
	}
	return msg
}
