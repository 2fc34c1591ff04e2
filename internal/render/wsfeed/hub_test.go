package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/orrery/camctl"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

type clientCounter struct {
	mu sync.Mutex
	n  int
}

func (c *clientCounter) SetFeedClients(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
}

func (c *clientCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestScene(t *testing.T) *kb.SceneGraph {
	t.Helper()
	g := kb.NewSceneGraph()
	require.NoError(t, g.AddBody("sun", mgl64.Vec3{}))
	require.NoError(t, g.AddBody("earth", mgl64.Vec3{1, 0, 0}))
	require.NoError(t, g.SetStyle("sun", kb.Style{Name: "Sun", Central: true, Color: 0xffff00}))
	require.NoError(t, g.SetStyle("earth", kb.Style{
		Name:  "Earth",
		Color: 0x0000ff,
		Trace: []mgl64.Vec3{{1, 0, 0}, {0, 0, 1}, {-1, 0, 0}},
	}))
	g.SetCameraPose(model.CameraPose{Position: mgl64.Vec3{0, 3, 10}, Up: mgl64.Vec3{0, 1, 0}})
	require.NoError(t, g.Render())
	return g
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}

func TestHubSendsSceneThenFrames(t *testing.T) {
	g := newTestScene(t)
	q := camctl.NewQueue()
	hub := NewHub(g, q)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)

	var scene SceneMessage
	readJSON(t, conn, &scene)
	assert.Equal(t, TypeScene, scene.Type)
	require.Len(t, scene.Bodies, 2)
	assert.Equal(t, "Earth", scene.Bodies[1].Name)
	assert.Equal(t, "#0000ff", scene.Bodies[1].Color)
	assert.Len(t, scene.Bodies[1].Trace, 3)
	assert.True(t, scene.Bodies[0].Central)

	require.NoError(t, g.SetBodyPosition("earth", mgl64.Vec3{0, 0, 1}))
	require.NoError(t, g.Render())

	var frame FrameMessage
	readJSON(t, conn, &frame)
	assert.Equal(t, TypeFrame, frame.Type)
	assert.Equal(t, uint64(2), frame.Frame)
	require.Len(t, frame.Bodies, 2)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, frame.Bodies[1].Position)
	assert.Equal(t, mgl64.Vec3{0, 3, 10}, frame.Camera.Position)
}

func TestHubForwardsInputAndSkipsBadMessages(t *testing.T) {
	g := newTestScene(t)
	q := camctl.NewQueue()
	hub := NewHub(g, q)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	var scene SceneMessage
	readJSON(t, conn, &scene)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(InputMessage{Type: "keypress"}))
	require.NoError(t, conn.WriteJSON(InputMessage{Type: "resize", Width: 640, Height: 480}))
	require.NoError(t, conn.WriteJSON(InputMessage{Type: "pointerdown", Button: 2, X: 10, Y: 10}))
	require.NoError(t, conn.WriteJSON(InputMessage{Type: "pointermove", X: 20, Y: 10}))
	require.NoError(t, conn.WriteJSON(InputMessage{Type: "wheel", Delta: -1}))

	require.Eventually(t, func() bool { return q.Len() == 4 }, 5*time.Second, 10*time.Millisecond)

	c, err := camctl.New(camctl.Config{Position: mgl64.Vec3{0, 0, 10}})
	require.NoError(t, err)
	q.Drain(c)
	assert.Equal(t, camctl.ModePanning, c.Mode())
	pose := c.Update()
	assert.Less(t, pose.Target.X(), 0.0)
	assert.InDelta(t, 10/camctl.DefaultZoomSpeed, pose.Distance(), 1e-9)
}

func TestHubMaxClients(t *testing.T) {
	g := newTestScene(t)
	counter := &clientCounter{}
	hub := NewHub(g, camctl.NewQueue(), WithMaxClients(1), WithClientObserver(counter))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	var scene SceneMessage
	readJSON(t, conn, &scene)
	assert.Equal(t, 1, counter.get())

	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	conn.Close()
	require.Eventually(t, func() bool { return counter.get() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubRunDisconnectsClients(t *testing.T) {
	g := newTestScene(t)
	hub := NewHub(g, camctl.NewQueue())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	conn := dial(t, srv)
	var scene SceneMessage
	readJSON(t, conn, &scene)

	cancel()
	require.NoError(t, <-done)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.ErrorIs(t, hub.Run(context.Background()), ErrAlreadyRunning)
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestInputMessageEvent(t *testing.T) {
	ev, err := InputMessage{Type: "pointerdown", Button: 0, X: 1, Y: 2}.Event()
	require.NoError(t, err)
	assert.Equal(t, camctl.Event{Kind: camctl.EventPointerDown, Button: camctl.ButtonPrimary, X: 1, Y: 2}, ev)

	ev, err = InputMessage{Type: "pointerdown", Button: 2}.Event()
	require.NoError(t, err)
	assert.Equal(t, camctl.ButtonSecondary, ev.Button)

	_, err = InputMessage{Type: "pointerdown", Button: 7}.Event()
	assert.Error(t, err)

	var msg InputMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"wheel","delta":3}`), &msg))
	ev, err = msg.Event()
	require.NoError(t, err)
	assert.Equal(t, camctl.Event{Kind: camctl.EventWheel, Delta: 3}, ev)
}

func TestHubSceneAlwaysPrecedesFrames(t *testing.T) {
	g := newTestScene(t)
	hub := NewHub(g, camctl.NewQueue(), WithMaxFPS(1000))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = g.Render()
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 0; i < 10; i++ {
		conn := dial(t, srv)
		var first struct {
			Type string `json:"type"`
		}
		readJSON(t, conn, &first)
		assert.Equal(t, TypeScene, first.Type, "client %d", i)
		conn.Close()
	}
}
