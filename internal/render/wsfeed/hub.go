// Package wsfeed streams rendered frames to browser clients over websockets
// and feeds their pointer input back into the camera queue. All clients
// share one camera.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orrery/camctl"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/kb"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 8
)

// DefaultMaxFPS caps frames sent per client.
const DefaultMaxFPS = 30

// ErrAlreadyRunning is returned by Run when called twice.
var ErrAlreadyRunning = errors.New("hub already running")

// InputSink accepts camera input. camctl.Queue satisfies it.
type InputSink interface {
	Push(ev camctl.Event) bool
}

// ClientObserver is told how many clients are connected.
type ClientObserver interface {
	SetFeedClients(n int)
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	cancel  context.CancelFunc
}

// Hub fans rendered snapshots out to connected clients.
type Hub struct {
	scene    *kb.SceneGraph
	input    InputSink
	log      logging.Logger
	observer ClientObserver
	upgrader websocket.Upgrader

	maxClients int
	maxFPS     rate.Limit

	unsubscribe func()

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
	ran     bool
}

// Option customises a Hub.
type Option func(*Hub)

func WithLogger(l logging.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithMaxClients rejects connections beyond n with 503. Zero means no
// limit.
func WithMaxClients(n int) Option {
	return func(h *Hub) { h.maxClients = n }
}

// WithMaxFPS caps the per-client frame rate.
func WithMaxFPS(fps float64) Option {
	return func(h *Hub) {
		if fps > 0 {
			h.maxFPS = rate.Limit(fps)
		}
	}
}

func WithClientObserver(o ClientObserver) Option {
	return func(h *Hub) { h.observer = o }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub builds a hub reading from scene and pushing input into input.
func NewHub(scene *kb.SceneGraph, input InputSink, opts ...Option) *Hub {
	h := &Hub{
		scene:   scene,
		input:   input,
		maxFPS:  DefaultMaxFPS,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.log == nil {
		h.log = logging.Noop()
	}
	h.unsubscribe = scene.Subscribe(h.broadcast)
	return h
}

// Run blocks until ctx ends, then stops broadcasting and disconnects all
// clients. Frames are broadcast from NewHub onwards.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return ErrAlreadyRunning
	}
	h.ran = true
	h.mu.Unlock()

	<-ctx.Done()
	h.unsubscribe()

	h.mu.Lock()
	h.closed = true
	for _, c := range h.clients {
		c.cancel()
	}
	h.mu.Unlock()
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(snap kb.Snapshot) {
	payload, err := json.Marshal(frameMessage(snap))
	if err != nil {
		h.log.Error(context.Background(), "encode frame", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if !c.limiter.Allow() {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow client: skip this frame rather than stall the frame loop.
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || (h.maxClients > 0 && len(h.clients) >= h.maxClients) {
		return false
	}
	h.clients[c.id] = c
	h.notifyLocked()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	h.notifyLocked()
}

func (h *Hub) notifyLocked() {
	if h.observer != nil {
		h.observer.SetFeedClients(len(h.clients))
	}
}

// ServeHTTP upgrades the request and serves one client until either side
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := h.closed || (h.maxClients > 0 && len(h.clients) >= h.maxClients)
	h.mu.Unlock()
	if full {
		http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	ctx, id := logging.EnsureSessionID(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(h.maxFPS, 1),
		cancel:  cancel,
	}
	log := h.log.With(logging.String("remote", r.RemoteAddr))

	// The scene message goes out before any frame: it is queued before the
	// client becomes visible to broadcast.
	scene, err := json.Marshal(sceneMessage(h.scene.Snapshot()))
	if err != nil {
		log.Error(ctx, "encode scene", logging.Err(err))
		conn.Close()
		return
	}
	c.send <- scene

	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed full"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer h.unregister(c)
	log.Info(ctx, "feed client connected")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.writePump(gctx, c) })
	g.Go(func() error { return h.readPump(gctx, c, log) })
	err = g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug(ctx, "feed client dropped", logging.Err(err))
	}
	log.Info(ctx, "feed client disconnected")
}

// writePump owns all writes to the connection. It closes the connection
// when ctx ends, which unblocks readPump.
func (h *Hub) writePump(ctx context.Context, c *client) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return ctx.Err()
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// readPump decodes input messages into the queue. Malformed messages are
// logged and skipped.
func (h *Hub) readPump(ctx context.Context, c *client, log logging.Logger) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg InputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn(ctx, "bad input message", logging.Err(err))
			continue
		}
		ev, err := msg.Event()
		if err != nil {
			log.Warn(ctx, "bad input message", logging.Err(err))
			continue
		}
		h.input.Push(ev)
	}
}
