package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/tracking"
)

const (
	// DefaultTickRate is the render loop rate of the tracking stream in Hz.
	DefaultTickRate = 30

	writeWait  = time.Second
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event names pushed on the tracking stream.
const (
	EventState = "state"
	EventFound = "found"
	EventLost  = "lost"
)

type eventMessage struct {
	Event      string `json:"event"`
	Handedness string `json:"handedness,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// TrackingHandler streams smoothed tracker state over WebSocket. It is a
// tracker consumer in its own right: its render loop advances the tracker's
// smoothing with Tick and broadcasts the result to every client. It also
// listens for detection changes and pushes "found" and "lost" events as
// they happen.
type TrackingHandler struct {
	tracker  *tracking.Tracker
	interval time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	clients  map[*client]struct{}
	detected bool

	unsubscribe func()
	stopCh      chan struct{}
	doneCh      chan struct{}
	closeOnce   sync.Once
}

// NewTrackingHandler subscribes to tr and starts the render loop at rate Hz.
// Call Close to stop it.
func NewTrackingHandler(tr *tracking.Tracker, rate int, log *zap.Logger) *TrackingHandler {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &TrackingHandler{
		tracker:  tr,
		interval: time.Second / time.Duration(rate),
		log:      log.Named("ws"),
		clients:  make(map[*client]struct{}),
		detected: tr.Detected(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	h.unsubscribe = tr.Subscribe(h)
	go h.run()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	go h.writeLoop(c)

	// New clients get the current state without waiting for a tick.
	initial, err := json.Marshal(h.state())
	if err != nil {
		h.log.Error("encode tracking state", zap.Error(err))
		close(c.send)
		return
	}
	if !h.add(c, initial) {
		close(c.send)
		return
	}
	h.log.Debug("tracking client connected", zap.String("remote", r.RemoteAddr))
	defer h.remove(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// add registers c with initial queued ahead of any broadcast.
func (h *TrackingHandler) add(c *client, initial []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients == nil {
		return false
	}
	c.send <- initial
	h.clients[c] = struct{}{}
	return true
}

func (h *TrackingHandler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *TrackingHandler) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("tracking client write failed", zap.Error(err))
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// Clients returns the number of connected clients.
func (h *TrackingHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *TrackingHandler) state() api.State {
	st := api.NewState(h.tracker.Snapshot())
	st.Event = EventState
	return st
}

// run is the render loop. The tracker is ticked with the measured interval
// whether or not anyone is connected, so smoothing keeps pace with time.
func (h *TrackingHandler) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-h.stopCh:
			return
		case now := <-ticker.C:
			h.tracker.Tick(now.Sub(last))
			last = now

			if h.Clients() == 0 {
				continue
			}
			msg, err := json.Marshal(h.state())
			if err != nil {
				h.log.Error("encode tracking state", zap.Error(err))
				continue
			}
			h.broadcast(msg)
		}
	}
}

// broadcast queues msg for every client. A client whose queue is full
// misses the message.
func (h *TrackingHandler) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// HandUpdated implements tracking.Listener.
func (h *TrackingHandler) HandUpdated(s tracking.Snapshot) {
	h.mu.Lock()
	found := !h.detected
	h.detected = true
	h.mu.Unlock()

	if found {
		h.push(eventMessage{Event: EventFound, Handedness: string(s.Handedness)})
	}
}

// HandLost implements tracking.Listener. The tracker reports every frame
// without a hand; only the first of a run is pushed.
func (h *TrackingHandler) HandLost() {
	h.mu.Lock()
	lost := h.detected
	h.detected = false
	h.mu.Unlock()

	if lost {
		h.push(eventMessage{Event: EventLost})
	}
}

func (h *TrackingHandler) push(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode tracking event", zap.Error(err))
		return
	}
	h.broadcast(msg)
}

// Close stops the render loop, unsubscribes from the tracker and
// disconnects every client.
func (h *TrackingHandler) Close() {
	h.closeOnce.Do(func() {
		h.unsubscribe()
		close(h.stopCh)
		<-h.doneCh

		h.mu.Lock()
		for c := range h.clients {
			close(c.send)
			c.conn.Close()
		}
		h.clients = nil
		h.mu.Unlock()
	})
}
