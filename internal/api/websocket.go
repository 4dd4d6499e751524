package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-instar/internal/event"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/logging"
)

// Message types on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll subscribes a stream to every event type.
	WSChannelAll = event.All

	streamQueueSize = 256
)

// WSMessage is one frame on the event stream, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels of a subscribe or unsubscribe request.
// Channels are event types such as "motion_detected".
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inboundMessage defers decoding the payload until the type is known.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var errStreamClosed = errors.New("api: event stream closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub fans bus events out to connected WebSocket streams.
//
// Each event is encoded once and queued on every stream whose filter
// matches its type. A stream whose queue is full misses the event; the
// bus is never blocked by a slow client.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	streams map[*stream]struct{}
	closed  bool

	dropped atomic.Uint64
}

// NewHub creates a hub. Streams are attached by the server's WebSocket route.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		streams: make(map[*stream]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every stream.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	streams := h.streams
	h.streams = make(map[*stream]struct{})
	h.mu.Unlock()

	for s := range streams {
		s.shutdown()
	}
}

// HandleEvent is the bus handler that feeds the hub.
func (h *Hub) HandleEvent(e event.Event) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: e.EventType(),
		Timestamp: e.OccurredAt().UTC().Format(time.RFC3339Nano),
		Payload:   e,
	})
	if err != nil {
		h.logger.Error("encoding event for websocket failed", "event_type", e.EventType(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.streams {
		if !s.wants(e.EventType()) {
			continue
		}
		if !s.enqueue(frame) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// Dropped returns how many event frames were discarded for full queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) attach(s *stream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.streams[s] = struct{}{}
	return true
}

func (h *Hub) detach(s *stream) {
	h.mu.Lock()
	delete(h.streams, s)
	h.mu.Unlock()
}

// stream is one WebSocket connection and its channel filter.
type stream struct {
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once

	mu       sync.RWMutex
	channels map[string]struct{}
}

func newStream(conn *websocket.Conn) *stream {
	return &stream{
		conn:     conn,
		queue:    make(chan []byte, streamQueueSize),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

func (s *stream) wants(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.channels[WSChannelAll]; ok {
		return true
	}
	_, ok := s.channels[eventType]
	return ok
}

func (s *stream) setChannels(channels []string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if on {
			s.channels[ch] = struct{}{}
		} else {
			delete(s.channels, ch)
		}
	}
}

// enqueue reports false when the frame was dropped.
func (s *stream) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}

// shutdown tells the writer to send a close frame and hang up. The writer
// closes the connection, which in turn unblocks the reader. Safe to call
// repeatedly.
func (s *stream) shutdown() {
	s.once.Do(func() {
		close(s.done)
	})
}

// handleWebSocket upgrades the request and serves one event stream until
// either side disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	st := newStream(conn)
	if !s.hub.attach(st) {
		conn.Close()
		return
	}
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr, "clients", s.hub.ClientCount())

	go func() {
		err := s.serveStream(st)
		s.hub.detach(st)
		st.shutdown()
		s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr, "reason", err)
	}()
}

// serveStream runs the read and write loops of st until one of them stops.
func (s *Server) serveStream(st *stream) error {
	var g errgroup.Group

	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second

	g.Go(func() error {
		defer st.shutdown()
		return s.readLoop(st, pingInterval+pongWait)
	})
	g.Go(func() error {
		defer st.shutdown()
		return writeLoop(st, pingInterval, pongWait)
	})

	return g.Wait()
}

func (s *Server) readLoop(st *stream, idle time.Duration) error {
	st.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	extend := func() error {
		return st.conn.SetReadDeadline(time.Now().Add(idle))
	}
	if err := extend(); err != nil {
		return err
	}
	st.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return err
		}
		// Browsers do not always answer protocol pings; any frame counts as liveness.
		if err := extend(); err != nil {
			return err
		}
		s.dispatch(st, data)
	}
}

// writeLoop owns closing the connection, so the close frame is sent first.
func writeLoop(st *stream, pingInterval, writeWait time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		st.conn.Close()
	}()

	for {
		select {
		case <-st.done:
			//nolint:errcheck // best-effort close frame
			st.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return errStreamClosed
		case frame := <-st.queue:
			if err := st.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := st.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			if err := st.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

// dispatch handles one client frame.
func (s *Server) dispatch(st *stream, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		reply(st, msg.ID, WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var req WSSubscribePayload
		if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &req) != nil {
			reply(st, msg.ID, WSTypeError, map[string]string{"message": "invalid " + msg.Type + " payload"})
			return
		}
		subscribe := msg.Type == WSTypeSubscribe
		st.setChannels(req.Channels, subscribe)

		key := "unsubscribed"
		if subscribe {
			key = "subscribed"
			s.logger.Debug("websocket client subscribed", "channels", req.Channels)
		}
		reply(st, msg.ID, WSTypeResponse, map[string]any{key: req.Channels})
	case WSTypePing:
		reply(st, msg.ID, WSTypePong, nil)
	default:
		reply(st, msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func reply(st *stream, id, msgType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	st.enqueue(frame)
}
