// Package ws implements the WebSocket transport gateway: it accepts
// viewer connections, applies per-viewer similarity settings, and pushes
// tailored graph payloads on every published snapshot.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/similarity"
)

// writeWait bounds a single frame write so a stalled socket cannot pin
// the write pump forever.
const writeWait = 10 * time.Second

// session is one live viewer connection. Its settings are owned by the
// hub loop; the send channel decouples slow sockets from the loop.
type session struct {
	id       string
	settings similarity.Settings
	send     chan []byte
}

type settingsReq struct {
	sess     *session
	settings similarity.Settings
}

// Hub manages viewer sessions and broadcasts graph payloads.
//
// Concurrency model: a single internal loop owns all mutable state
// (session set, per-session settings, latest snapshot). Public methods
// communicate with the loop through channels, so no mutexes are needed.
// A session whose send buffer is full is disconnected rather than ever
// blocking the loop or delaying other viewers.
type Hub struct {
	engine   *similarity.Engine
	defaults similarity.Settings
	logger   *slog.Logger

	registerCh   chan *session
	unregisterCh chan *session
	snapshotCh   chan *graph.Snapshot
	settingsCh   chan settingsReq
	countReqCh   chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewHub creates a hub and starts its loop. defaults seed every new
// session's similarity settings until the viewer sends its own.
func NewHub(engine *similarity.Engine, defaults similarity.Settings, logger *slog.Logger) *Hub {
	h := &Hub{
		engine:       engine,
		defaults:     defaults,
		logger:       logger,
		registerCh:   make(chan *session),
		unregisterCh: make(chan *session),
		snapshotCh:   make(chan *graph.Snapshot, 16),
		settingsCh:   make(chan settingsReq, 64),
		countReqCh:   make(chan chan int),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)

	sessions := make(map[*session]struct{})
	var latest *graph.Snapshot

	// send delivers one payload; a full buffer drops the session so one
	// unresponsive viewer never stalls delivery to the rest.
	send := func(s *session, payload Payload) {
		msg, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error("hub: marshal payload failed", slog.String("error", err.Error()))
			return
		}
		select {
		case s.send <- msg:
		default:
			h.logger.Warn("hub: send buffer full, dropping session", slog.String("session", s.id))
			delete(sessions, s)
			close(s.send)
		}
	}

	for {
		select {
		case <-h.stopCh:
			for s := range sessions {
				close(s.send)
			}
			return

		case s := <-h.registerCh:
			sessions[s] = struct{}{}
			h.logger.Info("hub: viewer connected", slog.String("session", s.id))
			if latest != nil {
				send(s, BuildPayload(latest, h.engine, s.settings))
			}

		case s := <-h.unregisterCh:
			if _, ok := sessions[s]; ok {
				delete(sessions, s)
				close(s.send)
				h.logger.Info("hub: viewer disconnected", slog.String("session", s.id))
			}

		case snap := <-h.snapshotCh:
			latest = snap
			for s := range sessions {
				send(s, BuildPayload(snap, h.engine, s.settings))
			}

		case req := <-h.settingsCh:
			if _, ok := sessions[req.sess]; !ok {
				continue
			}
			req.sess.settings = req.settings
			if latest != nil {
				send(req.sess, BuildPayload(latest, h.engine, req.sess.settings))
			}

		case resp := <-h.countReqCh:
			resp <- len(sessions)
		}
	}
}

// Publish hands a newly published snapshot to the hub for fan-out.
func (h *Hub) Publish(snap *graph.Snapshot) {
	if h.closed.Load() {
		return
	}
	select {
	case h.snapshotCh <- snap:
	case <-h.stopped:
	}
}

// SessionCount returns the number of connected viewers.
func (h *Hub) SessionCount() int {
	if h.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case h.countReqCh <- resp:
	case <-h.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-h.stopped:
		return 0
	}
}

// Close stops the hub loop and closes all session channels.
func (h *Hub) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// inbound is the viewer -> service message envelope. Unknown types are
// ignored without closing the connection.
type inbound struct {
	Type     string  `json:"type"`
	Enabled  bool    `json:"enabled"`
	MinScore float64 `json:"min_score"`
	TopK     int     `json:"top_k"`
}

// ServeHTTP upgrades the connection and runs the session's read/write
// pumps until the viewer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("hub: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	s := &session{
		id:       uuid.New().String(),
		settings: h.defaults,
		send:     make(chan []byte, 16),
	}

	if h.closed.Load() {
		return
	}
	select {
	case h.registerCh <- s:
	case <-h.stopped:
		return
	}

	// The write pump owns socket teardown: when the hub drops the session
	// (or it unregisters) s.send is closed, the loop ends, and closing the
	// connection here unblocks the read loop so the viewer sees a real
	// disconnect instead of a silent stall.
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		for msg := range s.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Debug("hub: undecodable message ignored", slog.String("session", s.id))
			continue
		}
		if msg.Type != "similarity_settings" {
			continue
		}
		if msg.MinScore < 0 || msg.MinScore > 1 || msg.TopK <= 0 {
			h.logger.Debug("hub: invalid settings ignored",
				slog.String("session", s.id),
				slog.Float64("min_score", msg.MinScore),
				slog.Int("top_k", msg.TopK))
			continue
		}
		req := settingsReq{sess: s, settings: similarity.Settings{
			Enabled:  msg.Enabled,
			MinScore: msg.MinScore,
			TopK:     msg.TopK,
		}}
		select {
		case h.settingsCh <- req:
		case <-h.stopped:
			return
		}
	}

	select {
	case h.unregisterCh <- s:
	case <-h.stopped:
	}
	<-done
}
