/*
Package live streams guard decisions to dashboard pages over WebSocket.

A Watcher is bound to one portal session and one page. It pushes a DECISION message
whenever the decision for that page changes, so a role that arrives after the page was
rendered can still admit or evict the visitor.
*/
package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sims/internal/app/auth"
	"sims/internal/app/user"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// clients only answer pings; anything larger is a protocol error.
	maxMessageSize = 512

	sendBuffer = 16
)

// TypeDecision is the only message type the server sends.
const TypeDecision = "DECISION"

// Message is one pushed decision.
type Message struct {
	Type      string        `json:"type"`
	Path      string        `json:"path"`
	Decision  auth.Decision `json:"decision"`
	SignedIn  bool          `json:"signed_in"`
	Roles     []user.Role   `json:"roles"`
	Timestamp int64         `json:"timestamp"`
}

// Source is the part of auth.Store a Watcher observes.
type Source interface {
	Watch() (auth.Snapshot, <-chan struct{})
	Closed() bool
}

// Watcher pushes guard decisions for one page to one connection.
type Watcher struct {
	hub    *Hub
	source Source
	conn   *websocket.Conn
	req    auth.Requirement
	path   string

	// send is written and closed only by watchLoop.
	send chan []byte

	// done is closed when the read side ends.
	done     chan struct{}
	doneOnce sync.Once

	// stop is closed by the Hub on shutdown.
	stop     chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewWatcher constructs a Watcher for path guarded by req.
func NewWatcher(hub *Hub, source Source, conn *websocket.Conn, req auth.Requirement, path, portalID string) *Watcher {
	return &Watcher{
		hub:    hub,
		source: source,
		conn:   conn,
		req:    req,
		path:   path,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: hub.logger.With().Str("portal_id", portalID).Str("path", path).Logger(),
	}
}

// Serve runs the watcher until the client leaves, the portal session ends or the hub
// shuts down. It blocks on the read side.
func (w *Watcher) Serve() {
	if !w.hub.add(w) {
		w.conn.Close()
		return
	}

	go w.writePump()
	go w.watchLoop()

	w.readPump()
}

// Stop asks the watcher to close the connection.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// readPump discards inbound frames and keeps the read deadline alive on pongs.
func (w *Watcher) readPump() {
	defer func() {
		w.doneOnce.Do(func() { close(w.done) })
		w.hub.remove(w)
		w.conn.Close()
	}()

	w.conn.SetReadLimit(maxMessageSize)
	if err := w.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		w.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Info().Err(err).Msg("Live connection closed unexpectedly")
			}
			return
		}
	}
}

// watchLoop re-evaluates the decision on every store change and queues it when it differs
// from the last one sent.
func (w *Watcher) watchLoop() {
	defer close(w.send)

	var last *auth.Decision
	for {
		snap, changed := w.source.Watch()
		if w.source.Closed() {
			w.logger.Debug().Msg("Portal session closed, ending live stream")
			return
		}

		d := auth.Decide(snap, w.req, w.path)
		if last == nil || *last != d {
			if !w.enqueue(snap, d) {
				return
			}
			last = &d
		}

		select {
		case <-changed:
		case <-w.done:
			return
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) enqueue(snap auth.Snapshot, d auth.Decision) bool {
	w.hub.metrics.ObserveGuard(string(d.Kind))

	data, err := json.Marshal(Message{
		Type:      TypeDecision,
		Path:      w.path,
		Decision:  d,
		SignedIn:  snap.User != nil,
		Roles:     snap.Roles,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("Error marshaling decision")
		return false
	}

	select {
	case w.send <- data:
		return true
	default:
		w.logger.Warn().Int("queue_len", len(w.send)).Msg("Live send queue full, closing connection")
		return false
	}
}

// writePump writes queued decisions and keeps the connection alive with pings.
func (w *Watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case message, ok := <-w.send:
			if !w.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !w.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage returns false when the pump should stop. A closed queue ends the
// stream with a Going Away close frame.
func (w *Watcher) writeQueuedMessage(message []byte, ok bool) bool {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		w.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended")
		if err := w.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
			w.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		w.logger.Error().Err(err).Msg("Error writing decision")
		return false
	}
	return true
}

func (w *Watcher) writePingMessage() bool {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		w.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		w.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}
	return true
}
