package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/fleet-dispatch/internal/event"
)

var ErrNoSession = errors.New("no websocket session")

// WSSession wraps one connected identity. Writes are serialized per session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(env event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

// WSRegistry holds live sessions keyed by identity and delivers outbound
// envelopes directly to connected peers.
type WSRegistry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{logger: logger, sessions: make(map[string]*WSSession)}
}

// Add registers the connection under id and starts a read pump feeding h.
// The sender identity of every message from this connection is the session
// id, not anything the payload claims.
func (w *WSRegistry) Add(ctx context.Context, id string, conn *websocket.Conn, h Handler) {
	sess := &WSSession{conn: conn}
	w.mu.Lock()
	if old, ok := w.sessions[id]; ok {
		_ = old.conn.Close()
	}
	w.sessions[id] = sess
	w.mu.Unlock()
	w.logger.Info("ws session attached", "id", id)

	go w.readPump(ctx, id, sess, h)
}

func (w *WSRegistry) readPump(ctx context.Context, id string, sess *WSSession, h Handler) {
	defer w.remove(id, sess)
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			w.logger.Info("ws session closed", "id", id, "error", err)
			return
		}
		h(ctx, id, raw)
	}
}

func (w *WSRegistry) remove(id string, sess *WSSession) {
	w.mu.Lock()
	if cur, ok := w.sessions[id]; ok && cur == sess {
		delete(w.sessions, id)
	}
	w.mu.Unlock()
	_ = sess.conn.Close()
}

func (w *WSRegistry) Send(_ context.Context, recipientID string, env event.Envelope) error {
	w.mu.RLock()
	sess, ok := w.sessions[recipientID]
	w.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return sess.send(env)
}
