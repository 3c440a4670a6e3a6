package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/shelter-matching/internal/models"
	"github.com/example/shelter-matching/internal/observability"
)

const writeWait = 5 * time.Second

// WSSession represents a connected shelter staff session
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n models.MatchNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(n)
}

// WSRegistry holds one staff session per shelter; a newer connection replaces the old one.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(shelterID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[shelterID]; ok {
		_ = old.conn.Close()
	} else {
		observability.ShelterSessions.Inc()
	}
	r.sessions[shelterID] = &WSSession{conn: conn}
}

// Remove drops the session if conn is still the registered one.
func (r *WSRegistry) Remove(shelterID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[shelterID]; ok && s.conn == conn {
		delete(r.sessions, shelterID)
		observability.ShelterSessions.Dec()
	}
}

func (r *WSRegistry) Notify(ctx context.Context, n models.MatchNotice) error {
	r.mu.RLock()
	s, ok := r.sessions[n.ShelterID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(n); err != nil {
		r.Remove(n.ShelterID, s.conn)
		return err
	}
	return nil
}
