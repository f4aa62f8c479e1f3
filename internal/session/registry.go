package session

import (
	"sync"

	"github.com/mirrorx/endpoint/internal/logging"
)

// Registry holds at most one Session per remote peer id (I3), mirroring the
// teacher's SessionManager: a mutex-guarded map with insert-if-absent and
// idempotent removal.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register inserts s under its peer id if no session is already registered
// for that id. Returns false without inserting if one exists (I3).
func (r *Registry) Register(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.PeerID]; exists {
		return false
	}
	s.onClose = r.remove
	r.sessions[s.PeerID] = s
	log.Info("session registered", logging.KeyPeerID, s.PeerID)
	return true
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.PeerID]; ok && cur == s {
		delete(r.sessions, s.PeerID)
	}
	r.mu.Unlock()
	log.Info("session removed from registry", logging.KeyPeerID, s.PeerID)
}

// Get returns the active session for peerID, if any.
func (r *Registry) Get(peerID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peerID]
	return s, ok
}

// StopSession stops and removes the session for peerID, if one exists.
func (r *Registry) StopSession(peerID string) {
	r.mu.Lock()
	s, ok := r.sessions[peerID]
	r.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// StopAll tears down every registered session.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
