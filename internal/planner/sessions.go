package planner

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one user's planner and its expiry.
type Session struct {
	ID        string
	Planner   *Planner
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Sessions keeps a Planner per session id. Every access extends the
// session; idle sessions are dropped by CleanupExpired.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	newPlan  func() *Planner
	sessions map[string]*Session
}

// NewSessions creates a registry whose planners are built by factory.
func NewSessions(ttl time.Duration, factory func() *Planner) *Sessions {
	return &Sessions{
		ttl:      ttl,
		now:      time.Now,
		newPlan:  factory,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session under a fresh random id.
func (s *Sessions) Create() *Session {
	return s.GetOrCreate(uuid.NewString())
}

// GetOrCreate returns the active session for id, creating it if needed.
// Front ends with their own user ids (Telegram) use it directly.
func (s *Sessions) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok && now.Before(sess.ExpiresAt) {
		sess.ExpiresAt = now.Add(s.ttl)
		return sess
	}
	sess := &Session{
		ID:        id,
		Planner:   s.newPlan(),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	s.sessions[id] = sess
	return sess
}

// Get returns the active session for id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if !now.Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.ExpiresAt = now.Add(s.ttl)
	return sess, true
}

// Delete removes a session.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len is the number of sessions, expired ones included until cleanup.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CleanupExpired removes expired sessions and returns how many it removed.
// Mutations already issued by a removed planner still run to completion.
func (s *Sessions) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
