// Package session holds the in-memory registry mapping live connections
// to their authentication and identity state. All session state flows
// through the Store; nothing else mutates it.
package session

import (
	"sort"
	"sync"
)

// Pusher is the write side of a live connection. Sends to a connection
// that has already closed must be no-ops, not errors.
type Pusher interface {
	ID() string
	Send(payload []byte) error
	SendJSON(v any) error
}

// Session is a read-only view of one connection's state.
type Session struct {
	Conn          Pusher
	SenderID      string
	AuthToken     string
	Authenticated bool

	seq uint64
}

type record struct {
	conn          Pusher
	seq           uint64
	senderID      string
	authToken     string
	authenticated bool
}

func (r *record) view() Session {
	return Session{
		Conn:          r.conn,
		SenderID:      r.senderID,
		AuthToken:     r.authToken,
		Authenticated: r.authenticated,
		seq:           r.seq,
	}
}

type (
	Store struct {
		mu       sync.RWMutex
		sessions map[string]*record
		nextSeq  uint64
	}
)

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*record),
	}
}

// Put registers a fresh, unauthenticated session for the connection.
// Registering the same connection id again resets its state.
func (s *Store) Put(conn Pusher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	s.sessions[conn.ID()] = &record{conn: conn, seq: s.nextSeq}
}

// Get returns the session for the connection, if any.
func (s *Store) Get(connID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return rec.view(), true
}

// Remove drops the connection's session. Safe to call for unknown ids.
func (s *Store) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, connID)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Authenticate marks the session authenticated and records the token.
// The identity binds only if the session has none yet; a bound identity
// never changes for the life of the connection. Returns the effective
// identity, or false if the connection is unknown.
func (s *Store) Authenticate(connID, senderID, token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[connID]
	if !ok {
		return "", false
	}

	if rec.senderID == "" {
		rec.senderID = senderID
	}
	rec.authToken = token
	rec.authenticated = true
	return rec.senderID, true
}

// Bind associates the identity with the connection unless one is bound
// already. Returns the effective identity, which may be empty when the
// session is unknown or no identity was supplied.
func (s *Store) Bind(connID, senderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[connID]
	if !ok {
		return ""
	}

	if rec.senderID == "" && senderID != "" {
		rec.senderID = senderID
	}
	return rec.senderID
}

// Authenticated reports whether the connection has passed verification.
func (s *Store) Authenticated(connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[connID]
	return ok && rec.authenticated
}

// ForEach visits every live session in registration order.
func (s *Store) ForEach(visit func(Session)) {
	for _, sess := range s.snapshot() {
		visit(sess)
	}
}

// FindByIdentity returns every session bound to the identity, earliest
// registered first. The routing scan is linear; fine at chat-relay
// scale, revisit if connection counts grow large.
func (s *Store) FindByIdentity(senderID string) []Session {
	if senderID == "" {
		return nil
	}

	var matches []Session
	for _, sess := range s.snapshot() {
		if sess.SenderID == senderID {
			matches = append(matches, sess)
		}
	}
	return matches
}

func (s *Store) snapshot() []Session {
	s.mu.RLock()
	sessions := make([]Session, 0, len(s.sessions))
	for _, rec := range s.sessions {
		sessions = append(sessions, rec.view())
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].seq < sessions[j].seq })
	return sessions
}
