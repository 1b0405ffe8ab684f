package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

// SessionStore is the in-memory registry of live sessions. The server is the
// single source of truth for membership and last-known state; everything here
// dies with the process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]core.SessionService
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[domain.SessionID]core.SessionService)}
}

// Create registers a new session with the creator as host. A connection is in
// at most one session; creating while a member of another is rejected.
func (st *SessionStore) Create(id domain.SessionID, creator core.ParticipantSession) (core.SessionService, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	if _, ok := st.sessionOfLocked(creator.Meta().ID); ok {
		return nil, ErrAlreadyInSession
	}
	sess := core.NewSessionService(id)
	sess.AddParticipant(creator)
	st.sessions[id] = sess
	log.Info().Str("module", "app.store").Str("session", string(id)).Str("host", string(creator.Meta().ID)).Msg("session created")
	return sess, nil
}

func (st *SessionStore) Get(id domain.SessionID) (core.SessionService, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Join adds a participant to an existing session. The membership check and
// the add happen under one registry lock, so the joiner can't land in a
// session a concurrent departure is about to sweep.
func (st *SessionStore) Join(id domain.SessionID, ps core.ParticipantSession) (core.SessionService, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, ok := st.sessionOfLocked(ps.Meta().ID); ok {
		return nil, ErrAlreadyInSession
	}
	sess.AddParticipant(ps)
	return sess, nil
}

// Leave removes the connection from whatever session it is in and sweeps the
// session when it became empty, all under the registry lock.
func (st *SessionStore) Leave(conn domain.ConnectionID) (sess core.SessionService, wasHost bool, remaining int, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok = st.sessionOfLocked(conn)
	if !ok {
		return nil, false, 0, false
	}
	wasHost, remaining = sess.RemoveParticipant(conn)
	if remaining == 0 {
		delete(st.sessions, sess.ID())
		log.Info().Str("module", "app.store").Str("session", string(sess.ID())).Msg("session removed")
	}
	return sess, wasHost, remaining, true
}

// SessionOf finds the session a connection belongs to by scanning membership.
// Deliberately not cached: stays consistent with the authoritative membership
// map. TODO: switch to a connection→session index once session counts grow.
func (st *SessionStore) SessionOf(conn domain.ConnectionID) (core.SessionService, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessionOfLocked(conn)
}

func (st *SessionStore) sessionOfLocked(conn domain.ConnectionID) (core.SessionService, bool) {
	for _, sess := range st.sessions {
		if sess.IsMember(conn) {
			return sess, true
		}
	}
	return nil, false
}

// Remove drops a session from the registry. Sessions with zero participants
// must not outlive the last leave.
func (st *SessionStore) Remove(id domain.SessionID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
	log.Info().Str("module", "app.store").Str("session", string(id)).Msg("session removed")
}

func (st *SessionStore) List() []core.SessionInfo {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]core.SessionInfo, 0, len(st.sessions))
	for id, sess := range st.sessions {
		out = append(out, core.SessionInfo{ID: id, ParticipantCount: sess.ParticipantCount()})
	}
	return out
}
