package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/quicklink/core/logger"
)

type entry struct {
	sess  Session
	timer *time.Timer
	// armed identifies the current timer so a stale expiry never removes a newer wait.
	armed uint64
}

// Store is a concurrency-safe per-user session map.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*entry
	seq      uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*entry)}
}

// Start opens a fresh session for sess.UserID, replacing any prior one.
// The replaced session's artifact is released and its timer stopped.
func (s *Store) Start(sess Session) Session {
	if sess.Fields == nil {
		sess.Fields = make(map[string]string)
	}
	s.mu.Lock()
	prev := s.sessions[sess.UserID]
	if prev != nil {
		stop(prev)
	}
	s.sessions[sess.UserID] = &entry{sess: sess.clone()}
	s.mu.Unlock()

	if prev != nil {
		release(prev.sess)
		logger.Debug(context.Background(), "flow", "session.replaced",
			slog.Int64("user_id", sess.UserID),
			slog.String("flow", prev.sess.Flow),
			slog.String("step", prev.sess.Step),
		)
	}
	return sess.clone()
}

// Get returns a snapshot of the user's session.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return e.sess.clone(), true
}

// Update applies fn to the live session under lock. When match is non-nil and
// rejects the session, ErrNoSession is returned and nothing changes. An error
// from fn leaves the session untouched.
func (s *Store) Update(userID int64, match func(Session) bool, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok || (match != nil && !match(e.sess)) {
		return Session{}, ErrNoSession
	}
	next := e.sess.clone()
	if err := fn(&next); err != nil {
		return Session{}, err
	}
	next.UserID = e.sess.UserID
	e.sess = next
	return next.clone(), nil
}

// Take atomically removes and returns the session when match accepts it.
// Ownership of the artifact moves to the caller.
func (s *Store) Take(userID int64, match func(Session) bool) (Session, bool) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if !ok || (match != nil && !match(e.sess)) {
		s.mu.Unlock()
		return Session{}, false
	}
	delete(s.sessions, userID)
	stop(e)
	s.mu.Unlock()
	return e.sess, true
}

// Delete removes the session and releases its artifact.
func (s *Store) Delete(userID int64) bool {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
		stop(e)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	release(e.sess)
	return true
}

// Arm installs a wait bound on the current session. When it fires and the same
// wait is still current, the session is removed, its artifact released and
// onExpire called with the final snapshot. Re-arming replaces the previous wait.
func (s *Store) Arm(userID int64, ttl time.Duration, onExpire func(Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	s.seq++
	token := s.seq
	e.armed = token
	e.timer = time.AfterFunc(ttl, func() { s.expire(userID, token, onExpire) })
	return true
}

// Disarm stops the pending wait, if any.
func (s *Store) Disarm(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[userID]; ok {
		stop(e)
	}
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session, stopping timers and releasing artifacts.
func (s *Store) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[int64]*entry)
	for _, e := range all {
		stop(e)
	}
	s.mu.Unlock()
	for _, e := range all {
		release(e.sess)
	}
}

func (s *Store) expire(userID int64, token uint64, onExpire func(Session)) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if !ok || e.armed != token {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, userID)
	s.mu.Unlock()

	release(e.sess)
	logger.Info(context.Background(), "flow", "session.expired",
		slog.Int64("user_id", userID),
		slog.String("flow", e.sess.Flow),
		slog.String("step", e.sess.Step),
	)
	if onExpire != nil {
		onExpire(e.sess)
	}
}

func stop(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.armed = 0
}

func release(sess Session) {
	if sess.Artifact == nil {
		return
	}
	if err := sess.Artifact.Release(); err != nil {
		logger.Warn(context.Background(), "flow", "artifact.release_failed",
			slog.Int64("user_id", sess.UserID),
			slog.String("err", err.Error()),
		)
	}
}
