package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/monitoring"

	"github.com/rs/zerolog"
)

// ErrSessionStoreClosed is returned by Acquire after Close
var ErrSessionStoreClosed = errors.New("session store closed")

// Session serializes the turns of one conversation and tracks resets
type Session struct {
	key  string
	slot chan struct{}

	mu         sync.Mutex
	generation uint64

	refs     int
	lastUsed time.Time
}

// Generation is bumped by every reset
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Commit runs apply unless the session was reset after gen was captured.
// It reports whether apply ran.
func (s *Session) Commit(gen uint64, apply func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false, nil
	}
	return true, apply()
}

// reset bumps the generation and runs apply while holding the apply lock
func (s *Session) reset(apply func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return apply()
}

// SessionStore holds the in-memory sessions of this process
type SessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	closed     bool
	idleTTL    time.Duration
	retryDelay time.Duration
	metrics    *monitoring.Collector
	log        zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSessionStore starts a store whose janitor evicts sessions idle for idleTTL
func NewSessionStore(idleTTL, retryDelay time.Duration, metrics *monitoring.Collector, log zerolog.Logger) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	s := &SessionStore{
		sessions:   make(map[string]*Session),
		idleTTL:    idleTTL,
		retryDelay: retryDelay,
		metrics:    metrics,
		log:        log.With().Str("component", "sessions").Logger(),
		done:       make(chan struct{}),
	}

	interval := idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	s.wg.Add(1)
	go s.janitor(interval)
	return s
}

func sessionKey(tenantID, conversationID string) string {
	return tenantID + "/" + conversationID
}

// Acquire waits for exclusive use of the conversation. A busy conversation is
// retried once after a short delay, then the caller queues until the slot
// frees or ctx ends. release must be called exactly once.
func (s *SessionStore) Acquire(ctx context.Context, tenantID, conversationID string) (*Session, func(), error) {
	sess, err := s.ref(sessionKey(tenantID, conversationID))
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		<-sess.slot
		s.unref(sess)
	}

	select {
	case sess.slot <- struct{}{}:
		return sess, release, nil
	default:
	}

	s.metrics.RecordConflict()
	conflict := apperr.New(apperr.KindConcurrentMutation, sess.key, nil)
	s.log.Debug().Str("session", sess.key).Msg(conflict.Error())

	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		s.unref(sess)
		return nil, nil, ctx.Err()
	}

	select {
	case sess.slot <- struct{}{}:
		return sess, release, nil
	default:
	}

	s.log.Debug().Str("session", sess.key).Msg("conversation still busy, queueing turn")
	select {
	case sess.slot <- struct{}{}:
		return sess, release, nil
	case <-ctx.Done():
		s.unref(sess)
		return nil, nil, ctx.Err()
	}
}

// Reset bumps the conversation's generation and runs apply under the apply lock.
// Turns that started before the reset discard their results.
func (s *SessionStore) Reset(tenantID, conversationID string, apply func() error) error {
	sess, err := s.ref(sessionKey(tenantID, conversationID))
	if err != nil {
		return err
	}
	defer s.unref(sess)
	return sess.reset(apply)
}

// Len is the number of sessions held
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the janitor and rejects further use
func (s *SessionStore) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	s.wg.Wait()
}

func (s *SessionStore) ref(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionStoreClosed
	}
	sess, ok := s.sessions[key]
	if !ok {
		sess = &Session{key: key, slot: make(chan struct{}, 1)}
		s.sessions[key] = sess
	}
	sess.refs++
	sess.lastUsed = time.Now()
	return sess, nil
}

func (s *SessionStore) unref(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.refs--
	sess.lastUsed = time.Now()
}

func (s *SessionStore) janitor(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

// evictIdle drops unreferenced sessions not used within idleTTL
func (s *SessionStore) evictIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, sess := range s.sessions {
		if sess.refs == 0 && now.Sub(sess.lastUsed) > s.idleTTL {
			delete(s.sessions, key)
			evicted++
		}
	}
	s.metrics.SetActiveSessions(len(s.sessions))
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Int("remaining", len(s.sessions)).Msg("evicted idle sessions")
	}
	return evicted
}
