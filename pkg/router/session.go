package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/core"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// ErrSessionLimit is returned when no session can be evicted to make room.
var ErrSessionLimit = errors.New("session limit reached")

// LiveViewSession binds a browser session to its mounted component.
type LiveViewSession struct {
	ID        string
	Component core.Component
	CreatedAt time.Time

	lastActivity time.Time
	live         int
	mu           sync.Mutex
}

// Touch records activity.
func (s *LiveViewSession) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// LastActivity returns the last activity timestamp.
func (s *LiveViewSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Live reports whether a live channel is serving the session.
func (s *LiveViewSession) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live > 0
}

func (s *LiveViewSession) detach(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live--
	s.lastActivity = now
}

// SessionManagerConfig configures the session manager.
type SessionManagerConfig struct {
	// MaxSessions caps mounted sessions; the least recently active one
	// without a live channel is evicted when full. Zero means no limit.
	MaxSessions int
	// SessionTTL is how long an idle session stays mounted.
	SessionTTL time.Duration
	Logger     logging.Logger
}

// DefaultSessionManagerConfig returns the default configuration.
func DefaultSessionManagerConfig() SessionManagerConfig {
	return SessionManagerConfig{
		MaxSessions: 10000,
		SessionTTL:  30 * time.Minute,
	}
}

// SessionManager owns every mounted session.
type SessionManager struct {
	sessions map[string]*LiveViewSession
	factory  func() core.Component
	cfg      SessionManagerConfig
	now      func() time.Time
	mu       sync.Mutex
}

// NewSessionManager creates a manager mounting components from factory.
func NewSessionManager(factory func() core.Component, cfg SessionManagerConfig) *SessionManager {
	def := DefaultSessionManagerConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger{}
	}
	return &SessionManager{
		sessions: make(map[string]*LiveViewSession),
		factory:  factory,
		cfg:      cfg,
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, mounting a new component when
// none exists. Mounting restores saved progress, so a session evicted from
// memory resumes where it stopped.
func (m *SessionManager) GetOrCreate(ctx context.Context, id string, params core.Params) (*LiveViewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(ctx, id, params)
}

// Connect is GetOrCreate for a live channel. The session is neither expired
// nor evicted until release is called.
func (m *SessionManager) Connect(ctx context.Context, id string, params core.Params) (s *LiveViewSession, release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err = m.getOrCreateLocked(ctx, id, params)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	s.live++
	s.mu.Unlock()

	var once sync.Once
	return s, func() { once.Do(func() { s.detach(m.now()) }) }, nil
}

func (m *SessionManager) getOrCreateLocked(ctx context.Context, id string, params core.Params) (*LiveViewSession, error) {
	now := m.now()
	if s, ok := m.sessions[id]; ok {
		s.Touch(now)
		return s, nil
	}

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		if !m.evictOldestLocked(ctx) {
			return nil, ErrSessionLimit
		}
	}

	comp := m.factory()
	if err := comp.Mount(ctx, params, core.Session{core.SessionIDKey: id}); err != nil {
		return nil, err
	}
	s := &LiveViewSession{ID: id, Component: comp, CreatedAt: now, lastActivity: now}
	m.sessions[id] = s
	m.cfg.Logger.Debug("session mounted", logging.Session(id), logging.String("component", comp.Name()))
	return s, nil
}

// Get returns a mounted session.
func (m *SessionManager) Get(id string) (*LiveViewSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove terminates and forgets a session.
func (m *SessionManager) Remove(ctx context.Context, id string, reason core.TerminateReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		m.terminateLocked(ctx, s, reason)
	}
}

// Count returns the number of mounted sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup terminates sessions idle longer than the TTL. Sessions with an
// open live channel are kept.
func (m *SessionManager) Cleanup(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, s := range m.sessions {
		if !s.Live() && now.Sub(s.LastActivity()) > m.cfg.SessionTTL {
			m.terminateLocked(ctx, s, core.TerminateTimeout)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine runs Cleanup every interval until ctx is done. The
// returned channel closes when the routine exits.
func (m *SessionManager) StartCleanupRoutine(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Cleanup(ctx); n > 0 {
					m.cfg.Logger.Info("expired idle sessions", logging.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

// Close terminates every session.
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		m.terminateLocked(ctx, s, core.TerminateShutdown)
	}
	return nil
}

func (m *SessionManager) evictOldestLocked(ctx context.Context) bool {
	var oldest *LiveViewSession
	for _, s := range m.sessions {
		if s.Live() {
			continue
		}
		if oldest == nil || s.LastActivity().Before(oldest.LastActivity()) {
			oldest = s
		}
	}
	if oldest == nil {
		return false
	}
	m.terminateLocked(ctx, oldest, core.TerminateNormal)
	return true
}

func (m *SessionManager) terminateLocked(ctx context.Context, s *LiveViewSession, reason core.TerminateReason) {
	delete(m.sessions, s.ID)
	if err := s.Component.Terminate(ctx, reason); err != nil {
		m.cfg.Logger.Warn("terminate session", logging.Session(s.ID), logging.Err(err))
	}
}
