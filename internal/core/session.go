package core

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager owns the cart sessions, one per cashier. Sessions are created on
// first use, removed on checkout or eviction, and swept when idle longer than ttl.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*CartSession

	repo     Repository
	resolver *PrescriptionResolver
	ttl      time.Duration
	log      *zap.Logger
}

// NewSessionManager returns a manager; ttl <= 0 disables idle sweeping.
func NewSessionManager(repo Repository, resolver *PrescriptionResolver, ttl time.Duration, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		sessions: make(map[string]*CartSession),
		repo:     repo,
		resolver: resolver,
		ttl:      ttl,
		log:      log,
	}
}

// Session returns the cashier's session, creating it if needed.
func (m *SessionManager) Session(cashierID string) *CartSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[cashierID]; ok && !s.isClosed() {
		return s
	}
	s := newCartSession(cashierID, m.repo, m.resolver, time.Now())
	m.sessions[cashierID] = s
	return s
}

// Peek returns the cashier's session without creating one.
func (m *SessionManager) Peek(cashierID string) (*CartSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[cashierID]
	if !ok || s.isClosed() {
		return nil, false
	}
	return s, true
}

// Evict drops the cashier's session.
func (m *SessionManager) Evict(cashierID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[cashierID]; ok {
		delete(m.sessions, cashierID)
		m.log.Debug("cart session evicted", zap.String("cashier_id", cashierID))
	}
}

// evictSession drops s only if it is still the cashier's current session.
func (m *SessionManager) evictSession(s *CartSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.cashierID]; ok && cur == s {
		delete(m.sessions, s.cashierID)
	}
}

// Sweep evicts sessions idle since before now-ttl and returns how many were dropped.
func (m *SessionManager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	candidates := make([]*CartSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	var idle []*CartSession
	for _, s := range candidates {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	m.mu.Lock()
	n := 0
	for _, s := range idle {
		// Skip sessions replaced or touched since the scan.
		if cur, ok := m.sessions[s.cashierID]; ok && cur == s && s.idleSince().Before(cutoff) {
			delete(m.sessions, s.cashierID)
			n++
		}
	}
	m.mu.Unlock()

	if n > 0 {
		m.log.Info("idle cart sessions swept", zap.Int("count", n))
	}
	return n
}

// Len is the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (c *CartSession) isClosed() bool { return c.closed.Load() }
