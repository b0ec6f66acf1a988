package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/metrics"
	"github.com/hyperjump/nasab/internal/pager"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Manager is a registry of open sessions.
type Manager struct {
	searcher pager.Searcher
	opts     []Option
	metrics  *metrics.Recorder
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty registry whose sessions use searcher and opts.
func NewManager(searcher pager.Searcher, rec *metrics.Recorder, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		searcher: searcher,
		opts:     opts,
		metrics:  rec,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session.
func (m *Manager) Create() *Session {
	s := New(m.searcher, m.opts...)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.metrics.SessionOpened()
	m.logger.Debug("session opened", zap.String("session", s.ID))
	return s
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close closes and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	m.metrics.SessionClosed()
	m.logger.Debug("session closed", zap.String("session", id))
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire closes sessions idle for longer than ttl and returns how many.
func (m *Manager) Expire(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()
	for _, id := range idle {
		_ = m.Close(id)
	}
	return len(idle)
}

// RunExpiry calls Expire every interval until ctx is done.
func (m *Manager) RunExpiry(ctx context.Context, interval, ttl time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := m.Expire(ttl); n > 0 {
				m.logger.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}
