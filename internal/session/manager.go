package session

import (
	"errors"
	"time"

	"rag-doc-assistant/internal/chat"
	"rag-doc-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager keeps sessions in memory. A session expires after ttl without a
// Get; nothing survives a restart.
type Manager struct {
	sessions *cache.Cache
	backend  Backend
	defaults models.Settings
	opts     []chat.Option
	log      *zap.Logger
}

func NewManager(b Backend, defaults models.Settings, ttl, cleanupInterval time.Duration, logger *zap.Logger, opts ...chat.Option) *Manager {
	m := &Manager{
		sessions: cache.New(ttl, cleanupInterval),
		backend:  b,
		defaults: defaults,
		opts:     opts,
		log:      logger,
	}
	m.sessions.OnEvicted(func(id string, _ interface{}) {
		m.log.Info("session closed", zap.String("session_id", id))
	})
	return m
}

// Create starts a session with the configured default settings.
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	s, err := New(id, m.backend, m.defaults, m.log, m.opts...)
	if err != nil {
		return nil, err
	}

	m.sessions.SetDefault(id, s)
	m.log.Info("session created", zap.String("session_id", id))
	return s, nil
}

// Get returns the session and restarts its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.sessions.SetDefault(id, v)
	return v.(*Session), nil
}

func (m *Manager) Delete(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return ErrSessionNotFound
	}
	m.sessions.Delete(id)
	return nil
}

// Count includes sessions that expired but were not purged yet.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}
