package webchat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/redisstream"
	"github.com/go-go-golems/chatbot/pkg/ui/web"
)

// TransportFactory returns the transport a new session talks to.
type TransportFactory func(sessionID string) chat.Transport

// Session is one browser conversation.
type Session struct {
	ID        string
	CreatedAt time.Time

	store *chat.Store
	pool  *ConnectionPool
}

func (s *Session) Store() *chat.Store { return s.store }

func (s *Session) Pool() *ConnectionPool { return s.pool }

// Topic is the bus topic carrying the session's frames.
func (s *Session) Topic() string { return topicFor(s.ID) }

func topicFor(id string) string { return "session:" + id }

type ManagerConfig struct {
	Transports  TransportFactory
	Renderer    *web.Renderer
	Bus         *redisstream.Bus
	IdleTimeout time.Duration
	Logger      zerolog.Logger
}

// Manager owns the live sessions.
type Manager struct {
	ctx    context.Context
	cfg    ManagerConfig
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("ctx is nil")
	}
	if cfg.Transports == nil {
		return nil, errors.New("no transport factory configured")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("no renderer configured")
	}
	if cfg.Bus == nil {
		return nil, errors.New("no update bus configured")
	}
	return &Manager{
		ctx:      ctx,
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "webchat-sessions").Logger(),
		sessions: map[string]*Session{},
	}, nil
}

// Create starts a new ready session whose updates are published on its topic.
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	s := &Session{ID: id, CreatedAt: time.Now()}
	s.pool = NewConnectionPool(id, m.cfg.IdleTimeout, func() { m.evictIfIdle(id) })
	s.store = chat.NewStore(m.ctx, m.cfg.Transports(id),
		chat.WithLogger(m.logger.With().Str("session_id", id).Logger()),
		chat.WithObserver(m.publisher(s)),
	)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.store.Close()
		return nil, chat.ErrClosed
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	s.pool.ScheduleIdle()
	m.logger.Info().Str("session_id", id).Int("sessions", count).Msg("session created")
	return s, nil
}

func (m *Manager) publisher(s *Session) chat.Observer {
	return func(snap chat.Snapshot) {
		payload, err := encodeFrame(m.cfg.Renderer, snap)
		if err != nil {
			m.logger.Error().Err(err).Str("session_id", s.ID).Msg("could not render frame")
			return
		}
		if err := m.cfg.Bus.Publish(s.Topic(), payload); err != nil {
			m.logger.Warn().Err(err).Str("session_id", s.ID).Uint64("version", snap.Version).Msg("could not publish frame")
		}
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove closes the session's store and websockets and forgets it. A Redis
// backed bus also loses the session's stream.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.pool.CloseAll()
	s.store.Close()
	if m.cfg.Bus.Redis() {
		if err := m.cfg.Bus.DropTopic(context.WithoutCancel(m.ctx), s.Topic()); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id).Msg("could not drop session stream")
		}
	}
	m.logger.Info().Str("session_id", id).Msg("session removed")
	return true
}

// attach registers conn with the session's pool unless the session was removed
// meanwhile, in which case conn is closed and attach reports false.
func (m *Manager) attach(s *Session, conn wsConn) bool {
	s.pool.Add(conn)
	if live, ok := m.Get(s.ID); ok && live == s {
		return true
	}
	s.pool.Remove(conn)
	return false
}

// evictIfIdle keeps a session that is still waiting on its response.
func (m *Manager) evictIfIdle(id string) {
	s, ok := m.Get(id)
	if !ok {
		return
	}
	if s.store.Status().Busy() {
		s.pool.ScheduleIdle()
		return
	}
	m.logger.Debug().Str("session_id", id).Msg("evicting idle session")
	m.Remove(id)
}

// Close removes every session. Create fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Remove(id)
	}
}
