package viz

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auravis/auravis/pkg/jsontime"
	"github.com/auravis/auravis/pkg/projector"
)

// SessionInfo is a registry-level view of one session.
type SessionInfo struct {
	ID        string            `json:"id" yaml:"id"`
	CreatedAt jsontime.Unix     `json:"created_at" yaml:"created_at"`
	Idle      jsontime.Duration `json:"idle" yaml:"idle"`
	Frames    uint64            `json:"frames" yaml:"frames"`
	Status    projector.Status  `json:"status" yaml:"status"`
}

type managedSession struct {
	*Session
	id         string
	createdAt  time.Time
	lastActive time.Time
}

// Manager is a registry of sessions keyed by ID. A janitor goroutine expires
// sessions that have been idle past the timeout.
//
// Managers are constructed explicitly with NewManager and stopped with
// Close; there is no package-level instance.
type Manager struct {
	cfg         SessionConfig
	sessionOpts []Option
	logger      *slog.Logger
	idleAfter   time.Duration
	sweepEvery  time.Duration
	onCreate    func(id string, s *Session)
	onEnd       func(id string)

	mu       sync.Mutex
	sessions map[string]*managedSession
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the registry logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithIdleTimeout sets how long a session may sit idle before the janitor
// ends it (default 5 minutes).
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleAfter = d
		}
	}
}

// WithSweepInterval sets how often the janitor runs (default 30 seconds).
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sweepEvery = d
		}
	}
}

// WithSessionOptions sets the options applied to every created session.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.sessionOpts = opts
	}
}

// WithOnCreate registers a hook invoked after a session is created, while
// no other caller can reach it yet. Used to restore persisted models.
func WithOnCreate(fn func(id string, s *Session)) ManagerOption {
	return func(m *Manager) {
		m.onCreate = fn
	}
}

// WithOnEnd registers a hook invoked after a session is closed and removed,
// whether by End, EndAll, or the janitor. It runs outside the manager lock.
func WithOnEnd(fn func(id string)) ManagerOption {
	return func(m *Manager) {
		m.onEnd = fn
	}
}

// NewManager creates a Manager and starts its janitor.
func NewManager(cfg SessionConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:        cfg.withDefaults(),
		logger:     slog.Default(),
		idleAfter:  5 * time.Minute,
		sweepEvery: 30 * time.Second,
		sessions:   make(map[string]*managedSession),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.janitor()
	return m
}

// GetOrCreate returns the session with the given ID, creating it if needed.
// A blank ID gets a fresh UUID. The returned ID is the effective one.
// Touches the session's activity clock.
func (m *Manager) GetOrCreate(id string) (*Session, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if ms, ok := m.sessions[id]; ok {
			ms.lastActive = time.Now()
			return ms.Session, id
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	ms := &managedSession{
		Session:    NewSession(m.cfg, m.sessionOpts...),
		id:         id,
		createdAt:  now,
		lastActive: now,
	}
	m.sessions[id] = ms
	m.logger.Info("viz: session created", "id", id, "sessions", len(m.sessions))
	if m.onCreate != nil {
		m.onCreate(id, ms.Session)
	}
	return ms.Session, id
}

// Get returns the session with the given ID and touches its activity clock.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	ms.lastActive = time.Now()
	return ms.Session, true
}

// End closes and removes the session with the given ID.
func (m *Manager) End(id string) bool {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	ms.Close()
	if m.onEnd != nil {
		m.onEnd(id)
	}
	m.logger.Info("viz: session ended", "id", id)
	return true
}

// EndAll closes and removes every session.
func (m *Manager) EndAll() {
	m.mu.Lock()
	ended := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		ended = append(ended, ms)
	}
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, ms := range ended {
		ms.Close()
		if m.onEnd != nil {
			m.onEnd(ms.id)
		}
	}
	if len(ended) > 0 {
		m.logger.Info("viz: all sessions ended", "count", len(ended))
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Info returns registry info for one session without touching its activity
// clock, so status polling does not keep an idle session alive.
func (m *Manager) Info(id string) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:        ms.id,
		CreatedAt: jsontime.Unix(ms.createdAt),
		Idle:      jsontime.Duration(time.Since(ms.lastActive)),
		Frames:    ms.FrameCount(),
		Status:    ms.Status(),
	}, true
}

// List returns registry info for every session, sorted by ID.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	now := time.Now()
	for _, ms := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:        ms.id,
			CreatedAt: jsontime.Unix(ms.createdAt),
			Idle:      jsontime.Duration(now.Sub(ms.lastActive)),
			Frames:    ms.FrameCount(),
			Status:    ms.Status(),
		})
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close stops the janitor and ends every session. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	<-m.done
	m.EndAll()
}

func (m *Manager) janitor() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep ends sessions idle past the timeout.
func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	var expired []*managedSession
	for id, ms := range m.sessions {
		if now.Sub(ms.lastActive) > m.idleAfter {
			delete(m.sessions, id)
			expired = append(expired, ms)
		}
	}
	m.mu.Unlock()

	for _, ms := range expired {
		ms.Close()
		if m.onEnd != nil {
			m.onEnd(ms.id)
		}
		m.logger.Info("viz: session expired", "id", ms.id, "idle", now.Sub(ms.lastActive))
	}
}
