package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/reloquent/schemacanvas/internal/persistence"
)

// Manager keeps one independent session per open project.
type Manager struct {
	store  persistence.Store
	logger *slog.Logger
	opts   Options

	mu        sync.Mutex
	sessions  map[string]*Session
	listeners []func(Event)
}

// NewManager creates a manager whose sessions share store and options.
func NewManager(st persistence.Store, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    st,
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for projectID, opening and loading it on first use.
func (m *Manager) Get(ctx context.Context, projectID string) (*Session, error) {
	if err := persistence.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if s, ok := m.sessions[projectID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := New(projectID, m.store, m.logger, m.opts)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[projectID]; ok {
		// lost a race with another opener
		return existing, nil
	}
	for _, fn := range m.listeners {
		s.OnChange(fn)
	}
	m.sessions[projectID] = s
	return s, nil
}

// Lookup returns an already open session.
func (m *Manager) Lookup(projectID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[projectID]
	return s, ok
}

// Sessions returns the open sessions ordered by project id.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// OnChange registers a listener on every current and future session.
func (m *Manager) OnChange(fn func(Event)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.OnChange(fn)
	}
}

// SaveDirty saves every session with unsaved edits and joins the errors.
func (m *Manager) SaveDirty(ctx context.Context) error {
	var errs []error
	for _, s := range m.Sessions() {
		if !s.Dirty() {
			continue
		}
		if err := s.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
