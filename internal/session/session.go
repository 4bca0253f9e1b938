// Package session owns one open canvas document and is the only path through
// which it is mutated.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/history"
	"github.com/reloquent/schemacanvas/internal/interaction"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/render"
	"github.com/reloquent/schemacanvas/internal/resolver"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

var (
	// ErrNotFound is returned by inspector operations on unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrUnknownTemplate is returned when a dropped template name is unknown.
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrUnknownCommand is returned by Exec for names outside Commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownPointer is returned by Dispatch for an unknown event kind.
	ErrUnknownPointer = errors.New("unknown pointer event")
)

// Status is the save indicator.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusSaving  Status = "saving"
	StatusUnsaved Status = "unsaved"
)

// EventKind tells listeners what changed.
type EventKind string

const (
	// EventScene means the graph or the view changed.
	EventScene EventKind = "scene"
	// EventStatus means the save status changed.
	EventStatus EventKind = "save_status"
	// EventPrompt means the resolver prompt opened or closed.
	EventPrompt EventKind = "prompt"
)

// Event is delivered to OnChange listeners after the session lock is released.
type Event struct {
	ProjectID string
	Kind      EventKind
}

// Options configures a session.
type Options struct {
	Bounds       geometry.Bounds
	Policy       store.Policy
	HistoryLimit int
	Templates    []schema.Template
	Rand         *rand.Rand
	IDFunc       func() string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Bounds:       geometry.DefaultBounds(),
		Policy:       store.DefaultPolicy(),
		HistoryLimit: 500,
		Templates:    schema.DefaultTemplates(),
	}
}

// Session is one open document. It is safe for concurrent use.
type Session struct {
	ProjectID string
	Logger    *slog.Logger

	store persistence.Store

	mu        sync.Mutex
	graph     *store.Graph
	transform geometry.Transform
	bounds    geometry.Bounds
	history   *history.Stack
	machine   *interaction.Machine
	resolver  *resolver.Resolver
	templates []schema.Template
	selection render.Selection
	grid      bool

	status       Status
	version      uint64
	savedVersion uint64
	lastErr      error

	events    []EventKind
	listeners []func(Event)
}

// New creates a session for projectID backed by st.
func New(projectID string, st persistence.Store, logger *slog.Logger, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	gopts := []store.Option{store.WithPolicy(opts.Policy)}
	if opts.Rand != nil {
		gopts = append(gopts, store.WithRand(opts.Rand))
	}
	if opts.IDFunc != nil {
		gopts = append(gopts, store.WithIDFunc(opts.IDFunc))
	}
	templates := opts.Templates
	if templates == nil {
		templates = schema.DefaultTemplates()
	}
	return &Session{
		ProjectID: projectID,
		Logger:    logger.With("project", projectID),
		store:     st,
		graph:     store.New(gopts...),
		transform: geometry.Identity(),
		bounds:    opts.Bounds,
		history:   history.NewStack(opts.HistoryLimit),
		machine:   interaction.NewMachine(),
		resolver:  resolver.New(),
		templates: templates,
		grid:      true,
		status:    StatusSaved,
	}
}

// OnChange registers a listener. Listeners run on the goroutine that made
// the change, after the lock is released, and may call back into the session.
func (s *Session) OnChange(fn func(Event)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// do runs fn under the lock and then delivers the events it queued.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	err := fn()
	events := s.events
	s.events = nil
	listeners := s.listeners
	s.mu.Unlock()

	seen := make(map[EventKind]bool, len(events))
	for _, k := range events {
		if seen[k] {
			continue
		}
		seen[k] = true
		for _, l := range listeners {
			l(Event{ProjectID: s.ProjectID, Kind: k})
		}
	}
	return err
}

// run is do for mutations that cannot fail.
func (s *Session) run(fn func()) {
	_ = s.do(func() error {
		fn()
		return nil
	})
}

func (s *Session) emit(k EventKind){ s.events = append(s.events, k) }

// changed marks the document as modified.
func (s *Session) changed() {
	s.version++
	if s.status != StatusSaving && s.status != StatusUnsaved {
		s.status = StatusUnsaved
		s.emit(EventStatus)
	}
	s.emit(EventScene)
}

// Load replaces the document with the stored one. It is called once when
// the session opens and resets history and view.
func (s *Session) Load(ctx context.Context) error {
	doc, err := s.store.LoadSchema(ctx, s.ProjectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", s.ProjectID, err)
	}
	return s.do(func() error {
		if dropped := s.graph.Load(doc); len(dropped) > 0 {
			s.Logger.Warn("skipped connections with missing endpoints", "connections", dropped)
		}
		s.history.Clear()
		s.machine.Reset()
		s.resolver.Cancel()
		s.selection = render.Selection{}
		s.transform = geometry.Identity()
		s.savedVersion = s.version
		s.status = StatusSaved
		s.lastErr = nil
		s.emit(EventScene)
		s.emit(EventStatus)
		s.Logger.Info("project loaded", "entities", s.graph.Entities.Len(), "connections", s.graph.Connections.Len())
		return nil
	})
}

// Save writes the document. The lock is not held during I/O, so editing
// continues; edits made meanwhile keep the session unsaved.
func (s *Session) Save(ctx context.Context) error {
	var (
		doc     *schema.Document
		version uint64
	)
	s.run(func() {
		doc = s.graph.Document(s.ProjectID)
		version = s.version
		s.status = StatusSaving
		s.emit(EventStatus)
	})

	err := s.store.SaveSchema(ctx, s.ProjectID, doc)

	return s.do(func() error {
		defer s.emit(EventStatus)
		if err != nil {
			s.status = StatusUnsaved
			s.lastErr = err
			return fmt.Errorf("saving project %s: %w", s.ProjectID, err)
		}
		s.lastErr = nil
		if version > s.savedVersion {
			s.savedVersion = version
		}
		if s.version == s.savedVersion {
			s.status = StatusSaved
		} else {
			s.status = StatusUnsaved
		}
		s.Logger.Debug("project saved", "version", version)
		return nil
	})
}

// Status returns the save indicator.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the error of the most recent failed save, cleared by a
// successful one.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Dirty reports whether there are edits not yet saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.savedVersion
}

// Snapshot returns a deep copy of the document.
func (s *Session) Snapshot() *schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Document(s.ProjectID)
}

// Transform returns the current view transform.
func (s *Session) Transform() geometry.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

// Scene projects the document for a viewport.
func (s *Session) Scene(viewport geometry.Size) render.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.selection
	sel.SourceID = s.machine.Source()
	sc := render.Project(s.graph, s.transform, viewport, sel)
	sc.Grid = s.grid
	sc.ConnectionMode = s.machine.ConnectionMode()
	return sc
}

// InteractionState returns the name of the active interaction state.
func (s *Session) InteractionState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State().Name()
}

// ConnectionMode reports whether connection mode is on.
func (s *Session) ConnectionMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.ConnectionMode()
}

// HistoryInfo reports the undo stack position for toolbars.
type HistoryInfo struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
	Index   int  `json:"index"`
	Len     int  `json:"len"`
}

// History returns the undo stack position.
func (s *Session) History() HistoryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HistoryInfo{
		CanUndo: s.history.CanUndo(),
		CanRedo: s.history.CanRedo(),
		Index:   s.history.Index(),
		Len:     s.history.Len(),
	}
}

// record appends a history entry for a mutation already applied.
func (s *Session) record(e history.Entry) {
	s.history.Record(e)
	s.changed()
}

// view adapts the session for the interaction machine. It must only be used
// with the lock held.
type view struct{ s *Session }

func (v view) Transform() geometry.Transform { return v.s.transform }

func (v view) EntityPosition(id string) (geometry.Point, bool) {
	return v.s.graph.Entities.Position(id)
}

// ID returns the project id.
func (s *Session) ID() string { return s.ProjectID }
