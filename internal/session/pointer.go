package session

import (
	"fmt"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/history"
	"github.com/reloquent/schemacanvas/internal/interaction"
	"github.com/reloquent/schemacanvas/internal/render"
)

// PointerDown hit-tests the press and starts a gesture.
func (s *Session) PointerDown(screen geometry.Point) {
	s.run(func() {
		hit := render.HitTest(s.graph, s.transform, screen)
		s.apply(s.machine.PointerDown(hit, screen, view{s}))
	})
}

// PointerMove continues the active gesture.
func (s *Session) PointerMove(screen geometry.Point) {
	s.run(func() {
		s.apply(s.machine.PointerMove(screen, view{s}))
	})
}

// PointerUp ends the active gesture. Callers must deliver releases observed
// anywhere, not only over the canvas.
func (s *Session) PointerUp(screen geometry.Point) {
	s.run(func() {
		s.apply(s.machine.PointerUp(screen))
	})
}

// PointerCancel ends the active gesture without a position.
func (s *Session) PointerCancel() {
	s.run(func() {
		s.apply(s.machine.PointerCancel())
	})
}

// Wheel zooms the view.
func (s *Session) Wheel(deltaY float64) {
	s.run(func() {
		s.apply(s.machine.Wheel(deltaY))
	})
}

// Pointer event kinds understood by Dispatch.
const (
	PointerKindDown   = "down"
	PointerKindMove   = "move"
	PointerKindUp     = "up"
	PointerKindCancel = "cancel"
	PointerKindWheel  = "wheel"
)

// PointerEvent is a pointer input as sent by remote clients, in screen
// coordinates.
type PointerEvent struct {
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"delta_y,omitempty"`
}

// Dispatch routes a remote pointer event to the matching input.
func (s *Session) Dispatch(ev PointerEvent) error {
	p := geometry.Point{X: ev.X, Y: ev.Y}
	switch ev.Kind {
	case PointerKindDown:
		s.PointerDown(p)
	case PointerKindMove:
		s.PointerMove(p)
	case PointerKindUp:
		s.PointerUp(p)
	case PointerKindCancel:
		s.PointerCancel()
	case PointerKindWheel:
		s.Wheel(ev.DeltaY)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPointer, ev.Kind)
	}
	return nil
}

// apply carries out machine intents. Lock held.
func (s *Session) apply(intents []interaction.Intent) {
	for _, in := range intents {
		switch i := in.(type) {
		case interaction.PanTo:
			s.transform.Pan = i.Pan
			s.emit(EventScene)
		case interaction.ZoomBy:
			s.transform = geometry.ZoomBy(i.Factor, s.transform, s.bounds)
			s.emit(EventScene)
		case interaction.MoveEntity:
			if s.graph.MoveEntity(i.EntityID, i.Position) {
				s.changed()
			}
		case interaction.MoveCommitted:
			s.record(history.MoveEntity{EntityID: i.EntityID, From: i.From, To: i.To})
		case interaction.SelectEntity:
			s.selection.EntityID = i.EntityID
			s.selection.ConnectionID = ""
			s.emit(EventScene)
		case interaction.ClearSelection:
			if s.selection.EntityID != "" || s.selection.ConnectionID != "" {
				s.selection.EntityID = ""
				s.selection.ConnectionID = ""
				s.emit(EventScene)
			}
		case interaction.SourceSelected:
			s.emit(EventScene)
		case interaction.ConnectionRequested:
			s.openPrompt(i.SourceID, i.TargetID)
		case interaction.ConnectionModeChanged:
			if !i.Enabled && s.resolver.Cancel() {
				s.emit(EventPrompt)
			}
			s.emit(EventScene)
		}
	}
}

func (s *Session) openPrompt(sourceID, targetID string) {
	src, ok1 := s.graph.Entities.Get(sourceID)
	dst, ok2 := s.graph.Entities.Get(targetID)
	if !ok1 || !ok2 {
		s.apply(s.machine.ResolveConnection())
		return
	}
	s.resolver.Begin(src, dst)
	s.emit(EventPrompt)
}

// forget clears selection and gesture state that points at a removed entity
// or connection. Lock held.
func (s *Session) forget() {
	if s.selection.EntityID != "" && !s.graph.Entities.Has(s.selection.EntityID) {
		s.selection.EntityID = ""
	}
	if s.selection.ConnectionID != "" && !s.graph.Connections.Has(s.selection.ConnectionID) {
		s.selection.ConnectionID = ""
	}
	wasPending := s.machine.Pending()
	for _, id := range []string{s.machine.Source(), s.pendingTarget()} {
		if id != "" && !s.graph.Entities.Has(id) {
			s.apply(s.machine.Forget(id))
		}
	}
	if dragged, ok := s.machine.State().(interaction.DraggingEntity); ok && !s.graph.Entities.Has(dragged.EntityID) {
		s.machine.Forget(dragged.EntityID)
	}
	if wasPending && !s.machine.Pending() && s.resolver.Cancel() {
		s.emit(EventPrompt)
	}
}

func (s *Session) pendingTarget() string {
	if c, ok := s.machine.State().(interaction.Connecting); ok {
		return c.TargetID
	}
	return ""
}
