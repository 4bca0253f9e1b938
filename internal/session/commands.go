package session

import (
	"fmt"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/history"
	"github.com/reloquent/schemacanvas/internal/render"
	"github.com/reloquent/schemacanvas/internal/resolver"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

// Align grid layout.
const (
	AlignColumns  = 4
	AlignSpacingX = 300.0
	AlignSpacingY = 250.0
	AlignOriginX  = 100.0
	AlignOriginY  = 100.0
)

// ZoomStep is the toolbar zoom factor.
const ZoomStep = 1.2

// FitPadding is the world margin kept around content by ZoomFit.
const FitPadding = 40.0

// Command names accepted by Exec.
const (
	CmdAddEntity        = "add_entity"
	CmdToggleConnection = "toggle_connection_mode"
	CmdAlign            = "align"
	CmdUndo             = "undo"
	CmdRedo             = "redo"
	CmdZoomIn           = "zoom_in"
	CmdZoomOut          = "zoom_out"
	CmdZoomFit          = "zoom_fit"
	CmdResetView        = "reset_view"
	CmdToggleGrid       = "toggle_grid"
	CmdDelete           = "delete_selection"
)

// Commands lists every toolbar command name.
var Commands = []string{
	CmdAddEntity, CmdToggleConnection, CmdAlign, CmdUndo, CmdRedo,
	CmdZoomIn, CmdZoomOut, CmdZoomFit, CmdResetView, CmdToggleGrid, CmdDelete,
}

// Exec runs a toolbar command by name. The viewport is used by zoom_fit.
func (s *Session) Exec(command string, viewport geometry.Size) error {
	switch command {
	case CmdAddEntity:
		s.AddEntity()
	case CmdToggleConnection:
		s.ToggleConnectionMode()
	case CmdAlign:
		s.AlignEntities()
	case CmdUndo:
		s.Undo()
	case CmdRedo:
		s.Redo()
	case CmdZoomIn:
		s.ZoomIn()
	case CmdZoomOut:
		s.ZoomOut()
	case CmdZoomFit:
		s.ZoomFit(viewport)
	case CmdResetView:
		s.ResetView()
	case CmdToggleGrid:
		s.ToggleGrid()
	case CmdDelete:
		s.DeleteSelection()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return nil
}

// AddEntity creates a default entity at a pseudo-random spot and selects it.
func (s *Session) AddEntity() schema.Entity {
	var e schema.Entity
	s.run(func() {
		e = s.addEntity(store.Partial{})
	})
	return e
}

func (s *Session) addEntity(p store.Partial) schema.Entity {
	e := s.graph.AddEntity(p)
	s.record(history.AddEntity{Entity: e, Index: s.graph.Entities.IndexOf(e.ID)})
	s.selection.EntityID = e.ID
	s.selection.ConnectionID = ""
	return e
}

// ToggleConnectionMode flips connection mode and returns the new value.
func (s *Session) ToggleConnectionMode() bool {
	var on bool
	s.run(func() {
		s.apply(s.machine.ToggleConnectionMode())
		on = s.machine.ConnectionMode()
	})
	return on
}

// AlignEntities lays entities out on a fixed grid in display order. The
// whole layout is one undo step.
func (s *Session) AlignEntities() {
	s.run(func() {
		var moves []history.Entry
		for i, id := range s.graph.Entities.IDs() {
			to := AlignPosition(i)
			from, _ := s.graph.Entities.Position(id)
			if from == to {
				continue
			}
			s.graph.MoveEntity(id, to)
			moves = append(moves, history.MoveEntity{EntityID: id, From: from, To: to})
		}
		if len(moves) > 0 {
			s.record(history.Batch{Label: "align", Entries: moves})
		}
	})
}

// AlignPosition is the grid slot of the i-th entity.
func AlignPosition(i int) geometry.Point {
	return geometry.Point{
		X: AlignOriginX + float64(i%AlignColumns)*AlignSpacingX,
		Y: AlignOriginY + float64(i/AlignColumns)*AlignSpacingY,
	}
}

// Undo reverts the last recorded mutation. It reports whether anything changed.
func (s *Session) Undo() bool {
	var ok bool
	s.run(func() {
		if s.history.Undo(s.graph) != nil {
			ok = true
			s.forget()
			s.changed()
		}
	})
	return ok
}

// Redo re-applies the next mutation.
func (s *Session) Redo() bool {
	var ok bool
	s.run(func() {
		if s.history.Redo(s.graph) != nil {
			ok = true
			s.forget()
			s.changed()
		}
	})
	return ok
}

// ZoomIn scales the view up by one step.
func (s *Session) ZoomIn() { s.zoom(ZoomStep) }

// ZoomOut scales the view down by one step.
func (s *Session) ZoomOut() { s.zoom(1 / ZoomStep) }

func (s *Session) zoom(factor float64) {
	s.run(func() {
		s.transform = geometry.ZoomBy(factor, s.transform, s.bounds)
		s.emit(EventScene)
	})
}

// ZoomFit frames every entity in the viewport.
func (s *Session) ZoomFit(viewport geometry.Size) {
	s.run(func() {
		content := render.ContentBounds(s.graph)
		if !content.Empty() {
			content = content.Inset(-FitPadding)
		}
		s.transform = geometry.FitToContent(content, viewport, s.bounds)
		s.emit(EventScene)
	})
}

// ResetView returns to zoom 1 with no pan.
func (s *Session) ResetView() {
	s.run(func() {
		s.transform = geometry.Identity()
		s.emit(EventScene)
	})
}

// ToggleGrid flips the background grid and returns the new value.
func (s *Session) ToggleGrid() bool {
	var on bool
	s.run(func() {
		s.grid = !s.grid
		on = s.grid
		s.emit(EventScene)
	})
	return on
}

// DeleteSelection removes the selected connection, or else the selected
// entity with its connections.
func (s *Session) DeleteSelection() bool {
	var ok bool
	s.run(func() {
		switch {
		case s.selection.ConnectionID != "":
			ok = s.removeConnection(s.selection.ConnectionID)
		case s.selection.EntityID != "":
			ok = s.removeEntity(s.selection.EntityID)
		}
	})
	return ok
}

// PendingPrompt returns the open relationship prompt.
func (s *Session) PendingPrompt() (resolver.Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Pending()
}

// ConfirmConnection creates the pending connection with the chosen type.
// The source is cleared and connection mode stays on.
func (s *Session) ConfirmConnection(typ schema.RelationshipType) (schema.Connection, error) {
	var c schema.Connection
	err := s.do(func() error {
		req, err := s.resolver.Confirm(typ)
		if err != nil {
			return err
		}
		s.emit(EventPrompt)
		s.apply(s.machine.ResolveConnection())
		c, err = s.addConnection(req.From, req.To, req.Type, req.FromField, req.ToField)
		return err
	})
	return c, err
}

// CancelConnection discards the pending pair and leaves connection mode.
func (s *Session) CancelConnection() {
	s.run(func() {
		if s.resolver.Cancel() {
			s.emit(EventPrompt)
		}
		s.apply(s.machine.CancelConnection())
	})
}

func (s *Session) addConnection(from, to string, typ schema.RelationshipType, fromField, toField string) (schema.Connection, error) {
	c, err := s.graph.AddConnection(from, to, typ, fromField, toField)
	if err != nil {
		return schema.Connection{}, err
	}
	s.record(history.AddConnection{Connection: c, Index: s.graph.Connections.IndexOf(c.ID)})
	return c, nil
}

func (s *Session) removeEntity(id string) bool {
	removal, ok := s.graph.RemoveEntity(id)
	if !ok {
		return false
	}
	s.record(history.RemoveEntity{Removal: removal})
	s.forget()
	return true
}

func (s *Session) removeConnection(id string) bool {
	placed, ok := s.graph.RemoveConnection(id)
	if !ok {
		return false
	}
	s.record(history.RemoveConnection{Placed: placed})
	s.forget()
	return true
}
