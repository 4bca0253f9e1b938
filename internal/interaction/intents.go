package interaction

import "github.com/reloquent/schemacanvas/internal/geometry"

// Intent is a request from the machine to the session.
type Intent interface {
	isIntent()
}

// PanTo sets the absolute view pan.
type PanTo struct {
	Pan geometry.Point
}

// MoveEntity writes an entity position during a drag.
type MoveEntity struct {
	EntityID string
	Position geometry.Point
}

// MoveCommitted ends a drag that changed the entity position.
type MoveCommitted struct {
	EntityID string
	From     geometry.Point
	To       geometry.Point
}

// SelectEntity makes the entity the inspector selection.
type SelectEntity struct {
	EntityID string
}

// ClearSelection empties the inspector selection.
type ClearSelection struct{}

// SourceSelected highlights the connection source. An empty id clears it.
type SourceSelected struct {
	EntityID string
}

// ConnectionRequested asks the session to open the relationship resolver.
type ConnectionRequested struct {
	SourceID string
	TargetID string
}

// ConnectionModeChanged reports the sticky toggle flipping.
type ConnectionModeChanged struct {
	Enabled bool
}

// ZoomBy multiplies the view zoom.
type ZoomBy struct {
	Factor float64
}

func (PanTo) isIntent()                 {}
func (MoveEntity) isIntent()            {}
func (MoveCommitted) isIntent()         {}
func (SelectEntity) isIntent()          {}
func (ClearSelection) isIntent()        {}
func (SourceSelected) isIntent()        {}
func (ConnectionRequested) isIntent()   {}
func (ConnectionModeChanged) isIntent() {}
func (ZoomBy) isIntent()                {}
