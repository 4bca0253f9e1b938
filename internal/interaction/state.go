// Package interaction classifies pointer gestures on the canvas and turns
// them into intents for the owning session. It never mutates the graph.
package interaction

import "github.com/reloquent/schemacanvas/internal/geometry"

// State is the single active interaction mode.
type State interface {
	Name() string
	isState()
}

// Idle means no gesture is in progress and connection mode is off.
type Idle struct{}

// Panning drags the view. Origin is the screen press point.
type Panning struct {
	Origin   geometry.Point
	StartPan geometry.Point
}

// DraggingEntity repositions an entity. GrabOffset is the world distance
// from the entity anchor to the press point.
type DraggingEntity struct {
	EntityID   string
	GrabOffset geometry.Point
	Start      geometry.Point
	Last       geometry.Point
	Moved      bool
}

// Connecting is the rest state while connection mode is on. An empty
// SourceID means no source is selected yet; a TargetID means the resolver
// prompt is open for the pair.
type Connecting struct {
	SourceID string
	TargetID string
}

func (Idle) Name() string           { return "idle" }
func (Panning) Name() string        { return "panning" }
func (DraggingEntity) Name() string { return "dragging-entity" }
func (Connecting) Name() string     { return "connecting" }

func (Idle) isState()           {}
func (Panning) isState()        {}
func (DraggingEntity) isState() {}
func (Connecting) isState()     {}

// Pending reports whether a source/target pair awaits a relationship type.
func (c Connecting) Pending() bool { return c.SourceID != "" && c.TargetID != "" }

// Hit is the hit-tested target of a press.
type Hit interface {
	isHit()
}

// HitBackground is the empty canvas.
type HitBackground struct{}

// HitEntity is an entity body.
type HitEntity struct {
	ID string
}

func (HitBackground) isHit() {}
func (HitEntity) isHit()     {}
