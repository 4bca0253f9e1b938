// Package history records invertible graph mutations for undo and redo.
package history

import (
	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

// Entry kinds.
const (
	KindAddEntity        = "add-entity"
	KindAddConnection    = "add-connection"
	KindRemoveEntity     = "remove-entity"
	KindRemoveConnection = "remove-connection"
	KindUpdateEntity     = "update-entity"
	KindUpdateConnection = "update-connection"
	KindMoveEntity       = "move-entity"
	KindBatch            = "batch"
)

// Entry is one recorded mutation. Apply replays it onto a graph in the
// state before it ran; Revert takes a graph in the state after it ran back.
type Entry interface {
	Kind() string
	Apply(g *store.Graph)
	Revert(g *store.Graph)
}

// AddEntity records an entity creation with its full snapshot.
type AddEntity struct {
	Entity schema.Entity
	Index  int
}

func (AddEntity) Kind() string { return KindAddEntity }

func (e AddEntity) Apply(g *store.Graph) { g.InsertEntityAt(e.Index, e.Entity) }

func (e AddEntity) Revert(g *store.Graph) { g.RemoveEntity(e.Entity.ID) }

// AddConnection records a connection creation.
type AddConnection struct {
	Connection schema.Connection
	Index      int
}

func (AddConnection) Kind() string { return KindAddConnection }

func (e AddConnection) Apply(g *store.Graph) {
	// Endpoints exist whenever the stack is replayed in order.
	_ = g.InsertConnectionAt(e.Index, e.Connection)
}

func (e AddConnection) Revert(g *store.Graph) { g.RemoveConnection(e.Connection.ID) }

// RemoveEntity records a cascading entity delete.
type RemoveEntity struct {
	Removal store.Removal
}

func (RemoveEntity) Kind() string { return KindRemoveEntity }

func (e RemoveEntity) Apply(g *store.Graph) { g.RemoveEntity(e.Removal.Entity.ID) }

func (e RemoveEntity) Revert(g *store.Graph) { g.Restore(e.Removal) }

// RemoveConnection records a connection delete.
type RemoveConnection struct {
	Placed store.Placed
}

func (RemoveConnection) Kind() string { return KindRemoveConnection }

func (e RemoveConnection) Apply(g *store.Graph) { g.RemoveConnection(e.Placed.Connection.ID) }

func (e RemoveConnection) Revert(g *store.Graph) {
	_ = g.InsertConnectionAt(e.Placed.Index, e.Placed.Connection)
}

// UpdateEntity records a rename or field edit as before/after snapshots.
type UpdateEntity struct {
	Before schema.Entity
	After  schema.Entity
}

func (UpdateEntity) Kind() string { return KindUpdateEntity }

func (e UpdateEntity) Apply(g *store.Graph) { g.ReplaceEntity(e.After) }

func (e UpdateEntity) Revert(g *store.Graph) { g.ReplaceEntity(e.Before) }

// UpdateConnection records an inspector edit of a connection.
type UpdateConnection struct {
	Before schema.Connection
	After  schema.Connection
}

func (UpdateConnection) Kind() string { return KindUpdateConnection }

func (e UpdateConnection) Apply(g *store.Graph) { g.ReplaceConnection(e.After) }

func (e UpdateConnection) Revert(g *store.Graph) { g.ReplaceConnection(e.Before) }

// MoveEntity records the net displacement of one drag gesture.
type MoveEntity struct {
	EntityID string
	From     geometry.Point
	To       geometry.Point
}

func (MoveEntity) Kind() string { return KindMoveEntity }

func (e MoveEntity) Apply(g *store.Graph) { g.MoveEntity(e.EntityID, e.To) }

func (e MoveEntity) Revert(g *store.Graph) { g.MoveEntity(e.EntityID, e.From) }

// Batch groups entries that undo and redo together.
type Batch struct {
	Label   string
	Entries []Entry
}

func (Batch) Kind() string { return KindBatch }

func (b Batch) Apply(g *store.Graph) {
	for _, e := range b.Entries {
		e.Apply(g)
	}
}

func (b Batch) Revert(g *store.Graph) {
	for i := len(b.Entries) - 1; i >= 0; i-- {
		b.Entries[i].Revert(g)
	}
}
