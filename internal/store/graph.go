package store

import (
	"math/rand/v2"
	"sort"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
)

// Policy controls which connections the graph accepts.
type Policy struct {
	AllowSelfReference bool `yaml:"allow_self_reference" toml:"allow_self_reference"`
	AllowParallel      bool `yaml:"allow_parallel" toml:"allow_parallel"`
}

// DefaultPolicy forbids self references and allows parallel edges.
func DefaultPolicy() Policy {
	return Policy{AllowSelfReference: false, AllowParallel: true}
}

// Graph owns the entity and connection stores of one document and keeps
// them referentially consistent.
type Graph struct {
	Entities    *EntityStore
	Connections *ConnectionStore
	policy      Policy
}

// Option configures a Graph.
type Option func(*Graph)

// WithPolicy sets the connection policy.
func WithPolicy(p Policy) Option {
	return func(g *Graph) { g.policy = p }
}

// WithIDFunc replaces the uuid generator, mainly for tests.
func WithIDFunc(fn func() string) Option {
	return func(g *Graph) { g.Entities.newID = fn }
}

// WithRand sets the source used for default entity placement.
func WithRand(r *rand.Rand) Option {
	return func(g *Graph) { g.Entities.rng = r }
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		Entities:    newEntityStore(defaultID, rand.New(rand.NewPCG(1, 2))),
		Connections: newConnectionStore(),
		policy:      DefaultPolicy(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Policy returns the connection policy in force.
func (g *Graph) Policy() Policy { return g.policy }

// AddEntity creates an entity from p.
func (g *Graph) AddEntity(p Partial) schema.Entity {
	return g.Entities.Add(p)
}

// AddConnection validates and appends a new connection. Nothing is written
// when an error is returned.
func (g *Graph) AddConnection(from, to string, typ schema.RelationshipType, fromField, toField string) (schema.Connection, error) {
	c := schema.Connection{
		ID:        g.Entities.NewID(),
		From:      from,
		To:        to,
		Type:      typ,
		FromField: fromField,
		ToField:   toField,
	}
	if err := g.check(c, ""); err != nil {
		return schema.Connection{}, err
	}
	g.Connections.insertAt(-1, c)
	return c, nil
}

// InsertConnectionAt re-inserts a stored connection, keeping its id. The
// endpoints must exist.
func (g *Graph) InsertConnectionAt(index int, c schema.Connection) error {
	if !g.Entities.Has(c.From) || !g.Entities.Has(c.To) {
		return &InvalidEndpointError{From: c.From, To: c.To, Reason: "endpoint not found"}
	}
	if g.Connections.Has(c.ID) {
		g.Connections.remove(c.ID)
	}
	g.Connections.insertAt(index, c)
	return nil
}

// InsertEntityAt re-inserts an entity snapshot at index.
func (g *Graph) InsertEntityAt(index int, e schema.Entity) {
	g.Entities.InsertAt(index, e)
}

// UpdateEntity merges the patch; false when the id is unknown.
func (g *Graph) UpdateEntity(id string, patch schema.EntityPatch) bool {
	return g.Entities.Update(id, patch)
}

// MoveEntity writes a position without touching anything else.
func (g *Graph) MoveEntity(id string, pos geometry.Point) bool {
	return g.Entities.Move(id, pos)
}

// Removal is what RemoveEntity took out of the graph, enough to put it back.
type Removal struct {
	Entity      schema.Entity
	Index       int
	Connections []Placed
}

// Placed is a connection with the display index it occupied.
type Placed struct {
	Connection schema.Connection
	Index      int
}

// RemoveEntity deletes the entity and every connection touching it.
func (g *Graph) RemoveEntity(id string) (Removal, bool) {
	if !g.Entities.Has(id) {
		return Removal{}, false
	}
	var placed []Placed
	// Touching is sorted by index; remove from the back so earlier
	// indices stay valid for restoring in ascending order.
	ids := g.Connections.Touching(id)
	for i := len(ids) - 1; i >= 0; i-- {
		c, idx, _ := g.Connections.remove(ids[i])
		placed = append(placed, Placed{Connection: c, Index: idx})
	}
	sort.Slice(placed, func(i, j int) bool { return placed[i].Index < placed[j].Index })

	e, idx, _ := g.Entities.Remove(id)
	return Removal{Entity: e, Index: idx, Connections: placed}, true
}

// Restore undoes a RemoveEntity.
func (g *Graph) Restore(r Removal) {
	g.Entities.InsertAt(r.Index, r.Entity)
	for _, p := range r.Connections {
		g.Connections.insertAt(p.Index, p.Connection)
	}
}

// RemoveConnection deletes a connection by id.
func (g *Graph) RemoveConnection(id string) (Placed, bool) {
	c, idx, ok := g.Connections.remove(id)
	if !ok {
		return Placed{}, false
	}
	return Placed{Connection: c, Index: idx}, true
}

// UpdateConnection applies the patch after re-validating endpoints. An
// unknown id is a no-op and reports false with a nil error.
func (g *Graph) UpdateConnection(id string, patch schema.ConnectionPatch) (bool, error) {
	c, ok := g.Connections.Get(id)
	if !ok {
		return false, nil
	}
	patch.Apply(&c)
	if err := g.check(c, id); err != nil {
		return true, err
	}
	g.Connections.replace(c)
	return true, nil
}

// ReplaceConnection overwrites a stored connection with a snapshot.
func (g *Graph) ReplaceConnection(c schema.Connection) bool {
	if !g.Connections.Has(c.ID) {
		return false
	}
	g.Connections.replace(c)
	return true
}

// ReplaceEntity overwrites a stored entity with a snapshot, keeping its slot.
func (g *Graph) ReplaceEntity(e schema.Entity) bool {
	i := g.Entities.IndexOf(e.ID)
	if i < 0 {
		return false
	}
	g.Entities.entities[i] = e.Clone()
	return true
}

func (g *Graph) check(c schema.Connection, skip string) error {
	if !c.Type.Valid() {
		return ErrUnknownRelationship
	}
	if !g.Entities.Has(c.From) {
		return &InvalidEndpointError{From: c.From, To: c.To, Reason: "source entity not found"}
	}
	if !g.Entities.Has(c.To) {
		return &InvalidEndpointError{From: c.From, To: c.To, Reason: "target entity not found"}
	}
	if c.From == c.To && !g.policy.AllowSelfReference {
		return &InvalidEndpointError{From: c.From, To: c.To, Reason: "self references are not allowed"}
	}
	if !g.policy.AllowParallel && g.Connections.exists(c.From, c.To, c.Type, skip) {
		return ErrDuplicateConnection
	}
	return nil
}

// Load replaces the graph content with the document. Connections with
// missing endpoints are dropped; their ids are returned.
func (g *Graph) Load(doc *schema.Document) []string {
	g.Entities.reset()
	g.Connections.reset()
	if doc == nil {
		return nil
	}
	for _, e := range doc.Entities {
		if e.ID == "" {
			e.ID = g.Entities.NewID()
		}
		g.Entities.InsertAt(-1, e)
	}
	var dropped []string
	for _, c := range doc.Connections {
		if !g.Entities.Has(c.From) || !g.Entities.Has(c.To) || g.Connections.Has(c.ID) {
			dropped = append(dropped, c.ID)
			continue
		}
		g.Connections.insertAt(-1, c)
	}
	return dropped
}

// Document returns a deep copy of the graph as a document.
func (g *Graph) Document(projectID string) *schema.Document {
	doc := schema.NewDocument(projectID)
	doc.Entities = g.Entities.All()
	doc.Connections = g.Connections.All()
	return doc
}

// Bounds returns the world bounding box of every entity given a sizing
// function, or an empty rect when the graph is empty.
func (g *Graph) Bounds(rect func(schema.Entity) geometry.Rect) geometry.Rect {
	rects := make([]geometry.Rect, 0, len(g.Entities.entities))
	for _, e := range g.Entities.entities {
		rects = append(rects, rect(e))
	}
	return geometry.Union(rects...)
}
