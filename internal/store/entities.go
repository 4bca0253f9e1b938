package store

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
)

// Placement range for entities created without a position.
const (
	placeMinX, placeMaxX = 100.0, 600.0
	placeMinY, placeMaxY = 100.0, 400.0
)

// Partial describes an entity to add. Zero members are filled with defaults.
type Partial struct {
	ID       string
	Name     string
	Position *geometry.Point
	Fields   []schema.Field
}

// EntityStore is the ordered collection of entity nodes.
type EntityStore struct {
	entities []schema.Entity
	index    map[string]int
	newID    func() string
	rng      *rand.Rand
	created  int
}

func newEntityStore(newID func() string, rng *rand.Rand) *EntityStore {
	return &EntityStore{
		index: make(map[string]int),
		newID: newID,
		rng:   rng,
	}
}

// Add appends a new entity and returns a copy of it.
func (s *EntityStore) Add(p Partial) schema.Entity {
	s.created++
	e := schema.Entity{ID: p.ID, Name: p.Name}
	if e.ID == "" || s.Has(e.ID) {
		e.ID = s.newID()
	}
	if e.Name == "" {
		e.Name = fmt.Sprintf("table_%d", s.created)
	}
	if p.Position != nil {
		e.Position = *p.Position
	} else {
		e.Position = geometry.Point{
			X: placeMinX + s.rng.Float64()*(placeMaxX-placeMinX),
			Y: placeMinY + s.rng.Float64()*(placeMaxY-placeMinY),
		}
	}
	if p.Fields == nil {
		e.Fields = schema.DefaultFields(s.newID())
	} else {
		e.Fields = make([]schema.Field, len(p.Fields))
		for i, f := range p.Fields {
			f = f.Clone()
			if f.ID == "" {
				f.ID = s.newID()
			}
			e.Fields[i] = f
		}
	}

	s.index[e.ID] = len(s.entities)
	s.entities = append(s.entities, e)
	return e.Clone()
}

// InsertAt places a snapshot at index (clamped to the collection), keeping
// its id. An entity with the same id is replaced.
func (s *EntityStore) InsertAt(index int, e schema.Entity) {
	if _, ok := s.index[e.ID]; ok {
		s.Remove(e.ID)
	}
	if index < 0 || index > len(s.entities) {
		index = len(s.entities)
	}
	s.entities = append(s.entities, schema.Entity{})
	copy(s.entities[index+1:], s.entities[index:])
	s.entities[index] = e.Clone()
	s.reindex(index)
}

// Get returns a copy of the entity with the given id.
func (s *EntityStore) Get(id string) (schema.Entity, bool) {
	i, ok := s.index[id]
	if !ok {
		return schema.Entity{}, false
	}
	return s.entities[i].Clone(), true
}

// Position returns the world position of an entity without copying fields.
func (s *EntityStore) Position(id string) (geometry.Point, bool) {
	i, ok := s.index[id]
	if !ok {
		return geometry.Point{}, false
	}
	return s.entities[i].Position, true
}

// FieldCount returns the number of fields of the entity, for layout.
func (s *EntityStore) FieldCount(id string) int {
	if i, ok := s.index[id]; ok {
		return len(s.entities[i].Fields)
	}
	return 0
}

// Has reports whether the id is known.
func (s *EntityStore) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IndexOf returns the display position of the entity, or -1.
func (s *EntityStore) IndexOf(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Update merges patch into the entity. Unknown ids are ignored; the result
// reports whether the entity was found.
func (s *EntityStore) Update(id string, patch schema.EntityPatch) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	patch.Apply(&s.entities[i])
	for j := range s.entities[i].Fields {
		if s.entities[i].Fields[j].ID == "" {
			s.entities[i].Fields[j].ID = s.newID()
		}
	}
	return true
}

// Move sets the position of an entity. It runs at pointer rate and only
// writes the position.
func (s *EntityStore) Move(id string, pos geometry.Point) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.entities[i].Position = pos
	return true
}

// Remove deletes the entity. It does not touch connections; use
// Graph.RemoveEntity for the cascading delete.
func (s *EntityStore) Remove(id string) (schema.Entity, int, bool) {
	i, ok := s.index[id]
	if !ok {
		return schema.Entity{}, -1, false
	}
	e := s.entities[i]
	s.entities = append(s.entities[:i], s.entities[i+1:]...)
	delete(s.index, id)
	s.reindex(i)
	return e, i, true
}

// Len returns the number of entities.
func (s *EntityStore) Len() int { return len(s.entities) }

// All returns copies of every entity in display order.
func (s *EntityStore) All() []schema.Entity {
	out := make([]schema.Entity, len(s.entities))
	for i, e := range s.entities {
		out[i] = e.Clone()
	}
	return out
}

// IDs returns entity ids in display order.
func (s *EntityStore) IDs() []string {
	ids := make([]string, len(s.entities))
	for i, e := range s.entities {
		ids[i] = e.ID
	}
	return ids
}

func (s *EntityStore) reindex(from int) {
	for i := from; i < len(s.entities); i++ {
		s.index[s.entities[i].ID] = i
	}
}

func (s *EntityStore) reset() {
	s.entities = nil
	s.index = make(map[string]int)
}

// NewID returns a fresh identifier from the store's generator.
func (s *EntityStore) NewID() string { return s.newID() }

func defaultID() string { return uuid.NewString() }
