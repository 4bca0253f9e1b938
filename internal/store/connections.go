package store

import (
	"github.com/reloquent/schemacanvas/internal/schema"
)

// ConnectionStore is the ordered collection of relationships, indexed by
// endpoint so removing an entity only visits its own edges.
type ConnectionStore struct {
	connections []schema.Connection
	index       map[string]int
	// adjacency: entity -> connection ids leaving it
	outgoing map[string][]string
	// adjacency: entity -> connection ids arriving at it
	incoming map[string][]string
}

func newConnectionStore() *ConnectionStore {
	return &ConnectionStore{
		index:    make(map[string]int),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// Get returns the connection with the given id.
func (s *ConnectionStore) Get(id string) (schema.Connection, bool) {
	i, ok := s.index[id]
	if !ok {
		return schema.Connection{}, false
	}
	return s.connections[i], true
}

// Has reports whether the id is known.
func (s *ConnectionStore) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IndexOf returns the display position of the connection, or -1.
func (s *ConnectionStore) IndexOf(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of connections.
func (s *ConnectionStore) Len() int { return len(s.connections) }

// All returns the connections in display order.
func (s *ConnectionStore) All() []schema.Connection {
	out := make([]schema.Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

// Touching returns the ids of every connection that starts or ends at the
// entity, in display order.
func (s *ConnectionStore) Touching(entityID string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range s.outgoing[entityID] {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range s.incoming[entityID] {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	// insertion sort by index; degree is small
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && s.index[ids[j]] < s.index[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Outgoing returns the ids of connections leaving the entity.
func (s *ConnectionStore) Outgoing(entityID string) []string {
	return append([]string(nil), s.outgoing[entityID]...)
}

// Incoming returns the ids of connections arriving at the entity.
func (s *ConnectionStore) Incoming(entityID string) []string {
	return append([]string(nil), s.incoming[entityID]...)
}

// exists reports whether a from/to/type edge is already stored, ignoring skip.
func (s *ConnectionStore) exists(from, to string, typ schema.RelationshipType, skip string) bool {
	for _, id := range s.outgoing[from] {
		if id == skip {
			continue
		}
		c := s.connections[s.index[id]]
		if c.To == to && c.Type == typ {
			return true
		}
	}
	return false
}

func (s *ConnectionStore) insertAt(index int, c schema.Connection) {
	if index < 0 || index > len(s.connections) {
		index = len(s.connections)
	}
	s.connections = append(s.connections, schema.Connection{})
	copy(s.connections[index+1:], s.connections[index:])
	s.connections[index] = c
	s.reindex(index)
	s.link(c)
}

func (s *ConnectionStore) remove(id string) (schema.Connection, int, bool) {
	i, ok := s.index[id]
	if !ok {
		return schema.Connection{}, -1, false
	}
	c := s.connections[i]
	s.connections = append(s.connections[:i], s.connections[i+1:]...)
	delete(s.index, id)
	s.reindex(i)
	s.unlink(c)
	return c, i, true
}

func (s *ConnectionStore) replace(c schema.Connection) {
	i := s.index[c.ID]
	s.unlink(s.connections[i])
	s.connections[i] = c
	s.link(c)
}

func (s *ConnectionStore) link(c schema.Connection) {
	s.outgoing[c.From] = append(s.outgoing[c.From], c.ID)
	s.incoming[c.To] = append(s.incoming[c.To], c.ID)
}

func (s *ConnectionStore) unlink(c schema.Connection) {
	s.outgoing[c.From] = without(s.outgoing[c.From], c.ID)
	if len(s.outgoing[c.From]) == 0 {
		delete(s.outgoing, c.From)
	}
	s.incoming[c.To] = without(s.incoming[c.To], c.ID)
	if len(s.incoming[c.To]) == 0 {
		delete(s.incoming, c.To)
	}
}

func (s *ConnectionStore) reindex(from int) {
	for i := from; i < len(s.connections); i++ {
		s.index[s.connections[i].ID] = i
	}
}

func (s *ConnectionStore) reset() {
	s.connections = nil
	s.index = make(map[string]int)
	s.outgoing = make(map[string][]string)
	s.incoming = make(map[string][]string)
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
