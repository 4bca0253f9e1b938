package session

import (
	"fmt"
	"reflect"

	"github.com/reloquent/schemacanvas/internal/history"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

// DefaultFieldType is used for fields added without a type.
const DefaultFieldType = schema.TypeVarchar

// SelectedEntityID returns the inspector's entity, or "".
func (s *Session) SelectedEntityID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.EntityID
}

// SelectedConnection returns the inspector's connection.
func (s *Session) SelectedConnection() (schema.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection.ConnectionID == "" {
		return schema.Connection{}, false
	}
	return s.graph.Connections.Get(s.selection.ConnectionID)
}

// Entity returns a copy of one entity.
func (s *Session) Entity(id string) (schema.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Entities.Get(id)
}

// SelectEntity selects an entity. An empty id clears the selection.
func (s *Session) SelectEntity(id string) bool {
	var ok bool
	s.run(func() {
		if id != "" && !s.graph.Entities.Has(id) {
			return
		}
		s.selection.EntityID = id
		s.selection.ConnectionID = ""
		ok = true
		s.emit(EventScene)
	})
	return ok
}

// SelectConnection selects a connection. An empty id clears the selection.
func (s *Session) SelectConnection(id string) bool {
	var ok bool
	s.run(func() {
		if id != "" && !s.graph.Connections.Has(id) {
			return
		}
		s.selection.ConnectionID = id
		s.selection.EntityID = ""
		ok = true
		s.emit(EventScene)
	})
	return ok
}

// CreateEntity adds an entity built by an API client. Name and fields are
// validated when given.
func (s *Session) CreateEntity(p store.Partial) (schema.Entity, error) {
	if p.Name != "" {
		if err := schema.ValidateIdentifier("entity name", p.Name); err != nil {
			return schema.Entity{}, err
		}
	}
	if p.Fields != nil {
		if err := schema.ValidateFields(p.Fields); err != nil {
			return schema.Entity{}, err
		}
	}
	p.ID = ""
	var e schema.Entity
	s.run(func() {
		e = s.addEntity(p)
	})
	return e, nil
}

// UpdateEntity validates and applies an inspector edit as one undo step.
func (s *Session) UpdateEntity(id string, patch schema.EntityPatch) (schema.Entity, error) {
	if patch.Name != nil {
		if err := schema.ValidateIdentifier("entity name", *patch.Name); err != nil {
			return schema.Entity{}, err
		}
	}
	if patch.Fields != nil {
		if err := schema.ValidateFields(patch.Fields); err != nil {
			return schema.Entity{}, err
		}
	}
	var after schema.Entity
	err := s.do(func() error {
		var err error
		after, err = s.editEntity(id, func(e *schema.Entity) error {
			patch.Apply(e)
			return nil
		})
		return err
	})
	return after, err
}

// editEntity applies fn to a copy of the entity and records the change.
// Lock held.
func (s *Session) editEntity(id string, fn func(*schema.Entity) error) (schema.Entity, error) {
	before, ok := s.graph.Entities.Get(id)
	if !ok {
		return schema.Entity{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	after := before.Clone()
	if err := fn(&after); err != nil {
		return schema.Entity{}, err
	}
	for i := range after.Fields {
		if after.Fields[i].ID == "" {
			after.Fields[i].ID = s.graph.Entities.NewID()
		}
	}
	if reflect.DeepEqual(before, after) {
		return before, nil
	}
	s.graph.ReplaceEntity(after)
	s.record(history.UpdateEntity{Before: before, After: after.Clone()})
	return after, nil
}

// AddField appends a field to an entity. An empty name becomes field_N and
// an empty type becomes varchar.
func (s *Session) AddField(entityID string, f schema.Field) (schema.Field, error) {
	var added schema.Field
	err := s.do(func() error {
		e, err := s.editEntity(entityID, func(e *schema.Entity) error {
			f.ID = ""
			if f.Name == "" {
				f.Name = fmt.Sprintf("field_%d", len(e.Fields)+1)
			}
			if f.Type == "" {
				f.Type = DefaultFieldType
			}
			e.Fields = append(e.Fields, f.Clone())
			return schema.ValidateFields(e.Fields)
		})
		if err != nil {
			return err
		}
		added = e.Fields[len(e.Fields)-1]
		return nil
	})
	return added, err
}

// UpdateField applies a patch to one field.
func (s *Session) UpdateField(entityID, fieldID string, patch schema.FieldPatch) (schema.Field, error) {
	var updated schema.Field
	err := s.do(func() error {
		e, err := s.editEntity(entityID, func(e *schema.Entity) error {
			i := e.FieldIndex(fieldID)
			if i < 0 {
				return fmt.Errorf("field %s: %w", fieldID, ErrNotFound)
			}
			patch.Apply(&e.Fields[i])
			return schema.ValidateFields(e.Fields)
		})
		if err != nil {
			return err
		}
		updated = e.Fields[e.FieldIndex(fieldID)]
		return nil
	})
	return updated, err
}

// RemoveField deletes one field.
func (s *Session) RemoveField(entityID, fieldID string) error {
	return s.do(func() error {
		_, err := s.editEntity(entityID, func(e *schema.Entity) error {
			i := e.FieldIndex(fieldID)
			if i < 0 {
				return fmt.Errorf("field %s: %w", fieldID, ErrNotFound)
			}
			e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
			return nil
		})
		return err
	})
}

// MoveField changes the display and export position of a field. The index
// is clamped to the field list.
func (s *Session) MoveField(entityID, fieldID string, index int) error {
	return s.do(func() error {
		_, err := s.editEntity(entityID, func(e *schema.Entity) error {
			i := e.FieldIndex(fieldID)
			if i < 0 {
				return fmt.Errorf("field %s: %w", fieldID, ErrNotFound)
			}
			index = max(0, min(index, len(e.Fields)-1))
			f := e.Fields[i]
			e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
			e.Fields = append(e.Fields[:index], append([]schema.Field{f}, e.Fields[index:]...)...)
			return nil
		})
		return err
	})
}

// RemoveEntity deletes an entity and its connections.
func (s *Session) RemoveEntity(id string) error {
	return s.do(func() error {
		if !s.removeEntity(id) {
			return fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddConnection creates a connection directly, with the same validation and
// history as the resolver. Empty join fields default to id and
// <source name>_id.
func (s *Session) AddConnection(from, to string, typ schema.RelationshipType, fromField, toField string) (schema.Connection, error) {
	for _, name := range []string{fromField, toField} {
		if name == "" {
			continue
		}
		if err := schema.ValidateIdentifier("join field", name); err != nil {
			return schema.Connection{}, err
		}
	}
	var c schema.Connection
	err := s.do(func() error {
		if fromField == "" {
			fromField = "id"
		}
		if toField == "" {
			if src, ok := s.graph.Entities.Get(from); ok {
				toField = src.Name + "_id"
			}
		}
		var err error
		c, err = s.addConnection(from, to, typ, fromField, toField)
		return err
	})
	return c, err
}

// UpdateConnection validates and applies an inspector edit.
func (s *Session) UpdateConnection(id string, patch schema.ConnectionPatch) (schema.Connection, error) {
	for _, name := range []*string{patch.FromField, patch.ToField} {
		if name == nil {
			continue
		}
		if err := schema.ValidateIdentifier("join field", *name); err != nil {
			return schema.Connection{}, err
		}
	}
	var after schema.Connection
	err := s.do(func() error {
		before, ok := s.graph.Connections.Get(id)
		if !ok {
			return fmt.Errorf("connection %s: %w", id, ErrNotFound)
		}
		if _, err := s.graph.UpdateConnection(id, patch); err != nil {
			return err
		}
		after, _ = s.graph.Connections.Get(id)
		if after != before {
			s.record(history.UpdateConnection{Before: before, After: after})
		}
		return nil
	})
	return after, err
}

// RemoveConnection deletes a connection.
func (s *Session) RemoveConnection(id string) error {
	return s.do(func() error {
		if !s.removeConnection(id) {
			return fmt.Errorf("connection %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
