package session

import (
	"fmt"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

// Templates returns the palette entries.
func (s *Session) Templates() []schema.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Template, len(s.templates))
	copy(out, s.templates)
	return out
}

// SetTemplates replaces the palette, for example with imported tables.
func (s *Session) SetTemplates(templates []schema.Template) {
	s.mu.Lock()
	s.templates = append([]schema.Template(nil), templates...)
	s.mu.Unlock()
}

// DropTemplate instantiates a named template with its anchor under the
// screen point.
func (s *Session) DropTemplate(name string, screen geometry.Point) (schema.Entity, error) {
	var e schema.Entity
	err := s.do(func() error {
		t, ok := schema.FindTemplate(s.templates, name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		if err := schema.ValidateIdentifier("entity name", t.Name); err != nil {
			return err
		}
		if err := schema.ValidateFields(t.Fields); err != nil {
			return err
		}
		pos := geometry.ScreenToWorld(screen, s.transform)
		fields := make([]schema.Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f.Clone()
			fields[i].ID = ""
		}
		e = s.addEntity(store.Partial{Name: t.Name, Position: &pos, Fields: fields})
		return nil
	})
	return e, err
}

// Drop instantiates a drag payload envelope at the screen point.
func (s *Session) Drop(payload []byte, screen geometry.Point) (schema.Entity, error) {
	dropped, err := schema.ParsePayload(payload)
	if err != nil {
		return schema.Entity{}, err
	}
	if dropped.Name != "" {
		if err := schema.ValidateIdentifier("entity name", dropped.Name); err != nil {
			return schema.Entity{}, err
		}
	}
	if dropped.Fields != nil {
		if err := schema.ValidateFields(dropped.Fields); err != nil {
			return schema.Entity{}, err
		}
	}
	var e schema.Entity
	s.run(func() {
		pos := geometry.ScreenToWorld(screen, s.transform)
		for i := range dropped.Fields {
			dropped.Fields[i].ID = ""
		}
		e = s.addEntity(store.Partial{Name: dropped.Name, Position: &pos, Fields: dropped.Fields})
	})
	return e, nil
}
