package schema

import (
	"github.com/reloquent/schemacanvas/internal/geometry"
)

// CurrentVersion is the document format version written by this build.
const CurrentVersion = 1

// Document is the schema handed to and from persistence: the entities and
// connections of one project. View state (zoom, pan) is not part of it.
type Document struct {
	Version     int          `json:"version" yaml:"version" bson:"version"`
	ProjectID   string       `json:"project_id,omitempty" yaml:"project_id,omitempty" bson:"project_id,omitempty"`
	Entities    []Entity     `json:"entities" yaml:"entities" bson:"entities"`
	Connections []Connection `json:"connections" yaml:"connections" bson:"connections"`
}

// Entity is one table node on the canvas.
type Entity struct {
	ID       string         `json:"id" yaml:"id" bson:"id"`
	Name     string         `json:"name" yaml:"name" bson:"name"`
	Position geometry.Point `json:"position" yaml:"position" bson:"position"`
	Fields   []Field        `json:"fields" yaml:"fields" bson:"fields"`
}

// Field is a column owned by exactly one entity.
type Field struct {
	ID            string    `json:"id" yaml:"id" bson:"id"`
	Name          string    `json:"name" yaml:"name" bson:"name"`
	Type          FieldType `json:"type" yaml:"type" bson:"type"`
	PrimaryKey    bool      `json:"primary_key,omitempty" yaml:"primary_key,omitempty" bson:"primary_key,omitempty"`
	Unique        bool      `json:"unique,omitempty" yaml:"unique,omitempty" bson:"unique,omitempty"`
	Nullable      bool      `json:"nullable,omitempty" yaml:"nullable,omitempty" bson:"nullable,omitempty"`
	AutoIncrement bool      `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty" bson:"auto_increment,omitempty"`
	ForeignKey    bool      `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty" bson:"foreign_key,omitempty"`
	DefaultValue  string    `json:"default_value,omitempty" yaml:"default_value,omitempty" bson:"default_value,omitempty"`
	Comment       string    `json:"comment,omitempty" yaml:"comment,omitempty" bson:"comment,omitempty"`
	Length        *int      `json:"length,omitempty" yaml:"length,omitempty" bson:"length,omitempty"`
}

// Connection is a directed, typed relationship between two entities.
type Connection struct {
	ID        string           `json:"id" yaml:"id" bson:"id"`
	From      string           `json:"from" yaml:"from" bson:"from"`
	To        string           `json:"to" yaml:"to" bson:"to"`
	Type      RelationshipType `json:"type" yaml:"type" bson:"type"`
	FromField string           `json:"from_field" yaml:"from_field" bson:"from_field"`
	ToField   string           `json:"to_field" yaml:"to_field" bson:"to_field"`
}

// EntityPatch carries the members of an entity update. Nil members are left
// untouched.
type EntityPatch struct {
	Name     *string         `json:"name,omitempty"`
	Position *geometry.Point `json:"position,omitempty"`
	Fields   []Field         `json:"fields,omitempty"`
}

// FieldPatch carries the members of a field update.
type FieldPatch struct {
	Name          *string    `json:"name,omitempty"`
	Type          *FieldType `json:"type,omitempty"`
	PrimaryKey    *bool      `json:"primary_key,omitempty"`
	Unique        *bool      `json:"unique,omitempty"`
	Nullable      *bool      `json:"nullable,omitempty"`
	AutoIncrement *bool      `json:"auto_increment,omitempty"`
	ForeignKey    *bool      `json:"foreign_key,omitempty"`
	DefaultValue  *string    `json:"default_value,omitempty"`
	Comment       *string    `json:"comment,omitempty"`
	Length        *int       `json:"length,omitempty"`
}

// ConnectionPatch carries the members of a connection update.
type ConnectionPatch struct {
	From      *string           `json:"from,omitempty"`
	To        *string           `json:"to,omitempty"`
	Type      *RelationshipType `json:"type,omitempty"`
	FromField *string           `json:"from_field,omitempty"`
	ToField   *string           `json:"to_field,omitempty"`
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := e
	if e.Fields != nil {
		out.Fields = make([]Field, len(e.Fields))
		for i, f := range e.Fields {
			out.Fields[i] = f.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	if f.Length != nil {
		n := *f.Length
		out.Length = &n
	}
	return out
}

// FieldIndex returns the position of the field with the given id, or -1.
func (e Entity) FieldIndex(id string) int {
	for i, f := range e.Fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// PrimaryKeys returns the names of the fields marked as primary key.
func (e Entity) PrimaryKeys() []string {
	var keys []string
	for _, f := range e.Fields {
		if f.PrimaryKey {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// Apply merges the patch into e.
func (p EntityPatch) Apply(e *Entity) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Position != nil {
		e.Position = *p.Position
	}
	if p.Fields != nil {
		e.Fields = make([]Field, len(p.Fields))
		for i, f := range p.Fields {
			e.Fields[i] = f.Clone()
		}
	}
}

// Apply merges the patch into f.
func (p FieldPatch) Apply(f *Field) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.PrimaryKey != nil {
		f.PrimaryKey = *p.PrimaryKey
	}
	if p.Unique != nil {
		f.Unique = *p.Unique
	}
	if p.Nullable != nil {
		f.Nullable = *p.Nullable
	}
	if p.AutoIncrement != nil {
		f.AutoIncrement = *p.AutoIncrement
	}
	if p.ForeignKey != nil {
		f.ForeignKey = *p.ForeignKey
	}
	if p.DefaultValue != nil {
		f.DefaultValue = *p.DefaultValue
	}
	if p.Comment != nil {
		f.Comment = *p.Comment
	}
	if p.Length != nil {
		n := *p.Length
		f.Length = &n
	}
}

// Apply merges the patch into c.
func (p ConnectionPatch) Apply(c *Connection) {
	if p.From != nil {
		c.From = *p.From
	}
	if p.To != nil {
		c.To = *p.To
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.FromField != nil {
		c.FromField = *p.FromField
	}
	if p.ToField != nil {
		c.ToField = *p.ToField
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Version:     d.Version,
		ProjectID:   d.ProjectID,
		Entities:    make([]Entity, len(d.Entities)),
		Connections: make([]Connection, len(d.Connections)),
	}
	for i, e := range d.Entities {
		out.Entities[i] = e.Clone()
	}
	copy(out.Connections, d.Connections)
	return out
}

// NewDocument returns an empty document for the project.
func NewDocument(projectID string) *Document {
	return &Document{
		Version:     CurrentVersion,
		ProjectID:   projectID,
		Entities:    []Entity{},
		Connections: []Connection{},
	}
}

// Sanitize drops connections whose endpoints are missing and returns the ids
// it removed.
func (d *Document) Sanitize() []string {
	known := make(map[string]bool, len(d.Entities))
	for _, e := range d.Entities {
		known[e.ID] = true
	}
	var dropped []string
	kept := d.Connections[:0]
	for _, c := range d.Connections {
		if known[c.From] && known[c.To] {
			kept = append(kept, c)
			continue
		}
		dropped = append(dropped, c.ID)
	}
	d.Connections = kept
	if d.Version == 0 {
		d.Version = CurrentVersion
	}
	return dropped
}
