package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PayloadTypeEntity tags a drag payload that carries an entity.
const PayloadTypeEntity = "entity"

// ErrUnsupportedPayload is returned for drag payloads the canvas cannot drop.
var ErrUnsupportedPayload = errors.New("unsupported drag payload")

// Template is an entity blueprint supplied by the explorer palette.
type Template struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// DragPayload is the envelope the explorer attaches to drag-start events.
type DragPayload struct {
	Type   string  `json:"type"`
	Entity *Entity `json:"entity,omitempty"`
}

// ParsePayload decodes a drag payload and returns the carried entity.
func ParsePayload(data []byte) (Entity, error) {
	var p DragPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Entity{}, fmt.Errorf("decoding drag payload: %w", err)
	}
	return p.Unwrap()
}

// Unwrap returns the entity carried by the payload.
func (p DragPayload) Unwrap() (Entity, error) {
	if p.Type != PayloadTypeEntity || p.Entity == nil {
		return Entity{}, fmt.Errorf("%w: type %q", ErrUnsupportedPayload, p.Type)
	}
	return p.Entity.Clone(), nil
}

// DefaultFields is the field list of a freshly created entity: a single
// bigint primary key called id.
func DefaultFields(fieldID string) []Field {
	return []Field{{
		ID:            fieldID,
		Name:          "id",
		Type:          TypeBigInt,
		PrimaryKey:    true,
		AutoIncrement: true,
	}}
}

func length(n int) *int { return &n }

// DefaultTemplates returns the built-in palette entries. Field ids are empty;
// the store assigns them on instantiation.
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:        "users",
			Description: "Application accounts",
			Fields: []Field{
				{Name: "id", Type: TypeBigInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "email", Type: TypeVarchar, Unique: true, Length: length(255)},
				{Name: "name", Type: TypeVarchar, Length: length(100)},
				{Name: "created_at", Type: TypeTimestampTZ, DefaultValue: "now()"},
			},
		},
		{
			Name:        "posts",
			Description: "Authored content",
			Fields: []Field{
				{Name: "id", Type: TypeBigInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "title", Type: TypeVarchar, Length: length(200)},
				{Name: "body", Type: TypeText, Nullable: true},
				{Name: "published", Type: TypeBoolean, DefaultValue: "false"},
				{Name: "created_at", Type: TypeTimestampTZ, DefaultValue: "now()"},
			},
		},
		{
			Name:        "products",
			Description: "Catalogue items",
			Fields: []Field{
				{Name: "id", Type: TypeBigInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "sku", Type: TypeVarchar, Unique: true, Length: length(64)},
				{Name: "name", Type: TypeVarchar, Length: length(200)},
				{Name: "price", Type: TypeDecimal},
			},
		},
		{
			Name:        "orders",
			Description: "Customer purchases",
			Fields: []Field{
				{Name: "id", Type: TypeBigInt, PrimaryKey: true, AutoIncrement: true},
				{Name: "status", Type: TypeVarchar, Length: length(32), DefaultValue: "'pending'"},
				{Name: "total", Type: TypeDecimal},
				{Name: "placed_at", Type: TypeTimestampTZ},
			},
		},
		{
			Name:        "audit_log",
			Description: "Append-only change records",
			Fields: []Field{
				{Name: "id", Type: TypeUUID, PrimaryKey: true},
				{Name: "action", Type: TypeVarchar, Length: length(64)},
				{Name: "payload", Type: TypeJSONB, Nullable: true},
				{Name: "recorded_at", Type: TypeTimestampTZ, DefaultValue: "now()"},
			},
		},
	}
}

// FindTemplate returns the template with the given name.
func FindTemplate(templates []Template, name string) (Template, bool) {
	for _, t := range templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
