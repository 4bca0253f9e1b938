package schema

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reloquent/schemacanvas/internal/geometry"
)

func testDocument() *Document {
	n := 255
	return &Document{
		Version:   CurrentVersion,
		ProjectID: "p1",
		Entities: []Entity{
			{
				ID:       "e1",
				Name:     "users",
				Position: geometry.Point{X: 100, Y: 120},
				Fields: []Field{
					{ID: "f1", Name: "id", Type: TypeBigInt, PrimaryKey: true},
					{ID: "f2", Name: "email", Type: TypeVarchar, Unique: true, Length: &n},
				},
			},
			{
				ID:   "e2",
				Name: "posts",
				Fields: []Field{
					{ID: "f3", Name: "id", Type: TypeBigInt, PrimaryKey: true},
					{ID: "f4", Name: "users_id", Type: TypeBigInt, ForeignKey: true},
				},
			},
		},
		Connections: []Connection{
			{ID: "c1", From: "e1", To: "e2", Type: OneToMany, FromField: "id", ToField: "users_id"},
		},
	}
}

func TestWriteAndLoadYAML(t *testing.T) {
	d := testDocument()
	path := filepath.Join(t.TempDir(), "nested", "schema.yaml")

	if err := d.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	got, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	if len(got.Entities) != 2 || len(got.Connections) != 1 {
		t.Fatalf("loaded %d entities, %d connections", len(got.Entities), len(got.Connections))
	}
	if got.Entities[0].Position != (geometry.Point{X: 100, Y: 120}) {
		t.Errorf("position = %+v", got.Entities[0].Position)
	}
	if got.Entities[0].Fields[1].Length == nil || *got.Entities[0].Fields[1].Length != 255 {
		t.Error("length not preserved")
	}
	if got.Connections[0].Type != OneToMany {
		t.Errorf("type = %q", got.Connections[0].Type)
	}
}

func TestLoadYAML_Missing(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := testDocument()
	c := d.Clone()

	c.Entities[0].Fields[0].Name = "changed"
	*c.Entities[0].Fields[1].Length = 1
	c.Connections[0].Type = ManyToMany

	if d.Entities[0].Fields[0].Name != "id" {
		t.Error("field name leaked through clone")
	}
	if *d.Entities[0].Fields[1].Length != 255 {
		t.Error("length pointer shared by clone")
	}
	if d.Connections[0].Type != OneToMany {
		t.Error("connection shared by clone")
	}
}

func TestSanitizeDropsDangling(t *testing.T) {
	d := testDocument()
	d.Connections = append(d.Connections, Connection{ID: "c2", From: "e1", To: "ghost"})

	dropped := d.Sanitize()
	if len(dropped) != 1 || dropped[0] != "c2" {
		t.Errorf("dropped = %v, want [c2]", dropped)
	}
	if len(d.Connections) != 1 {
		t.Errorf("connections = %d, want 1", len(d.Connections))
	}
}

func TestSummary(t *testing.T) {
	s := testDocument().Summary()
	if !strings.Contains(s, "2 entities") || !strings.Contains(s, "one-to-many") {
		t.Errorf("unexpected summary: %s", s)
	}
}

func TestEntityPatchApply(t *testing.T) {
	e := testDocument().Entities[0]
	name := "accounts"
	EntityPatch{Name: &name}.Apply(&e)
	if e.Name != "accounts" {
		t.Errorf("Name = %q", e.Name)
	}
	if len(e.Fields) != 2 {
		t.Error("nil Fields patch must leave fields untouched")
	}
}

func TestFieldPatchApply(t *testing.T) {
	f := Field{Name: "email", Type: TypeVarchar}
	nullable := true
	typ := TypeText
	FieldPatch{Nullable: &nullable, Type: &typ}.Apply(&f)
	if !f.Nullable || f.Type != TypeText || f.Name != "email" {
		t.Errorf("patched field = %+v", f)
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"users", true},
		{"_private", true},
		{"order_items2", true},
		{"", false},
		{"2fast", false},
		{"has space", false},
		{"semi;colon", false},
		{strings.Repeat("a", 64), false},
	}
	for _, tt := range tests {
		err := ValidateIdentifier("entity name", tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateIdentifier(%q) = %v, want ok=%v", tt.name, err, tt.ok)
		}
		var ve *ValidationError
		if err != nil && !errors.As(err, &ve) {
			t.Errorf("error %v is not a *ValidationError", err)
		}
	}
}

func TestValidateFieldsDuplicate(t *testing.T) {
	err := ValidateFields([]Field{{Name: "id"}, {Name: "id"}})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestValidateFieldsUnknownType(t *testing.T) {
	if err := ValidateFields([]Field{{Name: "id", Type: "money"}}); err == nil {
		t.Error("expected unknown type error")
	}
}

func TestValidateEntity(t *testing.T) {
	if err := ValidateEntity(testDocument().Entities[0]); err != nil {
		t.Errorf("valid entity rejected: %v", err)
	}
	if err := ValidateEntity(Entity{Name: ""}); err == nil {
		t.Error("empty entity name accepted")
	}
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]FieldType{
		"integer":                     TypeInteger,
		"bigint":                      TypeBigInt,
		"character varying":           TypeVarchar,
		"character":                   TypeChar,
		"timestamp without time zone": TypeTimestamp,
		"timestamp with time zone":    TypeTimestampTZ,
		"time without time zone":      TypeTime,
		"numeric":                     TypeDecimal,
		"double precision":            TypeDouble,
		"jsonb":                       TypeJSONB,
		"USER-DEFINED":                TypeEnum,
		"tsvector":                    TypeText,
	}
	for in, want := range tests {
		if got := NormalizeType(in); got != want {
			t.Errorf("NormalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelationshipTypes(t *testing.T) {
	for _, rt := range AllRelationshipTypes {
		if !rt.Valid() {
			t.Errorf("%q should be valid", rt)
		}
		if rt.CrowsFoot() == "" || rt.Description("a", "b") == "" {
			t.Errorf("%q missing notation", rt)
		}
	}
	if RelationshipType("sideways").Valid() {
		t.Error("unknown type reported valid")
	}
	from, to := OneToMany.Glyphs()
	if from != "1" || to != "N" {
		t.Errorf("OneToMany glyphs = %s/%s", from, to)
	}
}

func TestParsePayload(t *testing.T) {
	e, err := ParsePayload([]byte(`{"type":"entity","entity":{"name":"orders","fields":[{"name":"id","type":"bigint"}]}}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if e.Name != "orders" || len(e.Fields) != 1 {
		t.Errorf("entity = %+v", e)
	}

	_, err = ParsePayload([]byte(`{"type":"file"}`))
	if !errors.Is(err, ErrUnsupportedPayload) {
		t.Errorf("err = %v, want ErrUnsupportedPayload", err)
	}

	if _, err := ParsePayload([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestDefaultTemplatesAreValid(t *testing.T) {
	for _, tpl := range DefaultTemplates() {
		if err := ValidateEntity(Entity{Name: tpl.Name, Fields: tpl.Fields}); err != nil {
			t.Errorf("template %s invalid: %v", tpl.Name, err)
		}
	}
	if _, ok := FindTemplate(DefaultTemplates(), "orders"); !ok {
		t.Error("orders template missing")
	}
}

func TestDefaultFields(t *testing.T) {
	f := DefaultFields("fid")
	if len(f) != 1 || f[0].Name != "id" || f[0].Type != TypeBigInt || !f[0].PrimaryKey || f[0].ID != "fid" {
		t.Errorf("DefaultFields = %+v", f)
	}
}
