// Package importer turns the tables of a live database into a canvas document
// and explorer templates.
package importer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/store"
)

// Table is one discovered table.
type Table struct {
	Name        string
	Comment     string
	Columns     []Column
	PrimaryKey  []string
	Unique      [][]string // unique constraints and unique indexes
	ForeignKeys []ForeignKey
}

// Column is one discovered column.
type Column struct {
	Name      string
	DataType  string
	Nullable  bool
	Default   *string
	MaxLength *int
	Identity  bool
	Comment   string
}

// ForeignKey is a possibly composite reference to another table.
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
}

// Options controls how tables become a document.
type Options struct {
	Policy store.Policy
	// TypeOverrides maps a source data type to a field type, ahead of the
	// built-in normalisation.
	TypeOverrides map[string]schema.FieldType
}

// Result is a built document plus what was folded or left out.
type Result struct {
	Document  *schema.Document
	Junctions []string // tables turned into many-to-many connections
	Skipped   []string // tables and foreign keys left out, with the reason
}

var namespace = uuid.MustParse("6f1c2a8e-41c7-4b52-9d0e-5a3d5a1f7c20")

// stableID derives a deterministic id so re-importing a database yields the
// same ids.
func stableID(parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "\x00"))).String()
}

// Build maps tables onto a document laid out on the align grid. Tables whose
// names are not valid identifiers are skipped. Self references and parallel
// connections follow opts.Policy.
func Build(projectID string, tables []Table, opts Options) *Result {
	junctions := JoinTables(tables)
	isJunction := make(map[string]JoinTable, len(junctions))
	for _, j := range junctions {
		isJunction[j.Table] = j
	}

	sorted := append([]Table(nil), tables...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	res := &Result{Document: schema.NewDocument(projectID)}
	entityIDs := make(map[string]string)
	for _, t := range sorted {
		if _, ok := isJunction[t.Name]; ok {
			res.Junctions = append(res.Junctions, t.Name)
			continue
		}
		e := schema.Entity{
			ID:       stableID("entity", t.Name),
			Name:     t.Name,
			Position: session.AlignPosition(len(res.Document.Entities)),
			Fields:   fields(t, opts.TypeOverrides),
		}
		if err := schema.ValidateEntity(e); err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s (%v)", t.Name, err))
			continue
		}
		entityIDs[t.Name] = e.ID
		res.Document.Entities = append(res.Document.Entities, e)
	}

	seen := make(map[[2]string]bool)
	add := func(c schema.Connection, label string) {
		if c.From == c.To && !opts.Policy.AllowSelfReference {
			res.Skipped = append(res.Skipped, label+" (self reference)")
			return
		}
		pair := [2]string{c.From, c.To}
		if seen[pair] && !opts.Policy.AllowParallel {
			res.Skipped = append(res.Skipped, label+" (parallel)")
			return
		}
		seen[pair] = true
		res.Document.Connections = append(res.Document.Connections, c)
	}

	for _, t := range sorted {
		if _, ok := isJunction[t.Name]; ok {
			continue
		}
		for _, fk := range t.ForeignKeys {
			to, ok := entityIDs[fk.ReferencedTable]
			if !ok {
				res.Skipped = append(res.Skipped, t.Name+"."+fk.Name+" (table not imported)")
				continue
			}
			typ := schema.ManyToOne
			if t.isUnique(fk.Columns) {
				typ = schema.OneToOne
			}
			add(schema.Connection{
				ID:        stableID("fk", t.Name, fk.Name),
				From:      entityIDs[t.Name],
				To:        to,
				Type:      typ,
				FromField: fk.Columns[0],
				ToField:   first(fk.ReferencedColumns, "id"),
			}, t.Name+"."+fk.Name)
		}
	}

	for _, j := range junctions {
		from, okFrom := entityIDs[j.Left.ReferencedTable]
		to, okTo := entityIDs[j.Right.ReferencedTable]
		if !okFrom || !okTo {
			res.Skipped = append(res.Skipped, j.Table+" (table not imported)")
			continue
		}
		add(schema.Connection{
			ID:        stableID("junction", j.Table),
			From:      from,
			To:        to,
			Type:      schema.ManyToMany,
			FromField: first(j.Left.ReferencedColumns, "id"),
			ToField:   first(j.Right.ReferencedColumns, "id"),
		}, j.Table)
	}
	return res
}

// Templates returns one explorer template per table, field ids left blank.
func Templates(tables []Table, overrides map[string]schema.FieldType) []schema.Template {
	out := make([]schema.Template, 0, len(tables))
	for _, t := range tables {
		fs := fields(t, overrides)
		for i := range fs {
			fs[i].ID = ""
		}
		desc := t.Comment
		if desc == "" {
			desc = fmt.Sprintf("Imported table with %d columns", len(t.Columns))
		}
		out = append(out, schema.Template{Name: t.Name, Description: desc, Fields: fs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func fields(t Table, overrides map[string]schema.FieldType) []schema.Field {
	pk := set(t.PrimaryKey)
	fk := make(map[string]bool)
	for _, k := range t.ForeignKeys {
		for _, c := range k.Columns {
			fk[c] = true
		}
	}
	out := make([]schema.Field, 0, len(t.Columns))
	for _, c := range t.Columns {
		f := schema.Field{
			ID:         stableID("field", t.Name, c.Name),
			Name:       c.Name,
			Type:       fieldType(c.DataType, overrides),
			PrimaryKey: pk[c.Name],
			Unique:     !pk[c.Name] && t.isUnique([]string{c.Name}),
			Nullable:   c.Nullable,
			ForeignKey: fk[c.Name],
			Comment:    c.Comment,
			Length:     c.MaxLength,
		}
		switch {
		case c.Identity:
			f.AutoIncrement = true
		case c.Default != nil && strings.HasPrefix(*c.Default, "nextval("):
			f.AutoIncrement = true
		case c.Default != nil:
			f.DefaultValue = *c.Default
		}
		out = append(out, f)
	}
	return out
}

func fieldType(dataType string, overrides map[string]schema.FieldType) schema.FieldType {
	if ft, ok := overrides[strings.ToLower(dataType)]; ok {
		return ft
	}
	return schema.NormalizeType(dataType)
}

// isUnique reports whether cols exactly match the primary key or a unique
// constraint.
func (t Table) isUnique(cols []string) bool {
	if sameColumns(t.PrimaryKey, cols) {
		return true
	}
	for _, u := range t.Unique {
		if sameColumns(u, cols) {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	in := set(a)
	for _, c := range b {
		if !in[c] {
			return false
		}
	}
	return true
}

func set(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

func first(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return items[0]
}
