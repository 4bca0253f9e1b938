package render

import (
	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

// Selection marks what the canvas highlights.
type Selection struct {
	EntityID     string `json:"entity_id,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
	SourceID     string `json:"source_id,omitempty"`
}

// Scene is one projected frame.
type Scene struct {
	Transform      geometry.Transform `json:"transform"`
	Viewport       geometry.Size      `json:"viewport"`
	Grid           bool               `json:"grid"`
	ConnectionMode bool               `json:"connection_mode"`
	Nodes          []Node             `json:"nodes"`
	Edges          []Edge             `json:"edges"`
}

// Node is an entity in screen space.
type Node struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Rect     geometry.Rect `json:"rect"`
	Header   geometry.Rect `json:"header"`
	Rows     []Row         `json:"rows"`
	Selected bool          `json:"selected,omitempty"`
	Source   bool          `json:"source,omitempty"`
}

// Row is one field line inside a node.
type Row struct {
	FieldID  string        `json:"field_id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Badges   []string      `json:"badges,omitempty"`
	Nullable bool          `json:"nullable,omitempty"`
	Rect     geometry.Rect `json:"rect"`
}

// Edge is a connection in screen space.
type Edge struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Type      string          `json:"type"`
	Label     string          `json:"label"`
	Curve     geometry.Bezier `json:"curve"`
	Path      string          `json:"path"`
	LabelAt   geometry.Point  `json:"label_at"`
	FromGlyph string          `json:"from_glyph"`
	ToGlyph   string          `json:"to_glyph"`
	CrowsFoot string          `json:"crows_foot"`
	Selected  bool            `json:"selected,omitempty"`
}

// Project builds the scene for the current transform. The viewport is
// carried through for clients; nothing is culled.
func Project(g *store.Graph, t geometry.Transform, viewport geometry.Size, sel Selection) Scene {
	sc := Scene{
		Transform: t,
		Viewport:  viewport,
		Nodes:     make([]Node, 0, g.Entities.Len()),
		Edges:     make([]Edge, 0, g.Connections.Len()),
	}

	world := make(map[string]geometry.Rect, g.Entities.Len())
	for _, e := range g.Entities.All() {
		r := NodeRect(e)
		world[e.ID] = r
		sc.Nodes = append(sc.Nodes, projectNode(e, r, t, sel))
	}

	toScreen := func(p geometry.Point) geometry.Point { return geometry.WorldToScreen(p, t) }
	for _, c := range g.Connections.All() {
		curve := geometry.ConnectionPath(world[c.From], world[c.To]).Map(toScreen)
		fromGlyph, toGlyph := c.Type.Glyphs()
		sc.Edges = append(sc.Edges, Edge{
			ID:        c.ID,
			From:      c.From,
			To:        c.To,
			Type:      string(c.Type),
			Label:     c.Type.Label(),
			Curve:     curve,
			Path:      curve.SVG(),
			LabelAt:   curve.Midpoint(),
			FromGlyph: fromGlyph,
			ToGlyph:   toGlyph,
			CrowsFoot: c.Type.CrowsFoot(),
			Selected:  c.ID == sel.ConnectionID,
		})
	}
	return sc
}

func projectNode(e schema.Entity, r geometry.Rect, t geometry.Transform, sel Selection) Node {
	n := Node{
		ID:       e.ID,
		Name:     e.Name,
		Rect:     geometry.RectToScreen(r, t),
		Header:   geometry.RectToScreen(geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: HeaderHeight}, t),
		Rows:     make([]Row, len(e.Fields)),
		Selected: e.ID == sel.EntityID,
		Source:   e.ID == sel.SourceID,
	}
	for i, f := range e.Fields {
		row := geometry.Rect{
			X:      r.X,
			Y:      r.Y + HeaderHeight + RowHeight*float64(i),
			Width:  r.Width,
			Height: RowHeight,
		}
		n.Rows[i] = Row{
			FieldID:  f.ID,
			Name:     f.Name,
			Type:     string(f.Type),
			Badges:   Badges(f),
			Nullable: f.Nullable,
			Rect:     geometry.RectToScreen(row, t),
		}
	}
	return n
}

// Badges returns the short key markers shown next to a field.
func Badges(f schema.Field) []string {
	var b []string
	if f.PrimaryKey {
		b = append(b, "PK")
	}
	if f.ForeignKey {
		b = append(b, "FK")
	}
	if f.Unique {
		b = append(b, "UQ")
	}
	if f.AutoIncrement {
		b = append(b, "AI")
	}
	return b
}
