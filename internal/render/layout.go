// Package render projects the graph into screen space for whichever canvas
// draws it. It only reads the graph.
package render

import (
	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/interaction"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

// Node layout in world units.
const (
	NodeWidth    = 240.0
	HeaderHeight = 40.0
	RowHeight    = 28.0
)

// NodeRect is the world rectangle an entity occupies.
func NodeRect(e schema.Entity) geometry.Rect {
	return rectAt(e.Position, len(e.Fields))
}

func rectAt(pos geometry.Point, fields int) geometry.Rect {
	return geometry.Rect{
		X:      pos.X,
		Y:      pos.Y,
		Width:  NodeWidth,
		Height: HeaderHeight + RowHeight*float64(fields),
	}
}

// ContentBounds is the world bounding box of every node.
func ContentBounds(g *store.Graph) geometry.Rect {
	return g.Bounds(NodeRect)
}

// HitTest returns the topmost entity under the screen point, or the
// background. Later entities are drawn over earlier ones.
func HitTest(g *store.Graph, t geometry.Transform, screen geometry.Point) interaction.Hit {
	world := geometry.ScreenToWorld(screen, t)
	ids := g.Entities.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		pos, _ := g.Entities.Position(ids[i])
		if rectAt(pos, g.Entities.FieldCount(ids[i])).Contains(world) {
			return interaction.HitEntity{ID: ids[i]}
		}
	}
	return interaction.HitBackground{}
}
