package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/render"
)

// Screen pixels covered by one terminal cell.
const (
	CellWidth  = 10
	CellHeight = 20
)

type mark uint8

const (
	markNone mark = iota
	markGrid
	markEdge
	markLabel
	markNode
	markHeader
	markSelected
	markSource
)

var markStyles = map[mark]lipgloss.Style{
	markGrid:     dimStyle,
	markEdge:     edgeStyle,
	markLabel:    labelStyle,
	markHeader:   headerStyle,
	markSelected: highlightStyle,
	markSource:   successStyle,
}

// canvas is a character raster of a projected scene.
type canvas struct {
	w, h  int
	cells []rune
	marks []mark
}

func newCanvas(w, h int) *canvas {
	w, h = max(w, 0), max(h, 0)
	c := &canvas{w: w, h: h, cells: make([]rune, w*h), marks: make([]mark, w*h)}
	for i := range c.cells {
		c.cells[i] = ' '
	}
	return c
}

func (c *canvas) set(x, y int, r rune, m mark) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.cells[y*c.w+x] = r
	c.marks[y*c.w+x] = m
}

func (c *canvas) text(x, y int, s string, maxX int, m mark) {
	for _, r := range s {
		if x > maxX {
			return
		}
		c.set(x, y, r, m)
		x++
	}
}

// cellRect maps a screen rectangle onto the cells it touches.
func cellRect(r geometry.Rect) (x0, y0, x1, y1 int) {
	x0 = int(math.Floor(r.X / CellWidth))
	y0 = int(math.Floor(r.Y / CellHeight))
	x1 = int(math.Ceil((r.X+r.Width)/CellWidth)) - 1
	y1 = int(math.Ceil((r.Y+r.Height)/CellHeight)) - 1
	return x0, y0, max(x1, x0+2), max(y1, y0+1)
}

func cellOf(p geometry.Point) (int, int) {
	return int(math.Floor(p.X / CellWidth)), int(math.Floor(p.Y / CellHeight))
}

// draw rasterizes edges first so boxes cover them.
func (c *canvas) draw(sc render.Scene) {
	if sc.Grid {
		for y := 0; y < c.h; y += 2 {
			for x := 0; x < c.w; x += 4 {
				c.set(x, y, '·', markGrid)
			}
		}
	}
	for _, e := range sc.Edges {
		for _, p := range e.Curve.Sample(4 * c.w) {
			x, y := cellOf(p)
			c.set(x, y, '•', markEdge)
		}
	}
	for _, e := range sc.Edges {
		x, y := cellOf(e.LabelAt)
		label := e.Label
		if e.Selected {
			label = "[" + label + "]"
		}
		c.text(x-len(label)/2, y, label, c.w-1, markLabel)
	}
	for _, n := range sc.Nodes {
		c.node(n)
	}
}

func (c *canvas) node(n render.Node) {
	x0, y0, x1, y1 := cellRect(n.Rect)
	border := markNode
	switch {
	case n.Source:
		border = markSource
	case n.Selected:
		border = markSelected
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var r rune
			switch {
			case (y == y0 || y == y1) && (x == x0 || x == x1):
				r = corner(x == x0, y == y0)
			case y == y0 || y == y1:
				r = '─'
			case x == x0 || x == x1:
				r = '│'
			default:
				r = ' '
			}
			m := border
			if r == ' ' {
				m = markNone
			}
			c.set(x, y, r, m)
		}
	}
	c.text(x0+1, y0, " "+n.Name+" ", x1-1, markHeader)
	for i, row := range n.Rows {
		y := y0 + 1 + i
		if y >= y1 {
			c.text(x1-2, y1, "…", x1-1, border)
			break
		}
		line := row.Name + " " + row.Type
		if len(row.Badges) > 0 {
			line = strings.Join(row.Badges, ",") + " " + line
		}
		c.text(x0+1, y, line, x1-1, markNone)
	}
}

func corner(left, top bool) rune {
	switch {
	case left && top:
		return '┌'
	case top:
		return '┐'
	case left:
		return '└'
	default:
		return '┘'
	}
}

// String renders the raster with one style run per mark change.
func (c *canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.h; y++ {
		row := y * c.w
		for x := 0; x < c.w; {
			m := c.marks[row+x]
			end := x
			for end < c.w && c.marks[row+end] == m {
				end++
			}
			run := string(c.cells[row+x : row+end])
			if st, ok := markStyles[m]; ok {
				run = st.Render(run)
			}
			b.WriteString(run)
			x = end
		}
		if y < c.h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
