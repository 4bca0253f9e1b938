package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/render"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/store"
)

func testModel(t *testing.T) (Model, *session.Session) {
	t.Helper()
	sess := session.New("demo", persistence.NewMemory(), nil, session.DefaultOptions())
	m := New(sess)
	result, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return result.(Model), sess
}

func place(t *testing.T, sess *session.Session, name string, x, y float64) schema.Entity {
	t.Helper()
	e, err := sess.CreateEntity(store.Partial{Name: name, Position: &geometry.Point{X: x, Y: y}})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		result, _ := m.Update(msg)
		m = result.(Model)
	}
	return m
}

func TestViewport(t *testing.T) {
	m, _ := testModel(t)
	want := geometry.Size{Width: 800, Height: 440}
	if got := m.viewport(); got != want {
		t.Errorf("viewport = %v, want %v", got, want)
	}
}

func TestScreenPoint(t *testing.T) {
	if got := screenPoint(11, 6); got != (geometry.Point{X: 115, Y: 110}) {
		t.Errorf("screenPoint(11,6) = %v", got)
	}
}

func TestToolbarKeys(t *testing.T) {
	m, sess := testModel(t)

	m = send(m, key("a"))
	if n := len(sess.Snapshot().Entities); n != 1 {
		t.Fatalf("entities after 'a' = %d, want 1", n)
	}
	m = send(m, key("u"))
	if n := len(sess.Snapshot().Entities); n != 0 {
		t.Errorf("entities after undo = %d, want 0", n)
	}
	m = send(m, key("r"))
	if n := len(sess.Snapshot().Entities); n != 1 {
		t.Errorf("entities after redo = %d, want 1", n)
	}

	m = send(m, key("+"))
	if z := sess.Transform().Zoom; z <= 1 {
		t.Errorf("zoom after '+' = %v, want > 1", z)
	}
	m = send(m, key("0"))
	if z := sess.Transform().Zoom; z != 1 {
		t.Errorf("zoom after reset = %v, want 1", z)
	}

	m = send(m, key("c"))
	if !sess.ConnectionMode() {
		t.Error("connection mode off after 'c'")
	}
	if !strings.Contains(m.View(), "CONNECT") {
		t.Error("view does not show connection mode")
	}
	send(m, key("esc"))
	if sess.ConnectionMode() {
		t.Error("connection mode still on after esc")
	}
}

func TestMouseDrag(t *testing.T) {
	m, sess := testModel(t)
	e := place(t, sess, "users", 100, 100)

	// Cell (11,6) is screen (115,110), inside the header.
	send(m,
		tea.MouseMsg{X: 11, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 16, Y: 7, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 16, Y: 7, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
	)
	got, _ := sess.Entity(e.ID)
	if want := (geometry.Point{X: 150, Y: 120}); got.Position != want {
		t.Errorf("Position = %v, want %v", got.Position, want)
	}
	if h := sess.History(); h.Len != 2 {
		t.Errorf("history len = %d, want 2 (create + move)", h.Len)
	}
}

func TestReleaseDuringRename(t *testing.T) {
	m, sess := testModel(t)
	e := place(t, sess, "users", 100, 100)

	m = send(m,
		tea.MouseMsg{X: 11, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 16, Y: 7, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
		key("n"),
	)
	if !m.renaming {
		t.Fatal("not renaming after 'n'")
	}
	m = send(m,
		tea.MouseMsg{X: 30, Y: 7, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 30, Y: 7, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
	)
	if s := sess.InteractionState(); s != "idle" {
		t.Errorf("state = %q, want idle", s)
	}
	got, _ := sess.Entity(e.ID)
	if want := (geometry.Point{X: 150, Y: 120}); got.Position != want {
		t.Errorf("Position = %v, want %v", got.Position, want)
	}
	if h := sess.History(); h.Len != 2 {
		t.Errorf("history len = %d, want 2 (create + move)", h.Len)
	}
}

func TestMouseWheel(t *testing.T) {
	m, sess := testModel(t)
	send(m, tea.MouseMsg{X: 5, Y: 5, Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	if z := sess.Transform().Zoom; z != 1.1 {
		t.Errorf("zoom = %v, want 1.1", z)
	}
}

func TestMouseOnTitleBarIgnored(t *testing.T) {
	m, sess := testModel(t)
	place(t, sess, "users", 100, 100)
	sess.SelectEntity("")
	send(m, tea.MouseMsg{X: 11, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if s := sess.InteractionState(); s != "idle" {
		t.Errorf("state = %q, want idle", s)
	}
}

func TestRename(t *testing.T) {
	m, sess := testModel(t)
	e := place(t, sess, "users", 100, 100)

	m = send(m, key("n"))
	if !m.renaming {
		t.Fatal("not renaming after 'n'")
	}
	if m.input.Value() != "users" {
		t.Errorf("input = %q, want users", m.input.Value())
	}
	m.input.SetValue("")
	m = send(m, key("accounts"), key("enter"))
	if m.renaming {
		t.Error("still renaming after enter")
	}
	got, _ := sess.Entity(e.ID)
	if got.Name != "accounts" {
		t.Errorf("name = %q, want accounts", got.Name)
	}
}

func TestRenameInvalid(t *testing.T) {
	m, sess := testModel(t)
	e := place(t, sess, "users", 100, 100)

	m = send(m, key("n"))
	m.input.SetValue("1users")
	m = send(m, key("enter"))
	if !m.renaming {
		t.Error("rename closed on invalid name")
	}
	if m.err == nil {
		t.Error("no error for invalid name")
	}
	got, _ := sess.Entity(e.ID)
	if got.Name != "users" {
		t.Errorf("name = %q, want users", got.Name)
	}

	m = send(m, key("esc"))
	if m.renaming {
		t.Error("still renaming after esc")
	}
}

func TestRenameWithoutSelection(t *testing.T) {
	m, _ := testModel(t)
	m = send(m, key("n"))
	if m.renaming {
		t.Error("renaming with nothing selected")
	}
	if m.message == "" {
		t.Error("no hint shown")
	}
}

func TestConnectionPrompt(t *testing.T) {
	m, sess := testModel(t)
	a := place(t, sess, "users", 100, 100)
	b := place(t, sess, "posts", 400, 100)

	m = send(m, key("c"))
	m = send(m,
		tea.MouseMsg{X: 11, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 11, Y: 6, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 41, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 41, Y: 6, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft},
	)
	p, open := sess.PendingPrompt()
	if !open {
		t.Fatal("no prompt after two presses")
	}
	if view := m.View(); !strings.Contains(view, "Connect users → posts") {
		t.Errorf("view does not show the prompt:\n%s", view)
	}

	m = send(m, key("a"))
	if n := len(sess.Snapshot().Entities); n != 2 {
		t.Errorf("toolbar key handled while prompt open: %d entities", n)
	}

	m = send(m, key("2"))
	if _, open := sess.PendingPrompt(); open {
		t.Fatal("prompt still open after choosing")
	}
	doc := sess.Snapshot()
	if len(doc.Connections) != 1 {
		t.Fatalf("connections = %d, want 1", len(doc.Connections))
	}
	c := doc.Connections[0]
	if c.From != a.ID || c.To != b.ID || c.Type != p.Options[1].Type {
		t.Errorf("connection = %+v", c)
	}
	if !strings.Contains(m.message, "connected users → posts") {
		t.Errorf("message = %q", m.message)
	}
}

func TestPromptCancel(t *testing.T) {
	m, sess := testModel(t)
	place(t, sess, "users", 100, 100)
	place(t, sess, "posts", 400, 100)
	m = send(m, key("c"))
	m = send(m,
		tea.MouseMsg{X: 11, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		tea.MouseMsg{X: 41, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
	)
	if _, open := sess.PendingPrompt(); !open {
		t.Fatal("no prompt")
	}
	send(m, key("esc"))
	if _, open := sess.PendingPrompt(); open {
		t.Error("prompt open after esc")
	}
	if len(sess.Snapshot().Connections) != 0 {
		t.Error("connection created on cancel")
	}
}

func TestSave(t *testing.T) {
	m, sess := testModel(t)
	place(t, sess, "users", 100, 100)

	result, cmd := m.Update(key("s"))
	m = result.(Model)
	if !m.saving || cmd == nil {
		t.Fatal("save not started")
	}
	done := m.save()()
	m = send(m, done)
	if m.saving {
		t.Error("still saving")
	}
	if sess.Status() != session.StatusSaved {
		t.Errorf("status = %s, want saved", sess.Status())
	}
	if !strings.Contains(m.statusLine(), "saved") {
		t.Errorf("status line = %q", m.statusLine())
	}
}

func TestQuit(t *testing.T) {
	m, _ := testModel(t)
	result, cmd := m.Update(key("q"))
	if !result.(Model).Done() {
		t.Error("not done after q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestCanvasDraw(t *testing.T) {
	g := store.New()
	e := g.AddEntity(store.Partial{Name: "users", Position: &geometry.Point{X: 0, Y: 0}})
	f := g.AddEntity(store.Partial{Name: "posts", Position: &geometry.Point{X: 400, Y: 0}})
	if _, err := g.AddConnection(e.ID, f.ID, schema.OneToMany, "id", "users_id"); err != nil {
		t.Fatal(err)
	}
	sc := render.Project(g, geometry.Identity(), geometry.Size{Width: 800, Height: 400}, render.Selection{EntityID: e.ID})

	c := newCanvas(80, 20)
	c.draw(sc)
	plain := string(c.cells)
	for _, want := range []string{" users ", " posts ", "PK,AI id bigint", "┌", "┘"} {
		if !strings.Contains(plain, want) {
			t.Errorf("raster missing %q", want)
		}
	}
	if c.marks[0] != markSelected {
		t.Errorf("selected corner mark = %v, want markSelected", c.marks[0])
	}
	if !strings.ContainsRune(plain, '•') {
		t.Error("no edge drawn")
	}
}

func TestCanvasClips(t *testing.T) {
	c := newCanvas(4, 2)
	c.set(-1, 0, 'x', markNone)
	c.set(4, 1, 'x', markNone)
	c.text(2, 1, "abcdef", 3, markNone)
	if got := string(c.cells); got != "      ab" {
		t.Errorf("cells = %q", got)
	}
	if lines := strings.Split(c.String(), "\n"); len(lines) != 2 {
		t.Errorf("lines = %d, want 2", len(lines))
	}
}
