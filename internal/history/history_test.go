package history

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/store"
)

func testGraph(t *testing.T) *store.Graph {
	t.Helper()
	n := 0
	return store.New(store.WithIDFunc(func() string {
		n++
		return fmt.Sprintf("gen%d", n)
	}))
}

func addEntity(g *store.Graph, s *Stack, id, name string) schema.Entity {
	e := g.AddEntity(store.Partial{ID: id, Name: name, Position: &geometry.Point{}})
	s.Record(AddEntity{Entity: e, Index: g.Entities.IndexOf(e.ID)})
	return e
}

func addConnection(t *testing.T, g *store.Graph, s *Stack, from, to string, typ schema.RelationshipType, toField string) schema.Connection {
	t.Helper()
	c, err := g.AddConnection(from, to, typ, "id", toField)
	if err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	s.Record(AddConnection{Connection: c, Index: g.Connections.IndexOf(c.ID)})
	return c
}

func TestConnectionUndoRedoScenario(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	g.AddEntity(store.Partial{ID: "1", Name: "A"})
	g.AddEntity(store.Partial{ID: "2", Name: "B"})

	orig := addConnection(t, g, s, "1", "2", schema.OneToMany, "A_id")
	all := g.Connections.All()
	if len(all) != 1 || all[0].From != "1" {
		t.Fatalf("connections = %+v", all)
	}

	s.Undo(g)
	if g.Connections.Len() != 0 {
		t.Fatalf("after undo Len = %d, want 0", g.Connections.Len())
	}

	s.Redo(g)
	all = g.Connections.All()
	if len(all) != 1 || all[0] != orig {
		t.Errorf("after redo = %+v, want %+v", all, orig)
	}
}

func TestInverseLaw(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	addEntity(g, s, "a", "a")
	addEntity(g, s, "b", "b")
	addConnection(t, g, s, "a", "b", schema.OneToMany, "a_id")
	addEntity(g, s, "c", "c")
	addConnection(t, g, s, "c", "a", schema.ManyToOne, "c_id")

	for s.CanUndo() {
		before := g.Document("p")
		s.Undo(g)
		s.Redo(g)
		if after := g.Document("p"); !reflect.DeepEqual(before, after) {
			t.Fatalf("undo/redo at index %d changed state\nbefore %+v\nafter  %+v", s.Index(), *before, *after)
		}
		s.Undo(g)
	}
	if g.Entities.Len() != 0 || g.Connections.Len() != 0 {
		t.Errorf("fully undone graph has %d entities, %d connections", g.Entities.Len(), g.Connections.Len())
	}
}

func TestRecordTruncatesRedo(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	addEntity(g, s, "a", "a")
	addEntity(g, s, "b", "b")
	s.Undo(g)
	if !s.CanRedo() {
		t.Fatal("expected redo available")
	}

	addEntity(g, s, "c", "c")
	if s.CanRedo() {
		t.Error("redo still available after new mutation")
	}
	if s.Redo(g) != nil {
		t.Error("Redo after fresh mutation returned an entry")
	}
	if s.Len() != 2 || s.Index() != 1 {
		t.Errorf("Len=%d Index=%d, want 2/1", s.Len(), s.Index())
	}
	if g.Entities.Has("b") {
		t.Error("discarded entity came back")
	}
}

func TestUndoEmpty(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	if s.Undo(g) != nil || s.Redo(g) != nil {
		t.Error("empty stack returned entries")
	}
	if s.Index() != -1 {
		t.Errorf("Index = %d, want -1", s.Index())
	}
}

func TestRemoveEntityEntry(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	addEntity(g, s, "1", "A")
	addEntity(g, s, "2", "B")
	addEntity(g, s, "3", "C")
	addConnection(t, g, s, "1", "2", schema.OneToMany, "A_id")
	addConnection(t, g, s, "2", "3", schema.OneToMany, "B_id")
	addConnection(t, g, s, "3", "1", schema.OneToOne, "C_id")
	before := g.Document("p")

	removal, _ := g.RemoveEntity("1")
	s.Record(RemoveEntity{Removal: removal})
	if g.Connections.Len() != 1 {
		t.Fatalf("Len = %d after cascade, want 1", g.Connections.Len())
	}

	s.Undo(g)
	if after := g.Document("p"); !reflect.DeepEqual(before, after) {
		t.Errorf("undo of remove did not restore\nbefore %+v\nafter  %+v", *before, *after)
	}
	s.Redo(g)
	if g.Entities.Has("1") || g.Connections.Len() != 1 {
		t.Error("redo of remove did not cascade")
	}
}

func TestRemoveConnectionEntry(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	addEntity(g, s, "a", "a")
	addEntity(g, s, "b", "b")
	first := addConnection(t, g, s, "a", "b", schema.OneToMany, "a_id")
	addConnection(t, g, s, "b", "a", schema.OneToOne, "b_id")

	placed, _ := g.RemoveConnection(first.ID)
	s.Record(RemoveConnection{Placed: placed})
	s.Undo(g)
	if g.Connections.IndexOf(first.ID) != 0 {
		t.Errorf("restored at %d, want 0", g.Connections.IndexOf(first.ID))
	}
}

func TestUpdateEntityEntry(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	e := addEntity(g, s, "a", "users")

	name := "accounts"
	g.UpdateEntity(e.ID, schema.EntityPatch{Name: &name})
	after, _ := g.Entities.Get(e.ID)
	s.Record(UpdateEntity{Before: e, After: after})

	s.Undo(g)
	got, _ := g.Entities.Get(e.ID)
	if got.Name != "users" {
		t.Errorf("Name after undo = %q, want users", got.Name)
	}
	s.Redo(g)
	got, _ = g.Entities.Get(e.ID)
	if got.Name != "accounts" {
		t.Errorf("Name after redo = %q, want accounts", got.Name)
	}
}

func TestUpdateConnectionEntry(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	addEntity(g, s, "a", "a")
	addEntity(g, s, "b", "b")
	c := addConnection(t, g, s, "a", "b", schema.OneToMany, "a_id")

	typ := schema.ManyToMany
	if _, err := g.UpdateConnection(c.ID, schema.ConnectionPatch{Type: &typ}); err != nil {
		t.Fatal(err)
	}
	after, _ := g.Connections.Get(c.ID)
	s.Record(UpdateConnection{Before: c, After: after})

	s.Undo(g)
	got, _ := g.Connections.Get(c.ID)
	if got.Type != schema.OneToMany {
		t.Errorf("Type after undo = %q", got.Type)
	}
}

func TestMoveEntityEntry(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	e := addEntity(g, s, "a", "a")

	for i := 1; i <= 10; i++ {
		g.MoveEntity(e.ID, geometry.Point{X: float64(i * 10), Y: float64(i)})
	}
	s.Record(MoveEntity{EntityID: e.ID, From: e.Position, To: geometry.Point{X: 100, Y: 10}})
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2 (one entry per gesture)", s.Len())
	}

	s.Undo(g)
	if pos, _ := g.Entities.Position(e.ID); pos != e.Position {
		t.Errorf("Position after undo = %v, want %v", pos, e.Position)
	}
	s.Redo(g)
	if pos, _ := g.Entities.Position(e.ID); pos != (geometry.Point{X: 100, Y: 10}) {
		t.Errorf("Position after redo = %v", pos)
	}
}

func TestBatchRevertsInReverse(t *testing.T) {
	g := testGraph(t)
	s := NewStack(0)
	a := addEntity(g, s, "a", "a")
	b := addEntity(g, s, "b", "b")

	var moves []Entry
	for i, e := range []schema.Entity{a, b} {
		to := geometry.Point{X: 100 + float64(i)*300, Y: 100}
		g.MoveEntity(e.ID, to)
		moves = append(moves, MoveEntity{EntityID: e.ID, From: e.Position, To: to})
	}
	s.Record(Batch{Label: "align", Entries: moves})

	s.Undo(g)
	for _, e := range []schema.Entity{a, b} {
		if pos, _ := g.Entities.Position(e.ID); pos != e.Position {
			t.Errorf("%s at %v after undo, want %v", e.ID, pos, e.Position)
		}
	}
	if got := s.Entries(); got[len(got)-1] != KindBatch {
		t.Errorf("Entries = %v", got)
	}
}

func TestLimit(t *testing.T) {
	g := testGraph(t)
	s := NewStack(3)
	for i := 0; i < 5; i++ {
		addEntity(g, s, fmt.Sprintf("e%d", i), fmt.Sprintf("t%d", i))
	}
	if s.Len() != 3 || s.Index() != 2 {
		t.Errorf("Len=%d Index=%d, want 3/2", s.Len(), s.Index())
	}
	for s.CanUndo() {
		s.Undo(g)
	}
	if g.Entities.Len() != 2 {
		t.Errorf("Len = %d, want the 2 entries beyond the limit to remain", g.Entities.Len())
	}
}
