package history

import "github.com/reloquent/schemacanvas/internal/store"

// Stack is a linear undo history. index points at the last applied entry;
// entries after it are redoable.
type Stack struct {
	entries []Entry
	index   int
	limit   int
}

// NewStack returns an empty stack. A limit above zero caps the number of
// entries kept; the oldest are dropped first.
func NewStack(limit int) *Stack {
	return &Stack{index: -1, limit: limit}
}

// Record appends an entry for a mutation that has already been applied,
// discarding anything redoable.
func (s *Stack) Record(e Entry) {
	s.entries = append(s.entries[:s.index+1], e)
	s.index++
	if s.limit > 0 && len(s.entries) > s.limit {
		drop := len(s.entries) - s.limit
		s.entries = append([]Entry(nil), s.entries[drop:]...)
		s.index -= drop
	}
}

// Undo reverts the current entry. It returns nil when there is nothing to undo.
func (s *Stack) Undo(g *store.Graph) Entry {
	if !s.CanUndo() {
		return nil
	}
	e := s.entries[s.index]
	e.Revert(g)
	s.index--
	return e
}

// Redo re-applies the next entry. It returns nil when there is nothing to redo.
func (s *Stack) Redo(g *store.Graph) Entry {
	if !s.CanRedo() {
		return nil
	}
	e := s.entries[s.index+1]
	e.Apply(g)
	s.index++
	return e
}

func (s *Stack) CanUndo() bool { return s.index >= 0 }

func (s *Stack) CanRedo() bool { return s.index < len(s.entries)-1 }

// Len returns the number of entries, including redoable ones.
func (s *Stack) Len() int { return len(s.entries) }

// Index returns the position of the last applied entry, -1 when none.
func (s *Stack) Index() int { return s.index }

// Entries returns the kinds of the recorded entries in order.
func (s *Stack) Entries() []string {
	kinds := make([]string, len(s.entries))
	for i, e := range s.entries {
		kinds[i] = e.Kind()
	}
	return kinds
}

// Clear drops every entry.
func (s *Stack) Clear() {
	s.entries = nil
	s.index = -1
}
