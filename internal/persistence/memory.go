package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/reloquent/schemacanvas/internal/schema"
)

// Memory keeps documents in process. Used for tests and ephemeral servers.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]*schema.Document
	saves int
	fail  error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*schema.Document)}
}

func (m *Memory) LoadSchema(_ context.Context, projectID string) (*schema.Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return normalize(m.docs[projectID].Clone(), projectID, nil), nil
}

func (m *Memory) SaveSchema(_ context.Context, projectID string, doc *schema.Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.fail != nil {
		return m.fail
	}
	m.docs[projectID] = doc.Clone()
	return nil
}

// SetFail makes every following SaveSchema return err. nil clears it.
func (m *Memory) SetFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Saves returns the number of SaveSchema calls, failed ones included.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Projects lists the saved project ids in name order.
func (m *Memory) Projects(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
