package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/session"
)

type fakeTarget struct {
	mu       sync.Mutex
	dirty    bool
	failures int
	calls    int
}

func (f *fakeTarget) ID() string { return "fake" }

func (f *fakeTarget) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

func (f *fakeTarget) Save(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("transient")
	}
	f.dirty = false
	return nil
}

func testSaver(targets ...Target) *Saver {
	return New(func() []Target { return targets }, Config{
		Interval:       10 * time.Millisecond,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	}, slog.Default())
}

func TestTickSkipsClean(t *testing.T) {
	f := &fakeTarget{}
	if failed := testSaver(f).Tick(context.Background()); failed != 0 {
		t.Errorf("failed = %d", failed)
	}
	if f.calls != 0 {
		t.Errorf("calls = %d, want 0", f.calls)
	}
}

func TestRetryRecovers(t *testing.T) {
	f := &fakeTarget{dirty: true, failures: 2}
	if failed := testSaver(f).Tick(context.Background()); failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if f.calls != 3 {
		t.Errorf("calls = %d, want 3", f.calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	f := &fakeTarget{dirty: true, failures: 100}
	if failed := testSaver(f).Tick(context.Background()); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if f.calls != 4 {
		t.Errorf("calls = %d, want 1 attempt + 3 retries", f.calls)
	}
	if !f.Dirty() {
		t.Error("target marked clean after failure")
	}
}

func TestAtLeastOneRetry(t *testing.T) {
	f := &fakeTarget{dirty: true, failures: 1}
	s := New(func() []Target { return []Target{f} }, Config{MaxRetries: 0, InitialBackoff: time.Millisecond}, slog.Default())
	if failed := s.Tick(context.Background()); failed != 0 {
		t.Errorf("failed = %d, want a retry to succeed", failed)
	}
}

func TestRunSavesSessions(t *testing.T) {
	mem := persistence.NewMemory()
	m := session.NewManager(mem, slog.Default(), session.DefaultOptions())
	s, err := m.Get(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	s.AddEntity()

	saver := New(ForManager(m), Config{Interval: 5 * time.Millisecond, MaxRetries: 1, InitialBackoff: time.Millisecond}, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- saver.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for s.Dirty() {
		select {
		case <-deadline:
			t.Fatal("session never saved")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
	if s.Status() != session.StatusSaved {
		t.Errorf("Status = %s", s.Status())
	}
}

func TestFailedAutosaveLeavesUnsaved(t *testing.T) {
	mem := persistence.NewMemory()
	mem.SetFail(errors.New("offline"))
	m := session.NewManager(mem, slog.Default(), session.DefaultOptions())
	s, _ := m.Get(context.Background(), "demo")
	s.AddEntity()

	saver := New(ForManager(m), Config{Interval: time.Hour, MaxRetries: 2, InitialBackoff: time.Millisecond}, slog.Default())
	if failed := saver.Tick(context.Background()); failed != 1 {
		t.Errorf("failed = %d", failed)
	}
	if s.Status() != session.StatusUnsaved {
		t.Errorf("Status = %s, want unsaved", s.Status())
	}
	if mem.Saves() != 3 {
		t.Errorf("Saves = %d, want 3", mem.Saves())
	}
}
