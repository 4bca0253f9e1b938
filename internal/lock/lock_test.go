package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "demo.lock")
	if err := Acquire(path); err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	held, pid, err := IsHeld(path)
	if err != nil || !held || pid != os.Getpid() {
		t.Errorf("IsHeld = %v, %d, %v", held, pid, err)
	}
	// re-entrant for the owning process
	if err := Acquire(path); err != nil {
		t.Errorf("second Acquire error: %v", err)
	}
	if err := Release(path); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present")
	}
	if err := Release(path); err != nil {
		t.Errorf("Release of missing lock: %v", err)
	}
}

func TestAcquireStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.lock")
	// PIDs wrap far below this on every supported platform
	os.WriteFile(path, []byte("999999999"), 0o644)
	if err := Acquire(path); err != nil {
		t.Errorf("stale lock not taken over: %v", err)
	}
}

func TestAcquireHeldByOther(t *testing.T) {
	ppid := os.Getppid()
	if ppid <= 1 || !isProcessRunning(ppid) {
		t.Skip("no live parent process to impersonate")
	}
	path := filepath.Join(t.TempDir(), "demo.lock")
	os.WriteFile(path, []byte(strconv.Itoa(ppid)), 0o644)
	if err := Acquire(path); !errors.Is(err, ErrHeld) {
		t.Errorf("err = %v, want ErrHeld", err)
	}
	if err := Release(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("Release removed a lock owned by another process")
	}
}
