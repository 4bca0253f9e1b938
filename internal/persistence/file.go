package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reloquent/schemacanvas/internal/lock"
	"github.com/reloquent/schemacanvas/internal/schema"
)

// File stores one YAML document per project in a directory. Each opened
// project is guarded by a PID lock file until Close.
type File struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	locked map[string]bool
}

// NewFile creates the directory if needed.
func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &File{dir: dir, logger: logger, locked: make(map[string]bool)}, nil
}

// Path returns the document file for a project.
func (f *File) Path(projectID string) string {
	return filepath.Join(f.dir, projectID+".yaml")
}

func (f *File) lockPath(projectID string) string {
	return filepath.Join(f.dir, projectID+".lock")
}

// acquire takes the project lock once per store.
func (f *File) acquire(projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked[projectID] {
		return nil
	}
	if err := lock.Acquire(f.lockPath(projectID)); err != nil {
		return err
	}
	f.locked[projectID] = true
	return nil
}

// Projects lists the documents in the directory in name order.
func (f *File) Projects(context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".yaml")
		if ValidateProjectID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Holder reports whether another live process has the project open.
func (f *File) Holder(projectID string) (bool, int, error) {
	return lock.IsHeld(f.lockPath(projectID))
}

// Peek reads a document without taking the project lock.
func (f *File) Peek(projectID string) (*schema.Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	doc, err := schema.LoadYAML(f.Path(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return schema.NewDocument(projectID), nil
	}
	if err != nil {
		return nil, err
	}
	return normalize(doc, projectID, f.logger), nil
}

func (f *File) LoadSchema(_ context.Context, projectID string) (*schema.Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if err := f.acquire(projectID); err != nil {
		return nil, err
	}
	path := f.Path(projectID)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return schema.NewDocument(projectID), nil
	}
	doc, err := schema.LoadYAML(path)
	if err != nil {
		return nil, err
	}
	return normalize(doc, projectID, f.logger), nil
}

// SaveSchema writes to a temporary file and renames it over the document so
// a crash never leaves a half-written file.
func (f *File) SaveSchema(_ context.Context, projectID string, doc *schema.Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	if err := f.acquire(projectID); err != nil {
		return err
	}
	data, err := doc.ToYAML()
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, projectID+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing schema: %w", err)
	}
	if err := os.Rename(tmpName, f.Path(projectID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing schema file: %w", err)
	}
	f.logger.Debug("schema saved", "project", projectID, "path", f.Path(projectID), "bytes", len(data))
	return nil
}

// Close releases every project lock this store took.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for id := range f.locked {
		if err := lock.Release(f.lockPath(id)); err != nil {
			errs = append(errs, fmt.Errorf("releasing lock for %s: %w", id, err))
		}
		delete(f.locked, id)
	}
	return errors.Join(errs...)
}
