// Package persistence loads and saves canvas documents for the session.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/reloquent/schemacanvas/internal/schema"
)

// ErrInvalidProject is returned for project ids that cannot name a document.
var ErrInvalidProject = errors.New("invalid project id")

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Store is the persistence collaborator. LoadSchema returns an empty document
// for a project that has never been saved.
type Store interface {
	LoadSchema(ctx context.Context, projectID string) (*schema.Document, error)
	SaveSchema(ctx context.Context, projectID string, doc *schema.Document) error
	Close() error
}

// Lister is implemented by stores that can enumerate saved projects.
type Lister interface {
	Projects(ctx context.Context) ([]string, error)
}

var (
	_ Lister = (*File)(nil)
	_ Lister = (*SQLite)(nil)
	_ Lister = (*Postgres)(nil)
	_ Lister = (*Mongo)(nil)
	_ Lister = (*Memory)(nil)
	_ Lister = (*Cached)(nil)
)

// ValidateProjectID checks that id is safe as a file name and a key.
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidProject, id)
	}
	return nil
}

// normalize fills defaults on a loaded document and drops dangling
// connections.
func normalize(doc *schema.Document, projectID string, logger *slog.Logger) *schema.Document {
	if doc == nil {
		return schema.NewDocument(projectID)
	}
	if doc.ProjectID == "" {
		doc.ProjectID = projectID
	}
	if doc.Entities == nil {
		doc.Entities = []schema.Entity{}
	}
	if doc.Connections == nil {
		doc.Connections = []schema.Connection{}
	}
	if dropped := doc.Sanitize(); len(dropped) > 0 && logger != nil {
		logger.Warn("dropped dangling connections", "project", projectID, "connections", dropped)
	}
	return doc
}
