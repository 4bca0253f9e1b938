package persistence

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/reloquent/schemacanvas/internal/schema"
)

// Cached keeps recently loaded documents in front of a slower store. Every
// hit and every cached value is a clone, so callers never share a document.
type Cached struct {
	next  Store
	cache *ristretto.Cache[string, *schema.Document]
}

// NewCached wraps next with a cache holding up to size documents.
func NewCached(next Store, size int64) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *schema.Document]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
		// Cost counts documents, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) LoadSchema(ctx context.Context, projectID string) (*schema.Document, error) {
	if doc, ok := c.cache.Get(projectID); ok {
		return doc.Clone(), nil
	}
	doc, err := c.next.LoadSchema(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(projectID, doc.Clone(), 1)
	c.cache.Wait()
	return doc, nil
}

// SaveSchema writes through. The cached copy is dropped first so a failed
// save never leaves a stale entry behind.
func (c *Cached) SaveSchema(ctx context.Context, projectID string, doc *schema.Document) error {
	c.cache.Del(projectID)
	if err := c.next.SaveSchema(ctx, projectID, doc); err != nil {
		return err
	}
	c.cache.Set(projectID, doc.Clone(), 1)
	c.cache.Wait()
	return nil
}

// Projects delegates to the wrapped store.
func (c *Cached) Projects(ctx context.Context) ([]string, error) {
	l, ok := c.next.(Lister)
	if !ok {
		return nil, fmt.Errorf("%T cannot list projects", c.next)
	}
	return l.Projects(ctx)
}

func (c *Cached) Close() error {
	c.cache.Close()
	return c.next.Close()
}
