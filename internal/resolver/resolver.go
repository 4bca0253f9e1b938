// Package resolver runs the modal protocol that picks a cardinality for a
// source/target pair before a connection is created.
package resolver

import (
	"errors"
	"fmt"

	"github.com/reloquent/schemacanvas/internal/schema"
)

var (
	// ErrNoPending is returned by Confirm when no pair is waiting.
	ErrNoPending = errors.New("no pending connection")
	// ErrUnknownRelationship is returned for a type outside the four options.
	ErrUnknownRelationship = errors.New("unknown relationship type")
)

// DefaultFromField is the join field on the source side.
const DefaultFromField = "id"

// Option is one choice shown in the prompt.
type Option struct {
	Type        schema.RelationshipType `json:"type"`
	Label       string                  `json:"label"`
	Description string                  `json:"description"`
}

// Prompt is what the modal displays.
type Prompt struct {
	SourceID   string   `json:"source_id"`
	SourceName string   `json:"source_name"`
	TargetID   string   `json:"target_id"`
	TargetName string   `json:"target_name"`
	Options    []Option `json:"options"`
}

// Request is the connection to create once a type is confirmed.
type Request struct {
	From      string
	To        string
	Type      schema.RelationshipType
	FromField string
	ToField   string
}

// Resolver holds at most one pending pair.
type Resolver struct {
	pending *Prompt
}

// New returns an idle resolver.
func New() *Resolver { return &Resolver{} }

// Begin opens the prompt for a pair, replacing any previous one.
func (r *Resolver) Begin(source, target schema.Entity) Prompt {
	p := Prompt{
		SourceID:   source.ID,
		SourceName: source.Name,
		TargetID:   target.ID,
		TargetName: target.Name,
	}
	for _, t := range schema.AllRelationshipTypes {
		p.Options = append(p.Options, Option{
			Type:        t,
			Label:       t.Label(),
			Description: t.Description(source.Name, target.Name),
		})
	}
	r.pending = &p
	return p
}

// Pending returns the open prompt, if any.
func (r *Resolver) Pending() (Prompt, bool) {
	if r.pending == nil {
		return Prompt{}, false
	}
	return *r.pending, true
}

// Confirm closes the prompt with the chosen type. On an unknown type the
// prompt stays open.
func (r *Resolver) Confirm(typ schema.RelationshipType) (Request, error) {
	if r.pending == nil {
		return Request{}, ErrNoPending
	}
	if !typ.Valid() {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownRelationship, typ)
	}
	p := r.pending
	r.pending = nil
	return Request{
		From:      p.SourceID,
		To:        p.TargetID,
		Type:      typ,
		FromField: DefaultFromField,
		ToField:   p.SourceName + "_id",
	}, nil
}

// Cancel discards the pending pair. It reports whether one was open.
func (r *Resolver) Cancel() bool {
	open := r.pending != nil
	r.pending = nil
	return open
}
