package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateConnection is returned when parallel connections are
	// disabled and the same from/to/type edge already exists.
	ErrDuplicateConnection = errors.New("connection already exists")
	// ErrUnknownRelationship is returned for cardinalities outside the fixed set.
	ErrUnknownRelationship = errors.New("unknown relationship type")
)

// InvalidEndpointError rejects a connection whose endpoints are missing or
// not allowed by the store policy.
type InvalidEndpointError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidEndpointError) Error() string {
	return fmt.Sprintf("invalid connection endpoint %s -> %s: %s", e.From, e.To, e.Reason)
}
