package schema

import (
	"fmt"
	"regexp"
)

// MaxIdentifierLength matches the PostgreSQL identifier limit.
const MaxIdentifierLength = 63

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError reports an invalid entity or field name.
type ValidationError struct {
	Field  string // what was being validated, e.g. "entity name"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ValidateIdentifier checks that name can be exported as a SQL identifier.
func ValidateIdentifier(what, name string) error {
	switch {
	case name == "":
		return &ValidationError{Field: what, Value: name, Reason: "must not be empty"}
	case len(name) > MaxIdentifierLength:
		return &ValidationError{Field: what, Value: name, Reason: fmt.Sprintf("longer than %d characters", MaxIdentifierLength)}
	case !identifierPattern.MatchString(name):
		return &ValidationError{Field: what, Value: name, Reason: "must start with a letter or underscore and contain only letters, digits and underscores"}
	}
	return nil
}

// ValidateFields checks every field name and type and rejects duplicate
// names within one entity.
func ValidateFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := ValidateIdentifier("field name", f.Name); err != nil {
			return err
		}
		if f.Type != "" && !f.Type.Valid() {
			return &ValidationError{Field: "field type", Value: string(f.Type), Reason: "unknown type"}
		}
		if seen[f.Name] {
			return &ValidationError{Field: "field name", Value: f.Name, Reason: "duplicate field name"}
		}
		seen[f.Name] = true
	}
	return nil
}

// ValidateEntity checks the entity name and its fields.
func ValidateEntity(e Entity) error {
	if err := ValidateIdentifier("entity name", e.Name); err != nil {
		return err
	}
	return ValidateFields(e.Fields)
}
