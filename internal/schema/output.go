package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a document from a YAML file.
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	d := &Document{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if d.Entities == nil {
		d.Entities = []Entity{}
	}
	if d.Connections == nil {
		d.Connections = []Connection{}
	}
	return d, nil
}

// WriteYAML writes the document to a YAML file at the given path.
func (d *Document) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the document as a YAML byte slice.
func (d *Document) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// Summary returns a human-readable summary of the document.
func (d *Document) Summary() string {
	var fields, keys int
	for _, e := range d.Entities {
		fields += len(e.Fields)
		keys += len(e.PrimaryKeys())
	}
	counts := make(map[RelationshipType]int)
	for _, c := range d.Connections {
		counts[c.Type]++
	}

	s := fmt.Sprintf("%d entities, %d fields (%d key), %d connections",
		len(d.Entities), fields, keys, len(d.Connections))
	for _, rt := range AllRelationshipTypes {
		if n := counts[rt]; n > 0 {
			s += fmt.Sprintf("\n  %-12s %d", rt, n)
		}
	}
	return s
}
