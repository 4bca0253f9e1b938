package importer

import "path"

// Filter keeps tables matching any include pattern and no exclude pattern.
// Patterns are shell globs such as "order_*". An empty include list keeps
// everything.
func Filter(tables []Table, include, exclude []string) []Table {
	var out []Table
	for _, t := range tables {
		if len(include) > 0 && !matchAny(t.Name, include) {
			continue
		}
		if matchAny(t.Name, exclude) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// OrphanedRef is a foreign key pointing outside the filtered set.
type OrphanedRef struct {
	Table           string
	ForeignKey      string
	ReferencedTable string
}

// FindOrphanedReferences returns foreign keys that reference tables not in
// the selection.
func FindOrphanedReferences(selected []Table) []OrphanedRef {
	names := make(map[string]bool, len(selected))
	for _, t := range selected {
		names[t.Name] = true
	}
	var orphans []OrphanedRef
	for _, t := range selected {
		for _, fk := range t.ForeignKeys {
			if !names[fk.ReferencedTable] {
				orphans = append(orphans, OrphanedRef{Table: t.Name, ForeignKey: fk.Name, ReferencedTable: fk.ReferencedTable})
			}
		}
	}
	return orphans
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
