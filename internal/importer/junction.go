package importer

import "sort"

// JoinTable is a table that only links two parents.
type JoinTable struct {
	Table string
	Left  ForeignKey
	Right ForeignKey
}

// JoinTables detects many-to-many join tables:
//   - exactly two foreign keys
//   - no other table references it
//   - at most two columns outside the foreign keys (e.g. id, created_at)
func JoinTables(tables []Table) []JoinTable {
	referenced := make(map[string]bool)
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable != t.Name {
				referenced[fk.ReferencedTable] = true
			}
		}
	}

	var out []JoinTable
	for _, t := range tables {
		if len(t.ForeignKeys) != 2 || referenced[t.Name] {
			continue
		}
		fkCols := make(map[string]bool)
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable == t.Name {
				fkCols = nil
				break
			}
			for _, c := range fk.Columns {
				fkCols[c] = true
			}
		}
		if fkCols == nil {
			continue
		}
		others := 0
		for _, c := range t.Columns {
			if !fkCols[c.Name] {
				others++
			}
		}
		if others > 2 {
			continue
		}
		out = append(out, JoinTable{Table: t.Name, Left: t.ForeignKeys[0], Right: t.ForeignKeys[1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}
