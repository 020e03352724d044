package registry

import (
	"strings"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// FK describes one foreign key column on a table, as reported by a
// database-backed binding.
type FK struct {
	Column          string
	ReferencedTable string
}

// ModelName converts a snake_case table name into a PascalCase model name:
// "blog_posts" becomes "BlogPosts". Table names are not singularized; the
// mapping must stay mechanical and reversible in the reader's head.
func ModelName(table string) string {
	parts := strings.Split(table, "_")
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}

// relationName derives the owning-side relation name from a foreign key
// column: "author_id" becomes "author". Columns without the _id suffix fall
// back to the referenced table name.
func relationName(column, referencedTable string) string {
	name := strings.TrimSuffix(column, "_id")
	if name == "" || name == column {
		return strings.ToLower(referencedTable)
	}
	return name
}

// ModelsFromTables derives one ModelSource per table, synthesizing the
// relation pairs implied by foreign keys: a many-to-one relation on the
// owning table and its one-to-many counterpart on the referenced table.
// Tables are processed in the given order and fields keep column order, so
// the derived sources are deterministic for a fixed schema.
//
// Foreign keys referencing tables outside the introspected set still emit
// their owning-side relation; counterpart resolution is the introspector's
// job and such relations surface as dangling there.
func ModelsFromTables(tables []string, describe func(table string) ([]FieldSource, []FK)) []ModelSource {
	sources := make([]ModelSource, 0, len(tables))
	index := make(map[string]int, len(tables))
	fksByTable := make(map[string][]FK, len(tables))

	for _, table := range tables {
		fields, fks := describe(table)
		index[table] = len(sources)
		fksByTable[table] = fks
		sources = append(sources, ModelSource{
			Name:   ModelName(table),
			Fields: fields,
		})
	}

	for _, table := range tables {
		for _, fk := range fksByTable[table] {
			ownerRel := relationName(fk.Column, fk.ReferencedTable)
			// The referenced side's collection is named after the owning
			// table, which is conventionally already plural.
			backName := strings.ToLower(table)

			owner := &sources[index[table]]
			owner.Relations = append(owner.Relations, RelationSource{
				Name:        ownerRel,
				Target:      ModelName(fk.ReferencedTable),
				Cardinality: descriptor.ManyToOne,
				BackRef:     backName,
			})

			if refIdx, ok := index[fk.ReferencedTable]; ok {
				ref := &sources[refIdx]
				ref.Relations = append(ref.Relations, RelationSource{
					Name:        backName,
					Target:      ModelName(table),
					Cardinality: descriptor.OneToMany,
					BackRef:     ownerRel,
				})
			}
		}
	}

	return sources
}
