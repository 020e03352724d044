package introspect

import (
	"context"
	"fmt"

	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/registry"
)

// Models reads every registered model source and normalizes it into a
// ModelDescriptor, appending each to the catalog in registration order.
// Unresolvable field types and dangling relations degrade the affected
// member and land in the report; registry I/O failures are fatal.
func Models(ctx context.Context, reg registry.ModelRegistry, catalog *descriptor.Catalog, report *Report) error {
	sources, err := reg.Models(ctx)
	if err != nil {
		return fmt.Errorf("read model registry: %w", err)
	}

	models := make([]descriptor.ModelDescriptor, 0, len(sources))
	for _, src := range sources {
		models = append(models, normalizeModel(src, report))
	}

	// Relations resolve against the full model set, so they are checked in
	// a second pass once every model name is known.
	byName := make(map[string]int, len(models))
	for i, m := range models {
		byName[m.Name] = i
	}
	for i := range models {
		models[i].Relations = resolveRelations(models[i], models, byName, report)
	}

	for _, m := range models {
		if len(m.Fields) == 0 && len(m.Relations) == 0 {
			// Every field was unsupported; there is nothing to project.
			continue
		}
		if err := catalog.AddModel(m); err != nil {
			return fmt.Errorf("register model: %w", err)
		}
	}
	return nil
}

func normalizeModel(src registry.ModelSource, report *Report) descriptor.ModelDescriptor {
	m := descriptor.ModelDescriptor{Name: src.Name}

	for _, f := range src.Fields {
		field, ok := normalizeField(src.Name, f, report)
		if !ok {
			continue
		}
		m.Fields = append(m.Fields, field)
	}

	for _, r := range src.Relations {
		m.Relations = append(m.Relations, descriptor.RelationDescriptor{
			Name:        r.Name,
			Owner:       src.Name,
			Related:     r.Target,
			Cardinality: r.Cardinality,
			BackRef:     backRef(r),
		})
	}

	return m
}

// backRef preserves the declared back-reference, leaving it empty for
// explicitly one-directional relations so they skip counterpart resolution.
func backRef(r registry.RelationSource) string {
	if r.OneWay {
		return ""
	}
	return r.BackRef
}

func normalizeField(model string, f registry.FieldSource, report *Report) (descriptor.FieldDescriptor, bool) {
	field := descriptor.FieldDescriptor{
		Name:       f.Name,
		Nullable:   f.Nullable,
		HasDefault: f.HasDefault,
		Validators: f.Validators,
	}

	// A declared reference wins over the column type: the column stores the
	// key, the field means the related entity.
	if f.References != "" {
		field.Type = descriptor.TagForeignKey
		field.Refers = f.References
		return field, true
	}

	tag, ok := ResolveType(f.DeclaredType)
	if !ok {
		report.Unsupported = append(report.Unsupported, UnsupportedFieldType{
			Model:        model,
			Field:        f.Name,
			DeclaredType: f.DeclaredType,
		})
		return descriptor.FieldDescriptor{}, false
	}

	field.Type = tag
	if tag == descriptor.TagEnum {
		field.EnumValues = f.EnumValues
	}
	return field, true
}

// resolveRelations keeps only the relations whose counterpart resolves:
// the related model must exist and, unless the relation is one-directional,
// must declare a relation under the back-reference name pointing back at the
// owner. Everything else is reported as dangling and dropped.
func resolveRelations(m descriptor.ModelDescriptor, all []descriptor.ModelDescriptor, byName map[string]int, report *Report) []descriptor.RelationDescriptor {
	var kept []descriptor.RelationDescriptor
	for _, rel := range m.Relations {
		idx, ok := byName[rel.Related]
		if !ok {
			report.Dangling = append(report.Dangling, DanglingRelation{
				Model:    m.Name,
				Relation: rel.Name,
				Target:   rel.Related,
				Reason:   "related model not registered",
			})
			continue
		}

		if rel.BackRef != "" && !hasCounterpart(all[idx], rel.BackRef, m.Name) {
			report.Dangling = append(report.Dangling, DanglingRelation{
				Model:    m.Name,
				Relation: rel.Name,
				Target:   rel.Related,
				Reason:   fmt.Sprintf("no counterpart %q on %s", rel.BackRef, rel.Related),
			})
			continue
		}

		kept = append(kept, rel)
	}
	return kept
}

func hasCounterpart(related descriptor.ModelDescriptor, backRef, owner string) bool {
	for _, rel := range related.Relations {
		if rel.Name == backRef && rel.Related == owner {
			return true
		}
	}
	return false
}
