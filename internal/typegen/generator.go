// Package typegen projects a normalized catalog into TypeScript type
// declarations. The projection is a pure function of the catalog: the same
// catalog always yields byte-identical output, and fields appear in
// declaration order so regenerated files diff cleanly.
package typegen

import (
	"fmt"
	"strings"

	"github.com/ferrostack/ferro/internal/descriptor"
)

const header = `// Code generated by ferro sync-types. DO NOT EDIT.
//
// Datetime fields are ISO 8601 strings (e.g. "2024-01-15T09:30:00Z").
`

// Generate renders the type declaration file for the catalog.
func Generate(catalog *descriptor.Catalog) []byte {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")

	models := catalog.OrderedModels()
	for _, m := range models {
		writeModel(&sb, m)
	}

	writeModelIndex(&sb, models)
	return []byte(sb.String())
}

func writeModel(sb *strings.Builder, m descriptor.ModelDescriptor) {
	fmt.Fprintf(sb, "export interface %s {\n", m.Name)

	for _, f := range m.Fields {
		optional := ""
		if f.Nullable {
			optional = "?"
		}
		fmt.Fprintf(sb, "  %s%s: %s;\n", f.Name, optional, FieldType(f))
	}

	// Relations come after fields and are always optional: the backend
	// decides per response whether related entities are embedded.
	for _, rel := range m.Relations {
		fmt.Fprintf(sb, "  %s?: %s;\n", rel.Name, relationType(rel))
	}

	sb.WriteString("}\n\n")
}

// writeModelIndex emits the ModelTypes name union and the ModelMap constant
// runtime clients use to enumerate generated models.
func writeModelIndex(sb *strings.Builder, models []descriptor.ModelDescriptor) {
	if len(models) == 0 {
		sb.WriteString("export type ModelTypes = never;\n\n")
		sb.WriteString("export const ModelMap = {} as const;\n")
		return
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, fmt.Sprintf("'%s'", m.Name))
	}
	fmt.Fprintf(sb, "export type ModelTypes = %s;\n\n", strings.Join(names, " | "))

	sb.WriteString("export const ModelMap = {\n")
	for _, m := range models {
		fmt.Fprintf(sb, "  '%s': '%s',\n", m.Name, m.Name)
	}
	sb.WriteString("} as const;\n")
}

// FieldType maps one field to its TypeScript type expression via the fixed
// tag table.
func FieldType(f descriptor.FieldDescriptor) string {
	switch f.Type {
	case descriptor.TagString, descriptor.TagText:
		return "string"
	case descriptor.TagInteger, descriptor.TagFloat:
		return "number"
	case descriptor.TagBoolean:
		return "boolean"
	case descriptor.TagDatetime:
		// ISO 8601 string; the contract is documented in the file header.
		return "string"
	case descriptor.TagForeignKey:
		return f.Refers
	case descriptor.TagEnum:
		return enumUnion(f.EnumValues)
	default:
		return "unknown"
	}
}

func enumUnion(values []string) string {
	if len(values) == 0 {
		return "string"
	}
	literals := make([]string, 0, len(values))
	for _, v := range values {
		// Backslashes first so escaped quotes are not double-escaped.
		escaped := strings.ReplaceAll(v, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, "'", `\'`)
		literals = append(literals, "'"+escaped+"'")
	}
	return strings.Join(literals, " | ")
}

func relationType(rel descriptor.RelationDescriptor) string {
	switch rel.Cardinality {
	case descriptor.OneToMany, descriptor.ManyToMany:
		return rel.Related + "[]"
	default:
		return rel.Related
	}
}

// TagType maps a bare type tag to its TypeScript expression. Used for
// parameter and response references that are tags rather than models.
func TagType(tag descriptor.TypeTag) string {
	switch tag {
	case descriptor.TagString, descriptor.TagText, descriptor.TagDatetime:
		return "string"
	case descriptor.TagInteger, descriptor.TagFloat:
		return "number"
	case descriptor.TagBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// ReferenceType resolves a type reference that may be a primitive tag, a
// registered model name, or either with an array suffix. Unresolvable
// references project as unknown rather than failing the run.
func ReferenceType(catalog *descriptor.Catalog, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "void" || ref == "none" {
		return "void"
	}
	if inner, ok := strings.CutSuffix(ref, "[]"); ok {
		return ReferenceType(catalog, inner) + "[]"
	}
	if tag, ok := resolveTagRef(ref); ok {
		return TagType(tag)
	}
	if catalog.HasModel(ref) {
		return ref
	}
	return "unknown"
}

func resolveTagRef(ref string) (descriptor.TypeTag, bool) {
	switch strings.ToLower(ref) {
	case "string", "str", "text":
		return descriptor.TagString, true
	case "int", "integer":
		return descriptor.TagInteger, true
	case "float", "number":
		return descriptor.TagFloat, true
	case "bool", "boolean":
		return descriptor.TagBoolean, true
	case "datetime", "date":
		return descriptor.TagDatetime, true
	}
	return "", false
}

// ParamType resolves an endpoint parameter to its TypeScript type.
func ParamType(catalog *descriptor.Catalog, p descriptor.ParamDescriptor) string {
	if p.Type == descriptor.TagForeignKey {
		if catalog.HasModel(p.Refers) {
			return p.Refers
		}
		return "unknown"
	}
	return TagType(p.Type)
}
