package introspect

import (
	"strings"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// tagByDeclaredType resolves backend-declared type strings to normalized
// tags. It covers the SQL column types reported by the database bindings and
// the annotation names used by in-process registrations. Resolution is by
// exact match after lowercasing and stripping a length suffix like "(255)".
var tagByDeclaredType = map[string]descriptor.TypeTag{
	// String types
	"varchar":           descriptor.TagString,
	"character varying": descriptor.TagString,
	"character":         descriptor.TagString,
	"char":              descriptor.TagString,
	"nvarchar":          descriptor.TagString,
	"uuid":              descriptor.TagString,
	"string":            descriptor.TagString,
	"str":               descriptor.TagString,

	// Unbounded text
	"text":       descriptor.TagText,
	"mediumtext": descriptor.TagText,
	"longtext":   descriptor.TagText,
	"citext":     descriptor.TagText,
	"clob":       descriptor.TagText,

	// Integer types
	"int":       descriptor.TagInteger,
	"integer":   descriptor.TagInteger,
	"bigint":    descriptor.TagInteger,
	"smallint":  descriptor.TagInteger,
	"mediumint": descriptor.TagInteger,
	"tinyint":   descriptor.TagInteger,
	"serial":    descriptor.TagInteger,
	"bigserial": descriptor.TagInteger,
	"int2":      descriptor.TagInteger,
	"int4":      descriptor.TagInteger,
	"int8":      descriptor.TagInteger,

	// Float types
	"float":            descriptor.TagFloat,
	"float4":           descriptor.TagFloat,
	"float8":           descriptor.TagFloat,
	"double":           descriptor.TagFloat,
	"double precision": descriptor.TagFloat,
	"real":             descriptor.TagFloat,
	"decimal":          descriptor.TagFloat,
	"numeric":          descriptor.TagFloat,
	"number":           descriptor.TagFloat,

	// Boolean
	"boolean": descriptor.TagBoolean,
	"bool":    descriptor.TagBoolean,

	// Date/time
	"datetime":                    descriptor.TagDatetime,
	"date":                        descriptor.TagDatetime,
	"timestamp":                   descriptor.TagDatetime,
	"timestamptz":                 descriptor.TagDatetime,
	"timestamp with time zone":    descriptor.TagDatetime,
	"timestamp without time zone": descriptor.TagDatetime,

	// Declared relation and enum markers from in-process registrations
	"foreign_key": descriptor.TagForeignKey,
	"enum":        descriptor.TagEnum,
}

// ResolveType maps a declared type string to its tag. The boolean result is
// false for unresolvable or custom types.
func ResolveType(declared string) (descriptor.TypeTag, bool) {
	normalized := strings.ToLower(strings.TrimSpace(declared))
	if idx := strings.IndexByte(normalized, '('); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	tag, ok := tagByDeclaredType[normalized]
	return tag, ok
}
