package registry

import (
	"testing"

	"github.com/ferrostack/ferro/internal/descriptor"
)

func TestModelName(t *testing.T) {
	tests := []struct {
		table string
		want  string
	}{
		{"users", "Users"},
		{"blog_posts", "BlogPosts"},
		{"order_line_items", "OrderLineItems"},
		{"_private", "Private"},
		{"users__archive", "UsersArchive"},
	}

	for _, tt := range tests {
		if got := ModelName(tt.table); got != tt.want {
			t.Errorf("ModelName(%q) = %q, want %q", tt.table, got, tt.want)
		}
	}
}

func TestRelationName(t *testing.T) {
	tests := []struct {
		column string
		table  string
		want   string
	}{
		{"author_id", "users", "author"},
		{"parent_id", "categories", "parent"},
		{"owner", "users", "users"},
		{"_id", "users", "users"},
	}

	for _, tt := range tests {
		if got := relationName(tt.column, tt.table); got != tt.want {
			t.Errorf("relationName(%q, %q) = %q, want %q", tt.column, tt.table, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// ModelsFromTables tests
// ---------------------------------------------------------------------------

// blogSchema describes a two-table schema with one foreign key from posts to
// users.
func blogSchema(table string) ([]FieldSource, []FK) {
	switch table {
	case "users":
		return []FieldSource{
			{Name: "id", DeclaredType: "integer"},
			{Name: "email", DeclaredType: "varchar"},
		}, nil
	case "posts":
		return []FieldSource{
			{Name: "id", DeclaredType: "integer"},
			{Name: "title", DeclaredType: "varchar"},
			{Name: "author_id", DeclaredType: "integer"},
		}, []FK{{Column: "author_id", ReferencedTable: "users"}}
	}
	return nil, nil
}

func TestModelsFromTables(t *testing.T) {
	sources := ModelsFromTables([]string{"posts", "users"}, blogSchema)
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "Posts" || sources[1].Name != "Users" {
		t.Fatalf("table order not preserved: %s, %s", sources[0].Name, sources[1].Name)
	}

	posts := sources[0]
	if len(posts.Relations) != 1 {
		t.Fatalf("expected 1 relation on Posts, got %d", len(posts.Relations))
	}
	rel := posts.Relations[0]
	if rel.Name != "author" || rel.Target != "Users" {
		t.Errorf("owning relation = %s -> %s, want author -> Users", rel.Name, rel.Target)
	}
	if rel.Cardinality != descriptor.ManyToOne {
		t.Errorf("owning cardinality = %v, want many-to-one", rel.Cardinality)
	}
	if rel.BackRef != "posts" {
		t.Errorf("owning back-ref = %q, want posts", rel.BackRef)
	}

	users := sources[1]
	if len(users.Relations) != 1 {
		t.Fatalf("expected 1 synthesized relation on Users, got %d", len(users.Relations))
	}
	back := users.Relations[0]
	if back.Name != "posts" || back.Target != "Posts" {
		t.Errorf("counterpart = %s -> %s, want posts -> Posts", back.Name, back.Target)
	}
	if back.Cardinality != descriptor.OneToMany {
		t.Errorf("counterpart cardinality = %v, want one-to-many", back.Cardinality)
	}
	if back.BackRef != "author" {
		t.Errorf("counterpart back-ref = %q, want author", back.BackRef)
	}
}

func TestModelsFromTablesExternalReference(t *testing.T) {
	describe := func(table string) ([]FieldSource, []FK) {
		return []FieldSource{{Name: "id", DeclaredType: "integer"}},
			[]FK{{Column: "tenant_id", ReferencedTable: "tenants"}}
	}

	sources := ModelsFromTables([]string{"projects"}, describe)
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	// The owning side still emits its relation even though "tenants" is not
	// in the introspected set; the introspector reports it as dangling.
	if len(sources[0].Relations) != 1 {
		t.Fatalf("expected the owning relation to survive, got %d", len(sources[0].Relations))
	}
	if sources[0].Relations[0].Target != "Tenants" {
		t.Errorf("target = %q, want Tenants", sources[0].Relations[0].Target)
	}
}

func TestModelsFromTablesDeterministic(t *testing.T) {
	a := ModelsFromTables([]string{"posts", "users"}, blogSchema)
	b := ModelsFromTables([]string{"posts", "users"}, blogSchema)

	for i := range a {
		if a[i].Name != b[i].Name {
			t.Fatalf("order differs between runs: %s vs %s", a[i].Name, b[i].Name)
		}
		if len(a[i].Relations) != len(b[i].Relations) {
			t.Fatalf("relation count differs for %s", a[i].Name)
		}
	}
}
