package descriptor

import (
	"testing"
)

func userModel() ModelDescriptor {
	return ModelDescriptor{
		Name: "User",
		Fields: []FieldDescriptor{
			{Name: "id", Type: TagInteger},
			{Name: "email", Type: TagString},
			{Name: "bio", Type: TagText, Nullable: true},
		},
	}
}

func postModel() ModelDescriptor {
	return ModelDescriptor{
		Name: "Post",
		Fields: []FieldDescriptor{
			{Name: "id", Type: TagInteger},
			{Name: "title", Type: TagString},
			{Name: "author_id", Type: TagForeignKey, Refers: "User"},
		},
		Relations: []RelationDescriptor{
			{Name: "author", Owner: "Post", Related: "User", Cardinality: ManyToOne, BackRef: "posts"},
		},
	}
}

func listUsersEndpoint() EndpointDescriptor {
	return EndpointDescriptor{
		Name:    "listUsers",
		Route:   "/users",
		Methods: []string{"GET"},
		Params: []ParamDescriptor{
			{Name: "limit", Location: InQuery, Type: TagInteger},
		},
		ResponseType: "User[]",
	}
}

// ---------------------------------------------------------------------------
// Catalog tests
// ---------------------------------------------------------------------------

func TestAddModelPreservesOrder(t *testing.T) {
	c := NewCatalog()
	if err := c.AddModel(postModel()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.AddModel(userModel()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	models := c.OrderedModels()
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "Post" || models[1].Name != "User" {
		t.Errorf("expected registration order [Post User], got [%s %s]", models[0].Name, models[1].Name)
	}
}

func TestAddModelDuplicateName(t *testing.T) {
	c := NewCatalog()
	c.AddModel(userModel())

	if err := c.AddModel(userModel()); err == nil {
		t.Fatal("expected error for duplicate model name")
	}
}

func TestAddModelDuplicateField(t *testing.T) {
	c := NewCatalog()
	m := ModelDescriptor{
		Name: "Broken",
		Fields: []FieldDescriptor{
			{Name: "id", Type: TagInteger},
			{Name: "id", Type: TagString},
		},
	}

	if err := c.AddModel(m); err == nil {
		t.Fatal("expected error for duplicate field name")
	}
}

func TestAddEndpointDuplicateName(t *testing.T) {
	c := NewCatalog()
	c.AddEndpoint(listUsersEndpoint())

	if err := c.AddEndpoint(listUsersEndpoint()); err == nil {
		t.Fatal("expected error for duplicate endpoint name")
	}
}

func TestMethodKey(t *testing.T) {
	ep := listUsersEndpoint()
	if got := ep.MethodKey("GET"); got != "GET /users" {
		t.Errorf("expected %q, got %q", "GET /users", got)
	}
}

func TestHasModel(t *testing.T) {
	c := NewCatalog()
	c.AddModel(userModel())

	if !c.HasModel("User") {
		t.Error("expected User to be registered")
	}
	if c.HasModel("Ghost") {
		t.Error("did not expect Ghost to be registered")
	}
}

// ---------------------------------------------------------------------------
// Fingerprint tests
// ---------------------------------------------------------------------------

func TestFingerprintDeterministic(t *testing.T) {
	build := func() *Catalog {
		c := NewCatalog()
		c.AddModel(userModel())
		c.AddModel(postModel())
		c.AddEndpoint(listUsersEndpoint())
		return c
	}

	a := Fingerprint(build())
	b := Fingerprint(build())
	if a != b {
		t.Errorf("same catalog produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	c1 := NewCatalog()
	c1.AddModel(userModel())

	c2 := NewCatalog()
	m := userModel()
	m.Fields[1].Nullable = true
	c2.AddModel(m)

	if Fingerprint(c1) == Fingerprint(c2) {
		t.Error("expected nullability change to change the fingerprint")
	}
}

func TestFingerprintSensitiveToOrder(t *testing.T) {
	c1 := NewCatalog()
	c1.AddModel(userModel())
	c1.AddModel(postModel())

	c2 := NewCatalog()
	c2.AddModel(postModel())
	c2.AddModel(userModel())

	if Fingerprint(c1) == Fingerprint(c2) {
		t.Error("expected registration order to be part of the fingerprint")
	}
}

// ---------------------------------------------------------------------------
// Diff tests
// ---------------------------------------------------------------------------

func TestDiffModelAdded(t *testing.T) {
	prev := NewCatalog()
	prev.AddModel(userModel())

	curr := NewCatalog()
	curr.AddModel(userModel())
	curr.AddModel(postModel())

	report := Diff(prev, curr)
	if report.AdditiveCount == 0 {
		t.Fatal("expected additive changes")
	}
	if report.BreakingCount != 0 {
		t.Errorf("unexpected breaking changes: %v", report.Items)
	}
	found := false
	for _, ch := range report.Items {
		if ch.Category == "model_added" && ch.Model == "Post" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected model_added for Post, got %v", report.Items)
	}
}

func TestDiffModelRemovedIsBreaking(t *testing.T) {
	prev := NewCatalog()
	prev.AddModel(userModel())
	prev.AddModel(postModel())

	curr := NewCatalog()
	curr.AddModel(userModel())

	report := Diff(prev, curr)
	if !report.HasBreaking {
		t.Fatal("expected breaking change for removed model")
	}
}

func TestDiffNullableDirection(t *testing.T) {
	required := userModel()

	nullable := userModel()
	nullable.Fields[1].Nullable = true

	tests := []struct {
		name     string
		from, to ModelDescriptor
		breaking bool
	}{
		{"required to nullable is additive", required, nullable, false},
		{"nullable to required is breaking", nullable, required, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := NewCatalog()
			prev.AddModel(tt.from)
			curr := NewCatalog()
			curr.AddModel(tt.to)

			report := Diff(prev, curr)
			if tt.breaking && !report.HasBreaking {
				t.Errorf("expected breaking change, got %+v", report)
			}
			if !tt.breaking && report.HasBreaking {
				t.Errorf("expected additive change only, got %v", report.Items)
			}
		})
	}
}

func TestDiffEndpointChanged(t *testing.T) {
	prev := NewCatalog()
	prev.AddEndpoint(listUsersEndpoint())

	changed := listUsersEndpoint()
	changed.ResponseType = "Post[]"
	curr := NewCatalog()
	curr.AddEndpoint(changed)

	report := Diff(prev, curr)
	if !report.HasBreaking {
		t.Fatal("expected breaking change for altered endpoint")
	}
}

func TestDiffEndpointMethods(t *testing.T) {
	tests := []struct {
		name     string
		from, to []string
		breaking bool
	}{
		{"method added is additive", []string{"GET"}, []string{"GET", "POST"}, false},
		{"method removed is breaking", []string{"GET", "POST"}, []string{"GET"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prevEp := listUsersEndpoint()
			prevEp.Methods = tt.from
			currEp := listUsersEndpoint()
			currEp.Methods = tt.to

			prev := NewCatalog()
			prev.AddEndpoint(prevEp)
			curr := NewCatalog()
			curr.AddEndpoint(currEp)

			report := Diff(prev, curr)
			if !report.HasChanges {
				t.Fatal("expected method change to be reported")
			}
			if tt.breaking != report.HasBreaking {
				t.Errorf("breaking = %v, want %v: %v", report.HasBreaking, tt.breaking, report.Items)
			}
		})
	}
}

func TestDiffEndpointParams(t *testing.T) {
	mutate := func(fn func(*EndpointDescriptor)) EndpointDescriptor {
		ep := listUsersEndpoint()
		fn(&ep)
		return ep
	}

	tests := []struct {
		name     string
		curr     EndpointDescriptor
		breaking bool
	}{
		{"param type change is breaking", mutate(func(ep *EndpointDescriptor) {
			ep.Params[0].Type = TagString
		}), true},
		{"param location change is breaking", mutate(func(ep *EndpointDescriptor) {
			ep.Params[0].Location = InPath
		}), true},
		{"param removal is breaking", mutate(func(ep *EndpointDescriptor) {
			ep.Params = nil
		}), true},
		{"optional param added is additive", mutate(func(ep *EndpointDescriptor) {
			ep.Params = append(ep.Params, ParamDescriptor{Name: "offset", Location: InQuery, Type: TagInteger})
		}), false},
		{"required param added is breaking", mutate(func(ep *EndpointDescriptor) {
			ep.Params = append(ep.Params, ParamDescriptor{Name: "tenant", Location: InQuery, Type: TagString, Required: true})
		}), true},
		{"param becoming required is breaking", mutate(func(ep *EndpointDescriptor) {
			ep.Params[0].Required = true
		}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := NewCatalog()
			prev.AddEndpoint(listUsersEndpoint())
			curr := NewCatalog()
			curr.AddEndpoint(tt.curr)

			report := Diff(prev, curr)
			if !report.HasChanges {
				t.Fatal("expected parameter change to be reported")
			}
			if tt.breaking != report.HasBreaking {
				t.Errorf("breaking = %v, want %v: %v", report.HasBreaking, tt.breaking, report.Items)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Metadata tests
// ---------------------------------------------------------------------------

func TestMetadataNilCatalog(t *testing.T) {
	meta := Metadata(nil)

	if meta.Endpoints == nil {
		t.Error("endpoints should be an empty slice, not nil")
	}
	if meta.Models == nil {
		t.Error("models should be an empty map or slice, not nil")
	}
	if len(meta.Endpoints) != 0 {
		t.Errorf("expected no endpoints, got %d", len(meta.Endpoints))
	}
}

func TestMetadataProjection(t *testing.T) {
	c := NewCatalog()
	c.AddModel(userModel())
	ep := listUsersEndpoint()
	ep.AuthRequired = true
	c.AddEndpoint(ep)

	meta := Metadata(c)
	if len(meta.Endpoints) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(meta.Endpoints))
	}
	got := meta.Endpoints[0]
	if got.Name != "listUsers" || got.Route != "/users" {
		t.Errorf("unexpected endpoint projection: %+v", got)
	}
	if !got.AuthRequired {
		t.Error("expected auth_required to survive projection")
	}
}
