package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ferrostack/ferro/internal/registry"
	"github.com/ferrostack/ferro/internal/registry/static"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func blogRegistry() *static.Registry {
	reg := static.New()
	static.NewModel("User").
		Field("id", "int").
		Field("email", "varchar").
		Register(reg)
	static.NewRoute("listUsers", "/users", "GET").
		Query("limit", "int").
		Returns("User[]").
		Register(reg)
	return reg
}

func newTestOrchestrator(t *testing.T, reg *static.Registry, cache ArtifactCache) (*Orchestrator, string, string) {
	t.Helper()
	dir := t.TempDir()
	types := filepath.Join(dir, "api-types.ts")
	client := filepath.Join(dir, "api-client.ts")

	orch := New(Config{TypesPath: types, ClientPath: client}, reg, reg, cache, testLogger())
	return orch, types, client
}

// ---------------------------------------------------------------------------
// Sync tests
// ---------------------------------------------------------------------------

func TestSyncWritesArtifacts(t *testing.T) {
	orch, types, client := newTestOrchestrator(t, blogRegistry(), nil)

	run, err := orch.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.State != StateSucceeded {
		t.Errorf("expected succeeded state, got %v", run.State)
	}
	if run.Skipped {
		t.Error("first run must not be skipped")
	}
	if run.Fingerprint == "" {
		t.Error("expected a fingerprint")
	}

	for _, path := range []string{types, client} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("artifact not written: %v", err)
		}
		if len(data) == 0 {
			t.Errorf("artifact %s is empty", path)
		}
	}

	if orch.Snapshot() == nil {
		t.Error("expected published snapshot after successful run")
	}
	if orch.State() != StateIdle {
		t.Errorf("expected idle after run, got %v", orch.State())
	}
}

func TestSyncSkipsUnchangedCatalog(t *testing.T) {
	orch, types, _ := newTestOrchestrator(t, blogRegistry(), nil)
	ctx := context.Background()

	first, err := orch.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(types)

	// Same registry, same fingerprint: the second run must skip generation.
	time.Sleep(10 * time.Millisecond)
	second, err := orch.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Skipped {
		t.Error("expected unchanged catalog to skip regeneration")
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("fingerprints should match across identical runs")
	}

	after, _ := os.Stat(types)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("skipped run must not touch artifacts")
	}
}

func TestSyncRegeneratesOnChange(t *testing.T) {
	reg := blogRegistry()
	orch, _, _ := newTestOrchestrator(t, reg, nil)
	ctx := context.Background()

	if _, err := orch.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	static.NewModel("Post").
		Field("id", "int").
		Field("title", "varchar").
		Register(reg)

	run, err := orch.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if run.Skipped {
		t.Error("catalog change must trigger regeneration")
	}

	changes := orch.Changes()
	if !changes.HasChanges {
		t.Error("expected change report after catalog change")
	}
	if changes.HasBreaking {
		t.Errorf("adding a model should be additive, got %+v", changes.Items)
	}
}

func TestSyncFailureLeavesArtifactsUntouched(t *testing.T) {
	reg := blogRegistry()
	orch, types, client := newTestOrchestrator(t, reg, nil)
	ctx := context.Background()

	if _, err := orch.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	typesBefore, _ := os.ReadFile(types)
	clientBefore, _ := os.ReadFile(client)
	snapshotBefore := orch.Snapshot()

	// A duplicate route+method pair makes the next run fail.
	static.NewRoute("listUsersAgain", "/users", "GET").Returns("User[]").Register(reg)

	run, err := orch.Sync(ctx)
	if err == nil {
		t.Fatal("expected failing run")
	}
	if run.State != StateFailed {
		t.Errorf("expected failed state, got %v", run.State)
	}
	if run.Error == "" {
		t.Error("expected error recorded on the run")
	}

	typesAfter, _ := os.ReadFile(types)
	clientAfter, _ := os.ReadFile(client)
	if string(typesBefore) != string(typesAfter) || string(clientBefore) != string(clientAfter) {
		t.Error("failed run must leave prior artifacts byte-identical")
	}
	if orch.Snapshot() != snapshotBefore {
		t.Error("failed run must not replace the published snapshot")
	}
	if orch.State() != StateIdle {
		t.Errorf("orchestrator must return to idle after failure, got %v", orch.State())
	}
}

func TestSyncFirstRunFailureWritesNothing(t *testing.T) {
	reg := static.New()
	static.NewRoute("a", "/x", "GET").Returns("string").Register(reg)
	static.NewRoute("b", "/x", "GET").Returns("string").Register(reg)

	orch, types, client := newTestOrchestrator(t, reg, nil)

	if _, err := orch.Sync(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	for _, path := range []string{types, client} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("no artifact should exist after a failed first run: %s", path)
		}
	}
	if orch.Snapshot() != nil {
		t.Error("no snapshot should be published after a failed first run")
	}
}

// ---------------------------------------------------------------------------
// Trigger coalescing tests
// ---------------------------------------------------------------------------

// countingRegistry counts registry reads so tests can observe how many runs
// actually executed.
type countingRegistry struct {
	mu    sync.Mutex
	reads int
	gate  chan struct{}
}

func (c *countingRegistry) Models(ctx context.Context) ([]registry.ModelSource, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	if c.gate != nil {
		<-c.gate
	}
	return []registry.ModelSource{{
		Name:   "User",
		Fields: []registry.FieldSource{{Name: "id", DeclaredType: "int"}},
	}}, nil
}

func (c *countingRegistry) Routes(ctx context.Context) ([]registry.RouteSource, error) {
	return nil, nil
}

func (c *countingRegistry) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func TestTriggersCoalesceDuringRun(t *testing.T) {
	reg := &countingRegistry{gate: make(chan struct{})}
	dir := t.TempDir()
	orch := New(Config{
		TypesPath:  filepath.Join(dir, "t.ts"),
		ClientPath: filepath.Join(dir, "c.ts"),
	}, reg, reg, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		orch.Serve(ctx)
		close(done)
	}()

	// Start a run, then fire several triggers while it is blocked inside the
	// registry read. They must collapse into exactly one follow-up run.
	orch.Trigger()
	waitFor(t, func() bool { return reg.readCount() == 1 })

	orch.Trigger()
	orch.Trigger()
	orch.Trigger()

	reg.gate <- struct{}{} // release first run
	waitFor(t, func() bool { return reg.readCount() == 2 })
	reg.gate <- struct{}{} // release follow-up run

	// No third run may start: drain any stragglers and verify the count.
	time.Sleep(50 * time.Millisecond)
	if got := reg.readCount(); got != 2 {
		t.Errorf("expected exactly 2 runs (1 initial + 1 coalesced), got %d", got)
	}

	cancel()
	<-done
}

func TestTriggerNeverBlocks(t *testing.T) {
	reg := blogRegistry()
	orch, _, _ := newTestOrchestrator(t, reg, nil)

	// Without a Serve loop consuming, repeated triggers must still return.
	for i := 0; i < 10; i++ {
		orch.Trigger()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// ---------------------------------------------------------------------------
// Cache tests
// ---------------------------------------------------------------------------

func TestSQLiteCacheRoundTrip(t *testing.T) {
	cache, err := NewSQLiteCache(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	if _, ok, err := cache.LastRun(ctx); err != nil || ok {
		t.Fatalf("empty cache should report no last run, got ok=%v err=%v", ok, err)
	}

	rec := CachedRun{
		RunID:       "run-1",
		Fingerprint: "abc123",
		FinishedAt:  time.Now().UTC(),
		Types:       []byte("types"),
		Client:      []byte("client"),
	}
	if err := cache.StoreRun(ctx, rec); err != nil {
		t.Fatalf("store run: %v", err)
	}

	got, ok, err := cache.LastRun(ctx)
	if err != nil || !ok {
		t.Fatalf("expected stored run, got ok=%v err=%v", ok, err)
	}
	if got.Fingerprint != "abc123" || string(got.Types) != "types" {
		t.Errorf("unexpected record: %+v", got)
	}

	byFp, ok, err := cache.Artifacts(ctx, "abc123")
	if err != nil || !ok {
		t.Fatalf("expected artifacts by fingerprint, got ok=%v err=%v", ok, err)
	}
	if string(byFp.Client) != "client" {
		t.Errorf("unexpected client artifact: %q", byFp.Client)
	}

	if _, ok, _ := cache.Artifacts(ctx, "missing"); ok {
		t.Error("unknown fingerprint should report not found")
	}
}

func TestRestoreSkipsRegenerationAfterRestart(t *testing.T) {
	dataDir := t.TempDir()
	reg := blogRegistry()
	ctx := context.Background()

	cache, err := NewSQLiteCache(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	first, _, _ := newTestOrchestrator(t, reg, cache)
	run1, err := first.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cache.Close()

	// A fresh orchestrator with the same cache restores the fingerprint and
	// skips regeneration for the unchanged catalog.
	cache2, err := NewSQLiteCache(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer cache2.Close()

	second, _, _ := newTestOrchestrator(t, reg, cache2)
	second.Restore(ctx)

	run2, err := second.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !run2.Skipped {
		t.Error("expected restored fingerprint to skip regeneration")
	}
	if run2.Fingerprint != run1.Fingerprint {
		t.Error("fingerprints should match across restarts")
	}
}

func TestRestoreRewritesDeletedArtifacts(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	types := filepath.Join(outDir, "api-types.ts")
	client := filepath.Join(outDir, "api-client.ts")
	reg := blogRegistry()
	ctx := context.Background()

	cache, err := NewSQLiteCache(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	first := New(Config{TypesPath: types, ClientPath: client}, reg, reg, cache, testLogger())
	if _, err := first.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	typesBefore, err := os.ReadFile(types)
	if err != nil {
		t.Fatal(err)
	}
	cache.Close()

	// The outputs disappear between restarts (a clean build wiped them).
	if err := os.Remove(types); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(client); err != nil {
		t.Fatal(err)
	}

	cache2, err := NewSQLiteCache(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer cache2.Close()

	second := New(Config{TypesPath: types, ClientPath: client}, reg, reg, cache2, testLogger())
	second.Restore(ctx)

	run, err := second.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !run.Skipped {
		t.Error("unchanged catalog with cached artifacts should still skip generation")
	}

	typesAfter, err := os.ReadFile(types)
	if err != nil {
		t.Fatalf("types artifact not restored: %v", err)
	}
	if string(typesAfter) != string(typesBefore) {
		t.Error("restored types artifact should match the original bytes")
	}
	if _, err := os.Stat(client); err != nil {
		t.Fatalf("client artifact not restored: %v", err)
	}
	if second.Snapshot() == nil {
		t.Error("skipped first run after restart should publish the catalog")
	}
}

// ---------------------------------------------------------------------------
// Atomic write tests
// ---------------------------------------------------------------------------

func TestWriteArtifactsCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "out.ts")

	if err := writeArtifacts([]artifactFile{{path: path, data: []byte("content")}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestWriteArtifactsLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ts")

	if err := writeArtifacts([]artifactFile{{path: path, data: []byte("a")}}); err != nil {
		t.Fatal(err)
	}
	if err := writeArtifacts([]artifactFile{{path: path, data: []byte("b")}}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the target file, got %v", names)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "b" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestWriteArtifactsIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "out.ts")
	bad := filepath.Join(dir, "blocked")
	if err := os.WriteFile(good, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Directories cannot be replaced by a rename, so staging must refuse.
	if err := os.Mkdir(bad, 0o755); err != nil {
		t.Fatal(err)
	}

	err := writeArtifacts([]artifactFile{
		{path: good, data: []byte("new")},
		{path: bad, data: []byte("new")},
	})
	if err == nil {
		t.Fatal("expected error for unwritable target")
	}

	data, _ := os.ReadFile(good)
	if string(data) != "old" {
		t.Errorf("failed batch must not replace any target, got %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected only the original entries, got %d", len(entries))
	}
}

func TestSyncClientWriteFailurePreservesTypesArtifact(t *testing.T) {
	dir := t.TempDir()
	types := filepath.Join(dir, "api-types.ts")
	client := filepath.Join(dir, "api-client.ts")
	if err := os.WriteFile(types, []byte("// earlier run"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A directory at the client path makes its replacement fail.
	if err := os.Mkdir(client, 0o755); err != nil {
		t.Fatal(err)
	}

	reg := blogRegistry()
	orch := New(Config{TypesPath: types, ClientPath: client}, reg, reg, nil, testLogger())

	run, err := orch.Sync(context.Background())
	if err == nil {
		t.Fatal("expected failing run")
	}
	if run.State != StateFailed {
		t.Errorf("expected failed state, got %v", run.State)
	}

	data, readErr := os.ReadFile(types)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != "// earlier run" {
		t.Errorf("failed run must leave the types artifact byte-identical, got %d bytes", len(data))
	}
}

// ---------------------------------------------------------------------------
// LastRun / Snapshot accessor tests
// ---------------------------------------------------------------------------

func TestAccessorsBeforeFirstRun(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, blogRegistry(), nil)

	if orch.LastRun() != nil {
		t.Error("expected nil last run before first sync")
	}
	if orch.Snapshot() != nil {
		t.Error("expected nil snapshot before first sync")
	}
	if orch.State() != StateIdle {
		t.Errorf("expected idle, got %v", orch.State())
	}
	changes := orch.Changes()
	if changes.HasChanges {
		t.Error("expected empty change report before first sync")
	}
}
