package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// storeContract runs the same contract checks against any Store.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	snap, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	if len(snap.Memory) != 0 || len(snap.Vault) != 0 {
		t.Fatal("fresh store should be empty")
	}

	now := time.Now().UTC().Truncate(time.Second)
	err = s.SaveMemory(ctx, []MemoryEntry{
		{ID: "mem-11111111", Heading: "first", Content: "alpha", CreatedAt: now},
		{ID: "mem-22222222", Heading: "second", Content: "beta", Notes: "n", CreatedAt: now.Add(time.Second)},
	})
	if err != nil {
		t.Fatalf("save memory failed: %v", err)
	}

	err = s.SaveVault(ctx, []VaultEntry{{
		ID: "v-1a2b3c4d", Kind: "string", Label: "greeting", Preview: "hi",
		Size: 4, Payload: `"hi"`, Tags: []string{"x", "y"}, CreatedAt: now,
	}})
	if err != nil {
		t.Fatalf("save vault failed: %v", err)
	}

	err = s.SaveTasks(ctx, []TaskEntry{{
		ID: "task-11111111", Heading: "do it", Content: "steps", Status: TaskPending, CreatedAt: now,
	}})
	if err != nil {
		t.Fatalf("save tasks failed: %v", err)
	}

	err = s.SaveGoals(ctx, []GoalEntry{{
		ID: "goal-11111111", Heading: "ship", Content: "v1", CreatedAt: now,
	}})
	if err != nil {
		t.Fatalf("save goals failed: %v", err)
	}

	snap, err = s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(snap.Memory) != 2 {
		t.Fatalf("expected 2 memory entries, got %d", len(snap.Memory))
	}
	if snap.Memory[0].ID != "mem-11111111" || snap.Memory[1].Notes != "n" {
		t.Errorf("memory entries not preserved: %+v", snap.Memory)
	}
	if len(snap.Vault) != 1 || snap.Vault[0].Payload != `"hi"` {
		t.Errorf("vault entry not preserved: %+v", snap.Vault)
	}
	if len(snap.Vault[0].Tags) != 2 {
		t.Errorf("vault tags not preserved: %v", snap.Vault[0].Tags)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Status != TaskPending {
		t.Errorf("task entry not preserved: %+v", snap.Tasks)
	}
	if len(snap.Goals) != 1 {
		t.Errorf("goal entry not preserved: %+v", snap.Goals)
	}

	// Save-all replaces, never merges.
	if err := s.SaveMemory(ctx, []MemoryEntry{{ID: "mem-33333333", Heading: "only", CreatedAt: now}}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	snap, _ = s.LoadAll(ctx)
	if len(snap.Memory) != 1 || snap.Memory[0].ID != "mem-33333333" {
		t.Errorf("save must replace the whole store: %+v", snap.Memory)
	}

	// Current query round trip.
	if q, err := s.CurrentQuery(ctx); err != nil || q != "" {
		t.Errorf("empty current query expected, got %q err %v", q, err)
	}
	if err := s.SetCurrentQuery(ctx, "what changed?"); err != nil {
		t.Fatalf("set query failed: %v", err)
	}
	if err := s.SetCurrentQuery(ctx, "latest"); err != nil {
		t.Fatalf("overwrite query failed: %v", err)
	}
	if q, _ := s.CurrentQuery(ctx); q != "latest" {
		t.Errorf("current query = %q, want latest", q)
	}

	// Audit appends never error on normal input.
	if err := s.AppendActivity(ctx, ActivityRecord{Type: "memory_created", RefID: "mem-33333333", Timestamp: now}); err != nil {
		t.Errorf("append activity failed: %v", err)
	}
	if err := s.AppendExecution(ctx, ExecutionRecord{Code: "print(1)", Status: "ok", Timestamp: now}); err != nil {
		t.Errorf("append execution failed: %v", err)
	}

	if err := s.SaveFinalOutput(ctx, FinalOutput{
		ID: "out-11111111", Content: "done", State: "SAVED", Verified: true, Confidence: 90, CreatedAt: now,
	}); err != nil {
		t.Errorf("save final output failed: %v", err)
	}
}

func TestInMemoryContract(t *testing.T) {
	storeContract(t, NewInMemory())
}

func TestSQLiteContract(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := s.SaveMemory(ctx, []MemoryEntry{{ID: "mem-aaaa1111", Heading: "sticky", CreatedAt: now}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	snap, err := s2.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Memory) != 1 || snap.Memory[0].Heading != "sticky" {
		t.Errorf("state lost across reopen: %+v", snap.Memory)
	}
}

func TestInMemorySnapshotIsolation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	if err := s.SaveMemory(ctx, []MemoryEntry{{ID: "mem-11111111", Heading: "orig"}}); err != nil {
		t.Fatal(err)
	}

	snap, _ := s.LoadAll(ctx)
	snap.Memory[0].Heading = "mutated"

	snap2, _ := s.LoadAll(ctx)
	if snap2.Memory[0].Heading != "orig" {
		t.Error("LoadAll must return copies, not shared slices")
	}
}
