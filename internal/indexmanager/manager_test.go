package indexmanager

import (
	"context"
	"testing"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/sortindex"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

type fakeProvider struct {
	specs map[string][]IndexSpec
}

func (f fakeProvider) ListIndexes(collection string) ([]IndexSpec, error) {
	return f.specs[collection], nil
}

func rec(id string, score int32) *record.Record {
	return &record.Record{ID: id, Fields: record.Fields{"score": score}}
}

func TestManagerSyncsAllLoadedIndexes(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	ids := uuidgen.System{}

	spec := IndexSpec{Field: "score", Direction: sortindex.Asc, Options: sortindex.Options{FieldType: sortindex.TypeNumber}}

	idx := sortindex.New(st, ids, "events", spec.Field, spec.Direction, spec.Options)
	if err := idx.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}

	mgr := New(st, ids, fakeProvider{specs: map[string][]IndexSpec{"events": {spec}}})
	if err := mgr.StartBatch(ctx, "events"); err != nil {
		t.Fatalf("StartBatch: %v", err)
	}

	r1 := rec("00000000-0000-0000-0000-000000000001", 10)
	r2 := rec("00000000-0000-0000-0000-000000000002", 20)
	if err := mgr.SyncRecord(ctx, r1, nil); err != nil {
		t.Fatalf("SyncRecord r1: %v", err)
	}
	if err := mgr.SyncRecord(ctx, r2, nil); err != nil {
		t.Fatalf("SyncRecord r2: %v", err)
	}
	if err := mgr.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := idx.Load(ctx); err != nil {
		t.Fatalf("reload index: %v", err)
	}
	if idx.TotalEntries() != 2 {
		t.Fatalf("expected 2 entries after commit, got %d", idx.TotalEntries())
	}

	entries, err := idx.FindByValue(ctx, int32(10))
	if err != nil {
		t.Fatalf("FindByValue: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != r1.ID {
		t.Fatalf("expected to find r1, got %v", entries)
	}
}

func TestManagerRemoveRecord(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	ids := uuidgen.System{}

	spec := IndexSpec{Field: "score", Direction: sortindex.Asc, Options: sortindex.Options{FieldType: sortindex.TypeNumber}}

	idx := sortindex.New(st, ids, "events", spec.Field, spec.Direction, spec.Options)
	if err := idx.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	r1 := rec("00000000-0000-0000-0000-000000000001", 10)
	if err := idx.Add(ctx, r1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	mgr := New(st, ids, fakeProvider{specs: map[string][]IndexSpec{"events": {spec}}})
	if err := mgr.StartBatch(ctx, "events"); err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	if err := mgr.RemoveRecord(ctx, r1.ID, r1); err != nil {
		t.Fatalf("RemoveRecord: %v", err)
	}
	if err := mgr.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := idx.Load(ctx); err != nil {
		t.Fatalf("reload index: %v", err)
	}
	if idx.TotalEntries() != 0 {
		t.Fatalf("expected 0 entries after remove+commit, got %d", idx.TotalEntries())
	}
}

func TestManagerSkipsUnbuiltIndexes(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	ids := uuidgen.System{}

	spec := IndexSpec{Field: "score", Direction: sortindex.Asc, Options: sortindex.Options{FieldType: sortindex.TypeNumber}}
	mgr := New(st, ids, fakeProvider{specs: map[string][]IndexSpec{"events": {spec}}})
	if err := mgr.StartBatch(ctx, "events"); err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	if len(mgr.batches) != 0 {
		t.Fatalf("expected no batch indexes loaded for a never-built index, got %d", len(mgr.batches))
	}
	if err := mgr.SyncRecord(ctx, rec("00000000-0000-0000-0000-000000000001", 1), nil); err != nil {
		t.Fatalf("SyncRecord with no loaded indexes should be a no-op: %v", err)
	}
	if err := mgr.Commit(ctx); err != nil {
		t.Fatalf("Commit with no loaded indexes: %v", err)
	}
}
