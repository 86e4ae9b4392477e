package bdb

import (
	"context"
	"testing"

	"github.com/javanhut/bdb/internal/bdbconfig"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/shard"
	"github.com/javanhut/bdb/internal/sortindex"
	"github.com/javanhut/bdb/internal/storage"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := bdbconfig.DefaultConfig()
	cfg.ShardCount = 4
	cfg.PageSize = 2
	return Open(storage.NewMemoryStore(), cfg)
}

func TestCollectionInsertGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.Collection(ctx, "events")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	rec, err := c.Insert(ctx, record.Fields{"name": "ada"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := c.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Fields["name"] != "ada" {
		t.Fatalf("got fields = %v", got.Fields)
	}

	if _, ok, err := c.Update(ctx, rec.ID, record.Fields{"name": "grace"}, shard.WriteOptions{}); err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	if deleted, err := c.Delete(ctx, rec.ID); err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, err := c.Get(ctx, rec.ID); err != nil || ok {
		t.Fatalf("expected record gone, ok=%v err=%v", ok, err)
	}
}

func TestUpdateUpsertCreatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.Collection(ctx, "events")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	missingID := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	rec, ok, err := c.Update(ctx, missingID, record.Fields{"name": "ada"}, shard.WriteOptions{Upsert: true})
	if err != nil || !ok {
		t.Fatalf("upsert Update: ok=%v err=%v", ok, err)
	}
	if rec.Fields["name"] != "ada" {
		t.Fatalf("got fields = %v", rec.Fields)
	}

	if _, ok, err := c.Update(ctx, missingID, record.Fields{"name": "grace"}, shard.WriteOptions{}); err != nil || !ok {
		t.Fatalf("plain Update after upsert: ok=%v err=%v", ok, err)
	}
}

func TestEnsureSortIndexAndFindByIndex(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.Collection(ctx, "scores")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	scores := []int32{85, 72, 90, 65, 85}
	for _, s := range scores {
		if _, err := c.Insert(ctx, record.Fields{"score": s}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	idx, err := c.EnsureSortIndex(ctx, "score", sortindex.Asc, sortindex.Options{FieldType: sortindex.TypeNumber})
	if err != nil {
		t.Fatalf("EnsureSortIndex: %v", err)
	}
	if idx.TotalEntries() != 5 {
		t.Fatalf("expected 5 entries, got %d", idx.TotalEntries())
	}

	found, err := c.FindByIndex("score", sortindex.Asc)
	if err != nil {
		t.Fatalf("FindByIndex: %v", err)
	}
	entries, err := found.FindByRange(ctx, sortindex.RangeQuery{Min: int32(70), Max: int32(85), MinInclusive: true, MaxInclusive: true})
	if err != nil {
		t.Fatalf("FindByRange: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries in [70,85], got %d", len(entries))
	}

	if _, err := c.FindByIndex("missing", sortindex.Asc); err == nil {
		t.Fatal("expected IndexMissing error")
	}

	// A later insert must keep the live index current.
	if _, err := c.Insert(ctx, record.Fields{"score": int32(100)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if idx.TotalEntries() != 6 {
		t.Fatalf("expected index to track new insert, got %d entries", idx.TotalEntries())
	}
}

func TestCollectionReopenReloadsIndexes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.Collection(ctx, "events")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if _, err := c.Insert(ctx, record.Fields{"name": "ada"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := c.EnsureSortIndex(ctx, "name", sortindex.Asc, sortindex.Options{FieldType: sortindex.TypeString}); err != nil {
		t.Fatalf("EnsureSortIndex: %v", err)
	}

	// Fresh DB instance, same storage: the manifest should bring the
	// index back without a rebuild.
	db2 := Open(db.st, db.cfg)
	c2, err := db2.Collection(ctx, "events")
	if err != nil {
		t.Fatalf("Collection (reopen): %v", err)
	}
	idx, err := c2.FindByIndex("name", sortindex.Asc)
	if err != nil {
		t.Fatalf("FindByIndex after reopen: %v", err)
	}
	if idx.TotalEntries() != 1 {
		t.Fatalf("expected reloaded index to have 1 entry, got %d", idx.TotalEntries())
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.Collection(ctx, "events")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := c.Insert(ctx, record.Fields{"i": int32(i)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	s, err := db.Stats(ctx, "events")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.RecordCount != 5 {
		t.Fatalf("expected 5 records, got %d", s.RecordCount)
	}
	if s.ShardCount != 4 {
		t.Fatalf("expected shard count 4, got %d", s.ShardCount)
	}
}

func TestGetAllPageWalksEveryShard(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.Collection(ctx, "events")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	for i := 0; i < 20; i++ {
		if _, err := c.Insert(ctx, record.Fields{"i": int32(i)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	seen := 0
	var cursor *uint32
	for {
		records, next, err := c.GetAllPage(ctx, cursor)
		if err != nil {
			t.Fatalf("GetAllPage: %v", err)
		}
		seen += len(records)
		if next == nil {
			break
		}
		cursor = next
	}
	if seen != 20 {
		t.Fatalf("expected to visit 20 records across pages, got %d", seen)
	}
}
