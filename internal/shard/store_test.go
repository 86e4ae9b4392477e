package shard

import (
	"context"
	"testing"

	"github.com/javanhut/bdb/internal/clock"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

type fixedIDs struct{ id string }

func (f fixedIDs) Generate() string { return f.id }

func newTestStore(t *testing.T, shardCount uint32) *Store {
	t.Helper()
	st := storage.NewMemoryStore()
	return New(st, "collections/events", shardCount, clock.Fixed(1000), uuidgen.System{}, nil)
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	rec, err := s.Insert(ctx, record.Fields{"name": "ada", "age": int32(30)})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated id")
	}

	got, ok, err := s.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Fields["name"] != "ada" {
		t.Fatalf("got fields = %v", got.Fields)
	}
	if got.Metadata == nil || got.Metadata.Timestamp != 1000 {
		t.Fatalf("expected root-stamped metadata, got %+v", got.Metadata)
	}
	if _, ok := got.Metadata.Sub["name"]; ok {
		t.Fatalf("expected no per-leaf metadata on insert, got %+v", got.Metadata)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)
	s.ids = fixedIDs{id: "11111111-1111-1111-1111-111111111111"}

	if _, err := s.Insert(ctx, record.Fields{"a": 1}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.Insert(ctx, record.Fields{"a": 2}); err == nil {
		t.Fatal("expected duplicate insert error")
	}
}

func TestUpdatePartialMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	rec, err := s.Insert(ctx, record.Fields{"name": "ada", "city": "london"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	updated, ok, err := s.Update(ctx, rec.ID, record.Fields{"city": "paris"}, WriteOptions{})
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	if updated.Fields["name"] != "ada" || updated.Fields["city"] != "paris" {
		t.Fatalf("got fields = %v", updated.Fields)
	}
}

func TestUpdateUpsertMissingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	missingID := "22222222-2222-2222-2222-222222222222"
	if _, ok, err := s.Update(ctx, missingID, record.Fields{"a": int32(1)}, WriteOptions{}); err != nil || ok {
		t.Fatalf("expected not-found without upsert, ok=%v err=%v", ok, err)
	}

	rec, ok, err := s.Update(ctx, missingID, record.Fields{"a": int32(1)}, WriteOptions{Upsert: true})
	if err != nil || !ok {
		t.Fatalf("upsert Update: ok=%v err=%v", ok, err)
	}
	if rec.Fields["a"] != int32(1) {
		t.Fatalf("got fields = %v", rec.Fields)
	}

	got, ok, err := s.Get(ctx, missingID)
	if err != nil || !ok {
		t.Fatalf("Get after upsert: ok=%v err=%v", ok, err)
	}
	if got.ID == "" {
		t.Fatal("expected id preserved through upsert")
	}
}

func TestReplaceUpsertMissingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	missingID := "33333333-3333-3333-3333-333333333333"
	rec, ok, err := s.Replace(ctx, missingID, record.Fields{"b": int32(2)}, WriteOptions{Upsert: true})
	if err != nil || !ok {
		t.Fatalf("upsert Replace: ok=%v err=%v", ok, err)
	}
	if rec.Fields["b"] != int32(2) {
		t.Fatalf("got fields = %v", rec.Fields)
	}
}

func TestDeleteRemovesEmptyShard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	rec, err := s.Insert(ctx, record.Fields{"a": 1})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	ok, err := s.Delete(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}

	normalized, err := uuidgen.Normalize(rec.ID)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	shardID, err := s.ownerShard(normalized)
	if err != nil {
		t.Fatalf("ownerShard: %v", err)
	}
	if exists, err := s.st.FileExists(ctx, s.shardPath(shardID)); err != nil || exists {
		t.Fatalf("expected emptied shard file removed, exists=%v err=%v", exists, err)
	}

	_, found, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if found {
		t.Fatal("expected record gone after delete")
	}
}

func TestIterateRecordsAcrossShards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	for i := 0; i < 20; i++ {
		if _, err := s.Insert(ctx, record.Fields{"i": int32(i)}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	count := 0
	if err := s.IterateRecords(ctx, func(*record.Record) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("IterateRecords: %v", err)
	}
	if count != 20 {
		t.Fatalf("expected 20 records, got %d", count)
	}
}

func TestOwnerOfIsStable(t *testing.T) {
	id, err := uuidgen.Normalize("11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	a, err := OwnerOf(id, 100)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	b, err := OwnerOf(id, 100)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if a != b {
		t.Fatalf("expected stable shard assignment, got %d and %d", a, b)
	}
	if a >= 100 {
		t.Fatalf("shard id %d out of range", a)
	}
}
