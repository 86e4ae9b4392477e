package sortindex

import (
	"context"
	"errors"
	"testing"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

func newTestIndex(t *testing.T, field string, dir Direction, pageSize int) *Index {
	t.Helper()
	st := storage.NewMemoryStore()
	idx := New(st, uuidgen.System{}, "events", field, dir, Options{FieldType: TypeNumber, PageSize: pageSize})
	if err := idx.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	return idx
}

func rec(id string, score int32) *record.Record {
	return &record.Record{ID: id, Fields: record.Fields{"score": score}}
}

func TestSortedPagination(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "score", Asc, 2)

	scores := []int32{85, 72, 90, 65, 85}
	ids := []string{
		"00000000-0000-0000-0000-000000000001",
		"00000000-0000-0000-0000-000000000002",
		"00000000-0000-0000-0000-000000000003",
		"00000000-0000-0000-0000-000000000004",
		"00000000-0000-0000-0000-000000000005",
	}
	for i, s := range scores {
		if err := idx.Add(ctx, rec(ids[i], s)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	var got []int32
	pageID := ""
	pages := 0
	for {
		page, err := idx.GetPage(ctx, pageID)
		if err != nil {
			t.Fatalf("GetPage: %v", err)
		}
		pages++
		for _, e := range page.Records {
			got = append(got, e.Value.(int32))
		}
		if page.NextPageID == "" {
			break
		}
		pageID = page.NextPageID
	}

	want := []int32{65, 72, 85, 85, 90}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRangeQuery(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "score", Asc, 10)

	scores := []int32{85, 72, 90, 65, 85}
	ids := []string{
		"00000000-0000-0000-0000-000000000001",
		"00000000-0000-0000-0000-000000000002",
		"00000000-0000-0000-0000-000000000003",
		"00000000-0000-0000-0000-000000000004",
		"00000000-0000-0000-0000-000000000005",
	}
	for i, s := range scores {
		if err := idx.Add(ctx, rec(ids[i], s)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	entries, err := idx.FindByRange(ctx, RangeQuery{Min: int32(70), Max: int32(85), MinInclusive: true, MaxInclusive: true})
	if err != nil {
		t.Fatalf("FindByRange: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries in [70,85], got %d", len(entries))
	}

	entries, err = idx.FindByRange(ctx, RangeQuery{Min: int32(85), MinInclusive: false})
	if err != nil {
		t.Fatalf("FindByRange: %v", err)
	}
	if len(entries) != 1 || entries[0].Value.(int32) != 90 {
		t.Fatalf("expected single entry with score 90, got %v", entries)
	}
}

func TestFindByValue(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "score", Asc, 10)

	for i, s := range []int32{85, 72, 90, 65, 85} {
		if err := idx.Add(ctx, rec(uuidCanonical(i+1), s)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	entries, err := idx.FindByValue(ctx, int32(85))
	if err != nil {
		t.Fatalf("FindByValue: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries with score 85, got %d", len(entries))
	}
}

func TestDeleteUpdatesIndex(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "score", Asc, 10)

	r := rec(uuidCanonical(1), 50)
	if err := idx.Add(ctx, r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Delete(ctx, r.ID, r); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	entries, err := idx.FindByValue(ctx, int32(50))
	if err != nil {
		t.Fatalf("FindByValue: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries after delete, got %v", entries)
	}
}

func TestAnalyzeRequiresLoad(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	idx := New(st, uuidgen.System{}, "events", "score", Asc, Options{FieldType: TypeNumber})

	if _, err := idx.Analyze(ctx); !errors.Is(err, bdberr.ErrIndexNotLoaded) {
		t.Fatalf("expected ErrIndexNotLoaded, got %v", err)
	}

	if err := idx.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	if err := idx.Add(ctx, rec(uuidCanonical(1), 50)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	a, err := idx.Analyze(ctx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.TotalEntries != 1 || a.FieldName != "score" || a.Direction != Asc {
		t.Fatalf("unexpected analyze result: %+v", a)
	}
}

func uuidCanonical(n int) string {
	return uuidgen.Canonical(normalizeN(n))
}

func normalizeN(n int) string {
	s := "00000000000000000000000000000000"
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return s[:32-len(digits)] + string(digits)
}
