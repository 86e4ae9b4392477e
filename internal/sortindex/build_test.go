package sortindex

import (
	"context"
	"errors"
	"testing"

	"github.com/javanhut/bdb/internal/clock"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/shard"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

var errSimulatedCrash = errors.New("sortindex test: simulated crash")

func seedShards(t *testing.T, st storage.Store, shardCount uint32, n int) *shard.Store {
	t.Helper()
	ss := shard.New(st, "collections/events", shardCount, clock.Fixed(1000), uuidgen.System{}, nil)
	for i := 0; i < n; i++ {
		if _, err := ss.Insert(context.Background(), record.Fields{"score": int32(i)}); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
	}
	return ss
}

func TestBuildFromShards(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	ss := seedShards(t, st, 4, 25)

	idx, err := Build(ctx, st, uuidgen.System{}, ss, "events", "score", Asc, Options{FieldType: TypeNumber}, BuildOptions{BatchSize: 5, CheckpointEvery: 3}, 1000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.TotalEntries() != 25 {
		t.Fatalf("expected 25 entries, got %d", idx.TotalEntries())
	}

	var got []int32
	pageID := ""
	for {
		page, err := idx.GetPage(ctx, pageID)
		if err != nil {
			t.Fatalf("GetPage: %v", err)
		}
		for _, e := range page.Records {
			got = append(got, e.Value.(int32))
		}
		if page.NextPageID == "" {
			break
		}
		pageID = page.NextPageID
	}
	if len(got) != 25 {
		t.Fatalf("expected 25 entries across pages, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("entries not sorted ascending at %d: %v", i, got)
		}
	}
}

func TestBuildIsIdempotentWhenAlreadyComplete(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	ss := seedShards(t, st, 2, 6)

	if _, err := Build(ctx, st, uuidgen.System{}, ss, "events", "score", Asc, Options{FieldType: TypeNumber}, BuildOptions{}, 1000); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	idx2, err := Build(ctx, st, uuidgen.System{}, ss, "events", "score", Asc, Options{FieldType: TypeNumber}, BuildOptions{}, 2000)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if idx2.TotalEntries() != 6 {
		t.Fatalf("expected 6 entries after re-running Build, got %d", idx2.TotalEntries())
	}
}

func TestBuildResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	ss := seedShards(t, st, 4, 40)

	aborted := errAbortAfter{limit: 15}
	_, err := Build(ctx, st, uuidgen.System{}, ss, "events", "score", Asc,
		Options{FieldType: TypeNumber},
		BuildOptions{BatchSize: 3, CheckpointEvery: 2, Progress: aborted.progress},
		1500)
	if err == nil {
		t.Fatalf("expected the simulated crash to abort the first build attempt")
	}

	root := IndexRoot("events", "score", Asc)
	cpPath := checkpointPath(root)
	if exists, _ := st.FileExists(ctx, cpPath); !exists {
		t.Fatalf("expected a checkpoint file to survive the aborted build")
	}

	idx, err := Build(ctx, st, uuidgen.System{}, ss, "events", "score", Asc, Options{FieldType: TypeNumber}, BuildOptions{}, 2000)
	if err != nil {
		t.Fatalf("Build resume: %v", err)
	}
	if idx.TotalEntries() != 40 {
		t.Fatalf("expected 40 entries after resumed build, got %d", idx.TotalEntries())
	}

	if exists, _ := st.FileExists(ctx, cpPath); exists {
		t.Fatalf("expected checkpoint file removed after build completes")
	}
}

type errAbortAfter struct {
	limit int
}

func (e errAbortAfter) progress(totalProcessed int) error {
	if totalProcessed >= e.limit {
		return errSimulatedCrash
	}
	return nil
}
