package sortindex

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// ShardSource is the slice of a shard store a build reads from: the
// fixed shard count to iterate, and one shard's records at a time in a
// deterministic order.
type ShardSource interface {
	ShardCount() uint32
	ShardRecords(ctx context.Context, shardID uint32) ([]*record.Record, error)
}

const (
	defaultBuildBatchSize      = 10000
	defaultBuildCheckpointStep = 1000
)

// BuildOptions tunes a bulk build's flush/checkpoint cadence and wires
// an optional progress callback. A Progress that returns an error
// aborts the build; the most recently persisted checkpoint remains
// valid for a later resume.
type BuildOptions struct {
	BatchSize       int
	CheckpointEvery int
	Progress        func(totalProcessed int) error
}

// checkpointState is the on-disk shape of build.checkpoint: plain JSON,
// unlike every other structured file in the index (those are framed
// binary; a checkpoint is resumption bookkeeping, not index content).
type checkpointState struct {
	CompletedShards         []uint32 `json:"completedShards"`
	CurrentShard            *uint32  `json:"currentShard,omitempty"`
	CurrentShardRecordIndex int      `json:"currentShardRecordIndex"`
	TotalRecordsProcessed   int      `json:"totalRecordsProcessed"`
	LastUpdated             uint64   `json:"lastUpdated"`
}

func checkpointPath(root string) string { return root + "/build.checkpoint" }

func loadCheckpointState(ctx context.Context, st storage.Store, path string) (*checkpointState, bool, error) {
	data, err := st.Read(ctx, path)
	if err != nil || data == nil {
		return nil, false, err
	}
	var cp checkpointState
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, err
	}
	return &cp, true, nil
}

func saveCheckpointState(ctx context.Context, st storage.Store, path string, cp *checkpointState, now uint64) error {
	cp.LastUpdated = now
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return st.Write(ctx, path, "application/json", data)
}

func sortedShardIDs(completed map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(completed))
	for id := range completed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build performs a resumable bulk construction of a sort index from a
// collection's shards. If both build.checkpoint and tree.dat exist it
// resumes from the checkpoint (the two are not cross-checked); if only
// tree.dat exists the earlier build is complete and that tree is
// loaded as is; if only the checkpoint exists it is stale and is
// deleted; with no tree.dat it starts fresh. Mutations during
// the build land in an in-memory batch, flushed to storage every
// BatchSize inserts; the checkpoint is persisted every CheckpointEvery
// inserts and again after each shard completes. A checkpoint save is
// always preceded by a flush of any pending batch, so the checkpoint
// never claims progress beyond what's durable on disk (§5: "checkpoints
// lag leaf writes").
func Build(ctx context.Context, st storage.Store, ids uuidgen.Generator, src ShardSource, collection, field string, dir Direction, opts Options, buildOpts BuildOptions, clockNow uint64) (*Index, error) {
	if buildOpts.BatchSize <= 0 {
		buildOpts.BatchSize = defaultBuildBatchSize
	}
	if buildOpts.CheckpointEvery <= 0 {
		buildOpts.CheckpointEvery = defaultBuildCheckpointStep
	}

	root := IndexRoot(collection, field, dir)
	disk := newDiskPersistence(st, root)
	cpPath := checkpointPath(root)

	cmp := NewComparator(opts.FieldType, dir)
	batch := newBatchPersistence(disk)
	c := newCore(batch, cmp, ids, field, opts.PageSize, opts.KeySize)

	treeOK, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	cp, cpOK, err := loadCheckpointState(ctx, st, cpPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !treeOK && !cpOK:
		c.initEmpty()
	case cpOK && !treeOK:
		if err := st.DeleteFile(ctx, cpPath); err != nil {
			return nil, err
		}
		cp, cpOK = nil, false
		c.initEmpty()
	case treeOK && !cpOK:
		return finishBuild(ctx, st, ids, collection, field, dir, opts)
	}

	completed := map[uint32]struct{}{}
	totalProcessed := 0
	var currentShardID uint32
	hasCurrentShard := false
	startRecordIndex := 0

	if cp != nil {
		for _, s := range cp.CompletedShards {
			completed[s] = struct{}{}
		}
		totalProcessed = cp.TotalRecordsProcessed
		if cp.CurrentShard != nil {
			currentShardID = *cp.CurrentShard
			hasCurrentShard = true
			startRecordIndex = cp.CurrentShardRecordIndex
		}
	}

	sinceFlush, sinceCheckpoint := 0, 0
	shardCount := src.ShardCount()

	for shardID := uint32(0); shardID < shardCount; shardID++ {
		if _, done := completed[shardID]; done {
			continue
		}

		records, err := src.ShardRecords(ctx, shardID)
		if err != nil {
			return nil, err
		}

		recIdx := 0
		if hasCurrentShard && shardID == currentShardID {
			recIdx = startRecordIndex
		}

		for i := recIdx; i < len(records); i++ {
			if err := c.add(ctx, records[i]); err != nil {
				return nil, err
			}
			totalProcessed++
			sinceFlush++
			sinceCheckpoint++

			if sinceFlush >= buildOpts.BatchSize {
				if err := batch.commit(ctx); err != nil {
					return nil, err
				}
				sinceFlush = 0
			}
			if sinceCheckpoint >= buildOpts.CheckpointEvery {
				// The checkpoint must never claim more progress than is
				// durable: flush any pending batch before persisting it,
				// so a crash right after this save can't strand records
				// that only ever lived in the in-memory leaf cache.
				if sinceFlush > 0 {
					if err := batch.commit(ctx); err != nil {
						return nil, err
					}
					sinceFlush = 0
				}
				shard := shardID
				cur := &checkpointState{
					CompletedShards:         sortedShardIDs(completed),
					CurrentShard:            &shard,
					CurrentShardRecordIndex: i + 1,
					TotalRecordsProcessed:   totalProcessed,
				}
				if err := saveCheckpointState(ctx, st, cpPath, cur, clockNow); err != nil {
					return nil, err
				}
				sinceCheckpoint = 0
			}
			if buildOpts.Progress != nil {
				if err := buildOpts.Progress(totalProcessed); err != nil {
					return nil, err
				}
			}
		}

		completed[shardID] = struct{}{}
		hasCurrentShard = false
		if sinceFlush > 0 {
			if err := batch.commit(ctx); err != nil {
				return nil, err
			}
			sinceFlush = 0
		}
		cur := &checkpointState{
			CompletedShards:       sortedShardIDs(completed),
			TotalRecordsProcessed: totalProcessed,
		}
		if err := saveCheckpointState(ctx, st, cpPath, cur, clockNow); err != nil {
			return nil, err
		}
	}

	if err := batch.commit(ctx); err != nil {
		return nil, err
	}
	if err := st.DeleteFile(ctx, cpPath); err != nil {
		return nil, err
	}

	return finishBuild(ctx, st, ids, collection, field, dir, opts)
}

// finishBuild hands back a ready-to-use immediate-write Index
// reflecting the tree this build (or a prior completed one) produced.
func finishBuild(ctx context.Context, st storage.Store, ids uuidgen.Generator, collection, field string, dir Direction, opts Options) (*Index, error) {
	idx := New(st, ids, collection, field, dir, opts)
	if _, err := idx.Load(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}
