package bdb

import (
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/sortindex"
)

// liveHook is the shard.IndexHook a Collection registers with its
// shard.Store: it keeps every currently-built sort index for that
// collection in immediate-write mode, updated in lockstep with every
// record mutation.
type liveHook struct {
	indexes map[string]*sortindex.Index
}

func newLiveHook() *liveHook {
	return &liveHook{indexes: map[string]*sortindex.Index{}}
}

func (h *liveHook) add(key string, idx *sortindex.Index) {
	h.indexes[key] = idx
}

func (h *liveHook) remove(key string) {
	delete(h.indexes, key)
}

func (h *liveHook) OnInsert(ctx context.Context, rec *record.Record) error {
	for key, idx := range h.indexes {
		if err := idx.Add(ctx, rec); err != nil {
			return fmt.Errorf("bdb: index %s add: %w", key, err)
		}
	}
	return nil
}

func (h *liveHook) OnUpdate(ctx context.Context, newRec, oldRec *record.Record) error {
	for key, idx := range h.indexes {
		if err := idx.Update(ctx, newRec, oldRec); err != nil {
			return fmt.Errorf("bdb: index %s update: %w", key, err)
		}
	}
	return nil
}

func (h *liveHook) OnDelete(ctx context.Context, id string, oldRec *record.Record) error {
	for key, idx := range h.indexes {
		if err := idx.Delete(ctx, id, oldRec); err != nil {
			return fmt.Errorf("bdb: index %s delete: %w", key, err)
		}
	}
	return nil
}
