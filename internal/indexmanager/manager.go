// Package indexmanager amortizes sort-index writes across many record
// mutations: it loads every index a collection has registered as a
// batch index, dispatches mutations to all of them in memory, and
// flushes everything in one commit pass.
package indexmanager

import (
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/sortindex"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// IndexSpec names one registered sort index and the options it was
// built with, as handed back by a Provider.
type IndexSpec struct {
	Field     string
	Direction sortindex.Direction
	Options   sortindex.Options
}

func (s IndexSpec) key() string { return s.Field + "_" + string(s.Direction) }

// Provider lists the sort indexes a collection currently has
// registered. The outer database object is the production
// implementation, backed by whatever tracks ensureSortIndex calls.
type Provider interface {
	ListIndexes(collection string) ([]IndexSpec, error)
}

// Manager loads every index of one collection into batch mode, fans
// mutations out to all of them, and commits them together.
type Manager struct {
	st         storage.Store
	ids        uuidgen.Generator
	provider   Provider
	collection string
	batches    map[string]*sortindex.BatchIndex
}

// New creates a manager bound to one storage port, id generator, and
// index provider. A single Manager is reused across StartBatch/Commit
// cycles for different collections.
func New(st storage.Store, ids uuidgen.Generator, provider Provider) *Manager {
	return &Manager{st: st, ids: ids, provider: provider}
}

// StartBatch loads every index currently registered for collection as
// a BatchIndex, discarding any batch left open from a prior run.
// Indexes that have never been built (no tree.dat yet) are silently
// skipped — they are brought up to date by their own ensureSortIndex
// build, not by this manager.
func (m *Manager) StartBatch(ctx context.Context, collection string) error {
	specs, err := m.provider.ListIndexes(collection)
	if err != nil {
		return fmt.Errorf("indexmanager: list indexes for %q: %w", collection, err)
	}

	m.collection = collection
	m.batches = make(map[string]*sortindex.BatchIndex, len(specs))

	for _, spec := range specs {
		bi := sortindex.NewBatch(m.st, m.ids, collection, spec.Field, spec.Direction, spec.Options)
		loaded, err := bi.Load(ctx)
		if err != nil {
			return fmt.Errorf("indexmanager: load index %s.%s: %w", collection, spec.key(), err)
		}
		if !loaded {
			continue
		}
		m.batches[spec.key()] = bi
	}
	return nil
}

// SyncRecord dispatches an insert (oldRec nil) or update (oldRec
// non-nil) to every loaded index.
func (m *Manager) SyncRecord(ctx context.Context, newRec, oldRec *record.Record) error {
	for key, bi := range m.batches {
		if err := bi.Update(ctx, newRec, oldRec); err != nil {
			return fmt.Errorf("indexmanager: sync %s/%s: %w", m.collection, key, err)
		}
	}
	return nil
}

// RemoveRecord dispatches a delete to every loaded index.
func (m *Manager) RemoveRecord(ctx context.Context, id string, oldRec *record.Record) error {
	for key, bi := range m.batches {
		if err := bi.Delete(ctx, id, oldRec); err != nil {
			return fmt.Errorf("indexmanager: remove %s/%s: %w", m.collection, key, err)
		}
	}
	return nil
}

// Commit flushes every loaded index's cached mutations to storage and
// clears the manager's batch map.
func (m *Manager) Commit(ctx context.Context) error {
	for key, bi := range m.batches {
		if err := bi.Commit(ctx); err != nil {
			return fmt.Errorf("indexmanager: commit %s/%s: %w", m.collection, key, err)
		}
	}
	m.batches = nil
	return nil
}
