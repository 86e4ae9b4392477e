package bdb

import (
	"context"
	"encoding/json"

	"github.com/javanhut/bdb/internal/sortindex"
	"github.com/javanhut/bdb/internal/storage"
)

// manifestEntry is one registered sort index's construction options, as
// persisted in a collection's index manifest.
type manifestEntry struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
	FieldType string `json:"fieldType"`
	PageSize  int    `json:"pageSize"`
	KeySize   int    `json:"keySize"`
}

func (e manifestEntry) key() string { return e.Field + "_" + e.Direction }

func manifestPath(collection string) string {
	return "sort_indexes/" + collection + "/manifest.json"
}

func loadManifest(ctx context.Context, st storage.Store, collection string) ([]manifestEntry, error) {
	data, err := st.Read(ctx, manifestPath(collection))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func saveManifest(ctx context.Context, st storage.Store, collection string, entries []manifestEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return st.Write(ctx, manifestPath(collection), "application/json", data)
}

func entryFromSpec(field string, dir sortindex.Direction, opts sortindex.Options) manifestEntry {
	return manifestEntry{
		Field:     field,
		Direction: string(dir),
		FieldType: string(opts.FieldType),
		PageSize:  opts.PageSize,
		KeySize:   opts.KeySize,
	}
}

func (e manifestEntry) options() sortindex.Options {
	return sortindex.Options{
		FieldType: sortindex.FieldType(e.FieldType),
		PageSize:  e.PageSize,
		KeySize:   e.KeySize,
	}
}
