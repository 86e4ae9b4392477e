package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// DiskBlobStore implements Store using the local filesystem, rooted at
// a configured directory. Every blob is zstd-compressed at rest and
// decompressed on read; this is transparent to callers above the
// port — they only ever see logical, uncompressed bytes, so it does
// not change any on-disk layout the codec/shard/index layers document.
type DiskBlobStore struct {
	root string
}

// NewDiskBlobStore creates a disk-backed store rooted at root, creating
// the directory if it doesn't exist yet.
func NewDiskBlobStore(root string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &DiskBlobStore{root: root}, nil
}

func (d *DiskBlobStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return d.root, nil
	}
	return filepath.Join(d.root, clean), nil
}

// Read implements Store.
func (d *DiskBlobStore) Read(_ context.Context, path string) ([]byte, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decompress(raw)
}

// Write implements Store. mimeType is accepted for interface parity
// with the spec's external port but is not persisted by the disk
// implementation.
func (d *DiskBlobStore) Write(_ context.Context, path string, _ string, data []byte) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}

	compressed, err := compress(data)
	if err != nil {
		return fmt.Errorf("compress %s: %w", path, err)
	}

	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	_, writeErr := f.Write(compressed)
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file for %s: %w", path, closeErr)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place %s: %w", path, err)
	}
	return nil
}

// FileExists implements Store.
func (d *DiskBlobStore) FileExists(_ context.Context, path string) (bool, error) {
	full, err := d.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return !info.IsDir(), nil
}

// DirExists implements Store.
func (d *DiskBlobStore) DirExists(_ context.Context, path string) (bool, error) {
	full, err := d.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.IsDir(), nil
}

// DeleteFile implements Store.
func (d *DiskBlobStore) DeleteFile(_ context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// DeleteDir implements Store.
func (d *DiskBlobStore) DeleteDir(_ context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("delete dir %s: %w", path, err)
	}
	return nil
}

// ListDirs implements Store.
func (d *DiskBlobStore) ListDirs(_ context.Context, prefix string, pageSize int, cursor string) (DirEntries, error) {
	full, err := d.resolve(prefix)
	if err != nil {
		return DirEntries{}, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return DirEntries{}, nil
		}
		return DirEntries{}, fmt.Errorf("list dirs %s: %w", prefix, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	start := 0
	if cursor != "" {
		idx := sort.SearchStrings(names, cursor)
		if idx < len(names) && names[idx] == cursor {
			idx++
		}
		start = idx
	}
	if start >= len(names) {
		return DirEntries{}, nil
	}

	end := len(names)
	next := ""
	if pageSize > 0 && start+pageSize < len(names) {
		end = start + pageSize
		next = names[end-1]
	}

	return DirEntries{Names: names[start:end], Next: next}, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
