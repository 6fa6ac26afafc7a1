package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// AtomicWriter replaces the file at path with data so that readers see
// either the old or the new content, never a mix.
type AtomicWriter interface {
	WriteFile(path string, data []byte) error
}

// RenameWriter writes to a temp file in the target directory, syncs it,
// and renames it over the target.
type RenameWriter struct{}

// WriteFile implements AtomicWriter.
func (RenameWriter) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// File is a Store of JSON files, one per key namespace. A key's namespace is
// everything up to its last colon, so "address:2025-2026:bath" lives in
// address_2025-2026.json. Each Put rewrites its namespace file through the
// AtomicWriter. File assumes a single writing process.
type File struct {
	dir    string
	writer AtomicWriter
	logger *slog.Logger

	mu     sync.Mutex
	shards map[string]map[string]json.RawMessage
}

// NewFile opens a file-backed store rooted at dir.
func NewFile(dir string, writer AtomicWriter, logger *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if writer == nil {
		writer = RenameWriter{}
	}
	if logger != nil {
		logger.Info("cache opened", "backend", BackendFile, "path", dir)
	}
	return &File{
		dir:    dir,
		writer: writer,
		logger: logger,
		shards: make(map[string]map[string]json.RawMessage),
	}, nil
}

func namespaceOf(key string) string {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return ""
	}
	return key[:i+1]
}

func (s *File) shardPath(ns string) string {
	name := strings.Trim(strings.ReplaceAll(ns, ":", "_"), "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".json")
}

// shard loads a namespace file on first use. Callers hold mu.
func (s *File) shard(ns string) (map[string]json.RawMessage, error) {
	if m, ok := s.shards[ns]; ok {
		return m, nil
	}
	m := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.shardPath(ns))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read cache file: %w", err)
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse cache file %s: %w", s.shardPath(ns), err)
		}
	}
	s.shards[ns] = m
	return m, nil
}

// Get retrieves a value by key.
func (s *File) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := namespaceOf(key)
	m, err := s.shard(ns)
	if err != nil {
		return nil, err
	}
	v, ok := m[strings.TrimPrefix(key, ns)]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Put stores a JSON value and rewrites its namespace file. The in-memory
// view only changes once the file write succeeded.
func (s *File) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("file store values must be JSON: %s", key)
	}
	return s.mutate(key, func(m map[string]json.RawMessage, k string) {
		m[k] = slices.Clone(value)
	})
}

// Delete removes a key.
func (s *File) Delete(_ context.Context, key string) error {
	return s.mutate(key, func(m map[string]json.RawMessage, k string) {
		delete(m, k)
	})
}

func (s *File) mutate(key string, fn func(map[string]json.RawMessage, string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := namespaceOf(key)
	m, err := s.shard(ns)
	if err != nil {
		return err
	}
	next := maps.Clone(m)
	fn(next, strings.TrimPrefix(key, ns))

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache file: %w", err)
	}
	if err := s.writer.WriteFile(s.shardPath(ns), data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	s.shards[ns] = next
	return nil
}

// Keys lists keys under prefix. Only namespaces already on disk or touched in
// this process are searched.
func (s *File) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}
	loaded := make(map[string]bool, len(s.shards))
	for ns := range s.shards {
		loaded[s.shardPath(ns)] = true
	}
	var keys []string
	for ns, m := range s.shards {
		for k := range m {
			if full := ns + k; strings.HasPrefix(full, prefix) {
				keys = append(keys, full)
			}
		}
	}
	for _, e := range entries {
		path := filepath.Join(s.dir, e.Name())
		if e.IsDir() || filepath.Ext(path) != ".json" || loaded[path] {
			continue
		}
		// Files not yet loaded: the namespace is recovered from the file name
		// only for the common "<kind>_<season>" layout.
		ns := strings.ReplaceAll(strings.TrimSuffix(e.Name(), ".json"), "_", ":") + ":"
		if ns == "default:" {
			ns = ""
		}
		if !strings.HasPrefix(ns, prefix) && !strings.HasPrefix(prefix, ns) {
			continue
		}
		m, err := s.shard(ns)
		if err != nil {
			return nil, err
		}
		for k := range m {
			if full := ns + k; strings.HasPrefix(full, prefix) {
				keys = append(keys, full)
			}
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close drops the in-memory view. Every Put is already on disk.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.shards)
	return nil
}
