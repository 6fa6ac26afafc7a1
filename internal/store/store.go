// Package store provides the persistent key/value caches shared by the
// resolvers. Backends are interchangeable behind Store; Table layers typed
// entries and recorded failures on top of any backend.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/rugbymap/rugbymap/internal/errors"
)

// ErrNotFound is returned by Get when a key has no entry.
var ErrNotFound = errors.NotFound("key not found")

// Store is a byte-valued key/value store. Put must be atomic per key: a
// reader never observes a half-written value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists the keys under prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Dir       string
	RedisAddr string
	RedisDB   int
	Logger    *slog.Logger
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendBadger:
		return NewBadger(filepath.Join(opts.Dir, "cache.db"), opts.Logger)
	case BackendFile:
		return NewFile(filepath.Join(opts.Dir, "cache"), RenameWriter{}, opts.Logger)
	case BackendRedis:
		return NewRedis(ctx, opts.RedisAddr, opts.RedisDB, opts.Logger)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Configurationf("unknown cache backend %q", opts.Backend)
	}
}

// AddressNamespace is the key prefix for one season's club addresses.
func AddressNamespace(season string) string {
	return fmt.Sprintf("address:%s:", season)
}

// GeocodeNamespace is the key prefix for geocoded addresses. It carries no
// season: a geocode never expires.
const GeocodeNamespace = "geocode:"
