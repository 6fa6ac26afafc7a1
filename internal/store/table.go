package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Failure is a permanent resolution failure recorded in place of a value, so
// later runs skip the lookup.
type Failure struct {
	Code     string    `json:"code"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
}

// Entry is either a resolved value or a recorded failure.
type Entry[T any] struct {
	Value   *T       `json:"value,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// Table stores JSON-encoded entries of one type under a key prefix.
type Table[T any] struct {
	store  Store
	prefix string
}

// NewTable returns a typed view of s under prefix.
func NewTable[T any](s Store, prefix string) *Table[T] {
	return &Table[T]{store: s, prefix: prefix}
}

// Prefix returns the table's namespace.
func (t *Table[T]) Prefix() string { return t.prefix }

// Get returns the entry for key, or ErrNotFound.
func (t *Table[T]) Get(ctx context.Context, key string) (Entry[T], error) {
	var e Entry[T]
	data, err := t.store.Get(ctx, t.prefix+key)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode %s%s: %w", t.prefix, key, err)
	}
	if e.Value == nil && e.Failure == nil {
		return e, fmt.Errorf("decode %s%s: empty entry", t.prefix, key)
	}
	return e, nil
}

// Put records a resolved value, replacing any earlier failure.
func (t *Table[T]) Put(ctx context.Context, key string, v T) error {
	return t.put(ctx, key, Entry[T]{Value: &v})
}

// PutFailure records a permanent failure.
func (t *Table[T]) PutFailure(ctx context.Context, key string, f Failure) error {
	return t.put(ctx, key, Entry[T]{Failure: &f})
}

func (t *Table[T]) put(ctx context.Context, key string, e Entry[T]) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", t.prefix, key, err)
	}
	return t.store.Put(ctx, t.prefix+key, data)
}

// Delete removes an entry.
func (t *Table[T]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, t.prefix+key)
}

// Keys lists the table's keys without the prefix.
func (t *Table[T]) Keys(ctx context.Context) ([]string, error) {
	full, err := t.store.Keys(ctx, t.prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(full))
	for i, k := range full {
		keys[i] = strings.TrimPrefix(k, t.prefix)
	}
	return keys, nil
}
