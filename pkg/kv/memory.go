package kv

import (
	"bytes"
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
)

// Memory is a Store held in a map, used by tests and by the CLI's
// throwaway "memory" catalog.
//
// Values are copied on the way in and out, so callers may reuse their
// slices. It is safe for concurrent use; writers take the lock exclusively
// and readers share it.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	opts *Options
}

// NewMemory returns an empty Memory store.
// Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{data: make(map[string][]byte), opts: opts}
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[string(m.opts.encode(key))]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Set validates key and stores a copy of value.
func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	if err := m.opts.Validate(key); err != nil {
		return err
	}
	v := bytes.Clone(value)
	m.mu.Lock()
	m.data[string(m.opts.encode(key))] = v
	m.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.data, string(m.opts.encode(key)))
	m.mu.Unlock()
	return nil
}

// List yields the entries below prefix in ascending key order.
//
// The matching entries are snapshotted under the read lock before the
// first yield, so callers may write to the store while iterating and will
// not see their own writes.
func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.opts.prefixBytes(prefix)

	m.mu.RLock()
	var entries []Entry
	for _, k := range slices.Sorted(maps.Keys(m.data)) {
		if !bytes.HasPrefix([]byte(k), p) {
			continue
		}
		entries = append(entries, Entry{Key: m.opts.decode([]byte(k)), Value: bytes.Clone(m.data[k])})
	}
	m.mu.RUnlock()

	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// BatchSet stores all entries under one lock. Keys are validated first, so
// an invalid key leaves the store untouched.
func (m *Memory) BatchSet(ctx context.Context, entries []Entry) error {
	return m.Apply(ctx, entries, nil)
}

// BatchDelete removes all keys under one lock.
func (m *Memory) BatchDelete(ctx context.Context, keys []Key) error {
	return m.Apply(ctx, nil, keys)
}

// Apply removes del and then stores set under one lock.
func (m *Memory) Apply(_ context.Context, set []Entry, del []Key) error {
	for _, e := range set {
		if err := m.opts.Validate(e.Key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range del {
		delete(m.data, string(m.opts.encode(k)))
	}
	for _, e := range set {
		m.data[string(m.opts.encode(e.Key))] = bytes.Clone(e.Value)
	}
	return nil
}

// Close is a no-op; the data is dropped with the Memory value.
func (m *Memory) Close() error { return nil }
