// Package kv is the record store behind the fingerprint catalog.
//
// Keys are paths of string segments such as Key{"audioprint", "fp", id},
// joined with a single separator byte (':' by default) when stored. Listing a
// prefix matches whole segments only, so Key{"a", "fp"} never matches
// "a:fpx:1".
//
// Two backends are provided: Badger for on-disk catalogs and Memory for tests
// and throwaway sessions.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned when a segment is empty or contains the
	// separator byte.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a path of segments.
type Key []string

// String joins the segments with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry pairs a key with its value.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a path-keyed byte store.
//
// # Thread Safety
//
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields the entries below prefix in ascending encoded-key order.
	// An empty prefix yields everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores all entries in one transaction.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes all keys in one transaction.
	BatchDelete(ctx context.Context, keys []Key) error

	// Apply stores set and removes del in one transaction. Either every
	// change lands or none does. A key in both lists ends up stored.
	Apply(ctx context.Context, set []Entry, del []Key) error

	Close() error
}

// DefaultSeparator joins key segments.
const DefaultSeparator byte = ':'

// Options configures key encoding. A nil *Options is valid.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o == nil || o.Separator == 0 {
		return DefaultSeparator
	}
	return o.Separator
}

// Validate reports ErrInvalidKey if a segment of k is empty or contains the
// separator.
func (o *Options) Validate(k Key) error {
	s := o.sep()
	for i, seg := range k {
		if seg == "" {
			return fmt.Errorf("%w: segment %d of %q is empty", ErrInvalidKey, i, k)
		}
		if strings.IndexByte(seg, s) >= 0 {
			return fmt.Errorf("%w: segment %q contains %q", ErrInvalidKey, seg, s)
		}
	}
	return nil
}

func (o *Options) encode(k Key) []byte {
	s := o.sep()
	var buf bytes.Buffer
	for i, seg := range k {
		if i > 0 {
			buf.WriteByte(s)
		}
		buf.WriteString(seg)
	}
	return buf.Bytes()
}

// prefixBytes returns the encoded prefix followed by the separator, or nil
// for an empty prefix.
func (o *Options) prefixBytes(k Key) []byte {
	if len(k) == 0 {
		return nil
	}
	return append(o.encode(k), o.sep())
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}
