// Package catalog stores fingerprint records in a kv.Store.
//
// Records are looked up by ID or by exact hash. There is no similarity
// search: near matches are found by comparing fingerprints pairwise with
// fingerprint.BitErrorRate.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/audioprint/pkg/kv"
)

// ErrNotFound is returned by Get when no record has the requested ID.
var ErrNotFound = errors.New("catalog: record not found")

// DefaultPrefix scopes catalog keys when Config.Prefix is empty.
var DefaultPrefix = kv.Key{"audioprint"}

// Record is one fingerprinted recording.
type Record struct {
	ID          string        `json:"id" yaml:"id" msgpack:"id"`
	Title       string        `json:"title,omitempty" yaml:"title,omitempty" msgpack:"title,omitempty"`
	Artist      string        `json:"artist,omitempty" yaml:"artist,omitempty" msgpack:"artist,omitempty"`
	Album       string        `json:"album,omitempty" yaml:"album,omitempty" msgpack:"album,omitempty"`
	Source      string        `json:"source,omitempty" yaml:"source,omitempty" msgpack:"source,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration" msgpack:"duration"`
	SampleRate  int           `json:"sample_rate" yaml:"sample_rate" msgpack:"sample_rate"`
	Frames      int           `json:"frames" yaml:"frames" msgpack:"frames"`
	Fingerprint string        `json:"fingerprint" yaml:"fingerprint" msgpack:"fingerprint"`
	Hash        string        `json:"hash,omitempty" yaml:"hash,omitempty" msgpack:"hash,omitempty"`
	Created     time.Time     `json:"created" yaml:"created" msgpack:"created"`
}

// Config configures a Catalog.
type Config struct {
	// Store holds the records. Required.
	Store kv.Store

	// Prefix scopes all keys. Defaults to DefaultPrefix.
	Prefix kv.Key

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now. Tests pin it.
	Now func() time.Time
}

// Catalog is a fingerprint record store.
type Catalog struct {
	store  kv.Store
	prefix kv.Key
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Catalog over cfg.Store.
func New(cfg Config) *Catalog {
	c := &Catalog{
		store:  cfg.Store,
		prefix: cfg.Prefix,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if len(c.prefix) == 0 {
		c.prefix = DefaultPrefix
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Put stores rec and returns the stored copy. An empty ID is replaced by a
// new UUID and a zero Created time by the current time. Replacing a record
// whose hash changed moves its hash index entry in the same transaction as
// the record write.
func (c *Catalog) Put(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Created.IsZero() {
		rec.Created = c.now().UTC()
	}

	var stale []kv.Key
	old, err := c.Get(ctx, rec.ID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return Record{}, err
	case old.Hash != "" && old.Hash != rec.Hash:
		stale = append(stale, hashKey(c.prefix, old.Hash, rec.ID))
	}

	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return Record{}, fmt.Errorf("catalog: encode %s: %w", rec.ID, err)
	}
	entries := []kv.Entry{{Key: recordKey(c.prefix, rec.ID), Value: data}}
	if rec.Hash != "" {
		entries = append(entries, kv.Entry{Key: hashKey(c.prefix, rec.Hash, rec.ID), Value: []byte(rec.ID)})
	}
	if err := c.store.Apply(ctx, entries, stale); err != nil {
		return Record{}, fmt.Errorf("catalog: put %s: %w", rec.ID, err)
	}
	c.logger.Debug("catalog: put", "id", rec.ID, "hash", rec.Hash)
	return rec, nil
}

// Get returns the record with id or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (Record, error) {
	data, err := c.store.Get(ctx, recordKey(c.prefix, id))
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("catalog: decode %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record and its hash entry. Deleting an unknown ID is
// not an error.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	rec, err := c.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	keys := []kv.Key{recordKey(c.prefix, id)}
	if rec.Hash != "" {
		keys = append(keys, hashKey(c.prefix, rec.Hash, id))
	}
	if err := c.store.BatchDelete(ctx, keys); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	c.logger.Debug("catalog: delete", "id", id)
	return nil
}

// List yields every record in ID order. Undecodable entries are skipped
// with a warning.
func (c *Catalog) List(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for e, err := range c.store.List(ctx, recordPrefix(c.prefix)) {
			if err != nil {
				yield(Record{}, fmt.Errorf("catalog: list: %w", err))
				return
			}
			var rec Record
			if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
				c.logger.Warn("catalog: skip malformed record", "key", e.Key.String(), "error", err)
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// FindByHash returns the records whose hash equals hash, in ID order.
func (c *Catalog) FindByHash(ctx context.Context, hash string) ([]Record, error) {
	if hash == "" {
		return nil, nil
	}
	var ids []string
	for e, err := range c.store.List(ctx, hashPrefix(c.prefix, hash)) {
		if err != nil {
			return nil, fmt.Errorf("catalog: find %s: %w", hash, err)
		}
		ids = append(ids, string(e.Value))
	}
	var out []Record
	for _, id := range ids {
		rec, err := c.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn("catalog: dangling hash entry", "hash", hash, "id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
