package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/audioprint/pkg/catalog"
	"github.com/haivivi/audioprint/pkg/kv"
)

var pinned = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newCatalog(t *testing.T) (*catalog.Catalog, kv.Store) {
	t.Helper()
	store := kv.NewMemory(nil)
	t.Cleanup(func() { store.Close() })
	c := catalog.New(catalog.Config{
		Store:  store,
		Prefix: kv.Key{"test"},
		Now:    func() time.Time { return pinned },
	})
	return c, store
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)

	rec, err := c.Put(ctx, catalog.Record{
		Title:       "Tone",
		Duration:    3 * time.Second,
		SampleRate:  11025,
		Frames:      22,
		Fingerprint: "AQAB",
		Hash:        "A1B2",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Fatalf("ID %q is not a UUID: %v", rec.ID, err)
	}
	if !rec.Created.Equal(pinned) {
		t.Errorf("Created = %v, want %v", rec.Created, pinned)
	}

	got, err := c.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Tone" || got.Duration != 3*time.Second || got.Frames != 22 ||
		got.Fingerprint != "AQAB" || got.Hash != "A1B2" || !got.Created.Equal(pinned) {
		t.Errorf("Get = %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	c, _ := newCatalog(t)
	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestPutKeepsExplicitID(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	rec, err := c.Put(ctx, catalog.Record{ID: "song-1", Fingerprint: "AQAB"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "song-1" {
		t.Fatalf("ID = %q", rec.ID)
	}
}

func TestPutInvalidID(t *testing.T) {
	c, _ := newCatalog(t)
	_, err := c.Put(context.Background(), catalog.Record{ID: "a:b"})
	if !errors.Is(err, kv.ErrInvalidKey) {
		t.Fatalf("Put = %v, want ErrInvalidKey", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, store := newCatalog(t)
	rec, err := c.Put(ctx, catalog.Record{ID: "x", Hash: "FF"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, rec.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Get after Delete = %v", err)
	}
	for e, err := range store.List(ctx, kv.Key{"test"}) {
		t.Errorf("leftover entry %v (err %v)", e.Key, err)
	}
	if err := c.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestFindByHash(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	for _, r := range []catalog.Record{
		{ID: "b", Hash: "AA"},
		{ID: "a", Hash: "AA"},
		{ID: "c", Hash: "BB"},
		{ID: "d"},
	} {
		if _, err := c.Put(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		hash string
		want []string
	}{
		{"AA", []string{"a", "b"}},
		{"BB", []string{"c"}},
		{"CC", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.hash, func(t *testing.T) {
			got, err := c.FindByHash(ctx, tt.hash)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("FindByHash(%q) = %v, want %v", tt.hash, ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("FindByHash(%q) = %v, want %v", tt.hash, ids, tt.want)
				}
			}
		})
	}
}

func TestPutMovesHash(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	if _, err := c.Put(ctx, catalog.Record{ID: "r", Hash: "OLD"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put(ctx, catalog.Record{ID: "r", Hash: "NEW"}); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.FindByHash(ctx, "OLD"); len(got) != 0 {
		t.Errorf("OLD still indexed: %v", got)
	}
	if got, _ := c.FindByHash(ctx, "NEW"); len(got) != 1 {
		t.Errorf("NEW lookup = %v", got)
	}
}

// failingStore rejects every transaction while fail is set.
type failingStore struct {
	*kv.Memory
	fail bool
}

var errStoreDown = errors.New("store down")

func (s *failingStore) Apply(ctx context.Context, set []kv.Entry, del []kv.Key) error {
	if s.fail {
		return errStoreDown
	}
	return s.Memory.Apply(ctx, set, del)
}

func TestPutFailureKeepsIndex(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Memory: kv.NewMemory(nil)}
	c := catalog.New(catalog.Config{Store: store, Prefix: kv.Key{"test"}})
	if _, err := c.Put(ctx, catalog.Record{ID: "r", Hash: "OLD"}); err != nil {
		t.Fatal(err)
	}

	store.fail = true
	if _, err := c.Put(ctx, catalog.Record{ID: "r", Hash: "NEW"}); !errors.Is(err, errStoreDown) {
		t.Fatalf("Put error = %v, want errStoreDown", err)
	}
	store.fail = false

	rec, err := c.Get(ctx, "r")
	if err != nil || rec.Hash != "OLD" {
		t.Fatalf("Get = %+v, %v; want hash OLD", rec, err)
	}
	got, err := c.FindByHash(ctx, "OLD")
	if err != nil || len(got) != 1 || got[0].ID != "r" {
		t.Errorf("FindByHash(OLD) = %v, %v; want [r]", got, err)
	}
	if got, _ := c.FindByHash(ctx, "NEW"); len(got) != 0 {
		t.Errorf("NEW indexed after a failed Put: %v", got)
	}
}

func TestListSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	c, store := newCatalog(t)
	for _, id := range []string{"2", "1"} {
		if _, err := c.Put(ctx, catalog.Record{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Set(ctx, kv.Key{"test", "fp", "0"}, []byte{0xc1}); err != nil {
		t.Fatal(err)
	}

	var ids []string
	for rec, err := range c.List(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("List = %v, want [1 2]", ids)
	}
}

func TestBadgerBackend(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	c := catalog.New(catalog.Config{Store: store})

	rec, err := c.Put(ctx, catalog.Record{Title: "persisted", Hash: "0F"})
	if err != nil {
		t.Fatal(err)
	}
	found, err := c.FindByHash(ctx, "0F")
	if err != nil || len(found) != 1 || found[0].ID != rec.ID {
		t.Fatalf("FindByHash = %v, %v", found, err)
	}
}
