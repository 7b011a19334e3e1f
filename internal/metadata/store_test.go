package metadata

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/domain"
)

func strPtr(s string) *string { return &s }

const arrayDoc = `[
 {"id": 1, "name": "Toad #1", "image": "ipfs://Qm1", "attributes": [{"trait_type": "Background", "value": "Red"}]},
 {"id": "2", "name": "Toad #2", "art": "ipfs://art2", "image": "ipfs://Qm2", "attributes": [{"trait_type": "Background", "value": "Blue"}]},
 {"id": 3, "attributes": [{"trait_type": "Background", "value": "Red"}, {"trait_type": "Level", "value": 3}]},
 {"id": 4, "attributes": [{"trait_type": "Background", "value": "Green"}]},
 {"name": "no id"}
]`

func TestStore_LoadFromHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/meta/toadz.json", r.URL.Path)
		_, _ = w.Write([]byte(arrayDoc))
	}))
	defer srv.Close()

	store := NewStore(srv.URL + "/meta")
	col := domain.Collection{Address: "0xABC", Name: "Toadz", MetadataSourceURI: strPtr("toadz.json")}

	table, err := store.Load(t.Context(), col)
	require.NoError(t, err)
	assert.Len(t, table.Metadata, 4)
	assert.False(t, table.Generated)

	m, ok := table.Token(2)
	require.True(t, ok)
	assert.Equal(t, "ipfs://art2", *m.Image)
	lvl, _ := table.Metadata[3].Trait("Level")
	assert.Equal(t, "3", lvl)

	r, ok := table.RarityOf(2)
	require.True(t, ok)
	assert.Equal(t, 4.0, r.RawScore)

	again, err := store.Load(t.Context(), col)
	require.NoError(t, err)
	assert.Same(t, table, again)
	assert.Equal(t, int32(1), hits.Load())

	got, ok := store.Get("0xabc")
	require.True(t, ok)
	assert.Same(t, table, got)
}

func TestStore_LoadObjectFromFile(t *testing.T) {
	dir := t.TempDir()
	doc := `{"1": {"name": "A", "attributes": [{"trait_type": "Hat", "value": "Cap"}]}, "2": {"attributes": "broken"}, "x": {}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "col.json"), []byte(doc), 0o644))

	store := NewStore(dir)
	table, err := store.Load(t.Context(), domain.Collection{Address: "0x1", Name: "Col", MetadataSourceURI: strPtr("col.json")})
	require.NoError(t, err)
	assert.Len(t, table.Metadata, 2)
	assert.False(t, table.Metadata[2].HasAttributes())

	r, ok := table.RarityOf(2)
	require.True(t, ok)
	assert.Equal(t, 0.0, r.RawScore)
	assert.Equal(t, 2, r.Rank)
}

func TestStore_GeneratedWithoutSource(t *testing.T) {
	store := NewStore("")
	table, err := store.Load(t.Context(), domain.Collection{Address: "0x2", Name: "Punks", Supply: 3})
	require.NoError(t, err)
	assert.True(t, table.Generated)
	require.Len(t, table.Metadata, 3)
	assert.Equal(t, "Punks #3", *table.Metadata[3].Name)
}

func TestStore_NoRarity(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(arrayDoc), 0o644))

	table, err := NewStore(dir).Load(t.Context(), domain.Collection{Address: "0x3", NoRarity: true, MetadataSourceURI: strPtr("c.json")})
	require.NoError(t, err)
	_, ok := table.RarityOf(1)
	assert.False(t, ok)
}

func TestStore_FailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(arrayDoc))
	}))
	defer srv.Close()

	store := NewStore("")
	col := domain.Collection{Address: "0x4", MetadataSourceURI: strPtr(srv.URL + "/x.json")}

	_, err := store.Load(t.Context(), col)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	_, ok := store.Get(col.Address)
	assert.False(t, ok)

	fail.Store(false)
	table, err := store.Load(t.Context(), col)
	require.NoError(t, err)
	assert.Len(t, table.Metadata, 4)
}

func TestStore_MalformedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`"nope"`), 0o644))

	_, err := NewStore(dir).Load(t.Context(), domain.Collection{Address: "0x5", MetadataSourceURI: strPtr("bad.json")})
	assert.ErrorIs(t, err, domain.ErrPartialData)
}

func TestStore_Invalidate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(arrayDoc))
	}))
	defer srv.Close()

	store := NewStore(srv.URL)
	col := domain.Collection{Address: "0xAbC", MetadataSourceURI: strPtr("a.json")}

	_, err := store.Load(t.Context(), col)
	require.NoError(t, err)

	assert.True(t, store.Invalidate("0xabc"))
	assert.False(t, store.Invalidate("0xabc"))
	_, ok := store.Get(col.Address)
	assert.False(t, ok)

	_, err = store.Load(t.Context(), col)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStore_InvalidateDuringLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
			<-release
			_, _ = w.Write([]byte(arrayDoc))
			return
		}
		_, _ = w.Write([]byte(`[{"id": 7, "name": "Fresh"}]`))
	}))
	defer srv.Close()

	store := NewStore(srv.URL)
	col := domain.Collection{Address: "0x7", MetadataSourceURI: strPtr("a.json")}

	done := make(chan *Table)
	go func() {
		table, err := store.Load(t.Context(), col)
		assert.NoError(t, err)
		done <- table
	}()

	<-started
	store.Invalidate(col.Address)
	close(release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Len(t, stale.Metadata, 4, "in-flight caller still gets its result")

	_, ok := store.Get(col.Address)
	assert.False(t, ok, "invalidated load must not be stored")

	fresh, err := store.Load(t.Context(), col)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	require.Len(t, fresh.Metadata, 1)
	_, ok = fresh.Token(7)
	assert.True(t, ok)
}

func TestStore_ConcurrentLoadsShareFetch(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(arrayDoc))
	}))
	defer srv.Close()

	store := NewStore(srv.URL)
	col := domain.Collection{Address: "0x6", MetadataSourceURI: strPtr("a.json")}

	var wg sync.WaitGroup
	tables := make([]*Table, 5)
	for i := range tables {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i], _ = store.Load(t.Context(), col)
		}()
	}
	for hits.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	for _, tb := range tables {
		assert.NotNil(t, tb)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestImageURL(t *testing.T) {
	col := domain.Collection{BaseImageURI: "https://base/"}
	meta := domain.TokenMetadata{Image: strPtr("ipfs://QmX")}

	assert.Equal(t, "https://dweb.link/ipfs/QmX", ImageURL(col, 1, &meta))
	assert.Equal(t, "https://base/7.png", ImageURL(col, 7, nil))

	col.ThumbnailURI = strPtr("https://thumb/")
	assert.Equal(t, "https://thumb/1.png", ImageURL(col, 1, &meta))
}

func TestStore_TokenIDs(t *testing.T) {
	ids, err := NewStore("").TokenIDs(t.Context(), domain.Collection{Address: "0x7", Name: "C", Supply: 4})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
}
