package index_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MikhailWahib/nimbusdb/internal/index"
	"github.com/MikhailWahib/nimbusdb/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(t *testing.T, id string, name string) *index.Entry {
	t.Helper()
	doc, line, err := record.Canonicalize(record.Document{record.IDField: id, "name": name})
	require.NoError(t, err)
	return index.NewEntry(doc, line, time.Now(), false)
}

func TestIndex_PutGetDelete(t *testing.T) {
	ix := index.New()

	_, replaced := ix.Put("a", newEntry(t, "a", "bob"))
	assert.False(t, replaced)
	_, replaced = ix.Put("b", newEntry(t, "b", "jon"))
	assert.False(t, replaced)

	e, ok := ix.Get("a")
	require.True(t, ok)
	assert.Equal(t, "bob", e.Document()["name"])
	assert.True(t, ix.Has("b"))
	assert.Equal(t, 2, ix.Len())

	old, replaced := ix.Put("a", newEntry(t, "a", "bobby"))
	require.True(t, replaced)
	assert.Equal(t, "bob", old.Document()["name"])

	old, ok = ix.Delete("a")
	require.True(t, ok)
	assert.Equal(t, "bobby", old.Document()["name"])
	assert.False(t, ix.Has("a"))

	_, ok = ix.Delete("a")
	assert.False(t, ok, "deleting a missing id reports false")
	assert.Equal(t, 1, ix.Len())
}

func TestIndex_SnapshotIsolation(t *testing.T) {
	ix := index.New()
	ix.Put("1", newEntry(t, "1", "one"))
	ix.Put("2", newEntry(t, "2", "two"))

	snap := ix.Snapshot()

	ix.Delete("1")
	ix.Put("3", newEntry(t, "3", "three"))
	ix.Put("2", newEntry(t, "2", "deux"))

	var ids, names []string
	snap.Walk(func(id string, e *index.Entry) bool {
		ids = append(ids, id)
		names = append(names, e.Document()["name"].(string))
		return true
	})

	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Equal(t, []string{"one", "two"}, names)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 2, ix.Len())
	assert.True(t, snap.Has("1"))
	assert.False(t, snap.Has("3"))
}

func TestIndex_WalkOrderAndStop(t *testing.T) {
	ix := index.New()
	for _, id := range []string{"c", "a", "b", "d"} {
		ix.Put(id, newEntry(t, id, id))
	}

	var seen []string
	ix.Walk(func(id string, _ *index.Entry) bool {
		seen = append(seen, id)
		return id != "b"
	})

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestIndex_Reset(t *testing.T) {
	ix := index.New()
	ix.Put("x", newEntry(t, "x", "x"))
	ix.Reset()
	assert.Equal(t, 0, ix.Len())
	assert.False(t, ix.Has("x"))
}

func TestIndex_ConcurrentReaders(t *testing.T) {
	ix := index.New()
	entries := make([]*index.Entry, 500)
	for i := range entries {
		entries[i] = newEntry(t, fmt.Sprintf("k%03d", i), "v")
	}
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, e := range entries {
			ix.Put(fmt.Sprintf("k%03d", i), e)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				ix.Get(fmt.Sprintf("k%03d", i))
				ix.Walk(func(string, *index.Entry) bool { return true })
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 500, ix.Len())
}

func TestEntry_Lifecycle(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	doc, line, err := record.Canonicalize(record.Document{record.IDField: "e", "v": 1})
	require.NoError(t, err)

	e := index.NewEntry(doc, line, created, true)
	assert.True(t, e.Persisted())
	assert.True(t, e.UpdatedAt().IsZero())
	assert.Equal(t, line, e.Line())

	now := time.Now()
	next := e.Updated(doc, line, now)
	assert.False(t, next.Persisted(), "a new version starts unpersisted")
	assert.Equal(t, created, next.CreatedAt())
	assert.Equal(t, now, next.UpdatedAt())

	next.MarkPersisted()
	assert.True(t, next.Persisted())
}
