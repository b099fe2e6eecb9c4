package nimbusdb_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikhailWahib/nimbusdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_NotLoaded(t *testing.T) {
	db := nimbusdb.New(nil)

	assert.ErrorIs(t, db.Put(nimbusdb.Document{"_id": 1}), nimbusdb.ErrNotLoaded)
	assert.ErrorIs(t, db.Update("1", nimbusdb.Partial{"a": 1}), nimbusdb.ErrNotLoaded)
	assert.ErrorIs(t, db.Remove("1"), nimbusdb.ErrNotLoaded)
	assert.ErrorIs(t, db.CompactAsync().Wait(), nimbusdb.ErrNotLoaded)

	_, err := db.Get("1")
	assert.ErrorIs(t, err, nimbusdb.ErrNotLoaded)
	_, err = db.Exists("1")
	assert.ErrorIs(t, err, nimbusdb.ErrNotLoaded)
	_, err = db.Find(nimbusdb.Condition{"a": 1})
	assert.ErrorIs(t, err, nimbusdb.ErrNotLoaded)
	_, err = db.Filter(func(nimbusdb.Document) bool { return true })
	assert.ErrorIs(t, err, nimbusdb.ErrNotLoaded)
	assert.ErrorIs(t, db.ForEach(func(nimbusdb.Document) bool { return true }), nimbusdb.ErrNotLoaded)
	_, err = db.Stats()
	assert.ErrorIs(t, err, nimbusdb.ErrNotLoaded)
	assert.ErrorIs(t, db.Close(), nimbusdb.ErrNotLoaded)
}

func TestDB_LoadAndUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.db")
	db := nimbusdb.New(nil)
	require.NoError(t, db.Load(path))
	assert.ErrorIs(t, db.Load(path), nimbusdb.ErrAlreadyLoaded)

	require.NoError(t, db.Put(nimbusdb.Document{"_id": 0, "name": "bob"}))
	require.NoError(t, db.Put(nimbusdb.Document{"_id": 1, "name": "jon"}))
	require.NoError(t, db.Put(nimbusdb.Document{"_id": 2, "name": "bill"}))
	require.NoError(t, db.Remove("1"))
	require.NoError(t, db.Update("2", nimbusdb.Partial{"name": "William"}))

	bs, err := db.Filter(func(doc nimbusdb.Document) bool {
		name, _ := doc["name"].(string)
		return strings.HasPrefix(name, "b")
	})
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.Equal(t, "bob", bs[0]["name"])

	require.NoError(t, db.Close())

	// A closed DB can be loaded again.
	_, err = db.Get("0")
	assert.ErrorIs(t, err, nimbusdb.ErrNotLoaded)
	require.NoError(t, db.Load(path))
	defer db.Close()

	ok, err := db.Exists("1")
	require.NoError(t, err)
	assert.False(t, ok)

	doc, err := db.Find(nimbusdb.Condition{"name": "William"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), doc["_id"])

	n, err := db.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDB_AsyncAndCompact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "async.db")
	cfg := nimbusdb.DefaultConfig()
	cfg.DisableAutoCompact = true
	db, err := nimbusdb.Open(path, cfg)
	require.NoError(t, err)
	defer db.Close()

	var last *nimbusdb.Completion
	for i := 0; i < 100; i++ {
		last = db.PutAsync(nimbusdb.Document{"_id": "counter", "n": i})
	}
	doc, err := db.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, float64(99), doc["n"], "reads see writes before they are durable")
	require.NoError(t, last.Wait())

	var ctx context.Context // nil waits like context.Background
	require.NoError(t, db.Compact(ctx))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Compactions)
	assert.Equal(t, 1, stats.Documents)

	out, err := db.Inspect()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestDB_NilCallbacks(t *testing.T) {
	db, err := nimbusdb.Open(filepath.Join(t.TempDir(), "cb.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Filter(nil)
	assert.ErrorIs(t, err, nimbusdb.ErrNilCallback)
	assert.ErrorIs(t, db.ForEach(nil), nimbusdb.ErrNilCallback)
}

func TestDB_Destroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.db")
	db, err := nimbusdb.Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Put(nimbusdb.Document{"_id": "a"}))

	require.NoError(t, db.Destroy())
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, db.Destroy(), nimbusdb.ErrNotLoaded)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := nimbusdb.Open(filepath.Join(t.TempDir(), "bad.db"), &nimbusdb.Config{CompactThreshold: -1})
	assert.ErrorIs(t, err, nimbusdb.ErrInvalidConfig)
}
