// Package nimbusdb is an embedded document store backed by a single
// append-only file of newline-delimited JSON documents.
//
// Every document carries a unique "_id". Writes update the in-memory index
// at once and are appended to the log in call order; reads never touch the
// disk. When the log grows past a threshold it is compacted online: live
// documents are rewritten to a fresh file which then replaces the log, while
// writes keep landing.
//
// Example usage:
//
//	db, err := nimbusdb.Open("/path/to/people.db", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.Put(nimbusdb.Document{"_id": 1, "name": "bob"})
//	if err != nil {
//		log.Printf("Put failed: %v", err)
//	}
//
//	doc, err := db.Get("1")
//	if err == nil {
//		fmt.Println(doc["name"])
//	}
//
//	err = db.Remove("1")
//	if err != nil {
//		log.Printf("Remove failed: %v", err)
//	}
package nimbusdb

import (
	"context"
	"errors"
	"sync"

	"github.com/MikhailWahib/nimbusdb/internal/config"
	"github.com/MikhailWahib/nimbusdb/internal/engine"
	"github.com/MikhailWahib/nimbusdb/internal/record"
)

// Config is an alias for config.Config, re-exported for user convenience.
type Config = config.Config

// DefaultConfig returns a Config struct populated with default values. Re-exported for user convenience.
var DefaultConfig = config.DefaultConfig

type (
	// Document is a schemaless record. It must hold an "_id" that is a
	// string or a number.
	Document = record.Document
	// Partial is a set of fields merged over a stored document by Update.
	Partial = record.Partial
	// Condition is an equality constraint set used by Find.
	Condition = record.Condition
	// Completion is the result handle returned by the Async operations.
	Completion = engine.Completion
	// Stats is a point-in-time summary of a loaded database.
	Stats = engine.Stats
	// EntryInfo is the metadata kept next to a document.
	EntryInfo = engine.EntryInfo
)

var (
	// ErrNotLoaded is returned by every operation before Load succeeds and
	// after Close or Destroy.
	ErrNotLoaded = errors.New("database not loaded")
	// ErrAlreadyLoaded is returned by Load on a loaded database.
	ErrAlreadyLoaded = errors.New("database already loaded")
	// ErrNilCallback is returned when a required callback is nil.
	ErrNilCallback = errors.New("callback must not be nil")

	ErrNotFound          = engine.ErrNotFound
	ErrAlreadyCompacting = engine.ErrAlreadyCompacting
	ErrIO                = engine.ErrIO
	ErrParse             = engine.ErrParse
	ErrMissingID         = engine.ErrMissingID
	ErrInvalidID         = engine.ErrInvalidID
	ErrReservedField     = engine.ErrReservedField
	ErrClosed            = engine.ErrClosed
	ErrInvalidConfig     = config.ErrInvalidConfig
)

// DB is a thread-safe handle on one database file.
type DB struct {
	cfg *Config

	mu     sync.RWMutex
	engine *engine.Engine
}

// New returns an unloaded database. A nil cfg uses DefaultConfig.
func New(cfg *Config) *DB {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &DB{cfg: cfg}
}

// Open creates a DB and loads the file at path.
//
// The file is created if it doesn't exist. If it exists, it is replayed into
// memory; a malformed line fails the load.
func Open(path string, cfg *Config) (*DB, error) {
	db := New(cfg)
	if err := db.Load(path); err != nil {
		return nil, err
	}
	return db, nil
}

// Load opens or creates the database file at path and replays it.
func (db *DB) Load(path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.engine != nil {
		return ErrAlreadyLoaded
	}
	e, err := engine.Open(path, db.cfg, nil)
	if err != nil {
		return err
	}
	db.engine = e
	return nil
}

func (db *DB) loaded() (*engine.Engine, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.engine == nil {
		return nil, ErrNotLoaded
	}
	return db.engine, nil
}

// Put inserts or replaces a document and waits until it is on disk.
func (db *DB) Put(doc Document) error {
	return db.PutAsync(doc).Wait()
}

// PutAsync inserts or replaces a document. The new value is visible to
// reads when PutAsync returns; the Completion resolves once it is on disk.
func (db *DB) PutAsync(doc Document) *Completion {
	e, err := db.loaded()
	if err != nil {
		return engine.Failed(err)
	}
	return e.Put(doc)
}

// Update merges partial over the document stored under id and waits until
// the result is on disk.
func (db *DB) Update(id string, partial Partial) error {
	return db.UpdateAsync(id, partial).Wait()
}

// UpdateAsync is the asynchronous form of Update.
func (db *DB) UpdateAsync(id string, partial Partial) *Completion {
	e, err := db.loaded()
	if err != nil {
		return engine.Failed(err)
	}
	return e.Update(id, partial)
}

// Remove deletes the document stored under id and waits until the removal
// is on disk.
func (db *DB) Remove(id string) error {
	return db.RemoveAsync(id).Wait()
}

// RemoveAsync is the asynchronous form of Remove. The document is gone from
// reads when RemoveAsync returns.
func (db *DB) RemoveAsync(id string) *Completion {
	e, err := db.loaded()
	if err != nil {
		return engine.Failed(err)
	}
	return e.Remove(id)
}

// Get returns a copy of the document stored under id.
func (db *DB) Get(id string) (Document, error) {
	e, err := db.loaded()
	if err != nil {
		return nil, err
	}
	return e.Get(id)
}

// Exists reports whether id has a live document.
func (db *DB) Exists(id string) (bool, error) {
	e, err := db.loaded()
	if err != nil {
		return false, err
	}
	return e.Exists(id), nil
}

// Meta returns the metadata kept for id.
func (db *DB) Meta(id string) (EntryInfo, error) {
	e, err := db.loaded()
	if err != nil {
		return EntryInfo{}, err
	}
	return e.Meta(id)
}

// Find returns the first document, in id order, matching every field of cond.
func (db *DB) Find(cond Condition) (Document, error) {
	e, err := db.loaded()
	if err != nil {
		return nil, err
	}
	return e.Find(cond)
}

// Filter returns every document for which pred returns true, in id order.
func (db *DB) Filter(pred func(Document) bool) ([]Document, error) {
	if pred == nil {
		return nil, ErrNilCallback
	}
	e, err := db.loaded()
	if err != nil {
		return nil, err
	}
	return e.Filter(pred), nil
}

// ForEach calls fn for every live document in id order until fn returns false.
func (db *DB) ForEach(fn func(Document) bool) error {
	if fn == nil {
		return ErrNilCallback
	}
	e, err := db.loaded()
	if err != nil {
		return err
	}
	e.ForEach(fn)
	return nil
}

// Len returns the number of live documents.
func (db *DB) Len() (int, error) {
	e, err := db.loaded()
	if err != nil {
		return 0, err
	}
	return e.Len(), nil
}

// Inspect returns every live document as one JSON line, in id order.
func (db *DB) Inspect() (string, error) {
	e, err := db.loaded()
	if err != nil {
		return "", err
	}
	return e.Inspect(), nil
}

// Stats reports the current state of the database.
func (db *DB) Stats() (Stats, error) {
	e, err := db.loaded()
	if err != nil {
		return Stats{}, err
	}
	return e.Stats(), nil
}

// Compact rewrites the file so it holds one line per live document. It
// returns ErrAlreadyCompacting if a compaction is running. If ctx ends
// first, Compact returns ctx.Err() and the compaction finishes in the
// background. A nil ctx waits for the pass to finish.
func (db *DB) Compact(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return db.CompactAsync().WaitContext(ctx)
}

// CompactAsync starts a compaction in the background.
func (db *DB) CompactAsync() *Completion {
	e, err := db.loaded()
	if err != nil {
		return engine.Failed(err)
	}
	return e.CompactAsync()
}

// Close writes every pending append, waits for a running compaction and
// closes the file. The DB returns to the unloaded state and may be loaded
// again.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.engine == nil {
		return ErrNotLoaded
	}
	err := db.engine.Close()
	db.engine = nil
	return err
}

// Destroy closes the database and deletes its file.
func (db *DB) Destroy() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.engine == nil {
		return ErrNotLoaded
	}
	err := db.engine.Destroy()
	db.engine = nil
	return err
}
