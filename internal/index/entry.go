// Package index implements the in-memory Cache/Index: the mapping from
// document identifier to the current Entry for that document.
package index

import (
	"sync/atomic"
	"time"

	"github.com/MikhailWahib/nimbusdb/internal/record"
)

// Entry wraps one live document version. Entries are immutable except for
// the persisted flag; an update installs a new Entry.
type Entry struct {
	doc       record.Document
	line      []byte
	createdAt time.Time
	updatedAt time.Time
	persisted atomic.Bool
}

// NewEntry builds an Entry for a canonical document and its encoded line.
func NewEntry(doc record.Document, line []byte, createdAt time.Time, persisted bool) *Entry {
	e := &Entry{doc: doc, line: line, createdAt: createdAt}
	e.persisted.Store(persisted)
	return e
}

// Updated returns a successor Entry that keeps e's creation time and
// records updatedAt.
func (e *Entry) Updated(doc record.Document, line []byte, updatedAt time.Time) *Entry {
	return &Entry{doc: doc, line: line, createdAt: e.createdAt, updatedAt: updatedAt}
}

// Document returns the stored document. Callers must not mutate it.
func (e *Entry) Document() record.Document { return e.doc }

// Line returns the serialized form of the document, newline included.
func (e *Entry) Line() []byte { return e.line }

// CreatedAt returns when the entry was first inserted.
func (e *Entry) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last update time, or the zero time for pure inserts.
func (e *Entry) UpdatedAt() time.Time { return e.updatedAt }

// Persisted reports whether the append carrying this version completed.
func (e *Entry) Persisted() bool { return e.persisted.Load() }

// MarkPersisted flags the entry as durable on disk.
func (e *Entry) MarkPersisted() { e.persisted.Store(true) }
