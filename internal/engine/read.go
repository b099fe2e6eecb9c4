package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikhailWahib/nimbusdb/internal/index"
	"github.com/MikhailWahib/nimbusdb/internal/record"
)

// Reads never touch the disk. They see the index as of the call, which
// already includes every write whose Put/Update/Remove has returned.

// Get returns a copy of the document stored under id.
func (e *Engine) Get(id string) (record.Document, error) {
	en, ok := e.idx.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return record.Clone(en.Document()), nil
}

// Exists reports whether id has a live document.
func (e *Engine) Exists(id string) bool {
	return e.idx.Has(id)
}

// Len returns the number of live documents.
func (e *Engine) Len() int {
	return e.idx.Len()
}

// Find returns the first document, in id order, whose fields equal every
// value in cond. An empty or nil cond matches any document.
func (e *Engine) Find(cond record.Condition) (record.Document, error) {
	if len(cond) > 0 {
		var err error
		if cond, err = record.CanonicalCondition(cond); err != nil {
			return nil, fmt.Errorf("invalid condition: %w", err)
		}
	}

	var found record.Document
	e.idx.Walk(func(_ string, en *index.Entry) bool {
		if record.Match(en.Document(), cond) {
			found = en.Document()
			return false
		}
		return true
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return record.Clone(found), nil
}

// Filter returns a copy of every document for which pred returns true, in
// id order.
func (e *Engine) Filter(pred func(record.Document) bool) []record.Document {
	var out []record.Document
	e.idx.Walk(func(_ string, en *index.Entry) bool {
		doc := record.Clone(en.Document())
		if pred(doc) {
			out = append(out, doc)
		}
		return true
	})
	return out
}

// ForEach calls fn with a copy of every live document in id order. It stops
// early when fn returns false.
func (e *Engine) ForEach(fn func(record.Document) bool) {
	e.idx.Walk(func(_ string, en *index.Entry) bool {
		return fn(record.Clone(en.Document()))
	})
}

// EntryInfo is the metadata the engine keeps next to a document.
type EntryInfo struct {
	CreatedAt time.Time
	UpdatedAt time.Time // zero until the first update
	Persisted bool
}

// Meta returns the metadata of the entry stored under id.
func (e *Engine) Meta(id string) (EntryInfo, error) {
	en, ok := e.idx.Get(id)
	if !ok {
		return EntryInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return EntryInfo{
		CreatedAt: en.CreatedAt(),
		UpdatedAt: en.UpdatedAt(),
		Persisted: en.Persisted(),
	}, nil
}

// Inspect renders every live document as one JSON line, in id order. The
// output has the format of a freshly compacted log.
func (e *Engine) Inspect() string {
	var sb strings.Builder
	e.idx.Walk(func(_ string, en *index.Entry) bool {
		sb.Write(en.Line())
		return true
	})
	return sb.String()
}
