package index

import (
	"sync/atomic"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Index maps document identifiers to entries. It is backed by an immutable
// radix tree, so readers never lock and Snapshot is O(1).
//
// Readers may call any method concurrently. Put and Delete must be
// serialized by the caller.
type Index struct {
	tree atomic.Pointer[iradix.Tree]
}

// New creates an empty Index.
func New() *Index {
	ix := &Index{}
	ix.tree.Store(iradix.New())
	return ix
}

// Get returns the entry stored under id.
func (ix *Index) Get(id string) (*Entry, bool) {
	v, ok := ix.tree.Load().Get([]byte(id))
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Has reports whether id is live.
func (ix *Index) Has(id string) bool {
	_, ok := ix.tree.Load().Get([]byte(id))
	return ok
}

// Put installs e under id and returns the entry it replaced, if any.
func (ix *Index) Put(id string, e *Entry) (*Entry, bool) {
	tree, old, replaced := ix.tree.Load().Insert([]byte(id), e)
	ix.tree.Store(tree)
	if !replaced {
		return nil, false
	}
	return old.(*Entry), true
}

// Delete removes id and returns the entry it held, if any.
func (ix *Index) Delete(id string) (*Entry, bool) {
	tree, old, ok := ix.tree.Load().Delete([]byte(id))
	if !ok {
		return nil, false
	}
	ix.tree.Store(tree)
	return old.(*Entry), true
}

// Len returns the number of live identifiers.
func (ix *Index) Len() int {
	return ix.tree.Load().Len()
}

// Reset drops every entry.
func (ix *Index) Reset() {
	ix.tree.Store(iradix.New())
}

// Snapshot returns a point-in-time view that later mutations do not affect.
func (ix *Index) Snapshot() Snapshot {
	return Snapshot{tree: ix.tree.Load()}
}

// Walk visits every live entry in ascending identifier order until fn
// returns false.
func (ix *Index) Walk(fn func(id string, e *Entry) bool) {
	ix.Snapshot().Walk(fn)
}

// Snapshot is a frozen view of an Index.
type Snapshot struct {
	tree *iradix.Tree
}

// Len returns the number of entries in the snapshot.
func (s Snapshot) Len() int {
	return s.tree.Len()
}

// Has reports whether id was live when the snapshot was taken.
func (s Snapshot) Has(id string) bool {
	_, ok := s.tree.Get([]byte(id))
	return ok
}

// Walk visits every entry in ascending identifier order until fn returns false.
func (s Snapshot) Walk(fn func(id string, e *Entry) bool) {
	s.tree.Root().Walk(func(k []byte, v interface{}) bool {
		return !fn(string(k), v.(*Entry))
	})
}
