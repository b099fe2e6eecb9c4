package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/MikhailWahib/nimbusdb/internal/index"
	"github.com/MikhailWahib/nimbusdb/internal/record"
)

// pending is one queued append. entry is nil for tombstones.
type pending struct {
	line  []byte
	entry *index.Entry
	done  *Completion
}

// Put inserts or replaces a document. The new value is visible to reads
// before Put returns; the returned Completion resolves once the append is
// durable, or with the append error.
//
// A failed append does not roll back the in-memory value: the entry stays
// unpersisted until a later write or a reload.
func (e *Engine) Put(doc record.Document) *Completion {
	id, err := record.ID(doc)
	if err != nil {
		return completed(err)
	}
	if _, ok := doc[record.RemovedField]; ok {
		return completed(fmt.Errorf("%w: %s", ErrReservedField, record.RemovedField))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return completed(ErrClosed)
	}
	return e.putLocked(id, doc)
}

// Update merges partial over the current document for id and stores the
// result with the Put contract.
func (e *Engine) Update(id string, partial record.Partial) *Completion {
	if err := record.CheckPartial(partial); err != nil {
		return completed(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return completed(ErrClosed)
	}
	cur, ok := e.idx.Get(id)
	if !ok {
		return completed(fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	return e.putLocked(id, record.Merge(cur.Document(), partial))
}

// Remove deletes id from memory immediately and appends a tombstone.
func (e *Engine) Remove(id string) *Completion {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return completed(ErrClosed)
	}
	cur, ok := e.idx.Delete(id)
	if !ok {
		return completed(fmt.Errorf("%w: %s", ErrNotFound, id))
	}

	tomb := record.Merge(cur.Document(), record.Partial{
		record.RemovedField: true,
		record.UpdatedField: record.Millis(e.now()),
	})
	line, err := record.Encode(tomb)
	if err != nil {
		// The document encoded before, so this cannot happen short of a bug.
		e.idx.Put(id, cur)
		return completed(err)
	}
	return e.enqueueLocked(id, line, nil)
}

// putLocked stamps timestamps, installs the new entry and queues its
// append. Callers hold e.mu.
func (e *Engine) putLocked(id string, doc record.Document) *Completion {
	now := e.now()
	prev, exists := e.idx.Get(id)

	doc = record.Merge(doc, nil)
	if exists {
		if _, ok := doc[record.CreatedField]; !ok {
			if ctime, ok := prev.Document()[record.CreatedField]; ok {
				doc[record.CreatedField] = ctime
			}
		}
		doc[record.UpdatedField] = record.Millis(now)
	} else if _, ok := doc[record.CreatedField]; !ok {
		doc[record.CreatedField] = record.Millis(now)
	}

	canon, line, err := record.Canonicalize(doc)
	if err != nil {
		return completed(fmt.Errorf("encode document %s: %w", id, err))
	}

	var entry *index.Entry
	if exists {
		entry = prev.Updated(canon, line, now)
	} else {
		createdAt, ok := record.TimeField(canon, record.CreatedField)
		if !ok {
			createdAt = now
		}
		entry = index.NewEntry(canon, line, createdAt, false)
	}
	e.idx.Put(id, entry)

	return e.enqueueLocked(id, line, entry)
}

// enqueueLocked queues an append in invocation order and records id in the
// dirty set of a running compaction. Callers hold e.mu.
func (e *Engine) enqueueLocked(id string, line []byte, entry *index.Entry) *Completion {
	if e.compacting {
		e.dirty[id] = struct{}{}
	}
	c := newCompletion()
	e.queue = append(e.queue, &pending{line: line, entry: entry, done: c})
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return c
}

// runWriter is the single goroutine that appends queued lines to the active
// log, in queue order, until Close.
func (e *Engine) runWriter() {
	defer close(e.writerDone)
	for {
		select {
		case <-e.wake:
			e.flush()
		case <-e.stop:
			e.flush()
			return
		}
	}
}

// flush writes everything queued so far in batches of at most MaxBatchSize.
func (e *Engine) flush() {
	for {
		e.mu.Lock()
		batch := e.queue
		if len(batch) > e.cfg.MaxBatchSize {
			batch = batch[:e.cfg.MaxBatchSize]
			e.queue = e.queue[e.cfg.MaxBatchSize:]
		} else {
			e.queue = nil
		}
		e.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		e.writeBatch(batch)
	}
}

func (e *Engine) writeBatch(batch []*pending) {
	lines := make([][]byte, len(batch))
	for i, p := range batch {
		lines[i] = p.line
	}

	e.fileMu.Lock()
	w := e.active.Load()
	_, err := w.Append(lines...)
	size := w.Size()
	e.fileMu.Unlock()

	if err != nil {
		err = ioErr("append "+e.path, err)
		e.log.Error("append failed", zap.String("path", e.path), zap.Int("documents", len(batch)), zap.Error(err))
		for _, p := range batch {
			p.done.resolve(err)
		}
		return
	}

	for _, p := range batch {
		if p.entry != nil {
			p.entry.MarkPersisted()
		}
	}

	if !e.cfg.DisableAutoCompact && size > e.cfg.CompactThreshold {
		e.mu.Lock()
		if !e.compacting && !e.closed.Load() {
			snap := e.beginCompactionLocked()
			e.log.Info("log exceeds compaction threshold",
				zap.Int64("size", size),
				zap.Int64("threshold", e.cfg.CompactThreshold))
			go func() {
				if err := e.compact(snap); err != nil {
					e.log.Error("automatic compaction failed", zap.Error(err))
				}
			}()
		}
		e.mu.Unlock()
	}

	for _, p := range batch {
		p.done.resolve(nil)
	}
}
