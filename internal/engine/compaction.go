package engine

import (
	"errors"
	"io/fs"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MikhailWahib/nimbusdb/internal/index"
	"github.com/MikhailWahib/nimbusdb/internal/record"
	"github.com/MikhailWahib/nimbusdb/internal/wal"
)

// Compact rewrites the log so it holds one line per live document and waits
// for the swap. Writes keep landing while it runs.
func (e *Engine) Compact() error {
	return e.CompactAsync().Wait()
}

// CompactAsync starts a compaction in the background. The returned
// Completion resolves with ErrAlreadyCompacting at once if another pass is
// running.
func (e *Engine) CompactAsync() *Completion {
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return completed(ErrClosed)
	}
	if e.compacting {
		e.mu.Unlock()
		return completed(ErrAlreadyCompacting)
	}
	snap := e.beginCompactionLocked()
	e.mu.Unlock()

	c := newCompletion()
	go func() {
		c.resolve(e.compact(snap))
	}()
	return c
}

// beginCompactionLocked flags a compaction as running, starts a fresh dirty
// set and returns the index snapshot for the first batch. Callers hold e.mu
// and must run compact with the snapshot.
func (e *Engine) beginCompactionLocked() index.Snapshot {
	e.compacting = true
	e.dirty = make(map[string]struct{})
	e.bg.Add(1)
	return e.idx.Snapshot()
}

// compact writes snap to a temp file, then drains the dirty set into it
// until a pass finds it empty, then swaps the temp file in for the live log.
func (e *Engine) compact(snap index.Snapshot) error {
	defer e.bg.Done()

	start := e.now()
	tmpPath := e.path + compactSuffix + uuid.NewString()
	log := e.log.With(zap.String("path", e.path), zap.String("tmp", tmpPath))
	log.Info("compaction started", zap.Int("documents", snap.Len()))

	tmp, err := wal.Open(e.dm, tmpPath, e.cfg.NoSync)
	if err != nil {
		e.abortCompaction(nil, tmpPath)
		err = ioErr("create "+tmpPath, err)
		log.Error("compaction failed", zap.Error(err))
		return err
	}

	// ids whose latest line in tmp is a live document
	written := make(map[string]struct{})
	inTmp := func(id string) bool {
		if _, ok := written[id]; ok {
			return true
		}
		return snap.Has(id)
	}

	lines := make([][]byte, 0, snap.Len())
	snap.Walk(func(_ string, en *index.Entry) bool {
		lines = append(lines, en.Line())
		return true
	})
	if _, err := tmp.Append(lines...); err != nil {
		return e.failCompaction(log, tmp, tmpPath, ioErr("write "+tmpPath, err))
	}

	passes := 0
	for {
		e.mu.Lock()
		if len(e.dirty) == 0 {
			// e.mu stays held through the swap so no write can slip in
			// between the last drain and the handle change.
			break
		}
		ids := make([]string, 0, len(e.dirty))
		for id := range e.dirty {
			ids = append(ids, id)
		}
		e.dirty = make(map[string]struct{})
		sort.Strings(ids)

		lines = lines[:0]
		for _, id := range ids {
			if en, ok := e.idx.Get(id); ok {
				lines = append(lines, en.Line())
				written[id] = struct{}{}
				continue
			}
			// Removed while compacting. Only an id that already has a live
			// line in tmp needs a tombstone to stay removed on replay.
			if inTmp(id) {
				line, err := record.Encode(record.Document{record.IDField: id, record.RemovedField: true})
				if err != nil {
					e.mu.Unlock()
					return e.failCompaction(log, tmp, tmpPath, err)
				}
				lines = append(lines, line)
				delete(written, id)
			}
		}
		e.mu.Unlock()

		passes++
		if _, err := tmp.Append(lines...); err != nil {
			return e.failCompaction(log, tmp, tmpPath, ioErr("write "+tmpPath, err))
		}
	}

	e.fileMu.Lock()
	if err := tmp.Sync(); err != nil {
		e.fileMu.Unlock()
		e.mu.Unlock()
		return e.failCompaction(log, tmp, tmpPath, ioErr("sync "+tmpPath, err))
	}
	if err := tmp.Rename(e.dm, e.path); err != nil {
		e.fileMu.Unlock()
		e.mu.Unlock()
		return e.failCompaction(log, tmp, tmpPath, ioErr("rename "+tmpPath, err))
	}
	old := e.active.Swap(tmp)
	oldSize := old.Size()
	e.compacting = false
	e.dirty = nil
	e.compactions++
	e.lastCompaction = e.now()
	e.fileMu.Unlock()
	e.mu.Unlock()

	// The old file is already unlinked by the rename.
	if err := old.Close(); err != nil {
		log.Warn("failed to close replaced log", zap.Error(err))
	}

	log.Info("compaction finished",
		zap.Int("drain_passes", passes),
		zap.Int64("old_size", oldSize),
		zap.Int64("new_size", tmp.Size()),
		zap.Duration("took", e.now().Sub(start)))
	return nil
}

func (e *Engine) failCompaction(log *zap.Logger, tmp *wal.WAL, tmpPath string, err error) error {
	e.abortCompaction(tmp, tmpPath)
	log.Error("compaction failed", zap.Error(err))
	return err
}

// abortCompaction discards the temp file and clears the compaction state so
// a later attempt starts clean. The live log is never touched.
func (e *Engine) abortCompaction(tmp *wal.WAL, tmpPath string) {
	if tmp != nil {
		_ = tmp.Close()
	}
	if err := e.dm.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.log.Warn("failed to remove compaction file", zap.String("file", tmpPath), zap.Error(err))
	}

	e.mu.Lock()
	e.compacting = false
	e.dirty = nil
	e.mu.Unlock()
}
