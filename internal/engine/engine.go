// Package engine implements the core storage engine: log replay on load, the
// append path, the in-memory index shared by reads and writes, and online
// compaction of the log.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MikhailWahib/nimbusdb/internal/config"
	"github.com/MikhailWahib/nimbusdb/internal/diskmanager"
	"github.com/MikhailWahib/nimbusdb/internal/index"
	"github.com/MikhailWahib/nimbusdb/internal/record"
	"github.com/MikhailWahib/nimbusdb/internal/wal"
)

// Engine owns one database file: the index, the active log, the write queue
// and the compaction state.
//
// Lock order is mu before fileMu. The writer goroutine never holds both.
type Engine struct {
	cfg *config.Config
	log *zap.Logger
	dm  diskmanager.DiskManager
	now func() time.Time

	path string
	idx  *index.Index

	// mu serializes index mutations, the write queue, the dirty set and the
	// compaction state.
	mu             sync.Mutex
	queue          []*pending
	compacting     bool
	dirty          map[string]struct{}
	compactions    uint64
	lastCompaction time.Time
	closed         atomic.Bool

	// fileMu is held for every append and for the compaction swap, so no
	// append straddles a handle change. active may be read without it.
	fileMu sync.Mutex
	active atomic.Pointer[wal.WAL]

	wake       chan struct{}
	stop       chan struct{}
	writerDone chan struct{}
	bg         sync.WaitGroup
}

// Open opens or creates the database file at path and replays it into memory.
// A nil cfg uses the defaults; a nil dm uses the operating system.
func Open(path string, cfg *config.Config, dm diskmanager.DiskManager) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dm == nil {
		dm = diskmanager.NewDiskManager()
	}

	e := &Engine{
		cfg:        cfg,
		log:        cfg.Logger,
		dm:         dm,
		now:        time.Now,
		path:       filepath.Clean(path),
		idx:        index.New(),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	e.removeStaleCompactions()

	w, err := wal.Open(dm, e.path, cfg.NoSync)
	if err != nil {
		return nil, ioErr("open "+e.path, err)
	}
	e.active.Store(w)

	if err := e.load(); err != nil {
		_ = w.Close()
		return nil, err
	}

	go e.runWriter()

	return e, nil
}

// load replays the log into the index. Later lines for an identifier
// override earlier ones and tombstones delete it.
func (e *Engine) load() error {
	loadedAt := e.now()
	stats, err := e.active.Load().Replay(e.cfg.LenientReplay, func(doc record.Document) error {
		id, err := record.ID(doc)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrParse, err)
		}
		if record.IsRemoved(doc) {
			e.idx.Delete(id)
			return nil
		}
		line, err := record.Encode(doc)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrParse, err)
		}
		createdAt, ok := record.TimeField(doc, record.CreatedField)
		if !ok {
			createdAt = loadedAt
		}
		e.idx.Put(id, index.NewEntry(doc, line, createdAt, true))
		return nil
	})
	if err != nil {
		e.idx.Reset()
		switch {
		case errors.Is(err, wal.ErrTornWrite):
			return ioErr("replay "+e.path, err)
		case errors.Is(err, ErrParse):
			return fmt.Errorf("replay %s: %w", e.path, err)
		default:
			return ioErr("replay "+e.path, err)
		}
	}

	if stats.TruncatedBytes > 0 {
		e.log.Warn("dropped torn final line",
			zap.String("path", e.path),
			zap.Int64("bytes", stats.TruncatedBytes))
	}
	e.log.Info("database loaded",
		zap.String("path", e.path),
		zap.Int64("size", e.active.Load().Size()),
		zap.Int("lines", stats.Lines),
		zap.Int("documents", e.idx.Len()))
	return nil
}

// removeStaleCompactions deletes temp files left by a compaction that was
// interrupted by a crash. They never replaced the live file.
func (e *Engine) removeStaleCompactions() {
	prefix := filepath.Base(e.path) + compactSuffix
	files, err := e.dm.List(filepath.Dir(e.path), prefix)
	if err != nil {
		e.log.Warn("failed to list compaction files", zap.String("dir", filepath.Dir(e.path)), zap.Error(err))
		return
	}
	for _, f := range files {
		if !strings.HasPrefix(filepath.Base(f), prefix) {
			continue
		}
		if err := e.dm.Remove(f); err != nil {
			e.log.Warn("failed to remove stale compaction file", zap.String("file", f), zap.Error(err))
			continue
		}
		e.log.Info("removed stale compaction file", zap.String("file", f))
	}
}

// Path returns the canonical database file path.
func (e *Engine) Path() string { return e.path }

// Close drains pending appends, waits for a running compaction and closes
// the log. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed.Store(true)
	e.mu.Unlock()

	close(e.stop)
	<-e.writerDone
	e.bg.Wait()

	e.fileMu.Lock()
	defer e.fileMu.Unlock()
	return ioErr("close "+e.path, e.active.Load().Close())
}

// Destroy closes the engine and removes the database file. It is terminal.
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil && !errors.Is(err, ErrClosed) {
		e.log.Warn("close before destroy failed", zap.Error(err))
	}
	if err := e.dm.Remove(e.path); err != nil {
		return ioErr("remove "+e.path, err)
	}
	e.idx.Reset()
	e.log.Info("database destroyed", zap.String("path", e.path))
	return nil
}

// Stats is a point-in-time summary of the engine state.
type Stats struct {
	Path           string
	Size           int64
	Documents      int
	Unpersisted    int
	Compacting     bool
	Compactions    uint64
	LastCompaction time.Time
}

// Stats reports the current engine state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		Path:           e.path,
		Compacting:     e.compacting,
		Compactions:    e.compactions,
		LastCompaction: e.lastCompaction,
	}
	e.mu.Unlock()

	s.Size = e.active.Load().Size()

	e.idx.Walk(func(_ string, en *index.Entry) bool {
		s.Documents++
		if !en.Persisted() {
			s.Unpersisted++
		}
		return true
	})
	return s
}
