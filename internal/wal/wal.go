// Package wal implements the append-only document log: newline-delimited
// JSON documents appended to a single file and replayed on load.
package wal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/MikhailWahib/nimbusdb/internal/diskmanager"
	"github.com/MikhailWahib/nimbusdb/internal/record"
)

var (
	// ErrParse is matched by every ParseError.
	ErrParse = errors.New("parse error")
	// ErrTornWrite is matched by a ParseError for an unterminated final
	// line, the shape a crash in the middle of an append leaves behind.
	ErrTornWrite = errors.New("torn final line")
	// ErrFailed is returned by Append once a partial write could not be cut
	// off the log. Appending after it would corrupt the next line.
	ErrFailed = errors.New("log failed after partial write")
)

// ParseError reports a log line that is not a serialized document.
type ParseError struct {
	Line int  // 1-based line number
	Torn bool // malformed final line without a newline
	Err  error
}

func (e *ParseError) Error() string {
	if e.Torn {
		return fmt.Sprintf("%s at line %d (%s): %v", ErrParse, e.Line, ErrTornWrite, e.Err)
	}
	return fmt.Sprintf("%s at line %d: %v", ErrParse, e.Line, e.Err)
}

// Is makes errors.Is(err, ErrParse) hold, and ErrTornWrite for torn lines.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse || (e.Torn && target == ErrTornWrite)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileMode is the permission used when the log file is created.
const FileMode os.FileMode = 0666

// ReplayStats describes one replay pass.
type ReplayStats struct {
	Lines          int   // documents decoded
	TruncatedBytes int64 // bytes of a torn final line dropped in lenient mode
}

// WAL manages one open log file.
type WAL struct {
	mu sync.Mutex

	path   string
	file   diskmanager.FileHandle
	size   atomic.Int64
	noSync bool
	failed error
}

// Open opens the log at path for append and read, creating it if absent.
func Open(dm diskmanager.DiskManager, path string, noSync bool) (*WAL, error) {
	file, err := dm.Open(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, FileMode)
	if err != nil {
		return nil, err
	}

	// Get current file size to seed the size counter
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	w := &WAL{
		path:   path,
		file:   file,
		noSync: noSync,
	}
	w.size.Store(info.Size())
	return w, nil
}

// Path returns the file path the log was opened with.
func (w *WAL) Path() string { return w.path }

// Size returns the number of bytes in the log.
func (w *WAL) Size() int64 {
	return w.size.Load()
}

// Append writes lines to the end of the log in a single write and syncs.
// Each line must already carry its trailing newline. It returns the number
// of bytes written.
//
// A write that fails part way is truncated back off the file. If that
// truncate fails too, the log refuses every later append with ErrFailed.
func (w *WAL) Append(lines ...[]byte) (int, error) {
	var buf []byte
	if len(lines) == 1 {
		buf = lines[0]
	} else {
		buf = bytes.Join(lines, nil)
	}
	if len(buf) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failed != nil {
		return 0, w.failed
	}

	prev := w.size.Load()
	n, err := w.file.Write(buf)
	if err != nil {
		if n == 0 {
			return 0, err
		}
		// Cut the torn fragment so the next append starts a clean line.
		if terr := w.file.Truncate(prev); terr != nil {
			w.size.Add(int64(n))
			w.failed = fmt.Errorf("%w: %v", ErrFailed, terr)
			return n, errors.Join(err, w.failed)
		}
		return 0, err
	}
	w.size.Add(int64(n))
	if !w.noSync {
		if err := w.file.Sync(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Replay reads the whole log from the beginning and calls fn for each
// document in file order. Empty lines are skipped.
//
// A line that does not decode fails the replay with a *ParseError. When
// lenient is set, a malformed final line that lacks its newline is treated
// as a torn append: it is cut off the file and replay succeeds.
func (w *WAL) Replay(lenient bool, fn func(doc record.Document) error) (ReplayStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stats ReplayStats
	size := w.size.Load()
	if size == 0 {
		return stats, nil
	}

	data := make([]byte, size)
	if _, err := w.file.ReadAt(data, 0); err != nil && err != io.EOF {
		return stats, err
	}

	var offset int64
	for lineNo := 1; len(data) > 0; lineNo++ {
		line := data
		terminated := false
		if i := bytes.IndexByte(data, record.Newline); i >= 0 {
			line = data[:i]
			data = data[i+1:]
			terminated = true
		} else {
			data = nil
		}
		start := offset
		offset += int64(len(line))
		if terminated {
			offset++
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		doc, err := record.Decode(line)
		if err != nil {
			if lenient && !terminated {
				if err := w.file.Truncate(start); err != nil {
					return stats, err
				}
				stats.TruncatedBytes = size - start
				w.size.Store(start)
				return stats, nil
			}
			return stats, &ParseError{Line: lineNo, Torn: !terminated, Err: err}
		}
		if !terminated {
			// Terminate the last document so the next append starts a new line.
			n, err := w.file.Write([]byte{record.Newline})
			w.size.Add(int64(n))
			if err != nil {
				return stats, err
			}
		}
		stats.Lines++
		if err := fn(doc); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// Rename moves the log file to newPath, replacing whatever is there. The
// open handle stays valid and keeps appending to the renamed file.
func (w *WAL) Rename(dm diskmanager.DiskManager, newPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := dm.Rename(w.path, newPath); err != nil {
		return err
	}
	w.path = newPath
	return nil
}

// Sync ensures all data is persisted to disk
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close syncs and closes the log file
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
