package engine

import (
	"errors"
	"fmt"

	"github.com/MikhailWahib/nimbusdb/internal/record"
	"github.com/MikhailWahib/nimbusdb/internal/wal"
)

var (
	// ErrNotFound is returned when an identifier has no live document.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyCompacting is returned when a compaction is requested while
	// another one is running.
	ErrAlreadyCompacting = errors.New("already compacting")
	// ErrIO is matched by every file open, read, write, sync or rename failure.
	ErrIO = errors.New("i/o error")
	// ErrClosed is returned by operations on a closed or destroyed store.
	ErrClosed = errors.New("store closed")
	// ErrParse is matched by replay failures on malformed log lines.
	ErrParse = wal.ErrParse
	// ErrMissingID is returned when a document has no _id.
	ErrMissingID = record.ErrMissingID
	// ErrInvalidID is returned when _id is not a string or an exactly
	// representable number.
	ErrInvalidID = record.ErrInvalidID
	// ErrReservedField is returned when a caller sets an engine-owned field.
	ErrReservedField = record.ErrReservedField
)

// ioError tags a file-system failure with the operation that hit it.
// errors.Is(err, ErrIO) holds and the underlying error stays reachable.
type ioError struct {
	op  string
	err error
}

func (e *ioError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrIO, e.op, e.err)
}

func (e *ioError) Is(target error) bool { return target == ErrIO }

func (e *ioError) Unwrap() error { return e.err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ioError{op: op, err: err}
}
