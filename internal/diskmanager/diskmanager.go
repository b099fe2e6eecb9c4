// Package diskmanager provides interfaces and implementations for managing disk-based file operations.
// It handles opening, appending, renaming and removing the files the database is made of.
package diskmanager

import (
	"os"
	"path/filepath"
	"strings"
)

// FileHandle abstracts the file operations the log needs: appends, random
// reads for replay, truncation, syncing and stat.
type FileHandle interface {
	// Write appends b to the end of the file. The file must be opened with
	// os.O_APPEND for the write to land at the end.
	Write(b []byte) (int, error)
	// ReadAt reads len(b) bytes from the file starting at byte offset off.
	// It returns the number of bytes read and any error encountered.
	ReadAt(b []byte, off int64) (int, error)
	// Truncate changes the size of the file.
	Truncate(size int64) error
	// Close closes the file handle, rendering it unusable for I/O.
	Close() error
	// Sync commits the current contents of the file to stable storage.
	Sync() error
	// Stat returns the file stat
	Stat() (os.FileInfo, error)
}

// NewFileHandle wraps an *os.File into a FileHandle implementation.
// *os.File already satisfies the interface; the wrapper keeps the
// surface limited to what the log uses.
func NewFileHandle(file *os.File) FileHandle { return &fileHandle{file: file} }

type fileHandle struct {
	file *os.File
}

func (fh *fileHandle) Write(b []byte) (int, error) { return fh.file.Write(b) }

func (fh *fileHandle) ReadAt(b []byte, off int64) (int, error) { return fh.file.ReadAt(b, off) }

func (fh *fileHandle) Truncate(size int64) error { return fh.file.Truncate(size) }

func (fh *fileHandle) Close() error { return fh.file.Close() }

func (fh *fileHandle) Sync() error { return fh.file.Sync() }

func (fh *fileHandle) Stat() (os.FileInfo, error) { return fh.file.Stat() }

// DiskManager defines methods for file operations.
type DiskManager interface {
	// Open opens a file with specified path, flags and permissions.
	Open(path string, flags int, perm os.FileMode) (FileHandle, error)
	// Rename atomically replaces newPath with oldPath.
	Rename(oldPath, newPath string) error
	// Remove deletes the named file.
	Remove(path string) error
	// List returns the paths of the regular files in dir whose name starts
	// with prefix. An empty prefix matches all files.
	List(dir string, prefix string) ([]string, error)
}

type diskManager struct{}

// NewDiskManager creates a DiskManager backed by the operating system.
func NewDiskManager() DiskManager {
	return diskManager{}
}

func (diskManager) Open(path string, flags int, perm os.FileMode) (FileHandle, error) {
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	return NewFileHandle(file), nil
}

func (diskManager) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (diskManager) Remove(path string) error {
	return os.Remove(path)
}

func (diskManager) List(dir string, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if prefix == "" || strings.HasPrefix(entry.Name(), prefix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
