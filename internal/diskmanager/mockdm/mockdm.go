// Package mockdm provides a mock implementation of the disk manager for testing.
// Files live in memory and individual operations can be made to fail.
package mockdm

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MikhailWahib/nimbusdb/internal/diskmanager"
)

// file is the shared content behind every handle opened on one path.
type file struct {
	mu   sync.Mutex
	name string
	data []byte
}

// MockFile implements diskmanager.FileHandle for testing purposes
type MockFile struct {
	dm     *MockDiskManager
	f      *file
	closed bool
}

// name follows the file across renames.
func (m *MockFile) name() string {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	return m.f.name
}

// Write appends b to the file unless a write fault is armed for its path.
func (m *MockFile) Write(b []byte) (int, error) {
	if gate := m.dm.gate(m.name()); gate != nil {
		<-gate
	}
	if err := m.dm.fault(m.name(), opWrite); err != nil {
		return 0, err
	}
	if m.closed {
		return 0, os.ErrClosed
	}
	short := m.dm.fault(m.name(), opShortWrite)
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if err := short; err != nil {
		half := len(b) / 2
		m.f.data = append(m.f.data, b[:half]...)
		return half, err
	}
	m.f.data = append(m.f.data, b...)
	return len(b), nil
}

// ReadAt reads len(b) bytes from the file starting at byte offset off
func (m *MockFile) ReadAt(b []byte, off int64) (int, error) {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if off >= int64(len(m.f.data)) {
		return 0, io.EOF
	}
	n := copy(b, m.f.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// Truncate shrinks or zero-extends the file.
func (m *MockFile) Truncate(size int64) error {
	if err := m.dm.fault(m.name(), opTruncate); err != nil {
		return err
	}
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if size <= int64(len(m.f.data)) {
		m.f.data = m.f.data[:size]
		return nil
	}
	m.f.data = append(m.f.data, make([]byte, size-int64(len(m.f.data)))...)
	return nil
}

// Close closes the mock file
func (m *MockFile) Close() error {
	m.closed = true
	return nil
}

// Sync simulates syncing file contents to disk
func (m *MockFile) Sync() error {
	return m.dm.fault(m.name(), opSync)
}

// Stat returns file information
func (m *MockFile) Stat() (os.FileInfo, error) {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	return &testFileInfo{size: int64(len(m.f.data)), name: filepath.Base(m.f.name)}, nil
}

type testFileInfo struct {
	size int64
	name string
}

func (m *testFileInfo) Name() string       { return m.name }
func (m *testFileInfo) Size() int64        { return m.size }
func (m *testFileInfo) Mode() os.FileMode  { return 0644 }
func (m *testFileInfo) ModTime() time.Time { return time.Now() }
func (m *testFileInfo) IsDir() bool        { return false }
func (m *testFileInfo) Sys() any           { return nil }

type op int

const (
	opOpen op = iota
	opWrite
	opSync
	opRename
	opShortWrite
	opTruncate
)

// MockDiskManager implements diskmanager.DiskManager interface for testing
type MockDiskManager struct {
	mu     sync.Mutex
	files  map[string]*file
	faults map[op]map[string]error
	gates  map[string]chan struct{}
}

// NewMockDiskManager creates a new MockDiskManager instance
func NewMockDiskManager() *MockDiskManager {
	return &MockDiskManager{
		files:  make(map[string]*file),
		faults: make(map[op]map[string]error),
		gates:  make(map[string]chan struct{}),
	}
}

// Open creates or opens a mock file
func (dm *MockDiskManager) Open(path string, flags int, _ os.FileMode) (diskmanager.FileHandle, error) {
	if err := dm.fault(path, opOpen); err != nil {
		return nil, err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	f, exists := dm.files[path]
	if !exists {
		if flags&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}
		f = &file{name: path}
		dm.files[path] = f
	}
	if flags&os.O_TRUNC != 0 {
		f.mu.Lock()
		f.data = nil
		f.mu.Unlock()
	}
	return &MockFile{dm: dm, f: f}, nil
}

// Rename moves the content of oldPath to newPath, replacing it.
func (dm *MockDiskManager) Rename(oldPath, newPath string) error {
	if err := dm.fault(oldPath, opRename); err != nil {
		return err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	f, ok := dm.files[oldPath]
	if !ok {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrNotExist}
	}
	f.mu.Lock()
	f.name = newPath
	f.mu.Unlock()
	dm.files[newPath] = f
	delete(dm.files, oldPath)
	return nil
}

// Remove deletes a mock file
func (dm *MockDiskManager) Remove(path string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if _, ok := dm.files[path]; !ok {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}
	delete(dm.files, path)
	return nil
}

// List returns mock files in dir whose base name starts with prefix
func (dm *MockDiskManager) List(dir string, prefix string) ([]string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var files []string
	for name := range dm.files {
		if filepath.Dir(name) != filepath.Clean(dir) {
			continue
		}
		if prefix == "" || strings.HasPrefix(filepath.Base(name), prefix) {
			files = append(files, name)
		}
	}
	return files, nil
}

// Contents returns a copy of the bytes stored at path.
func (dm *MockDiskManager) Contents(path string) ([]byte, bool) {
	dm.mu.Lock()
	f, ok := dm.files[path]
	dm.mu.Unlock()
	if !ok {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...), true
}

// SetContents replaces the bytes stored at path, creating the file.
func (dm *MockDiskManager) SetContents(path string, data []byte) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.files[path] = &file{name: path, data: append([]byte(nil), data...)}
}

// FailOpen makes every Open of a path starting with prefix return err.
// A nil err clears the fault.
func (dm *MockDiskManager) FailOpen(prefix string, err error) { dm.setFault(opOpen, prefix, err) }

// FailWrite makes writes to paths starting with prefix return err.
func (dm *MockDiskManager) FailWrite(prefix string, err error) { dm.setFault(opWrite, prefix, err) }

// FailWriteShort makes writes to paths starting with prefix store only the
// first half of their buffer and then return err, like a disk filling up
// mid-write.
func (dm *MockDiskManager) FailWriteShort(prefix string, err error) {
	dm.setFault(opShortWrite, prefix, err)
}

// FailTruncate makes truncates of paths starting with prefix return err.
func (dm *MockDiskManager) FailTruncate(prefix string, err error) { dm.setFault(opTruncate, prefix, err) }

// FailSync makes syncs of paths starting with prefix return err.
func (dm *MockDiskManager) FailSync(prefix string, err error) { dm.setFault(opSync, prefix, err) }

// FailRename makes renames whose source starts with prefix return err.
func (dm *MockDiskManager) FailRename(prefix string, err error) { dm.setFault(opRename, prefix, err) }

func (dm *MockDiskManager) setFault(o op, prefix string, err error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.faults[o] == nil {
		dm.faults[o] = make(map[string]error)
	}
	if err == nil {
		delete(dm.faults[o], prefix)
		return
	}
	dm.faults[o][prefix] = err
}

func (dm *MockDiskManager) fault(path string, o op) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for prefix, err := range dm.faults[o] {
		if strings.HasPrefix(path, prefix) {
			return err
		}
	}
	return nil
}

// HoldWrites blocks writes to paths starting with prefix until release is
// called. release may be called more than once.
func (dm *MockDiskManager) HoldWrites(prefix string) (release func()) {
	gate := make(chan struct{})
	dm.mu.Lock()
	dm.gates[prefix] = gate
	dm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			dm.mu.Lock()
			delete(dm.gates, prefix)
			dm.mu.Unlock()
			close(gate)
		})
	}
}

func (dm *MockDiskManager) gate(path string) chan struct{} {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for prefix, gate := range dm.gates {
		if strings.HasPrefix(path, prefix) {
			return gate
		}
	}
	return nil
}
