package diskmanager_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MikhailWahib/nimbusdb/internal/diskmanager"
	"github.com/MikhailWahib/nimbusdb/internal/diskmanager/mockdm"
	"github.com/stretchr/testify/require"
)

func TestDiskManager_Open(t *testing.T) {
	dm := diskmanager.NewDiskManager()
	filePath := filepath.Join(t.TempDir(), "testfile1.txt")

	// Test creating a new file
	handle, err := dm.Open(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err, "Expected no error on file creation")
	require.NotNil(t, handle, "Expected valid file handle, got nil")
	require.NoError(t, handle.Close())

	// Test reopening existing file
	handle, err = dm.Open(filePath, os.O_RDWR, 0644)
	require.NoError(t, err, "Expected no error opening existing file")
	require.NotNil(t, handle, "Expected valid file handle on reopening")
	require.NoError(t, handle.Close())

	// Test opening non-existent file without create flag
	_, err = dm.Open(filepath.Join(t.TempDir(), "nonexistent.txt"), os.O_RDWR, 0644)
	require.Error(t, err, "Expected error opening non-existent file without create flag")
	require.True(t, os.IsNotExist(err), "Expected 'file not exist' error")
}

func TestFileHandle_AppendReadTruncate(t *testing.T) {
	dm := diskmanager.NewDiskManager()
	filePath := filepath.Join(t.TempDir(), "testfile2.txt")

	handle, err := dm.Open(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)
	defer handle.Close()

	n, err := handle.Write([]byte("Hello, world!"))
	require.NoError(t, err)
	require.Equal(t, 13, n)

	n, err = handle.Write([]byte("\nHiii!"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.NoError(t, handle.Sync())

	readData := make([]byte, 19)
	_, err = handle.ReadAt(readData, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello, world!\nHiii!", string(readData))

	require.NoError(t, handle.Truncate(13))
	info, err := handle.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(13), info.Size())

	// Appends continue at the truncated end.
	_, err = handle.Write([]byte("!"))
	require.NoError(t, err)
	info, err = handle.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(14), info.Size())
}

func TestDiskManager_RenameRemove(t *testing.T) {
	dm := diskmanager.NewDiskManager()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	require.NoError(t, dm.Rename(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))

	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, dm.Remove(dst))
	err = dm.Remove(dst)
	require.True(t, os.IsNotExist(err), "Expected 'file not exist' error")
}

func TestDiskManager_List(t *testing.T) {
	dm := diskmanager.NewDiskManager()
	testDir := t.TempDir()

	for _, f := range []string{"db.nbus", "db.nbus.compact-1", "db.nbus.compact-2", "other.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(testDir, f), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(testDir, "db.nbus.compact-dir"), 0755))

	files, err := dm.List(testDir, "")
	require.NoError(t, err)
	require.Len(t, files, 4)

	files, err = dm.List(testDir, "db.nbus.compact-")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(testDir, "db.nbus.compact-1"),
		filepath.Join(testDir, "db.nbus.compact-2"),
	}, files)

	_, err = dm.List(filepath.Join(testDir, "nonexistent_dir"), "")
	require.Error(t, err, "Expected error listing non-existent directory")
}

func TestMockDiskManager_Faults(t *testing.T) {
	dm := mockdm.NewMockDiskManager()
	errBoom := errors.New("boom")

	h, err := dm.Open("/db/data", os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)

	_, err = h.Write([]byte("line\n"))
	require.NoError(t, err)

	dm.FailWrite("/db/data", errBoom)
	_, err = h.Write([]byte("more\n"))
	require.ErrorIs(t, err, errBoom)

	dm.FailWrite("/db/data", nil)
	_, err = h.Write([]byte("more\n"))
	require.NoError(t, err)

	data, ok := dm.Contents("/db/data")
	require.True(t, ok)
	require.Equal(t, "line\nmore\n", string(data))

	dm.FailRename("/db/data", errBoom)
	require.ErrorIs(t, dm.Rename("/db/data", "/db/other"), errBoom)

	dm.FailOpen("/db/tmp", errBoom)
	_, err = dm.Open("/db/tmp-1", os.O_CREATE, 0644)
	require.ErrorIs(t, err, errBoom)

	_, err = dm.Open("/db/missing", os.O_RDWR, 0644)
	require.True(t, os.IsNotExist(err))
}
