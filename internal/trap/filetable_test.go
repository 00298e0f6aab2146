package trap

import (
	"testing"

	"github.com/BMarelli/nachos/internal/fstest"
	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/stretchr/testify/require"
)

func TestFileTableOpenReadWriteClose(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	require.NoError(t, fsys.CreateFile("f", 0))

	ft := NewFileTable()
	fd, err := ft.Open(fsys, "f")
	require.NoError(t, err)
	require.Equal(t, ConsoleOutput+1, fd)

	n, ok := ft.WriteAt(fd, []byte("hello"))
	require.True(t, ok)
	require.Equal(t, 5, n)

	// Read picks up where Write left off: each fd tracks its own
	// position across calls, exactly as a real file descriptor would.
	buf := make([]byte, 5)
	n, ok = ft.ReadAt(fd, buf)
	require.True(t, ok)
	require.Equal(t, 0, n, "position sits past the data just written")

	require.NoError(t, ft.Close(fsys, fd))

	_, ok = ft.ReadAt(fd, buf)
	require.False(t, ok, "closed descriptor must not resolve")
}

func TestFileTableSecondOpenGetsNextDescriptor(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	require.NoError(t, fsys.CreateFile("a", 0))
	require.NoError(t, fsys.CreateFile("b", 0))

	ft := NewFileTable()
	fdA, err := ft.Open(fsys, "a")
	require.NoError(t, err)
	fdB, err := ft.Open(fsys, "b")
	require.NoError(t, err)
	require.Equal(t, fdA+1, fdB)
}

func TestFileTableReadFromStart(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	require.NoError(t, fsys.CreateFile("f", 0))
	fd0, err := fsys.Open("f")
	require.NoError(t, err)
	require.Equal(t, 5, fd0.WriteAt([]byte("abcde"), 0))
	fsys.Close(fd0)

	ft := NewFileTable()
	fd, err := ft.Open(fsys, "f")
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, ok := ft.ReadAt(fd, buf)
	require.True(t, ok)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(buf))

	n, ok = ft.ReadAt(fd, buf)
	require.True(t, ok)
	require.Equal(t, 2, n)
	require.Equal(t, "de", string(buf[:n]))
}

func TestFileTableCloseRejectsConsoleDescriptors(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	ft := NewFileTable()

	require.ErrorIs(t, ft.Close(fsys, ConsoleInput), kernerr.BadArgument)
	require.ErrorIs(t, ft.Close(fsys, ConsoleOutput), kernerr.BadArgument)
}

func TestFileTableCloseAll(t *testing.T) {
	fsys := fstest.NewFileSystem(t, 64)
	require.NoError(t, fsys.CreateFile("a", 0))
	require.NoError(t, fsys.CreateFile("b", 0))

	ft := NewFileTable()
	_, err := ft.Open(fsys, "a")
	require.NoError(t, err)
	_, err = ft.Open(fsys, "b")
	require.NoError(t, err)

	ft.CloseAll(fsys)
	require.Empty(t, ft.entries)
}
