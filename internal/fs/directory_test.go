package fs

import (
	"testing"

	"github.com/BMarelli/nachos/internal/kernerr"
	"github.com/stretchr/testify/require"
)

func TestDirectoryAddFindRemove(t *testing.T) {
	dir := NewDirectory()

	require.NoError(t, dir.Add("foo", 5, false))
	require.NoError(t, dir.Add("bar", 6, true))

	require.Equal(t, 5, dir.Find("foo"))
	require.Equal(t, 5, dir.FindFile("foo"))
	require.Equal(t, -1, dir.FindDirectory("foo"))

	require.Equal(t, 6, dir.Find("bar"))
	require.Equal(t, 6, dir.FindDirectory("bar"))
	require.Equal(t, -1, dir.FindFile("bar"))

	require.Equal(t, -1, dir.Find("missing"))

	require.True(t, dir.Remove("foo"))
	require.Equal(t, -1, dir.Find("foo"))
	require.False(t, dir.Remove("foo"))
}

func TestDirectoryAddRejectsDuplicateName(t *testing.T) {
	dir := NewDirectory()
	require.NoError(t, dir.Add("foo", 1, false))

	err := dir.Add("foo", 2, false)
	require.ErrorIs(t, err, kernerr.AlreadyExists)
}

func TestDirectoryAddRejectsOversizeName(t *testing.T) {
	dir := NewDirectory()
	err := dir.Add("way-too-long-a-name", 1, false)
	require.ErrorIs(t, err, kernerr.BadArgument)
}

func TestDirectoryAddReusesFreedRows(t *testing.T) {
	dir := NewDirectory()
	for i := 0; i < DirectoryEntriesTableGrowthIncrement; i++ {
		require.NoError(t, dir.Add(string(rune('a'+i)), i, false))
	}
	require.Len(t, dir.entries(), DirectoryEntriesTableGrowthIncrement)

	require.True(t, dir.Remove("a"))
	require.NoError(t, dir.Add("z", 99, false))
	// The freed row was reused rather than growing the table again.
	require.Len(t, dir.entries(), DirectoryEntriesTableGrowthIncrement)
}

func TestDirectoryAddGrowsTableWhenFull(t *testing.T) {
	dir := NewDirectory()
	for i := 0; i < DirectoryEntriesTableGrowthIncrement+1; i++ {
		require.NoError(t, dir.Add(string(rune('a'+i)), i, false))
	}
	require.Len(t, dir.entries(), 2*DirectoryEntriesTableGrowthIncrement)
}

func TestDirectoryMarkForDeletionHidesEntry(t *testing.T) {
	dir := NewDirectory()
	require.NoError(t, dir.Add("foo", 5, false))

	dir.MarkForDeletion(5)
	require.True(t, dir.IsMarkedForDeletion(5))
	require.Equal(t, -1, dir.Find("foo"), "a marked-for-deletion row must be invisible to ordinary lookups")
	require.False(t, dir.HasEntry("foo"))

	require.True(t, dir.RemoveMarkedForDeletion(5))
	require.False(t, dir.RemoveMarkedForDeletion(5), "removing twice must fail")
}

func TestDirectoryIsEmpty(t *testing.T) {
	dir := NewDirectory()
	require.True(t, dir.IsEmpty())

	require.NoError(t, dir.Add("foo", 5, false))
	require.False(t, dir.IsEmpty())

	dir.MarkForDeletion(5)
	require.True(t, dir.IsEmpty(), "a directory with only marked-for-deletion rows is empty")
}

func TestDirectoryListAndListContents(t *testing.T) {
	dir := NewDirectory()
	require.NoError(t, dir.Add("foo", 1, false))
	require.NoError(t, dir.Add("bar", 2, true))

	names := dir.List()
	require.ElementsMatch(t, []string{"foo", "bar"}, names)
	require.Equal(t, "foo\nbar\n", dir.ListContents())
}

func TestDirectoryFetchFromWriteBackRoundTrip(t *testing.T) {
	disk := newTestDisk(t)
	freeMap := NewFreeMap(testSectors)

	header := NewFileHeader()
	require.NoError(t, header.Allocate(freeMap, 0))

	const headerSector = 10
	file := NewOpenFile(disk, headerSector, header)

	dir := NewDirectory()
	require.NoError(t, dir.Add("foo", 5, false))
	require.NoError(t, dir.Add("bar", 6, true))

	require.NoError(t, header.Extend(freeMap, len(dir.entries())*entrySize))
	dir.WriteBack(file)

	reloaded := NewDirectory()
	reloaded.FetchFrom(file)

	require.Equal(t, 5, reloaded.Find("foo"))
	require.Equal(t, 6, reloaded.FindDirectory("bar"))
}
