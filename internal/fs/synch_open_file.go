package fs

import "github.com/BMarelli/nachos/internal/thread"

// SynchOpenFile is the multi-reader/single-writer synchronized handle
// spec §4.7 calls for: every ReadAt takes the file's shared RW-lock for
// reading, every WriteAt takes it for writing, around the unsynchronized
// OpenFile I/O (original_source/filesys/synch_open_file.cc).
type SynchOpenFile struct {
	*OpenFile
	rwLock *thread.RWLock
}

// NewSynchOpenFile wraps file with rwLock, the pair the file manager
// constructs once per distinct open file and shares across every holder
// (spec §4.7's OpenFileInfo).
func NewSynchOpenFile(file *OpenFile, rwLock *thread.RWLock) *SynchOpenFile {
	return &SynchOpenFile{OpenFile: file, rwLock: rwLock}
}

// ReadAt acquires the read side of the RW-lock around the underlying
// unsynchronized read.
func (f *SynchOpenFile) ReadAt(buf []byte, position int) int {
	f.rwLock.AcquireRead()
	n := f.OpenFile.ReadAt(buf, position)
	f.rwLock.ReleaseRead()
	return n
}

// WriteAt acquires the write side of the RW-lock around the underlying
// unsynchronized write.
func (f *SynchOpenFile) WriteAt(data []byte, position int) int {
	f.rwLock.AcquireWrite()
	n := f.OpenFile.WriteAt(data, position)
	f.rwLock.ReleaseWrite()
	return n
}
