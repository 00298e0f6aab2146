package vm

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/BMarelli/nachos/internal/fs"
)

// execMagic tags a file as a loadable program image, the same role
// classic Nachos's NOFF magic number plays in noff.h (not carried into
// this pack, so the exact value is this kernel's own choice).
const execMagic = 0xbadfad

// execHeaderSize is the fixed width of the header below, padded so it
// starts a code segment on a clean offset.
const execHeaderSize = 24

type execHeader struct {
	Magic        uint32
	CodeSize     uint32
	InitDataSize uint32
	EntryPoint   uint32
	_            uint32 // padding
	_            uint32 // padding
}

// ErrBadExecutable is returned when a file does not begin with a valid
// execMagic header.
var ErrBadExecutable = errors.New("vm: not a valid executable image")

// Executable is a loadable program image opened from the file system: a
// small header naming its code and initialized-data segment sizes,
// followed by the code bytes and then the init-data bytes back to back.
// Address_space.cc's Executable wraps an OpenFile the same way; this one
// wraps a *fs.SynchOpenFile directly; no separate decoding step is
// needed since fs.SynchOpenFile.ReadAt already does the sector-level
// work.
type Executable struct {
	file   *fs.SynchOpenFile
	header execHeader
}

// OpenExecutable parses file's header. The caller keeps owning file;
// Executable never closes it.
func OpenExecutable(file *fs.SynchOpenFile) (*Executable, error) {
	buf := make([]byte, execHeaderSize)
	if n := file.ReadAt(buf, 0); n != execHeaderSize {
		return nil, ErrBadExecutable
	}

	var h execHeader
	if err := binary.Read(bytes.NewReader(buf), binary.BigEndian, &h); err != nil {
		return nil, err
	}
	if h.Magic != execMagic {
		return nil, ErrBadExecutable
	}

	return &Executable{file: file, header: h}, nil
}

// WriteExecutable creates path in fsys and writes a program image built
// from code and initData, for use by `nachos format`/tests that need a
// runnable executable on disk rather than a real compiled MIPS binary.
func WriteExecutable(fsys *fs.FileSystem, path string, code, initData []byte, entryPoint int) error {
	size := execHeaderSize + len(code) + len(initData)
	if err := fsys.CreateFile(path, size); err != nil {
		return err
	}

	file, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer fsys.Close(file)

	h := execHeader{Magic: execMagic, CodeSize: uint32(len(code)), InitDataSize: uint32(len(initData)), EntryPoint: uint32(entryPoint)}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, h); err != nil {
		return err
	}

	file.WriteAt(buf.Bytes(), 0)
	if len(code) > 0 {
		file.WriteAt(code, execHeaderSize)
	}
	if len(initData) > 0 {
		file.WriteAt(initData, execHeaderSize+len(code))
	}

	return nil
}

// File returns the underlying handle, so a process that opened this
// executable for NewAddressSpace can close it again once the process
// exits.
func (e *Executable) File() *fs.SynchOpenFile { return e.file }

// CodeSize/InitDataSize are the two segments' byte lengths.
func (e *Executable) CodeSize() int     { return int(e.header.CodeSize) }
func (e *Executable) InitDataSize() int { return int(e.header.InitDataSize) }

// CodeAddr/InitDataAddr are the two segments' virtual base addresses.
// Code always starts at 0; init-data immediately follows it in virtual
// space, the simplest contiguous layout a uniprogrammed, unlinked image
// can use.
func (e *Executable) CodeAddr() int     { return 0 }
func (e *Executable) InitDataAddr() int { return e.CodeSize() }

// EntryPoint is the virtual address InitRegisters should set PCReg to.
func (e *Executable) EntryPoint() int { return int(e.header.EntryPoint) }

// ReadCodeBlock reads size bytes of the code segment starting at offset
// bytes into it.
func (e *Executable) ReadCodeBlock(buf []byte, size, offset int) int {
	return e.file.ReadAt(buf[:size], execHeaderSize+offset)
}

// ReadDataBlock reads size bytes of the init-data segment starting at
// offset bytes into it.
func (e *Executable) ReadDataBlock(buf []byte, size, offset int) int {
	return e.file.ReadAt(buf[:size], execHeaderSize+e.CodeSize()+offset)
}
