// Package macho implements sniff-depth recognition of Mach-O images: the
// fixed-size header plus a bounded walk of its load command list, just
// deep enough to name the architecture, file kind, and dynamic-library
// dependencies a triage verdict needs (spec §6).
package macho

import (
	"encoding/binary"

	"github.com/standardbeagle/bintriage/internal/bterrors"
	"github.com/standardbeagle/bintriage/internal/ioref"
)

const (
	magic32          uint32 = 0xfeedface
	magic64          uint32 = 0xfeedfacf
	magic32Swapped   uint32 = 0xcefaedfe
	magic64Swapped   uint32 = 0xcffaedfe
	headerSize32            = 28
	headerSize64            = 32
)

// LoadCmd is a Mach-O load command type, named per the well-known
// constants carried by every mach-o/loader.h derivative.
type LoadCmd uint32

const (
	LCSegment       LoadCmd = 0x1
	LCSymtab        LoadCmd = 0x2
	LCDysymtab      LoadCmd = 0xb
	LCLoadDylib     LoadCmd = 0xc
	LCIDDylib       LoadCmd = 0xd
	LCSegment64     LoadCmd = 0x19
	LCUUID          LoadCmd = 0x1b
	LCRpath         LoadCmd = 0x1c | 0x80000000
	LCLoadWeakDylib LoadCmd = 0x18 | 0x80000000
	LCMain          LoadCmd = 0x28 | 0x80000000
)

// CPUType mirrors the handful of architectures the triage pipeline
// names; anything else is reported as CPUUnknown rather than failing.
type CPUType uint32

const (
	CPUUnknown CPUType = 0
	CPUX86     CPUType = 7
	CPUX8664   CPUType = 7 | 0x01000000
	CPUArm     CPUType = 12
	CPUArm64   CPUType = 12 | 0x01000000
)

// FileType is the Mach-O file-kind field (MH_EXECUTE, MH_DYLIB, ...).
type FileType uint32

const (
	MHObject     FileType = 0x1
	MHExecute    FileType = 0x2
	MHFvmlib     FileType = 0x3
	MHCore       FileType = 0x4
	MHPreload    FileType = 0x5
	MHDylib      FileType = 0x6
	MHDylinker   FileType = 0x7
	MHBundle     FileType = 0x8
	MHDylibStub  FileType = 0x9
	MHDSYM       FileType = 0xa
	MHKextBundle FileType = 0xb
)

// Header is the parsed mach_header / mach_header_64.
type Header struct {
	Is64      bool
	BigEndian bool
	CPU       CPUType
	CPUSubtype uint32
	FileType  FileType
	NCmds     uint32
	SizeCmds  uint32
	Flags     uint32
}

// LoadCommand is one entry of the load command list: its type, raw
// payload (command-specific bytes after the 8-byte cmd/cmdsize pair),
// and file offset (for diagnostics).
type LoadCommand struct {
	Cmd     LoadCmd
	Size    uint32
	Offset  int64
	Payload []byte
}

// File is a sniff-depth Mach-O view: the header plus its load command
// list, decoded once and retained.
type File struct {
	r        *ioref.Reader
	Header   Header
	Commands []LoadCommand
}

// maxLoadCommands bounds the walk against a truncated or hostile
// ncmds/sizeofcmds field; no real Mach-O carries anywhere near this
// many commands.
const maxLoadCommands = 4096

// Parse reads the Mach-O header and its load command list. It accepts
// both endiannesses (the swapped magics appear on a big-endian host
// reading a little-endian image, or vice versa) but the pipeline only
// ever runs on little-endian hosts, so BigEndian distinguishes a
// byte-swapped image from a native one.
func Parse(r *ioref.Reader) (*File, error) {
	magicBuf, err := r.MustReadAt(0, 4)
	if err != nil {
		return nil, err
	}
	magic := binary.LittleEndian.Uint32(magicBuf)

	var is64, bigEndian bool
	switch magic {
	case magic32:
		is64, bigEndian = false, false
	case magic64:
		is64, bigEndian = true, false
	case magic32Swapped:
		is64, bigEndian = false, true
	case magic64Swapped:
		is64, bigEndian = true, true
	default:
		return nil, &bterrors.InvalidMagicError{Offset: 0, Want: []byte{0xfe, 0xed, 0xfa, 0xce}, Got: magicBuf}
	}

	bo := byteOrder(bigEndian)
	hdrSize := headerSize32
	if is64 {
		hdrSize = headerSize64
	}
	raw, err := r.MustReadAt(0, hdrSize)
	if err != nil {
		return nil, err
	}

	h := Header{
		Is64:       is64,
		BigEndian:  bigEndian,
		CPU:        CPUType(bo.Uint32(raw[4:8])),
		CPUSubtype: bo.Uint32(raw[8:12]),
		FileType:   FileType(bo.Uint32(raw[12:16])),
		NCmds:      bo.Uint32(raw[16:20]),
		SizeCmds:   bo.Uint32(raw[20:24]),
		Flags:      bo.Uint32(raw[24:28]),
	}

	cmds, err := parseLoadCommands(r, int64(hdrSize), h.NCmds, bo)
	if err != nil {
		return nil, err
	}

	return &File{r: r, Header: h, Commands: cmds}, nil
}

func parseLoadCommands(r *ioref.Reader, start int64, ncmds uint32, bo binary.ByteOrder) ([]LoadCommand, error) {
	n := ncmds
	if n > maxLoadCommands {
		n = maxLoadCommands
	}
	cmds := make([]LoadCommand, 0, n)
	off := start
	for i := uint32(0); i < n; i++ {
		head, err := r.ReadAt(off, 8)
		if err != nil || len(head) < 8 {
			break
		}
		cmd := LoadCmd(bo.Uint32(head[0:4]))
		size := bo.Uint32(head[4:8])
		if size < 8 {
			break
		}
		payload, err := r.ReadAt(off+8, int(size)-8)
		if err != nil {
			break
		}
		cmds = append(cmds, LoadCommand{Cmd: cmd, Size: size, Offset: off, Payload: payload})
		off += int64(size)
	}
	return cmds, nil
}

func byteOrder(big bool) binary.ByteOrder {
	if big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// LoadDylibs returns the dependent-library paths named by LC_LOAD_DYLIB
// and LC_LOAD_WEAK_DYLIB commands, in command order.
func (f *File) LoadDylibs() []string {
	bo := byteOrder(f.Header.BigEndian)
	var out []string
	for _, c := range f.Commands {
		if c.Cmd != LCLoadDylib && c.Cmd != LCLoadWeakDylib {
			continue
		}
		if len(c.Payload) < 4 {
			continue
		}
		nameOff := bo.Uint32(c.Payload[0:4])
		if int(nameOff) < 8 || int(nameOff)-8 >= len(c.Payload) {
			continue
		}
		out = append(out, cstr(c.Payload[nameOff-8:]))
	}
	return out
}

// HasSymtab reports whether an LC_SYMTAB command is present.
func (f *File) HasSymtab() bool {
	for _, c := range f.Commands {
		if c.Cmd == LCSymtab {
			return true
		}
	}
	return false
}

// IsPIE reports the MH_PIE flag (bit 0x200000).
func (f *File) IsPIE() bool {
	return f.Header.Flags&0x200000 != 0
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
