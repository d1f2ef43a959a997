package pe

import (
	"encoding/binary"

	"github.com/standardbeagle/bintriage/internal/bterrors"
	"github.com/standardbeagle/bintriage/internal/ioref"
)

// CoffHeader is the IMAGE_FILE_HEADER.
type CoffHeader struct {
	Machine              Machine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// OptionalHeader is the subset of IMAGE_OPTIONAL_HEADER{32,64} shared by
// both widths, plus the fields every downstream consumer needs.
type OptionalHeader struct {
	Magic               uint16
	Is64                bool
	AddressOfEntryPoint uint32
	ImageBase           uint64
	SectionAlignment    uint32
	FileAlignment       uint32
	SizeOfImage         uint32
	SizeOfHeaders       uint32
	CheckSum            uint32
	Subsystem           Subsystem
	DllCharacteristics  uint16
	NumberOfRvaAndSizes uint32
	DataDirectories     []DataDirectory
}

// File is a parsed PE image: DOS stub location, COFF header, optional
// header, and the byte offset at which the section table begins.
type File struct {
	r *ioref.Reader

	ELfanew uint32 // e_lfanew: file offset of the "PE\0\0" signature
	Coff    CoffHeader
	Opt     OptionalHeader

	sectionTableOffset int64
}

// IsPIE reports whether the image opts into ASLR rebasing
// (IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE).
func (f *File) IsPIE() bool {
	return f.Opt.DllCharacteristics&DllCharDynamicBase != 0
}

// Reader returns the bounded reader backing this parse, for callers
// that need direct offset reads beyond what File's own accessors expose
// (e.g. symbol-level enrichment passes).
func (f *File) Reader() *ioref.Reader {
	return f.r
}

// Parse reads and validates the DOS stub, COFF header, and optional
// header of a PE image.
func Parse(r *ioref.Reader) (*File, error) {
	dos, err := r.MustReadAt(0, 0x40)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	if le.Uint16(dos[0:2]) != dosSignature {
		return nil, &bterrors.InvalidMagicError{Offset: 0, Want: []byte("MZ"), Got: dos[0:2]}
	}
	elfanew := le.Uint32(dos[0x3c:0x40])

	sig, err := r.MustReadAt(int64(elfanew), 4)
	if err != nil {
		return nil, err
	}
	if string(sig) != "PE\x00\x00" {
		return nil, &bterrors.InvalidMagicError{Offset: int64(elfanew), Want: []byte("PE\x00\x00"), Got: sig}
	}

	coffOff := int64(elfanew) + 4
	coffBuf, err := r.MustReadAt(coffOff, 20)
	if err != nil {
		return nil, err
	}
	coff := CoffHeader{
		Machine:              Machine(le.Uint16(coffBuf[0:2])),
		NumberOfSections:     le.Uint16(coffBuf[2:4]),
		TimeDateStamp:        le.Uint32(coffBuf[4:8]),
		PointerToSymbolTable: le.Uint32(coffBuf[8:12]),
		NumberOfSymbols:      le.Uint32(coffBuf[12:16]),
		SizeOfOptionalHeader: le.Uint16(coffBuf[16:18]),
		Characteristics:      le.Uint16(coffBuf[18:20]),
	}

	optOff := coffOff + 20
	opt, err := parseOptionalHeader(r, optOff, int(coff.SizeOfOptionalHeader))
	if err != nil {
		return nil, err
	}

	f := &File{
		r:       r,
		ELfanew: elfanew,
		Coff:    coff,
		Opt:     *opt,

		sectionTableOffset: optOff + int64(coff.SizeOfOptionalHeader),
	}
	return f, nil
}

func parseOptionalHeader(r *ioref.Reader, off int64, size int) (*OptionalHeader, error) {
	if size < 2 {
		return nil, &bterrors.MalformedHeaderError{Reason: "optional header too small"}
	}
	buf, err := r.MustReadAt(off, size)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	magic := le.Uint16(buf[0:2])

	opt := &OptionalHeader{Magic: magic}
	switch magic {
	case pe32Magic:
		opt.Is64 = false
		if len(buf) < 96 {
			return nil, &bterrors.MalformedHeaderError{Reason: "PE32 optional header truncated"}
		}
		opt.AddressOfEntryPoint = le.Uint32(buf[16:20])
		opt.ImageBase = uint64(le.Uint32(buf[28:32]))
		opt.SectionAlignment = le.Uint32(buf[32:36])
		opt.FileAlignment = le.Uint32(buf[36:40])
		opt.SizeOfImage = le.Uint32(buf[56:60])
		opt.SizeOfHeaders = le.Uint32(buf[60:64])
		opt.CheckSum = le.Uint32(buf[64:68])
		opt.Subsystem = Subsystem(le.Uint16(buf[68:70]))
		opt.DllCharacteristics = le.Uint16(buf[70:72])
		opt.NumberOfRvaAndSizes = le.Uint32(buf[92:96])
		opt.DataDirectories = readDataDirectories(le, buf, 96, opt.NumberOfRvaAndSizes)
	case pe32PlusMagic:
		opt.Is64 = true
		if len(buf) < 112 {
			return nil, &bterrors.MalformedHeaderError{Reason: "PE32+ optional header truncated"}
		}
		opt.AddressOfEntryPoint = le.Uint32(buf[16:20])
		opt.ImageBase = le.Uint64(buf[24:32])
		opt.SectionAlignment = le.Uint32(buf[32:36])
		opt.FileAlignment = le.Uint32(buf[36:40])
		opt.SizeOfImage = le.Uint32(buf[56:60])
		opt.SizeOfHeaders = le.Uint32(buf[60:64])
		opt.CheckSum = le.Uint32(buf[64:68])
		opt.Subsystem = Subsystem(le.Uint16(buf[68:70]))
		opt.DllCharacteristics = le.Uint16(buf[70:72])
		opt.NumberOfRvaAndSizes = le.Uint32(buf[108:112])
		opt.DataDirectories = readDataDirectories(le, buf, 112, opt.NumberOfRvaAndSizes)
	default:
		return nil, &bterrors.UnsupportedArchitectureError{Field: "OptionalHeader.Magic", Code: uint32(magic)}
	}
	return opt, nil
}

func readDataDirectories(le binary.ByteOrder, buf []byte, start int, count uint32) []DataDirectory {
	out := make([]DataDirectory, 0, count)
	for i := uint32(0); i < count; i++ {
		off := start + int(i)*8
		if off+8 > len(buf) {
			break
		}
		out = append(out, DataDirectory{
			RVA:  le.Uint32(buf[off : off+4]),
			Size: le.Uint32(buf[off+4 : off+8]),
		})
	}
	return out
}

// DataDirectory returns the entry at index, or the zero value and false
// if it is absent (index >= NumberOfRvaAndSizes).
func (f *File) DataDirectory(index int) (DataDirectory, bool) {
	if index < 0 || index >= len(f.Opt.DataDirectories) {
		return DataDirectory{}, false
	}
	return f.Opt.DataDirectories[index], true
}
