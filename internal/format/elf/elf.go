// Package elf implements a lazy, fallible ELF32/ELF64 parser (spec
// §4.2.2); its reads go through ioref.Reader, which returns owned copies
// rather than views into the input: identification, program and section headers,
// symbol tables, dynamic section, PLT mapping, notes, and
// security-feature derivation. Every routine is total over malformed
// input: it returns a typed error instead of panicking.
package elf

import (
	"encoding/binary"

	"github.com/standardbeagle/bintriage/internal/bterrors"
	"github.com/standardbeagle/bintriage/internal/format/common"
	"github.com/standardbeagle/bintriage/internal/ioref"
)

// Identification is the fixed 16-byte e_ident prefix.
type Identification struct {
	Class   Class
	Data    Data
	Version uint8
	OSABI   uint8
	ABIVer  uint8
}

// File is a parsed ELF header. Derived tables (sections, segments,
// symbols, dynamic entries, PLT map) are computed on demand and not
// cached: each accessor call re-reads its table through the reader.
type File struct {
	r    *ioref.Reader
	Ident Identification

	Type      Type
	Machine   Machine
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16

	order binary.ByteOrder
}

// Bits returns 32 or 64 depending on Ident.Class.
func (f *File) Bits() int {
	if f.Ident.Class == Class64 {
		return 64
	}
	return 32
}

// ByteOrder returns the file's declared endianness as a binary.ByteOrder.
func (f *File) ByteOrder() binary.ByteOrder { return f.order }

// IsPIE reports whether the file is a position-independent executable
// (e_type == ET_DYN).
func (f *File) IsPIE() bool { return f.Type == ET_DYN }

func wordSize(c Class) int {
	if c == Class64 {
		return 8
	}
	return 4
}

// Parse reads and validates the ELF identification and file header.
func Parse(r *ioref.Reader) (*File, error) {
	ident, err := r.MustReadAt(0, 16)
	if err != nil {
		return nil, err
	}
	if string(ident[0:4]) != "\x7fELF" {
		return nil, &bterrors.InvalidMagicError{Offset: 0, Want: []byte("\x7fELF"), Got: ident[0:4]}
	}

	class := Class(ident[4])
	if class != Class32 && class != Class64 {
		return nil, &bterrors.UnsupportedArchitectureError{Field: "EI_CLASS", Code: uint32(ident[4])}
	}
	data := Data(ident[5])
	if data != DataLittle && data != DataBig {
		return nil, &bterrors.UnsupportedArchitectureError{Field: "EI_DATA", Code: uint32(ident[5])}
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if data == DataBig {
		order = binary.BigEndian
	}

	f := &File{
		r: r,
		Ident: Identification{
			Class:   class,
			Data:    data,
			Version: ident[6],
			OSABI:   ident[7],
			ABIVer:  ident[8],
		},
		order: order,
	}

	wantEhSize := uint16(52)
	if class == Class64 {
		wantEhSize = 64
	}

	hdr, err := r.MustReadAt(16, int(wantEhSize)-16)
	if err != nil {
		return nil, err
	}

	f.Type = Type(order.Uint16(hdr[0:2]))
	f.Machine = Machine(order.Uint16(hdr[2:4]))
	f.Version = order.Uint32(hdr[4:8])

	if class == Class64 {
		f.Entry = order.Uint64(hdr[8:16])
		f.PhOff = order.Uint64(hdr[16:24])
		f.ShOff = order.Uint64(hdr[24:32])
		f.Flags = order.Uint32(hdr[32:36])
		f.EhSize = order.Uint16(hdr[36:38])
		f.PhEntSize = order.Uint16(hdr[38:40])
		f.PhNum = order.Uint16(hdr[40:42])
		f.ShEntSize = order.Uint16(hdr[42:44])
		f.ShNum = order.Uint16(hdr[44:46])
		f.ShStrNdx = order.Uint16(hdr[46:48])
	} else {
		f.Entry = uint64(order.Uint32(hdr[8:12]))
		f.PhOff = uint64(order.Uint32(hdr[12:16]))
		f.ShOff = uint64(order.Uint32(hdr[16:20]))
		f.Flags = order.Uint32(hdr[20:24])
		f.EhSize = order.Uint16(hdr[24:26])
		f.PhEntSize = order.Uint16(hdr[26:28])
		f.PhNum = order.Uint16(hdr[28:30])
		f.ShEntSize = order.Uint16(hdr[30:32])
		f.ShNum = order.Uint16(hdr[32:34])
		f.ShStrNdx = order.Uint16(hdr[34:36])
	}

	if f.EhSize != wantEhSize {
		return nil, &bterrors.MalformedHeaderError{Reason: "e_ehsize does not match class"}
	}
	wantPhEntSize := uint16(32)
	wantShEntSize := uint16(40)
	if class == Class64 {
		wantPhEntSize, wantShEntSize = 56, 64
	}
	if f.PhNum > 0 && f.PhEntSize != wantPhEntSize {
		return nil, &bterrors.MalformedHeaderError{Reason: "e_phentsize does not match class"}
	}
	if f.ShNum > 0 && f.ShEntSize != wantShEntSize {
		return nil, &bterrors.MalformedHeaderError{Reason: "e_shentsize does not match class"}
	}

	return f, nil
}
