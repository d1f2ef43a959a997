// Package addr implements the value types that anchor every other data
// model in the toolkit: Address, AddressRange, and AddressSpace (spec
// data model §3). They are constructed once by a parser or the pipeline
// and never mutated afterward.
package addr

import "fmt"

// Kind discriminates how an Address's value should be interpreted.
type Kind string

const (
	VA         Kind = "va"
	FileOffset Kind = "file_offset"
	RVA        Kind = "rva"
	Relative   Kind = "relative"
	Symbolic   Kind = "symbolic"
)

// Address is a discriminated value. It is a value object: copy it freely,
// never mutate a field on a shared instance.
type Address struct {
	Kind      Kind
	Value     uint64
	Bits      int // 16, 32, or 64
	Space     string
	SymbolRef string
}

// New validates that value fits in bits and returns an Address.
func New(kind Kind, value uint64, bits int) (Address, error) {
	switch bits {
	case 16, 32, 64:
	default:
		return Address{}, fmt.Errorf("addr: unsupported bit width %d", bits)
	}
	if bits < 64 {
		max := uint64(1)<<uint(bits) - 1
		if value > max {
			return Address{}, fmt.Errorf("addr: value 0x%x does not fit in %d bits", value, bits)
		}
	}
	return Address{Kind: kind, Value: value, Bits: bits}, nil
}

// WithSpace returns a copy of a with Space set.
func (a Address) WithSpace(space string) Address {
	a.Space = space
	return a
}

// WithSymbolRef returns a copy of a with SymbolRef set.
func (a Address) WithSymbolRef(ref string) Address {
	a.SymbolRef = ref
	return a
}

func (a Address) String() string {
	return fmt.Sprintf("%s:0x%x", a.Kind, a.Value)
}

// AddressRange is a span starting at Start with Size bytes.
type AddressRange struct {
	Start     Address
	Size      uint64
	Alignment uint64 // 0 means unconstrained
}

// NewRange validates that Start+Size does not overflow within Start.Bits
// and, if Alignment is set, that it is a power of two and Start is
// aligned to it.
func NewRange(start Address, size uint64, alignment uint64) (AddressRange, error) {
	max := uint64(1)<<uint(start.Bits) - 1
	if start.Bits == 64 {
		max = ^uint64(0)
	}
	if size > 0 && start.Value > max-size+1 {
		return AddressRange{}, fmt.Errorf("addr: range start 0x%x size %d overflows %d bits", start.Value, size, start.Bits)
	}
	if alignment != 0 {
		if alignment&(alignment-1) != 0 {
			return AddressRange{}, fmt.Errorf("addr: alignment %d is not a power of two", alignment)
		}
		if start.Value%alignment != 0 {
			return AddressRange{}, fmt.Errorf("addr: start 0x%x is not aligned to %d", start.Value, alignment)
		}
	}
	return AddressRange{Start: start, Size: size, Alignment: alignment}, nil
}

// End returns the exclusive end address value of the range.
func (r AddressRange) End() uint64 {
	return r.Start.Value + r.Size
}

// Contains reports whether value falls in [Start.Value, End()).
func (r AddressRange) Contains(value uint64) bool {
	return value >= r.Start.Value && value < r.End()
}

// SpaceKind classifies an AddressSpace.
type SpaceKind string

const (
	SpaceDefault SpaceKind = "default"
	SpaceOverlay SpaceKind = "overlay"
	SpaceStack   SpaceKind = "stack"
	SpaceHeap    SpaceKind = "heap"
	SpaceMMIO    SpaceKind = "mmio"
	SpaceOther   SpaceKind = "other"
)

// AddressSpace is a named domain addresses live in.
type AddressSpace struct {
	Name      string
	Kind      SpaceKind
	Size      uint64 // 0 means unknown/unbounded
	BaseSpace string
}

// NewAddressSpace validates that overlay spaces name a base space.
func NewAddressSpace(name string, kind SpaceKind, size uint64, baseSpace string) (AddressSpace, error) {
	if kind == SpaceOverlay && baseSpace == "" {
		return AddressSpace{}, fmt.Errorf("addr: overlay space %q requires a non-empty base space", name)
	}
	return AddressSpace{Name: name, Kind: kind, Size: size, BaseSpace: baseSpace}, nil
}
