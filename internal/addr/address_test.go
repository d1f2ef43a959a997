package addr

import "testing"

func TestNewRejectsOversizedValue(t *testing.T) {
	if _, err := New(VA, 0x10000, 16); err == nil {
		t.Fatalf("expected error for value overflowing 16 bits")
	}
	if _, err := New(VA, 0xFFFF, 16); err != nil {
		t.Fatalf("unexpected error for max 16-bit value: %v", err)
	}
}

func TestNewRejectsBadBitWidth(t *testing.T) {
	if _, err := New(VA, 0, 48); err == nil {
		t.Fatalf("expected error for unsupported bit width")
	}
}

func TestRangeOverflow(t *testing.T) {
	start, _ := New(VA, 0xFFFFFFF0, 32)
	if _, err := NewRange(start, 0x20, 0); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := NewRange(start, 0x10, 0); err != nil {
		t.Fatalf("unexpected error for in-bounds range: %v", err)
	}
}

func TestRangeAlignment(t *testing.T) {
	start, _ := New(VA, 0x1000, 32)
	if _, err := NewRange(start, 0x10, 3); err == nil {
		t.Fatalf("expected error for non-power-of-two alignment")
	}
	unaligned, _ := New(VA, 0x1001, 32)
	if _, err := NewRange(unaligned, 0x10, 0x1000); err == nil {
		t.Fatalf("expected error for unaligned start")
	}
}

func TestRangeContains(t *testing.T) {
	start, _ := New(VA, 0x1000, 32)
	r, err := NewRange(start, 0x100, 0)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	if !r.Contains(0x1000) || !r.Contains(0x10FF) {
		t.Errorf("expected range to contain its boundary offsets")
	}
	if r.Contains(0x1100) {
		t.Errorf("range must not contain its exclusive end")
	}
}

func TestOverlaySpaceRequiresBase(t *testing.T) {
	if _, err := NewAddressSpace("ov", SpaceOverlay, 0, ""); err == nil {
		t.Fatalf("expected error for overlay space with no base")
	}
	if _, err := NewAddressSpace("ov", SpaceOverlay, 0, "default"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
