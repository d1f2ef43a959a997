package pe

// OverlayStart returns the file offset at which section data ends:
// max over sections of (FileOffset + FileSize), skipping sections with
// a zero raw size (they contribute no on-disk extent). Bytes beyond
// this offset are the overlay -- data appended after the image proper,
// commonly installer payloads, signatures, or packer stages.
func OverlayStart(sections *SectionTable, headersEnd uint64) uint64 {
	end := headersEnd
	for _, s := range sections.All {
		if s.FileSize == 0 {
			continue
		}
		if e := s.FileOffset + s.FileSize; e > end {
			end = e
		}
	}
	return end
}

// HasOverlay reports whether the file extends past OverlayStart. When no
// section has a nonzero raw size it reports no overlay.
func (f *File) HasOverlay(sections *SectionTable) (bool, uint64) {
	hasRaw := false
	for _, s := range sections.All {
		if s.FileSize != 0 {
			hasRaw = true
			break
		}
	}
	if !hasRaw {
		return false, 0
	}
	start := OverlayStart(sections, uint64(f.Opt.SizeOfHeaders))
	size := uint64(f.r.Size())
	if size > start {
		return true, size - start
	}
	return false, 0
}
