package elf

import "encoding/hex"

const noteGNUBuildID = 3 // NT_GNU_BUILD_ID

// BuildID walks PT_NOTE segments looking for the GNU build-id note and
// returns its hex-encoded identifier, or "" if absent.
func (f *File) BuildID(segs *SegmentTable) (string, error) {
	order := f.order
	for _, s := range segs.All {
		if s.Type != PT_NOTE {
			continue
		}
		buf, err := f.r.ReadAt(int64(s.Offset), int(s.FileSz))
		if err != nil {
			continue
		}
		off := 0
		for off+12 <= len(buf) {
			nameSz := int(order.Uint32(buf[off : off+4]))
			descSz := int(order.Uint32(buf[off+4 : off+8]))
			noteType := order.Uint32(buf[off+8 : off+12])
			off += 12

			nameEnd := off + align4(nameSz)
			descStart := nameEnd
			descEnd := descStart + align4(descSz)
			if descEnd > len(buf) || nameEnd > len(buf) {
				break
			}
			name := cstr(buf, off)
			desc := buf[descStart : descStart+descSz]

			if noteType == noteGNUBuildID && name == "GNU" {
				return hex.EncodeToString(desc), nil
			}
			off = descEnd
		}
	}
	return "", nil
}

func align4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}
