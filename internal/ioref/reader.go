// Package ioref implements the bounded, offset-addressable view of an
// input file described in spec §4.1: a maximum file size enforced at
// open time, and a maximum cumulative bytes-read budget enforced across
// every ReadAt call.
package ioref

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/bintriage/internal/bterrors"
)

// Limits caps the resources a single Reader may consume.
type Limits struct {
	MaxFileSize  int64
	MaxReadBytes int64
}

// DefaultLimits mirrors the IO defaults named in spec §6.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  512 * 1024 * 1024,
		MaxReadBytes: 256 * 1024 * 1024,
	}
}

// Reader is a read-only, budget-capped view over an input's bytes. It
// owns its backing buffer exclusively; ReadAt returns owned copies, never
// a slice into the backing storage, so no reference into it escapes.
type Reader struct {
	data      []byte
	limits    Limits
	bytesRead atomic.Int64

	cacheMu sync.RWMutex
	cache   map[uint64]any
}

// Open reads path into memory, subject to MaxFileSize. A zero-length
// file is legal and yields a Reader that always returns empty reads.
func Open(path string, limits Limits) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if limits.MaxFileSize > 0 && info.Size() > limits.MaxFileSize {
		return nil, &bterrors.FileTooLargeError{Limit: limits.MaxFileSize, Found: info.Size()}
	}
	if info.Size() == 0 {
		return FromBytes(nil, limits), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(data, limits), nil
}

// FromBytes builds a Reader directly from an in-memory buffer (e.g. bytes
// already received over a non-filesystem channel). The caller must not
// mutate data afterward; Reader takes ownership.
func FromBytes(data []byte, limits Limits) *Reader {
	return &Reader{data: data, limits: limits, cache: make(map[uint64]any)}
}

// Size returns the total byte length of the underlying input.
func (r *Reader) Size() int64 {
	return int64(len(r.data))
}

// BytesRead returns the cumulative bytes returned by successful ReadAt
// calls. It is monotone: a rejected read never advances it.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead.Load()
}

// Limits returns the caps this Reader enforces.
func (r *Reader) Limits() Limits {
	return r.limits
}

// ReadAt returns an owned copy of up to length bytes starting at offset.
// It truncates at EOF rather than erroring, and rejects (without
// advancing BytesRead) a request that would exceed MaxReadBytes.
func (r *Reader) ReadAt(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &bterrors.InvalidOffsetError{Offset: offset}
	}
	if offset >= int64(len(r.data)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(r.data)) {
		end = int64(len(r.data))
	}
	want := end - offset

	if r.limits.MaxReadBytes > 0 {
		current := r.bytesRead.Load()
		if current+want > r.limits.MaxReadBytes {
			return nil, &bterrors.ReadLimitExceededError{Limit: r.limits.MaxReadBytes, Current: current}
		}
	}

	out := make([]byte, want)
	copy(out, r.data[offset:end])
	r.bytesRead.Add(want)
	return out, nil
}

// MustReadAt is ReadAt without the truncate-at-EOF rule: it returns
// bterrors.TruncatedError if fewer than length bytes remain. The read is
// still subject to MaxReadBytes, and a short read still counts toward
// BytesRead.
// Parsers use this for fixed-size header fields where a short read is
// itself the error condition.
func (r *Reader) MustReadAt(offset int64, length int) ([]byte, error) {
	buf, err := r.ReadAt(offset, length)
	if err != nil {
		return nil, err
	}
	if len(buf) < length {
		return nil, &bterrors.TruncatedError{Offset: offset, Needed: int64(length) - int64(len(buf))}
	}
	return buf, nil
}

// CacheKey hashes the bytes a caller is about to derive an expensive
// table from (imports, exports, symbols) so repeat queries against one
// Reader skip re-walking the table. This is a cheap, non-cryptographic
// hash (xxhash), never used for content identity in the artifact model —
// that role belongs to SHA-256 in internal/artifact.
func CacheKey(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// CacheGet returns a previously stored derived table for key, if any.
func (r *Reader) CacheGet(key uint64) (any, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	v, ok := r.cache[key]
	return v, ok
}

// CacheSet stores a derived table for key.
func (r *Reader) CacheSet(key uint64, value any) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[key] = value
}
