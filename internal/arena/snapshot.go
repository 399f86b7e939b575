package arena

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
)

// ErrBadSnapshot indicates a snapshot stream that is not a region image.
var ErrBadSnapshot = errors.New("arena: bad snapshot")

const (
	snapshotMagic      = "SLAMSNAP"
	snapshotHeaderSize = 24
)

// WriteSnapshot writes an s2-compressed image of the region to w.
//
// The image is a 24-byte header (magic, origin, size; little endian)
// followed by the raw region bytes. The region should be quiescent while the
// snapshot is taken; concurrent writers produce a torn image.
func (r *Region) WriteSnapshot(w io.Writer) error {
	var hdr [snapshotHeaderSize]byte
	copy(hdr[:8], snapshotMagic)
	binary.LittleEndian.PutUint64(hdr[8:], uint64(r.origin))
	binary.LittleEndian.PutUint64(hdr[16:], r.Size())

	sw := s2.NewWriter(w)
	if _, err := sw.Write(hdr[:]); err != nil {
		_ = sw.Close()
		return fmt.Errorf("arena: write snapshot header: %w", err)
	}
	if _, err := sw.Write(r.bytes); err != nil {
		_ = sw.Close()
		return fmt.Errorf("arena: write snapshot body: %w", err)
	}
	return sw.Close()
}

// ReadSnapshot restores a region from an image written by WriteSnapshot.
// The restored region is always backed by Go memory.
func ReadSnapshot(rd io.Reader) (*Region, error) {
	sr := s2.NewReader(rd)

	var hdr [snapshotHeaderSize]byte
	if _, err := io.ReadFull(sr, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrBadSnapshot, err)
	}
	if string(hdr[:8]) != snapshotMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadSnapshot, hdr[:8])
	}
	origin := Addr(binary.LittleEndian.Uint64(hdr[8:]))
	size := binary.LittleEndian.Uint64(hdr[16:])
	if size == 0 || size%PageSize != 0 || origin >= MaxAddr || size >= uint64(MaxAddr-origin) {
		return nil, fmt.Errorf("%w: region of %d bytes at %v", ErrBadSnapshot, size, origin)
	}

	// The header is untrusted: buffer the body as it arrives and only size
	// the region once that many bytes actually exist.
	var body bytes.Buffer
	n, err := io.Copy(&body, io.LimitReader(sr, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: body: %w", ErrBadSnapshot, err)
	}
	if uint64(n) != size {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrBadSnapshot, n, size)
	}

	r, err := New(size, WithOrigin(origin), WithHeapMemory())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	copy(r.bytes, body.Bytes())
	return r, nil
}

// TouchedPages returns how many PageSize pages of the region hold any
// non-zero byte.
func (r *Region) TouchedPages() int {
	n := 0
	for off := 0; off < len(r.bytes); off += PageSize {
		page := r.words[off/WordSize : (off+PageSize)/WordSize]
		for _, w := range page {
			if w != 0 {
				n++
				break
			}
		}
	}
	return n
}
