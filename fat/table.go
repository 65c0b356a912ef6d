package fat

import (
	"encoding/binary"
	"fmt"
	"io"
)

// entryOffset returns the byte offset of the FAT entry for cluster c,
// relative to the start of a FAT copy.
func entryOffset(t Type, c uint32) int64 {
	switch t {
	case FAT12:
		// 12-bit entries: two entries share three bytes.
		return int64(c) + int64(c)/2
	case FAT16:
		return int64(c) * 2
	}
	return int64(c) * 4
}

// entryBytes is the number of bytes touched when accessing a single entry.
func entryBytes(t Type) int64 {
	if t == FAT32 {
		return 4
	}
	return 2
}

// fatBuffer holds a slice of the primary FAT, starting at FAT offset off.
type fatBuffer struct {
	typ Type
	off int64
	buf []byte
}

func (fb *fatBuffer) index(c uint32) []byte {
	return fb.buf[entryOffset(fb.typ, c)-fb.off:]
}

func (fb *fatBuffer) get(c uint32) uint32 {
	b := fb.index(c)
	switch fb.typ {
	case FAT12:
		raw := binary.LittleEndian.Uint16(b)
		if c%2 == 1 {
			return uint32(raw >> 4)
		}
		return uint32(raw & 0x0FFF)
	case FAT16:
		return uint32(binary.LittleEndian.Uint16(b))
	}
	return binary.LittleEndian.Uint32(b) & 0x0FFFFFFF
}

func (fb *fatBuffer) set(c, val uint32) {
	b := fb.index(c)
	switch fb.typ {
	case FAT12:
		raw := binary.LittleEndian.Uint16(b)
		v12 := uint16(val & 0x0FFF)
		if c%2 == 1 {
			raw = raw&0x000F | v12<<4
		} else {
			raw = raw&0xF000 | v12
		}
		binary.LittleEndian.PutUint16(b, raw)
	case FAT16:
		binary.LittleEndian.PutUint16(b, uint16(val))
	default:
		// The upper four bits of a FAT32 entry are reserved and must be
		// preserved.
		old := binary.LittleEndian.Uint32(b)
		binary.LittleEndian.PutUint32(b, old&0xF0000000|val&0x0FFFFFFF)
	}
}

// readFAT loads the primary FAT entries of clusters first through last.
func (v *Volume) readFAT(first, last uint32) (*fatBuffer, error) {
	t := v.class.Type
	off := entryOffset(t, first)
	end := entryOffset(t, last) + entryBytes(t)
	if end > v.fatBytes {
		return nil, &ClusterRangeError{Cluster: last, Max: v.LastCluster(), Type: t}
	}
	fb := &fatBuffer{
		typ: t,
		off: off,
		buf: make([]byte, end-off),
	}
	if err := v.readAt(fb.buf, v.fatStart+off); err != nil {
		return nil, err
	}
	return fb, nil
}

func (v *Volume) writeFAT(fb *fatBuffer) error {
	return v.writeAt(fb.buf, v.fatStart+fb.off)
}

// FATEntry returns the value of the primary FAT entry for cluster c.
func (v *Volume) FATEntry(c uint32) (uint32, error) {
	fb, err := v.readFAT(c, c)
	if err != nil {
		return 0, err
	}
	return fb.get(c), nil
}

// SetFATEntry stores val in the primary FAT entry for cluster c, leaving
// neighbouring FAT12 entries and the reserved FAT32 bits intact.
func (v *Volume) SetFATEntry(c, val uint32) error {
	fb, err := v.readFAT(c, c)
	if err != nil {
		return err
	}
	fb.set(c, val)
	return v.writeFAT(fb)
}

// checkRun verifies that clusters start through start+n-1 exist.
func (v *Volume) checkRun(start, n uint32) error {
	if start < 2 {
		return &ClusterRangeError{Cluster: start, Max: v.LastCluster(), Type: v.Type()}
	}
	if last := uint64(start) + uint64(n) - 1; last > uint64(v.LastCluster()) {
		return &ClusterRangeError{Cluster: uint32(last), Max: v.LastCluster(), Type: v.Type()}
	}
	return nil
}

// WriteChain stores size bytes read from payload in the contiguous clusters
// beginning at start, then links those clusters in the primary FAT and
// terminates the chain with the end-of-chain marker. It returns the first
// cluster after the chain.
//
// The final cluster is not padded: bytes after the end of the payload keep
// whatever the image contained before.
func (v *Volume) WriteChain(start uint32, size int64, payload io.Reader) (uint32, error) {
	n := v.ClustersFor(size)
	if n == 0 {
		return start, nil
	}
	if err := v.checkRun(start, n); err != nil {
		return 0, err
	}
	if size > 0 && payload == nil {
		return 0, ErrNoPayload
	}

	w := io.NewOffsetWriter(v.img, v.base+v.ClusterOffset(start))
	written, err := io.CopyBuffer(w, io.LimitReader(payload, size), make([]byte, v.clusterBytes))
	if err != nil {
		return 0, fmt.Errorf("writing data of cluster chain at %d: %w", start, err)
	}
	if written < size {
		return 0, fmt.Errorf("payload ended after %d of %d bytes: %w", written, size, io.ErrUnexpectedEOF)
	}

	last := start + n - 1
	fb, err := v.readFAT(start, last)
	if err != nil {
		return 0, err
	}
	for c := start; c < last; c++ {
		fb.set(c, c+1) // pointer to the next cluster
	}
	fb.set(last, v.class.EndOfChain)
	if err := v.writeFAT(fb); err != nil {
		return 0, err
	}
	return start + n, nil
}

// ReplicateFAT copies the primary FAT verbatim over every backup copy.
func (v *Volume) ReplicateFAT() error {
	if v.geom.NumFATs < 2 {
		return nil
	}
	primary := make([]byte, v.fatBytes)
	if err := v.readAt(primary, v.fatStart); err != nil {
		return err
	}
	for i := 1; i < int(v.geom.NumFATs); i++ {
		if err := v.writeAt(primary, v.fatStart+int64(i)*v.fatBytes); err != nil {
			return err
		}
	}
	return nil
}
