package fat

import (
	"fmt"
	"io"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// Cursor is the position at which the next file is appended. It is passed
// to and returned from Session.WriteFile by value.
type Cursor struct {
	// DirOffset is the offset of the next free directory slot.
	DirOffset int64
	// DataOffset is the offset of NextCluster.
	DataOffset int64
	// NextCluster is the first cluster after the most recently written
	// file.
	NextCluster uint32
}

// InitialCursor returns a cursor pointing at the first root directory slot
// and the first data cluster not used by the root directory.
func (v *Volume) InitialCursor() Cursor {
	next := uint32(2)
	if v.class.Type == FAT32 {
		next = v.geom.RootCluster() + 1
	}
	return Cursor{
		DirOffset:   v.rootDirStart,
		DataOffset:  v.ClusterOffset(next),
		NextCluster: next,
	}
}

// File describes a file to append to the root directory.
type File struct {
	// LongName is stored in VFAT long name entries, e.g. "uramdisk.image.gz".
	LongName string
	// ShortName is the 8.3 alias, e.g. "URAMDI~1.GZ".
	ShortName string
	// ModTime is used for both the creation and the modification stamp.
	ModTime time.Time
	// StartCluster is the first cluster of the file's data. Zero selects
	// the cursor's NextCluster.
	StartCluster uint32
	// Size is the number of bytes Payload provides.
	Size    int64
	Payload io.Reader
}

// Session appends files to a Volume. A Session must not be used
// concurrently, and the caller must hold exclusive access to the image.
type Session struct {
	v      *Volume
	log    log.FieldLogger
	closed bool
}

// NewSession returns a Session writing to v. A nil logger selects the
// standard logrus logger.
func NewSession(v *Volume, logger log.FieldLogger) *Session {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Session{
		v: v,
		log: logger.WithFields(log.Fields{
			"type":     v.Type(),
			"clusters": v.Clusters(),
		}),
	}
}

// Volume returns the volume the session writes to.
func (s *Session) Volume() *Volume { return s.v }

// WriteFile appends f at cur and returns the cursor for the next file: the
// long name entries and the short entry are written at cur.DirOffset, the
// data is stored in contiguous clusters from the start cluster on, the
// clusters are chained in the primary FAT and, on FAT32, the FSInfo sector
// is updated.
//
// Argument and cluster range errors are reported before anything is
// written. An I/O error leaves the volume partially written.
func (s *Session) WriteFile(cur Cursor, f File) (Cursor, error) {
	if s.closed {
		return cur, ErrSessionClosed
	}
	v := s.v
	if f.Size < 0 || f.Size > math.MaxUint32 {
		return cur, fmt.Errorf("%s: %w", f.LongName, ErrFileTooLarge)
	}
	if f.Size > 0 && f.Payload == nil {
		return cur, fmt.Errorf("%s: %w", f.LongName, ErrNoPayload)
	}
	short, err := ParseShortName(f.ShortName)
	if err != nil {
		return cur, err
	}

	start := f.StartCluster
	if start == 0 {
		start = cur.NextCluster
	}
	n := v.ClustersFor(f.Size)
	firstCluster := start
	if n == 0 {
		// Empty files own no clusters.
		firstCluster = 0
	}
	de, err := NewDirEntry(v.Type(), short, f.ModTime, firstCluster, uint32(f.Size))
	if err != nil {
		return cur, fmt.Errorf("%s: %w", f.LongName, err)
	}
	if n > 0 {
		if err := v.checkRun(start, n); err != nil {
			return cur, fmt.Errorf("%s: %w", f.LongName, err)
		}
	}
	lfn, err := EncodeLongName(f.LongName, Checksum(short))
	if err != nil {
		return cur, fmt.Errorf("%q: %w", f.LongName, err)
	}

	dir := make([]byte, 0, (len(lfn)+1)*dirEntrySize)
	for i := range lfn {
		b, err := lfn[i].MarshalBinary()
		if err != nil {
			return cur, err
		}
		dir = append(dir, b...)
	}
	b, err := de.MarshalBinary()
	if err != nil {
		return cur, err
	}
	dir = append(dir, b...)
	if end := cur.DirOffset + int64(len(dir)); end > v.rootDirEnd() {
		s.log.Warnf("%s: directory entries end at offset %d, beyond the root directory region ending at %d", f.LongName, end, v.rootDirEnd())
	}
	if err := v.writeAt(dir, cur.DirOffset); err != nil {
		return cur, err
	}

	next, err := v.WriteChain(start, f.Size, f.Payload)
	if err != nil {
		return cur, fmt.Errorf("%s: %w", f.LongName, err)
	}

	if n > 0 {
		updated, err := v.UpdateFSInfo(n, next-1)
		if err != nil {
			return cur, err
		}
		if !updated && v.Type() == FAT32 {
			s.log.Debugf("FSInfo sector signature mismatch, leaving free cluster count untouched")
		}
	}

	nextCur := Cursor{
		DirOffset:   cur.DirOffset + int64(len(dir)),
		DataOffset:  v.ClusterOffset(next),
		NextCluster: next,
	}
	s.log.WithFields(log.Fields{
		"name":     f.LongName,
		"short":    f.ShortName,
		"start":    firstCluster,
		"clusters": n,
		"size":     f.Size,
	}).Debugf("wrote file, cursor %+v -> %+v", cur, nextCur)
	return nextCur, nil
}

// Close mirrors the primary FAT into all backup FATs and syncs the image.
// The Session must not be used afterwards.
func (s *Session) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	if err := s.v.ReplicateFAT(); err != nil {
		return err
	}
	s.log.Debugf("replicated FAT to %d backup copies", s.v.geom.NumFATs-1)
	return s.v.Sync()
}
