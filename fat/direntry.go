package fat

import (
	"bytes"
	"encoding/binary"
	"time"
)

// dirEntrySize is the size of short and long name directory entries.
const dirEntrySize = 32

// Directory entry attributes.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// DirEntry is a short (8.3) directory entry.
type DirEntry struct {
	Name            [11]byte
	Attr            uint8
	NTReserved      uint8
	CreateTimeTenth uint8
	CreateTime      uint16
	CreateDate      uint16
	AccessDate      uint16
	ClusterHigh     uint16
	WriteTime       uint16
	WriteDate       uint16
	ClusterLow      uint16
	Size            uint32
}

var (
	minTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(2107, 12, 31, 23, 59, 58, 0, time.UTC)
)

// clampTime limits t to the range a directory entry can represent, keeping
// the wall clock of t's location.
func clampTime(t time.Time) time.Time {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	switch {
	case wall.Before(minTime):
		return minTime
	case wall.After(maxTime):
		return maxTime
	}
	return wall
}

func packTime(t time.Time) uint16 {
	return uint16(t.Hour())<<11 |
		uint16(t.Minute())<<5 |
		uint16(t.Second()/2)
}

func packDate(t time.Time) uint16 {
	return uint16(t.Year()-1980)<<9 |
		uint16(t.Month())<<5 |
		uint16(t.Day())
}

// unmarshalTimeDate is the inverse of packTime and packDate. The result is
// in UTC.
func unmarshalTimeDate(t, d uint16) time.Time {
	return time.Date(
		1980+int(d>>9),
		time.Month(d>>5&0x0F),
		int(d&0x1F),
		int(t>>11),
		int(t>>5&0x3F),
		int(t&0x1F)*2,
		0,
		time.UTC)
}

// NewDirEntry builds the short directory entry of an archive file. The
// creation and modification stamps are both set to modTime (wall clock of
// its location, two second granularity). The start cluster is rejected
// with a *ClusterRangeError if the FAT type cannot address it; 0 is
// accepted for empty files.
func NewDirEntry(typ Type, name [11]byte, modTime time.Time, startCluster uint32, size uint32) (DirEntry, error) {
	if startCluster == 1 || startCluster > typ.MaxCluster() {
		return DirEntry{}, &ClusterRangeError{Cluster: startCluster, Max: typ.MaxCluster(), Type: typ}
	}
	stamp := clampTime(modTime)
	tm, dt := packTime(stamp), packDate(stamp)
	return DirEntry{
		Name:        name,
		Attr:        AttrArchive,
		CreateTime:  tm,
		CreateDate:  dt,
		AccessDate:  dt,
		ClusterHigh: uint16(startCluster >> 16),
		WriteTime:   tm,
		WriteDate:   dt,
		ClusterLow:  uint16(startCluster & 0xFFFF),
		Size:        size,
	}, nil
}

// StartCluster returns the first cluster of the file.
func (e *DirEntry) StartCluster() uint32 {
	return uint32(e.ClusterHigh)<<16 | uint32(e.ClusterLow)
}

// ModTime returns the last modification time in UTC.
func (e *DirEntry) ModTime() time.Time {
	return unmarshalTimeDate(e.WriteTime, e.WriteDate)
}

// MarshalBinary returns the 32-byte on-disk form of the entry.
func (e *DirEntry) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a 32-byte short directory entry.
func (e *DirEntry) UnmarshalBinary(b []byte) error {
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, e)
}
