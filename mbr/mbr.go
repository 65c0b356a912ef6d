// Package mbr provides a minimal reader for the primary partition table of a
// Master Boot Record.
package mbr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	// SectorSize is the logical block size assumed for disk images.
	SectorSize = 512

	// the partition table starts at byte offset 446
	partitionTableOffset = 446
	signatureOffset      = 510
)

// Partition types.
const (
	TypeEmpty         = 0x00
	TypeFAT12         = 0x01
	TypeFAT16         = 0x04
	TypeFAT16B        = 0x06
	TypeFAT32CHS      = 0x0B
	TypeFAT32LBA      = 0x0C
	TypeFAT16LBA      = 0x0E
	TypeLinux         = 0x83
	TypeGPTProtective = 0xEE
)

var signature = [2]byte{0x55, 0xAA}

// ErrNoSignature is returned when the boot sector does not end in 0x55AA.
var ErrNoSignature = errors.New("no MBR boot signature")

// PartitionEntry is one of the four primary partition table entries.
type PartitionEntry struct {
	Status   uint8 // 0x80: bootable
	FirstCHS [3]byte
	Type     uint8
	LastCHS  [3]byte
	FirstLBA uint32
	Sectors  uint32
}

// Bootable reports whether the active flag is set.
func (pe *PartitionEntry) Bootable() bool { return pe.Status&0x80 != 0 }

// Used reports whether the entry describes a partition.
func (pe *PartitionEntry) Used() bool { return pe.Type != TypeEmpty }

// IsFAT reports whether the partition type denotes a FAT file system.
func (pe *PartitionEntry) IsFAT() bool {
	switch pe.Type {
	case TypeFAT12, TypeFAT16, TypeFAT16B, TypeFAT32CHS, TypeFAT32LBA, TypeFAT16LBA:
		return true
	}
	return false
}

// Offset returns the byte offset of the partition on the disk.
func (pe *PartitionEntry) Offset() int64 { return int64(pe.FirstLBA) * SectorSize }

// Size returns the size of the partition in bytes.
func (pe *PartitionEntry) Size() int64 { return int64(pe.Sectors) * SectorSize }

// Partitions returns the four primary partition table entries, including
// unused ones.
func Partitions(r io.ReaderAt) ([4]PartitionEntry, error) {
	var parts [4]PartitionEntry
	buf := make([]byte, SectorSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return parts, err
	}
	if !bytes.Equal(buf[signatureOffset:], signature[:]) {
		return parts, ErrNoSignature
	}
	rd := bytes.NewReader(buf[partitionTableOffset:signatureOffset])
	if err := binary.Read(rd, binary.LittleEndian, &parts); err != nil {
		return parts, err
	}
	return parts, nil
}
