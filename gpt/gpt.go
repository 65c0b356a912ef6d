// Package gpt provides a minimal reader for partition tables in GPT (GUID
// partition tables) format, just enough to locate a FAT file system inside
// a disk image.
package gpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// SectorSize is the logical block size assumed for disk images.
const SectorSize = 512

// Partition type GUIDs of partitions which typically hold a FAT file system.
const (
	EFISystemPartition = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	MicrosoftBasicData = "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"
)

var signature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// ErrNoGPT is returned when LBA 1 does not contain a GPT header.
var ErrNoGPT = errors.New("no GPT header found")

// Header is the GPT header stored in LBA 1.
type Header struct {
	Signature                [8]byte
	Revision                 uint32
	HeaderSize               uint32
	HeaderCRC32              uint32
	Reserved                 uint32
	CurrentLBA               uint64
	BackupLBA                uint64
	FirstUsableLBA           uint64
	LastUsableLBA            uint64
	DiskGUID                 [16]byte
	PartitionEntryLBA        uint64
	NumPartitionEntries      uint32
	PartitionEntrySize       uint32
	PartitionEntryArrayCRC32 uint32
}

type PartitionEntry struct {
	TypeGUID   [16]byte
	GUID       [16]byte
	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
	Name       [72]byte
}

// Used reports whether the entry describes a partition.
func (pe *PartitionEntry) Used() bool {
	return pe.TypeGUID != [16]byte{}
}

// Type returns the canonical string representation of the partition type.
func (pe *PartitionEntry) Type() string {
	return GUIDFromBytes(pe.TypeGUID[:])
}

// IsFAT reports whether the partition type suggests a FAT file system.
func (pe *PartitionEntry) IsFAT() bool {
	switch pe.Type() {
	case EFISystemPartition, MicrosoftBasicData:
		return true
	}
	return false
}

// Offset returns the byte offset of the partition on the disk.
func (pe *PartitionEntry) Offset() int64 {
	return int64(pe.FirstLBA) * SectorSize
}

// Size returns the size of the partition in bytes.
func (pe *PartitionEntry) Size() int64 {
	return int64(pe.LastLBA-pe.FirstLBA+1) * SectorSize
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// PartitionName returns the UTF-16 encoded partition name.
func (pe *PartitionEntry) PartitionName() string {
	name := pe.Name[:]
	for i := 0; i+1 < len(name); i += 2 {
		if name[i] == 0 && name[i+1] == 0 {
			name = name[:i]
			break
		}
	}
	b, err := utf16le.NewDecoder().Bytes(name)
	if err != nil {
		return ""
	}
	return string(b)
}

// ReadHeader reads and verifies the primary GPT header.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	buf := make([]byte, SectorSize)
	if _, err := r.ReadAt(buf, SectorSize); err != nil {
		return nil, err
	}
	var h Header
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Signature != signature {
		return nil, ErrNoGPT
	}
	if h.HeaderSize < uint32(binary.Size(h)) || h.HeaderSize > SectorSize {
		return nil, fmt.Errorf("invalid GPT header size %d", h.HeaderSize)
	}
	hdr := append([]byte(nil), buf[:h.HeaderSize]...)
	binary.LittleEndian.PutUint32(hdr[16:20], 0)
	if got := crc32.ChecksumIEEE(hdr); got != h.HeaderCRC32 {
		return nil, fmt.Errorf("GPT header checksum mismatch: got %#x, want %#x", got, h.HeaderCRC32)
	}
	if h.PartitionEntrySize < uint32(binary.Size(PartitionEntry{})) {
		return nil, fmt.Errorf("invalid GPT partition entry size %d", h.PartitionEntrySize)
	}
	return &h, nil
}

func readPartitionEntries(r io.ReaderAt) ([]PartitionEntry, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, int64(h.NumPartitionEntries)*int64(h.PartitionEntrySize))
	if _, err := r.ReadAt(buf, int64(h.PartitionEntryLBA)*SectorSize); err != nil {
		return nil, err
	}
	if got := crc32.ChecksumIEEE(buf); got != h.PartitionEntryArrayCRC32 {
		return nil, fmt.Errorf("GPT partition array checksum mismatch: got %#x, want %#x", got, h.PartitionEntryArrayCRC32)
	}
	parts := make([]PartitionEntry, h.NumPartitionEntries)
	for idx := range parts {
		rd := bytes.NewReader(buf[idx*int(h.PartitionEntrySize):])
		if err := binary.Read(rd, binary.LittleEndian, &parts[idx]); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// PartitionEntries returns all used GPT partition entries on the disk, in
// partition table order.
func PartitionEntries(r io.ReaderAt) ([]PartitionEntry, error) {
	parts, err := readPartitionEntries(r)
	if err != nil {
		return nil, err
	}
	used := parts[:0]
	for _, pe := range parts {
		if pe.Used() {
			used = append(used, pe)
		}
	}
	return used, nil
}

// PartitionUUIDs returns the ids of all GPT partitions on the disk.
func PartitionUUIDs(r io.ReaderAt) []string {
	parts, err := PartitionEntries(r)
	if err != nil {
		return nil
	}
	uuids := make([]string, len(parts))
	for idx, pe := range parts {
		uuids[idx] = GUIDFromBytes(pe.GUID[:])
	}
	return uuids
}

// GUIDFromBytes returns the canonical string representation of the specified
// GUID.
func GUIDFromBytes(b []byte) string {
	// See Intel EFI specification, Appendix A: GUID and Time Formats
	// https://www.intel.de/content/dam/doc/product-specification/efi-v1-10-specification.pdf
	var (
		timeLow                 uint32
		timeMid                 uint16
		timeHighAndVersion      uint16
		clockSeqHighAndReserved uint8
		clockSeqLow             uint8
		node                    [6]byte
	)
	timeLow = binary.LittleEndian.Uint32(b[0:4])
	timeMid = binary.LittleEndian.Uint16(b[4:6])
	timeHighAndVersion = binary.LittleEndian.Uint16(b[6:8])
	clockSeqHighAndReserved = b[8]
	clockSeqLow = b[9]
	copy(node[:], b[10:])
	return fmt.Sprintf("%08X-%04X-%04X-%02X%02X-%012X",
		timeLow,
		timeMid,
		timeHighAndVersion,
		clockSeqHighAndReserved,
		clockSeqLow,
		node)
}
