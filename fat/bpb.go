package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BPB is the BIOS Parameter Block shared by all FAT variants. It occupies
// the first 36 bytes of the boot sector.
type BPB struct {
	JumpBoot          [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16 // 0 on FAT32
	TotalSectors16    uint16 // 0 means TotalSectors32 is used
	Media             uint8
	SectorsPerFAT16   uint16 // 0 on FAT32
	SectorsPerTrack   uint16
	Heads             uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// ExtBPB32 follows the BPB on FAT32 volumes (54 bytes).
type ExtBPB32 struct {
	SectorsPerFAT32  uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	DriveNumber      uint8
	Reserved1        uint8
	BootSignature    uint8
	VolumeID         uint32
	VolumeLabel      [11]byte
	FSType           [8]byte
}

// ExtBPB16 follows the BPB on FAT12 and FAT16 volumes (26 bytes).
type ExtBPB16 struct {
	DriveNumber   uint8
	Reserved1     uint8
	BootSignature uint8
	VolumeID      uint32
	VolumeLabel   [11]byte
	FSType        [8]byte
}

var (
	bpbSize      = binary.Size(BPB{})
	extBPB32Size = binary.Size(ExtBPB32{})
	extBPB16Size = binary.Size(ExtBPB16{})
)

// Geometry is the decoded boot sector. Exactly one of Ext32 and Ext16 is
// set, depending on whether the common BPB declares zero sectors per FAT.
type Geometry struct {
	BPB
	Ext32 *ExtBPB32
	Ext16 *ExtBPB16
}

// DecodeBootSector decodes the BPB and its FAT32 or FAT12/16 extension from
// the start of b. It returns a *FormatError if b is too short or the fields
// are structurally impossible.
func DecodeBootSector(b []byte) (*Geometry, error) {
	if len(b) < bpbSize {
		return nil, &FormatError{
			Field:  "BPB",
			Reason: fmt.Sprintf("need %d bytes, have %d", bpbSize, len(b)),
		}
	}
	var g Geometry
	rd := bytes.NewReader(b)
	if err := binary.Read(rd, binary.LittleEndian, &g.BPB); err != nil {
		return nil, err
	}
	if g.SectorsPerFAT16 == 0 {
		if len(b) < bpbSize+extBPB32Size {
			return nil, &FormatError{
				Field:  "FAT32 extended BPB",
				Reason: fmt.Sprintf("need %d bytes, have %d", bpbSize+extBPB32Size, len(b)),
			}
		}
		g.Ext32 = new(ExtBPB32)
		if err := binary.Read(rd, binary.LittleEndian, g.Ext32); err != nil {
			return nil, err
		}
	} else {
		if len(b) < bpbSize+extBPB16Size {
			return nil, &FormatError{
				Field:  "extended boot block",
				Reason: fmt.Sprintf("need %d bytes, have %d", bpbSize+extBPB16Size, len(b)),
			}
		}
		g.Ext16 = new(ExtBPB16)
		if err := binary.Read(rd, binary.LittleEndian, g.Ext16); err != nil {
			return nil, err
		}
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

func (g *Geometry) validate() error {
	if !isPowerOfTwo(uint32(g.BytesPerSector)) {
		return &FormatError{"bytes per sector", fmt.Sprintf("%d is not a power of two", g.BytesPerSector)}
	}
	if !isPowerOfTwo(uint32(g.SectorsPerCluster)) {
		return &FormatError{"sectors per cluster", fmt.Sprintf("%d is not a power of two", g.SectorsPerCluster)}
	}
	if g.NumFATs == 0 {
		return &FormatError{"number of FATs", "must not be 0"}
	}
	if g.SectorsPerFAT() == 0 {
		return &FormatError{"sectors per FAT", "must not be 0"}
	}
	if g.TotalSectors() == 0 {
		return &FormatError{"total sectors", "must not be 0"}
	}
	if meta := g.metadataSectors(); meta >= uint64(g.TotalSectors()) {
		return &FormatError{"total sectors", fmt.Sprintf("%d sectors leave no room for data after %d metadata sectors", g.TotalSectors(), meta)}
	}
	// The extended BPB fixes where the root directory lives, so it must
	// agree with the type the cluster count yields.
	if c := Classify(g); (g.Ext32 != nil) != (c.Type == FAT32) {
		layout := "FAT12/16"
		if g.Ext32 != nil {
			layout = "FAT32"
		}
		return &FormatError{"FAT type", fmt.Sprintf("%s boot sector layout, but %d clusters make a %v volume", layout, c.Clusters, c.Type)}
	}
	return nil
}

// Size returns the number of boot sector bytes the geometry was decoded
// from.
func (g *Geometry) Size() int {
	if g.Ext32 != nil {
		return bpbSize + extBPB32Size
	}
	return bpbSize + extBPB16Size
}

// TotalSectors returns the 16-bit total sector count, or the 32-bit one if
// the former is zero.
func (g *Geometry) TotalSectors() uint32 {
	if g.TotalSectors16 != 0 {
		return uint32(g.TotalSectors16)
	}
	return g.TotalSectors32
}

// SectorsPerFAT returns the size of a single FAT copy in sectors.
func (g *Geometry) SectorsPerFAT() uint32 {
	if g.SectorsPerFAT16 == 0 && g.Ext32 != nil {
		return g.Ext32.SectorsPerFAT32
	}
	return uint32(g.SectorsPerFAT16)
}

// ClusterBytes returns the size of a cluster in bytes.
func (g *Geometry) ClusterBytes() int64 {
	return int64(g.BytesPerSector) * int64(g.SectorsPerCluster)
}

// RootDirSectors returns the number of sectors occupied by the fixed root
// directory, which is zero on FAT32.
func (g *Geometry) RootDirSectors() uint32 {
	bps := uint32(g.BytesPerSector)
	return (uint32(g.RootEntries)*dirEntrySize + bps - 1) / bps
}

func (g *Geometry) metadataSectors() uint64 {
	return uint64(g.ReservedSectors) +
		uint64(g.NumFATs)*uint64(g.SectorsPerFAT()) +
		uint64(g.RootDirSectors())
}

// RootCluster returns the first cluster of the root directory, or 0 for
// volumes without the FAT32 extension.
func (g *Geometry) RootCluster() uint32 {
	if g.Ext32 == nil {
		return 0
	}
	return g.Ext32.RootCluster
}

// MarshalBinary encodes the geometry in its on-disk layout. Decoding and
// re-encoding a boot sector reproduces its first Size() bytes.
func (g *Geometry) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &g.BPB); err != nil {
		return nil, err
	}
	var ext interface{}
	switch {
	case g.Ext32 != nil:
		ext = g.Ext32
	case g.Ext16 != nil:
		ext = g.Ext16
	default:
		return nil, fmt.Errorf("geometry has no extended BPB")
	}
	if err := binary.Write(&buf, binary.LittleEndian, ext); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func trimSpace(b []byte) string {
	return string(bytes.TrimRight(b, " \x00"))
}

// Label returns the volume label from the extended boot block.
func (g *Geometry) Label() string {
	if g.Ext32 != nil {
		return trimSpace(g.Ext32.VolumeLabel[:])
	}
	if g.Ext16 != nil {
		return trimSpace(g.Ext16.VolumeLabel[:])
	}
	return ""
}
