package fat

import "math"

// Type is the FAT variant of a volume, which determines the width of FAT
// entries and the end-of-chain marker.
type Type uint8

const (
	FAT12 Type = iota + 1
	FAT16
	FAT32
	// ExFAT is recognized by name only; appending to exFAT volumes is not
	// supported.
	ExFAT
)

// Cluster count thresholds from the Microsoft FAT specification. The
// cluster count alone determines the FAT type.
const (
	fat12MaxClusters = 4085
	fat16MaxClusters = 65525
)

func (t Type) String() string {
	switch t {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	case ExFAT:
		return "exFAT"
	}
	return "unknown"
}

// EntryBits returns the width of a single FAT entry in bits.
func (t Type) EntryBits() int {
	switch t {
	case FAT12:
		return 12
	case FAT16:
		return 16
	case FAT32:
		return 32
	}
	return 0
}

// EndOfChain returns the marker stored in the FAT entry of the last
// cluster of a chain.
func (t Type) EndOfChain() uint32 {
	switch t {
	case FAT12:
		return 0x0FF8
	case FAT16:
		return 0xFFF8
	case FAT32:
		return 0x0FFFFFF8
	}
	return 0
}

// MaxCluster returns the highest cluster number a file may start at. FAT32
// places no limit beyond the size of the volume.
func (t Type) MaxCluster() uint32 {
	switch t {
	case FAT12:
		return fat12MaxClusters - 1
	case FAT16:
		return fat16MaxClusters - 1
	}
	return math.MaxUint32
}

// entryMask covers the bits of a FAT entry which hold a cluster number.
func (t Type) entryMask() uint32 {
	switch t {
	case FAT12:
		return 0x0FFF
	case FAT16:
		return 0xFFFF
	}
	return 0x0FFFFFFF
}

// Classification is the result of Classify.
type Classification struct {
	Type       Type
	EndOfChain uint32
	Clusters   uint32 // number of data clusters
}

// Classify counts the data clusters described by g and derives the FAT
// type from that count.
func Classify(g *Geometry) Classification {
	var dataSectors uint64
	if total, meta := uint64(g.TotalSectors()), g.metadataSectors(); total > meta {
		dataSectors = total - meta
	}
	var clusters uint64
	if g.SectorsPerCluster != 0 {
		clusters = dataSectors / uint64(g.SectorsPerCluster)
	}

	var t Type
	switch {
	case clusters < fat12MaxClusters:
		t = FAT12
	case clusters < fat16MaxClusters:
		t = FAT16
	default:
		t = FAT32
	}
	return Classification{
		Type:       t,
		EndOfChain: t.EndOfChain(),
		Clusters:   uint32(clusters),
	}
}
