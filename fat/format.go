package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// hardDisk is the media descriptor for a hard disk (as opposed to floppy).
	hardDisk = uint8(0xF8)

	// fat32RootCluster is where Format places the FAT32 root directory.
	fat32RootCluster = 2
)

var (
	oemName             = [8]byte{'g', 'o', 'k', 'r', 'a', 'z', 'y', '!'}
	bootSectorSignature = [2]byte{0x55, 0xAA}
)

// Layout describes the volume created by Format. Zero fields are replaced
// by defaults: 512 bytes per sector, 2 FATs, 1 reserved sector (32 on
// FAT32), 512 root directory entries (none on FAT32) and the smallest
// power of two sectors per cluster for which the volume classifies as
// Type.
type Layout struct {
	Type              Type
	TotalSectors      uint32
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16
	Label             string
	VolumeID          uint32
}

func (l *Layout) setDefaults() {
	if l.BytesPerSector == 0 {
		l.BytesPerSector = 512
	}
	if l.NumFATs == 0 {
		l.NumFATs = 2
	}
	if l.ReservedSectors == 0 {
		l.ReservedSectors = 1
		if l.Type == FAT32 {
			l.ReservedSectors = 32
		}
	}
	if l.RootEntries == 0 && l.Type != FAT32 {
		l.RootEntries = 512
	}
	if l.Label == "" {
		l.Label = "NO NAME"
	}
	if l.SectorsPerCluster == 0 {
		l.SectorsPerCluster = l.autoSectorsPerCluster()
	}
}

func (l *Layout) autoSectorsPerCluster() uint8 {
	try := *l
	for spc := 1; spc <= 128; spc *= 2 {
		try.SectorsPerCluster = uint8(spc)
		if Classify(try.geometry()).Type == l.Type {
			return uint8(spc)
		}
	}
	return 1
}

// sectorsPerFAT returns the smallest FAT size covering all clusters which
// remain after subtracting the FATs themselves.
func (l *Layout) sectorsPerFAT() uint32 {
	bps := uint64(l.BytesPerSector)
	rootDirSectors := (uint64(l.RootEntries)*dirEntrySize + bps - 1) / bps
	spf := uint64(1)
	for {
		meta := uint64(l.ReservedSectors) + uint64(l.NumFATs)*spf + rootDirSectors
		if meta >= uint64(l.TotalSectors) {
			return uint32(spf)
		}
		clusters := (uint64(l.TotalSectors) - meta) / uint64(l.SectorsPerCluster)
		fatBytes := ((clusters+2)*uint64(l.Type.EntryBits()) + 7) / 8
		need := (fatBytes + bps - 1) / bps
		if need <= spf {
			return uint32(spf)
		}
		spf = need
	}
}

func (l *Layout) geometry() *Geometry {
	g := &Geometry{
		BPB: BPB{
			JumpBoot:          [3]byte{0xEB, 0x3C, 0x90}, // jump code: intel 80x86 jump instruction
			OEMName:           oemName,
			BytesPerSector:    l.BytesPerSector,
			SectorsPerCluster: l.SectorsPerCluster,
			ReservedSectors:   l.ReservedSectors,
			NumFATs:           l.NumFATs,
			RootEntries:       l.RootEntries,
			Media:             hardDisk,
			SectorsPerTrack:   32, // (only for bootcode)
			Heads:             64, // (only for bootcode)
		},
	}
	var label [11]byte
	copy(label[:], fmt.Sprintf("%-11.11s", l.Label))
	fsType := [8]byte{}
	copy(fsType[:], fmt.Sprintf("%-8s", l.Type))

	spf := l.sectorsPerFAT()
	if l.Type == FAT32 {
		g.JumpBoot = [3]byte{0xEB, 0x58, 0x90}
		g.TotalSectors32 = l.TotalSectors
		g.Ext32 = &ExtBPB32{
			SectorsPerFAT32:  spf,
			RootCluster:      fat32RootCluster,
			FSInfoSector:     1,
			BackupBootSector: 6,
			DriveNumber:      0x80,
			BootSignature:    0x29, // magic value: boot signature
			VolumeID:         l.VolumeID,
			VolumeLabel:      label,
			FSType:           fsType,
		}
		return g
	}
	if l.TotalSectors <= 0xFFFF {
		g.TotalSectors16 = uint16(l.TotalSectors)
	} else {
		g.TotalSectors32 = l.TotalSectors
	}
	g.SectorsPerFAT16 = uint16(spf)
	g.Ext16 = &ExtBPB16{
		DriveNumber:   0x80,
		BootSignature: 0x29,
		VolumeID:      l.VolumeID,
		VolumeLabel:   label,
		FSType:        fsType,
	}
	return g
}

// Format writes an empty FAT file system described by l to img, starting
// at the current seek position of img. Only the boot sector(s), the FATs,
// the FSInfo sector and the root directory are written; the data region is
// expected to be zeroed already (e.g. a freshly truncated file).
func Format(img Image, l Layout) (*Volume, error) {
	if l.Type != FAT12 && l.Type != FAT16 && l.Type != FAT32 {
		return nil, fmt.Errorf("cannot format %v volumes", l.Type)
	}
	l.setDefaults()
	g := l.geometry()
	if err := g.validate(); err != nil {
		return nil, err
	}
	if got := Classify(g); got.Type != l.Type {
		return nil, fmt.Errorf("%d sectors of %d bytes yield %d clusters, which is a %v volume, not %v",
			l.TotalSectors, g.ClusterBytes(), got.Clusters, got.Type, l.Type)
	}

	base, err := img.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	v := newVolume(img, base, g)
	bps := int64(g.BytesPerSector)

	// Extend the image to its full size.
	if err := v.writeAt(make([]byte, bps), int64(g.TotalSectors()-1)*bps); err != nil {
		return nil, err
	}

	var sector bytes.Buffer
	gb, err := g.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sector.Write(gb)
	sector.Write(make([]byte, 510-len(gb)))
	sector.Write(bootSectorSignature[:])
	if pad := int(bps) - sector.Len(); pad > 0 {
		sector.Write(make([]byte, pad))
	}
	if err := v.writeAt(sector.Bytes(), 0); err != nil {
		return nil, err
	}

	fb := &fatBuffer{typ: l.Type, buf: make([]byte, v.fatBytes)}
	mask := l.Type.entryMask()
	fb.set(0, (0xFFFFFF00|uint32(hardDisk))&mask) // media descriptor
	fb.set(1, 0xFFFFFFFF&mask)                    // file system state: clean
	if l.Type == FAT32 {
		fb.set(fat32RootCluster, l.Type.EndOfChain())
	}
	for i := int64(0); i < int64(g.NumFATs); i++ {
		if err := v.writeAt(fb.buf, v.fatStart+i*v.fatBytes); err != nil {
			return nil, err
		}
	}

	if l.Type != FAT32 {
		if err := v.writeAt(make([]byte, v.dataStart-v.rootDirStart), v.rootDirStart); err != nil {
			return nil, err
		}
		return v, nil
	}

	if err := v.writeAt(make([]byte, v.clusterBytes), v.rootDirStart); err != nil {
		return nil, err
	}
	fi := FSInfo{
		LeadSig:   fsInfoLeadSig,
		StructSig: fsInfoStructSig,
		FreeCount: v.Clusters() - 1, // all but the root directory
		NextFree:  fat32RootCluster,
		TrailSig:  fsInfoTrailSig,
	}
	var fsInfo bytes.Buffer
	if err := binary.Write(&fsInfo, binary.LittleEndian, &fi); err != nil {
		return nil, err
	}
	if pad := int(bps) - fsInfo.Len(); pad > 0 {
		fsInfo.Write(make([]byte, pad))
	}
	backup := int64(g.Ext32.BackupBootSector)
	for _, w := range []struct {
		b      []byte
		sector int64
	}{
		{sector.Bytes(), backup},
		{fsInfo.Bytes(), int64(g.Ext32.FSInfoSector)},
		{fsInfo.Bytes(), backup + 1},
	} {
		if err := v.writeAt(w.b, w.sector*bps); err != nil {
			return nil, err
		}
	}
	return v, nil
}
