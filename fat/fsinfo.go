package fat

import (
	"bytes"
	"encoding/binary"
)

const (
	fsInfoLeadSig   = 0x41615252
	fsInfoStructSig = 0x61417272
	fsInfoTrailSig  = 0xAA550000

	// fsInfoUnknown marks a free count or hint which is not known.
	fsInfoUnknown = 0xFFFFFFFF

	fsInfoFreeCountOffset = 488
)

// FSInfo is the FAT32 file system information sector.
type FSInfo struct {
	LeadSig   uint32
	Reserved1 [480]byte
	StructSig uint32
	FreeCount uint32 // free clusters, or 0xFFFFFFFF if unknown
	NextFree  uint32 // allocation hint, or 0xFFFFFFFF if unknown
	Reserved2 [12]byte
	TrailSig  uint32
}

// Valid reports whether all three signatures are present.
func (fi *FSInfo) Valid() bool {
	return fi.LeadSig == fsInfoLeadSig &&
		fi.StructSig == fsInfoStructSig &&
		fi.TrailSig == fsInfoTrailSig
}

func (v *Volume) fsInfoOffset() int64 {
	return int64(v.geom.Ext32.FSInfoSector) * int64(v.geom.BytesPerSector)
}

// ReadFSInfo reads the FSInfo sector of a FAT32 volume. It returns nil for
// other FAT types.
func (v *Volume) ReadFSInfo() (*FSInfo, error) {
	if v.class.Type != FAT32 || v.geom.Ext32 == nil {
		return nil, nil
	}
	buf := make([]byte, binary.Size(FSInfo{}))
	if err := v.readAt(buf, v.fsInfoOffset()); err != nil {
		return nil, err
	}
	var fi FSInfo
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &fi); err != nil {
		return nil, err
	}
	return &fi, nil
}

// UpdateFSInfo records the allocation of n clusters ending at cluster last:
// the free cluster count is decreased by n and the allocation hint is set
// to last. Volumes other than FAT32 and FSInfo sectors with a
// missing signature are left alone; updated reports whether the sector was
// written. An unknown free count stays unknown.
func (v *Volume) UpdateFSInfo(n, last uint32) (updated bool, _ error) {
	fi, err := v.ReadFSInfo()
	if err != nil {
		return false, err
	}
	if fi == nil || !fi.Valid() {
		return false, nil
	}
	free := fi.FreeCount
	if free != fsInfoUnknown {
		if free > n {
			free -= n
		} else {
			free = 0
		}
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], free)
	binary.LittleEndian.PutUint32(b[4:8], last)
	if err := v.writeAt(b, v.fsInfoOffset()+fsInfoFreeCountOffset); err != nil {
		return false, err
	}
	return true, nil
}
