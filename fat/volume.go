package fat

import (
	"fmt"
	"io"
)

// bootSectorSize is the number of bytes read to decode the geometry. It
// covers the largest (FAT32) BPB on any sector size.
const bootSectorSize = 512

// Image is the byte store holding a FAT volume, typically an *os.File.
//
// Generated mock using mockgen:
//
//	mockgen -source=volume.go -destination=mock_image_test.go -package fat
type Image interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
}

// Volume is a FAT volume inside an Image. All offsets taken and returned by
// Volume methods are relative to the boot sector.
type Volume struct {
	img  Image
	base int64

	geom  *Geometry
	class Classification

	fatStart     int64 // primary FAT
	fatBytes     int64 // size of one FAT copy
	rootDirStart int64
	dataStart    int64
	clusterBytes int64
}

// Open decodes the boot sector found at the current seek position of img
// and advances the seek position past the decoded bytes. Volumes embedded in
// a larger disk image are supported by seeking to the start of the partition
// before calling Open.
func Open(img Image) (*Volume, error) {
	base, err := img.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, bootSectorSize)
	n, err := img.ReadAt(buf, base)
	if err != nil && !(err == io.EOF && n > 0) {
		return nil, fmt.Errorf("reading boot sector: %w", err)
	}
	g, err := DecodeBootSector(buf[:n])
	if err != nil {
		return nil, err
	}
	if _, err := img.Seek(base+int64(g.Size()), io.SeekStart); err != nil {
		return nil, err
	}
	return newVolume(img, base, g), nil
}

func newVolume(img Image, base int64, g *Geometry) *Volume {
	bps := int64(g.BytesPerSector)
	v := &Volume{
		img:          img,
		base:         base,
		geom:         g,
		class:        Classify(g),
		fatStart:     int64(g.ReservedSectors) * bps,
		fatBytes:     int64(g.SectorsPerFAT()) * bps,
		clusterBytes: g.ClusterBytes(),
	}
	v.rootDirStart = v.fatStart + int64(g.NumFATs)*v.fatBytes
	v.dataStart = v.rootDirStart + int64(g.RootDirSectors())*bps
	if v.class.Type == FAT32 {
		// The root directory is an ordinary cluster chain.
		v.rootDirStart = v.ClusterOffset(g.RootCluster())
	}
	return v
}

// rootDirEnd returns the end of the fixed FAT12/16 root directory, or of the
// first root directory cluster on FAT32.
func (v *Volume) rootDirEnd() int64 {
	if v.class.Type == FAT32 {
		return v.rootDirStart + v.clusterBytes
	}
	return v.dataStart
}

// Geometry returns the decoded boot sector.
func (v *Volume) Geometry() *Geometry { return v.geom }

// Type returns the detected FAT type.
func (v *Volume) Type() Type { return v.class.Type }

// Clusters returns the number of data clusters on the volume.
func (v *Volume) Clusters() uint32 { return v.class.Clusters }

// LastCluster returns the number of the last data cluster.
func (v *Volume) LastCluster() uint32 { return v.class.Clusters + 1 }

// ClusterBytes returns the size of a cluster in bytes.
func (v *Volume) ClusterBytes() int64 { return v.clusterBytes }

// FATOffset returns the offset of the primary FAT.
func (v *Volume) FATOffset() int64 { return v.fatStart }

// FATBytes returns the size of a single FAT copy in bytes.
func (v *Volume) FATBytes() int64 { return v.fatBytes }

// RootDirOffset returns the offset of the first root directory entry.
func (v *Volume) RootDirOffset() int64 { return v.rootDirStart }

// DataOffset returns the offset of cluster 2, the start of the data region.
func (v *Volume) DataOffset() int64 { return v.dataStart }

// ClusterOffset returns the offset of the first byte of cluster c. Clusters
// 0 and 1 do not exist; c must be at least 2.
func (v *Volume) ClusterOffset(c uint32) int64 {
	return v.dataStart + int64(c-2)*v.clusterBytes
}

// ClusterAt returns the cluster containing offset off, or 0 if off lies
// before the data region.
func (v *Volume) ClusterAt(off int64) uint32 {
	if off < v.dataStart {
		return 0
	}
	return uint32((off-v.dataStart)/v.clusterBytes) + 2
}

// ClustersFor returns the number of clusters needed to store size bytes.
func (v *Volume) ClustersFor(size int64) uint32 {
	return uint32((size + v.clusterBytes - 1) / v.clusterBytes)
}

// ReadRun returns a reader for size bytes stored in the contiguous clusters
// starting at cluster start.
func (v *Volume) ReadRun(start uint32, size int64) io.Reader {
	return io.NewSectionReader(v.img, v.base+v.ClusterOffset(start), size)
}

func (v *Volume) readAt(p []byte, off int64) error {
	if _, err := v.img.ReadAt(p, v.base+off); err != nil {
		return fmt.Errorf("reading %d bytes at offset %d: %w", len(p), off, err)
	}
	return nil
}

func (v *Volume) writeAt(p []byte, off int64) error {
	if _, err := v.img.WriteAt(p, v.base+off); err != nil {
		return fmt.Errorf("writing %d bytes at offset %d: %w", len(p), off, err)
	}
	return nil
}

// Sync flushes the image to stable storage if it supports that (e.g.
// *os.File).
func (v *Volume) Sync() error {
	if s, ok := v.img.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
