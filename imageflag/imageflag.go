// Package imageflag registers the flags selecting the FAT volume to operate
// on: the image file and where inside of it the volume starts.
package imageflag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gokrazy/fatappend/gpt"
	"github.com/gokrazy/fatappend/mbr"
	"github.com/spf13/pflag"
)

var (
	image = os.Getenv("FATAPPEND_IMAGE")

	offset = func() int64 {
		off, err := strconv.ParseInt(os.Getenv("FATAPPEND_OFFSET"), 0, 64)
		if err != nil {
			return 0
		}
		return off
	}()

	partition int
)

func RegisterPflags(fs *pflag.FlagSet) {
	fs.StringVar(&image,
		"image",
		image,
		`path to the disk or partition image containing the FAT volume (default $FATAPPEND_IMAGE)`)

	fs.Int64Var(&offset,
		"offset",
		offset,
		`byte offset of the FAT boot sector within the image`)

	fs.IntVarP(&partition,
		"partition",
		"p",
		partition,
		`1-based partition number holding the FAT volume (GPT, falling back to MBR); 0 means the image is the volume`)
}

func SetImage(path string) {
	image = path
}

func SetOffset(off int64) {
	offset = off
}

func SetPartition(n int) {
	partition = n
}

func Image() string {
	return image
}

func Offset() int64 {
	return offset
}

func Partition() int {
	return partition
}

// Locate returns the byte offset of the FAT boot sector within r, as
// selected by the --offset and --partition flags.
func Locate(r io.ReaderAt) (int64, error) {
	if partition == 0 {
		return offset, nil
	}
	if offset != 0 {
		return 0, fmt.Errorf("--offset and --partition are mutually exclusive")
	}
	return PartitionOffset(r, partition)
}

// PartitionInfo describes one entry of a partition table.
type PartitionInfo struct {
	Number int
	Table  string // "gpt" or "mbr"
	Type   string
	Name   string
	Offset int64
	Size   int64
	FAT    bool
}

// Partitions lists the used partitions of r. A GUID partition table takes
// precedence over the (protective) MBR. GPT partitions are numbered in table
// order, skipping unused entries.
func Partitions(r io.ReaderAt) ([]PartitionInfo, error) {
	entries, err := gpt.PartitionEntries(r)
	if err == nil {
		parts := make([]PartitionInfo, 0, len(entries))
		for i, pe := range entries {
			parts = append(parts, PartitionInfo{
				Number: i + 1,
				Table:  "gpt",
				Type:   pe.Type(),
				Name:   pe.PartitionName(),
				Offset: pe.Offset(),
				Size:   pe.Size(),
				FAT:    pe.IsFAT(),
			})
		}
		return parts, nil
	}
	if !errors.Is(err, gpt.ErrNoGPT) && !errors.Is(err, io.EOF) {
		return nil, err
	}

	table, err := mbr.Partitions(r)
	if err != nil {
		return nil, err
	}
	var parts []PartitionInfo
	for i, pe := range table {
		if !pe.Used() {
			continue
		}
		parts = append(parts, PartitionInfo{
			Number: i + 1,
			Table:  "mbr",
			Type:   fmt.Sprintf("0x%02x", pe.Type),
			Offset: pe.Offset(),
			Size:   pe.Size(),
			FAT:    pe.IsFAT(),
		})
	}
	return parts, nil
}

// PartitionOffset returns the byte offset of partition n (1-based) of r.
func PartitionOffset(r io.ReaderAt, n int) (int64, error) {
	parts, err := Partitions(r)
	if err != nil {
		return 0, err
	}
	for _, p := range parts {
		if p.Number == n {
			return p.Offset, nil
		}
	}
	return 0, fmt.Errorf("partition %d not found (%d partitions)", n, len(parts))
}
