package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/docker/go-units"
	"github.com/gokrazy/fatappend/fat"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func mkfsCmd() *cobra.Command {
	var (
		sizeString string
		fatType    int
		label      string
	)
	cmd := &cobra.Command{
		Use:   "mkfs IMAGE",
		Short: "Create an empty FAT volume image",
		Long: `Create an empty FAT volume image.

FAT32 volumes are created with go-diskfs, FAT12 and FAT16 volumes with the
cluster size chosen to fit the requested type.
`,
		Example: `  fatappend mkfs --size 64M sdcard.img
  fatappend mkfs --size 8M --type 16 boot.img`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := units.RAMInBytes(sizeString)
			if err != nil {
				return fmt.Errorf("invalid --size: %w", err)
			}
			if size <= 0 || size%512 != 0 {
				return fmt.Errorf("--size must be a positive multiple of 512 bytes, got %d", size)
			}
			if err := mkfs(args[0], size, fatType, label); err != nil {
				return err
			}
			log.Infof("created %s FAT%d volume %s", units.BytesSize(float64(size)), fatType, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&sizeString, "size", "s", "64M", "Size of the image, e.g. 64M or 1G")
	cmd.Flags().IntVarP(&fatType, "type", "t", 32, "FAT type: 12, 16 or 32")
	cmd.Flags().StringVarP(&label, "label", "l", "NO NAME", "Volume label")
	return cmd
}

func mkfs(path string, size int64, fatType int, label string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	var typ fat.Type
	switch fatType {
	case 12:
		typ = fat.FAT12
	case 16:
		typ = fat.FAT16
	case 32:
		typ = fat.FAT32
	default:
		return fmt.Errorf("unsupported FAT type %d", fatType)
	}
	if typ == fat.FAT32 && size/512 < minFAT32Clusters {
		return fmt.Errorf("%s is too small for FAT32", units.BytesSize(float64(size)))
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if err := format(f, size, typ, label); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// minFAT32Clusters is the smallest cluster count a FAT32 volume may have.
const minFAT32Clusters = 65525

func format(f *os.File, size int64, typ fat.Type, label string) error {
	if err := f.Truncate(size); err != nil {
		return err
	}

	if typ == fat.FAT32 {
		if _, err := fat32.Create(f, size, 0, 512, label); err != nil {
			return fmt.Errorf("creating FAT32 file system: %w", err)
		}
		// go-diskfs picks the cluster size itself and may end up below the
		// FAT32 minimum, which Open rejects.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := fat.Open(f); err != nil {
			return fmt.Errorf("%s is too small for FAT32: %w", units.BytesSize(float64(size)), err)
		}
	} else {
		if size/512 > 0xFFFFFFFF {
			return errors.New("image too large")
		}
		if _, err := fat.Format(f, fat.Layout{
			Type:         typ,
			TotalSectors: uint32(size / 512),
			Label:        label,
		}); err != nil {
			return err
		}
	}
	return nil
}
