package mbr

import (
	"errors"
	"testing"

	diskmbr "github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestPartitions(t *testing.T) {
	f, err := afero.NewMemMapFs().Create("disk.img")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(16 * 1024 * 1024); err != nil {
		t.Fatal(err)
	}
	table := &diskmbr.Table{
		LogicalSectorSize:  SectorSize,
		PhysicalSectorSize: SectorSize,
		Partitions: []*diskmbr.Partition{
			{Bootable: true, Type: diskmbr.Fat32LBA, Start: 2048, Size: 8192},
			{Type: diskmbr.Linux, Start: 10240, Size: 20480},
		},
	}
	if err := table.Write(f, 16*1024*1024); err != nil {
		t.Fatal(err)
	}

	parts, err := Partitions(f)
	if err != nil {
		t.Fatal(err)
	}
	type summary struct {
		Used, Bootable, FAT bool
		Type                uint8
		Offset, Size        int64
	}
	var got []summary
	for _, pe := range parts {
		got = append(got, summary{
			Used:     pe.Used(),
			Bootable: pe.Bootable(),
			FAT:      pe.IsFAT(),
			Type:     pe.Type,
			Offset:   pe.Offset(),
			Size:     pe.Size(),
		})
	}
	want := []summary{
		{true, true, true, TypeFAT32LBA, 2048 * SectorSize, 8192 * SectorSize},
		{true, false, false, TypeLinux, 10240 * SectorSize, 20480 * SectorSize},
		{},
		{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected partitions: diff (-want +got):\n%s", diff)
	}
}

func TestPartitionsNoSignature(t *testing.T) {
	f, err := afero.NewMemMapFs().Create("disk.img")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(SectorSize); err != nil {
		t.Fatal(err)
	}
	if _, err := Partitions(f); !errors.Is(err, ErrNoSignature) {
		t.Fatalf("Partitions(blank disk) = %v, want %v", err, ErrNoSignature)
	}
}
