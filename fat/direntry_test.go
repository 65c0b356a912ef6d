package fat

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestUnmarshalTimeDate(t *testing.T) {
	t.Parallel()

	arbitrary := time.Date(2017, 9, 6, 8, 13, 28, 0, time.UTC)

	for _, entry := range []struct {
		t, d uint16
		want time.Time
	}{
		{
			t:    packTime(arbitrary),
			d:    packDate(arbitrary),
			want: arbitrary,
		},
		{
			d:    0x2B14,
			want: time.Date(2001, 8, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			t:    0x5401,
			d:    0x0021, // minimum date
			want: time.Date(1980, 1, 1, 10, 32, 2, 0, time.UTC),
		},
		{
			t:    0x5401,
			d:    0xFC46, // maximum date
			want: time.Date(2106, 2, 6, 10, 32, 2, 0, time.UTC),
		},
	} {
		entry := entry // copy
		t.Run(entry.want.String(), func(t *testing.T) {
			t.Parallel()
			got := unmarshalTimeDate(entry.t, entry.d)
			if !got.Equal(entry.want) {
				t.Fatalf("unexpected time: got %v, want %v", got, entry.want)
			}
		})
	}
}

func TestNewDirEntry(t *testing.T) {
	t.Parallel()

	name := shortName("URAMDI~1GZ ")
	mod := time.Date(2013, 2, 14, 17, 3, 59, 0, time.UTC)
	got, err := NewDirEntry(FAT32, name, mod, 0x12345, 2989)
	if err != nil {
		t.Fatal(err)
	}
	stamp, date := packTime(mod), packDate(mod)
	want := DirEntry{
		Name:        name,
		Attr:        AttrArchive,
		CreateTime:  stamp,
		CreateDate:  date,
		AccessDate:  date,
		ClusterHigh: 0x0001,
		WriteTime:   stamp,
		WriteDate:   date,
		ClusterLow:  0x2345,
		Size:        2989,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected directory entry: diff (-want +got):\n%s", diff)
	}
	if got, want := got.StartCluster(), uint32(0x12345); got != want {
		t.Errorf("StartCluster() = %#x, want %#x", got, want)
	}
	// Seconds are stored with a granularity of two.
	if got, want := got.ModTime(), mod.Add(-time.Second); !got.Equal(want) {
		t.Errorf("ModTime() = %v, want %v", got, want)
	}

	b, err := got.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != dirEntrySize {
		t.Fatalf("len(MarshalBinary()) = %d, want %d", len(b), dirEntrySize)
	}
	if b[11] != AttrArchive || b[20] != 0x01 || b[26] != 0x45 || b[27] != 0x23 {
		t.Errorf("unexpected on-disk layout: % x", b)
	}
	var decoded DirEntry
	if err := decoded.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, decoded); diff != "" {
		t.Fatalf("unexpected decoded entry: diff (-want +got):\n%s", diff)
	}
}

func TestNewDirEntryClamp(t *testing.T) {
	t.Parallel()

	name := shortName("BOOT    BIN")
	for _, tt := range []struct {
		in, want time.Time
	}{
		{time.Unix(0, 0).UTC(), minTime},
		{time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC), maxTime},
		// The wall clock of the location is stored, without conversion.
		{
			time.Date(2020, 6, 1, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60)),
			time.Date(2020, 6, 1, 23, 30, 0, 0, time.UTC),
		},
	} {
		de, err := NewDirEntry(FAT16, name, tt.in, 2, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got := de.ModTime(); !got.Equal(tt.want) {
			t.Errorf("NewDirEntry(%v).ModTime() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewDirEntryClusterRange(t *testing.T) {
	t.Parallel()

	name := shortName("BOOT    BIN")
	for _, tt := range []struct {
		typ     Type
		cluster uint32
		ok      bool
	}{
		{FAT12, 0, true},
		{FAT12, 1, false},
		{FAT12, 2, true},
		{FAT12, 4084, true},
		{FAT12, 4085, false},
		{FAT16, 65524, true},
		{FAT16, 70000, false},
		{FAT32, 70000, true},
		{FAT32, 0x0FFFFFF0, true},
	} {
		_, err := NewDirEntry(tt.typ, name, time.Now(), tt.cluster, 0)
		var cre *ClusterRangeError
		if got := !errors.As(err, &cre); got != tt.ok {
			t.Errorf("NewDirEntry(%v, cluster %d) = %v, want ok=%v", tt.typ, tt.cluster, err, tt.ok)
		}
	}
}
