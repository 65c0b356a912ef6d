package manifest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

const sdcard = `
start_cluster: 3
files:
  - source: sdcard/boot.bin
  - source: sdcard/uramdisk.image.gz
    short_name: URAMDI~1.GZ
  - source: sdcard/devicetree.dtb
  - source: sdcard/uImage
    short_name: uImage
    mod_time: 2013-02-14T17:03:58Z
  - source: /srv/kernel/vmlinuz.zst
    start_cluster: 4096
`

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/work/fat.yaml", []byte(sdcard), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(fs, "/work/fat.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Normalize(); err != nil {
		t.Fatal(err)
	}
	want := &Manifest{
		StartCluster: 3,
		Files: []Entry{
			{
				Source:    "/work/sdcard/boot.bin",
				Name:      "boot.bin",
				ShortName: "BOOT.BIN",
			},
			{
				Source:    "/work/sdcard/uramdisk.image.gz",
				Name:      "uramdisk.image.gz",
				ShortName: "URAMDI~1.GZ",
			},
			{
				Source:    "/work/sdcard/devicetree.dtb",
				Name:      "devicetree.dtb",
				ShortName: "DEVICE~1.DTB",
			},
			{
				Source:    "/work/sdcard/uImage",
				Name:      "uImage",
				ShortName: "uImage",
				ModTime:   time.Date(2013, 2, 14, 17, 3, 58, 0, time.UTC),
			},
			{
				Source:       "/srv/kernel/vmlinuz.zst",
				Name:         "vmlinuz",
				ShortName:    "VMLINUZ",
				StartCluster: 4096,
			},
		},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("unexpected manifest: diff (-want +got):\n%s", diff)
	}
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse([]byte("files:\n  - source: a\n    shortname: A\n"))
	if err == nil {
		t.Fatal("Parse unexpectedly accepted an unknown key")
	}
}

func TestNormalizeShortNameCollisions(t *testing.T) {
	m := FromArgs([]string{
		"out/devicetree.dtb",
		"out/devicetree-old.dtb",
		"out/devicetree-new.dtb",
	})
	if err := m.Normalize(); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range m.Files {
		got = append(got, e.ShortName)
	}
	want := []string{"DEVICE~1.DTB", "DEVICE~2.DTB", "DEVICE~3.DTB"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected short names: diff (-want +got):\n%s", diff)
	}
}

func TestNormalizeErrors(t *testing.T) {
	for _, tt := range []struct {
		desc string
		m    *Manifest
		want string
	}{
		{
			desc: "empty",
			m:    &Manifest{},
			want: "no files",
		},
		{
			desc: "missing source",
			m:    &Manifest{Files: []Entry{{Name: "boot.bin"}}},
			want: "source not set",
		},
		{
			desc: "duplicate name",
			m:    FromArgs([]string{"a/boot.bin", "b/BOOT.BIN"}),
			want: "already used",
		},
		{
			desc: "duplicate short name",
			m: &Manifest{Files: []Entry{
				{Source: "a", ShortName: "A.BIN"},
				{Source: "b", ShortName: "a.bin"},
			}},
			want: "already used",
		},
		{
			desc: "invalid short name",
			m:    &Manifest{Files: []Entry{{Source: "a", ShortName: "TOOLONGNAME"}}},
			want: "invalid short name",
		},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			err := tt.m.Normalize()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Normalize() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
