package main

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/gokrazy/fatappend/imageflag"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	defer func() {
		imageflag.SetImage("")
		imageflag.SetOffset(0)
		imageflag.SetPartition(0)
	}()
	var out bytes.Buffer
	cmd := newCmd()
	cmd.SetArgs(append([]string{"-q"}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("fatappend %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func writeSources(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	contents := map[string][]byte{
		"boot.bin":          bytes.Repeat([]byte{0xB0}, 1500),
		"uramdisk.image.gz": bytes.Repeat([]byte("ramdisk"), 70000),
		"devicetree.dtb":    []byte("/dts-v1/;"),
		"uImage":            bytes.Repeat([]byte{0x27, 0x05, 0x19, 0x56}, 4096),
	}
	for name, b := range contents {
		if name == "uImage" {
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				t.Fatal(err)
			}
			b = enc.EncodeAll(b, nil)
			enc.Close()
			name += ".zst"
		}
		if err := ioutil.WriteFile(filepath.Join(dir, name), b, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return contents
}

func TestWriteFAT32(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "sdcard.img")
	run(t, "mkfs", "--size", "64M", img)
	contents := writeSources(t, dir)

	manifest := `
start_cluster: 3
files:
  - source: boot.bin
  - source: uramdisk.image.gz
  - source: devicetree.dtb
  - source: uImage.zst
    short_name: uImage
`
	if err := ioutil.WriteFile(filepath.Join(dir, "sdcard.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	run(t, "write", "--image", img, "--verify", "--manifest", filepath.Join(dir, "sdcard.yaml"))

	f, err := os.Open(img)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	fs, err := fat32.Read(f, 64*1024*1024, 0, 512)
	if err != nil {
		t.Fatal(err)
	}
	infos, err := fs.ReadDir("/")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	want := []string{"boot.bin", "devicetree.dtb", "uImage", "uramdisk.image.gz"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("unexpected root directory: diff (-want +got):\n%s", diff)
	}
	for name, content := range contents {
		rf, err := fs.OpenFile("/"+name, os.O_RDONLY)
		if err != nil {
			t.Fatal(err)
		}
		// go-diskfs does not stop reading at the file size.
		got := make([]byte, len(content))
		if _, err := io.ReadFull(rf, got); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("%s: read %d bytes which differ from the %d bytes written", name, len(got), len(content))
		}
	}

	info := run(t, "info", "--image", img)
	for _, want := range []string{"Type:", "FAT32"} {
		if !strings.Contains(info, want) {
			t.Errorf("info output does not contain %q:\n%s", want, info)
		}
	}
}

func TestWriteFAT16Args(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "boot.img")
	run(t, "mkfs", "--size", "8M", "--type", "16", img)
	writeSources(t, dir)

	run(t, "write", "--image", img, "--verify",
		filepath.Join(dir, "boot.bin"),
		filepath.Join(dir, "devicetree.dtb"),
		filepath.Join(dir, "uImage.zst"))

	info := run(t, "info", "--image", img)
	for _, want := range []string{"FAT16", "Sectors per cluster: 1"} {
		if !strings.Contains(info, want) {
			t.Errorf("info output does not contain %q:\n%s", want, info)
		}
	}
}

func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "boot.img")
	run(t, "mkfs", "--size", "2M", "--type", "12", img)
	writeSources(t, dir)

	for _, args := range [][]string{
		{"write", filepath.Join(dir, "boot.bin")},
		{"write", "--image", img, "--manifest", "m.yaml", filepath.Join(dir, "boot.bin")},
		{"write", "--image", img, filepath.Join(dir, "missing.bin")},
		{"write", "--image", img, "--start-cluster", "5000", filepath.Join(dir, "boot.bin")},
		{"write", "--image", img, filepath.Join(dir, "boot.bin"), filepath.Join(dir, "BOOT.BIN")},
		{"mkfs", "--size", "8M", "--type", "24", filepath.Join(dir, "new.img")},
		{"mkfs", "--size", "16M", filepath.Join(dir, "small.img")},
		{"mkfs", "--size", "1000", filepath.Join(dir, "new.img")},
		{"mkfs", img},
	} {
		cmd := newCmd()
		cmd.SetArgs(append([]string{"-q"}, args...))
		cmd.SetOut(ioutil.Discard)
		cmd.SetErr(ioutil.Discard)
		if err := cmd.Execute(); err == nil {
			t.Errorf("fatappend %s unexpectedly succeeded", strings.Join(args, " "))
		}
		imageflag.SetImage("")
	}
	if _, err := os.Stat(filepath.Join(dir, "small.img")); !os.IsNotExist(err) {
		t.Errorf("failed mkfs left small.img behind: %v", err)
	}
}
