// Package manifest describes the ordered list of files which fatappend
// appends to a FAT volume.
//
// A manifest is a YAML document:
//
//	start_cluster: 3
//	files:
//	  - source: sdcard/boot.bin
//	  - source: sdcard/uramdisk.image.gz
//	    short_name: URAMDI~1.GZ
//	  - source: sdcard/uImage
//	    short_name: uImage
//	    mod_time: 2013-02-14T17:03:58Z
package manifest

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gokrazy/fatappend/fat"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// Manifest is the parsed manifest.
type Manifest struct {
	// StartCluster overrides the first data cluster of the first file.
	StartCluster uint32 `yaml:"start_cluster,omitempty"`

	// DirOffset overrides the offset (relative to the start of the volume)
	// of the first directory entry.
	DirOffset int64 `yaml:"dir_offset,omitempty"`

	Files []Entry `yaml:"files"`
}

// Entry is a single file to append.
type Entry struct {
	// Source is the path of the payload. Relative paths are resolved
	// relative to the manifest.
	Source string `yaml:"source"`

	// Name is the long file name. Defaults to the base name of Source,
	// without a .zst suffix.
	Name string `yaml:"name,omitempty"`

	// ShortName is the 8.3 alias. Defaults to an alias derived from Name.
	ShortName string `yaml:"short_name,omitempty"`

	// StartCluster places the file's data at a specific cluster instead
	// of directly behind the previous file.
	StartCluster uint32 `yaml:"start_cluster,omitempty"`

	// ModTime defaults to the modification time of Source.
	ModTime time.Time `yaml:"mod_time,omitempty"`
}

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(b, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Load reads the manifest at path from fs and resolves relative sources
// against the manifest's directory.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range m.Files {
		if src := m.Files[i].Source; src != "" && !filepath.IsAbs(src) {
			m.Files[i].Source = filepath.Join(dir, src)
		}
	}
	return m, nil
}

// FromArgs returns a manifest appending sources in the given order.
func FromArgs(sources []string) *Manifest {
	m := &Manifest{Files: make([]Entry, len(sources))}
	for i, src := range sources {
		m.Files[i].Source = src
	}
	return m
}

// DefaultName returns the long file name used for source.
func DefaultName(source string) string {
	return strings.TrimSuffix(path.Base(filepath.ToSlash(source)), ".zst")
}

// Normalize fills in default long and short names and verifies that every
// entry can be stored: a source is set, short names are valid 8.3 names and
// no two entries share a long or short name (compared case-insensitively,
// as FAT does).
func (m *Manifest) Normalize() error {
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest lists no files")
	}
	longNames := make(map[string]int)
	shortNames := make(map[string]int)
	for i := range m.Files {
		e := &m.Files[i]
		if e.Source == "" {
			return fmt.Errorf("file %d: source not set", i+1)
		}
		if e.Name == "" {
			e.Name = DefaultName(e.Source)
		}
		key := strings.ToUpper(e.Name)
		if prev, ok := longNames[key]; ok {
			return fmt.Errorf("file %d: name %q already used by file %d", i+1, e.Name, prev+1)
		}
		longNames[key] = i

		if e.ShortName == "" {
			for n := 1; ; n++ {
				e.ShortName = fat.GenerateShortName(e.Name, n)
				if _, taken := shortNames[strings.ToUpper(e.ShortName)]; !taken {
					break
				}
			}
		}
		if _, err := fat.ParseShortName(e.ShortName); err != nil {
			return fmt.Errorf("file %d: %w", i+1, err)
		}
		key = strings.ToUpper(e.ShortName)
		if prev, ok := shortNames[key]; ok {
			return fmt.Errorf("file %d: short name %q already used by file %d", i+1, e.ShortName, prev+1)
		}
		shortNames[key] = i
	}
	return nil
}
