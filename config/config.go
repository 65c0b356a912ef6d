// Package config locates the manifest fatappend reads when none is given on
// the command line.
package config

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ManifestName is the file name of a manifest picked up by default.
const ManifestName = "fatappend.yaml"

var userConfigDir = func() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("https://golang.org/pkg/os/#UserConfigDir failed: %v", err)
	}
	return userConfigDir
}

// Typically ~/.config/fatappend on Linux
// Typically ~/Library/Application\ Support/fatappend on macOS/Darwin
func Dir() string { return filepath.Join(userConfigDir(), "fatappend") }

// ImageManifest returns the path of the manifest specific to image, named
// after the image file without its extension.
func ImageManifest(image string) string {
	base := filepath.Base(image)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(Dir(), "images", base+".yaml")
}

// DefaultManifest returns the first existing manifest out of
// ManifestName in the working directory, the image specific manifest and
// ManifestName in Dir(). It returns the empty string if none exists.
func DefaultManifest(fs afero.Fs, image string) string {
	candidates := []string{ManifestName}
	if image != "" {
		candidates = append(candidates, ImageManifest(image))
	}
	candidates = append(candidates, filepath.Join(Dir(), ManifestName))
	for _, path := range candidates {
		st, err := fs.Stat(path)
		if err != nil || st.IsDir() {
			continue
		}
		log.Debugf("using manifest %s", path)
		return path
	}
	return ""
}
