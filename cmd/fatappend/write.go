package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/gokrazy/fatappend/config"
	"github.com/gokrazy/fatappend/fat"
	"github.com/gokrazy/fatappend/imageflag"
	"github.com/gokrazy/fatappend/manifest"
	"github.com/gokrazy/fatappend/progress"
	"github.com/gokrazy/fatappend/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func writeCmd() *cobra.Command {
	var (
		manifestPath string
		verify       bool
		showProgress bool
		startCluster uint32
		dirOffset    int64
	)
	cmd := &cobra.Command{
		Use:   "write [FILES...]",
		Short: "Append files to the root directory of a FAT volume",
		Long: `Append files to the root directory of a FAT volume.

Files are appended in the given order: their directory entries are written
back to back starting at the first root directory slot and their data is
stored in contiguous clusters, one file after another. The volume must not be
mounted while fatappend writes to it.

Without FILES, the files are read from a manifest.
`,
		Example: `  fatappend write --image sdcard.img boot.bin uramdisk.image.gz devicetree.dtb uImage
  fatappend write --image sdcard.img --manifest sdcard.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			if imageflag.Image() == "" {
				return errors.New("no image specified, use --image or set FATAPPEND_IMAGE")
			}

			var m *manifest.Manifest
			switch {
			case len(args) > 0 && manifestPath != "":
				return errors.New("--manifest cannot be combined with FILES")
			case len(args) > 0:
				m = manifest.FromArgs(args)
			default:
				path := manifestPath
				if path == "" {
					path = config.DefaultManifest(fs, imageflag.Image())
				}
				if path == "" {
					return fmt.Errorf("no FILES given and no %s found", config.ManifestName)
				}
				var err error
				m, err = manifest.Load(fs, path)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("start-cluster") {
				m.StartCluster = startCluster
			}
			if cmd.Flags().Changed("dir-offset") {
				m.DirOffset = dirOffset
			}
			if err := m.Normalize(); err != nil {
				return err
			}

			var rep *progress.Reporter
			if showProgress {
				rep = &progress.Reporter{Out: cmd.ErrOrStderr()}
			}
			written, err := appendFiles(fs, imageflag.Image(), m, rep)
			if err != nil {
				return err
			}
			if verify {
				return verifyFiles(fs, imageflag.Image(), written)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing the files to append")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read back every file after writing and compare it with its source")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print progress while writing file data")
	cmd.Flags().Uint32Var(&startCluster, "start-cluster", 0, "First data cluster of the first file (default: first cluster after the root directory)")
	cmd.Flags().Int64Var(&dirOffset, "dir-offset", 0, "Offset of the first directory entry relative to the start of the volume (default: first root directory slot)")
	return cmd
}

// writtenFile records where a file was stored, for verification.
type writtenFile struct {
	entry        manifest.Entry
	startCluster uint32
	size         int64
}

func openImage(path string, flag int) (*os.File, *fat.Volume, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, nil, err
	}
	off, err := imageflag.Locate(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	v, err := fat.Open(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s at offset %d: %w", path, off, err)
	}
	return f, v, nil
}

func initialCursor(v *fat.Volume, m *manifest.Manifest) (fat.Cursor, error) {
	cur := v.InitialCursor()
	if m.DirOffset != 0 {
		if m.DirOffset%32 != 0 {
			return cur, fmt.Errorf("directory offset %d is not a multiple of 32", m.DirOffset)
		}
		cur.DirOffset = m.DirOffset
	}
	if m.StartCluster != 0 {
		cur.NextCluster = m.StartCluster
		cur.DataOffset = v.ClusterOffset(m.StartCluster)
	}
	return cur, nil
}

func appendFiles(fs afero.Fs, image string, m *manifest.Manifest, rep *progress.Reporter) ([]writtenFile, error) {
	f, v, err := openImage(image, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	unlock, err := lockImage(f)
	if err != nil {
		return nil, err
	}
	defer unlock()

	log.Debugf("%s: %v volume, %d clusters of %s", image, v.Type(), v.Clusters(), units.BytesSize(float64(v.ClusterBytes())))
	cur, err := initialCursor(v, m)
	if err != nil {
		return nil, err
	}

	payloads := make([]*source.Payload, len(m.Files))
	defer func() {
		for _, p := range payloads {
			if p != nil {
				p.Close()
			}
		}
	}()
	var total int64
	for i, e := range m.Files {
		p, err := source.Open(fs, e.Source)
		if err != nil {
			return nil, err
		}
		payloads[i] = p
		total += p.Size
	}

	if rep != nil {
		rep.SetTotal(uint64(total))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go rep.Report(ctx, time.Second)
	}

	s := fat.NewSession(v, log.StandardLogger())
	written := make([]writtenFile, 0, len(m.Files))
	for i, e := range m.Files {
		p := payloads[i]
		modTime := e.ModTime
		if modTime.IsZero() {
			modTime = p.ModTime
		}
		start := e.StartCluster
		if start == 0 {
			start = cur.NextCluster
		}
		var payload io.Reader = p
		if rep != nil {
			rep.SetStatus(e.Name)
			payload = io.TeeReader(p, rep.Writer())
		}
		cur, err = s.WriteFile(cur, fat.File{
			LongName:     e.Name,
			ShortName:    e.ShortName,
			ModTime:      modTime,
			StartCluster: e.StartCluster,
			Size:         p.Size,
			Payload:      payload,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Source, err)
		}
		if p.Size == 0 {
			start = 0
		}
		log.Infof("%s (%s) -> %s, cluster %d", e.Name, units.HumanSize(float64(p.Size)), e.ShortName, start)
		written = append(written, writtenFile{
			entry:        e,
			startCluster: start,
			size:         p.Size,
		})
	}
	if err := s.Close(); err != nil {
		return nil, err
	}
	log.Infof("appended %d files (%s) to %s", len(written), units.HumanSize(float64(total)), image)
	return written, nil
}
