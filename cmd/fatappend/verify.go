package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/gokrazy/fatappend/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
)

func digest(r io.Reader) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func sourceDigest(fs afero.Fs, path string) ([]byte, error) {
	p, err := source.Open(fs, path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return digest(p)
}

// verifyFiles compares the contents of the written files, read back through
// the cluster runs they were stored in, with their sources.
func verifyFiles(fs afero.Fs, image string, written []writtenFile) error {
	f, v, err := openImage(image, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, w := range written {
		want, err := sourceDigest(fs, w.entry.Source)
		if err != nil {
			return err
		}
		var got []byte
		if w.size == 0 {
			got, err = digest(bytes.NewReader(nil))
		} else {
			got, err = digest(v.ReadRun(w.startCluster, w.size))
		}
		if err != nil {
			return fmt.Errorf("reading back %s: %w", w.entry.Name, err)
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("verification failed: %s differs from %s (blake2b %x, want %x)", w.entry.Name, w.entry.Source, got, want)
		}
		log.Debugf("verified %s: blake2b %x", w.entry.Name, got)
	}
	log.Infof("verified %d files", len(written))
	return nil
}
