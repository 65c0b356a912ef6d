// Package source opens the payloads of files to append.
package source

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Payload is an opened source file. Size is known before reading, as the
// directory entry is written ahead of the data.
type Payload struct {
	io.Reader
	Size    int64
	ModTime time.Time

	closers []io.Closer
}

// Close releases the underlying file.
func (p *Payload) Close() error {
	var err error
	for _, c := range p.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Compressed reports whether path is decompressed by Open.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Open opens path on fs. Files ending in .zst are transparently
// decompressed. Their decompressed size is determined by decoding the file
// once before it is opened for reading.
func Open(fs afero.Fs, path string) (*Payload, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	if !Compressed(path) {
		return &Payload{
			Reader:  f,
			Size:    st.Size(),
			ModTime: st.ModTime(),
			closers: []io.Closer{f},
		}, nil
	}

	size, err := decompressedSize(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rc := dec.IOReadCloser()
	return &Payload{
		Reader:  rc,
		Size:    size,
		ModTime: st.ModTime(),
		closers: []io.Closer{rc, f},
	}, nil
}

func decompressedSize(r io.Reader) (int64, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer dec.Close()
	return io.Copy(io.Discard, dec)
}
