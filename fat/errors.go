package fat

import (
	"errors"
	"fmt"
)

var (
	// ErrNameTooLong is returned for long file names which do not fit into
	// the 20 long name entries VFAT allows (255 UTF-16 code units).
	ErrNameTooLong = errors.New("long file name exceeds 255 UTF-16 code units")

	// ErrFileTooLarge is returned for payloads which cannot be described by
	// the 32-bit file size field of a directory entry.
	ErrFileTooLarge = errors.New("file size exceeds 4 GiB - 1")

	// ErrNoPayload is returned for non-empty files without a payload reader.
	ErrNoPayload = errors.New("no payload for non-empty file")

	// ErrSessionClosed is returned when using a Session after Close.
	ErrSessionClosed = errors.New("session already closed")
)

// FormatError describes a boot sector which is truncated or whose fields
// cannot describe a FAT volume. Nothing has been written when it is
// returned.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid boot sector: %s: %s", e.Field, e.Reason)
}

// ClusterRangeError is returned when a cluster lies outside of what the
// detected FAT type can address, or beyond the end of the volume.
type ClusterRangeError struct {
	Cluster uint32
	Max     uint32
	Type    Type
}

func (e *ClusterRangeError) Error() string {
	return fmt.Sprintf("cluster %d out of range for %v volume (valid: 2..%d)", e.Cluster, e.Type, e.Max)
}

// ShortNameError describes an 8.3 name which cannot be stored in a
// directory entry.
type ShortNameError struct {
	Name   string
	Reason string
}

func (e *ShortNameError) Error() string {
	return fmt.Sprintf("invalid short name %q: %s", e.Name, e.Reason)
}
