//go:build unix

package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// lockImage takes an exclusive lock on f, blocking until other fatappend
// processes working on the same image are done.
func lockImage(f *os.File) (unlock func() error, _ error) {
	flock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: int16(io.SeekStart),
	}
	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &flock); err != nil {
		return nil, fmt.Errorf("locking %s: %w", f.Name(), err)
	}
	return func() error {
		flock.Type = unix.F_UNLCK
		if err := unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &flock); err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
		return nil
	}, nil
}
