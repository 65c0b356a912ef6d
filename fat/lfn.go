package fat

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

const (
	// lfnChars is the number of UTF-16 code units per long name entry.
	lfnChars = 13
	// lfnMaxEntries is the number of entries needed for 255 code units.
	lfnMaxEntries = 20
	// lfnLast is set in the sequence number of the logically last entry,
	// which is the first one on disk.
	lfnLast = 0x40
	// lfnFiller pads the slot after the null terminator.
	lfnFiller = 0xFFFF
)

// LongNameEntry is a VFAT long file name directory entry holding 13 UTF-16
// code units of a long file name.
type LongNameEntry struct {
	Sequence uint8
	Name1    [5]uint16
	Attr     uint8 // always AttrLongName
	Type     uint8 // always 0
	Checksum uint8
	Name2    [6]uint16
	Cluster  uint16 // always 0
	Name3    [2]uint16
}

// Units returns the 13 UTF-16 code units stored in the entry.
func (e *LongNameEntry) Units() []uint16 {
	units := make([]uint16, 0, lfnChars)
	units = append(units, e.Name1[:]...)
	units = append(units, e.Name2[:]...)
	return append(units, e.Name3[:]...)
}

// MarshalBinary returns the 32-byte on-disk form of the entry.
func (e *LongNameEntry) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func utf16Units(s string) ([]uint16, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return units, nil
}

// EncodeLongName splits name into long name entries tagged with the
// checksum of the short name they belong to. The entries are returned in
// the order they must appear on disk, directly followed by the short
// entry: the last slot of the name comes first and carries the 0x40 flag
// in its sequence number.
//
// The name is terminated with a null code unit and padded with 0xFFFF to a
// multiple of 13 code units, so an empty name results in a single entry.
func EncodeLongName(name string, checksum uint8) ([]LongNameEntry, error) {
	units, err := utf16Units(name)
	if err != nil {
		return nil, err
	}
	if len(units) > lfnChars*lfnMaxEntries-5 {
		return nil, ErrNameTooLong
	}
	units = append(units, 0)
	for len(units)%lfnChars != 0 {
		units = append(units, lfnFiller)
	}

	slots := len(units) / lfnChars
	entries := make([]LongNameEntry, slots)
	for i := range entries {
		slot := slots - 1 - i
		chunk := units[slot*lfnChars : (slot+1)*lfnChars]
		e := &entries[i]
		e.Sequence = uint8(slot + 1)
		if i == 0 {
			e.Sequence |= lfnLast
		}
		e.Attr = AttrLongName
		e.Checksum = checksum
		copy(e.Name1[:], chunk[0:5])
		copy(e.Name2[:], chunk[5:11])
		copy(e.Name3[:], chunk[11:13])
	}
	return entries, nil
}
