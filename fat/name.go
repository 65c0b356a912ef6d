package fat

import (
	"fmt"
	"strings"
)

// Checksum returns the checksum of an 11-byte short name which every long
// name entry belonging to that short name carries.
func Checksum(name [11]byte) uint8 {
	var sum uint8
	for _, b := range name {
		sum = (sum&1)<<7 + sum>>1 + b
	}
	return sum
}

// invalidShortChars may not appear in a short name.
const invalidShortChars = "\"*+,./:;<=>?[\\]|"

func validShortChar(c byte) bool {
	return c > 0x20 && c != 0x7F && strings.IndexByte(invalidShortChars, c) == -1
}

// ParseShortName converts a short name such as "URAMDI~1.GZ" into its
// on-disk form: the base name left justified in 8 bytes and the extension
// in 3 bytes, both padded with spaces.
func ParseShortName(s string) ([11]byte, error) {
	var name [11]byte
	for i := range name {
		name[i] = ' '
	}
	base, ext := s, ""
	if idx := strings.IndexByte(s, '.'); idx > -1 {
		base, ext = s[:idx], s[idx+1:]
	}
	switch {
	case base == "":
		return name, &ShortNameError{s, "empty base name"}
	case len(base) > 8:
		return name, &ShortNameError{s, fmt.Sprintf("base name longer than 8 bytes (%d)", len(base))}
	case len(ext) > 3:
		return name, &ShortNameError{s, fmt.Sprintf("extension longer than 3 bytes (%d)", len(ext))}
	}
	for _, part := range []string{base, ext} {
		for i := 0; i < len(part); i++ {
			if !validShortChar(part[i]) {
				return name, &ShortNameError{s, fmt.Sprintf("invalid character %q", part[i])}
			}
		}
	}
	copy(name[:8], base)
	copy(name[8:], ext)
	if name[0] == 0xE5 {
		// 0xE5 marks deleted entries; the character is stored as 0x05.
		name[0] = 0x05
	}
	return name, nil
}

// ShortNameString is the inverse of ParseShortName.
func ShortNameString(name [11]byte) string {
	if name[0] == 0x05 {
		name[0] = 0xE5
	}
	base := strings.TrimRight(string(name[:8]), " ")
	ext := strings.TrimRight(string(name[8:]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func shortNameFilter(s string) (string, bool) {
	var b strings.Builder
	lossy := false
	for _, r := range strings.ToUpper(s) {
		switch {
		case r == ' ' || r == '.':
			lossy = true
		case r > 0x7F || !validShortChar(byte(r)):
			b.WriteByte('_')
			lossy = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), lossy
}

// GenerateShortName derives an upper case 8.3 alias from a long file name.
// For n <= 1, names which fit into 8.3 are returned upper cased; the long
// name entries preserve the original case. Otherwise, the base name is
// truncated and suffixed with ~n, e.g. GenerateShortName("uramdisk.image.gz",
// 1) returns "URAMDI~1.GZ".
func GenerateShortName(long string, n int) string {
	trimmed := strings.TrimLeft(long, ". ")
	base, ext := trimmed, ""
	if idx := strings.LastIndexByte(trimmed, '.'); idx > -1 {
		base, ext = trimmed[:idx], trimmed[idx+1:]
	}
	base, lossyBase := shortNameFilter(base)
	ext, lossyExt := shortNameFilter(ext)
	if len(ext) > 3 {
		ext, lossyExt = ext[:3], true
	}
	if n <= 1 && !lossyBase && !lossyExt && base != "" && len(base) <= 8 && long == trimmed {
		if ext == "" {
			return base
		}
		return base + "." + ext
	}
	tail := fmt.Sprintf("~%d", n)
	if max := 8 - len(tail); len(base) > max {
		base = base[:max]
	}
	if base == "" {
		base = "_"
	}
	base += tail
	if ext == "" {
		return base
	}
	return base + "." + ext
}
