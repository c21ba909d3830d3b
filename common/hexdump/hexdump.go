// Package hexdump renders byte buffers as fixed-width hexadecimal lines.
//
// A full line with every column enabled looks like
//
//	tap0 00000010  45 00 00 54 00 00 40 00 40 01 26 a7 0a 00 00 01  E..T..@.@.&.....
//
// The final line of a buffer may hold fewer than 16 bytes. Its hex column is
// padded so that the character column stays aligned with the full lines.
package hexdump

import (
	"slices"
	"strconv"
	"strings"
)

const (
	lineSize  = 16
	hexDigits = "0123456789abcdef"
)

// Flag selects the optional columns of a dump.
type Flag uint

const (
	// ShowAddr prepends the address of the first byte of each line.
	ShowAddr Flag = 1 << iota
	// RelAddr renders addresses relative to the start of the buffer.
	RelAddr
	// ShowChar appends the printable-character column.
	ShowChar

	Default = ShowAddr | RelAddr | ShowChar
)

func (f Flag) String() string {
	var parts []string
	if f&ShowAddr != 0 {
		parts = append(parts, "addr")
	}
	if f&RelAddr != 0 {
		parts = append(parts, "rel")
	}
	if f&ShowChar != 0 {
		parts = append(parts, "char")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// LineWidth returns the worst-case width of one rendered line, line feed
// included.
func LineWidth(flags Flag, prefix string) int {
	n := 3*lineSize + 1
	if prefix != "" {
		n += len(prefix) + 1
	}
	if flags&ShowAddr != 0 {
		n += 8 + 2
		if flags&RelAddr == 0 {
			n += 8
		}
	}
	if flags&ShowChar != 0 {
		n += 1 + lineSize
	}
	return n
}

// Lines returns the number of lines a buffer of n bytes renders to.
func Lines(n int) int {
	return (n + lineSize - 1) / lineSize
}

// Append appends the dump of data to dst and returns the extended buffer.
// Without RelAddr, addresses start at zero; use AppendAt to supply a base.
func Append(dst, data []byte, flags Flag, prefix string) []byte {
	return AppendAt(dst, data, 0, flags, prefix)
}

// AppendAt is like Append, but absolute addresses (RelAddr unset) are
// base plus the offset of the line. dst is grown once to hold the worst case,
// so callers may pass a nil or undersized buffer.
func AppendAt(dst, data []byte, base uint64, flags Flag, prefix string) []byte {
	if len(data) == 0 {
		return dst
	}
	dst = slices.Grow(dst, Lines(len(data))*LineWidth(flags, prefix))

	for off := 0; off < len(data); off += lineSize {
		end := off + lineSize
		if end > len(data) {
			end = len(data)
		}
		addr := uint64(off)
		if flags&RelAddr == 0 {
			addr += base
		}
		dst = appendLine(dst, data[off:end], addr, flags, prefix)
	}
	return dst
}

// Dump returns the dump of data as a string.
func Dump(data []byte, flags Flag, prefix string) string {
	return string(Append(nil, data, flags, prefix))
}

func appendLine(dst, line []byte, addr uint64, flags Flag, prefix string) []byte {
	if prefix != "" {
		dst = append(dst, prefix...)
		dst = append(dst, ' ')
	}
	if flags&ShowAddr != 0 {
		dst = appendAddr(dst, addr)
		dst = append(dst, ' ', ' ')
	}
	for _, b := range line {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0f], ' ')
	}
	if flags&ShowChar == 0 {
		return append(dst, '\n')
	}

	for i := len(line); i < lineSize; i++ {
		dst = append(dst, ' ', ' ', ' ')
	}
	dst = append(dst, ' ')
	for _, b := range line {
		if printable(b) {
			dst = append(dst, b)
		} else {
			dst = append(dst, '.')
		}
	}
	return append(dst, '\n')
}

func appendAddr(dst []byte, addr uint64) []byte {
	var buf [16]byte
	digits := strconv.AppendUint(buf[:0], addr, 16)
	for i := len(digits); i < 8; i++ {
		dst = append(dst, '0')
	}
	return append(dst, digits...)
}

func printable(b byte) bool {
	return b >= 0x20 && b < 0x7f
}
