package hexdump

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i)
	}
	return buf
}

func lines(dump string) []string {
	if dump == "" {
		return nil
	}
	parts := strings.SplitAfter(dump, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func TestDump_Empty(t *testing.T) {
	assert.Equal(t, "", Dump(nil, Default, "tap0"))
	assert.Equal(t, []byte("keep"), Append([]byte("keep"), []byte{}, Default, ""))
}

func TestDump_FullLine(t *testing.T) {
	got := Dump(seq(16), Default, "")
	assert.Equal(t, "00000000  00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f  ................\n", got)

	got = Dump([]byte("0123456789abcdef"), Default, "tun0")
	assert.Equal(t, "tun0 00000000  30 31 32 33 34 35 36 37 38 39 61 62 63 64 65 66  0123456789abcdef\n", got)
}

func TestDump_PartialLine(t *testing.T) {
	data := append([]byte("ABCDEFGHIJKLMNOP"), 'Q', 0x7f)
	got := lines(Dump(data, Default, "tap0"))
	require.Len(t, got, 2)
	want := "tap0 00000010  51 7f " + strings.Repeat("   ", 14) + " Q.\n"
	assert.Equal(t, want, got[1])
}

func TestDump_PartialLineWithoutChars(t *testing.T) {
	got := Dump([]byte{0x01, 0xab}, ShowAddr|RelAddr, "")
	assert.Equal(t, "00000000  01 ab \n", got)

	got = Dump([]byte{0xff}, 0, "")
	assert.Equal(t, "ff \n", got)
}

func TestDump_LineCount(t *testing.T) {
	for n := 0; n <= 100; n++ {
		got := lines(Dump(seq(n), Default, "x"))
		assert.Len(t, got, (n+15)/16, "length %d", n)
		assert.Equal(t, Lines(n), len(got))
	}
}

func TestDump_CharColumnAligned(t *testing.T) {
	prefix := "tap7"
	col := len(prefix) + 1 + 8 + 2 + 3*16 + 1
	for n := 1; n <= 48; n++ {
		data := []byte(strings.Repeat("abcdefghijklmnop", 3)[:n])
		for i, line := range lines(Dump(data, Default, prefix)) {
			start := i * 16
			end := start + 16
			if end > n {
				end = n
			}
			require.GreaterOrEqual(t, len(line), col, "length %d line %d", n, i)
			assert.Equal(t, string(data[start:end])+"\n", line[col:], "length %d line %d", n, i)
			assert.Equal(t, byte(' '), line[col-1])
			assert.Equal(t, byte(' '), line[col-2])
		}
	}
}

func TestDump_HexColumnRoundTrip(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x10, 0x7f, 0x80, 0x20, 0x41, 0xff, 0x0a, 0x0d, 0x09, 0x5c, 0x22}
	line := Dump(data, Default, "tap0")

	hexCol := line[len("tap0 00000000  ") : len("tap0 00000000  ")+3*16]
	decoded, err := hex.DecodeString(strings.ReplaceAll(hexCol, " ", ""))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
	assert.Equal(t, strings.ToLower(hexCol), hexCol)
}

func TestDump_Printable(t *testing.T) {
	got := Dump([]byte{0x1f, 0x20, 0x7e, 0x7f, 0x80, 0xff}, ShowChar, "")
	assert.True(t, strings.HasSuffix(got, " . ~...\n"), "got %q", got)
}

func TestAppendAt_AbsoluteAddress(t *testing.T) {
	got := lines(string(AppendAt(nil, seq(20), 0x1000, ShowAddr, "")))
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "00001000  00 01"))
	assert.True(t, strings.HasPrefix(got[1], "00001010  10 11 12 13"))

	got = lines(string(AppendAt(nil, seq(1), 0x123456789, ShowAddr, "")))
	assert.Equal(t, "123456789  00 \n", got[0])

	rel := string(AppendAt(nil, seq(1), 0x1000, ShowAddr|RelAddr, ""))
	assert.Equal(t, "00000000  00 \n", rel)
}

func TestAppend_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 8)
	buf = Append(buf, seq(33), Default, "tap0")
	first := string(buf)
	assert.GreaterOrEqual(t, cap(buf), 3*LineWidth(Default, "tap0"))

	buf = Append(buf[:0], seq(33), Default, "tap0")
	assert.Equal(t, first, string(buf))

	prefixed := Append([]byte("> "), seq(1), 0, "")
	assert.Equal(t, "> 00 \n", string(prefixed))
}

func TestLineWidth(t *testing.T) {
	full := Dump(seq(16), Default, "tap0")
	assert.Equal(t, len(full), LineWidth(Default, "tap0"))
	assert.Equal(t, 3*16+1, LineWidth(0, ""))
	assert.Equal(t, 5+18+48+17+1, LineWidth(ShowAddr|ShowChar, "tap0"))
}

func TestFlag_String(t *testing.T) {
	assert.Equal(t, "addr|rel|char", Default.String())
	assert.Equal(t, "none", Flag(0).String())
}
