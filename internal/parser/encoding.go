package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// textEncoding is a detected source encoding. A nil enc means UTF-8.
type textEncoding struct {
	name string
	enc  encoding.Encoding
	// continuation decodes bytes taken from the middle of the source,
	// where no BOM is present.
	continuation encoding.Encoding
}

// detectEncoding inspects the start of a source. UTF-16 is recognized by its
// BOM; content that is not valid UTF-8 is read as Windows-1252, which maps
// every byte and so never fails.
func detectEncoding(head, rest []byte) textEncoding {
	switch {
	case bytes.HasPrefix(head, bomUTF16LE):
		return textEncoding{
			name:         "utf-16le",
			enc:          unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM),
			continuation: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
		}
	case bytes.HasPrefix(head, bomUTF16BE):
		return textEncoding{
			name:         "utf-16be",
			enc:          unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM),
			continuation: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
		}
	case validUTF8(head) && validUTF8(rest):
		return textEncoding{name: "utf-8"}
	}
	return textEncoding{name: "windows-1252", enc: charmap.Windows1252, continuation: charmap.Windows1252}
}

// validUTF8 tolerates a rune cut off at the end of b.
func validUTF8(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return true
		}
	}
	return false
}

// decodeHead converts the first bytes of a source to UTF-8.
func (e textEncoding) decodeHead(data []byte) string {
	if e.enc == nil {
		return string(bytes.TrimPrefix(data, bomUTF8))
	}
	if e.name == "utf-16le" && len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	return transformOrRaw(e.enc, data)
}

// decodeTail converts bytes from the middle or end of a source.
func (e textEncoding) decodeTail(data []byte) string {
	if e.continuation == nil {
		return string(data)
	}
	if e.name == "utf-16le" && len(data)%2 == 1 {
		// Cut landed after the low byte of "\n"; drop its high byte.
		data = data[1:]
	}
	return transformOrRaw(e.continuation, data)
}

func transformOrRaw(enc encoding.Encoding, data []byte) string {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}

// splitLines splits text on newlines, dropping carriage returns, NULs and a
// trailing empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\x00", "")
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
