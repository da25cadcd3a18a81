package util

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// EnsureUTF8Bytes tries to decode non-UTF-8 bytes using common legacy
// encodings and returns UTF-8 bytes. Inventory files exported from older
// Windows tooling occasionally arrive as GBK/GB18030; YAML parsing chokes
// on those unless normalized first. Valid UTF-8 input is returned as-is.
func EnsureUTF8Bytes(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	if utf8.Valid(b) {
		return b
	}
	encs := []encoding.Encoding{
		simplifiedchinese.GB18030,
		simplifiedchinese.GBK,
		traditionalchinese.Big5,
		charmap.Windows1252,
		charmap.ISO8859_1,
	}
	for _, enc := range encs {
		if out, ok := tryDecode(enc, b); ok {
			return out
		}
	}
	// Fallback: keep raw bytes
	return b
}

// EnsureUTF8 converts a possibly mojibake string to UTF-8.
func EnsureUTF8(s string) string {
	return string(EnsureUTF8Bytes([]byte(s)))
}

func tryDecode(enc encoding.Encoding, b []byte) ([]byte, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, false
	}
	if utf8.Valid(decoded) {
		return decoded, true
	}
	return nil, false
}
