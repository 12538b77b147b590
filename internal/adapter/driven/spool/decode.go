package spool

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// DecodeInterleaved recovers the text written by the password filter. The
// filter emits one meaningful byte per character followed by a filler byte,
// so only the even-indexed bytes carry data. Each kept byte is read as an
// ISO-8859-1 code point.
func DecodeInterleaved(data []byte) (string, error) {
	narrow := make([]byte, 0, (len(data)+1)/2)
	for i := 0; i < len(data); i += 2 {
		narrow = append(narrow, data[i])
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(narrow)
	if err != nil {
		return "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(text), nil
}
