package imports

import (
	"bytes"
	"strings"

	"golang.org/x/text/unicode/norm"

	"tuning-backend/internal/shared/util"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalize returns the canonical text a fingerprint is computed over: BOM
// stripped, invalid UTF-8 replaced, NFC composed, whitespace runs collapsed to
// one space and trimmed.
func Normalize(content []byte) string {
	s := string(bytes.TrimPrefix(content, utf8BOM))
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint is the hex SHA-256 of the normalized content.
func Fingerprint(content []byte) string {
	return util.HashBytes([]byte(Normalize(content)))
}
