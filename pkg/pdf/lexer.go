/*
Copyright 2018 The pdfcpu Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pdf

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// Whitespace and delimiter classes of ISO 32000-1 7.2.2.

func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// isRegular reports whether c can continue a name, number or keyword token.
func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// skipWS advances i past whitespace and comments. Comments run to the next
// EOL and are dropped; the header comment is handled separately before
// tokenizing starts.
func skipWS(buf []byte, i int) int {
	for i < len(buf) {
		c := buf[i]
		if isWhitespace(c) {
			i++
			continue
		}
		if c == '%' {
			for i < len(buf) && buf[i] != '\n' && buf[i] != '\r' {
				i++
			}
			continue
		}
		break
	}
	return i
}

// scanToken returns the regular-character token starting at i (which must
// not point at whitespace) and the position after it.
func scanToken(buf []byte, i int) (string, int) {
	j := i
	for j < len(buf) && isRegular(buf[j]) {
		j++
	}
	return string(buf[i:j]), j
}

// peekToken looks one token ahead without consuming: it is what lets the
// parser tell "12 0 R" from three unrelated numbers.
func peekToken(buf []byte, i int) string {
	i = skipWS(buf, i)
	if i >= len(buf) {
		return ""
	}
	if !isRegular(buf[i]) {
		return string(buf[i])
	}
	tok, _ := scanToken(buf, i)
	return tok
}

// scanEOL consumes a single EOL sequence at i: LF, CR or CRLF.
func scanEOL(buf []byte, i int) int {
	if i < len(buf) && buf[i] == '\r' {
		i++
		if i < len(buf) && buf[i] == '\n' {
			i++
		}
		return i
	}
	if i < len(buf) && buf[i] == '\n' {
		i++
	}
	return i
}

// headerBufLen bounds how deep into the file the %PDF header may sit;
// some producers prepend junk, the standard tail tolerance is 1 KiB.
const headerBufLen = 1024

// scanHeader locates %PDF-M.N within the first KiB and returns the
// version plus the byte offset of the '%'. All in-file offsets are
// relative to that byte for documents with junk before the header.
func scanHeader(src ByteSource) (Version, int64, error) {
	buf, err := readSpan(src, 0, headerBufLen)
	if err != nil {
		return -1, 0, err
	}
	i := bytes.Index(buf, []byte("%PDF-"))
	if i < 0 || i+8 > len(buf) {
		return -1, 0, ErrInvalidHeader
	}
	v, err := ParseVersion(string(buf[i+5 : i+8]))
	if err != nil {
		return -1, 0, errors.Wrap(ErrInvalidHeader, err.Error())
	}
	return v, int64(i), nil
}

// tailBufLen is how much of the file tail is scanned for startxref/%%EOF.
// Up to 64 bytes of trailing junk after %%EOF are tolerated.
const (
	tailBufLen   = 1024
	eofTolerance = 64
)

// scanTail locates the last startxref in the trailing KiB and returns the
// offset it carries. %%EOF must follow the offset, modulo junk tolerance.
func scanTail(src ByteSource) (int64, error) {
	buf, err := src.Suffix(tailBufLen)
	if err != nil {
		return 0, err
	}
	i := bytes.LastIndex(buf, []byte("startxref"))
	if i < 0 {
		return 0, ErrMissingStartxref
	}
	j := skipWS(buf, i+len("startxref"))
	tok, k := scanToken(buf, j)
	off, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || off < 0 {
		return 0, errors.Wrapf(ErrMissingStartxref, "bad offset %q", tok)
	}
	e := bytes.Index(buf[k:], []byte("%%EOF"))
	if e < 0 {
		return 0, ErrMissingEOF
	}
	if rest := len(buf) - (k + e + len("%%EOF")); rest > eofTolerance+2 {
		return 0, errors.Wrapf(ErrMissingEOF, "%d bytes of junk after %%%%EOF", rest)
	}
	return off, nil
}

// lastEOFOffset returns the offset one past the final %%EOF marker
// (including its EOL), for appending an incremental update.
func lastEOFOffset(src ByteSource) (int64, error) {
	buf, err := src.Suffix(tailBufLen)
	if err != nil {
		return 0, err
	}
	i := bytes.LastIndex(buf, []byte("%%EOF"))
	if i < 0 {
		return 0, ErrMissingEOF
	}
	end := i + len("%%EOF")
	end = scanEOL(buf, end)
	return src.Len() - int64(len(buf)) + int64(end), nil
}
