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

package types

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrInvalidUTF16BE is raised for malformed UTF-16BE byte sequences
// encountered while decoding a PDF text string.
var ErrInvalidUTF16BE = errors.New("pdfkit: invalid UTF-16BE sequence")

// IsUTF16BE reports whether b starts with the big-endian BOM (0xFE 0xFF)
// and has an even length, as required for a PDFDocEncoding text string
// encoded as UTF-16BE (ISO 32000-1 7.9.2.2).
func IsUTF16BE(b []byte) bool {
	return len(b) >= 2 && len(b)%2 == 0 && b[0] == 0xFE && b[1] == 0xFF
}

func decodeUTF16String(b []byte) (string, error) {
	if !IsUTF16BE(b) {
		return "", ErrInvalidUTF16BE
	}
	b = b[2:]

	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i < len(b); {
		val := uint16(b[i])<<8 | uint16(b[i+1])
		if val <= 0xD7FF || val >= 0xE000 {
			u16 = append(u16, val)
			i += 2
			continue
		}
		if i+3 >= len(b) {
			return "", errors.New("pdfkit: truncated UTF-16BE surrogate pair")
		}
		if val >= 0xDC00 {
			return "", errors.New("pdfkit: low surrogate where high surrogate expected")
		}
		low := uint16(b[i+2])<<8 | uint16(b[i+3])
		if low < 0xDC00 || low > 0xDFFF {
			return "", errors.New("pdfkit: invalid low surrogate in UTF-16BE sequence")
		}
		u16 = append(u16, val, low)
		i += 4
	}

	var out bytes.Buffer
	buf := make([]byte, utf8.UTFMax)
	for _, r := range utf16.Decode(u16) {
		n := utf8.EncodeRune(buf, r)
		out.Write(buf[:n])
	}
	return out.String(), nil
}

// EncodeUTF16String produces a PDFDocEncoding-compatible text string: a
// leading BOM followed by big-endian UTF-16 code units.
func EncodeUTF16String(s string) string {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2, 2+2*len(units))
	b[0], b[1] = 0xFE, 0xFF
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u&0xFF))
	}
	return string(b)
}

// StringLiteralToString returns the best-effort decoded text of a literal
// string: UTF-16BE if BOM-tagged, else UTF-8 if the bytes are valid UTF-8
// (a UTF-8 BOM is dropped), else Windows-1252 text.
func StringLiteralToString(sl StringLiteral) (string, error) {
	raw, err := Unescape(sl.Value())
	if err != nil {
		return "", err
	}
	if IsUTF16BE(raw) {
		return decodeUTF16String(raw)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	return cp1252ToUTF8(string(raw)), nil
}

// HexLiteralToString is the hex-string counterpart of StringLiteralToString.
func HexLiteralToString(hl HexLiteral) (string, error) {
	raw, err := hl.Bytes()
	if err != nil {
		return "", err
	}
	if IsUTF16BE(raw) {
		return decodeUTF16String(raw)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	return string(raw), nil
}

// cp1252ToUTF8 maps Windows-1252 bytes (a common PDFDocEncoding superset in
// the wild) to their UTF-8 rune sequence, leaving ASCII untouched.
func cp1252ToUTF8(s string) string {
	var out bytes.Buffer
	buf := make([]byte, utf8.UTFMax)
	for i := 0; i < len(s); i++ {
		c := s[i]
		var r rune
		switch {
		case c < 0x80:
			r = rune(c)
		default:
			if mapped, ok := cp1252HighRanges[c]; ok {
				r = mapped
			} else {
				r = rune(c)
			}
		}
		n := utf8.EncodeRune(buf, r)
		out.Write(buf[:n])
	}
	return out.String()
}

// cp1252HighRanges covers the 0x80-0x9F block where CP1252 diverges from
// Latin-1; everything else maps rune-for-byte.
var cp1252HighRanges = map[byte]rune{
	0x80: 0x20AC, 0x82: 0x201A, 0x83: 0x0192, 0x84: 0x201E, 0x85: 0x2026,
	0x86: 0x2020, 0x87: 0x2021, 0x88: 0x02C6, 0x89: 0x2030, 0x8A: 0x0160,
	0x8B: 0x2039, 0x8C: 0x0152, 0x8E: 0x017D, 0x91: 0x2018, 0x92: 0x2019,
	0x93: 0x201C, 0x94: 0x201D, 0x95: 0x2022, 0x96: 0x2013, 0x97: 0x2014,
	0x98: 0x02DC, 0x99: 0x2122, 0x9A: 0x0161, 0x9B: 0x203A, 0x9C: 0x0153,
	0x9E: 0x017E, 0x9F: 0x0178,
}

// StringOrHexLiteral decodes whichever of the two text-string
// representations obj holds.
func StringOrHexLiteral(obj Object) (string, error) {
	switch o := obj.(type) {
	case StringLiteral:
		return StringLiteralToString(o)
	case HexLiteral:
		return HexLiteralToString(o)
	}
	return "", errors.New("pdfkit: expected StringLiteral or HexLiteral")
}
