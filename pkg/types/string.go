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
	"encoding/hex"
	"strconv"
)

// NewStringSet builds a StringSet from a slice.
func NewStringSet(ss []string) StringSet {
	s := StringSet{}
	for _, v := range ss {
		s[v] = true
	}
	return s
}

// ByteForOctalString converts a 1-3 digit unescaped octal string to a byte.
func ByteForOctalString(octal string) byte {
	i, _ := strconv.ParseInt(octal, 8, 64)
	return byte(i)
}

// Escape applies the literal-string escape sequences of ISO 32000-1 7.3.4.2.
func Escape(s string) (*string, error) {
	var b bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 0x0A:
			c = 'n'
		case 0x0D:
			c = 'r'
		case 0x09:
			c = 't'
		case 0x08:
			c = 'b'
		case 0x0C:
			c = 'f'
		case '\\', '(', ')':
		default:
			b.WriteByte(c)
			continue
		}
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	s1 := b.String()
	return &s1, nil
}

func escapedChar(c byte) (octalDigit bool, resolved byte) {
	switch c {
	case 'n':
		return false, 0x0A
	case 'r':
		return false, 0x0D
	case 't':
		return false, 0x09
	case 'b':
		return false, 0x08
	case 'f':
		return false, 0x0C
	case '(', ')', '\\':
		return false, c
	case '0', '1', '2', '3', '4', '5', '6', '7':
		return true, c
	}
	return false, c
}

// Unescape resolves the escape sequences of a literal-string's raw token
// text: backslash escapes, octal codes \ddd, and backslash+EOL line
// continuations (the escape is simply dropped).
func Unescape(s string) ([]byte, error) {
	var b bytes.Buffer
	esc := false
	octal := ""

	flushOctal := func() {
		if octal != "" {
			b.WriteByte(ByteForOctalString(octal))
			octal = ""
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]

		if octal != "" {
			if c >= '0' && c <= '7' && len(octal) < 3 {
				octal += string(c)
				continue
			}
			flushOctal()
		}

		if esc {
			esc = false
			if c == '\r' {
				// line continuation \<CR> or \<CR><LF>: consume the EOL, emit nothing.
				if i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
				continue
			}
			if c == '\n' {
				continue
			}
			isOctal, resolved := escapedChar(c)
			if isOctal {
				octal = string(c)
				continue
			}
			b.WriteByte(resolved)
			continue
		}

		if c == '\\' {
			esc = true
			continue
		}

		b.WriteByte(c)
	}
	flushOctal()

	return b.Bytes(), nil
}

// StringLiteral represents a literal-string object: "(...)".
type StringLiteral string

func (s StringLiteral) Clone() Object     { return s }
func (s StringLiteral) String() string    { return "(" + string(s) + ")" }
func (s StringLiteral) PDFString() string { return s.String() }
func (s StringLiteral) Value() string     { return string(s) }

// HexLiteral represents a hex-string object: "<...>".
type HexLiteral string

func NewHexLiteral(b []byte) HexLiteral {
	return HexLiteral(hex.EncodeToString(b))
}

func (h HexLiteral) Clone() Object     { return h }
func (h HexLiteral) String() string    { return "<" + string(h) + ">" }
func (h HexLiteral) PDFString() string { return h.String() }
func (h HexLiteral) Value() string     { return string(h) }

// Bytes decodes the hex digits, treating a trailing odd nibble as padded
// with a 0 (ISO 32000-1 7.3.4.3).
func (h HexLiteral) Bytes() ([]byte, error) {
	s := string(h)
	if len(s)%2 != 0 {
		s += "0"
	}
	return hex.DecodeString(s)
}
