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
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

func needsHexSequence(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return true
	}
	return c < '!' || c > '~'
}

// EncodeName escapes bytes outside '!'..'~', '#' itself and the delimiter
// characters ( ) < > [ ] { } / % as '#HH',
// the on-disk escaping rule for name serialization (ISO 32000-1 7.3.5).
func EncodeName(s string) string {
	replaced := false
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if needsHexSequence(ch) {
			if !replaced {
				sb.WriteString(s[:i])
			}
			sb.WriteByte('#')
			sb.WriteString(hex.EncodeToString([]byte{ch}))
			replaced = true
		} else if replaced {
			sb.WriteByte(ch)
		}
	}
	if !replaced {
		return s
	}
	return sb.String()
}

// DecodeName reverses '#HH' escapes found while lexing a name token.
func DecodeName(s string) (string, error) {
	replaced := false
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0 {
			return "", errors.New("pdfkit: a name may not contain a null byte")
		}
		if c != '#' {
			if replaced {
				sb.WriteByte(c)
			}
			continue
		}
		if len(s) < i+3 {
			return "", errors.New("pdfkit: not enough characters after '#' in name")
		}
		decoded, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return "", errors.Wrap(err, "pdfkit: invalid '#HH' escape in name")
		}
		if !replaced {
			sb.WriteString(s[:i])
			replaced = true
		}
		sb.Write(decoded)
		i += 2
	}
	if !replaced {
		return s, nil
	}
	return sb.String(), nil
}
