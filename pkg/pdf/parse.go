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
	"fmt"
	"strconv"
	"strings"

	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// objParser builds typed objects from a byte buffer. base is the file
// offset of buf[0] so warnings and errors can report absolute positions.
type objParser struct {
	buf      []byte
	base     int64
	warnings []Warning
}

func (p *objParser) warnf(i int, format string, args ...interface{}) {
	w := Warning{Offset: p.base + int64(i), Msg: fmt.Sprintf(format, args...)}
	p.warnings = append(p.warnings, w)
	if log.DebugEnabled() {
		log.Debug.Printf("parse: %s", w)
	}
}

// object consumes exactly one object starting at or after i and returns it
// with the position one past its last byte.
func (p *objParser) object(i int) (types.Object, int, error) {
	i = skipWS(p.buf, i)
	if i >= len(p.buf) {
		return nil, i, errors.Wrapf(ErrUnexpectedEOF, "at offset %d", p.base+int64(i))
	}

	switch c := p.buf[i]; {

	case c == '<':
		if i+1 < len(p.buf) && p.buf[i+1] == '<' {
			return p.dict(i)
		}
		return p.hexLiteral(i)

	case c == '[':
		return p.array(i)

	case c == '(':
		return p.stringLiteral(i)

	case c == '/':
		return p.name(i)

	case c == '+' || c == '-' || c == '.' || isDigit(c):
		return p.numberOrRef(i)

	case c == ']' || c == '>' || c == ')' || c == '{' || c == '}':
		return nil, i, errors.Wrapf(ErrInvalidToken, "unexpected %q at offset %d", c, p.base+int64(i))
	}

	tok, j := scanToken(p.buf, i)
	switch tok {
	case "true":
		return types.Boolean(true), j, nil
	case "false":
		return types.Boolean(false), j, nil
	case "null":
		return types.Null{}, j, nil
	}
	return nil, i, errors.Wrapf(ErrInvalidToken, "%q at offset %d", tok, p.base+int64(i))
}

// numberOrRef parses an integer, real, or "N G R" indirect reference.
// "12 0 R" is a reference iff an integer, an integer and the keyword R
// follow across whitespace only; anything else rolls back to the first
// number (one-token lookahead over the saved position).
func (p *objParser) numberOrRef(i int) (types.Object, int, error) {
	tok, j := scanToken(p.buf, i)
	o, err := parseNumber(tok)
	if err != nil {
		return nil, i, errors.Wrapf(err, "at offset %d", p.base+int64(i))
	}

	n, isInt := o.(types.Integer)
	if !isInt || n < 0 {
		return o, j, nil
	}

	k := skipWS(p.buf, j)
	if k >= len(p.buf) || !isDigit(p.buf[k]) {
		return o, j, nil
	}
	genTok, k2 := scanToken(p.buf, k)
	gen, err := strconv.Atoi(genTok)
	if err != nil || gen < 0 {
		return o, j, nil
	}
	k3 := skipWS(p.buf, k2)
	if rTok, k4 := scanToken(p.buf, k3); rTok == "R" {
		return *types.NewIndirectRef(int(n), gen), k4, nil
	}
	return o, j, nil
}

// parseNumber converts a bare numeric token. Reals permit a leading sign
// and a decimal point with digits missing on one side, but not both, and
// no exponent.
func parseNumber(tok string) (types.Object, error) {
	if tok == "" {
		return nil, ErrCorruptNumber
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return types.Integer(i), nil
	}
	body := tok
	if body[0] == '+' || body[0] == '-' {
		body = body[1:]
	}
	if body == "." || body == "" || strings.Count(body, ".") != 1 {
		return nil, errors.Wrapf(ErrCorruptNumber, "%q", tok)
	}
	for i := 0; i < len(body); i++ {
		if body[i] != '.' && !isDigit(body[i]) {
			return nil, errors.Wrapf(ErrCorruptNumber, "%q", tok)
		}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptNumber, "%q", tok)
	}
	return types.Float(f), nil
}

func (p *objParser) name(i int) (types.Object, int, error) {
	j := i + 1
	for j < len(p.buf) && isRegular(p.buf[j]) {
		j++
	}
	s, err := types.DecodeName(string(p.buf[i+1 : j]))
	if err != nil {
		return nil, i, errors.Wrapf(ErrCorruptName, "at offset %d: %v", p.base+int64(i), err)
	}
	return types.Name(s), j, nil
}

func (p *objParser) array(i int) (types.Object, int, error) {
	a := types.Array{}
	i++ // [
	for {
		i = skipWS(p.buf, i)
		if i >= len(p.buf) {
			return nil, i, errors.Wrapf(ErrArrayNotTerminated, "at offset %d", p.base+int64(i))
		}
		if p.buf[i] == ']' {
			return a, i + 1, nil
		}
		o, j, err := p.object(i)
		if err != nil {
			return nil, i, err
		}
		a = append(a, o)
		i = j
	}
}

// dict parses << … >>. A duplicate key keeps the last occurrence and is
// recorded as a recoverable warning. A dict left open at the end of the
// buffer fails with ErrDictNotTerminated; it is not closed there, whatever
// the configuration.
func (p *objParser) dict(i int) (types.Object, int, error) {
	d := types.NewDict()
	i += 2 // <<
	for {
		i = skipWS(p.buf, i)
		if i >= len(p.buf) {
			return nil, i, errors.Wrapf(ErrDictNotTerminated, "at offset %d", p.base+int64(i))
		}
		if p.buf[i] == '>' {
			if i+1 < len(p.buf) && p.buf[i+1] == '>' {
				return d, i + 2, nil
			}
			return nil, i, errors.Wrapf(ErrDictNotTerminated, "single '>' at offset %d", p.base+int64(i))
		}
		if p.buf[i] != '/' {
			return nil, i, errors.Wrapf(ErrInvalidToken, "dict key must be a name, got %q at offset %d", p.buf[i], p.base+int64(i))
		}
		keyObj, j, err := p.name(i)
		if err != nil {
			return nil, i, err
		}
		key := string(keyObj.(types.Name))
		val, k, err := p.object(j)
		if err != nil {
			return nil, i, err
		}
		if !d.Insert(key, val) {
			d.Update(key, val)
			p.warnf(i, "duplicate dict key /%s, keeping last value", key)
		}
		i = k
	}
}

func (p *objParser) stringLiteral(i int) (types.Object, int, error) {
	depth := 0
	j := i
	for ; j < len(p.buf); j++ {
		switch p.buf[j] {
		case '\\':
			j++ // skip escaped byte, whatever it is
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				// The literal keeps its escaped source text; consumers
				// unescape via types.StringLiteralToString. Validating the
				// escapes here keeps garbage from surviving until use.
				raw := string(p.buf[i+1 : j])
				if _, err := types.Unescape(raw); err != nil {
					return nil, i, errors.Wrapf(ErrInvalidEscape, "at offset %d: %v", p.base+int64(i), err)
				}
				return types.StringLiteral(raw), j + 1, nil
			}
		}
	}
	return nil, i, errors.Wrapf(ErrStringNotTerminated, "at offset %d", p.base+int64(i))
}

func (p *objParser) hexLiteral(i int) (types.Object, int, error) {
	j := i + 1
	var sb strings.Builder
	for ; j < len(p.buf); j++ {
		c := p.buf[j]
		if c == '>' {
			return types.HexLiteral(sb.String()), j + 1, nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHexDigit(c) {
			return nil, i, errors.Wrapf(ErrInvalidToken, "bad hex digit %q at offset %d", c, p.base+int64(j))
		}
		sb.WriteByte(c)
	}
	return nil, i, errors.Wrapf(ErrHexNotTerminated, "at offset %d", p.base+int64(i))
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ParseObject parses exactly one object from buf and reports how many
// bytes it consumed, for callers that tokenize standalone fragments
// (object streams, appearance strings, test fixtures).
func ParseObject(buf []byte) (types.Object, int, error) {
	p := &objParser{buf: buf}
	return p.object(0)
}
