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
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/mechiko/pdfkit/pkg/filter"
	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
	"github.com/rivo/uniseg"
)

// Operation is one graphics operator with its operands, as read off a
// decoded content stream. For BI inline images, Name is "BI", Operands
// holds the image dict as its single member and InlineData carries the
// raw (still filter-encoded) image bytes.
type Operation struct {
	Name       string
	Operands   types.Array
	InlineData []byte
}

// opPreviewWidth bounds the display width of one operand in debug dumps.
const opPreviewWidth = 40

func (op Operation) String() string {
	var sb strings.Builder
	for _, o := range op.Operands {
		s := o.String()
		if runewidth.StringWidth(s) > opPreviewWidth {
			trunc := runewidth.Truncate(s, opPreviewWidth, "")
			sb.WriteString(fmt.Sprintf("%s…(+%d glyphs) ", trunc, uniseg.GraphemeClusterCount(s)-uniseg.GraphemeClusterCount(trunc)))
		} else {
			sb.WriteString(s)
			sb.WriteByte(' ')
		}
	}
	sb.WriteString(op.Name)
	if op.InlineData != nil {
		sb.WriteString(fmt.Sprintf(" [%d bytes inline]", len(op.InlineData)))
	}
	return sb.String()
}

// ContentScanner tokenizes a page's decoded content-stream bytes into
// operations. It is the lexer for higher layers and attaches no meaning
// to the operators it emits.
type ContentScanner struct {
	p   *objParser
	pos int
	err error
}

// NewContentScanner scans the concatenated, fully decoded content bytes
// of a page.
func NewContentScanner(b []byte) *ContentScanner {
	return &ContentScanner{p: &objParser{buf: b}}
}

// Err returns the failure that stopped scanning, if any.
func (s *ContentScanner) Err() error { return s.err }

// Next returns the next operation, or nil at end of content or on error.
func (s *ContentScanner) Next() *Operation {
	var operands types.Array

	for {
		s.pos = skipWS(s.p.buf, s.pos)
		if s.pos >= len(s.p.buf) {
			if len(operands) > 0 {
				s.err = errors.Wrap(ErrUnexpectedEOF, "operands without operator at end of content")
			}
			return nil
		}

		c := s.p.buf[s.pos]
		if c == '/' || c == '(' || c == '<' || c == '[' || c == '+' || c == '-' || c == '.' || isDigit(c) {
			o, next, err := s.p.object(s.pos)
			if err != nil {
				s.err = err
				return nil
			}
			operands = append(operands, o)
			s.pos = next
			continue
		}

		tok, next := scanToken(s.p.buf, s.pos)
		if tok == "" {
			s.err = errors.Wrapf(ErrInvalidToken, "byte %#x in content at offset %d", c, s.pos)
			return nil
		}
		s.pos = next

		switch tok {
		case "true", "false", "null":
			o, _, _ := s.p.object(s.pos - len(tok))
			operands = append(operands, o)
			continue
		case "BI":
			op, err := s.inlineImage()
			if err != nil {
				s.err = err
				return nil
			}
			return op
		}

		return &Operation{Name: tok, Operands: operands}
	}
}

// inlineImage consumes "BI <pairs> ID <data> EI". The data length comes
// from the dict or the filter chain; an "EI" found inside encoded data is
// only accepted once the bytes before it decode through the chain.
func (s *ContentScanner) inlineImage() (*Operation, error) {
	d := types.NewDict()
	for {
		s.pos = skipWS(s.p.buf, s.pos)
		if s.pos >= len(s.p.buf) {
			return nil, errors.Wrap(ErrUnexpectedEOF, "in inline image dict")
		}
		if s.p.buf[s.pos] != '/' {
			tok, next := scanToken(s.p.buf, s.pos)
			if tok != "ID" {
				return nil, errors.Wrapf(ErrInvalidToken, "in inline image dict: %q", tok)
			}
			s.pos = next
			break
		}
		keyObj, next, err := s.p.name(s.pos)
		if err != nil {
			return nil, err
		}
		val, next2, err := s.p.object(next)
		if err != nil {
			return nil, err
		}
		d.Update(string(keyObj.(types.Name)), val)
		s.pos = next2
	}

	// Exactly one whitespace byte after ID, then raw data.
	if s.pos < len(s.p.buf) && isWhitespace(s.p.buf[s.pos]) {
		s.pos++
	}

	n, err := s.inlineImageLength(d)
	if err != nil {
		return nil, err
	}
	if s.pos+n > len(s.p.buf) {
		return nil, errors.Wrap(ErrUnexpectedEOF, "in inline image data")
	}
	data := s.p.buf[s.pos : s.pos+n]
	s.pos += n

	s.pos = skipWS(s.p.buf, s.pos)
	tok, next := scanToken(s.p.buf, s.pos)
	if tok != "EI" {
		return nil, errors.Wrapf(ErrInvalidToken, "inline image not terminated by EI, got %q", tok)
	}
	s.pos = next

	return &Operation{Name: "BI", Operands: types.Array{d}, InlineData: data}, nil
}

// inlineImageLength determines the encoded byte count of the data after
// ID: an explicit /L wins; otherwise the sole filter dictates (JPEG
// marker walk for DCT, textual terminators for the ASCII family); plain
// raster data computes from the image geometry; anything else scans for
// EI candidates and verifies each by running the filter chain.
func (s *ContentScanner) inlineImageLength(d types.Dict) (int, error) {
	if l := firstIntEntry(d, "L", "Length"); l != nil {
		return *l, nil
	}

	pipeline, err := filterPipeline(nil, d)
	if err != nil {
		return 0, err
	}
	rest := s.p.buf[s.pos:]

	if len(pipeline) == 0 {
		w := firstIntEntry(d, "W", "Width")
		h := firstIntEntry(d, "H", "Height")
		if w == nil || h == nil {
			return 0, errors.Wrap(ErrWrongType, "inline image without filter lacks /W or /H")
		}
		bpc := 8
		if b := firstIntEntry(d, "BPC", "BitsPerComponent"); b != nil {
			bpc = *b
		}
		comps := 1
		if cs := firstNameEntry(d, "CS", "ColorSpace"); cs != nil {
			switch *cs {
			case "RGB", "DeviceRGB", "CalRGB":
				comps = 3
			case "CMYK", "DeviceCMYK":
				comps = 4
			}
		}
		rowBytes := (*w*bpc*comps + 7) / 8
		return rowBytes * *h, nil
	}

	switch pipeline[0].Name {
	case filter.DCT:
		r := filter.LimitedDCTDecoder(bytes.NewReader(rest))
		n, err := io.Copy(io.Discard, r)
		if err != nil {
			return 0, errors.Wrap(err, "while sizing inline DCT image")
		}
		return int(n), nil

	case filter.ASCII85:
		i := bytes.Index(rest, []byte("~>"))
		if i < 0 {
			return 0, errors.Wrap(ErrUnexpectedEOF, "inline ASCII85 image without ~> terminator")
		}
		return i + 2, nil

	case filter.ASCIIHex:
		i := bytes.IndexByte(rest, '>')
		if i < 0 {
			return 0, errors.Wrap(ErrUnexpectedEOF, "inline ASCIIHex image without > terminator")
		}
		return i + 1, nil
	}

	// Binary filters without explicit length: try each whitespace-preceded
	// EI candidate and keep the first whose data survives the filter chain.
	for from := 0; ; {
		i := bytes.Index(rest[from:], []byte("EI"))
		if i < 0 {
			return 0, errors.Wrap(ErrUnexpectedEOF, "no verifiable EI terminator for inline image")
		}
		cand := from + i
		from = cand + 2
		if cand == 0 || !isWhitespace(rest[cand-1]) {
			continue
		}
		end := cand
		for end > 0 && isWhitespace(rest[end-1]) {
			end--
		}
		probe := types.StreamDict{Raw: rest[:end], FilterPipeline: pipeline}
		if err := decodeStream(&probe); err == nil {
			return end, nil
		}
	}
}

func firstIntEntry(d types.Dict, keys ...string) *int {
	for _, k := range keys {
		if v := d.IntEntry(k); v != nil {
			return v
		}
	}
	return nil
}

func firstNameEntry(d types.Dict, keys ...string) *string {
	for _, k := range keys {
		if v := d.NameEntry(k); v != nil {
			return v
		}
	}
	return nil
}

// ParseContent scans b to completion.
func ParseContent(b []byte) ([]Operation, error) {
	s := NewContentScanner(b)
	var ops []Operation
	for {
		op := s.Next()
		if op == nil {
			break
		}
		ops = append(ops, *op)
	}
	return ops, s.Err()
}

// DumpContent logs one line per operation for debugging.
func DumpContent(b []byte) {
	if !log.DebugEnabled() {
		return
	}
	ops, err := ParseContent(b)
	for _, op := range ops {
		log.Debug.Println(op.String())
	}
	if err != nil {
		log.Debug.Printf("content: %v", err)
	}
}

// TextShowStrings extracts the raw string operands of the text-show
// operators (Tj, ', ", TJ) in order. This is operator-level access, not
// text extraction: no encoding or positioning is applied.
func TextShowStrings(ops []Operation) []string {
	var out []string
	add := func(o types.Object) {
		switch t := o.(type) {
		case types.StringLiteral:
			if raw, err := types.Unescape(t.Value()); err == nil {
				out = append(out, string(raw))
			}
		case types.HexLiteral:
			if raw, err := t.Bytes(); err == nil {
				out = append(out, string(raw))
			}
		}
	}
	for _, op := range ops {
		switch op.Name {
		case "Tj", "'":
			if len(op.Operands) == 1 {
				add(op.Operands[0])
			}
		case `"`:
			if len(op.Operands) == 3 {
				add(op.Operands[2])
			}
		case "TJ":
			if len(op.Operands) == 1 {
				if a, ok := op.Operands[0].(types.Array); ok {
					for _, o := range a {
						add(o)
					}
				}
			}
		}
	}
	return out
}
