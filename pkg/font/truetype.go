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

package font

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/pkg/errors"
)

const (
	sfntVersionTrueType      = "\x00\x01\x00\x00"
	sfntVersionTrueTypeApple = "true"
	sfntVersionCFF           = "OTTO"
)

// ErrNotTrueType signals data that is neither a TrueType nor an OpenType
// font with TrueType outlines.
var ErrNotTrueType = errors.New("font: not a TrueType font")

// table is one sfnt table: its raw bytes plus directory metadata.
type table struct {
	off, length uint32
	padded      uint32
	data        []byte
}

func (t *table) uint16At(off int) uint16 {
	return binary.BigEndian.Uint16(t.data[off : off+2])
}

func (t *table) int16At(off int) int16 { return int16(t.uint16At(off)) }

func (t *table) uint32At(off int) uint32 {
	return binary.BigEndian.Uint32(t.data[off : off+4])
}

// fixed32At reads a 16.16 fixed-point value.
func (t *table) fixed32At(off int) float64 {
	return float64(int32(t.uint32At(off))) / 65536.0
}

// TrueType is a parsed font: the distilled header fields the PDF font
// machinery needs, plus the raw tables for subsetting.
type TrueType struct {
	PostscriptName  string
	UnitsPerEm      int
	Ascent          int
	Descent         int
	CapHeight       int
	LLx, LLy        float64
	URx, URy        float64
	ItalicAngle     float64
	FixedPitch      bool
	Bold            bool
	Protected       bool
	GlyphCount      int
	HorMetricsCount int

	// GlyphWidths holds one advance per glyph id, in font units.
	GlyphWidths []int

	// Chars maps Unicode code points to glyph ids, from the best
	// available cmap subtable.
	Chars map[uint32]uint16

	// ToUnicode is the inverse mapping used to derive the /ToUnicode CMap.
	ToUnicode map[uint16]uint32

	indexToLocFormat int
	tables           map[string]*table
}

// ParseTrueType parses an sfnt font from memory. CFF-flavored OpenType is
// rejected: the subsetter rewrites glyf/loca outlines only.
func ParseTrueType(b []byte) (*TrueType, error) {
	if len(b) < 12 {
		return nil, ErrNotTrueType
	}
	version := string(b[:4])
	if version == sfntVersionCFF {
		return nil, errors.Wrap(ErrNotTrueType, "CFF outlines not supported")
	}
	if version != sfntVersionTrueType && version != sfntVersionTrueTypeApple {
		return nil, ErrNotTrueType
	}

	tableCount := int(binary.BigEndian.Uint16(b[4:6]))
	if len(b) < 12+tableCount*16 {
		return nil, errors.Wrap(ErrNotTrueType, "truncated table directory")
	}

	f := &TrueType{
		tables:    map[string]*table{},
		Chars:     map[uint32]uint16{},
		ToUnicode: map[uint16]uint32{},
	}

	for i := 0; i < tableCount; i++ {
		rec := b[12+i*16 : 12+(i+1)*16]
		tag := string(rec[:4])
		off := binary.BigEndian.Uint32(rec[8:12])
		length := binary.BigEndian.Uint32(rec[12:16])
		if int64(off)+int64(length) > int64(len(b)) {
			return nil, errors.Wrapf(ErrNotTrueType, "table %q overruns font data", tag)
		}
		f.tables[tag] = &table{off: off, length: length, data: b[off : off+length]}
	}

	for _, tag := range []string{"head", "hhea", "maxp", "hmtx", "cmap"} {
		if f.tables[tag] == nil {
			return nil, errors.Wrapf(ErrNotTrueType, "missing required table %q", tag)
		}
	}

	if err := f.parseHead(); err != nil {
		return nil, err
	}
	if err := f.parseHhea(); err != nil {
		return nil, err
	}
	if err := f.parseMaxp(); err != nil {
		return nil, err
	}
	if err := f.parseHmtx(); err != nil {
		return nil, err
	}
	if err := f.parseCmap(); err != nil {
		return nil, err
	}
	f.parsePost()
	f.parseOS2()
	f.parseName()
	return f, nil
}

func (f *TrueType) parseHead() error {
	t := f.tables["head"]
	if t.length < 54 {
		return errors.Wrap(ErrNotTrueType, "short head table")
	}
	f.UnitsPerEm = int(t.uint16At(18))
	if f.UnitsPerEm == 0 {
		f.UnitsPerEm = 1000
	}
	scale := 1000.0 / float64(f.UnitsPerEm)
	f.LLx = float64(t.int16At(36)) * scale
	f.LLy = float64(t.int16At(38)) * scale
	f.URx = float64(t.int16At(40)) * scale
	f.URy = float64(t.int16At(42)) * scale
	f.indexToLocFormat = int(t.int16At(50))
	return nil
}

func (f *TrueType) parseHhea() error {
	t := f.tables["hhea"]
	if t.length < 36 {
		return errors.Wrap(ErrNotTrueType, "short hhea table")
	}
	f.HorMetricsCount = int(t.uint16At(34))
	return nil
}

func (f *TrueType) parseMaxp() error {
	t := f.tables["maxp"]
	if t.length < 6 {
		return errors.Wrap(ErrNotTrueType, "short maxp table")
	}
	f.GlyphCount = int(t.uint16At(4))
	return nil
}

func (f *TrueType) parseHmtx() error {
	t := f.tables["hmtx"]
	n := f.HorMetricsCount
	if n == 0 || int(t.length) < n*4 {
		return errors.Wrap(ErrNotTrueType, "short hmtx table")
	}
	f.GlyphWidths = make([]int, f.GlyphCount)
	last := 0
	for gid := 0; gid < f.GlyphCount; gid++ {
		if gid < n {
			last = int(t.uint16At(gid * 4))
		}
		// Monospace tail: glyphs past numberOfHMetrics reuse the last advance.
		f.GlyphWidths[gid] = last
	}
	return nil
}

// parseCmap picks the best subtable: (3,10) full Unicode, then (3,1) BMP,
// then any platform-0 table.
func (f *TrueType) parseCmap() error {
	t := f.tables["cmap"]
	if t.length < 4 {
		return errors.Wrap(ErrNotTrueType, "short cmap table")
	}
	count := int(t.uint16At(2))

	best := -1
	bestRank := -1
	for i := 0; i < count; i++ {
		rec := 4 + i*8
		if int(t.length) < rec+8 {
			break
		}
		platform := t.uint16At(rec)
		encoding := t.uint16At(rec + 2)
		var rank int
		switch {
		case platform == 3 && encoding == 10:
			rank = 3
		case platform == 3 && encoding == 1:
			rank = 2
		case platform == 0:
			rank = 1
		default:
			continue
		}
		if rank > bestRank {
			bestRank = rank
			best = int(t.uint32At(rec + 4))
		}
	}
	if best < 0 {
		return errors.Wrap(ErrNotTrueType, "no usable cmap subtable")
	}

	sub := &table{data: t.data[best:], length: t.length - uint32(best)}
	switch format := sub.uint16At(0); format {
	case 4:
		return f.parseCmapFormat4(sub)
	case 12:
		return f.parseCmapFormat12(sub)
	default:
		return errors.Wrapf(ErrNotTrueType, "cmap subtable format %d", format)
	}
}

func (f *TrueType) parseCmapFormat4(t *table) error {
	segCount := int(t.uint16At(6)) / 2
	endOff := 14
	startOff := endOff + segCount*2 + 2
	deltaOff := startOff + segCount*2
	rangeOff := deltaOff + segCount*2

	for seg := 0; seg < segCount; seg++ {
		end := uint32(t.uint16At(endOff + seg*2))
		start := uint32(t.uint16At(startOff + seg*2))
		delta := uint32(t.uint16At(deltaOff + seg*2))
		ro := int(t.uint16At(rangeOff + seg*2))

		if start == 0xFFFF && end == 0xFFFF {
			continue
		}
		for c := start; c <= end && c != 0x10000; c++ {
			var gid uint16
			if ro == 0 {
				gid = uint16(c + delta)
			} else {
				idx := rangeOff + seg*2 + ro + int(c-start)*2
				if int(t.length) < idx+2 {
					continue
				}
				gid = t.uint16At(idx)
				if gid != 0 {
					gid += uint16(delta)
				}
			}
			if gid != 0 {
				f.mapChar(c, gid)
			}
		}
	}
	return nil
}

func (f *TrueType) parseCmapFormat12(t *table) error {
	groups := int(t.uint32At(12))
	for g := 0; g < groups; g++ {
		rec := 16 + g*12
		if int(t.length) < rec+12 {
			break
		}
		start := t.uint32At(rec)
		end := t.uint32At(rec + 4)
		startGID := t.uint32At(rec + 8)
		for c := start; c <= end; c++ {
			f.mapChar(c, uint16(startGID+(c-start)))
		}
	}
	return nil
}

func (f *TrueType) mapChar(c uint32, gid uint16) {
	f.Chars[c] = gid
	if _, ok := f.ToUnicode[gid]; !ok {
		f.ToUnicode[gid] = c
	}
}

func (f *TrueType) parsePost() {
	t := f.tables["post"]
	if t == nil || t.length < 16 {
		return
	}
	f.ItalicAngle = t.fixed32At(4)
	f.FixedPitch = t.uint32At(12) != 0
}

func (f *TrueType) parseOS2() {
	t := f.tables["OS/2"]
	if t == nil || t.length < 78 {
		return
	}
	fsType := t.uint16At(8)
	f.Protected = fsType&0x0002 > 0
	weight := t.uint16At(4)
	f.Bold = weight >= 700
	f.Ascent = f.toGlyphSpace(int(t.int16At(68)))
	f.Descent = f.toGlyphSpace(int(t.int16At(70)))
	if t.length >= 90 {
		f.CapHeight = f.toGlyphSpace(int(t.int16At(88)))
	}
	if f.CapHeight == 0 {
		f.CapHeight = f.Ascent
	}
}

// parseName extracts the PostScript name, preferring the Windows Unicode
// record.
func (f *TrueType) parseName() {
	t := f.tables["name"]
	if t == nil || t.length < 6 {
		return
	}
	count := int(t.uint16At(2))
	stringOff := int(t.uint16At(4))

	for i := 0; i < count; i++ {
		rec := 6 + i*12
		if int(t.length) < rec+12 {
			break
		}
		platform := t.uint16At(rec)
		nameID := t.uint16At(rec + 6)
		length := int(t.uint16At(rec + 8))
		off := stringOff + int(t.uint16At(rec+10))
		if nameID != 6 || int(t.length) < off+length {
			continue
		}
		raw := t.data[off : off+length]
		if platform == 3 || platform == 0 {
			f.PostscriptName = utf16BEToString(raw)
		} else if f.PostscriptName == "" {
			f.PostscriptName = string(raw)
		}
	}
}

func utf16BEToString(bb []byte) string {
	u := make([]uint16, 0, len(bb)/2)
	for i := 0; i+1 < len(bb); i += 2 {
		u = append(u, binary.BigEndian.Uint16(bb[i:i+2]))
	}
	return string(utf16.Decode(u))
}

// toGlyphSpace scales a font-unit value into 1/1000 em glyph space.
func (f *TrueType) toGlyphSpace(v int) int {
	return v * 1000 / f.UnitsPerEm
}

// GlyphID resolves a rune to its glyph id, 0 (.notdef) when unmapped.
func (f *TrueType) GlyphID(r rune) uint16 { return f.Chars[uint32(r)] }

// GlyphWidth returns a glyph's advance in glyph-space units (1/1000 em).
func (f *TrueType) GlyphWidth(gid uint16) int {
	if int(gid) >= len(f.GlyphWidths) {
		return 0
	}
	return f.toGlyphSpace(f.GlyphWidths[gid])
}

// UsedGIDs computes the glyph ids needed to show s, always including
// .notdef (gid 0).
func (f *TrueType) UsedGIDs(s string) map[uint16]bool {
	used := map[uint16]bool{0: true}
	for _, r := range s {
		used[f.GlyphID(r)] = true
	}
	return used
}

// FlagsForDescriptor computes the /Flags bits of a FontDescriptor.
func (f *TrueType) FlagsForDescriptor() uint32 {
	var flags uint32 = 1 << 2 // symbolic
	if f.FixedPitch {
		flags |= 1
	}
	if f.ItalicAngle != 0 {
		flags |= 1 << 6
	}
	return flags
}

func checksum(b []byte) uint32 {
	var sum uint32
	for i := 0; i+3 < len(b); i += 4 {
		sum += binary.BigEndian.Uint32(b[i : i+4])
	}
	if rest := len(b) % 4; rest != 0 {
		var tail [4]byte
		copy(tail[:], b[len(b)-rest:])
		sum += binary.BigEndian.Uint32(tail[:])
	}
	return sum
}

func pad4(b []byte) []byte {
	if rest := len(b) % 4; rest != 0 {
		b = append(b, bytes.Repeat([]byte{0}, 4-rest)...)
	}
	return b
}
