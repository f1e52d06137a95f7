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
	"encoding/binary"
	"testing"
)

// buildTestFont assembles a minimal 4-glyph TrueType font:
//
//	gid 0: .notdef (simple)
//	gid 1: mapped from 'A' (simple)
//	gid 2: mapped from 'B' (simple)
//	gid 3: composite referencing gid 1
//
// Advance widths 500, 600, 700, 800.
func buildTestFont(t *testing.T) []byte {
	t.Helper()

	u16 := func(b []byte, off int, v uint16) { binary.BigEndian.PutUint16(b[off:], v) }
	u32 := func(b []byte, off int, v uint32) { binary.BigEndian.PutUint32(b[off:], v) }

	head := make([]byte, 54)
	u32(head, 12, 0x5F0F3CF5) // magic
	u16(head, 18, 1000)       // unitsPerEm
	u16(head, 36, 0)          // xMin
	u16(head, 40, 1000)       // xMax
	u16(head, 50, 1)          // indexToLocFormat: long
	hhea := make([]byte, 36)
	u16(hhea, 34, 4) // numberOfHMetrics

	maxp := make([]byte, 6)
	u32(maxp, 0, 0x00010000)
	u16(maxp, 4, 4) // numGlyphs

	hmtx := make([]byte, 16)
	for i, w := range []uint16{500, 600, 700, 800} {
		u16(hmtx, i*4, w)
	}

	// cmap: one (3,1) format-4 subtable mapping 'A'->1, 'B'->2.
	sub := make([]byte, 32)
	u16(sub, 0, 4) // format
	u16(sub, 2, uint16(len(sub)))
	u16(sub, 6, 4)       // segCountX2: 2 segments
	u16(sub, 14, 'B')    // endCode[0]
	u16(sub, 16, 0xFFFF) // endCode[1]
	// sub[18:20] reservedPad
	u16(sub, 20, 'A')    // startCode[0]
	u16(sub, 22, 0xFFFF) // startCode[1]
	u16(sub, 24, 0xFFC0) // idDelta[0]: 'A' -> gid 1
	u16(sub, 26, 1)      // idDelta[1]
	u16(sub, 28, 0)      // idRangeOffset[0]
	u16(sub, 30, 0)      // idRangeOffset[1]

	cmap := make([]byte, 12+len(sub))
	u16(cmap, 2, 1)  // one subtable
	u16(cmap, 4, 3)  // platform
	u16(cmap, 6, 1)  // encoding
	u32(cmap, 8, 12) // offset
	copy(cmap[12:], sub)

	simpleGlyph := func() []byte {
		g := make([]byte, 12)
		u16(g, 0, 1) // one contour
		return g
	}
	composite := make([]byte, 18)
	u16(composite, 0, 0xFFFF) // -1: composite
	u16(composite, 10, argsAreWords)
	u16(composite, 12, 1) // component gid 1

	var glyf []byte
	var locaOffsets []uint32
	for _, g := range [][]byte{simpleGlyph(), simpleGlyph(), simpleGlyph(), composite} {
		locaOffsets = append(locaOffsets, uint32(len(glyf)))
		glyf = append(glyf, g...)
	}
	locaOffsets = append(locaOffsets, uint32(len(glyf)))
	loca := make([]byte, 4*len(locaOffsets))
	for i, off := range locaOffsets {
		u32(loca, i*4, off)
	}

	name := make([]byte, 18+4)
	u16(name, 2, 1)  // count
	u16(name, 4, 18) // stringOffset
	u16(name, 6, 1)  // platform: mac
	u16(name, 12, 6) // nameID: PostScript name
	u16(name, 14, 4) // length
	u16(name, 16, 0) // offset
	copy(name[18:], "Test")

	post := make([]byte, 16)
	os2 := make([]byte, 78)
	u16(os2, 4, 400) // weight
	u16(os2, 68, 800)
	typoDescender := int16(-200)
	u16(os2, 70, uint16(typoDescender))

	tables := map[string][]byte{
		"head": head, "hhea": hhea, "maxp": maxp, "hmtx": hmtx,
		"cmap": cmap, "loca": loca, "glyf": glyf,
		"name": name, "post": post, "OS/2": os2,
	}
	b, err := assembleSfnt(tables)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParseTrueType(t *testing.T) {
	f, err := ParseTrueType(buildTestFont(t))
	if err != nil {
		t.Fatal(err)
	}

	if f.PostscriptName != "Test" {
		t.Errorf("PostscriptName = %q", f.PostscriptName)
	}
	if f.UnitsPerEm != 1000 || f.GlyphCount != 4 {
		t.Errorf("upem %d, glyphs %d", f.UnitsPerEm, f.GlyphCount)
	}
	if f.Ascent != 800 || f.Descent != -200 {
		t.Errorf("ascent %d descent %d", f.Ascent, f.Descent)
	}

	if gid := f.GlyphID('A'); gid != 1 {
		t.Errorf("GlyphID(A) = %d", gid)
	}
	if gid := f.GlyphID('B'); gid != 2 {
		t.Errorf("GlyphID(B) = %d", gid)
	}
	if gid := f.GlyphID('Z'); gid != 0 {
		t.Errorf("GlyphID(Z) = %d, want .notdef", gid)
	}

	for gid, want := range []int{500, 600, 700, 800} {
		if got := f.GlyphWidth(uint16(gid)); got != want {
			t.Errorf("width(%d) = %d, want %d", gid, got, want)
		}
	}
}

func TestSubsetPreservesGlyphIDs(t *testing.T) {
	f, err := ParseTrueType(buildTestFont(t))
	if err != nil {
		t.Fatal(err)
	}

	// Request only the composite glyph; closure must pull in component 1.
	used := map[uint16]bool{0: true, 3: true}
	sub, err := f.Subset(used)
	if err != nil {
		t.Fatal(err)
	}
	if !used[1] {
		t.Error("composite closure missed component glyph 1")
	}

	sf, err := ParseTrueType(sub)
	if err != nil {
		t.Fatalf("reparsing subset: %v", err)
	}
	if sf.GlyphCount != 4 {
		t.Errorf("subset glyph count = %d, ids not preserved", sf.GlyphCount)
	}

	// Widths stay indexed by original gid, even for dropped glyphs.
	for gid, want := range []int{500, 600, 700, 800} {
		if got := sf.GlyphWidth(uint16(gid)); got != want {
			t.Errorf("subset width(%d) = %d, want %d", gid, got, want)
		}
	}

	// Kept glyphs have outlines, dropped ones are empty.
	from, to, err := sf.glyphSpan(3)
	if err != nil || to <= from {
		t.Errorf("kept glyph 3 span [%d,%d) %v", from, to, err)
	}
	from, to, err = sf.glyphSpan(2)
	if err != nil || to != from {
		t.Errorf("dropped glyph 2 span [%d,%d) %v, want empty", from, to, err)
	}

	// The cmap rides along unchanged.
	if gid := sf.GlyphID('A'); gid != 1 {
		t.Errorf("subset GlyphID(A) = %d", gid)
	}
}

func TestUsedGIDs(t *testing.T) {
	f, err := ParseTrueType(buildTestFont(t))
	if err != nil {
		t.Fatal(err)
	}
	used := f.UsedGIDs("AB")
	for _, gid := range []uint16{0, 1, 2} {
		if !used[gid] {
			t.Errorf("gid %d missing", gid)
		}
	}
}

func TestRejectsCFF(t *testing.T) {
	if _, err := ParseTrueType([]byte("OTTO\x00\x00\x00\x00\x00\x00\x00\x00")); err == nil {
		t.Error("CFF-flavored font should be rejected")
	}
}
