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

	"github.com/pkg/errors"
)

// Composite-glyph component flags.
const (
	argsAreWords   = 1 << 0
	weHaveAScale   = 1 << 3
	moreComponents = 1 << 5
	weHaveXYScale  = 1 << 6
	weHaveTwoByTwo = 1 << 7
)

// glyphSpan returns the [from, to) byte range of gid inside glyf.
func (f *TrueType) glyphSpan(gid int) (int, int, error) {
	loca := f.tables["loca"]
	if loca == nil {
		return 0, 0, errors.Wrap(ErrNotTrueType, "missing loca table")
	}
	if f.indexToLocFormat == 0 {
		if int(loca.length) < (gid+2)*2 {
			return 0, 0, errors.Wrap(ErrNotTrueType, "loca overrun")
		}
		return int(loca.uint16At(gid*2)) * 2, int(loca.uint16At((gid+1)*2)) * 2, nil
	}
	if int(loca.length) < (gid+2)*4 {
		return 0, 0, errors.Wrap(ErrNotTrueType, "loca overrun")
	}
	return int(loca.uint32At(gid * 4)), int(loca.uint32At((gid + 1) * 4)), nil
}

// closeOverComposites grows used until every composite component glyph is
// included. Component references live in the glyf data of composite
// glyphs (numberOfContours < 0).
func (f *TrueType) closeOverComposites(used map[uint16]bool) error {
	glyf := f.tables["glyf"]
	if glyf == nil {
		return errors.Wrap(ErrNotTrueType, "missing glyf table")
	}

	queue := make([]uint16, 0, len(used))
	for gid := range used {
		queue = append(queue, gid)
	}

	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]

		from, to, err := f.glyphSpan(int(gid))
		if err != nil {
			return err
		}
		if to <= from || to-from < 10 {
			continue // empty or malformed glyph
		}
		b := glyf.data[from:to]
		if int16(binary.BigEndian.Uint16(b[:2])) >= 0 {
			continue // simple glyph
		}

		// Composite: walk the component records.
		for off := 10; off+4 <= len(b); {
			flags := binary.BigEndian.Uint16(b[off : off+2])
			comp := binary.BigEndian.Uint16(b[off+2 : off+4])
			off += 4

			if !used[comp] {
				used[comp] = true
				queue = append(queue, comp)
			}

			if flags&argsAreWords != 0 {
				off += 4
			} else {
				off += 2
			}
			switch {
			case flags&weHaveAScale != 0:
				off += 2
			case flags&weHaveXYScale != 0:
				off += 4
			case flags&weHaveTwoByTwo != 0:
				off += 8
			}
			if flags&moreComponents == 0 {
				break
			}
		}
	}
	return nil
}

// Subset rewrites the font to contain outline data for exactly the used
// glyphs (plus their composite closure), preserving glyph ids: the glyf
// entries of dropped glyphs shrink to zero length while every id keeps
// its slot in loca and hmtx. Width lookups downstream therefore keep
// working against source-font glyph ids.
func (f *TrueType) Subset(used map[uint16]bool) ([]byte, error) {
	if err := f.closeOverComposites(used); err != nil {
		return nil, err
	}

	glyf := f.tables["glyf"]
	if glyf == nil {
		return nil, errors.Wrap(ErrNotTrueType, "missing glyf table")
	}

	// Rebuild glyf + loca (long format, one slot per original gid).
	var newGlyf []byte
	newLoca := make([]byte, 0, (f.GlyphCount+1)*4)
	put32 := func(v uint32) { newLoca = binary.BigEndian.AppendUint32(newLoca, v) }

	for gid := 0; gid < f.GlyphCount; gid++ {
		put32(uint32(len(newGlyf)))
		if !used[uint16(gid)] {
			continue
		}
		from, to, err := f.glyphSpan(gid)
		if err != nil {
			return nil, err
		}
		if to > from && to <= len(glyf.data) {
			newGlyf = append(newGlyf, glyf.data[from:to]...)
			newGlyf = pad4(newGlyf)
		}
	}
	put32(uint32(len(newGlyf)))

	// Full long hmtx so advance widths stay indexed by original gid.
	newHmtx := make([]byte, 0, f.GlyphCount*4)
	for gid := 0; gid < f.GlyphCount; gid++ {
		newHmtx = binary.BigEndian.AppendUint16(newHmtx, uint16(f.GlyphWidths[gid]))
		newHmtx = binary.BigEndian.AppendUint16(newHmtx, 0) // lsb
	}

	// head: force long loca, zero the checksum adjustment.
	head := append([]byte{}, f.tables["head"].data...)
	binary.BigEndian.PutUint32(head[8:12], 0)
	binary.BigEndian.PutUint16(head[50:52], 1)

	// hhea: numberOfHMetrics now covers every glyph.
	hhea := append([]byte{}, f.tables["hhea"].data...)
	binary.BigEndian.PutUint16(hhea[34:36], uint16(f.GlyphCount))

	out := map[string][]byte{
		"head": head,
		"hhea": hhea,
		"maxp": append([]byte{}, f.tables["maxp"].data...),
		"hmtx": newHmtx,
		"loca": newLoca,
		"glyf": newGlyf,
	}
	for _, tag := range []string{"cmap", "cvt ", "fpgm", "prep", "name", "OS/2", "post"} {
		if t := f.tables[tag]; t != nil {
			out[tag] = t.data
		}
	}

	return assembleSfnt(out)
}

// assembleSfnt lays tables out behind a fresh directory and fixes the head
// checksum adjustment.
func assembleSfnt(tables map[string][]byte) ([]byte, error) {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sortStrings(tags)

	n := len(tags)
	searchRange, entrySelector := 16, 0
	for searchRange*2 <= n*16 {
		searchRange *= 2
		entrySelector++
	}

	var buf bytes.Buffer
	buf.WriteString(sfntVersionTrueType)
	bw16 := func(v uint16) { binary.Write(&buf, binary.BigEndian, v) }
	bw32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }
	bw16(uint16(n))
	bw16(uint16(searchRange))
	bw16(uint16(entrySelector))
	bw16(uint16(n*16 - searchRange))

	off := uint32(12 + n*16)
	type placed struct {
		tag  string
		off  uint32
		len  uint32
		data []byte
	}
	var layout []placed
	for _, tag := range tags {
		data := tables[tag]
		layout = append(layout, placed{tag: tag, off: off, len: uint32(len(data)), data: data})
		off += uint32(len(pad4(append([]byte{}, data...))))
	}

	for _, p := range layout {
		buf.WriteString(p.tag)
		bw32(checksum(p.data))
		bw32(p.off)
		bw32(p.len)
	}
	headOff := -1
	for _, p := range layout {
		if p.tag == "head" {
			headOff = int(p.off)
		}
		buf.Write(pad4(append([]byte{}, p.data...)))
	}

	font := buf.Bytes()
	if headOff >= 0 {
		adjust := 0xB1B0AFBA - checksum(font)
		binary.BigEndian.PutUint32(font[headOff+8:headOff+12], adjust)
	}
	return font, nil
}

func sortStrings(a []string) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
