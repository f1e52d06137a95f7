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
	"fmt"
	"sort"

	"github.com/mechiko/pdfkit/pkg/types"
)

// SubsetTagFor derives the 6-uppercase-letter subset prefix from the used
// glyph set, deterministic for reproducible output.
func SubsetTagFor(used map[uint16]bool) string {
	var h uint32 = 2166136261
	for _, gid := range sortedGIDs(used) {
		h = (h ^ uint32(gid)) * 16777619
	}
	tag := make([]byte, 6)
	for i := range tag {
		tag[i] = byte('A' + h%26)
		h /= 26
	}
	return string(tag)
}

func sortedGIDs(used map[uint16]bool) []uint16 {
	gids := make([]uint16, 0, len(used))
	for gid := range used {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return gids
}

// CIDWidths builds the /W array of a CIDFontType2 for the used glyphs.
// With Identity-H and preserved glyph ids, CID == GID, so widths index
// straight into the source font's advance table — the invariant the
// subsetter maintains.
func (f *TrueType) CIDWidths(used map[uint16]bool) types.Array {
	gids := sortedGIDs(used)

	var w types.Array
	for i := 0; i < len(gids); {
		j := i + 1
		for j < len(gids) && gids[j] == gids[j-1]+1 {
			j++
		}
		run := types.Array{}
		for _, gid := range gids[i:j] {
			run = append(run, types.Integer(f.GlyphWidth(gid)))
		}
		w = append(w, types.Integer(gids[i]), run)
		i = j
	}
	return w
}

// ToUnicodeCMap derives the CMap stream content mapping the used glyph
// ids back to Unicode, for text extraction from the subset font.
func (f *TrueType) ToUnicodeCMap(used map[uint16]bool) []byte {
	var b bytes.Buffer
	b.WriteString(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`)

	gids := sortedGIDs(used)
	for i := 0; i < len(gids); i += 100 {
		end := i + 100
		if end > len(gids) {
			end = len(gids)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-i)
		for _, gid := range gids[i:end] {
			uni, ok := f.ToUnicode[gid]
			if !ok {
				uni = 0xFFFD
			}
			if uni > 0xFFFF {
				// Surrogate pair for supplementary-plane characters.
				u := uni - 0x10000
				fmt.Fprintf(&b, "<%04X> <%04X%04X>\n", gid, 0xD800+(u>>10), 0xDC00+(u&0x3FF))
			} else {
				fmt.Fprintf(&b, "<%04X> <%04X>\n", gid, uni)
			}
		}
		b.WriteString("endbfchar\n")
	}

	b.WriteString(`endcmap
CMapName currentdict /CMap defineresource pop
end
end
`)
	return b.Bytes()
}

// CIDSetBitmap builds the /CIDSet bitmap marking the glyph ids present in
// the subset.
func (f *TrueType) CIDSetBitmap(used map[uint16]bool) []byte {
	b := make([]byte, (f.GlyphCount+7)/8)
	for gid := range used {
		if int(gid) < f.GlyphCount {
			b[gid/8] |= 1 << (7 - gid%8)
		}
	}
	return b
}

// DescriptorDict builds the FontDescriptor for a subset, minus the
// /FontFile2 entry, which the caller wires to the embedded stream.
func (f *TrueType) DescriptorDict(baseFont string) types.Dict {
	d := types.NewDict()
	d.InsertName("Type", "FontDescriptor")
	d.InsertName("FontName", baseFont)
	d.InsertInt("Flags", int(f.FlagsForDescriptor()))
	d.Insert("FontBBox", types.NewNumberArray(f.LLx, f.LLy, f.URx, f.URy))
	d.InsertFloat("ItalicAngle", f.ItalicAngle)
	d.InsertInt("Ascent", f.Ascent)
	d.InsertInt("Descent", f.Descent)
	d.InsertInt("CapHeight", f.CapHeight)
	d.InsertInt("StemV", 80)
	return d
}

// CIDFontDict builds the CIDFontType2 descendant dict, minus the
// /FontDescriptor reference.
func (f *TrueType) CIDFontDict(baseFont string, used map[uint16]bool) types.Dict {
	sysInfo := types.NewDict()
	sysInfo.InsertString("Registry", "Adobe")
	sysInfo.InsertString("Ordering", "Identity")
	sysInfo.InsertInt("Supplement", 0)

	d := types.NewDict()
	d.InsertName("Type", "Font")
	d.InsertName("Subtype", "CIDFontType2")
	d.InsertName("BaseFont", baseFont)
	d.Insert("CIDSystemInfo", sysInfo)
	d.InsertInt("DW", 1000)
	d.Insert("W", f.CIDWidths(used))
	// CID == GID under the preserved-id strategy.
	d.InsertName("CIDToGIDMap", "Identity")
	return d
}

// Type0Dict builds the top-level composite font dict, minus the
// /DescendantFonts and /ToUnicode references.
func Type0Dict(baseFont string) types.Dict {
	d := types.NewDict()
	d.InsertName("Type", "Font")
	d.InsertName("Subtype", "Type0")
	d.InsertName("BaseFont", baseFont)
	d.InsertName("Encoding", "Identity-H")
	return d
}

// EncodeText maps s to the 2-byte-per-glyph Identity-H string shown by Tj
// for a Type0 font built from f.
func (f *TrueType) EncodeText(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for _, r := range s {
		gid := f.GlyphID(r)
		out = append(out, byte(gid>>8), byte(gid))
	}
	return out
}
