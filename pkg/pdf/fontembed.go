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

	"github.com/mechiko/pdfkit/pkg/font"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// EmbeddedFont hands back what a caller needs to draw with a font it just
// embedded: the font dict reference for the resource dict, and the parsed
// font for Identity-H text encoding and width math.
type EmbeddedFont struct {
	Ref      types.IndirectRef
	Font     *font.TrueType
	BaseFont string
}

// EmbedTrueTypeSubset parses ttf, subsets it to the glyphs text needs
// (closure included, glyph ids preserved), and registers the complete
// Type0 font object graph: font file, descriptor, CIDSet, descendant
// CIDFontType2, ToUnicode CMap, and the top-level composite dict.
func (d *Document) EmbedTrueTypeSubset(ttf []byte, text string) (*EmbeddedFont, error) {
	f, err := font.ParseTrueType(ttf)
	if err != nil {
		return nil, err
	}
	if f.Protected {
		return nil, errors.Errorf("pdf: font %s forbids embedding", f.PostscriptName)
	}

	used := f.UsedGIDs(text)
	sub, err := f.Subset(used)
	if err != nil {
		return nil, errors.Wrapf(err, "while subsetting %s", f.PostscriptName)
	}

	psName := f.PostscriptName
	if psName == "" {
		psName = "Embedded"
	}
	baseFont := font.SubsetTagFor(used) + "+" + psName

	ffExtra := types.NewDict()
	ffExtra.InsertInt("Length1", len(sub))
	fontFile, err := NewFlateStream(sub, ffExtra)
	if err != nil {
		return nil, err
	}
	fontFileRef := d.Add(fontFile)

	descriptor := f.DescriptorDict(baseFont)
	descriptor.Insert("FontFile2", fontFileRef)

	cidSet, err := NewFlateStream(f.CIDSetBitmap(used), types.NewDict())
	if err != nil {
		return nil, err
	}
	descriptor.Insert("CIDSet", d.Add(cidSet))
	descriptorRef := d.Add(descriptor)

	cidFont := f.CIDFontDict(baseFont, used)
	cidFont.Insert("FontDescriptor", descriptorRef)
	cidFontRef := d.Add(cidFont)

	toUni, err := NewFlateStream(f.ToUnicodeCMap(used), types.NewDict())
	if err != nil {
		return nil, err
	}
	toUniRef := d.Add(toUni)

	type0 := font.Type0Dict(baseFont)
	type0.Insert("DescendantFonts", types.Array{cidFontRef})
	type0.Insert("ToUnicode", toUniRef)
	ref := d.Add(type0)

	return &EmbeddedFont{Ref: ref, Font: f, BaseFont: baseFont}, nil
}

// AddFont registers an already-built font object under a fresh resource
// name on the page.
func (pb *PageBuilder) AddFont(ref types.IndirectRef) string {
	var fonts types.Dict
	if f, ok := pb.res.Find("Font"); ok {
		fonts = f.(types.Dict)
	} else {
		fonts = types.NewDict()
	}
	pb.fontSeq++
	name := fmt.Sprintf("F%d", pb.fontSeq)
	fonts.Update(name, ref)
	pb.res.Update("Font", fonts)
	return name
}

// DrawUnicodeText shows s at (x, y) using an embedded Type0 font,
// encoding the string as Identity-H glyph indices.
func (pb *PageBuilder) DrawUnicodeText(s string, ef *EmbeddedFont, size, x, y float64) {
	name := pb.AddFont(ef.Ref)
	enc := ef.Font.EncodeText(s)
	pb.AddContentf("BT /%s %s Tf %s %s Td <", name,
		types.Float(size).PDFString(), types.Float(x).PDFString(), types.Float(y).PDFString())
	for _, b := range enc {
		pb.AddContentf("%02X", b)
	}
	pb.AddContent([]byte("> Tj ET\n"))
}
