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
	"strconv"

	"github.com/mechiko/pdfkit/pkg/font"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// WriteIncremental appends the staged changes to a copy of the original
// bytes as an ISO 32000-1 7.5.6 incremental update: original bytes are a
// strict prefix of the output, changed and new objects follow, then a new
// xref (matching the original's classic-or-stream flavor) whose /Prev
// points at the original startxref offset.
func (d *Document) WriteIncremental(w io.Writer) error {
	if d.src == nil {
		return errors.New("pdf: incremental update requires a document read from a source")
	}
	if d.Reconstructed {
		return errors.New("pdf: incremental update on a reconstructed document would inherit a broken xref chain")
	}

	dirty := d.DirtyObjNrs()
	if len(dirty) == 0 {
		return errors.New("pdf: nothing staged for incremental update")
	}

	st := &writeState{
		sink:    newCountingSink(w, d.Conf.Eol),
		offsets: map[int]int64{},
		gens:    map[int]int{},
		enc:     d.enc,
	}
	s := st.sink

	// 1. Original bytes, verbatim, up to and including the final %%EOF.
	end, err := lastEOFOffset(d.src)
	if err != nil {
		return err
	}
	if err := copySource(s, d.src, end); err != nil {
		return err
	}
	if s.off > 0 {
		s.writeEOL()
	}

	// 2. Changed and added objects under their existing numbers.
	for _, nr := range dirty {
		e := d.Entries[nr]
		if e.Free {
			continue // freed entries appear in the xref only
		}
		if err := st.emitObject(d, nr, e.Generation, e.Object); err != nil {
			return errors.Wrapf(err, "while writing object %d", nr)
		}
	}

	// 3. New xref section covering exactly the changed entries.
	trailer := types.NewDict()
	for _, k := range []string{"Root", "Info", "Encrypt"} {
		if o, found := d.Trailer.Find(k); found {
			trailer.Insert(k, o)
		}
	}
	trailer.InsertInt("Size", maxInt(d.Size, st.maxNrInUse()+1))
	trailer.InsertInt("Prev", int(d.startXRef))

	id, err := d.generateID()
	if err != nil {
		return err
	}
	trailer.Update("ID", id)

	var startXRef int64
	if d.sawXRefStream {
		startXRef, err = st.emitIncrementalXRefStream(d, trailer, dirty)
	} else {
		startXRef, err = st.emitIncrementalClassicXRef(d, trailer, dirty)
	}
	if err != nil {
		return err
	}

	s.writeString("startxref")
	s.writeEOL()
	s.writeString(strconv.FormatInt(startXRef-d.hdrOffset, 10))
	s.writeEOL()
	s.writeString("%%EOF")
	s.writeEOL()

	if err := s.flush(); err != nil {
		return err
	}
	d.markClean()
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// incrementalRows builds the xref rows for exactly the dirty entries.
func (st *writeState) incrementalRows(d *Document, dirty []int) []xrefRow {
	var rows []xrefRow
	for _, nr := range dirty {
		e := d.Entries[nr]
		if e.Free {
			rows = append(rows, xrefRow{nr: nr, typ: 0, f2: 0, f3: int64(e.Generation)})
			continue
		}
		// Table offsets are header-relative, like every xref entry; they
		// only differ from output offsets when junk precedes the header.
		rows = append(rows, xrefRow{nr: nr, typ: 1, f2: st.offsets[nr] - d.hdrOffset, f3: int64(e.Generation)})
	}
	sortRows(rows)
	return rows
}

func (st *writeState) emitIncrementalClassicXRef(d *Document, trailer types.Dict, dirty []int) (int64, error) {
	s := st.sink
	start := s.off

	rows := st.incrementalRows(d, dirty)

	s.writeString("xref")
	s.writeEOL()
	for _, g := range groupRows(rows) {
		s.writef("%d %d", g[0].nr, len(g))
		s.writeEOL()
		for _, r := range g {
			if r.typ == 0 {
				s.writeString(fmt.Sprintf("%010d %05d f\r\n", r.f2, r.f3))
			} else {
				s.writeString(fmt.Sprintf("%010d %05d n\r\n", r.f2, r.f3))
			}
		}
	}

	s.writeString("trailer")
	s.writeEOL()
	s.writeString(trailer.PDFString())
	s.writeEOL()
	return start, s.err
}

func (st *writeState) emitIncrementalXRefStream(d *Document, trailer types.Dict, dirty []int) (int64, error) {
	s := st.sink
	start := s.off

	xrefNr := maxInt(d.Size, st.maxNrInUse()+1)
	rows := st.incrementalRows(d, dirty)
	rows = append(rows, xrefRow{nr: xrefNr, typ: 1, f2: start - d.hdrOffset, f3: 0})
	sortRows(rows)

	const w1, w2, w3 = 1, 4, 2
	var data []byte
	var index types.Array
	for _, g := range groupRows(rows) {
		index = append(index, types.Integer(g[0].nr), types.Integer(len(g)))
		for _, r := range g {
			data = append(data, byte(r.typ))
			data = append(data, byte(r.f2>>24), byte(r.f2>>16), byte(r.f2>>8), byte(r.f2))
			data = append(data, byte(r.f3>>8), byte(r.f3))
		}
	}

	extra := types.NewDict()
	extra.InsertName("Type", "XRef")
	extra.InsertInt("Size", xrefNr+1)
	extra.Insert("W", types.NewIntegerArray(w1, w2, w3))
	extra.Insert("Index", index)
	for _, k := range trailer.Keys() {
		if k != "Size" {
			extra.Insert(k, trailer.Get(k))
		}
	}

	sd, err := NewFlateStream(data, extra)
	if err != nil {
		return 0, err
	}

	s.writef("%d 0 obj", xrefNr)
	s.writeEOL()
	s.writeString(sd.Dict.PDFString())
	s.writeEOL()
	s.writeString("stream")
	s.writeString("\n")
	s.write(sd.Raw)
	s.writeEOL()
	s.writeString("endstream")
	s.writeEOL()
	s.writeString("endobj")
	s.writeEOL()
	return start, s.err
}

func copySource(s *countingSink, src ByteSource, end int64) error {
	const chunk = 1 << 20
	buf := make([]byte, chunk)
	for off := int64(0); off < end; {
		n := int64(chunk)
		if off+n > end {
			n = end - off
		}
		rd, err := src.ReadAt(buf[:n], off)
		if rd > 0 {
			s.write(buf[:rd])
			off += int64(rd)
		}
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "pdf: copying original bytes")
		}
		if rd == 0 {
			return errors.Wrap(ErrUnexpectedEOF, "while copying original bytes")
		}
	}
	return s.err
}

// OverlayPage hands a page to a caller for content-preserving decoration:
// it arrives initialized with the page's original content streams and a
// mutable copy of its resource dict; whatever the caller appends draws on
// top of the existing content.
type OverlayPage struct {
	Page *Page

	d       *Document
	content bytes.Buffer
	res     types.Dict
	fontSeq int
}

// Resources returns the page's mutable (already merged) resource dict.
func (op *OverlayPage) Resources() types.Dict { return op.res }

// AppendContent adds raw content-stream operators after the original
// content.
func (op *OverlayPage) AppendContent(b []byte) {
	op.content.Write(b)
}

// Appendf adds formatted content-stream operators.
func (op *OverlayPage) Appendf(format string, args ...interface{}) {
	fmt.Fprintf(&op.content, format, args...)
}

// EnsureStandardFont registers one of the built-in fonts under a fresh
// resource name and returns that name for use with Tf.
func (op *OverlayPage) EnsureStandardFont(baseFont string) (string, error) {
	if !font.IsStandardFont(baseFont) {
		return "", errors.Errorf("pdf: %q is not one of the standard fonts", baseFont)
	}

	fd := types.NewDict()
	fd.InsertName("Type", "Font")
	fd.InsertName("Subtype", "Type1")
	fd.InsertName("BaseFont", baseFont)
	if baseFont != "Symbol" && baseFont != "ZapfDingbats" {
		fd.InsertName("Encoding", "WinAnsiEncoding")
	}
	ref := op.d.Add(fd)

	fonts, found := op.res.Find("Font")
	var fontDict types.Dict
	if fdd, ok := fonts.(types.Dict); found && ok {
		fontDict = fdd
	} else {
		fontDict = types.NewDict()
		op.res.Update("Font", fontDict)
	}

	for {
		op.fontSeq++
		name := fmt.Sprintf("F%d", op.fontSeq)
		if _, exists := fontDict.Find(name); !exists {
			fontDict.Update(name, ref)
			op.res.Update("Font", fontDict)
			return name, nil
		}
	}
}

// DrawText appends a minimal BT/Tf/Td/Tj/ET block showing s at (x, y)
// with the given standard font and size.
func (op *OverlayPage) DrawText(s, baseFont string, size float64, x, y float64) error {
	name, err := op.EnsureStandardFont(baseFont)
	if err != nil {
		return err
	}
	esc, err := types.Escape(s)
	if err != nil {
		return err
	}
	op.Appendf("BT /%s %s Tf %s %s Td (%s) Tj ET\n",
		name, types.Float(size).PDFString(), types.Float(x).PDFString(), types.Float(y).PDFString(), *esc)
	return nil
}

// WriteIncrementalWithOverlay invokes fn once per listed page (1-based; nil
// means every page), each time with that page pre-loaded with its original
// content and resources. Pages the closure decorated are re-emitted, along
// with the new content streams and resources, as one incremental update.
func (d *Document) WriteIncrementalWithOverlay(w io.Writer, pageNrs []int, fn func(*OverlayPage) error) error {
	if pageNrs == nil {
		n, err := d.PageCount()
		if err != nil {
			return err
		}
		for i := 1; i <= n; i++ {
			pageNrs = append(pageNrs, i)
		}
	}

	for _, nr := range pageNrs {
		p, err := d.Page(nr)
		if err != nil {
			return err
		}

		res := types.NewDict()
		if p.Resources.Len() > 0 {
			res = p.Resources.Clone().(types.Dict)
		}

		op := &OverlayPage{Page: p, d: d, res: res}
		if err := fn(op); err != nil {
			return errors.Wrapf(err, "while overlaying page %d", nr)
		}
		if op.content.Len() == 0 {
			continue
		}

		if err := d.applyOverlay(p, op); err != nil {
			return errors.Wrapf(err, "while overlaying page %d", nr)
		}
	}

	return d.WriteIncremental(w)
}

// applyOverlay rebuilds the page's /Contents as
//
//	[ "q" , original streams... , "Q" + appended ops ]
//
// preserving the original stream objects bit-exact while isolating their
// graphics state from the overlay's.
func (d *Document) applyOverlay(p *Page, op *OverlayPage) error {
	pre, err := NewFlateStream([]byte("q\n"), types.NewDict())
	if err != nil {
		return err
	}
	preRef := d.Add(pre)

	post, err := NewFlateStream(append([]byte("Q\n"), op.content.Bytes()...), types.NewDict())
	if err != nil {
		return err
	}
	postRef := d.Add(post)

	contents := types.Array{preRef}
	for _, ir := range p.Contents {
		contents = append(contents, ir)
	}
	contents = append(contents, postRef)

	pageDict := p.Dict.Clone().(types.Dict)
	pageDict.Update("Contents", contents)
	// Resources materialize on the leaf, whether they were inherited or not.
	pageDict.Update("Resources", op.res)

	if err := d.Replace(p.Ref, pageDict); err != nil {
		return err
	}
	d.InvalidatePageIndex()
	return nil
}
