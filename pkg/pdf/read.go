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
	"regexp"
	"strconv"

	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// Open reads the document structure behind src: header, xref chain (or a
// reconstruction scan when the chain is unreadable and the configuration
// is tolerant), trailer, and encryption setup. No page is decoded yet;
// objects materialize on first dereference.
func Open(src ByteSource, conf *Configuration, passwords ...string) (*Document, error) {
	if conf == nil {
		conf = NewDefaultConfiguration()
	}

	d := &Document{
		Conf:        conf,
		ObjectTable: newObjectTable(),
		src:         src,
	}

	v, hdrOff, err := scanHeader(src)
	if err != nil {
		return nil, errors.Wrap(err, "while opening document")
	}
	d.HeaderVersion = v
	d.hdrOffset = hdrOff

	if err := d.readXRef(); err != nil {
		if conf.Strict {
			return nil, errors.Wrap(err, "while opening document")
		}
		log.Info.Printf("open: xref unreadable (%v), entering reconstruction mode", err)
		if err2 := d.reconstruct(); err2 != nil {
			// The original failure is the informative one.
			return nil, errors.Wrapf(err, "while opening document (reconstruction also failed: %v)", err2)
		}
		d.warnf(0, "xref chain unreadable, document index reconstructed by full scan")
	}

	if err := d.setupDecryption(passwords...); err != nil {
		return nil, errors.Wrap(err, "while opening document")
	}

	if d.Root == nil {
		if err := d.findRootInReconstructedTable(); err != nil {
			return nil, errors.Wrap(ErrMissingRoot, "while opening document")
		}
	}

	return d, nil
}

// OpenBytes opens an in-memory PDF.
func OpenBytes(b []byte, conf *Configuration, passwords ...string) (*Document, error) {
	return Open(MemSource(b), conf, passwords...)
}

// OpenFile opens a PDF file via pread without slurping it.
func OpenFile(path string, conf *Configuration, passwords ...string) (*Document, error) {
	src, err := NewFileSource(path)
	if err != nil {
		return nil, err
	}
	d, err := Open(src, conf, passwords...)
	if err != nil {
		src.Close()
		return nil, err
	}
	return d, nil
}

// readSpanGrow reads a span starting at off, growing geometrically until
// probe finds what it needs (probe returns true) or EOF is hit.
func readSpanGrow(src ByteSource, off int64, probe func(buf []byte, atEOF bool) bool) ([]byte, error) {
	size := int64(8192)
	for {
		buf, err := readSpan(src, off, size)
		if err != nil {
			return nil, err
		}
		atEOF := off+int64(len(buf)) >= src.Len()
		if probe(buf, atEOF) || atEOF {
			return buf, nil
		}
		size *= 4
	}
}

// readXRef walks the /Prev chain starting at the last startxref offset,
// merging each revision's entries into the flat table. Newer revisions
// take precedence. Cycles and unreasonable chain depth abort.
func (d *Document) readXRef() error {
	offset, err := scanTail(d.src)
	if err != nil {
		return err
	}
	d.startXRef = offset

	visited := map[int64]bool{}
	rev := 0

	for {
		if visited[offset] {
			return errors.Wrapf(ErrXRefPrevCycle, "offset %d", offset)
		}
		if rev >= d.Conf.MaxPrevChain {
			return errors.Wrapf(ErrXRefPrevChainDepth, "limit %d", d.Conf.MaxPrevChain)
		}
		visited[offset] = true

		prev, err := d.readXRefAt(offset, rev)
		if err != nil {
			return errors.Wrapf(err, "while reading xref revision %d at offset %d", rev, offset)
		}
		if prev == nil {
			break
		}
		offset = *prev
		rev++
	}

	if d.Size == 0 {
		d.Size = d.MaxObjNr() + 1
	}
	return nil
}

// readXRefAt reads one revision: a classic "xref" section or an xref
// stream object, returning the /Prev offset if the chain continues.
func (d *Document) readXRefAt(offset int64, rev int) (*int64, error) {
	offset += d.hdrOffset
	buf, err := readSpanGrow(d.src, offset, func(b []byte, atEOF bool) bool {
		if bytes.HasPrefix(b[skipWS(b, 0):], []byte("xref")) {
			return bytes.Contains(b, []byte("trailer")) && bytes.Contains(b, []byte(">>"))
		}
		return bytes.Contains(b, []byte("endstream"))
	})
	if err != nil {
		return nil, err
	}

	i := skipWS(buf, 0)
	if bytes.HasPrefix(buf[i:], []byte("xref")) {
		return d.parseClassicXRef(buf, i+len("xref"), rev)
	}
	return d.parseXRefStreamAt(offset, rev, false)
}

// parseClassicXRef consumes the subsections of one classic xref section
// plus its trailer dict. Entries are 20-byte "oooooooooo ggggg n/f" rows,
// parsed tolerantly by fields rather than by fixed width since real files
// get the padding wrong.
func (d *Document) parseClassicXRef(buf []byte, i, rev int) (*int64, error) {
	for {
		i = skipWS(buf, i)
		tok, j := scanToken(buf, i)
		if tok == "trailer" {
			i = j
			break
		}

		first, err := strconv.Atoi(tok)
		if err != nil || first < 0 {
			return nil, errors.Wrapf(ErrCorruptXRef, "bad subsection start %q", tok)
		}
		i = skipWS(buf, j)
		tok, i = scanToken(buf, i)
		count, err := strconv.Atoi(tok)
		if err != nil || count < 0 {
			return nil, errors.Wrapf(ErrCorruptXRef, "bad subsection count %q", tok)
		}

		for nr := first; nr < first+count; nr++ {
			var f1, f2, f3 string
			i = skipWS(buf, i)
			f1, i = scanToken(buf, i)
			i = skipWS(buf, i)
			f2, i = scanToken(buf, i)
			i = skipWS(buf, i)
			f3, i = scanToken(buf, i)

			off, err1 := strconv.ParseInt(f1, 10, 64)
			gen, err2 := strconv.Atoi(f2)
			if err1 != nil || err2 != nil || (f3 != "n" && f3 != "f") {
				return nil, errors.Wrapf(ErrCorruptXRef, "bad entry %q %q %q for object %d", f1, f2, f3, nr)
			}

			e := &ObjectEntry{Generation: gen, Revision: rev}
			if f3 == "f" {
				e.Free = true
				e.Offset = off // next free object number
			} else {
				e.Offset = off
			}
			d.insertIfAbsent(nr, e)
		}
	}

	p := &objParser{buf: buf, base: 0}
	o, _, err := p.object(i)
	if err != nil {
		return nil, errors.Wrap(err, "while parsing trailer dict")
	}
	trailer, ok := o.(types.Dict)
	if !ok {
		return nil, errors.Wrap(ErrWrongType, "trailer is not a dict")
	}
	d.warnings = append(d.warnings, p.warnings...)

	// Hybrid-reference file: the trailer points at a supplementary xref
	// stream whose entries cover objects hidden from pre-1.5 readers.
	if xs := trailer.IntEntry("XRefStm"); xs != nil {
		if _, err := d.parseXRefStreamAt(int64(*xs)+d.hdrOffset, rev, true); err != nil {
			return nil, errors.Wrap(err, "while reading hybrid xref stream")
		}
	}

	d.mergeTrailer(trailer)

	if prev := trailer.IntEntry("Prev"); prev != nil {
		p := int64(*prev)
		return &p, nil
	}
	return nil, nil
}

// parseXRefStreamAt reads an xref stream object: "N G obj", a /Type /XRef
// stream dict, and packed big-endian entry records after filter decode.
// overrideFree lets a hybrid file's stream replace same-revision free
// markers from the classic side.
func (d *Document) parseXRefStreamAt(offset int64, rev int, overrideFree bool) (*int64, error) {
	_, _, _, sd, err := d.parseIndirectObjectAt(offset)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, errors.Wrapf(ErrCorruptXRef, "object at offset %d is not a stream", offset)
	}
	if t := sd.Type(); t == nil || *t != "XRef" {
		return nil, errors.Wrapf(ErrCorruptXRef, "stream at offset %d is not /Type /XRef", offset)
	}
	d.sawXRefStream = true

	// The xref stream is never encrypted, so it decodes before any key
	// material exists.
	if err := d.loadRawStream(sd); err != nil {
		return nil, err
	}
	if err := decodeStream(sd); err != nil {
		return nil, errors.Wrap(err, "while decoding xref stream")
	}

	size := sd.IntEntry("Size")
	if size == nil {
		return nil, errors.Wrap(ErrMissingSize, "in xref stream dict")
	}

	w := sd.ArrayEntry("W")
	if len(w) < 3 {
		return nil, errors.Wrapf(ErrCorruptXRef, "bad /W in xref stream")
	}
	var ws [3]int
	for k := 0; k < 3; k++ {
		n, ok := w[k].(types.Integer)
		if !ok || n < 0 {
			return nil, errors.Wrapf(ErrCorruptXRef, "bad /W entry %v", w[k])
		}
		ws[k] = int(n)
	}

	index := sd.ArrayEntry("Index")
	if index == nil {
		index = types.Array{types.Integer(0), types.Integer(*size)}
	}
	if len(index)%2 != 0 {
		return nil, errors.Wrapf(ErrCorruptXRef, "odd /Index length %d", len(index))
	}

	data := sd.Content
	rowLen := ws[0] + ws[1] + ws[2]
	pos := 0

	readField := func(width int) int64 {
		var v int64
		for k := 0; k < width; k++ {
			v = v<<8 | int64(data[pos])
			pos++
		}
		return v
	}

	for k := 0; k < len(index); k += 2 {
		first, ok1 := index[k].(types.Integer)
		count, ok2 := index[k+1].(types.Integer)
		if !ok1 || !ok2 {
			return nil, errors.Wrapf(ErrCorruptXRef, "bad /Index pair")
		}
		for nr := int(first); nr < int(first)+int(count); nr++ {
			if pos+rowLen > len(data) {
				return nil, errors.Wrapf(ErrCorruptXRef, "xref stream data short: need %d rows", count)
			}
			typ := int64(1) // default entry type when w1 == 0
			if ws[0] > 0 {
				typ = readField(ws[0])
			}
			f2 := readField(ws[1])
			f3 := readField(ws[2])

			e := &ObjectEntry{Revision: rev}
			switch typ {
			case 0:
				e.Free = true
				e.Offset = f2
				e.Generation = int(f3)
			case 1:
				e.Offset = f2
				e.Generation = int(f3)
			case 2:
				e.Compressed = true
				e.StreamObjNr = int(f2)
				e.StreamObjIdx = int(f3)
			default:
				// Unknown types are reserved; treat as free per ISO 32000-1 7.5.8.3.
				e.Free = true
			}
			if !d.insertIfAbsent(nr, e) && overrideFree {
				if old := d.Entries[nr]; old.Free && old.Revision == rev && !e.Free {
					d.Entries[nr] = e
				}
			}
		}
	}

	d.mergeTrailer(sd.Dict)

	if prev := sd.IntEntry("Prev"); prev != nil {
		p := int64(*prev)
		return &p, nil
	}
	return nil, nil
}

// mergeTrailer folds one revision's trailer into the document: the newest
// value for each of /Size /Root /Info /Encrypt /ID wins, older revisions
// only backfill.
func (d *Document) mergeTrailer(t types.Dict) {
	if d.Trailer.Len() == 0 {
		d.Trailer = t
	}
	if d.Size == 0 {
		if sz := t.IntEntry("Size"); sz != nil {
			d.Size = *sz
		}
	}
	if d.Root == nil {
		d.Root = t.IndirectRefEntry("Root")
	}
	if d.Info == nil {
		d.Info = t.IndirectRefEntry("Info")
	}
	if d.Encrypt == nil {
		d.Encrypt = t.IndirectRefEntry("Encrypt")
	}
	if d.ID == nil {
		d.ID = t.ArrayEntry("ID")
	}
}

var objStartPattern = regexp.MustCompile(`(\d+)[\t\f ]+(\d+)[\t\f ]+obj\b`)

// reconstruct scans the file for "N G obj" starts and builds a synthetic
// index from them, the last occurrence of each object number winning. The
// scan recovers no free-chain topology, so the free list is relinked here
// with EnsureValidFreeList.
func (d *Document) reconstruct() error {
	limit := d.src.Len()
	if d.Conf.MaxRecoveryBytes > 0 && d.Conf.MaxRecoveryBytes < limit {
		limit = d.Conf.MaxRecoveryBytes
	}
	buf, err := readSpan(d.src, 0, limit)
	if err != nil {
		return err
	}

	d.Entries = map[int]*ObjectEntry{}
	d.Reconstructed = true

	for _, m := range objStartPattern.FindAllSubmatchIndex(buf, -1) {
		// The pattern has no lookbehind; reject matches glued to a
		// preceding regular character ("x12 0 obj").
		if m[0] > 0 && isRegular(buf[m[0]-1]) && buf[m[0]-1] != '>' {
			continue
		}
		nr, err1 := strconv.Atoi(string(buf[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(buf[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		// Later occurrences win: incremental updates append. Table offsets
		// are kept relative to the header byte, like regular xref entries.
		d.Entries[nr] = &ObjectEntry{Offset: int64(m[0]) - d.hdrOffset, Generation: gen, Revision: 0}
	}

	if len(d.Entries) == 0 {
		return ErrReconstructFailed
	}

	// Pick up trailer fields if any trailer dict survived.
	for _, m := range regexp.MustCompile(`trailer`).FindAllIndex(buf, -1) {
		p := &objParser{buf: buf, base: 0}
		o, _, err := p.object(m[1])
		if err != nil {
			continue
		}
		if t, ok := o.(types.Dict); ok {
			d.mergeTrailer(t)
		}
	}

	d.Size = d.MaxObjNr() + 1
	d.EnsureValidFreeList()
	return nil
}

// findRootInReconstructedTable hunts for a /Type /Catalog dict when no
// trailer supplied /Root.
func (d *Document) findRootInReconstructedTable() error {
	for _, nr := range d.InUseObjNrs() {
		o, err := d.Dereference(*types.NewIndirectRef(nr, d.Entries[nr].Generation))
		if err != nil {
			continue
		}
		if dict, ok := o.(types.Dict); ok {
			if t := dict.Type(); t != nil && *t == "Catalog" {
				d.Root = types.NewIndirectRef(nr, d.Entries[nr].Generation)
				return nil
			}
		}
	}
	return ErrMissingRoot
}

// parseIndirectObjectAt reads "N G obj <body> [stream…]" at an absolute
// offset. For stream objects the returned *StreamDict carries the data
// span; raw bytes are loaded lazily via loadRawStream.
func (d *Document) parseIndirectObjectAt(offset int64) (objNr, genNr int, o types.Object, sd *types.StreamDict, err error) {
	buf, err := readSpanGrow(d.src, offset, func(b []byte, atEOF bool) bool {
		// Enough to see the object body or the start of stream data.
		i := indexObjBody(b)
		if i < 0 {
			return false
		}
		j := bytes.Index(b[i:], []byte("endobj"))
		k := bytes.Index(b[i:], []byte("stream"))
		return j >= 0 || k >= 0
	})
	if err != nil {
		return 0, 0, nil, nil, err
	}

	i := skipWS(buf, 0)
	tok, i2 := scanToken(buf, i)
	objNr, err = strconv.Atoi(tok)
	if err != nil {
		return 0, 0, nil, nil, errors.Wrapf(ErrMissingObjKeyword, "at offset %d: got %q", offset, tok)
	}
	i = skipWS(buf, i2)
	tok, i2 = scanToken(buf, i)
	genNr, err = strconv.Atoi(tok)
	if err != nil {
		return 0, 0, nil, nil, errors.Wrapf(ErrMissingObjKeyword, "at offset %d: got %q", offset, tok)
	}
	i = skipWS(buf, i2)
	tok, i2 = scanToken(buf, i)
	if tok != "obj" {
		return 0, 0, nil, nil, errors.Wrapf(ErrMissingObjKeyword, "at offset %d: got %q", offset, tok)
	}

	p := &objParser{buf: buf, base: offset}
	o, i, err = p.object(i2)
	if err != nil {
		return 0, 0, nil, nil, errors.Wrapf(err, "while reading object %d %d", objNr, genNr)
	}
	d.warnings = append(d.warnings, p.warnings...)

	i = skipWS(buf, i)
	tok, i2 = scanToken(buf, i)

	if tok == "stream" {
		dict, ok := o.(types.Dict)
		if !ok {
			return 0, 0, nil, nil, errors.Wrapf(ErrWrongType, "stream body of object %d is not a dict", objNr)
		}
		// Exactly one EOL after the keyword; data starts right behind it.
		dataStart := offset + int64(scanEOL(buf, i2))
		s, err := d.streamDictAt(dict, objNr, genNr, dataStart)
		if err != nil {
			return 0, 0, nil, nil, err
		}
		return objNr, genNr, *s, s, nil
	}

	if tok != "endobj" && d.Conf.Strict {
		return 0, 0, nil, nil, errors.Wrapf(ErrMissingEndobj, "after object %d %d: got %q", objNr, genNr, tok)
	}
	return objNr, genNr, o, nil, nil
}

// indexObjBody returns the position just past the first "obj" keyword.
func indexObjBody(b []byte) int {
	i := bytes.Index(b, []byte("obj"))
	if i < 0 {
		return -1
	}
	return i + 3
}

// streamDictAt builds the StreamDict for a dict whose data begins at
// dataStart. /Length may be indirect; it resolves through the table.
func (d *Document) streamDictAt(dict types.Dict, objNr, genNr int, dataStart int64) (*types.StreamDict, error) {
	pipeline, err := filterPipeline(d, dict)
	if err != nil {
		return nil, errors.Wrapf(err, "while reading stream object %d", objNr)
	}

	var length *int64
	var lengthRef *types.IndirectRef

	switch l := dict.Get("Length").(type) {
	case types.Integer:
		v := int64(l)
		length = &v
	case types.IndirectRef:
		lengthRef = &l
	default:
		if d.Conf.Strict {
			return nil, errors.Wrapf(ErrMissingStreamLen, "in stream object %d", objNr)
		}
	}

	sd := types.NewStreamDict(dict, dataStart, length, lengthRef, pipeline)
	return &sd, nil
}

// resolveStreamLength materializes sd.StreamLength, following an indirect
// /Length and falling back to an endstream scan in lenient mode when the
// declared length is absent or provably wrong.
func (d *Document) resolveStreamLength(sd *types.StreamDict) error {
	if sd.StreamLength == nil && sd.StreamLengthRef != nil {
		o, err := d.Dereference(*sd.StreamLengthRef)
		if err != nil {
			return errors.Wrap(err, "while resolving stream /Length")
		}
		if i, ok := o.(types.Integer); ok {
			v := int64(i)
			sd.StreamLength = &v
		}
	}

	if sd.StreamLength != nil {
		if ok, _ := d.endstreamFollows(sd.StreamOffset + *sd.StreamLength); ok {
			return nil
		}
		if !d.Conf.LenientStreams {
			return errors.Wrapf(ErrMissingEndstream, "declared /Length %d not followed by endstream", *sd.StreamLength)
		}
		d.warnf(sd.StreamOffset, "stream /Length %d wrong, scanning for endstream", *sd.StreamLength)
	} else if !d.Conf.LenientStreams {
		return ErrMissingStreamLen
	}

	n, err := d.scanForEndstream(sd.StreamOffset)
	if err != nil {
		return err
	}
	sd.StreamLength = &n
	return nil
}

// endstreamFollows checks that (whitespace +) "endstream" sits at off.
func (d *Document) endstreamFollows(off int64) (bool, error) {
	buf, err := readSpan(d.src, off, 32)
	if err != nil {
		return false, nil
	}
	i := skipWS(buf, 0)
	return bytes.HasPrefix(buf[i:], []byte("endstream")), nil
}

// scanForEndstream recovers a stream's length by scanning forward for the
// first "endstream" keyword, dropping the EOL in front of it if there is one.
func (d *Document) scanForEndstream(dataStart int64) (int64, error) {
	limit := d.src.Len() - dataStart
	if d.Conf.MaxRecoveryBytes > 0 && d.Conf.MaxRecoveryBytes < limit {
		limit = d.Conf.MaxRecoveryBytes
	}
	buf, err := readSpan(d.src, dataStart, limit)
	if err != nil {
		return 0, err
	}
	i := bytes.Index(buf, []byte("endstream"))
	if i < 0 {
		return 0, errors.Wrapf(ErrMissingEndstream, "no endstream after offset %d", dataStart)
	}
	// Trim the EOL that separates data from the keyword.
	n := i
	if n > 0 && buf[n-1] == '\n' {
		n--
	}
	if n > 0 && buf[n-1] == '\r' {
		n--
	}
	return int64(n), nil
}

// loadRawStream pulls sd's on-disk bytes into sd.Raw, still filtered and,
// in an encrypted document, still encrypted: decryption is up to the caller.
func (d *Document) loadRawStream(sd *types.StreamDict) error {
	if sd.Raw != nil || sd.Decoded {
		return nil
	}
	if err := d.resolveStreamLength(sd); err != nil {
		return err
	}
	raw, err := readSpan(d.src, sd.StreamOffset, *sd.StreamLength)
	if err != nil {
		return err
	}
	if int64(len(raw)) < *sd.StreamLength {
		return errors.Wrapf(ErrUnexpectedEOF, "stream data truncated at offset %d", sd.StreamOffset)
	}
	sd.Raw = raw
	return nil
}

// filterPipeline builds the filter chain from /Filter and /DecodeParms,
// honoring the array-index alignment between the two.
func filterPipeline(d *Document, dict types.Dict) ([]types.FilterEntry, error) {
	fo, found := dict.Find("Filter")
	if !found {
		return nil, nil
	}
	if ir, ok := fo.(types.IndirectRef); ok && d != nil {
		var err error
		fo, err = d.Dereference(ir)
		if err != nil {
			return nil, err
		}
	}

	po := dict.Get("DecodeParms")
	if po == nil {
		po = dict.Get("DP")
	}
	if ir, ok := po.(types.IndirectRef); ok && d != nil {
		var err error
		po, err = d.Dereference(ir)
		if err != nil {
			return nil, err
		}
	}

	parmsAt := func(i int) types.Dict {
		switch p := po.(type) {
		case types.Dict:
			if i == 0 {
				return p
			}
		case types.Array:
			if i < len(p) {
				if pd, ok := p[i].(types.Dict); ok {
					return pd
				}
			}
		}
		return types.Dict{}
	}

	switch f := fo.(type) {
	case types.Name:
		return []types.FilterEntry{{Name: expandFilterName(string(f)), DecodeParms: parmsAt(0)}}, nil
	case types.Array:
		pl := make([]types.FilterEntry, 0, len(f))
		for i, o := range f {
			n, ok := o.(types.Name)
			if !ok {
				return nil, errors.Wrapf(ErrWrongType, "/Filter array member %v", o)
			}
			pl = append(pl, types.FilterEntry{Name: expandFilterName(string(n)), DecodeParms: parmsAt(i)})
		}
		return pl, nil
	}
	return nil, errors.Wrapf(ErrWrongType, "/Filter is %T", fo)
}

// expandFilterName maps the inline-image abbreviations onto full filter
// names; full names pass through.
func expandFilterName(n string) string {
	switch n {
	case "AHx":
		return "ASCIIHexDecode"
	case "A85":
		return "ASCII85Decode"
	case "LZW":
		return "LZWDecode"
	case "Fl":
		return "FlateDecode"
	case "RL":
		return "RunLengthDecode"
	case "CCF":
		return "CCITTFaxDecode"
	case "DCT":
		return "DCTDecode"
	}
	return n
}
