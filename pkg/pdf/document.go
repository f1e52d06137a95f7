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

	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// Document is an open PDF: the indirect-object table plus everything
// needed to materialize objects on demand. A Document is not safe for
// concurrent mutation; process one per goroutine.
type Document struct {
	Conf *Configuration
	*ObjectTable

	src       ByteSource
	hdrOffset int64

	// startXRef is the original file's last startxref offset; an
	// incremental update's /Prev points back at it. sawXRefStream records
	// whether any revision used a cross-reference stream, so incremental
	// output matches the original's xref flavor.
	startXRef     int64
	sawXRefStream bool

	enc *securityHandler

	// pageIndex caches the page-tree walk; built lazily, invalidated by
	// page-tree mutation.
	pageIndex []pageNode

	warnings []Warning
}

func (d *Document) warnf(offset int64, format string, args ...interface{}) {
	d.warnings = append(d.warnings, Warning{Offset: offset, Msg: fmt.Sprintf(format, args...)})
}

// Warnings returns the recoverable conditions noted so far.
func (d *Document) Warnings() []Warning { return d.warnings }

// Encrypted reports whether the document carries a standard security
// handler.
func (d *Document) Encrypted() bool { return d.enc != nil }

// Close releases a file-backed source. Memory-backed documents need no
// cleanup.
func (d *Document) Close() error {
	if c, ok := d.src.(*FileSource); ok {
		return c.Close()
	}
	return nil
}

// Dereference resolves o if it is an indirect reference, decoding,
// decrypting and caching the target on first access. Non-reference
// objects come back unchanged. A reference to a free or absent entry
// resolves to Null, matching how conforming readers treat dangling
// references.
func (d *Document) Dereference(o types.Object) (types.Object, error) {
	ir, ok := o.(types.IndirectRef)
	if !ok {
		return o, nil
	}

	e := d.Entry(ir.ObjectNumber.Value())
	if e == nil || e.Free {
		return types.Null{}, nil
	}
	if e.Object != nil {
		return e.Object, nil
	}

	if e.Compressed {
		o, err := d.objectStreamMember(e.StreamObjNr, e.StreamObjIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "while reading object %d from object stream %d", ir.ObjectNumber, e.StreamObjNr)
		}
		e.Object = o
		return o, nil
	}

	nr, gen, o2, sd, err := d.parseIndirectObjectAt(e.Offset + d.hdrOffset)
	if err != nil {
		return nil, errors.Wrapf(err, "while reading object %d %d", ir.ObjectNumber, ir.GenerationNumber)
	}
	if nr != ir.ObjectNumber.Value() && d.Conf.Strict {
		return nil, errors.Wrapf(ErrCorruptXRef, "offset of object %d holds object %d", ir.ObjectNumber, nr)
	}

	if sd != nil {
		if err := d.loadRawStream(sd); err != nil {
			return nil, errors.Wrapf(err, "while reading stream object %d", nr)
		}
		if d.enc != nil {
			if err := d.enc.decryptStream(sd, nr, gen); err != nil {
				return nil, err
			}
		}
		o2 = *sd
	}

	if d.enc != nil && !d.isEncryptDict(nr) {
		o2 = d.enc.decryptStrings(o2, nr, gen)
	}

	e.Object = o2
	return o2, nil
}

func (d *Document) isEncryptDict(nr int) bool {
	return d.Encrypt != nil && d.Encrypt.ObjectNumber.Value() == nr
}

// DereferenceDict resolves o and asserts a dict.
func (d *Document) DereferenceDict(o types.Object) (types.Dict, error) {
	o, err := d.Dereference(o)
	if err != nil {
		return types.Dict{}, err
	}
	switch t := o.(type) {
	case types.Dict:
		return t, nil
	case types.StreamDict:
		return t.Dict, nil
	}
	return types.Dict{}, errors.Wrapf(ErrWrongType, "expected dict, got %T", o)
}

// DereferenceArray resolves o and asserts an array.
func (d *Document) DereferenceArray(o types.Object) (types.Array, error) {
	o, err := d.Dereference(o)
	if err != nil {
		return nil, err
	}
	a, ok := o.(types.Array)
	if !ok {
		return nil, errors.Wrapf(ErrWrongType, "expected array, got %T", o)
	}
	return a, nil
}

// DereferenceInteger resolves o and asserts an integer.
func (d *Document) DereferenceInteger(o types.Object) (types.Integer, error) {
	o, err := d.Dereference(o)
	if err != nil {
		return 0, err
	}
	i, ok := o.(types.Integer)
	if !ok {
		return 0, errors.Wrapf(ErrWrongType, "expected integer, got %T", o)
	}
	return i, nil
}

// DereferenceStreamDict resolves o and asserts a stream.
func (d *Document) DereferenceStreamDict(o types.Object) (*types.StreamDict, error) {
	o2, err := d.Dereference(o)
	if err != nil {
		return nil, err
	}
	sd, ok := o2.(types.StreamDict)
	if !ok {
		return nil, errors.Wrapf(ErrWrongType, "expected stream, got %T", o2)
	}
	return &sd, nil
}

// DecodedContent returns a stream's fully decoded bytes, running the
// filter chain on first call and caching the result in the table.
func (d *Document) DecodedContent(ir types.IndirectRef) ([]byte, error) {
	e := d.Entry(ir.ObjectNumber.Value())
	o, err := d.Dereference(ir)
	if err != nil {
		return nil, err
	}
	sd, ok := o.(types.StreamDict)
	if !ok {
		return nil, errors.Wrapf(ErrWrongType, "expected stream, got %T", o)
	}
	if !sd.Decoded {
		if err := decodeStream(&sd); err != nil {
			if d.Conf.LenientStreams && !sd.IsPageContent {
				d.warnf(sd.StreamOffset, "stream %s undecodable (%v), raw only", ir.PDFString(), err)
				return sd.Raw, nil
			}
			return nil, errors.Wrapf(err, "while decoding stream %s", ir.PDFString())
		}
		if e != nil {
			e.Object = sd
		}
	}
	return sd.Content, nil
}

// RawContent returns a stream's on-disk bytes after decryption but before
// filter decode: the DCT pass-through path for image extraction.
func (d *Document) RawContent(ir types.IndirectRef) ([]byte, error) {
	o, err := d.Dereference(ir)
	if err != nil {
		return nil, err
	}
	sd, ok := o.(types.StreamDict)
	if !ok {
		return nil, errors.Wrapf(ErrWrongType, "expected stream, got %T", o)
	}
	return sd.Raw, nil
}

// objectStreamMember loads the idx-th object out of object stream
// streamNr. The container decodes once and caches; members parse out of
// the decoded bytes via the N (num, offset) header pairs.
func (d *Document) objectStreamMember(streamNr, idx int) (types.Object, error) {
	content, err := d.DecodedContent(*types.NewIndirectRef(streamNr, 0))
	if err != nil {
		return nil, err
	}

	e := d.Entry(streamNr)
	if e == nil {
		return nil, errors.Wrapf(ErrDanglingReference, "object stream %d", streamNr)
	}
	sd, ok := e.Object.(types.StreamDict)
	if !ok {
		return nil, errors.Wrapf(ErrWrongType, "object %d is not an object stream", streamNr)
	}
	if t := sd.Type(); t == nil || *t != "ObjStm" {
		return nil, errors.Wrapf(ErrWrongType, "object %d is not /Type /ObjStm", streamNr)
	}

	n := sd.IntEntry("N")
	first := sd.IntEntry("First")
	if n == nil || first == nil {
		return nil, errors.Wrapf(ErrWrongType, "object stream %d lacks /N or /First", streamNr)
	}
	if idx < 0 || idx >= *n {
		return nil, errors.Wrapf(ErrDanglingReference, "object stream %d has %d members, want index %d", streamNr, *n, idx)
	}

	// Header: N pairs of "objNr offset" preceding the member bodies.
	p := &objParser{buf: content}
	pos := 0
	var memberOff int
	for k := 0; k <= idx; k++ {
		pos = skipWS(content, pos)
		_, pos = scanToken(content, pos) // member object number
		pos = skipWS(content, pos)
		var offTok string
		offTok, pos = scanToken(content, pos)
		if k == idx {
			v, err := atoiStrict(offTok)
			if err != nil {
				return nil, errors.Wrapf(ErrCorruptXRef, "object stream %d header: bad offset %q", streamNr, offTok)
			}
			memberOff = v
		}
	}

	o, _, err := p.object(*first + memberOff)
	if err != nil {
		return nil, errors.Wrapf(err, "while parsing member %d of object stream %d", idx, streamNr)
	}
	d.warnings = append(d.warnings, p.warnings...)
	return o, nil
}

func atoiStrict(s string) (int, error) {
	if s == "" {
		return 0, ErrCorruptNumber
	}
	v := 0
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, ErrCorruptNumber
		}
		v = v*10 + int(s[i]-'0')
	}
	return v, nil
}

// Catalog returns the document catalog dict.
func (d *Document) Catalog() (types.Dict, error) {
	if d.Root == nil {
		return types.Dict{}, ErrMissingRoot
	}
	return d.DereferenceDict(*d.Root)
}

// InfoDict returns the legacy /Info metadata dict, or an empty dict.
func (d *Document) InfoDict() (types.Dict, error) {
	if d.Info == nil {
		return types.NewDict(), nil
	}
	return d.DereferenceDict(*d.Info)
}

// XMP returns the raw bytes of the catalog's /Metadata XMP stream, or nil
// if the document has none.
func (d *Document) XMP() ([]byte, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	ir := catalog.IndirectRefEntry("Metadata")
	if ir == nil {
		return nil, nil
	}
	return d.DecodedContent(*ir)
}

// EvictDecoded drops cached decoded objects to bound memory on large
// batch runs. Dirty (staged) objects are retained.
func (d *Document) EvictDecoded() {
	for _, e := range d.Entries {
		if !e.dirty {
			e.Object = nil
		}
	}
	d.pageIndex = nil
}
