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
	"bufio"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mechiko/pdfkit/pkg/filter"
	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// countingSink is the forward-only writer the serializer emits into. It
// never seeks; offsets accumulate as bytes flow, which is what guarantees
// the xref offset invariant by construction.
type countingSink struct {
	w   *bufio.Writer
	off int64
	eol string
	err error
}

func newCountingSink(w io.Writer, eol string) *countingSink {
	return &countingSink{w: bufio.NewWriter(w), eol: eol}
}

func (s *countingSink) write(b []byte) {
	if s.err != nil {
		return
	}
	n, err := s.w.Write(b)
	s.off += int64(n)
	s.err = err
}

func (s *countingSink) writeString(str string) { s.write([]byte(str)) }

func (s *countingSink) writef(format string, args ...interface{}) {
	s.writeString(fmt.Sprintf(format, args...))
}

func (s *countingSink) writeEOL() { s.writeString(s.eol) }

func (s *countingSink) flush() error {
	if s.err != nil {
		return errors.Wrap(s.err, "pdf: writing output")
	}
	return errors.Wrap(s.w.Flush(), "pdf: flushing output")
}

// writeState tracks one serialization run.
type writeState struct {
	sink    *countingSink
	offsets map[int]int64 // object number -> byte offset of "N G obj"
	gens    map[int]int
	enc     *securityHandler
	encRef  *types.IndirectRef
	maxNr   int

	// compressed object-stream placement, when enabled
	objStmFor     map[int]objStmSlot
	pendingObjStm map[int]types.Object
}

type objStmSlot struct {
	streamNr int
	idx      int
}

// binaryComment marks the file as binary for transfer programs,
// ISO 32000-1 7.5.2.
var binaryComment = []byte{'%', 0xE2, 0xE3, 0xCF, 0xD3}

// WriteFile serializes the document to path as a full write.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "pdf: creating output file")
	}
	defer f.Close()
	return d.Write(f)
}

// Write performs a full write: every in-use object re-serialized under
// a fresh, compact numbering starting at 1, a new xref (classic section or
// xref stream per configuration), and a regenerated trailer.
func (d *Document) Write(w io.Writer) error {
	if d.Root == nil {
		return ErrMissingRoot
	}

	st := &writeState{
		sink:      newCountingSink(w, d.Conf.Eol),
		offsets:   map[int]int64{},
		gens:      map[int]int{},
		objStmFor: map[int]objStmSlot{},
	}

	// Fresh numbering: walk in-use objects in ascending order and compact.
	// The original file's xref streams and object-stream containers do not
	// survive a full write; members re-emit individually and the new xref
	// is built from scratch.
	type numberedObj struct {
		old int
		o   types.Object
	}
	var kept []numberedObj
	for _, old := range d.InUseObjNrs() {
		o, err := d.Dereference(*types.NewIndirectRef(old, d.Entries[old].Generation))
		if err != nil {
			return errors.Wrapf(err, "while writing object %d", old)
		}
		if sd, ok := o.(types.StreamDict); ok {
			if t := sd.Type(); t != nil && (*t == "XRef" || *t == "ObjStm") {
				continue
			}
		}
		kept = append(kept, numberedObj{old: old, o: o})
	}

	remap := make(map[int]int, len(kept))
	for i, ko := range kept {
		remap[ko.old] = i + 1
	}

	id, err := d.generateID()
	if err != nil {
		return err
	}

	var encDict types.Dict
	if d.Conf.Encryption != nil {
		idBytes, err := stringObjectBytes(id[0])
		if err != nil {
			return err
		}
		st.enc, encDict, err = newSecurityHandler(d.Conf.Encryption, idBytes)
		if err != nil {
			return err
		}
	}

	s := st.sink
	s.writef("%%PDF-%s", d.Conf.Version.String())
	s.writeEOL()
	s.write(binaryComment)
	s.writeEOL()

	useObjStm := d.Conf.WriteObjectStreams
	useXRefStm := d.Conf.WriteXRefStream || useObjStm

	catalogNr := remap[d.Root.ObjectNumber.Value()]

	for _, ko := range kept {
		if d.Conf.aborted() {
			return ErrAborted
		}
		nr := remap[ko.old]
		body := renumberObject(ko.o, remap)

		_, isStream := body.(types.StreamDict)
		if useObjStm && !isStream && nr != catalogNr {
			// Deferred into a compressed container; placement recorded once
			// the containers are laid out.
			d.stageForObjStm(st, nr, body)
			continue
		}

		if err := st.emitObject(d, nr, 0, body); err != nil {
			return err
		}
	}

	if useObjStm {
		if err := st.flushObjStms(d); err != nil {
			return err
		}
	}

	var encNr int
	if st.enc != nil {
		encNr = st.maxNrInUse() + 1
		if err := st.emitClearObject(nr2Ref(encNr), encDict, s); err != nil {
			return err
		}
		st.encRef = types.NewIndirectRef(encNr, 0)
	}

	trailer := types.NewDict()
	trailer.Insert("Root", *types.NewIndirectRef(catalogNr, 0))
	if d.Info != nil {
		if newNr, ok := remap[d.Info.ObjectNumber.Value()]; ok {
			trailer.Insert("Info", *types.NewIndirectRef(newNr, 0))
		}
	}
	trailer.Insert("ID", id)
	if st.encRef != nil {
		trailer.Insert("Encrypt", *st.encRef)
	}

	var startXRef int64
	if useXRefStm {
		startXRef, err = st.emitXRefStream(d, trailer)
	} else {
		startXRef, err = st.emitClassicXRef(d, trailer)
	}
	if err != nil {
		return err
	}

	s.writeString("startxref")
	s.writeEOL()
	s.writeString(strconv.FormatInt(startXRef, 10))
	s.writeEOL()
	s.writeString("%%EOF")
	s.writeEOL()

	if log.StatsEnabled() {
		log.Stats.Printf("write: %d objects, %d bytes", len(st.offsets), s.off)
	}
	return s.flush()
}

func nr2Ref(nr int) types.IndirectRef { return *types.NewIndirectRef(nr, 0) }

func (st *writeState) maxNrInUse() int {
	max := st.maxNr
	for nr := range st.objStmFor {
		if nr > max {
			max = nr
		}
	}
	for nr := range st.pendingObjStm {
		if nr > max {
			max = nr
		}
	}
	return max
}

// emitObject serializes one numbered object, encrypting strings and
// stream data if a handler is active.
func (st *writeState) emitObject(d *Document, nr, gen int, o types.Object) error {
	if st.enc != nil {
		o = st.enc.encryptStrings(o.Clone(), nr, gen)
	}

	if sd, ok := o.(types.StreamDict); ok {
		return st.emitStreamObject(d, nr, gen, sd)
	}
	return st.emitClearObject(*types.NewIndirectRef(nr, gen), o, st.sink)
}

// emitClearObject writes "N G obj <body> endobj" without crypt handling.
func (st *writeState) emitClearObject(ref types.IndirectRef, o types.Object, s *countingSink) error {
	nr := ref.ObjectNumber.Value()
	st.offsets[nr] = s.off
	st.gens[nr] = ref.GenerationNumber.Value()
	if nr > st.maxNr {
		st.maxNr = nr
	}

	s.writef("%d %d obj", nr, ref.GenerationNumber.Value())
	s.writeEOL()
	if o == nil {
		s.writeString("null")
	} else {
		s.writeString(o.PDFString())
	}
	s.writeEOL()
	s.writeString("endobj")
	s.writeEOL()
	return s.err
}

// emitStreamObject materializes a stream's encoded bytes, fixes /Length,
// optionally encrypts, and writes dict plus data.
func (st *writeState) emitStreamObject(d *Document, nr, gen int, sd types.StreamDict) error {
	if err := d.materializeRaw(&sd); err != nil {
		return errors.Wrapf(err, "while encoding stream %d", nr)
	}

	if st.enc != nil {
		if err := st.enc.encryptStream(&sd, nr, gen); err != nil {
			return err
		}
	}

	sd.Update("Length", types.Integer(len(sd.Raw)))

	s := st.sink
	st.offsets[nr] = s.off
	st.gens[nr] = gen
	if nr > st.maxNr {
		st.maxNr = nr
	}

	s.writef("%d %d obj", nr, gen)
	s.writeEOL()
	s.writeString(sd.Dict.PDFString())
	s.writeEOL()
	s.writeString("stream")
	// Exactly one EOL between the keyword and the data; LF keeps readers
	// that only accept LF or CRLF happy.
	s.writeString("\n")
	s.write(sd.Raw)
	s.writeEOL()
	s.writeString("endstream")
	s.writeEOL()
	s.writeString("endobj")
	s.writeEOL()
	return s.err
}

// materializeRaw ensures sd.Raw holds the encoded on-disk bytes: streams
// decoded or created in memory re-encode through their pipeline, and new
// bare streams pick up flate when the configuration compresses.
func (d *Document) materializeRaw(sd *types.StreamDict) error {
	if sd.Raw != nil {
		// Untouched on-disk bytes pass through bit-exact. Mutating callers
		// drop Raw to force re-encoding of Content.
		return nil
	}

	if len(sd.FilterPipeline) == 0 && d.Conf.CompressStreams && len(sd.Content) > 0 {
		sd.FilterPipeline = []types.FilterEntry{{Name: filter.Flate}}
		sd.Update("Filter", types.Name(filter.Flate))
	}
	return encodeStream(sd)
}

// generateID builds the trailer /ID pair. The first element survives from
// the original document when present; otherwise, and always for the
// second element, the value derives from the seed (for reproducible
// output) or from entropy.
func (d *Document) generateID() (types.Array, error) {
	h := md5.New()
	if d.Conf.IDSeed != nil {
		h.Write(d.Conf.IDSeed[:])
	} else {
		h.Write([]byte(time.Now().String()))
		if d.src != nil {
			h.Write([]byte(strconv.FormatInt(d.src.Len(), 10)))
		}
	}
	sum := h.Sum(nil)
	fresh := types.NewHexLiteral(sum)

	first := types.Object(fresh)
	if len(d.ID) > 0 {
		first = d.ID[0]
	}
	return types.Array{first, fresh}, nil
}

// stageForObjStm queues a non-stream object for compressed storage.
func (d *Document) stageForObjStm(st *writeState, nr int, o types.Object) {
	if st.pendingObjStm == nil {
		st.pendingObjStm = map[int]types.Object{}
	}
	st.pendingObjStm[nr] = o
}

// objStmCapacity bounds members per object stream.
const objStmCapacity = 100

// flushObjStms lays queued objects out into object streams and emits the
// containers. Member strings are encrypted as part of the container, never
// twice.
func (st *writeState) flushObjStms(d *Document) error {
	if len(st.pendingObjStm) == 0 {
		return nil
	}

	nrs := make([]int, 0, len(st.pendingObjStm))
	for nr := range st.pendingObjStm {
		nrs = append(nrs, nr)
	}
	sortInts(nrs)

	for start := 0; start < len(nrs); start += objStmCapacity {
		end := start + objStmCapacity
		if end > len(nrs) {
			end = len(nrs)
		}
		members := nrs[start:end]

		var header, body []byte
		for _, nr := range members {
			o := st.pendingObjStm[nr]
			if o == nil {
				o = types.Null{}
			}
			header = append(header, []byte(fmt.Sprintf("%d %d ", nr, len(body)))...)
			body = append(body, []byte(o.PDFString())...)
			body = append(body, ' ')
		}

		streamNr := st.maxNrInUse() + 1
		extra := types.NewDict()
		extra.InsertName("Type", "ObjStm")
		extra.InsertInt("N", len(members))
		extra.InsertInt("First", len(header))
		sd, err := NewFlateStream(append(header, body...), extra)
		if err != nil {
			return err
		}

		// The container itself encrypts like any stream; members do not.
		if st.enc != nil {
			if err := st.enc.encryptStream(&sd, streamNr, 0); err != nil {
				return err
			}
		}
		sd.Update("Length", types.Integer(len(sd.Raw)))

		s := st.sink
		st.offsets[streamNr] = s.off
		st.gens[streamNr] = 0
		if streamNr > st.maxNr {
			st.maxNr = streamNr
		}
		s.writef("%d 0 obj", streamNr)
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

		for i, nr := range members {
			st.objStmFor[nr] = objStmSlot{streamNr: streamNr, idx: i}
		}
	}
	return st.sink.err
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}

// renumberObject deep-clones o, rewriting every indirect reference through
// the old-to-new map. References to objects outside the map resolve to
// null rather than dangling.
func renumberObject(o types.Object, remap map[int]int) types.Object {
	switch t := o.(type) {

	case types.IndirectRef:
		if nr, ok := remap[t.ObjectNumber.Value()]; ok {
			return *types.NewIndirectRef(nr, 0)
		}
		return types.Null{}

	case types.Array:
		a := make(types.Array, len(t))
		for i, v := range t {
			a[i] = renumberObject(v, remap)
		}
		return a

	case types.Dict:
		d := types.NewDict()
		for _, k := range t.Keys() {
			d.Insert(k, renumberObject(t.Get(k), remap))
		}
		return d

	case types.StreamDict:
		sd := t
		sd.Dict = renumberObject(t.Dict, remap).(types.Dict)
		// A remapped /Length reference no longer exists; the writer fixes
		// /Length to a direct integer at emission.
		if _, ok := t.Dict.Find("Length"); ok {
			if t.StreamLengthRef != nil {
				sd.StreamLengthRef = nil
				sd.Update("Length", types.Integer(0))
			}
		}
		return sd
	}
	return o
}
