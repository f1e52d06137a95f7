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
)

// xrefRow is one emitted cross-reference entry.
type xrefRow struct {
	nr     int
	typ    int // 0 free, 1 in use, 2 compressed
	f2, f3 int64
}

// collectRows gathers the rows for everything this run emitted, plus the
// mandatory free head.
func (st *writeState) collectRows() []xrefRow {
	rows := []xrefRow{{nr: 0, typ: 0, f2: 0, f3: types.FreeHeadGeneration}}
	for nr, off := range st.offsets {
		rows = append(rows, xrefRow{nr: nr, typ: 1, f2: off, f3: int64(st.gens[nr])})
	}
	for nr, slot := range st.objStmFor {
		rows = append(rows, xrefRow{nr: nr, typ: 2, f2: int64(slot.streamNr), f3: int64(slot.idx)})
	}
	sortRows(rows)
	return rows
}

func sortRows(rows []xrefRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j-1].nr > rows[j].nr; j-- {
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
}

// groupRows splits sorted rows into runs of consecutive object numbers,
// one classic subsection (or one /Index pair) per run.
func groupRows(rows []xrefRow) [][]xrefRow {
	var groups [][]xrefRow
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].nr == rows[j-1].nr+1 {
			j++
		}
		groups = append(groups, rows[i:j])
		i = j
	}
	return groups
}

// emitClassicXRef writes a classic xref section plus trailer and returns
// the section's byte offset for startxref. Entries are the fixed 20-byte
// form with a two-byte terminator.
func (st *writeState) emitClassicXRef(d *Document, trailer types.Dict) (int64, error) {
	s := st.sink
	start := s.off

	rows := st.collectRows()

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

	size := rows[len(rows)-1].nr + 1
	if sz := trailer.IntEntry("Size"); sz != nil && *sz > size {
		size = *sz
	}
	trailer.Update("Size", types.Integer(size))

	s.writeString("trailer")
	s.writeEOL()
	s.writeString(trailer.PDFString())
	s.writeEOL()
	return start, s.err
}

// emitXRefStream writes the cross-reference data as a /Type /XRef stream
// object carrying the trailer entries, and returns its byte offset. The
// stream includes its own entry, which its forward-only offset makes
// possible: the offset is known before a byte of it is written.
func (st *writeState) emitXRefStream(d *Document, trailer types.Dict) (int64, error) {
	s := st.sink
	start := s.off

	xrefNr := st.maxNrInUse() + 1
	rows := st.collectRows()
	rows = append(rows, xrefRow{nr: xrefNr, typ: 1, f2: start, f3: 0})
	sortRows(rows)

	size := rows[len(rows)-1].nr + 1
	if sz := trailer.IntEntry("Size"); sz != nil && *sz > size {
		size = *sz
	}

	// W [1 4 2]: type byte, 4-byte offset field, 2-byte gen/index field.
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
	extra.InsertInt("Size", size)
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

	// The xref stream is never encrypted, whatever the document does.
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
