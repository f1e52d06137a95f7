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
	"compress/zlib"
	"fmt"
	"testing"

	"github.com/mechiko/pdfkit/pkg/types"
)

// TestXRefStreamWithPredictor12 hand-crafts a file whose xref is a
// compressed stream with /W [1 3 1], /Predictor 12, /Columns 5 and 22
// entries, then dereferences every object. The classic regression — the
// predictor applied before DEFLATE decode instead of after — makes every
// offset garbage, so this failing loudly is the point of the fixture.
func TestXRefStreamWithPredictor12(t *testing.T) {
	var buf bytes.Buffer
	offsets := make([]int64, 22)

	put := func(s string) { buf.WriteString(s) }
	beginObj := func(nr int) { offsets[nr] = int64(buf.Len()); put(fmt.Sprintf("%d 0 obj\n", nr)) }

	put("%PDF-1.5\n%\xE2\xE3\xCF\xD3\n")

	beginObj(1)
	put("<</Type /Catalog /Pages 2 0 R>>\nendobj\n")
	beginObj(2)
	put("<</Type /Pages /Kids [3 0 R] /Count 1>>\nendobj\n")
	beginObj(3)
	put("<</Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]>>\nendobj\n")
	for nr := 4; nr <= 20; nr++ {
		beginObj(nr)
		put(fmt.Sprintf("<</Num %d>>\nendobj\n", nr))
	}

	// Entry rows: type(1) offset(3) gen(1), 5 bytes per row, 22 rows.
	xrefOffset := int64(buf.Len())
	offsets[21] = xrefOffset
	var rows []byte
	addRow := func(typ byte, off int64, gen byte) {
		rows = append(rows, typ, byte(off>>16), byte(off>>8), byte(off), gen)
	}
	addRow(0, 0, 255) // free head
	for nr := 1; nr <= 21; nr++ {
		addRow(1, offsets[nr], 0)
	}

	// PNG Up predictor (12): each output row is tag 2 plus the byte-wise
	// delta against the prior row, applied before compression.
	const cols = 5
	var predicted []byte
	prev := make([]byte, cols)
	for i := 0; i < len(rows); i += cols {
		row := rows[i : i+cols]
		predicted = append(predicted, 2)
		for j := 0; j < cols; j++ {
			predicted = append(predicted, row[j]-prev[j])
		}
		copy(prev, row)
	}

	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	if _, err := zw.Write(predicted); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	put(fmt.Sprintf("21 0 obj\n<</Type /XRef /Size 22 /W [1 3 1] /Index [0 22] "+
		"/Filter /FlateDecode /DecodeParms <</Predictor 12 /Columns 5>> "+
		"/Root 1 0 R /Length %d>>\nstream\n", comp.Len()))
	buf.Write(comp.Bytes())
	put("\nendstream\nendobj\n")
	put(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset))

	d, err := OpenBytes(buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("opening crafted file: %v", err)
	}
	if !d.sawXRefStream {
		t.Error("xref stream not detected")
	}

	for nr := 1; nr <= 20; nr++ {
		o, err := d.Dereference(*types.NewIndirectRef(nr, 0))
		if err != nil {
			t.Fatalf("object %d: %v", nr, err)
		}
		dict, ok := o.(types.Dict)
		if !ok {
			t.Fatalf("object %d is %T", nr, o)
		}
		if nr >= 4 {
			if v := dict.IntEntry("Num"); v == nil || *v != nr {
				t.Errorf("object %d carries Num %v", nr, v)
			}
		}
	}

	if n, err := d.PageCount(); err != nil || n != 1 {
		t.Errorf("page count = %d, %v", n, err)
	}
}

// TestObjectStreamResolution pins type-2 entry resolution through a
// hand-built /ObjStm container.
func TestObjectStreamResolution(t *testing.T) {
	d := NewDocument(nil)

	members := "11 0 12 8 <</A 1>> <</B 2>> "
	hdrLen := len("11 0 12 8 ")
	extra := types.NewDict()
	extra.InsertName("Type", "ObjStm")
	extra.InsertInt("N", 2)
	extra.InsertInt("First", hdrLen)
	sd, err := NewFlateStream([]byte(members), extra)
	if err != nil {
		t.Fatal(err)
	}

	// Hand the container a fixed number and register compressed entries.
	d.Entries[10] = &ObjectEntry{Object: sd}
	d.Entries[11] = &ObjectEntry{Compressed: true, StreamObjNr: 10, StreamObjIdx: 0}
	d.Entries[12] = &ObjectEntry{Compressed: true, StreamObjNr: 10, StreamObjIdx: 1}

	o, err := d.Dereference(*types.NewIndirectRef(11, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v := o.(types.Dict).IntEntry("A"); v == nil || *v != 1 {
		t.Errorf("member 0 = %v", o)
	}
	o, err = d.Dereference(*types.NewIndirectRef(12, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v := o.(types.Dict).IntEntry("B"); v == nil || *v != 2 {
		t.Errorf("member 1 = %v", o)
	}
}
