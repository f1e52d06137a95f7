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
	"testing"

	"github.com/mechiko/pdfkit/pkg/types"
)

func TestBookmarks(t *testing.T) {
	d := NewDocument(nil)
	var pageRefs []types.IndirectRef
	for i := 0; i < 2; i++ {
		pb := d.NewPage(A4MediaBox())
		ref, err := pb.Finish()
		if err != nil {
			t.Fatal(err)
		}
		pageRefs = append(pageRefs, ref)
	}

	// Outline: "One" -> page 1 (with child "Inner" -> page 2), "Two" -> page 2.
	inner := types.NewDict()
	inner.InsertString("Title", "Inner")
	inner.Insert("Dest", types.Array{pageRefs[1], types.Name("Fit")})
	innerRef := d.Add(inner)

	action := types.NewDict()
	action.InsertName("S", "GoTo")
	action.Insert("D", types.Array{pageRefs[1], types.Name("Fit")})
	two := types.NewDict()
	two.InsertString("Title", "Two")
	two.Insert("A", action)
	twoRef := d.Add(two)

	one := types.NewDict()
	one.InsertString("Title", "One")
	one.Insert("Dest", types.Array{pageRefs[0], types.Name("Fit")})
	one.Insert("First", innerRef)
	one.Insert("Next", twoRef)
	oneRef := d.Add(one)

	outlines := types.NewDict()
	outlines.InsertName("Type", "Outlines")
	outlines.Insert("First", oneRef)
	outlinesRef := d.Add(outlines)

	catalog, err := d.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	catalog.Insert("Outlines", outlinesRef)
	if err := d.Replace(*d.Root, catalog); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatal(err)
	}
	rd, err := OpenBytes(buf.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	bms, err := rd.Bookmarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(bms) != 2 {
		t.Fatalf("got %d top-level bookmarks: %+v", len(bms), bms)
	}
	if bms[0].Title != "One" || bms[0].PageNr != 1 {
		t.Errorf("first = %+v", bms[0])
	}
	if len(bms[0].Children) != 1 || bms[0].Children[0].Title != "Inner" || bms[0].Children[0].PageNr != 2 {
		t.Errorf("children = %+v", bms[0].Children)
	}
	if bms[1].Title != "Two" || bms[1].PageNr != 2 {
		t.Errorf("second = %+v", bms[1])
	}
}

func TestBookmarksAbsent(t *testing.T) {
	out := buildHelloWorld(t, nil)
	d, err := OpenBytes(out, nil)
	if err != nil {
		t.Fatal(err)
	}
	bms, err := d.Bookmarks()
	if err != nil || bms != nil {
		t.Errorf("got %v, %v", bms, err)
	}
}
