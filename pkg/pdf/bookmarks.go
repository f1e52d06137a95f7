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
	"github.com/mechiko/pdfkit/pkg/types"
)

// Bookmark is one node of the document outline. PageNr is 1-based and 0
// when the destination doesn't resolve to a page (named destinations,
// external actions).
type Bookmark struct {
	Title    string
	PageNr   int
	Children []Bookmark
}

// maxOutlineDepth bounds outline recursion against malformed self-linking
// trees.
const maxOutlineDepth = 64

// Bookmarks enumerates the document outline (/Outlines), resolving each
// item's destination to a page number where possible. A document without
// an outline yields nil.
func (d *Document) Bookmarks() ([]Bookmark, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	outlines, err := d.DereferenceDict(catalog.Get("Outlines"))
	if err != nil {
		return nil, nil
	}
	if err := d.ensurePageIndex(); err != nil {
		return nil, err
	}

	visited := types.IntSet{}
	return d.outlineLevel(outlines.Get("First"), visited, 0), nil
}

// outlineLevel walks the First/Next sibling chain of one outline level.
func (d *Document) outlineLevel(first types.Object, visited types.IntSet, depth int) []Bookmark {
	if depth >= maxOutlineDepth {
		return nil
	}

	var out []Bookmark
	item := first
	for {
		ir, ok := item.(types.IndirectRef)
		if !ok {
			break
		}
		nr := ir.ObjectNumber.Value()
		if visited[nr] {
			break
		}
		visited[nr] = true

		dict, err := d.DereferenceDict(ir)
		if err != nil {
			break
		}

		b := Bookmark{}
		if t, found := dict.Find("Title"); found {
			if title, err := types.StringOrHexLiteral(t); err == nil {
				b.Title = title
			}
		}
		b.PageNr = d.resolveDestPage(dict)
		b.Children = d.outlineLevel(dict.Get("First"), visited, depth+1)

		out = append(out, b)
		item = dict.Get("Next")
	}
	return out
}

// resolveDestPage maps an outline item's /Dest (or /A GoTo action) to a
// 1-based page number, 0 when it cannot.
func (d *Document) resolveDestPage(item types.Dict) int {
	dest := item.Get("Dest")
	if dest == nil {
		if action, err := d.DereferenceDict(item.Get("A")); err == nil {
			if s := action.NameEntry("S"); s != nil && *s == "GoTo" {
				dest = action.Get("D")
			}
		}
	}
	if dest == nil {
		return 0
	}

	o, err := d.Dereference(dest)
	if err != nil {
		return 0
	}
	arr, ok := o.(types.Array)
	if !ok || len(arr) == 0 {
		// Named destinations would need the name tree; out of reach here.
		return 0
	}
	pageRef, ok := arr[0].(types.IndirectRef)
	if !ok {
		return 0
	}
	for i, node := range d.pageIndex {
		if node.ref.ObjectNumber == pageRef.ObjectNumber {
			return i + 1
		}
	}
	return 0
}
