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

	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// LetterMediaBox is the fallback page size for leaves missing /MediaBox
// all the way up the tree: US Letter, 612x792 points.
func LetterMediaBox() *types.Rectangle { return types.NewRectangle(0, 0, 612, 792) }

// A4MediaBox is ISO A4, 595x842 points.
func A4MediaBox() *types.Rectangle { return types.NewRectangle(0, 0, 595, 842) }

// Page is a leaf of the page tree with all inherited attributes resolved.
type Page struct {
	Ref       types.IndirectRef
	Dict      types.Dict
	MediaBox  *types.Rectangle
	CropBox   *types.Rectangle
	Rotate    int
	Resources types.Dict
	Contents  []types.IndirectRef
	Annots    []types.IndirectRef
}

// pageNode is one entry of the lazily built leaf index.
type pageNode struct {
	ref  types.IndirectRef
	page *Page
}

// inheritedAttrs is the accumulator pushed down the tree during the DFS.
type inheritedAttrs struct {
	mediaBox  *types.Rectangle
	cropBox   *types.Rectangle
	resources types.Dict
	rotate    *int
}

// PageCount returns the number of leaves of the page tree.
func (d *Document) PageCount() (int, error) {
	if err := d.ensurePageIndex(); err != nil {
		return 0, err
	}
	return len(d.pageIndex), nil
}

// Page returns leaf pageNr (1-based) with inherited attributes resolved.
// The first call walks the tree and builds the leaf index; subsequent
// lookups are O(1).
func (d *Document) Page(pageNr int) (*Page, error) {
	if err := d.ensurePageIndex(); err != nil {
		return nil, err
	}
	if pageNr < 1 || pageNr > len(d.pageIndex) {
		return nil, errors.Wrapf(ErrPageOutOfRange, "page %d of %d", pageNr, len(d.pageIndex))
	}
	return d.pageIndex[pageNr-1].page, nil
}

// PageRef returns the indirect reference of leaf pageNr (1-based).
func (d *Document) PageRef(pageNr int) (*types.IndirectRef, error) {
	p, err := d.Page(pageNr)
	if err != nil {
		return nil, err
	}
	return &p.Ref, nil
}

func (d *Document) ensurePageIndex() error {
	if d.pageIndex != nil {
		return nil
	}

	catalog, err := d.Catalog()
	if err != nil {
		return err
	}
	rootRef := catalog.IndirectRefEntry("Pages")
	if rootRef == nil {
		return ErrNoPageTree
	}

	visited := types.IntSet{}
	index := []pageNode{}
	err = d.walkPageTree(*rootRef, inheritedAttrs{}, visited, &index)
	if err != nil {
		return err
	}
	d.pageIndex = index
	return nil
}

// walkPageTree DFSes the /Pages tree. At each internal node the node's own
// attributes overlay the inherited accumulator before recursing; leaves
// snapshot the accumulator, backfilling whatever the leaf itself lacks.
func (d *Document) walkPageTree(ref types.IndirectRef, inherited inheritedAttrs, visited types.IntSet, index *[]pageNode) error {
	nr := ref.ObjectNumber.Value()
	if visited[nr] {
		return errors.Wrapf(ErrCorruptXRef, "page tree cycle at object %d", nr)
	}
	visited[nr] = true
	defer delete(visited, nr)

	dict, err := d.DereferenceDict(ref)
	if err != nil {
		return errors.Wrapf(err, "while walking page tree node %d", nr)
	}

	if a := dict.ArrayEntry("MediaBox"); a != nil {
		if r := types.RectForArray(a); r != nil {
			inherited.mediaBox = r
		}
	} else if o, found := dict.Find("MediaBox"); found {
		if a, err := d.DereferenceArray(o); err == nil {
			if r := types.RectForArray(a); r != nil {
				inherited.mediaBox = r
			}
		}
	}
	if a := dict.ArrayEntry("CropBox"); a != nil {
		if r := types.RectForArray(a); r != nil {
			inherited.cropBox = r
		}
	}
	if o, found := dict.Find("Resources"); found {
		if res, err := d.DereferenceDict(o); err == nil {
			inherited.resources = res
		}
	}
	if rot := dict.IntEntry("Rotate"); rot != nil {
		inherited.rotate = rot
	}

	t := dict.Type()
	if t == nil {
		// Tolerate untyped nodes: kids make it a Pages node.
		if dict.Get("Kids") == nil {
			return d.appendLeaf(ref, dict, inherited, index)
		}
	} else if *t == "Page" {
		return d.appendLeaf(ref, dict, inherited, index)
	}

	kids, err := d.DereferenceArray(dict.Get("Kids"))
	if err != nil {
		return errors.Wrapf(err, "while reading /Kids of page tree node %d", nr)
	}
	for _, kid := range kids {
		kidRef, ok := kid.(types.IndirectRef)
		if !ok {
			return errors.Wrapf(ErrWrongType, "page tree kid is %T, expected reference", kid)
		}
		if err := d.walkPageTree(kidRef, inherited, visited, index); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) appendLeaf(ref types.IndirectRef, dict types.Dict, inherited inheritedAttrs, index *[]pageNode) error {
	p := &Page{Ref: ref, Dict: dict, Resources: inherited.resources}

	p.MediaBox = inherited.mediaBox
	if p.MediaBox == nil {
		d.warnf(0, "page %d has no MediaBox anywhere up the tree, using US Letter", len(*index)+1)
		p.MediaBox = LetterMediaBox()
	}
	p.CropBox = inherited.cropBox
	if inherited.rotate != nil {
		p.Rotate = *inherited.rotate
	}

	switch c := dict.Get("Contents").(type) {
	case types.IndirectRef:
		p.Contents = []types.IndirectRef{c}
	case types.Array:
		for _, o := range c {
			if ir, ok := o.(types.IndirectRef); ok {
				p.Contents = append(p.Contents, ir)
			}
		}
	}

	if annots, err := d.DereferenceArray(dict.Get("Annots")); err == nil {
		for _, o := range annots {
			if ir, ok := o.(types.IndirectRef); ok {
				p.Annots = append(p.Annots, ir)
			}
		}
	}

	*index = append(*index, pageNode{ref: ref, page: p})
	return nil
}

// PageContent returns the concatenated decoded content-stream bytes of a
// page. Multiple streams are joined with a newline, as their operator
// streams are defined to be concatenated.
func (d *Document) PageContent(p *Page) ([]byte, error) {
	var out bytes.Buffer
	for i, ir := range p.Contents {
		b, err := d.DecodedContent(ir)
		if err != nil {
			return nil, errors.Wrapf(err, "while decoding content stream %s", ir.PDFString())
		}
		if i > 0 {
			out.WriteByte('\n')
		}
		out.Write(b)
	}
	return out.Bytes(), nil
}

// InvalidatePageIndex drops the cached page walk after page-tree mutation.
func (d *Document) InvalidatePageIndex() { d.pageIndex = nil }

// PageFonts returns the font resource dicts referenced by a page, keyed by
// resource name.
func (d *Document) PageFonts(p *Page) (map[string]types.Dict, error) {
	return d.pageResourceDicts(p, "Font")
}

// PageXObjects returns the XObject streams referenced by a page, keyed by
// resource name.
func (d *Document) PageXObjects(p *Page) (map[string]*types.StreamDict, error) {
	out := map[string]*types.StreamDict{}
	if p.Resources.Len() == 0 {
		return out, nil
	}
	xo, err := d.DereferenceDict(p.Resources.Get("XObject"))
	if err != nil {
		return out, nil
	}
	for _, name := range xo.Keys() {
		sd, err := d.DereferenceStreamDict(xo.Get(name))
		if err != nil {
			continue
		}
		out[name] = sd
	}
	return out, nil
}

func (d *Document) pageResourceDicts(p *Page, class string) (map[string]types.Dict, error) {
	out := map[string]types.Dict{}
	if p.Resources.Len() == 0 {
		return out, nil
	}
	sub, err := d.DereferenceDict(p.Resources.Get(class))
	if err != nil {
		return out, nil
	}
	for _, name := range sub.Keys() {
		dd, err := d.DereferenceDict(sub.Get(name))
		if err != nil {
			continue
		}
		out[name] = dd
	}
	return out, nil
}
