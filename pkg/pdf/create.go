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

// NewDocument builds an empty document: a catalog and a bare /Pages root,
// ready for AppendPage and a full write.
func NewDocument(conf *Configuration) *Document {
	if conf == nil {
		conf = NewDefaultConfiguration()
	}
	d := &Document{
		Conf:        conf,
		ObjectTable: newObjectTable(),
	}
	d.HeaderVersion = conf.Version
	d.Entries[0] = &ObjectEntry{Free: true, Generation: types.FreeHeadGeneration}

	pages := types.NewDict()
	pages.InsertName("Type", "Pages")
	pages.Insert("Kids", types.Array{})
	pages.InsertInt("Count", 0)
	pagesRef := d.Add(pages)

	catalog := types.NewDict()
	catalog.InsertName("Type", "Catalog")
	catalog.Insert("Pages", pagesRef)
	rootRef := d.Add(catalog)

	d.Root = &rootRef
	d.Trailer = types.NewDict()
	d.Trailer.Insert("Root", rootRef)
	d.Size = d.MaxObjNr() + 1
	return d
}

// pagesRootRef returns the reference of the /Pages tree root.
func (d *Document) pagesRootRef() (types.IndirectRef, types.Dict, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return types.IndirectRef{}, types.Dict{}, err
	}
	ref := catalog.IndirectRefEntry("Pages")
	if ref == nil {
		return types.IndirectRef{}, types.Dict{}, ErrNoPageTree
	}
	dict, err := d.DereferenceDict(*ref)
	if err != nil {
		return types.IndirectRef{}, types.Dict{}, err
	}
	return *ref, dict, nil
}

// AppendPage hangs pageDict (a /Type /Page dict without /Parent) under the
// page tree root and returns its reference. /Count recomputes from the
// leaves at enumeration time; the stored value updates eagerly here for
// readers that trust it.
func (d *Document) AppendPage(pageDict types.Dict) (types.IndirectRef, error) {
	rootRef, root, err := d.pagesRootRef()
	if err != nil {
		return types.IndirectRef{}, err
	}

	pageDict.Update("Parent", rootRef)
	pageRef := d.Add(pageDict)

	kids := root.ArrayEntry("Kids")
	kids = append(kids, pageRef)
	root.Update("Kids", kids)
	count := 0
	if c := root.IntEntry("Count"); c != nil {
		count = *c
	}
	root.Update("Count", types.Integer(count+1))
	if err := d.Replace(rootRef, root); err != nil {
		return types.IndirectRef{}, err
	}

	d.InvalidatePageIndex()
	return pageRef, nil
}

// PageBuilder accumulates content and resources for a new page.
type PageBuilder struct {
	d        *Document
	mediaBox *types.Rectangle
	rotate   int
	content  []byte
	res      types.Dict
	fontSeq  int
}

// NewPage starts a page with the given media box.
func (d *Document) NewPage(mediaBox *types.Rectangle) *PageBuilder {
	return &PageBuilder{d: d, mediaBox: mediaBox, res: types.NewDict()}
}

// SetRotate presets the page's /Rotate entry; v must be a multiple of 90.
func (pb *PageBuilder) SetRotate(v int) error {
	if v%90 != 0 {
		return errors.Errorf("pdf: rotation %d is not a multiple of 90", v)
	}
	pb.rotate = ((v % 360) + 360) % 360
	return nil
}

// AddContent appends raw content-stream operators.
func (pb *PageBuilder) AddContent(b []byte) { pb.content = append(pb.content, b...) }

// AddContentf appends formatted content-stream operators.
func (pb *PageBuilder) AddContentf(format string, args ...interface{}) {
	pb.content = append(pb.content, []byte(fmt.Sprintf(format, args...))...)
}

// AddStandardFont registers a built-in font resource and returns its name.
func (pb *PageBuilder) AddStandardFont(baseFont string) (string, error) {
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
	ref := pb.d.Add(fd)

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
	return name, nil
}

// AddResource registers an arbitrary resource (an XObject, a graphics
// state dict) under class and name.
func (pb *PageBuilder) AddResource(class, name string, o types.Object) {
	var sub types.Dict
	if s, ok := pb.res.Find(class); ok {
		sub = s.(types.Dict)
	} else {
		sub = types.NewDict()
	}
	sub.Update(name, o)
	pb.res.Update(class, sub)
}

// DrawText emits a BT/Tf/Td/Tj/ET block at (x, y).
func (pb *PageBuilder) DrawText(s, baseFont string, size, x, y float64) error {
	name, err := pb.AddStandardFont(baseFont)
	if err != nil {
		return err
	}
	esc, err := types.Escape(s)
	if err != nil {
		return err
	}
	pb.AddContentf("BT /%s %s Tf %s %s Td (%s) Tj ET\n",
		name, types.Float(size).PDFString(), types.Float(x).PDFString(), types.Float(y).PDFString(), *esc)
	return nil
}

// Finish materializes the page: content stream object, page dict, and the
// hookup under the page tree root.
func (pb *PageBuilder) Finish() (types.IndirectRef, error) {
	page := types.NewDict()
	page.InsertName("Type", "Page")
	if pb.mediaBox != nil {
		page.Insert("MediaBox", pb.mediaBox.Array())
	}
	if pb.rotate != 0 {
		page.InsertInt("Rotate", pb.rotate)
	}
	page.Insert("Resources", pb.res)

	if len(pb.content) > 0 {
		var sd types.StreamDict
		var err error
		if pb.d.Conf.CompressStreams {
			sd, err = NewFlateStream(pb.content, types.NewDict())
			if err != nil {
				return types.IndirectRef{}, err
			}
		} else {
			sd = NewRawStream(pb.content, types.NewDict())
		}
		page.Insert("Contents", pb.d.Add(sd))
	}

	return pb.d.AppendPage(page)
}
