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
	"github.com/mechiko/pdfkit/pkg/font"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// importer clones object subgraphs from one document into another,
// renumbering indirect references through an old-to-new map as it goes.
// The map doubles as the cycle guard: a reference already being copied
// resolves to its destination number immediately.
//
// Standard-font dicts dedupe across everything imported into the same
// destination: two inputs both using unembedded Helvetica end up sharing
// one font object.
type importer struct {
	src *Document
	dst *Document

	refMap   map[int]types.IndirectRef
	fontDeID map[string]types.IndirectRef
}

func newImporter(src, dst *Document, fontDeID map[string]types.IndirectRef) *importer {
	if fontDeID == nil {
		fontDeID = map[string]types.IndirectRef{}
	}
	return &importer{
		src:      src,
		dst:      dst,
		refMap:   map[int]types.IndirectRef{},
		fontDeID: fontDeID,
	}
}

// copyRef imports the object behind ir and returns its reference in dst.
func (im *importer) copyRef(ir types.IndirectRef) (types.IndirectRef, error) {
	nr := ir.ObjectNumber.Value()
	if ref, ok := im.refMap[nr]; ok {
		return ref, nil
	}

	o, err := im.src.Dereference(ir)
	if err != nil {
		return types.IndirectRef{}, errors.Wrapf(err, "while importing object %d", nr)
	}

	// Shared, unembedded standard fonts collapse onto one object.
	if d, ok := o.(types.Dict); ok {
		if key := standardFontKey(d); key != "" {
			if ref, ok := im.fontDeID[key]; ok {
				im.refMap[nr] = ref
				return ref, nil
			}
		}
	}

	// Reserve the destination number before descending: cycles (Parent
	// links, annotation back-references) land on the reserved slot.
	dstRef := im.dst.Add(types.Null{})
	im.refMap[nr] = dstRef

	co, err := im.copyObject(o)
	if err != nil {
		return types.IndirectRef{}, err
	}
	if err := im.dst.Replace(dstRef, co); err != nil {
		return types.IndirectRef{}, err
	}

	if d, ok := co.(types.Dict); ok {
		if key := standardFontKey(d); key != "" {
			im.fontDeID[key] = dstRef
		}
	}
	return dstRef, nil
}

// copyObject deep-clones o, importing every reference it contains. The
// recursion through font dicts is what carries composite Type0 fonts
// intact: DescendantFonts, FontDescriptor and FontFile2 are ordinary
// references and the closure picks them all up.
func (im *importer) copyObject(o types.Object) (types.Object, error) {
	switch t := o.(type) {

	case types.IndirectRef:
		return im.copyRef(t)

	case types.Array:
		a := make(types.Array, len(t))
		for i, v := range t {
			cv, err := im.copyObject(v)
			if err != nil {
				return nil, err
			}
			a[i] = cv
		}
		return a, nil

	case types.Dict:
		d := types.NewDict()
		for _, k := range t.Keys() {
			cv, err := im.copyObject(t.Get(k))
			if err != nil {
				return nil, err
			}
			d.Insert(k, cv)
		}
		return d, nil

	case types.StreamDict:
		if err := im.src.loadRawStream(&t); err != nil {
			return nil, err
		}
		sd := t.Clone().(types.StreamDict)
		cd, err := im.copyObject(sd.Dict)
		if err != nil {
			return nil, err
		}
		sd.Dict = cd.(types.Dict)
		// /Length travels as a direct integer; a length object reference
		// would import a stray object for no gain.
		sd.StreamLengthRef = nil
		sd.Update("Length", types.Integer(len(sd.Raw)))
		return sd, nil
	}

	if o == nil {
		return types.Null{}, nil
	}
	return o.Clone(), nil
}

// importPage clones a source page dict into dst, stripped of its /Parent
// (the destination tree provides one) and with inherited attributes
// materialized on the leaf so they survive leaving their old tree.
func (im *importer) importPage(p *Page) (types.Dict, error) {
	pageDict := types.NewDict()
	pageDict.InsertName("Type", "Page")
	pageDict.Insert("MediaBox", p.MediaBox.Array())
	if p.CropBox != nil {
		pageDict.Insert("CropBox", p.CropBox.Array())
	}
	if p.Rotate != 0 {
		pageDict.InsertInt("Rotate", p.Rotate)
	}

	if p.Resources.Len() > 0 {
		res, err := im.copyObject(p.Resources)
		if err != nil {
			return types.Dict{}, err
		}
		pageDict.Insert("Resources", res)
	}

	for _, k := range p.Dict.Keys() {
		switch k {
		case "Type", "Parent", "MediaBox", "CropBox", "Rotate", "Resources", "Annots":
			continue
		}
		cv, err := im.copyObject(p.Dict.Get(k))
		if err != nil {
			return types.Dict{}, err
		}
		pageDict.Insert(k, cv)
	}

	if len(p.Annots) > 0 {
		annots := types.Array{}
		for _, ir := range p.Annots {
			ca, err := im.copyRef(ir)
			if err != nil {
				return types.Dict{}, err
			}
			annots = append(annots, ca)
		}
		pageDict.Insert("Annots", annots)
	}
	return pageDict, nil
}

// standardFontKey returns a dedup key for unembedded standard-14 font
// dicts, or "" when d is anything else.
func standardFontKey(d types.Dict) string {
	t := d.Type()
	st := d.Subtype()
	if t == nil || *t != "Font" || st == nil || *st != "Type1" {
		return ""
	}
	if d.Get("FontDescriptor") != nil || d.Get("Widths") != nil {
		return ""
	}
	base := d.NameEntry("BaseFont")
	if base == nil || !font.IsStandardFont(*base) {
		return ""
	}
	enc := ""
	if e := d.NameEntry("Encoding"); e != nil {
		enc = *e
	}
	return *base + "/" + enc
}
