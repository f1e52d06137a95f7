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
	"image"

	"github.com/hhrutter/tiff"
	"github.com/mechiko/pdfkit/pkg/filter"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
	"golang.org/x/image/ccitt"
)

// ImageFormat describes what Image.Data holds.
type ImageFormat int

const (
	// ImageJPEG: the DCT stream verbatim, SOI through EOI — never
	// re-encoded, never truncated.
	ImageJPEG ImageFormat = iota

	// ImageJPX: the JPEG2000 codestream verbatim.
	ImageJPX

	// ImageTIFF: a TIFF container built around decoded CCITT fax data.
	ImageTIFF

	// ImageRaw: decoded samples with no container; Width, Height and
	// BitsPerComponent describe the layout.
	ImageRaw
)

// Image is one extracted image XObject.
type Image struct {
	Name             string
	Format           ImageFormat
	Data             []byte
	Width, Height    int
	BitsPerComponent int
}

// ExtractPageImages pulls every image XObject a page references. JPEG and
// JPEG2000 payloads pass through bit-exact; CCITT fax data is decoded and
// wrapped into a TIFF container; everything else comes out as raw decoded
// samples.
func (d *Document) ExtractPageImages(p *Page) ([]Image, error) {
	xobjects, err := d.PageXObjects(p)
	if err != nil {
		return nil, err
	}

	var out []Image
	for name, sd := range xobjects {
		if st := sd.Subtype(); st == nil || *st != "Image" {
			continue
		}
		img, err := d.extractImage(name, sd)
		if err != nil {
			d.warnf(0, "image %s skipped: %v", name, err)
			continue
		}
		out = append(out, img)
	}
	return out, nil
}

func (d *Document) extractImage(name string, sd *types.StreamDict) (Image, error) {
	img := Image{Name: name}
	if w := sd.IntEntry("Width"); w != nil {
		img.Width = *w
	}
	if h := sd.IntEntry("Height"); h != nil {
		img.Height = *h
	}
	img.BitsPerComponent = 8
	if b := sd.IntEntry("BitsPerComponent"); b != nil {
		img.BitsPerComponent = *b
	}

	if err := d.loadRawStream(sd); err != nil {
		return img, err
	}

	if sd.HasSoleFilterNamed(filter.DCT) {
		img.Format = ImageJPEG
		img.Data = sd.Raw
		return img, nil
	}
	if sd.HasSoleFilterNamed(filter.JPX) {
		img.Format = ImageJPX
		img.Data = sd.Raw
		return img, nil
	}
	if sd.HasSoleFilterNamed(filter.CCITTFax) {
		return d.extractCCITTImage(img, sd)
	}

	if err := decodeStream(sd); err != nil {
		return img, err
	}
	img.Format = ImageRaw
	img.Data = sd.Content
	return img, nil
}

// extractCCITTImage decodes Group 3/4 fax data into a bilevel raster and
// re-wraps it as TIFF, the container fax data is at home in.
func (d *Document) extractCCITTImage(img Image, sd *types.StreamDict) (Image, error) {
	parms := sd.FilterPipeline[0].DecodeParms

	k := 0
	if v := parms.IntEntry("K"); v != nil {
		k = *v
	}
	if k > 0 {
		return img, errors.New("pdf: CCITT K > 0 (Group 3 2-D) unsupported")
	}
	mode := ccitt.Group3
	if k < 0 {
		mode = ccitt.Group4
	}

	cols := 1728
	if v := parms.IntEntry("Columns"); v != nil {
		cols = *v
	}
	rows := img.Height
	if v := parms.IntEntry("Rows"); v != nil {
		rows = *v
	}
	blackIs1 := false
	if v := parms.BooleanEntry("BlackIs1"); v != nil {
		blackIs1 = *v
	}
	align := false
	if v := parms.BooleanEntry("EncodedByteAlign"); v != nil {
		align = *v
	}

	gray := image.NewGray(image.Rect(0, 0, cols, rows))
	err := ccitt.DecodeIntoGray(gray, bytes.NewReader(sd.Raw), ccitt.MSB, mode, &ccitt.Options{
		Invert: !blackIs1,
		Align:  align,
	})
	if err != nil {
		return img, errors.Wrap(err, "pdf: decoding CCITT image")
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, gray, nil); err != nil {
		return img, errors.Wrap(err, "pdf: encoding TIFF container")
	}
	img.Format = ImageTIFF
	img.Data = buf.Bytes()
	img.BitsPerComponent = 1
	return img, nil
}
