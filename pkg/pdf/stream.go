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
	"io"

	"github.com/mechiko/pdfkit/pkg/filter"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// decodeStream runs sd.Raw through the filter chain into sd.Content.
// Filters apply in /Filter array order: the outermost (first-listed)
// filter decodes first.
func decodeStream(sd *types.StreamDict) error {
	if sd.Decoded {
		return nil
	}
	data := sd.Raw
	for _, fe := range sd.FilterPipeline {
		f, err := filter.NewFilter(fe.Name, fe.DecodeParms)
		if err != nil {
			return errors.Wrapf(err, "filter %s", fe.Name)
		}
		r, err := f.Decode(bytes.NewReader(data))
		if err != nil {
			return errors.Wrapf(err, "filter %s", fe.Name)
		}
		if data, err = io.ReadAll(r); err != nil {
			return errors.Wrapf(err, "filter %s", fe.Name)
		}
	}
	sd.Content = data
	sd.Decoded = true
	return nil
}

// encodeStream runs sd.Content back through the filter chain into sd.Raw,
// innermost (last-listed) filter first.
func encodeStream(sd *types.StreamDict) error {
	data := sd.Content
	for i := len(sd.FilterPipeline) - 1; i >= 0; i-- {
		fe := sd.FilterPipeline[i]
		f, err := filter.NewFilter(fe.Name, fe.DecodeParms)
		if err != nil {
			return errors.Wrapf(err, "filter %s", fe.Name)
		}
		r, err := f.Encode(bytes.NewReader(data))
		if err != nil {
			return errors.Wrapf(err, "filter %s", fe.Name)
		}
		if data, err = io.ReadAll(r); err != nil {
			return errors.Wrapf(err, "filter %s", fe.Name)
		}
	}
	sd.Raw = data
	n := int64(len(data))
	sd.StreamLength = &n
	sd.Update("Length", types.Integer(n))
	return nil
}

// NewFlateStream builds a stream dict around content, flate-compressed.
func NewFlateStream(content []byte, extra types.Dict) (types.StreamDict, error) {
	d := types.NewDict()
	for _, k := range extra.Keys() {
		d.Insert(k, extra.Get(k))
	}
	d.InsertName("Filter", filter.Flate)
	sd := types.StreamDict{
		Dict:           d,
		Content:        content,
		Decoded:        true,
		FilterPipeline: []types.FilterEntry{{Name: filter.Flate}},
	}
	if err := encodeStream(&sd); err != nil {
		return types.StreamDict{}, err
	}
	return sd, nil
}

// NewRawStream builds an unfiltered stream dict around content.
func NewRawStream(content []byte, extra types.Dict) types.StreamDict {
	d := types.NewDict()
	for _, k := range extra.Keys() {
		d.Insert(k, extra.Get(k))
	}
	n := int64(len(content))
	d.Update("Length", types.Integer(n))
	return types.StreamDict{
		Dict:         d,
		Content:      content,
		Raw:          content,
		Decoded:      true,
		StreamLength: &n,
	}
}
