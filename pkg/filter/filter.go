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

// Package filter implements the stream filter pipeline of ISO 32000-1 7.4.
package filter

import (
	"io"

	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// PDF defines the following filters.
const (
	ASCII85   = "ASCII85Decode"
	ASCIIHex  = "ASCIIHexDecode"
	RunLength = "RunLengthDecode"
	LZW       = "LZWDecode"
	Flate     = "FlateDecode"
	CCITTFax  = "CCITTFaxDecode"
	JBIG2     = "JBIG2Decode"
	DCT       = "DCTDecode"
	JPX       = "JPXDecode"
	Crypt     = "Crypt"
)

// ErrUnsupportedFilter signals an unsupported filter type.
var ErrUnsupportedFilter = errors.New("filter: not supported")

// Filter defines an interface for encoding/decoding a stream's content.
// Decode/Encode consume r fully and hand back a reader over the result;
// callers that need the bytes materialized wrap with io.ReadAll.
type Filter interface {
	Encode(r io.Reader) (io.Reader, error)
	Decode(r io.Reader) (io.Reader, error)
}

// NewFilter returns a filter implementation for filterName. parms is the
// stream's parallel /DecodeParms dict for this pipeline stage; it may be
// the zero types.Dict when the filter takes no parameters.
func NewFilter(filterName string, parms types.Dict) (Filter, error) {
	base := baseFilter{parms: parms}

	switch filterName {

	case ASCII85:
		return ascii85Decode{base}, nil

	case ASCIIHex:
		return asciiHexDecode{base}, nil

	case RunLength:
		return runLengthDecode{base}, nil

	case LZW:
		return lzwDecode{base}, nil

	case Flate:
		return flate{base}, nil

	case CCITTFax:
		return ccittDecode{base}, nil

	case DCT:
		return dctDecode{base}, nil

	case JBIG2:
		return passThruFilter{base}, nil

	case JPX:
		return passThruFilter{base}, nil

	case Crypt:
		// Crypt is resolved one layer up by pkg/pdf's security handler: by the time a
		// stream reaches this package its bytes are already decrypted, so
		// this stage is an identity pass-through.
		return passThruFilter{base}, nil
	}

	log.Info.Printf("filter: unsupported: %s", filterName)
	return nil, ErrUnsupportedFilter
}

// List returns the names of filters this package fully decodes rather than
// passing through untouched.
func List() []string {
	return []string{ASCII85, ASCIIHex, RunLength, LZW, Flate, CCITTFax}
}

type baseFilter struct {
	parms types.Dict
}

// intParm reads an integer /DecodeParms entry, returning dflt if absent.
func (f baseFilter) intParm(key string, dflt int) (int, error) {
	v, found := f.parms.Find(key)
	if !found {
		return dflt, nil
	}
	i, ok := v.(types.Integer)
	if !ok {
		return 0, errors.Errorf("filter: %q must be an integer", key)
	}
	return int(i), nil
}

// boolParm reads a boolean /DecodeParms entry, returning dflt if absent.
func (f baseFilter) boolParm(key string, dflt bool) (bool, error) {
	v, found := f.parms.Find(key)
	if !found {
		return dflt, nil
	}
	b, ok := v.(types.Boolean)
	if !ok {
		return false, errors.Errorf("filter: %q must be a boolean", key)
	}
	return bool(b), nil
}

// passThruFilter is the identity filter used for formats this package does
// not re-encode (JBIG2, JPX) and for the Crypt pseudo-filter.
type passThruFilter struct {
	baseFilter
}

func (f passThruFilter) Encode(r io.Reader) (io.Reader, error) { return r, nil }
func (f passThruFilter) Decode(r io.Reader) (io.Reader, error) { return r, nil }
