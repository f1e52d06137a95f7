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

package filter

import (
	"bytes"
	"io"

	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/pkg/errors"
	"golang.org/x/image/ccitt"
)

type ccittDecode struct {
	baseFilter
}

// Encode implements encoding for a CCITTFaxDecode filter. Producers of PDF
// written by this package never re-encode scanned fax images, so this
// direction is unused.
func (f ccittDecode) Encode(r io.Reader) (io.Reader, error) {
	return nil, errors.New("filter: CCITTFaxDecode: encoding not supported")
}

// Decode implements decoding for a CCITTFaxDecode filter (ISO 32000-1
// 7.4.6), delegating the bit-level Group 3/Group 4 decompression to
// golang.org/x/image/ccitt.
func (f ccittDecode) Decode(r io.Reader) (io.Reader, error) {
	log.Trace.Println("DecodeCCITT begin")

	// K < 0: pure two-dimensional encoding (Group 4).
	// K = 0: pure one-dimensional encoding (Group 3, 1-D).
	// K > 0: mixed one- and two-dimensional encoding (Group 3, 2-D) - not
	// supported by x/image/ccitt.
	k, err := f.intParm("K", 0)
	if err != nil {
		return nil, err
	}
	if k > 0 {
		return nil, errors.New("filter: CCITTFaxDecode: K > 0 (Group 3 2-D) unsupported")
	}

	columns, err := f.intParm("Columns", 1728)
	if err != nil {
		return nil, err
	}

	// Rows bounds the decode; 0 lets the data's end-of-block terminate it.
	rows, err := f.intParm("Rows", 0)
	if err != nil {
		return nil, err
	}

	blackIs1, err := f.boolParm("BlackIs1", false)
	if err != nil {
		return nil, err
	}

	encodedByteAlign, err := f.boolParm("EncodedByteAlign", false)
	if err != nil {
		return nil, err
	}

	mode := ccitt.Group3
	if k < 0 {
		mode = ccitt.Group4
	}

	rc := ccitt.NewReader(r, ccitt.MSB, mode, columns, rows, &ccitt.Options{
		Invert: !blackIs1,
		Align:  encodedByteAlign,
	})

	var b bytes.Buffer
	written, err := io.Copy(&b, rc)
	if err != nil {
		return nil, err
	}
	log.Trace.Printf("DecodeCCITT: decoded %d bytes.\n", written)

	return &b, nil
}
