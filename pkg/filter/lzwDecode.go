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

	"github.com/hhrutter/lzw"
	"github.com/mechiko/pdfkit/pkg/log"
)

type lzwDecode struct {
	baseFilter
}

// Encode implements encoding for an LZWDecode filter.
func (f lzwDecode) Encode(r io.Reader) (io.Reader, error) {
	log.Trace.Println("EncodeLZW begin")

	ec, err := f.intParm("EarlyChange", 1)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	wc := lzw.NewWriter(&b, ec == 1)

	written, err := io.Copy(wc, r)
	if err != nil {
		wc.Close()
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}
	log.Trace.Printf("EncodeLZW end: %d bytes written\n", written)

	return &b, nil
}

// Decode implements decoding for an LZWDecode filter. The /EarlyChange
// convention (code width bumps one code early, PDF's default) is honoured
// the same way /Predictor is: read from the stream's own /DecodeParms.
func (f lzwDecode) Decode(r io.Reader) (io.Reader, error) {
	log.Trace.Println("DecodeLZW begin")

	ec, err := f.intParm("EarlyChange", 1)
	if err != nil {
		return nil, err
	}

	rc := lzw.NewReader(r, ec == 1)
	defer rc.Close()

	return f.baseFilter.decodePostProcess(rc)
}
