/*
Copyright 2021 The pdfcpu Authors.

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
	"io"
)

// dctDecode is a pass-through: this package preserves JPEG-compressed
// stream data bit-exact rather than decoding to pixels, since nothing
// downstream of it renders an image. Trust /Length for the data's extent -
// never scan for an "end of image" marker inside the raw bytes, since a
// JPEG payload can legally contain 0xFFD9 inside its entropy-coded scan
// data (LimitedDCTDecoder, used by the content-stream scanner for inline
// images, handles that case by walking marker segments instead).
type dctDecode struct {
	baseFilter
}

func (f dctDecode) Encode(r io.Reader) (io.Reader, error) { return r, nil }
func (f dctDecode) Decode(r io.Reader) (io.Reader, error) { return r, nil }
