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

package types

// FilterEntry names one stage of a stream's filter chain plus its parallel
// /DecodeParms entry. On read the chain applies outermost filter first;
// writing mirrors it.
type FilterEntry struct {
	Name        string
	DecodeParms Dict
}

// StreamDict represents a PDF stream object: a Dict plus its data, which is
// lazily materialized. Raw holds the
// on-disk bytes (still filtered/encrypted); Content holds the fully decoded
// bytes once Decoded is true. Both may be set at once: decoding keeps Raw,
// and the writer re-encodes Content only when Raw is nil.
type StreamDict struct {
	Dict
	StreamOffset      int64
	StreamLength      *int64
	StreamLengthRef   *IndirectRef
	FilterPipeline    []FilterEntry
	Raw               []byte
	Content           []byte
	Decoded           bool
	IsPageContent     bool
}

func NewStreamDict(d Dict, streamOffset int64, streamLength *int64, streamLengthRef *IndirectRef, pipeline []FilterEntry) StreamDict {
	return StreamDict{
		Dict:            d,
		StreamOffset:    streamOffset,
		StreamLength:    streamLength,
		StreamLengthRef: streamLengthRef,
		FilterPipeline:  pipeline,
	}
}

func (sd StreamDict) Clone() Object {
	sd1 := sd
	sd1.Dict = sd.Dict.Clone().(Dict)
	pl := make([]FilterEntry, len(sd.FilterPipeline))
	for i, f := range sd.FilterPipeline {
		f2 := FilterEntry{Name: f.Name}
		if f.DecodeParms.values != nil {
			f2.DecodeParms = f.DecodeParms.Clone().(Dict)
		}
		pl[i] = f2
	}
	sd1.FilterPipeline = pl
	raw := make([]byte, len(sd.Raw))
	copy(raw, sd.Raw)
	sd1.Raw = raw
	content := make([]byte, len(sd.Content))
	copy(content, sd.Content)
	sd1.Content = content
	return sd1
}

// HasSoleFilterNamed reports whether sd's pipeline is exactly one filter
// with the given name — the common case for image XObjects.
func (sd StreamDict) HasSoleFilterNamed(name string) bool {
	return len(sd.FilterPipeline) == 1 && sd.FilterPipeline[0].Name == name
}

func (sd StreamDict) String() string {
	return sd.Dict.String() + " stream"
}

func (sd StreamDict) PDFString() string {
	return sd.Dict.PDFString()
}
