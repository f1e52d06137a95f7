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

package filter_test

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/mechiko/pdfkit/pkg/filter"
	"github.com/mechiko/pdfkit/pkg/types"
)

// roundTripFilters are the filters this package both encodes and decodes;
// CCITTFaxDecode is decode-only since producers never re-compress fax data.
func roundTripFilters() []string {
	var out []string
	for _, f := range filter.List() {
		if f == filter.CCITTFax {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Encode a test string twice with the same filter then decode the result
// twice to get back to the original string.
func encodeDecodeUsingFilterNamed(t *testing.T, filterName string) {
	f, err := filter.NewFilter(filterName, types.NewDict())
	if err != nil {
		t.Fatalf("Problem: %v\n", err)
	}

	input := "Hello, Gopher!"

	b1, err := f.Encode(bytes.NewReader([]byte(input)))
	if err != nil {
		t.Fatalf("Problem encoding 1: %v\n", err)
	}

	b2, err := f.Encode(b1)
	if err != nil {
		t.Fatalf("Problem encoding 2: %v\n", err)
	}

	c1, err := f.Decode(b2)
	if err != nil {
		t.Fatalf("Problem decoding 2: %v\n", err)
	}

	c2, err := f.Decode(c1)
	if err != nil {
		t.Fatalf("Problem decoding 1: %v\n", err)
	}

	got, err := io.ReadAll(c2)
	if err != nil {
		t.Fatalf("reading decoded result: %v\n", err)
	}

	if input != string(got) {
		t.Fatalf("original content %q != decoded content %q", input, got)
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, f := range roundTripFilters() {
		encodeDecodeUsingFilterNamed(t, f)
	}
}

// corpus holds representative payloads: empty, single byte, highly
// repetitive, and pseudo-random binary.
func corpus() map[string][]byte {
	rnd := make([]byte, 4096)
	x := uint32(0x2F6E2B1)
	for i := range rnd {
		x = x*1664525 + 1013904223
		rnd[i] = byte(x >> 24)
	}
	return map[string][]byte{
		"empty":      {},
		"single":     {0x42},
		"repetitive": bytes.Repeat([]byte("abcabcabc\x00\x00\x00"), 512),
		"random":     rnd,
	}
}

// testPayload checks that encoding then decoding reproduces the payload
// exactly.
func testPayload(t *testing.T, filterName, payloadName string, payload []byte) {
	f, err := filter.NewFilter(filterName, types.NewDict())
	if err != nil {
		t.Fatalf("Problem: %v\n", err)
	}

	enc, err := f.Encode(bufio.NewReader(bytes.NewReader(payload)))
	if err != nil {
		t.Errorf("%s/%s: encoding: %v", filterName, payloadName, err)
		return
	}

	dec, err := f.Decode(enc)
	if err != nil {
		t.Errorf("%s/%s: decoding: %v", filterName, payloadName, err)
		return
	}

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Errorf("%s/%s: %v", filterName, payloadName, err)
		return
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("%s/%s: round trip mismatch: %d bytes != %d bytes", filterName, payloadName, len(got), len(payload))
	}
}

func TestFilterInverseOverCorpus(t *testing.T) {
	for _, filterName := range roundTripFilters() {
		for payloadName, payload := range corpus() {
			testPayload(t, filterName, payloadName, payload)
		}
	}
}
