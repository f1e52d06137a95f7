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

import "testing"

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Insert("Type", Name("Page"))
	d.Insert("Parent", NewIndirectRef(1, 0))
	d.Insert("MediaBox", NewNumberArray(0, 0, 612, 792))

	want := []string{"Type", "Parent", "MediaBox"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDictDuplicateInsertKeepsPosition(t *testing.T) {
	d := NewDict()
	d.Insert("A", Integer(1))
	d.Insert("B", Integer(2))
	d.Update("A", Integer(99))

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	if got := d.Keys()[0]; got != "A" {
		t.Fatalf("Keys()[0] = %q, want %q", got, "A")
	}
	v, _ := d.Find("A")
	if v != Integer(99) {
		t.Fatalf("Find(A) = %v, want 99", v)
	}
}

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	for _, s := range []string{"F1", "Helvetica-Bold", "a b", "na#me", "100% on"} {
		enc := EncodeName(s)
		dec, err := DecodeName(enc)
		if err != nil {
			t.Fatalf("DecodeName(%q): %v", enc, err)
		}
		if dec != s {
			t.Fatalf("round trip %q -> %q -> %q", s, enc, dec)
		}
	}
}

func TestFloatPDFStringNoExponentNoTrailingZeros(t *testing.T) {
	tests := []struct {
		in   Float
		want string
	}{
		{Float(1), "1"},
		{Float(1.5), "1.5"},
		{Float(0), "0"},
		{Float(-0.25), "-0.25"},
		{Float(612.0), "612"},
	}
	for _, tt := range tests {
		if got := tt.in.PDFString(); got != tt.want {
			t.Errorf("Float(%v).PDFString() = %q, want %q", float64(tt.in), got, tt.want)
		}
	}
}

func TestUnescapeLiteralString(t *testing.T) {
	b, err := Unescape(`Hello \(World\)\n\062`)
	if err != nil {
		t.Fatal(err)
	}
	want := "Hello (World)\n2"
	if string(b) != want {
		t.Fatalf("Unescape() = %q, want %q", string(b), want)
	}
}

func TestHexLiteralOddNibblePadded(t *testing.T) {
	hl := HexLiteral("48656c6c6f2")
	b, err := hl.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("Hello ")
	if string(b) != string(want) {
		t.Fatalf("Bytes() = %q, want %q", b, want)
	}
}

func TestUTF16BERoundTrip(t *testing.T) {
	s := "héllo"
	enc := EncodeUTF16String(s)
	sl := StringLiteral(enc)
	got, err := StringLiteralToString(sl)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Fatalf("round trip = %q, want %q", got, s)
	}
}

func TestRectangleDimensions(t *testing.T) {
	r := NewRectangle(0, 0, 595, 842)
	if r.Width() != 595 || r.Height() != 842 {
		t.Fatalf("got w=%v h=%v, want 595x842", r.Width(), r.Height())
	}
	if r.Landscape() {
		t.Fatal("A4 portrait reported as landscape")
	}
}
