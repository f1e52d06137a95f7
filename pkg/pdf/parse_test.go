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
	"testing"

	"github.com/mechiko/pdfkit/pkg/types"
)

func parseOne(t *testing.T, s string) types.Object {
	t.Helper()
	o, _, err := ParseObject([]byte(s))
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return o
}

func TestParseNumbers(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want types.Object
	}{
		{"0", types.Integer(0)},
		{"42", types.Integer(42)},
		{"-17", types.Integer(-17)},
		{"+23", types.Integer(23)},
		{"3.14", types.Float(3.14)},
		{"-.5", types.Float(-0.5)},
		{"4.", types.Float(4)},
		{"-0.002", types.Float(-0.002)},
	} {
		got := parseOne(t, tt.in)
		if got != tt.want {
			t.Errorf("%q: got %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}

	for _, bad := range []string{".", "4.2.1", "1e5"} {
		if _, _, err := ParseObject([]byte(bad)); err == nil {
			t.Errorf("%q: expected parse failure", bad)
		}
	}
}

func TestParseIndirectRefDisambiguation(t *testing.T) {
	// "12 0 R" is a reference.
	o := parseOne(t, "12 0 R")
	ir, ok := o.(types.IndirectRef)
	if !ok {
		t.Fatalf("got %T, want IndirectRef", o)
	}
	if ir.ObjectNumber != 12 || ir.GenerationNumber != 0 {
		t.Errorf("got %s", ir.PDFString())
	}

	// Without the R keyword the first number stands alone.
	o, n, err := ParseObject([]byte("12 0 RG"))
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := o.(types.Integer); !ok || i != 12 {
		t.Errorf("got %v, want Integer 12", o)
	}
	if n >= len("12 0 RG") {
		t.Errorf("consumed too much: %d", n)
	}

	// Array context: [1 0 R 2] holds a ref and an int.
	a := parseOne(t, "[1 0 R 2]").(types.Array)
	if len(a) != 2 {
		t.Fatalf("got %d members, want 2: %v", len(a), a)
	}
	if _, ok := a[0].(types.IndirectRef); !ok {
		t.Errorf("a[0] is %T", a[0])
	}
	if a[1] != types.Integer(2) {
		t.Errorf("a[1] = %v", a[1])
	}
}

func TestParseDict(t *testing.T) {
	d := parseOne(t, "<</Type /Page /Count 3 /Sub <</X true>> /N null>>").(types.Dict)
	if tp := d.Type(); tp == nil || *tp != "Page" {
		t.Errorf("Type = %v", tp)
	}
	if c := d.IntEntry("Count"); c == nil || *c != 3 {
		t.Errorf("Count = %v", c)
	}
	sub := d.DictEntry("Sub")
	if sub == nil {
		t.Fatal("no Sub entry")
	}
	if b := sub.BooleanEntry("X"); b == nil || !*b {
		t.Errorf("Sub.X = %v", b)
	}
	if _, ok := d.Get("N").(types.Null); !ok {
		t.Errorf("N = %T, want Null", d.Get("N"))
	}

	// Keys preserve file order.
	want := []string{"Type", "Count", "Sub", "N"}
	for i, k := range d.Keys() {
		if k != want[i] {
			t.Errorf("key %d = %q, want %q", i, k, want[i])
		}
	}
}

func TestParseDictDuplicateKeyWarns(t *testing.T) {
	p := &objParser{buf: []byte("<</K 1 /K 2>>")}
	o, _, err := p.object(0)
	if err != nil {
		t.Fatal(err)
	}
	d := o.(types.Dict)
	if v := d.IntEntry("K"); v == nil || *v != 2 {
		t.Errorf("duplicate key kept %v, want last value 2", v)
	}
	if len(p.warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(p.warnings))
	}
}

func TestParseStrings(t *testing.T) {
	o := parseOne(t, `(simple)`)
	if s, ok := o.(types.StringLiteral); !ok || s.Value() != "simple" {
		t.Errorf("got %v", o)
	}

	// Balanced nested parens stay intact.
	o = parseOne(t, `(a (nested) b)`)
	if s := o.(types.StringLiteral); s.Value() != "a (nested) b" {
		t.Errorf("got %q", s.Value())
	}

	// Escapes survive in the literal; Unescape resolves them.
	o = parseOne(t, `(line\nbreak \(esc\) \101)`)
	raw, err := types.Unescape(o.(types.StringLiteral).Value())
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "line\nbreak (esc) A" {
		t.Errorf("unescaped to %q", raw)
	}

	// Hex strings ignore whitespace and pad an odd nibble.
	o = parseOne(t, "<48 65 6C 6C 6F>")
	b, err := o.(types.HexLiteral).Bytes()
	if err != nil || string(b) != "Hello" {
		t.Errorf("got %q, %v", b, err)
	}
	o = parseOne(t, "<5>")
	if b, _ = o.(types.HexLiteral).Bytes(); len(b) != 1 || b[0] != 0x50 {
		t.Errorf("odd nibble: got % X", b)
	}
}

func TestParseNameEscapes(t *testing.T) {
	o := parseOne(t, "/A#20B")
	if n, ok := o.(types.Name); !ok || string(n) != "A B" {
		t.Errorf("got %v", o)
	}
	if got := types.Name("A B").PDFString(); got != "/A#20B" {
		t.Errorf("PDFString = %q", got)
	}
}

func TestParseUnterminated(t *testing.T) {
	for _, bad := range []string{"[1 2", "<</K 1", "(open", "<4142"} {
		if _, _, err := ParseObject([]byte(bad)); err == nil {
			t.Errorf("%q: expected failure", bad)
		}
	}
}

func TestScanHeaderAndTail(t *testing.T) {
	src := MemSource([]byte("junk%PDF-1.6\nbody\nstartxref\n1234\n%%EOF\n"))
	v, off, err := scanHeader(src)
	if err != nil {
		t.Fatal(err)
	}
	if v != V16 || off != 4 {
		t.Errorf("got version %v offset %d", v, off)
	}

	got, err := scanTail(src)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1234 {
		t.Errorf("startxref = %d", got)
	}
}

func TestScanTailToleratesTrailingJunk(t *testing.T) {
	src := MemSource([]byte("x\nstartxref\n7\n%%EOF\n" + "                    "))
	if _, err := scanTail(src); err != nil {
		t.Fatalf("small trailing junk should be tolerated: %v", err)
	}

	src = MemSource(append([]byte("x\nstartxref\n7\n%%EOF\n"), make([]byte, 200)...))
	if _, err := scanTail(src); err == nil {
		t.Fatal("200 junk bytes after EOF should fail")
	}
}

func TestHeaderMissing(t *testing.T) {
	_, err := OpenBytes([]byte("this is not a pdf"), nil)
	if err == nil || Kind(err) != KindStructural {
		t.Fatalf("got %v", err)
	}
}
