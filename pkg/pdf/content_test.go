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
	"testing"

	"github.com/mechiko/pdfkit/pkg/types"
)

func TestParseContentOperators(t *testing.T) {
	content := []byte(`BT
/F1 12 Tf
1 0 0 1 50 700 Tm
(Hello) Tj
[(Kerned) -120 (Text)] TJ
ET
q 0.5 0 0 0.5 10 10 cm
100 100 m 200 200 l S
Q
`)
	ops, err := ParseContent(content)
	if err != nil {
		t.Fatal(err)
	}

	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	want := []string{"BT", "Tf", "Tm", "Tj", "TJ", "ET", "q", "cm", "m", "l", "S", "Q"}
	if len(names) != len(want) {
		t.Fatalf("got %d ops %v, want %d", len(names), names, len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, names[i], want[i])
		}
	}

	// Tf carries name + size operands.
	tf := ops[1]
	if len(tf.Operands) != 2 {
		t.Fatalf("Tf operands = %v", tf.Operands)
	}
	if n, ok := tf.Operands[0].(types.Name); !ok || n != "F1" {
		t.Errorf("Tf font = %v", tf.Operands[0])
	}

	texts := TextShowStrings(ops)
	for _, want := range []string{"Hello", "Kerned", "Text"} {
		if !containsText(texts, want) {
			t.Errorf("missing %q in %q", want, texts)
		}
	}
}

func TestParseContentQuoteOperators(t *testing.T) {
	ops, err := ParseContent([]byte("BT (one) ' 2 3 (two) \" ET"))
	if err != nil {
		t.Fatal(err)
	}
	texts := TextShowStrings(ops)
	if !containsText(texts, "one") || !containsText(texts, "two") {
		t.Errorf("texts = %q", texts)
	}
}

func TestInlineImageUnfiltered(t *testing.T) {
	// 2x2, 8 bpc, single component: 4 data bytes, no /L needed.
	content := append([]byte("BI /W 2 /H 2 /BPC 8 /CS /G ID "), 0xDE, 0xAD, 0xBE, 0xEF)
	content = append(content, []byte(" EI 1 0 0 1 0 0 cm")...)

	ops, err := ParseContent(content)
	if err != nil {
		t.Fatal(err)
	}
	if ops[0].Name != "BI" {
		t.Fatalf("first op = %q", ops[0].Name)
	}
	if !bytes.Equal(ops[0].InlineData, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("inline data = % X", ops[0].InlineData)
	}
	if ops[len(ops)-1].Name != "cm" {
		t.Errorf("scanning did not resume after EI: %v", ops)
	}
}

func TestInlineImageExplicitLength(t *testing.T) {
	// /L wins over everything, so data may even contain "EI".
	data := []byte("xxEI yy")
	content := append([]byte("BI /W 1 /H 1 /BPC 8 /CS /G /L 7 ID "), data...)
	content = append(content, []byte(" EI")...)

	ops, err := ParseContent(content)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ops[0].InlineData, data) {
		t.Errorf("inline data = %q", ops[0].InlineData)
	}
}

func TestInlineImageASCIIHex(t *testing.T) {
	content := []byte("BI /W 2 /H 1 /BPC 8 /CS /G /F /AHx ID CAFE> EI")
	ops, err := ParseContent(content)
	if err != nil {
		t.Fatal(err)
	}
	if string(ops[0].InlineData) != "CAFE>" {
		t.Errorf("inline data = %q", ops[0].InlineData)
	}
}

func TestInlineImageFlateVerifiedTerminator(t *testing.T) {
	// Flate-compressed inline data with no /L: the scanner must verify a
	// candidate EI by decoding, not by string matching.
	raw := bytes.Repeat([]byte{0x41}, 64)
	sd, err := NewFlateStream(raw, types.NewDict())
	if err != nil {
		t.Fatal(err)
	}

	content := append([]byte("BI /W 8 /H 8 /BPC 8 /CS /G /F /Fl ID "), sd.Raw...)
	content = append(content, []byte("\nEI")...)

	ops, err := ParseContent(content)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ops[0].InlineData, sd.Raw) {
		t.Errorf("inline data %d bytes, want %d", len(ops[0].InlineData), len(sd.Raw))
	}
}

func TestOperationString(t *testing.T) {
	op := Operation{Name: "Tj", Operands: types.Array{types.StringLiteral("x")}}
	if s := op.String(); s == "" {
		t.Error("empty debug form")
	}
}
