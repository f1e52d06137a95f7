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

package font

import (
	"strings"
	"testing"

	"github.com/mechiko/pdfkit/pkg/types"
)

func TestIsStandardFont(t *testing.T) {
	for _, name := range []string{"Helvetica", "Times-Roman", "Courier-BoldOblique", "Symbol", "ZapfDingbats"} {
		if !IsStandardFont(name) {
			t.Errorf("%s should be standard", name)
		}
	}
	if !IsStandardFont("Arial") {
		t.Error("Arial should alias to Helvetica")
	}
	if IsStandardFont("ComicSans") {
		t.Error("ComicSans is not standard")
	}
	if len(StandardFontNames()) != 14 {
		t.Errorf("got %d names", len(StandardFontNames()))
	}
}

func TestCharWidth(t *testing.T) {
	for _, tt := range []struct {
		font string
		c    int
		want int
	}{
		{"Helvetica", ' ', 278},
		{"Helvetica", 'A', 667},
		{"Helvetica", 'i', 222},
		{"Times-Roman", ' ', 250},
		{"Times-Roman", 'W', 944},
		{"Courier", 'M', 600},
		{"Courier", 'i', 600},
	} {
		if got := CharWidth(tt.font, tt.c); got != tt.want {
			t.Errorf("CharWidth(%s, %q) = %d, want %d", tt.font, tt.c, got, tt.want)
		}
	}
}

func TestTextWidth(t *testing.T) {
	// Five Courier characters at 10pt: 5 * 600/1000 * 10 = 30.
	if got := TextWidth("abcde", "Courier", 10); got != 30 {
		t.Errorf("TextWidth = %v, want 30", got)
	}
}

func TestEveryStandardFontHasFullWidthTable(t *testing.T) {
	for _, name := range StandardFontNames() {
		m := Standard14Metrics(name)
		if m == nil {
			t.Fatalf("%s has no metrics", name)
		}
		if len(m.Widths) != 95 {
			t.Errorf("%s has %d widths, want 95 (codes 32-126)", name, len(m.Widths))
		}
		for i, w := range m.Widths {
			if w <= 0 {
				t.Errorf("%s width[%d] = %d", name, i, w)
			}
		}
		if m.DefaultWidth <= 0 {
			t.Errorf("%s default width %d", name, m.DefaultWidth)
		}
	}
}

func TestCIDWidthsGrouping(t *testing.T) {
	f, err := ParseTrueType(buildTestFont(t))
	if err != nil {
		t.Fatal(err)
	}
	w := f.CIDWidths(map[uint16]bool{1: true, 2: true, 3: true})
	// One contiguous run: [1 [600 700 800]].
	if len(w) != 2 {
		t.Fatalf("W = %v", w)
	}
	if w[0] != types.Integer(1) {
		t.Errorf("run start = %v", w[0])
	}
	run := w[1].(types.Array)
	want := []int{600, 700, 800}
	for i, v := range run {
		if v != types.Integer(want[i]) {
			t.Errorf("run[%d] = %v, want %d", i, v, want[i])
		}
	}
}

func TestToUnicodeCMap(t *testing.T) {
	f, err := ParseTrueType(buildTestFont(t))
	if err != nil {
		t.Fatal(err)
	}
	cmap := string(f.ToUnicodeCMap(map[uint16]bool{1: true, 2: true}))
	for _, want := range []string{"begincmap", "beginbfchar", "<0001> <0041>", "<0002> <0042>", "endcmap"} {
		if !strings.Contains(cmap, want) {
			t.Errorf("ToUnicode CMap missing %q", want)
		}
	}
}

func TestEncodeText(t *testing.T) {
	f, err := ParseTrueType(buildTestFont(t))
	if err != nil {
		t.Fatal(err)
	}
	got := f.EncodeText("AB")
	want := []byte{0x00, 0x01, 0x00, 0x02}
	if len(got) != len(want) {
		t.Fatalf("encoded %d bytes", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %02X, want %02X", i, got[i], want[i])
		}
	}
}

func TestSubsetTagDeterministic(t *testing.T) {
	a := SubsetTagFor(map[uint16]bool{1: true, 5: true})
	b := SubsetTagFor(map[uint16]bool{5: true, 1: true})
	if a != b {
		t.Errorf("tags differ: %s vs %s", a, b)
	}
	if len(a) != 6 {
		t.Errorf("tag %q", a)
	}
	for _, c := range a {
		if c < 'A' || c > 'Z' {
			t.Errorf("tag char %q", c)
		}
	}
}
