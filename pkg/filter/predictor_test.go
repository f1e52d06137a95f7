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
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"testing"

	"github.com/mechiko/pdfkit/pkg/filter"
	"github.com/mechiko/pdfkit/pkg/types"
)

// pngForwardFilter applies one PNG row filter (the encoder direction) so
// the decoder's inverse can be pinned against it.
func pngForwardFilter(tag int, row, prev []byte, bpp int) []byte {
	out := make([]byte, len(row)+1)
	out[0] = byte(tag)

	left := func(i int) int {
		if i >= bpp {
			return int(row[i-bpp])
		}
		return 0
	}
	upperLeft := func(i int) int {
		if i >= bpp {
			return int(prev[i-bpp])
		}
		return 0
	}

	for i := range row {
		var pred int
		switch tag {
		case 0: // None
			pred = 0
		case 1: // Sub
			pred = left(i)
		case 2: // Up
			pred = int(prev[i])
		case 3: // Average
			pred = (left(i) + int(prev[i])) / 2
		case 4: // Paeth
			a, b, c := left(i), int(prev[i]), upperLeft(i)
			p := a + b - c
			pa, pb, pc := absInt(p-a), absInt(p-b), absInt(p-c)
			switch {
			case pa <= pb && pa <= pc:
				pred = a
			case pb <= pc:
				pred = b
			default:
				pred = c
			}
		}
		out[i+1] = byte(int(row[i]) - pred)
	}
	return out
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// tiffForwardFilter applies horizontal differencing (8 bpc).
func tiffForwardFilter(row []byte, colors int) []byte {
	out := append([]byte{}, row...)
	for i := len(row)/colors - 1; i >= 1; i-- {
		for j := 0; j < colors; j++ {
			out[i*colors+j] -= out[(i-1)*colors+j]
		}
	}
	return out
}

func deflate(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	return buf.Bytes()
}

func decodeWithParms(t *testing.T, data []byte, predictor, colors, bpc, columns int) ([]byte, error) {
	t.Helper()
	parms := types.NewDict()
	parms.InsertInt("Predictor", predictor)
	parms.InsertInt("Colors", colors)
	parms.InsertInt("BitsPerComponent", bpc)
	parms.InsertInt("Columns", columns)

	f, err := filter.NewFilter(filter.Flate, parms)
	if err != nil {
		t.Fatal(err)
	}
	r, err := f.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// fixtureRows builds a deterministic raster of the given geometry.
func fixtureRows(rows, rowSize int) [][]byte {
	out := make([][]byte, rows)
	x := uint32(7)
	for r := range out {
		row := make([]byte, rowSize)
		for i := range row {
			x = x*1103515245 + 12345
			row[i] = byte(x >> 16)
		}
		out[r] = row
	}
	return out
}

// TestPNGPredictors covers predictors 10-15 across the column, color and
// bit-depth grid, pinning the decoder against the reference forward
// filter applied after compression geometry is fixed.
func TestPNGPredictors(t *testing.T) {
	grid := struct {
		columns []int
		colors  []int
		bpc     []int
	}{
		columns: []int{1, 3, 5, 32},
		colors:  []int{1, 3, 4},
		bpc:     []int{1, 2, 4, 8, 16},
	}

	// predictor param -> row filter tags used
	cases := map[int][]int{
		10: {0},
		11: {1},
		12: {2},
		13: {3},
		14: {4},
		15: {0, 1, 2, 3, 4}, // per-row choice
	}

	for predictor, tags := range cases {
		for _, columns := range grid.columns {
			for _, colors := range grid.colors {
				for _, bpc := range grid.bpc {
					rowSize := bpc * colors * columns / 8
					if rowSize == 0 {
						continue
					}
					name := fmt.Sprintf("p%d-c%d-n%d-b%d", predictor, columns, colors, bpc)
					t.Run(name, func(t *testing.T) {
						bpp := (bpc*colors + 7) / 8
						rows := fixtureRows(8, rowSize)

						var plain, filtered []byte
						prev := make([]byte, rowSize)
						for i, row := range rows {
							tag := tags[i%len(tags)]
							filtered = append(filtered, pngForwardFilter(tag, row, prev, bpp)...)
							plain = append(plain, row...)
							prev = row
						}

						got, err := decodeWithParms(t, deflate(t, filtered), predictor, colors, bpc, columns)
						if err != nil {
							t.Fatal(err)
						}
						if !bytes.Equal(got, plain) {
							t.Errorf("decoded %d bytes != expected %d bytes", len(got), len(plain))
						}
					})
				}
			}
		}
	}
}

// TestTIFFPredictor2 pins horizontal differencing at 8 bits per component.
func TestTIFFPredictor2(t *testing.T) {
	for _, colors := range []int{1, 3, 4} {
		for _, columns := range []int{1, 3, 5, 32} {
			rowSize := colors * columns
			rows := fixtureRows(4, rowSize)

			var plain, filtered []byte
			for _, row := range rows {
				filtered = append(filtered, tiffForwardFilter(row, colors)...)
				plain = append(plain, row...)
			}

			got, err := decodeWithParms(t, deflate(t, filtered), 2, colors, 8, columns)
			if err != nil {
				t.Fatalf("colors %d columns %d: %v", colors, columns, err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("colors %d columns %d: mismatch", colors, columns)
			}
		}
	}
}

// TestPredictorRejectsWrongRowFilter pins the strict row-tag check for the
// single-filter predictor params.
func TestPredictorRejectsWrongRowFilter(t *testing.T) {
	row := make([]byte, 6) // tag 0 + 5 bytes, but predictor 12 demands tag 2
	if _, err := decodeWithParms(t, deflate(t, row), 12, 1, 8, 5); err == nil {
		t.Error("predictor 12 with row tag 0 should fail")
	}
}
