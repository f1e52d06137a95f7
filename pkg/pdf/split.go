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
	"github.com/mechiko/pdfkit/pkg/log"
	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// SplitMode selects how Split partitions the source pages.
type SplitMode int

const (
	// SplitByPageCount cuts every N pages.
	SplitByPageCount SplitMode = iota

	// SplitByRanges emits one output per [from, thru] page range.
	SplitByRanges

	// SplitAtPoints starts a new output before each listed page number.
	SplitAtPoints

	// SplitSinglePages emits one output per page.
	SplitSinglePages
)

// SplitConfig parameterizes Split.
type SplitConfig struct {
	Mode SplitMode

	// N is the chunk size for SplitByPageCount.
	N int

	// Ranges holds inclusive 1-based [from, thru] pairs for SplitByRanges.
	Ranges [][2]int

	// Points holds the 1-based page numbers starting new chunks for
	// SplitAtPoints. Page 1 is implicit.
	Points []int
}

// SkippedPage records a page a partial-success operation left out.
type SkippedPage struct {
	PageNr int
	Reason error
}

// SplitResult carries the outputs plus whatever pages had to be skipped in
// tolerant mode.
type SplitResult struct {
	Documents []*Document
	Skipped   []SkippedPage
}

// Split partitions d's pages into independent documents, each with its own
// catalog and page tree, inheriting d's /Info by default. In tolerant mode
// an unreadable page is skipped and reported; strict mode fails on it.
func Split(d *Document, cfg SplitConfig, conf *Configuration) (*SplitResult, error) {
	n, err := d.PageCount()
	if err != nil {
		return nil, errors.Wrap(err, "while splitting")
	}

	chunks, err := splitChunks(cfg, n)
	if err != nil {
		return nil, err
	}

	res := &SplitResult{}
	for _, chunk := range chunks {
		out := NewDocument(conf)
		im := newImporter(d, out, nil)
		pagesAdded := 0

		for _, pageNr := range chunk {
			if d.Conf.aborted() {
				return nil, ErrAborted
			}
			if err := copyPageInto(d, im, out, pageNr); err != nil {
				if d.Conf.Strict {
					return nil, errors.Wrapf(err, "while splitting page %d", pageNr)
				}
				log.Info.Printf("split: skipping page %d: %v", pageNr, err)
				res.Skipped = append(res.Skipped, SkippedPage{PageNr: pageNr, Reason: err})
				continue
			}
			pagesAdded++
		}

		if pagesAdded == 0 {
			continue
		}
		if err := inheritInfo(d, out); err != nil {
			return nil, err
		}
		res.Documents = append(res.Documents, out)
	}
	return res, nil
}

// ExtractPages builds one new document holding the listed pages (1-based),
// carrying each page's MediaBox, rotation, content streams and the full
// resource closure, which is what overlay semantics downstream need.
func ExtractPages(d *Document, pageNrs []int, conf *Configuration) (*Document, error) {
	out := NewDocument(conf)
	im := newImporter(d, out, nil)
	for _, nr := range pageNrs {
		if err := copyPageInto(d, im, out, nr); err != nil {
			return nil, errors.Wrapf(err, "while extracting page %d", nr)
		}
	}
	if err := inheritInfo(d, out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyPageInto(d *Document, im *importer, out *Document, pageNr int) error {
	p, err := d.Page(pageNr)
	if err != nil {
		return err
	}
	pageDict, err := im.importPage(p)
	if err != nil {
		return err
	}
	_, err = out.AppendPage(pageDict)
	return err
}

func inheritInfo(src, dst *Document) error {
	info, err := src.InfoDict()
	if err != nil || info.Len() == 0 {
		return nil
	}
	ref := dst.Add(info.Clone())
	dst.Info = &ref
	dst.Trailer.Update("Info", ref)
	return nil
}

// splitChunks expands cfg into explicit page-number lists.
func splitChunks(cfg SplitConfig, pageCount int) ([][]int, error) {
	pages := func(from, thru int) []int {
		var out []int
		for i := from; i <= thru && i <= pageCount; i++ {
			if i >= 1 {
				out = append(out, i)
			}
		}
		return out
	}

	switch cfg.Mode {

	case SplitByPageCount:
		if cfg.N < 1 {
			return nil, errors.Errorf("pdf: split chunk size %d", cfg.N)
		}
		var chunks [][]int
		for from := 1; from <= pageCount; from += cfg.N {
			chunks = append(chunks, pages(from, from+cfg.N-1))
		}
		return chunks, nil

	case SplitByRanges:
		if len(cfg.Ranges) == 0 {
			return nil, errors.New("pdf: split needs at least one page range")
		}
		var chunks [][]int
		for _, r := range cfg.Ranges {
			if r[0] > r[1] {
				return nil, errors.Errorf("pdf: bad page range %d-%d", r[0], r[1])
			}
			if c := pages(r[0], r[1]); len(c) > 0 {
				chunks = append(chunks, c)
			}
		}
		return chunks, nil

	case SplitAtPoints:
		starts := append([]int{1}, cfg.Points...)
		sortInts(starts)
		var chunks [][]int
		for i, from := range starts {
			thru := pageCount
			if i+1 < len(starts) {
				thru = starts[i+1] - 1
			}
			if c := pages(from, thru); len(c) > 0 {
				chunks = append(chunks, c)
			}
		}
		return chunks, nil

	case SplitSinglePages:
		var chunks [][]int
		for i := 1; i <= pageCount; i++ {
			chunks = append(chunks, []int{i})
		}
		return chunks, nil
	}
	return nil, errors.Errorf("pdf: unknown split mode %d", cfg.Mode)
}

// RotatePages adds degrees (a multiple of 90) to /Rotate of the listed
// pages (1-based; nil means all). Content is untouched; only the page
// dict mutates, so the change stages cleanly for an incremental update.
func RotatePages(d *Document, pageNrs []int, degrees int) error {
	if degrees%90 != 0 {
		return errors.Errorf("pdf: rotation %d is not a multiple of 90", degrees)
	}

	if pageNrs == nil {
		n, err := d.PageCount()
		if err != nil {
			return err
		}
		for i := 1; i <= n; i++ {
			pageNrs = append(pageNrs, i)
		}
	}

	for _, nr := range pageNrs {
		p, err := d.Page(nr)
		if err != nil {
			return err
		}
		rot := ((p.Rotate+degrees)%360 + 360) % 360
		pageDict := p.Dict.Clone().(types.Dict)
		// An explicit 0 stays on the leaf: dropping the entry would let an
		// inherited /Rotate take effect again.
		pageDict.Update("Rotate", types.Integer(rot))
		if err := d.Replace(p.Ref, pageDict); err != nil {
			return err
		}
	}
	d.InvalidatePageIndex()
	return nil
}
