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

// MergeMetadataMode selects whose document metadata the merged output
// carries.
type MergeMetadataMode int

const (
	// MetadataFromFirst copies the first input's /Info.
	MetadataFromFirst MergeMetadataMode = iota

	// MetadataFromLast copies the last input's /Info.
	MetadataFromLast

	// MetadataCombined starts from the first input's /Info and backfills
	// keys the later inputs add.
	MetadataCombined

	// MetadataCustom uses MergeConfig.Custom verbatim.
	MetadataCustom
)

// MergeConfig tunes a merge beyond the page concatenation itself.
type MergeConfig struct {
	Metadata MergeMetadataMode

	// Custom is the /Info dict used with MetadataCustom.
	Custom types.Dict
}

// Merge concatenates the pages of docs, in order, into a fresh document.
// Indirect references renumber through a per-input map; unembedded
// standard fonts dedupe across all inputs.
func Merge(docs []*Document, conf *Configuration, mc *MergeConfig) (*Document, error) {
	if len(docs) == 0 {
		return nil, errors.New("pdf: merge needs at least one input")
	}
	if mc == nil {
		mc = &MergeConfig{}
	}

	out := NewDocument(conf)
	fontDeID := map[string]types.IndirectRef{}

	for i, src := range docs {
		im := newImporter(src, out, fontDeID)

		n, err := src.PageCount()
		if err != nil {
			return nil, errors.Wrapf(err, "while merging input %d", i+1)
		}
		for pageNr := 1; pageNr <= n; pageNr++ {
			if out.Conf.aborted() {
				return nil, ErrAborted
			}
			p, err := src.Page(pageNr)
			if err != nil {
				return nil, errors.Wrapf(err, "while merging page %d of input %d", pageNr, i+1)
			}
			pageDict, err := im.importPage(p)
			if err != nil {
				return nil, errors.Wrapf(err, "while merging page %d of input %d", pageNr, i+1)
			}
			if _, err := out.AppendPage(pageDict); err != nil {
				return nil, errors.Wrapf(err, "while merging page %d of input %d", pageNr, i+1)
			}
		}
		if log.StatsEnabled() {
			log.Stats.Printf("merge: input %d contributed %d pages", i+1, n)
		}
	}

	if err := mergeInfo(out, docs, mc); err != nil {
		return nil, err
	}
	return out, nil
}

func mergeInfo(out *Document, docs []*Document, mc *MergeConfig) error {
	var info types.Dict

	switch mc.Metadata {

	case MetadataFromFirst, MetadataCombined:
		first, err := docs[0].InfoDict()
		if err != nil {
			return err
		}
		info = first.Clone().(types.Dict)
		if mc.Metadata == MetadataCombined {
			for _, src := range docs[1:] {
				d, err := src.InfoDict()
				if err != nil {
					continue
				}
				for _, k := range d.Keys() {
					info.Insert(k, d.Get(k).Clone())
				}
			}
		}

	case MetadataFromLast:
		last, err := docs[len(docs)-1].InfoDict()
		if err != nil {
			return err
		}
		info = last.Clone().(types.Dict)

	case MetadataCustom:
		info = mc.Custom
	}

	if info.Len() == 0 {
		return nil
	}
	ref := out.Add(info)
	out.Info = &ref
	out.Trailer.Update("Info", ref)
	return nil
}
