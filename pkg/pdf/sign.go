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
	"github.com/hhrutter/pkcs7"
	"github.com/mechiko/pdfkit/pkg/types"
)

// Signature is a digital-signature dictionary found in the document's
// AcroForm. The dictionary and its /Contents blob are carried bit-exact;
// nothing here verifies the cryptography. Appending revisions through
// WriteIncremental leaves all of it untouched, which is what keeps an
// already-signed revision valid.
type Signature struct {
	FieldName string
	Dict      types.Dict

	// ByteRange is the signed [offset length offset length] span list.
	ByteRange []int64

	// ContentsDER is the raw PKCS#7 blob from /Contents.
	ContentsDER []byte

	// SignerNames lists the CommonNames of the embedded certificates, as
	// far as the blob parses; a blob this package cannot parse still
	// round-trips, just without names.
	SignerNames []string
}

// Signatures enumerates the signature dictionaries reachable from
// AcroForm fields.
func (d *Document) Signatures() ([]Signature, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	acro, err := d.DereferenceDict(catalog.Get("AcroForm"))
	if err != nil {
		return nil, nil // no form, no signatures
	}
	fields, err := d.DereferenceArray(acro.Get("Fields"))
	if err != nil {
		return nil, nil
	}

	var out []Signature
	for _, fo := range fields {
		field, err := d.DereferenceDict(fo)
		if err != nil {
			continue
		}
		ft := field.NameEntry("FT")
		if ft == nil || *ft != "Sig" {
			continue
		}
		sigDict, err := d.DereferenceDict(field.Get("V"))
		if err != nil || sigDict.Len() == 0 {
			continue
		}

		sig := Signature{Dict: sigDict}
		if t := field.StringEntry("T"); t != nil {
			sig.FieldName = *t
		}

		if br, err := d.DereferenceArray(sigDict.Get("ByteRange")); err == nil {
			for _, o := range br {
				if i, ok := o.(types.Integer); ok {
					sig.ByteRange = append(sig.ByteRange, int64(i))
				}
			}
		}

		if contents, err := stringObjectBytes(sigDict.Get("Contents")); err == nil && contents != nil {
			sig.ContentsDER = contents
			if p7, err := pkcs7.Parse(contents); err == nil {
				for _, cert := range p7.Certificates {
					sig.SignerNames = append(sig.SignerNames, cert.Subject.CommonName)
				}
			}
		}

		out = append(out, sig)
	}
	return out, nil
}
