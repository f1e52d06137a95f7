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
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind partitions this package's failures for callers that branch on
// failure class rather than on individual sentinel identity.
type ErrorKind int

const (
	// KindUnknown covers errors originating outside this package.
	KindUnknown ErrorKind = iota

	// KindStructural: header missing, xref unreadable, truncated file,
	// cycle in the /Prev chain, impossible offset.
	KindStructural

	// KindSyntax: lexer or object parser failure.
	KindSyntax

	// KindSemantic: required key missing, wrong object type, dangling
	// reference.
	KindSemantic

	// KindFilter: stream decoder failure, bad predictor, length mismatch.
	KindFilter

	// KindEncryption: unsupported security handler, wrong password,
	// missing permissions.
	KindEncryption

	// KindIO: underlying byte source failure.
	KindIO
)

// Structural errors.
var (
	ErrInvalidHeader      = errors.New("pdf: no %PDF-M.N header within the first 1024 bytes")
	ErrMissingEOF         = errors.New("pdf: no %%EOF marker near end of file")
	ErrMissingStartxref   = errors.New("pdf: no startxref offset near end of file")
	ErrCorruptXRef        = errors.New("pdf: corrupt xref section")
	ErrXRefPrevCycle      = errors.New("pdf: cycle in xref /Prev chain")
	ErrXRefPrevChainDepth = errors.New("pdf: xref /Prev chain exceeds revision limit")
	ErrInvalidOffset      = errors.New("pdf: object offset outside file bounds")
	ErrReconstructFailed  = errors.New("pdf: xref reconstruction found no objects")
)

// Syntax errors.
var (
	ErrUnexpectedEOF       = errors.New("pdf: unexpected end of input")
	ErrInvalidToken        = errors.New("pdf: invalid token")
	ErrInvalidEscape       = errors.New("pdf: invalid escape sequence")
	ErrArrayNotTerminated  = errors.New("pdf: unterminated array")
	ErrDictNotTerminated   = errors.New("pdf: unterminated dictionary")
	ErrStringNotTerminated = errors.New("pdf: unterminated string literal")
	ErrHexNotTerminated    = errors.New("pdf: unterminated hex literal")
	ErrCorruptName         = errors.New("pdf: corrupt name object")
	ErrCorruptNumber       = errors.New("pdf: corrupt number")
	ErrMissingObjKeyword   = errors.New("pdf: expected 'N G obj'")
	ErrMissingEndobj       = errors.New("pdf: expected 'endobj'")
	ErrMissingEndstream    = errors.New("pdf: expected 'endstream'")
)

// Semantic errors.
var (
	ErrMissingRoot       = errors.New("pdf: trailer has no /Root entry")
	ErrMissingSize       = errors.New("pdf: trailer has no /Size entry")
	ErrMissingStreamLen  = errors.New("pdf: stream dict has no /Length entry")
	ErrWrongType         = errors.New("pdf: unexpected object type")
	ErrDanglingReference = errors.New("pdf: reference to unknown object")
	ErrNoPageTree        = errors.New("pdf: catalog has no /Pages tree")
	ErrPageOutOfRange    = errors.New("pdf: page number out of range")
)

// ErrAborted reports cooperative cancellation via Configuration.Abort.
var ErrAborted = errors.New("pdf: operation aborted")

// Encryption errors.
var (
	ErrAuthRequired          = errors.New("pdf: document is encrypted, password required")
	ErrWrongPassword         = errors.New("pdf: wrong password")
	ErrUnsupportedEncryption = errors.New("pdf: unsupported encryption")
	ErrInsufficientPerms     = errors.New("pdf: operation not permitted for this document")
)

// Kind classifies err (or any error wrapping one of this package's
// sentinels) into an ErrorKind. The most informative classification wins:
// an encryption failure buried under structural wrapping still reports
// KindEncryption.
func Kind(err error) ErrorKind {
	switch errors.Cause(err) {
	case ErrAuthRequired, ErrWrongPassword, ErrUnsupportedEncryption, ErrInsufficientPerms:
		return KindEncryption
	case ErrInvalidHeader, ErrMissingEOF, ErrMissingStartxref, ErrCorruptXRef,
		ErrXRefPrevCycle, ErrXRefPrevChainDepth, ErrInvalidOffset, ErrReconstructFailed:
		return KindStructural
	case ErrUnexpectedEOF, ErrInvalidToken, ErrInvalidEscape, ErrArrayNotTerminated,
		ErrDictNotTerminated, ErrStringNotTerminated, ErrHexNotTerminated,
		ErrCorruptName, ErrCorruptNumber, ErrMissingObjKeyword, ErrMissingEndobj,
		ErrMissingEndstream:
		return KindSyntax
	case ErrMissingRoot, ErrMissingSize, ErrMissingStreamLen, ErrWrongType,
		ErrDanglingReference, ErrNoPageTree, ErrPageOutOfRange:
		return KindSemantic
	}
	return KindUnknown
}

// Warning is a recoverable condition noted while reading or writing in
// tolerant mode: a duplicate dict key, a repaired /Length, a skipped
// unreadable page during a partial-success operation.
type Warning struct {
	Offset int64
	Msg    string
}

func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("offset %d: %s", w.Offset, w.Msg)
	}
	return w.Msg
}
