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

// Package pdf implements the PDF read/write engine: the binary-format
// lexer and object parser, cross-reference resolution (classic tables and
// compressed xref streams, including object-stream indirection and
// recovery by full-file scan), the standard security handler (RC4 and AES,
// revisions 2 through 6), page tree navigation with attribute inheritance,
// a content-stream operator scanner, and a serializer supporting full
// writes as well as ISO 32000-1 7.5.6 incremental updates with content
// preservation.
//
// The in-memory object model lives in pkg/types; stream filters live in
// pkg/filter. Structural operations built on top of this engine (merge,
// split, rotate, page extraction) are part of this package as well.
package pdf
