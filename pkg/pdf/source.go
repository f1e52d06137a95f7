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
	"io"
	"os"

	"github.com/pkg/errors"
)

// ByteSource is the random-access byte stream the reader consumes. A
// source is read-only and safe for sequential use by a single document.
type ByteSource interface {
	// Len returns the total size in bytes.
	Len() int64

	// ReadAt fills p starting at off, io.ReaderAt semantics.
	ReadAt(p []byte, off int64) (int, error)

	// Suffix returns the trailing n bytes (fewer if the source is shorter).
	Suffix(n int64) ([]byte, error)
}

// MemSource serves a byte slice already in memory.
type MemSource []byte

func (m MemSource) Len() int64 { return int64(len(m)) }

func (m MemSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m MemSource) Suffix(n int64) ([]byte, error) {
	if n >= int64(len(m)) {
		return m, nil
	}
	return m[int64(len(m))-n:], nil
}

// FileSource serves an open file via pread, so large documents need not be
// slurped into memory up front.
type FileSource struct {
	f    *os.File
	size int64
}

// NewFileSource opens path read-only.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pdf: opening source")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "pdf: stating source")
	}
	return &FileSource{f: f, size: fi.Size()}, nil
}

func (s *FileSource) Len() int64 { return s.size }

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *FileSource) Suffix(n int64) ([]byte, error) {
	if n > s.size {
		n = s.size
	}
	buf := make([]byte, n)
	_, err := s.f.ReadAt(buf, s.size-n)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "pdf: reading source suffix")
	}
	return buf, nil
}

// Close releases the underlying file handle.
func (s *FileSource) Close() error { return s.f.Close() }

// readSpan fetches [off, off+n) from src, failing with ErrInvalidOffset on
// out-of-bounds requests and tolerating a short final span.
func readSpan(src ByteSource, off, n int64) ([]byte, error) {
	if off < 0 || off >= src.Len() {
		return nil, errors.Wrapf(ErrInvalidOffset, "offset %d, file size %d", off, src.Len())
	}
	if off+n > src.Len() {
		n = src.Len() - off
	}
	buf := make([]byte, n)
	rd, err := src.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "pdf: reading %d bytes at offset %d", n, off)
	}
	return buf[:rd], nil
}
