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

	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Permission bits of the standard security handler's /P entry.
const (
	// PermissionsAll enables all user access permission bits.
	PermissionsAll int16 = -1 // 0xFFFF

	// PermissionsNone disables all user access permission bits.
	PermissionsNone int16 = -3901 // 0xF0C3
)

// EncryptionMode selects the standard security handler variant used when
// encrypting on write.
type EncryptionMode int

const (
	RC4_40 EncryptionMode = iota // V1 R2
	RC4_128                      // V2 R3
	AES_128                      // V4 R4
	AES_256                      // V5 R6
)

// EncryptionConfig configures encryption of writer output.
type EncryptionConfig struct {
	UserPassword  string         `yaml:"userPassword"`
	OwnerPassword string         `yaml:"ownerPassword"`
	Mode          EncryptionMode `yaml:"mode"`
	Permissions   int16          `yaml:"permissions"`
}

// Configuration tunes both halves of the engine: how tolerantly the reader
// treats malformed files, and what shape the writer emits.
type Configuration struct {

	// Reader.

	// Strict aborts on the first structural or syntactic error instead of
	// attempting recovery.
	Strict bool `yaml:"strict"`

	// LenientStreams tolerates a wrong /Length by scanning forward for
	// endstream, and marks undecodable non-xref streams raw-only instead
	// of failing.
	LenientStreams bool `yaml:"lenientStreams"`

	// MaxRecoveryBytes bounds how far reconstruction mode scans.
	// 0 means the whole file.
	MaxRecoveryBytes int64 `yaml:"maxRecoveryBytes"`

	// MaxPrevChain bounds /Prev recursion across revisions.
	MaxPrevChain int `yaml:"maxPrevChain"`

	// DecodeAllStreams forces eager decoding of every stream on read,
	// for logging and debugging.
	DecodeAllStreams bool `yaml:"decodeAllStreams"`

	// Writer.

	// WriteXRefStream emits a cross-reference stream instead of a classic
	// xref section.
	WriteXRefStream bool `yaml:"writeXRefStream"`

	// WriteObjectStreams groups new non-stream objects into compressed
	// object streams. Implies WriteXRefStream.
	WriteObjectStreams bool `yaml:"writeObjectStreams"`

	// CompressStreams flate-compresses new streams that carry no filter yet.
	CompressStreams bool `yaml:"compressStreams"`

	// Version written into the output header.
	Version Version `yaml:"version"`

	// Eol is the end of line sequence used for writing.
	Eol string `yaml:"eol"`

	// DecimalPlaces must lie in 0..6. The writer does not read it: reals
	// are always emitted with up to 6 fractional digits.
	DecimalPlaces int `yaml:"decimalPlaces"`

	// Encryption, if non-nil, encrypts writer output.
	Encryption *EncryptionConfig `yaml:"encryption"`

	// IDSeed, if non-nil, makes /ID generation deterministic for
	// reproducible builds.
	IDSeed *[16]byte `yaml:"-"`

	// Abort, if non-nil, is polled between object boundaries by long
	// operations (full writes, merges, splits); returning true cancels
	// the operation with ErrAborted.
	Abort func() bool `yaml:"-"`
}

// aborted polls the cancellation hook.
func (c *Configuration) aborted() bool {
	return c.Abort != nil && c.Abort()
}

// NewDefaultConfiguration returns the tolerant-reader, classic-writer
// defaults: recovery enabled, whole-file recovery scans, 1024-revision
// /Prev bound, PDF 1.7 output with LF line ends and compressed streams.
func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		Strict:           false,
		LenientStreams:   true,
		MaxRecoveryBytes: 0,
		MaxPrevChain:     1024,
		WriteXRefStream:  false,
		CompressStreams:  true,
		Version:          V17,
		Eol:              types.EolLF,
		DecimalPlaces:    2,
	}
}

// NewStrictConfiguration returns a strict-reader configuration: the first
// structural or syntactic error aborts with full context.
func NewStrictConfiguration() *Configuration {
	c := NewDefaultConfiguration()
	c.Strict = true
	c.LenientStreams = false
	return c
}

func (c *Configuration) validate() error {
	if c.Eol != types.EolLF && c.Eol != types.EolCR && c.Eol != types.EolCRLF {
		return errors.Errorf("pdf: invalid eol %q", c.Eol)
	}
	if c.DecimalPlaces < 0 || c.DecimalPlaces > 6 {
		return errors.Errorf("pdf: decimalPlaces must be 0..6, got %d", c.DecimalPlaces)
	}
	if c.MaxPrevChain < 1 {
		return errors.New("pdf: maxPrevChain must be positive")
	}
	return nil
}

// LoadConfiguration reads a YAML sidecar previously written by Save.
// Fields absent from the file keep their defaults.
func LoadConfiguration(r io.Reader) (*Configuration, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "pdf: reading configuration")
	}
	c := NewDefaultConfiguration()
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, errors.Wrap(err, "pdf: parsing configuration")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfigurationFile is LoadConfiguration over a file path.
func LoadConfigurationFile(path string) (*Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pdf: opening configuration")
	}
	defer f.Close()
	return LoadConfiguration(f)
}

// Save writes c as YAML.
func (c *Configuration) Save(w io.Writer) error {
	buf, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "pdf: marshaling configuration")
	}
	_, err = w.Write(buf)
	return errors.Wrap(err, "pdf: writing configuration")
}

// SaveFile is Save over a file path.
func (c *Configuration) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "pdf: creating configuration")
	}
	defer f.Close()
	return c.Save(f)
}
