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
	"encoding/hex"
	"testing"

	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// TestHashR6Vector pins Algorithm 2.B against a known vector: hashing the
// user password "user6" with its validation salt must yield the expected
// 32-byte digest.
func TestHashR6Vector(t *testing.T) {
	pw := []byte("user6")
	salt, _ := hex.DecodeString("fd0f02fdee2fffe1")
	want, _ := hex.DecodeString("300d98eb3816f45e79007d78d285fd18784e354b1279af3b4704f6bba1ac0270")

	got := hashR6(append(append([]byte{}, pw...), salt...), pw, nil)
	if !bytes.Equal(got, want) {
		t.Errorf("hashR6 = %x, want %x", got, want)
	}
}

func TestPasswordPadding(t *testing.T) {
	if got := padPassword(""); !bytes.Equal(got, passwordPad) {
		t.Errorf("empty password pads to % X", got)
	}
	long := string(bytes.Repeat([]byte{'a'}, 40))
	if got := padPassword(long); len(got) != 32 {
		t.Errorf("long password pads to %d bytes", len(got))
	}
	if got := unpadPassword(padPassword("secret")); got != "secret" {
		t.Errorf("unpad(pad(secret)) = %q", got)
	}
}

func TestEncryptionRoundTrip(t *testing.T) {
	modes := []struct {
		name string
		mode EncryptionMode
	}{
		{"RC4-40 R2", RC4_40},
		{"RC4-128 R3", RC4_128},
		{"AES-128 R4", AES_128},
		{"AES-256 R6", AES_256},
	}

	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			conf := NewDefaultConfiguration()
			conf.Encryption = &EncryptionConfig{
				UserPassword:  "user",
				OwnerPassword: "owner",
				Mode:          m.mode,
				Permissions:   PermissionsAll,
			}
			out := buildHelloWorld(t, conf)

			// Correct user password opens and decrypts.
			d, err := OpenBytes(out, nil, "user")
			if err != nil {
				t.Fatalf("open with user password: %v", err)
			}
			if !d.Encrypted() {
				t.Fatal("document should report encryption")
			}
			if texts := pageTexts(t, d, 1); !containsText(texts, "Hello") {
				t.Errorf("decrypted texts = %q", texts)
			}

			// Owner password opens too.
			if _, err := OpenBytes(out, nil, "owner"); err != nil {
				t.Errorf("open with owner password: %v", err)
			}

			// A wrong password fails cleanly.
			_, err = OpenBytes(out, nil, "nope")
			if errors.Cause(err) != ErrWrongPassword {
				t.Errorf("wrong password: got %v, want ErrWrongPassword", err)
			}

			// No password at all asks for one.
			_, err = OpenBytes(out, nil)
			if errors.Cause(err) != ErrAuthRequired {
				t.Errorf("no password: got %v, want ErrAuthRequired", err)
			}
		})
	}
}

func TestEncryptionEmptyUserPassword(t *testing.T) {
	conf := NewDefaultConfiguration()
	conf.Encryption = &EncryptionConfig{
		UserPassword:  "",
		OwnerPassword: "owner",
		Mode:          AES_128,
		Permissions:   PermissionsAll,
	}
	out := buildHelloWorld(t, conf)

	// The empty user password is tried implicitly.
	d, err := OpenBytes(out, nil)
	if err != nil {
		t.Fatalf("open without password: %v", err)
	}
	if texts := pageTexts(t, d, 1); !containsText(texts, "Hello") {
		t.Errorf("texts = %q", texts)
	}
}

func TestIncrementalUpdateOfEncryptedDocument(t *testing.T) {
	conf := NewDefaultConfiguration()
	conf.Encryption = &EncryptionConfig{
		UserPassword: "pw",
		Mode:         AES_128,
		Permissions:  PermissionsAll,
	}
	out := buildHelloWorld(t, conf)

	d, err := OpenBytes(out, nil, "pw")
	if err != nil {
		t.Fatal(err)
	}

	var upd bytes.Buffer
	err = d.WriteIncrementalWithOverlay(&upd, []int{1}, func(op *OverlayPage) error {
		return op.DrawText("World", "Helvetica", 10, 40, 40)
	})
	if err != nil {
		t.Fatal(err)
	}

	// New objects are encrypted with the original key.
	d2, err := OpenBytes(upd.Bytes(), nil, "pw")
	if err != nil {
		t.Fatal(err)
	}
	texts := pageTexts(t, d2, 1)
	if !containsText(texts, "Hello") || !containsText(texts, "World") {
		t.Errorf("texts = %q", texts)
	}
}

func TestParseEncryptDictRejectsUnknown(t *testing.T) {
	d := parseOne(t, "<</Filter /NotStandard /V 1 /R 2>>")
	_, err := parseEncryptDict(d.(types.Dict))
	if errors.Cause(err) != ErrUnsupportedEncryption {
		t.Errorf("got %v", err)
	}
}
