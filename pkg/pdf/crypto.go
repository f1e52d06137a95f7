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
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
	"golang.org/x/text/secure/precis"
	"golang.org/x/text/unicode/norm"
)

// Standard security handler password padding, ISO 32000-1 Table 21.
var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// securityHandler carries the parsed /Encrypt dictionary plus the derived
// file key. It sits between raw object bytes and the parser: strings and
// stream data pass through it, dict keys and the xref stream never do.
type securityHandler struct {
	o, u, oe, ue, perms []byte

	v, r, keyLen int
	p            int32

	encryptMetadata    bool
	aesStrings         bool
	aesStreams         bool
	identityStrings    bool
	identityStreams    bool
	ownerAuthenticated bool

	id  []byte // first element of trailer /ID
	key []byte // derived file encryption key
}

// saslprep normalizes a UTF-8 password per RFC 8265 before revision 5/6
// hashing.
func saslprep(pw string) ([]byte, error) {
	p := precis.NewIdentifier(precis.BidiRule, precis.Norm(norm.NFKC))
	s, err := p.String(pw)
	if err != nil {
		// Non-UTF-8 or otherwise unnormalizable passwords are used verbatim;
		// some producers hash raw bytes.
		s = pw
	}
	b := []byte(s)
	if len(b) > 127 {
		b = b[:127]
	}
	return b, nil
}

// padPassword applies the 32-byte truncate-or-pad rule of Algorithm 2.
func padPassword(pw string) []byte {
	b := []byte(pw)
	if len(b) >= 32 {
		return b[:32]
	}
	return append(b, passwordPad[:32-len(b)]...)
}

// dictEntryBytes reads a string entry's raw bytes, whichever string
// representation it uses.
func dictEntryBytes(d types.Dict, key string) ([]byte, error) {
	o, found := d.Find(key)
	if !found {
		return nil, nil
	}
	switch s := o.(type) {
	case types.StringLiteral:
		return types.Unescape(s.Value())
	case types.HexLiteral:
		return s.Bytes()
	}
	return nil, errors.Wrapf(ErrWrongType, "entry /%s is %T, expected string", key, o)
}

// parseEncryptDict validates the /Encrypt dictionary and distills it into
// a handler. Only the standard security handler is supported.
func parseEncryptDict(d types.Dict) (*securityHandler, error) {
	if f := d.NameEntry("Filter"); f == nil || *f != "Standard" {
		return nil, errors.Wrap(ErrUnsupportedEncryption, "/Filter must be /Standard")
	}
	if d.NameEntry("SubFilter") != nil {
		return nil, errors.Wrap(ErrUnsupportedEncryption, "/SubFilter not supported")
	}

	h := &securityHandler{encryptMetadata: true}

	keyLen := 40
	if l := d.IntEntry("Length"); l != nil {
		if (*l < 40 || *l > 128 || *l%8 != 0) && *l != 256 {
			return nil, errors.Wrapf(ErrUnsupportedEncryption, "key length %d", *l)
		}
		keyLen = *l
	}
	h.keyLen = keyLen

	v := d.IntEntry("V")
	if v == nil || (*v != 1 && *v != 2 && *v != 4 && *v != 5) {
		return nil, errors.Wrap(ErrUnsupportedEncryption, "missing or unsupported /V")
	}
	h.v = *v

	r := d.IntEntry("R")
	if r == nil || *r < 2 || *r > 6 {
		return nil, errors.Wrap(ErrUnsupportedEncryption, "missing or unsupported /R")
	}
	h.r = *r

	if h.v >= 4 {
		if err := h.parseCryptFilters(d); err != nil {
			return nil, err
		}
	}

	var err error
	if h.o, err = dictEntryBytes(d, "O"); err != nil {
		return nil, err
	}
	if h.u, err = dictEntryBytes(d, "U"); err != nil {
		return nil, err
	}
	wantLen := 32
	if h.r >= 5 {
		wantLen = 48
	}
	if len(h.o) < wantLen || len(h.u) < wantLen {
		return nil, errors.Wrap(ErrUnsupportedEncryption, "missing or short /O or /U")
	}
	h.o = h.o[:wantLen]
	h.u = h.u[:wantLen]

	if h.r >= 5 {
		if h.oe, err = dictEntryBytes(d, "OE"); err != nil {
			return nil, err
		}
		if h.ue, err = dictEntryBytes(d, "UE"); err != nil {
			return nil, err
		}
		if h.perms, err = dictEntryBytes(d, "Perms"); err != nil {
			return nil, err
		}
		if len(h.oe) != 32 || len(h.ue) != 32 || len(h.perms) != 16 {
			return nil, errors.Wrap(ErrUnsupportedEncryption, "missing or invalid /OE, /UE or /Perms")
		}
	}

	p := d.IntEntry("P")
	if p == nil {
		return nil, errors.Wrap(ErrUnsupportedEncryption, "missing /P")
	}
	h.p = int32(*p)

	if emd := d.BooleanEntry("EncryptMetadata"); emd != nil {
		h.encryptMetadata = *emd
	}

	return h, nil
}

// parseCryptFilters resolves /CF, /StmF and /StrF for V4/V5 dictionaries.
func (h *securityHandler) parseCryptFilters(d types.Dict) error {
	cf := d.DictEntry("CF")

	resolve := func(which string) (aesUsed, identity bool, err error) {
		name := d.NameEntry(which)
		if name == nil || *name == "Identity" {
			return false, name != nil, nil
		}
		if cf == nil {
			return false, false, errors.Wrap(ErrUnsupportedEncryption, "missing /CF")
		}
		entry := cf.DictEntry(*name)
		if entry == nil {
			return false, false, errors.Wrapf(ErrUnsupportedEncryption, "crypt filter /%s not in /CF", *name)
		}
		cfm := entry.NameEntry("CFM")
		if cfm == nil {
			return false, false, errors.Wrap(ErrUnsupportedEncryption, "crypt filter without /CFM")
		}
		switch *cfm {
		case "V2":
			return false, false, nil
		case "AESV2", "AESV3":
			return true, false, nil
		case "None":
			return false, true, nil
		}
		return false, false, errors.Wrapf(ErrUnsupportedEncryption, "crypt filter method /%s", *cfm)
	}

	var err error
	if h.aesStreams, h.identityStreams, err = resolve("StmF"); err != nil {
		return err
	}
	if h.aesStrings, h.identityStrings, err = resolve("StrF"); err != nil {
		return err
	}
	return nil
}

// setupDecryption authenticates against the document's /Encrypt dict and
// derives the file key. Passwords are tried in order, each first as user
// then as owner password; with none given the empty user password is
// tried, which opens the majority of encrypted files in the wild.
func (d *Document) setupDecryption(passwords ...string) error {
	if d.Encrypt == nil {
		return nil
	}

	encDict, err := d.DereferenceDict(*d.Encrypt)
	if err != nil {
		return errors.Wrap(err, "while reading /Encrypt dict")
	}

	h, err := parseEncryptDict(encDict)
	if err != nil {
		return err
	}

	if len(d.ID) > 0 {
		id, err := stringObjectBytes(d.ID[0])
		if err != nil {
			return errors.Wrap(err, "while reading /ID")
		}
		h.id = id
	}

	tryEmpty := len(passwords) == 0
	if tryEmpty {
		passwords = []string{""}
	}

	for _, pw := range passwords {
		ok, err := h.authenticateUser(pw)
		if err != nil {
			return err
		}
		if ok {
			d.enc = h
			break
		}
		ok, err = h.authenticateOwner(pw)
		if err != nil {
			return err
		}
		if ok {
			h.ownerAuthenticated = true
			d.enc = h
			break
		}
	}

	if d.enc == nil {
		if tryEmpty {
			return ErrAuthRequired
		}
		return ErrWrongPassword
	}

	if h.r >= 5 {
		if ok, err := h.validatePermsEntry(); err == nil && !ok {
			d.warnf(0, "/Perms entry does not match /P")
		}
	}
	return nil
}

func stringObjectBytes(o types.Object) ([]byte, error) {
	switch s := o.(type) {
	case types.StringLiteral:
		return types.Unescape(s.Value())
	case types.HexLiteral:
		return s.Bytes()
	}
	return nil, errors.Wrapf(ErrWrongType, "expected string, got %T", o)
}

// fileKey derives the R2-R4 encryption key from a padded user password,
// Algorithm 2.
func (h *securityHandler) fileKey(userpw string) []byte {
	m := md5.New()
	m.Write(padPassword(userpw))
	m.Write(h.o)

	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(h.p))
	m.Write(p[:])
	m.Write(h.id)

	if h.r == 4 && !h.encryptMetadata {
		m.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	key := m.Sum(nil)

	n := 5
	if h.r >= 3 {
		n = h.keyLen / 8
		for i := 0; i < 50; i++ {
			m.Reset()
			m.Write(key[:n])
			key = m.Sum(nil)
		}
	}
	return key[:n]
}

// userEntry computes the expected /U value for a candidate user password
// (Algorithms 4 and 5) along with the file key it implies.
func (h *securityHandler) userEntry(userpw string) ([]byte, []byte, error) {
	key := h.fileKey(userpw)

	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	var u []byte
	switch h.r {
	case 2:
		u = make([]byte, 32)
		copy(u, passwordPad)
		c.XORKeyStream(u, u)
	default:
		m := md5.New()
		m.Write(passwordPad)
		m.Write(h.id)
		u = m.Sum(nil)
		c.XORKeyStream(u, u)
		for i := 1; i <= 19; i++ {
			k := make([]byte, len(key))
			for j := range k {
				k[j] = key[j] ^ byte(i)
			}
			c, err = rc4.NewCipher(k)
			if err != nil {
				return nil, nil, err
			}
			c.XORKeyStream(u, u)
		}
		u = append(u, make([]byte, 32-len(u))...)
	}
	return u, key, nil
}

// ownerKey derives the RC4 key protecting the /O entry, Algorithm 3 steps a-d.
func (h *securityHandler) ownerKey(ownerpw, userpw string) []byte {
	pw := ownerpw
	if pw == "" {
		pw = userpw
	}
	m := md5.New()
	m.Write(padPassword(pw))
	key := m.Sum(nil)

	n := 5
	if h.r >= 3 {
		n = h.keyLen / 8
		for i := 0; i < 50; i++ {
			m.Reset()
			m.Write(key)
			key = m.Sum(nil)
		}
	}
	return key[:n]
}

// ownerEntry computes /O for write, Algorithm 3.
func (h *securityHandler) ownerEntry(ownerpw, userpw string) ([]byte, error) {
	key := h.ownerKey(ownerpw, userpw)

	o := padPassword(userpw)
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c.XORKeyStream(o, o)

	if h.r >= 3 {
		for i := 1; i <= 19; i++ {
			k := make([]byte, len(key))
			for j := range k {
				k[j] = key[j] ^ byte(i)
			}
			c, err = rc4.NewCipher(k)
			if err != nil {
				return nil, err
			}
			c.XORKeyStream(o, o)
		}
	}
	return o, nil
}

func validationSalt(b []byte) []byte { return b[32:40] }
func keySalt(b []byte) []byte        { return b[40:48] }

// hashR6 is Algorithm 2.B: the iterated AES-CBC/SHA-2 hash of revision 6.
// Each round encrypts 64 repetitions of pw‖K‖U with AES-128-CBC keyed off
// the running hash, then picks SHA-256/384/512 by E[0..16] mod 3; at least
// 64 rounds, terminating once the last byte of E is at most round-32.
func hashR6(input, pw, u []byte) []byte {
	mod3 := big.NewInt(3)

	k0 := sha256.Sum256(input)
	k := k0[:]

	var e []byte
	for round := 0; round < 64 || e[len(e)-1] > byte(round-32); round++ {
		block := make([]byte, 0, 64*(len(pw)+len(k)+len(u)))
		one := append(append(append([]byte{}, pw...), k...), u...)
		for i := 0; i < 64; i++ {
			block = append(block, one...)
		}

		cb, _ := aes.NewCipher(k[:16])
		e = make([]byte, len(block))
		cipher.NewCBCEncrypter(cb, k[16:32]).CryptBlocks(e, block)

		switch new(big.Int).Mod(new(big.Int).SetBytes(e[:16]), mod3).Uint64() {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		case 2:
			s := sha512.Sum512(e)
			k = s[:]
		}
	}
	return k[:32]
}

// aes256CBCNoIV runs AES-CBC with a zero IV over exactly len(src) bytes,
// the form used for the /OE, /UE intermediate keys.
func aes256CBCNoIV(key, src []byte, encrypt bool) ([]byte, error) {
	cb, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	dst := make([]byte, len(src))
	if encrypt {
		cipher.NewCBCEncrypter(cb, iv).CryptBlocks(dst, src)
	} else {
		cipher.NewCBCDecrypter(cb, iv).CryptBlocks(dst, src)
	}
	return dst, nil
}

// authenticateUser tries pw as the user (document open) password.
func (h *securityHandler) authenticateUser(pw string) (bool, error) {
	switch h.r {
	case 5, 6:
		upw, err := saslprep(pw)
		if err != nil {
			return false, err
		}
		var sum []byte
		if h.r == 5 {
			s := sha256.Sum256(append(upw, validationSalt(h.u)...))
			sum = s[:]
		} else {
			sum = hashR6(append(upw, validationSalt(h.u)...), upw, nil)
		}
		if !bytes.Equal(sum, h.u[:32]) {
			return false, nil
		}
		var ikey []byte
		if h.r == 5 {
			s := sha256.Sum256(append(upw, keySalt(h.u)...))
			ikey = s[:]
		} else {
			ikey = hashR6(append(upw, keySalt(h.u)...), upw, nil)
		}
		key, err := aes256CBCNoIV(ikey, h.ue, false)
		if err != nil {
			return false, err
		}
		h.key = key
		return true, nil
	}

	u, key, err := h.userEntry(pw)
	if err != nil {
		return false, err
	}
	var ok bool
	if h.r == 2 {
		ok = bytes.Equal(h.u, u)
	} else {
		ok = bytes.Equal(h.u[:16], u[:16])
	}
	if ok {
		h.key = key
	}
	return ok, nil
}

// authenticateOwner tries pw as the owner password. For R2-R4 it decrypts
// /O back into the user password (Algorithm 7); for R5/R6 it checks the
// owner validation salt and unwraps /OE.
func (h *securityHandler) authenticateOwner(pw string) (bool, error) {
	if pw == "" {
		return false, nil
	}

	switch h.r {
	case 5, 6:
		opw, err := saslprep(pw)
		if err != nil {
			return false, err
		}
		input := append(append(append([]byte{}, opw...), validationSalt(h.o)...), h.u...)
		var sum []byte
		if h.r == 5 {
			s := sha256.Sum256(input)
			sum = s[:]
		} else {
			sum = hashR6(input, opw, h.u)
		}
		if !bytes.Equal(sum, h.o[:32]) {
			return false, nil
		}
		input = append(append(append([]byte{}, opw...), keySalt(h.o)...), h.u...)
		var ikey []byte
		if h.r == 5 {
			s := sha256.Sum256(input)
			ikey = s[:]
		} else {
			ikey = hashR6(input, opw, h.u)
		}
		key, err := aes256CBCNoIV(ikey, h.oe, false)
		if err != nil {
			return false, err
		}
		h.key = key
		return true, nil
	}

	// Decrypt /O with the owner key to recover the user password.
	key := h.ownerKey(pw, pw)
	upw := make([]byte, len(h.o))
	copy(upw, h.o)

	if h.r == 2 {
		c, err := rc4.NewCipher(key)
		if err != nil {
			return false, err
		}
		c.XORKeyStream(upw, upw)
	} else {
		for i := 19; i >= 0; i-- {
			k := make([]byte, len(key))
			for j := range k {
				k[j] = key[j] ^ byte(i)
			}
			c, err := rc4.NewCipher(k)
			if err != nil {
				return false, err
			}
			c.XORKeyStream(upw, upw)
		}
	}

	// upw is a padded user password; strip the padding and validate it as
	// a user password.
	return h.authenticateUser(unpadPassword(upw))
}

// unpadPassword strips the standard padding suffix, if any.
func unpadPassword(b []byte) string {
	for i := 0; i < len(b); i++ {
		if len(b)-i <= len(passwordPad) && bytes.Equal(b[i:], passwordPad[:len(b)-i]) {
			return string(b[:i])
		}
	}
	return string(b)
}

// validatePermsEntry decrypts /Perms (AES-ECB with the file key) and
// compares against /P, Algorithm 13.
func (h *securityHandler) validatePermsEntry() (bool, error) {
	cb, err := aes.NewCipher(h.key)
	if err != nil {
		return false, err
	}
	p := make([]byte, 16)
	cb.Decrypt(p, h.perms)
	if string(p[9:12]) != "adb" {
		return false, nil
	}
	return int32(binary.LittleEndian.Uint32(p[:4])) == h.p, nil
}

// objectKey derives the per-object key of Algorithm 1: MD5 over file key,
// 3 low bytes of the object number, 2 low bytes of the generation, plus
// the AES salt. Revisions 5/6 use the file key directly (Algorithm 1.A).
func (h *securityHandler) objectKey(nr, gen int, aesUsed bool) []byte {
	if h.r >= 5 {
		return h.key
	}
	m := md5.New()
	m.Write(h.key)
	m.Write([]byte{byte(nr), byte(nr >> 8), byte(nr >> 16)})
	m.Write([]byte{byte(gen), byte(gen >> 8)})
	if aesUsed {
		m.Write([]byte{0x73, 0x41, 0x6C, 0x54}) // "sAlT"
	}
	k := m.Sum(nil)
	if n := len(h.key) + 5; n < 16 {
		k = k[:n]
	}
	return k
}

func (h *securityHandler) useAESForStreams() bool {
	return h.aesStreams || h.r >= 5
}

func (h *securityHandler) useAESForStrings() bool {
	return h.aesStrings || h.r >= 5
}

// cryptBytes en-/decrypts b with the per-object key.
func (h *securityHandler) cryptBytes(b []byte, nr, gen int, aesUsed, encrypt bool) ([]byte, error) {
	key := h.objectKey(nr, gen, aesUsed)
	if !aesUsed {
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		c.XORKeyStream(out, b)
		return out, nil
	}
	if encrypt {
		return aesCBCEncrypt(b, key)
	}
	return aesCBCDecrypt(b, key)
}

// aesCBCEncrypt applies PKCS#7 padding and prepends a random IV.
func aesCBCEncrypt(b, key []byte) ([]byte, error) {
	padLen := aes.BlockSize - len(b)%aes.BlockSize
	src := make([]byte, len(b)+padLen)
	copy(src, b)
	for i := len(b); i < len(src); i++ {
		src[i] = byte(padLen)
	}

	out := make([]byte, aes.BlockSize+len(src))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	cb, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(cb, iv).CryptBlocks(out[aes.BlockSize:], src)
	return out, nil
}

// aesCBCDecrypt strips the leading IV and trailing padding. Unpadded
// ciphertexts occur in the wild; the padding strip is best-effort.
func aesCBCDecrypt(b, key []byte) ([]byte, error) {
	if len(b) < aes.BlockSize || len(b)%aes.BlockSize != 0 {
		return nil, errors.Wrapf(ErrUnsupportedEncryption, "AES ciphertext length %d", len(b))
	}
	cb, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b)-aes.BlockSize)
	cipher.NewCBCDecrypter(cb, b[:aes.BlockSize]).CryptBlocks(out, b[aes.BlockSize:])
	if n := len(out); n > 0 && out[n-1] <= aes.BlockSize {
		out = out[:n-int(out[n-1])]
	}
	return out, nil
}

// decryptStream decrypts sd.Raw in place. The xref stream and, with
// /EncryptMetadata false, the XMP metadata stream stay clear; so does a
// stream routed through the Identity crypt filter.
func (h *securityHandler) decryptStream(sd *types.StreamDict, nr, gen int) error {
	if h.streamExempt(sd) {
		return nil
	}
	b, err := h.cryptBytes(sd.Raw, nr, gen, h.useAESForStreams(), false)
	if err != nil {
		return errors.Wrapf(err, "while decrypting stream %d %d", nr, gen)
	}
	sd.Raw = b
	n := int64(len(b))
	sd.StreamLength = &n
	return nil
}

// encryptStream encrypts sd.Raw in place and updates /Length.
func (h *securityHandler) encryptStream(sd *types.StreamDict, nr, gen int) error {
	if h.streamExempt(sd) {
		return nil
	}
	b, err := h.cryptBytes(sd.Raw, nr, gen, h.useAESForStreams(), true)
	if err != nil {
		return errors.Wrapf(err, "while encrypting stream %d %d", nr, gen)
	}
	sd.Raw = b
	n := int64(len(b))
	sd.StreamLength = &n
	sd.Update("Length", types.Integer(n))
	return nil
}

func (h *securityHandler) streamExempt(sd *types.StreamDict) bool {
	if t := sd.Type(); t != nil {
		if *t == "XRef" {
			return true
		}
		if *t == "Metadata" && !h.encryptMetadata {
			return true
		}
	}
	if h.identityStreams {
		return true
	}
	for _, fe := range sd.FilterPipeline {
		if fe.Name == "Crypt" {
			name := fe.DecodeParms.NameEntry("Name")
			if name == nil || *name == "Identity" {
				return true
			}
		}
	}
	return false
}

// decryptStrings walks o and decrypts every string in place, returning
// the rewritten object. Stream dicts get their dict half processed; their
// data goes through decryptStream separately.
func (h *securityHandler) decryptStrings(o types.Object, nr, gen int) types.Object {
	return h.cryptStrings(o, nr, gen, false)
}

// encryptStrings is the writer-side mirror of decryptStrings.
func (h *securityHandler) encryptStrings(o types.Object, nr, gen int) types.Object {
	return h.cryptStrings(o, nr, gen, true)
}

func (h *securityHandler) cryptStrings(o types.Object, nr, gen int, encrypt bool) types.Object {
	if h.identityStrings {
		return o
	}
	switch t := o.(type) {

	case types.StringLiteral:
		raw, err := types.Unescape(t.Value())
		if err != nil {
			return o
		}
		b, err := h.cryptBytes(raw, nr, gen, h.useAESForStrings(), encrypt)
		if err != nil {
			return o
		}
		if encrypt {
			// Binary ciphertext reads back cleanest as a hex literal.
			return types.NewHexLiteral(b)
		}
		s, _ := types.Escape(string(b))
		if s == nil {
			return o
		}
		return types.StringLiteral(*s)

	case types.HexLiteral:
		raw, err := t.Bytes()
		if err != nil {
			return o
		}
		b, err := h.cryptBytes(raw, nr, gen, h.useAESForStrings(), encrypt)
		if err != nil {
			return o
		}
		return types.NewHexLiteral(b)

	case types.Array:
		for i, v := range t {
			t[i] = h.cryptStrings(v, nr, gen, encrypt)
		}
		return t

	case types.Dict:
		for _, k := range t.Keys() {
			t.Update(k, h.cryptStrings(t.Get(k), nr, gen, encrypt))
		}
		return t

	case types.StreamDict:
		for _, k := range t.Keys() {
			if k == "Length" {
				continue
			}
			t.Update(k, h.cryptStrings(t.Get(k), nr, gen, encrypt))
		}
		return t
	}
	return o
}

// newSecurityHandler prepares encryption for write: builds the /Encrypt
// dict, computes O, U (and OE, UE, Perms for AES-256) and derives the
// file key.
func newSecurityHandler(cfg *EncryptionConfig, id []byte) (*securityHandler, types.Dict, error) {
	h := &securityHandler{
		p:               int32(cfg.Permissions),
		id:              id,
		encryptMetadata: true,
	}

	var aesUsed bool
	switch cfg.Mode {
	case RC4_40:
		h.v, h.r, h.keyLen = 1, 2, 40
	case RC4_128:
		h.v, h.r, h.keyLen = 2, 3, 128
	case AES_128:
		h.v, h.r, h.keyLen = 4, 4, 128
		aesUsed = true
	case AES_256:
		h.v, h.r, h.keyLen = 5, 6, 256
		aesUsed = true
	default:
		return nil, types.Dict{}, errors.Wrapf(ErrUnsupportedEncryption, "mode %d", cfg.Mode)
	}
	h.aesStreams = aesUsed
	h.aesStrings = aesUsed

	d := types.NewDict()
	d.InsertName("Filter", "Standard")
	d.InsertInt("V", h.v)
	d.InsertInt("R", h.r)
	if h.r > 2 {
		d.InsertInt("Length", h.keyLen)
	}
	d.Insert("P", types.Integer(h.p))

	if h.v >= 4 {
		cfm := "V2"
		if aesUsed {
			cfm = "AESV2"
			if h.keyLen == 256 {
				cfm = "AESV3"
			}
		}
		stdCF := types.NewDict()
		stdCF.InsertName("AuthEvent", "DocOpen")
		stdCF.InsertName("CFM", cfm)
		stdCF.InsertInt("Length", h.keyLen/8)
		cf := types.NewDict()
		cf.Insert("StdCF", stdCF)
		d.Insert("CF", cf)
		d.InsertName("StmF", "StdCF")
		d.InsertName("StrF", "StdCF")
	}

	if h.r == 6 {
		if err := h.deriveR6Entries(cfg); err != nil {
			return nil, types.Dict{}, err
		}
		d.Insert("O", types.NewHexLiteral(h.o))
		d.Insert("U", types.NewHexLiteral(h.u))
		d.Insert("OE", types.NewHexLiteral(h.oe))
		d.Insert("UE", types.NewHexLiteral(h.ue))
		d.Insert("Perms", types.NewHexLiteral(h.perms))
	} else {
		ownerpw := cfg.OwnerPassword
		if ownerpw == "" {
			ownerpw = cfg.UserPassword
		}
		var err error
		if h.o, err = h.ownerEntry(ownerpw, cfg.UserPassword); err != nil {
			return nil, types.Dict{}, err
		}
		if h.u, h.key, err = h.userEntry(cfg.UserPassword); err != nil {
			return nil, types.Dict{}, err
		}
		d.Insert("O", types.NewHexLiteral(h.o))
		d.Insert("U", types.NewHexLiteral(h.u))
	}

	return h, d, nil
}

// deriveR6Entries computes U, O, UE, OE and Perms per Algorithms 8-10.
func (h *securityHandler) deriveR6Entries(cfg *EncryptionConfig) error {
	upw, err := saslprep(cfg.UserPassword)
	if err != nil {
		return err
	}
	ownerPW := cfg.OwnerPassword
	if ownerPW == "" {
		ownerPW = cfg.UserPassword
	}
	opw, err := saslprep(ownerPW)
	if err != nil {
		return err
	}

	h.key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, h.key); err != nil {
		return err
	}

	// U: hash(upw + validation salt) + the 16 salt bytes.
	salts := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salts); err != nil {
		return err
	}
	uSeed := append(make([]byte, 32), salts...)
	sum := hashR6(append(append([]byte{}, upw...), validationSalt(uSeed)...), upw, nil)
	h.u = append(sum, salts...)

	ikey := hashR6(append(append([]byte{}, upw...), keySalt(uSeed)...), upw, nil)
	if h.ue, err = aes256CBCNoIV(ikey, h.key, true); err != nil {
		return err
	}

	// O: like U but salted with the owner password and bound to U.
	salts = make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salts); err != nil {
		return err
	}
	oSeed := append(make([]byte, 32), salts...)
	input := append(append(append([]byte{}, opw...), validationSalt(oSeed)...), h.u...)
	sum = hashR6(input, opw, h.u)
	h.o = append(sum, salts...)

	input = append(append(append([]byte{}, opw...), keySalt(oSeed)...), h.u...)
	ikey = hashR6(input, opw, h.u)
	if h.oe, err = aes256CBCNoIV(ikey, h.key, true); err != nil {
		return err
	}

	// Perms: AES-ECB of the 16-byte permissions record, Algorithm 10.
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec[:4], uint32(h.p))
	rec[4], rec[5], rec[6], rec[7] = 0xFF, 0xFF, 0xFF, 0xFF
	rec[8] = 'T'
	if !h.encryptMetadata {
		rec[8] = 'F'
	}
	rec[9], rec[10], rec[11] = 'a', 'd', 'b'
	if _, err := io.ReadFull(rand.Reader, rec[12:]); err != nil {
		return err
	}
	cb, err := aes.NewCipher(h.key)
	if err != nil {
		return err
	}
	h.perms = make([]byte, 16)
	cb.Encrypt(h.perms, rec)
	return nil
}
