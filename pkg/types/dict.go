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

package types

import "strings"

// Dict represents a PDF dict object: an ordered mapping from name to
// object. Insertion order is preserved so a read-modify-write round trip
// doesn't needlessly reshuffle a dict's entries (ISO 32000-1 7.3.7 readers depend on it in practice).
// A duplicate key encountered while parsing keeps the entry's original
// position but overwrites its value with the later occurrence, and the
// caller is expected to record a recoverable warning.
type Dict struct {
	keys   []string
	values map[string]Object
}

// NewDict returns an empty, ready to use Dict.
func NewDict() Dict {
	return Dict{values: map[string]Object{}}
}

// DictFrom builds a Dict from a map literal, ordering keys alphabetically
// since a Go map has no order of its own. Intended for constructing new
// objects in code (not for parsing, which preserves on-disk order).
func DictFrom(m map[string]Object) Dict {
	d := NewDict()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort: these maps are small (a handful of keys).
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	for _, k := range keys {
		d.Insert(k, m[k])
	}
	return d
}

// Len returns the number of entries.
func (d Dict) Len() int { return len(d.keys) }

// Keys returns the dict's keys in insertion order.
func (d Dict) Keys() []string { return d.keys }

// Clone returns a deep copy of d.
func (d Dict) Clone() Object {
	d1 := NewDict()
	for _, k := range d.keys {
		v := d.values[k]
		if v != nil {
			v = v.Clone()
		}
		d1.Insert(k, v)
	}
	return d1
}

// Insert adds key=value if key is not yet present, preserving order;
// returns false (and does not overwrite) if key already exists.
func (d *Dict) Insert(key string, value Object) bool {
	if d.values == nil {
		d.values = map[string]Object{}
	}
	if _, ok := d.values[key]; ok {
		return false
	}
	d.keys = append(d.keys, key)
	d.values[key] = value
	return true
}

// InsertString adds key=StringLiteral(value) if key is not yet present; see Insert.
func (d *Dict) InsertString(key, value string) bool {
	return d.Insert(key, StringLiteral(value))
}

// InsertName adds key=Name(value) if key is not yet present; see Insert.
func (d *Dict) InsertName(key, value string) bool {
	return d.Insert(key, Name(value))
}

// InsertInt adds key=Integer(value) if key is not yet present; see Insert.
func (d *Dict) InsertInt(key string, value int) bool {
	return d.Insert(key, Integer(value))
}

// InsertBool adds key=Boolean(value) if key is not yet present; see Insert.
func (d *Dict) InsertBool(key string, value bool) bool {
	return d.Insert(key, Boolean(value))
}

// InsertFloat adds key=Float(value) if key is not yet present; see Insert.
func (d *Dict) InsertFloat(key string, value float64) bool {
	return d.Insert(key, Float(value))
}

// Update sets key=value, appending a new entry if key is absent and
// overwriting the value in place (without moving it) if present.
func (d *Dict) Update(key string, value Object) {
	if d.values == nil {
		d.values = map[string]Object{}
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Delete removes key, if present.
func (d *Dict) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Find returns the value for key and whether it was present.
func (d Dict) Find(key string) (Object, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Get is Find without the presence flag; returns nil if absent.
func (d Dict) Get(key string) Object {
	return d.values[key]
}

// NameEntry returns the string value of a /Name-typed entry, if present.
func (d Dict) NameEntry(key string) *string {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	if n, ok := o.(Name); ok {
		s := string(n)
		return &s
	}
	return nil
}

// IntEntry returns the int value of an Integer-typed entry, if present.
func (d Dict) IntEntry(key string) *int {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	if i, ok := o.(Integer); ok {
		v := int(i)
		return &v
	}
	return nil
}

// StringEntry returns the string value of a StringLiteral or HexLiteral entry, if present.
func (d Dict) StringEntry(key string) *string {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	switch s := o.(type) {
	case StringLiteral:
		v := s.Value()
		return &v
	case HexLiteral:
		v := s.Value()
		return &v
	}
	return nil
}

// BooleanEntry returns the bool value of a Boolean-typed entry, if present.
func (d Dict) BooleanEntry(key string) *bool {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	if b, ok := o.(Boolean); ok {
		v := bool(b)
		return &v
	}
	return nil
}

// ArrayEntry returns the Array value of an entry, if present and of that type.
func (d Dict) ArrayEntry(key string) Array {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	if a, ok := o.(Array); ok {
		return a
	}
	return nil
}

// DictEntry returns the Dict value of an entry, if present and of that type.
func (d Dict) DictEntry(key string) *Dict {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	if dd, ok := o.(Dict); ok {
		return &dd
	}
	return nil
}

// IndirectRefEntry returns the IndirectRef value of an entry, if present.
func (d Dict) IndirectRefEntry(key string) *IndirectRef {
	o, ok := d.Find(key)
	if !ok {
		return nil
	}
	if ir, ok := o.(IndirectRef); ok {
		return &ir
	}
	return nil
}

// Type returns the value of /Type, if any.
func (d Dict) Type() *string { return d.NameEntry("Type") }

// Subtype returns the value of /Subtype, if any.
func (d Dict) Subtype() *string { return d.NameEntry("Subtype") }

func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for i, k := range d.keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('/')
		sb.WriteString(k)
		sb.WriteByte(' ')
		v := d.values[k]
		if v == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(v.String())
		}
	}
	sb.WriteString(">>")
	return sb.String()
}

// PDFString returns the on-disk representation.
func (d Dict) PDFString() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range d.keys {
		sb.WriteByte('/')
		sb.WriteString(EncodeName(k))
		sb.WriteByte(' ')
		v := d.values[k]
		if v == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(v.PDFString())
		}
		sb.WriteByte(' ')
	}
	sb.WriteString(">>")
	return sb.String()
}
