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

// Array represents a PDF array object.
type Array []Object

func NewStringLiteralArray(ss ...string) Array {
	a := make(Array, len(ss))
	for i, s := range ss {
		a[i] = StringLiteral(s)
	}
	return a
}

func NewNameArray(ss ...string) Array {
	a := make(Array, len(ss))
	for i, s := range ss {
		a[i] = Name(s)
	}
	return a
}

func NewNumberArray(fs ...float64) Array {
	a := make(Array, len(fs))
	for i, f := range fs {
		a[i] = Float(f)
	}
	return a
}

func NewIntegerArray(is ...int) Array {
	a := make(Array, len(is))
	for i, v := range is {
		a[i] = Integer(v)
	}
	return a
}

func (a Array) Clone() Object {
	a1 := make(Array, len(a))
	for i, v := range a {
		if v != nil {
			v = v.Clone()
		}
		a1[i] = v
	}
	return a1
}

func (a Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, o := range a {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if o == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(o.String())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a Array) PDFString() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, o := range a {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if o == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(o.PDFString())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
