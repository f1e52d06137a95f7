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
	"strings"
	"testing"
)

func TestConfigurationYAMLRoundTrip(t *testing.T) {
	c := NewDefaultConfiguration()
	c.Strict = true
	c.WriteXRefStream = true
	c.MaxPrevChain = 7

	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatal(err)
	}

	c2, err := LoadConfiguration(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !c2.Strict || !c2.WriteXRefStream || c2.MaxPrevChain != 7 {
		t.Errorf("round trip lost fields: %+v", c2)
	}
	// Untouched fields keep defaults.
	if !c2.LenientStreams || c2.Version != V17 {
		t.Errorf("defaults lost: %+v", c2)
	}
}

func TestLoadConfigurationPartial(t *testing.T) {
	c, err := LoadConfiguration(strings.NewReader("strict: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Strict {
		t.Error("strict not applied")
	}
	if c.MaxPrevChain != 1024 {
		t.Errorf("MaxPrevChain default lost: %d", c.MaxPrevChain)
	}
}

func TestConfigurationValidation(t *testing.T) {
	if _, err := LoadConfiguration(strings.NewReader("decimalPlaces: 9\n")); err == nil {
		t.Error("decimalPlaces 9 should fail validation")
	}
	if _, err := LoadConfiguration(strings.NewReader("maxPrevChain: 0\n")); err == nil {
		t.Error("maxPrevChain 0 should fail validation")
	}
}

func TestVersionStrings(t *testing.T) {
	for _, tt := range []struct {
		s string
		v Version
	}{{"1.0", V10}, {"1.4", V14}, {"1.7", V17}, {"2.0", V20}} {
		v, err := ParseVersion(tt.s)
		if err != nil || v != tt.v {
			t.Errorf("ParseVersion(%s) = %v, %v", tt.s, v, err)
		}
		if v.String() != tt.s {
			t.Errorf("String() = %s, want %s", v.String(), tt.s)
		}
	}
	if _, err := ParseVersion("3.1"); err == nil {
		t.Error("3.1 should fail")
	}
}
