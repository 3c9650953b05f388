// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merkle

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHashJSON(t *testing.T) {
	var h Hash
	h[0], h[31] = 0xab, 0x01
	b, err := json.Marshal(struct{ Root Hash }{h})
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}
	want := `{"Root":"ab` + strings.Repeat("00", 30) + `01"}`
	if string(b) != want {
		t.Errorf("Marshal()=%s, want %s", b, want)
	}
	var got struct{ Root Hash }
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal(): %v", err)
	}
	if got.Root != h {
		t.Errorf("Unmarshal()=%s, want %s", got.Root, h)
	}
}

func TestHashUnmarshalTextErrors(t *testing.T) {
	for _, in := range []string{"", "ab", strings.Repeat("zz", HashSize)} {
		var h Hash
		if err := h.UnmarshalText([]byte(in)); err == nil {
			t.Errorf("UnmarshalText(%q) succeeded", in)
		}
	}
}

func TestHashOrdering(t *testing.T) {
	a, b := Hash{0x01}, Hash{0x02}
	if !a.Less(b) || b.Less(a) || a.Compare(a) != 0 {
		t.Errorf("ordering of %s and %s is wrong", a.Short(), b.Short())
	}
	if !(Hash{}).IsZero() || a.IsZero() {
		t.Error("IsZero() is wrong")
	}
}
