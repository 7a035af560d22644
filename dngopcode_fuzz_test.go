// Copyright 2025 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package dngopcode_test

import (
	"testing"

	"github.com/bep/dngopcode"
)

func FuzzDecode(f *testing.F) {
	valid, err := dngopcode.Encode(sampleList())
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add([]byte{0, 0, 0, 0})
	f.Add(appendU32(nil, 1, 6, 0, 1, 16, 0, 0, 100, 200))
	f.Add(appendU32(nil, 1, 99, 0, 0, 8, 0, 0))
	f.Add(appendU32(nil, 0xffffffff))

	f.Fuzz(func(t *testing.T, b []byte) {
		list, err := dngopcode.Decode(b)
		if err != nil {
			if !dngopcode.IsInvalidFormat(err) {
				t.Fatalf("unexpected error class: %v", err)
			}
			if list != nil {
				t.Fatal("got records alongside an error")
			}
			return
		}

		// Whatever decoded must encode and decode again to the same shape.
		encoded, err := dngopcode.Encode(list)
		if err != nil {
			t.Fatalf("re-encoding decoded list: %v", err)
		}
		list2, err := dngopcode.Decode(encoded)
		if err != nil {
			t.Fatalf("re-decoding encoded list: %v", err)
		}
		if len(list2) != len(list) {
			t.Fatalf("got %d opcodes after round trip, want %d", len(list2), len(list))
		}
	})
}
