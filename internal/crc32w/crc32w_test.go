// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crc32w_test

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/go-calo/pfdaq/internal/crc32w"
)

func TestCRC32W(t *testing.T) {
	for _, tc := range []struct {
		name  string
		p     *crc32w.Params
		tab   *crc32.Table
		words []uint32
	}{
		{
			name:  "polarfire-one-word",
			tab:   crc32.IEEETable,
			words: []uint32{0xbeef2022},
		},
		{
			name:  "polarfire-run",
			tab:   crc32.IEEETable,
			words: []uint32{0x30194100, 0x16e00a00, 0x00000a2a, 0xaa00ffff, 0xdeadbeef},
		},
		{
			name: "castagnoli",
			p: &crc32w.Params{
				Poly:   crc32.Castagnoli,
				Init:   0xffffffff,
				XorOut: 0xffffffff,
			},
			tab:   crc32.MakeTable(crc32.Castagnoli),
			words: []uint32{0x01020304, 0xcafebabe, 0x00000000, 0xffffffff},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := crc32w.New(tc.p)
			for _, w := range tc.words {
				h.Feed(w)
			}

			// the firmware folds each word byte-wise, little-endian first.
			raw := make([]byte, 4*len(tc.words))
			for i, w := range tc.words {
				binary.LittleEndian.PutUint32(raw[4*i:], w)
			}

			if got, want := h.Sum32(), crc32.Checksum(raw, tc.tab); got != want {
				t.Fatalf("invalid checksum: got=0x%08x, want=0x%08x", got, want)
			}
		})
	}
}

func TestReset(t *testing.T) {
	h := crc32w.New(nil)
	h.Feed(0x12345678)
	first := h.Sum32()

	h.Feed(0x9abcdef0)
	if got := h.Sum32(); got == first {
		t.Fatalf("checksum did not change after feeding a word: 0x%08x", got)
	}

	h.Reset()
	h.Feed(0x12345678)
	if got, want := h.Sum32(), first; got != want {
		t.Fatalf("invalid checksum after reset: got=0x%08x, want=0x%08x", got, want)
	}
}

func TestIndependentScopes(t *testing.T) {
	// one accumulator per scope: feeding one must not disturb the other.
	var (
		outer = crc32w.New(nil)
		inner = crc32w.New(nil)
	)
	for i, w := range []uint32{1, 2, 3, 4, 5, 6} {
		outer.Feed(w)
		if i >= 3 {
			inner.Feed(w)
		}
	}

	want := crc32w.New(nil)
	for _, w := range []uint32{4, 5, 6} {
		want.Feed(w)
	}

	if got, want := inner.Sum32(), want.Sum32(); got != want {
		t.Fatalf("nested scope polluted: got=0x%08x, want=0x%08x", got, want)
	}

	if outer.Sum32() == inner.Sum32() {
		t.Fatalf("outer and inner scopes should differ: 0x%08x", outer.Sum32())
	}
}
