// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc32w provides the running CRC-32 checksum computed by the
// polarfire firmware over streams of 32-bit words.
package crc32w // import "github.com/go-calo/pfdaq/internal/crc32w"

// Params describes one firmware revision of the checksum folding.
// Poly is given in reversed (LSB-first) representation.
type Params struct {
	Poly   uint32
	Init   uint32
	XorOut uint32
}

// Polarfire matches the checksum the current polarfire firmware appends
// to links and samples: the usual reflected CRC-32 folded over the
// little-endian bytes of each word.
var Polarfire = &Params{
	Poly:   0xedb88320,
	Init:   0xffffffff,
	XorOut: 0xffffffff,
}

// Hash32 is the common interface implemented by word-stream checksums.
// Multiple accumulators may be live at once, one per checked scope.
type Hash32 interface {
	// Feed folds one 32-bit word into the running checksum.
	Feed(w uint32)
	// Sum32 returns the checksum of the words fed so far.
	Sum32() uint32
	// Reset resets the checksum to its initial state.
	Reset()
}

// New creates a new Hash32 computing the word-stream CRC-32 with the
// given parameters. New(nil) uses the Polarfire parameters.
func New(p *Params) Hash32 {
	if p == nil {
		p = Polarfire
	}
	h := &hash32{p: *p}
	h.mktable()
	h.Reset()
	return h
}

type hash32 struct {
	p   Params
	tab [256]uint32
	crc uint32
}

func (h *hash32) mktable() {
	for i := range h.tab {
		c := uint32(i)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = (c >> 1) ^ h.p.Poly
			} else {
				c >>= 1
			}
		}
		h.tab[i] = c
	}
}

func (h *hash32) Feed(w uint32) {
	crc := h.crc
	crc = h.tab[(crc^(w>>0))&0xff] ^ (crc >> 8)
	crc = h.tab[(crc^(w>>8))&0xff] ^ (crc >> 8)
	crc = h.tab[(crc^(w>>16))&0xff] ^ (crc >> 8)
	crc = h.tab[(crc^(w>>24))&0xff] ^ (crc >> 8)
	h.crc = crc
}

func (h *hash32) Sum32() uint32 { return h.crc ^ h.p.XorOut }

func (h *hash32) Reset() { h.crc = h.p.Init }
