// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWordsReader(t *testing.T) {
	r := Words([]uint32{0x11, 0x22, 0x33})

	var got []uint32
	for !r.Exhausted() {
		if err := r.Advance(); err != nil {
			t.Fatalf("could not advance: %+v", err)
		}
		got = append(got, r.Word())
	}

	if got, want := got, []uint32{0x11, 0x22, 0x33}; !equalWords(got, want) {
		t.Fatalf("invalid words: got=%v, want=%v", got, want)
	}

	if err := r.Advance(); !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error past the end: got=%v, want=%v", err, io.EOF)
	}
}

func TestWordsReaderEmpty(t *testing.T) {
	r := Words(nil)
	if !r.Exhausted() {
		t.Fatalf("empty reader not exhausted")
	}
	if err := r.Advance(); !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error: got=%v, want=%v", err, io.EOF)
	}
}

func TestStreamReader(t *testing.T) {
	raw := []byte{
		0x21, 0x20, 0xef, 0xbe, // 0xbeef2021, little-endian
		0x78, 0x56, 0x34, 0x12,
	}
	r := Stream(bytes.NewReader(raw))

	var got []uint32
	for !r.Exhausted() {
		if err := r.Advance(); err != nil {
			t.Fatalf("could not advance: %+v", err)
		}
		got = append(got, r.Word())
	}

	if got, want := got, []uint32{0xbeef2021, 0x12345678}; !equalWords(got, want) {
		t.Fatalf("invalid words: got=%v, want=%v", got, want)
	}

	if err := r.Advance(); !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error past the end: got=%v, want=%v", err, io.EOF)
	}
}

func TestStreamReaderTruncated(t *testing.T) {
	// a partial trailing word is a truncation, not a clean end of
	// stream.
	raw := []byte{
		0x21, 0x20, 0xef, 0xbe,
		0x78, 0x56, // half a word
	}
	r := Stream(bytes.NewReader(raw))

	if err := r.Advance(); err != nil {
		t.Fatalf("could not advance: %+v", err)
	}
	if got, want := r.Word(), uint32(0xbeef2021); got != want {
		t.Fatalf("invalid word: got=0x%08x, want=0x%08x", got, want)
	}

	if !r.Exhausted() {
		t.Fatalf("truncated reader not exhausted")
	}
	if err := r.Advance(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("invalid error: got=%v, want=%v", err, io.ErrUnexpectedEOF)
	}
}

func equalWords(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
