// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"encoding/binary"
	"errors"
	"io"
)

// WordReader is a sequential cursor over a stream of 32-bit words.
//
// The cursor starts one position before the first word: callers must
// Advance before the first Word. Advancing past the end is an error;
// use Exhausted to check first.
type WordReader interface {
	// Word returns the word currently under the cursor.
	Word() uint32
	// Advance moves the cursor onto the next word.
	// It returns io.EOF once the source is exhausted, or
	// io.ErrUnexpectedEOF if the source ends inside a word.
	Advance() error
	// Exhausted reports whether no word is left to advance onto.
	Exhausted() bool
}

// Words returns a WordReader over an in-memory word sequence, such as
// an event already present on the data bus.
func Words(ws []uint32) WordReader {
	return &wordsReader{ws: ws, i: -1}
}

type wordsReader struct {
	ws []uint32
	i  int
}

func (r *wordsReader) Word() uint32 {
	if r.i < 0 || r.i >= len(r.ws) {
		return 0
	}
	return r.ws[r.i]
}

func (r *wordsReader) Advance() error {
	if r.i+1 >= len(r.ws) {
		r.i = len(r.ws)
		return io.EOF
	}
	r.i++
	return nil
}

func (r *wordsReader) Exhausted() bool {
	return r.i+1 >= len(r.ws)
}

// Stream returns a WordReader over rr, lazily grouping 4 consecutive
// bytes (little-endian) into one word.
func Stream(rr io.Reader) WordReader {
	sr := &streamReader{r: rr}
	sr.load()
	return sr
}

type streamReader struct {
	r    io.Reader
	buf  [4]byte
	cur  uint32
	next uint32
	ok   bool // next holds a valid word
	err  error
}

func (r *streamReader) load() {
	r.ok = false
	if r.err != nil {
		return
	}
	_, err := io.ReadFull(r.r, r.buf[:])
	switch {
	case err == nil:
		r.next = binary.LittleEndian.Uint32(r.buf[:])
		r.ok = true
	case errors.Is(err, io.EOF):
		r.err = io.EOF
	default:
		// a partial trailing word is a truncation, keep it distinct
		// from a clean end of stream.
		r.err = err
	}
}

func (r *streamReader) Word() uint32 { return r.cur }

func (r *streamReader) Advance() error {
	if !r.ok {
		return r.err
	}
	r.cur = r.next
	r.load()
	return nil
}

func (r *streamReader) Exhausted() bool { return !r.ok }
