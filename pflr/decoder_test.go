// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestNewDecoderConfig(t *testing.T) {
	for _, tc := range []struct {
		rocv int
		want error
	}{
		{rocv: 0},
		{rocv: 2},
		{rocv: 3},
		{rocv: 1, want: errors.New("pflr: unknown ROC version 1")},
		{rocv: 4, want: errors.New("pflr: unknown ROC version 4")},
	} {
		_, err := NewDecoder(Config{ROCVersion: tc.rocv}, Words(nil))
		switch {
		case err == nil && tc.want == nil:
			// ok.
		case err != nil && tc.want != nil:
			if got, want := err.Error(), tc.want.Error(); got != want {
				t.Fatalf("rocv=%d: invalid error:\ngot= %s\nwant=%s", tc.rocv, got, want)
			}
		default:
			t.Fatalf("rocv=%d: got=%v, want=%v", tc.rocv, err, tc.want)
		}
	}
}

func TestDecoderResync(t *testing.T) {
	evt, err := Marshal(testEvent(2, 3))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}

	// words upstream of the sync pattern are junk, not an error.
	words := append([]uint32{0xdeadbeef, 0x12345678, 0}, evt...)

	dec, err := NewDecoder(Config{}, Words(words))
	if err != nil {
		t.Fatalf("could not create decoder: %+v", err)
	}

	var got Event
	err = dec.Decode(&got)
	if err != nil {
		t.Fatalf("could not decode event: %+v", err)
	}
	if got, want := got.Data, testEventData(3); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid channel data:\ngot= %#v\nwant=%#v", got, want)
	}
}

func TestDecoderErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		words []uint32
		want  string
	}{
		{
			name:  "no-data",
			words: nil,
			want:  "pflr: could not find sync word: EOF",
		},
		{
			name:  "no-sync",
			words: []uint32{1, 2, 3},
			want:  "pflr: could not find sync word: EOF",
		},
		{
			name:  "sync-only",
			words: []uint32{syncV2},
			want:  "pflr: could not read event header: EOF",
		},
		{
			name:  "unknown-version",
			words: []uint32{syncV1, fldEvtVersion.put(5)},
			want:  "pflr: unknown DAQ format version 5 (only 1 and 2 are supported)",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := NewDecoder(Config{}, Words(tc.words))
			if err != nil {
				t.Fatalf("could not create decoder: %+v", err)
			}
			var evt Event
			err = dec.Decode(&evt)
			if err == nil {
				t.Fatalf("expected an error: %s", tc.want)
			}
			if got, want := err.Error(), tc.want; got != want {
				t.Fatalf("invalid error:\ngot= %s\nwant=%s", got, want)
			}
		})
	}
}

func TestDecoderTruncated(t *testing.T) {
	words, err := Marshal(testEvent(2, 3))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}

	for _, n := range []int{2, 5, 12, len(words) - 3} {
		dec, err := NewDecoder(Config{}, Words(words[:n]))
		if err != nil {
			t.Fatalf("could not create decoder: %+v", err)
		}
		var evt Event
		err = dec.Decode(&evt)
		if err == nil {
			t.Fatalf("n=%d: expected an error", n)
		}
		if !errors.Is(err, io.EOF) {
			t.Fatalf("n=%d: error does not wrap io.EOF: %+v", n, err)
		}
	}
}

// corruptChannel flips a bit in the sample-1 word of channel slot 25
// of link 0 (value 0x00002501 in the testEvent fixture).
func corruptChannel(t *testing.T, words []uint32) {
	t.Helper()
	for i, w := range words {
		if w == 0x00002501 {
			words[i] ^= 0x80000000
			return
		}
	}
	t.Fatalf("could not locate channel word to corrupt")
}

func TestDecoderCorruptedChannel(t *testing.T) {
	words, err := Marshal(testEvent(2, 3))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}
	corruptChannel(t, words)

	dec, err := NewDecoder(Config{}, Words(words))
	if err != nil {
		t.Fatalf("could not create decoder: %+v", err)
	}

	var evt Event
	err = dec.Decode(&evt)
	if err != nil {
		t.Fatalf("could not decode event: %+v", err)
	}

	// only the corrupted link and the corrupted sample flip; the
	// corrupted word itself is still recorded.
	if got, want := evt.Header.GoodTrailer, []bool{false, true, false}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid link trailer flags: got=%v, want=%v", got, want)
	}
	if got, want := evt.Header.GoodBXHeader, []bool{true, true, false}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid link header flags: got=%v, want=%v", got, want)
	}
	if got, want := evt.Header.GoodChecksum, []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid sample checksum flags: got=%v, want=%v", got, want)
	}

	eid := EID{FPGA: 5, Link: 0, Channel: 22}
	if got, want := evt.Data[eid], []Sample{0x00002500, 0x80002501}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid channel data: got=%v, want=%v", got, want)
	}
}

func TestDecoderStrictCRC(t *testing.T) {
	bad, err := Marshal(testEvent(2, 3))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}
	corruptChannel(t, bad)

	good, err := Marshal(testEvent(2, 3))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}

	dec, err := NewDecoder(Config{StrictCRC: true}, Words(append(bad, good...)))
	if err != nil {
		t.Fatalf("could not create decoder: %+v", err)
	}

	var evt Event
	err = dec.Decode(&evt)
	if err == nil {
		t.Fatalf("expected a checksum error")
	}
	if !strings.Contains(err.Error(), "link checksum mismatch") {
		t.Fatalf("invalid error: %+v", err)
	}

	// the stream stays usable: the next Decode re-synchronizes on the
	// following event.
	err = dec.Decode(&evt)
	if err != nil {
		t.Fatalf("could not decode event after failure: %+v", err)
	}
	if got, want := evt.Data, testEventData(3); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid channel data:\ngot= %#v\nwant=%#v", got, want)
	}
}

func TestDecoderStrictCRCSample(t *testing.T) {
	// a corrupted ROC v2 link does not break the link trailer (idle
	// word), only the board-scope sample checksum.
	words, err := Marshal(testEvent(2, 2))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}
	corruptChannel(t, words)

	dec, err := NewDecoder(Config{ROCVersion: 2, StrictCRC: true}, Words(words))
	if err != nil {
		t.Fatalf("could not create decoder: %+v", err)
	}

	var evt Event
	err = dec.Decode(&evt)
	if err == nil {
		t.Fatalf("expected a checksum error")
	}
	if !strings.Contains(err.Error(), "sample checksum mismatch") {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestDecoderHeaderOnlyLink(t *testing.T) {
	// a link whose readout map carries only the ROC header and the
	// trailer has no DAQ channel at all.
	ev := &EventData{
		Version: 2,
		FPGA:    5,
		Samples: []SampleData{
			{BX: 100, Links: []LinkData{
				{ROC: 0x2041, Map: mapOf(hdrSlot, trailerSlot)},
			}},
		},
	}
	words, err := Marshal(ev)
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}

	dec, err := NewDecoder(Config{}, Words(words))
	if err != nil {
		t.Fatalf("could not create decoder: %+v", err)
	}

	var evt Event
	err = dec.Decode(&evt)
	if err != nil {
		t.Fatalf("could not decode event: %+v", err)
	}

	if got, want := len(evt.Data), 0; got != want {
		t.Fatalf("invalid number of channels: got=%d, want=%d", got, want)
	}
	if got, want := evt.Header.GoodBXHeader, []bool{true}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid link header flags: got=%v, want=%v", got, want)
	}
	if got, want := evt.Header.GoodTrailer, []bool{true}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid link trailer flags: got=%v, want=%v", got, want)
	}
}
