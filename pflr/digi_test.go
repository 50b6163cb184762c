// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"reflect"
	"testing"
)

type mapStub map[EID]DetID

func (m mapStub) Exists(id EID) bool {
	_, ok := m[id]
	return ok
}

func (m mapStub) Get(id EID) DetID { return m[id] }

func decodeTestEvent(t *testing.T, rocv int) *Event {
	t.Helper()
	words, err := Marshal(testEvent(2, rocv))
	if err != nil {
		t.Fatalf("could not marshal event: %+v", err)
	}
	dec, err := NewDecoder(Config{ROCVersion: rocv}, Words(words))
	if err != nil {
		t.Fatalf("could not create decoder: %+v", err)
	}
	var evt Event
	err = dec.Decode(&evt)
	if err != nil {
		t.Fatalf("could not decode event: %+v", err)
	}
	return &evt
}

func TestAssemble(t *testing.T) {
	evt := decodeTestEvent(t, 3)

	coll, err := Assemble(evt, 3, nil)
	if err != nil {
		t.Fatalf("could not assemble digis: %+v", err)
	}

	if got, want := coll.Version, 3; got != want {
		t.Fatalf("invalid version: got=%d, want=%d", got, want)
	}
	if got, want := coll.NSamples, 2; got != want {
		t.Fatalf("invalid number of samples: got=%d, want=%d", got, want)
	}
	if got, want := coll.SOI, 0; got != want {
		t.Fatalf("invalid sample of interest: got=%d, want=%d", got, want)
	}

	// digis come out ordered by electronics address, one sample word
	// per time-sample.
	want := []Digi{
		{ID: EID{FPGA: 5, Link: 0, Channel: 3}.Raw(), Samples: []Sample{0x00000500, 0x00000501}},
		{ID: EID{FPGA: 5, Link: 0, Channel: 5}.Raw(), Samples: []Sample{0x00000700, 0x00000701}},
		{ID: EID{FPGA: 5, Link: 0, Channel: 22}.Raw(), Samples: []Sample{0x00002500, 0x00002501}},
		{ID: EID{FPGA: 5, Link: 1, Channel: 9}.Raw(), Samples: []Sample{0x00001100, 0x00001101}},
	}
	if got := coll.Digis; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid digis:\ngot= %#v\nwant=%#v", got, want)
	}

	for _, digi := range coll.Digis {
		if got, want := len(digi.Samples), coll.NSamples; got != want {
			t.Fatalf("digi 0x%08x: invalid sample count: got=%d, want=%d", digi.ID, got, want)
		}
	}
}

func TestAssembleMapped(t *testing.T) {
	evt := decodeTestEvent(t, 3)

	// only two addresses are known to the mapping: the others are
	// channels with nothing connected, dropped without complaint.
	m := mapStub{
		{FPGA: 5, Link: 0, Channel: 3}: 0x10002030,
		{FPGA: 5, Link: 1, Channel: 9}: 0x10002040,
	}

	coll, err := Assemble(evt, 3, m)
	if err != nil {
		t.Fatalf("could not assemble digis: %+v", err)
	}

	want := []Digi{
		{ID: 0x10002030, Samples: []Sample{0x00000500, 0x00000501}},
		{ID: 0x10002040, Samples: []Sample{0x00001100, 0x00001101}},
	}
	if got := coll.Digis; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid digis:\ngot= %#v\nwant=%#v", got, want)
	}
}

func TestAssembleEmpty(t *testing.T) {
	evt := &Event{Data: map[EID][]Sample{}}
	_, err := Assemble(evt, 3, nil)
	if err == nil {
		t.Fatalf("expected an error for an event with no channels")
	}
}
