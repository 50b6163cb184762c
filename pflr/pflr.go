// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pflr holds functions to decode raw data from polarfire
// readout boards driving HGCROC front-end chips.
package pflr // import "github.com/go-calo/pfdaq/pflr"

import "fmt"

// EID identifies one physical readout channel: one HGCROC channel on
// one link of one polarfire board. EIDs compare field-wise and are
// never modified after construction.
type EID struct {
	FPGA    uint8
	Link    uint8
	Channel uint8
}

// EIDFrom rebuilds an EID from its raw encoding.
func EIDFrom(raw uint32) EID {
	return EID{
		FPGA:    uint8(raw >> 16),
		Link:    uint8(raw >> 8),
		Channel: uint8(raw),
	}
}

// Raw returns the packed encoding of the EID.
func (id EID) Raw() uint32 {
	return uint32(id.FPGA)<<16 | uint32(id.Link)<<8 | uint32(id.Channel)
}

// Less orders EIDs by (fpga, link, channel).
func (id EID) Less(o EID) bool { return id.Raw() < o.Raw() }

func (id EID) String() string {
	return fmt.Sprintf("EID(%d,%d,%d)", id.FPGA, id.Link, id.Channel)
}

// DetID is the detector-side address of a channel. It is produced only
// by an external mapping service; pflr never builds one itself.
type DetID uint32

// Raw returns the raw encoding of the DetID.
func (id DetID) Raw() uint32 { return uint32(id) }

// Sample is one raw 32-bit channel word for one time-slot.
// Its bit layout is left to downstream sample decoders.
type Sample uint32

// Raw returns the raw 32-bit word of the sample.
func (s Sample) Raw() uint32 { return uint32(s) }

// Header holds the decoded polarfire event header.
type Header struct {
	Version  int // DAQ format version (1 or 2)
	FPGA     int // originating board id
	NSamples int // declared number of time-samples

	// version 2 extended header
	Spill  int // spill number
	Ticks  int // 5 MHz ticks since start of spill
	Bunch  int // bunch id according to this board
	Number int // event number according to this board
	Run    int // run number
	Day    int // day of month the run started (DD)
	Month  int // month the run started (MM)
	Hour   int // hour the run started (hh)
	Min    int // minute the run started (mm)

	// per-link quality flags, sized to the link count of the event
	GoodBXHeader []bool // ROC header word carried the expected marker
	GoodTrailer  []bool // link trailer matched (idle word or link CRC)

	// per-sample quality flag: trailing checksum word matched the
	// board-scope CRC
	GoodChecksum []bool
}

// Event is one decoded polarfire event: its header and the raw channel
// words regrouped by electronics address, one word per time-sample.
type Event struct {
	Header Header
	Data   map[EID][]Sample
}

func (evt *Event) reset() {
	evt.Header = Header{}
	evt.Data = make(map[EID][]Sample)
}
