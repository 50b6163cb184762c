// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"encoding/binary"
	"io"
	"math/bits"

	"golang.org/x/xerrors"

	"github.com/go-calo/pfdaq/internal/crc32w"
)

// LinkData describes the payload of one readout link of one sample.
type LinkData struct {
	ROC  uint16 // roc id carried by the first link header word
	Map  uint64 // 40-bit channel-activity map
	Down bool   // link disconnected: encoded with length 0

	// Chans maps a channel slot (0-39) to its word, for slots set in
	// Map. A set slot with no entry gets a synthesized word: the ROC
	// header marker for slot 0, zero otherwise. The trailer slot is
	// always computed (idle word or link checksum).
	Chans map[int]uint32
}

// SampleData describes one time-sample of an event.
type SampleData struct {
	BX    uint32
	RReq  uint32
	Orbit uint32
	Links []LinkData
}

// EventData is the writable description of one polarfire event.
type EventData struct {
	Version    int   // DAQ format version, 1 or 2
	ROCVersion int   // HGCROC generation, 2 or 3; zero value is 3
	FPGA       uint8 // originating board id

	// version-2 extended header fields
	Spill  int
	Bunch  int
	Ticks  int
	Number int
	Run    int
	Day    int
	Month  int
	Hour   int
	Min    int

	Samples []SampleData

	// CRC selects the checksum folding; nil is crc32w.Polarfire.
	CRC *crc32w.Params
}

// Marshal lays the event out as a raw word stream, sync word and
// (for version 1) footer included. Lengths, four-link packs, link
// trailers and per-sample checksums are computed here, so the result
// always decodes cleanly.
func Marshal(ev *EventData) ([]uint32, error) {
	rocv := ev.ROCVersion
	if rocv == 0 {
		rocv = 3
	}

	var sync uint32
	switch ev.Version {
	case 1:
		sync = syncV1
	case 2:
		sync = syncV2
	default:
		return nil, xerrors.Errorf("pflr: unknown DAQ format version %d", ev.Version)
	}

	nsamples := len(ev.Samples)
	if nsamples >= 1<<4 {
		return nil, xerrors.Errorf("pflr: too many samples (%d)", nsamples)
	}

	// build the samples first: the header needs their lengths.
	var (
		body []uint32
		lens = make([]uint32, nsamples)
	)
	for i := range ev.Samples {
		ws, err := sampleWords(&ev.Samples[i], ev.FPGA, rocv, ev.CRC)
		if err != nil {
			return nil, xerrors.Errorf("pflr: could not lay out sample %d: %w", i, err)
		}
		lens[i] = uint32(len(ws))
		body = append(body, ws...)
		if ev.Version == 2 && len(ws)%2 == 1 {
			body = append(body, 0) // pad to the 64-bit boundary
		}
	}

	var hdr []uint32
	switch ev.Version {
	case 1:
		hdr = make([]uint32, 1+(nsamples+1)/2)
	case 2:
		hdr = make([]uint32, 1+lenWordsV2+4)
	}
	for i, n := range lens {
		switch i % 2 {
		case 0:
			hdr[1+i/2] |= fldSampleLen0.put(n)
		case 1:
			hdr[1+i/2] |= fldSampleLen1.put(n)
		}
	}

	evtlen := len(hdr) + len(body)
	var declared uint32
	switch ev.Version {
	case 1:
		declared = uint32(evtlen)
	case 2:
		// declared length is in 64-bit units and covers the sync word.
		declared = uint32(evtlen+1) / 2
	}
	if declared >= 1<<16 {
		return nil, xerrors.Errorf("pflr: event too long (%d words)", evtlen)
	}

	hdr[0] = fldEvtVersion.put(uint32(ev.Version)) |
		fldEvtFPGA.put(uint32(ev.FPGA)) |
		fldEvtNSamples.put(uint32(nsamples)) |
		fldEvtLen.put(declared)

	if ev.Version == 2 {
		ext := hdr[1+lenWordsV2:]
		ext[0] = fldExtSpill.put(uint32(ev.Spill)) | fldExtBunch.put(uint32(ev.Bunch))
		ext[1] = uint32(ev.Ticks)
		ext[2] = uint32(ev.Number)
		ext[3] = fldExtMonth.put(uint32(ev.Month)) |
			fldExtDay.put(uint32(ev.Day)) |
			fldExtHour.put(uint32(ev.Hour)) |
			fldExtMin.put(uint32(ev.Min)) |
			fldExtRun.put(uint32(ev.Run))
	}

	words := make([]uint32, 0, 1+evtlen+2)
	words = append(words, sync)
	words = append(words, hdr...)
	words = append(words, body...)
	if ev.Version == 1 {
		words = append(words, 0, 0) // footer
	}
	return words, nil
}

func sampleWords(s *SampleData, fpga uint8, rocv int, p *crc32w.Params) ([]uint32, error) {
	nlinks := len(s.Links)
	if nlinks >= 1<<6 {
		return nil, xerrors.Errorf("too many links (%d)", nlinks)
	}

	var (
		packs = make([]uint32, (nlinks+3)/4)
		body  []uint32
	)
	for i := range s.Links {
		ws, err := linkWords(&s.Links[i], s, rocv, p)
		if err != nil {
			return nil, xerrors.Errorf("could not lay out link %d: %w", i, err)
		}
		// RID ok (1) | CRC ok (1) | LEN (6), one byte per link
		b := fldLinkLen.put(uint32(len(ws)))
		if len(ws) >= 2 {
			b |= 1<<7 | 1<<6
		}
		packs[i/4] |= b << (8 * (i % 4))
		body = append(body, ws...)
	}

	slen := 2 + len(packs) + len(body) + 1
	if slen >= 1<<12 {
		return nil, xerrors.Errorf("sample too long (%d words)", slen)
	}

	hdr1 := fldSmpROCVersion.put(uint32(rocv)) |
		fldSmpFPGA.put(uint32(fpga)) |
		fldSmpNLinks.put(uint32(nlinks)) |
		fldSmpLen.put(uint32(slen))
	hdr2 := fldSmpBX.put(s.BX) | fldSmpRReq.put(s.RReq) | fldSmpOrbit.put(s.Orbit)

	crc := crc32w.New(p)
	words := make([]uint32, 0, slen)
	words = append(words, hdr1, hdr2)
	words = append(words, packs...)
	words = append(words, body...)
	for _, w := range words {
		crc.Feed(w)
	}
	words = append(words, crc.Sum32())
	return words, nil
}

func linkWords(ld *LinkData, s *SampleData, rocv int, p *crc32w.Params) ([]uint32, error) {
	if ld.Down {
		return nil, nil
	}
	if ld.Map >= 1<<numSlots {
		return nil, xerrors.Errorf("readout map 0x%x wider than %d bits", ld.Map, numSlots)
	}

	wa := fldLinkROC.put(uint32(ld.ROC)) | fldLinkMapHi.put(uint32(ld.Map>>32))
	wb := uint32(ld.Map)

	lcrc := crc32w.New(p)
	lcrc.Feed(wa)
	lcrc.Feed(wb)

	words := []uint32{wa, wb}
	for j := 0; j < numSlots; j++ {
		if ld.Map>>j&1 == 0 {
			continue
		}
		if j == trailerSlot {
			continue // computed below
		}
		w, ok := ld.Chans[j]
		if !ok && j == hdrSlot {
			w = rocHeaderMark |
				fldROCBX.put(s.BX) |
				fldROCRReq.put(s.RReq) |
				fldROCOrbit.put(s.Orbit) |
				fldROCHamming.put(0)
		}
		lcrc.Feed(w)
		words = append(words, w)
	}
	if ld.Map>>trailerSlot&1 == 1 {
		switch rocv {
		case 2:
			words = append(words, idleWord)
		default:
			words = append(words, lcrc.Sum32())
		}
	}

	if n := 2 + bits.OnesCount64(ld.Map); n != len(words) {
		panic("pflr: inconsistent link layout")
	}
	return words, nil
}

// Encoder writes polarfire events to an output stream as little-endian
// 32-bit words.
type Encoder struct {
	w   io.Writer
	buf [4]byte
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode lays out the event and writes it to the stream.
func (enc *Encoder) Encode(ev *EventData) error {
	words, err := Marshal(ev)
	if err != nil {
		return err
	}
	for _, w := range words {
		enc.writeU32(w)
	}
	if enc.err != nil {
		return xerrors.Errorf("pflr: could not write event: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) writeU32(w uint32) {
	if enc.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(enc.buf[:], w)
	_, enc.err = enc.w.Write(enc.buf[:])
}
