// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"golang.org/x/xerrors"

	"github.com/go-calo/pfdaq/internal/crc32w"
)

// Config gathers the decode-time parameters of one processing run.
type Config struct {
	// ROCVersion selects the HGCROC firmware generation (2 or 3).
	// It fixes the common-mode channel slot and the link trailer
	// encoding. The zero value selects version 3.
	ROCVersion int

	// StrictCRC makes a checksum mismatch (link trailer in ROC v3,
	// per-sample board checksum) abort the event instead of being
	// recorded as a quality flag.
	StrictCRC bool

	// CRC selects the checksum folding of the firmware revision.
	// nil selects crc32w.Polarfire.
	CRC *crc32w.Params
}

// Decoder reads (and validates) polarfire events from an underlying
// word stream. Decoder computes the link- and board-scope checksums on
// the fly, while walking the zero-suppressed channel payloads.
type Decoder struct {
	r   WordReader
	cfg Config
	cm  uint32 // common-mode channel slot
	err error
}

// NewDecoder creates a decoder reading events from r.
func NewDecoder(cfg Config, r WordReader) (*Decoder, error) {
	switch cfg.ROCVersion {
	case 0:
		cfg.ROCVersion = 3
	case 2, 3:
		// ok
	default:
		return nil, xerrors.Errorf("pflr: unknown ROC version %d", cfg.ROCVersion)
	}
	return &Decoder{
		r:   r,
		cfg: cfg,
		cm:  commonModeSlot(cfg.ROCVersion),
	}, nil
}

// next advances the cursor and returns the word under it.
// Errors stick until the next Decode call.
func (dec *Decoder) next() uint32 {
	if dec.err != nil {
		return 0
	}
	dec.err = dec.r.Advance()
	if dec.err != nil {
		return 0
	}
	return dec.r.Word()
}

// Decode reads the next event from the stream into evt.
//
// A decode failure is confined to that event: the stream stays usable
// and the following Decode re-synchronizes on the next sync word.
// Decode returns an error wrapping io.EOF when the stream is cleanly
// exhausted before a sync word.
func (dec *Decoder) Decode(evt *Event) error {
	dec.err = nil
	evt.reset()

	// words inserted upstream of the sync pattern are skipped, not fatal.
	var sync uint32
seek:
	for {
		sync = dec.next()
		if dec.err != nil {
			return xerrors.Errorf("pflr: could not find sync word: %w", dec.err)
		}
		switch sync {
		case syncV1, syncV2:
			break seek
		}
	}

	/* whole event header word looks like
	 *
	 * VERSION (4) | FPGA ID (8) | NSAMPLES (4) | LEN (16)
	 */
	w := dec.next()
	if dec.err != nil {
		return xerrors.Errorf("pflr: could not read event header: %w", dec.err)
	}
	nwords := 1 // words consumed since the sync word

	evt.Header.Version = int(fldEvtVersion.of(w))
	evt.Header.FPGA = int(fldEvtFPGA.of(w))
	evt.Header.NSamples = int(fldEvtNSamples.of(w))
	evtlen := int(fldEvtLen.of(w))

	switch evt.Header.Version {
	case 1:
		// evtlen counts 32-bit words, nothing to adjust.
	case 2:
		// evtlen counts 64-bit words: double it and subtract the
		// sync word, which is not part of the declared length.
		evtlen = 2*evtlen - 1
	default:
		return xerrors.Errorf("pflr: unknown DAQ format version %d (only 1 and 2 are supported)",
			evt.Header.Version)
	}

	// per-sample length table, two 12-bit lengths per word.
	var (
		lens      = make([]uint32, evt.Header.NSamples)
		nlenwords = 0
	)
	for i := range lens {
		if i%2 == 0 {
			w = dec.next()
			nwords++
			nlenwords++
		}
		switch i % 2 {
		case 0:
			lens[i] = fldSampleLen0.of(w)
		case 1:
			lens[i] = fldSampleLen1.of(w)
		}
	}
	if dec.err != nil {
		return xerrors.Errorf("pflr: could not read sample lengths: %w", dec.err)
	}

	if evt.Header.Version == 2 {
		// the firmware always pads the length table to 8 words.
		for i := nlenwords; i < lenWordsV2; i++ {
			dec.next()
			nwords++
		}

		w = dec.next()
		nwords++
		evt.Header.Spill = int(fldExtSpill.of(w))
		evt.Header.Bunch = int(fldExtBunch.of(w))

		evt.Header.Ticks = int(dec.next())
		evt.Header.Number = int(dec.next())
		nwords += 2

		w = dec.next()
		nwords++
		evt.Header.Run = int(fldExtRun.of(w))
		evt.Header.Day = int(fldExtDay.of(w))
		evt.Header.Month = int(fldExtMonth.of(w))
		evt.Header.Hour = int(fldExtHour.of(w))
		evt.Header.Min = int(fldExtMin.of(w))

		if dec.err != nil {
			return xerrors.Errorf("pflr: could not read extended event header: %w", dec.err)
		}
	}

	// the chip streams its channels out sample by sample; regroup
	// them by channel as we go.
	isample := 0
	for nwords < evtlen {
		if isample >= evt.Header.NSamples {
			return xerrors.Errorf("pflr: event declares %d samples but word count %d of %d calls for more",
				evt.Header.NSamples, nwords, evtlen)
		}
		n, err := dec.sample(evt, lens[isample])
		nwords += n
		if err != nil {
			return xerrors.Errorf("pflr: could not decode sample %d: %w", isample, err)
		}
		isample++
	}

	if nwords != evtlen {
		return xerrors.Errorf("pflr: event length overrun: consumed %d words, declared %d",
			nwords, evtlen)
	}

	if evt.Header.Version == 1 {
		// two trailing footer words, no content retained.
		dec.next()
		dec.next()
		if dec.err != nil {
			return xerrors.Errorf("pflr: could not read event footer: %w", dec.err)
		}
	}

	return nil
}

// sample decodes one time-sample and returns the number of words
// consumed.
func (dec *Decoder) sample(evt *Event, declared uint32) (int, error) {
	crc := crc32w.New(dec.cfg.CRC)

	/* two sample header words:
	 *
	 * VERSION (4) | FPGA_ID (8) | NLINKS (6) | 00 | LEN (12)
	 * BX ID (12) | RREQ (10) | OR (10)
	 */
	hdr1 := dec.next()
	hdr2 := dec.next()
	nwords := 2
	if dec.err != nil {
		return nwords, xerrors.Errorf("could not read sample header: %w", dec.err)
	}
	crc.Feed(hdr1)
	crc.Feed(hdr2)

	var (
		fpga   = fldSmpFPGA.of(hdr1)
		nlinks = int(fldSmpNLinks.of(hdr1))
	)

	/* four-link packs, one byte per link:
	 * RID ok (1) | CRC ok (1) | LEN (6)
	 * the two flags are transient link qualities, not retained here.
	 */
	var (
		w       uint32
		linklen = make([]uint32, nlinks)
	)
	for i := 0; i < nlinks; i++ {
		if i%4 == 0 {
			w = dec.next()
			nwords++
			crc.Feed(w)
		}
		linklen[i] = fldLinkLen.of(w >> (8 * (i % 4)))
	}
	if dec.err != nil {
		return nwords, xerrors.Errorf("could not read link lengths: %w", dec.err)
	}

	evt.Header.GoodBXHeader = resizeBools(evt.Header.GoodBXHeader, nlinks)
	evt.Header.GoodTrailer = resizeBools(evt.Header.GoodTrailer, nlinks)

	for link := 0; link < nlinks; link++ {
		// a link shorter than its two header words is disconnected:
		// skip it and leave its quality flags at their default.
		if linklen[link] < 2 {
			continue
		}
		n, err := dec.link(evt, crc, uint8(fpga), uint8(link), linklen[link])
		nwords += n
		if err != nil {
			return nwords, xerrors.Errorf("could not decode link %d: %w", link, err)
		}
	}

	// trailing board-scope checksum word, not part of the checked region.
	w = dec.next()
	nwords++
	if dec.err != nil {
		return nwords, xerrors.Errorf("could not read sample checksum: %w", dec.err)
	}
	good := crc.Sum32() == w
	evt.Header.GoodChecksum = append(evt.Header.GoodChecksum, good)
	if !good && dec.cfg.StrictCRC {
		return nwords, xerrors.Errorf("sample checksum mismatch: comp=0x%08x recv=0x%08x",
			crc.Sum32(), w)
	}

	// version 2 pads odd-length samples to a 64-bit boundary.
	if evt.Header.Version == 2 && declared%2 == 1 {
		dec.next()
		nwords++
		if dec.err != nil {
			return nwords, xerrors.Errorf("could not read 64-bit padding word: %w", dec.err)
		}
	}

	return nwords, nil
}

// link decodes one readout link of one sample and returns the number
// of words consumed. Every word read here also feeds the enclosing
// sample-scope checksum crc.
func (dec *Decoder) link(evt *Event, crc crc32w.Hash32, fpga, link uint8, linklen uint32) (int, error) {
	/* two link header words:
	 *
	 * ROC_ID (16) | CRC ok (1) | 0 (7) | RO MAP (8)
	 * RO MAP (32)
	 */
	wa := dec.next()
	wb := dec.next()
	nwords := 2
	if dec.err != nil {
		return nwords, xerrors.Errorf("could not read link header: %w", dec.err)
	}
	crc.Feed(wa)
	crc.Feed(wb)

	lcrc := crc32w.New(dec.cfg.CRC)
	lcrc.Feed(wa)
	lcrc.Feed(wb)

	// 40-bit channel-activity map: word A carries the upper 8 bits.
	romap := uint64(fldLinkMapHi.of(wa))<<32 | uint64(wb)

	// walk the channel slots; zero-suppressed slots are absent from
	// the payload, so the slot index j runs ahead of the word index.
	j := -1
	for iw := uint32(2); iw < linklen; iw++ {
		for {
			j++
			if j >= numSlots {
				return nwords, xerrors.Errorf("readout map exhausted with %d payload words left",
					linklen-iw)
			}
			if romap>>j&1 == 1 {
				break
			}
		}

		w := dec.next()
		nwords++
		if dec.err != nil {
			return nwords, xerrors.Errorf("could not read word for channel slot %d: %w", j, dec.err)
		}
		crc.Feed(w)

		switch uint32(j) {
		case hdrSlot:
			/* ROC header word.
			 *
			 * version 3:
			 * 0101 | BXID (12) | RREQ (6) | OR (3) | HE (3) | 0101
			 *
			 * version 2:
			 * 10101010 | BXID (12) | WADD (9) | 1010
			 */
			lcrc.Feed(w)
			evt.Header.GoodBXHeader[link] = w&rocHeaderMarkMask == rocHeaderMark

		case dec.cm:
			// common-mode pair, opaque at this layer.
			lcrc.Feed(w)

		case calibSlot:
			// calibration channel, opaque at this layer.
			lcrc.Feed(w)

		case trailerSlot:
			// ROC v2 closes the link with an idle word, v3 with the
			// checksum of the link words so far. Either way the
			// trailer itself is not folded into the link CRC.
			var good bool
			switch dec.cfg.ROCVersion {
			case 2:
				good = w == idleWord
			default:
				good = lcrc.Sum32() == w
				if !good && dec.cfg.StrictCRC {
					evt.Header.GoodTrailer[link] = false
					return nwords, xerrors.Errorf("link checksum mismatch: comp=0x%08x recv=0x%08x",
						lcrc.Sum32(), w)
				}
			}
			evt.Header.GoodTrailer[link] = good

		default:
			// generic DAQ channel. The header, common-mode and calib
			// slots shift the logical channel index.
			lcrc.Feed(w)
			ch := j - 1
			if uint32(j) > dec.cm {
				ch--
			}
			if uint32(j) > calibSlot {
				ch--
			}
			eid := EID{FPGA: fpga, Link: link, Channel: uint8(ch)}
			evt.Data[eid] = append(evt.Data[eid], Sample(w))
		}
	}

	return nwords, nil
}

func resizeBools(s []bool, n int) []bool {
	switch {
	case s == nil:
		return make([]bool, n)
	case len(s) < n:
		return append(s, make([]bool, n-len(s))...)
	default:
		return s[:n]
	}
}
