// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

const (
	syncV1 = 0xbeef2021 // version-1 synchronization word
	syncV2 = 0xbeef2022 // version-2 synchronization word

	idleWord = 0xaccccccc // link trailer idle pattern (ROC v2)

	numSlots    = 40 // channel slots per link
	hdrSlot     = 0  // ROC header word
	calibSlot   = 20 // calibration channel
	trailerSlot = 39 // link trailer (idle word or checksum)

	// ROC v2 header word carries 0xaa in its top byte.
	rocHeaderMarkMask = 0xff000000
	rocHeaderMark     = 0xaa000000

	// number of sample-length words the v2 firmware always emits,
	// whatever the actual sample count (DMA readout simplification).
	lenWordsV2 = 8
)

// field is one (offset, width) bit-field inside a 32-bit word.
type field struct {
	off   uint8
	width uint8
}

// of extracts the field from w.
func (f field) of(w uint32) uint32 {
	return (w >> f.off) & (1<<f.width - 1)
}

// put returns v positioned in the field, truncated to its width.
func (f field) put(v uint32) uint32 {
	return (v & (1<<f.width - 1)) << f.off
}

// event header word:
// VERSION (4) | FPGA ID (8) | NSAMPLES (4) | LEN (16)
var (
	fldEvtVersion  = field{28, 4}
	fldEvtFPGA     = field{20, 8}
	fldEvtNSamples = field{16, 4}
	fldEvtLen      = field{0, 16}
)

// sample-length table, two 16-bit cells per word, 12 bits used:
var (
	fldSampleLen0 = field{0, 12}
	fldSampleLen1 = field{16, 12}
)

// version-2 extended header:
// SPILL (12) | BUNCH (12), then TICKS (32), NUMBER (32), then
// MM (4) | DD (5) | hh (5) | mm (6) | RUN (12)
var (
	fldExtSpill = field{12, 12}
	fldExtBunch = field{0, 12}
	fldExtMonth = field{28, 4}
	fldExtDay   = field{23, 5}
	fldExtHour  = field{18, 5}
	fldExtMin   = field{12, 6}
	fldExtRun   = field{0, 12}
)

// first sample header word:
// VERSION (4) | FPGA_ID (8) | NLINKS (6) | 00 | LEN (12)
var (
	fldSmpROCVersion = field{28, 4}
	fldSmpFPGA       = field{20, 8}
	fldSmpNLinks     = field{14, 6}
	fldSmpLen        = field{0, 12}
)

// second sample header word:
// BX ID (12) | RREQ (10) | OR (10)
var (
	fldSmpBX    = field{20, 12}
	fldSmpRReq  = field{10, 10}
	fldSmpOrbit = field{0, 10}
)

// four-link pack, one byte per link:
// RID ok (1) | CRC ok (1) | LEN (6)
var (
	fldLinkLen = field{0, 6}
)

// first link header word:
// ROC_ID (16) | CRC ok (1) | 0 (7) | RO MAP (8)
// the low 8 bits are the *upper* 8 bits of the 40-bit readout map;
// the second word carries the lower 32 bits.
var (
	fldLinkROC   = field{16, 16}
	fldLinkMapHi = field{0, 8}
)

// ROC v3 header word (slot 0):
// 0101 | BXID (12) | RREQ (6) | OR (3) | HE (3) | 0101
var (
	fldROCBX      = field{16, 12}
	fldROCRReq    = field{10, 6}
	fldROCOrbit   = field{7, 3}
	fldROCHamming = field{4, 3}
)

// commonModeSlot returns the channel slot carrying the common-mode
// pair for the given ROC version.
func commonModeSlot(rocVersion int) uint32 {
	if rocVersion == 2 {
		return 19
	}
	return 1
}
