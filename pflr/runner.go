// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// ScanEvent extracts the raw words of the next event from the stream,
// sync word and (version 1) footer included, without decoding its
// payload. Words ahead of the sync pattern are skipped.
//
// ScanEvent returns an error wrapping io.EOF when the stream is
// cleanly exhausted before a sync word.
func ScanEvent(r WordReader) ([]uint32, error) {
	var sync uint32
seek:
	for {
		if err := r.Advance(); err != nil {
			return nil, xerrors.Errorf("pflr: could not find sync word: %w", err)
		}
		sync = r.Word()
		switch sync {
		case syncV1, syncV2:
			break seek
		}
	}

	if err := r.Advance(); err != nil {
		return nil, xerrors.Errorf("pflr: could not read event header: %w", err)
	}
	hdr := r.Word()

	var (
		version = int(fldEvtVersion.of(hdr))
		evtlen  = int(fldEvtLen.of(hdr))
		footer  = 0
	)
	switch version {
	case 1:
		footer = 2
	case 2:
		evtlen = 2*evtlen - 1
	default:
		return nil, xerrors.Errorf("pflr: unknown DAQ format version %d", version)
	}

	words := make([]uint32, 0, 1+evtlen+footer)
	words = append(words, sync, hdr)
	for i := 1; i < evtlen+footer; i++ {
		if err := r.Advance(); err != nil {
			if xerrors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, xerrors.Errorf("pflr: truncated event (%d of %d words): %w",
				i, evtlen+footer, err)
		}
		words = append(words, r.Word())
	}
	return words, nil
}

// Runner decodes every event of a raw stream.
//
// Each event owns its cursor, checksum accumulators and address map,
// so events are decoded in parallel; the optional Mapping is only read.
// A failure on one event is reported to Msg and does not block the
// following events.
type Runner struct {
	Cfg     Config
	Map     Mapping     // optional electronics-to-detector translation
	Workers int         // number of concurrent events; <=1 decodes serially
	Msg     *log.Logger // destination for per-event diagnostics
}

// Run decodes every event of src and hands each decoded event to fn
// together with its index in the stream. fn is called from a single
// goroutine at a time, in arbitrary event order; an error from fn
// aborts the whole run.
func (run *Runner) Run(src io.Reader, fn func(i int, evt *Event, digis DigiCollection) error) error {
	return run.process(Stream(src), fn)
}

// RunWords behaves like Run over an in-memory word sequence, such as
// raw buffers attached to an upstream record.
func (run *Runner) RunWords(words []uint32, fn func(i int, evt *Event, digis DigiCollection) error) error {
	return run.process(Words(words), fn)
}

func (run *Runner) process(r WordReader, fn func(i int, evt *Event, digis DigiCollection) error) error {
	msg := run.Msg
	if msg == nil {
		msg = log.Default()
	}

	// surface a bad configuration before touching the stream.
	if _, err := NewDecoder(run.Cfg, Words(nil)); err != nil {
		return err
	}

	var (
		grp errgroup.Group
		mu  sync.Mutex
	)
	if run.Workers > 1 {
		grp.SetLimit(run.Workers)
	} else {
		grp.SetLimit(1)
	}

	for ievt := 0; ; ievt++ {
		words, err := ScanEvent(r)
		if err != nil {
			if xerrors.Is(err, io.EOF) {
				break
			}
			msg.Printf("could not scan event %d: %+v", ievt, err)
			if r.Exhausted() {
				break
			}
			continue
		}

		ievt := ievt
		grp.Go(func() error {
			dec, err := NewDecoder(run.Cfg, Words(words))
			if err != nil {
				return err
			}
			var evt Event
			if err := dec.Decode(&evt); err != nil {
				msg.Printf("could not decode event %d: %+v", ievt, err)
				return nil
			}
			digis, err := Assemble(&evt, dec.cfg.ROCVersion, run.Map)
			if err != nil {
				msg.Printf("could not assemble event %d: %+v", ievt, err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			return fn(ievt, &evt, digis)
		})
	}

	return grp.Wait()
}
