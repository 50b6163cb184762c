// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pf-dump decodes and displays polarfire raw data files.
//
// Usage: pf-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> pf-dump -roc 3 ./testdata/run_000123.raw
//  === event 0 ===
//  version:   2
//  fpga:      5
//  nsamples:  2
//  spill:     42
//  digis:     78
//    EID(5,0,0) 0x00012345 0x00013456
//  [...]
package main // import "github.com/go-calo/pfdaq/cmd/pf-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-calo/pfdaq/pflr"
)

func main() {
	log.SetPrefix("pf-dump: ")
	log.SetFlags(0)

	var (
		rocv   = flag.Int("roc", 3, "HGCROC version of the data (2 or 3)")
		digis  = flag.Bool("digis", true, "print per-channel samples")
		strict = flag.Bool("strict", false, "reject events on checksum mismatch")
	)

	flag.Usage = func() {
		fmt.Printf(`pf-dump decodes and displays polarfire raw data files.

Usage: pf-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input raw file")
	}

	cfg := pflr.Config{ROCVersion: *rocv, StrictCRC: *strict}
	for _, fname := range flag.Args() {
		err := process(os.Stdout, cfg, fname, *digis)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, cfg pflr.Config, fname string, digis bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	dec, err := pflr.NewDecoder(cfg, pflr.Stream(f))
	if err != nil {
		return err
	}

	for ievt := 0; ; ievt++ {
		var evt pflr.Event
		err := dec.Decode(&evt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not decode event %d: %w", ievt, err)
		}
		dump(wbuf, ievt, &evt, cfg.ROCVersion, digis)
	}
}

func dump(w io.Writer, ievt int, evt *pflr.Event, rocv int, digis bool) {
	hdr := evt.Header
	fmt.Fprintf(w, "=== event %d ===\n", ievt)
	fmt.Fprintf(w, "version:  % 10d\n", hdr.Version)
	fmt.Fprintf(w, "fpga:     % 10d\n", hdr.FPGA)
	fmt.Fprintf(w, "nsamples: % 10d\n", hdr.NSamples)
	if hdr.Version == 2 {
		fmt.Fprintf(w, "spill:    % 10d\n", hdr.Spill)
		fmt.Fprintf(w, "ticks:    % 10d\n", hdr.Ticks)
		fmt.Fprintf(w, "number:   % 10d\n", hdr.Number)
		fmt.Fprintf(w, "run:      % 10d (%02d-%02d %02d:%02d)\n",
			hdr.Run, hdr.Day, hdr.Month, hdr.Hour, hdr.Min,
		)
	}
	fmt.Fprintf(w, "channels: % 10d\n", len(evt.Data))

	if !digis {
		return
	}
	coll, err := pflr.Assemble(evt, rocv, nil)
	if err != nil {
		fmt.Fprintf(w, "  (no digis: %+v)\n", err)
		return
	}
	for _, digi := range coll.Digis {
		fmt.Fprintf(w, "  %v", pflr.EIDFrom(digi.ID))
		for _, s := range digi.Samples {
			fmt.Fprintf(w, " 0x%08x", s.Raw())
		}
		fmt.Fprintf(w, "\n")
	}
}
