// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pf-shell provides an interactive inspector for polarfire
// raw data files.
//
//  Usage: pf-shell [OPTIONS] file.raw
//
//  ex:
//   $> pf-shell -roc 3 ./run_000123.raw
//   pf> next
//   pf> header
//   pf> digis
//   pf> eid 5 0 12
//   pf> quit
package main // import "github.com/go-calo/pfdaq/cmd/pf-shell"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-calo/pfdaq/detmap"
	"github.com/go-calo/pfdaq/pflr"
)

func main() {
	log.SetPrefix("pf-shell: ")
	log.SetFlags(0)

	var (
		rocv = flag.Int("roc", 3, "HGCROC version of the data (2 or 3)")
		dmap = flag.String("detmap", "", "path to a CSV electronics-to-detector mapping")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: pf-shell [OPTIONS] file.raw

ex:
 $> pf-shell -roc 3 ./run_000123.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing path to input raw file")
	}

	sh, err := newShell(pflr.Config{ROCVersion: *rocv}, flag.Arg(0), *dmap)
	if err != nil {
		log.Fatalf("could not open %q: %+v", flag.Arg(0), err)
	}
	defer sh.Close()

	err = sh.loop()
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

type shell struct {
	f    *os.File
	dec  *pflr.Decoder
	cfg  pflr.Config
	dmap *detmap.Table

	evt  pflr.Event
	ievt int // index of the last decoded event, -1 before the first

	term *liner.State
	hist string
}

func newShell(cfg pflr.Config, fname, dmap string) (*shell, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}

	dec, err := pflr.NewDecoder(cfg, pflr.Stream(f))
	if err != nil {
		f.Close()
		return nil, err
	}

	sh := &shell{
		f:    f,
		dec:  dec,
		cfg:  cfg,
		ievt: -1,
		term: liner.NewLiner(),
		hist: filepath.Join(os.TempDir(), ".pf_shell_history"),
	}

	if dmap != "" {
		tbl, err := detmap.Open(dmap)
		if err != nil {
			sh.Close()
			return nil, fmt.Errorf("could not load detector mapping: %w", err)
		}
		sh.dmap = tbl
	}

	sh.term.SetCtrlCAborts(true)
	sh.term.SetCompleter(func(line string) []string {
		var o []string
		for _, cmd := range []string{"digis", "eid ", "header", "map ", "next", "quit"} {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				o = append(o, cmd)
			}
		}
		return o
	})
	if f, err := os.Open(sh.hist); err == nil {
		sh.term.ReadHistory(f)
		f.Close()
	}

	return sh, nil
}

func (sh *shell) Close() error {
	if f, err := os.Create(sh.hist); err == nil {
		sh.term.WriteHistory(f)
		f.Close()
	}
	sh.term.Close()
	return sh.f.Close()
}

func (sh *shell) loop() error {
	for {
		line, err := sh.term.Prompt("pf> ")
		switch {
		case err == nil:
			// ok.
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			fmt.Printf("\n")
			return nil
		default:
			return fmt.Errorf("could not read line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.term.AppendHistory(line)

		args := strings.Fields(line)
		switch args[0] {
		case "quit", "exit", "q":
			return nil
		case "next", "n":
			err = sh.cmdNext(args[1:])
		case "header", "h":
			err = sh.cmdHeader()
		case "digis", "d":
			err = sh.cmdDigis()
		case "eid":
			err = sh.cmdEID(args[1:])
		case "map":
			err = sh.cmdMap(args[1:])
		default:
			err = fmt.Errorf("unknown command %q", args[0])
		}
		if err != nil {
			fmt.Printf("error: %+v\n", err)
		}
	}
}

func (sh *shell) cmdNext(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid event count %q: %w", args[0], err)
		}
		n = v
	}

	for i := 0; i < n; i++ {
		err := sh.dec.Decode(&sh.evt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("no more events")
			}
			return fmt.Errorf("could not decode event: %w", err)
		}
		sh.ievt++
	}

	fmt.Printf("event %d: fpga=%d nsamples=%d channels=%d\n",
		sh.ievt, sh.evt.Header.FPGA, sh.evt.Header.NSamples, len(sh.evt.Data),
	)
	return nil
}

func (sh *shell) cmdHeader() error {
	if sh.ievt < 0 {
		return fmt.Errorf("no event decoded yet (try 'next')")
	}
	hdr := sh.evt.Header
	fmt.Printf("event:    % 10d\n", sh.ievt)
	fmt.Printf("version:  % 10d\n", hdr.Version)
	fmt.Printf("fpga:     % 10d\n", hdr.FPGA)
	fmt.Printf("nsamples: % 10d\n", hdr.NSamples)
	if hdr.Version == 2 {
		fmt.Printf("spill:    % 10d\n", hdr.Spill)
		fmt.Printf("ticks:    % 10d\n", hdr.Ticks)
		fmt.Printf("bunch:    % 10d\n", hdr.Bunch)
		fmt.Printf("number:   % 10d\n", hdr.Number)
		fmt.Printf("run:      % 10d (%02d-%02d %02d:%02d)\n",
			hdr.Run, hdr.Day, hdr.Month, hdr.Hour, hdr.Min,
		)
	}
	fmt.Printf("bx-ok:    %v\n", hdr.GoodBXHeader)
	fmt.Printf("trail-ok: %v\n", hdr.GoodTrailer)
	fmt.Printf("cksum-ok: %v\n", hdr.GoodChecksum)
	return nil
}

func (sh *shell) cmdDigis() error {
	if sh.ievt < 0 {
		return fmt.Errorf("no event decoded yet (try 'next')")
	}

	var m pflr.Mapping
	if sh.dmap != nil {
		m = sh.dmap
	}
	coll, err := pflr.Assemble(&sh.evt, sh.cfg.ROCVersion, m)
	if err != nil {
		return fmt.Errorf("could not assemble digis: %w", err)
	}

	fmt.Printf("digis: %d (soi=%d)\n", len(coll.Digis), coll.SOI)
	for _, digi := range coll.Digis {
		switch m {
		case nil:
			fmt.Printf("  %v", pflr.EIDFrom(digi.ID))
		default:
			fmt.Printf("  0x%08x", digi.ID)
		}
		for _, s := range digi.Samples {
			fmt.Printf(" 0x%08x", s.Raw())
		}
		fmt.Printf("\n")
	}
	return nil
}

func (sh *shell) cmdEID(args []string) error {
	if sh.dmap == nil {
		return fmt.Errorf("no detector mapping loaded (try 'map FILE')")
	}
	if len(args) != 3 {
		return fmt.Errorf("usage: eid FPGA LINK CHANNEL")
	}

	var vs [3]uint8
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", arg, err)
		}
		vs[i] = uint8(v)
	}

	id := pflr.EID{FPGA: vs[0], Link: vs[1], Channel: vs[2]}
	if !sh.dmap.Exists(id) {
		return fmt.Errorf("no mapping for %v", id)
	}
	fmt.Printf("%v -> 0x%08x\n", id, sh.dmap.Get(id).Raw())
	return nil
}

func (sh *shell) cmdMap(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: map FILE")
	}
	tbl, err := detmap.Open(args[0])
	if err != nil {
		return fmt.Errorf("could not load detector mapping: %w", err)
	}
	sh.dmap = tbl
	fmt.Printf("loaded %d mapped addresses from %q\n", tbl.Len(), args[0])
	return nil
}
