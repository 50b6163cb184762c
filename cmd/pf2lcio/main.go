// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pf2lcio converts a polarfire raw data file to an LCIO file.
//
//  Usage: pf2lcio [OPTIONS] file.raw
//
//  ex:
//   $> pf2lcio -o out.lcio -run 42 -det hcal-testbeam ./input.raw
package main // import "github.com/go-calo/pfdaq/cmd/pf2lcio"

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go-hep.org/x/hep/lcio"

	"github.com/go-calo/pfdaq/detmap"
	"github.com/go-calo/pfdaq/internal/xcnv"
	"github.com/go-calo/pfdaq/pflr"
)

func main() {
	log.SetPrefix("pf2lcio: ")
	log.SetFlags(0)

	var (
		oname = flag.String("o", "out.lcio", "path to output LCIO file")
		run   = flag.Int("run", 0, "run number")
		det   = flag.String("det", "", "detector name for the run header")
		rocv  = flag.Int("roc", 3, "HGCROC version of the data (2 or 3)")
		dmap  = flag.String("detmap", "", "path to a CSV electronics-to-detector mapping (enables translation)")
		name  = flag.String("name", "PolarfireDigis", "name of the output digi collection")
		nwrk  = flag.Int("j", 1, "number of events decoded concurrently")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: pf2lcio [OPTIONS] file.raw

ex:
 $> pf2lcio -o out.lcio -run 42 -det hcal-testbeam ./input.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input raw file")
	}

	err := process(*oname, flag.Arg(0), *dmap, *det, *name, *rocv, *run, *nwrk)
	if err != nil {
		log.Fatalf("could not convert %q: %+v", flag.Arg(0), err)
	}
}

func process(oname, fname, dmap, det, name string, rocv, run, nwrk int) error {
	var (
		m   pflr.Mapping
		err error
	)
	if dmap != "" {
		tbl, err := detmap.Open(dmap)
		if err != nil {
			return fmt.Errorf("could not load detector mapping: %w", err)
		}
		log.Printf("loaded %d mapped addresses from %q", tbl.Len(), dmap)
		m = tbl
	}

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", oname, err)
	}
	defer w.Close()

	runner := &pflr.Runner{
		Cfg:     pflr.Config{ROCVersion: rocv},
		Map:     m,
		Workers: nwrk,
		Msg:     log.Default(),
	}

	err = xcnv.PF2LCIO(w, runner, f, int32(run), det, name, log.Default())
	if err != nil {
		return fmt.Errorf("could not convert to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close %q: %w", oname, err)
	}
	return nil
}
