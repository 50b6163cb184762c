// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pf-split splits a polarfire raw file into n raw files,
// one per board id.
package main // import "github.com/go-calo/pfdaq/cmd/pf-split"

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-calo/pfdaq/pflr"
)

var (
	msg = log.New(os.Stdout, "pf-split: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset  = flag.NewFlagSet("pf", flag.ExitOnError)
		oname = fset.String("o", "out.raw", "path to output raw file")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: pf-split [OPTIONS] file.raw

ex:
 $> pf-split -o out.raw ./input.raw

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() != 1 {
		fset.Usage()
		msg.Fatalf("missing input raw file")
	}

	if *oname == "" {
		fset.Usage()
		msg.Fatalf("invalid output raw file")
	}

	for _, arg := range fset.Args() {
		err := process(*oname, arg)
		if err != nil {
			msg.Fatalf("could not split raw file %q: %+v", arg, err)
		}
	}
}

func process(oname, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open raw file: %w", err)
	}
	defer f.Close()

	out := make(map[uint8]*os.File)
	r := pflr.Stream(f)

loop:
	for {
		words, err := pflr.ScanEvent(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not scan event: %w", err)
		}

		// the board id lives in the event header word, right after
		// the sync word.
		fpga := uint8(words[1] >> 20)

		o, ok := out[fpga]
		if !ok {
			oid := outFileFrom(oname, fpga)
			msg.Printf("creating output file %q...", oid)
			o, err = os.Create(oid)
			if err != nil {
				return fmt.Errorf("could not create output file: %w", err)
			}
			defer o.Close()
			out[fpga] = o
		}

		err = writeWords(o, words)
		if err != nil {
			return fmt.Errorf("could not write event for board %d: %w", fpga, err)
		}
	}

	return nil
}

func writeWords(w io.Writer, words []uint32) error {
	var buf [4]byte
	for _, word := range words {
		binary.LittleEndian.PutUint32(buf[:], word)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func outFileFrom(fname string, id uint8) string {
	var (
		ext   = filepath.Ext(fname)
		oname = strings.Replace(fname, ext, fmt.Sprintf("-%03d%s", id, ext), 1)
	)
	return oname
}
