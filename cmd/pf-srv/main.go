// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pf-srv starts a TDAQ task that decodes a polarfire raw data
// file and publishes the decoded events on its /pf-digis endpoint.
package main // import "github.com/go-calo/pfdaq/cmd/pf-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-calo/pfdaq/detmap"
	"github.com/go-calo/pfdaq/pflr"
)

func main() {
	cmd := flags.New()

	if len(cmd.Args) == 0 {
		log.Fatalf("pf-srv: missing path to input raw file")
	}

	var (
		fname = cmd.Args[0]
		m     pflr.Mapping
	)
	if len(cmd.Args) > 1 {
		tbl, err := detmap.Open(cmd.Args[1])
		if err != nil {
			log.Fatalf("pf-srv: could not load detector mapping: %+v", err)
		}
		m = tbl
	}

	dev := pflr.NewServer(pflr.Config{}, fname, m)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/pf-digis", dev.Digis)

	srv.RunHandle(dev.Loop)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
