// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"encoding/json"
	"io"
	"os"

	"github.com/go-daq/tdaq"
	"golang.org/x/xerrors"
)

// Server exposes the decoder as a tdaq task: during a run it decodes
// events from a raw data file and publishes them, JSON-encoded, on its
// output endpoint.
type Server struct {
	cfg   Config
	fname string
	dmap  Mapping

	evts chan []byte
	n    int
}

// NewServer creates a tdaq-driven decoder for the given raw data file.
// m may be nil to publish raw electronics addresses.
func NewServer(cfg Config, fname string, m Mapping) *Server {
	return &Server{
		cfg:   cfg,
		fname: fname,
		dmap:  m,
	}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if _, err := NewDecoder(srv.cfg, Words(nil)); err != nil {
		ctx.Msg.Errorf("invalid decoder configuration: %+v", err)
		return xerrors.Errorf("invalid decoder configuration: %w", err)
	}
	if _, err := os.Stat(srv.fname); err != nil {
		ctx.Msg.Errorf("could not stat input file %q: %+v", srv.fname, err)
		return xerrors.Errorf("could not stat input file %q: %w", srv.fname, err)
	}
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.evts = make(chan []byte, 1024)
	srv.n = 0
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.evts = make(chan []byte, 1024)
	srv.n = 0
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> n=%d", srv.n)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

// Digis serves decoded events on the output endpoint.
func (srv *Server) Digis(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.evts:
		dst.Body = data
	}
	return nil
}

// Loop decodes the input file for the duration of the run.
func (srv *Server) Loop(ctx tdaq.Context) error {
	f, err := os.Open(srv.fname)
	if err != nil {
		return xerrors.Errorf("could not open input file %q: %w", srv.fname, err)
	}
	defer f.Close()

	dec, err := NewDecoder(srv.cfg, Stream(f))
	if err != nil {
		return err
	}

	for ievt := 0; ; ievt++ {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		var evt Event
		err := dec.Decode(&evt)
		if err != nil {
			if xerrors.Is(err, io.EOF) {
				ctx.Msg.Infof("end of stream after %d events", srv.n)
				return nil
			}
			ctx.Msg.Warnf("could not decode event %d: %+v", ievt, err)
			continue
		}

		digis, err := Assemble(&evt, dec.cfg.ROCVersion, srv.dmap)
		if err != nil {
			ctx.Msg.Warnf("could not assemble event %d: %+v", ievt, err)
			continue
		}

		body, err := json.Marshal(struct {
			Header Header         `json:"header"`
			Digis  DigiCollection `json:"digis"`
		}{evt.Header, digis})
		if err != nil {
			ctx.Msg.Warnf("could not marshal event %d: %+v", ievt, err)
			continue
		}

		select {
		case srv.evts <- body:
			srv.n++
		default:
			// consumer too slow, drop.
		}
	}
}
