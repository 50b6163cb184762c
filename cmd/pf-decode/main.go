// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pf-decode runs the production decoding of polarfire raw
// data files, driven by a configuration file.
//
//  Usage: pf-decode [OPTIONS]
//
//  ex:
//   $> pf-decode -cfg ./pf-decode.toml
//
// with a configuration such as:
//
//  [input]
//  file = "/data/raw/run_000123.raw"
//  pass = "testbeam22"
//
//  [output]
//  file = "/data/lcio/run_000123.lcio"
//  name = "PolarfireDigis"
//
//  [decode]
//  roc_version   = 3
//  strict_crc    = false
//  translate_eid = true
//  detector      = "hcal-testbeam"
//  workers       = 4
//
//  [detmap]
//  csv = "/data/cond/detmap.csv"
//  # or: dsn = "user:s3cr3t@tcp(conddb:3306)/conditions"
//
//  [run]
//  number = 123
//
//  [log]
//  file = "/var/log/pfdaq/pf-decode.log"
//
//  [mail]
//  to = ["shifter@example.org"]
package main // import "github.com/go-calo/pfdaq/cmd/pf-decode"

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/viper"
	mail "gopkg.in/gomail.v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"go-hep.org/x/hep/lcio"

	"github.com/go-calo/pfdaq/detmap"
	"github.com/go-calo/pfdaq/internal/xcnv"
	"github.com/go-calo/pfdaq/pflr"
)

func main() {
	log.SetPrefix("pf-decode: ")
	log.SetFlags(0)

	cfgname := flag.String("cfg", "pf-decode.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := loadConfig(*cfgname)
	if err != nil {
		log.Fatalf("could not load configuration %q: %+v", *cfgname, err)
	}

	if cfg.GetString("log.file") != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.GetString("log.file"),
			MaxSize:    cfg.GetInt("log.max_size"),
			MaxBackups: cfg.GetInt("log.max_backups"),
		})
	}

	err = run(cfg)
	if err != nil {
		log.Printf("run failed: %+v", err)
		alertMail(cfg, *cfgname, err)
		os.Exit(1)
	}
}

func loadConfig(fname string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(fname)

	v.SetDefault("output.name", "PolarfireDigis")
	v.SetDefault("decode.roc_version", 3)
	v.SetDefault("decode.workers", 1)
	v.SetDefault("log.max_size", 100) // MiB
	v.SetDefault("log.max_backups", 5)

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	for _, k := range []string{"input.file", "output.file", "decode.detector"} {
		if v.GetString(k) == "" {
			return nil, fmt.Errorf("missing required parameter %q", k)
		}
	}
	return v, nil
}

func run(cfg *viper.Viper) error {
	var m pflr.Mapping
	if cfg.GetBool("decode.translate_eid") {
		tbl, err := loadMapping(cfg)
		if err != nil {
			return fmt.Errorf("could not load detector mapping: %w", err)
		}
		log.Printf("loaded %d mapped addresses", tbl.Len())
		m = tbl
	}

	var (
		fname = cfg.GetString("input.file")
		oname = cfg.GetString("output.file")
	)
	log.Printf("decoding %q (pass %q)...", fname, cfg.GetString("input.pass"))

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
		Cfg: pflr.Config{
			ROCVersion: cfg.GetInt("decode.roc_version"),
			StrictCRC:  cfg.GetBool("decode.strict_crc"),
		},
		Map:     m,
		Workers: cfg.GetInt("decode.workers"),
		Msg:     log.Default(),
	}

	err = xcnv.PF2LCIO(
		w, runner, f,
		int32(cfg.GetInt("run.number")),
		cfg.GetString("decode.detector"),
		cfg.GetString("output.name"),
		log.Default(),
	)
	if err != nil {
		return fmt.Errorf("could not decode %q: %w", fname, err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close %q: %w", oname, err)
	}

	log.Printf("decoding %q... [done]", fname)
	return nil
}

func loadMapping(cfg *viper.Viper) (*detmap.Table, error) {
	switch {
	case cfg.GetString("detmap.csv") != "":
		return detmap.Open(cfg.GetString("detmap.csv"))
	case cfg.GetString("detmap.dsn") != "":
		return detmap.FromDB(
			context.Background(),
			cfg.GetString("detmap.dsn"),
			cfg.GetString("decode.detector"),
		)
	default:
		return nil, fmt.Errorf("translate_eid is set but neither detmap.csv nor detmap.dsn is configured")
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USR")
	alertMailPwd  = os.Getenv("MAIL_PWD")
	alertMailSrv  = os.Getenv("MAIL_SRV")
	alertMailPort = func() int {
		v, err := strconv.Atoi(os.Getenv("MAIL_PORT"))
		if err != nil {
			return 0
		}
		return v
	}()
)

func alertMail(cfg *viper.Viper, cfgname string, cause error) {
	tgts := cfg.GetStringSlice("mail.to")
	if len(tgts) == 0 {
		return
	}
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[pf-decode] run failed: %q", cfgname))
	msg.SetBody("text/plain", fmt.Sprintf("input: %q\nerror: %+v",
		cfg.GetString("input.file"), cause,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}
