// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package detmap provides the mapping from electronics addresses to
// detector addresses for one processing run.
package detmap // import "github.com/go-calo/pfdaq/detmap"

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-calo/pfdaq/pflr"
)

// Table is a read-only electronics-to-detector mapping. It is loaded
// once at the start of a run and never mutated afterwards, so lookups
// are safe for concurrent use.
type Table struct {
	m map[pflr.EID]pflr.DetID
}

// New builds a Table from the given entries.
func New(m map[pflr.EID]pflr.DetID) *Table {
	t := &Table{m: make(map[pflr.EID]pflr.DetID, len(m))}
	for k, v := range m {
		t.m[k] = v
	}
	return t
}

// Exists reports whether the mapping knows the given address.
func (t *Table) Exists(id pflr.EID) bool {
	_, ok := t.m[id]
	return ok
}

// Get returns the detector address of id, or zero when unmapped.
// Use Exists to tell an unmapped address from a zero detector id.
func (t *Table) Get(id pflr.EID) pflr.DetID {
	return t.m[id]
}

// Len returns the number of mapped addresses.
func (t *Table) Len() int { return len(t.m) }

// FromCSV reads a mapping table with one "fpga,link,channel,detid"
// record per line. A leading header line is skipped.
func FromCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.Comment = '#'

	t := &Table{m: make(map[pflr.EID]pflr.DetID)}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("detmap: could not read record %d: %w", line, err)
		}
		if line == 1 {
			if _, err := strconv.ParseUint(rec[0], 10, 8); err != nil {
				continue // header line
			}
		}

		var v [4]uint64
		for i, s := range rec {
			bits := 8
			if i == 3 {
				bits = 32
			}
			v[i], err = strconv.ParseUint(s, 0, bits)
			if err != nil {
				return nil, fmt.Errorf("detmap: invalid field %q in record %d: %w", s, line, err)
			}
		}
		eid := pflr.EID{FPGA: uint8(v[0]), Link: uint8(v[1]), Channel: uint8(v[2])}
		if _, dup := t.m[eid]; dup {
			return nil, fmt.Errorf("detmap: duplicate address %v in record %d", eid, line)
		}
		t.m[eid] = pflr.DetID(v[3])
	}
}

// Open reads a mapping table from a CSV file.
func Open(fname string) (*Table, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("detmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	t, err := FromCSV(f)
	if err != nil {
		return nil, fmt.Errorf("detmap: could not parse %q: %w", fname, err)
	}
	return t, nil
}

var _ pflr.Mapping = (*Table)(nil)
