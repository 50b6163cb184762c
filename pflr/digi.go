// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflr

import (
	"sort"

	"golang.org/x/xerrors"
)

// Mapping resolves electronics addresses into detector addresses.
// Implementations are loaded once per processing run and must support
// concurrent lookups.
type Mapping interface {
	Exists(id EID) bool
	Get(id EID) DetID
}

// Digi is the time-ordered sequence of raw samples of one channel.
// ID is the raw electronics encoding, or the detector id when the
// event was assembled with a Mapping.
type Digi struct {
	ID      uint32
	Samples []Sample
}

// DigiCollection groups the digis of one decoded event.
type DigiCollection struct {
	Version  int // ROC version the data was decoded with
	NSamples int // declared sample count of the event
	SOI      int // sample-of-interest index
	Digis    []Digi
}

// Assemble regroups the per-channel words of a decoded event into a
// DigiCollection, ordered by address.
//
// With a non-nil Mapping, electronics addresses are translated to
// detector addresses; addresses the mapping does not know are dropped.
// Channels that are not connected to anything are still read out when
// the front-end runs without zero suppression, so an unmapped address
// is expected, not an error.
//
// A channel missing from some samples keeps its short sequence: the
// anomaly is left for downstream consumers to detect. An event with no
// channels at all does not assemble.
func Assemble(evt *Event, rocVersion int, m Mapping) (DigiCollection, error) {
	coll := DigiCollection{
		Version:  rocVersion,
		NSamples: evt.Header.NSamples,
		SOI:      0,
	}

	if len(evt.Data) == 0 {
		return coll, xerrors.Errorf("pflr: no channels decoded for event %d", evt.Header.Number)
	}

	eids := make([]EID, 0, len(evt.Data))
	for eid := range evt.Data {
		eids = append(eids, eid)
	}
	sort.Slice(eids, func(i, j int) bool { return eids[i].Less(eids[j]) })

	for _, eid := range eids {
		id := eid.Raw()
		if m != nil {
			if !m.Exists(eid) {
				continue
			}
			id = m.Get(eid).Raw()
		}
		coll.Digis = append(coll.Digis, Digi{ID: id, Samples: evt.Data[eid]})
	}

	return coll, nil
}
