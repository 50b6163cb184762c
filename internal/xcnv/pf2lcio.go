// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"fmt"
	"io"
	"log"

	"go-hep.org/x/hep/lcio"

	"github.com/go-calo/pfdaq/pflr"
)

// PF2LCIO decodes every event of src and writes it to w, preceded by
// a run header naming the detector. The digis are stored under the
// given collection name.
func PF2LCIO(w *lcio.Writer, run *pflr.Runner, src io.Reader, runNbr int32, detector, name string, msg *log.Logger) error {
	err := w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: runNbr,
		Detector:  detector,
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}

	return run.Run(src, func(i int, evt *pflr.Event, digis pflr.DigiCollection) error {
		if i%100 == 0 {
			msg.Printf("processing evt %d...", i)
		}
		err := WriteEvent(w, runNbr, int32(i), detector, name, evt.Header, digis)
		if err != nil {
			return fmt.Errorf("could not write event %d: %w", i, err)
		}
		return nil
	})
}

// WriteEvent appends one decoded event to the LCIO stream. The event
// header fields travel as integer event parameters, the digis as one
// generic object per channel: [id, nsamples, samples...].
func WriteEvent(w *lcio.Writer, runNbr, ievt int32, detector, name string, hdr pflr.Header, digis pflr.DigiCollection) error {
	obj := &lcio.GenericObject{
		Data: make([]lcio.GenericObjectData, 0, len(digis.Digis)),
	}
	for _, digi := range digis.Digis {
		i32s := make([]int32, 0, 2+len(digi.Samples))
		i32s = append(i32s, int32(digi.ID), int32(len(digi.Samples)))
		for _, s := range digi.Samples {
			i32s = append(i32s, int32(s.Raw()))
		}
		obj.Data = append(obj.Data, lcio.GenericObjectData{I32s: i32s})
	}

	evt := lcio.Event{
		RunNumber:   runNbr,
		EventNumber: ievt,
		TimeStamp:   int64(hdr.Ticks),
		Detector:    detector,
		Params: lcio.Params{
			Ints: map[string][]int32{
				"Version":         {int32(hdr.Version)},
				"FPGA":            {int32(hdr.FPGA)},
				"NSamples":        {int32(hdr.NSamples)},
				"Spill":           {int32(hdr.Spill)},
				"Ticks":           {int32(hdr.Ticks)},
				"Bunch":           {int32(hdr.Bunch)},
				"Number":          {int32(hdr.Number)},
				"Run":             {int32(hdr.Run)},
				"DD":              {int32(hdr.Day)},
				"MM":              {int32(hdr.Month)},
				"hh":              {int32(hdr.Hour)},
				"mm":              {int32(hdr.Min)},
				"GoodLinkHeader":  boolsToI32s(hdr.GoodBXHeader),
				"GoodLinkTrailer": boolsToI32s(hdr.GoodTrailer),
			},
		},
	}
	evt.Add(name, obj)

	err := w.WriteEvent(&evt)
	if err != nil {
		return fmt.Errorf("could not write LCIO event: %w", err)
	}
	return nil
}

func boolsToI32s(vs []bool) []int32 {
	o := make([]int32, len(vs))
	for i, v := range vs {
		if v {
			o[i] = 1
		}
	}
	return o
}
