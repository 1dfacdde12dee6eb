// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"fmt"
	"io"

	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
)

// Series is the output of one monitor over one run: sample times and
// sampled values, each value [nsvar][nnode] row-major.  A Series is
// itself a Source, so it can be resampled by another monitor.
type Series struct {

	// monitor name, used for table column prefixes
	Name string

	// sample times
	Times []float64

	// sampled values, one [nsvar*nnode] buffer per time
	Values [][]float32
}

// Add appends one sample.
func (sr *Series) Add(t float64, val []float32) {
	sr.Times = append(sr.Times, t)
	sr.Values = append(sr.Values, val)
}

// NSteps returns the number of samples, implementing Source.
func (sr *Series) NSteps() int {
	return len(sr.Values)
}

// State returns the sample at the given index, implementing Source.
func (sr *Series) State(step int) []float32 {
	return sr.Values[step]
}

// Table converts the series to an etable with a Time column and one
// tensor column of nnode cells per state variable name.
func (sr *Series) Table(svars []string, nnode int) (*etable.Table, error) {
	sch := etable.Schema{
		{"Time", etensor.FLOAT64, nil, nil},
	}
	for _, sv := range svars {
		sch = append(sch, etable.Column{Name: sv, Type: etensor.FLOAT32, CellShape: []int{nnode}})
	}
	dt := &etable.Table{}
	dt.SetFromSchema(sch, len(sr.Times))
	nsvar := len(svars)
	for row, t := range sr.Times {
		if len(sr.Values[row]) != nsvar*nnode {
			return nil, fmt.Errorf("monitor: sample %d has %d values, want %d", row, len(sr.Values[row]), nsvar*nnode)
		}
		dt.SetCellFloat("Time", row, t)
		for sv := 0; sv < nsvar; sv++ {
			tsr := etensor.NewFloat32([]int{nnode}, nil, nil)
			copy(tsr.Values, sr.Values[row][sv*nnode:(sv+1)*nnode])
			dt.SetCellTensor(svars[sv], row, tsr)
		}
	}
	return dt, nil
}

// WriteCSV writes the series as tab separated values with headers.
func (sr *Series) WriteCSV(w io.Writer, svars []string, nnode int) error {
	dt, err := sr.Table(svars, nnode)
	if err != nil {
		return err
	}
	return dt.WriteCSV(w, etable.Tab, etable.Headers)
}
