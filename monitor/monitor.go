// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package monitor provides samplers over simulation state.  A Monitor is
fed the full state after every integration step and decides when to emit
a sample and what value to emit.  Monitors compose with any state
source: the live integration loop, a recorded Series, or an external
history implementing Source.
*/
package monitor

import (
	"fmt"
	"math"
)

// Monitor samples simulation state.  Configure is called once before
// the run with the step size and buffer shape.  Sample is called after
// every step with the current state, [nsvar][nnode] row-major; when it
// emits, it returns the sample time, a copy of the sampled values, and
// ok true.
type Monitor interface {
	Configure(dt float32, nsvar, nnode int) error
	Sample(step int, state []float32) (t float64, val []float32, ok bool)
}

// Raw emits every state at every step.
type Raw struct {
	dt float32
}

func (rw *Raw) Configure(dt float32, nsvar, nnode int) error {
	if dt <= 0 {
		return fmt.Errorf("monitor: dt must be positive, got %g", dt)
	}
	rw.dt = dt
	return nil
}

func (rw *Raw) Sample(step int, state []float32) (float64, []float32, bool) {
	val := make([]float32, len(state))
	copy(val, state)
	return float64(rw.dt) * float64(step+1), val, true
}

// SubSample emits the state every Every steps.
type SubSample struct {

	// emit period in steps
	Every int

	dt float32
}

func (ss *SubSample) Configure(dt float32, nsvar, nnode int) error {
	if ss.Every <= 0 {
		return fmt.Errorf("monitor: SubSample.Every must be positive, got %d", ss.Every)
	}
	ss.dt = dt
	return nil
}

func (ss *SubSample) Sample(step int, state []float32) (float64, []float32, bool) {
	if (step+1)%ss.Every != 0 {
		return 0, nil, false
	}
	val := make([]float32, len(state))
	copy(val, state)
	return float64(ss.dt) * float64(step+1), val, true
}

// TemporalAverage emits the mean state over consecutive windows of the
// given period, stamped at the window center.
type TemporalAverage struct {

	// averaging period in the same time units as dt
	Period float32

	dt    float32
	win   int
	count int
	sum   []float64
}

func (ta *TemporalAverage) Configure(dt float32, nsvar, nnode int) error {
	if dt <= 0 {
		return fmt.Errorf("monitor: dt must be positive, got %g", dt)
	}
	ta.win = int(math.RoundToEven(float64(ta.Period) / float64(dt)))
	if ta.win < 1 {
		return fmt.Errorf("monitor: TemporalAverage period %g shorter than step %g", ta.Period, dt)
	}
	ta.dt = dt
	ta.count = 0
	ta.sum = make([]float64, nsvar*nnode)
	return nil
}

func (ta *TemporalAverage) Sample(step int, state []float32) (float64, []float32, bool) {
	for i, v := range state {
		ta.sum[i] += float64(v)
	}
	ta.count++
	if ta.count < ta.win {
		return 0, nil, false
	}
	val := make([]float32, len(ta.sum))
	for i := range ta.sum {
		val[i] = float32(ta.sum[i] / float64(ta.count))
		ta.sum[i] = 0
	}
	ta.count = 0
	t := float64(ta.dt)*float64(step+1) - float64(ta.Period)/2
	return t, val, true
}

// Source yields recorded states by step, for feeding monitors outside
// the live integration loop.
type Source interface {
	NSteps() int
	State(step int) []float32
}

// FromSource drives a Monitor over all steps of a Source, collecting
// the emitted samples into a Series.
func FromSource(src Source, m Monitor, dt float32, nsvar, nnode int, name string) (*Series, error) {
	if err := m.Configure(dt, nsvar, nnode); err != nil {
		return nil, err
	}
	sr := &Series{Name: name}
	for s := 0; s < src.NSteps(); s++ {
		if t, val, ok := m.Sample(s, src.State(s)); ok {
			sr.Add(t, val)
		}
	}
	return sr, nil
}
