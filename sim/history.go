// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

// History is the ring buffer of past states used for delayed coupling:
// Horizon whole state snapshots, slot step % Horizon holding the state
// after that step.  Init fills every slot with the initial state, so
// reads before the ring wraps return the initial condition.
type History struct {

	// ring depth: maximum delay in steps plus one
	Horizon int

	// number of state variables
	NSvar int

	// number of nodes
	NNode int

	// [Horizon][NSvar][NNode] row-major
	Buf []float32
}

func NewHistory(horizon, nsvar, nnode int) *History {
	return &History{
		Horizon: horizon,
		NSvar:   nsvar,
		NNode:   nnode,
		Buf:     make([]float32, horizon*nsvar*nnode),
	}
}

// Init fills every slot with the given state.
func (hs *History) Init(state []float32) {
	sz := hs.NSvar * hs.NNode
	for sl := 0; sl < hs.Horizon; sl++ {
		copy(hs.Buf[sl*sz:(sl+1)*sz], state)
	}
}

func (hs *History) slot(step int) int {
	sl := step % hs.Horizon
	if sl < 0 {
		sl += hs.Horizon
	}
	return sl
}

// Write records the state after the given step.
func (hs *History) Write(step int, state []float32) {
	sz := hs.NSvar * hs.NNode
	sl := hs.slot(step)
	copy(hs.Buf[sl*sz:(sl+1)*sz], state)
}

// StateAt returns a view of the state recorded for the given step.
// Valid for steps within Horizon of the last write.
func (hs *History) StateAt(step int) []float32 {
	sz := hs.NSvar * hs.NNode
	sl := hs.slot(step)
	return hs.Buf[sl*sz : (sl+1)*sz]
}

// Delayed returns state variable sv of source node src as it was delay
// steps before the given step.
func (hs *History) Delayed(step, sv, src, delay int) float32 {
	return hs.StateAt(step-delay)[sv*hs.NNode+src]
}
