// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sim configures and runs coupled neural mass network simulations.
The Simulator binds a model, a coupling function, a connectivity, an
integrator, and monitors; Configure freezes shapes and buffers, and Run
executes the reference integration loop that generated kernels are
tested against.

Code generation backends consume a configured Simulator: all shapes,
delays, and frozen parameter values come from here.
*/
package sim

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/emer/nmgen/conn"
	"github.com/emer/nmgen/coupling"
	"github.com/emer/nmgen/monitor"
	"github.com/emer/nmgen/nmm"
)

// Simulator binds the elements of one simulation.  Set the public
// configuration fields, call Configure, then Run or hand it to a code
// generation backend.
type Simulator struct {

	// neural mass model
	Model nmm.Modeler

	// coupling function
	Cfun coupling.Coupler

	// connectivity graph
	Conn *conn.Connectivity

	// integration scheme
	Integ Integrator

	// output samplers, all fed every step
	Monitors []monitor.Monitor

	// total simulated time, in the same units as the integrator step
	SimLen float32

	// number of nodes, from connectivity
	NNode int

	// number of state variables, from the model
	NSvar int

	// number of integration steps, SimLen / dt
	NSteps int

	// target-major transposed weights
	WeightsT []float32

	// target-major transposed delays in steps, aligned with WeightsT
	IDelaysT []int

	// ring depth: max delay + 1
	Horizon int

	// spatial parameter matrix, nil when the model is homogeneous
	ParMat []float32

	// current state, [NSvar][NNode] row-major
	State []float32

	// delayed state ring
	Hist *History

	configured bool
}

// Configure validates the configuration and freezes shapes: weights and
// delays are transposed, the spatial parameter matrix is built, the
// initial state is set to each state variable's range midpoint, and the
// history ring is filled with it.  Call SetState or InitRandom afterward
// to change initial conditions.
func (sm *Simulator) Configure() error {
	if sm.Model == nil || sm.Cfun == nil || sm.Conn == nil || sm.Integ == nil {
		return fmt.Errorf("sim: Model, Cfun, Conn, and Integ must all be set")
	}
	md := sm.Model.Desc()
	if err := md.Validate(); err != nil {
		return err
	}
	if err := sm.Cfun.Desc().Validate(); err != nil {
		return err
	}
	if err := sm.Conn.Validate(); err != nil {
		return err
	}
	dt := sm.Integ.StepSize()
	if dt <= 0 {
		return fmt.Errorf("sim: integrator step size must be positive, got %g", dt)
	}
	if sm.SimLen <= 0 {
		return fmt.Errorf("sim: SimLen must be positive, got %g", sm.SimLen)
	}
	sm.NNode = sm.Conn.N
	sm.NSvar = md.NSvar()
	sm.NSteps = int(math.Round(float64(sm.SimLen) / float64(dt)))
	if sm.NSteps < 1 {
		return fmt.Errorf("sim: SimLen %g shorter than one step %g", sm.SimLen, dt)
	}
	pm, err := md.SpatialMatrix(sm.NNode)
	if err != nil {
		return err
	}
	sm.ParMat = pm
	sm.WeightsT = sm.Conn.WeightsT()
	sm.IDelaysT = sm.Conn.IDelaysT(dt)
	sm.Horizon = sm.Conn.Horizon(dt)
	if err := sm.Integ.Configure(sm.NSvar, sm.NNode); err != nil {
		return err
	}
	for _, mn := range sm.Monitors {
		if err := mn.Configure(dt, sm.NSvar, sm.NNode); err != nil {
			return err
		}
	}
	sm.State = make([]float32, sm.NSvar*sm.NNode)
	for sv, nm := range md.StateVars {
		mid := float32(0)
		if rng, ok := md.Ranges[nm]; ok {
			mid = (rng.Min + rng.Max) / 2
		}
		for i := 0; i < sm.NNode; i++ {
			sm.State[sv*sm.NNode+i] = mid
		}
	}
	sm.Hist = NewHistory(sm.Horizon, sm.NSvar, sm.NNode)
	sm.Hist.Init(sm.State)
	sm.configured = true
	return nil
}

// SetState overwrites the initial state, [NSvar][NNode] row-major, and
// refills the history ring with it.  Call after Configure.
func (sm *Simulator) SetState(state []float32) error {
	if !sm.configured {
		return fmt.Errorf("sim: not configured")
	}
	if len(state) != sm.NSvar*sm.NNode {
		return fmt.Errorf("sim: state has %d values, want %d", len(state), sm.NSvar*sm.NNode)
	}
	copy(sm.State, state)
	sm.Hist.Init(sm.State)
	return nil
}

// InitRandom sets the initial state uniformly within each state
// variable's range, from the given seed, and refills the history ring.
func (sm *Simulator) InitRandom(seed int64) error {
	if !sm.configured {
		return fmt.Errorf("sim: not configured")
	}
	rnd := rand.New(rand.NewSource(seed))
	md := sm.Model.Desc()
	for sv, nm := range md.StateVars {
		lo, hi := float32(0), float32(1)
		if rng, ok := md.Ranges[nm]; ok {
			lo, hi = rng.Min, rng.Max
		}
		for i := 0; i < sm.NNode; i++ {
			sm.State[sv*sm.NNode+i] = lo + (hi-lo)*rnd.Float32()
		}
	}
	sm.Hist.Init(sm.State)
	return nil
}

// couple computes the aggregated coupling into cX from the history at
// the given step, one row per coupling term, delayed per connection.
func (sm *Simulator) couple(step int, cX []float32) {
	md := sm.Model.Desc()
	n := sm.NNode
	cur := sm.Hist.StateAt(step)
	for k := range md.CouplingTerms {
		for i := 0; i < n; i++ {
			gx := float32(0)
			xi := cur[k*n+i]
			for j := 0; j < n; j++ {
				xj := sm.Hist.Delayed(step, k, j, sm.IDelaysT[i*n+j])
				gx += sm.WeightsT[i*n+j] * sm.Cfun.Pre(xi, xj)
			}
			cX[k*n+i] = sm.Cfun.Post(gx)
		}
	}
}

// Run executes the reference integration loop: delayed coupling, model
// drift, integrator update, history write, monitor sampling.  It
// returns one Series per configured monitor.
func (sm *Simulator) Run() ([]*monitor.Series, error) {
	if !sm.configured {
		return nil, fmt.Errorf("sim: not configured")
	}
	out := make([]*monitor.Series, len(sm.Monitors))
	for i := range out {
		out[i] = &monitor.Series{Name: fmt.Sprintf("m%d", i)}
	}
	n := sm.NNode
	cX := make([]float32, sm.NSvar*n)
	dX := make([]float32, sm.NSvar*n)
	for s := 0; s < sm.NSteps; s++ {
		sm.couple(s, cX)
		sm.Model.Dfun(dX, sm.State, cX, n)
		sm.Integ.Update(sm.State, dX)
		sm.Hist.Write(s+1, sm.State)
		for i, mn := range sm.Monitors {
			if t, val, ok := mn.Sample(s, sm.State); ok {
				out[i].Add(t, val)
			}
		}
	}
	return out, nil
}

// MemReport returns a human readable accounting of buffer sizes.
func (sm *Simulator) MemReport() string {
	var b strings.Builder
	sz := func(n int) string { return (datasize.ByteSize)(n * 4).HumanReadable() }
	st := sm.NSvar * sm.NNode
	fmt.Fprintf(&b, "%12s:\t Nodes: %d\t SVars: %d\t Steps: %d\n", "network", sm.NNode, sm.NSvar, sm.NSteps)
	fmt.Fprintf(&b, "%12s:\t %v\n", "state", sz(st))
	fmt.Fprintf(&b, "%12s:\t %v\n", "weights", sz(len(sm.WeightsT)))
	fmt.Fprintf(&b, "%12s:\t %v (horizon %d)\n", "history", sz(sm.Horizon*st), sm.Horizon)
	fmt.Fprintf(&b, "%12s:\t %v\n", "parmat", sz(len(sm.ParMat)))
	fmt.Fprintf(&b, "%12s:\t %v\n", "trace", sz(sm.NSteps*st))
	return b.String()
}
