// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"testing"

	"github.com/emer/nmgen/conn"
	"github.com/emer/nmgen/coupling"
	"github.com/emer/nmgen/nmm"
	"github.com/emer/nmgen/sim"
)

// needLoop returns a loop builder, skipping when no go toolchain is on
// the path to compile plugins with.
func needLoop(t *testing.T) *LoopBuilder {
	t.Helper()
	lb := NewLoopBuilder()
	if err := lb.Available(); err != nil {
		t.Skipf("loop backend: %v", err)
	}
	return lb
}

func TestLoopDfuns(t *testing.T) {
	lb := needLoop(t)
	n := 8
	md := nmm.NewMontbrioPazoRoxin()
	for _, pnm := range []string{"eta", "J"} {
		if err := md.SetSpatial(pnm, spatialRamp(md.ParamValue(pnm), n)); err != nil {
			t.Fatal(err)
		}
	}
	sm := buildSim(t, md, coupling.NewLinear(), conn.NewRandom(n, 42), &sim.EulerDeterministic{Dt: 0.01}, 1)
	if err := sm.InitRandom(17); err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	state := make([]float32, nv)
	copy(state, sm.State)
	cX := make([]float32, nv)
	for i := range cX {
		cX[i] = 0.1 * state[i]
	}
	kern, err := lb.Dfuns(sm)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]float32, nv)
	if err := kern(got, state, cX, sm.ParMat); err != nil {
		t.Fatal(err)
	}
	want := make([]float32, nv)
	sm.Model.Dfun(want, state, cX, n)
	assertClose(t, "loop dfuns", got, want, 1e-5, 1e-6)
}

// TestLoopSimPair builds two kernels from one builder, so the two
// plugins must load under distinct paths, then checks the simulation
// trajectory against the reference.
func TestLoopSimPair(t *testing.T) {
	lb := needLoop(t)
	n := 6
	sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), conn.NewRandom(n, 11), &sim.EulerDeterministic{Dt: 0.1}, 1)
	if err := sm.InitRandom(23); err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	init := make([]float32, nv)
	copy(init, sm.State)

	dkern, err := lb.Dfuns(sm)
	if err != nil {
		t.Fatal(err)
	}
	skern, err := lb.Sim(sm)
	if err != nil {
		t.Fatal(err)
	}

	cX := make([]float32, nv)
	dgot := make([]float32, nv)
	dwant := make([]float32, nv)
	if err := dkern(dgot, init, cX, nil); err != nil {
		t.Fatal(err)
	}
	sm.Model.Dfun(dwant, init, cX, n)
	assertClose(t, "paired dfuns", dgot, dwant, 1e-5, 1e-6)

	series, err := sm.Run()
	if err != nil {
		t.Fatal(err)
	}
	trace := make([]float32, sm.NSteps*nv)
	if err := skern(init, sm.WeightsT, trace, nil); err != nil {
		t.Fatal(err)
	}
	assertTraj(t, "loop sim", trace, series[0].Values, nv)
}

func TestLoopSimDelays(t *testing.T) {
	lb := needLoop(t)
	n := 4
	cn := conn.NewRing(n, 0.5)
	cn.Speed = 5
	sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), cn, &sim.EulerDeterministic{Dt: 0.1}, 1.5)
	if err := sm.InitRandom(5); err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	init := make([]float32, nv)
	copy(init, sm.State)

	kern, err := lb.Sim(sm)
	if err != nil {
		t.Fatal(err)
	}
	series, err := sm.Run()
	if err != nil {
		t.Fatal(err)
	}
	trace := make([]float32, sm.NSteps*nv)
	if err := kern(init, sm.WeightsT, trace, nil); err != nil {
		t.Fatal(err)
	}
	assertTraj(t, "loop delayed sim", trace, series[0].Values, nv)
}

func TestLoopSDE(t *testing.T) {
	lb := needLoop(t)
	n := 6
	nt := 10
	nv := 2 * n
	draws := normalDraws(nt, nv, 7)
	integ := &sim.EulerMaruyama{Dt: 0.1, Sigma: []float32{0.1}, Noise: &sim.FixedNoise{Draws: draws}}
	sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), conn.NewRandom(n, 13), integ, 1)
	if err := sm.InitRandom(29); err != nil {
		t.Fatal(err)
	}
	init := make([]float32, nv)
	copy(init, sm.State)

	kern, err := lb.SimSDE(sm)
	if err != nil {
		t.Fatal(err)
	}
	series, err := sm.Run()
	if err != nil {
		t.Fatal(err)
	}
	trace := make([]float32, nt*nv)
	if err := kern(init, sm.WeightsT, trace, nil, flatten(draws)); err != nil {
		t.Fatal(err)
	}
	assertTraj(t, "loop sde", trace, series[0].Values, nv)
}
