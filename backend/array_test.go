// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/emer/nmgen/conn"
	"github.com/emer/nmgen/coupling"
	"github.com/emer/nmgen/nmm"
	"github.com/emer/nmgen/sim"
)

// TestArrayDfunsMPR checks the interpreted drift kernel against the
// reference drift, over homogeneous, one, and two spatial parameters.
func TestArrayDfunsMPR(t *testing.T) {
	n := 8
	cases := []struct {
		name    string
		spatial []string
	}{
		{"homogeneous", nil},
		{"eta spatial", []string{"eta"}},
		{"eta J spatial", []string{"eta", "J"}},
	}
	ab := NewArrayBuilder()
	for _, cs := range cases {
		md := nmm.NewMontbrioPazoRoxin()
		for _, pnm := range cs.spatial {
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
		kern, err := ab.Dfuns(sm)
		if err != nil {
			t.Fatal(err)
		}
		got := make([]float32, nv)
		if err := kern(got, state, cX, sm.ParMat); err != nil {
			t.Fatal(err)
		}
		want := make([]float32, nv)
		sm.Model.Dfun(want, state, cX, n)
		assertClose(t, cs.name, got, want, 1e-5, 1e-6)
	}
}

// TestArrayCoupling checks the standalone coupling kernel, which
// aggregates every state variable row, against the reference.
func TestArrayCoupling(t *testing.T) {
	n := 8
	ab := NewArrayBuilder()
	for _, cf := range []coupling.Coupler{coupling.NewLinear(), coupling.NewSigmoidal()} {
		sm := buildSim(t, nmm.NewMontbrioPazoRoxin(), cf, conn.NewRandom(n, 7), &sim.EulerDeterministic{Dt: 0.01}, 1)
		if err := sm.InitRandom(3); err != nil {
			t.Fatal(err)
		}
		nv := sm.NSvar * n
		state := make([]float32, nv)
		copy(state, sm.State)
		kern, err := ab.Coupling(sm)
		if err != nil {
			t.Fatal(err)
		}
		got := make([]float32, nv)
		if err := kern(got, sm.WeightsT, state); err != nil {
			t.Fatal(err)
		}
		want := make([]float32, nv)
		coupling.Apply(cf, want, sm.WeightsT, state, sm.NSvar, n)
		assertClose(t, cf.Desc().Name, got, want, 1e-5, 1e-6)
	}
}

// TestArraySim runs the full generated time loop without delays against
// the reference integration, comparing whole trajectories.
func TestArraySim(t *testing.T) {
	n := 10
	sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), conn.NewRandom(n, 11), &sim.EulerDeterministic{Dt: 0.1}, 2)
	if err := sm.InitRandom(23); err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	init := make([]float32, nv)
	copy(init, sm.State)

	kern, err := NewArrayBuilder().Sim(sm)
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
	assertTraj(t, "sim", trace, series[0].Values, nv)
}

// TestArraySimDelays exercises the history ring: a directed ring
// network whose tract lengths and speed give a two step delay.
func TestArraySimDelays(t *testing.T) {
	n := 4
	cn := conn.NewRing(n, 0.5)
	cn.Speed = 5
	sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), cn, &sim.EulerDeterministic{Dt: 0.1}, 1.5)
	if sm.Horizon != 3 {
		t.Fatalf("horizon: got %v, want 3", sm.Horizon)
	}
	if err := sm.InitRandom(5); err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	init := make([]float32, nv)
	copy(init, sm.State)

	kern, err := NewArrayBuilder().Sim(sm)
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
	assertTraj(t, "delayed sim", trace, series[0].Values, nv)
}

// TestArrayZeroVsNoDelay checks that all-zero tract lengths and absent
// tract lengths generate the same code path and identical trajectories.
func TestArrayZeroVsNoDelay(t *testing.T) {
	n := 6
	nt := 10
	traces := make([][]float32, 2)
	for v := 0; v < 2; v++ {
		cn := conn.NewRandom(n, 9)
		if v == 0 {
			cn.Lengths = nil
		} else {
			cn.Lengths = make([]float32, n*n)
			cn.Speed = 1
		}
		sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), cn, &sim.EulerDeterministic{Dt: 0.1}, 1)
		if err := sm.InitRandom(31); err != nil {
			t.Fatal(err)
		}
		if sm.Horizon != 1 {
			t.Fatalf("variant %v: horizon: got %v, want 1", v, sm.Horizon)
		}
		kern, err := NewArrayBuilder().Sim(sm)
		if err != nil {
			t.Fatal(err)
		}
		nv := sm.NSvar * n
		state := make([]float32, nv)
		copy(state, sm.State)
		traces[v] = make([]float32, nt*nv)
		if err := kern(state, sm.WeightsT, traces[v], nil); err != nil {
			t.Fatal(err)
		}
	}
	for i := range traces[0] {
		if traces[0][i] != traces[1][i] {
			t.Errorf("idx %v: nil lengths %v, zero lengths %v", i, traces[0][i], traces[1][i])
			return
		}
	}
}

// TestArraySimSDE compares the stochastic kernel against the reference
// Euler Maruyama loop replaying the same fixed deviates.
func TestArraySimSDE(t *testing.T) {
	n := 10
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

	kern, err := NewArrayBuilder().SimSDE(sm)
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
	assertTraj(t, "sde sim", trace, series[0].Values, nv)
}

// TestArraySDESigmoidal runs the stochastic kernel with sigmoidal
// coupling, whose sigma parameter shadows the kernel's noise scale
// array inside the generated coupling function.
func TestArraySDESigmoidal(t *testing.T) {
	n := 6
	nt := 5
	nv := 2 * n
	draws := normalDraws(nt, nv, 19)
	integ := &sim.EulerMaruyama{Dt: 0.1, Sigma: []float32{0.05, 0.1}, Noise: &sim.FixedNoise{Draws: draws}}
	sm := buildSim(t, nmm.NewOscillator2D(), coupling.NewSigmoidal(), conn.NewRandom(n, 37), integ, 0.5)
	if err := sm.InitRandom(41); err != nil {
		t.Fatal(err)
	}
	init := make([]float32, nv)
	copy(init, sm.State)

	kern, err := NewArrayBuilder().SimSDE(sm)
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
	assertTraj(t, "sigmoidal sde", trace, series[0].Values, nv)
}

// TestArrayOneStep traces one stochastic step by hand through
// coupling, drift, and the Euler-Maruyama update.
func TestArrayOneStep(t *testing.T) {
	n := 10
	dt := float32(0.1)
	sg := float32(0.1)
	md := nmm.NewOscillator2D()
	cf := coupling.NewLinear()
	nv := 2 * n
	draws := normalDraws(1, nv, 11)
	integ := &sim.EulerMaruyama{Dt: dt, Sigma: []float32{sg}, Noise: &sim.FixedNoise{Draws: draws}}
	sm := buildSim(t, md, cf, conn.NewRandom(n, 3), integ, dt)
	if sm.NSteps != 1 {
		t.Fatalf("steps: got %v, want 1", sm.NSteps)
	}
	if err := sm.InitRandom(2); err != nil {
		t.Fatal(err)
	}
	state := make([]float32, nv)
	copy(state, sm.State)

	kern, err := NewArrayBuilder().SimSDE(sm)
	if err != nil {
		t.Fatal(err)
	}
	trace := make([]float32, nv)
	if err := kern(state, sm.WeightsT, trace, nil, flatten(draws)); err != nil {
		t.Fatal(err)
	}

	cX := make([]float32, nv)
	dX := make([]float32, nv)
	coupling.Apply(cf, cX, sm.WeightsT, sm.State, sm.NSvar, n)
	md.Dfun(dX, sm.State, cX, n)
	sqdt := math32.Sqrt(dt)
	want := make([]float32, nv)
	for i := range want {
		want[i] = sm.State[i] + dt*dX[i] + sqdt*sg*draws[0][i]
	}
	assertClose(t, "one step", trace, want, 0, 1e-5)
}

// TestArrayNilParMat checks that homogeneous models accept a nil
// spatial parameter matrix.
func TestArrayNilParMat(t *testing.T) {
	n := 5
	sm := buildSim(t, nmm.NewMontbrioPazoRoxin(), coupling.NewLinear(), conn.NewRandom(n, 1), &sim.EulerDeterministic{Dt: 0.01}, 0.1)
	kern, err := NewArrayBuilder().Dfuns(sm)
	if err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	if err := kern(make([]float32, nv), sm.State, make([]float32, nv), nil); err != nil {
		t.Errorf("nil parmat: %v", err)
	}
}

func TestArrayShapeErrors(t *testing.T) {
	n := 5
	sm := buildSim(t, nmm.NewMontbrioPazoRoxin(), coupling.NewLinear(), conn.NewRandom(n, 1), &sim.EulerDeterministic{Dt: 0.01}, 0.1)
	kern, err := NewArrayBuilder().Dfuns(sm)
	if err != nil {
		t.Fatal(err)
	}
	nv := sm.NSvar * n
	err = kern(make([]float32, nv-1), sm.State, make([]float32, nv), nil)
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("want *ShapeError, got %T: %v", err, err)
	}
	if se.Arg != "dX" {
		t.Errorf("arg: got %q, want dX", se.Arg)
	}
}

func TestArrayIntegratorMismatch(t *testing.T) {
	n := 4
	ab := NewArrayBuilder()
	det := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), conn.NewRandom(n, 1), &sim.EulerDeterministic{Dt: 0.1}, 1)
	if _, err := ab.SimSDE(det); err == nil {
		t.Errorf("SimSDE must reject a deterministic integrator")
	}
	sto := buildSim(t, nmm.NewOscillator2D(), coupling.NewLinear(), conn.NewRandom(n, 1), &sim.EulerMaruyama{Dt: 0.1, Sigma: []float32{0.1}}, 1)
	if _, err := ab.Sim(sto); err == nil {
		t.Errorf("Sim must reject a stochastic integrator")
	}
}
