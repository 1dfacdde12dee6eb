// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/emer/nmgen/conn"
	"github.com/emer/nmgen/coupling"
	"github.com/emer/nmgen/monitor"
	"github.com/emer/nmgen/nmm"
	"github.com/goki/mat32"
)

const difTol = float32(1.0e-6)

// oneNode returns a configured single node Oscillator2D simulation with
// no incoming connections, so coupling is exactly zero.
func oneNode(integ Integrator, simLen float32) *Simulator {
	cn := &conn.Connectivity{N: 1, Weights: []float32{0}}
	cn.Defaults()
	sm := &Simulator{
		Model:  nmm.NewOscillator2D(),
		Cfun:   coupling.NewLinear(),
		Conn:   cn,
		Integ:  integ,
		SimLen: simLen,
	}
	return sm
}

func TestConfigure(t *testing.T) {
	sm := oneNode(&EulerDeterministic{Dt: 0.1}, 1)
	if err := sm.Configure(); err != nil {
		t.Fatal(err)
	}
	if sm.NSteps != 10 || sm.NNode != 1 || sm.NSvar != 2 {
		t.Errorf("Configure err: NSteps: %v, NNode: %v, NSvar: %v\n", sm.NSteps, sm.NNode, sm.NSvar)
	}
	if sm.Horizon != 1 || sm.ParMat != nil {
		t.Errorf("Configure err: Horizon: %v, ParMat: %v\n", sm.Horizon, sm.ParMat)
	}
	// midpoint initial state for x and y ranges [-2,2]
	if sm.State[0] != 0 || sm.State[1] != 0 {
		t.Errorf("Configure err: initial state: %v, cor: zeros\n", sm.State)
	}

	sm = oneNode(&EulerDeterministic{Dt: 0.1}, 0)
	if err := sm.Configure(); err == nil {
		t.Errorf("Configure err: accepted SimLen=0\n")
	}
	sm = oneNode(nil, 1)
	if err := sm.Configure(); err == nil {
		t.Errorf("Configure err: accepted nil integrator\n")
	}
}

func TestEulerFlow(t *testing.T) {
	// uncoupled relaxation oscillator against a hand stepped loop
	sm := oneNode(&EulerDeterministic{Dt: 0.1}, 1)
	if err := sm.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := sm.SetState([]float32{0.5, -0.2}); err != nil {
		t.Fatal(err)
	}
	out, err := sm.Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("Run err: %v series without monitors\n", len(out))
	}

	x, y := float32(0.5), float32(-0.2)
	dt := float32(0.1)
	for s := 0; s < 10; s++ {
		dx := (x-x*x*x/3.0+y)*3.0 + 0
		dy := (float32(1.01) - x) / 3.0
		x += dt * dx
		y += dt * dy
	}
	if dif := math32.Abs(sm.State[0] - x); dif > difTol {
		t.Errorf("flow err: x: %v, cor: %v, dif: %v\n", sm.State[0], x, dif)
	}
	if dif := math32.Abs(sm.State[1] - y); dif > difTol {
		t.Errorf("flow err: y: %v, cor: %v, dif: %v\n", sm.State[1], y, dif)
	}
}

func TestEulerMaruyamaStep(t *testing.T) {
	z := []float32{0.3, -0.7}
	em := &EulerMaruyama{Dt: 0.1, Sigma: []float32{0.1}, Noise: &FixedNoise{Draws: [][]float32{z}}}
	sm := oneNode(em, 0.1) // a single step
	if err := sm.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := sm.SetState([]float32{0.5, -0.2}); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Run(); err != nil {
		t.Fatal(err)
	}

	x, y := float32(0.5), float32(-0.2)
	dt, sg := float32(0.1), float32(0.1)
	dx := (x-x*x*x/3.0+y)*3.0 + 0
	dy := (float32(1.01) - x) / 3.0
	corx := x + dt*dx + mat32.Sqrt(dt)*sg*z[0]
	cory := y + dt*dy + mat32.Sqrt(dt)*sg*z[1]
	if dif := math32.Abs(sm.State[0] - corx); dif > difTol {
		t.Errorf("em err: x: %v, cor: %v, dif: %v\n", sm.State[0], corx, dif)
	}
	if dif := math32.Abs(sm.State[1] - cory); dif > difTol {
		t.Errorf("em err: y: %v, cor: %v, dif: %v\n", sm.State[1], cory, dif)
	}
}

func TestDelayedCoupling(t *testing.T) {
	// two nodes in a ring, one step of delay each way, hand stepped
	cn := conn.NewRing(2, 1)
	cn.Speed = 1 // lengths are 1, so idelay = 1/1/1 = 1 step
	lc := coupling.NewLinear()
	lc.SetParam("a", 1)
	sm := &Simulator{
		Model:  nmm.NewOscillator2D(),
		Cfun:   lc,
		Conn:   cn,
		Integ:  &EulerDeterministic{Dt: 1},
		SimLen: 3,
	}
	if err := sm.Configure(); err != nil {
		t.Fatal(err)
	}
	if sm.Horizon != 2 {
		t.Fatalf("Configure err: Horizon: %v, cor: 2\n", sm.Horizon)
	}
	init := []float32{0.1, 0.2, 0, 0}
	if err := sm.SetState(init); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Run(); err != nil {
		t.Fatal(err)
	}

	// hand stepped: x_c[0] reads node 1 delayed by one step, and vice
	// versa; reads before the start see the initial state
	x := [][]float32{{0.1, 0.2}} // x rows per step
	y := [][]float32{{0, 0}}
	prev := func(s int) []float32 {
		if s < 0 {
			return x[0]
		}
		return x[s]
	}
	dt := float32(1)
	for s := 0; s < 3; s++ {
		xc := []float32{prev(s - 1)[1], prev(s - 1)[0]}
		nx := make([]float32, 2)
		ny := make([]float32, 2)
		for i := 0; i < 2; i++ {
			dx := (x[s][i]-x[s][i]*x[s][i]*x[s][i]/3.0+y[s][i])*3.0 + xc[i]
			dy := (float32(1.01) - x[s][i]) / 3.0
			nx[i] = x[s][i] + dt*dx
			ny[i] = y[s][i] + dt*dy
		}
		x = append(x, nx)
		y = append(y, ny)
	}
	for i := 0; i < 2; i++ {
		if dif := math32.Abs(sm.State[i] - x[3][i]); dif > difTol {
			t.Errorf("delay err: x[%v]: %v, cor: %v, dif: %v\n", i, sm.State[i], x[3][i], dif)
		}
		if dif := math32.Abs(sm.State[2+i] - y[3][i]); dif > difTol {
			t.Errorf("delay err: y[%v]: %v, cor: %v, dif: %v\n", i, sm.State[2+i], y[3][i], dif)
		}
	}
}

func TestRunMonitors(t *testing.T) {
	sm := oneNode(&EulerDeterministic{Dt: 0.1}, 1)
	sm.Monitors = []monitor.Monitor{&monitor.Raw{}, &monitor.SubSample{Every: 5}}
	if err := sm.Configure(); err != nil {
		t.Fatal(err)
	}
	out, err := sm.Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("Run err: %v series, cor 2\n", len(out))
	}
	if out[0].NSteps() != 10 {
		t.Errorf("Run err: raw samples: %v, cor: 10\n", out[0].NSteps())
	}
	if out[1].NSteps() != 2 {
		t.Errorf("Run err: subsampled: %v, cor: 2\n", out[1].NSteps())
	}
	if dif := out[0].Times[9] - 1.0; dif > 1e-6 || dif < -1e-6 {
		t.Errorf("Run err: last raw time: %v, cor: 1.0\n", out[0].Times[9])
	}
}

func TestMemReport(t *testing.T) {
	sm := oneNode(&EulerDeterministic{Dt: 0.1}, 1)
	if err := sm.Configure(); err != nil {
		t.Fatal(err)
	}
	rep := sm.MemReport()
	for _, key := range []string{"state", "weights", "history", "trace"} {
		if !strings.Contains(rep, key) {
			t.Errorf("MemReport err: missing %q in:\n%v", key, rep)
		}
	}
}
