// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nmm

import (
	"github.com/emer/etable/v2/minmax"
	"github.com/goki/mat32"
)

// MontbrioPazoRoxin is the exact mean field reduction of an infinite
// population of quadratic integrate and fire neurons: firing rate r and
// mean membrane potential V, with coupling through both.
type MontbrioPazoRoxin struct {
	Model
}

// NewMontbrioPazoRoxin returns a MontbrioPazoRoxin model with default
// parameters.
func NewMontbrioPazoRoxin() *MontbrioPazoRoxin {
	mp := &MontbrioPazoRoxin{}
	mp.Defaults()
	return mp
}

func (mp *MontbrioPazoRoxin) Defaults() {
	mp.Model = Model{
		Name:          "MontbrioPazoRoxin",
		StateVars:     []string{"r", "V"},
		CouplingTerms: []string{"r_c", "V_c"},
		Params: []Param{
			{Name: "tau", Value: []float32{1}},
			{Name: "I", Value: []float32{0}},
			{Name: "Delta", Value: []float32{2}},
			{Name: "J", Value: []float32{15}},
			{Name: "eta", Value: []float32{-5}},
			{Name: "Gamma", Value: []float32{0}}, // reserved, not in the drift
			{Name: "cr", Value: []float32{1}},
			{Name: "cv", Value: []float32{0}},
		},
		Dfuns: map[string]string{
			"r": "(Delta / (pi * tau) + 2.0 * V * r) / tau",
			"V": "(V * V - pi * pi * tau * tau * r * r + eta + J * tau * r + I + cr * r_c + cv * V_c) / tau",
		},
		Ranges: map[string]minmax.F32{
			"r": {Min: 0, Max: 2},
			"V": {Min: -2, Max: 1.5},
		},
		NModes: 1,
	}
}

func (mp *MontbrioPazoRoxin) Desc() *Model { return &mp.Model }

func (mp *MontbrioPazoRoxin) Dfun(dX, state, cX []float32, n int) {
	tau := mp.ParamAt("tau")
	iext := mp.ParamAt("I")
	delta := mp.ParamAt("Delta")
	jsyn := mp.ParamAt("J")
	eta := mp.ParamAt("eta")
	cr := mp.ParamAt("cr")
	cv := mp.ParamAt("cv")
	r := state[:n]
	v := state[n : 2*n]
	rc := cX[:n]
	vc := cX[n : 2*n]
	for i := 0; i < n; i++ {
		tu := tau(i)
		dX[i] = (delta(i)/(mat32.Pi*tu) + 2.0*v[i]*r[i]) / tu
		dX[n+i] = (v[i]*v[i] - mat32.Pi*mat32.Pi*tu*tu*r[i]*r[i] + eta(i) + jsyn(i)*tu*r[i] + iext(i) + cr(i)*rc[i] + cv(i)*vc[i]) / tu
	}
}

// Oscillator2D is a two variable relaxation oscillator (a FitzHugh
// Nagumo style reduction), coupled through its fast variable.
type Oscillator2D struct {
	Model
}

// NewOscillator2D returns an Oscillator2D model with default parameters.
func NewOscillator2D() *Oscillator2D {
	os := &Oscillator2D{}
	os.Defaults()
	return os
}

func (os *Oscillator2D) Defaults() {
	os.Model = Model{
		Name:          "Oscillator2D",
		StateVars:     []string{"x", "y"},
		CouplingTerms: []string{"x_c"},
		Params: []Param{
			{Name: "a", Value: []float32{1.01}},
		},
		Dfuns: map[string]string{
			"x": "(x - x * x * x / 3.0 + y) * 3.0 + x_c",
			"y": "(a - x) / 3.0",
		},
		Ranges: map[string]minmax.F32{
			"x": {Min: -2, Max: 2},
			"y": {Min: -2, Max: 2},
		},
		NModes: 1,
	}
}

func (os *Oscillator2D) Desc() *Model { return &os.Model }

func (os *Oscillator2D) Dfun(dX, state, cX []float32, n int) {
	a := os.ParamAt("a")
	x := state[:n]
	y := state[n : 2*n]
	xc := cX[:n]
	for i := 0; i < n; i++ {
		dX[i] = (x[i]-x[i]*x[i]*x[i]/3.0+y[i])*3.0 + xc[i]
		dX[n+i] = (a(i) - x[i]) / 3.0
	}
}
