// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"fmt"

	"github.com/emer/emergent/v2/erand"
	"github.com/goki/mat32"
)

// Integrator advances the state one step given the drift.  Configure is
// called once with the buffer shape before stepping; Update modifies
// state in place, [nsvar][nnode] row-major.
type Integrator interface {
	StepSize() float32
	Stochastic() bool
	Configure(nsvar, nnode int) error
	Update(state, dX []float32)
}

// EulerDeterministic is the forward Euler scheme: x += dt * dx.
type EulerDeterministic struct {

	// integration step size
	Dt float32
}

func (eu *EulerDeterministic) Defaults() {
	eu.Dt = 0.01
}

func (eu *EulerDeterministic) StepSize() float32 { return eu.Dt }

func (eu *EulerDeterministic) Stochastic() bool { return false }

func (eu *EulerDeterministic) Configure(nsvar, nnode int) error {
	if eu.Dt <= 0 {
		return fmt.Errorf("sim: Dt must be positive, got %g", eu.Dt)
	}
	return nil
}

func (eu *EulerDeterministic) Update(state, dX []float32) {
	for i := range state {
		state[i] += eu.Dt * dX[i]
	}
}

// NoiseSource fills z with one deviate per state buffer element.
// Tests inject fixed draw sequences to compare against generated
// stochastic kernels.
type NoiseSource interface {
	Fill(z []float32)
}

// GaussianNoise draws standard normal deviates through the erand
// distribution parameters.
type GaussianNoise struct {

	// distribution parameters; Gaussian with Mean 0, Var 1 by default
	Pars erand.RndParams
}

func NewGaussianNoise() *GaussianNoise {
	gn := &GaussianNoise{}
	gn.Defaults()
	return gn
}

func (gn *GaussianNoise) Defaults() {
	gn.Pars.Dist = erand.Gaussian
	gn.Pars.Mean = 0
	gn.Pars.Var = 1
}

func (gn *GaussianNoise) Fill(z []float32) {
	for i := range z {
		z[i] = float32(gn.Pars.Gen(-1))
	}
}

// FixedNoise replays a predefined sequence of draws, one buffer per
// step, cycling when exhausted.
type FixedNoise struct {

	// one full z buffer per step
	Draws [][]float32

	step int
}

func (fn *FixedNoise) Fill(z []float32) {
	copy(z, fn.Draws[fn.step%len(fn.Draws)])
	fn.step++
}

// EulerMaruyama is the stochastic Euler scheme with additive noise:
// x += dt * dx + sqrt(dt) * sigma * z, z drawn standard normal.
type EulerMaruyama struct {

	// integration step size
	Dt float32

	// noise intensity per state variable; a single value applies to all
	Sigma []float32

	// deviate source; nil selects GaussianNoise
	Noise NoiseSource

	nsvar  int
	nnode  int
	sqrtDt float32
	z      []float32
}

func (em *EulerMaruyama) Defaults() {
	em.Dt = 0.01
	em.Sigma = []float32{0.1}
}

func (em *EulerMaruyama) StepSize() float32 { return em.Dt }

func (em *EulerMaruyama) Stochastic() bool { return true }

func (em *EulerMaruyama) Configure(nsvar, nnode int) error {
	if em.Dt <= 0 {
		return fmt.Errorf("sim: Dt must be positive, got %g", em.Dt)
	}
	if len(em.Sigma) != 1 && len(em.Sigma) != nsvar {
		return fmt.Errorf("sim: Sigma has %d values, want 1 or %d", len(em.Sigma), nsvar)
	}
	for _, sg := range em.Sigma {
		if sg < 0 {
			return fmt.Errorf("sim: Sigma must be non-negative, got %g", sg)
		}
	}
	if em.Noise == nil {
		em.Noise = NewGaussianNoise()
	}
	em.nsvar = nsvar
	em.nnode = nnode
	em.sqrtDt = mat32.Sqrt(em.Dt)
	em.z = make([]float32, nsvar*nnode)
	return nil
}

// SigmaFor returns the noise intensity for the given state variable.
func (em *EulerMaruyama) SigmaFor(sv int) float32 {
	if len(em.Sigma) == 1 {
		return em.Sigma[0]
	}
	return em.Sigma[sv]
}

func (em *EulerMaruyama) Update(state, dX []float32) {
	em.Noise.Fill(em.z)
	for sv := 0; sv < em.nsvar; sv++ {
		sg := em.SigmaFor(sv)
		off := sv * em.nnode
		for i := 0; i < em.nnode; i++ {
			state[off+i] += em.Dt*dX[off+i] + em.sqrtDt*sg*em.z[off+i]
		}
	}
}
