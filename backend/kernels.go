// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

// DfunKernel evaluates the drift at the current state.  dX, state and
// cX are [n_svar][n_node]; parmat is [n_spatial][n_node] and is
// ignored when the model has no spatial parameters.
type DfunKernel func(dX, state, cX, parmat []float32) error

// CouplingKernel computes every coupling row from the current state,
// applying the same pre/post pair to each state variable row.
// weights is the transposed connectome, [target][source].
type CouplingKernel func(cX, weights, state []float32) error

// SimKernel runs the full deterministic simulation.  state carries
// the initial condition, and in process backends advance it in place;
// trace receives the post step state of every step,
// [n_t][n_svar][n_node].
type SimKernel func(state, weights, trace, parmat []float32) error

// SimSDEKernel runs the full stochastic simulation.  z supplies one
// standard normal draw per step, row and node, [n_t][n_svar][n_node].
type SimSDEKernel func(state, weights, trace, parmat, z []float32) error

// Kernel entry names, the same in every backend.
const (
	EntryDfuns    = "Dfuns"
	EntryCoupling = "Coupling"
	EntrySim      = "Kernel"
)
