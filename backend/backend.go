// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package backend renders, compiles and invokes generated simulation
kernels.

Three backends share one invocation contract.  Array interprets whole
array kernels in process, Loop compiles explicit loop kernels into a
Go plugin with the local toolchain, Cuda compiles with nvcc and talks
to a subprocess harness over pipes.  All kernel buffers are flat
float32 with state rows laid out [n_svar][n_node], the connectome
transposed to [target][source], and traces [n_t][n_svar][n_node].
Model and coupling parameters are frozen into the generated source as
literals, except spatialized parameters which arrive through parmat,
one row per spatial parameter.
*/
package backend

import (
	"fmt"
	"strings"

	"github.com/emer/nmgen/sim"
	"github.com/goki/ki/kit"
)

// BackendKind selects a kernel execution backend.
type BackendKind int

//go:generate stringer -type=BackendKind

var KiT_BackendKind = kit.Enums.AddEnum(BackendKindN, kit.NotBitFlag, nil)

func (ev BackendKind) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *BackendKind) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The kernel execution backends
const (
	// Array interprets whole array kernels in process
	Array BackendKind = iota

	// Loop compiles explicit loop kernels to a Go plugin
	Loop

	// Cuda compiles CUDA kernels with nvcc, one thread per node
	Cuda

	BackendKindN
)

// ArgRole describes how a kernel buffer argument moves between the
// caller and the generated kernel.
type ArgRole int

//go:generate stringer -type=ArgRole

var KiT_ArgRole = kit.Enums.AddEnum(ArgRoleN, kit.NotBitFlag, nil)

func (ev ArgRole) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *ArgRole) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The kernel argument roles
const (
	// In is read by the kernel
	In ArgRole = iota

	// Out is written by the kernel
	Out

	// InOut is read and written
	InOut

	// Temp is kernel private scratch, never transferred
	Temp

	ArgRoleN
)

// Builder renders and compiles the kernels of one backend.  Builders
// are not safe for concurrent use.
type Builder interface {
	// Kind returns the backend kind
	Kind() BackendKind

	// Available reports whether this backend can run here: array
	// always can, loop needs a go toolchain on PATH, cuda needs
	// nvcc
	Available() error

	// Dfuns builds the standalone drift kernel
	Dfuns(sm *sim.Simulator) (DfunKernel, error)

	// Coupling builds the standalone coupling kernel
	Coupling(sm *sim.Simulator) (CouplingKernel, error)

	// Sim builds the full deterministic simulation kernel
	Sim(sm *sim.Simulator) (SimKernel, error)

	// SimSDE builds the full stochastic simulation kernel
	SimSDE(sm *sim.Simulator) (SimSDEKernel, error)
}

// New returns a fresh builder of the given kind.
func New(kind BackendKind) (Builder, error) {
	switch kind {
	case Array:
		return NewArrayBuilder(), nil
	case Loop:
		return NewLoopBuilder(), nil
	case Cuda:
		return NewCudaBuilder(), nil
	}
	return nil, fmt.Errorf("backend: no builder for kind %d", kind)
}

// KindFromName maps a backend name to its kind: array, loop or cuda.
func KindFromName(name string) (BackendKind, error) {
	switch strings.ToLower(name) {
	case "array":
		return Array, nil
	case "loop":
		return Loop, nil
	case "cuda":
		return Cuda, nil
	}
	return BackendKindN, fmt.Errorf("backend: unknown backend %q", name)
}
