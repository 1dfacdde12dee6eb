// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package conn provides the connectivity graph for networks of neural mass
nodes: a dense weight matrix, optional tract lengths, and a conduction
speed from which per-connection transmission delays are discretized.

Weights are stored in [source][target] orientation.  Kernels and the
reference integrator consume the transposed, target-major copy from
WeightsT, so that the inner summation for each target node walks a
contiguous row.
*/
package conn

import (
	"fmt"
	"math"
	"math/rand"
)

// Connectivity is a dense weighted graph over N nodes, with optional
// tract lengths and a conduction speed for computing transmission delays.
type Connectivity struct {

	// number of nodes
	N int

	// connection weights, [source][target] row-major, length N*N, non-negative
	Weights []float32

	// tract lengths in mm, same shape as Weights; nil means no delays
	Lengths []float32

	// conduction speed in mm/ms; zero, negative, or +Inf disables delays
	Speed float32
}

// Defaults sets an infinite conduction speed, so that a Connectivity
// without explicit lengths and speed runs without delays.
func (cn *Connectivity) Defaults() {
	cn.Speed = float32(math.Inf(1))
}

// Validate checks shapes and value constraints, returning a descriptive
// error for the first problem found.
func (cn *Connectivity) Validate() error {
	if cn.N <= 0 {
		return fmt.Errorf("conn: N must be positive, got %d", cn.N)
	}
	if len(cn.Weights) != cn.N*cn.N {
		return fmt.Errorf("conn: Weights length %d != N*N = %d", len(cn.Weights), cn.N*cn.N)
	}
	for i, w := range cn.Weights {
		if w < 0 {
			return fmt.Errorf("conn: negative weight %g at index %d", w, i)
		}
	}
	if cn.Lengths != nil && len(cn.Lengths) != cn.N*cn.N {
		return fmt.Errorf("conn: Lengths length %d != N*N = %d", len(cn.Lengths), cn.N*cn.N)
	}
	for i, l := range cn.Lengths {
		if l < 0 {
			return fmt.Errorf("conn: negative tract length %g at index %d", l, i)
		}
	}
	return nil
}

// WeightsT returns a transposed, target-major copy of the weights:
// WeightsT()[i*N+j] is the weight of the connection from source j to
// target i.
func (cn *Connectivity) WeightsT() []float32 {
	n := cn.N
	wt := make([]float32, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			wt[i*n+j] = cn.Weights[j*n+i]
		}
	}
	return wt
}

// iround rounds half to even, for stable delay step counts.
func iround(x float32) int {
	return int(math.RoundToEven(float64(x)))
}

// delayed reports whether delays are enabled at all: lengths present and
// a finite positive speed.
func (cn *Connectivity) delayed() bool {
	return cn.Lengths != nil && cn.Speed > 0 && !math.IsInf(float64(cn.Speed), 1)
}

// IDelays returns the per-connection transmission delays in integration
// steps, [source][target] row-major.  All zeros when delays are disabled.
func (cn *Connectivity) IDelays(dt float32) []int {
	id := make([]int, cn.N*cn.N)
	if !cn.delayed() {
		return id
	}
	for i, l := range cn.Lengths {
		id[i] = iround(l / cn.Speed / dt)
	}
	return id
}

// IDelaysT returns the transposed, target-major delays, aligned with
// WeightsT: IDelaysT()[i*N+j] is the delay from source j to target i.
func (cn *Connectivity) IDelaysT(dt float32) []int {
	n := cn.N
	id := cn.IDelays(dt)
	idt := make([]int, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			idt[i*n+j] = id[j*n+i]
		}
	}
	return idt
}

// Horizon returns the history depth required for the delays at the given
// step size: the maximum delay in steps plus one.  It is 1 when delays
// are disabled or all round to zero.
func (cn *Connectivity) Horizon(dt float32) int {
	max := 0
	for _, d := range cn.IDelays(dt) {
		if d > max {
			max = d
		}
	}
	return max + 1
}

// HasDelays reports whether any connection has a nonzero delay at the
// given step size.  When false, the no-delay code path applies.
func (cn *Connectivity) HasDelays(dt float32) bool {
	return cn.Horizon(dt) > 1
}

// NewRandom returns a fully connected Connectivity with uniform random
// weights in [0,1) and tract lengths in [20,80), from the given seed.
func NewRandom(n int, seed int64) *Connectivity {
	rnd := rand.New(rand.NewSource(seed))
	cn := &Connectivity{N: n}
	cn.Defaults()
	cn.Weights = make([]float32, n*n)
	cn.Lengths = make([]float32, n*n)
	for i := range cn.Weights {
		cn.Weights[i] = rnd.Float32()
		cn.Lengths[i] = 20 + 60*rnd.Float32()
	}
	return cn
}

// NewRing returns a directed ring of n nodes, each node driving its
// successor with weight w, all tract lengths 1.
func NewRing(n int, w float32) *Connectivity {
	cn := &Connectivity{N: n}
	cn.Defaults()
	cn.Weights = make([]float32, n*n)
	cn.Lengths = make([]float32, n*n)
	for j := 0; j < n; j++ {
		i := (j + 1) % n
		cn.Weights[j*n+i] = w
	}
	for i := range cn.Lengths {
		cn.Lengths[i] = 1
	}
	return cn
}
