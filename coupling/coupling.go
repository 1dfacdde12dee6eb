// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package coupling defines pairwise coupling functions between neural mass
nodes.  A coupling is two pure expressions: pre(x_i, x_j) evaluated on
each connection from source j to target i, and post(gx) applied to the
weighted sum over sources.  Generated kernels inline both expressions
into their summation loops; the built-ins also provide reference Pre and
Post implementations used as the oracle in conformance tests.
*/
package coupling

import (
	"fmt"

	"github.com/emer/nmgen/nmm"
	"github.com/goki/mat32"
)

// Coupling is the descriptor for a pairwise coupling function.
type Coupling struct {

	// coupling name
	Name string

	// pre synaptic expression in terms of x_i (target state), x_j
	// (source state), and parameters
	PreExpr string

	// post summation expression in terms of gx (the weighted sum of
	// pre over sources) and parameters
	PostExpr string

	// scalar parameters, frozen into generated source as literals
	Params []nmm.Param
}

// Param returns the named parameter, or nil if not found.
func (cp *Coupling) Param(name string) *nmm.Param {
	for i := range cp.Params {
		if cp.Params[i].Name == name {
			return &cp.Params[i]
		}
	}
	return nil
}

// ParamNames returns the parameter names in declaration order.
func (cp *Coupling) ParamNames() []string {
	nms := make([]string, len(cp.Params))
	for i := range cp.Params {
		nms[i] = cp.Params[i].Name
	}
	return nms
}

// ParamValue returns the value of the named parameter, 0 if unknown.
func (cp *Coupling) ParamValue(name string) float32 {
	p := cp.Param(name)
	if p == nil || len(p.Value) == 0 {
		return 0
	}
	return p.Value[0]
}

// SetParam sets the named parameter, adding it if not present.
func (cp *Coupling) SetParam(name string, val float32) {
	if p := cp.Param(name); p != nil {
		p.Value = []float32{val}
		return
	}
	cp.Params = append(cp.Params, nmm.Param{Name: name, Value: []float32{val}})
}

// Validate checks both expressions against the shared expression
// subset: pre may reference x_i, x_j, and parameters; post may
// reference gx and parameters.  Coupling parameters must be scalar.
func (cp *Coupling) Validate() error {
	if cp.PreExpr == "" || cp.PostExpr == "" {
		return fmt.Errorf("coupling: %v must define both pre and post expressions", cp.Name)
	}
	for i := range cp.Params {
		if len(cp.Params[i].Value) != 1 {
			return fmt.Errorf("coupling: parameter %q must be scalar", cp.Params[i].Name)
		}
	}
	pre := map[string]bool{"x_i": true, "x_j": true}
	post := map[string]bool{"gx": true}
	for _, nm := range cp.ParamNames() {
		pre[nm] = true
		post[nm] = true
	}
	if err := nmm.CheckExpr(cp.PreExpr, pre); err != nil {
		return fmt.Errorf("coupling: pre: %w", err)
	}
	if err := nmm.CheckExpr(cp.PostExpr, post); err != nil {
		return fmt.Errorf("coupling: post: %w", err)
	}
	return nil
}

// Coupler is implemented by coupling functions: the shared descriptor
// consumed by code generation, plus reference Pre and Post evaluations.
type Coupler interface {
	Desc() *Coupling
	Pre(xi, xj float32) float32
	Post(gx float32) float32
}

// Apply computes the aggregated coupling for each state variable row:
// cX[sv*n+i] = Post(sum_j wT[i*n+j] * Pre(state[sv*n+i], state[sv*n+j])).
// wT is the target-major transposed weight matrix from conn.WeightsT.
func Apply(cp Coupler, cX, wT, state []float32, nsvar, n int) {
	for sv := 0; sv < nsvar; sv++ {
		x := state[sv*n : (sv+1)*n]
		for i := 0; i < n; i++ {
			gx := float32(0)
			for j := 0; j < n; j++ {
				gx += wT[i*n+j] * cp.Pre(x[i], x[j])
			}
			cX[sv*n+i] = cp.Post(gx)
		}
	}
}

// Linear couples nodes through a scaled sum of source states.
type Linear struct {
	Coupling
}

// NewLinear returns a Linear coupling with default parameters.
func NewLinear() *Linear {
	lc := &Linear{}
	lc.Defaults()
	return lc
}

func (lc *Linear) Defaults() {
	lc.Coupling = Coupling{
		Name:     "Linear",
		PreExpr:  "x_j",
		PostExpr: "a * gx + b",
		Params: []nmm.Param{
			{Name: "a", Value: []float32{0.00390625}},
			{Name: "b", Value: []float32{0}},
		},
	}
}

func (lc *Linear) Desc() *Coupling { return &lc.Coupling }

func (lc *Linear) Pre(xi, xj float32) float32 { return xj }

func (lc *Linear) Post(gx float32) float32 {
	return lc.ParamValue("a")*gx + lc.ParamValue("b")
}

// Sigmoidal couples nodes through a saturating sigmoid of the summed
// source states.
type Sigmoidal struct {
	Coupling
}

// NewSigmoidal returns a Sigmoidal coupling with default parameters.
func NewSigmoidal() *Sigmoidal {
	sc := &Sigmoidal{}
	sc.Defaults()
	return sc
}

func (sc *Sigmoidal) Defaults() {
	sc.Coupling = Coupling{
		Name:     "Sigmoidal",
		PreExpr:  "x_j",
		PostExpr: "cmin + ((cmax - cmin) / (1.0 + exp(-a * ((gx - midpoint) / sigma))))",
		Params: []nmm.Param{
			{Name: "cmin", Value: []float32{-1}},
			{Name: "cmax", Value: []float32{1}},
			{Name: "midpoint", Value: []float32{0}},
			{Name: "a", Value: []float32{1}},
			{Name: "sigma", Value: []float32{230}},
		},
	}
}

func (sc *Sigmoidal) Desc() *Coupling { return &sc.Coupling }

func (sc *Sigmoidal) Pre(xi, xj float32) float32 { return xj }

func (sc *Sigmoidal) Post(gx float32) float32 {
	cmin := sc.ParamValue("cmin")
	cmax := sc.ParamValue("cmax")
	mid := sc.ParamValue("midpoint")
	a := sc.ParamValue("a")
	sig := sc.ParamValue("sigma")
	return cmin + ((cmax - cmin) / (1.0 + mat32.Exp(-a*((gx-mid)/sig))))
}
