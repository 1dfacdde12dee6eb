// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package nmm defines neural mass model descriptors: named state variables,
coupling terms, parameters, and per-variable drift expressions.  The
descriptor is the single source that all code generation targets consume,
and each built-in model also provides a reference drift evaluation used
as the oracle in conformance tests.

Parameters are scalar by default.  A parameter whose value has one entry
per node is spatial (heterogeneous): generated kernels read it from the
spatial parameter matrix, all other parameters are frozen into the
generated source as literals.
*/
package nmm

import (
	"fmt"

	"github.com/emer/etable/v2/minmax"
)

// Param is a named model parameter.  Value has length 1 for a scalar
// parameter, or one entry per node for a spatial parameter.
type Param struct {

	// parameter name, an identifier usable in drift expressions
	Name string

	// scalar value (length 1) or per-node values (length NNode)
	Value []float32
}

// Model is the descriptor for a neural mass model.  It is immutable
// once a simulation has been configured from it.
type Model struct {

	// model name
	Name string

	// state variable names, in buffer row order
	StateVars []string

	// coupling term names, in buffer row order; coupling term k is
	// driven by state variable k
	CouplingTerms []string

	// parameters, in declaration order
	Params []Param

	// drift expression per state variable
	Dfuns map[string]string

	// initial condition range per state variable
	Ranges map[string]minmax.F32

	// number of modes per state variable; all built-in models have 1,
	// and code generation requires 1
	NModes int
}

// NSvar returns the number of state variables.
func (md *Model) NSvar() int {
	return len(md.StateVars)
}

// Param returns the named parameter, or nil if not found.
func (md *Model) Param(name string) *Param {
	for i := range md.Params {
		if md.Params[i].Name == name {
			return &md.Params[i]
		}
	}
	return nil
}

// ParamNames returns the parameter names in declaration order.
func (md *Model) ParamNames() []string {
	nms := make([]string, len(md.Params))
	for i := range md.Params {
		nms[i] = md.Params[i].Name
	}
	return nms
}

// ParamValue returns the first value of the named parameter, the full
// value for scalars.  It returns 0 for unknown names.
func (md *Model) ParamValue(name string) float32 {
	p := md.Param(name)
	if p == nil || len(p.Value) == 0 {
		return 0
	}
	return p.Value[0]
}

// SetParam sets the named parameter to a scalar value, adding it if not
// present.
func (md *Model) SetParam(name string, val float32) {
	if p := md.Param(name); p != nil {
		p.Value = []float32{val}
		return
	}
	md.Params = append(md.Params, Param{Name: name, Value: []float32{val}})
}

// SetSpatial sets the named parameter to per-node values, making it
// spatial.  The parameter must already exist.
func (md *Model) SetSpatial(name string, vals []float32) error {
	p := md.Param(name)
	if p == nil {
		return fmt.Errorf("nmm: no parameter %q in model %v", name, md.Name)
	}
	p.Value = vals
	return nil
}

// SpatialParamNames returns the names of spatial (per-node) parameters,
// in declaration order.  Their order defines the rows of the spatial
// parameter matrix.
func (md *Model) SpatialParamNames() []string {
	var nms []string
	for i := range md.Params {
		if len(md.Params[i].Value) > 1 {
			nms = append(nms, md.Params[i].Name)
		}
	}
	return nms
}

// NSpatial returns the number of spatial parameters.
func (md *Model) NSpatial() int {
	return len(md.SpatialParamNames())
}

// SpatialMatrix returns the spatial parameter matrix for n nodes: one
// row of n values per spatial parameter, in SpatialParamNames order,
// flattened row-major.  It returns nil when the model is homogeneous,
// and an error if any spatial parameter does not have exactly n values.
func (md *Model) SpatialMatrix(n int) ([]float32, error) {
	sp := md.SpatialParamNames()
	if len(sp) == 0 {
		return nil, nil
	}
	pm := make([]float32, 0, len(sp)*n)
	for _, nm := range sp {
		p := md.Param(nm)
		if len(p.Value) != n {
			return nil, fmt.Errorf("nmm: spatial parameter %q has %d values, want %d", nm, len(p.Value), n)
		}
		pm = append(pm, p.Value...)
	}
	return pm, nil
}

// ParamAt returns an accessor for the named parameter as a function of
// node index, reading per-node values for spatial parameters and the
// scalar otherwise.  Reference drift implementations use this so that
// the same code covers homogeneous and heterogeneous models.
func (md *Model) ParamAt(name string) func(i int) float32 {
	p := md.Param(name)
	if p == nil || len(p.Value) == 0 {
		return func(int) float32 { return 0 }
	}
	if len(p.Value) > 1 {
		vals := p.Value
		return func(i int) float32 { return vals[i] }
	}
	v := p.Value[0]
	return func(int) float32 { return v }
}

// Validate checks the descriptor: state variables and coupling terms
// are named and consistent, every state variable has a drift expression,
// every expression stays within the shared expression subset and only
// references known symbols, and spatial parameters agree on length.
func (md *Model) Validate() error {
	if len(md.StateVars) == 0 {
		return fmt.Errorf("nmm: model %v has no state variables", md.Name)
	}
	if md.NModes > 1 {
		return fmt.Errorf("nmm: model %v has %d modes, code generation supports 1", md.Name, md.NModes)
	}
	if len(md.CouplingTerms) > len(md.StateVars) {
		return fmt.Errorf("nmm: model %v has %d coupling terms for %d state variables", md.Name, len(md.CouplingTerms), len(md.StateVars))
	}
	allowed := map[string]bool{}
	for _, sv := range md.StateVars {
		if allowed[sv] {
			return fmt.Errorf("nmm: duplicate state variable %q", sv)
		}
		allowed[sv] = true
	}
	for _, ct := range md.CouplingTerms {
		if allowed[ct] {
			return fmt.Errorf("nmm: coupling term %q collides with another name", ct)
		}
		allowed[ct] = true
	}
	for i := range md.Params {
		p := &md.Params[i]
		if allowed[p.Name] {
			return fmt.Errorf("nmm: parameter %q collides with another name", p.Name)
		}
		allowed[p.Name] = true
		if len(p.Value) == 0 {
			return fmt.Errorf("nmm: parameter %q has no value", p.Name)
		}
	}
	nsp := 0
	for i := range md.Params {
		if n := len(md.Params[i].Value); n > 1 {
			if nsp > 0 && n != nsp {
				return fmt.Errorf("nmm: spatial parameters disagree on node count: %d vs %d", n, nsp)
			}
			nsp = n
		}
	}
	for _, sv := range md.StateVars {
		df, ok := md.Dfuns[sv]
		if !ok {
			return fmt.Errorf("nmm: no drift expression for state variable %q", sv)
		}
		if err := CheckExpr(df, allowed); err != nil {
			return fmt.Errorf("nmm: drift for %q: %w", sv, err)
		}
	}
	for sv, rng := range md.Ranges {
		if rng.Min > rng.Max {
			return fmt.Errorf("nmm: range for %q has Min > Max", sv)
		}
	}
	return nil
}

// Modeler is implemented by neural mass models: the shared descriptor
// consumed by code generation, plus a reference drift evaluation.
//
// Dfun writes the drift into dX given the current state and the
// aggregated coupling cX.  All three buffers are [NSvar][n] row-major;
// cX rows beyond the coupling terms are ignored.
type Modeler interface {
	Desc() *Model
	Dfun(dX, state, cX []float32, n int)
}
