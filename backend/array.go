// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/emer/nmgen/render"
	"github.com/emer/nmgen/sim"
)

// ArrayBuilder interprets whole array kernels in process.  Each build
// gets a fresh interpreter, so kernels from one builder are
// independent of each other.
type ArrayBuilder struct {

	// template renderer, defaults to the builtin set
	Rend *render.Renderer
}

func NewArrayBuilder() *ArrayBuilder {
	return &ArrayBuilder{Rend: render.New()}
}

func (ab *ArrayBuilder) Kind() BackendKind { return Array }

func (ab *ArrayBuilder) Available() error { return nil }

// eval renders tmpl, interprets the result, and returns the entry
// symbol.
func (ab *ArrayBuilder) eval(tmpl string, content map[string]any, entry string) (reflect.Value, error) {
	src, err := ab.Rend.RenderFile(tmpl, content)
	if err != nil {
		return reflect.Value{}, err
	}
	it := interp.New(interp.Options{})
	if err := it.Use(stdlib.Symbols); err != nil {
		return reflect.Value{}, err
	}
	if _, err := it.Eval(src); err != nil {
		return reflect.Value{}, &HostCompileError{Backend: "array", Output: err.Error(), Source: render.NumberLines(src)}
	}
	v, err := it.Eval(entry)
	if err != nil {
		return reflect.Value{}, &HostCompileError{Backend: "array", Output: err.Error(), Source: render.NumberLines(src)}
	}
	return v, nil
}

func (ab *ArrayBuilder) Dfuns(sm *sim.Simulator) (DfunKernel, error) {
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	v, err := ab.eval("arr-dfuns.tmpl", content, EntryDfuns)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(dX, state, cX, parmat []float32))
	if !ok {
		return nil, fmt.Errorf("backend: array entry %v has type %T", EntryDfuns, v.Interface())
	}
	nv := sm.NSvar * sm.NNode
	nsp := sm.Model.Desc().NSpatial()
	return func(dX, state, cX, parmat []float32) error {
		if err := checkLen("dX", dX, nv); err != nil {
			return err
		}
		if err := checkLen("state", state, nv); err != nil {
			return err
		}
		if err := checkLen("cX", cX, nv); err != nil {
			return err
		}
		if err := checkParMat(parmat, nsp, sm.NNode); err != nil {
			return err
		}
		fn(dX, state, cX, parmat)
		return nil
	}, nil
}

func (ab *ArrayBuilder) Coupling(sm *sim.Simulator) (CouplingKernel, error) {
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	v, err := ab.eval("arr-coupling.tmpl", content, EntryCoupling)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(cX, weights, state []float32))
	if !ok {
		return nil, fmt.Errorf("backend: array entry %v has type %T", EntryCoupling, v.Interface())
	}
	n := sm.NNode
	nv := sm.NSvar * n
	return func(cX, weights, state []float32) error {
		if err := checkLen("cX", cX, nv); err != nil {
			return err
		}
		if err := checkLen("weights", weights, n*n); err != nil {
			return err
		}
		if err := checkLen("state", state, nv); err != nil {
			return err
		}
		fn(cX, weights, state)
		return nil
	}, nil
}

func (ab *ArrayBuilder) Sim(sm *sim.Simulator) (SimKernel, error) {
	if sm.Integ != nil && sm.Integ.Stochastic() {
		return nil, fmt.Errorf("backend: Sim needs a deterministic integrator, use SimSDE")
	}
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	v, err := ab.eval("arr-sim-ode.tmpl", content, EntrySim)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(state, weights, trace, parmat []float32))
	if !ok {
		return nil, fmt.Errorf("backend: array entry %v has type %T", EntrySim, v.Interface())
	}
	n := sm.NNode
	nv := sm.NSvar * n
	nsp := sm.Model.Desc().NSpatial()
	nt := sm.NSteps
	return func(state, weights, trace, parmat []float32) error {
		if err := checkLen("state", state, nv); err != nil {
			return err
		}
		if err := checkLen("weights", weights, n*n); err != nil {
			return err
		}
		if err := checkLen("trace", trace, nt*nv); err != nil {
			return err
		}
		if err := checkParMat(parmat, nsp, n); err != nil {
			return err
		}
		fn(state, weights, trace, parmat)
		return nil
	}, nil
}

func (ab *ArrayBuilder) SimSDE(sm *sim.Simulator) (SimSDEKernel, error) {
	if _, ok := sm.Integ.(*sim.EulerMaruyama); !ok {
		return nil, fmt.Errorf("backend: SimSDE needs the EulerMaruyama integrator")
	}
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	v, err := ab.eval("arr-sim-sde.tmpl", content, EntrySim)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(state, weights, trace, parmat, z []float32))
	if !ok {
		return nil, fmt.Errorf("backend: array entry %v has type %T", EntrySim, v.Interface())
	}
	n := sm.NNode
	nv := sm.NSvar * n
	nsp := sm.Model.Desc().NSpatial()
	nt := sm.NSteps
	return func(state, weights, trace, parmat, z []float32) error {
		if err := checkLen("state", state, nv); err != nil {
			return err
		}
		if err := checkLen("weights", weights, n*n); err != nil {
			return err
		}
		if err := checkLen("trace", trace, nt*nv); err != nil {
			return err
		}
		if err := checkParMat(parmat, nsp, n); err != nil {
			return err
		}
		if err := checkLen("z", z, nt*nv); err != nil {
			return err
		}
		fn(state, weights, trace, parmat, z)
		return nil
	}, nil
}
