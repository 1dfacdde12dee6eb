// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"

	"github.com/emer/nmgen/render"
	"github.com/emer/nmgen/sim"
)

// LoopBuilder compiles explicit loop kernels into Go plugins with the
// local toolchain and loads them in process.  Every build gets its
// own single use module so plugin paths never collide.
type LoopBuilder struct {

	// template renderer, defaults to the builtin set
	Rend *render.Renderer

	// parent directory for build trees, empty for the system
	// temp dir
	Dir string

	// keep build trees for inspection instead of removing them
	Keep bool
}

func NewLoopBuilder() *LoopBuilder {
	return &LoopBuilder{Rend: render.New()}
}

func (lb *LoopBuilder) Kind() BackendKind { return Loop }

func (lb *LoopBuilder) Available() error {
	if _, err := exec.LookPath("go"); err != nil {
		return fmt.Errorf("backend: loop needs a go toolchain on PATH: %w", err)
	}
	return nil
}

// build renders tmpl, compiles the result as a plugin, loads it, and
// returns the entry symbol.
func (lb *LoopBuilder) build(tmpl string, content map[string]any, entry string) (plugin.Symbol, error) {
	src, err := lb.Rend.RenderFile(tmpl, content)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(lb.Dir, "nmgen-loop-")
	if err != nil {
		return nil, err
	}
	if !lb.Keep {
		defer os.RemoveAll(dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "kernel.go"), []byte(src), 0666); err != nil {
		return nil, err
	}
	// the module name doubles as the plugin path, which must be
	// unique per loaded plugin
	mod := fmt.Sprintf("module %v\n\ngo 1.22\n", filepath.Base(dir))
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(mod), 0666); err != nil {
		return nil, err
	}
	so := filepath.Join(dir, "kernel.so")
	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", so, ".")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &HostCompileError{Backend: "loop", Output: string(out), Source: render.NumberLines(src)}
	}
	pl, err := plugin.Open(so)
	if err != nil {
		return nil, &HostCompileError{Backend: "loop", Output: err.Error(), Source: render.NumberLines(src)}
	}
	sym, err := pl.Lookup(entry)
	if err != nil {
		return nil, &HostCompileError{Backend: "loop", Output: err.Error(), Source: render.NumberLines(src)}
	}
	return sym, nil
}

func (lb *LoopBuilder) Dfuns(sm *sim.Simulator) (DfunKernel, error) {
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	sym, err := lb.build("loop-dfuns.tmpl", content, EntryDfuns)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(dX, state, cX, parmat []float32))
	if !ok {
		return nil, fmt.Errorf("backend: loop entry %v has type %T", EntryDfuns, sym)
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

func (lb *LoopBuilder) Coupling(sm *sim.Simulator) (CouplingKernel, error) {
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	sym, err := lb.build("loop-coupling.tmpl", content, EntryCoupling)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(cX, weights, state []float32))
	if !ok {
		return nil, fmt.Errorf("backend: loop entry %v has type %T", EntryCoupling, sym)
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

func (lb *LoopBuilder) Sim(sm *sim.Simulator) (SimKernel, error) {
	if sm.Integ != nil && sm.Integ.Stochastic() {
		return nil, fmt.Errorf("backend: Sim needs a deterministic integrator, use SimSDE")
	}
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	sym, err := lb.build("loop-sim-ode.tmpl", content, EntrySim)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(state, weights, trace, parmat []float32))
	if !ok {
		return nil, fmt.Errorf("backend: loop entry %v has type %T", EntrySim, sym)
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

func (lb *LoopBuilder) SimSDE(sm *sim.Simulator) (SimSDEKernel, error) {
	if _, ok := sm.Integ.(*sim.EulerMaruyama); !ok {
		return nil, fmt.Errorf("backend: SimSDE needs the EulerMaruyama integrator")
	}
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	sym, err := lb.build("loop-sim-sde.tmpl", content, EntrySim)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(state, weights, trace, parmat, z []float32))
	if !ok {
		return nil, fmt.Errorf("backend: loop entry %v has type %T", EntrySim, sym)
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
