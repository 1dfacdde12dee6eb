// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/emer/nmgen/render"
	"github.com/emer/nmgen/sim"
)

// MaxNodes is the node limit of the cuda backend: kernels launch one
// single block with one thread per node.
const MaxNodes = 1024

// CudaBuilder compiles CUDA kernels with nvcc and exchanges float32
// buffers with the compiled harness over stdin/stdout in native byte
// order.  Build trees live under Dir until Close.
type CudaBuilder struct {

	// template renderer, defaults to the builtin set
	Rend *render.Renderer

	// nvcc executable, default nvcc on PATH
	NVCC string

	// extra nvcc flags, e.g. -arch=sm_80
	Flags []string

	// parent directory for build trees, empty for the system
	// temp dir
	Dir string

	// keep build trees after Close
	Keep bool

	dirs []string
}

func NewCudaBuilder() *CudaBuilder {
	return &CudaBuilder{Rend: render.New(), NVCC: "nvcc"}
}

func (cb *CudaBuilder) Kind() BackendKind { return Cuda }

func (cb *CudaBuilder) Available() error {
	nvcc := cb.NVCC
	if nvcc == "" {
		nvcc = "nvcc"
	}
	if _, err := exec.LookPath(nvcc); err != nil {
		return fmt.Errorf("backend: cuda needs nvcc on PATH: %w", err)
	}
	return nil
}

// Close removes the build trees this builder created.
func (cb *CudaBuilder) Close() error {
	if cb.Keep {
		return nil
	}
	var first error
	for _, d := range cb.dirs {
		if err := os.RemoveAll(d); err != nil && first == nil {
			first = err
		}
	}
	cb.dirs = nil
	return first
}

// cuBuf describes one harness buffer by its argument role: In is fed
// over stdin before launch, Out is read back over stdout after, Temp
// stays device only.
type cuBuf struct {
	name string
	size int
	role ArgRole
}

// build renders the kernel and harness, compiles them with nvcc, and
// returns the harness binary path.
func (cb *CudaBuilder) build(tmpl string, content map[string]any, entry string, bufs []cuBuf) (string, error) {
	n := content["n_node"].(int)
	if n > MaxNodes {
		return "", &ShapeError{Arg: "n_node", Got: n, Want: MaxNodes, Max: true}
	}
	ksrc, err := cb.Rend.RenderFile(tmpl, content)
	if err != nil {
		return "", err
	}
	hc := map[string]any{}
	for k, v := range content {
		hc[k] = v
	}
	var bl []any
	var args strings.Builder
	for _, b := range bufs {
		bl = append(bl, map[string]any{
			"name": b.name, "size": b.size,
			"read":  b.role == In || b.role == InOut,
			"write": b.role == Out || b.role == InOut,
		})
		fmt.Fprintf(&args, ", d_%v", b.name)
	}
	hc["bufs"] = bl
	hc["entry"] = entry
	hc["args"] = args.String()
	hsrc, err := cb.Rend.RenderFile("cu-harness.tmpl", hc)
	if err != nil {
		return "", err
	}
	src := ksrc + "\n" + hsrc

	dir, err := os.MkdirTemp(cb.Dir, "nmgen-cu-")
	if err != nil {
		return "", err
	}
	cb.dirs = append(cb.dirs, dir)
	cu := filepath.Join(dir, "kernel.cu")
	bin := filepath.Join(dir, "kernel")
	if err := os.WriteFile(cu, []byte(src), 0666); err != nil {
		return "", err
	}
	nvcc := cb.NVCC
	if nvcc == "" {
		nvcc = "nvcc"
	}
	cargs := append([]string{"-O2", "-o", bin, cu}, cb.Flags...)
	cmd := exec.Command(nvcc, cargs...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &DeviceCompileError{Output: string(out), Source: render.NumberLines(src)}
	}
	return bin, nil
}

// runHarness feeds the input buffers to the harness binary and reads
// one output buffer back.
func runHarness(bin string, in [][]float32, outLen int) ([]float32, error) {
	var stdin bytes.Buffer
	for _, b := range in {
		if err := binary.Write(&stdin, binary.NativeEndian, b); err != nil {
			return nil, err
		}
	}
	cmd := exec.Command(bin)
	cmd.Stdin = &stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("backend: cuda harness %v: %v: %v", filepath.Base(filepath.Dir(bin)), err, strings.TrimSpace(stderr.String()))
	}
	out := make([]float32, outLen)
	if err := binary.Read(&stdout, binary.NativeEndian, out); err != nil {
		return nil, fmt.Errorf("backend: cuda harness output: %w", err)
	}
	return out, nil
}

// dummyParMat returns the parmat buffer the harness expects: real
// rows when the model has spatial parameters, a single zero
// otherwise.
func dummyParMat(parmat []float32, nsp int) []float32 {
	if nsp > 0 {
		return parmat
	}
	return []float32{0}
}

func (cb *CudaBuilder) Dfuns(sm *sim.Simulator) (DfunKernel, error) {
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	n := sm.NNode
	nv := sm.NSvar * n
	nsp := sm.Model.Desc().NSpatial()
	npm := content["n_parmat"].(int)
	bufs := []cuBuf{
		{"dX", nv, Out},
		{"state", nv, In},
		{"cX", nv, In},
		{"parmat", npm, In},
	}
	bin, err := cb.build("cu-dfuns.tmpl", content, EntryDfuns, bufs)
	if err != nil {
		return nil, err
	}
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
		if err := checkParMat(parmat, nsp, n); err != nil {
			return err
		}
		out, err := runHarness(bin, [][]float32{state, cX, dummyParMat(parmat, nsp)}, nv)
		if err != nil {
			return err
		}
		copy(dX, out)
		return nil
	}, nil
}

func (cb *CudaBuilder) Coupling(sm *sim.Simulator) (CouplingKernel, error) {
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	n := sm.NNode
	nv := sm.NSvar * n
	bufs := []cuBuf{
		{"cX", nv, Out},
		{"weights", n * n, In},
		{"state", nv, In},
	}
	bin, err := cb.build("cu-coupling.tmpl", content, EntryCoupling, bufs)
	if err != nil {
		return nil, err
	}
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
		out, err := runHarness(bin, [][]float32{weights, state}, nv)
		if err != nil {
			return err
		}
		copy(cX, out)
		return nil
	}, nil
}

func (cb *CudaBuilder) Sim(sm *sim.Simulator) (SimKernel, error) {
	if sm.Integ != nil && sm.Integ.Stochastic() {
		return nil, fmt.Errorf("backend: Sim needs a deterministic integrator, use SimSDE")
	}
	content, err := Content(sm)
	if err != nil {
		return nil, err
	}
	n := sm.NNode
	nv := sm.NSvar * n
	nsp := sm.Model.Desc().NSpatial()
	npm := content["n_parmat"].(int)
	nt := sm.NSteps
	bufs := []cuBuf{
		{"state", nv, In},
		{"weights", n * n, In},
		{"trace", nt * nv, Out},
		{"parmat", npm, In},
	}
	if content["has_delays"].(bool) {
		bufs = append(bufs, cuBuf{"hist", sm.Horizon * nv, Temp})
	}
	bin, err := cb.build("cu-sim-ode.tmpl", content, EntrySim, bufs)
	if err != nil {
		return nil, err
	}
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
		out, err := runHarness(bin, [][]float32{state, weights, dummyParMat(parmat, nsp)}, nt*nv)
		if err != nil {
			return err
		}
		copy(trace, out)
		return nil
	}, nil
}

// SimSDE is not available on the cuda backend: stochastic runs use
// the in process backends.
func (cb *CudaBuilder) SimSDE(sm *sim.Simulator) (SimSDEKernel, error) {
	return nil, fmt.Errorf("backend: cuda has no stochastic simulation kernel")
}
