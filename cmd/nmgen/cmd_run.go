// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/emer/nmgen/backend"
	"github.com/emer/nmgen/monitor"
	"github.com/emer/nmgen/sim"
)

// traceSource adapts a flat kernel trace, [n_t][n_svar][n_node], to
// the monitor Source interface.
type traceSource struct {
	trace []float32
	nv    int
}

func (ts *traceSource) NSteps() int { return len(ts.trace) / ts.nv }

func (ts *traceSource) State(step int) []float32 {
	return ts.trace[step*ts.nv : (step+1)*ts.nv]
}

// drawNoise returns one standard normal buffer per step, so the
// reference integrator and a generated kernel consume identical
// deviates.
func drawNoise(nt, nv int, seed int64) [][]float32 {
	rnd := rand.New(rand.NewSource(seed))
	draws := make([][]float32, nt)
	for s := range draws {
		row := make([]float32, nv)
		for i := range row {
			row[i] = float32(rnd.NormFloat64())
		}
		draws[s] = row
	}
	return draws
}

func flattenDraws(rows [][]float32) []float32 {
	if rows == nil {
		return nil
	}
	out := make([]float32, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// newBuilder resolves a backend by name and verifies its toolchain is
// usable.  cleanup releases any compiled artifacts and must run after
// the last kernel call.
func newBuilder(name string) (bld backend.Builder, cleanup func(), err error) {
	kind, err := backend.KindFromName(name)
	if err != nil {
		return nil, nil, err
	}
	bld, err = backend.New(kind)
	if err != nil {
		return nil, nil, err
	}
	if err := bld.Available(); err != nil {
		return nil, nil, err
	}
	cleanup = func() {}
	if cb, ok := bld.(*backend.CudaBuilder); ok {
		cleanup = func() {
			if err := cb.Close(); err != nil {
				log.Println(err)
			}
		}
	}
	return bld, cleanup, nil
}

// runKernel builds the full simulation kernel for the scenario and
// invokes it on a copy of the configured state, returning the trace.
func runKernel(sm *sim.Simulator, bld backend.Builder, z []float32) ([]float32, error) {
	invoke, err := simInvoker(sm, bld, z)
	if err != nil {
		return nil, err
	}
	nv := sm.NSvar * sm.NNode
	state := make([]float32, nv)
	copy(state, sm.State)
	trace := make([]float32, sm.NSteps*nv)
	if err := invoke(state, trace); err != nil {
		return nil, err
	}
	return trace, nil
}

// checkTrace compares a kernel trace against reference trajectories
// under a tolerance that widens with accumulated steps.
func checkTrace(trace []float32, want [][]float32, nv int) (float64, error) {
	if len(trace) != len(want)*nv {
		return 0, fmt.Errorf("trace has %v values, reference has %v", len(trace), len(want)*nv)
	}
	worst := 0.0
	for ti := range want {
		rtol := 4e-5 * float64(ti+1)
		atol := 2e-5 * float64(ti+1)
		row := trace[ti*nv : (ti+1)*nv]
		for i := range want[ti] {
			wv := float64(want[ti][i])
			dif := math.Abs(float64(row[i]) - wv)
			if dif > worst {
				worst = dif
			}
			if dif > atol+rtol*math.Abs(wv) {
				return worst, fmt.Errorf("kernel deviates from reference at step %v index %v: got %v, want %v", ti, i, row[i], want[ti][i])
			}
		}
	}
	return worst, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario and write the monitored series as CSV",
		Long: `run integrates the scenario on the selected backend and writes the
monitored time series as tab separated CSV.  The reference backend
uses the in-process integrator; the others generate, build and invoke
a kernel.  --check reruns the reference alongside a generated backend
and verifies the trajectories agree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bname, _ := cmd.Flags().GetString("backend")
			out, _ := cmd.Flags().GetString("out")
			check, _ := cmd.Flags().GetBool("check")
			seed, _ := cmd.Flags().GetInt64("noise-seed")

			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			sm, err := sc.Build()
			if err != nil {
				return err
			}
			nv := sm.NSvar * sm.NNode

			var draws [][]float32
			if sm.Integ.Stochastic() {
				draws = drawNoise(sm.NSteps, nv, seed)
				if em, ok := sm.Integ.(*sim.EulerMaruyama); ok {
					em.Noise = &sim.FixedNoise{Draws: draws}
				}
			}

			var sr *monitor.Series
			if bname == "ref" || bname == "reference" {
				if check {
					return fmt.Errorf("--check compares a generated backend against the reference; pick array, loop, or cuda")
				}
				series, err := sm.Run()
				if err != nil {
					return err
				}
				sr = series[0]
				sr.Name = sc.Name
			} else {
				bld, cleanup, err := newBuilder(bname)
				if err != nil {
					return err
				}
				defer cleanup()
				trace, err := runKernel(sm, bld, flattenDraws(draws))
				if err != nil {
					return err
				}
				if check {
					raw := &monitor.Raw{}
					if err := raw.Configure(sm.Integ.StepSize(), sm.NSvar, sm.NNode); err != nil {
						return err
					}
					sm.Monitors = append(sm.Monitors, raw)
					series, err := sm.Run()
					if err != nil {
						return err
					}
					ref := series[len(series)-1]
					worst, err := checkTrace(trace, ref.Values, nv)
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "check: %v agrees with reference over %v steps, max |dif| %.3g\n", bname, sm.NSteps, worst)
				}
				mon, err := sc.Monitor.build()
				if err != nil {
					return err
				}
				src := &traceSource{trace: trace, nv: nv}
				sr, err = monitor.FromSource(src, mon, sm.Integ.StepSize(), sm.NSvar, sm.NNode, sc.Name)
				if err != nil {
					return err
				}
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return sr.WriteCSV(w, sm.Model.Desc().StateVars, sm.NNode)
		},
	}
	cmd.Flags().String("backend", "ref", "backend to run: ref, array, loop, or cuda")
	cmd.Flags().StringP("out", "o", "", "write CSV to file instead of stdout")
	cmd.Flags().Bool("check", false, "also run the reference and verify the kernel trace against it")
	cmd.Flags().Int64("noise-seed", 1, "seed for pre-drawn noise in stochastic scenarios")
	return cmd
}
