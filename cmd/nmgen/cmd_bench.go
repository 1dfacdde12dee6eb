// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emer/nmgen/backend"
	"github.com/emer/nmgen/sim"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time the reference integrator against generated kernels",
		Long: `bench runs the scenario once per backend per repeat, all from the
same initial state and noise draws, and reports build time and the
best run time.  Backends whose toolchain is missing are reported and
skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, _ := cmd.Flags().GetStringSlice("backends")
			repeats, _ := cmd.Flags().GetInt("repeats")
			seed, _ := cmd.Flags().GetInt64("noise-seed")
			if repeats < 1 {
				repeats = 1
			}

			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			sm, err := sc.Build()
			if err != nil {
				return err
			}
			nv := sm.NSvar * sm.NNode
			init := make([]float32, nv)
			copy(init, sm.State)

			var draws [][]float32
			var z []float32
			if sm.Integ.Stochastic() {
				draws = drawNoise(sm.NSteps, nv, seed)
				z = flattenDraws(draws)
			}

			fmt.Printf("%v nodes, %v svars, %v steps, %v repeats\n", sm.NNode, sm.NSvar, sm.NSteps, repeats)
			fmt.Printf("%-8s %12s %12s %14s\n", "backend", "build", "run", "steps/sec")

			for _, name := range names {
				if name == "ref" || name == "reference" {
					best := time.Duration(1<<63 - 1)
					for r := 0; r < repeats; r++ {
						if err := sm.SetState(init); err != nil {
							return err
						}
						if em, ok := sm.Integ.(*sim.EulerMaruyama); ok {
							em.Noise = &sim.FixedNoise{Draws: draws}
						}
						start := time.Now()
						if _, err := sm.Run(); err != nil {
							return err
						}
						if el := time.Since(start); el < best {
							best = el
						}
					}
					printBenchRow("ref", 0, best, sm.NSteps)
					continue
				}

				bld, cleanup, err := newBuilder(name)
				if err != nil {
					fmt.Printf("%-8s %v\n", name, err)
					continue
				}
				buildStart := time.Now()
				invoke, err := simInvoker(sm, bld, z)
				if err != nil {
					cleanup()
					fmt.Printf("%-8s %v\n", name, err)
					continue
				}
				buildTime := time.Since(buildStart)

				best := time.Duration(1<<63 - 1)
				state := make([]float32, nv)
				trace := make([]float32, sm.NSteps*nv)
				for r := 0; r < repeats; r++ {
					copy(state, init)
					start := time.Now()
					if err := invoke(state, trace); err != nil {
						cleanup()
						return err
					}
					if el := time.Since(start); el < best {
						best = el
					}
				}
				cleanup()
				printBenchRow(name, buildTime, best, sm.NSteps)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("backends", []string{"ref", "array"}, "backends to time")
	cmd.Flags().Int("repeats", 3, "runs per backend, best time reported")
	cmd.Flags().Int64("noise-seed", 1, "seed for pre-drawn noise in stochastic scenarios")
	return cmd
}

// simInvoker builds the scenario's simulation kernel and wraps it so
// timing loops need not care whether it is stochastic.
func simInvoker(sm *sim.Simulator, bld backend.Builder, z []float32) (func(state, trace []float32) error, error) {
	if sm.Integ.Stochastic() {
		kern, err := bld.SimSDE(sm)
		if err != nil {
			return nil, err
		}
		return func(state, trace []float32) error {
			return kern(state, sm.WeightsT, trace, sm.ParMat, z)
		}, nil
	}
	kern, err := bld.Sim(sm)
	if err != nil {
		return nil, err
	}
	return func(state, trace []float32) error {
		return kern(state, sm.WeightsT, trace, sm.ParMat)
	}, nil
}

func printBenchRow(name string, build, run time.Duration, steps int) {
	bs := "-"
	if build > 0 {
		bs = build.Round(time.Microsecond).String()
	}
	sps := float64(steps) / run.Seconds()
	fmt.Printf("%-8s %12s %12s %14.0f\n", name, bs, run.Round(time.Microsecond), sps)
}
