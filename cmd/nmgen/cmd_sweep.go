// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emer/empi/v2/mpi"
	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
	"github.com/spf13/cobra"

	"github.com/emer/nmgen/backend"
	"github.com/emer/nmgen/sim"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep one parameter over a value range, split across MPI ranks",
		Long: `sweep rebuilds and runs the scenario once per parameter value and
records the final state of every node.  Values are dealt round robin
over MPI ranks, each rank writing its own CSV shard; run under mpirun
with the mpi build tag to parallelize, or standalone for one rank.
Stochastic scenarios reuse the same noise draws for every value, so
differences between rows come from the parameter alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pname, _ := cmd.Flags().GetString("param")
			from, _ := cmd.Flags().GetFloat64("from")
			to, _ := cmd.Flags().GetFloat64("to")
			count, _ := cmd.Flags().GetInt("count")
			bname, _ := cmd.Flags().GetString("backend")
			out, _ := cmd.Flags().GetString("out")
			seed, _ := cmd.Flags().GetInt64("noise-seed")

			if pname == "" {
				return fmt.Errorf("--param is required")
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %v", count)
			}

			mpi.Init()
			defer mpi.Finalize()
			rank := mpi.WorldRank()
			size := mpi.WorldSize()

			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}

			useRef := bname == "ref" || bname == "reference"
			var bld backend.Builder
			cleanup := func() {}
			if !useRef {
				bld, cleanup, err = newBuilder(bname)
				if err != nil {
					return err
				}
			}
			defer cleanup()

			var tbl *etable.Table
			var svars []string
			var draws [][]float32
			row := 0
			for vi := rank; vi < count; vi += size {
				v := from
				if count > 1 {
					v = from + (to-from)*float64(vi)/float64(count-1)
				}
				svc := *sc
				svc.Sets = append(append([]string{}, sc.Sets...), fmt.Sprintf("%v=%v", pname, v))
				sm, err := svc.Build()
				if err != nil {
					return err
				}
				nv := sm.NSvar * sm.NNode
				if sm.Integ.Stochastic() {
					if draws == nil {
						draws = drawNoise(sm.NSteps, nv, seed)
					}
					if em, ok := sm.Integ.(*sim.EulerMaruyama); ok {
						em.Noise = &sim.FixedNoise{Draws: draws}
					}
				}
				var final []float32
				if useRef {
					if _, err := sm.Run(); err != nil {
						return err
					}
					final = sm.State
				} else {
					trace, err := runKernel(sm, bld, flattenDraws(draws))
					if err != nil {
						return err
					}
					final = trace[len(trace)-nv:]
				}
				if tbl == nil {
					svars = sm.Model.Desc().StateVars
					tbl = sweepTable(pname, svars, sm.NNode, rankValues(rank, size, count))
				}
				setSweepRow(tbl, pname, row, v, final, svars, sm.NNode)
				row++
				mpi.Printf("sweep %v = %v done\n", pname, v)
			}
			if tbl == nil {
				return nil
			}
			fnm := shardName(out, rank, size)
			f, err := os.Create(fnm)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := tbl.WriteCSV(f, etable.Tab, etable.Headers); err != nil {
				return err
			}
			mpi.Printf("wrote %v rows to %v\n", row, fnm)
			return nil
		},
	}
	cmd.Flags().String("param", "", "model or coupling parameter to sweep")
	cmd.Flags().Float64("from", 0, "first value of the sweep")
	cmd.Flags().Float64("to", 1, "last value of the sweep")
	cmd.Flags().Int("count", 8, "number of values, spaced evenly from from to to")
	cmd.Flags().String("backend", "array", "backend to run: ref, array, loop, or cuda")
	cmd.Flags().StringP("out", "o", "sweep.csv", "CSV output file, one shard per rank under MPI")
	cmd.Flags().Int64("noise-seed", 1, "seed for pre-drawn noise in stochastic scenarios")
	return cmd
}

// rankValues returns how many sweep values land on this rank under
// round robin dealing.
func rankValues(rank, size, count int) int {
	n := 0
	for vi := rank; vi < count; vi += size {
		n++
	}
	return n
}

// sweepTable schema: the swept value, then one tensor column of nnode
// cells per state variable holding the final state.
func sweepTable(pname string, svars []string, nnode, rows int) *etable.Table {
	sch := etable.Schema{
		{pname, etensor.FLOAT64, nil, nil},
	}
	for _, sv := range svars {
		sch = append(sch, etable.Column{Name: sv, Type: etensor.FLOAT32, CellShape: []int{nnode}})
	}
	dt := &etable.Table{}
	dt.SetFromSchema(sch, rows)
	return dt
}

func setSweepRow(dt *etable.Table, pname string, row int, v float64, final []float32, svars []string, nnode int) {
	dt.SetCellFloat(pname, row, v)
	for sv := range svars {
		tsr := etensor.NewFloat32([]int{nnode}, nil, nil)
		copy(tsr.Values, final[sv*nnode:(sv+1)*nnode])
		dt.SetCellTensor(svars[sv], row, tsr)
	}
}

// shardName appends the rank to the output name when running on more
// than one rank.
func shardName(out string, rank, size int) string {
	if size <= 1 {
		return out
	}
	ext := filepath.Ext(out)
	return fmt.Sprintf("%v_r%02d%v", strings.TrimSuffix(out, ext), rank, ext)
}
