// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emer/nmgen/backend"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the scenario, its memory use, and backend availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			sm, err := sc.Build()
			if err != nil {
				return err
			}
			md := sm.Model.Desc()
			cd := sm.Cfun.Desc()

			fmt.Printf("scenario: %v\n", sc.Name)
			fmt.Printf("model: %v\n", md.Name)
			fmt.Printf("  state vars: %v\n", strings.Join(md.StateVars, ", "))
			fmt.Printf("  coupling terms: %v\n", strings.Join(md.CouplingTerms, ", "))
			for i := range md.Params {
				pr := &md.Params[i]
				if len(pr.Value) > 1 {
					fmt.Printf("    %v: spatial, %v values\n", pr.Name, len(pr.Value))
				} else {
					fmt.Printf("    %v: %v\n", pr.Name, pr.Value[0])
				}
			}
			fmt.Printf("coupling: %v\n", cd.Name)
			fmt.Printf("  pre:  %v\n", cd.PreExpr)
			fmt.Printf("  post: %v\n", cd.PostExpr)
			for i := range cd.Params {
				pr := &cd.Params[i]
				fmt.Printf("    %v: %v\n", pr.Name, pr.Value[0])
			}
			fmt.Printf("network: %v nodes", sm.NNode)
			if sm.Horizon > 1 {
				fmt.Printf(", delays up to %v steps\n", sm.Horizon-1)
			} else {
				fmt.Printf(", no delays\n")
			}
			fmt.Printf("integration: dt %v, %v steps, stochastic %v\n",
				sm.Integ.StepSize(), sm.NSteps, sm.Integ.Stochastic())
			fmt.Print(sm.MemReport())

			fmt.Printf("backends:\n")
			for _, kind := range []backend.BackendKind{backend.Array, backend.Loop, backend.Cuda} {
				bld, err := backend.New(kind)
				if err != nil {
					return err
				}
				if err := bld.Available(); err != nil {
					fmt.Printf("  %v: %v\n", kind, err)
				} else {
					fmt.Printf("  %v: available\n", kind)
				}
			}
			return nil
		},
	}
}
