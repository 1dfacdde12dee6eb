// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emer/nmgen/backend"
	"github.com/emer/nmgen/render"
)

// templateFor maps a backend and kernel selection to a builtin
// template name.
func templateFor(kind backend.BackendKind, kernel string, stochastic bool) (string, error) {
	switch kernel {
	case "dfuns":
		switch kind {
		case backend.Array:
			return "arr-dfuns.tmpl", nil
		case backend.Loop:
			return "loop-dfuns.tmpl", nil
		case backend.Cuda:
			return "cu-dfuns.tmpl", nil
		}
	case "coupling":
		switch kind {
		case backend.Array:
			return "arr-coupling.tmpl", nil
		case backend.Loop:
			return "loop-coupling.tmpl", nil
		case backend.Cuda:
			return "cu-coupling.tmpl", nil
		}
	case "sim":
		switch kind {
		case backend.Array:
			if stochastic {
				return "arr-sim-sde.tmpl", nil
			}
			return "arr-sim-ode.tmpl", nil
		case backend.Loop:
			if stochastic {
				return "loop-sim-sde.tmpl", nil
			}
			return "loop-sim-ode.tmpl", nil
		case backend.Cuda:
			if stochastic {
				return "", fmt.Errorf("the cuda backend has no stochastic simulation kernel")
			}
			return "cu-sim-ode.tmpl", nil
		}
	}
	return "", fmt.Errorf("unknown kernel %q: want dfuns, coupling, or sim", kernel)
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render generated kernel source without building it",
		Long: `render writes the source a backend would compile for the scenario,
for inspection or for building outside this tool.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kernel, _ := cmd.Flags().GetString("kernel")
			bname, _ := cmd.Flags().GetString("backend")
			out, _ := cmd.Flags().GetString("out")
			numbered, _ := cmd.Flags().GetBool("numbered")

			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			sm, err := sc.Build()
			if err != nil {
				return err
			}
			kind, err := backend.KindFromName(bname)
			if err != nil {
				return err
			}
			tmpl, err := templateFor(kind, kernel, sm.Integ.Stochastic())
			if err != nil {
				return err
			}
			content, err := backend.Content(sm)
			if err != nil {
				return err
			}
			src, err := render.New().RenderFile(tmpl, content)
			if err != nil {
				return err
			}
			if numbered {
				src = render.NumberLines(src)
			}
			if out == "" {
				fmt.Print(src)
				return nil
			}
			return os.WriteFile(out, []byte(src), 0666)
		},
	}
	cmd.Flags().String("kernel", "sim", "kernel to render: dfuns, coupling, or sim")
	cmd.Flags().String("backend", "array", "backend dialect: array, loop, or cuda")
	cmd.Flags().StringP("out", "o", "", "write source to file instead of stdout")
	cmd.Flags().Bool("numbered", false, "prefix each line with its number")
	return cmd
}
