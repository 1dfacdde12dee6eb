// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// nmgen renders, builds and runs generated simulation kernels for
// networks of coupled neural mass models, from a YAML scenario file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "nmgen",
		Short: "Neural mass network kernel generator",
		Long: `nmgen turns a neural mass model, coupling function and connectome
into simulation kernels.  One scenario definition runs through the
reference integrator, an interpreted whole array kernel, a compiled
plugin kernel, or a CUDA kernel, all producing the same trajectories.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("scenario", "s", "", "scenario YAML file, built-in demo scenario when empty")
	rootCmd.PersistentFlags().StringArray("set", nil, "override a model or coupling parameter as name=value, repeatable")

	rootCmd.AddCommand(
		newInfoCmd(),
		newRenderCmd(),
		newRunCmd(),
		newBenchCmd(),
		newSweepCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nmgen version %s\n", version)
		},
	}
}

// loadScenario reads the scenario selected by the persistent flags and
// records any --set overrides for Build to apply.
func loadScenario(cmd *cobra.Command) (*Scenario, error) {
	path, _ := cmd.Flags().GetString("scenario")
	sets, _ := cmd.Flags().GetStringArray("set")
	sc := DefaultScenario()
	if path != "" {
		var err error
		sc, err = LoadScenario(path)
		if err != nil {
			return nil, err
		}
	}
	sc.Sets = append(sc.Sets, sets...)
	return sc, nil
}
