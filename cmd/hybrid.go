/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"io"
	"os"

	"github.com/notargets/gomg/model_problems/Hybridization1D"
	"github.com/spf13/cobra"
)

// HybridCmd represents the hybrid command
var HybridCmd = &cobra.Command{
	Use:   "hybrid",
	Short: "Hybridized mixed solve of -u'' + u = f on the unit interval",
	Long: `
Condenses a broken mixed discretization onto the vertex multiplier with cell
local Schur complements, solves the trace system and recovers u and sigma cell
by cell. Reports the L2 error against u = sin(pi x).

gomg hybrid -k 32 -n 2 -o hybrid.csv`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		K, _ := cmd.Flags().GetInt("k")
		N, _ := cmd.Flags().GetInt("n")
		refs, _ := cmd.Flags().GetInt("refinements")
		output, _ := cmd.Flags().GetString("output")
		return RunHybrid(cmd.OutOrStdout(), K, N, refs, output)
	},
}

func init() {
	rootCmd.AddCommand(HybridCmd)
	HybridCmd.Flags().IntP("k", "k", 8, "number of cells")
	HybridCmd.Flags().IntP("n", "n", 1, "flux polynomial degree, u has degree n-1")
	HybridCmd.Flags().IntP("refinements", "r", 0, "repeat with the cell count doubled this many times")
	HybridCmd.Flags().StringP("output", "o", "", "write the finest solution to this CSV file")
}

func RunHybrid(w io.Writer, K, N, refs int, output string) (err error) {
	var (
		h    *Hybridization1D.Hybrid1D
		prev float64
	)
	printf(w, "%6s %12s %8s %8s\n", "cells", "L2 error", "ratio", "its")
	for i := 0; i <= refs; i++ {
		if h, err = Hybridization1D.NewHybrid1D(K<<i, N, Hybridization1D.WithLogger(logger)); err != nil {
			return
		}
		if err = h.Solve(); err != nil {
			return
		}
		e := h.Error()
		ratio := 0.
		if i > 0 {
			ratio = prev / e
		}
		printf(w, "%6d %12.4e %8.3f %8d\n", h.K, e, ratio, h.Iterations)
		prev = e
	}
	if output == "" {
		return
	}
	var f *os.File
	if f, err = os.Create(output); err != nil {
		return
	}
	defer f.Close()
	return h.WriteCSV(f)
}
