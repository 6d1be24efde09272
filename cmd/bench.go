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
	"fmt"
	"io"
	"time"

	"github.com/notargets/gomg/fem"
	"github.com/spf13/cobra"
)

// BenchCmd represents the bench command
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the transfer operators between the two finest levels",
	Long: `
Runs prolong, restrict and inject between the two finest levels of the
hierarchy and reports wall time per call. On Linux the CPU instruction and
cycle counts are read from the hardware counters when the kernel allows it.

gomg bench -k 64 -r 4 -n 3 -p 4 --reps 50`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var s *Setup
		if s, err = setupFromFlags(cmd); err != nil {
			return
		}
		reps, _ := cmd.Flags().GetInt("reps")
		return RunBench(cmd.OutOrStdout(), s, reps)
	},
}

func init() {
	rootCmd.AddCommand(BenchCmd)
	addProblemFlags(BenchCmd)
	BenchCmd.Flags().Int("reps", 20, "calls per operator")
}

// counters is filled by the platform's hardware counter reader.
type counters struct {
	Instructions, Cycles uint64
}

func RunBench(w io.Writer, s *Setup, reps int) (err error) {
	if s.MH.Len() < 2 {
		return fmt.Errorf("bench needs at least one refinement")
	}
	var (
		Vs []*fem.FunctionSpace
		nl = s.MH.Len()
		L  = fem.LinearForm{Source: testField}
	)
	if Vs, err = s.Spaces(); err != nil {
		return
	}
	var (
		uc    = fem.NewFunction(Vs[nl-2], "uc")
		uf    = fem.NewFunction(Vs[nl-1], "uf")
		bc    = fem.NewFunction(Vs[nl-2], "bc")
		bf    *fem.Function
		ops   = s.TM.Transfers(Vs[nl-1])
		cases = []struct {
			name string
			run  func() error
		}{
			{"prolong", func() error { return ops.Prolong(uc, uf) }},
			{"restrict", func() error { return ops.Restrict(bf, bc) }},
			{"inject", func() error { return ops.Inject(uf, uc) }},
		}
	)
	if err = uc.Interpolate(testField); err != nil {
		return
	}
	if bf, err = fem.AssembleVector(Vs[nl-1], L); err != nil {
		return
	}
	printf(w, "%s: %d -> %d dofs, %d ranks, %d reps\n", s.FE, Vs[nl-2].DofCount(), Vs[nl-1].DofCount(), s.IP.Ranks, reps)
	printf(w, "%-10s %14s %16s %16s\n", "operator", "time/call", "instructions", "cycles")
	for _, c := range cases {
		// first call builds the cached maps and kernel
		if err = c.run(); err != nil {
			return
		}
		loop := func() error {
			for i := 0; i < reps; i++ {
				if err := c.run(); err != nil {
					return err
				}
			}
			return nil
		}
		start := time.Now()
		if err = loop(); err != nil {
			return
		}
		elapsed := time.Since(start) / time.Duration(reps)
		ctr, cerr := readCounters(loop)
		if cerr != nil {
			logger.Debug("hardware counters unavailable", "err", cerr)
			printf(w, "%-10s %14s %16s %16s\n", c.name, elapsed, "n/a", "n/a")
			continue
		}
		printf(w, "%-10s %14s %16d %16d\n", c.name, elapsed,
			ctr.Instructions/uint64(reps), ctr.Cycles/uint64(reps))
	}
	return
}
