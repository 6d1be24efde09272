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
	"math"
	"os"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/solver"
	"github.com/spf13/cobra"
)

// MGCmd represents the mg command
var MGCmd = &cobra.Command{
	Use:   "mg",
	Short: "Solve a Helmholtz problem on the finest level of a hierarchy",
	Long: `
Solves -a u'' + b u = f with natural boundary conditions, a = Stiffness and
b = Mass from the input, for the manufactured solution u = cos(pi x) scaled
to the domain. The solver is chosen with the Solver block of the input.

gomg mg -I input.yaml -o solution.csv`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var s *Setup
		if s, err = setupFromFlags(cmd); err != nil {
			return
		}
		output, _ := cmd.Flags().GetString("output")
		return RunMG(cmd.OutOrStdout(), s, output)
	},
}

func init() {
	rootCmd.AddCommand(MGCmd)
	addProblemFlags(MGCmd)
	MGCmd.Flags().StringP("output", "o", "", "write the solution to this CSV file")
}

// helmholtz returns the exact solution and source for the input's domain
// and coefficients.
func helmholtz(s *Setup) (exact, source func(x float64) float64) {
	var (
		x0 = s.IP.XMin
		w  = math.Pi / (s.IP.XMax - s.IP.XMin)
		c  = s.IP.Stiffness*w*w + s.IP.Mass
	)
	exact = func(x float64) float64 { return math.Cos(w * (x - x0)) }
	source = func(x float64) float64 { return c * exact(x) }
	return
}

func RunMG(w io.Writer, s *Setup, output string) (err error) {
	if !s.FE.Continuous() || s.FE.Family == fem.Trace {
		return fmt.Errorf("mg needs a Lagrange element, have %s", s.FE)
	}
	var (
		V             *fem.FunctionSpace
		sol           *solver.LinearVariationalSolver
		exact, source = helmholtz(s)
		fine          = s.MH.Meshes[s.MH.Len()-1]
	)
	if V, err = fem.NewFunctionSpace(fine, s.FE); err != nil {
		return
	}
	uh := fem.NewFunction(V, "uh")
	problem := &solver.LinearVariationalProblem{
		A: fem.BilinearForm{Stiffness: s.IP.Stiffness, Mass: s.IP.Mass},
		L: fem.LinearForm{Source: source},
		U: uh,
	}
	if sol, err = solver.NewLinearVariationalSolver(problem, s.IP.Solver, s.TM, solver.WithLogger(logger)); err != nil {
		return
	}
	if err = sol.Solve(); err != nil {
		return
	}
	printf(w, "%s: %d dofs on %d levels\n", sol.Params, V.DofCount(), s.MH.Len())
	printf(w, "iterations = %d, residual = %10.4e, L2 error = %10.4e\n",
		sol.Iterations, sol.Residual(), uh.Norm(exact))
	if output == "" {
		return
	}
	ue := fem.NewFunction(V, "exact")
	if err = ue.Interpolate(exact); err != nil {
		return
	}
	var f *os.File
	if f, err = os.Create(output); err != nil {
		return
	}
	defer f.Close()
	return fem.WriteCSV(f, uh, ue)
}
