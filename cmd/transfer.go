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
	"sort"
	"time"

	"github.com/notargets/avs/chart2d"
	utils2 "github.com/notargets/avs/utils"
	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/parloop"
	"github.com/spf13/cobra"
)

// TransferCmd represents the transfer command
var TransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Prolong, restrict and inject a field through every level of a hierarchy",
	Long: `
Interpolates f(x) = sin(2 pi x) + x on the coarsest level, prolongs it to the
finest, injects it back and restricts the fine load vector of f, reporting the
difference from the directly computed field at every level.

gomg transfer -k 4 -r 3 -n 2 -f DG`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			s     *Setup
			graph bool
			delay int
		)
		graph, _ = cmd.Flags().GetBool("graph")
		delay, _ = cmd.Flags().GetInt("delay")
		if s, err = setupFromFlags(cmd); err != nil {
			return
		}
		return RunTransfer(cmd.OutOrStdout(), s, graph, time.Duration(delay)*time.Millisecond)
	},
}

func init() {
	rootCmd.AddCommand(TransferCmd)
	addProblemFlags(TransferCmd)
	TransferCmd.Flags().BoolP("graph", "g", false, "display the coarse and prolonged fields")
	TransferCmd.Flags().IntP("delay", "d", 2000, "milliseconds to keep the graph up")
}

func testField(x float64) float64 { return math.Sin(2*math.Pi*x) + x }

func maxDiff(a, b []float64) (d float64) {
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return
}

func RunTransfer(w io.Writer, s *Setup, graph bool, delay time.Duration) (err error) {
	var (
		Vs   []*fem.FunctionSpace
		L    = fem.LinearForm{Source: testField}
		nlev = s.MH.Len()
	)
	if Vs, err = s.Spaces(); err != nil {
		return
	}
	interp := make([]*fem.Function, nlev)
	for l, V := range Vs {
		interp[l] = fem.NewFunction(V, fmt.Sprintf("f_%d", l))
		if err = interp[l].Interpolate(testField); err != nil {
			return
		}
	}

	printf(w, "%s on %d levels, %d ranks\n", s.FE, nlev, s.IP.Ranks)
	printf(w, "%6s %8s %14s %14s %14s\n", "level", "dofs", "prolong_err", "inject_diff", "restrict_diff")
	// prolong the coarse interpolant up the hierarchy
	up := make([]*fem.Function, nlev)
	up[0] = interp[0]
	for l := 1; l < nlev; l++ {
		up[l] = fem.NewFunction(Vs[l], fmt.Sprintf("Pf_%d", l))
		if err = s.TM.Prolong(up[l-1], up[l]); err != nil {
			return
		}
	}
	// inject the fine interpolant and restrict the fine load down the hierarchy
	down := make([]*fem.Function, nlev)
	duals := make([]*fem.Function, nlev)
	down[nlev-1] = interp[nlev-1]
	if duals[nlev-1], err = fem.AssembleVector(Vs[nlev-1], L); err != nil {
		return
	}
	for l := nlev - 2; l >= 0; l-- {
		down[l] = fem.NewFunction(Vs[l], fmt.Sprintf("If_%d", l))
		if err = s.TM.Inject(down[l+1], down[l]); err != nil {
			return
		}
		duals[l] = fem.NewFunction(Vs[l], fmt.Sprintf("Rb_%d", l))
		if err = s.TM.Restrict(duals[l+1], duals[l]); err != nil {
			return
		}
	}
	for l, V := range Vs {
		var b *fem.Function
		if b, err = fem.AssembleVector(V, L); err != nil {
			return
		}
		printf(w, "%6d %8d %14.6e %14.6e %14.6e\n", l, V.DofCount(),
			up[l].Norm(testField), maxDiff(down[l].Values(), interp[l].Values()),
			maxDiff(duals[l].Values(), b.Values()))
	}
	if graph {
		err = plotFields(s.IP.XMin, s.IP.XMax, Vs[0], Vs[nlev-1], interp[0], up[nlev-1], delay)
	}
	return
}

// fieldLine returns the first component of f as interleaved XY pairs in
// ascending x, the layout chart2d.AddLine takes.
func fieldLine(V *fem.FunctionSpace, f *fem.Function) (xy []float32, err error) {
	var loc *parloop.Dat
	if loc, err = fem.PhysicalNodeLocations(V); err != nil {
		return
	}
	var (
		x     = loc.Data()
		vals  = f.Values()
		bs    = V.Element.ValueSize
		order = make([]int, len(x))
	)
	for n := range order {
		order[n] = n
	}
	sort.SliceStable(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })
	xy = make([]float32, 0, 2*len(x))
	for _, n := range order {
		xy = append(xy, float32(x[n]), float32(vals[n*bs]))
	}
	return
}

// crossHairs marks every point of a polyline with a small cross.
func crossHairs(xy []float32, size float32) (lines []float32) {
	for i := 0; i < len(xy)/2; i++ {
		x, y := xy[2*i], xy[2*i+1]
		lines = append(lines,
			x-size, y, x+size, y,
			x, y-size, x, y+size,
		)
	}
	return
}

func plotFields(xmin, xmax float64, coarse, fine *fem.FunctionSpace, fc, ff *fem.Function, delay time.Duration) (err error) {
	var coarseXY, fineXY []float32
	if coarseXY, err = fieldLine(coarse, fc); err != nil {
		return
	}
	if fineXY, err = fieldLine(fine, ff); err != nil {
		return
	}
	ch := chart2d.NewChart2D(float32(xmin), float32(xmax), -1.5, 2,
		1024, 1024, utils2.WHITE, utils2.BLACK)
	ch.AddLine(fineXY, utils2.RED, utils2.POLYLINE)
	ch.AddLine(coarseXY, utils2.BLUE, utils2.POLYLINE)
	ch.AddLine(crossHairs(coarseXY, 0.02*float32(xmax-xmin)), utils2.GREEN)
	time.Sleep(delay)
	return
}
