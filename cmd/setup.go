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
	"os"

	"github.com/notargets/gomg/InputParameters"
	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
	"github.com/notargets/gomg/mg"
	"github.com/spf13/cobra"
)

const exampleInput = `
########################################
Title: "Helmholtz"
Cells: 2
Refinements: 3
Ranks: 1
Family: Lagrange # DG
Degree: 1
Stiffness: 1.
Mass: 1.
Solver:
  ksp_type: cg # preonly, richardson
  pc_type: mg # none, jacobi, lu
  ksp_rtol: 1.e-10
########################################
`

// Setup is the hierarchy and element shared by the subcommands.
type Setup struct {
	IP  InputParameters.InputParameters
	Reg *mesh.Registry
	MH  *mesh.MeshHierarchy
	TM  *mg.TransferManager
	FE  fem.FiniteElement
}

func addProblemFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters, for example:"+exampleInput)
	cmd.Flags().IntP("cells", "k", 0, "cells in the coarsest mesh")
	cmd.Flags().IntP("refinements", "r", -1, "number of uniform refinements")
	cmd.Flags().IntP("n", "n", -1, "polynomial degree")
	cmd.Flags().StringP("family", "f", "", "element family: Lagrange or DG")
	cmd.Flags().IntP("ranks", "p", 0, "number of ranks the meshes are partitioned over")
}

// processInput reads the input file if one was given, then applies the flags
// that were set on the command line.
func processInput(cmd *cobra.Command) (ip InputParameters.InputParameters, err error) {
	ip = InputParameters.Defaults()
	fl := cmd.Flags()
	if file, _ := fl.GetString("inputConditionsFile"); file != "" {
		var data []byte
		if data, err = os.ReadFile(file); err != nil {
			return
		}
		if err = ip.Parse(data); err != nil {
			return ip, fmt.Errorf("%s: %w", file, err)
		}
	}
	if fl.Changed("cells") {
		ip.Cells, _ = fl.GetInt("cells")
	}
	if fl.Changed("refinements") {
		ip.Refinements, _ = fl.GetInt("refinements")
	}
	if fl.Changed("n") {
		ip.Degree, _ = fl.GetInt("n")
	}
	if fl.Changed("family") {
		ip.Family, _ = fl.GetString("family")
	}
	if fl.Changed("ranks") {
		ip.Ranks, _ = fl.GetInt("ranks")
	}
	err = ip.Validate()
	return
}

func NewSetup(ip InputParameters.InputParameters) (s *Setup, err error) {
	s = &Setup{IP: ip, Reg: mesh.NewRegistry()}
	if s.FE, err = ip.Element(); err != nil {
		return
	}
	var base *mesh.Mesh
	if base, err = mesh.NewIntervalMesh(ip.Cells, ip.XMin, ip.XMax, mesh.WithRanks(ip.Ranks)); err != nil {
		return
	}
	if s.MH, err = mesh.NewMeshHierarchy(s.Reg, base, ip.Refinements); err != nil {
		return
	}
	s.TM = mg.NewTransferManager(s.Reg, mg.WithLogger(logger))
	logger.Debug("hierarchy", "id", s.MH.ID, "levels", s.MH.Len(), "element", s.FE.String())
	return
}

func setupFromFlags(cmd *cobra.Command) (s *Setup, err error) {
	var ip InputParameters.InputParameters
	if ip, err = processInput(cmd); err != nil {
		return
	}
	return NewSetup(ip)
}

// Spaces builds the element's function space on every level, coarsest first.
func (s *Setup) Spaces() (Vs []*fem.FunctionSpace, err error) {
	Vs = make([]*fem.FunctionSpace, s.MH.Len())
	for l, m := range s.MH.Meshes {
		if Vs[l], err = fem.NewFunctionSpace(m, s.FE); err != nil {
			return
		}
	}
	return
}
