package solver

import (
	"fmt"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mg"
	"github.com/notargets/gomg/utils"
)

type mgLevel struct {
	V    *fem.FunctionSpace
	A    utils.CSR
	diag []float64
}

// Multigrid is a V-cycle preconditioner over every level of the hierarchy
// below a space. Coarse operators are rediscretized, smoothing is damped
// Jacobi and the coarsest level is solved with LU. Grid transfers are looked
// up through the TransferManager on every application, so overrides take
// effect while they are installed.
type Multigrid struct {
	levels  []*mgLevel
	coarse  Preconditioner
	tm      *mg.TransferManager
	steps   int
	damping float64
	Applied int
}

func NewMultigrid(tm *mg.TransferManager, V *fem.FunctionSpace, a fem.BilinearForm, steps int, damping float64) (m *Multigrid, err error) {
	mh, level, ok := tm.Registry().Lookup(V.Mesh)
	if !ok {
		return nil, fmt.Errorf("multigrid on %s: %w", V, mg.ErrNotInHierarchy)
	}
	m = &Multigrid{tm: tm, steps: steps, damping: damping}
	for l := 0; l <= level; l++ {
		lv := &mgLevel{V: V}
		if l < level {
			if lv.V, err = fem.NewFunctionSpace(mh.Meshes[l], V.Element); err != nil {
				return
			}
		}
		if lv.A, err = fem.AssembleMatrix(lv.V, a); err != nil {
			return
		}
		lv.diag = lv.A.Diagonal()
		m.levels = append(m.levels, lv)
	}
	if m.coarse, err = LU(m.levels[0].A); err != nil {
		return nil, fmt.Errorf("multigrid coarse level: %w", err)
	}
	return
}

func (m *Multigrid) Levels() int { return len(m.levels) }

// Apply runs one V-cycle on A z = r from a zero guess.
func (m *Multigrid) Apply(r []float64) (z []float64, err error) {
	m.Applied++
	return m.cycle(len(m.levels)-1, r)
}

func (m *Multigrid) smooth(lv *mgLevel, b, x []float64) {
	for s := 0; s < m.steps; s++ {
		res := residual(lv.A, b, x)
		for i := range x {
			x[i] += m.damping * res[i] / lv.diag[i]
		}
	}
}

func (m *Multigrid) cycle(l int, b []float64) (x []float64, err error) {
	if l == 0 {
		return m.coarse(b)
	}
	var (
		fineLv, coarseLv = m.levels[l], m.levels[l-1]
		ops              = m.tm.Transfers(fineLv.V)
	)
	x = make([]float64, len(b))
	m.smooth(fineLv, b, x)

	rf := fem.NewFunction(fineLv.V, "residual")
	rf.SetValues(residual(fineLv.A, b, x))
	rc := fem.NewFunction(coarseLv.V, "coarse_residual")
	if err = ops.Restrict(rf, rc); err != nil {
		return
	}
	var ec []float64
	if ec, err = m.cycle(l-1, rc.Values()); err != nil {
		return
	}
	ecF := fem.NewFunction(coarseLv.V, "coarse_correction")
	ecF.SetValues(ec)
	ef := fem.NewFunction(fineLv.V, "correction")
	if err = ops.Prolong(ecF, ef); err != nil {
		return
	}
	for i, v := range ef.Values() {
		x[i] += v
	}
	m.smooth(fineLv, b, x)
	return
}
