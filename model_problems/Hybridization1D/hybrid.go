package Hybridization1D

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/notargets/gomg/DG1D"
	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
	"github.com/notargets/gomg/slate"
	"github.com/notargets/gomg/solver"
	"github.com/notargets/gomg/utils"
)

/*
	Mixed form of -u'' + u = f on [0,1] with u = 0 on the boundary:

		sigma + u' = 0,  sigma' + u = f

	sigma is in a broken DG(k) space, u in DG(k-1) and the multiplier lambda,
	the trace of u, lives on the mesh vertices. Cell blocks:

		A = [ Mv  -B^T ]   K = [ C  0 ]   R = [ 0 ]
		    [ B    Mp  ]                      [ F ]

	with B_ij = int phi_i tau_j' dx and C_aj = tau_j(x_a) n_a. Flux continuity
	is K X = 0 summed over the cells sharing a vertex, which reduces to

		S lambda = E,  S = -K A^-1 K^T,  E = -K A^-1 R
*/

type Hybrid1D struct {
	K, Degree        int
	Mesh             *mesh.Mesh
	Flux, Scalar, Tr *fem.FunctionSpace
	W                *fem.FunctionSpace // Flux * Scalar
	Sigma, U, Lambda *fem.Function
	Source, Exact    func(x float64) float64
	Params           solver.Parameters
	Iterations       int

	logger *slog.Logger
}

type Option func(h *Hybrid1D)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hybrid1D) { h.logger = logger }
}

// WithParameters selects the Krylov method for the trace system.
func WithParameters(p solver.Parameters) Option {
	return func(h *Hybrid1D) { h.Params = p }
}

// NewHybrid1D sets up K cells with flux degree k >= 1 and the manufactured
// solution u = sin(pi x).
func NewHybrid1D(K, degree int, opts ...Option) (h *Hybrid1D, err error) {
	if degree < 1 {
		return nil, fmt.Errorf("flux degree must be at least 1, have %d", degree)
	}
	h = &Hybrid1D{
		K:      K,
		Degree: degree,
		Source: func(x float64) float64 { return (1 + math.Pi*math.Pi) * math.Sin(math.Pi*x) },
		Exact:  func(x float64) float64 { return math.Sin(math.Pi * x) },
		Params: solver.Parameters{KSPType: "cg", PCType: "jacobi", RTol: 1.e-12},
		logger: utils.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err = h.Params.Validate(); err != nil {
		return
	}
	if h.Mesh, err = mesh.UnitIntervalMesh(K, mesh.WithName(fmt.Sprintf("hybrid%d", K))); err != nil {
		return
	}
	if h.Flux, err = fem.NewFunctionSpace(h.Mesh, fem.NewFiniteElement(fem.DG, degree)); err != nil {
		return
	}
	if h.Scalar, err = fem.NewFunctionSpace(h.Mesh, fem.NewFiniteElement(fem.DG, degree-1)); err != nil {
		return
	}
	if h.Tr, err = fem.NewFunctionSpace(h.Mesh, fem.NewFiniteElement(fem.Trace, 0)); err != nil {
		return
	}
	if h.W, err = fem.NewMixedFunctionSpace(h.Flux, h.Scalar); err != nil {
		return
	}
	h.Sigma = fem.NewFunction(h.Flux, "sigma")
	h.U = fem.NewFunction(h.Scalar, "u")
	h.Lambda = fem.NewFunction(h.Tr, "lambda")
	return
}

func (h *Hybrid1D) fluxMass() slate.Tensor {
	return slate.Matrix("Mv", h.Flux, h.Flux, func(_ int, x0, x1 float64) utils.Matrix {
		return h.Flux.Ref.MassMatrix().Scale(0.5 * (x1 - x0))
	})
}

func (h *Hybrid1D) scalarMass() slate.Tensor {
	return slate.Matrix("Mp", h.Scalar, h.Scalar, func(_ int, x0, x1 float64) utils.Matrix {
		return h.Scalar.Ref.MassMatrix().Scale(0.5 * (x1 - x0))
	})
}

func (h *Hybrid1D) localDiv() (B utils.Matrix) {
	var (
		tau, phi = h.Flux.Ref, h.Scalar.Ref
		rq, wq   = DG1D.Quadrature(h.Degree + 1)
	)
	B = utils.NewMatrix(phi.Np, tau.Np)
	for q, r := range rq.DataP {
		p, dt := phi.Basis(r), tau.GradBasis(r)
		for i := range p {
			for j := range dt {
				B.AddAt(i, j, wq.AtVec(q)*p[i]*dt[j])
			}
		}
	}
	return
}

// div is B, the same on every cell since the Jacobian cancels.
func (h *Hybrid1D) div() slate.Tensor {
	B := h.localDiv()
	return slate.Matrix("B", h.Scalar, h.Flux, func(_ int, _, _ float64) utils.Matrix {
		return B
	})
}

func (h *Hybrid1D) localTrace() (C utils.Matrix) {
	tau := h.Flux.Ref
	C = utils.NewMatrix(2, tau.Np)
	C.SetRow(0, tau.Basis(-1))
	C.SetRow(1, tau.Basis(1))
	for j := 0; j < tau.Np; j++ {
		C.Set(0, j, -C.At(0, j))
	}
	return
}

// trace is C, the outward normal flux at the two vertices of a cell.
func (h *Hybrid1D) trace() slate.Tensor {
	C := h.localTrace()
	return slate.Matrix("C", h.Tr, h.Flux, func(_ int, _, _ float64) utils.Matrix {
		return C
	})
}

func (h *Hybrid1D) load() slate.Tensor {
	var (
		ref    = h.Scalar.Ref
		rq, wq = DG1D.Quadrature(ref.Degree + 3)
	)
	return slate.Vector("F", h.Scalar, func(_ int, x0, x1 float64) utils.Matrix {
		F := utils.NewMatrix(ref.Np, 1)
		for q, r := range rq.DataP {
			fx := h.Source(DG1D.ToPhysical(r, x0, x1)) * wq.AtVec(q) * 0.5 * (x1 - x0)
			for i, p := range ref.Basis(r) {
				F.AddAt(i, 0, fx*p)
			}
		}
		return F
	})
}

// Mixed returns the cell operator A, the multiplier operator K and the load R
// on the mixed space.
func (h *Hybrid1D) Mixed() (A, Kt, R slate.Tensor) {
	var (
		nv, np = h.Flux.Ref.Np, h.Scalar.Ref.Np
		B      = h.localDiv()
		C      = h.localTrace()
		mv     = h.fluxMass()
		mp     = h.scalarMass()
		load   = h.load()
	)
	A = slate.Matrix("A", h.W, h.W, func(k int, x0, x1 float64) utils.Matrix {
		var (
			Ak    = utils.NewMatrix(nv+np, nv+np)
			Mv, _ = mv.Local(k)
			Mp, _ = mp.Local(k)
		)
		for i := 0; i < nv; i++ {
			for j := 0; j < nv; j++ {
				Ak.Set(i, j, Mv.At(i, j))
			}
			for j := 0; j < np; j++ {
				Ak.Set(i, nv+j, -B.At(j, i))
				Ak.Set(nv+j, i, B.At(j, i))
			}
		}
		for i := 0; i < np; i++ {
			for j := 0; j < np; j++ {
				Ak.Set(nv+i, nv+j, Mp.At(i, j))
			}
		}
		return Ak
	})
	Kt = slate.Matrix("K", h.Tr, h.W, func(_ int, _, _ float64) utils.Matrix {
		Kk := utils.NewMatrix(2, nv+np)
		for a := 0; a < 2; a++ {
			for j := 0; j < nv; j++ {
				Kk.Set(a, j, C.At(a, j))
			}
		}
		return Kk
	})
	R = slate.Vector("R", h.W, func(k int, _, _ float64) utils.Matrix {
		Rk := utils.NewMatrix(nv+np, 1)
		F, _ := load.Local(k)
		for i := 0; i < np; i++ {
			Rk.Set(nv+i, 0, F.At(i, 0))
		}
		return Rk
	})
	return
}

// Solve condenses onto the trace, solves for lambda and recovers u and sigma
// cell by cell.
func (h *Hybrid1D) Solve() (err error) {
	var (
		A, Kt, R = h.Mixed()
		Ainv     = slate.Inverse(A)
		S        = slate.Negative(slate.Product(slate.Product(Kt, Ainv), slate.Transpose(Kt)))
		E        = slate.Negative(slate.Product(slate.Product(Kt, Ainv), R))
		Sg       utils.DOK
		Eg       []float64
	)
	if Sg, err = slate.AssembleMatrix(S); err != nil {
		return
	}
	if Eg, err = slate.AssembleVector(E); err != nil {
		return
	}
	slate.ApplyDirichlet(Sg, Eg, h.Tr.BoundaryNodes(), nil)
	var (
		Scsr   = Sg.ToCSR()
		lambda = make([]float64, len(Eg))
		pc     solver.Preconditioner
		p      = h.Params
	)
	switch p.PCType {
	case "jacobi":
		pc, err = solver.Jacobi(Scsr)
	case "lu":
		pc, err = solver.LU(Scsr)
	default:
		pc = solver.Identity
	}
	if err != nil {
		return
	}
	switch p.KSPType {
	case "cg":
		h.Iterations, err = solver.CG(Scsr, Eg, lambda, pc, p.RTol, p.ATol, p.MaxIt)
	case "richardson":
		h.Iterations, err = solver.Richardson(Scsr, Eg, lambda, pc, p.RTol, p.ATol, p.MaxIt)
	default:
		lambda, err = pc(Eg)
		h.Iterations = 1
	}
	if err != nil {
		return fmt.Errorf("trace system: %w", err)
	}
	h.Lambda.SetValues(lambda)
	if err = h.backSubstitute(); err != nil {
		return
	}
	h.logger.Info("hybridized solve", "cells", h.K, "degree", h.Degree,
		"trace_dofs", len(lambda), "iterations", h.Iterations, "error", h.Error())
	return
}

// backSubstitute recovers
//
//	u     = (B Mv^-1 B^T + Mp)^-1 (F + B Mv^-1 C^T lambda)
//	sigma = Mv^-1 (B^T u - C^T lambda)
func (h *Hybrid1D) backSubstitute() (err error) {
	var (
		B, BT   = h.div(), slate.Transpose(h.div())
		CT      = slate.Transpose(h.trace())
		MvInv   = slate.Inverse(h.fluxMass())
		Ct      = slate.Action(CT, h.Lambda)
		schur   = slate.Sum(slate.Product(slate.Product(B, MvInv), BT), h.scalarMass())
		rhs     = slate.Sum(h.load(), slate.Product(slate.Product(B, MvInv), Ct))
		u, flux []float64
	)
	if u, err = slate.AssembleVector(slate.Product(slate.Inverse(schur), rhs)); err != nil {
		return
	}
	h.U.SetValues(u)
	sigma := slate.Product(MvInv, slate.Sum(slate.Action(BT, h.U), slate.Negative(Ct)))
	if flux, err = slate.AssembleVector(sigma); err != nil {
		return
	}
	h.Sigma.SetValues(flux)
	return
}

// Error is the L2 error of u against the manufactured solution.
func (h *Hybrid1D) Error() float64 {
	return h.U.Norm(h.Exact)
}

// WriteCSV writes u, the exact solution and sigma at the flux nodes. u is
// interpolated into the flux space, which contains it.
func (h *Hybrid1D) WriteCSV(w io.Writer) (err error) {
	var (
		I     = h.Scalar.Ref.InterpMatrix(h.Flux.Ref.R.DataP)
		uf    = fem.NewFunction(h.Flux, "u")
		exact = fem.NewFunction(h.Flux, "exact")
		vals  []float64
	)
	interp := slate.Matrix("I", h.Flux, h.Scalar, func(_ int, _, _ float64) utils.Matrix {
		return I
	})
	if vals, err = slate.AssembleVector(slate.Action(interp, h.U)); err != nil {
		return
	}
	uf.SetValues(vals)
	if err = exact.Interpolate(h.Exact); err != nil {
		return
	}
	return fem.WriteCSV(w, uf, exact, h.Sigma)
}
