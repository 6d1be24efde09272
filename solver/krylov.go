package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/gomg/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrNotConverged = errors.New("linear solver did not converge")

// Operator is anything that can be applied to a vector.
type Operator interface {
	MulVec(x []float64) []float64
}

// Preconditioner returns an approximation of A^-1 r.
type Preconditioner func(r []float64) ([]float64, error)

func Identity(r []float64) ([]float64, error) {
	return append([]float64(nil), r...), nil
}

// Jacobi scales by the inverse diagonal of A.
func Jacobi(A utils.CSR) (Preconditioner, error) {
	d := A.Diagonal()
	for i, v := range d {
		if v == 0 {
			return nil, fmt.Errorf("zero diagonal entry in row %d", i)
		}
	}
	return func(r []float64) ([]float64, error) {
		z := make([]float64, len(r))
		for i := range r {
			z[i] = r[i] / d[i]
		}
		return z, nil
	}, nil
}

// LU factors A densely.
func LU(A utils.CSR) (Preconditioner, error) {
	var (
		lu mat.LU
		n  = len(A.Diagonal())
	)
	lu.Factorize(A.ToDense().M)
	if cond := lu.Cond(); math.IsInf(cond, 1) || cond > 1.e15 {
		return nil, fmt.Errorf("LU of %dx%d matrix: %w", n, n, mat.Condition(cond))
	}
	return func(r []float64) ([]float64, error) {
		var x mat.VecDense
		if err := lu.SolveVecTo(&x, false, mat.NewVecDense(n, append([]float64(nil), r...))); err != nil {
			return nil, err
		}
		return x.RawVector().Data, nil
	}, nil
}

func residual(A Operator, b, x []float64) (r []float64) {
	r = A.MulVec(x)
	floats.SubTo(r, b, r)
	return
}

// CG solves A x = b for symmetric definite A starting from x, which is
// updated in place. Convergence is ||r|| <= max(rtol*||b||, atol).
func CG(A Operator, b, x []float64, pc Preconditioner, rtol, atol float64, maxIt int) (its int, err error) {
	var (
		r     = residual(A, b, x)
		tol   = math.Max(rtol*floats.Norm(b, 2), atol)
		z, p  []float64
		rz    float64
		alpha float64
	)
	if floats.Norm(r, 2) <= tol {
		return
	}
	if z, err = pc(r); err != nil {
		return
	}
	p = append([]float64(nil), z...)
	rz = floats.Dot(r, z)
	for its = 1; its <= maxIt; its++ {
		Ap := A.MulVec(p)
		pAp := floats.Dot(p, Ap)
		if pAp == 0 {
			return its, fmt.Errorf("CG breakdown at iteration %d: %w", its, ErrNotConverged)
		}
		alpha = rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		if floats.Norm(r, 2) <= tol {
			return
		}
		if z, err = pc(r); err != nil {
			return
		}
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	return maxIt, fmt.Errorf("residual %g after %d iterations, tolerance %g: %w",
		floats.Norm(r, 2), maxIt, tol, ErrNotConverged)
}

// Richardson iterates x += pc(b - A x).
func Richardson(A Operator, b, x []float64, pc Preconditioner, rtol, atol float64, maxIt int) (its int, err error) {
	var (
		tol = math.Max(rtol*floats.Norm(b, 2), atol)
		z   []float64
	)
	for its = 0; its <= maxIt; its++ {
		r := residual(A, b, x)
		if floats.Norm(r, 2) <= tol {
			return
		}
		if its == maxIt {
			break
		}
		if z, err = pc(r); err != nil {
			return
		}
		floats.Add(x, z)
	}
	return maxIt, fmt.Errorf("richardson did not reach tolerance %g in %d iterations: %w", tol, maxIt, ErrNotConverged)
}
