package DG1D

import (
	"fmt"

	"github.com/notargets/gomg/utils"
)

// LagrangeElement1D is a nodal Lagrange basis on the reference interval
// [-1,1]. Degree 0 uses the cell midpoint, higher degrees use the
// Legendre-Gauss-Lobatto nodes so the first and last nodes sit on the
// cell vertices.
type LagrangeElement1D struct {
	Degree, Np int
	R          utils.Vector // Reference node locations, ascending
	V, Vinv    utils.Matrix // Nodal Vandermonde and its inverse
}

func NewLagrangeElement1D(degree int) (le *LagrangeElement1D, err error) {
	if degree < 0 {
		err = fmt.Errorf("invalid element degree %d", degree)
		return
	}
	le = &LagrangeElement1D{
		Degree: degree,
		Np:     degree + 1,
		R:      JacobiGL(0, 0, degree),
	}
	le.V = Vandermonde1D(degree, le.R)
	if le.Vinv, err = le.V.Inverse(); err != nil {
		return nil, fmt.Errorf("degree %d Vandermonde: %w", degree, err)
	}
	le.V.SetReadOnly("V")
	le.Vinv.SetReadOnly("Vinv")
	return
}

// Basis evaluates every nodal basis function at reference coordinate r.
// Nodal functions are phi = Vinv^T * P(r) with P the orthonormal modes.
func (le *LagrangeElement1D) Basis(r float64) (phi []float64) {
	return le.Vinv.Transpose().MulVec(JacobiPAll(r, 0, 0, le.Degree))
}

func (le *LagrangeElement1D) GradBasis(r float64) (dphi []float64) {
	return le.Vinv.Transpose().MulVec(GradJacobiPAll(r, 0, 0, le.Degree))
}

// InterpMatrix returns I[i][j] = phi_j(rs[i]).
func (le *LagrangeElement1D) InterpMatrix(rs []float64) (I utils.Matrix) {
	I = utils.NewMatrix(len(rs), le.Np)
	for i, r := range rs {
		I.SetRow(i, le.Basis(r))
	}
	return
}

// MassMatrix is the reference mass matrix inv(V V^T).
func (le *LagrangeElement1D) MassMatrix() (M utils.Matrix) {
	var (
		err error
	)
	if M, err = le.V.Mul(le.V.Transpose()).Inverse(); err != nil {
		panic(err)
	}
	return
}

// StiffnessMatrix returns S[i][j] = int phi_i' phi_j' dr on the reference cell.
func (le *LagrangeElement1D) StiffnessMatrix() (S utils.Matrix) {
	var (
		rq, wq = Quadrature(le.Degree + 1)
	)
	S = utils.NewMatrix(le.Np, le.Np)
	for q, r := range rq.DataP {
		dphi := le.GradBasis(r)
		for i := 0; i < le.Np; i++ {
			for j := 0; j < le.Np; j++ {
				S.AddAt(i, j, wq.AtVec(q)*dphi[i]*dphi[j])
			}
		}
	}
	return
}

// Quadrature returns an n point Gauss-Legendre rule on [-1,1], exact for
// polynomials of degree 2n-1.
func Quadrature(n int) (X, W utils.Vector) {
	if n < 1 {
		n = 1
	}
	return JacobiGQ(0, 0, n-1)
}

// ToReference maps x in [x0,x1] to the reference interval.
func ToReference(x, x0, x1 float64) float64 {
	return 2*(x-x0)/(x1-x0) - 1
}

// ToPhysical maps r in [-1,1] to [x0,x1].
func ToPhysical(r, x0, x1 float64) float64 {
	return x0 + 0.5*(r+1)*(x1-x0)
}
