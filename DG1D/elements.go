package DG1D

import (
	"math"

	"github.com/notargets/gomg/utils"
	"gonum.org/v1/gonum/mat"
)

// JacobiGL returns the N+1 Gauss-Lobatto points of the Jacobi polynomial
// P^(alpha,beta)_N, in ascending order including both endpoints.
func JacobiGL(alpha, beta float64, N int) (X utils.Vector) {
	var (
		x = make([]float64, N+1)
	)
	if N == 0 {
		x[0] = 0
		return utils.NewVector(1, x)
	}
	x[0] = -1
	x[N] = 1
	if N == 1 {
		return utils.NewVector(N+1, x)
	}
	xint, _ := JacobiGQ(alpha+1, beta+1, N-2)
	for i := 1; i < N; i++ {
		x[i] = xint.AtVec(i - 1)
	}
	X = utils.NewVector(len(x), x)
	return
}

// JacobiGQ returns the N+1 Gauss quadrature points and weights for the
// weight function (1-x)^alpha (1+x)^beta.
func JacobiGQ(alpha, beta float64, N int) (X, W utils.Vector) {
	var (
		x, w   []float64
		fac    float64
		h1, d0 []float64
		d1     []float64
	)
	if N == 0 {
		x = []float64{-(alpha - beta) / (alpha + beta + 2.)}
		w = []float64{2.}
		return utils.NewVector(len(x), x), utils.NewVector(len(w), w)
	}

	h1 = make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: -(alpha^2-beta^2)./(h1+2)./h1, the symmetric Jacobi
	// matrix J + J^T doubles the half value on the diagonal
	d0 = make([]float64, N+1)
	fac = -(alpha*alpha - beta*beta)
	for i := 0; i < N+1; i++ {
		val := h1[i]
		d0[i] = fac / (val * (val + 2.))
	}
	// Handle division by zero
	eps := 1.e-16
	if alpha+beta < 10*eps {
		d0[0] = 0.
	}

	// 1st upper diagonal: diag(2./(h1(1:N)+2).*sqrt((1:N).*((1:N)+alpha+beta) .* ((1:N)+alpha).*((1:N)+beta)./(h1(1:N)+1)./(h1(1:N)+3)),1);
	var ip1 float64
	d1 = make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 = float64(i + 1)
		val := h1[i]
		d1[i] = 2. / (val + 2.)
		d1[i] *= math.Sqrt(ip1 * (ip1 + alpha + beta) * (ip1 + alpha) * (ip1 + beta) / ((val + 1.) * (val + 3.)))
	}

	JJ := mat.NewSymDense(N+1, nil)
	for i := 0; i < N+1; i++ {
		JJ.SetSym(i, i, d0[i])
		if i < N {
			JJ.SetSym(i, i+1, d1[i])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(nil)
	X = utils.NewVector(N+1, x)

	VVr := mat.NewDense(len(x), len(x), nil)
	eig.VectorsTo(VVr)
	W = utils.NewVector(len(x), VVr.RawRowView(0)).POW(2).Scale(gamma0(alpha, beta))
	return X, W
}

// JacobiP evaluates the orthonormal Jacobi polynomial of order N at r.
func JacobiP(r utils.Vector, alpha, beta float64, N int) (p []float64) {
	p = make([]float64, r.Len())
	for i, ri := range r.DataP {
		p[i] = JacobiPAll(ri, alpha, beta, N)[N]
	}
	return
}

// JacobiPAll evaluates the orthonormal Jacobi polynomials of order 0..N at a
// single point.
func JacobiPAll(r, alpha, beta float64, N int) (p []float64) {
	p = make([]float64, N+1)
	p[0] = 1. / math.Sqrt(gamma0(alpha, beta))
	if N == 0 {
		return
	}
	ab := alpha + beta
	p[1] = ((ab+2.0)*r/2.0 + (alpha-beta)/2.0) / math.Sqrt(gamma1(alpha, beta))
	if N == 1 {
		return
	}
	a1 := alpha + 1.
	b1 := beta + 1.
	ab1 := ab + 1.
	aold := 2.0 * math.Sqrt(a1*b1/(ab+3.0)) / (ab + 2.0)
	for i := 0; i < N-1; i++ {
		ip1 := float64(i + 1)
		ip2 := ip1 + 1
		h1 := 2.0*ip1 + ab
		anew := 2.0 / (h1 + 2.0) * math.Sqrt(ip2*(ip1+ab1)*(ip1+a1)*(ip1+b1)/(h1+1.0)/(h1+3.0))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2.0)
		p[i+2] = (-aold*p[i] + (r-bnew)*p[i+1]) / anew
		aold = anew
	}
	return
}

// GradJacobiPAll evaluates d/dr of the orthonormal Jacobi polynomials of
// order 0..N at a single point.
func GradJacobiPAll(r, alpha, beta float64, N int) (dp []float64) {
	dp = make([]float64, N+1)
	if N == 0 {
		return
	}
	p := JacobiPAll(r, alpha+1, beta+1, N-1)
	for n := 1; n <= N; n++ {
		fN := float64(n)
		dp[n] = math.Sqrt(fN*(fN+alpha+beta+1)) * p[n-1]
	}
	return
}

func GradJacobiP(r utils.Vector, alpha, beta float64, N int) (p []float64) {
	p = make([]float64, r.Len())
	for i, ri := range r.DataP {
		p[i] = GradJacobiPAll(ri, alpha, beta, N)[N]
	}
	return
}

func Vandermonde1D(N int, R utils.Vector) (V utils.Matrix) {
	V = utils.NewMatrix(R.Len(), N+1)
	for i, r := range R.DataP {
		V.SetRow(i, JacobiPAll(r, 0, 0, N))
	}
	return
}

func GradVandermonde1D(r utils.Vector, N int) (Vr utils.Matrix) {
	Vr = utils.NewMatrix(r.Len(), N+1)
	for i, ri := range r.DataP {
		Vr.SetRow(i, GradJacobiPAll(ri, 0, 0, N))
	}
	return
}
