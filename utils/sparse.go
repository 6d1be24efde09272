package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Index lists global row or column numbers of a local block.
type Index []int

// DOK is the assembly format: entries are accumulated, then frozen with ToCSR.
type DOK struct {
	M *sparse.DOK
}

func NewDOK(nr, nc int) (R DOK) {
	return DOK{sparse.NewDOK(nr, nc)}
}

func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }

func (m DOK) Set(i, j int, val float64) DOK {
	m.M.Set(i, j, val)
	return m
}

// AddAt accumulates val into entry (i,j).
func (m DOK) AddAt(i, j int, val float64) DOK {
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

// AddBlock scatters a dense local block through the row and column index maps.
func (m DOK) AddBlock(rows, cols Index, A mat.Matrix) DOK {
	var (
		nr, nc = A.Dims()
	)
	if nr != len(rows) || nc != len(cols) {
		panic(fmt.Errorf("block dims [%d,%d] do not match index lengths [%d,%d]",
			nr, nc, len(rows), len(cols)))
	}
	for i, gi := range rows {
		for j, gj := range cols {
			if val := A.At(i, j); val != 0 {
				m.AddAt(gi, gj, val)
			}
		}
	}
	return m
}

func (m DOK) ToCSR() CSR {
	return CSR{m.M.ToCSR()}
}

type CSR struct {
	M *sparse.CSR
}

func NewCSR(nr, nc int) (R CSR) {
	return NewDOK(nr, nc).ToCSR()
}

func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) NNZ() int            { return m.M.NNZ() }
func (m CSR) ToDense() Matrix {
	var (
		nr, nc = m.Dims()
		R      = NewMatrix(nr, nc)
	)
	m.M.DoNonZero(func(i, j int, v float64) {
		R.M.Set(i, j, v)
	})
	return R
}

// MulVec returns m*x.
func (m CSR) MulVec(x []float64) (y []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nc {
		panic(fmt.Errorf("dimension mismatch in MulVec: [%d,%d] x [%d]", nr, nc, len(x)))
	}
	y = make([]float64, nr)
	m.M.DoNonZero(func(i, j int, v float64) {
		y[i] += v * x[j]
	})
	return
}

// MulTransVec returns transpose(m)*x.
func (m CSR) MulTransVec(x []float64) (y []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nr {
		panic(fmt.Errorf("dimension mismatch in MulTransVec: [%d,%d]^T x [%d]", nr, nc, len(x)))
	}
	y = make([]float64, nc)
	m.M.DoNonZero(func(i, j int, v float64) {
		y[j] += v * x[i]
	})
	return
}

func (m CSR) Diagonal() (d []float64) {
	var (
		nr, _ = m.Dims()
	)
	d = make([]float64, nr)
	m.M.DoNonZero(func(i, j int, v float64) {
		if i == j {
			d[i] += v
		}
	})
	return
}

// Mul returns the sparse product m*A.
func (m CSR) Mul(A CSR) (R CSR) {
	var (
		nr, _ = m.Dims()
		_, nc = A.Dims()
	)
	R = CSR{sparse.NewCSR(nr, nc, nil, nil, nil)}
	R.M.Mul(m.M, A.M)
	return
}

// Transpose returns a CSR copy of transpose(m).
func (m CSR) Transpose() (R CSR) {
	var (
		nr, nc = m.Dims()
		T      = NewDOK(nc, nr)
	)
	m.M.DoNonZero(func(i, j int, v float64) {
		T.M.Set(j, i, v)
	})
	return T.ToCSR()
}
