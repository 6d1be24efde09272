package fem

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/notargets/gomg/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	m, err := mesh.UnitIntervalMesh(2, mesh.WithRanks(2))
	require.NoError(t, err)

	V, err := NewFunctionSpace(m, NewFiniteElement(CG, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, V.Nodes.Size)
	assert.Equal(t, []int{0, 3, 1, 1, 4, 2}, V.CellNodes.Values)
	assert.Equal(t, []int{0, 0, 1, 0, 1}, V.NodeCell)
	assert.Equal(t, []int{0, 0, 1, 0, 1}, V.Nodes.Owner)
	assert.Equal(t, [][]int{nil, {1}}, V.Nodes.Ghosts)
	loc, err := PhysicalNodeLocations(V)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.25, 0.75}, loc.Data(), 1.e-15)

	// value size does not change the node layout
	W, err := NewVectorFunctionSpace(m, CG, 2, 3)
	require.NoError(t, err)
	assert.Same(t, V.Nodes, W.Nodes)
	assert.Equal(t, []int{3}, W.Shape())
	assert.Equal(t, []int{}, V.Shape())
	assert.Equal(t, 15, W.DofCount())

	D, err := NewFunctionSpace(m, NewFiniteElement(DG, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, D.CellNodes.Values)
	loc, err = PhysicalNodeLocations(D)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5, 0.5, 1}, loc.Data(), 1.e-15)
	assert.False(t, D.Nodes.HasHalo())
	assert.Nil(t, D.BoundaryNodes())

	D0, err := NewFunctionSpace(m, NewFiniteElement(DG, 0))
	require.NoError(t, err)
	loc, err = PhysicalNodeLocations(D0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, loc.Data(), 1.e-15)

	T, err := NewFunctionSpace(m, NewFiniteElement(Trace, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, T.Nodes.Size)
	assert.Equal(t, []int{0, 2}, T.BoundaryNodes())

	_, err = NewFunctionSpace(m, NewFiniteElement(CG, 0))
	assert.ErrorIs(t, err, ErrInvalidElement)
	_, err = NewFunctionSpace(m, FiniteElement{Family: CG, Degree: 1, Dim: 2, ValueSize: 1})
	assert.ErrorIs(t, err, ErrInvalidElement)
	_, err = ParseFamily("RT")
	assert.ErrorIs(t, err, ErrInvalidElement)
	f, err := ParseFamily("Lagrange")
	assert.NoError(t, err)
	assert.Equal(t, CG, f)
}

func TestMixedSpace(t *testing.T) {
	m, _ := mesh.UnitIntervalMesh(2)
	V, _ := NewFunctionSpace(m, NewFiniteElement(CG, 1))
	Q, _ := NewVectorFunctionSpace(m, DG, 0, 2)
	W, err := NewMixedFunctionSpace(V, Q)
	require.NoError(t, err)
	assert.True(t, W.IsMixed())
	assert.Equal(t, 2, W.Len())
	assert.Same(t, Q, W.Sub(1))
	assert.Equal(t, []int{3}, W.Shape())
	assert.Equal(t, 7, W.DofCount())
	assert.Equal(t, []int{1, 2, 5, 6}, W.CellDofs(1))

	WW, err := NewMixedFunctionSpace(W, V)
	require.NoError(t, err)
	assert.Equal(t, 3, WW.Len())

	other, _ := mesh.UnitIntervalMesh(2)
	U, _ := NewFunctionSpace(other, NewFiniteElement(CG, 1))
	_, err = NewMixedFunctionSpace(V, U)
	assert.Error(t, err)

	w := NewFunction(W, "w")
	require.NoError(t, w.Interpolate(
		func(x float64) float64 { return x },
		func(x float64) float64 { return 1 },
		func(x float64) float64 { return -x },
	))
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1, -0.25, 1, -0.75}, w.Values(), 1.e-15)
	assert.Len(t, w.Split(), 2)
	vals, err := w.At(0.25)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 1, -0.25}, vals, 1.e-14)
	assert.Error(t, w.Interpolate(
		func(x float64) float64 { return x },
		func(x float64) float64 { return x }))

	c := w.Copy("c")
	assert.Equal(t, w.Values(), c.Values())
	assert.InDelta(t, w.Dot(w), c.Dot(w), 1.e-15)
}

func TestFunction(t *testing.T) {
	for _, nranks := range []int{1, 2} {
		m, _ := mesh.UnitIntervalMesh(4, mesh.WithRanks(nranks))
		V, _ := NewFunctionSpace(m, NewFiniteElement(CG, 2))
		f := NewFunction(V, "f")
		require.NoError(t, f.Interpolate(func(x float64) float64 { return x * x }))
		for _, x := range []float64{0, 0.1, 0.3, 0.625, 1} {
			v, err := f.At(x)
			require.NoError(t, err)
			assert.InDelta(t, x*x, v[0], 1.e-13)
		}
		_, err := f.At(1.5)
		assert.Error(t, err)
		assert.InDelta(t, 0, f.Norm(func(x float64) float64 { return x * x }), 1.e-13)
		assert.InDelta(t, math.Sqrt(0.2), f.Norm(), 1.e-13)

		f.Zero()
		assert.Equal(t, make([]float64, V.DofCount()), f.Values())
	}
}

func TestAssemble(t *testing.T) {
	var serial []float64
	for _, nranks := range []int{1, 2, 3} {
		m, _ := mesh.UnitIntervalMesh(6, mesh.WithRanks(nranks))
		for _, fe := range []FiniteElement{NewFiniteElement(CG, 1), NewFiniteElement(CG, 3), NewFiniteElement(DG, 1)} {
			V, err := NewFunctionSpace(m, fe)
			require.NoError(t, err)
			M, err := AssembleMatrix(V, BilinearForm{Mass: 1})
			require.NoError(t, err)
			ones := make([]float64, V.DofCount())
			for i := range ones {
				ones[i] = 1
			}
			var total float64
			for _, v := range M.MulVec(ones) {
				total += v
			}
			assert.InDelta(t, 1., total, 1.e-12, "%s mass", fe)

			S, err := AssembleMatrix(V, BilinearForm{Stiffness: 1})
			require.NoError(t, err)
			for _, v := range S.MulVec(ones) {
				assert.InDelta(t, 0., v, 1.e-11)
			}

			b, err := AssembleVector(V, LinearForm{Source: func(x float64) float64 { return 1 }})
			require.NoError(t, err)
			bv := b.Values()
			var sum float64
			for _, v := range bv {
				sum += v
			}
			assert.InDelta(t, 1., sum, 1.e-12)
			if fe.Family == CG && fe.Degree == 1 {
				if serial == nil {
					serial = bv
				}
				assert.InDeltaSlice(t, serial, bv, 1.e-14)
			}
		}
	}
}

func TestWriteCSV(t *testing.T) {
	m, _ := mesh.UnitIntervalMesh(2)
	V, _ := NewFunctionSpace(m, NewFiniteElement(CG, 1))
	f := NewFunction(V, "u")
	require.NoError(t, f.Interpolate(func(x float64) float64 { return 2 * x }))
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"x,u", "0,0", "0.5,1", "1,2"}, lines)

	D, _ := NewFunctionSpace(m, NewFiniteElement(DG, 1))
	assert.Error(t, WriteCSV(&buf, f, NewFunction(D, "d")))
}
