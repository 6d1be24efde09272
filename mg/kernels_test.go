package mg

import (
	"testing"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKernel(t *testing.T) {
	cg1 := fem.NewFiniteElement(fem.CG, 1)
	dg1 := fem.NewFiniteElement(fem.DG, 1)
	for _, bad := range []fem.FiniteElement{
		{Family: fem.CG, Degree: 1, Dim: 2, ValueSize: 1},
		{Family: fem.CG, Degree: 0, Dim: 1, ValueSize: 1},
		fem.NewFiniteElement(fem.Trace, 0),
		fem.NewVectorElement(fem.CG, 1, 2),
	} {
		_, err := GenerateKernel(ProlongKernel, cg1, bad)
		assert.ErrorIs(t, err, ErrUnsupportedElementPair, "%v", bad)
	}

	tk, err := GenerateKernel(InjectKernel, dg1, cg1)
	require.NoError(t, err)
	assert.True(t, tk.DG)
	tk, err = GenerateKernel(InjectKernel, cg1, dg1)
	require.NoError(t, err)
	assert.False(t, tk.DG)

	// prolong evaluates the coarse expansion at the pulled back point
	tk, err = GenerateKernel(ProlongKernel, cg1, cg1)
	require.NoError(t, err)
	out := make([]float64, 2)
	tk.Kernel(out, []float64{1, 10, 3, 30}, []float64{0.75}, []float64{0.5, 1})
	assert.InDeltaSlice(t, []float64{2, 20}, out, 1.e-14)

	tk, err = GenerateKernel(RestrictKernel, cg1, cg1)
	require.NoError(t, err)
	acc := make([]float64, 2)
	tk.Kernel(acc, []float64{4}, []float64{0.625}, []float64{0.5, 1})
	assert.InDeltaSlice(t, []float64{3, 1}, acc, 1.e-14)
}

func TestCorrespondenceMaps(t *testing.T) {
	reg := mesh.NewRegistry()
	base, _ := mesh.UnitIntervalMesh(2)
	mh, err := mesh.NewMeshHierarchy(reg, base, 2)
	require.NoError(t, err)
	cg1 := fem.NewFiniteElement(fem.CG, 1)
	Vc := newSpace(t, mh.Meshes[0], cg1)
	Vf := newSpace(t, mh.Meshes[1], cg1)

	// fine vertices 0,1,2 are coarse vertices, 3 and 4 the coarse midpoints
	f2c := FineNodeToCoarseNodeMap(mh, 0, 1, Vf, Vc)
	assert.Equal(t, []int{0, 1, 0, 1, 1, 2, 0, 1, 1, 2}, f2c.Values)

	c2f := CoarseNodeToFineNodeMap(mh, 0, 1, Vc, Vf)
	assert.Equal(t, 4, c2f.Arity)
	assert.Equal(t, []int{0, 3, 3, 1}, c2f.Row(1))
	assert.Equal(t, []int{1, 4, 4, 2}, c2f.Row(2))

	cc2f := CoarseCellToFineNodeMap(mh, 0, 2, newSpace(t, mh.Meshes[2], fem.NewFiniteElement(fem.DG, 0)))
	assert.Equal(t, 4, cc2f.Arity)
	assert.Equal(t, []int{4, 5, 6, 7}, cc2f.Row(1))
	assert.Same(t, mh.Meshes[0].CellSet(), cc2f.From)
}
