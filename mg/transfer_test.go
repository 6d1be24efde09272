package mg

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHierarchy(t *testing.T, reg *mesh.Registry, K, nrefs, nranks int) *mesh.MeshHierarchy {
	base, err := mesh.UnitIntervalMesh(K, mesh.WithRanks(nranks))
	require.NoError(t, err)
	mh, err := mesh.NewMeshHierarchy(reg, base, nrefs)
	require.NoError(t, err)
	return mh
}

func newSpace(t *testing.T, m *mesh.Mesh, fe fem.FiniteElement) *fem.FunctionSpace {
	V, err := fem.NewFunctionSpace(m, fe)
	require.NoError(t, err)
	return V
}

func randomize(f *fem.Function, rng *rand.Rand) {
	v := make([]float64, f.FunctionSpace().DofCount())
	for i := range v {
		v[i] = rng.Float64() - 0.5
	}
	f.SetValues(v)
}

func TestProlongLinearExact(t *testing.T) {
	for _, nranks := range []int{1, 2} {
		reg := mesh.NewRegistry()
		mh := newHierarchy(t, reg, 2, 1, nranks)
		tm := NewTransferManager(reg)
		Vc := newSpace(t, mh.Meshes[0], fem.NewFiniteElement(fem.CG, 1))
		Vf := newSpace(t, mh.Meshes[1], fem.NewFiniteElement(fem.CG, 1))
		coarse, fine := fem.NewFunction(Vc, "coarse"), fem.NewFunction(Vf, "fine")
		require.NoError(t, coarse.Interpolate(func(x float64) float64 { return x }))

		require.NoError(t, tm.Prolong(coarse, fine))
		// fine vertices 3 and 4 are the midpoints of the coarse cells
		assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.25, 0.75}, fine.Values(), 1.e-14)
	}
}

func TestAdjoint(t *testing.T) {
	pairs := [][2]fem.FiniteElement{
		{fem.NewFiniteElement(fem.CG, 1), fem.NewFiniteElement(fem.CG, 1)},
		{fem.NewFiniteElement(fem.CG, 2), fem.NewFiniteElement(fem.CG, 2)},
		{fem.NewFiniteElement(fem.CG, 1), fem.NewFiniteElement(fem.CG, 3)},
		{fem.NewFiniteElement(fem.DG, 0), fem.NewFiniteElement(fem.DG, 1)},
		{fem.NewFiniteElement(fem.DG, 2), fem.NewFiniteElement(fem.CG, 2)},
		{fem.NewVectorElement(fem.CG, 1, 2), fem.NewVectorElement(fem.CG, 1, 2)},
	}
	rng := rand.New(rand.NewSource(42))
	for _, nranks := range []int{1, 3} {
		reg := mesh.NewRegistry()
		mh := newHierarchy(t, reg, 3, 2, nranks)
		tm := NewTransferManager(reg)
		for _, pair := range pairs {
			for _, lvls := range [][2]int{{0, 1}, {1, 2}, {0, 2}} {
				Vc := newSpace(t, mh.Meshes[lvls[0]], pair[0])
				Vf := newSpace(t, mh.Meshes[lvls[1]], pair[1])
				x, y := fem.NewFunction(Vc, "x"), fem.NewFunction(Vf, "y")
				randomize(x, rng)
				randomize(y, rng)
				Px, Ry := fem.NewFunction(Vf, "Px"), fem.NewFunction(Vc, "Ry")
				require.NoError(t, tm.Prolong(x, Px))
				require.NoError(t, tm.Restrict(y, Ry))
				assert.InDeltaf(t, y.Dot(Px), Ry.Dot(x), 1.e-12,
					"%s -> %s levels %v on %d ranks", pair[0], pair[1], lvls, nranks)
			}
		}
	}
}

func TestRestrictGalerkin(t *testing.T) {
	// P^T A_f P equals the rediscretized A_c for nested CG spaces
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 2, 1, 1)
	tm := NewTransferManager(reg)
	fe := fem.NewFiniteElement(fem.CG, 2)
	Vc, Vf := newSpace(t, mh.Meshes[0], fe), newSpace(t, mh.Meshes[1], fe)
	a := fem.BilinearForm{Stiffness: 1, Mass: 1}
	Ac, err := fem.AssembleMatrix(Vc, a)
	require.NoError(t, err)
	Af, err := fem.AssembleMatrix(Vf, a)
	require.NoError(t, err)
	n := Vc.DofCount()
	e, Pe, APe, col := fem.NewFunction(Vc), fem.NewFunction(Vf), fem.NewFunction(Vf), fem.NewFunction(Vc)
	for j := 0; j < n; j++ {
		unit := make([]float64, n)
		unit[j] = 1
		e.SetValues(unit)
		require.NoError(t, tm.Prolong(e, Pe))
		APe.SetValues(Af.MulVec(Pe.Values()))
		require.NoError(t, tm.Restrict(APe, col))
		for i, v := range col.Values() {
			assert.InDelta(t, Ac.At(i, j), v, 1.e-12)
		}
	}
}

func TestInjectPointEvaluation(t *testing.T) {
	for _, nranks := range []int{1, 2} {
		reg := mesh.NewRegistry()
		mh := newHierarchy(t, reg, 2, 2, nranks)
		tm := NewTransferManager(reg)
		Vf := newSpace(t, mh.Meshes[2], fem.NewFiniteElement(fem.CG, 3))
		Vc := newSpace(t, mh.Meshes[0], fem.NewFiniteElement(fem.CG, 2))
		fine, coarse := fem.NewFunction(Vf, "fine"), fem.NewFunction(Vc, "coarse")
		require.NoError(t, fine.Interpolate(math.Sin))
		require.NoError(t, tm.Inject(fine, coarse))
		loc, err := fem.PhysicalNodeLocations(Vc)
		require.NoError(t, err)
		for n, x := range loc.Data() {
			want, err := fine.At(x)
			require.NoError(t, err)
			assert.InDelta(t, want[0], coarse.Values()[n], 1.e-14)
		}
	}
}

func TestInjectTieBreak(t *testing.T) {
	// a coarse node on a fine cell boundary takes the lowest index fine cell
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 2, 1, 1)
	tm := NewTransferManager(reg)
	Vf := newSpace(t, mh.Meshes[1], fem.NewFiniteElement(fem.DG, 1))
	Vc := newSpace(t, mh.Meshes[0], fem.NewFiniteElement(fem.CG, 1))
	fine, coarse := fem.NewFunction(Vf, "fine"), fem.NewFunction(Vc, "coarse")
	fine.SetValues([]float64{0, 0, 1, 1, 2, 2, 3, 3})
	require.NoError(t, tm.Inject(fine, coarse))
	assert.InDeltaSlice(t, []float64{0, 1, 3}, coarse.Values(), 1.e-14)
}

func TestInjectDG(t *testing.T) {
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 2, 1, 2)
	tm := NewTransferManager(reg)

	fine := fem.NewFunction(newSpace(t, mh.Meshes[1], fem.NewFiniteElement(fem.DG, 1)), "fine")
	require.NoError(t, fine.Interpolate(func(x float64) float64 { return x }))
	avg := fem.NewFunction(newSpace(t, mh.Meshes[0], fem.NewFiniteElement(fem.DG, 0)), "avg")
	require.NoError(t, tm.Inject(fine, avg))
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, avg.Values(), 1.e-14)

	// projection reproduces anything the coarse space can represent
	Vc := newSpace(t, mh.Meshes[0], fem.NewFiniteElement(fem.DG, 2))
	fine2 := fem.NewFunction(newSpace(t, mh.Meshes[1], fem.NewFiniteElement(fem.CG, 2)), "fine2")
	sq := func(x float64) float64 { return x * x }
	require.NoError(t, fine2.Interpolate(sq))
	coarse := fem.NewFunction(Vc, "coarse")
	require.NoError(t, tm.Inject(fine2, coarse))
	assert.InDelta(t, 0, coarse.Norm(sq), 1.e-13)
}

func TestProlongInjectRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 3, 1, 3)
	tm := NewTransferManager(reg)
	for _, fe := range []fem.FiniteElement{
		fem.NewFiniteElement(fem.CG, 1),
		fem.NewFiniteElement(fem.CG, 3),
		fem.NewFiniteElement(fem.DG, 0),
		fem.NewFiniteElement(fem.DG, 2),
	} {
		Vc, Vf := newSpace(t, mh.Meshes[0], fe), newSpace(t, mh.Meshes[1], fe)
		x, fine, back := fem.NewFunction(Vc), fem.NewFunction(Vf), fem.NewFunction(Vc)
		randomize(x, rng)
		require.NoError(t, tm.Prolong(x, fine))
		require.NoError(t, tm.Inject(fine, back))
		assert.InDeltaSlicef(t, x.Values(), back.Values(), 1.e-12, "%s", fe)
	}
}

func TestMixedComponentwise(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 2, 1, 2)
	tm := NewTransferManager(reg)
	elements := []fem.FiniteElement{fem.NewFiniteElement(fem.CG, 2), fem.NewFiniteElement(fem.DG, 0)}
	var cs, fs []*fem.FunctionSpace
	for _, fe := range elements {
		cs = append(cs, newSpace(t, mh.Meshes[0], fe))
		fs = append(fs, newSpace(t, mh.Meshes[1], fe))
	}
	Wc, err := fem.NewMixedFunctionSpace(cs...)
	require.NoError(t, err)
	Wf, err := fem.NewMixedFunctionSpace(fs...)
	require.NoError(t, err)

	wc, wf := fem.NewFunction(Wc, "wc"), fem.NewFunction(Wf, "wf")
	randomize(wc, rng)
	require.NoError(t, tm.Prolong(wc, wf))
	var want []float64
	for i, sub := range wc.Split() {
		out := fem.NewFunction(fs[i])
		require.NoError(t, tm.Prolong(sub, out))
		want = append(want, out.Values()...)
	}
	assert.Equal(t, want, wf.Values())

	randomize(wf, rng)
	require.NoError(t, tm.Restrict(wf, wc))
	want = want[:0]
	for i, sub := range wf.Split() {
		out := fem.NewFunction(cs[i])
		require.NoError(t, tm.Restrict(sub, out))
		want = append(want, out.Values()...)
	}
	assert.Equal(t, want, wc.Values())

	require.NoError(t, tm.Inject(wf, wc))
	want = want[:0]
	for i, sub := range wf.Split() {
		out := fem.NewFunction(cs[i])
		require.NoError(t, tm.Inject(sub, out))
		want = append(want, out.Values()...)
	}
	assert.Equal(t, want, wc.Values())
}

func TestErrors(t *testing.T) {
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 2, 1, 2)
	other := newHierarchy(t, reg, 2, 1, 1)
	tm := NewTransferManager(reg)
	cg1 := fem.NewFiniteElement(fem.CG, 1)

	coarse := fem.NewFunction(newSpace(t, mh.Meshes[0], cg1), "coarse")
	fine := fem.NewFunction(newSpace(t, mh.Meshes[1], cg1), "fine")
	loose, err := mesh.UnitIntervalMesh(4)
	require.NoError(t, err)
	unregistered := fem.NewFunction(newSpace(t, loose, cg1), "unregistered")

	assert.ErrorIs(t, tm.Prolong(unregistered, fine), ErrNotInHierarchy)
	assert.ErrorIs(t, tm.Prolong(coarse, unregistered), ErrNotInHierarchy)
	assert.ErrorIs(t, tm.Prolong(fine, coarse), ErrLevelOrdering)
	assert.ErrorIs(t, tm.Prolong(coarse, coarse), ErrLevelOrdering)
	assert.ErrorIs(t, tm.Restrict(coarse, fine), ErrLevelOrdering)
	assert.ErrorIs(t, tm.Inject(coarse, fine), ErrLevelOrdering)

	otherFine := fem.NewFunction(newSpace(t, other.Meshes[1], cg1), "otherFine")
	assert.ErrorIs(t, tm.Prolong(coarse, otherFine), ErrHierarchyMismatch)
	assert.ErrorIs(t, tm.Inject(otherFine, coarse), ErrHierarchyMismatch)

	vecFine := fem.NewFunction(newSpace(t, mh.Meshes[1], fem.NewVectorElement(fem.CG, 1, 2)), "vecFine")
	assert.ErrorIs(t, tm.Prolong(coarse, vecFine), ErrShapeMismatch)
	assert.ErrorIs(t, tm.Restrict(vecFine, coarse), ErrShapeMismatch)

	// same shape, different number of mixed components
	Wc, err := fem.NewMixedFunctionSpace(coarse.FunctionSpace(), coarse.FunctionSpace())
	require.NoError(t, err)
	assert.ErrorIs(t, tm.Prolong(fem.NewFunction(Wc), vecFine), ErrShapeMismatch)

	// unsupported pairs fail before the halo exchange and leave the output alone
	tr := fem.NewFiniteElement(fem.Trace, 0)
	tc := fem.NewFunction(newSpace(t, mh.Meshes[0], tr), "tc")
	tf := fem.NewFunction(newSpace(t, mh.Meshes[1], tr), "tf")
	sevens := []float64{7, 7, 7, 7, 7}
	tf.SetValues(sevens)
	require.NoError(t, tm.Restrict(fine, coarse))
	assert.False(t, coarse.Dat.HaloValid())
	assert.ErrorIs(t, tm.Prolong(tc, tf), ErrUnsupportedElementPair)
	assert.Equal(t, sevens, tf.Values())
	assert.ErrorIs(t, tm.Inject(tf, tc), ErrUnsupportedElementPair)

	assert.ErrorIs(t, CheckArguments(reg, fine, coarse), ErrLevelOrdering)
	assert.NoError(t, CheckArguments(reg, coarse, fine))
	// a failed validation never exchanged the dirty coarse halo
	assert.ErrorIs(t, tm.Prolong(coarse, vecFine), ErrShapeMismatch)
	assert.False(t, coarse.Dat.HaloValid())
}

func TestIdempotentAndCached(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 3, 1, 2)
	tm := NewTransferManager(reg)
	fe := fem.NewFiniteElement(fem.CG, 2)
	Vc, Vf := newSpace(t, mh.Meshes[0], fe), newSpace(t, mh.Meshes[1], fe)
	coarse, fine := fem.NewFunction(Vc), fem.NewFunction(Vf)
	randomize(coarse, rng)

	require.NoError(t, tm.Prolong(coarse, fine))
	first := fine.Values()
	assert.Equal(t, 2, tm.maps.len())
	assert.Equal(t, 1, tm.kernels.len())

	require.NoError(t, tm.Prolong(coarse, fine))
	assert.Equal(t, first, fine.Values())
	assert.Equal(t, 2, tm.maps.len())
	assert.Equal(t, 1, tm.kernels.len())

	// vector spaces share node layouts and kernels with their scalar space
	vc := fem.NewFunction(newSpace(t, mh.Meshes[0], fem.NewVectorElement(fem.CG, 2, 3)))
	vf := fem.NewFunction(newSpace(t, mh.Meshes[1], fem.NewVectorElement(fem.CG, 2, 3)))
	randomize(vc, rng)
	require.NoError(t, tm.Prolong(vc, vf))
	assert.Equal(t, 2, tm.maps.len())
	assert.Equal(t, 1, tm.kernels.len())
}

func TestDistributedMatchesSerial(t *testing.T) {
	fe := fem.NewFiniteElement(fem.CG, 2)
	f := func(x float64) float64 { return math.Cos(3 * x) }
	var ref [3][]float64
	for i, nranks := range []int{1, 2, 3} {
		reg := mesh.NewRegistry()
		mh := newHierarchy(t, reg, 3, 2, nranks)
		tm := NewTransferManager(reg)
		Vc, Vf := newSpace(t, mh.Meshes[0], fe), newSpace(t, mh.Meshes[2], fe)
		coarse, fine := fem.NewFunction(Vc), fem.NewFunction(Vf)
		require.NoError(t, coarse.Interpolate(f))
		require.NoError(t, tm.Prolong(coarse, fine))
		dual := fem.NewFunction(Vc)
		require.NoError(t, tm.Restrict(fine, dual))
		inj := fem.NewFunction(Vc)
		require.NoError(t, tm.Inject(fine, inj))
		got := [3][]float64{fine.Values(), dual.Values(), inj.Values()}
		if i == 0 {
			ref = got
			continue
		}
		for j := range got {
			assert.InDeltaSlicef(t, ref[j], got[j], 1.e-13, "%d ranks, result %d", nranks, j)
		}
	}
}

func TestConcurrentTransfers(t *testing.T) {
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 4, 1, 2)
	tm := NewTransferManager(reg)
	fe := fem.NewFiniteElement(fem.CG, 1)
	Vc, Vf := newSpace(t, mh.Meshes[0], fe), newSpace(t, mh.Meshes[1], fe)
	var (
		wg   sync.WaitGroup
		errs = make([]error, 8)
		outs = make([]*fem.Function, 8)
	)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := fem.NewFunction(Vc)
			if errs[i] = c.Interpolate(func(x float64) float64 { return float64(i) * x }); errs[i] != nil {
				return
			}
			outs[i] = fem.NewFunction(Vf)
			errs[i] = tm.Prolong(c, outs[i])
		}(i)
	}
	wg.Wait()
	loc, err := fem.PhysicalNodeLocations(Vf)
	require.NoError(t, err)
	for i, out := range outs {
		require.NoError(t, errs[i])
		for n, x := range loc.Data() {
			assert.InDelta(t, float64(i)*x, out.Values()[n], 1.e-14)
		}
	}

	// one dirty input read by concurrent transfers into separate outputs
	shared := fem.NewFunction(Vc)
	for round := 0; round < 10; round++ {
		slope := float64(round + 1)
		require.NoError(t, shared.Interpolate(func(x float64) float64 { return slope * x }))
		require.False(t, shared.Dat.HaloValid())
		for i := range outs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outs[i] = fem.NewFunction(Vf)
				errs[i] = tm.Prolong(shared, outs[i])
			}(i)
		}
		wg.Wait()
		for i, out := range outs {
			require.NoErrorf(t, errs[i], "round %d", round)
			for n, x := range loc.Data() {
				assert.InDelta(t, slope*x, out.Values()[n], 1.e-14)
			}
		}
	}
}

func TestOverride(t *testing.T) {
	reg := mesh.NewRegistry()
	mh := newHierarchy(t, reg, 2, 1, 1)
	tm := NewTransferManager(reg)
	fe := fem.NewFiniteElement(fem.CG, 1)
	Vc, Vf := newSpace(t, mh.Meshes[0], fe), newSpace(t, mh.Meshes[1], fe)
	coarse, fine := fem.NewFunction(Vc), fem.NewFunction(Vf)

	var outer, inner int
	restoreOuter := tm.Override(Vf, TransferOperators{Prolong: func(c, f *fem.Function) error {
		outer++
		return tm.Prolong(c, f)
	}})
	restoreInner := tm.Override(Vf, TransferOperators{Prolong: func(c, f *fem.Function) error {
		inner++
		return tm.Prolong(c, f)
	}})
	require.NoError(t, tm.Transfers(Vf).Prolong(coarse, fine))
	restoreInner()
	require.NoError(t, tm.Transfers(Vf).Prolong(coarse, fine))
	restoreOuter()
	require.NoError(t, tm.Transfers(Vf).Prolong(coarse, fine))
	assert.Equal(t, 1, outer)
	assert.Equal(t, 1, inner)

	// unset members fall back to the defaults
	ops := tm.Transfers(Vc)
	assert.NotNil(t, ops.Restrict)
	assert.NotNil(t, ops.Inject)
}
