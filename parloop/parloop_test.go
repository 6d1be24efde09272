package parloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds 4 cells over 5 nodes split across 2 ranks; rank 1 holds a
// ghost copy of node 2.
func chain(t *testing.T) (cells, nodes *Set, c2n *Map) {
	cells = NewSet("cells", 4, 2, []int{0, 0, 1, 1}, nil)
	nodes = NewSet("nodes", 5, 2, []int{0, 0, 0, 1, 1}, [][]int{nil, {2}})
	c2n = NewMap("c2n", cells, nodes, 2, []int{0, 1, 1, 2, 2, 3, 3, 4})
	assert.Equal(t, []int{3, 4}, nodes.Owned(1))
	assert.True(t, nodes.HasHalo())
	assert.False(t, cells.HasHalo())
	return
}

func TestParLoopHalo(t *testing.T) {
	cells, nodes, c2n := chain(t)
	valence := NewDat("valence", nodes, 1)
	require.NoError(t, ParLoop(func(args ...[]float64) {
		args[0][0] += 1
		args[0][1] += 1
	}, cells, valence.Arg(INC, c2n)))
	assert.Equal(t, []float64{1, 2, 2, 2, 1}, valence.Data())
	assert.False(t, valence.HaloValid())

	sum := NewDat("sum", cells, 1)
	sumKernel := func(args ...[]float64) {
		args[0][0] = args[1][0] + args[1][1]
	}
	err := ParLoop(sumKernel, cells, sum.Arg(WRITE), valence.Arg(READ, c2n))
	assert.ErrorIs(t, err, ErrHaloNotSynchronized)
	assert.ErrorIs(t, valence.GlobalToLocalEnd(READ), ErrNoExchangeInFlight)

	require.NoError(t, valence.GlobalToLocalBegin(READ))
	// a second reader joins the exchange in flight
	require.NoError(t, valence.GlobalToLocalBegin(READ))
	err = ParLoop(sumKernel, cells, sum.Arg(WRITE), valence.Arg(READ, c2n))
	assert.ErrorIs(t, err, ErrHaloNotSynchronized)
	require.NoError(t, valence.GlobalToLocalEnd(READ))
	assert.True(t, valence.HaloValid())
	require.NoError(t, valence.GlobalToLocalEnd(READ))

	require.NoError(t, ParLoop(sumKernel, cells, sum.Arg(WRITE), valence.Arg(READ, c2n)))
	assert.Equal(t, []float64{3, 4, 4, 3}, sum.Data())

	// readers sharing one dirty dat each run Begin/End around their loop
	require.NoError(t, ParLoop(func(args ...[]float64) {
		args[0][0] *= 2
	}, nodes, valence.Arg(RW)))
	assert.False(t, valence.HaloValid())
	var (
		wg   sync.WaitGroup
		sums = make([]*Dat, 4)
		errs = make([]error, 4)
	)
	for i := range sums {
		sums[i] = NewDat("sum", cells, 1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if errs[i] = valence.GlobalToLocalBegin(READ); errs[i] != nil {
				return
			}
			if errs[i] = valence.GlobalToLocalEnd(READ); errs[i] != nil {
				return
			}
			errs[i] = ParLoop(sumKernel, cells, sums[i].Arg(WRITE), valence.Arg(READ, c2n))
		}(i)
	}
	wg.Wait()
	for i := range sums {
		require.NoError(t, errs[i])
		assert.Equal(t, []float64{6, 8, 8, 6}, sums[i].Data())
	}

	// an exchange on a valid halo is a no-op
	require.NoError(t, valence.GlobalToLocalBegin(READ))
	require.NoError(t, valence.GlobalToLocalEnd(READ))
	assert.Error(t, valence.GlobalToLocalBegin(INC))
}

func TestParLoopArgs(t *testing.T) {
	cells, nodes, c2n := chain(t)
	x := NewDat("x", nodes, 2)
	x.SetData([]float64{0, 0, 1, 10, 2, 20, 3, 30, 4, 40})
	assert.True(t, x.HaloValid())

	// direct args iterate the dat's own set
	err := ParLoop(func(args ...[]float64) {}, cells, x.Arg(READ))
	assert.Error(t, err)
	// maps must start at the iteration set
	err = ParLoop(func(args ...[]float64) {}, nodes, x.Arg(READ, c2n))
	assert.Error(t, err)

	mid := NewDat("mid", cells, 2)
	require.NoError(t, ParLoop(func(args ...[]float64) {
		out, in := args[0], args[1]
		for b := 0; b < 2; b++ {
			out[b] = 0.5 * (in[b] + in[2+b])
		}
	}, cells, mid.Arg(WRITE), x.Arg(READ, c2n)))
	assert.Equal(t, []float64{0.5, 5, 1.5, 15, 2.5, 25, 3.5, 35}, mid.Data())

	require.NoError(t, ParLoop(func(args ...[]float64) {
		args[0][0] *= 2
		args[0][1] *= 2
	}, nodes, x.Arg(RW)))
	assert.Equal(t, []float64{0, 0, 2, 20, 4, 40, 6, 60, 8, 80}, x.Data())

	x.Zero()
	assert.True(t, x.HaloValid())
	assert.Equal(t, make([]float64, 10), x.Data())
	assert.Equal(t, "READ", READ.String())
}
