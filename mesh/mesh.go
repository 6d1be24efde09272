package mesh

import (
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/gomg/parloop"
	"github.com/notargets/gomg/utils"
)

// Mesh is a 1D interval mesh partitioned over NRanks logical ranks.
type Mesh struct {
	VX        []float64 // Vertex coordinates
	EToV      [][2]int  // Cell to vertex connectivity, left vertex first
	K, Nv     int       // Number of cells, number of vertices
	CellOwner []int     // Owning rank of each cell
	NRanks    int
	Parent    []int // Parent cell on the next coarser mesh, nil for a base mesh
	Name      string

	cellSetOnce sync.Once
	cellSet     *parloop.Set
}

type Option func(m *Mesh)

// WithRanks distributes the cells over nranks contiguous partitions.
func WithRanks(nranks int) Option {
	return func(m *Mesh) {
		m.NRanks = nranks
	}
}

func WithName(name string) Option {
	return func(m *Mesh) {
		m.Name = name
	}
}

// NewIntervalMesh divides [xmin,xmax] into K equal cells.
func NewIntervalMesh(K int, xmin, xmax float64, opts ...Option) (m *Mesh, err error) {
	if K < 1 {
		err = fmt.Errorf("interval mesh needs at least one cell, have %d", K)
		return
	}
	if xmax <= xmin {
		err = fmt.Errorf("invalid interval [%g,%g]", xmin, xmax)
		return
	}
	m = &Mesh{
		K:      K,
		Nv:     K + 1,
		NRanks: 1,
		Name:   "interval",
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.NRanks < 1 || m.NRanks > K {
		err = fmt.Errorf("cannot distribute %d cells over %d ranks", K, m.NRanks)
		return nil, err
	}
	m.VX = make([]float64, m.Nv)
	h := (xmax - xmin) / float64(K)
	for i := range m.VX {
		m.VX[i] = xmin + float64(i)*h
	}
	m.VX[K] = xmax
	m.EToV = make([][2]int, K)
	for k := range m.EToV {
		m.EToV[k] = [2]int{k, k + 1}
	}
	m.CellOwner = make([]int, K)
	pm := utils.NewPartitionMap(m.NRanks, K)
	for k := range m.CellOwner {
		m.CellOwner[k] = pm.GetBucket(k)
	}
	return
}

func UnitIntervalMesh(K int, opts ...Option) (*Mesh, error) {
	return NewIntervalMesh(K, 0, 1, opts...)
}

// Refine bisects every cell. Fine cells 2k and 2k+1 are the left and right
// halves of coarse cell k and inherit its owner. Coarse vertices keep their
// numbers, the midpoint of coarse cell k becomes vertex Nv+k.
func Refine(coarse *Mesh) (fine *Mesh) {
	fine = &Mesh{
		K:         2 * coarse.K,
		Nv:        coarse.Nv + coarse.K,
		NRanks:    coarse.NRanks,
		Name:      coarse.Name,
		VX:        make([]float64, coarse.Nv+coarse.K),
		CellOwner: make([]int, 2*coarse.K),
		Parent:    make([]int, 2*coarse.K),
	}
	copy(fine.VX, coarse.VX)
	fine.EToV = make([][2]int, fine.K)
	for k, verts := range coarse.EToV {
		mid := coarse.Nv + k
		fine.VX[mid] = 0.5 * (coarse.VX[verts[0]] + coarse.VX[verts[1]])
		fine.EToV[2*k] = [2]int{verts[0], mid}
		fine.EToV[2*k+1] = [2]int{mid, verts[1]}
		for _, kk := range []int{2 * k, 2*k + 1} {
			fine.Parent[kk] = k
			fine.CellOwner[kk] = coarse.CellOwner[k]
		}
	}
	return
}

// CellBounds returns the left and right vertex coordinates of cell k.
func (m *Mesh) CellBounds(k int) (x0, x1 float64) {
	return m.VX[m.EToV[k][0]], m.VX[m.EToV[k][1]]
}

// OwnedCells returns the cells owned by rank in ascending order.
func (m *Mesh) OwnedCells(rank int) (cells []int) {
	for k, owner := range m.CellOwner {
		if owner == rank {
			cells = append(cells, k)
		}
	}
	return
}

// CellSet is the iteration set over the cells of the mesh, shared by every
// function space on it.
func (m *Mesh) CellSet() *parloop.Set {
	m.cellSetOnce.Do(func() {
		m.cellSet = parloop.NewSet(m.Name+"_cells", m.K, m.NRanks, m.CellOwner, nil)
	})
	return m.cellSet
}

// VertexCells returns, for each vertex, the cells that contain it in
// ascending order.
func (m *Mesh) VertexCells() (vc [][]int) {
	vc = make([][]int, m.Nv)
	for k, verts := range m.EToV {
		for _, v := range verts {
			vc[v] = append(vc[v], k)
		}
	}
	for _, cells := range vc {
		sort.Ints(cells)
	}
	return
}
