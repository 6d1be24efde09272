package fem

import (
	"fmt"
	"strings"
	"sync"

	"github.com/notargets/gomg/DG1D"
	"github.com/notargets/gomg/mesh"
	"github.com/notargets/gomg/parloop"
)

// nodeLayout is the node numbering of one element family and degree on one
// mesh. Spaces that differ only in value size share it, and with it the node
// set and cell node map.
type nodeLayout struct {
	Nodes     *parloop.Set
	CellNodes *parloop.Map
	NodeCell  []int // Lowest index cell containing each node
	Ref       *DG1D.LagrangeElement1D

	locOnce   sync.Once
	locations *parloop.Dat
	locErr    error
}

type layoutKey struct {
	mesh   *mesh.Mesh
	family Family
	degree int
}

type layoutEntry struct {
	once   sync.Once
	layout *nodeLayout
	err    error
}

var layouts sync.Map

func getLayout(m *mesh.Mesh, fe FiniteElement) (*nodeLayout, error) {
	key := layoutKey{mesh: m, family: fe.Family, degree: fe.Degree}
	if fe.Family == Trace {
		// Facets of an interval are its vertices, the same nodes as CG1
		key.family, key.degree = CG, 1
	}
	v, _ := layouts.LoadOrStore(key, &layoutEntry{})
	entry := v.(*layoutEntry)
	entry.once.Do(func() {
		entry.layout, entry.err = buildLayout(m, key.family, key.degree)
	})
	return entry.layout, entry.err
}

func buildLayout(m *mesh.Mesh, family Family, N int) (nl *nodeLayout, err error) {
	var (
		Np     = N + 1
		nNodes int
		cn     = make([]int, m.K*Np)
	)
	nl = &nodeLayout{}
	if nl.Ref, err = DG1D.NewLagrangeElement1D(N); err != nil {
		return
	}
	switch family {
	case CG:
		nNodes = m.Nv + m.K*(N-1)
		for k, verts := range m.EToV {
			cn[k*Np] = verts[0]
			cn[k*Np+N] = verts[1]
			for j := 1; j < N; j++ {
				cn[k*Np+j] = m.Nv + k*(N-1) + j - 1
			}
		}
	case DG:
		nNodes = m.K * Np
		for i := range cn {
			cn[i] = i
		}
	}
	nl.NodeCell = make([]int, nNodes)
	for i := range nl.NodeCell {
		nl.NodeCell[i] = -1
	}
	for k := 0; k < m.K; k++ {
		for _, n := range cn[k*Np : (k+1)*Np] {
			if nl.NodeCell[n] == -1 {
				nl.NodeCell[n] = k
			}
		}
	}
	owner := make([]int, nNodes)
	for n, k := range nl.NodeCell {
		owner[n] = m.CellOwner[k]
	}
	ghosts := make([][]int, m.NRanks)
	isGhost := make([]map[int]bool, m.NRanks)
	for k, rank := range m.CellOwner {
		for _, n := range cn[k*Np : (k+1)*Np] {
			if owner[n] == rank {
				continue
			}
			if isGhost[rank] == nil {
				isGhost[rank] = make(map[int]bool)
			}
			if !isGhost[rank][n] {
				isGhost[rank][n] = true
				ghosts[rank] = append(ghosts[rank], n)
			}
		}
	}
	name := fmt.Sprintf("%s_%s%d", m.Name, family, N)
	nl.Nodes = parloop.NewSet(name+"_nodes", nNodes, m.NRanks, owner, ghosts)
	nl.CellNodes = parloop.NewMap(name+"_cell_node", m.CellSet(), nl.Nodes, Np, cn)
	return
}

// FunctionSpace is either a single space on a mesh or a mixed space made of
// an ordered list of single spaces on the same mesh.
type FunctionSpace struct {
	Name    string
	Mesh    *mesh.Mesh
	Element FiniteElement // Zero for a mixed space

	// Single spaces only
	Nodes     *parloop.Set
	CellNodes *parloop.Map
	NodeCell  []int
	Ref       *DG1D.LagrangeElement1D

	layout     *nodeLayout
	components []*FunctionSpace
}

func NewFunctionSpace(m *mesh.Mesh, fe FiniteElement) (V *FunctionSpace, err error) {
	if err = fe.Validate(); err != nil {
		return
	}
	var nl *nodeLayout
	if nl, err = getLayout(m, fe); err != nil {
		return
	}
	V = &FunctionSpace{
		Name:      fe.String(),
		Mesh:      m,
		Element:   fe,
		Nodes:     nl.Nodes,
		CellNodes: nl.CellNodes,
		NodeCell:  nl.NodeCell,
		Ref:       nl.Ref,
		layout:    nl,
	}
	return
}

func NewVectorFunctionSpace(m *mesh.Mesh, family Family, degree, dim int) (*FunctionSpace, error) {
	return NewFunctionSpace(m, NewVectorElement(family, degree, dim))
}

// NewMixedFunctionSpace joins spaces in order, nested mixed spaces are
// flattened.
func NewMixedFunctionSpace(spaces ...*FunctionSpace) (W *FunctionSpace, err error) {
	if len(spaces) == 0 {
		return nil, fmt.Errorf("mixed space needs at least one component")
	}
	W = &FunctionSpace{Mesh: spaces[0].Mesh}
	names := make([]string, 0, len(spaces))
	for i, V := range spaces {
		if V.Mesh != W.Mesh {
			return nil, fmt.Errorf("mixed space component %d is on a different mesh", i)
		}
		W.components = append(W.components, V.Components()...)
		names = append(names, V.Name)
	}
	W.Name = strings.Join(names, "*")
	return
}

func (V *FunctionSpace) IsMixed() bool { return V.components != nil }

// Len is the number of components, 1 for a single space.
func (V *FunctionSpace) Len() int {
	if V.IsMixed() {
		return len(V.components)
	}
	return 1
}

func (V *FunctionSpace) Sub(i int) *FunctionSpace {
	return V.Components()[i]
}

func (V *FunctionSpace) Components() []*FunctionSpace {
	if V.IsMixed() {
		return V.components
	}
	return []*FunctionSpace{V}
}

// Shape is the value shape of a field on the space: empty for scalars, the
// value size for vectors and the summed value size for mixed spaces.
func (V *FunctionSpace) Shape() []int {
	if !V.IsMixed() {
		if V.Element.ValueSize == 1 {
			return []int{}
		}
		return []int{V.Element.ValueSize}
	}
	var n int
	for _, sub := range V.components {
		n += sub.Element.ValueSize
	}
	return []int{n}
}

// DofCount is the length of the flattened value array.
func (V *FunctionSpace) DofCount() (n int) {
	for _, sub := range V.Components() {
		n += sub.Nodes.Size * sub.Element.ValueSize
	}
	return
}

// CellDofs returns the flattened dof indices touched by cell k, component by
// component, node major within a component.
func (V *FunctionSpace) CellDofs(k int) (dofs []int) {
	var offset int
	for _, sub := range V.Components() {
		bs := sub.Element.ValueSize
		for _, n := range sub.CellNodes.Row(k) {
			for b := 0; b < bs; b++ {
				dofs = append(dofs, offset+n*bs+b)
			}
		}
		offset += sub.Nodes.Size * bs
	}
	return
}

// BoundaryNodes returns the nodes on vertices that belong to a single cell.
func (V *FunctionSpace) BoundaryNodes() (nodes []int) {
	if V.IsMixed() || !V.Element.Continuous() {
		return nil
	}
	for v, cells := range V.Mesh.VertexCells() {
		if len(cells) != 1 {
			continue
		}
		k := cells[0]
		row := V.CellNodes.Row(k)
		if V.Mesh.EToV[k][0] == v {
			nodes = append(nodes, row[0])
		} else {
			nodes = append(nodes, row[len(row)-1])
		}
	}
	return
}

func (V *FunctionSpace) String() string { return V.Name }
