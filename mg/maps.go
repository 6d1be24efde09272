package mg

import (
	"fmt"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
	"github.com/notargets/gomg/parloop"
)

type MapKind uint8

const (
	FineNodeToCoarseNode MapKind = iota
	CoarseNodeToFineNode
	CoarseCellToFineNode
)

func (k MapKind) String() string {
	return [...]string{"fine_node_to_coarse_node", "coarse_node_to_fine_node", "coarse_cell_to_fine_node"}[k]
}

// Node sets are shared by every space with the same mesh and node layout, so
// they identify a (mesh, element) pair.
type mapKey struct {
	kind     MapKind
	src, dst *parloop.Set
}

// FineNodeToCoarseNodeMap maps each node of Vf to the nodes of the coarse
// cell of Vc that contains it. The containing coarse cell is the ancestor of
// the lowest index fine cell holding the node.
func FineNodeToCoarseNodeMap(mh *mesh.MeshHierarchy, coarseLevel, fineLevel int,
	Vf, Vc *fem.FunctionSpace) *parloop.Map {
	var (
		arity  = Vc.CellNodes.Arity
		values = make([]int, 0, Vf.Nodes.Size*arity)
	)
	for n := 0; n < Vf.Nodes.Size; n++ {
		cc := mh.Ancestor(fineLevel, Vf.NodeCell[n], coarseLevel)
		values = append(values, Vc.CellNodes.Row(cc)...)
	}
	return parloop.NewMap(mapName(FineNodeToCoarseNode, Vf.Nodes, Vc.Nodes), Vf.Nodes, Vc.Nodes, arity, values)
}

// CoarseNodeToFineNodeMap maps each node of Vc to the nodes of every fine
// cell nested in the lowest index coarse cell holding the node, fine cells
// in ascending order.
func CoarseNodeToFineNodeMap(mh *mesh.MeshHierarchy, coarseLevel, fineLevel int,
	Vc, Vf *fem.FunctionSpace) *parloop.Map {
	var (
		nDesc  = 1 << (fineLevel - coarseLevel)
		arity  = nDesc * Vf.CellNodes.Arity
		values = make([]int, 0, Vc.Nodes.Size*arity)
	)
	for n := 0; n < Vc.Nodes.Size; n++ {
		for _, fc := range mh.Descendants(coarseLevel, Vc.NodeCell[n], fineLevel) {
			values = append(values, Vf.CellNodes.Row(fc)...)
		}
	}
	return parloop.NewMap(mapName(CoarseNodeToFineNode, Vc.Nodes, Vf.Nodes), Vc.Nodes, Vf.Nodes, arity, values)
}

// CoarseCellToFineNodeMap maps each cell of the coarse mesh to the nodes of
// its nested fine cells, fine cells in ascending order.
func CoarseCellToFineNodeMap(mh *mesh.MeshHierarchy, coarseLevel, fineLevel int,
	Vf *fem.FunctionSpace) *parloop.Map {
	var (
		cm     = mh.Meshes[coarseLevel]
		nDesc  = 1 << (fineLevel - coarseLevel)
		arity  = nDesc * Vf.CellNodes.Arity
		values = make([]int, 0, cm.K*arity)
		cells  = cm.CellSet()
	)
	for k := 0; k < cm.K; k++ {
		for _, fc := range mh.Descendants(coarseLevel, k, fineLevel) {
			values = append(values, Vf.CellNodes.Row(fc)...)
		}
	}
	return parloop.NewMap(mapName(CoarseCellToFineNode, cells, Vf.Nodes), cells, Vf.Nodes, arity, values)
}

func mapName(kind MapKind, src, dst *parloop.Set) string {
	return fmt.Sprintf("%s(%s->%s)", kind, src.Name, dst.Name)
}
