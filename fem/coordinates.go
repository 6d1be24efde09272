package fem

import (
	"fmt"
	"sync"

	"github.com/notargets/gomg/DG1D"
	"github.com/notargets/gomg/mesh"
	"github.com/notargets/gomg/parloop"
)

type coordEntry struct {
	once sync.Once
	f    *Function
	err  error
}

var coordinates sync.Map

// CoordinateFunction is the CG1 field of vertex positions of m. It is built
// once per mesh and must be treated as read only.
func CoordinateFunction(m *mesh.Mesh) (*Function, error) {
	v, _ := coordinates.LoadOrStore(m, &coordEntry{})
	entry := v.(*coordEntry)
	entry.once.Do(func() {
		var V *FunctionSpace
		if V, entry.err = NewFunctionSpace(m, NewFiniteElement(CG, 1)); entry.err != nil {
			return
		}
		entry.f = NewFunction(V, m.Name+"_coordinates")
		// CG1 node numbers are vertex numbers
		entry.f.Dat.SetData(append([]float64(nil), m.VX...))
	})
	return entry.f, entry.err
}

// PhysicalNodeLocations returns the position of every node of a single space,
// pushed forward from the reference nodes through each cell's affine map. The
// result is shared by all spaces with the same node layout.
func PhysicalNodeLocations(V *FunctionSpace) (*parloop.Dat, error) {
	if V.IsMixed() {
		return nil, fmt.Errorf("node locations of mixed space %s: take them per component", V)
	}
	nl := V.layout
	nl.locOnce.Do(func() {
		var coords *Function
		if coords, nl.locErr = CoordinateFunction(V.Mesh); nl.locErr != nil {
			return
		}
		loc := parloop.NewDat(nl.Nodes.Name+"_locations", nl.Nodes, 1)
		R := nl.Ref.R.DataP
		nl.locErr = parloop.ParLoop(func(args ...[]float64) {
			x, cx := args[0], args[1]
			for j, r := range R {
				x[j] = DG1D.ToPhysical(r, cx[0], cx[1])
			}
		}, V.Mesh.CellSet(),
			loc.Arg(parloop.WRITE, nl.CellNodes),
			coords.Dat.Arg(parloop.READ, coords.FunctionSpace().CellNodes))
		if nl.locErr != nil {
			return
		}
		if nl.locErr = loc.GlobalToLocalBegin(parloop.READ); nl.locErr != nil {
			return
		}
		if nl.locErr = loc.GlobalToLocalEnd(parloop.READ); nl.locErr != nil {
			return
		}
		nl.locations = loc
	})
	return nl.locations, nl.locErr
}
