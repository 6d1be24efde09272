package fem

import (
	"fmt"

	"github.com/notargets/gomg/DG1D"
	"github.com/notargets/gomg/parloop"
	"github.com/notargets/gomg/utils"
)

// BilinearForm is a(u,v) = Stiffness*(u',v') + Mass*(u,v), applied to each
// value component independently.
type BilinearForm struct {
	Stiffness, Mass float64
}

// LinearForm is L(v) = (Source,v).
type LinearForm struct {
	Source func(x float64) float64
}

// LocalMatrix returns the element matrix of a on a cell of length h.
func (a BilinearForm) LocalMatrix(ref *DG1D.LagrangeElement1D, h float64) (A utils.Matrix) {
	A = ref.MassMatrix().Scale(a.Mass * 0.5 * h)
	if a.Stiffness != 0 {
		A.Add(ref.StiffnessMatrix().Scale(a.Stiffness * 2 / h))
	}
	return
}

// AssembleMatrix assembles a on a single space.
func AssembleMatrix(V *FunctionSpace, a BilinearForm) (A utils.CSR, err error) {
	if V.IsMixed() {
		err = fmt.Errorf("assemble on mixed space %s: assemble per component", V)
		return
	}
	var (
		N   = V.DofCount()
		dok = utils.NewDOK(N, N)
		bs  = V.Element.ValueSize
	)
	for k := 0; k < V.Mesh.K; k++ {
		x0, x1 := V.Mesh.CellBounds(k)
		Ak := a.LocalMatrix(V.Ref, x1-x0)
		row := V.CellNodes.Row(k)
		for b := 0; b < bs; b++ {
			dofs := make(utils.Index, len(row))
			for i, n := range row {
				dofs[i] = n*bs + b
			}
			dok.AddBlock(dofs, dofs, Ak)
		}
	}
	return dok.ToCSR(), nil
}

// AssembleVector assembles L into a dual field on V with a par loop over
// cells.
func AssembleVector(V *FunctionSpace, L LinearForm) (b *Function, err error) {
	if V.IsMixed() {
		err = fmt.Errorf("assemble on mixed space %s: assemble per component", V)
		return
	}
	var (
		coords *Function
		ref    = V.Ref
		rq, wq = DG1D.Quadrature(ref.Degree + 2)
		phiQ   = ref.InterpMatrix(rq.DataP)
	)
	if coords, err = CoordinateFunction(V.Mesh); err != nil {
		return
	}
	b = NewFunction(V, "rhs")
	bs := V.Element.ValueSize
	err = parloop.ParLoop(func(args ...[]float64) {
		out, cx := args[0], args[1]
		h := cx[1] - cx[0]
		for q, r := range rq.DataP {
			fq := 0.5 * h * wq.AtVec(q) * L.Source(DG1D.ToPhysical(r, cx[0], cx[1]))
			for i := 0; i < ref.Np; i++ {
				for c := 0; c < bs; c++ {
					out[i*bs+c] += fq * phiQ.At(q, i)
				}
			}
		}
	}, V.Mesh.CellSet(),
		b.Dat.Arg(parloop.INC, V.CellNodes),
		coords.Dat.Arg(parloop.READ, coords.FunctionSpace().CellNodes))
	return
}
