package slate

import (
	"fmt"

	"github.com/notargets/gomg/utils"
)

// AssembleMatrix sums the local operators of t over every cell into a global
// matrix, scattering through the cell dof maps of its arguments.
func AssembleMatrix(t Tensor) (A utils.DOK, err error) {
	if err = t.Err(); err != nil {
		return
	}
	if t.Rank() != 2 {
		err = fmt.Errorf("assemble %s as a matrix: rank %d: %w", t, t.Rank(), ErrShape)
		return
	}
	var (
		args     = t.Arguments()
		row, col = args[0], args[1]
		Ak       utils.Matrix
	)
	if row.Mesh != col.Mesh {
		err = fmt.Errorf("assemble %s: arguments on different meshes: %w", t, ErrShape)
		return
	}
	A = utils.NewDOK(row.DofCount(), col.DofCount())
	for k := 0; k < row.Mesh.K; k++ {
		if Ak, err = t.Local(k); err != nil {
			return
		}
		A.AddBlock(row.CellDofs(k), col.CellDofs(k), Ak)
	}
	return
}

func AssembleVector(t Tensor) (b []float64, err error) {
	if err = t.Err(); err != nil {
		return
	}
	if t.Rank() != 1 {
		err = fmt.Errorf("assemble %s as a vector: rank %d: %w", t, t.Rank(), ErrShape)
		return
	}
	var (
		V  = t.Arguments()[0]
		bk utils.Matrix
	)
	b = make([]float64, V.DofCount())
	for k := 0; k < V.Mesh.K; k++ {
		if bk, err = t.Local(k); err != nil {
			return
		}
		for i, d := range V.CellDofs(k) {
			b[d] += bk.At(i, 0)
		}
	}
	return
}

// ApplyDirichlet constrains rows to the values g (zero when g is nil) while
// keeping A symmetric: constrained rows and columns are zeroed, the diagonal
// set to one and the column contributions moved to the right hand side.
func ApplyDirichlet(A utils.DOK, b []float64, rows []int, g []float64) {
	var (
		fixed = make(map[int]float64, len(rows))
	)
	for i, r := range rows {
		var val float64
		if g != nil {
			val = g[i]
		}
		fixed[r] = val
	}
	type entry struct {
		i, j int
		v    float64
	}
	var hits []entry
	A.M.DoNonZero(func(i, j int, v float64) {
		_, fi := fixed[i]
		_, fj := fixed[j]
		if fi || fj {
			hits = append(hits, entry{i, j, v})
		}
	})
	for _, e := range hits {
		if _, fi := fixed[e.i]; !fi {
			b[e.i] -= e.v * fixed[e.j]
		}
		A.Set(e.i, e.j, 0)
	}
	for r, val := range fixed {
		A.Set(r, r, 1)
		b[r] = val
	}
}
