// Package slate builds cell-local linear algebra expressions over finite
// element spaces and assembles them into global sparse systems. Expressions
// are evaluated one cell at a time, only when assembled.
package slate

import (
	"errors"
	"fmt"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/utils"
)

var ErrShape = errors.New("incompatible tensor shapes")

// Tensor is a rank 1 (coefficient vector) or rank 2 (operator) expression.
// Arguments lists the row space, then the column space for rank 2.
type Tensor interface {
	Rank() int
	Arguments() []*fem.FunctionSpace
	// Shape is the local dimension of each argument on one cell
	Shape() []int
	// Local evaluates the expression on cell k, vectors as one column
	Local(k int) (utils.Matrix, error)
	// Err is a composition error, carried up the expression tree
	Err() error
	String() string
}

// LocalFunc returns the local tensor of a leaf on cell k, spanning [x0,x1].
type LocalFunc func(k int, x0, x1 float64) utils.Matrix

// localDim is the number of dofs one cell touches in V.
func localDim(V *fem.FunctionSpace) (n int) {
	for _, sub := range V.Components() {
		n += sub.Ref.Np * sub.Element.ValueSize
	}
	return
}

func shapeOf(args []*fem.FunctionSpace) (shape []int) {
	for _, V := range args {
		shape = append(shape, localDim(V))
	}
	return
}

func firstErr(ts ...Tensor) error {
	for _, t := range ts {
		if err := t.Err(); err != nil {
			return err
		}
	}
	return nil
}

type leaf struct {
	name string
	args []*fem.FunctionSpace
	f    LocalFunc
}

// Matrix is an operator leaf mapping col into row.
func Matrix(name string, row, col *fem.FunctionSpace, f LocalFunc) Tensor {
	return &leaf{name: name, args: []*fem.FunctionSpace{row, col}, f: f}
}

// Vector is a coefficient leaf on row.
func Vector(name string, row *fem.FunctionSpace, f LocalFunc) Tensor {
	return &leaf{name: name, args: []*fem.FunctionSpace{row}, f: f}
}

// Coefficient wraps the cell values of a field as a vector leaf. The values
// are captured when the leaf is built.
func Coefficient(u *fem.Function) Tensor {
	var (
		V    = u.FunctionSpace()
		data = u.Values()
	)
	return Vector(u.Name, V, func(k int, _, _ float64) utils.Matrix {
		var (
			dofs = V.CellDofs(k)
			c    = make([]float64, len(dofs))
		)
		for i, d := range dofs {
			c[i] = data[d]
		}
		return utils.NewMatrix(len(c), 1, c)
	})
}

func (l *leaf) Rank() int                       { return len(l.args) }
func (l *leaf) Arguments() []*fem.FunctionSpace { return l.args }
func (l *leaf) Shape() []int                    { return shapeOf(l.args) }
func (l *leaf) Err() error                      { return nil }
func (l *leaf) String() string                  { return l.name }

func (l *leaf) Local(k int) (A utils.Matrix, err error) {
	var (
		m      = l.args[0].Mesh
		x0, x1 = m.CellBounds(k)
		shape  = l.Shape()
	)
	A = l.f(k, x0, x1)
	nr, nc := A.Dims()
	want := 1
	if l.Rank() == 2 {
		want = shape[1]
	}
	if nr != shape[0] || nc != want {
		err = fmt.Errorf("%s on cell %d is [%d,%d], expected [%d,%d]: %w",
			l.name, k, nr, nc, shape[0], want, ErrShape)
	}
	return
}

type inverse struct {
	t   Tensor
	err error
}

// Inverse of a square operator.
func Inverse(t Tensor) Tensor {
	inv := &inverse{t: t, err: t.Err()}
	if inv.err == nil {
		if s := t.Shape(); t.Rank() != 2 || s[0] != s[1] {
			inv.err = fmt.Errorf("inverse of %s with shape %v: %w", t, s, ErrShape)
		}
	}
	return inv
}

func (n *inverse) Rank() int { return 2 }
func (n *inverse) Arguments() []*fem.FunctionSpace {
	args := n.t.Arguments()
	return []*fem.FunctionSpace{args[len(args)-1], args[0]}
}
func (n *inverse) Shape() []int   { return shapeOf(n.Arguments()) }
func (n *inverse) Err() error     { return n.err }
func (n *inverse) String() string { return n.t.String() + ".inv" }

func (n *inverse) Local(k int) (A utils.Matrix, err error) {
	if n.err != nil {
		return A, n.err
	}
	if A, err = n.t.Local(k); err != nil {
		return
	}
	if A, err = A.Inverse(); err != nil {
		err = fmt.Errorf("%s on cell %d: %w", n, k, err)
	}
	return
}

type transpose struct {
	t   Tensor
	err error
}

func Transpose(t Tensor) Tensor {
	tr := &transpose{t: t, err: t.Err()}
	if tr.err == nil && t.Rank() != 2 {
		tr.err = fmt.Errorf("transpose of vector %s: %w", t, ErrShape)
	}
	return tr
}

func (n *transpose) Rank() int { return 2 }
func (n *transpose) Arguments() []*fem.FunctionSpace {
	args := n.t.Arguments()
	return []*fem.FunctionSpace{args[len(args)-1], args[0]}
}
func (n *transpose) Shape() []int   { return shapeOf(n.Arguments()) }
func (n *transpose) Err() error     { return n.err }
func (n *transpose) String() string { return n.t.String() + ".T" }

func (n *transpose) Local(k int) (A utils.Matrix, err error) {
	if n.err != nil {
		return A, n.err
	}
	if A, err = n.t.Local(k); err != nil {
		return
	}
	return A.Transpose(), nil
}

type product struct {
	a, b Tensor
	err  error
}

// Product is a*b. The column space of a must be the row space of b.
func Product(a, b Tensor) Tensor {
	p := &product{a: a, b: b, err: firstErr(a, b)}
	if p.err == nil {
		switch {
		case a.Rank() != 2:
			p.err = fmt.Errorf("product %s*%s: left operand is a vector: %w", a, b, ErrShape)
		case a.Arguments()[1] != b.Arguments()[0]:
			p.err = fmt.Errorf("product %s*%s: column space %s does not match row space %s: %w",
				a, b, a.Arguments()[1], b.Arguments()[0], ErrShape)
		}
	}
	return p
}

// Action applies an operator to the cell values of u.
func Action(t Tensor, u *fem.Function) Tensor {
	return Product(t, Coefficient(u))
}

func (n *product) Rank() int { return n.b.Rank() }
func (n *product) Arguments() []*fem.FunctionSpace {
	return append([]*fem.FunctionSpace{n.a.Arguments()[0]}, n.b.Arguments()[1:]...)
}
func (n *product) Shape() []int   { return shapeOf(n.Arguments()) }
func (n *product) Err() error     { return n.err }
func (n *product) String() string { return "(" + n.a.String() + "*" + n.b.String() + ")" }

func (n *product) Local(k int) (A utils.Matrix, err error) {
	if n.err != nil {
		return A, n.err
	}
	var B utils.Matrix
	if A, err = n.a.Local(k); err != nil {
		return
	}
	if B, err = n.b.Local(k); err != nil {
		return
	}
	return A.Mul(B), nil
}

type sum struct {
	a, b Tensor
	err  error
}

// Sum is a+b over identical arguments.
func Sum(a, b Tensor) Tensor {
	s := &sum{a: a, b: b, err: firstErr(a, b)}
	if s.err == nil {
		aa, ba := a.Arguments(), b.Arguments()
		if len(aa) != len(ba) {
			s.err = fmt.Errorf("sum %s+%s: rank %d and %d: %w", a, b, len(aa), len(ba), ErrShape)
			return s
		}
		for i := range aa {
			if aa[i] != ba[i] {
				s.err = fmt.Errorf("sum %s+%s: argument %d differs: %w", a, b, i, ErrShape)
				return s
			}
		}
	}
	return s
}

func (n *sum) Rank() int                       { return n.a.Rank() }
func (n *sum) Arguments() []*fem.FunctionSpace { return n.a.Arguments() }
func (n *sum) Shape() []int                    { return n.a.Shape() }
func (n *sum) Err() error                      { return n.err }
func (n *sum) String() string                  { return "(" + n.a.String() + "+" + n.b.String() + ")" }

func (n *sum) Local(k int) (A utils.Matrix, err error) {
	if n.err != nil {
		return A, n.err
	}
	var B utils.Matrix
	if A, err = n.a.Local(k); err != nil {
		return
	}
	if B, err = n.b.Local(k); err != nil {
		return
	}
	return A.Copy().Add(B), nil
}

type negative struct {
	t Tensor
}

func Negative(t Tensor) Tensor { return &negative{t: t} }

func (n *negative) Rank() int                       { return n.t.Rank() }
func (n *negative) Arguments() []*fem.FunctionSpace { return n.t.Arguments() }
func (n *negative) Shape() []int                    { return n.t.Shape() }
func (n *negative) Err() error                      { return n.t.Err() }
func (n *negative) String() string                  { return "-" + n.t.String() }

func (n *negative) Local(k int) (A utils.Matrix, err error) {
	if A, err = n.t.Local(k); err != nil {
		return
	}
	return A.Copy().Scale(-1), nil
}
