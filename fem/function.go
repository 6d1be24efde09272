package fem

import (
	"fmt"
	"math"

	"github.com/notargets/gomg/DG1D"
	"github.com/notargets/gomg/parloop"
	"gonum.org/v1/gonum/floats"
)

// Function is a field on a FunctionSpace. A field on a mixed space holds one
// sub field per component and no storage of its own.
type Function struct {
	Name  string
	Dat   *parloop.Dat
	space *FunctionSpace
	subs  []*Function
}

func NewFunction(V *FunctionSpace, name ...string) (f *Function) {
	f = &Function{space: V, Name: "f"}
	if len(name) != 0 {
		f.Name = name[0]
	}
	if V.IsMixed() {
		for i, sub := range V.components {
			f.subs = append(f.subs, NewFunction(sub, fmt.Sprintf("%s[%d]", f.Name, i)))
		}
		return
	}
	f.Dat = parloop.NewDat(f.Name, V.Nodes, V.Element.ValueSize)
	return
}

func (f *Function) FunctionSpace() *FunctionSpace { return f.space }

// Split returns the component fields, the field itself for a single space.
// The components share storage with f.
func (f *Function) Split() []*Function {
	if f.subs != nil {
		return f.subs
	}
	return []*Function{f}
}

func (f *Function) Shape() []int { return f.space.Shape() }

func (f *Function) Zero() {
	for _, sub := range f.Split() {
		sub.Dat.Zero()
	}
}

// Values returns a copy of the owned values, components concatenated.
func (f *Function) Values() (v []float64) {
	for _, sub := range f.Split() {
		v = append(v, sub.Dat.Data()...)
	}
	return
}

func (f *Function) SetValues(v []float64) {
	if len(v) != f.space.DofCount() {
		panic(fmt.Errorf("function %s: have %d values, need %d", f.Name, len(v), f.space.DofCount()))
	}
	var offset int
	for _, sub := range f.Split() {
		n := sub.Dat.Len()
		sub.Dat.SetData(append([]float64(nil), v[offset:offset+n]...))
		offset += n
	}
}

func (f *Function) Assign(g *Function) { f.SetValues(g.Values()) }

func (f *Function) Copy(name string) (g *Function) {
	g = NewFunction(f.space, name)
	g.Assign(f)
	return
}

func (f *Function) Dot(g *Function) float64 { return floats.Dot(f.Values(), g.Values()) }

// Interpolate sets nodal values from fns, one per value component; a single
// fn is used for every component. On a mixed space the fns are consumed
// component by component.
func (f *Function) Interpolate(fns ...func(x float64) float64) (err error) {
	if f.subs != nil {
		var used int
		for _, sub := range f.subs {
			n := sub.space.Element.ValueSize
			if len(fns) == 1 {
				err = sub.Interpolate(fns[0])
			} else if used+n <= len(fns) {
				err = sub.Interpolate(fns[used : used+n]...)
			} else {
				err = fmt.Errorf("function %s: need %d expressions, have %d", f.Name, used+n, len(fns))
			}
			if err != nil {
				return
			}
			used += n
		}
		return
	}
	bs := f.space.Element.ValueSize
	if len(fns) != 1 && len(fns) != bs {
		return fmt.Errorf("function %s: need 1 or %d expressions, have %d", f.Name, bs, len(fns))
	}
	var loc *parloop.Dat
	if loc, err = PhysicalNodeLocations(f.space); err != nil {
		return
	}
	return parloop.ParLoop(func(args ...[]float64) {
		out, x := args[0], args[1]
		for b := range out {
			out[b] = fns[b%len(fns)](x[0])
		}
	}, f.space.Nodes, f.Dat.Arg(parloop.WRITE), loc.Arg(parloop.READ))
}

// At evaluates a single space field at physical point x from the lowest
// index cell containing it.
func (f *Function) At(x float64) (vals []float64, err error) {
	V := f.space
	if V.IsMixed() {
		for _, sub := range f.subs {
			var v []float64
			if v, err = sub.At(x); err != nil {
				return
			}
			vals = append(vals, v...)
		}
		return
	}
	tol := 1.e-12
	for k := 0; k < V.Mesh.K; k++ {
		x0, x1 := V.Mesh.CellBounds(k)
		r := DG1D.ToReference(x, x0, x1)
		if math.Abs(r) > 1+tol {
			continue
		}
		var (
			bs   = V.Element.ValueSize
			data = f.Dat.Data()
			phi  = V.Ref.Basis(r)
		)
		vals = make([]float64, bs)
		for i, n := range V.CellNodes.Row(k) {
			for b := 0; b < bs; b++ {
				vals[b] += phi[i] * data[n*bs+b]
			}
		}
		return
	}
	return nil, fmt.Errorf("point %g is outside mesh %s", x, V.Mesh.Name)
}

// Norm is the discrete L2 norm computed with a Gauss rule on every cell.
func (f *Function) Norm(exact ...func(x float64) float64) (nrm float64) {
	for i, sub := range f.Split() {
		V := sub.space
		bs := V.Element.ValueSize
		data := sub.Dat.Data()
		rq, wq := DG1D.Quadrature(V.Ref.Degree + 3)
		for k := 0; k < V.Mesh.K; k++ {
			x0, x1 := V.Mesh.CellBounds(k)
			row := V.CellNodes.Row(k)
			for q, r := range rq.DataP {
				phi := V.Ref.Basis(r)
				for b := 0; b < bs; b++ {
					var u float64
					for j, n := range row {
						u += phi[j] * data[n*bs+b]
					}
					if len(exact) > i {
						u -= exact[i](DG1D.ToPhysical(r, x0, x1))
					}
					nrm += 0.5 * (x1 - x0) * wq.AtVec(q) * u * u
				}
			}
		}
	}
	return math.Sqrt(nrm)
}
