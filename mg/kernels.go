package mg

import (
	"fmt"
	"math"

	"github.com/notargets/gomg/DG1D"
	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/parloop"
)

type KernelKind uint8

const (
	ProlongKernel KernelKind = iota
	RestrictKernel
	InjectKernel
)

func (k KernelKind) String() string {
	return [...]string{"prolong", "restrict", "inject"}[k]
}

// containmentTol is the reference coordinate slack accepted when testing
// whether a point lies inside a cell.
const containmentTol = 1.e-10

// TransferKernel is a generated kernel plus the metadata that selects how it
// is invoked. DG is set for injection into a discontinuous coarse space,
// where the kernel runs over coarse cells instead of coarse nodes.
type TransferKernel struct {
	Name   string
	Kernel parloop.Kernel
	DG     bool
}

type kernelKey struct {
	kind         KernelKind
	coarse, fine fem.Signature
}

func supported(fe fem.FiniteElement) bool {
	if fe.Dim != 1 {
		return false
	}
	switch fe.Family {
	case fem.CG:
		return fe.Degree >= 1
	case fem.DG:
		return fe.Degree >= 0
	}
	return false
}

// GenerateKernel builds the kind kernel for a coarse/fine element pair.
//
// Argument layouts, in par loop order:
//
//	prolong:  fine out[bs], coarse in[Npc*bs], fine node x[1], coarse cell coords[2]
//	restrict: coarse out[Npc*bs], fine in[bs], fine node x[1], coarse cell coords[2]
//	inject:   coarse out[bs], coarse node x[1], fine in[nf*Npf*bs], fine cell coords[nf*2]
//	inject DG: coarse out[Npc*bs], fine in[nf*Npf*bs], fine cell coords[nf*2], coarse cell coords[2]
//
// where nf is the number of fine cells nested in a coarse cell.
func GenerateKernel(kind KernelKind, coarse, fine fem.FiniteElement) (tk *TransferKernel, err error) {
	if !supported(coarse) || !supported(fine) || coarse.ValueSize != fine.ValueSize {
		return nil, fmt.Errorf("%s %s -> %s: %w", kind, coarse, fine, ErrUnsupportedElementPair)
	}
	var refC, refF *DG1D.LagrangeElement1D
	if refC, err = DG1D.NewLagrangeElement1D(coarse.Degree); err != nil {
		return
	}
	if refF, err = DG1D.NewLagrangeElement1D(fine.Degree); err != nil {
		return
	}
	tk = &TransferKernel{Name: fmt.Sprintf("%s_%s_%s", kind, coarse.Signature(), fine.Signature())}
	switch kind {
	case ProlongKernel:
		tk.Kernel = prolongKernel(refC)
	case RestrictKernel:
		tk.Kernel = restrictKernel(refC)
	case InjectKernel:
		if !coarse.Continuous() {
			tk.DG = true
			tk.Kernel, err = injectDGKernel(refC, refF)
		} else {
			tk.Kernel = injectKernel(refF)
		}
	default:
		err = fmt.Errorf("unknown kernel kind %d", kind)
	}
	return
}

// x = sum_i c_i phi_i(x_hat)
func prolongKernel(refC *DG1D.LagrangeElement1D) parloop.Kernel {
	return func(args ...[]float64) {
		out, c, x, cx := args[0], args[1], args[2], args[3]
		bs := len(out)
		phi := refC.Basis(DG1D.ToReference(x[0], cx[0], cx[1]))
		for b := range out {
			var sum float64
			for i, p := range phi {
				sum += p * c[i*bs+b]
			}
			out[b] = sum
		}
	}
}

func restrictKernel(refC *DG1D.LagrangeElement1D) parloop.Kernel {
	return func(args ...[]float64) {
		out, f, x, cx := args[0], args[1], args[2], args[3]
		bs := len(f)
		phi := refC.Basis(DG1D.ToReference(x[0], cx[0], cx[1]))
		for i, p := range phi {
			for b, val := range f {
				out[i*bs+b] += p * val
			}
		}
	}
}

// injectKernel evaluates the fine field at the coarse node from the first
// candidate fine cell containing it. Candidates arrive in ascending cell
// order so a node on a shared vertex takes the lowest index fine cell.
func injectKernel(refF *DG1D.LagrangeElement1D) parloop.Kernel {
	return func(args ...[]float64) {
		out, x, f, fc := args[0], args[1], args[2], args[3]
		var (
			bs    = len(out)
			nf    = len(fc) / 2
			cell  = -1
			r     float64
			dbest = math.Inf(1)
		)
		for c := 0; c < nf; c++ {
			rc := DG1D.ToReference(x[0], fc[2*c], fc[2*c+1])
			d := math.Abs(rc) - 1
			if d <= containmentTol {
				cell, r = c, rc
				break
			}
			if d < dbest {
				cell, r, dbest = c, rc, d
			}
		}
		r = math.Max(-1, math.Min(1, r))
		phi := refF.Basis(r)
		base := cell * refF.Np * bs
		for b := range out {
			var sum float64
			for i, p := range phi {
				sum += p * f[base+i*bs+b]
			}
			out[b] += sum
		}
	}
}

// injectDGKernel solves (u_c, v_c) = (f, v_c) on each coarse cell, with the
// right hand side integrated on the nested fine cells.
func injectDGKernel(refC, refF *DG1D.LagrangeElement1D) (k parloop.Kernel, err error) {
	var (
		npc, npf = refC.Np, refF.Np
		rq, wq   = DG1D.Quadrature((refC.Degree+refF.Degree)/2 + 1)
		phiF     = refF.InterpMatrix(rq.DataP)
	)
	Minv, err := refC.MassMatrix().Inverse()
	if err != nil {
		return
	}
	k = func(args ...[]float64) {
		out, f, fc, cx := args[0], args[1], args[2], args[3]
		var (
			bs  = len(out) / npc
			nf  = len(fc) / 2
			hc  = cx[1] - cx[0]
			rhs = make([]float64, npc*bs)
		)
		for c := 0; c < nf; c++ {
			x0, x1 := fc[2*c], fc[2*c+1]
			scale := (x1 - x0) / hc
			for q, r := range rq.DataP {
				phiC := refC.Basis(DG1D.ToReference(DG1D.ToPhysical(r, x0, x1), cx[0], cx[1]))
				w := scale * wq.AtVec(q)
				for b := 0; b < bs; b++ {
					var fq float64
					for i := 0; i < npf; i++ {
						fq += phiF.At(q, i) * f[(c*npf+i)*bs+b]
					}
					for i, p := range phiC {
						rhs[i*bs+b] += w * fq * p
					}
				}
			}
		}
		for i := 0; i < npc; i++ {
			for b := 0; b < bs; b++ {
				var sum float64
				for j := 0; j < npc; j++ {
					sum += Minv.At(i, j) * rhs[j*bs+b]
				}
				out[i*bs+b] += sum
			}
		}
	}
	return
}
