package fem

import (
	"errors"
	"fmt"
)

var ErrInvalidElement = errors.New("invalid finite element")

// Family is the continuity class of an element.
type Family uint8

const (
	CG    Family = iota + 1 // Continuous Lagrange
	DG                      // Discontinuous Lagrange
	Trace                   // Values on cell facets only
)

func (f Family) String() string {
	switch f {
	case CG:
		return "CG"
	case DG:
		return "DG"
	case Trace:
		return "Trace"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

func ParseFamily(s string) (f Family, err error) {
	switch s {
	case "CG", "Lagrange", "P":
		return CG, nil
	case "DG", "Discontinuous Lagrange", "DP":
		return DG, nil
	case "Trace", "HDiv Trace":
		return Trace, nil
	}
	return 0, fmt.Errorf("unknown element family %q: %w", s, ErrInvalidElement)
}

// FiniteElement describes the element of a single function space.
type FiniteElement struct {
	Family    Family
	Degree    int
	Dim       int // Topological dimension of the cell
	ValueSize int // Number of components per node
}

// Signature is the key that identifies an element for kernel generation.
type Signature struct {
	Family Family
	Degree int
	Dim    int
}

func NewFiniteElement(family Family, degree int) FiniteElement {
	return FiniteElement{Family: family, Degree: degree, Dim: 1, ValueSize: 1}
}

func NewVectorElement(family Family, degree, valueSize int) FiniteElement {
	fe := NewFiniteElement(family, degree)
	fe.ValueSize = valueSize
	return fe
}

func (fe FiniteElement) Signature() Signature {
	return Signature{Family: fe.Family, Degree: fe.Degree, Dim: fe.Dim}
}

// Continuous reports whether nodes on shared vertices are shared by the
// neighbouring cells.
func (fe FiniteElement) Continuous() bool { return fe.Family != DG }

func (fe FiniteElement) Validate() error {
	switch {
	case fe.Dim != 1:
		return fmt.Errorf("%s: only interval cells are supported: %w", fe, ErrInvalidElement)
	case fe.ValueSize < 1:
		return fmt.Errorf("%s: value size must be positive: %w", fe, ErrInvalidElement)
	case fe.Family == CG && fe.Degree < 1:
		return fmt.Errorf("%s: continuous elements need degree >= 1: %w", fe, ErrInvalidElement)
	case fe.Family == DG && fe.Degree < 0:
		return fmt.Errorf("%s: negative degree: %w", fe, ErrInvalidElement)
	case fe.Family == Trace && fe.Degree != 0:
		return fmt.Errorf("%s: vertex traces have degree 0: %w", fe, ErrInvalidElement)
	case fe.Family != CG && fe.Family != DG && fe.Family != Trace:
		return fmt.Errorf("%s: %w", fe, ErrInvalidElement)
	}
	return nil
}

func (fe FiniteElement) String() string {
	if fe.ValueSize > 1 {
		return fmt.Sprintf("Vector%s%d^%d", fe.Family, fe.Degree, fe.ValueSize)
	}
	return fmt.Sprintf("%s%d", fe.Family, fe.Degree)
}

func (s Signature) String() string {
	return fmt.Sprintf("%s%d(dim=%d)", s.Family, s.Degree, s.Dim)
}
