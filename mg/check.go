package mg

import (
	"fmt"
	"slices"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
)

// levels is the hierarchy position of a validated coarse/fine pair.
type levels struct {
	hierarchy    *mesh.MeshHierarchy
	coarse, fine int
}

// CheckArguments validates that coarse and fine can be transferred between:
// both meshes are registered, coarse is on a strictly coarser level of the
// same hierarchy, and the field shapes agree.
func CheckArguments(reg *mesh.Registry, coarse, fine *fem.Function) (err error) {
	_, err = checkArguments(reg, coarse, fine)
	return
}

func checkArguments(reg *mesh.Registry, coarse, fine *fem.Function) (lv levels, err error) {
	var (
		cm        = coarse.FunctionSpace().Mesh
		fm        = fine.FunctionSpace().Mesh
		ch, fh    *mesh.MeshHierarchy
		clvl, flv int
		ok        bool
	)
	if ch, clvl, ok = reg.Lookup(cm); !ok {
		return lv, fmt.Errorf("coarse function %s: %w", coarse.Name, ErrNotInHierarchy)
	}
	if fh, flv, ok = reg.Lookup(fm); !ok {
		return lv, fmt.Errorf("fine function %s: %w", fine.Name, ErrNotInHierarchy)
	}
	if clvl >= flv {
		return lv, fmt.Errorf("coarse level %d, fine level %d: %w", clvl, flv, ErrLevelOrdering)
	}
	if ch.ID != fh.ID {
		return lv, fmt.Errorf("hierarchies %s and %s: %w", ch.ID, fh.ID, ErrHierarchyMismatch)
	}
	if cs, fs := coarse.Shape(), fine.Shape(); !slices.Equal(cs, fs) {
		return lv, fmt.Errorf("coarse shape %v, fine shape %v: %w", cs, fs, ErrShapeMismatch)
	}
	return levels{
		hierarchy: ch,
		coarse:    clvl,
		fine:      flv,
	}, nil
}

// checkComponents is the mixed space part of the validation: both sides
// must have the same number of components.
func checkComponents(coarse, fine *fem.Function) error {
	if nc, nf := coarse.FunctionSpace().Len(), fine.FunctionSpace().Len(); nc != nf {
		return fmt.Errorf("mixed spaces have different lengths %d and %d: %w", nc, nf, ErrShapeMismatch)
	}
	return nil
}
