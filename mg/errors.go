package mg

import "errors"

// Transfer failures. They are returned before any halo exchange or kernel
// invocation, so the output field is never partially written.
var (
	ErrNotInHierarchy         = errors.New("function space mesh is not part of a mesh hierarchy")
	ErrLevelOrdering          = errors.New("coarse function must be from a coarser level than fine function")
	ErrHierarchyMismatch      = errors.New("cannot transfer between functions from different hierarchies")
	ErrShapeMismatch          = errors.New("mismatching function space shapes")
	ErrUnsupportedElementPair = errors.New("no transfer kernel for element pair")
)
