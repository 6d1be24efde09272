package mg

import (
	"log/slog"
	"sync"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mesh"
	"github.com/notargets/gomg/parloop"
	"github.com/notargets/gomg/utils"
)

// TransferFunc moves data from the first field to the second.
type TransferFunc func(from, to *fem.Function) error

// TransferOperators is the set of transfers used for one function space.
// Nil members fall back to the TransferManager defaults.
type TransferOperators struct {
	Prolong  TransferFunc // coarse -> fine
	Restrict TransferFunc // fine dual -> coarse dual
	Inject   TransferFunc // fine -> coarse
}

// TransferManager owns the correspondence map and kernel caches of the
// hierarchies in a Registry, together with per space transfer overrides.
// Caches are shared by concurrent transfers; transfers into the same output
// field must be serialized by the caller.
type TransferManager struct {
	reg    *mesh.Registry
	logger *slog.Logger

	maps    cache[mapKey, *parloop.Map]
	kernels cache[kernelKey, *TransferKernel]

	mu        sync.RWMutex
	overrides map[*fem.FunctionSpace]TransferOperators
}

type Option func(tm *TransferManager)

func WithLogger(logger *slog.Logger) Option {
	return func(tm *TransferManager) {
		tm.logger = logger
	}
}

func NewTransferManager(reg *mesh.Registry, opts ...Option) (tm *TransferManager) {
	tm = &TransferManager{
		reg:       reg,
		logger:    utils.DiscardLogger(),
		overrides: make(map[*fem.FunctionSpace]TransferOperators),
	}
	for _, opt := range opts {
		opt(tm)
	}
	return
}

func (tm *TransferManager) Registry() *mesh.Registry { return tm.reg }

// Override installs ops for space V until the returned restore func is
// called, which reinstates whatever was installed before.
func (tm *TransferManager) Override(V *fem.FunctionSpace, ops TransferOperators) (restore func()) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	prev, had := tm.overrides[V]
	tm.overrides[V] = ops
	return func() {
		tm.mu.Lock()
		defer tm.mu.Unlock()
		if had {
			tm.overrides[V] = prev
		} else {
			delete(tm.overrides, V)
		}
	}
}

// Transfers returns the operators in effect for V.
func (tm *TransferManager) Transfers(V *fem.FunctionSpace) (ops TransferOperators) {
	tm.mu.RLock()
	ops = tm.overrides[V]
	tm.mu.RUnlock()
	if ops.Prolong == nil {
		ops.Prolong = tm.Prolong
	}
	if ops.Restrict == nil {
		ops.Restrict = tm.Restrict
	}
	if ops.Inject == nil {
		ops.Inject = tm.Inject
	}
	return
}

func (tm *TransferManager) kernel(kind KernelKind, coarse, fine fem.FiniteElement) (*TransferKernel, error) {
	key := kernelKey{kind: kind, coarse: coarse.Signature(), fine: fine.Signature()}
	return tm.kernels.get(key, func() (tk *TransferKernel, err error) {
		// value size is not part of the key, kernels read it off their arguments
		coarse.ValueSize, fine.ValueSize = 1, 1
		if tk, err = GenerateKernel(kind, coarse, fine); err == nil {
			tm.logger.Debug("generated transfer kernel", "kernel", tk.Name)
		}
		return
	})
}

func (tm *TransferManager) correspondence(kind MapKind, lv levels, src, dst *fem.FunctionSpace) (*parloop.Map, error) {
	var key mapKey
	switch kind {
	case CoarseCellToFineNode:
		key = mapKey{kind: kind, src: lv.hierarchy.Meshes[lv.coarse].CellSet(), dst: dst.Nodes}
	default:
		key = mapKey{kind: kind, src: src.Nodes, dst: dst.Nodes}
	}
	return tm.maps.get(key, func() (m *parloop.Map, err error) {
		switch kind {
		case FineNodeToCoarseNode:
			m = FineNodeToCoarseNodeMap(lv.hierarchy, lv.coarse, lv.fine, src, dst)
		case CoarseNodeToFineNode:
			m = CoarseNodeToFineNodeMap(lv.hierarchy, lv.coarse, lv.fine, src, dst)
		case CoarseCellToFineNode:
			m = CoarseCellToFineNodeMap(lv.hierarchy, lv.coarse, lv.fine, dst)
		}
		tm.logger.Debug("built correspondence map", "map", m.Name, "arity", m.Arity)
		return
	})
}

type mapRequest struct {
	kind     MapKind
	src, dst *fem.FunctionSpace
}

// prepare generates the kernel and the requested maps concurrently. Nothing
// in it touches field data.
func (tm *TransferManager) prepare(kind KernelKind, coarse, fine *fem.FunctionSpace, lv levels,
	reqs ...mapRequest) (tk *TransferKernel, maps []*parloop.Map, err error) {
	var (
		wg   sync.WaitGroup
		kerr error
		merr = make([]error, len(reqs))
	)
	maps = make([]*parloop.Map, len(reqs))
	wg.Add(1 + len(reqs))
	go func() {
		defer wg.Done()
		tk, kerr = tm.kernel(kind, coarse.Element, fine.Element)
	}()
	for i, req := range reqs {
		go func(i int, req mapRequest) {
			defer wg.Done()
			maps[i], merr[i] = tm.correspondence(req.kind, lv, req.src, req.dst)
		}(i, req)
	}
	wg.Wait()
	if kerr != nil {
		return nil, nil, kerr
	}
	for _, e := range merr {
		if e != nil {
			return nil, nil, e
		}
	}
	return
}

// haloBegin starts READ exchanges on dats. The returned end func completes
// them and must be called exactly once.
func haloBegin(dats ...*parloop.Dat) (end func() error, err error) {
	started := make([]*parloop.Dat, 0, len(dats))
	end = func() (err error) {
		for _, d := range started {
			if e := d.GlobalToLocalEnd(parloop.READ); e != nil && err == nil {
				err = e
			}
		}
		return
	}
	for _, d := range dats {
		if err = d.GlobalToLocalBegin(parloop.READ); err != nil {
			_ = end()
			return nil, err
		}
		started = append(started, d)
	}
	return
}

// Prolong interpolates coarse onto fine, overwriting fine.
func (tm *TransferManager) Prolong(coarse, fine *fem.Function) (err error) {
	var lv levels
	if lv, err = checkArguments(tm.reg, coarse, fine); err != nil {
		return
	}
	Vc, Vf := coarse.FunctionSpace(), fine.FunctionSpace()
	if Vc.IsMixed() || Vf.IsMixed() {
		if err = checkComponents(coarse, fine); err != nil {
			return
		}
		fs := fine.Split()
		for i, c := range coarse.Split() {
			if err = tm.Prolong(c, fs[i]); err != nil {
				return
			}
		}
		return
	}
	var (
		coords   *fem.Function
		tk       *TransferKernel
		maps     []*parloop.Map
		end      func() error
		nodeLocs *parloop.Dat
	)
	if coords, err = fem.CoordinateFunction(Vc.Mesh); err != nil {
		return
	}
	if tk, maps, err = tm.prepare(ProlongKernel, Vc, Vf, lv,
		mapRequest{FineNodeToCoarseNode, Vf, Vc},
		mapRequest{FineNodeToCoarseNode, Vf, coords.FunctionSpace()}); err != nil {
		return
	}
	// The stencil reaches coarse nodes outside the owned partition
	if end, err = haloBegin(coarse.Dat, coords.Dat); err != nil {
		return
	}
	nodeLocs, err = fem.PhysicalNodeLocations(Vf)
	if e := end(); err == nil {
		err = e
	}
	if err != nil {
		return
	}
	return parloop.ParLoop(tk.Kernel, Vf.Nodes,
		fine.Dat.Arg(parloop.WRITE),
		coarse.Dat.Arg(parloop.READ, maps[0]),
		nodeLocs.Arg(parloop.READ),
		coords.Dat.Arg(parloop.READ, maps[1]))
}

// Restrict applies the transpose of Prolong to the dual field fineDual and
// overwrites coarseDual with the result.
func (tm *TransferManager) Restrict(fineDual, coarseDual *fem.Function) (err error) {
	var lv levels
	if lv, err = checkArguments(tm.reg, coarseDual, fineDual); err != nil {
		return
	}
	Vf, Vc := fineDual.FunctionSpace(), coarseDual.FunctionSpace()
	if Vc.IsMixed() || Vf.IsMixed() {
		if err = checkComponents(coarseDual, fineDual); err != nil {
			return
		}
		cs := coarseDual.Split()
		for i, f := range fineDual.Split() {
			if err = tm.Restrict(f, cs[i]); err != nil {
				return
			}
		}
		return
	}
	var (
		coords   *fem.Function
		tk       *TransferKernel
		maps     []*parloop.Map
		end      func() error
		nodeLocs *parloop.Dat
	)
	if coords, err = fem.CoordinateFunction(Vc.Mesh); err != nil {
		return
	}
	if tk, maps, err = tm.prepare(RestrictKernel, Vc, Vf, lv,
		mapRequest{FineNodeToCoarseNode, Vf, Vc},
		mapRequest{FineNodeToCoarseNode, Vf, coords.FunctionSpace()}); err != nil {
		return
	}
	coarseDual.Dat.Zero()
	// The fine field is only read at owned nodes
	if end, err = haloBegin(coords.Dat); err != nil {
		return
	}
	nodeLocs, err = fem.PhysicalNodeLocations(Vf)
	if e := end(); err == nil {
		err = e
	}
	if err != nil {
		return
	}
	return parloop.ParLoop(tk.Kernel, Vf.Nodes,
		coarseDual.Dat.Arg(parloop.INC, maps[0]),
		fineDual.Dat.Arg(parloop.READ),
		nodeLocs.Arg(parloop.READ),
		coords.Dat.Arg(parloop.READ, maps[1]))
}

// Inject transfers fine onto coarse by point evaluation at the coarse nodes,
// or by local L2 projection when the coarse space is discontinuous.
func (tm *TransferManager) Inject(fine, coarse *fem.Function) (err error) {
	var lv levels
	if lv, err = checkArguments(tm.reg, coarse, fine); err != nil {
		return
	}
	Vf, Vc := fine.FunctionSpace(), coarse.FunctionSpace()
	if Vc.IsMixed() || Vf.IsMixed() {
		if err = checkComponents(coarse, fine); err != nil {
			return
		}
		cs := coarse.Split()
		for i, f := range fine.Split() {
			if err = tm.Inject(f, cs[i]); err != nil {
				return
			}
		}
		return
	}
	var (
		fineCoords, coarseCoords *fem.Function
		tk                       *TransferKernel
		maps                     []*parloop.Map
		end                      func() error
		nodeLocs                 *parloop.Dat
	)
	if fineCoords, err = fem.CoordinateFunction(Vf.Mesh); err != nil {
		return
	}
	if coarseCoords, err = fem.CoordinateFunction(Vc.Mesh); err != nil {
		return
	}
	// The continuity of the coarse space picks the algorithm, so the kernel
	// is generated ahead of the maps it needs
	if tk, err = tm.kernel(InjectKernel, Vc.Element, Vf.Element); err != nil {
		return
	}
	kind := CoarseNodeToFineNode
	if tk.DG {
		kind = CoarseCellToFineNode
	}
	if _, maps, err = tm.prepare(InjectKernel, Vc, Vf, lv,
		mapRequest{kind, Vc, Vf},
		mapRequest{kind, Vc, fineCoords.FunctionSpace()}); err != nil {
		return
	}
	if end, err = haloBegin(fine.Dat, fineCoords.Dat); err != nil {
		return
	}
	if !tk.DG {
		nodeLocs, err = fem.PhysicalNodeLocations(Vc)
	}
	if e := end(); err == nil {
		err = e
	}
	if err != nil {
		return
	}
	coarse.Dat.Zero()
	if tk.DG {
		return parloop.ParLoop(tk.Kernel, Vc.Mesh.CellSet(),
			coarse.Dat.Arg(parloop.INC, Vc.CellNodes),
			fine.Dat.Arg(parloop.READ, maps[0]),
			fineCoords.Dat.Arg(parloop.READ, maps[1]),
			coarseCoords.Dat.Arg(parloop.READ, coarseCoords.FunctionSpace().CellNodes))
	}
	return parloop.ParLoop(tk.Kernel, Vc.Nodes,
		coarse.Dat.Arg(parloop.INC),
		nodeLocs.Arg(parloop.READ),
		fine.Dat.Arg(parloop.READ, maps[0]),
		fineCoords.Dat.Arg(parloop.READ, maps[1]))
}
