package mesh

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrAlreadyRegistered = errors.New("mesh or hierarchy already registered")

// MeshHierarchy is an ordered sequence of nested meshes, level 0 coarsest.
type MeshHierarchy struct {
	ID     uuid.UUID
	Meshes []*Mesh
}

// NewMeshHierarchy refines base nrefs times and registers every level in reg.
func NewMeshHierarchy(reg *Registry, base *Mesh, nrefs int) (mh *MeshHierarchy, err error) {
	if nrefs < 0 {
		err = fmt.Errorf("invalid number of refinements %d", nrefs)
		return
	}
	mh = &MeshHierarchy{
		ID:     uuid.New(),
		Meshes: []*Mesh{base},
	}
	for i := 0; i < nrefs; i++ {
		mh.Meshes = append(mh.Meshes, Refine(mh.Meshes[i]))
	}
	if err = reg.Register(mh); err != nil {
		return nil, err
	}
	return
}

func (mh *MeshHierarchy) Len() int { return len(mh.Meshes) }

// Ancestor follows parent links from cell on fineLevel up to coarseLevel.
func (mh *MeshHierarchy) Ancestor(fineLevel, cell, coarseLevel int) int {
	for lvl := fineLevel; lvl > coarseLevel; lvl-- {
		cell = mh.Meshes[lvl].Parent[cell]
	}
	return cell
}

// Descendants returns the cells on fineLevel nested inside cell on
// coarseLevel, in ascending order.
func (mh *MeshHierarchy) Descendants(coarseLevel, cell, fineLevel int) (cells []int) {
	cells = []int{cell}
	for lvl := coarseLevel; lvl < fineLevel; lvl++ {
		next := make([]int, 0, 2*len(cells))
		for _, k := range cells {
			next = append(next, 2*k, 2*k+1)
		}
		cells = next
	}
	return
}

type registryEntry struct {
	hierarchy *MeshHierarchy
	level     int
}

// Registry maps a mesh to the hierarchy it belongs to and its level. Meshes
// carry no hierarchy information of their own. Hierarchies are identified by
// their ID.
type Registry struct {
	mu          sync.RWMutex
	entries     map[*Mesh]registryEntry
	hierarchies map[uuid.UUID]*MeshHierarchy
}

func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[*Mesh]registryEntry),
		hierarchies: make(map[uuid.UUID]*MeshHierarchy),
	}
}

// Register records every level of mh. Nothing is recorded if mh's ID or any
// of its levels is already registered.
func (r *Registry) Register(mh *MeshHierarchy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hierarchies[mh.ID]; ok {
		return fmt.Errorf("hierarchy %s: %w", mh.ID, ErrAlreadyRegistered)
	}
	seen := make(map[*Mesh]bool, len(mh.Meshes))
	for lvl, m := range mh.Meshes {
		if _, ok := r.entries[m]; ok || seen[m] {
			return fmt.Errorf("level %d of hierarchy %s: %w", lvl, mh.ID, ErrAlreadyRegistered)
		}
		seen[m] = true
	}
	for lvl, m := range mh.Meshes {
		r.entries[m] = registryEntry{hierarchy: mh, level: lvl}
	}
	r.hierarchies[mh.ID] = mh
	return nil
}

func (r *Registry) Hierarchy(id uuid.UUID) (mh *MeshHierarchy, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mh, ok = r.hierarchies[id]
	return
}

// Lookup returns the hierarchy and level of m, ok is false for a mesh that
// was never registered.
func (r *Registry) Lookup(m *Mesh) (mh *MeshHierarchy, level int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var e registryEntry
	if e, ok = r.entries[m]; !ok {
		return nil, -1, false
	}
	return e.hierarchy, e.level, true
}
