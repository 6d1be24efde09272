package parloop

import (
	"fmt"
	"sort"
)

// Set is a distributed index set. Every element has one owning rank, a rank
// may additionally hold read-only halo copies of elements owned elsewhere.
type Set struct {
	Name   string
	Size   int
	NRanks int
	Owner  []int   // Owning rank of each element
	Ghosts [][]int // Per rank, ascending non-owned elements held as halo copies

	owned [][]int
	sends [][]haloSend // Per owning rank, who needs which of my elements
}

type haloSend struct {
	target, elem int
}

func NewSet(name string, size, nranks int, owner []int, ghosts [][]int) (s *Set) {
	if len(owner) != size {
		panic(fmt.Errorf("set %s: owner table length %d, size %d", name, len(owner), size))
	}
	s = &Set{
		Name:   name,
		Size:   size,
		NRanks: nranks,
		Owner:  owner,
		Ghosts: make([][]int, nranks),
		owned:  make([][]int, nranks),
		sends:  make([][]haloSend, nranks),
	}
	for e, rank := range owner {
		s.owned[rank] = append(s.owned[rank], e)
	}
	for rank := 0; rank < nranks && rank < len(ghosts); rank++ {
		g := append([]int(nil), ghosts[rank]...)
		sort.Ints(g)
		for _, e := range g {
			if owner[e] == rank {
				panic(fmt.Errorf("set %s: element %d is owned by rank %d and cannot be its ghost", name, e, rank))
			}
			s.sends[owner[e]] = append(s.sends[owner[e]], haloSend{target: rank, elem: e})
		}
		s.Ghosts[rank] = g
	}
	return
}

// Owned returns the elements owned by rank in ascending order.
func (s *Set) Owned(rank int) []int { return s.owned[rank] }

func (s *Set) HasHalo() bool {
	for _, g := range s.Ghosts {
		if len(g) != 0 {
			return true
		}
	}
	return false
}

func (s *Set) String() string { return s.Name }

// Map associates each element of From with Arity elements of To.
type Map struct {
	Name     string
	From, To *Set
	Arity    int
	Values   []int // Row major, From.Size x Arity
}

func NewMap(name string, from, to *Set, arity int, values []int) *Map {
	if len(values) != from.Size*arity {
		panic(fmt.Errorf("map %s: have %d values, need %d x %d", name, len(values), from.Size, arity))
	}
	for _, v := range values {
		if v < 0 || v >= to.Size {
			panic(fmt.Errorf("map %s: target %d outside set %s of size %d", name, v, to.Name, to.Size))
		}
	}
	return &Map{
		Name:   name,
		From:   from,
		To:     to,
		Arity:  arity,
		Values: values,
	}
}

// Row returns the targets of element e.
func (m *Map) Row(e int) []int {
	return m.Values[e*m.Arity : (e+1)*m.Arity]
}
