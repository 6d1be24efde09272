package parloop

import (
	"fmt"
	"sort"

	"github.com/notargets/gomg/utils"
)

type Access uint8

const (
	READ Access = iota
	WRITE
	RW
	INC
)

func (a Access) String() string {
	return [...]string{"READ", "WRITE", "RW", "INC"}[a]
}

// Arg binds a Dat to a par loop, directly or through a Map from the
// iteration set.
type Arg struct {
	Dat    *Dat
	Map    *Map
	Access Access
}

func (d *Dat) Arg(access Access, m ...*Map) (a Arg) {
	a = Arg{Dat: d, Access: access}
	if len(m) != 0 {
		a.Map = m[0]
	}
	return
}

func (a Arg) width() int {
	if a.Map == nil {
		return a.Dat.Dim
	}
	return a.Map.Arity * a.Dat.Dim
}

func (a Arg) targets(e int) []int {
	if a.Map == nil {
		return []int{e}
	}
	return a.Map.Row(e)
}

// Kernel receives one local array per Arg, in Arg order. For an indirect
// Arg the array holds Dim values for each map target in map order.
type Kernel func(args ...[]float64)

// ParLoop applies kernel to every element of set, one goroutine per rank
// over the elements that rank owns. READ and RW args are gathered before the
// kernel runs, WRITE and RW args are scattered after it. INC contributions to
// ghost entries are summed onto their owners once all ranks finish, in rank
// order.
func ParLoop(kernel Kernel, set *Set, args ...Arg) (err error) {
	if err = checkArgs(set, args); err != nil {
		return
	}
	ghostIncs := make([][]map[int][]float64, set.NRanks)
	utils.RunParallel(set.NRanks, func(rank int) {
		local := make([][]float64, len(args))
		incs := make([]map[int][]float64, len(args))
		for i, a := range args {
			local[i] = make([]float64, a.width())
			if a.Access == INC {
				incs[i] = make(map[int][]float64)
			}
		}
		for _, e := range set.Owned(rank) {
			for i, a := range args {
				gather(a, rank, e, local[i])
			}
			kernel(local...)
			for i, a := range args {
				scatter(a, rank, e, local[i], incs[i])
			}
		}
		ghostIncs[rank] = incs
	})
	for _, incs := range ghostIncs {
		for i, contrib := range incs {
			if contrib == nil {
				continue
			}
			d := args[i].Dat
			elems := make([]int, 0, len(contrib))
			for e := range contrib {
				elems = append(elems, e)
			}
			sort.Ints(elems)
			for _, e := range elems {
				owner := d.buffers[d.Set.Owner[e]]
				for j, val := range contrib[e] {
					owner[e*d.Dim+j] += val
				}
			}
		}
	}
	for _, a := range args {
		if a.Access != READ && a.Dat.Set.HasHalo() {
			a.Dat.mu.Lock()
			a.Dat.state = haloDirty
			a.Dat.mu.Unlock()
		}
	}
	return
}

func checkArgs(set *Set, args []Arg) (err error) {
	for i, a := range args {
		d := a.Dat
		if a.Map == nil && d.Set != set {
			return fmt.Errorf("arg %d: dat %s is on set %s, loop is over %s", i, d.Name, d.Set, set)
		}
		if a.Map != nil && (a.Map.From != set || a.Map.To != d.Set) {
			return fmt.Errorf("arg %d: map %s goes %s -> %s, need %s -> %s",
				i, a.Map.Name, a.Map.From, a.Map.To, set, d.Set)
		}
		d.mu.Lock()
		state := d.state
		d.mu.Unlock()
		switch {
		case state == haloInFlight:
			return fmt.Errorf("arg %d: dat %s: %w", i, d.Name, ErrHaloNotSynchronized)
		case state == haloDirty && a.Map != nil && (a.Access == READ || a.Access == RW):
			return fmt.Errorf("arg %d: dat %s read through map %s: %w", i, d.Name, a.Map.Name, ErrHaloNotSynchronized)
		}
	}
	return
}

func gather(a Arg, rank, e int, local []float64) {
	var (
		buf = a.Dat.buffers[rank]
		dim = a.Dat.Dim
	)
	switch a.Access {
	case READ, RW:
		for j, t := range a.targets(e) {
			copy(local[j*dim:(j+1)*dim], buf[t*dim:(t+1)*dim])
		}
	default:
		for j := range local {
			local[j] = 0
		}
	}
}

func scatter(a Arg, rank, e int, local []float64, incs map[int][]float64) {
	var (
		buf   = a.Dat.buffers[rank]
		dim   = a.Dat.Dim
		owner = a.Dat.Set.Owner
	)
	switch a.Access {
	case WRITE, RW:
		for j, t := range a.targets(e) {
			copy(buf[t*dim:(t+1)*dim], local[j*dim:(j+1)*dim])
		}
	case INC:
		for j, t := range a.targets(e) {
			if owner[t] == rank {
				for b := 0; b < dim; b++ {
					buf[t*dim+b] += local[j*dim+b]
				}
				continue
			}
			acc, ok := incs[t]
			if !ok {
				acc = make([]float64, dim)
				incs[t] = acc
			}
			for b := 0; b < dim; b++ {
				acc[b] += local[j*dim+b]
			}
		}
	}
}
