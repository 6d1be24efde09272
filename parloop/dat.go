package parloop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/notargets/gomg/utils"
)

var (
	ErrHaloNotSynchronized = errors.New("halo data read before exchange completed")
	ErrNoExchangeInFlight  = errors.New("no halo exchange in flight")
)

type haloState uint8

const (
	haloValid haloState = iota
	haloDirty
	haloInFlight
)

func (hs haloState) String() string {
	return [...]string{"valid", "dirty", "in flight"}[hs]
}

type haloMsg struct {
	elem int
	vals []float64
}

// Dat holds Dim values per element of a Set. Every rank keeps a full length
// buffer: entries of owned elements are authoritative, entries of ghost
// elements are copies refreshed by GlobalToLocalBegin/End.
type Dat struct {
	Set  *Set
	Dim  int
	Name string

	mu       sync.Mutex
	buffers  [][]float64 // One per rank
	state    haloState
	exchange chan struct{}
	mb       *utils.MailBox[haloMsg]
}

func NewDat(name string, set *Set, dim int) (d *Dat) {
	d = &Dat{
		Set:     set,
		Dim:     dim,
		Name:    name,
		buffers: make([][]float64, set.NRanks),
		mb:      utils.NewMailBox[haloMsg](set.NRanks),
	}
	for rank := range d.buffers {
		d.buffers[rank] = make([]float64, set.Size*dim)
	}
	return
}

func (d *Dat) Len() int { return d.Set.Size * d.Dim }

// Zero clears owned and ghost entries on every rank, which leaves the halo
// consistent.
func (d *Dat) Zero() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitLocked()
	for _, buf := range d.buffers {
		for i := range buf {
			buf[i] = 0
		}
	}
	d.state = haloValid
}

// Data gathers the owned entries of every rank into one global array.
func (d *Dat) Data() (data []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data = make([]float64, d.Len())
	for e, rank := range d.Set.Owner {
		copy(data[e*d.Dim:(e+1)*d.Dim], d.buffers[rank][e*d.Dim:(e+1)*d.Dim])
	}
	return
}

// SetData scatters a global array to the owned and ghost entries of all ranks.
func (d *Dat) SetData(data []float64) {
	if len(data) != d.Len() {
		panic(fmt.Errorf("dat %s: data length %d, need %d", d.Name, len(data), d.Len()))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitLocked()
	for _, buf := range d.buffers {
		copy(buf, data)
	}
	d.state = haloValid
}

// GlobalToLocalBegin starts refreshing ghost entries from their owners. The
// exchange runs in the background until GlobalToLocalEnd. A dat whose halo
// is already valid is left alone, and a Begin on an exchange already in
// flight joins it: whichever End comes first completes it for every reader.
func (d *Dat) GlobalToLocalBegin(access Access) (err error) {
	if access != READ {
		return fmt.Errorf("dat %s: only READ halo exchanges are supported, have %s", d.Name, access)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case haloInFlight, haloValid:
		return nil
	}
	d.state = haloInFlight
	d.exchange = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		utils.RunParallel(d.Set.NRanks, func(myThread int) {
			buf := d.buffers[myThread]
			for _, s := range d.Set.sends[myThread] {
				vals := make([]float64, d.Dim)
				copy(vals, buf[s.elem*d.Dim:(s.elem+1)*d.Dim])
				d.mb.PostMessage(myThread, s.target, haloMsg{elem: s.elem, vals: vals})
			}
			d.mb.DeliverMyMessages(myThread)
		})
	}(d.exchange)
	return
}

// GlobalToLocalEnd waits for the exchange started by GlobalToLocalBegin and
// writes the received values into the ghost entries.
func (d *Dat) GlobalToLocalEnd(access Access) (err error) {
	if access != READ {
		return fmt.Errorf("dat %s: only READ halo exchanges are supported, have %s", d.Name, access)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case haloValid:
		return nil
	case haloDirty:
		return fmt.Errorf("dat %s: %w", d.Name, ErrNoExchangeInFlight)
	}
	d.waitLocked()
	return
}

// waitLocked completes an in flight exchange, the caller holds d.mu.
func (d *Dat) waitLocked() {
	if d.state != haloInFlight {
		return
	}
	<-d.exchange
	for rank := 0; rank < d.Set.NRanks; rank++ {
		d.mb.ReceiveMyMessages(rank)
		for _, msg := range d.mb.MyMessages(rank) {
			copy(d.buffers[rank][msg.elem*d.Dim:(msg.elem+1)*d.Dim], msg.vals)
		}
		d.mb.ClearMyMessages(rank)
	}
	d.exchange = nil
	d.state = haloValid
}

// HaloValid reports whether every ghost entry matches its owner.
func (d *Dat) HaloValid() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == haloValid
}

func (d *Dat) String() string {
	return fmt.Sprintf("%s(%s, dim=%d)", d.Name, d.Set.Name, d.Dim)
}
