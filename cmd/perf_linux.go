//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
)

func readCounters(f func() error) (c counters, err error) {
	var pv *perf.ProfileValue
	if pv, err = perf.CPUInstructions(f); err != nil {
		return
	}
	c.Instructions = pv.Value
	if pv, err = perf.CPUCycles(f); err != nil {
		return
	}
	c.Cycles = pv.Value
	return
}
