//go:build !linux

package cmd

import "errors"

func readCounters(f func() error) (c counters, err error) {
	return c, errors.New("hardware counters are only read on linux")
}
