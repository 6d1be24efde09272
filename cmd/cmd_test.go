package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/notargets/gomg/InputParameters"
	"github.com/notargets/gomg/fem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), errOut.String())
	return out.String()
}

func TestTransfer(t *testing.T) {
	out := run(t, "transfer", "-k", "2", "-r", "2", "-n", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2+3)
	assert.Contains(t, lines[0], "CG2 on 3 levels")

	ip := InputParameters.Defaults()
	ip.Refinements = 2
	s, err := NewSetup(ip)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, RunTransfer(&buf, s, false, 0))
	// injecting an interpolant gives the coarse interpolant
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n")[2:] {
		fields := strings.Fields(line)
		require.Len(t, fields, 5)
		diff, err := strconv.ParseFloat(fields[3], 64)
		require.NoError(t, err)
		assert.Less(t, diff, 1.e-12, line)
	}
}

func TestMG(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.yaml")
	require.NoError(t, os.WriteFile(input, []byte(exampleInput), 0o644))
	csvFile := filepath.Join(dir, "mg.csv")
	out := run(t, "mg", "-I", input, "-r", "4", "-o", csvFile)
	assert.Contains(t, out, "ksp_type=cg pc_type=mg")
	assert.Contains(t, out, "on 5 levels")

	f, err := os.Open(csvFile)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "uh", "exact"}, recs[0])
	assert.Len(t, recs, 1+2*16+1)

	var errOut bytes.Buffer
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"mg", "-f", "DG"})
	assert.Error(t, rootCmd.Execute())
}

func TestHybrid(t *testing.T) {
	out := run(t, "hybrid", "-k", "4", "-n", "2", "-r", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	fields := strings.Fields(lines[3])
	assert.Equal(t, "16", fields[0])
}

func TestBench(t *testing.T) {
	out := run(t, "bench", "-k", "2", "-r", "2", "-p", "2", "--reps", "2")
	for _, op := range []string{"prolong", "restrict", "inject"} {
		assert.Contains(t, out, op)
	}
}

func TestBadInput(t *testing.T) {
	var errOut bytes.Buffer
	rootCmd.SetErr(&errOut)
	rootCmd.SetOut(&errOut)
	rootCmd.SetArgs([]string{"transfer", "-I", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, rootCmd.Execute())
}

func TestFieldLine(t *testing.T) {
	ip := InputParameters.Defaults()
	ip.Degree, ip.Refinements = 2, 1
	s, err := NewSetup(ip)
	require.NoError(t, err)
	Vs, err := s.Spaces()
	require.NoError(t, err)
	f := fem.NewFunction(Vs[1], "f")
	require.NoError(t, f.Interpolate(testField))

	xy, err := fieldLine(Vs[1], f)
	require.NoError(t, err)
	require.Len(t, xy, 2*Vs[1].DofCount())
	// interior nodes are numbered after the vertices, the line is sorted in x
	for i := 0; i < len(xy)/2; i++ {
		if i > 0 {
			assert.Greater(t, xy[2*i], xy[2*i-2])
		}
		assert.InDelta(t, testField(float64(xy[2*i])), float64(xy[2*i+1]), 1.e-6)
	}
	assert.Equal(t, float32(0), xy[0])
	assert.Equal(t, float32(1), xy[len(xy)-2])

	cross := crossHairs([]float32{0.5, 1}, 0.1)
	assert.InDeltaSlice(t, []float32{0.4, 1, 0.6, 1, 0.5, 0.9, 0.5, 1.1}, cross, 1.e-7)
}
