package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/simspace/pkg/persistence"
	"github.com/sanonone/simspace/pkg/structure"
)

func writeXYZ(t *testing.T, dir, name string, frames ...[]r3.Vec) string {
	t.Helper()
	var buf bytes.Buffer
	for i, pos := range frames {
		s := structure.New(name)
		for _, p := range pos {
			s.AddParticle("C", p)
		}
		require.NoError(t, structure.WriteXYZ(&buf, s, name+string(rune('a'+i))))
	}
	path := filepath.Join(dir, name+".xyz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	_, out, err := runApp(t, args...)
	return out, err
}

func runApp(t *testing.T, args ...string) (*app, string, error) {
	t.Helper()
	cmd, a := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := a.execute(cmd)
	return a, out.String(), err
}

func TestTopologyCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeXYZ(t, dir, "ref",
		[]r3.Vec{{}, {X: 1.2}, {Y: 1.3}},
		[]r3.Vec{{}, {X: 1.0}, {Z: 1.4}},
	)
	prefix := filepath.Join(dir, "out")

	out, err := run(t, "topology", "--summary", "-o", prefix, in)
	require.NoError(t, err)
	assert.Contains(t, out, "Node 2\n")

	// Specific-unique: one row per center.
	ix, err := persistence.ReadTable(prefix + ".top.ix.txt")
	require.NoError(t, err)
	r, _ := ix.Dims()
	assert.Equal(t, 6, r)

	k, err := persistence.ReadTable(prefix + ".top.kernelmatrix.txt")
	require.NoError(t, err)
	kr, kc := k.Dims()
	assert.Equal(t, 6, kr)
	assert.Equal(t, 6, kc)
}

func TestRelaxCommand(t *testing.T) {
	dir := t.TempDir()
	source := writeXYZ(t, dir, "src", []r3.Vec{{}, {X: 1.2}})
	target := writeXYZ(t, dir, "tgt", []r3.Vec{{}, {X: 1.0}})
	weights := filepath.Join(dir, "w.txt")
	require.NoError(t, os.WriteFile(weights, []byte("0.1\n0.1\n"), 0644))

	cfgPath := filepath.Join(dir, "simspace.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("relax:\n  max_iterations: 3\n"), 0644))

	prefix := filepath.Join(dir, "run")
	out, err := run(t, "relax", "-c", cfgPath, "-o", prefix, "-s", source, "-w", weights, target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "run="), out)

	_, err = os.Stat(prefix + ".opt.xyz")
	assert.NoError(t, err)
}

func TestRelaxCommandWeightMismatch(t *testing.T) {
	dir := t.TempDir()
	source := writeXYZ(t, dir, "src", []r3.Vec{{}, {X: 1.2}, {Y: 1.1}})
	target := writeXYZ(t, dir, "tgt", []r3.Vec{{}, {X: 1.0}})

	// Default alpha holds one weight, the source has three rows.
	_, err := run(t, "relax", "-o", filepath.Join(dir, "run"), "-s", source, target)
	assert.Error(t, err)
}

func TestRootRejectsBadLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "topology", "missing.xyz")
	assert.Error(t, err)
}

func TestRelaxCommandEmptyTarget(t *testing.T) {
	dir := t.TempDir()
	source := writeXYZ(t, dir, "src", []r3.Vec{{}, {X: 1.2}})
	weights := filepath.Join(dir, "w.txt")
	require.NoError(t, os.WriteFile(weights, []byte("0.1\n0.1\n"), 0644))
	empty := filepath.Join(dir, "empty.xyz")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	var err error
	assert.NotPanics(t, func() {
		_, err = run(t, "relax", "-o", filepath.Join(dir, "run"), "-s", source, "-w", weights, empty)
	})
	assert.ErrorIs(t, err, structure.ErrSyntax)
}

func TestRelaxCommandEmptyIndices(t *testing.T) {
	dir := t.TempDir()
	source := writeXYZ(t, dir, "src", []r3.Vec{{}, {X: 1.2}})
	target := writeXYZ(t, dir, "tgt", []r3.Vec{{}, {X: 1.0}})
	weights := filepath.Join(dir, "w.txt")
	require.NoError(t, os.WriteFile(weights, []byte("0.1\n0.1\n"), 0644))

	// An explicit empty list relaxes every particle.
	cfgPath := filepath.Join(dir, "simspace.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("relax:\n  indices: []\n  max_iterations: 2\n"), 0644))

	out, err := run(t, "relax", "-c", cfgPath, "-o", filepath.Join(dir, "run"), "-s", source, "-w", weights, target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "run="), out)
}

func TestMetricsServerStoppedOnFailure(t *testing.T) {
	a, _, err := runApp(t, "--metrics-addr", "127.0.0.1:0", "topology", filepath.Join(t.TempDir(), "missing.xyz"))
	assert.Error(t, err)
	require.NotNil(t, a.metrics)
	assert.ErrorIs(t, a.metrics.ListenAndServe(), http.ErrServerClosed)
}
