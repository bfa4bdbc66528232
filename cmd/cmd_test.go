package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/mcsim/sim/checkpoint"
	"github.com/inference-sim/mcsim/sim/ensemble"
	"github.com/inference-sim/mcsim/sim/moves"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/samples"
	"github.com/inference-sim/mcsim/sim/stream"
)

const dimers = `
seed: 3
steps: 20
replicas: 2
length: 6
types:
  - name: A
    diameter: 1
molecules:
  - types: [0, 0]
    count: 3
    max_bond: 1.5
moves:
  frequency: 4
samples:
  - id: 2
    frequency: 2
    binsize: [0.1]
trace:
  level: rescales
`

func testConfig(t *testing.T) *ensemble.Config {
	t.Helper()
	cfg, err := ensemble.DecodeConfig(strings.NewReader(dimers))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunEnsemble_WritesOutputs(t *testing.T) {
	// GIVEN a two-replica configuration and every output enabled
	dir := t.TempDir()
	o := runOptions{
		Out:         filepath.Join(dir, "merged.ckpt"),
		Encoding:    stream.Binary,
		StorePath:   filepath.Join(dir, "runs.db"),
		MetricsFile: filepath.Join(dir, "mcsim.prom"),
	}

	// WHEN the ensemble runs
	res, err := runEnsemble(context.Background(), testConfig(t), o)
	require.NoError(t, err)

	// THEN the merged checkpoint is on disk in the requested encoding
	c, enc, err := checkpoint.Load(o.Out, record.Default)
	require.NoError(t, err)
	assert.Equal(t, stream.Binary, enc)
	assert.Equal(t, []string{moves.Header, samples.Header}, c.Headers())
	assert.EqualValues(t, 2*20*4, c.Records[0].(*moves.Template).Totals().Total)

	// AND the metrics textfile holds the merged counters
	raw, err := os.ReadFile(o.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "mcsim_replicas 2")
	assert.Contains(t, string(raw), `mcsim_samples_passes{sample="2",system="0"} 20`)

	// AND every replica is in the store
	store, err := checkpoint.Open(o.StorePath)
	require.NoError(t, err)
	defer store.Close()
	ids, err := store.Replicas(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids)
}

func TestRunEnsemble_Resume(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	cfg := testConfig(t)

	first, err := runEnsemble(context.Background(), cfg, runOptions{StorePath: db})
	require.NoError(t, err)

	second, err := runEnsemble(context.Background(), cfg, runOptions{StorePath: db, ResumeRun: first.RunID})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.EqualValues(t, 2*2*20*4, second.Merged.Records[0].(*moves.Template).Totals().Total)

	_, err = runEnsemble(context.Background(), cfg, runOptions{ResumeRun: first.RunID})
	assert.ErrorContains(t, err, "--store")

	_, err = runEnsemble(context.Background(), cfg, runOptions{StorePath: db, ResumeRun: "missing"})
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func saveReplicas(t *testing.T, dir string) []string {
	t.Helper()
	res, err := ensemble.Run(context.Background(), testConfig(t), ensemble.Options{RunID: "files"})
	require.NoError(t, err)
	var paths []string
	for i, c := range res.Checkpoints {
		p := filepath.Join(dir, fmt.Sprintf("replica%d.ckpt", i))
		require.NoError(t, c.Save(p, stream.Text))
		paths = append(paths, p)
	}
	return paths
}

func TestMerge_Files(t *testing.T) {
	paths := saveReplicas(t, t.TempDir())
	inputs, err := loadFiles(paths)
	require.NoError(t, err)

	sum, err := combineCheckpoints(inputs, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2*20*4, sum.Records[0].(*moves.Template).Totals().Total)
	assert.EqualValues(t, 20, sum.Records[1].(*samples.Template).Distributions[0].NSamples)

	// the inputs are not modified by merging
	assert.EqualValues(t, 20*4, inputs[0].Records[0].(*moves.Template).Totals().Total)

	diff, err := combineCheckpoints([]*checkpoint.Checkpoint{sum, inputs[1]}, true)
	require.NoError(t, err)
	want := inputs[0].Records[1].(*samples.Template).Distributions[0]
	got := diff.Records[1].(*samples.Template).Distributions[0]
	assert.Equal(t, want.NSamples, got.NSamples)
	assert.InDelta(t, want.Total(0), got.Total(0), 1e-9)

	_, err = loadFiles(nil)
	assert.Error(t, err)
	_, err = combineCheckpoints(nil, true)
	assert.Error(t, err)
}

func TestMerge_ShapeMismatch(t *testing.T) {
	paths := saveReplicas(t, t.TempDir())
	inputs, err := loadFiles(paths)
	require.NoError(t, err)
	inputs = append(inputs, checkpoint.New(moves.New()))

	_, err = combineCheckpoints(inputs, false)
	assert.ErrorIs(t, err, record.ErrShapeMismatch)
}

func TestLoadStoredRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	res, err := runEnsemble(context.Background(), testConfig(t), runOptions{StorePath: db})
	require.NoError(t, err)

	inputs, err := loadStoredRun(context.Background(), db, res.RunID)
	require.NoError(t, err)
	assert.Len(t, inputs, 2)

	_, err = loadStoredRun(context.Background(), db, "nope")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestExportTables(t *testing.T) {
	paths := saveReplicas(t, t.TempDir())
	inputs, err := loadFiles(paths[:1])
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exportTables(&buf, inputs[0]))
	out := buf.String()
	assert.Contains(t, out, "# sample2_system0 binsize 0.1 nsamples 10")
	assert.Contains(t, out, "# center count probability")
}

func TestExportPlots(t *testing.T) {
	paths := saveReplicas(t, t.TempDir())
	inputs, err := loadFiles(paths[:1])
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "plots")
	files, err := exportPlots(dir, inputs[0])
	require.NoError(t, err)
	require.Len(t, files, 1)
	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestInspect(t *testing.T) {
	paths := saveReplicas(t, t.TempDir())
	inputs, err := loadFiles(paths[:1])
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, inspect(&buf, inputs[0]))
	out := buf.String()
	assert.Contains(t, out, "2 sections")
	assert.Contains(t, out, "[0] MovesTemplate")
	assert.Contains(t, out, "[1] SamplesTemplate")
	assert.Contains(t, out, "system 0 type 0: step")
	assert.Contains(t, out, "id 2, active true, frequency 2")
	assert.Contains(t, out, "system 0: 10 samples")
}

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "merge", "export", "inspect"})
	for _, flag := range []string{"config", "seed", "steps", "replicas", "out", "format", "store", "resume-run", "metrics-file", "log"} {
		assert.NotNil(t, runCmd.Flags().Lookup(flag), flag)
	}
}
