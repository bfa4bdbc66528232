package distribution

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

func filled(widths []float64, xs ...float64) *Distribution {
	d := New(widths...)
	for _, x := range xs {
		d.Submit(x, 1)
	}
	d.Sampled()
	return d
}

func TestSubmit_BinsEveryWidth(t *testing.T) {
	d := New(0.5, 1)
	d.Submit(0.2, 1)
	d.Submit(1.7, 2)
	d.Submit(-1, 1)
	d.Submit(math.NaN(), 1)
	d.Submit(math.Inf(1), 1)

	assert.Equal(t, []float64{1, 0, 0, 2}, d.Counts[0])
	assert.Equal(t, []float64{1, 2}, d.Counts[1])
	assert.Equal(t, 3.0, d.Total(0))
}

func TestSubmit_DropsValuesPastMaxBins(t *testing.T) {
	d := New(0.01, 1e29)
	assert.NotPanics(t, func() {
		d.Submit(1e30, 1)
		d.Submit(math.MaxFloat64, 1)
	})
	assert.Empty(t, d.Counts[0], "out of range for the fine row")
	assert.Equal(t, 1.0, d.Total(1), "only 1e30 lands in the coarse row")
	assert.Len(t, d.Counts[1], 11)

	edge := New(1)
	edge.Submit(MaxBins, 1)
	edge.Submit(MaxBins+0.5, 1)
	edge.Submit(float64(math.MaxInt64), 1)
	assert.Empty(t, edge.Counts[0])
}

func TestNew_SkipsNonPositiveWidths(t *testing.T) {
	d := New(0, 0.1, -1)
	assert.Equal(t, []float64{0.1}, d.BinWidths)
	assert.Len(t, d.Counts, 1)
}

func TestPresize(t *testing.T) {
	d := New(0.25, 1)
	d.Presize(1.1)
	assert.Len(t, d.Counts[0], 5)
	assert.Len(t, d.Counts[1], 2)

	d.Presize(math.Inf(1))
	assert.Len(t, d.Counts[0], 5)
}

func TestAddSubtr_RoundTrip(t *testing.T) {
	a := filled([]float64{0.1, 0.5}, 0.05, 0.33, 1.2)
	b := filled([]float64{0.1, 0.5}, 0.07, 2.9, 2.95)

	orig := &Distribution{}
	require.NoError(t, orig.Copy(a))

	require.NoError(t, a.Subtr(b))
	require.NoError(t, a.Add(b))
	assert.True(t, a.Equal(orig), "Add(Subtr(A,B),B) must equal A:\n%s", cmp.Diff(orig, a))
}

func TestSubtr_AllowsNegativeCounts(t *testing.T) {
	a := filled([]float64{1}, 0.5)
	b := filled([]float64{1}, 0.5, 0.5)
	require.NoError(t, a.Subtr(b))
	assert.Equal(t, []float64{-1}, a.Counts[0])
	assert.Zero(t, a.NSamples)
}

func TestAdd_Mismatch(t *testing.T) {
	a := filled([]float64{0.1}, 0.05)
	b := filled([]float64{0.2}, 0.05)

	err := a.Add(b)
	assert.ErrorIs(t, err, record.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "distribution::Add")

	assert.ErrorIs(t, a.Subtr(New(0.1, 0.2)), record.ErrShapeMismatch)
}

func TestAdd_EmptyReceiverAdoptsWidths(t *testing.T) {
	src := filled([]float64{0.1, 1}, 0.42)
	dst := &Distribution{}
	require.NoError(t, dst.Add(src))
	assert.True(t, dst.Equal(src))
}

func TestEqual_ZeroPadding(t *testing.T) {
	a := &Distribution{BinWidths: []float64{1}, Counts: [][]float64{{1, 2}}, NSamples: 1}
	b := &Distribution{BinWidths: []float64{1}, Counts: [][]float64{{1, 2, 0, 0}}, NSamples: 1}
	c := &Distribution{BinWidths: []float64{1}, Counts: [][]float64{{1, 2, 0, 3}}, NSamples: 1}
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
}

func TestCopy_IsDeep(t *testing.T) {
	a := filled([]float64{1}, 0.5)
	var b Distribution
	require.NoError(t, b.Copy(a))
	b.Counts[0][0] = 9
	assert.Equal(t, 1.0, a.Counts[0][0])
}

func TestStreamRoundTrip(t *testing.T) {
	in := filled([]float64{0.01, 0.1}, 0.013, 0.27, 0.05)
	in.NSamples = 12
	for _, enc := range []stream.Encoding{stream.Text, stream.Binary} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := stream.NewWriter(&buf, enc)
			require.NoError(t, in.Write(w))
			require.NoError(t, w.Flush())

			out := &Distribution{}
			require.NoError(t, out.Read(stream.NewReader(&buf, enc)))
			if diff := cmp.Diff(in, out); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRead_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"rows without widths", "distribution{ counts{ { v{1} } } };"},
		{"row count disagrees", "distribution{ binsize{0.1 0.2} counts{ { v{1} } } };"},
		{"zero width", "distribution{ binsize{0} };"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Distribution{}).Read(stream.NewReader(strings.NewReader(tt.text), stream.Text))
			assert.ErrorIs(t, err, record.ErrMalformedStream)
		})
	}
}

func TestSummarize(t *testing.T) {
	d := New(1)
	d.Submit(0.5, 1)
	d.Submit(2.5, 1)

	s := d.Summarize(0)
	assert.Equal(t, 2.0, s.Total)
	assert.InDelta(t, 1.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2), s.StdDev, 1e-12)

	empty := New(1).Summarize(0)
	assert.True(t, math.IsNaN(empty.Mean))
}

func TestExport(t *testing.T) {
	d := New(1)
	d.Submit(0.5, 3)
	d.Submit(1.5, 1)
	d.Sampled()

	var buf bytes.Buffer
	require.NoError(t, d.Export(&buf, "pairs"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "# pairs binsize 1 nsamples 1 total 4"))
	assert.Equal(t, "0.5 3 0.75", lines[2])
	assert.Equal(t, "1.5 1 0.25", lines[3])
}

func TestPlot_WritesImage(t *testing.T) {
	d := filled([]float64{0.1, 0.5}, 0.05, 0.33, 1.2)
	file := filepath.Join(t.TempDir(), "pairs.png")
	require.NoError(t, d.Plot(file, "pairs"))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSize_CountsRows(t *testing.T) {
	small := New(1)
	big := New(1)
	big.Submit(100, 1)
	assert.Greater(t, big.Size(), small.Size())
}
