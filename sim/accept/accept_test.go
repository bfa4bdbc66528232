package accept

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

func TestParams_Multiplier(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		batch uint64
		want  float64
	}{
		{5000, 1.0},
		{10000, 1.5},
		{0, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, p.Multiplier(tt.batch), 1e-12, "batch %d", tt.batch)
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.Error(t, Params{NCheck: 0, Magic: 0.5}.Validate())
	assert.Error(t, Params{NCheck: 10, Magic: 0}.Validate())
	assert.Error(t, Params{NCheck: 10, Magic: 1.5}.Validate())
}

func TestController_HalfAcceptanceKeepsStepSize(t *testing.T) {
	c := &Controller{StepSize: 1.0}
	p := DefaultParams()
	rescales := 0
	for i := 0; i < 20000; i++ {
		if c.Update(i%2 == 0, p) {
			rescales++
		}
	}
	assert.Equal(t, 2, rescales)
	assert.Equal(t, 1.0, c.StepSize)
	assert.Equal(t, Counter{Total: 20000, Accepted: 10000}, c.Current)
	assert.Equal(t, c.Current, c.Checkpoint)
}

func TestController_RescaleLaw(t *testing.T) {
	p := Params{NCheck: 4, Magic: 0.5}
	tests := []struct {
		name     string
		accepted int
		want     float64
	}{
		{"all accepted", 4, 1.5},
		{"half accepted", 2, 1.0},
		{"none accepted", 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Controller{StepSize: 1.0}
			for i := 0; i < 4; i++ {
				rescaled := c.Update(i < tt.accepted, p)
				assert.Equal(t, i == 3, rescaled)
			}
			assert.InDelta(t, tt.want, c.StepSize, 1e-12)
		})
	}
}

func TestController_CounterInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := &Controller{StepSize: 0.3}
	p := Params{NCheck: 17, Magic: 0.5}
	for i := 0; i < 5000; i++ {
		c.Update(rng.Float64() < 0.3, p)
		require.True(t, c.Current.Valid())
		require.True(t, c.Checkpoint.Valid())
		require.LessOrEqual(t, c.Checkpoint.Total, c.Current.Total)
	}
	assert.Greater(t, c.StepSize, 0.0)
}

func TestController_ResetOpensFreshWindow(t *testing.T) {
	c := &Controller{StepSize: 1}
	p := Params{NCheck: 4, Magic: 0.5}
	c.Update(true, p)
	c.Update(true, p)
	c.Reset()

	assert.Equal(t, Counter{Total: 2, Accepted: 2}, c.Current)
	assert.Equal(t, Counter{}, c.Pending())
	for i := 0; i < 3; i++ {
		assert.False(t, c.Update(false, p))
	}
	assert.True(t, c.Update(false, p))
	assert.InDelta(t, 0.5, c.StepSize, 1e-12)
}

func TestController_Factory(t *testing.T) {
	c := &Controller{StepSize: 2, Current: Counter{10, 5}, Checkpoint: Counter{8, 4}}
	c.Factory()
	assert.Equal(t, Controller{StepSize: 2}, *c)
}

func TestController_AddSubtrRoundTrip(t *testing.T) {
	a := Controller{StepSize: 1, Current: Counter{Total: 300, Accepted: 100}, Checkpoint: Counter{Total: 250, Accepted: 90}}
	b := Controller{StepSize: 2, Current: Counter{Total: 100, Accepted: 60}}

	sum := a
	require.NoError(t, sum.Add(&b))
	assert.Equal(t, Counter{Total: 400, Accepted: 160}, sum.Current)
	assert.Equal(t, sum.Current, sum.Checkpoint)
	assert.InDelta(t, 1.25, sum.StepSize, 1e-12)

	require.NoError(t, sum.Subtr(&b))
	assert.Equal(t, a.Current, sum.Current)
	assert.InDelta(t, a.StepSize, sum.StepSize, 1e-12)
}

func TestController_AddIntoEmpty(t *testing.T) {
	var c Controller
	require.NoError(t, c.Add(&Controller{StepSize: 0.7}))
	assert.Equal(t, 0.7, c.StepSize)
}

func TestController_SubtrUnderflow(t *testing.T) {
	tests := []struct {
		name string
		dst  Counter
		src  Counter
	}{
		{"total underflow", Counter{Total: 1, Accepted: 0}, Counter{Total: 2}},
		{"accepted underflow", Counter{Total: 5, Accepted: 1}, Counter{Total: 1, Accepted: 2}},
		{"invariant broken", Counter{Total: 5, Accepted: 4}, Counter{Total: 4, Accepted: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Controller{StepSize: 1, Current: tt.dst}
			err := c.Subtr(&Controller{StepSize: 1, Current: tt.src})
			assert.ErrorIs(t, err, record.ErrShapeMismatch)
			assert.Equal(t, tt.dst, c.Current)
		})
	}
}

func TestController_StreamRoundTrip(t *testing.T) {
	in := Controller{StepSize: 0.125, Current: Counter{Total: 12, Accepted: 5}, Checkpoint: Counter{Total: 10, Accepted: 4}}
	for _, enc := range []stream.Encoding{stream.Text, stream.Binary} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := stream.NewWriter(&buf, enc)
			w.Begin("entry")
			require.NoError(t, in.Write(w))
			w.End()
			require.NoError(t, w.Flush())

			r := stream.NewReader(&buf, enc)
			require.NoError(t, r.Begin("entry"))
			var out Controller
			require.NoError(t, out.Read(r))
			require.NoError(t, r.End())

			assert.Equal(t, in.StepSize, out.StepSize)
			assert.Equal(t, in.Current, out.Current)
			assert.Equal(t, in.Current, out.Checkpoint)
		})
	}
}

func TestController_ReadRejectsBrokenInvariant(t *testing.T) {
	text := "entry{ step{1} accept{ total{1} accepted{3} } };"
	r := stream.NewReader(bytes.NewBufferString(text), stream.Text)
	require.NoError(t, r.Begin("entry"))
	var c Controller
	assert.ErrorIs(t, c.Read(r), record.ErrMalformedStream)
}
