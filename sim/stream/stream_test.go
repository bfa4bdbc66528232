package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	id     int64
	active bool
	total  uint64
	cutoff float64
	widths [2]float64
	items  [][]float64
}

func (s *sample) write(w *Writer) error {
	w.Header("Sample")
	w.Begin("sample")
	w.Int("id", s.id, 0)
	w.Bool("active", s.active, false)
	w.Uint("total", s.total, 0)
	w.Float("cutoff", s.cutoff, 0)
	w.Floats("widths", s.widths[:])
	w.Count("n", len(s.items))
	if err := w.Nested("items", len(s.items), func(i int) error {
		w.Floats("v", s.items[i])
		return nil
	}); err != nil {
		return err
	}
	w.End()
	return w.Flush()
}

func (s *sample) read(r *Reader) error {
	if _, err := r.Header(); err != nil {
		return err
	}
	if err := r.Begin("sample"); err != nil {
		return err
	}
	if err := r.Int("id", &s.id); err != nil {
		return err
	}
	if err := r.Bool("active", &s.active); err != nil {
		return err
	}
	if err := r.Uint("total", &s.total); err != nil {
		return err
	}
	if err := r.Float("cutoff", &s.cutoff); err != nil {
		return err
	}
	if err := r.Floats("widths", s.widths[:]); err != nil {
		return err
	}
	if err := r.Count("n", func(n int) error {
		s.items = make([][]float64, n)
		return nil
	}); err != nil {
		return err
	}
	if err := r.Nested("items", len(s.items), func(i int) error {
		return r.FloatSlice("v", &s.items[i])
	}); err != nil {
		return err
	}
	return r.End()
}

func TestRoundTrip_BothEncodings(t *testing.T) {
	in := &sample{
		id:     7,
		active: true,
		total:  1 << 40,
		cutoff: 2.5e-3,
		widths: [2]float64{0.01, 0.1},
		items:  [][]float64{{1, 2, 3}, {0.1 + 0.2}},
	}
	for _, enc := range []Encoding{Text, Binary} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, in.write(NewWriter(&buf, enc)))

			out := &sample{}
			require.NoError(t, out.read(NewReader(&buf, enc)))
			assert.Equal(t, in, out)
		})
	}
}

func TestText_OmitsDefaults(t *testing.T) {
	var buf bytes.Buffer
	s := &sample{widths: [2]float64{}}
	require.NoError(t, s.write(NewWriter(&buf, Text)))

	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "(* Sample *)"))
	for _, field := range []string{"id{", "active{", "total{", "cutoff{", "n{", "items{"} {
		assert.NotContains(t, text, field)
	}
	// fixed-size vectors are always present
	assert.Contains(t, text, "widths{0 0}")
}

func TestText_FieldOrderIsIrrelevant(t *testing.T) {
	text := `(* Sample *)

sample{
  n{1}
  items{
    {
      v{4 5}
    }
  }
  cutoff{1.5}
  id{3}
};
`
	s := &sample{}
	require.NoError(t, s.read(NewReader(strings.NewReader(text), Text)))
	assert.Equal(t, int64(3), s.id)
	assert.Equal(t, 1.5, s.cutoff)
	assert.Equal(t, [][]float64{{4, 5}}, s.items)
}

func TestReader_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"negative count", "(* Sample *)\nsample{ n{-1} };"},
		{"unparsable count", "(* Sample *)\nsample{ n{many} };"},
		{"declared elements missing", "(* Sample *)\nsample{ n{2} };"},
		{"element count disagrees", "(* Sample *)\nsample{ n{2} items{ { v{1} } } };"},
		{"array without count", "(* Sample *)\nsample{ items{ { v{1} } } };"},
		{"wrong block", "(* Sample *)\nother{ };"},
		{"unterminated block", "(* Sample *)\nsample{ id{1}"},
		{"bad float", "(* Sample *)\nsample{ cutoff{x} };"},
		{"too many widths", "(* Sample *)\nsample{ widths{1 2 3} };"},
		{"two scalar values", "(* Sample *)\nsample{ id{1 2} };"},
		{"unterminated comment", "(* Sample "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&sample{}).read(NewReader(strings.NewReader(tt.text), Text))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReader_DeepNestingIsMalformed(t *testing.T) {
	for _, text := range []string{
		"(* Sample *)\nsample{" + strings.Repeat("{", 1_000_000),
		"(* Sample *)\nsample{ " + strings.Repeat("x{", MaxDepth) + strings.Repeat("}", MaxDepth) + " };",
	} {
		err := (&sample{}).read(NewReader(strings.NewReader(text), Text))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.ErrorContains(t, err, "nested deeper")
	}
}

func TestBinary_NegativeCountIsMalformed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Binary)
	w.Count("n", -3)
	require.NoError(t, w.Flush())

	r := NewReader(&buf, Binary)
	err := r.Count("n", func(int) error { t.Fatal("realloc must not run"); return nil })
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestBinary_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&sample{id: 1, cutoff: 3, widths: [2]float64{1, 2}}).write(NewWriter(&buf, Binary)))
	cut := buf.Bytes()[:buf.Len()-3]

	err := (&sample{}).read(NewReader(bytes.NewReader(cut), Binary))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHeader_EOF(t *testing.T) {
	for _, enc := range []Encoding{Text, Binary} {
		_, err := NewReader(strings.NewReader(""), enc).Header()
		assert.ErrorIs(t, err, io.EOF, enc.String())
	}
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("BINARY")
	require.NoError(t, err)
	assert.Equal(t, Binary, enc)

	enc, err = ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, Text, enc)

	_, err = ParseEncoding("xml")
	assert.Error(t, err)
}
