// Package distribution implements multi-resolution histograms: one count row
// per bin width over the same sampled quantity.
package distribution

import (
	"math"
	"unsafe"

	"gonum.org/v1/gonum/floats"

	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

const (
	// Header names the stream section of a standalone distribution.
	Header = "Distribution"

	module = "distribution"

	// MaxBins bounds the length of a count row. It matches the largest
	// count a stream reader accepts.
	MaxBins = stream.MaxCount
)

func init() {
	record.Default.MustRegister(Header, func() record.Record { return &Distribution{} })
}

// Distribution is a weighted histogram kept at several bin widths at once.
// Counts[i][j] holds the weight submitted into [j*w, (j+1)*w) with
// w = BinWidths[i]. Rows grow on demand.
type Distribution struct {
	BinWidths []float64
	Counts    [][]float64
	NSamples  int64
}

var _ record.Record = (*Distribution)(nil)

// New returns an empty distribution with the given bin widths. Non-positive
// widths are skipped.
func New(widths ...float64) *Distribution {
	d := &Distribution{}
	d.SetBinWidths(widths)
	return d
}

func (d *Distribution) Header() string { return Header }

// SetBinWidths replaces the bin widths and drops all counts.
func (d *Distribution) SetBinWidths(widths []float64) {
	kept := make([]float64, 0, len(widths))
	for _, w := range widths {
		if w > 0 {
			kept = append(kept, w)
		}
	}
	d.BinWidths = kept
	d.Counts = make([][]float64, len(d.BinWidths))
	d.NSamples = 0
}

// Presize allocates every row up to cutoff so submissions below it never
// grow a row. Rows are capped at MaxBins.
func (d *Distribution) Presize(cutoff float64) {
	if !(cutoff > 0) || math.IsInf(cutoff, 0) {
		return
	}
	for i, w := range d.BinWidths {
		n := MaxBins
		if f := math.Ceil(cutoff / w); f < MaxBins {
			n = int(f)
		}
		if n > len(d.Counts[i]) {
			d.Counts[i] = grow(d.Counts[i], n)
		}
	}
}

// Submit adds weight at x in every row. Negative or non-finite x is
// ignored, and so is x in any row where it falls past MaxBins bins.
func (d *Distribution) Submit(x, weight float64) {
	if !(x >= 0) || math.IsInf(x, 0) {
		return
	}
	for i, w := range d.BinWidths {
		f := x / w
		if !(f < MaxBins) {
			continue
		}
		j := int(f)
		if j >= len(d.Counts[i]) {
			d.Counts[i] = grow(d.Counts[i], j+1)
		}
		d.Counts[i][j] += weight
	}
}

// Sampled counts one completed sampling pass.
func (d *Distribution) Sampled() { d.NSamples++ }

// Total returns the summed weight of row i.
func (d *Distribution) Total(i int) float64 {
	return floats.Sum(d.Counts[i])
}

// Reinit clears the distribution.
func (d *Distribution) Reinit() {
	*d = Distribution{}
}

// Release drops the count rows.
func (d *Distribution) Release() {
	d.BinWidths = nil
	d.Counts = nil
}

func (d *Distribution) Size() int {
	size := int(unsafe.Sizeof(*d)) + 8*len(d.BinWidths)
	for _, row := range d.Counts {
		size += int(unsafe.Sizeof(row)) + 8*len(row)
	}
	return size
}

// Copy makes d a deep copy of src.
func (d *Distribution) Copy(src record.Record) error {
	s, ok := src.(*Distribution)
	if !ok {
		return record.Mismatch(module, "Copy", d, src)
	}
	d.BinWidths = append([]float64(nil), s.BinWidths...)
	d.Counts = make([][]float64, len(s.Counts))
	for i, row := range s.Counts {
		d.Counts[i] = append([]float64(nil), row...)
	}
	d.NSamples = s.NSamples
	return nil
}

// Add merges src bin for bin. Both must share bin widths; an empty receiver
// adopts src's.
func (d *Distribution) Add(src record.Record) error {
	return d.merge("Add", src, 1)
}

// Subtr removes src bin for bin. Counts may become negative.
func (d *Distribution) Subtr(src record.Record) error {
	return d.merge("Subtr", src, -1)
}

func (d *Distribution) merge(op string, src record.Record, sign float64) error {
	s, ok := src.(*Distribution)
	if !ok {
		return record.Mismatch(module, op, d, src)
	}
	if len(d.BinWidths) == 0 && d.NSamples == 0 {
		d.SetBinWidths(s.BinWidths)
	}
	if !d.Compatible(s) {
		return record.Errorf(module, op, record.ErrShapeMismatch,
			"bin widths %v against %v", s.BinWidths, d.BinWidths)
	}
	for i, row := range s.Counts {
		if len(row) > len(d.Counts[i]) {
			d.Counts[i] = grow(d.Counts[i], len(row))
		}
		floats.AddScaled(d.Counts[i][:len(row)], sign, row)
	}
	d.NSamples += int64(sign) * s.NSamples
	return nil
}

// Compatible reports whether d and o share the same bin widths.
func (d *Distribution) Compatible(o *Distribution) bool {
	return len(d.BinWidths) == len(o.BinWidths) &&
		floats.Equal(d.BinWidths, o.BinWidths) &&
		len(d.Counts) == len(o.Counts)
}

// Equal reports whether d and o hold the same counts, treating missing
// trailing bins as zero.
func (d *Distribution) Equal(o *Distribution) bool {
	if !d.Compatible(o) || d.NSamples != o.NSamples {
		return false
	}
	for i := range d.Counts {
		a, b := d.Counts[i], o.Counts[i]
		if len(a) < len(b) {
			a, b = b, a
		}
		if !floats.Equal(a[:len(b)], b) {
			return false
		}
		for _, v := range a[len(b):] {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// ScaleLength converts bin widths by the length unit l.
func (d *Distribution) ScaleLength(l float64) {
	floats.Scale(l, d.BinWidths)
}

func grow(row []float64, n int) []float64 {
	if n <= cap(row) {
		return row[:n]
	}
	out := make([]float64, n, n+n/4)
	copy(out, row)
	return out
}
