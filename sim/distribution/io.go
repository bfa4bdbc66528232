package distribution

import (
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

// Write emits d as a standalone `distribution{…}` block.
func (d *Distribution) Write(w *stream.Writer) error {
	w.Begin("distribution")
	if err := d.WriteFields(w); err != nil {
		return record.Wrap(module, "Write", err)
	}
	w.End()
	return record.Wrap(module, "Write", w.Err())
}

// WriteFields emits the fields of d into the current block, so containers
// can embed distributions as anonymous elements.
func (d *Distribution) WriteFields(w *stream.Writer) error {
	w.Int("nsamples", d.NSamples, 0)
	w.Floats("binsize", d.BinWidths)
	return w.Nested("counts", len(d.Counts), func(i int) error {
		w.Floats("v", d.Counts[i])
		return nil
	})
}

// Read replaces d from a standalone `distribution{…}` block.
func (d *Distribution) Read(r *stream.Reader) error {
	if err := r.Begin("distribution"); err != nil {
		return record.Wrap(module, "Read", err)
	}
	if err := d.ReadFields(r); err != nil {
		return record.Wrap(module, "Read", err)
	}
	return record.Wrap(module, "Read", r.End())
}

// ReadFields replaces d from the fields of the current block. The number of
// count rows follows from the number of bin widths.
func (d *Distribution) ReadFields(r *stream.Reader) error {
	d.Reinit()
	if err := r.Int("nsamples", &d.NSamples); err != nil {
		return err
	}
	var widths []float64
	if err := r.FloatSlice("binsize", &widths); err != nil {
		return err
	}
	for _, w := range widths {
		if !(w > 0) {
			return record.Errorf(module, "Read", record.ErrMalformedStream, "bin width %v", w)
		}
	}
	d.BinWidths = widths
	d.Counts = make([][]float64, len(widths))
	return r.Nested("counts", len(widths), func(i int) error {
		return r.FloatSlice("v", &d.Counts[i])
	})
}
