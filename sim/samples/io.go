package samples

import (
	"github.com/inference-sim/mcsim/sim/distribution"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

// Write emits the template and its histograms as a `samples{…}` block.
func (t *Template) Write(w *stream.Writer) error {
	w.Begin("samples")
	t.writeSettings(w)
	w.Int("skip", int64(t.Skip), 0)
	w.Count("ndistributions", len(t.Distributions))
	if err := w.Nested("distributions", len(t.Distributions), func(i int) error {
		return t.Distributions[i].WriteFields(w)
	}); err != nil {
		return record.Wrap(module, "Write", err)
	}
	w.End()
	return record.Wrap(module, "Write", w.Err())
}

// Read replaces t from a `samples{…}` block.
func (t *Template) Read(r *stream.Reader) error {
	if err := t.read(r); err != nil {
		return record.Wrap(module, "Read", err)
	}
	return nil
}

func (t *Template) read(r *stream.Reader) error {
	t.Release()
	t.Reinit()
	if err := r.Begin("samples"); err != nil {
		return err
	}
	if err := t.readSettings(r); err != nil {
		return err
	}
	if err := r.IntValue("skip", &t.Skip); err != nil {
		return err
	}
	if err := r.Count("ndistributions", func(n int) error {
		fresh, err := record.Allocate[distribution.Distribution](module, n)
		t.Distributions = fresh
		return err
	}); err != nil {
		return err
	}
	if err := r.Nested("distributions", len(t.Distributions), func(i int) error {
		return t.Distributions[i].ReadFields(r)
	}); err != nil {
		return err
	}
	if t.Skip < 0 {
		return record.Errorf(module, "Read", record.ErrMalformedStream, "negative skip %d", t.Skip)
	}
	return r.End()
}

func (t *Template) writeSettings(w *stream.Writer) {
	w.Int("id", t.ID, 0)
	w.Bool("active", t.Active, true)
	w.Int("frequency", int64(t.Frequency), 1)
	w.Ints("focus", t.Focus.ints())
	w.Float("cutoff", t.Cutoff, 0)
	w.Floats("binsize", t.BinWidths[:])
}

func (t *Template) readSettings(r *stream.Reader) error {
	if err := r.Int("id", &t.ID); err != nil {
		return err
	}
	if err := r.Bool("active", &t.Active); err != nil {
		return err
	}
	if err := r.IntValue("frequency", &t.Frequency); err != nil {
		return err
	}
	var focus []int64
	if err := r.Ints("focus", &focus); err != nil {
		return err
	}
	t.Focus = focusFromInts(focus)
	if err := r.Float("cutoff", &t.Cutoff); err != nil {
		return err
	}
	if err := r.Floats("binsize", t.BinWidths[:]); err != nil {
		return err
	}
	for _, w := range t.BinWidths {
		if w < 0 {
			return record.Errorf(module, "Read", record.ErrMalformedStream, "negative bin width %v", w)
		}
	}
	return nil
}
