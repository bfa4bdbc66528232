package moves

import (
	"github.com/inference-sim/mcsim/sim/accept"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

// Write emits the template as a `moves{…}` block.
func (t *Template) Write(w *stream.Writer) error {
	w.Begin("moves")
	w.Int("frequency", int64(t.Frequency), 1)
	w.Float("step", t.StepSize, 0)
	w.Uint("ncheck", t.Params.NCheck, accept.DefaultNCheck)
	w.Float("magic", t.Params.Magic, accept.DefaultMagic)
	w.Count("ntypes", t.NTypes)
	w.Count("n", len(t.Entries))
	if err := w.Nested("entries", len(t.Entries), func(i int) error {
		return t.Entries[i].Write(w)
	}); err != nil {
		return record.Wrap(module, "Write", err)
	}
	w.End()
	return record.Wrap(module, "Write", w.Err())
}

// Read replaces t from a `moves{…}` block. Views are dropped; Init rebuilds
// them.
func (t *Template) Read(r *stream.Reader) error {
	if err := t.read(r); err != nil {
		return record.Wrap(module, "Read", err)
	}
	return nil
}

func (t *Template) read(r *stream.Reader) error {
	tr := t.Trace
	t.Release()
	t.Reinit()
	t.Trace = tr

	if err := r.Begin("moves"); err != nil {
		return err
	}
	frequency := int64(t.Frequency)
	if err := r.Int("frequency", &frequency); err != nil {
		return err
	}
	t.Frequency = int(frequency)
	if err := r.Float("step", &t.StepSize); err != nil {
		return err
	}
	if err := r.Uint("ncheck", &t.Params.NCheck); err != nil {
		return err
	}
	if err := r.Float("magic", &t.Params.Magic); err != nil {
		return err
	}
	if err := r.Count("ntypes", func(n int) error {
		t.NTypes = n
		return nil
	}); err != nil {
		return err
	}
	if err := r.Count("n", func(n int) error {
		t.Entries = make([]accept.Controller, n)
		return nil
	}); err != nil {
		return err
	}
	if err := r.Nested("entries", len(t.Entries), func(i int) error {
		return t.Entries[i].Read(r)
	}); err != nil {
		return err
	}
	if err := r.End(); err != nil {
		return err
	}

	if err := t.Params.Validate(); err != nil {
		return record.Errorf(module, "Read", record.ErrMalformedStream, "%v", err)
	}
	if len(t.Entries) > 0 && (t.NTypes == 0 || len(t.Entries)%t.NTypes != 0) {
		return record.Errorf(module, "Read", record.ErrMalformedStream,
			"%d entries do not divide into %d types", len(t.Entries), t.NTypes)
	}
	return nil
}
