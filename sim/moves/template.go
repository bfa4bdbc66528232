// Package moves implements Metropolis single-site displacement moves with
// per (system, site type) adaptive step sizes.
package moves

import (
	"fmt"
	"unsafe"

	"github.com/inference-sim/mcsim/sim"
	"github.com/inference-sim/mcsim/sim/accept"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/trace"
)

const (
	// Header names the stream section of a move template.
	Header = "MovesTemplate"

	module = "moves"

	// DiameterFraction scales the smallest type diameter into the default
	// step size.
	DiameterFraction = 0.025
	// FallbackStepSize applies when no type has a diameter.
	FallbackStepSize = 1.0
)

func init() {
	record.Default.MustRegister(Header, func() record.Record { return New() })
}

// Template holds the displacement move configuration and one acceptance
// controller per (system, site type). Entry system*NTypes+type belongs to
// that pair.
//
// After Init, View(i) returns a clone holding system i's slice of the
// entries. Clones share storage with their parent and never release it.
type Template struct {
	Frequency int
	// StepSize is the configured initial step size; 0 derives one from the
	// smallest type diameter.
	StepSize float64
	Params   accept.Params
	NTypes   int
	Entries  []accept.Controller

	// Trace receives rescale records when enabled. Not serialized.
	Trace *trace.SimulationTrace

	clone       bool
	system      int
	defaultStep float64
	views       []*Template
}

// New returns a template in its default state.
func New() *Template {
	t := &Template{}
	t.Reinit()
	return t
}

var _ record.Record = (*Template)(nil)
var _ sim.Mover = (*Template)(nil)

func (t *Template) Header() string { return Header }

// Reinit restores the factory defaults: one trial per step, default
// adaptation parameters and no entries.
func (t *Template) Reinit() {
	*t = Template{Frequency: 1, Params: accept.DefaultParams()}
}

// Release drops the entries and views. A clone only forgets its reference.
func (t *Template) Release() {
	if !t.clone {
		for _, v := range t.views {
			v.Release()
		}
	}
	t.Entries = nil
	t.views = nil
}

// Clone reports whether t is a per-system view of another template.
func (t *Template) Clone() bool { return t.clone }

// System returns the system index of a clone.
func (t *Template) System() int { return t.system }

// View returns the clone for system, or nil before Init.
func (t *Template) View(system int) *Template {
	if system < 0 || system >= len(t.views) {
		return nil
	}
	return t.views[system]
}

// Entry returns the controller of (system, siteType) or nil when out of range.
func (t *Template) Entry(system, siteType int) *accept.Controller {
	if t.clone {
		if system != t.system || siteType < 0 || siteType >= len(t.Entries) {
			return nil
		}
		return &t.Entries[siteType]
	}
	if siteType < 0 || siteType >= t.NTypes || system < 0 {
		return nil
	}
	i := system*t.NTypes + siteType
	if i >= len(t.Entries) {
		return nil
	}
	return &t.Entries[i]
}

// Totals sums the running counters over all entries.
func (t *Template) Totals() accept.Counter {
	var c accept.Counter
	for i := range t.Entries {
		c.Add(t.Entries[i].Current)
	}
	return c
}

func (t *Template) Size() int {
	size := int(unsafe.Sizeof(*t))
	if !t.clone {
		size += len(t.Entries) * int(unsafe.Sizeof(accept.Controller{}))
		for _, v := range t.views {
			size += v.Size()
		}
	}
	return size
}

// Copy makes t an independent deep copy of src. Views are not copied; Init
// rebuilds them.
func (t *Template) Copy(src record.Record) error {
	s, ok := src.(*Template)
	if !ok {
		return record.Mismatch(module, "Copy", t, src)
	}
	*t = Template{
		Frequency:   s.Frequency,
		StepSize:    s.StepSize,
		Params:      s.Params,
		NTypes:      s.NTypes,
		Entries:     append([]accept.Controller(nil), s.Entries...),
		Trace:       s.Trace,
		defaultStep: s.defaultStep,
	}
	return nil
}

// Add merges the counters and step sizes of src entry by entry. An empty
// receiver adopts src's layout.
func (t *Template) Add(src record.Record) error {
	return t.merge("Add", src, (*accept.Controller).Add)
}

// Subtr removes src's counters entry by entry.
func (t *Template) Subtr(src record.Record) error {
	return t.merge("Subtr", src, (*accept.Controller).Subtr)
}

func (t *Template) merge(op string, src record.Record, fn func(*accept.Controller, *accept.Controller) error) error {
	s, ok := src.(*Template)
	if !ok {
		return record.Mismatch(module, op, t, src)
	}
	if len(t.Entries) == 0 && !t.clone {
		t.Entries = make([]accept.Controller, len(s.Entries))
		t.NTypes = s.NTypes
	}
	if len(t.Entries) != len(s.Entries) || t.NTypes != s.NTypes {
		return record.Errorf(module, op, record.ErrShapeMismatch,
			"%d entries of %d types against %d of %d", len(s.Entries), s.NTypes, len(t.Entries), t.NTypes)
	}
	for i := range t.Entries {
		if err := fn(&t.Entries[i], &s.Entries[i]); err != nil {
			return record.Wrap(module, op, fmt.Errorf("entry %d: %w", i, err))
		}
	}
	return nil
}

// Reset opens a fresh rescale window on every entry. Totals are kept.
func (t *Template) Reset() {
	for i := range t.Entries {
		t.Entries[i].Reset()
	}
}

// Factory zeroes all counters and restores the initial step size.
func (t *Template) Factory() {
	for i := range t.Entries {
		t.Entries[i].Factory()
		t.Entries[i].StepSize = t.defaultStep
	}
}

// ScaleLength converts step sizes by the length unit l.
func (t *Template) ScaleLength(l float64) {
	t.StepSize *= l
	t.defaultStep *= l
	for i := range t.Entries {
		t.Entries[i].StepSize *= l
	}
}

// Init sizes the entries for the systems and types of s, keeping existing
// entries, assigns missing step sizes, opens a fresh rescale window and
// builds the per-system views.
func (t *Template) Init(s *sim.Simulation) error {
	if t.clone {
		return record.Errorf(module, "Init", record.ErrShapeMismatch, "cannot initialize a clone")
	}
	if t.Frequency < 0 {
		t.Frequency = 0
	}
	if t.Params == (accept.Params{}) {
		t.Params = accept.DefaultParams()
	}
	if err := t.Params.Validate(); err != nil {
		return fmt.Errorf("%s::Init: %w", module, err)
	}

	ntypes := s.NumTypes()
	if ntypes == 0 {
		ntypes = 1
	}
	if len(t.Entries) > 0 && t.NTypes != ntypes {
		return record.Errorf(module, "Init", record.ErrShapeMismatch,
			"entries laid out for %d types, simulation has %d", t.NTypes, ntypes)
	}
	t.NTypes = ntypes

	total := len(s.Systems) * ntypes
	if len(t.Entries) < total {
		t.Entries = append(t.Entries, make([]accept.Controller, total-len(t.Entries))...)
	}
	t.Entries = t.Entries[:total:total]

	t.defaultStep = t.StepSize
	if t.defaultStep <= 0 {
		t.defaultStep = DiameterFraction * s.MinDiameter()
	}
	if t.defaultStep <= 0 {
		t.defaultStep = FallbackStepSize
	}
	for i := range t.Entries {
		if t.Entries[i].StepSize <= 0 {
			t.Entries[i].StepSize = t.defaultStep
		}
		t.Entries[i].Reset()
	}

	t.views = make([]*Template, len(s.Systems))
	for i := range s.Systems {
		id := i * ntypes
		t.views[i] = &Template{
			Frequency:   t.Frequency,
			StepSize:    t.StepSize,
			Params:      t.Params,
			NTypes:      ntypes,
			Entries:     t.Entries[id : id+ntypes : id+ntypes],
			Trace:       t.Trace,
			clone:       true,
			system:      i,
			defaultStep: t.defaultStep,
		}
	}
	return nil
}
