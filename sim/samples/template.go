// Package samples accumulates intra-cluster pair-distance histograms, one per
// system, on a fixed sampling schedule.
package samples

import (
	"fmt"
	"unsafe"

	"github.com/inference-sim/mcsim/sim"
	"github.com/inference-sim/mcsim/sim/distribution"
	"github.com/inference-sim/mcsim/sim/record"
)

const (
	// Header names the stream section of a sample template.
	Header = "SamplesTemplate"

	module = "samples"

	// NumBinWidths is the number of histogram resolutions kept per
	// distribution. Zero widths are unused.
	NumBinWidths = 3
	// DefaultBinWidth is the first resolution of a new template.
	DefaultBinWidth = 0.01
)

func init() {
	record.Default.MustRegister(Header, func() record.Record { return New() })
}

// Template schedules pair-distance sampling and owns one distribution per
// system.
type Template struct {
	ID        int64
	Active    bool
	Frequency int
	// Skip counts the ticks left before the next sample.
	Skip      int
	Cutoff    float64
	BinWidths [NumBinWidths]float64
	Focus     Focus

	Distributions []distribution.Distribution
}

var _ record.Record = (*Template)(nil)
var _ sim.Sampler = (*Template)(nil)

// New returns a template in its default state.
func New() *Template {
	t := &Template{}
	t.Reinit()
	return t
}

func (t *Template) Header() string { return Header }

// Reinit restores the factory defaults: active, sampling every tick at a
// single 0.01 resolution.
func (t *Template) Reinit() {
	*t = Template{
		Active:    true,
		Frequency: 1,
		BinWidths: [NumBinWidths]float64{DefaultBinWidth},
	}
}

// Release drops the distributions and the focus list.
func (t *Template) Release() {
	t.Distributions = record.ReleaseAll[distribution.Distribution](t.Distributions)
	t.Focus = Focus{}
}

func (t *Template) Size() int {
	return int(unsafe.Sizeof(*t)) + 8*len(t.Focus.Types) +
		record.TotalSize[distribution.Distribution](t.Distributions)
}

// Copy makes t a deep copy of src.
func (t *Template) Copy(src record.Record) error {
	s, ok := src.(*Template)
	if !ok {
		return record.Mismatch(module, "Copy", t, src)
	}
	*t = *s
	t.Focus = s.Focus.clone()
	t.Distributions = make([]distribution.Distribution, len(s.Distributions))
	return record.CopyAll[distribution.Distribution](module, t.Distributions, s.Distributions)
}

// Add merges src's histograms into t, system by system. A receiver without
// distributions adopts src's count.
func (t *Template) Add(src record.Record) error {
	return t.merge("Add", src, (*distribution.Distribution).Add)
}

// Subtr removes src's histograms from t.
func (t *Template) Subtr(src record.Record) error {
	return t.merge("Subtr", src, (*distribution.Distribution).Subtr)
}

func (t *Template) merge(op string, src record.Record, fn func(*distribution.Distribution, record.Record) error) error {
	s, ok := src.(*Template)
	if !ok {
		return record.Mismatch(module, op, t, src)
	}
	if len(s.Distributions) == 0 {
		return nil
	}
	if len(t.Distributions) == 0 {
		fresh, err := record.Allocate[distribution.Distribution](module, len(s.Distributions))
		if err != nil {
			return err
		}
		t.Distributions = fresh
	}
	if len(t.Distributions) != len(s.Distributions) {
		return record.Errorf(module, op, record.ErrShapeMismatch,
			"%d distributions against %d", len(s.Distributions), len(t.Distributions))
	}
	for i := range t.Distributions {
		if err := fn(&t.Distributions[i], &s.Distributions[i]); err != nil {
			return record.Wrap(module, op, fmt.Errorf("system %d: %w", i, err))
		}
	}
	return nil
}

// Clear drops the collected histograms but keeps their layout and the
// sampling configuration.
func (t *Template) Clear() {
	for i := range t.Distributions {
		t.Distributions[i].SetBinWidths(t.Distributions[i].BinWidths)
		t.Distributions[i].Presize(t.Cutoff)
	}
}

// Factory re-arms t for a fresh run: histograms are cleared and the
// schedule restarts at the next tick.
func (t *Template) Factory() {
	t.Clear()
	t.Skip = 0
}

// ScaleLength converts the cutoff and bin widths by the length unit l.
func (t *Template) ScaleLength(l float64) {
	t.Cutoff *= l
	for i := range t.BinWidths {
		t.BinWidths[i] *= l
	}
	for i := range t.Distributions {
		t.Distributions[i].ScaleLength(l)
	}
}

// Init prepares one distribution per system of s. Existing distributions
// with the right count and bin widths keep their counts, so a run resumed
// from a checkpoint continues accumulating; the schedule then resumes one
// full period later. A fresh set samples on the first tick.
func (t *Template) Init(s *sim.Simulation) error {
	if t.Frequency < 1 {
		t.Frequency = 0
	}
	if t.Cutoff <= 0 {
		t.Cutoff = s.MaxDiameter()
	}

	n := len(s.Systems)
	widths := t.BinWidths[:]
	if len(t.Distributions) != n {
		record.ReleaseAll[distribution.Distribution](t.Distributions)
		fresh, err := record.Allocate[distribution.Distribution](module, n)
		if err != nil {
			return err
		}
		t.Distributions = fresh
		for i := range t.Distributions {
			t.Distributions[i].SetBinWidths(widths)
			t.Distributions[i].Presize(t.Cutoff)
		}
		t.Skip = 0
		return nil
	}

	want := distribution.New(widths...)
	for i := range t.Distributions {
		if !t.Distributions[i].Compatible(want) {
			t.Distributions[i].SetBinWidths(widths)
		}
		t.Distributions[i].Presize(t.Cutoff)
	}
	t.Skip = max(t.Frequency-1, 0)
	return nil
}
