package samples

import (
	"fmt"
	"math"
	"slices"

	"github.com/inference-sim/mcsim/sim/distribution"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

// Settings is the user-facing configuration of a sample template. Unset
// optional fields keep the template defaults.
type Settings struct {
	ID        int64     `yaml:"id"`
	Active    *bool     `yaml:"active,omitempty"`
	Frequency *int      `yaml:"frequency,omitempty"`
	Cutoff    float64   `yaml:"cutoff,omitempty"`
	BinWidths []float64 `yaml:"binsize,omitempty"`
	Focus     []int     `yaml:"focus,omitempty"`
}

// Validate checks ranges before the settings touch a template.
func (s Settings) Validate() error {
	if s.Frequency != nil && *s.Frequency < 0 {
		return fmt.Errorf("sample %d: frequency must be >= 0, got %d", s.ID, *s.Frequency)
	}
	if !(s.Cutoff >= 0) || math.IsInf(s.Cutoff, 0) {
		return fmt.Errorf("sample %d: cutoff must be finite and >= 0, got %v", s.ID, s.Cutoff)
	}
	if len(s.BinWidths) > NumBinWidths {
		return fmt.Errorf("sample %d: at most %d bin sizes, got %d", s.ID, NumBinWidths, len(s.BinWidths))
	}
	widths := s.BinWidths
	if widths == nil {
		widths = []float64{DefaultBinWidth}
	}
	for _, w := range widths {
		if !(w > 0) {
			return fmt.Errorf("sample %d: bin size must be positive, got %v", s.ID, w)
		}
		if !(s.Cutoff/w < distribution.MaxBins) {
			return fmt.Errorf("sample %d: cutoff %v needs more than %d bins of size %v", s.ID, s.Cutoff, distribution.MaxBins, w)
		}
	}
	for _, ty := range s.Focus {
		if ty < 0 {
			return fmt.Errorf("sample %d: negative focus type %d", s.ID, ty)
		}
	}
	return nil
}

// Template builds a fresh template from s.
func (s Settings) Template() *Template {
	t := New()
	s.Apply(t)
	return t
}

// Apply copies s onto a live template. Histograms are kept unless the
// cutoff, bin widths or focus change, since counts gathered under different
// settings cannot be combined. A zero cutoff keeps the template's, which Init
// may have derived. It reports whether histograms were dropped.
func (s Settings) Apply(t *Template) bool {
	cutoff := t.Cutoff
	if s.Cutoff > 0 {
		cutoff = s.Cutoff
	}
	widths := t.BinWidths
	if s.BinWidths != nil {
		widths = [NumBinWidths]float64{}
		copy(widths[:], s.BinWidths)
	}
	focus := Focus{Types: slices.Clone(s.Focus)}

	t.ID = s.ID
	if s.Active != nil {
		t.Active = *s.Active
	}
	if s.Frequency != nil {
		t.Frequency = *s.Frequency
	}
	return t.reconfigure(cutoff, widths, focus)
}

// SettingsOf extracts the settings of t.
func SettingsOf(t *Template) Settings {
	active, frequency := t.Active, t.Frequency
	s := Settings{
		ID:        t.ID,
		Active:    &active,
		Frequency: &frequency,
		Cutoff:    t.Cutoff,
		Focus:     slices.Clone(t.Focus.Types),
	}
	for _, w := range t.BinWidths {
		if w > 0 {
			s.BinWidths = append(s.BinWidths, w)
		}
	}
	return s
}

func (t *Template) reconfigure(cutoff float64, widths [NumBinWidths]float64, focus Focus) bool {
	changed := cutoff != t.Cutoff || widths != t.BinWidths || !focus.Equal(t.Focus)
	t.Cutoff = cutoff
	t.BinWidths = widths
	t.Focus = focus
	if !changed || len(t.Distributions) == 0 {
		return false
	}
	for i := range t.Distributions {
		t.Distributions[i].SetBinWidths(t.BinWidths[:])
		t.Distributions[i].Presize(t.Cutoff)
	}
	t.Skip = 0
	return true
}

// WriteSettings emits only the settings of t as a `sample{…}` block.
func (t *Template) WriteSettings(w *stream.Writer) error {
	w.Begin("sample")
	t.writeSettings(w)
	w.End()
	return record.Wrap(module, "WriteSettings", w.Err())
}

// ReadSettings applies a `sample{…}` block onto t with the same rules as
// Settings.Apply.
func (t *Template) ReadSettings(r *stream.Reader) error {
	next := *t
	next.Distributions = nil
	next.Focus = t.Focus.clone()
	err := func() error {
		if err := r.Begin("sample"); err != nil {
			return err
		}
		if err := next.readSettings(r); err != nil {
			return err
		}
		return r.End()
	}()
	if err != nil {
		return record.Wrap(module, "ReadSettings", err)
	}
	t.ID, t.Active, t.Frequency = next.ID, next.Active, next.Frequency
	t.reconfigure(next.Cutoff, next.BinWidths, next.Focus)
	return nil
}
