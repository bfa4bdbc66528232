package accept

import (
	"fmt"
	"math"

	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

const (
	// DefaultNCheck is the number of trials per rescale batch.
	DefaultNCheck = 10000
	// DefaultMagic is the rescale damping constant. With 0.5 the step size
	// is stationary at 50% acceptance.
	DefaultMagic = 0.5
)

const module = "accept"

// Params configures step-size adaptation.
type Params struct {
	NCheck uint64  `yaml:"ncheck"`
	Magic  float64 `yaml:"magic"`
}

// DefaultParams returns NCheck 10000 and Magic 0.5.
func DefaultParams() Params {
	return Params{NCheck: DefaultNCheck, Magic: DefaultMagic}
}

// Validate checks that a batch has at least one trial and that Magic keeps
// the multiplier non-negative.
func (p Params) Validate() error {
	if p.NCheck == 0 {
		return fmt.Errorf("ncheck must be positive")
	}
	if math.IsNaN(p.Magic) || p.Magic <= 0 || p.Magic > 1 {
		return fmt.Errorf("magic must be in (0, 1], got %v", p.Magic)
	}
	return nil
}

// Multiplier is the step-size factor applied after a batch in which batch of
// NCheck trials were accepted: (1 - Magic) + batch/NCheck.
func (p Params) Multiplier(batch uint64) float64 {
	return (1 - p.Magic) + float64(batch)/float64(p.NCheck)
}

// Controller holds the adaptive step size of one (system, site type) entry
// together with its running and last-rescale counters.
type Controller struct {
	StepSize   float64
	Current    Counter
	Checkpoint Counter
}

// Update counts one trial and rescales the step size when a full batch has
// elapsed since the last rescale. It reports whether a rescale happened.
func (c *Controller) Update(accepted bool, p Params) bool {
	c.Current.Record(accepted)
	if c.Current.Total < c.Checkpoint.Total+p.NCheck {
		return false
	}
	batch := c.Current.Accepted - c.Checkpoint.Accepted
	c.StepSize *= p.Multiplier(batch)
	c.Checkpoint.Total += p.NCheck
	c.Checkpoint.Accepted = c.Current.Accepted
	return true
}

// Pending is the partial batch accumulated since the last rescale.
func (c *Controller) Pending() Counter {
	return Counter{
		Total:    c.Current.Total - c.Checkpoint.Total,
		Accepted: c.Current.Accepted - c.Checkpoint.Accepted,
	}
}

// Reset opens a fresh batch window at the current counts. Totals are kept.
func (c *Controller) Reset() {
	c.Checkpoint = c.Current
}

// Factory zeroes both counters. The step size is left to the owner.
func (c *Controller) Factory() {
	c.Current = Counter{}
	c.Checkpoint = Counter{}
}

// Add merges src into c. Counters are summed and the step size becomes the
// trial-weighted mean of both operands.
func (c *Controller) Add(src *Controller) error {
	c.Reset()
	total := c.Current.Total + src.Current.Total
	switch {
	case total > 0:
		c.StepSize = (c.StepSize*float64(c.Current.Total) +
			src.StepSize*float64(src.Current.Total)) / float64(total)
	case c.StepSize == 0:
		c.StepSize = src.StepSize
	}
	c.Current.Add(src.Current)
	c.Checkpoint = c.Current
	return nil
}

// Subtr removes src from c, inverting Add.
func (c *Controller) Subtr(src *Controller) error {
	c.Reset()
	before := c.Current
	next := c.Current
	if err := next.Subtr(src.Current); err != nil {
		return record.Errorf(module, "Subtr", record.ErrShapeMismatch, "%v", err)
	}
	step := c.StepSize
	if next.Total > 0 {
		step = (c.StepSize*float64(before.Total) - src.StepSize*float64(src.Current.Total)) /
			float64(next.Total)
		if !(step > 0) || math.IsInf(step, 0) {
			return record.Errorf(module, "Subtr", record.ErrShapeMismatch,
				"step size %v does not stay positive", step)
		}
	}
	c.StepSize = step
	c.Current = next
	c.Checkpoint = next
	return nil
}

// Write emits the step size and the running counter. The batch window is
// not persisted; a reader starts a fresh one.
func (c *Controller) Write(w *stream.Writer) error {
	w.Float("step", c.StepSize, 0)
	return w.Record("accept", c.Current.IsZero(), func() error {
		w.Uint("total", c.Current.Total, 0)
		w.Uint("accepted", c.Current.Accepted, 0)
		return w.Err()
	})
}

// Read replaces c from r and opens a fresh batch window.
func (c *Controller) Read(r *stream.Reader) error {
	*c = Controller{}
	if err := r.Float("step", &c.StepSize); err != nil {
		return err
	}
	if err := r.Record("accept", func() error {
		if err := r.Uint("total", &c.Current.Total); err != nil {
			return err
		}
		return r.Uint("accepted", &c.Current.Accepted)
	}); err != nil {
		return err
	}
	if !c.Current.Valid() {
		return record.Errorf(module, "Read", record.ErrMalformedStream,
			"%d of %d trials accepted", c.Current.Accepted, c.Current.Total)
	}
	c.Checkpoint = c.Current
	return nil
}
