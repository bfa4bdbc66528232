package moves

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/mcsim/sim"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/trace"
)

// Move runs Frequency displacement trials on s.
func (t *Template) Move(s *sim.Simulation) error {
	if t.Frequency <= 0 {
		return nil
	}
	if t.clone {
		return record.Errorf(module, "Move", record.ErrShapeMismatch, "move called on a clone")
	}
	if len(t.views) != len(s.Systems) {
		return record.Errorf(module, "Move", record.ErrShapeMismatch,
			"template initialized for %d systems, simulation has %d", len(t.views), len(s.Systems))
	}
	rng := s.Rand()
	for i := 0; i < t.Frequency; i++ {
		if err := t.trial(s, rng); err != nil {
			return err
		}
	}
	return nil
}

// trial performs one Metropolis displacement of a random site.
func (t *Template) trial(s *sim.Simulation, rng *rand.Rand) error {
	site := s.Sites.RandomSite(rng)
	if site == nil {
		return nil
	}
	view := t.View(site.System)
	if view == nil {
		return record.Errorf(module, "Move", record.ErrShapeMismatch, "site %d in unknown system %d", site.ID, site.System)
	}
	entry := view.Entry(site.System, site.Type)
	if entry == nil {
		return record.Errorf(module, "Move", record.ErrShapeMismatch, "site %d has unknown type %d", site.ID, site.Type)
	}

	s.Store.Push(site)
	before := s.Sites.DeactivateSite(site)
	step := entry.StepSize
	site.Pos.X += step * (rng.Float64() - 0.5)
	site.Pos.Y += step * (rng.Float64() - 0.5)
	site.Pos.Z += step * (rng.Float64() - 0.5)
	after := s.Sites.ActivateSite(site)

	accepted := Metropolis(after-before, s.Temperature(site.System), rng.Float64())
	if accepted {
		s.Store.Drop()
	} else {
		s.Sites.DeactivateSite(site)
		s.Store.Pull()
		s.Sites.ActivateSite(site)
	}

	mark := entry.Checkpoint.Accepted
	if entry.Update(accepted, t.Params) {
		logrus.Debugf("[step %07d] system %d type %d: step size %g -> %g",
			s.Steps, site.System, site.Type, step, entry.StepSize)
		t.Trace.RecordRescale(trace.RescaleRecord{
			Step:     s.Steps,
			Entry:    trace.EntryKey{System: site.System, Type: site.Type},
			Before:   step,
			After:    entry.StepSize,
			Accepted: entry.Current.Accepted - mark,
			Batch:    t.Params.NCheck,
		})
	}
	return nil
}
