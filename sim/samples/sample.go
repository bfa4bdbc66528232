package samples

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/inference-sim/mcsim/sim"
	"github.com/inference-sim/mcsim/sim/record"
)

// Due advances the schedule by one tick and reports whether this tick
// samples. With Frequency 3 and Skip 0 the sampled ticks are 1, 4, 7, …
func (t *Template) Due() bool {
	if !t.Active || t.Frequency <= 0 {
		return false
	}
	if t.Skip > 0 {
		t.Skip--
		return false
	}
	t.Skip = t.Frequency - 1
	return true
}

// Sample runs one scheduler tick.
func (t *Template) Sample(s *sim.Simulation) error {
	if !t.Due() {
		return nil
	}
	if len(t.Distributions) != len(s.Systems) {
		return record.Errorf(module, "Sample", record.ErrShapeMismatch,
			"%d distributions for %d systems", len(t.Distributions), len(s.Systems))
	}
	if s.Clusters == nil {
		return record.Errorf(module, "Sample", record.ErrShapeMismatch, "simulation has no cluster provider")
	}
	for i := range s.Systems {
		t.pass(s.Clusters, i)
	}
	return nil
}

// pass submits every in-focus intra-cluster pair distance of system i.
func (t *Template) pass(clusters sim.ClusterProvider, system int) {
	d := &t.Distributions[system]
	d.Sampled()
	for _, c := range clusters.Clusters(system) {
		if !t.Focus.Contains(c.Representative()) {
			continue
		}
		pos := clusters.Unwrap(c)
		n := min(len(pos), len(c.Sites))
		for a := 0; a < n-1; a++ {
			if !t.Focus.Contains(c.Sites[a]) {
				continue
			}
			for b := a + 1; b < n; b++ {
				if !t.Focus.Contains(c.Sites[b]) {
					continue
				}
				d.Submit(r3.Norm(r3.Sub(pos[a], pos[b])), 1)
			}
		}
	}
}
