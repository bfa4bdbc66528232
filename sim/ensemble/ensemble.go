// Package ensemble builds and runs independent replicas of one configuration
// in parallel and merges their statistics.
package ensemble

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/mcsim/sim"
	"github.com/inference-sim/mcsim/sim/box"
	"github.com/inference-sim/mcsim/sim/checkpoint"
	"github.com/inference-sim/mcsim/sim/moves"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/samples"
	"github.com/inference-sim/mcsim/sim/stream"
	"github.com/inference-sim/mcsim/sim/trace"
)

// Replica is one fully wired simulation. It is owned by a single goroutine
// while it runs.
type Replica struct {
	ID      int
	Seed    int64
	Sim     *sim.Simulation
	Box     *box.Box
	Moves   *moves.Template
	Samples []*samples.Template
	Trace   *trace.SimulationTrace

	settings []samples.Settings
}

// Build wires a replica from cfg: the box with a random initial
// configuration, the move template and one sample template per settings
// entry. The simulation is initialized and ready to run.
func Build(cfg *Config, id int, seed int64) (*Replica, error) {
	types := cfg.siteTypes()
	systems := cfg.systems()
	b, err := box.New(cfg.Length, types, len(systems), cfg.Molecules)
	if err != nil {
		return nil, err
	}
	s := sim.NewSimulation(sim.NewSimulationKey(seed), systems, types, b, b)
	if err := b.Place(s.RNG.ForSubsystem(sim.SubsystemPlacement)); err != nil {
		return nil, fmt.Errorf("replica %d: %w", id, err)
	}

	r := &Replica{ID: id, Seed: seed, Sim: s, Box: b, settings: cfg.Samples}
	r.Trace = trace.NewSimulationTrace(trace.TraceConfig{
		Level:      trace.TraceLevel(cfg.Trace.Level),
		MaxRecords: cfg.Trace.MaxRecords,
	})
	r.Moves = moves.New()
	if cfg.Moves.Frequency != nil {
		r.Moves.Frequency = *cfg.Moves.Frequency
	}
	r.Moves.StepSize = cfg.Moves.StepSize
	r.Moves.Params = cfg.Moves.params()
	r.Moves.Trace = r.Trace
	s.Movers = []sim.Mover{r.Moves}

	for _, st := range cfg.Samples {
		t := st.Template()
		r.Samples = append(r.Samples, t)
		s.Samplers = append(s.Samplers, t)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("replica %d: %w", id, err)
	}
	return r, nil
}

// Checkpoint returns the replica's records: the move template followed by
// every sample template.
func (r *Replica) Checkpoint() *checkpoint.Checkpoint {
	records := []record.Record{r.Moves}
	for _, t := range r.Samples {
		records = append(records, t)
	}
	return checkpoint.New(records...)
}

// Restore continues from c: step sizes and counters are taken over, and
// histograms are kept wherever the configured sample settings still match.
func (r *Replica) Restore(c *checkpoint.Checkpoint) error {
	mvs := c.Find(moves.Header)
	smps := c.Find(samples.Header)
	if len(mvs) != 1 || len(smps) != len(r.Samples) {
		return record.Errorf("ensemble", "Restore", record.ErrShapeMismatch,
			"checkpoint holds %d move and %d sample templates, replica has 1 and %d",
			len(mvs), len(smps), len(r.Samples))
	}

	tr, freq, params, step := r.Moves.Trace, r.Moves.Frequency, r.Moves.Params, r.Moves.StepSize
	if err := r.Moves.Copy(mvs[0]); err != nil {
		return err
	}
	r.Moves.Trace, r.Moves.Frequency, r.Moves.Params, r.Moves.StepSize = tr, freq, params, step

	for i, t := range r.Samples {
		if err := t.Copy(smps[i]); err != nil {
			return err
		}
		r.settings[i].Apply(t)
	}
	return r.Sim.Init()
}

// Equilibrate runs n steps and then discards the sampled histograms and the
// acceptance counters gathered during them. Step sizes keep their adapted
// values.
func (r *Replica) Equilibrate(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	if err := r.Sim.Run(ctx, n); err != nil {
		return err
	}
	for _, t := range r.Samples {
		t.Factory()
	}
	for i := range r.Moves.Entries {
		r.Moves.Entries[i].Factory()
	}
	return nil
}

// Options control where Run reads from and writes to.
type Options struct {
	// RunID names the run in logs and in the store; empty generates one.
	RunID string
	// Resume holds one checkpoint per replica to continue from.
	Resume []*checkpoint.Checkpoint
	// Store, when set, receives every replica's final checkpoint.
	Store    *checkpoint.Store
	Encoding stream.Encoding
}

// Result is a finished ensemble run.
type Result struct {
	RunID       string
	Replicas    []*Replica
	Checkpoints []*checkpoint.Checkpoint
	// Merged is the sum of every replica's checkpoint.
	Merged *checkpoint.Checkpoint
}

// Seeds derives one seed per replica from the master seed.
func Seeds(master int64, n int) []int64 {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(master))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Derive(sim.SubsystemReplica(i))
	}
	return seeds
}

// Run builds cfg.Replicas replicas and runs them concurrently. The first
// failing replica cancels the others.
func Run(ctx context.Context, cfg *Config, opts Options) (*Result, error) {
	if opts.Resume != nil && len(opts.Resume) != cfg.Replicas {
		return nil, fmt.Errorf("resume holds %d checkpoints for %d replicas", len(opts.Resume), cfg.Replicas)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	res := &Result{RunID: runID}
	for i, seed := range Seeds(cfg.Seed, cfg.Replicas) {
		r, err := Build(cfg, i, seed)
		if err != nil {
			return nil, err
		}
		if opts.Resume != nil {
			if err := r.Restore(opts.Resume[i]); err != nil {
				return nil, fmt.Errorf("replica %d: %w", i, err)
			}
		}
		res.Replicas = append(res.Replicas, r)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for _, r := range res.Replicas {
		g.Go(func() error {
			return runReplica(gctx, runID, r, cfg)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range res.Replicas {
		res.Checkpoints = append(res.Checkpoints, r.Checkpoint())
	}
	merged, err := Merge(res.Checkpoints)
	if err != nil {
		return nil, err
	}
	res.Merged = merged

	if opts.Store != nil {
		for i, c := range res.Checkpoints {
			payload, err := c.Encode(opts.Encoding)
			if err != nil {
				return nil, err
			}
			if _, err := opts.Store.Save(ctx, runID, i, res.Replicas[i].Sim.Steps, payload); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func runReplica(ctx context.Context, runID string, r *Replica, cfg *Config) error {
	log := logrus.WithFields(logrus.Fields{"run": runID, "replica": r.ID})
	log.Debugf("seed %d, %d sites", r.Seed, len(r.Box.Sites()))

	if err := r.Equilibrate(ctx, cfg.Equilibration); err != nil {
		return fmt.Errorf("replica %d equilibration: %w", r.ID, err)
	}
	if err := r.Sim.Run(ctx, cfg.Steps); err != nil {
		return fmt.Errorf("replica %d: %w", r.ID, err)
	}

	totals := r.Moves.Totals()
	log.Infof("%d steps, %s trials accepted (%.3f)", r.Sim.Steps, totals, totals.Ratio())
	if r.Trace.Enabled() {
		sum := trace.Summarize(r.Trace)
		log.Infof("%d rescales, mean multiplier %.4f", sum.TotalRescales, sum.MeanMultiplier)
	}
	return nil
}

// Merge adds checkpoints into a fresh copy of the first.
func Merge(cs []*checkpoint.Checkpoint) (*checkpoint.Checkpoint, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}
	merged, err := cs[0].Clone(record.Default)
	if err != nil {
		return nil, err
	}
	for i, c := range cs[1:] {
		if err := checkpoint.Merge(merged, c); err != nil {
			return nil, fmt.Errorf("merge replica %d: %w", i+1, err)
		}
	}
	return merged, nil
}
