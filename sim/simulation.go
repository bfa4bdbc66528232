package sim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Mover advances the configuration once per scheduler step.
type Mover interface {
	Init(s *Simulation) error
	Move(s *Simulation) error
}

// Sampler observes the configuration once per scheduler step.
type Sampler interface {
	Init(s *Simulation) error
	Sample(s *Simulation) error
}

// Simulation holds the systems, site types and collaborators of one replica,
// and schedules its movers and samplers.
//
// A Simulation is single-threaded. Independent replicas each own one.
type Simulation struct {
	Systems  []System
	Types    []SiteType
	Sites    SiteProvider
	Clusters ClusterProvider
	RNG      *PartitionedRNG
	Store    Store

	Movers   []Mover
	Samplers []Sampler

	// Steps counts completed scheduler steps.
	Steps int64
}

// NewSimulation creates a Simulation seeded from key.
func NewSimulation(key SimulationKey, systems []System, types []SiteType, sites SiteProvider, clusters ClusterProvider) *Simulation {
	return &Simulation{
		Systems:  systems,
		Types:    types,
		Sites:    sites,
		Clusters: clusters,
		RNG:      NewPartitionedRNG(key),
	}
}

// NumTypes returns the number of site types.
func (s *Simulation) NumTypes() int { return len(s.Types) }

// Rand returns the generator used by the move engine.
func (s *Simulation) Rand() *rand.Rand {
	return s.RNG.ForSubsystem(SubsystemMoves)
}

// MinDiameter returns the smallest positive type diameter, or 0 when no type
// has one.
func (s *Simulation) MinDiameter() float64 {
	lo := 0.0
	for _, t := range s.Types {
		if t.Diameter > 0 && (lo == 0 || t.Diameter < lo) {
			lo = t.Diameter
		}
	}
	return lo
}

// MaxDiameter returns the largest type diameter.
func (s *Simulation) MaxDiameter() float64 {
	hi := 0.0
	for _, t := range s.Types {
		if t.Diameter > hi {
			hi = t.Diameter
		}
	}
	return hi
}

// Temperature returns the temperature of system i.
func (s *Simulation) Temperature(system int) float64 {
	if system < 0 || system >= len(s.Systems) {
		return 0
	}
	return s.Systems[system].Temperature
}

// Init prepares every mover and sampler. It is called once per run, before
// the first Step.
func (s *Simulation) Init() error {
	if s.RNG == nil {
		s.RNG = NewPartitionedRNG(NewSimulationKey(0))
	}
	for _, m := range s.Movers {
		if err := m.Init(s); err != nil {
			return fmt.Errorf("init mover %T: %w", m, err)
		}
	}
	for _, smp := range s.Samplers {
		if err := smp.Init(s); err != nil {
			return fmt.Errorf("init sampler %T: %w", smp, err)
		}
	}
	return nil
}

// Step runs every mover, then every sampler, once.
func (s *Simulation) Step() error {
	for _, m := range s.Movers {
		if err := m.Move(s); err != nil {
			return fmt.Errorf("step %d: %w", s.Steps+1, err)
		}
	}
	for _, smp := range s.Samplers {
		if err := smp.Sample(s); err != nil {
			return fmt.Errorf("step %d: %w", s.Steps+1, err)
		}
	}
	s.Steps++
	return nil
}

// Run executes n steps, stopping early when ctx is cancelled.
func (s *Simulation) Run(ctx context.Context, n int64) error {
	for i := int64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	logrus.Debugf("[step %07d] run of %d steps ended", s.Steps, n)
	return nil
}
