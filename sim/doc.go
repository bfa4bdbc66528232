// Package sim provides the core of an adaptive Monte Carlo engine for
// particle models.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - site.go: systems, sites, clusters and the collaborator interfaces
//   - simulation.go: the scheduler that drives movers and samplers
//   - store.go: scratch snapshots used to undo rejected trials
//
// # Architecture
//
// The sim package defines the shared types and interfaces; modules live in
// sub-packages:
//   - sim/stream/: text and binary serialization
//   - sim/record/: the lifecycle contract every module implements
//   - sim/accept/: accept/reject counters and step-size adaptation
//   - sim/moves/: Metropolis displacement moves
//   - sim/distribution/, sim/samples/: pair-distance histograms
//   - sim/checkpoint/: checkpoint files and the SQLite checkpoint store
//   - sim/ensemble/: configuration and parallel replicas
//   - sim/box/: a periodic hard-sphere reference provider
//   - sim/trace/: step-size rescale trace
//   - sim/metrics/: Prometheus textfile export
//
// # Key Interfaces
//
//   - SiteProvider: site selection and energy bookkeeping around a trial
//   - ClusterProvider: connectivity and periodic unwrapping
//   - Mover, Sampler: the per-step hooks of the scheduler
package sim
