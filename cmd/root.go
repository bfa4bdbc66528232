package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/mcsim/sim/checkpoint"
	"github.com/inference-sim/mcsim/sim/ensemble"
	"github.com/inference-sim/mcsim/sim/metrics"
	"github.com/inference-sim/mcsim/sim/moves"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

var (
	// CLI flags for the run command
	configPath  string // YAML run configuration
	seed        int64  // Master seed, overrides the config when set
	steps       int64  // Steps per replica, overrides the config when set
	replicas    int    // Replica count, overrides the config when set
	logLevel    string // Log verbosity level
	outPath     string // Merged checkpoint file
	format      string // Checkpoint encoding (text or binary)
	storePath   string // SQLite checkpoint store
	resumeRun   string // Stored run to resume from
	metricsFile string // Prometheus textfile
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "mcsim",
	Short: "Adaptive Monte Carlo engine for particle models",
}

// runOptions carries the output side of a run.
type runOptions struct {
	Out         string
	Encoding    stream.Encoding
	StorePath   string
	ResumeRun   string
	MetricsFile string
}

// runCmd executes an ensemble run from a YAML configuration
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the replicas of a configuration and merge their statistics",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if configPath == "" {
			logrus.Fatalf("--config is required")
		}
		cfg, err := ensemble.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if cmd.Flags().Changed("steps") {
			cfg.Steps = steps
		}
		if cmd.Flags().Changed("replicas") {
			cfg.Replicas = replicas
		}
		if !cmd.Flags().Changed("log") && cfg.LogLevel != "" {
			if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
				logrus.SetLevel(level)
			}
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("invalid run config: %v", err)
		}

		enc, err := stream.ParseEncoding(format)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting %d replicas of %d steps, seed=%d", cfg.Replicas, cfg.Steps, cfg.Seed)
		startTime := time.Now()
		res, err := runEnsemble(cmd.Context(), cfg, runOptions{
			Out:         outPath,
			Encoding:    enc,
			StorePath:   storePath,
			ResumeRun:   resumeRun,
			MetricsFile: metricsFile,
		})
		if err != nil {
			logrus.Fatalf("run failed: %v", err)
		}
		logrus.Infof("Run %s complete in %v", res.RunID, time.Since(startTime))
	},
}

// runEnsemble runs cfg, optionally resuming from and saving to a store, and
// writes the merged checkpoint and the metrics textfile.
func runEnsemble(ctx context.Context, cfg *ensemble.Config, o runOptions) (*ensemble.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := ensemble.Options{Encoding: o.Encoding}
	if o.StorePath != "" {
		store, err := checkpoint.Open(o.StorePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		opts.Store = store
	}
	if o.ResumeRun != "" {
		if opts.Store == nil {
			return nil, fmt.Errorf("--resume-run needs --store")
		}
		resume, err := loadRun(ctx, opts.Store, o.ResumeRun, cfg.Replicas)
		if err != nil {
			return nil, err
		}
		opts.Resume = resume
		logrus.Infof("Resuming %d replicas from run %s", len(resume), o.ResumeRun)
	}

	res, err := ensemble.Run(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Merged.Find(moves.Header) {
		totals := r.(*moves.Template).Totals()
		logrus.Infof("Merged %d replicas: %s trials accepted (%.3f)", len(res.Replicas), totals, totals.Ratio())
	}

	if o.Out != "" {
		if err := res.Merged.Save(o.Out, o.Encoding); err != nil {
			return nil, err
		}
		logrus.Infof("Wrote %s checkpoint to %s", o.Encoding, o.Out)
	}
	if o.MetricsFile != "" {
		m := metrics.New()
		m.ObserveCheckpoint(res.Merged)
		for _, r := range res.Replicas {
			m.ObserveTrace(r.Trace)
		}
		m.Steps.Set(float64(cfg.Steps))
		m.Replicas.Set(float64(len(res.Replicas)))
		if err := m.WriteTextfile(o.MetricsFile); err != nil {
			return nil, fmt.Errorf("writing metrics: %w", err)
		}
	}
	return res, nil
}

// loadRun decodes the latest stored checkpoint of every replica of runID.
func loadRun(ctx context.Context, store *checkpoint.Store, runID string, n int) ([]*checkpoint.Checkpoint, error) {
	out := make([]*checkpoint.Checkpoint, 0, n)
	for i := 0; i < n; i++ {
		e, err := store.Latest(ctx, runID, i)
		if err != nil {
			return nil, fmt.Errorf("run %s replica %d: %w", runID, i, err)
		}
		c, _, err := checkpoint.Decode(e.Payload, record.Default)
		if err != nil {
			return nil, fmt.Errorf("run %s replica %d: %w", runID, i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Master seed (overrides the config)")
	runCmd.Flags().Int64Var(&steps, "steps", 0, "Steps per replica (overrides the config)")
	runCmd.Flags().IntVar(&replicas, "replicas", 0, "Number of replicas (overrides the config)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Outputs
	runCmd.Flags().StringVar(&outPath, "out", "", "Write the merged checkpoint to this file")
	runCmd.Flags().StringVar(&format, "format", "text", "Checkpoint encoding (text or binary)")
	runCmd.Flags().StringVar(&storePath, "store", "", "SQLite store receiving every replica checkpoint")
	runCmd.Flags().StringVar(&resumeRun, "resume-run", "", "Resume from the latest stored checkpoints of this run")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
