package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/mcsim/sim/checkpoint"
	"github.com/inference-sim/mcsim/sim/ensemble"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/stream"
)

var (
	mergeOut      string // Output checkpoint
	mergeFormat   string // Output encoding
	mergeSubtract bool   // Subtract the remaining inputs from the first
	mergeStore    string // SQLite store to read a run from
	mergeRun      string // Stored run whose replicas are merged
)

// mergeCmd adds checkpoint files, or every replica of a stored run
var mergeCmd = &cobra.Command{
	Use:   "merge [checkpoint...]",
	Short: "Add (or subtract) checkpoints into one",
	Run: func(cmd *cobra.Command, args []string) {
		enc, err := stream.ParseEncoding(mergeFormat)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if mergeOut == "" {
			logrus.Fatalf("--out is required")
		}

		var inputs []*checkpoint.Checkpoint
		switch {
		case mergeStore != "":
			if mergeRun == "" {
				logrus.Fatalf("--store needs --run")
			}
			inputs, err = loadStoredRun(cmd.Context(), mergeStore, mergeRun)
		default:
			inputs, err = loadFiles(args)
		}
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		merged, err := combineCheckpoints(inputs, mergeSubtract)
		if err != nil {
			logrus.Fatalf("merge failed: %v", err)
		}
		if err := merged.Save(mergeOut, enc); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Wrote %d merged checkpoints to %s", len(inputs), mergeOut)
	},
}

func loadFiles(paths []string) ([]*checkpoint.Checkpoint, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no checkpoints given")
	}
	out := make([]*checkpoint.Checkpoint, 0, len(paths))
	for _, p := range paths {
		c, _, err := checkpoint.Load(p, record.Default)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// loadStoredRun reads the latest checkpoint of every replica of runID.
func loadStoredRun(ctx context.Context, path, runID string) ([]*checkpoint.Checkpoint, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := checkpoint.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ids, err := store.Replicas(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, checkpoint.ErrNotFound)
	}
	out := make([]*checkpoint.Checkpoint, 0, len(ids))
	for _, id := range ids {
		e, err := store.Latest(ctx, runID, id)
		if err != nil {
			return nil, err
		}
		c, _, err := checkpoint.Decode(e.Payload, record.Default)
		if err != nil {
			return nil, fmt.Errorf("run %s replica %d: %w", runID, id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// combineCheckpoints returns the sum of inputs, or the first input minus all
// others when subtract is set. Inputs are left untouched.
func combineCheckpoints(inputs []*checkpoint.Checkpoint, subtract bool) (*checkpoint.Checkpoint, error) {
	if !subtract {
		return ensemble.Merge(inputs)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}
	out, err := inputs[0].Clone(record.Default)
	if err != nil {
		return nil, err
	}
	for _, c := range inputs[1:] {
		if err := checkpoint.Subtract(out, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func init() {
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "Output checkpoint file")
	mergeCmd.Flags().StringVar(&mergeFormat, "format", "text", "Output encoding (text or binary)")
	mergeCmd.Flags().BoolVar(&mergeSubtract, "subtract", false, "Subtract the other checkpoints from the first")
	mergeCmd.Flags().StringVar(&mergeStore, "store", "", "SQLite checkpoint store")
	mergeCmd.Flags().StringVar(&mergeRun, "run", "", "Run id in the store")

	rootCmd.AddCommand(mergeCmd)
}
