package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/mcsim/sim/checkpoint"
	"github.com/inference-sim/mcsim/sim/moves"
	"github.com/inference-sim/mcsim/sim/record"
	"github.com/inference-sim/mcsim/sim/samples"
)

var (
	inPath    string // Checkpoint to read
	exportOut string // Table output file, stdout when empty
	plotDir   string // Directory receiving one PNG per distribution
)

// exportCmd writes the distributions of a checkpoint as tables and plots
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the pair-distance distributions of a checkpoint",
	Run: func(cmd *cobra.Command, args []string) {
		c := mustLoad(inPath)
		w := io.Writer(os.Stdout)
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer f.Close()
			w = f
		}
		if err := exportTables(w, c); err != nil {
			logrus.Fatalf("export failed: %v", err)
		}
		if plotDir != "" {
			files, err := exportPlots(plotDir, c)
			if err != nil {
				logrus.Fatalf("plot failed: %v", err)
			}
			logrus.Infof("Wrote %d plots to %s", len(files), plotDir)
		}
	},
}

// inspectCmd summarizes the sections of a checkpoint
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the sections, sizes, counters and step sizes of a checkpoint",
	Run: func(cmd *cobra.Command, args []string) {
		if err := inspect(os.Stdout, mustLoad(inPath)); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func mustLoad(path string) *checkpoint.Checkpoint {
	if path == "" {
		logrus.Fatalf("--in is required")
	}
	c, enc, err := checkpoint.Load(path, record.Default)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	logrus.Debugf("Read %s checkpoint %s", enc, path)
	return c
}

func distributionName(t *samples.Template, system int) string {
	return fmt.Sprintf("sample%d_system%d", t.ID, system)
}

// exportTables writes every distribution of every sample template in c.
func exportTables(w io.Writer, c *checkpoint.Checkpoint) error {
	for _, r := range c.Find(samples.Header) {
		t := r.(*samples.Template)
		for sys := range t.Distributions {
			if err := t.Distributions[sys].Export(w, distributionName(t, sys)); err != nil {
				return err
			}
		}
	}
	return nil
}

// exportPlots renders one PNG per distribution into dir and returns the
// written paths.
func exportPlots(dir string, c *checkpoint.Checkpoint) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var files []string
	for _, r := range c.Find(samples.Header) {
		t := r.(*samples.Template)
		for sys := range t.Distributions {
			name := distributionName(t, sys)
			file := filepath.Join(dir, name+".png")
			if err := t.Distributions[sys].Plot(file, name); err != nil {
				return files, err
			}
			files = append(files, file)
		}
	}
	return files, nil
}

// inspect prints one block per section of c.
func inspect(w io.Writer, c *checkpoint.Checkpoint) error {
	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "%d sections, %d bytes in memory\n", len(c.Records), c.Size())
	for i, r := range c.Records {
		fmt.Fprintf(out, "[%d] %s (%d bytes)\n", i, r.Header(), r.Size())
		switch rec := r.(type) {
		case *moves.Template:
			fmt.Fprintf(out, "  frequency %d, %s trials accepted\n", rec.Frequency, rec.Totals())
			ntypes := max(rec.NTypes, 1)
			for j, e := range rec.Entries {
				fmt.Fprintf(out, "  system %d type %d: step %.6g, %s accepted (%.3f)\n",
					j/ntypes, j%ntypes, e.StepSize, e.Current, e.Current.Ratio())
			}
		case *samples.Template:
			fmt.Fprintf(out, "  id %d, active %t, frequency %d, cutoff %g, binsize %v, focus %v\n",
				rec.ID, rec.Active, rec.Frequency, rec.Cutoff, rec.BinWidths, rec.Focus.Types)
			for sys, d := range rec.Distributions {
				fmt.Fprintf(out, "  system %d: %d samples\n", sys, d.NSamples)
			}
		}
	}
	return out.Flush()
}

func init() {
	exportCmd.Flags().StringVar(&inPath, "in", "", "Checkpoint file")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write tables to this file instead of stdout")
	exportCmd.Flags().StringVar(&plotDir, "plot", "", "Write one PNG plot per distribution into this directory")
	inspectCmd.Flags().StringVar(&inPath, "in", "", "Checkpoint file")

	rootCmd.AddCommand(exportCmd, inspectCmd)
}
