package distribution

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Summary holds moments of one row, with bins weighted by their counts.
type Summary struct {
	BinWidth float64
	Total    float64
	Mean     float64
	StdDev   float64
}

// Centers returns the bin centers of row i.
func (d *Distribution) Centers(i int) []float64 {
	w := d.BinWidths[i]
	out := make([]float64, len(d.Counts[i]))
	for j := range out {
		out[j] = (float64(j) + 0.5) * w
	}
	return out
}

// Summarize returns the moments of row i. Rows without positive total
// weight report NaN moments.
func (d *Distribution) Summarize(i int) Summary {
	s := Summary{BinWidth: d.BinWidths[i], Total: d.Total(i), Mean: math.NaN(), StdDev: math.NaN()}
	if !(s.Total > 0) {
		return s
	}
	centers := d.Centers(i)
	s.Mean = stat.Mean(centers, d.Counts[i])
	if s.Total > 1 {
		s.StdDev = stat.StdDev(centers, d.Counts[i])
	}
	return s
}

// Export writes one table per bin width: bin center, count and normalized
// probability. Each table is preceded by a comment line with its moments.
func (d *Distribution) Export(w io.Writer, name string) error {
	out := bufio.NewWriter(w)
	for i := range d.BinWidths {
		s := d.Summarize(i)
		fmt.Fprintf(out, "# %s binsize %s nsamples %d total %s mean %s stddev %s\n",
			name, format(s.BinWidth), d.NSamples, format(s.Total), format(s.Mean), format(s.StdDev))
		fmt.Fprintln(out, "# center count probability")
		for j, c := range d.Centers(i) {
			count := d.Counts[i][j]
			p := 0.0
			if s.Total != 0 {
				p = count / s.Total
			}
			fmt.Fprintf(out, "%s %s %s\n", format(c), format(count), format(p))
		}
		fmt.Fprintln(out)
	}
	return out.Flush()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}
