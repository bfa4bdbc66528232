package distribution

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot renders the normalized rows of d as lines into file. The image
// format follows the file extension.
func (d *Distribution) Plot(file, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Distance"
	p.Y.Label.Text = "Probability density"

	for i, w := range d.BinWidths {
		total := d.Total(i)
		if total == 0 {
			continue
		}
		pts := make(plotter.XYs, 0, len(d.Counts[i]))
		for j, c := range d.Centers(i) {
			pts = append(pts, plotter.XY{X: c, Y: d.Counts[i][j] / (total * w)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("creating line for bin width %g: %w", w, err)
		}
		line.Width = vg.Points(1)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("bin %g", w), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("saving plot %s: %w", file, err)
	}
	return nil
}
