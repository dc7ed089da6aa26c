package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteChart saves a bar chart of pass rate (percent) by model. The image
// format follows the file extension.
func WriteChart(path string, rates []ModelRate) error {
	if len(rates) == 0 {
		return fmt.Errorf("no runs to chart")
	}
	values := make(plotter.Values, len(rates))
	names := make([]string, len(rates))
	for i, r := range rates {
		values[i] = r.PassRate * 100
		names[i] = fmt.Sprintf("%s (n=%d)", r.Model, r.Trials)
	}

	p := plot.New()
	p.Title.Text = "Pass rate by model"
	p.Y.Label.Text = "Pass rate (%)"
	p.Y.Min = 0
	p.Y.Max = 100

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("building chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	p.Add(bars)
	p.NominalX(names...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating chart dir: %w", err)
	}
	width := vg.Length(len(rates))*1.5*vg.Inch + 2*vg.Inch
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving chart: %w", err)
	}
	return nil
}
