package calib

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrEmptyHistogram = errors.New("calib: histogram is empty")

// PlotHistogram draws the parent mass error histogram with the window
// bounds as vertical lines, and saves it to fn. The image format is
// derived from the file extension (e.g. .png, .svg, .pdf).
func PlotHistogram(h Histogram, w Window, fn string) error {
	keys := h.Keys()
	if len(keys) == 0 {
		return ErrEmptyHistogram
	}
	first := keys[0]
	last := keys[len(keys)-1]

	// One bar per ppm, including empty bins
	values := make(plotter.Values, last-first+1)
	for _, k := range keys {
		values[k-first] = float64(h[k])
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Parent mass error, window %s", w)
	p.X.Label.Text = "ppm"
	p.Y.Label.Text = "matches"

	bars, err := plotter.NewBarChart(values, vg.Points(2))
	if err != nil {
		return fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.XMin = float64(first)
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = color.RGBA{R: 60, G: 90, B: 160, A: 255}
	p.Add(bars)

	if w.Status != Unbounded {
		peak := float64(h.Peak())
		for _, x := range []int{w.Low, w.High} {
			bound, err := plotter.NewLine(plotter.XYs{
				{X: float64(x), Y: 0},
				{X: float64(x), Y: peak},
			})
			if err != nil {
				return fmt.Errorf("failed to create window line: %w", err)
			}
			bound.Width = vg.Points(1)
			bound.Color = color.RGBA{R: 200, A: 255}
			p.Add(bound)
		}
	}

	if err := p.Save(8*vg.Inch, 4*vg.Inch, fn); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", fn, err)
	}
	return nil
}
