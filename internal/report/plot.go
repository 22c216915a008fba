// Package report renders optional diagnostic outputs for generated units:
// PNG plots of the sound-speed profile and seafloor, and an HTML chart of
// the reflection tables.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("nothing to plot")

// Plot dimensions.
const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	meanColor  = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	pointColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0x60}
	floorColor = color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff}
)

// ProfilePlot draws the averaged sound-speed profile over the per-point
// profiles with depth increasing downward. pointSpeed may be nil.
func ProfilePlot(title string, depth, speed []float64, pointSpeed *mat.Dense) (*plot.Plot, error) {
	if len(depth) == 0 || len(depth) != len(speed) {
		return nil, fmt.Errorf("%w: %d depths, %d speeds", ErrNoData, len(depth), len(speed))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sound speed (m/s)"
	p.Y.Label.Text = "Depth (m)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	if pointSpeed != nil {
		rows, cols := pointSpeed.Dims()
		if rows != len(depth) {
			return nil, fmt.Errorf("point profile has %d rows for %d depths", rows, len(depth))
		}
		for j := 0; j < cols; j++ {
			line, err := plotter.NewLine(profileXYs(depth, mat.Col(nil, j, pointSpeed)))
			if err != nil {
				return nil, fmt.Errorf("failed to build point profile %d: %w", j, err)
			}
			line.Color = pointColor
			line.Width = vg.Points(0.5)
			p.Add(line)
		}
	}

	mean, err := plotter.NewLine(profileXYs(depth, speed))
	if err != nil {
		return nil, fmt.Errorf("failed to build mean profile: %w", err)
	}
	mean.Color = meanColor
	mean.Width = vg.Points(2)
	p.Add(mean)
	p.Legend.Add("transect mean", mean)
	p.Legend.Top = true

	return p, nil
}

// BathymetryPlot draws seafloor depth against range with depth increasing
// downward.
func BathymetryPlot(title string, rangeKm, depth []float64) (*plot.Plot, error) {
	if len(rangeKm) == 0 || len(rangeKm) != len(depth) {
		return nil, fmt.Errorf("%w: %d ranges, %d depths", ErrNoData, len(rangeKm), len(depth))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Range (km)"
	p.Y.Label.Text = "Depth (m)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(rangeKm))
	for i := range rangeKm {
		pts[i] = plotter.XY{X: rangeKm[i], Y: depth[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build seafloor line: %w", err)
	}
	line.Color = floorColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	return p, nil
}

// WritePNG renders p as a PNG into w.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

func profileXYs(depth, speed []float64) plotter.XYs {
	pts := make(plotter.XYs, len(depth))
	for i := range depth {
		pts[i] = plotter.XY{X: speed[i], Y: depth[i]}
	}
	return pts
}
