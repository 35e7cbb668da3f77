package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// WriteLossPlot renders the sampled training-loss history to an image file;
// the format follows the filename extension.
func WriteLossPlot(res *TrainResult, filename string) error {
	points := make(plotter.XYs, len(res.Losses))
	for i := range res.Losses {
		points[i].X = float64(res.Iterations[i])
		points[i].Y = res.Losses[i]
	}

	p := plot.New()
	p.Title.Text = "training loss"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "cross-entropy"

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Length(1)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)

	return p.Save(8*vg.Inch, 8*vg.Inch, filename)
}
