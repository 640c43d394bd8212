// Package report renders the training history as an SVG with per-epoch loss
// and accuracy curves for the train and test splits.
package report

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"

	"digitnet/internal/train"
)

const (
	plotWidth  = 5 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// WriteCurves writes one SVG containing a loss plot and an accuracy plot side
// by side, each with a train and a test series over epochs.
func WriteCurves(path string, history []train.EpochStats) error {
	lossPlot, err := newCurvePlot("Loss", history,
		func(s train.EpochStats) (float64, float64) { return s.Train.Loss, s.Test.Loss })
	if err != nil {
		return err
	}

	accPlot, err := newCurvePlot("Accuracy", history,
		func(s train.EpochStats) (float64, float64) { return s.Train.Accuracy, s.Test.Accuracy })
	if err != nil {
		return err
	}
	accPlot.Y.Min = 0
	accPlot.Y.Max = 1

	canvas := vgsvg.New(2*plotWidth, plotHeight)
	dc := draw.New(canvas)
	lossPlot.Draw(draw.Crop(dc, 0, -plotWidth, 0, 0))
	accPlot.Draw(draw.Crop(dc, plotWidth, 0, 0, 0))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create curves file: %w", err)
	}
	defer f.Close()

	if _, err := canvas.WriteTo(f); err != nil {
		return fmt.Errorf("write curves file: %w", err)
	}
	return nil
}

func newCurvePlot(title string, history []train.EpochStats,
	value func(train.EpochStats) (trainVal, testVal float64)) (*plot.Plot, error) {

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"

	trainXYs := make(plotter.XYs, len(history))
	testXYs := make(plotter.XYs, len(history))
	for i, s := range history {
		trainVal, testVal := value(s)
		trainXYs[i].X = float64(s.Epoch)
		trainXYs[i].Y = trainVal
		testXYs[i].X = float64(s.Epoch)
		testXYs[i].Y = testVal
	}

	trainLine, err := plotter.NewLine(trainXYs)
	if err != nil {
		return nil, fmt.Errorf("train %s line: %w", title, err)
	}
	trainLine.Color = plotutil.Color(0)

	testLine, err := plotter.NewLine(testXYs)
	if err != nil {
		return nil, fmt.Errorf("test %s line: %w", title, err)
	}
	testLine.Color = plotutil.Color(1)

	p.Add(trainLine, testLine)
	p.Legend.Add("train", trainLine)
	p.Legend.Add("test", testLine)
	p.Legend.Top = true

	return p, nil
}
