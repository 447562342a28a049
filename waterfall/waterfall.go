// Package waterfall renders spectrogram columns as heatmap images.
package waterfall

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/stat"
)

var (
	// Colors defining the gradient in the heatmap. The higher the index, the warmer.
	colors = []color.RGBA{
		{0, 0, 0, 255},       // black
		{0, 0, 255, 255},     // blue
		{0, 255, 255, 255},   // cyan
		{0, 255, 0, 255},     // green
		{255, 255, 0, 255},   // yellow
		{255, 0, 0, 255},     // red
		{255, 255, 255, 255}, // white
	}

	gridColor           = color.RGBA{0, 0, 0, 255}       // black
	gridBackgroundColor = color.RGBA{255, 255, 255, 255} // white

	ErrNoData = errors.New("no spectrogram data")
)

const (
	// floorDB keeps log10 finite for empty bins.
	floorDB = 1e-12

	lowPercentile  = 0.05
	highPercentile = 0.95

	gridMarginTop  = 20  // pixels
	gridMarginLeft = 100 // pixels
	gridTickLen    = 10  // pixel
	gridMinStepX   = 100 // pixels
	gridMinStepY   = 20  // pixels
)

// GetColor determines the color of a pixel based on the color gradient and a level in [0, 1].
// http://www.andrewnoske.com/wiki/Code_-_heatmaps_and_color_gradients
func GetColor(lvl float64) color.RGBA {
	switch {
	case math.IsNaN(lvl) || lvl <= 0:
		return colors[0]
	case lvl >= 1:
		return colors[len(colors)-1]
	}
	pos := lvl * float64(len(colors)-1)
	idx := int(pos)
	fract := pos - float64(idx)
	prevC, nextC := colors[idx], colors[idx+1]
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*fract))
	}
	return color.RGBA{
		mix(prevC.R, nextC.R),
		mix(prevC.G, nextC.G),
		mix(prevC.B, nextC.B),
		255,
	}
}

// GetReadableFreq formats a frequency in Hz with an SI prefix, e.g. "2.44 GHz".
func GetReadableFreq(freq float64) string {
	return humanize.SIWithDigits(freq, 2, "Hz")
}

// ToDB converts linear magnitudes to decibels.
func ToDB(columns [][]float64) [][]float64 {
	out := make([][]float64, len(columns))
	for i, col := range columns {
		out[i] = make([]float64, len(col))
		for j, v := range col {
			out[i][j] = 20 * math.Log10(v+floorDB)
		}
	}
	return out
}

// Limits returns the 5th and 95th percentile of all values, used as the color range.
func Limits(columns [][]float64) (float64, float64) {
	var values []float64
	for _, col := range columns {
		values = append(values, col...)
	}
	if len(values) == 0 {
		return 0, 1
	}
	sort.Float64s(values)
	low := stat.Quantile(lowPercentile, stat.LinInterp, values, nil)
	high := stat.Quantile(highPercentile, stat.LinInterp, values, nil)
	if high <= low {
		high = low + 1
	}
	return low, high
}

// Transpose turns a [row][frame] matrix into [frame][row] columns.
func Transpose(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	cols := make([][]float64, len(rows[0]))
	for c := range cols {
		cols[c] = make([]float64, len(rows))
		for r := range rows {
			cols[c][r] = rows[r][c]
		}
	}
	return cols
}

// Axes describe what the image spans, used for grid labels.
type Axes struct {
	// LowFreq and HighFreq are the frequencies of the bottom and top row in Hz.
	LowFreq  float64
	HighFreq float64
	// Duration is the time covered by all columns.
	Duration time.Duration
}

type ImageOptions struct {
	// Scale is the size of a single cell in pixels. Zero means 1.
	Scale   int
	AddGrid bool
	Axes    Axes
}

// Render draws columns of linear magnitudes, oldest on the left and the first bin
// of every column on the bottom row.
func Render(columns [][]float64, opts *ImageOptions) (*image.RGBA, error) {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return nil, ErrNoData
	}
	if opts == nil {
		opts = &ImageOptions{}
	}
	scale := max(opts.Scale, 1)

	db := ToDB(columns)
	low, high := Limits(db)
	bins := len(columns[0])

	canvas := image.NewRGBA(image.Rect(0, 0, len(columns)*scale, bins*scale))
	for x, col := range db {
		for bin, v := range col {
			if bin >= bins {
				break
			}
			c := GetColor((v - low) / (high - low))
			y := (bins - 1 - bin) * scale
			draw.Draw(canvas, image.Rect(x*scale, y, (x+1)*scale, y+scale), &image.Uniform{c}, image.Point{}, draw.Src)
		}
	}

	if opts.AddGrid {
		canvas = DrawGrid(canvas, opts.Axes)
	}
	return canvas, nil
}

func drawTick(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}

func findGridStepSize(step int, horizontal bool) int {
	gridMinStep := gridMinStepY
	if horizontal {
		gridMinStep = gridMinStepX
	}
	for step > gridMinStep {
		n := step / 2
		if n < gridMinStep {
			return step
		}
		step = n
	}
	return max(step, 1)
}

func drawLabel(canvas *image.RGBA, x, y int, label string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(gridColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

// DrawGrid adds a margin with time ticks on top and frequency ticks on the left.
func DrawGrid(source *image.RGBA, axes Axes) *image.RGBA {
	b := source.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx()+gridMarginLeft, b.Dy()+gridMarginTop))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{gridBackgroundColor}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(gridMarginLeft, gridMarginTop, canvas.Bounds().Max.X, canvas.Bounds().Max.Y), source, b.Min, draw.Src)

	// Time ticks, the right edge is now.
	xStep := findGridStepSize(b.Dx(), true)
	for i := 0; i < b.Dx(); i += xStep {
		drawTick(canvas, image.Point{gridMarginLeft + i, gridMarginTop - gridTickLen}, gridTickLen, false)
		ago := time.Duration(float64(axes.Duration) * float64(b.Dx()-i) / float64(b.Dx()))
		drawLabel(canvas, gridMarginLeft+i+3, gridMarginTop-2, "-"+ago.Round(time.Millisecond).String())
	}

	// Frequency ticks, the top row is the highest frequency.
	yStep := findGridStepSize(b.Dy(), false)
	for i := 0; i < b.Dy(); i += yStep {
		drawTick(canvas, image.Point{gridMarginLeft - gridTickLen, gridMarginTop + i}, gridTickLen, true)
		freq := axes.HighFreq - (axes.HighFreq-axes.LowFreq)*float64(i)/float64(b.Dy())
		drawLabel(canvas, 3, gridMarginTop+i+5, GetReadableFreq(freq))
	}

	return canvas
}
