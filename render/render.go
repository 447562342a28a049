package main

/*
This application renders a spectrogram of IQ records stored by the collector
or the capture client in a sqlite DB.
*/

import (
	"context"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/export"
	"github.com/hb9tf/plutoiq/filter"
	"github.com/hb9tf/plutoiq/sdr"
	"github.com/hb9tf/plutoiq/spectrogram"
	"github.com/hb9tf/plutoiq/waterfall"
)

// Flags
var (
	sqliteFile    = flag.String("sqliteFile", "/tmp/plutoiq", "File path of the sqlite DB file to use.")
	identifier    = flag.String("id", "%", "Select records stored with this identifier (SQL LIKE pattern).")
	startTimeRaw  = flag.String("startTime", "2000-01-02T15:04:05", "Select records received after this time. Format: 2006-01-02T15:04:05")
	endTimeRaw    = flag.String("endTime", "2100-01-02T15:04:05", "Select records received before this time. Format: 2006-01-02T15:04:05")
	minSampleTime = flag.Float64("minSampleTime", math.Inf(-1), "Skip records with a sample time below this value.")
	maxSampleTime = flag.Float64("maxSampleTime", math.Inf(1), "Skip records with a sample time above this value.")
	nfft          = flag.Int("nfft", 256, "FFT size.")
	hop           = flag.Int("hop", 0, "Samples between frames, 0 means nfft/2.")
	lo            = flag.Float64("lo", 2.44e9, "LO frequency the records were captured at in Hz, used for labels.")
	sampleRate    = flag.Float64("sampleRate", sdr.DefaultSampleRate, "Sample rate the records were captured at in S/s, used for labels.")
	scale         = flag.Int("scale", 2, "Size of a spectrogram cell in pixels.")
	addGrid       = flag.Bool("grid", true, "Draw a grid with time and frequency labels.")
	imgPath       = flag.String("imgPath", "/tmp/out.png", "Path where the rendered image should be written to (.png or .jpg).")
)

const timeFmt = "2006-01-02T15:04:05"

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	startTime, err := time.Parse(timeFmt, *startTimeRaw)
	if err != nil {
		glog.Exitf("unable to parse startTime (value: %q, format: %q): %s", *startTimeRaw, timeFmt, err)
	}
	endTime, err := time.Parse(timeFmt, *endTimeRaw)
	if err != nil {
		glog.Exitf("unable to parse endTime (value: %q, format: %q): %s", *endTimeRaw, timeFmt, err)
	}

	ctx := context.Background()
	store, err := export.OpenSQLite(ctx, *sqliteFile, "")
	if err != nil {
		glog.Exit(err)
	}
	defer store.DB.Close()

	records, err := store.Records(ctx, &export.Query{
		Identifier: *identifier,
		Start:      startTime,
		End:        endTime,
	})
	if err != nil {
		glog.Exitf("unable to read records: %s", err)
	}
	records = filter.Apply(records, []filter.Filterer{
		&filter.FilterTime{Low: *minSampleTime, High: *maxSampleTime},
		&filter.FilterFinite{},
	})

	signal := make(sdr.Block, len(records))
	for i, r := range records {
		signal[i] = complex(float32(r.Real), float32(r.Imaginary))
	}
	rows, err := spectrogram.Full(signal, *nfft, *hop)
	if err != nil {
		glog.Exitf("unable to compute spectrogram of %d records: %s", len(records), err)
	}
	columns := waterfall.Transpose(rows)
	if len(columns) == 0 {
		glog.Exitf("%d records are not enough for a single frame of %d samples", len(records), *nfft)
	}

	duration := time.Duration(float64(len(signal)) / *sampleRate * float64(time.Second))
	fmt.Println("Selected records:")
	fmt.Printf("  - Records: %s\n", humanize.Comma(int64(len(records))))
	fmt.Printf("  - Frames: %d\n", len(columns))
	fmt.Printf("  - Band: %s - %s\n", waterfall.GetReadableFreq(*lo), waterfall.GetReadableFreq(*lo+*sampleRate/2))
	fmt.Printf("  - Duration: %s\n", duration)

	img, err := waterfall.Render(columns, &waterfall.ImageOptions{
		Scale:   *scale,
		AddGrid: *addGrid,
		Axes: waterfall.Axes{
			LowFreq:  *lo,
			HighFreq: *lo + *sampleRate/2,
			Duration: duration,
		},
	})
	if err != nil {
		glog.Exitf("unable to render image: %s", err)
	}

	fmt.Printf("Writing %dx%d image to %q\n", img.Bounds().Dx(), img.Bounds().Dy(), *imgPath)
	if err := waterfall.WriteImage(*imgPath, img); err != nil {
		glog.Exitf("unable to write image: %s", err)
	}
}
