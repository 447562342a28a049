package main

/*
This application captures IQ samples from an SDR, shows a live spectrogram and
forwards the (optionally jammed) samples to a collector or a local store.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/hb9tf/plutoiq/capture"
	"github.com/hb9tf/plutoiq/control"
	"github.com/hb9tf/plutoiq/export"
	"github.com/hb9tf/plutoiq/hackrf"
	"github.com/hb9tf/plutoiq/jammer"
	"github.com/hb9tf/plutoiq/pluto"
	"github.com/hb9tf/plutoiq/rtlsdr"
	"github.com/hb9tf/plutoiq/sdr"
	"github.com/hb9tf/plutoiq/synth"
	"github.com/hb9tf/plutoiq/waterfall"
)

// Flags
var (
	configFile = flag.String("config", "", "YAML file with capture settings. Flags set on the command line take precedence.")
	identifier = flag.String("id", "", "Unique identifier of this capture instance, a random one is assigned if empty.")

	// Capture
	sdrType          = flag.String("sdr", capture.DefaultBackend, "SDR to use (one of: pluto, rtlsdr, hackrf, synth)")
	uri              = flag.String("uri", "", "Device URI. Empty discovers a Pluto or picks the first device of other SDR types.")
	loFreq           = flag.Int64("lo", capture.DefaultLOFrequency, "LO frequency in Hz.")
	bufSize          = flag.Int("bufSize", capture.DefaultBufferSize, "Samples to read per block.")
	channels         = flag.String("channels", "0", "Comma separated list of RX channels to enable.")
	sampleRate       = flag.Float64("sampleRate", 0, "Sample rate to request in S/s, 0 keeps the device default.")
	interval         = flag.Duration("interval", capture.DefaultInterval, "Pause between two blocks.")
	jammerEnabled    = flag.Bool("jammer", false, "Add Gaussian noise to the transmitted samples.")
	jammerAmp        = flag.Float64("jammerAmp", capture.DefaultJammerAmplitude, "Standard deviation of the jammer noise.")
	fftSize          = flag.Int("nfft", capture.DefaultFFTSize, "FFT size of a spectrogram column.")
	maxColumns       = flag.Int("maxColumns", capture.DefaultMaxColumns, "Spectrogram columns to keep.")
	trueSamplePeriod = flag.Bool("trueSamplePeriod", false, "Space record times by the sample period instead of 2e6/sample rate.")
	autostart        = flag.Bool("autostart", true, "Start capturing right away instead of waiting for POST /api/start.")

	// Export
	output      = flag.String("output", "webhook", "Export mechanism to use (one of: webhook, csv, sqlite, mysql)")
	webhookURL  = flag.String("webhook", export.DefaultWebhookURL, "URL of the collector webhook.")
	sqliteFile  = flag.String("sqliteFile", "/tmp/plutoiq", "File path of the sqlite DB file to use.")
	mysqlServer = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser   = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPwd    = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName = flag.String("mysqlDBName", "plutoiq", "Name of the DB to use.")

	// Presentation
	listen  = flag.String("listen", ":8080", "Address to serve the control API on. Empty disables it.")
	imgPath = flag.String("imgPath", "", "Write every rendered waterfall frame to this path (.png or .jpg).")
	refresh = flag.Duration("refresh", waterfall.DefaultRefresh, "Waterfall redraw interval.")
	scale   = flag.Int("scale", 2, "Size of a spectrogram cell in pixels.")
	addGrid = flag.Bool("grid", true, "Draw a grid with time and frequency labels.")
)

func parseChannels(raw string) ([]int, error) {
	var chans []int
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		n, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q: %w", c, err)
		}
		chans = append(chans, n)
	}
	return chans, nil
}

// settings returns the defaults, overlaid by the config file and then by every flag set explicitly.
func settings() (capture.Settings, error) {
	s := capture.DefaultSettings()
	if *configFile != "" {
		var err error
		if s, err = capture.LoadSettings(*configFile, s); err != nil {
			return s, err
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sdr":
			s.Backend = strings.ToLower(*sdrType)
		case "uri":
			s.URI = *uri
		case "lo":
			s.LOFrequency = *loFreq
		case "bufSize":
			s.BufferSize = *bufSize
		case "channels":
			s.Channels, err = parseChannels(*channels)
		case "sampleRate":
			s.SampleRate = *sampleRate
		case "interval":
			s.Interval = *interval
		case "jammer":
			s.JammerEnabled = *jammerEnabled
		case "jammerAmp":
			s.JammerAmplitude = *jammerAmp
		case "nfft":
			s.FFTSize = *fftSize
		case "maxColumns":
			s.MaxColumns = *maxColumns
		case "trueSamplePeriod":
			s.TrueSamplePeriod = *trueSamplePeriod
		}
	})
	return s, err
}

func newDevice(backend string) (sdr.Device, error) {
	switch strings.ToLower(backend) {
	case pluto.SourceName:
		return pluto.New(), nil
	case rtlsdr.SourceName:
		return &rtlsdr.SDR{}, nil
	case hackrf.SourceName:
		return &hackrf.SDR{}, nil
	case synth.SourceName:
		return &synth.SDR{ToneOffset: 250e3, Amplitude: 500, Noise: 50}, nil
	default:
		return nil, fmt.Errorf("%q is not a supported SDR type, pick one of: pluto, rtlsdr, hackrf, synth", backend)
	}
}

func newExporter(ctx context.Context, id string) (export.Transmitter, error) {
	switch strings.ToLower(*output) {
	case "webhook":
		return export.NewWebhook(*webhookURL), nil
	case "csv":
		return &export.CSV{W: os.Stdout}, nil
	case "sqlite":
		return export.OpenSQLite(ctx, *sqliteFile, id)
	case "mysql":
		return export.OpenMySQL(ctx, &export.MySQLConfig{
			Server:       *mysqlServer,
			User:         *mysqlUser,
			PasswordFile: *mysqlPwd,
			DBName:       *mysqlDBName,
		}, id)
	default:
		return nil, fmt.Errorf("%q is not a supported export method, pick one of: webhook, csv, sqlite, mysql", *output)
	}
}

// imageOptions labels the waterfall with the band and time span of the running session.
func imageOptions(loop *capture.Loop) func() *waterfall.ImageOptions {
	return func() *waterfall.ImageOptions {
		opts := &waterfall.ImageOptions{Scale: *scale, AddGrid: *addGrid}
		sess := loop.Session()
		if sess == nil {
			opts.AddGrid = false
			return opts
		}
		rate := sess.Settings.SampleRate
		if rate <= 0 {
			rate = sdr.DefaultSampleRate
		}
		lo := float64(sess.Settings.LOFrequency)
		opts.Axes = waterfall.Axes{
			LowFreq:  lo - rate/2,
			HighFreq: lo + rate/2,
			Duration: time.Duration(sess.Settings.MaxColumns) * sess.Settings.Interval,
		}
		return opts
	}
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	id := *identifier
	if id == "" {
		id = uuid.New().String()
		glog.Infof("no identifier set, using %s\n", id)
	}

	s, err := settings()
	if err != nil {
		glog.Exitf("unable to load settings: %s", err)
	}
	if err := s.Validate(); err != nil {
		glog.Exitf("invalid settings: %s", err)
	}

	exporter, err := newExporter(ctx, id)
	if err != nil {
		glog.Exit(err)
	}

	loop := capture.New(newDevice, exporter, jammer.New(s.JammerEnabled, s.JammerAmplitude),
		capture.WithDiscovery(pluto.SourceName, pluto.Discover))
	defer loop.Stop()

	presenter := &waterfall.Presenter{
		Source:  loop,
		Refresh: *refresh,
		Path:    *imgPath,
		Options: imageOptions(loop),
	}
	go presenter.Run(ctx)

	if *autostart {
		sess, err := loop.Start(ctx, s)
		if err != nil {
			glog.Exitf("unable to start capture: %s", err)
		}
		fmt.Printf("Capturing from %s at %s (session %s)\n", sess.Device, waterfall.GetReadableFreq(float64(sess.Settings.LOFrequency)), sess.ID)
	}

	if *listen == "" {
		<-ctx.Done()
		return
	}
	srv := &control.Server{
		Loop:      loop,
		Presenter: presenter,
		Defaults:  s,
	}
	errc := make(chan error, 1)
	go func() {
		glog.Infof("serving control API on %s\n", *listen)
		errc <- srv.Router().Run(*listen)
	}()
	select {
	case <-ctx.Done():
		glog.Infoln("shutting down")
	case err := <-errc:
		glog.Errorf("control API stopped: %s\n", err)
	}
}
