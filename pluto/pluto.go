// Package pluto receives IQ samples from an ADALM-Pluto using the libiio command line tools.
package pluto

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/sdr"
)

const (
	SourceName = "pluto"

	// DefaultURI is used when discovery is disabled and no URI was given.
	DefaultURI = "usb:1.23.5"

	attrAlias    = "iio_attr"
	readdevAlias = "iio_readdev"

	phyDevice = "ad9361-phy"
	rxDevice  = "cf-ad9361-lpc"
)

// runFunc executes a tool to completion. Replaced in tests.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

type SDR struct {
	run runFunc

	mu       sync.Mutex
	uri      string
	stream   *sdr.Stream
	channels int
	buf      []byte
}

func New() *SDR {
	return &SDR{run: sdr.Run}
}

func (s *SDR) Name() string {
	return SourceName
}

func (s *SDR) runner() runFunc {
	if s.run == nil {
		return sdr.Run
	}
	return s.run
}

// Open verifies that the context behind uri is reachable.
func (s *SDR) Open(ctx context.Context, uri string) error {
	if uri == "" {
		uri = DefaultURI
	}
	if _, err := s.runner()(ctx, attrAlias, "-u", uri, "-C"); err != nil {
		return err
	}
	s.mu.Lock()
	s.uri = uri
	s.mu.Unlock()
	glog.Infof("opened %s at %s\n", SourceName, uri)
	return nil
}

// Configure tunes the RX LO and creates the receive buffer for the enabled channels.
func (s *SDR) Configure(opts *sdr.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uri == "" {
		return sdr.ErrClosed
	}
	if opts.BufferSize < 1 {
		return fmt.Errorf("invalid buffer size %d", opts.BufferSize)
	}
	channels := opts.Channels
	if len(channels) == 0 {
		channels = []int{0}
	}

	ctx := context.Background()
	if _, err := s.runner()(ctx, attrAlias, "-u", s.uri, "-c", phyDevice, "altvoltage0", "frequency", strconv.FormatInt(opts.LOFrequency, 10)); err != nil {
		return fmt.Errorf("unable to set LO frequency: %w", err)
	}

	// Each channel is an I/Q pair of voltage channels on the RX device.
	args := []string{"-u", s.uri, "-b", strconv.Itoa(opts.BufferSize), rxDevice}
	for _, c := range channels {
		args = append(args, fmt.Sprintf("voltage%d", 2*c), fmt.Sprintf("voltage%d", 2*c+1))
	}
	stream, err := sdr.StartStream(readdevAlias, args...)
	if err != nil {
		return fmt.Errorf("unable to create receive buffer: %w", err)
	}

	s.channels = len(channels)
	s.stream = stream
	s.buf = make([]byte, opts.BufferSize*4*len(channels))
	return nil
}

// SampleRate reads the RX sampling frequency from the device.
func (s *SDR) SampleRate() (float64, error) {
	s.mu.Lock()
	uri := s.uri
	s.mu.Unlock()
	if uri == "" {
		return 0, sdr.ErrClosed
	}

	out, err := s.runner()(context.Background(), attrAlias, "-u", uri, "-i", "-c", phyDevice, "voltage0", "sampling_frequency")
	if err != nil {
		return 0, err
	}
	rate, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse sample rate %q: %w", out, err)
	}
	return rate, nil
}

// Receive blocks until a full buffer of samples is available.
func (s *SDR) Receive(ctx context.Context) (sdr.Block, error) {
	s.mu.Lock()
	stream, buf, channels := s.stream, s.buf, s.channels
	s.mu.Unlock()
	if stream == nil {
		return nil, sdr.ErrClosed
	}

	if err := stream.ReadFull(ctx, buf); err != nil {
		return nil, err
	}
	return sdr.DecodeInt16(buf, channels)
}

func (s *SDR) DestroyBuffer() error {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	return stream.Stop()
}

func (s *SDR) Close() error {
	s.DestroyBuffer()
	s.mu.Lock()
	s.uri = ""
	s.mu.Unlock()
	return nil
}
