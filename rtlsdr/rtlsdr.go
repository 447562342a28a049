package rtlsdr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hb9tf/plutoiq/sdr"
)

const (
	SourceName   = "rtlsdr"
	receiveAlias = "rtl_sdr"
)

// SDR streams unsigned 8 bit IQ samples from rtl_sdr.
type SDR struct {
	mu     sync.Mutex
	opened bool
	device string
	rate   float64
	stream *sdr.Stream
	buf    []byte
}

func (s *SDR) Name() string {
	return SourceName
}

// Open selects the dongle. The URI is either empty, a device index or "rtlsdr:<index>".
func (s *SDR) Open(ctx context.Context, uri string) error {
	if _, err := sdr.FindRuntime(receiveAlias); err != nil {
		return err
	}
	device := strings.TrimPrefix(uri, "rtlsdr:")
	if device == "" {
		device = "0"
	}
	if _, err := strconv.Atoi(device); err != nil {
		return fmt.Errorf("invalid device index %q: %w", device, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
	s.opened = true
	return nil
}

func (s *SDR) Configure(opts *sdr.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return sdr.ErrClosed
	}
	if opts.BufferSize < 1 {
		return fmt.Errorf("invalid buffer size %d", opts.BufferSize)
	}
	rate := opts.RequestedSampleRate()
	args := []string{
		"-d", s.device,
		"-f", strconv.FormatInt(opts.LOFrequency, 10),
		"-s", strconv.FormatFloat(rate, 'f', 0, 64),
		"-", // dumps samples to stdout
	}
	stream, err := sdr.StartStream(receiveAlias, args...)
	if err != nil {
		return err
	}
	s.stream = stream
	s.rate = rate
	s.buf = make([]byte, 2*opts.BufferSize)
	return nil
}

// SampleRate returns the rate the dongle was configured with.
func (s *SDR) SampleRate() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rate == 0 {
		return 0, sdr.ErrClosed
	}
	return s.rate, nil
}

func (s *SDR) Receive(ctx context.Context) (sdr.Block, error) {
	s.mu.Lock()
	stream, buf := s.stream, s.buf
	s.mu.Unlock()
	if stream == nil {
		return nil, sdr.ErrClosed
	}
	if err := stream.ReadFull(ctx, buf); err != nil {
		return nil, err
	}
	return sdr.DecodeUint8(buf)
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
	defer s.mu.Unlock()
	s.opened = false
	s.rate = 0
	return nil
}
