package hackrf

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hb9tf/plutoiq/sdr"
)

const (
	SourceName   = "hackrf"
	receiveAlias = "hackrf_transfer"
)

// SDR streams signed 8 bit IQ samples from hackrf_transfer.
type SDR struct {
	mu     sync.Mutex
	opened bool
	serial string
	rate   float64
	stream *sdr.Stream
	buf    []byte
}

func (s *SDR) Name() string {
	return SourceName
}

// Open selects the board. The URI is either empty (first board) or "hackrf:<serial>".
func (s *SDR) Open(ctx context.Context, uri string) error {
	if _, err := sdr.FindRuntime(receiveAlias); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial = strings.TrimPrefix(uri, "hackrf:")
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
		"-r", "-", // dumps samples to stdout
		"-f", strconv.FormatInt(opts.LOFrequency, 10),
		"-s", strconv.FormatFloat(rate, 'f', 0, 64),
	}
	if s.serial != "" {
		args = append(args, "-d", s.serial)
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

// SampleRate returns the rate the board was configured with.
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
	return sdr.DecodeInt8(buf)
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
