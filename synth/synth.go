// Package synth provides a software-only device producing a complex tone in Gaussian noise.
// It stands in for real hardware in demos and tests.
package synth

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/hb9tf/plutoiq/sdr"
)

const SourceName = "synth"

// ErrDisconnected is returned by Receive once FailAfter reads have been served.
var ErrDisconnected = errors.New("synthetic device disconnected")

type SDR struct {
	// ToneOffset is the tone frequency relative to the LO in Hz.
	ToneOffset float64
	// Amplitude of the tone in device units.
	Amplitude float64
	// Noise is the standard deviation of the added noise in device units.
	Noise float64
	// FailAfter makes Receive fail after this many successful reads. Zero disables it.
	FailAfter int

	mu      sync.Mutex
	opened  bool
	rng     *rand.Rand
	rate    float64
	bufSize int
	phase   float64
	reads   int
}

func (s *SDR) Name() string {
	return SourceName
}

// Open accepts "synth:<seed>" to make the noise reproducible. Any other URI is ignored.
func (s *SDR) Open(ctx context.Context, uri string) error {
	seed := int64(1)
	if v, ok := strings.CutPrefix(uri, "synth:"); ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = parsed
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
	s.opened = true
	s.reads = 0
	s.phase = 0
	return nil
}

func (s *SDR) Configure(opts *sdr.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return sdr.ErrClosed
	}
	if opts.BufferSize < 1 {
		return errors.New("buffer size must be positive")
	}
	s.rate = opts.RequestedSampleRate()
	s.bufSize = opts.BufferSize
	return nil
}

func (s *SDR) SampleRate() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rate == 0 {
		return 0, sdr.ErrClosed
	}
	return s.rate, nil
}

func (s *SDR) Receive(ctx context.Context) (sdr.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bufSize == 0 {
		return nil, sdr.ErrClosed
	}
	if s.FailAfter > 0 && s.reads >= s.FailAfter {
		return nil, ErrDisconnected
	}
	s.reads++

	step := 2 * math.Pi * s.ToneOffset / s.rate
	block := make(sdr.Block, s.bufSize)
	for i := range block {
		re := s.Amplitude*math.Cos(s.phase) + s.Noise*s.rng.NormFloat64()
		im := s.Amplitude*math.Sin(s.phase) + s.Noise*s.rng.NormFloat64()
		block[i] = complex(float32(re), float32(im))
		s.phase = math.Mod(s.phase+step, 2*math.Pi)
	}
	return block, nil
}

func (s *SDR) DestroyBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufSize = 0
	return nil
}

func (s *SDR) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufSize = 0
	s.rate = 0
	s.opened = false
	return nil
}
