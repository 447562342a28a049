package sdr

import (
	"context"
)

const (
	// DefaultSampleRate is used whenever a device cannot report its sample rate.
	DefaultSampleRate = 2e6

	// RecordScale divides every sample component before it is put on the wire.
	RecordScale = 25.0
)

// Block is one batch of complex baseband samples as returned by a single device read.
// Real is the in-phase (I) and imaginary the quadrature (Q) component.
// A Block must not be modified once it has been handed out.
type Block []complex64

// Record is the wire representation of a single sample.
type Record struct {
	Time      float64 `json:"time"`
	Real      float64 `json:"real"`
	Imaginary float64 `json:"imaginary"`
}

type Options struct {
	// LOFrequency is the receive local oscillator frequency in Hz.
	LOFrequency int64

	// BufferSize is the number of samples returned per receive call.
	BufferSize int

	// Channels lists the enabled receive channel indices. Only the first one ends up in a Block.
	Channels []int

	// SampleRate is the rate to request from devices which take one. Zero means DefaultSampleRate.
	SampleRate float64
}

// RequestedSampleRate returns the sample rate to ask a device for.
func (o *Options) RequestedSampleRate() float64 {
	if o == nil || o.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return o.SampleRate
}

// Device is a source of complex baseband samples.
//
// DestroyBuffer and Close must be safe to call more than once and on a device
// which was only partially initialized.
type Device interface {
	Name() string
	Open(ctx context.Context, uri string) error
	Configure(opts *Options) error
	SampleRate() (float64, error)
	Receive(ctx context.Context) (Block, error)
	DestroyBuffer() error
	Close() error
}
