package sdr

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a device is used after Close or before Open.
var ErrClosed = errors.New("device is not open")

// DeviceInitError reports a failure to open or configure a device.
// A session is never started when this error is returned.
type DeviceInitError struct {
	Device string
	URI    string
	Op     string
	Err    error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("unable to %s %s device %q: %s", e.Op, e.Device, e.URI, e.Err)
}

func (e *DeviceInitError) Unwrap() error {
	return e.Err
}

// DeviceReadError reports a failure while receiving samples from a running device.
type DeviceReadError struct {
	Device string
	Err    error
}

func (e *DeviceReadError) Error() string {
	return fmt.Sprintf("error reading from %s device: %s", e.Device, e.Err)
}

func (e *DeviceReadError) Unwrap() error {
	return e.Err
}
