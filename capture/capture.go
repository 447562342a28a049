// Package capture runs the acquisition pipeline: it reads sample blocks from a device at a
// fixed cadence, feeds the live spectrogram and forwards the (optionally jammed) samples.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/hb9tf/plutoiq/export"
	"github.com/hb9tf/plutoiq/jammer"
	"github.com/hb9tf/plutoiq/sdr"
	"github.com/hb9tf/plutoiq/spectrogram"
)

// DefaultJoinTimeout bounds how long Stop waits for the capture goroutine.
const DefaultJoinTimeout = time.Second

var ErrInvalidSettings = errors.New("invalid capture settings")

type State int32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DeviceFunc returns a new, unopened device for the named backend.
type DeviceFunc func(backend string) (sdr.Device, error)

// DiscoverFunc resolves a device URI when none was configured.
type DiscoverFunc func(ctx context.Context) (string, error)

type Option func(*Loop)

// WithDiscovery enables URI discovery for sessions of backend started with an empty URI.
// Sessions of other backends open their device with the empty URI.
func WithDiscovery(backend string, f DiscoverFunc) Option {
	return func(l *Loop) {
		if l.discover == nil {
			l.discover = make(map[string]DiscoverFunc)
		}
		l.discover[strings.ToLower(backend)] = f
	}
}

func WithJoinTimeout(d time.Duration) Option {
	return func(l *Loop) {
		l.joinTimeout = d
	}
}

// Loop owns at most one capture session at a time.
type Loop struct {
	newDevice   DeviceFunc
	tx          export.Transmitter
	jammer      *jammer.Injector
	discover    map[string]DiscoverFunc
	joinTimeout time.Duration

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu      sync.Mutex
	state   State
	session *Session
	buffer  *spectrogram.Rolling
	lastErr error
}

func New(newDevice DeviceFunc, tx export.Transmitter, j *jammer.Injector, opts ...Option) *Loop {
	if j == nil {
		j = jammer.New(false, DefaultJammerAmplitude)
	}
	l := &Loop{
		newDevice:   newDevice,
		tx:          tx,
		jammer:      j,
		joinTimeout: DefaultJoinTimeout,
		buffer:      spectrogram.NewRolling(DefaultMaxColumns),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Session is a single run of the capture loop.
type Session struct {
	ID       string
	Settings Settings
	Device   string
	Started  time.Time

	device sdr.Device
	buffer *spectrogram.Rolling
	cancel context.CancelFunc
	done   chan struct{}

	teardownOnce sync.Once

	iterations atomic.Int64
	sent       atomic.Int64
	failed     atomic.Int64
}

// teardown releases the device. Errors are logged and otherwise ignored.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		if err := s.device.DestroyBuffer(); err != nil {
			glog.V(1).Infof("error destroying receive buffer: %s\n", err)
		}
		if err := s.device.Close(); err != nil {
			glog.V(1).Infof("error closing device: %s\n", err)
		}
	})
}

func closeQuietly(dev sdr.Device) {
	if err := dev.DestroyBuffer(); err != nil {
		glog.V(1).Infof("error destroying receive buffer: %s\n", err)
	}
	if err := dev.Close(); err != nil {
		glog.V(1).Infof("error closing device: %s\n", err)
	}
}

// Start stops any running session and starts a new one with the given settings.
// Device open and configure failures are returned as *sdr.DeviceInitError, in which
// case the loop stays idle.
func (l *Loop) Start(ctx context.Context, settings Settings) (*Session, error) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	l.stop()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	settings.Channels = append([]int(nil), settings.Channels...)

	if discover := l.discover[strings.ToLower(settings.Backend)]; settings.URI == "" && discover != nil {
		uri, err := discover(ctx)
		if err != nil {
			return nil, err
		}
		glog.Infof("discovered device at %s\n", uri)
		settings.URI = uri
	}

	dev, err := l.newDevice(settings.Backend)
	if err != nil {
		return nil, &sdr.DeviceInitError{Device: settings.Backend, URI: settings.URI, Op: "create", Err: err}
	}
	if err := dev.Open(ctx, settings.URI); err != nil {
		closeQuietly(dev)
		return nil, &sdr.DeviceInitError{Device: dev.Name(), URI: settings.URI, Op: "open", Err: err}
	}
	if err := dev.Configure(settings.deviceOptions()); err != nil {
		closeQuietly(dev)
		return nil, &sdr.DeviceInitError{Device: dev.Name(), URI: settings.URI, Op: "configure", Err: err}
	}
	rate, err := dev.SampleRate()
	switch {
	case err != nil:
		glog.Warningf("unable to read sample rate, using %.0f: %s\n", sdr.DefaultSampleRate, err)
		rate = sdr.DefaultSampleRate
	case rate <= 0:
		glog.Warningf("device reported sample rate %f, using %.0f\n", rate, sdr.DefaultSampleRate)
		rate = sdr.DefaultSampleRate
	}
	settings.SampleRate = rate

	l.jammer.Set(settings.JammerEnabled, settings.JammerAmplitude)

	// The session outlives the caller's context, it ends with Stop or a read failure.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &Session{
		ID:       uuid.NewString(),
		Settings: settings,
		Device:   dev.Name(),
		Started:  time.Now(),
		device:   dev,
		buffer:   spectrogram.NewRolling(settings.MaxColumns),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	l.mu.Lock()
	l.session = sess
	l.buffer = sess.buffer
	l.state = Running
	l.lastErr = nil
	l.mu.Unlock()

	glog.Infof("started session %s: %s at %s, LO %d Hz, %.0f S/s, %d samples every %s\n",
		sess.ID, sess.Device, settings.URI, settings.LOFrequency, rate, settings.BufferSize, settings.Interval)
	go l.run(runCtx, sess)
	return sess, nil
}

// Stop ends the running session, if any. It waits up to the join timeout for the
// capture goroutine and releases the device regardless. Calling Stop on an idle
// loop does nothing.
func (l *Loop) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	l.stop()
}

func (l *Loop) stop() {
	l.mu.Lock()
	sess := l.session
	if sess == nil || l.state == Idle {
		l.mu.Unlock()
		return
	}
	l.state = Stopping
	l.mu.Unlock()

	sess.cancel()
	select {
	case <-sess.done:
	case <-time.After(l.joinTimeout):
		glog.Warningf("session %s did not stop within %s, releasing device anyway\n", sess.ID, l.joinTimeout)
	}
	sess.teardown()

	l.mu.Lock()
	if l.session == sess {
		l.state = Idle
	}
	l.mu.Unlock()
	glog.Infof("stopped session %s after %d iterations\n", sess.ID, sess.iterations.Load())
}

func (l *Loop) run(ctx context.Context, sess *Session) {
	var readErr error
	defer func() {
		close(sess.done)
		if readErr != nil {
			l.finish(sess, readErr)
		}
	}()

	settings := sess.Settings
	step := settings.TimeStep()
	for {
		if ctx.Err() != nil {
			return
		}

		block, err := sess.device.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Stop released the device while we were blocked.
				return
			}
			readErr = &sdr.DeviceReadError{Device: sess.Device, Err: err}
			l.fail(sess, readErr)
			return
		}
		sess.iterations.Add(1)

		// The spectrogram always shows the received signal, noise is only added
		// to what gets forwarded.
		column, err := spectrogram.Column(block, settings.FFTSize)
		if err != nil {
			glog.Warningf("unable to compute spectrogram column: %s\n", err)
		} else {
			sess.buffer.Append(column)
		}

		records := Records(l.jammer.Apply(block), settings.TimeOrigin, step)
		if l.tx != nil {
			if err := l.tx.Send(ctx, records); err != nil {
				sess.failed.Add(1)
				glog.Warningf("error transmitting %d records: %s\n", len(records), err)
			} else {
				sess.sent.Add(1)
			}
		}

		if settings.Interval > 0 {
			timer := time.NewTimer(settings.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// fail moves a session to Stopping after a read error and releases its device.
func (l *Loop) fail(sess *Session, err error) {
	glog.Errorf("session %s: %s, stopping capture\n", sess.ID, err)

	l.mu.Lock()
	if l.session == sess && l.state == Running {
		l.state = Stopping
	}
	l.mu.Unlock()

	sess.cancel()
	sess.teardown()
}

// finish records the error which ended a session. It runs once the capture
// goroutine is done, only then the loop becomes Idle.
func (l *Loop) finish(sess *Session, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == sess {
		l.state = Idle
		l.lastErr = err
	}
}

// Records converts samples to wire records. Component values are divided by sdr.RecordScale.
func Records(samples []complex128, origin, step float64) []sdr.Record {
	records := make([]sdr.Record, len(samples))
	for i, s := range samples {
		records[i] = sdr.Record{
			Time:      origin + float64(i)*step,
			Real:      real(s) / sdr.RecordScale,
			Imaginary: imag(s) / sdr.RecordScale,
		}
	}
	return records
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error which ended the last session, if it did not end through Stop.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Snapshot returns the spectrogram columns of the current or last session, oldest first.
func (l *Loop) Snapshot() [][]float64 {
	l.mu.Lock()
	buffer := l.buffer
	l.mu.Unlock()
	return buffer.Snapshot()
}

// Session returns the current or last session, nil if none was ever started.
func (l *Loop) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Jammer returns the injector shared by all sessions.
func (l *Loop) Jammer() *jammer.Injector {
	return l.jammer
}

// Status is a point in time view of the loop.
type Status struct {
	State           string    `json:"state"`
	Session         string    `json:"session,omitempty"`
	Device          string    `json:"device,omitempty"`
	URI             string    `json:"uri,omitempty"`
	Started         time.Time `json:"started,omitempty"`
	LOFrequency     int64     `json:"loFrequency,omitempty"`
	SampleRate      float64   `json:"sampleRate,omitempty"`
	Iterations      int64     `json:"iterations"`
	Sent            int64     `json:"sent"`
	Failed          int64     `json:"failed"`
	Columns         int       `json:"columns"`
	JammerEnabled   bool      `json:"jammerEnabled"`
	JammerAmplitude float64   `json:"jammerAmplitude"`
	Error           string    `json:"error,omitempty"`
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	st := Status{
		State:           l.state.String(),
		Columns:         l.buffer.Len(),
		JammerEnabled:   l.jammer.Enabled(),
		JammerAmplitude: l.jammer.Amplitude(),
	}
	if l.lastErr != nil {
		st.Error = l.lastErr.Error()
	}
	sess := l.session
	l.mu.Unlock()

	if sess != nil {
		st.Session = sess.ID
		st.Device = sess.Device
		st.URI = sess.Settings.URI
		st.Started = sess.Started
		st.LOFrequency = sess.Settings.LOFrequency
		st.SampleRate = sess.Settings.SampleRate
		st.Iterations = sess.iterations.Load()
		st.Sent = sess.sent.Load()
		st.Failed = sess.failed.Load()
	}
	return st
}
