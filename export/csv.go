package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/hb9tf/plutoiq/sdr"
)

// CSV writes records as comma separated lines, e.g. to stdout.
type CSV struct {
	W io.Writer

	mu     sync.Mutex
	w      *csv.Writer
	header bool
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (c *CSV) Send(ctx context.Context, records []sdr.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		c.w = csv.NewWriter(c.W)
	}
	if !c.header {
		if err := c.w.Write([]string{"Time", "Real", "Imaginary"}); err != nil {
			return &TransmissionError{Sink: "csv", Err: err}
		}
		c.header = true
	}

	for _, r := range records {
		if err := c.w.Write([]string{
			formatFloat(r.Time),
			formatFloat(r.Real),
			formatFloat(r.Imaginary),
		}); err != nil {
			return &TransmissionError{Sink: "csv", Err: err}
		}
	}

	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return &TransmissionError{Sink: "csv", Err: err}
	}
	return nil
}
