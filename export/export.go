package export

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/sdr"
)

const batchCountInfo = 1000

// Transmitter hands a batch of records to a sink.
// A failed Send drops the batch, there are no retries.
type Transmitter interface {
	Send(ctx context.Context, records []sdr.Record) error
}

// TransmissionError reports that a batch could not be delivered.
type TransmissionError struct {
	Sink string
	// StatusCode is the HTTP status returned by the sink, if any.
	StatusCode int
	Err        error
}

func (e *TransmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("error sending to %s (status %d): %s", e.Sink, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("error sending to %s: %s", e.Sink, e.Err)
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}

// Drain sends every batch received on batches until the channel is closed or ctx is done.
// Failed batches are logged and dropped.
func Drain(ctx context.Context, t Transmitter, batches <-chan []sdr.Record) error {
	counts := map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
	for {
		select {
		case <-ctx.Done():
			glog.Infof("Batch export counts: %+v\n", counts)
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				glog.Infof("Batch export counts: %+v\n", counts)
				return nil
			}
			counts["total"] += 1
			if err := t.Send(ctx, batch); err != nil {
				counts["error"] += 1
				glog.Warningf("error exporting batch: %s\n", err)
				continue
			}
			counts["success"] += 1
			if counts["total"]%batchCountInfo == 0 {
				glog.Infof("Batch export counts: %+v\n", counts)
			}
		}
	}
}
