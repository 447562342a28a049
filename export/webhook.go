package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/sdr"
)

const (
	contentType = "application/json"

	// DefaultWebhookURL is the public collector.
	DefaultWebhookURL = "https://iq-data-plotter.duckdns.org/api/webhook"
	// DefaultWebhookTimeout bounds every POST.
	DefaultWebhookTimeout = 5 * time.Second
)

// Webhook POSTs every batch as a JSON array to a collector.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL: url,
		Client: &http.Client{
			Timeout: DefaultWebhookTimeout,
		},
	}
}

func (w *Webhook) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{Timeout: DefaultWebhookTimeout}
}

func (w *Webhook) Send(ctx context.Context, records []sdr.Record) error {
	if records == nil {
		records = []sdr.Record{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return &TransmissionError{Sink: w.URL, Err: fmt.Errorf("error marshalling records to JSON: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return &TransmissionError{Sink: w.URL, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client().Do(req)
	if err != nil {
		return &TransmissionError{Sink: w.URL, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		glog.V(2).Infof("error reading webhook response body: %s\n", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransmissionError{
			Sink:       w.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response %q", bytes.TrimSpace(respBody)),
		}
	}
	glog.V(2).Infof("submitted %d records to %s\n", len(records), w.URL)
	return nil
}
