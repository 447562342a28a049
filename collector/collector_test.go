package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hb9tf/plutoiq/export"
	"github.com/hb9tf/plutoiq/sdr"
)

func TestStore(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		batches []int
		want    int
	}{
		{name: "below limit", max: 10, batches: []int{3, 4}, want: 7},
		{name: "at limit", max: 10, batches: []int{5, 5}, want: 10},
		{name: "over limit", max: 10, batches: []int{8, 8}, want: 10},
		{name: "single oversized batch", max: 5, batches: []int{12}, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(tc.max)
			n := 0
			for _, size := range tc.batches {
				batch := make([]sdr.Record, size)
				for i := range batch {
					batch[i].Time = float64(n)
					n++
				}
				s.Add(batch)
			}
			got := s.Records()
			if len(got) != tc.want {
				t.Fatalf("Records() returned %d records, want %d", len(got), tc.want)
			}
			// The most recent records are kept in order.
			for i, r := range got {
				if want := float64(n - tc.want + i); r.Time != want {
					t.Errorf("record %d has time %f, want %f", i, r.Time, want)
				}
			}
		})
	}
}

func TestNewStoreDefault(t *testing.T) {
	if s := NewStore(0); s.max != DefaultMaxRecords {
		t.Errorf("NewStore(0) keeps %d records, want %d", s.max, DefaultMaxRecords)
	}
}

func TestWebhook(t *testing.T) {
	persist := make(chan []sdr.Record, 1)
	s := &Server{Store: NewStore(DefaultMaxRecords), Persist: persist}
	r := s.Router()

	body := `[{"time":-33,"real":0.5,"imaginary":-0.5},{"time":-32,"real":1,"imaginary":0}]`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, WebhookEndpoint, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"received"`) {
		t.Fatalf("POST %s = %d %s", WebhookEndpoint, w.Code, w.Body.String())
	}
	if got := <-persist; len(got) != 2 {
		t.Errorf("persisted %d records, want 2", len(got))
	}

	// The persistence channel is full now, the batch is still accepted.
	w = httptest.NewRecorder()
	persist <- nil
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, WebhookEndpoint, strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Errorf("POST %s with full persistence = %d", WebhookEndpoint, w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, DataEndpoint, nil))
	var got []sdr.Record
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unable to decode %s: %s", DataEndpoint, err)
	}
	if len(got) != 4 || got[0].Time != -33 || got[1].Real != 1 {
		t.Errorf("GET %s = %+v", DataEndpoint, got)
	}
}

func TestWebhookInvalidJSON(t *testing.T) {
	s := &Server{Store: NewStore(10)}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, WebhookEndpoint, strings.NewReader(`{"time": 1}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST %s with an object = %d, want %d", WebhookEndpoint, w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "Invalid JSON format") {
		t.Errorf("unexpected error body %s", w.Body.String())
	}
}

func TestWebhookPreflight(t *testing.T) {
	s := &Server{Store: NewStore(10)}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, WebhookEndpoint, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS %s = %d, want %d", WebhookEndpoint, w.Code, http.StatusNoContent)
	}
}

func TestEndToEndWithWebhookTransmitter(t *testing.T) {
	s := &Server{Store: NewStore(DefaultMaxRecords)}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	tx := export.NewWebhook(fmt.Sprintf("%s%s", srv.URL, WebhookEndpoint))
	records := []sdr.Record{{Time: -33, Real: 0.04, Imaginary: 0.08}}
	if err := tx.Send(context.Background(), records); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}
	if got := s.Store.Records(); len(got) != 1 || got[0] != records[0] {
		t.Errorf("store holds %+v, want %+v", got, records)
	}
}
