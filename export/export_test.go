package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hb9tf/plutoiq/sdr"
)

var testRecords = []sdr.Record{
	{Time: -33, Real: 0.04, Imaginary: -0.08},
	{Time: -32, Real: 1.5, Imaginary: 2},
}

func TestWebhookSend(t *testing.T) {
	var got []sdr.Record
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("unable to decode body: %s", err)
		}
		w.Write([]byte(`{"status":"received"}`))
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL)
	if err := w.Send(context.Background(), testRecords); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if len(got) != len(testRecords) {
		t.Fatalf("collector received %d records, want %d", len(got), len(testRecords))
	}
	for i := range got {
		if got[i] != testRecords[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], testRecords[i])
		}
	}
}

func TestWebhookPayloadShape(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		body = buf.Bytes()
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL).Send(context.Background(), testRecords[:1]); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}
	want := `[{"time":-33,"real":0.04,"imaginary":-0.08}]`
	if string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Send(context.Background(), testRecords)
	var txErr *TransmissionError
	if !errors.As(err, &txErr) {
		t.Fatalf("Send() error = %v, want a TransmissionError", err)
	}
	if txErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", txErr.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestWebhookTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	w := &Webhook{URL: srv.URL, Client: &http.Client{Timeout: 50 * time.Millisecond}}
	err := w.Send(context.Background(), testRecords)
	var txErr *TransmissionError
	if !errors.As(err, &txErr) {
		t.Fatalf("Send() error = %v, want a TransmissionError", err)
	}
}

func TestWebhookUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var txErr *TransmissionError
	if err := NewWebhook(url).Send(context.Background(), testRecords); !errors.As(err, &txErr) {
		t.Fatalf("Send() error = %v, want a TransmissionError", err)
	}
}

func TestCSV(t *testing.T) {
	buf := new(bytes.Buffer)
	c := &CSV{W: buf}
	if err := c.Send(context.Background(), testRecords[:1]); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}
	if err := c.Send(context.Background(), testRecords[1:]); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}
	want := "Time,Real,Imaginary\n-33,0.04,-0.08\n-32,1.5,2\n"
	if got := buf.String(); got != want {
		t.Errorf("CSV output = %q, want %q", got, want)
	}
}

func TestSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "iq.db"))
	if err != nil {
		t.Fatalf("unable to open sqlite DB: %s", err)
	}
	defer db.Close()

	ctx := context.Background()
	s := &SQL{DB: db, Dialect: DialectSQLite, Identifier: "pluto-1"}
	if err := s.Send(ctx, testRecords); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}
	other := &SQL{DB: db, Dialect: DialectSQLite, Identifier: "other"}
	if err := other.Send(ctx, testRecords[:1]); err != nil {
		t.Fatalf("Send() unexpected error: %s", err)
	}

	q := &Query{
		Identifier: "pluto%",
		Start:      time.Now().Add(-time.Hour),
		End:        time.Now().Add(time.Hour),
	}
	got, err := s.Records(ctx, q)
	if err != nil {
		t.Fatalf("Records() unexpected error: %s", err)
	}
	if len(got) != len(testRecords) {
		t.Fatalf("Records() returned %d records, want %d", len(got), len(testRecords))
	}
	for i := range got {
		if got[i] != testRecords[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], testRecords[i])
		}
	}

	q.Identifier = "%"
	if got, _ := s.Records(ctx, q); len(got) != 3 {
		t.Errorf("Records() for all sources returned %d records, want 3", len(got))
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "iq.db")
	s, err := OpenSQLite(ctx, path, "pluto-1")
	if err != nil {
		t.Fatalf("OpenSQLite() unexpected error: %s", err)
	}
	defer s.DB.Close()
	// The table exists before the first batch arrives.
	if got, err := s.Records(ctx, &Query{Identifier: "%", End: time.Now()}); err != nil || len(got) != 0 {
		t.Errorf("Records() on a fresh DB = %v, %v", got, err)
	}
}

func TestOpenMySQLMissingPassword(t *testing.T) {
	c := &MySQLConfig{
		Server:       "127.0.0.1:3306",
		PasswordFile: filepath.Join(t.TempDir(), "missing"),
		DBName:       "plutoiq",
	}
	if _, err := OpenMySQL(context.Background(), c, "pluto-1"); err == nil {
		t.Error("OpenMySQL() with a missing password file returned no error")
	}
}

func TestSQLUnknownDialect(t *testing.T) {
	s := &SQL{Dialect: "oracle"}
	var txErr *TransmissionError
	if err := s.Send(context.Background(), testRecords); !errors.As(err, &txErr) {
		t.Fatalf("Send() error = %v, want a TransmissionError", err)
	}
}

type recordingTransmitter struct {
	mu      sync.Mutex
	batches int
	fail    func(batch int) bool
}

func (r *recordingTransmitter) Send(ctx context.Context, records []sdr.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	if r.fail != nil && r.fail(r.batches) {
		return errors.New("failed")
	}
	return nil
}

func TestDrain(t *testing.T) {
	tx := &recordingTransmitter{fail: func(batch int) bool { return batch%2 == 0 }}
	batches := make(chan []sdr.Record, 10)
	for i := 0; i < 10; i++ {
		batches <- testRecords
	}
	close(batches)

	if err := Drain(context.Background(), tx, batches); err != nil {
		t.Fatalf("Drain() unexpected error: %s", err)
	}
	if tx.batches != 10 {
		t.Errorf("transmitter saw %d batches, want 10", tx.batches)
	}
}

func TestDrainCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Drain(ctx, &recordingTransmitter{}, make(chan []sdr.Record))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Drain() error = %v, want %v", err, context.Canceled)
	}
}

func TestTransmissionErrorMessage(t *testing.T) {
	err := &TransmissionError{Sink: "http://x", StatusCode: 500, Err: errors.New("boom")}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Error() = %q, want it to mention the status", err.Error())
	}
}
