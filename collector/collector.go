// Package collector receives IQ record batches over HTTP and keeps the most recent ones.
package collector

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/router"
	"github.com/hb9tf/plutoiq/sdr"
)

const (
	// DefaultMaxRecords is how many records the store keeps.
	DefaultMaxRecords = 1000

	WebhookEndpoint = "/webhook"
	DataEndpoint    = "/api/iq-data"
)

// Store keeps the most recent records in arrival order.
type Store struct {
	max int

	mu      sync.Mutex
	records []sdr.Record
}

func NewStore(max int) *Store {
	if max < 1 {
		max = DefaultMaxRecords
	}
	return &Store{max: max}
}

func (s *Store) Add(records []sdr.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	if len(s.records) > s.max {
		// Copy so the dropped records can be collected.
		kept := make([]sdr.Record, s.max)
		copy(kept, s.records[len(s.records)-s.max:])
		s.records = kept
	}
}

// Records returns a copy of the stored records.
func (s *Store) Records() []sdr.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sdr.Record, len(s.records))
	copy(out, s.records)
	return out
}

type Server struct {
	Store *Store
	// Persist receives every accepted batch if set. A full channel drops the batch.
	Persist chan<- []sdr.Record
}

func (s *Server) Router() *gin.Engine {
	r := router.New()
	r.Use(router.CORS())
	r.POST(WebhookEndpoint, s.webhook)
	r.GET(DataEndpoint, s.data)
	return r
}

func (s *Server) webhook(c *gin.Context) {
	var records []sdr.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		glog.Warningf("error parsing JSON from %s: %s\n", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}
	glog.V(1).Infof("received %d IQ records from %s\n", len(records), c.ClientIP())

	s.Store.Add(records)
	if s.Persist != nil {
		select {
		case s.Persist <- records:
		default:
			glog.Warningf("persistence is falling behind, dropping %d records\n", len(records))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (s *Server) data(c *gin.Context) {
	c.JSON(http.StatusOK, s.Store.Records())
}
