// Package control exposes the capture loop over HTTP.
package control

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/capture"
	"github.com/hb9tf/plutoiq/router"
	"github.com/hb9tf/plutoiq/waterfall"
)

type Server struct {
	Loop      *capture.Loop
	Presenter *waterfall.Presenter
	// Defaults are the settings a start request is applied on top of.
	Defaults capture.Settings
}

// startRequest overrides individual settings, unset fields keep their default.
type startRequest struct {
	Backend          *string  `json:"backend"`
	URI              *string  `json:"uri"`
	LOFrequency      *int64   `json:"loFrequency"`
	BufferSize       *int     `json:"bufferSize"`
	Channels         []int    `json:"channels"`
	SampleRate       *float64 `json:"sampleRate"`
	Interval         *string  `json:"interval"`
	JammerEnabled    *bool    `json:"jammerEnabled"`
	JammerAmplitude  *float64 `json:"jammerAmplitude"`
	FFTSize          *int     `json:"fftSize"`
	MaxColumns       *int     `json:"maxColumns"`
	TrueSamplePeriod *bool    `json:"trueSamplePeriod"`
}

func (r *startRequest) apply(s *capture.Settings) error {
	if r.Backend != nil {
		s.Backend = *r.Backend
	}
	if r.URI != nil {
		s.URI = *r.URI
	}
	if r.LOFrequency != nil {
		s.LOFrequency = *r.LOFrequency
	}
	if r.BufferSize != nil {
		s.BufferSize = *r.BufferSize
	}
	if r.Channels != nil {
		s.Channels = r.Channels
	}
	if r.SampleRate != nil {
		s.SampleRate = *r.SampleRate
	}
	if r.Interval != nil {
		d, err := time.ParseDuration(*r.Interval)
		if err != nil {
			return err
		}
		s.Interval = d
	}
	if r.JammerEnabled != nil {
		s.JammerEnabled = *r.JammerEnabled
	}
	if r.JammerAmplitude != nil {
		s.JammerAmplitude = *r.JammerAmplitude
	}
	if r.FFTSize != nil {
		s.FFTSize = *r.FFTSize
	}
	if r.MaxColumns != nil {
		s.MaxColumns = *r.MaxColumns
	}
	if r.TrueSamplePeriod != nil {
		s.TrueSamplePeriod = *r.TrueSamplePeriod
	}
	return nil
}

type jammerRequest struct {
	Enabled   *bool    `json:"enabled"`
	Amplitude *float64 `json:"amplitude"`
}

// Router returns the routes of the control API.
func (s *Server) Router() *gin.Engine {
	r := router.New()
	r.Use(router.CORS())
	api := r.Group("/api")
	api.GET("/status", s.status)
	api.POST("/start", s.start)
	api.POST("/stop", s.stop)
	api.PUT("/jammer", s.jammer)
	api.GET("/spectrogram", s.spectrogram)
	api.GET("/spectrogram.png", s.spectrogramImage)
	return r
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.Loop.Status())
}

func (s *Server) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings := s.Defaults
	if err := req.apply(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.Loop.Start(c.Request.Context(), settings); err != nil {
		glog.Warningf("unable to start capture: %s\n", err)
		code := http.StatusInternalServerError
		if errors.Is(err, capture.ErrInvalidSettings) {
			code = http.StatusBadRequest
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Loop.Status())
}

func (s *Server) stop(c *gin.Context) {
	s.Loop.Stop()
	c.JSON(http.StatusOK, s.Loop.Status())
}

func (s *Server) jammer(c *gin.Context) {
	var req jammerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	j := s.Loop.Jammer()
	enabled, amplitude := j.Enabled(), j.Amplitude()
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if req.Amplitude != nil {
		amplitude = *req.Amplitude
	}
	j.Set(enabled, amplitude)
	glog.Infof("jammer enabled=%t amplitude=%g\n", enabled, amplitude)
	c.JSON(http.StatusOK, gin.H{"enabled": enabled, "amplitude": amplitude})
}

func (s *Server) spectrogram(c *gin.Context) {
	resp := gin.H{"columns": s.Loop.Snapshot()}
	if sess := s.Loop.Session(); sess != nil {
		resp["session"] = sess.ID
		resp["fftSize"] = sess.Settings.FFTSize
		resp["sampleRate"] = sess.Settings.SampleRate
		resp["loFrequency"] = sess.Settings.LOFrequency
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) spectrogramImage(c *gin.Context) {
	if s.Presenter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no presenter running"})
		return
	}
	img := s.Presenter.Latest()
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no frame rendered yet"})
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}
