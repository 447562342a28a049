package waterfall

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultRefresh is how often the presenter redraws.
const DefaultRefresh = 200 * time.Millisecond

// Source provides the spectrogram to draw, oldest column first.
type Source interface {
	Snapshot() [][]float64
}

// Presenter periodically renders a Source to PNG. It keeps the latest frame in
// memory and optionally writes it to disk.
type Presenter struct {
	Source  Source
	Refresh time.Duration
	// Path receives every frame if set. The format follows the suffix (.png or .jpg).
	Path string
	// Options returns the options for the next frame. Nil renders without a grid.
	Options func() *ImageOptions

	mu     sync.Mutex
	latest []byte
	frames int
}

// Run redraws until ctx is done.
func (p *Presenter) Run(ctx context.Context) error {
	refresh := p.Refresh
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Draw(); err != nil && !errors.Is(err, ErrNoData) {
				glog.Warningf("unable to render waterfall: %s\n", err)
			}
		}
	}
}

// Draw renders a single frame from the current snapshot.
func (p *Presenter) Draw() error {
	columns := p.Source.Snapshot()
	var opts *ImageOptions
	if p.Options != nil {
		opts = p.Options()
	}
	img, err := Render(columns, opts)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return err
	}

	p.mu.Lock()
	p.latest = buf.Bytes()
	p.frames++
	p.mu.Unlock()

	if p.Path != "" {
		if err := WriteImage(p.Path, img); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recent frame as PNG, nil before the first frame.
func (p *Presenter) Latest() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *Presenter) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Encode writes img in the format matching path's suffix.
func Encode(w io.Writer, path string, img image.Image) error {
	switch {
	case strings.HasSuffix(path, ".png"):
		return png.Encode(w, img)
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		return fmt.Errorf("unsupported image format %q, use .png or .jpg", filepath.Ext(path))
	}
}

// WriteImage replaces the file at path so readers never see a partial image.
func WriteImage(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if err := Encode(tmp, path, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
