package filter

import (
	"math"

	"github.com/hb9tf/plutoiq/sdr"
)

type Filterer interface {
	ShouldIgnore(*sdr.Record) bool
}

// Apply returns the records which none of the filters ignores.
func Apply(records []sdr.Record, filters []Filterer) []sdr.Record {
	var out []sdr.Record
	for i := range records {
		if Ignored(&records[i], filters) {
			continue
		}
		out = append(out, records[i])
	}
	return out
}

func Ignored(r *sdr.Record, filters []Filterer) bool {
	for _, f := range filters {
		if f.ShouldIgnore(r) {
			return true
		}
	}
	return false
}

// FilterTime keeps records with Low <= Time <= High.
type FilterTime struct {
	Low  float64
	High float64
}

func (f *FilterTime) ShouldIgnore(r *sdr.Record) bool {
	return r.Time < f.Low || r.Time > f.High
}

// FilterFinite drops records with NaN or infinite components.
type FilterFinite struct{}

func (f *FilterFinite) ShouldIgnore(r *sdr.Record) bool {
	for _, v := range []float64{r.Time, r.Real, r.Imaginary} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
