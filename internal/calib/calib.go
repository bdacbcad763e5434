// Package calib derives the window of acceptable parent mass errors (ppm)
// from the distribution of errors of the best scoring matches.
//
// The errors of the top ranked, non-decoy matches are collected in a
// histogram with 1 ppm bins. When the most populated bin holds enough
// matches, the window runs from the lowest to the highest bin that holds
// at least 1% of the peak count. Otherwise, the full observed range is used.
package calib

import (
	"fmt"
	"math"
	"sort"

	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/scoring"
)

const (
	// Minimum count in the most populated bin for calibration
	MinPeakCount = 200
	// Fraction of the peak count a bin must have to be inside the window
	BinThresholdFraction = 0.01
)

// Status tells how a Window was obtained
type Status int

const (
	// No matches were available, every error is accepted
	Unbounded Status = iota
	// Too few matches to calibrate, the full observed range is used
	Uncalibrated
	// Window derived from the error distribution
	Calibrated
)

func (s Status) String() string {
	switch s {
	case Unbounded:
		return `unbounded`
	case Uncalibrated:
		return `uncalibrated`
	case Calibrated:
		return `calibrated`
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Window is the range of accepted parent mass errors in ppm.
// Bounds are inclusive.
type Window struct {
	Low       int
	High      int
	Status    Status
	PeakCount int // Count in the most populated bin
	MinCount  int // Count a bin needed to be within the window
}

// Contains reports whether a parent mass error (ppm) is accepted
func (w Window) Contains(ppm float64) bool {
	if w.Status == Unbounded {
		return true
	}
	return ppm >= float64(w.Low) && ppm <= float64(w.High)
}

func (w Window) String() string {
	if w.Status == Unbounded {
		return `(unbounded)`
	}
	return fmt.Sprintf("(%d, %d) %s", w.Low, w.High, w.Status)
}

// Histogram counts matches per integer ppm error
type Histogram map[int]int

// Add counts one match with the given error
func (h Histogram) Add(ppm int) {
	h[ppm]++
}

// Keys returns the populated ppm values in ascending order
func (h Histogram) Keys() []int {
	keys := make([]int, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Peak returns the highest bin count
func (h Histogram) Peak() int {
	peak := 0
	for _, c := range h {
		if c > peak {
			peak = c
		}
	}
	return peak
}

// Options controls which matches contribute to the histogram
type Options struct {
	ParentTol float64 // Maximum absolute parent mass difference (mDa)
	MinScore  float64 // Minimum score of the top ranked candidate
}

// BuildHistogram collects the parent mass errors of the top ranked
// candidate of each spectrum. The candidate is skipped when it has no
// score, scores below opt.MinScore, is a decoy, or when its mass
// differs more than opt.ParentTol from the spectrum's parent mass.
func BuildHistogram(job *psm.Job, scores scoring.Scores, opt Options) Histogram {
	h := make(Histogram)
	for specID, cands := range job.IDs {
		if len(cands) == 0 {
			continue
		}
		top := cands[0]
		score, ok := scores.Get(specID, top)
		if !ok || score < opt.MinScore {
			continue
		}
		kern, ok := job.Kernel(top)
		if !ok || kern.IsDecoy() {
			continue
		}
		spec, ok := job.Spectra[specID]
		if !ok || spec.PM == 0 {
			continue
		}
		delta := spec.PM - kern.PM
		if math.Abs(float64(delta)) > opt.ParentTol {
			continue
		}
		h.Add(PPM(delta, spec.PM))
	}
	return h
}

// PPM converts a mass difference to ppm relative to mass, rounded to
// the nearest integer
func PPM(delta, mass int) int {
	return int(math.Round(1.0e6 * float64(delta) / float64(mass)))
}

// FindLimits computes the window of accepted errors from the histogram
func FindLimits(h Histogram) Window {
	var w Window
	keys := h.Keys()
	if len(keys) == 0 {
		return w
	}
	w.PeakCount = h.Peak()
	w.Low = keys[0]
	w.High = keys[len(keys)-1]
	if w.PeakCount < MinPeakCount {
		w.Status = Uncalibrated
		return w
	}

	w.Status = Calibrated
	w.MinCount = int(0.5 + float64(w.PeakCount)*BinThresholdFraction)
	first := true
	for _, k := range keys {
		if h[k] >= w.MinCount {
			if first {
				w.Low = k
				first = false
			}
			w.High = k
		}
	}
	return w
}

// Fixed returns a window with user specified bounds
func Fixed(low, high int) Window {
	if low > high {
		low, high = high, low
	}
	return Window{Low: low, High: high, Status: Calibrated}
}
