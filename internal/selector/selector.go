// Package selector decides, per spectrum, which scored candidates are
// reported. A candidate is accepted when its parent mass error, corrected
// for a possible isotope mis-pick, falls inside the calibration window.
package selector

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/524D/mzscore/internal/calib"
	"github.com/524D/mzscore/internal/modlex"
	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/scoring"

	"golang.org/x/sync/errgroup"
)

const (
	// Parent mass difference (Da) above which the precursor is assumed
	// to be the second isotope peak
	isotopeThreshold = 0.9
	// Mass difference between the first and second isotope peak (mDa)
	isotopeSpacing = 1003
)

var ErrModOffset = errors.New("modification offset outside peptide")

// Options for selecting matches
type Options struct {
	Window    calib.Window
	MinScore  float64
	ValidOnly bool // Stop at the first candidate below MinScore, omit unmatched spectra
	Lexicon   *modlex.Lexicon
	Workers   int // Concurrent workers for Run, <1 means runtime.NumCPU()
}

// Mod is a modification of an accepted candidate, resolved to its residue
// and (if known) its name
type Mod struct {
	Residue string
	Offset  int // Protein coordinate
	Shift   int // mDa
	Name    string
	Known   bool
}

// String formats the modification as <residue><offset>+<name>; for known
// modifications and <residue><offset>#<mass in Da>; otherwise
func (m Mod) String() string {
	if m.Known {
		return m.Residue + strconv.Itoa(m.Offset) + `+` + m.Name + `;`
	}
	return fmt.Sprintf("%s%d#%.3f;", m.Residue, m.Offset, float64(m.Shift)/psm.MilliDalton)
}

// Match is an accepted candidate
type Match struct {
	Spectrum int
	Kernel   int
	Rank     int // Position in the candidate list
	Score    float64
	DeltaDa  float64 // Parent mass difference, not corrected
	PPM      float64 // Parent mass error, isotope corrected
	Isotope  bool    // Corrected for a second isotope pick
	Mods     []Mod
}

// Outcome is the selection result of one spectrum
type Outcome struct {
	Spectrum   int
	Unmatched  bool // No candidates
	Suppressed bool // Unmatched and not reported (valid-only)
	Matches    []Match
}

// Select applies the selection to a single spectrum and updates stats
func Select(job *psm.Job, scores scoring.Scores, specID int, opt Options,
	stats *Stats) Outcome {
	out := Outcome{Spectrum: specID}
	stats.Spectra++

	cands := job.IDs[specID]
	if len(cands) == 0 {
		out.Unmatched = true
		out.Suppressed = opt.ValidOnly
		return out
	}
	spec, ok := job.Spectra[specID]
	if !ok {
		stats.Malformed += len(cands)
		return out
	}

	for rank, kernIdx := range cands {
		kern, ok := job.Kernel(kernIdx)
		if !ok || kern.PM == 0 {
			stats.Malformed++
			continue
		}
		score, ok := scores.Get(specID, kernIdx)
		if !ok {
			stats.Malformed++
			continue
		}
		if opt.ValidOnly && score < opt.MinScore {
			break
		}

		delta := spec.PM - kern.PM
		ppm, isotope := parentError(delta, kern.PM)
		if !opt.Window.Contains(ppm) {
			continue
		}
		mods, err := resolveMods(kern, opt.Lexicon)
		if err != nil {
			stats.Malformed++
			continue
		}

		if len(out.Matches) == 0 {
			if isotope {
				stats.Isotope[1]++
			} else {
				stats.Isotope[0]++
				stats.DeltaDa = append(stats.DeltaDa, float64(delta)/psm.MilliDalton)
			}
			stats.DeltaPPM = append(stats.DeltaPPM, ppm)
		}
		stats.Accepted++
		stats.Charges[spec.PZ]++
		for _, m := range mods {
			name := m.Name
			if !m.Known {
				name = fmt.Sprintf("%.3f", float64(m.Shift)/psm.MilliDalton)
			}
			stats.addMod(name, m.Residue)
		}

		out.Matches = append(out.Matches, Match{
			Spectrum: specID,
			Kernel:   kernIdx,
			Rank:     rank,
			Score:    score,
			DeltaDa:  float64(delta) / psm.MilliDalton,
			PPM:      ppm,
			Isotope:  isotope,
			Mods:     mods,
		})
	}
	if len(out.Matches) > 0 {
		stats.Matched++
	}
	return out
}

// parentError returns the parent mass error in ppm relative to the
// candidate mass. Differences above isotopeThreshold are corrected
// for one isotope spacing.
func parentError(delta, mass int) (float64, bool) {
	if float64(delta)/psm.MilliDalton > isotopeThreshold {
		return 1.0e6 * float64(delta-isotopeSpacing) / float64(mass), true
	}
	return 1.0e6 * float64(delta) / float64(mass), false
}

// resolveMods looks up the residue and name of each modification
func resolveMods(kern *psm.Kernel, lex *modlex.Lexicon) ([]Mod, error) {
	var mods []Mod
	for _, rec := range kern.Mods {
		for offStr, shift := range rec {
			offset, err := strconv.Atoi(offStr)
			if err != nil {
				return nil, fmt.Errorf("modification offset %q: %w", offStr, err)
			}
			pos := offset - kern.Beg
			if pos < 0 || pos >= len(kern.Seq) {
				return nil, fmt.Errorf("%w: %d", ErrModOffset, offset)
			}
			m := Mod{
				Residue: kern.Seq[pos : pos+1],
				Offset:  offset,
				Shift:   shift,
			}
			m.Name, m.Known = lex.Name(shift)
			mods = append(mods, m)
		}
		// Records normally hold a single offset; order multiple ones
		// so output does not depend on map iteration
		recMods := mods[len(mods)-len(rec):]
		sort.Slice(recMods, func(i, j int) bool { return recMods[i].Offset < recMods[j].Offset })
	}
	return mods, nil
}

// Run selects matches for all spectra in the job. Spectra are split in
// contiguous chunks that are processed concurrently; the per-chunk
// statistics are merged in spectrum order, so the result does not depend
// on the number of workers.
func Run(job *psm.Job, scores scoring.Scores, opt Options) ([]Outcome, *Stats) {
	specIDs := job.SpectrumIDs()
	outcomes := make([]Outcome, len(specIDs))

	workers := opt.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	chunk := (len(specIDs) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}
	nChunks := (len(specIDs) + chunk - 1) / chunk
	chunkStats := make([]*Stats, nChunks)

	var g errgroup.Group
	for c := 0; c < nChunks; c++ {
		g.Go(func() error {
			st := NewStats()
			lo := c * chunk
			hi := min(lo+chunk, len(specIDs))
			for i := lo; i < hi; i++ {
				outcomes[i] = Select(job, scores, specIDs[i], opt, st)
			}
			chunkStats[c] = st
			return nil
		})
	}
	g.Wait()

	stats := NewStats()
	for _, st := range chunkStats {
		stats.Merge(st)
	}
	return outcomes, stats
}
