// Package scoring computes the significance of peptide-spectrum matches.
//
// The number of fragment ions that a candidate peptide matches in a
// spectrum is compared with what would be expected for a random peptide.
// The null model is hypergeometric: the spectrum's peaks are drawn
// without replacement from a set of mass bins, of which a number equal to
// the peptide's possible fragment ions are "successes". The score is
// -100*log10 of the probability of the observed number of matches.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/524D/mzscore/internal/psm"

	"golang.org/x/sync/errgroup"
)

const (
	// Mass (Da) subtracted from the peptide mass to obtain the number of
	// fragment mass bins
	cellOffset = 200
	// Fragment mass tolerance above which the run is considered low
	// resolution
	highTolerance = 100.0
	// Ceiling of the number of possible fragment ions
	highResIons = 20
	lowResIons  = 40
)

var ErrUnknownVariant = errors.New("unknown scoring variant")

// Variant selects between the two scoring configurations that exist
// for historical reasons. They differ in the ceiling of the number of
// mass bins and in the score adjustment for low resolution fragment
// spectra.
type Variant struct {
	Name        string
	CellCeiling int     // Maximum number of mass bins, 0 for no ceiling
	LowResScale float64 // Score factor when fragment tolerance > 100
}

var (
	// Capped limits the number of mass bins to 1500 and does not adjust
	// scores. This is the variant used for reporting.
	Capped = Variant{Name: `capped`, CellCeiling: 1500, LowResScale: 1.0}
	// Adjusted has no bin ceiling and halves the score of low
	// resolution spectra.
	Adjusted = Variant{Name: `adjusted`, CellCeiling: 0, LowResScale: 0.5}
)

// VariantByName returns the variant with the given name (case
// insensitive). An empty name selects Capped.
func VariantByName(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ``, Capped.Name:
		return Capped, nil
	case Adjusted.Name:
		return Adjusted, nil
	}
	return Variant{}, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
}

// Input holds everything needed to score a single (spectrum, candidate) pair
type Input struct {
	ParentMass    int // Candidate mass (mDa)
	PeptideLength int // Number of residues
	NumPeaks      int // Number of fragment peaks in the spectrum
	Observed      int // Number of matched fragment ions
}

// Result contains the score and the parameters of the null model that
// produced it
type Result struct {
	Score      float64
	Cells      int  // Population size
	TotalIons  int  // Successes in the population
	Draws      int  // Number of draws
	Degenerate bool // Probability was floored at MinProbability
	Invalid    bool // No null model exists, Score is not meaningful
}

// Engine scores candidates for one run
type Engine struct {
	Variant      Variant
	FragmentTol  float64 // Fragment mass tolerance as specified for the search
	Workers      int     // Concurrent spectra, <1 means runtime.NumCPU()
	ionCeiling   int
	lowResFactor float64
}

// NewEngine creates a scoring engine for the given variant and fragment
// mass tolerance
func NewEngine(v Variant, fragmentTol float64) *Engine {
	e := Engine{
		Variant:      v,
		FragmentTol:  fragmentTol,
		ionCeiling:   highResIons,
		lowResFactor: 1.0,
	}
	if fragmentTol > highTolerance {
		e.ionCeiling = lowResIons
		e.lowResFactor = v.LowResScale
	}
	return &e
}

// Score computes the significance score of a single match
func (e *Engine) Score(in Input) Result {
	var r Result

	r.Cells = in.ParentMass/int(psm.MilliDalton) - cellOffset
	if e.Variant.CellCeiling > 0 && r.Cells > e.Variant.CellCeiling {
		r.Cells = e.Variant.CellCeiling
	}
	r.TotalIons = 2 * (in.PeptideLength - 1)
	if r.TotalIons > e.ionCeiling {
		r.TotalIons = e.ionCeiling
	}
	// The number of possible ions must exceed the observed number,
	// otherwise the model is not defined
	if r.TotalIons <= in.Observed {
		r.TotalIons = in.Observed + 1
	}
	r.Draws = in.NumPeaks

	lp, err := hypergeomLog10PMF(r.Cells, r.TotalIons, r.Draws, in.Observed)
	if errors.Is(err, ErrInvalidModel) {
		r.Invalid = true
		return r
	}
	if err != nil || lp < log10MinProbability {
		lp = log10MinProbability
		r.Degenerate = true
	}
	r.Score = -100.0 * lp * e.lowResFactor
	// Avoid reporting -0 for certain matches
	if r.Score == 0 {
		r.Score = math.Abs(r.Score)
	}
	return r
}

// Summary counts what happened during ScoreAll
type Summary struct {
	Scored     int // Pairs with a score
	Degenerate int // Pairs whose probability was floored
	Skipped    int // Pairs that could not be scored (missing kernel/raw score, invalid model)
}

type spectrumScores struct {
	specID  int
	kernels []int
	scores  []float64
	summary Summary
}

// ScoreAll scores every candidate of every spectrum in the job.
// Spectra are processed concurrently, each spectrum's candidates are
// scored by one goroutine.
func (e *Engine) ScoreAll(job *psm.Job) (Scores, Summary) {
	specIDs := job.SpectrumIDs()
	results := make([]spectrumScores, len(specIDs))

	workers := e.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range specIDs {
		g.Go(func() error {
			results[i] = e.scoreSpectrum(job, id)
			return nil
		})
	}
	g.Wait()

	var summary Summary
	scores := make(Scores, len(job.Kernels))
	for _, r := range results {
		for k, kernIdx := range r.kernels {
			scores[Key{Spectrum: r.specID, Kernel: kernIdx}] = r.scores[k]
		}
		summary.Scored += r.summary.Scored
		summary.Degenerate += r.summary.Degenerate
		summary.Skipped += r.summary.Skipped
	}
	return scores, summary
}

func (e *Engine) scoreSpectrum(job *psm.Job, specID int) spectrumScores {
	res := spectrumScores{specID: specID}
	cands := job.IDs[specID]
	if len(cands) == 0 {
		return res
	}
	spec, okSpec := job.Spectra[specID]
	observed, okScore := job.Scores[specID]
	if !okSpec || !okScore {
		res.summary.Skipped = len(cands)
		return res
	}
	res.kernels = make([]int, 0, len(cands))
	res.scores = make([]float64, 0, len(cands))
	for _, kernIdx := range cands {
		kern, ok := job.Kernel(kernIdx)
		if !ok {
			res.summary.Skipped++
			continue
		}
		r := e.Score(Input{
			ParentMass:    kern.PM,
			PeptideLength: len(kern.Seq),
			NumPeaks:      spec.NumPeaks(),
			Observed:      observed,
		})
		if r.Invalid {
			res.summary.Skipped++
			continue
		}
		if r.Degenerate {
			res.summary.Degenerate++
		}
		res.summary.Scored++
		res.kernels = append(res.kernels, kernIdx)
		res.scores = append(res.scores, r.Score)
	}
	return res
}
