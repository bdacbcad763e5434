// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"fmt"
	"math"

	"github.com/524D/mzscore/internal/scoring"
)

// debugRange returns the range of spectrum IDs for which debug output
// is printed. ok is false when no debug output is requested.
func debugRange(par *params) (int, int, bool) {
	if par.debugSpecs == `` {
		return 0, 0, false
	}
	debugMin, debugMax, _ := parseIntRange(par.debugSpecs, 0, math.MaxInt32)
	return debugMin, debugMax, true
}

// debugLogScores prints the null model parameters and score of each
// candidate of the spectra in the debug range
func debugLogScores(r *run, par *params) {
	debugMin, debugMax, ok := debugRange(par)
	if !ok {
		return
	}
	e := scoring.NewEngine(par.scoringVariant, *par.cfg.FragmentTol)
	for _, i := range r.job.SpectrumIDs() {
		if i < debugMin || i > debugMax {
			continue
		}
		spec, ok := r.job.Spectra[i]
		if !ok {
			fmt.Printf("Spectrum:%d missing\n", i)
			continue
		}
		observed := r.job.Scores[i]
		fmt.Printf("Spectrum:%d pm:%d pz:%d peaks:%d ions:%d\n",
			i, spec.PM, spec.PZ, spec.NumPeaks(), observed)
		for rank, k := range r.job.IDs[i] {
			kern, ok := r.job.Kernel(k)
			if !ok {
				fmt.Printf("%d kernel:%d unusable\n", rank, k)
				continue
			}
			res := e.Score(scoring.Input{
				ParentMass:    kern.PM,
				PeptideLength: len(kern.Seq),
				NumPeaks:      spec.NumPeaks(),
				Observed:      observed,
			})
			fmt.Printf("%d kernel:%d %s pm:%d cells:%d ions:%d draws:%d score:%.1f",
				rank, k, kern.Seq, kern.PM, res.Cells, res.TotalIons, res.Draws, res.Score)
			if res.Invalid {
				fmt.Printf(" (invalid model)")
			} else if res.Degenerate {
				fmt.Printf(" (degenerate)")
			}
			fmt.Printf("\n")
		}
	}
}

// debugLogSelection prints the accepted candidates of the spectra in the
// debug range
func debugLogSelection(r *run, par *params) {
	debugMin, debugMax, ok := debugRange(par)
	if !ok {
		return
	}
	fmt.Printf("Window: %s\n", r.window)
	for _, out := range r.outcomes {
		if out.Spectrum < debugMin || out.Spectrum > debugMax {
			continue
		}
		if out.Unmatched {
			fmt.Printf("Spectrum:%d unmatched\n", out.Spectrum)
			continue
		}
		fmt.Printf("Spectrum:%d accepted:%d\n", out.Spectrum, len(out.Matches))
		for _, m := range out.Matches {
			iso := `A0`
			if m.Isotope {
				iso = `A1`
			}
			fmt.Printf("%d kernel:%d score:%.1f dM:%.3f ppm:%.2f %s mods:%d\n",
				m.Rank, m.Kernel, m.Score, m.DeltaDa, m.PPM, iso, len(m.Mods))
		}
	}
}
