package selector

import (
	"gonum.org/v1/gonum/stat"
)

// MinDeltaSamples is the number of parent mass differences above which
// their mean and standard deviation are reported
const MinDeltaSamples = 10

// Stats accumulates the run summary. Each worker fills its own Stats,
// which are combined with Merge.
type Stats struct {
	Spectra   int // Spectra with a candidate list
	Matched   int // Spectra with at least one accepted candidate
	Accepted  int // Accepted candidates
	Malformed int // Candidates skipped because their records were unusable

	Charges     map[int]int               // Parent charge to accepted candidates
	Mods        map[string]int            // Modification to occurrences
	ModResidues map[string]map[string]int // Modification to residue to occurrences

	// Parent mass differences of the first accepted candidate of each
	// spectrum. DeltaDa only holds monoisotopic (A0) picks, DeltaPPM holds
	// both (isotope corrected for A1).
	DeltaDa  []float64
	DeltaPPM []float64
	Isotope  [2]int // A0, A1 picks
}

// NewStats returns an empty accumulator
func NewStats() *Stats {
	return &Stats{
		Charges:     make(map[int]int),
		Mods:        make(map[string]int),
		ModResidues: make(map[string]map[string]int),
	}
}

func (s *Stats) addMod(name, residue string) {
	s.Mods[name]++
	res, ok := s.ModResidues[name]
	if !ok {
		res = make(map[string]int)
		s.ModResidues[name] = res
	}
	res[residue]++
}

// Merge adds the counts of o to s. Parent mass differences of o are
// appended after those of s.
func (s *Stats) Merge(o *Stats) {
	s.Spectra += o.Spectra
	s.Matched += o.Matched
	s.Accepted += o.Accepted
	s.Malformed += o.Malformed
	for z, n := range o.Charges {
		s.Charges[z] += n
	}
	for name, n := range o.Mods {
		s.Mods[name] += n
	}
	for name, res := range o.ModResidues {
		for aa, n := range res {
			if _, ok := s.ModResidues[name]; !ok {
				s.ModResidues[name] = make(map[string]int)
			}
			s.ModResidues[name][aa] += n
		}
	}
	s.DeltaDa = append(s.DeltaDa, o.DeltaDa...)
	s.DeltaPPM = append(s.DeltaPPM, o.DeltaPPM...)
	s.Isotope[0] += o.Isotope[0]
	s.Isotope[1] += o.Isotope[1]
}

// DeltaSummary holds mean and sample standard deviation of the parent
// mass differences
type DeltaSummary struct {
	MeanDa  float64
	SDDa    float64
	MeanPPM float64
	SDPPM   float64
}

// DeltaSummary computes the parent mass difference statistics. ok is
// false when there are not more than MinDeltaSamples differences.
func (s *Stats) DeltaSummary() (d DeltaSummary, ok bool) {
	if len(s.DeltaDa) <= MinDeltaSamples {
		return d, false
	}
	d.MeanDa, d.SDDa = stat.MeanStdDev(s.DeltaDa, nil)
	d.MeanPPM, d.SDPPM = stat.MeanStdDev(s.DeltaPPM, nil)
	return d, true
}
