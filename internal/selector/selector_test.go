package selector

import (
	"math"
	"testing"

	"github.com/524D/mzscore/internal/calib"
	"github.com/524D/mzscore/internal/modlex"
	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/scoring"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var window5 = calib.Window{Low: -5, High: 5, Status: calib.Calibrated}

func TestParentError(t *testing.T) {
	// 1500.0000 Da spectrum, 1499.9980 Da candidate
	ppm, iso := parentError(2, 1499998)
	assert.False(t, iso)
	assert.InDelta(t, 1.3333, ppm, 1e-3)
	assert.True(t, window5.Contains(ppm))

	// 1.005 Da difference against 1200.0000 Da: second isotope
	ppm, iso = parentError(1005, 1200000)
	assert.True(t, iso)
	assert.InDelta(t, 1e6*(1.005-1.003)/1200.0, ppm, 1e-9)
	assert.True(t, window5.Contains(ppm))
	uncorrected := 1e6 * 1.005 / 1200.0
	assert.InDelta(t, 837.5, uncorrected, 1e-9)
	assert.False(t, window5.Contains(uncorrected))

	// Exactly 0.9 Da is not corrected
	_, iso = parentError(900, 1200000)
	assert.False(t, iso)
}

func selectJob() (psm.Job, scoring.Scores) {
	spectra := map[int]psm.Spectrum{
		0: {PM: 1500000, PZ: 2},
		1: {PM: 1201005, PZ: 3},
		2: {PM: 1000000, PZ: 2},
		3: {PM: 1000000, PZ: 2},
		4: {PM: 1000000, PZ: 1},
	}
	kernels := []psm.Kernel{
		// 0: monoisotopic match for spectrum 0, two known mods
		{Label: "p1", Beg: 100, End: 107, Seq: "PEPCMIDE", PM: 1499998,
			Mods: []psm.ModRecord{{"103": 57021}, {"104": 15995}}},
		// 1: second isotope match for spectrum 1, unknown mod
		{Label: "p2", Beg: 0, End: 5, Seq: "ACDEFK", PM: 1200000,
			Mods: []psm.ModRecord{{"5": 12345}}},
		// 2: far outside the window
		{Label: "p3", Seq: "GGGG", PM: 990000},
		// 3: inside window, but modification offset outside the peptide
		{Label: "p4", Beg: 10, Seq: "KLM", PM: 1000001,
			Mods: []psm.ModRecord{{"20": 15995}}},
		// 4: inside window for spectrum 2/3
		{Label: "decoy-p5-rev", Seq: "MLK", PM: 1000002},
		// 5: inside window, used for charge 1 spectrum
		{Label: "p6", Beg: 1, Seq: "MAK", PM: 999999,
			Mods: []psm.ModRecord{{"1": 15995}}},
	}
	ids := map[int][]int{
		0: {0, 2},
		1: {1},
		2: {2, 3, 4, 5},
		3: {},
		4: {4, 5, 9},
	}
	scores := scoring.Scores{
		{Spectrum: 0, Kernel: 0}: 900,
		{Spectrum: 0, Kernel: 2}: 500,
		{Spectrum: 1, Kernel: 1}: 700,
		{Spectrum: 2, Kernel: 2}: 400,
		{Spectrum: 2, Kernel: 3}: 400,
		{Spectrum: 2, Kernel: 4}: 150,
		{Spectrum: 2, Kernel: 5}: 800,
		{Spectrum: 4, Kernel: 4}: 300,
		{Spectrum: 4, Kernel: 5}: 250,
	}
	return psm.NewJob(spectra, kernels, ids, nil), scores
}

func TestSelect(t *testing.T) {
	job, scores := selectJob()
	opt := Options{Window: window5, MinScore: 200, Lexicon: modlex.Default()}

	stats := NewStats()
	out := Select(&job, scores, 0, opt, stats)
	require.Len(t, out.Matches, 1)
	m := out.Matches[0]
	assert.Equal(t, 0, m.Kernel)
	assert.InDelta(t, 0.002, m.DeltaDa, 1e-12)
	assert.False(t, m.Isotope)
	want := []Mod{
		{Residue: "C", Offset: 103, Shift: 57021, Name: "Carbamidomethyl", Known: true},
		{Residue: "M", Offset: 104, Shift: 15995, Name: "Oxidation", Known: true},
	}
	if diff := cmp.Diff(want, m.Mods); diff != "" {
		t.Errorf("mods mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "C103+Carbamidomethyl;", m.Mods[0].String())

	out = Select(&job, scores, 1, opt, stats)
	require.Len(t, out.Matches, 1)
	m = out.Matches[0]
	assert.True(t, m.Isotope)
	assert.InDelta(t, 1.005, m.DeltaDa, 1e-12)
	assert.InDelta(t, 1.6667, m.PPM, 1e-3)
	require.Len(t, m.Mods, 1)
	assert.False(t, m.Mods[0].Known)
	assert.Equal(t, "K5#12.345;", m.Mods[0].String())

	// Kernel 2 outside window, kernel 3 malformed, 4 and 5 accepted
	out = Select(&job, scores, 2, opt, stats)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, 4, out.Matches[0].Kernel)
	assert.Equal(t, 2, out.Matches[0].Rank)
	assert.Equal(t, 5, out.Matches[1].Kernel)

	out = Select(&job, scores, 3, opt, stats)
	assert.True(t, out.Unmatched)
	assert.False(t, out.Suppressed)

	assert.Equal(t, 4, stats.Spectra)
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 4, stats.Accepted)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, map[int]int{2: 3, 3: 1}, stats.Charges)
	assert.Equal(t, map[string]int{"Carbamidomethyl": 1, "Oxidation": 2, "12.345": 1}, stats.Mods)
	assert.Equal(t, map[string]int{"M": 2}, stats.ModResidues["Oxidation"])
	assert.Equal(t, [2]int{2, 1}, stats.Isotope)
	// Only the first accepted candidate per spectrum counts
	assert.Len(t, stats.DeltaDa, 2)
	assert.Len(t, stats.DeltaPPM, 3)
}

func TestSelectValidOnly(t *testing.T) {
	job, scores := selectJob()
	opt := Options{Window: window5, MinScore: 200, ValidOnly: true, Lexicon: modlex.Default()}
	stats := NewStats()

	// Kernel 4 scores 150: stop before reaching kernel 5
	out := Select(&job, scores, 2, opt, stats)
	assert.Empty(t, out.Matches)

	out = Select(&job, scores, 3, opt, stats)
	assert.True(t, out.Unmatched)
	assert.True(t, out.Suppressed)

	// Spectrum 4: both above the threshold, kernel 9 does not exist
	out = Select(&job, scores, 4, opt, stats)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Matched)
}

func TestSelectUnbounded(t *testing.T) {
	job, scores := selectJob()
	opt := Options{MinScore: 200}
	stats := NewStats()
	out := Select(&job, scores, 0, opt, stats)
	// Without a lexicon all modifications are reported by mass
	require.Len(t, out.Matches, 2)
	assert.Equal(t, "C103#57.021;", out.Matches[0].Mods[0].String())
}

func TestRunMatchesSequential(t *testing.T) {
	job, scores := selectJob()
	opt := Options{Window: window5, MinScore: 200, Lexicon: modlex.Default()}

	seq := NewStats()
	var want []Outcome
	for _, id := range job.SpectrumIDs() {
		want = append(want, Select(&job, scores, id, opt, seq))
	}

	for _, workers := range []int{1, 2, 3, 16} {
		opt.Workers = workers
		got, stats := Run(&job, scores, opt)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("workers=%d outcomes mismatch (-want +got):\n%s", workers, diff)
		}
		if diff := cmp.Diff(seq, stats, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("workers=%d stats mismatch (-want +got):\n%s", workers, diff)
		}
	}
}

func TestDeltaSummary(t *testing.T) {
	s := NewStats()
	for i := 0; i < MinDeltaSamples; i++ {
		s.DeltaDa = append(s.DeltaDa, 0.001*float64(i))
		s.DeltaPPM = append(s.DeltaPPM, float64(i))
	}
	_, ok := s.DeltaSummary()
	assert.False(t, ok, "exactly MinDeltaSamples must not be summarized")

	s.DeltaDa = append(s.DeltaDa, 0.010)
	s.DeltaPPM = append(s.DeltaPPM, 10)
	d, ok := s.DeltaSummary()
	require.True(t, ok)
	assert.InDelta(t, 0.005, d.MeanDa, 1e-12)
	assert.InDelta(t, 5.0, d.MeanPPM, 1e-12)
	// Sample standard deviation of 0..10
	assert.InDelta(t, math.Sqrt(11.0), d.SDPPM, 1e-12)
	assert.InDelta(t, math.Sqrt(11.0)/1000, d.SDDa, 1e-12)
}

func TestMerge(t *testing.T) {
	a := NewStats()
	a.Spectra, a.Matched, a.Accepted = 2, 1, 3
	a.Charges[2] = 3
	a.addMod("Oxidation", "M")
	a.DeltaDa = []float64{0.001}

	b := NewStats()
	b.Spectra, b.Matched, b.Accepted, b.Malformed = 1, 1, 1, 2
	b.Charges[2] = 1
	b.Charges[3] = 1
	b.addMod("Oxidation", "W")
	b.addMod("Phosphoryl", "S")
	b.DeltaDa = []float64{0.002}
	b.Isotope = [2]int{1, 1}

	a.Merge(b)
	assert.Equal(t, 3, a.Spectra)
	assert.Equal(t, 2, a.Matched)
	assert.Equal(t, 4, a.Accepted)
	assert.Equal(t, 2, a.Malformed)
	assert.Equal(t, map[int]int{2: 4, 3: 1}, a.Charges)
	assert.Equal(t, map[string]int{"Oxidation": 2, "Phosphoryl": 1}, a.Mods)
	assert.Equal(t, map[string]int{"M": 1, "W": 1}, a.ModResidues["Oxidation"])
	assert.Equal(t, []float64{0.001, 0.002}, a.DeltaDa)
	assert.Equal(t, [2]int{1, 1}, a.Isotope)
}
