package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/524D/mzscore/internal/scoring"
	"github.com/524D/mzscore/internal/selector"

	"github.com/dustin/go-humanize"
)

// Parameter that is not echoed, it only describes the input layout
const kernelOrderParam = `kernel order`

// PrintParams prints the run parameters in reverse key order
func PrintParams(w io.Writer, params map[string]any) {
	fmt.Fprintln(w, "\nInput parameters:")
	for _, k := range reverseSortedKeys(params) {
		if k == kernelOrderParam {
			continue
		}
		fmt.Fprintf(w, "     %s: %v\n", k, params[k])
	}
}

// PrintJobStats prints the statistics reported by the search engine.
// Entries with "time" in their name are durations in seconds.
func PrintJobStats(w io.Writer, stats map[string]float64) {
	fmt.Fprintln(w, "\n1. Job statistics:")
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, k := range keys {
		if strings.Contains(k, "time") {
			fmt.Fprintf(w, "    %s: %.3f s\n", k, stats[k])
		} else {
			fmt.Fprintf(w, "    %s: %v\n", k, stats[k])
		}
	}
}

func reverseSortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// Summary is everything reported at the end of a run
type Summary struct {
	OutputFile string
	Stats      *selector.Stats
	Scoring    scoring.Summary
}

// Print writes the summary
func (s *Summary) Print(w io.Writer) {
	st := s.Stats
	fmt.Fprintln(w, "\n2. Output parameters:")
	fmt.Fprintf(w, "    output file: %s\n", s.OutputFile)
	fmt.Fprintf(w, "    PSMs: %s\n", humanize.Comma(int64(st.Accepted)))
	fmt.Fprintf(w, "    spectra matched: %s of %s\n",
		humanize.Comma(int64(st.Matched)), humanize.Comma(int64(st.Spectra)))

	fmt.Fprintln(w, "    charges:")
	charges := make([]int, 0, len(st.Charges))
	for z := range st.Charges {
		charges = append(charges, z)
	}
	sort.Ints(charges)
	for _, z := range charges {
		fmt.Fprintf(w, "        %d: %d\n", z, st.Charges[z])
	}

	fmt.Fprintln(w, "    modifications:")
	for _, name := range sortedMods(st.Mods) {
		fmt.Fprintf(w, "        %s: %s= %d\n", name, residueLine(st.ModResidues[name]), st.Mods[name])
	}

	if d, ok := st.DeltaSummary(); ok {
		fmt.Fprintf(w, "    parent delta mean (Da): %.3f\n", d.MeanDa)
		fmt.Fprintf(w, "    parent delta sd (Da): %.3f\n", d.SDDa)
		fmt.Fprintf(w, "    parent delta mean (ppm): %.1f\n", d.MeanPPM)
		fmt.Fprintf(w, "    parent delta sd (ppm): %.1f\n", d.SDPPM)
	}

	a0, a1 := st.Isotope[0], st.Isotope[1]
	if total := float64(a0 + a1); total > 0 {
		fmt.Fprintf(w, "    parent A: A0 = %d (%.1f), A1 = %d (%.1f)\n",
			a0, 100*float64(a0)/total, a1, 100*float64(a1)/total)
	} else {
		fmt.Fprintf(w, "    parent A: A0 = %d, A1 = %d\n", a0, a1)
	}

	if s.Scoring.Degenerate > 0 {
		fmt.Fprintf(w, "    degenerate probabilities: %s\n", humanize.Comma(int64(s.Scoring.Degenerate)))
	}
	if s.Scoring.Skipped > 0 {
		fmt.Fprintf(w, "    unscored candidates: %s\n", humanize.Comma(int64(s.Scoring.Skipped)))
	}
	if st.Malformed > 0 {
		fmt.Fprintf(w, "    malformed candidates skipped: %s\n", humanize.Comma(int64(st.Malformed)))
	}
}

// sortedMods returns modification names sorted case-insensitively
func sortedMods(mods map[string]int) []string {
	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
	return names
}

// residueLine formats the residue breakdown of a modification as
// "C[3] M[1] "
func residueLine(res map[string]int) string {
	aas := make([]string, 0, len(res))
	for aa := range res {
		aas = append(aas, aa)
	}
	sort.Strings(aas)
	var b strings.Builder
	for _, aa := range aas {
		fmt.Fprintf(&b, "%s[%d] ", aa, res[aa])
	}
	return b.String()
}
