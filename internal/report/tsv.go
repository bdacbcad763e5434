// Package report writes accepted matches and run summaries.
package report

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/selector"
)

// Proton mass used to compute the precursor m/z
const massProton = 1.007276

var tsvColumns = []string{`PSM`, `spectrum`, `scan`, `rt`, `m/z`, `z`, `protein`,
	`start`, `end`, `pre`, `sequence`, `post`, `modifications`, `ions`, `score`,
	`dM`, `ppm`}

// TSVWriter writes one line per accepted match
type TSVWriter struct {
	w    *bufio.Writer
	bcid bool
	psm  int // Number of the next line
	job  *psm.Job
}

// NewTSVWriter writes the header line and returns a writer for the
// outcomes of job. If bcid is true, each match gets a content hash.
func NewTSVWriter(w io.Writer, job *psm.Job, bcid bool) (*TSVWriter, error) {
	t := TSVWriter{
		w:    bufio.NewWriter(w),
		bcid: bcid,
		psm:  1,
		job:  job,
	}
	header := strings.Join(tsvColumns, "\t")
	if bcid {
		header += "\tbcid"
	}
	if _, err := t.w.WriteString(header + "\n"); err != nil {
		return nil, err
	}
	return &t, nil
}

// Write writes the lines for one spectrum
func (t *TSVWriter) Write(out selector.Outcome) error {
	spec, ok := t.job.Spectra[out.Spectrum]
	if out.Unmatched {
		if out.Suppressed || !ok {
			t.psm++
			return nil
		}
		// Unmatched rows keep the column count of the header
		line := t.spectrumColumns(out.Spectrum, &spec) + strings.Repeat("\t", 11) + "\n"
		t.psm++
		_, err := t.w.WriteString(line)
		return err
	}
	for _, m := range out.Matches {
		kern, ok := t.job.Kernel(m.Kernel)
		if !ok {
			continue
		}
		var b strings.Builder
		b.WriteString(t.spectrumColumns(out.Spectrum, &spec))
		fmt.Fprintf(&b, "\t%s\t%d\t%d\t%s\t%s\t%s\t",
			kern.DisplayLabel(), kern.Beg, kern.End, kern.Pre, kern.Seq, kern.Post)
		for _, mod := range m.Mods {
			b.WriteString(mod.String())
		}
		fmt.Fprintf(&b, "\t%d\t%.0f\t%.3f\t%.0f",
			t.job.Scores[out.Spectrum], m.Score, m.DeltaDa, math.RoundToEven(m.PPM))
		if t.bcid {
			h, err := BCID(&spec, kern)
			if err != nil {
				return err
			}
			b.WriteString("\t" + h)
		}
		b.WriteString("\n")
		t.psm++
		if _, err := t.w.WriteString(b.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *TSVWriter) spectrumColumns(specID int, spec *psm.Spectrum) string {
	var scan, rt string
	if spec.SC != nil {
		scan = strconv.Itoa(*spec.SC)
	}
	if spec.RT != nil {
		rt = strconv.FormatFloat(*spec.RT, 'f', 1, 64)
	}
	return fmt.Sprintf("%d\t%d\t%s\t%s\t%.3f\t%d",
		t.psm, specID+1, scan, rt, PrecursorMz(spec), spec.PZ)
}

// Flush writes any buffered data
func (t *TSVWriter) Flush() error {
	return t.w.Flush()
}

// PrecursorMz returns the m/z of the protonated precursor
func PrecursorMz(spec *psm.Spectrum) float64 {
	if spec.PZ == 0 {
		return 0
	}
	return massProton + (float64(spec.PM)/psm.MilliDalton)/float64(spec.PZ)
}

// BCID returns a hex encoded SHA-256 hash of the JSON representation of
// the spectrum followed by that of the kernel, which identifies the match
// independent of the run
func BCID(spec *psm.Spectrum, kern *psm.Kernel) (string, error) {
	s, err := json.Marshal(spec)
	if err != nil {
		return ``, err
	}
	k, err := json.Marshal(kern)
	if err != nil {
		return ``, err
	}
	h := sha256.New()
	h.Write(s)
	h.Write(k)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteTSVFile writes all outcomes to file fn. The error is returned
// to the caller; scores and calibration remain valid and can be written
// to another destination.
func WriteTSVFile(fn string, job *psm.Job, outcomes []selector.Outcome, bcid bool) error {
	f, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("specified output file %q could not be opened, nothing written to file: %w", fn, err)
	}
	t, err := NewTSVWriter(f, job, bcid)
	if err != nil {
		f.Close()
		return err
	}
	for _, out := range outcomes {
		if err := t.Write(out); err != nil {
			f.Close()
			return err
		}
	}
	if err := t.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
