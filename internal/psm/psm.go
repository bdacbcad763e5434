// Package psm holds the spectra, candidate peptides ("kernels") and
// candidate lists produced by a search run.
package psm

import (
	"errors"
	"sort"
	"strings"
)

// Masses are integer milliDaltons throughout, conversions to Dalton are
// only done for display.
const MilliDalton = 1000.0

// Label markers used by the search engine for null-model candidates
const (
	decoyMarker    = `decoy-`
	reversedMarker = `-rev`
)

// Number of integers used to encode a single fragment peak
const PeakEncodingWidth = 3

var (
	ErrNoSpectra        = errors.New("psm: job contains no spectra")
	ErrKernelOrder      = errors.New("psm: positional kernels require a kernel order")
	ErrKernelOrderField = errors.New("psm: kernel order is missing a field")
)

// Spectrum is an observed MS/MS spectrum
type Spectrum struct {
	PM  int      `json:"pm"`           // Parent mass (mDa)
	PZ  int      `json:"pz"`           // Parent charge
	RT  *float64 `json:"rt,omitempty"` // Retention time (s)
	SC  *int     `json:"sc,omitempty"` // Scan number
	SMS []int    `json:"sms"`          // Fragment peaks, PeakEncodingWidth ints per peak
}

// NumPeaks returns the number of encoded fragment peaks
func (s *Spectrum) NumPeaks() int {
	return len(s.SMS) / PeakEncodingWidth
}

// ModRecord maps a residue offset (string encoded, protein coordinates)
// to a mass shift in mDa
type ModRecord map[string]int

// Kernel is a candidate peptide
type Kernel struct {
	Label string      `json:"lb"`   // Protein label
	Beg   int         `json:"beg"`  // Offset of first residue
	End   int         `json:"end"`  // Offset of last residue
	Pre   string      `json:"pre"`  // Residue preceding the peptide
	Seq   string      `json:"seq"`  // Peptide sequence
	Post  string      `json:"post"` // Residue following the peptide
	PM    int         `json:"pm"`   // Peptide mass (mDa)
	Mods  []ModRecord `json:"mods"`
}

// IsDecoy reports whether the kernel was drawn from the decoy sequence space
func (k *Kernel) IsDecoy() bool {
	return strings.Contains(k.Label, decoyMarker)
}

// IsReversed reports whether the kernel is a reversed-sequence decoy
func (k *Kernel) IsReversed() bool {
	return strings.Contains(k.Label, reversedMarker)
}

// DisplayLabel returns the protein label, reversed decoys are all
// reported under the same label
func (k *Kernel) DisplayLabel() string {
	if k.IsReversed() {
		return reversedMarker
	}
	return k.Label
}

// Job holds all data of a search run that is needed for scoring
// and reporting. Spectrum IDs are zero based.
type Job struct {
	Spectra map[int]Spectrum
	Kernels []Kernel
	IDs     map[int][]int // Spectrum ID to candidate kernel indices, best first
	Scores  map[int]int   // Spectrum ID to observed number of matched ions
	Stats   map[string]float64

	badKernels map[int]error
}

// Kernel returns kernel i. The second return value is false when
// the index is out of range, or the kernel record could not be decoded.
func (j *Job) Kernel(i int) (*Kernel, bool) {
	if i < 0 || i >= len(j.Kernels) {
		return nil, false
	}
	if _, bad := j.badKernels[i]; bad {
		return nil, false
	}
	return &j.Kernels[i], true
}

// NumBadKernels returns the number of kernel records that failed to decode
func (j *Job) NumBadKernels() int {
	return len(j.badKernels)
}

// SpectrumIDs returns the IDs of all spectra with a candidate list,
// in ascending order
func (j *Job) SpectrumIDs() []int {
	ids := make([]int, 0, len(j.IDs))
	for id := range j.IDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
