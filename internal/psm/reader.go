package psm

import (
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Types for parsing the JSON job file
type jobContent struct {
	Spectra     map[int]Spectrum      `json:"spectra"`
	Kernels     []jsoniter.RawMessage `json:"kernels"`
	KernelOrder map[string]int        `json:"kernel order"`
	IDs         map[int][]int         `json:"ids"`
	Scores      map[int]int           `json:"scores"`
	Stats       map[string]float64    `json:"job stats"`
}

// ReadJob reads a search job from r.
//
// Kernels are either JSON objects with named fields, or positional
// arrays. For positional kernels the job must contain a "kernel order"
// object that maps each field name to its index in the array. Kernels
// that cannot be decoded are retained as placeholders so that the
// indices in the candidate lists stay valid; Job.Kernel reports them
// as unavailable.
func ReadJob(r io.Reader) (Job, error) {
	var job Job
	var content jobContent

	d := json.NewDecoder(r)
	if err := d.Decode(&content); err != nil {
		return job, fmt.Errorf("psm: decode job: %w", err)
	}
	if len(content.Spectra) == 0 {
		return job, ErrNoSpectra
	}

	job.Spectra = content.Spectra
	job.IDs = content.IDs
	job.Scores = content.Scores
	job.Stats = content.Stats
	if job.IDs == nil {
		job.IDs = make(map[int][]int)
	}
	if job.Scores == nil {
		job.Scores = make(map[int]int)
	}
	job.Kernels = make([]Kernel, len(content.Kernels))
	job.badKernels = make(map[int]error)

	for i, raw := range content.Kernels {
		var err error
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if content.KernelOrder == nil {
				return job, ErrKernelOrder
			}
			err = decodePositional(trimmed, content.KernelOrder, &job.Kernels[i])
		} else {
			err = json.Unmarshal(trimmed, &job.Kernels[i])
		}
		if err != nil {
			job.Kernels[i] = Kernel{}
			job.badKernels[i] = fmt.Errorf("kernel %d: %w", i, err)
		}
	}
	return job, nil
}

// BadKernelErrors returns the decode errors of all unusable kernels
func (j *Job) BadKernelErrors() []error {
	errs := make([]error, 0, len(j.badKernels))
	for i := range j.Kernels {
		if err, ok := j.badKernels[i]; ok {
			errs = append(errs, err)
		}
	}
	return errs
}

// kernelFields maps the field names used in a kernel order to the
// fields of k
func kernelFields(k *Kernel) map[string]any {
	return map[string]any{
		"lb":   &k.Label,
		"beg":  &k.Beg,
		"end":  &k.End,
		"pre":  &k.Pre,
		"seq":  &k.Seq,
		"post": &k.Post,
		"pm":   &k.PM,
		"mods": &k.Mods,
	}
}

func decodePositional(raw []byte, order map[string]int, k *Kernel) error {
	var row []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return err
	}
	for name, field := range kernelFields(k) {
		idx, ok := order[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrKernelOrderField, name)
		}
		if idx < 0 || idx >= len(row) {
			return fmt.Errorf("field %s at index %d, record has %d fields",
				name, idx, len(row))
		}
		if err := json.Unmarshal(row[idx], field); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

// NewJob assembles a job from already decoded parts. It is mainly
// useful for callers that produce jobs in memory.
func NewJob(spectra map[int]Spectrum, kernels []Kernel,
	ids map[int][]int, scores map[int]int) Job {
	return Job{
		Spectra:    spectra,
		Kernels:    kernels,
		IDs:        ids,
		Scores:     scores,
		badKernels: make(map[int]error),
	}
}
