// Package config holds the parameters of a scoring run. Parameters are
// read from a YAML file using the names of the search engine's parameter
// file and may be overridden from the command line.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrMissingParameter = errors.New("missing required parameter")

// Parameter names, as used in the YAML file and the parameter echo
const (
	FragmentTolName = `fragment mass tolerance`
	ParentTolName   = `parent mass tolerance`
	MinScoreName    = `score threshold`
	OutputFileName  = `output file`
	ValidOnlyName   = `output valid only`
	BCIDName        = `output bcid`
	VariantName     = `scoring variant`
	ModsFileName    = `modifications file`
)

// Params are the run parameters. Required numeric parameters are
// pointers, so that a missing value can be told apart from zero.
type Params struct {
	FragmentTol *float64 `yaml:"fragment mass tolerance"`
	ParentTol   *float64 `yaml:"parent mass tolerance"`
	MinScore    *float64 `yaml:"score threshold"`
	OutputFile  string   `yaml:"output file"`
	ValidOnly   bool     `yaml:"output valid only"`
	BCID        bool     `yaml:"output bcid"`
	Variant     string   `yaml:"scoring variant"`
	ModsFile    string   `yaml:"modifications file"`
}

// Load reads parameters from a YAML file
func Load(filename string) (*Params, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &p, nil
}

// Validate checks that all required parameters are present
func (p *Params) Validate() error {
	var missing []error
	if p.FragmentTol == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingParameter, FragmentTolName))
	}
	if p.ParentTol == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingParameter, ParentTolName))
	}
	if p.MinScore == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingParameter, MinScoreName))
	}
	return errors.Join(missing...)
}

// Map returns the parameters by name, for display
func (p *Params) Map() map[string]any {
	m := map[string]any{
		OutputFileName: p.OutputFile,
		ValidOnlyName:  p.ValidOnly,
		BCIDName:       p.BCID,
		VariantName:    p.Variant,
		ModsFileName:   p.ModsFile,
	}
	if p.FragmentTol != nil {
		m[FragmentTolName] = *p.FragmentTol
	}
	if p.ParentTol != nil {
		m[ParentTolName] = *p.ParentTol
	}
	if p.MinScore != nil {
		m[MinScoreName] = *p.MinScore
	}
	return m
}

// Float returns a pointer to v, for setting required parameters
func Float(v float64) *float64 {
	return &v
}
