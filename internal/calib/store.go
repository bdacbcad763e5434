package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Format of the calibration file, if it ever changes we should still be
// able to parse files from old versions
const FormatVersion = "1.0"

var ErrFormatVersion = errors.New("calib: unsupported calibration file version")

// Calibration is what is stored between the calibrate and select stages
type Calibration struct {
	MzScoreVersion string
	RunID          string
	ScoringVariant string
	MinScore       float64
	ParentTol      float64
	Low            int
	High           int
	Status         string
	PeakCount      int
	MinCount       int
	Histogram      Histogram `json:",omitempty"`
}

// NewCalibration packs a window and its histogram for storage
func NewCalibration(runID, variant string, opt Options, w Window, h Histogram) Calibration {
	return Calibration{
		MzScoreVersion: FormatVersion,
		RunID:          runID,
		ScoringVariant: variant,
		MinScore:       opt.MinScore,
		ParentTol:      opt.ParentTol,
		Low:            w.Low,
		High:           w.High,
		Status:         w.Status.String(),
		PeakCount:      w.PeakCount,
		MinCount:       w.MinCount,
		Histogram:      h,
	}
}

// Window restores the window from a stored calibration
func (c Calibration) Window() (Window, error) {
	w := Window{
		Low:       c.Low,
		High:      c.High,
		PeakCount: c.PeakCount,
		MinCount:  c.MinCount,
	}
	switch c.Status {
	case Unbounded.String():
		w.Status = Unbounded
	case Uncalibrated.String():
		w.Status = Uncalibrated
	case Calibrated.String():
		w.Status = Calibrated
	default:
		return w, fmt.Errorf("calib: invalid window status %q", c.Status)
	}
	return w, nil
}

// Encode writes the calibration as indented JSON
func (c Calibration) Encode(w io.Writer) error {
	e := json.NewEncoder(w)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	return e.Encode(c)
}

// Decode reads a calibration written by Encode
func Decode(r io.Reader) (Calibration, error) {
	var c Calibration
	d := json.NewDecoder(r)
	if err := d.Decode(&c); err != nil {
		return c, err
	}
	if c.MzScoreVersion != FormatVersion {
		return c, fmt.Errorf("%w: %q", ErrFormatVersion, c.MzScoreVersion)
	}
	return c, nil
}

// WriteFile stores the calibration in file fn
func (c Calibration) WriteFile(fn string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a calibration from file fn
func ReadFile(fn string) (Calibration, error) {
	f, err := os.Open(fn)
	if err != nil {
		return Calibration{}, err
	}
	defer f.Close()
	return Decode(f)
}
