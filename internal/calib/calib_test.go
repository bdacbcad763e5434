package calib

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/scoring"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLimits(t *testing.T) {
	tests := []struct {
		name string
		h    Histogram
		want Window
	}{
		{
			name: "empty",
			h:    Histogram{},
			want: Window{Status: Unbounded},
		},
		{
			name: "too few matches, full range",
			h:    Histogram{-12: 1, -3: 40, 0: 199, 2: 50, 9: 1},
			want: Window{Low: -12, High: 9, Status: Uncalibrated, PeakCount: 199},
		},
		{
			name: "single dominant bin",
			h:    Histogram{-4: 2, -1: 1, 0: 250, 3: 2, 7: 1},
			want: Window{Low: 0, High: 0, Status: Calibrated, PeakCount: 250, MinCount: 3},
		},
		{
			name: "skewed distribution",
			h: Histogram{-20: 3, -8: 4, -5: 10, -4: 20, -3: 40, -2: 120, -1: 300,
				0: 400, 1: 310, 2: 100, 3: 5, 4: 3, 11: 4, 30: 1},
			want: Window{Low: -8, High: 11, Status: Calibrated, PeakCount: 400, MinCount: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindLimits(tt.h)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindLimits() mismatch (-want +got):\n%s", diff)
			}
			if got.Low > got.High {
				t.Errorf("Low %d > High %d", got.Low, got.High)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Low: -5, High: 5, Status: Calibrated}
	assert.True(t, w.Contains(1.33))
	assert.True(t, w.Contains(-5))
	assert.True(t, w.Contains(5))
	assert.False(t, w.Contains(5.01))
	assert.False(t, w.Contains(837.5))
	assert.True(t, Window{}.Contains(1e9))
	assert.Equal(t, Window{Low: -3, High: 4, Status: Calibrated}, Fixed(4, -3))
}

func TestPPM(t *testing.T) {
	assert.Equal(t, 1, PPM(2, 1500000))
	assert.Equal(t, -2, PPM(-3, 1500000))
	assert.Equal(t, 10, PPM(15, 1500000))
}

func calibJob() (psm.Job, scoring.Scores) {
	spectra := map[int]psm.Spectrum{}
	ids := map[int][]int{}
	kernels := []psm.Kernel{
		{Label: "target", Seq: "PEPTIDE", PM: 1500000},
		{Label: "decoy-target", Seq: "EDITPEP", PM: 1500000},
		{Label: "target2", Seq: "PEPTIDE", PM: 1400000},
	}
	scores := scoring.Scores{}
	// Spectrum i has parent mass 1500000+delta
	deltas := []int{3, 3, 0, -6, 45, 3, 0}
	for i, d := range deltas {
		spectra[i] = psm.Spectrum{PM: 1500000 + d, PZ: 2}
		ids[i] = []int{0, 2}
		scores[scoring.Key{Spectrum: i, Kernel: 0}] = 300
		scores[scoring.Key{Spectrum: i, Kernel: 2}] = 900
	}
	// Low score
	scores[scoring.Key{Spectrum: 5, Kernel: 0}] = 150
	// Top ranked is a decoy
	spectra[7] = psm.Spectrum{PM: 1500001, PZ: 2}
	ids[7] = []int{1, 0}
	scores[scoring.Key{Spectrum: 7, Kernel: 1}] = 1000
	scores[scoring.Key{Spectrum: 7, Kernel: 0}] = 1000
	// No candidates
	spectra[8] = psm.Spectrum{PM: 1500001, PZ: 2}
	ids[8] = nil
	// No score for top candidate
	spectra[9] = psm.Spectrum{PM: 1500001, PZ: 2}
	ids[9] = []int{2}

	job := psm.NewJob(spectra, kernels, ids, map[int]int{})
	return job, scores
}

func TestBuildHistogram(t *testing.T) {
	job, scores := calibJob()
	h := BuildHistogram(&job, scores, Options{ParentTol: 20, MinScore: 200})
	// deltas 3,3,0,-6 with 45 outside tolerance and spectrum 5 below threshold
	want := Histogram{2: 2, 0: 2, -4: 1}
	// 3 mDa / 1500003 mDa = 2.0 ppm, -6 / 1499994 = -4.0 ppm
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("BuildHistogram() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoysNeverCounted(t *testing.T) {
	kernels := []psm.Kernel{{Label: "decoy-x", Seq: "PEPTIDE", PM: 1000000}}
	spectra := map[int]psm.Spectrum{}
	ids := map[int][]int{}
	scores := scoring.Scores{}
	for i := 0; i < 500; i++ {
		spectra[i] = psm.Spectrum{PM: 1000000}
		ids[i] = []int{0}
		scores[scoring.Key{Spectrum: i, Kernel: 0}] = 5000
	}
	job := psm.NewJob(spectra, kernels, ids, nil)
	h := BuildHistogram(&job, scores, Options{ParentTol: 100, MinScore: 0})
	assert.Empty(t, h)
	assert.Equal(t, Unbounded, FindLimits(h).Status)
}

func TestCalibrationRoundTrip(t *testing.T) {
	h := Histogram{-1: 100, 0: 250, 1: 90}
	w := FindLimits(h)
	c := NewCalibration("run-1", "capped", Options{ParentTol: 20, MinScore: 200}, w, h)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	got, err := Decode(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}
	gw, err := got.Window()
	require.NoError(t, err)
	assert.Equal(t, w, gw)

	fn := filepath.Join(t.TempDir(), "cal.json")
	require.NoError(t, c.WriteFile(fn))
	fromFile, err := ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, c.Low, fromFile.Low)

	c.MzScoreVersion = "0.1"
	buf.Reset()
	require.NoError(t, c.Encode(&buf))
	_, err = Decode(&buf)
	assert.True(t, errors.Is(err, ErrFormatVersion))

	c.MzScoreVersion = FormatVersion
	c.Status = "bogus"
	_, err = c.Window()
	assert.Error(t, err)
}

func TestPlotHistogram(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "hist.png")
	err := PlotHistogram(Histogram{}, Window{}, fn)
	assert.ErrorIs(t, err, ErrEmptyHistogram)

	h := Histogram{-3: 5, 0: 250, 2: 40}
	require.NoError(t, PlotHistogram(h, FindLimits(h), fn))
	fi, err := os.Stat(fn)
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(0))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "calibrated", Calibrated.String())
	assert.Equal(t, "Status(9)", Status(9).String())
	assert.Equal(t, "(unbounded)", Window{}.String())
}
