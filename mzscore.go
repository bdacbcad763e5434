// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/524D/mzscore/internal/calib"
	"github.com/524D/mzscore/internal/config"
	"github.com/524D/mzscore/internal/modlex"
	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/report"
	"github.com/524D/mzscore/internal/scoring"
	"github.com/524D/mzscore/internal/selector"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Program name and version, stored in calibration files and the results
// database
const progName = "mzScore"

var progVersion = `Unknown`

var ErrRangeSpec = errors.New("invalid range specification")

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// Processing stages
const (
	stageAll = iota
	stageCalibrate
	stageSelect
	stageScore
)

// Command line parameters
type params struct {
	stage          int
	configFile     string
	jobFilename    string
	outFilename    string // TSV output, overrides "output file"
	calFilename    string // Filename where the JSON calibration will be written/read
	dbFilename     string // SQLite results database, empty for none
	plotFilename   string // PNG of the calibration histogram, empty for none
	modsFilename   string
	variant        string
	ppmWindow      string // User specified calibration window
	fragmentTol    float64
	parentTol      float64
	minScore       float64
	validOnly      bool
	bcid           bool
	workers        int
	verbose        bool
	quiet          bool
	verbosity      int  // Verbosity of progress messages (infoDefault...)
	debug          bool // Enable debug info (environment variable MZSCORE_DEBUG=1)
	debugSpecs     string
	cfg            *config.Params
	fixedWindow    *calib.Window
	scoringVariant scoring.Variant
}

// run holds the results of the stages that have been executed
type run struct {
	id         string
	started    time.Time
	job        psm.Job
	scores     scoring.Scores
	scoreSum   scoring.Summary
	hist       calib.Histogram
	window     calib.Window
	outcomes   []selector.Outcome
	selectStat *selector.Stats
}

// Parse string like "-12:6" into 2 values, -12 and 6
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12:"), the default is assigned
func parseIntRange(r string, min int, max int) (int, int, error) {
	re := regexp.MustCompile(`\s*(\-?\d*):(\-?\d*)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.Atoi(m[1])
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 3 && m[2] != "" {
		maxOut, _ = strconv.Atoi(m[2])
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

// Parse string like "-12.01e1:+6" into 2 values, -120.1 and 6.0
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12.01e1:"), the default is assigned
func parseFloat64Range(r string, min float64, max float64) (
	float64, float64, error) {
	re := regexp.MustCompile(`\s*([-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?):([-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.ParseFloat(m[1], 64)
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 4 && m[3] != "" {
		maxOut, _ = strconv.ParseFloat(m[3], 64)
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

func readJob(par *params) psm.Job {
	f, err := os.Open(par.jobFilename)
	if err != nil {
		log.Fatalf("Open: job file %v", err)
	}
	defer f.Close()
	job, err := psm.ReadJob(f)
	if err != nil {
		log.Fatalf("psm.ReadJob: error return %v", err)
	}
	if n := job.NumBadKernels(); n > 0 && par.verbosity != infoSilent {
		log.Printf("Warning: %d kernel records could not be decoded", n)
		if par.verbosity == infoVerbose {
			for _, err := range job.BadKernelErrors() {
				log.Println(err)
			}
		}
	}
	return job
}

// timed prints msg, runs f and prints the time it took, in verbose mode
func timed(par *params, msg string, f func()) {
	t := time.Now()
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s: ", msg)
	}
	f()
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
	}
}

// scoreJob reads the job and scores all candidates
func scoreJob(par *params) *run {
	r := run{
		id:      uuid.NewString(),
		started: time.Now(),
	}
	timed(par, "Reading job from "+par.jobFilename, func() {
		r.job = readJob(par)
	})
	timed(par, "Scoring candidates", func() {
		e := scoring.NewEngine(par.scoringVariant, *par.cfg.FragmentTol)
		e.Workers = par.workers
		r.scores, r.scoreSum = e.ScoreAll(&r.job)
	})
	if r.scoreSum.Degenerate > 0 && par.verbosity != infoSilent {
		log.Printf("Warning: probability of %d matches below %g, score capped",
			r.scoreSum.Degenerate, scoring.MinProbability)
	}
	debugLogScores(&r, par)
	return &r
}

func calibOptions(par *params) calib.Options {
	return calib.Options{
		ParentTol: *par.cfg.ParentTol,
		MinScore:  *par.cfg.MinScore,
	}
}

// calibrate computes the window of accepted parent mass errors
func calibrate(r *run, par *params) {
	if par.fixedWindow != nil {
		r.window = *par.fixedWindow
		return
	}
	timed(par, "Computing calibration window", func() {
		r.hist = calib.BuildHistogram(&r.job, r.scores, calibOptions(par))
		r.window = calib.FindLimits(r.hist)
	})
	if par.verbosity == infoVerbose {
		printHistogram(os.Stderr, r.hist, r.window)
	}
	if par.verbosity != infoSilent && r.window.Status != calib.Calibrated {
		log.Printf("Warning: insufficient data for calibration, using window %s", r.window)
	}
	if par.plotFilename != `` {
		err := calib.PlotHistogram(r.hist, r.window, par.plotFilename)
		if err != nil {
			log.Printf("Warning: calibration plot not written: %v", err)
		}
	}
}

// printHistogram prints each bin as ppm, percentage of the peak bin and
// count, followed by the window bounds
func printHistogram(w io.Writer, h calib.Histogram, win calib.Window) {
	peak := h.Peak()
	if peak == 0 {
		return
	}
	for _, k := range h.Keys() {
		fmt.Fprintf(w, "%d %.1f %d\n", k, 100.0*float64(h[k])/float64(peak), h[k])
	}
	fmt.Fprintln(w, win.Low, win.High)
}

func writeCalibration(r *run, par *params) error {
	h := r.hist
	// The full histogram is only needed for checking the calibration
	if !par.debug {
		h = nil
	}
	c := calib.NewCalibration(r.id, par.scoringVariant.Name, calibOptions(par), r.window, h)
	return c.WriteFile(par.calFilename)
}

func readCalibration(r *run, par *params) {
	c, err := calib.ReadFile(par.calFilename)
	if err != nil {
		log.Fatalf("readCalibration: error return %v", err)
	}
	if c.ScoringVariant != par.scoringVariant.Name && par.verbosity != infoSilent {
		log.Printf("Warning: calibration was computed with scoring variant %s, now using %s",
			c.ScoringVariant, par.scoringVariant.Name)
	}
	r.window, err = c.Window()
	if err != nil {
		log.Fatalf("readCalibration: %v", err)
	}
	if c.RunID != `` {
		r.id = c.RunID
	}
}

// selectMatches applies the calibration window and score threshold
func selectMatches(r *run, par *params) {
	var lex *modlex.Lexicon
	timed(par, "Reading modifications", func() {
		var err error
		lex, err = modlex.Load(par.modsFilename)
		if err != nil {
			log.Fatalf("modlex.Load: %v", err)
		}
	})
	if lex.Skipped > 0 && par.verbosity != infoSilent {
		log.Printf("Warning: %d lines of %s could not be parsed", lex.Skipped, lex.Source)
	}
	opt := selector.Options{
		Window:    r.window,
		MinScore:  *par.cfg.MinScore,
		ValidOnly: par.cfg.ValidOnly,
		Lexicon:   lex,
		Workers:   par.workers,
	}
	timed(par, "Selecting matches", func() {
		r.outcomes, r.selectStat = selector.Run(&r.job, r.scores, opt)
	})
	debugLogSelection(r, par)
}

// writeResults writes the accepted matches and prints the summary.
// Failure to write one destination does not prevent the others.
func writeResults(r *run, par *params) {
	if par.verbosity != infoSilent {
		fmt.Printf("     storing results in \"%s\"\n", par.cfg.OutputFile)
		if len(r.job.Stats) > 0 {
			report.PrintJobStats(os.Stdout, r.job.Stats)
		}
	}
	timed(par, "Writing results", func() {
		err := report.WriteTSVFile(par.cfg.OutputFile, &r.job, r.outcomes, par.cfg.BCID)
		if err != nil {
			log.Printf("Error: %v", err)
		}
	})
	if par.dbFilename != `` {
		timed(par, "Writing results database", func() {
			if err := writeDB(r, par); err != nil {
				log.Printf("Error: %v", err)
			}
		})
	}
	if par.verbosity != infoSilent {
		s := report.Summary{
			OutputFile: par.cfg.OutputFile,
			Stats:      r.selectStat,
			Scoring:    r.scoreSum,
		}
		s.Print(os.Stdout)
	}
}

func writeDB(r *run, par *params) error {
	db, err := report.OpenResultsDB(par.dbFilename)
	if err != nil {
		return err
	}
	defer db.Close()
	info := report.RunInfo{
		ID:             r.id,
		Started:        r.started,
		ScoringVariant: par.scoringVariant.Name,
		MinScore:       *par.cfg.MinScore,
		Window:         r.window,
	}
	return db.WriteRun(info, &r.job, r.outcomes)
}

// loadConfig reads the configuration file (if any) and applies command
// line overrides
func loadConfig(cmd *cobra.Command, par *params) error {
	cfg := &config.Params{}
	if par.configFile != `` {
		var err error
		cfg, err = config.Load(par.configFile)
		if err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("fragment-tol") {
		cfg.FragmentTol = config.Float(par.fragmentTol)
	}
	if flags.Changed("parent-tol") {
		cfg.ParentTol = config.Float(par.parentTol)
	}
	if flags.Changed("min-score") {
		cfg.MinScore = config.Float(par.minScore)
	}
	if flags.Changed("valid-only") {
		cfg.ValidOnly = par.validOnly
	}
	if flags.Changed("bcid") {
		cfg.BCID = par.bcid
	}
	if flags.Changed("variant") {
		cfg.Variant = par.variant
	}
	if flags.Changed("mods") {
		cfg.ModsFile = par.modsFilename
	}
	if par.outFilename != `` {
		cfg.OutputFile = par.outFilename
	}
	par.cfg = cfg
	return cfg.Validate()
}

// sanatizeParams does some checks on parameters, and fills missing
// filenames if possible
func sanatizeParams(cmd *cobra.Command, par *params, args []string) error {
	par.jobFilename = args[0]
	var extension = filepath.Ext(par.jobFilename)
	var startName = par.jobFilename[0 : len(par.jobFilename)-len(extension)]

	if err := loadConfig(cmd, par); err != nil {
		return err
	}
	if par.stage == stageScore && par.outFilename == `` {
		par.cfg.OutputFile = startName + "-scores.tsv"
	}
	if par.cfg.OutputFile == `` {
		par.cfg.OutputFile = startName + ".tsv"
	}
	if par.calFilename == `` {
		par.calFilename = startName + "-cal.json"
	}
	par.modsFilename = par.cfg.ModsFile
	if par.modsFilename == `` {
		par.modsFilename = modlex.DefaultFile
	}

	var err error
	par.scoringVariant, err = scoring.VariantByName(par.cfg.Variant)
	if err != nil {
		return err
	}
	if par.ppmWindow != `` {
		if !strings.Contains(par.ppmWindow, ":") {
			return fmt.Errorf("invalid ppm window %q: %w", par.ppmWindow, ErrRangeSpec)
		}
		low, high, err := parseFloat64Range(par.ppmWindow, -math.MaxInt32, math.MaxInt32)
		if err != nil {
			return fmt.Errorf("invalid ppm window %q: %w", par.ppmWindow, err)
		}
		w := calib.Fixed(int(math.Floor(low)), int(math.Ceil(high)))
		par.fixedWindow = &w
	}
	if par.debugSpecs != `` {
		if _, _, err := parseIntRange(par.debugSpecs, 0, math.MaxInt32); err != nil {
			return fmt.Errorf("invalid debug range %q: %w", par.debugSpecs, err)
		}
	}
	if par.verbose {
		par.verbosity = infoVerbose
	}
	if par.quiet {
		par.verbosity = infoSilent
	}
	// Check if debug output should be enabled
	par.debug = os.Getenv("MZSCORE_DEBUG") == `1`
	if par.verbosity != infoSilent {
		report.PrintParams(os.Stdout, par.cfg.Map())
	}
	return nil
}

func runStage(par *params) {
	switch par.stage {
	case stageScore:
		r := scoreJob(par)
		err := report.WriteScoreFile(par.cfg.OutputFile, &r.job, r.scores)
		if err != nil {
			log.Fatalf("WriteScoreFile: error return %v", err)
		}
	case stageCalibrate:
		r := scoreJob(par)
		calibrate(r, par)
		if err := writeCalibration(r, par); err != nil {
			log.Fatalf("writeCalibration: error return %v", err)
		}
	case stageSelect:
		r := scoreJob(par)
		if par.fixedWindow != nil {
			r.window = *par.fixedWindow
		} else {
			readCalibration(r, par)
		}
		selectMatches(r, par)
		writeResults(r, par)
	default:
		r := scoreJob(par)
		calibrate(r, par)
		selectMatches(r, par)
		writeResults(r, par)
	}
}

func newRootCmd() *cobra.Command {
	var par params

	stageRun := func(stage int) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			par.stage = stage
			if err := sanatizeParams(cmd, &par, args); err != nil {
				return err
			}
			runStage(&par)
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:   "mzscore [flags] <job file>",
		Short: "Score, calibrate and select peptide-spectrum matches",
		Long: `mzscore computes a hypergeometric significance score for each candidate
peptide of each spectrum in a search job, derives the window of acceptable
parent mass errors (ppm) from the best scoring matches and writes the
matches that fall inside this window.

ENVIRONMENT VARIABLES:
    When environment variable MZSCORE_DEBUG=1, the calibration file also
    contains the parent mass error histogram.`,
		Example: `  mzscore --config mzscore.yaml yeast.json
    Score, calibrate and select, write matches to yeast.tsv

  mzscore calibrate --config mzscore.yaml --plot yeast-cal.png yeast.json
  mzscore select --config mzscore.yaml --db results.db yeast.json
    Idem, in two stages. The calibration is stored in yeast-cal.json`,
		Version:      progVersion,
		Args:         cobra.ExactArgs(1),
		RunE:         stageRun(stageAll),
		SilenceUsage: true,
	}

	calibrateCmd := &cobra.Command{
		Use:   "calibrate [flags] <job file>",
		Short: "Only compute the calibration window",
		Args:  cobra.ExactArgs(1),
		RunE:  stageRun(stageCalibrate),
	}
	selectCmd := &cobra.Command{
		Use:   "select [flags] <job file>",
		Short: "Select matches using a previously computed calibration",
		Args:  cobra.ExactArgs(1),
		RunE:  stageRun(stageSelect),
	}
	scoreCmd := &cobra.Command{
		Use:   "score [flags] <job file>",
		Short: "Only score the candidates, write a table of scores",
		Args:  cobra.ExactArgs(1),
		RunE:  stageRun(stageScore),
	}
	rootCmd.AddCommand(scoreCmd, calibrateCmd, selectCmd)
	rootCmd.SetVersionTemplate(progName + " version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&par.configFile, "config", "", "YAML `file` with run parameters")
	pf.StringVarP(&par.outFilename, "out", "o", "", "`filename` of TSV output (default <job>.tsv)")
	pf.StringVar(&par.calFilename, "cal", "", "`filename` of calibration window (default <job>-cal.json)")
	pf.StringVar(&par.dbFilename, "db", "", "SQLite `file` to store accepted matches in")
	pf.StringVar(&par.plotFilename, "plot", "", "PNG `file` for the parent mass error histogram")
	pf.StringVar(&par.modsFilename, "mods", "", "modification names `file` (default "+modlex.DefaultFile+")")
	pf.StringVar(&par.variant, "variant", "", "scoring `variant`: capped (default) or adjusted")
	pf.StringVar(&par.ppmWindow, "ppm-window", "", "use fixed parent mass error `range` (ppm) instead of calibrating, e.g. -5:5")
	pf.Float64Var(&par.fragmentTol, "fragment-tol", 0, "fragment mass tolerance")
	pf.Float64Var(&par.parentTol, "parent-tol", 0, "parent mass tolerance (mDa)")
	pf.Float64Var(&par.minScore, "min-score", 0, "score threshold")
	pf.BoolVar(&par.validOnly, "valid-only", false, "only output spectra with valid matches")
	pf.BoolVar(&par.bcid, "bcid", false, "add a content hash (bcid) to each match")
	pf.IntVar(&par.workers, "workers", 0, "number of concurrent workers (default number of CPUs)")
	pf.BoolVar(&par.verbose, "verbose", false, "Print more verbose progress information")
	pf.BoolVar(&par.quiet, "quiet", false, "Don't print any output except for errors")
	pf.StringVar(&par.debugSpecs, "debug", "", "Print debug output for given spectrum `range` e.g. 3:6")
	return rootCmd
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(2)
	}
}
