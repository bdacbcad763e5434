package report

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/524D/mzscore/internal/calib"
	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/selector"

	_ "modernc.org/sqlite"
)

// ResultsDB stores accepted matches of one or more runs in SQLite
type ResultsDB struct {
	db *sql.DB
}

// RunInfo describes a run in the runs table
type RunInfo struct {
	ID             string
	Started        time.Time
	ScoringVariant string
	MinScore       float64
	Window         calib.Window
}

// OpenResultsDB opens (or creates) the database at path and ensures the
// schema exists
func OpenResultsDB(path string) (*ResultsDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("results db: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("results db: schema: %w", err)
	}
	return &ResultsDB{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started INTEGER,
    scoring_variant TEXT,
    min_score REAL,
    ppm_low INTEGER,
    ppm_high INTEGER,
    window_status TEXT
);
CREATE TABLE IF NOT EXISTS psms (
    run_id TEXT NOT NULL REFERENCES runs(id),
    spectrum INTEGER,
    kernel INTEGER,
    rank INTEGER,
    charge INTEGER,
    protein TEXT,
    sequence TEXT,
    modifications TEXT,
    score REAL,
    delta_da REAL,
    ppm REAL,
    isotope INTEGER
);
CREATE INDEX IF NOT EXISTS psms_run_spectrum ON psms(run_id, spectrum);`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database
func (r *ResultsDB) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// WriteRun stores the run and all its accepted matches in a single
// transaction
func (r *ResultsDB) WriteRun(info RunInfo, job *psm.Job, outcomes []selector.Outcome) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("results db: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, started, scoring_variant, min_score, ppm_low, ppm_high, window_status)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Started.UTC().Unix(), info.ScoringVariant, info.MinScore,
		info.Window.Low, info.Window.High, info.Window.Status.String())
	if err != nil {
		return fmt.Errorf("results db: insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO psms (run_id, spectrum, kernel, rank, charge, protein, sequence,
modifications, score, delta_da, ppm, isotope) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("results db: prepare: %w", err)
	}
	defer stmt.Close()

	for _, out := range outcomes {
		spec := job.Spectra[out.Spectrum]
		for _, m := range out.Matches {
			kern, ok := job.Kernel(m.Kernel)
			if !ok {
				continue
			}
			var mods strings.Builder
			for _, mod := range m.Mods {
				mods.WriteString(mod.String())
			}
			_, err := stmt.Exec(info.ID, out.Spectrum, m.Kernel, m.Rank, spec.PZ,
				kern.DisplayLabel(), kern.Seq, mods.String(), m.Score, m.DeltaDa, m.PPM,
				boolToInt(m.Isotope))
			if err != nil {
				return fmt.Errorf("results db: insert psm: %w", err)
			}
		}
	}
	return tx.Commit()
}

// CountPSMs returns the number of stored matches of a run
func (r *ResultsDB) CountPSMs(runID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM psms WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
