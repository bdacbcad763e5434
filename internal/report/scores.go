package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/524D/mzscore/internal/psm"
	"github.com/524D/mzscore/internal/scoring"
)

// WriteScoreTable writes the score of every scored candidate, in
// spectrum and rank order
func WriteScoreTable(w io.Writer, job *psm.Job, scores scoring.Scores) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "spectrum\tkernel\trank\tdecoy\tscore")
	for _, specID := range job.SpectrumIDs() {
		for rank, k := range job.IDs[specID] {
			score, ok := scores.Get(specID, k)
			if !ok {
				continue
			}
			decoy := 0
			if kern, ok := job.Kernel(k); ok && kern.IsDecoy() {
				decoy = 1
			}
			fmt.Fprintf(bw, "%d\t%d\t%d\t%d\t%.3f\n", specID+1, k, rank, decoy, score)
		}
	}
	return bw.Flush()
}

// WriteScoreFile writes the score table to file fn
func WriteScoreFile(fn string, job *psm.Job, scores scoring.Scores) error {
	f, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("score file %q could not be opened: %w", fn, err)
	}
	if err := WriteScoreTable(f, job, scores); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
