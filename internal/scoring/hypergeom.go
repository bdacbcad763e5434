package scoring

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// MinProbability is the floor that replaces a hypergeometric probability
// of zero (or one that is too small to represent), so that the score stays
// finite.
const MinProbability = 1e-300

var log10MinProbability = math.Log10(MinProbability)

var (
	// ErrInvalidModel is returned for population, success or draw counts
	// that do not describe a hypergeometric distribution
	ErrInvalidModel   = errors.New("invalid hypergeometric model")
	errOutsideSupport = errors.New("observation outside support")
)

// hypergeomLog10PMF returns log10 of the probability of drawing exactly k
// successes in n draws without replacement from a population of size
// pop that holds succ successes. errOutsideSupport means the probability
// is zero.
func hypergeomLog10PMF(pop, succ, n, k int) (float64, error) {
	if pop <= 0 || succ < 0 || n < 0 || k < 0 || succ > pop || n > pop {
		return math.Inf(-1), ErrInvalidModel
	}
	// Support: max(0, n-(pop-succ)) <= k <= min(succ, n)
	if k > succ || k > n || n-k > pop-succ {
		return math.Inf(-1), errOutsideSupport
	}
	lnP := combin.LogGeneralizedBinomial(float64(succ), float64(k)) +
		combin.LogGeneralizedBinomial(float64(pop-succ), float64(n-k)) -
		combin.LogGeneralizedBinomial(float64(pop), float64(n))
	return lnP / math.Ln10, nil
}
