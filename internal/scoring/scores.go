package scoring

// Key identifies a (spectrum, candidate) pair
type Key struct {
	Spectrum int
	Kernel   int
}

// Scores holds the significance score of each scored pair.
// It is not modified after ScoreAll returns.
type Scores map[Key]float64

// Get returns the score of kernel kern for spectrum spec
func (s Scores) Get(spec, kern int) (float64, bool) {
	v, ok := s[Key{Spectrum: spec, Kernel: kern}]
	return v, ok
}
