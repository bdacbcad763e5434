// Package modlex maps modification mass shifts (integer mDa) to
// human readable names.
package modlex

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// DefaultFile is the name of the modification file that is used when
// no file is specified
const DefaultFile = `common_mods_md.txt`

// Lexicon maps mass shifts to names
type Lexicon struct {
	names    map[int]string
	Source   string // File the lexicon was read from, empty for the built-in table
	Skipped  int    // Lines in the source that could not be parsed
	Fallback bool   // The source was unavailable and the built-in table is used
}

// Built-in modifications, used if no modification file is available
var defaultMods = map[int]string{
	15995:  `Oxidation`,
	57021:  `Carbamidomethyl`,
	42011:  `Acetyl`,
	31990:  `Dioxidation`,
	28031:  `Dimethyl`,
	14016:  `Methyl`,
	984:    `Deamidation`,
	43006:  `Carbamyl`,
	79966:  `Phosphoryl`,
	-17027: `Ammonia-loss`,
	-18011: `Water-loss`,
	6020:   `Label:+6 Da`,
	10008:  `Label:+10 Da`,
	8014:   `Label:+8 Da`,
	4025:   `Label:+4 Da`,
}

// Default returns a lexicon with the built-in modifications
func Default() *Lexicon {
	l := Lexicon{names: make(map[int]string, len(defaultMods))}
	for k, v := range defaultMods {
		l.names[k] = v
	}
	return &l
}

// Parse reads a lexicon from r. Each line holds a mass shift in mDa and
// a name, separated by a tab. Lines with less than two fields are ignored,
// lines with an invalid mass are counted in Skipped.
func Parse(r io.Reader) (*Lexicon, error) {
	l := Lexicon{names: make(map[int]string)}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		shift, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			l.Skipped++
			continue
		}
		l.names[shift] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("modlex: read: %w", err)
	}
	return &l, nil
}

// Load reads the lexicon from file fn. The text encoding is detected
// (byte order mark, or Windows-1252 if the file is not valid UTF-8).
// If the file cannot be opened or read, a warning is logged and the
// built-in table is returned.
func Load(fn string) (*Lexicon, error) {
	f, err := os.Open(fn)
	if err != nil {
		return fallback(fn, err), nil
	}
	defer f.Close()

	r, err := charset.NewReader(f, `text/plain`)
	if err != nil {
		return fallback(fn, err), nil
	}
	l, err := Parse(r)
	if err != nil {
		return fallback(fn, err), nil
	}
	l.Source = fn
	if l.Skipped > 0 {
		log.Printf("Warning: %d invalid lines in %s", l.Skipped, fn)
	}
	return l, nil
}

func fallback(fn string, err error) *Lexicon {
	log.Printf("Warning: %s is not available so default values used (%v)", fn, err)
	l := Default()
	l.Fallback = true
	return l
}

// Name returns the name of the modification with the given mass shift
func (l *Lexicon) Name(shift int) (string, bool) {
	if l == nil {
		return ``, false
	}
	name, ok := l.names[shift]
	return name, ok
}

// Len returns the number of known modifications
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Shifts returns all known mass shifts in ascending order
func (l *Lexicon) Shifts() []int {
	shifts := make([]int, 0, l.Len())
	if l != nil {
		for k := range l.names {
			shifts = append(shifts, k)
		}
	}
	sort.Ints(shifts)
	return shifts
}
