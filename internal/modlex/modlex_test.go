package modlex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	l := Default()
	assert.Equal(t, 15, l.Len())
	name, ok := l.Name(57021)
	assert.True(t, ok)
	assert.Equal(t, "Carbamidomethyl", name)
	name, ok = l.Name(-18011)
	assert.True(t, ok)
	assert.Equal(t, "Water-loss", name)
	_, ok = l.Name(57022)
	assert.False(t, ok)
	shifts := l.Shifts()
	assert.Equal(t, -18011, shifts[0])
	assert.Equal(t, 79966, shifts[len(shifts)-1])
}

func TestParse(t *testing.T) {
	in := "15995\tOxidation\n" +
		"\n" +
		"just-one-field\n" +
		"abc\tBroken\n" +
		" 229163 \tTMT6plex\textra\n"
	l, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 1, l.Skipped)
	name, ok := l.Name(229163)
	assert.True(t, ok)
	assert.Equal(t, "TMT6plex", name)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	require.NoError(t, err)
	assert.True(t, l.Fallback)
	assert.Equal(t, Default().Len(), l.Len())
	assert.Empty(t, l.Source)
}

func TestLoadUnreadableFallsBack(t *testing.T) {
	// A directory opens, but cannot be read
	l, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, l.Fallback)
	assert.Equal(t, Default().Len(), l.Len())

	// Line longer than the scanner buffer
	fn := filepath.Join(t.TempDir(), DefaultFile)
	long := "15995\t" + strings.Repeat("x", 100*1024) + "\n"
	require.NoError(t, os.WriteFile(fn, []byte(long), 0o644))
	l, err = Load(fn)
	require.NoError(t, err)
	assert.True(t, l.Fallback)
	name, ok := l.Name(57021)
	assert.True(t, ok)
	assert.Equal(t, "Carbamidomethyl", name)
}

func TestLoadWindows1252(t *testing.T) {
	fn := filepath.Join(t.TempDir(), DefaultFile)
	// 0xB1 is the plus-minus sign in Windows-1252, invalid as UTF-8
	content := []byte("1003\tIsotope \xb11\n57021\tCarbamidomethyl\n")
	require.NoError(t, os.WriteFile(fn, content, 0o644))

	l, err := Load(fn)
	require.NoError(t, err)
	assert.False(t, l.Fallback)
	assert.Equal(t, fn, l.Source)
	name, ok := l.Name(1003)
	require.True(t, ok)
	assert.Equal(t, "Isotope ±1", name)
}

func TestNilLexicon(t *testing.T) {
	var l *Lexicon
	_, ok := l.Name(15995)
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Shifts())
}
