package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoles(t *testing.T) {
	th := New(nil)
	assert.Equal(t, lipgloss.Color("#1a1a1a"), th.BG())
	assert.Equal(t, lipgloss.Color("#4cff82"), th.Accent())
	assert.Equal(t, th.Accent(), th.Value(127))
}

func TestLookup_Interpolates(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	assert.Equal(t, RGB{0, 0, 0}, p.Lookup(-1))
	assert.Equal(t, RGB{100, 50, 25}, p.Lookup(0.5))
	assert.Equal(t, RGB{200, 100, 50}, p.Lookup(2))
}

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.gpl")
	body := "GIMP Palette\nName: Mono\nColumns: 2\n# comment\n  0   0   0\tBlack\n255 255 255\tWhite\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Mono", p.Name)
	assert.Equal(t, []RGB{{0, 0, 0}, {255, 255, 255}}, p.Colors)
}

func TestParseGPL_SkipsBadRows(t *testing.T) {
	body := "GIMP Palette\n# three word comment\n300 0 0 too bright\n1 2\n10 20 30 Dark Slate Gray\n"
	p, err := parseGPL(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, []RGB{{10, 20, 30}}, p.Colors)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ccremote", p.Name)
}

func TestLoadGPL_NoColors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	require.NoError(t, os.WriteFile(path, []byte("GIMP Palette\n"), 0644))
	_, err := LoadGPL(path)
	assert.Error(t, err)
}
