package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Faders
	FaderFull  rune // █ filled track
	FaderEmpty rune // ░ empty track

	// Toggles and selectors
	On       rune // ● on / chosen option
	Off      rune // ○ off / other option
	Selected rune // ▶ selected row

	// Connection status
	Connected    rune // ◉
	Disconnected rune // ◌
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			FaderFull:  '█',
			FaderEmpty: '░',

			On:       '●',
			Off:      '○',
			Selected: '▶',

			Connected:    '◉',
			Disconnected: '◌',
		},
	}
}

// Color roles mapped to palette positions (0-1). The default palette has
// one color per role in this order.
const (
	RoleBG      = 0.0 // near black
	RoleSurface = 0.2 // panel
	RoleTrack   = 0.4 // fader track
	RoleMuted   = 0.6 // labels, help
	RoleFG      = 0.8 // text
	RoleAccent  = 1.0 // green: values, selection
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) Surface() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSurface))
}

func (t *Theme) Track() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleTrack))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// Value colors a CC value along the palette, so higher values read brighter
func (t *Theme) Value(v int) lipgloss.Color {
	return t.Color(RoleTrack + (RoleAccent-RoleTrack)*float64(v)/127)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(Hex(c))
}

// Hex formats c as #rrggbb
func Hex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
