package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ccremote/controller"
	"ccremote/theme"
)

// FaderCells returns how many of width cells a 0-127 value fills
func FaderCells(value, width int) int {
	if width <= 0 {
		return 0
	}
	value = max(0, min(127, value))
	return (value*width + 63) / 127
}

// RenderFader renders value as a horizontal bar followed by the number
func RenderFader(th *theme.Theme, value, width int) string {
	n := FaderCells(value, width)
	fill := lipgloss.NewStyle().Foreground(th.Value(value))
	track := lipgloss.NewStyle().Foreground(th.Track())
	num := lipgloss.NewStyle().Foreground(th.FG())

	return fill.Render(strings.Repeat(string(th.Symbols.FaderFull), n)) +
		track.Render(strings.Repeat(string(th.Symbols.FaderEmpty), width-n)) +
		num.Render(fmt.Sprintf(" %3d", value))
}

// RenderToggle renders a two-state switch: "○ Cold ● Hot"
func RenderToggle(th *theme.Theme, on bool, options []string) string {
	off, onLabel := "Off", "On"
	if len(options) >= 2 {
		off, onLabel = options[0], options[1]
	}
	idx := 0
	if on {
		idx = 1
	}
	return RenderSelector(th, []string{off, onLabel}, idx)
}

// RenderSelector renders every option, marking the chosen one
func RenderSelector(th *theme.Theme, options []string, index int) string {
	chosen := lipgloss.NewStyle().Foreground(th.Accent())
	other := lipgloss.NewStyle().Foreground(th.Muted())

	parts := make([]string, len(options))
	for i, opt := range options {
		if i == index {
			parts[i] = chosen.Render(string(th.Symbols.On) + " " + opt)
		} else {
			parts[i] = other.Render(string(th.Symbols.Off) + " " + opt)
		}
	}
	return strings.Join(parts, " ")
}

// RenderParam renders one parameter row: cursor, label and control
func RenderParam(th *theme.Theme, p controller.Param, value int, selected bool, labelWidth, barWidth int) string {
	cursor := " "
	labelStyle := lipgloss.NewStyle().Foreground(th.Muted())
	if selected {
		cursor = lipgloss.NewStyle().Foreground(th.Accent()).Render(string(th.Symbols.Selected))
		labelStyle = lipgloss.NewStyle().Foreground(th.FG()).Bold(true)
	}

	var control string
	switch p.Type {
	case controller.Toggle:
		control = RenderToggle(th, p.OptionIndex(value) == 1, p.Options)
	case controller.Selector:
		control = RenderSelector(th, p.Options, p.OptionIndex(value))
	case controller.List:
		text := fmt.Sprintf("%3d", value)
		if len(p.Options) > 0 {
			text = p.Options[p.OptionIndex(value)]
		}
		control = lipgloss.NewStyle().Foreground(th.Accent()).Render(text)
	default:
		control = RenderFader(th, value, barWidth)
	}

	label := labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, truncate(p.Label, labelWidth)))
	cc := lipgloss.NewStyle().Foreground(th.Track()).Render(fmt.Sprintf("cc%-3d", p.CC))
	return fmt.Sprintf("%s %s %s %s", cursor, label, cc, control)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// RenderTabs renders section titles with the active one highlighted
func RenderTabs(th *theme.Theme, titles []string, active int) string {
	on := lipgloss.NewStyle().Foreground(th.BG()).Background(th.Accent()).Padding(0, 1)
	off := lipgloss.NewStyle().Foreground(th.Muted()).Padding(0, 1)

	parts := make([]string, len(titles))
	for i, t := range titles {
		if i == active {
			parts[i] = on.Render(t)
		} else {
			parts[i] = off.Render(t)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
