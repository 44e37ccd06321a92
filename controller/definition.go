package controller

import "math"

// ParamType is how a parameter is presented
type ParamType string

const (
	Fader    ParamType = "fader"
	Toggle   ParamType = "toggle"
	Selector ParamType = "selector"
	List     ParamType = "list"
)

// Param is one CC-controlled parameter
type Param struct {
	Label   string    `yaml:"label"`
	CC      int       `yaml:"cc"`
	Type    ParamType `yaml:"type"`
	Options []string  `yaml:"options,omitempty"`
	Default *int      `yaml:"default,omitempty"`
}

// Section groups parameters under a title
type Section struct {
	Title  string  `yaml:"title"`
	Params []Param `yaml:"params"`
}

// Definition describes a controllable instrument
type Definition struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	DefaultChannel int       `yaml:"default_channel"`
	Sections       []Section `yaml:"sections"`
}

// Params returns every parameter in section order
func (d Definition) Params() []Param {
	var out []Param
	for _, s := range d.Sections {
		out = append(out, s.Params...)
	}
	return out
}

// Current is the value shown for p: the cached value once one has been sent
// or received, otherwise the declared default.
func (p Param) Current(s State) int {
	if v, ok := s.Values[p.CC]; ok {
		return v
	}
	if p.Default != nil {
		return max(0, min(*p.Default, 127))
	}
	return 0
}

// OptionIndex maps a 0-127 value to the selected option.
// Toggles switch at 64, selectors divide the range evenly,
// lists use the value as the index.
func (p Param) OptionIndex(value int) int {
	switch p.Type {
	case Toggle:
		if value >= 64 {
			return 1
		}
		return 0
	case Selector:
		if len(p.Options) < 2 {
			return 0
		}
		step := 127.0 / float64(len(p.Options)-1)
		return clampIndex(int(math.Round(float64(value)/step)), len(p.Options))
	case List:
		if len(p.Options) == 0 {
			return value
		}
		return clampIndex(value, len(p.Options))
	}
	return 0
}

// OptionValue is the CC value that selects option i
func (p Param) OptionValue(i int) int {
	switch p.Type {
	case Toggle:
		if i > 0 {
			return 127
		}
		return 0
	case Selector:
		if len(p.Options) < 2 {
			return 0
		}
		i = clampIndex(i, len(p.Options))
		step := 127.0 / float64(len(p.Options)-1)
		return int(math.Round(float64(i) * step))
	case List:
		return max(0, min(i, 127))
	}
	return max(0, min(i, 127))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func center() *int {
	v := 64
	return &v
}

// P6Granular is the built-in layout for the Roland P-6 granular engine
func P6Granular() Definition {
	return Definition{
		ID:             "p6-granular",
		Name:           "P-6 Granular Engine",
		DefaultChannel: 5,
		Sections: []Section{
			{
				Title: "Granular",
				Params: []Param{
					{Label: "Coarse Tune", CC: 76, Type: Fader},
					{Label: "Fine Tune", CC: 18, Type: Fader},
					{Label: "Detune", CC: 13, Type: Fader},
					{Label: "Grains", CC: 21, Type: Fader},
					{Label: "Grain Shape", CC: 15, Type: Fader},
					{Label: "Grain Size", CC: 23, Type: Fader},
					{Label: "Spread", CC: 25, Type: Fader},
					{Label: "Head Position", CC: 19, Type: Fader},
					{Label: "Head Speed", CC: 20, Type: Fader},
					{Label: "Grain Time Key Follow", CC: 16, Type: Fader},
					{Label: "Grain Rev Prob", CC: 3, Type: Fader},
					{Label: "Grain Timing Jitter", CC: 68, Type: Fader},
					{Label: "Start Mode", CC: 79, Type: Toggle, Options: []string{"Cold", "Hot"}},
					{Label: "Sample", CC: 88, Type: List},
					{Label: "Pattern", CC: 0, Type: List},
				},
			},
			{
				Title: "Filter",
				Params: []Param{
					{Label: "Cutoff Freq", CC: 74, Type: Fader},
					{Label: "Resonance", CC: 71, Type: Fader},
					{Label: "Envelope Depth", CC: 24, Type: Fader},
					{Label: "Key Follow", CC: 26, Type: Fader},
					{Label: "Velocity Sens", CC: 78, Type: Fader},
					{Label: "Filter Type", CC: 12, Type: Selector, Options: []string{"Off", "LPF", "BPF", "HPF", "Peak"}},
				},
			},
			{
				Title: "Amp Envelope",
				Params: []Param{
					{Label: "Attack", CC: 73, Type: Fader},
					{Label: "Decay", CC: 75, Type: Fader},
					{Label: "Sustain", CC: 30, Type: Fader},
					{Label: "Release", CC: 72, Type: Fader},
					{Label: "Env Mode", CC: 29, Type: Selector, Options: []string{"ADSR", "ADR", "Cyclic"}},
					{Label: "Time Key Follow", CC: 77, Type: Fader},
					{Label: "Amp Switch", CC: 28, Type: Toggle, Options: []string{"Off", "On"}},
				},
			},
			{
				Title: "Effects / Output",
				Params: []Param{
					{Label: "Lo-Fi Switch", CC: 87, Type: Toggle, Options: []string{"Off", "On"}},
					{Label: "Lo-Fi Intensity", CC: 17, Type: Fader},
					{Label: "Reverb Time", CC: 89, Type: Fader},
					{Label: "Reverb Level", CC: 91, Type: Fader},
					{Label: "Delay Time", CC: 90, Type: Fader},
					{Label: "Delay Level", CC: 92, Type: Fader},
					{Label: "Send Reverb", CC: 86, Type: Fader},
					{Label: "Send Delay", CC: 85, Type: Fader},
					{Label: "Output Bus", CC: 84, Type: Selector, Options: []string{"A", "B", "Effect"}},
					{Label: "Auto Pan", CC: 9, Type: Selector, Options: []string{"Off", "Alt", "Swing", "Rnd"}},
					{Label: "Pan", CC: 10, Type: Fader, Default: center()},
					{Label: "Level", CC: 7, Type: Fader},
					{Label: "Level Jitter", CC: 14, Type: Fader},
				},
			},
		},
	}
}
