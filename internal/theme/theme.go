// Package theme holds the lipgloss styles used to print results and
// metadata listings, so the whole palette can be swapped from config.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds one lipgloss.Style per printed element.
type Theme struct {
	Name string

	// Tables
	Border lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Null   lipgloss.Style

	// Messages
	Status  lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

type palette struct {
	border, header, cell, null string
	status, err, warning, muted string
}

func build(name string, p palette) *Theme {
	return &Theme{
		Name: name,

		Border: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.border)),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.header)).
			Padding(0, 1),
		Cell: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.cell)).
			Padding(0, 1),
		Null: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color(p.null)).
			Padding(0, 1),

		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.status)),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.err)),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.warning)),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.muted)),
	}
}

// newDefaultTheme is tuned for dark terminal backgrounds.
func newDefaultTheme() *Theme {
	return build("default", palette{
		border:  "#3C3C3C",
		header:  "#569CD6",
		cell:    "#D4D4D4",
		null:    "#808080",
		status:  "#6A9955",
		err:     "#F44747",
		warning: "#CCA700",
		muted:   "#808080",
	})
}

func newLightTheme() *Theme {
	return build("light", palette{
		border:  "#D4D4D4",
		header:  "#0451A5",
		cell:    "#1E1E1E",
		null:    "#A0A0A0",
		status:  "#008000",
		err:     "#CD3131",
		warning: "#795E26",
		muted:   "#A0A0A0",
	})
}

func newMonokaiTheme() *Theme {
	return build("monokai", palette{
		border:  "#49483E",
		header:  "#F92672",
		cell:    "#F8F8F2",
		null:    "#75715E",
		status:  "#A6E22E",
		err:     "#F92672",
		warning: "#E6DB74",
		muted:   "#75715E",
	})
}

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": newDefaultTheme(),
	"light":   newLightTheme(),
	"monokai": newMonokaiTheme(),
}

// Current is the active theme. It starts as Default.
var Current = Themes["default"]

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name, falling back to the default
// theme for unknown names.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names lists the registered theme names in a stable order.
func Names() []string {
	return []string{"default", "light", "monokai"}
}
