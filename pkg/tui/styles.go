package tui

import (
	"soltabs/pkg/models"

	"github.com/charmbracelet/lipgloss"
)

type palette struct {
	subtle    lipgloss.Color
	text      lipgloss.Color
	accent    lipgloss.Color
	border    lipgloss.Color
	positive  lipgloss.Color
	negative  lipgloss.Color
	warning   lipgloss.Color
	tabActive lipgloss.Color
}

var (
	darkPalette = palette{
		subtle:    lipgloss.Color("241"),
		text:      lipgloss.Color("#FAFAFA"),
		accent:    lipgloss.Color("#7D56F4"),
		border:    lipgloss.Color("#874BFD"),
		positive:  lipgloss.Color("#04B575"),
		negative:  lipgloss.Color("#FF5F5F"),
		warning:   lipgloss.Color("#E5C07B"),
		tabActive: lipgloss.Color("#14F195"),
	}
	lightPalette = palette{
		subtle:    lipgloss.Color("245"),
		text:      lipgloss.Color("#1A1A1A"),
		accent:    lipgloss.Color("#9945FF"),
		border:    lipgloss.Color("#6C3FC4"),
		positive:  lipgloss.Color("#00875A"),
		negative:  lipgloss.Color("#C62828"),
		warning:   lipgloss.Color("#B7791F"),
		tabActive: lipgloss.Color("#00A86B"),
	}
)

// --- Styles ---
type styles struct {
	subtle    lipgloss.Style
	title     lipgloss.Style
	info      lipgloss.Style
	err       lipgloss.Style
	warn      lipgloss.Style
	box       lipgloss.Style
	label     lipgloss.Style
	price     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
}

func newStyles(theme models.Theme) styles {
	p := darkPalette
	if theme == models.ThemeLight {
		p = lightPalette
	}
	return styles{
		subtle: lipgloss.NewStyle().Foreground(p.subtle),
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(p.accent).
			Padding(0, 1).
			Bold(true),
		info: lipgloss.NewStyle().Foreground(p.positive),
		err:  lipgloss.NewStyle().Foreground(p.negative),
		warn: lipgloss.NewStyle().Foreground(p.warning),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		label: lipgloss.NewStyle().Foreground(p.subtle).Width(24),
		price: lipgloss.NewStyle().Foreground(p.positive).Bold(true),
		tab: lipgloss.NewStyle().
			Foreground(p.text).
			Padding(0, 1),
		activeTab: lipgloss.NewStyle().
			Foreground(p.tabActive).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(p.tabActive).
			Padding(0, 1).
			Bold(true),
	}
}

// toneStyle colors a detail row by its tone.
func (s styles) toneStyle(tone string) lipgloss.Style {
	switch tone {
	case "price":
		return s.price
	case "confidence-high":
		return s.info
	case "confidence-medium":
		return s.warn
	case "confidence-low":
		return s.err
	}
	return lipgloss.NewStyle()
}
