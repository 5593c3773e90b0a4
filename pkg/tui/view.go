package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"soltabs/pkg/format"
	"soltabs/pkg/models"
	"soltabs/pkg/widget"
)

func (m model) View() string {
	if m.alert != "" {
		return m.viewAlert()
	}

	if m.showHelp {
		return m.viewHelp()
	}

	if m.adding {
		return lipgloss.Place(
			m.width,
			m.height,
			lipgloss.Center,
			lipgloss.Center,
			m.st.box.Render(lipgloss.JoinVertical(lipgloss.Left,
				m.st.title.Render("Add Token"),
				"\n",
				"Enter a Solana token mint address:",
				m.addInput.View(),
				"\n",
				m.st.subtle.Render("Enter to add • Esc to cancel"),
			)),
		)
	}

	if m.editingSettings {
		return m.viewSettings()
	}

	if m.showDetail {
		return m.viewDetail()
	}

	if m.showGraph {
		return m.viewGraph()
	}

	spinnerView := ""
	if m.loading || m.pending {
		spinnerView = m.spinner.View() + " "
	}
	lastUpd := "Last updated: --:--:--"
	if !m.lastUpdate.IsZero() {
		lastUpd = fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))
	}

	targetWidth := m.width - 4
	if targetWidth < 0 {
		targetWidth = 0
	}

	var content string
	rec, ok := m.activeRecord()
	switch {
	case m.loading && len(m.tabs) == 0:
		content = m.st.box.Width(targetWidth).Align(lipgloss.Center).Render("Restoring saved tabs...")
	case !ok:
		content = m.st.box.Width(targetWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center,
			m.st.title.Render("No token selected"),
			"\n",
			"Press 'a' to add a token by its mint address.",
			"\n",
			m.st.subtle.Render("Chart: "+widget.ChartURL("", m.chart)),
			m.st.subtle.Render("Swap:  "+m.session.SwapProps("").URL()),
		))
	default:
		content = m.st.box.Width(targetWidth).Align(lipgloss.Center).Render(m.viewToken(rec, targetWidth-4))
	}

	// Footer
	line1 := "a:add • x:close • tab:next • 1-9:jump • ent:details • g:graph • ?:help • q:quit"
	line2 := fmt.Sprintf("c:copy • o:chart • s:swap • O:settings • v%s", Version)

	var footer string
	if m.width > 0 {
		l1 := m.st.subtle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := m.st.subtle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = m.st.subtle.Render(line1 + "\n" + line2)
	}

	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, m.st.info.Render(m.statusMessage), footer)
	}

	leftBlock := m.st.title.Render("Solana Token Tabs")
	rightBlock := m.st.subtle.Render(fmt.Sprintf("%s%s ", spinnerView, lastUpd))
	gap := m.width - lipgloss.Width(leftBlock) - lipgloss.Width(rightBlock)
	if gap < 0 {
		gap = 0
	}
	topBar := lipgloss.JoinHorizontal(lipgloss.Top, leftBlock, strings.Repeat(" ", gap), rightBlock)
	tabBar := m.viewTabs()

	h := m.height - lipgloss.Height(topBar) - lipgloss.Height(tabBar)
	if h < 0 {
		h = 0
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBar,
		tabBar,
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

func (m model) viewTabs() string {
	if len(m.tabs) == 0 {
		return m.st.subtle.Render(" no tabs")
	}
	var cells []string
	for i, rec := range m.tabs {
		label := fmt.Sprintf("%d %s", i+1, tabLabel(rec))
		if rec.Address == m.active {
			cells = append(cells, m.st.activeTab.Render(label))
		} else {
			cells = append(cells, m.st.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, cells...)
}

func (m model) viewToken(rec models.TokenRecord, width int) string {
	name := rec.Name
	if name == "" {
		name = format.Placeholder
	}
	header := m.st.title.Render(fmt.Sprintf("%s (%s)", name, tabLabel(rec)))
	addr := m.st.subtle.Render(format.TruncatedAddress(rec.Address))

	price := format.Placeholder
	if rec.PriceData != nil {
		price = "$" + format.CurrencyString(rec.PriceData.Price, 2)
	}
	priceLine := m.st.price.Render(price)
	if change, ok := priceChange(m.history); ok {
		style := m.st.info
		sign := "+"
		if change < 0 {
			style = m.st.err
			sign = ""
		}
		priceLine += style.Render(fmt.Sprintf(" %s%s", sign, format.Percentage(change, 2)))
	}

	var rows []string
	for _, f := range format.Details(rec, time.Now()) {
		switch f.Label {
		case "Confidence", "Quote (Buy/Sell)", "Daily Volume":
			row := lipgloss.JoinHorizontal(lipgloss.Top, m.st.label.Render(f.Label), m.st.toneStyle(f.Tone).Render(f.Value))
			if f.Note != "" {
				row += "  " + m.st.subtle.Render(f.Note)
			}
			rows = append(rows, row)
		}
	}

	block := []string{header, addr, "\n", priceLine}
	if spark := m.sparkline(width); spark != "" {
		block = append(block, "\n", spark)
	}
	if len(rows) > 0 {
		block = append(block, "\n", strings.Join(rows, "\n"))
	}
	block = append(block, "\n",
		m.st.subtle.Render("Chart: "+chartText(widget.ChartURL(rec.Address, m.chart), width)),
		m.st.subtle.Render("Swap:  "+m.session.SwapProps(rec.Address).URL()),
	)
	return lipgloss.JoinVertical(lipgloss.Center, block...)
}

// sparkline is a one-row price graph for the main view.
func (m model) sparkline(width int) string {
	series := priceSeries(m.history)
	if len(series) < 2 {
		return ""
	}
	w := width - 12
	if w < 10 {
		w = 10
	}
	return asciigraph.Plot(series, asciigraph.Height(3), asciigraph.Width(w))
}

func (m model) viewGraph() string {
	rec, _ := m.activeRecord()
	header := m.st.title.Render(fmt.Sprintf("Price History: %s", tabLabel(rec)))

	targetBoxWidth := m.width - 4
	if targetBoxWidth < 0 {
		targetBoxWidth = 0
	}

	var graph, stats string
	series := priceSeries(m.history)
	if len(series) > 1 {
		min, max, sum := series[0], series[0], 0.0
		for _, v := range series {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		avg := sum / float64(len(series))
		stats = m.st.subtle.Render(fmt.Sprintf("Low: $%s • Avg: $%s • High: $%s • Samples: %d",
			format.Currency(min, 2), format.Currency(avg, 2), format.Currency(max, 2), len(series)))

		graphWidth := targetBoxWidth - 14
		if graphWidth < 10 {
			graphWidth = 10
		}
		graphHeight := m.height - 14
		if graphHeight < 1 {
			graphHeight = 1
		}
		graph = asciigraph.Plot(series,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("Price (USD) since the tab was opened"),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := m.st.box.Width(targetBoxWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", stats, "\n", graph))
	footer := m.st.subtle.Render("g/q/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewDetail() string {
	rec, _ := m.activeRecord()
	header := m.st.title.Render(fmt.Sprintf("Details: %s", tabLabel(rec)))
	footer := m.st.subtle.Render("↑/↓: scroll • c: copy address • enter/esc: back")

	content := m.st.box.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", m.viewport.View()))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func (m model) viewSettings() string {
	themeLabel := string(m.pendingTheme)
	if m.settingsFocus == 1 {
		themeLabel = fmt.Sprintf("< %s >", themeLabel)
	}
	keyLabel := "API Key"
	themeTitle := "Theme"
	if m.settingsFocus == 0 {
		keyLabel = "> " + keyLabel
	} else {
		themeTitle = "> " + themeTitle
	}

	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.st.box.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.st.title.Render("Settings"),
			"\n",
			fmt.Sprintf("%-10s %s", keyLabel, m.apiKeyInput.View()),
			fmt.Sprintf("%-10s %s", themeTitle, themeLabel),
			"\n",
			m.st.subtle.Render("Tab to switch field • Space to toggle theme • Enter to save • Esc to cancel"),
		)),
	)
}

func (m model) viewAlert() string {
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.st.box.Render(lipgloss.JoinVertical(lipgloss.Center,
			m.st.err.Render(m.alert),
			"\n",
			m.st.subtle.Render("Press Enter to dismiss"),
		)),
	)
}

func (m model) viewHelp() string {
	var title string
	var shortcuts []string

	if m.showDetail {
		title = "Detail View"
		shortcuts = []string{"↑/k: Scroll Up", "↓/j: Scroll Down", "c: Copy Address", "enter/esc/q: Close"}
	} else if m.showGraph {
		title = "Price History"
		shortcuts = []string{"g/q/esc: Back"}
	} else {
		title = "Main View"
		shortcuts = []string{
			"a or /: Add Token",
			"x or d: Close Active Tab",
			"Tab/l/Right: Next Tab",
			"S-Tab/h/Left: Prev Tab",
			"1-9: Jump to Tab",
			"enter: Show Details",
			"g: Price History",
			"c: Copy Address",
			"o: Open Chart in Browser",
			"s: Open Swap in Browser",
			"O: Settings",
			"q: Quit",
			"?: Toggle Help",
		}
	}

	header := m.st.title.Render(fmt.Sprintf("Help: %s", title))
	content := m.st.box.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := m.st.subtle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func chartText(url string, width int) string {
	if width < 20 {
		return url
	}
	return format.TruncateString(url, width-7)
}
