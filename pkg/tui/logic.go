package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"soltabs/pkg/format"
	"soltabs/pkg/jupiter"
	"soltabs/pkg/models"
	"soltabs/pkg/session"
	"soltabs/pkg/solana"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func listenForSession(sub session.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return sessionClosedMsg{}
		}
		return ev
	}
}

// syncFromSession copies the controller state into the model.
func (m *model) syncFromSession() {
	m.tabs = m.session.Tabs()
	m.active, _ = m.session.Active()
	m.history = nil
	if m.active != "" {
		m.history = m.session.History(m.active)
	}
	m.lastUpdate = time.Now()
	if m.showDetail {
		m.updateDetailViewport()
	}
}

func (m model) activeRecord() (models.TokenRecord, bool) {
	for _, rec := range m.tabs {
		if rec.Address == m.active {
			return rec, true
		}
	}
	return models.TokenRecord{}, false
}

func (m model) activeIndex() int {
	for i, rec := range m.tabs {
		if rec.Address == m.active {
			return i
		}
	}
	return -1
}

// neighbor returns the tab delta positions away from the active one, wrapping.
func (m model) neighbor(delta int) (string, bool) {
	if len(m.tabs) == 0 {
		return "", false
	}
	idx := m.activeIndex()
	if idx < 0 {
		return m.tabs[0].Address, true
	}
	n := len(m.tabs)
	next := ((idx+delta)%n + n) % n
	return m.tabs[next].Address, true
}

// alertFor maps a failed add to the message shown to the user.
func alertFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jupiter.ErrNotFound), errors.Is(err, solana.ErrInvalidAddress):
		return alertNotFound
	}
	return alertFetchError
}

func tabLabel(rec models.TokenRecord) string {
	if rec.Symbol != "" {
		return rec.Symbol
	}
	return format.TruncatedAddress(rec.Address)
}

func priceSeries(history []models.PricePoint) []float64 {
	out := make([]float64, 0, len(history))
	for _, p := range history {
		out = append(out, p.Value)
	}
	return out
}

// priceChange is the relative move from the first to the last sample.
func priceChange(history []models.PricePoint) (float64, bool) {
	if len(history) < 2 || history[0].Value == 0 {
		return 0, false
	}
	first, last := history[0].Value, history[len(history)-1].Value
	return (last - first) / first, true
}

func (m *model) updateDetailViewport() {
	rec, ok := m.activeRecord()
	if !ok {
		m.viewport.SetContent("No token selected.")
		return
	}
	m.viewport.SetContent(m.detailContent(rec, time.Now()))
}

func (m model) detailContent(rec models.TokenRecord, now time.Time) string {
	var rows []string
	for _, f := range format.Details(rec, now) {
		value := m.st.toneStyle(f.Tone).Render(f.Value)
		row := lipgloss.JoinHorizontal(lipgloss.Top, m.st.label.Render(f.Label), value)
		if f.Note != "" {
			row += "  " + m.st.subtle.Render(f.Note)
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		lipgloss.JoinHorizontal(lipgloss.Top, m.st.label.Render("Address Kind"), solana.AddressKind(rec.Address)),
	)
	if len(rec.Tags) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, m.st.label.Render("Tags"), strings.Join(rec.Tags, ", ")))
	}
	if change, ok := priceChange(m.history); ok {
		style := m.st.info
		sign := "+"
		if change < 0 {
			style = m.st.err
			sign = ""
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			m.st.label.Render("Session Change"),
			style.Render(fmt.Sprintf("%s%s", sign, format.Percentage(change, 2))),
		))
	}
	return strings.Join(rows, "\n")
}
