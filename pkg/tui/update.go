package tui

import (
	"fmt"
	"strings"
	"time"

	"soltabs/pkg/models"
	"soltabs/pkg/session"
	"soltabs/pkg/widget"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 8
		m.viewport.Height = msg.Height - 10
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}

	case session.Event:
		cmds = append(cmds, listenForSession(m.sub))
		m.syncFromSession()

	case sessionClosedMsg:
		return m, tea.Quit

	case hydratedMsg:
		m.loading = false
		m.syncFromSession()
		settings := m.session.Settings()
		m.theme = settings.Theme
		m.st = newStyles(m.theme)

	case addResultMsg:
		m.pending = false
		if msg.err != nil {
			m.alert = alertFor(msg.err)
			break
		}
		m.syncFromSession()
		m.statusMessage = fmt.Sprintf("Opened %s", tabLabelFor(m, msg.address))
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case settingsSavedMsg:
		if msg.err != nil {
			m.statusMessage = "Failed to save settings"
		} else {
			m.theme = msg.settings.Theme
			m.st = newStyles(m.theme)
			m.statusMessage = "Settings saved"
		}
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case tea.KeyMsg:
		return m.handleKey(msg)

	case uiTickMsg:
		if m.showDetail {
			m.updateDetailViewport()
		}
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.loading || m.pending {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func tabLabelFor(m model, addr string) string {
	for _, rec := range m.tabs {
		if rec.Address == addr {
			return tabLabel(rec)
		}
	}
	return addr
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// An alert blocks everything until dismissed.
	if m.alert != "" {
		switch key {
		case "enter", "esc", "q", " ":
			m.alert = ""
		}
		return m, nil
	}

	if m.adding {
		switch key {
		case "esc":
			m.adding = false
			m.addInput.Blur()
			m.addInput.SetValue("")
			return m, nil
		case "enter":
			addr := strings.TrimSpace(m.addInput.Value())
			m.adding = false
			m.addInput.Blur()
			m.addInput.SetValue("")
			if addr == "" {
				return m, nil
			}
			m.pending = true
			return m, tea.Batch(addToken(m.ctx, m.session, addr), m.spinner.Tick)
		}
		var cmd tea.Cmd
		m.addInput, cmd = m.addInput.Update(msg)
		return m, cmd
	}

	if m.editingSettings {
		return m.handleSettingsKey(msg)
	}

	if key == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if key == "q" || key == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if m.showDetail {
		switch key {
		case "q", "esc", "enter":
			m.showDetail = false
			return m, nil
		case "c":
			return m.copyActive()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.showGraph {
		switch key {
		case "q", "esc", "g":
			m.showGraph = false
		}
		return m, nil
	}

	switch key {
	case "q":
		return m, tea.Quit

	case "a", "/":
		m.adding = true
		m.addInput.SetValue("")
		return m, m.addInput.Focus()

	case "tab", "right", "l":
		if addr, ok := m.neighbor(1); ok {
			m.selectTab(addr)
		}
	case "shift+tab", "left", "h":
		if addr, ok := m.neighbor(-1); ok {
			m.selectTab(addr)
		}
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(key[0] - '1')
		if idx < len(m.tabs) {
			m.selectTab(m.tabs[idx].Address)
		}

	case "x", "d":
		if m.active == "" {
			break
		}
		closed := tabLabelFor(m, m.active)
		if err := m.session.CloseActive(); err != nil {
			m.statusMessage = fmt.Sprintf("Failed to close tab: %v", err)
		} else {
			m.syncFromSession()
			m.statusMessage = fmt.Sprintf("Closed %s", closed)
		}
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case "enter":
		if m.active != "" {
			m.showDetail = true
			m.updateDetailViewport()
			m.viewport.YOffset = 0
		}

	case "g":
		if m.active != "" {
			m.showGraph = true
		}

	case "c":
		return m.copyActive()

	case "o":
		cmds = append(cmds, m.open(widget.ChartURL(m.active, m.chart), "chart"))
	case "s":
		cmds = append(cmds, m.open(m.session.SwapProps(m.active).URL(), "swap"))

	case "O":
		settings := m.session.Settings()
		m.editingSettings = true
		m.settingsFocus = 0
		m.pendingTheme = settings.Theme
		m.apiKeyInput.SetValue(settings.APIKey)
		return m, m.apiKeyInput.Focus()
	}

	return m, tea.Batch(cmds...)
}

func (m *model) selectTab(addr string) {
	if err := m.session.SelectTab(addr); err != nil {
		m.statusMessage = err.Error()
		return
	}
	m.syncFromSession()
}

func (m model) copyActive() (tea.Model, tea.Cmd) {
	if m.active == "" {
		return m, nil
	}
	if err := writeClipboard(m.active); err != nil {
		m.statusMessage = "Failed to copy to clipboard"
	} else {
		m.statusMessage = "Copied!"
	}
	return m, clearStatusAfter(2 * time.Second)
}

func (m *model) open(url, what string) tea.Cmd {
	if err := openURL(url); err != nil {
		m.statusMessage = fmt.Sprintf("Failed to open browser: %v", err)
	} else {
		m.statusMessage = fmt.Sprintf("Opened %s in browser", what)
	}
	return clearStatusAfter(2 * time.Second)
}

func (m model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editingSettings = false
		m.apiKeyInput.Blur()
		return m, nil
	case "tab", "shift+tab", "up", "down":
		m.settingsFocus = 1 - m.settingsFocus
		if m.settingsFocus == 0 {
			return m, m.apiKeyInput.Focus()
		}
		m.apiKeyInput.Blur()
		return m, nil
	case "enter":
		m.editingSettings = false
		m.apiKeyInput.Blur()
		s := models.UserSettings{
			APIKey: strings.TrimSpace(m.apiKeyInput.Value()),
			Theme:  m.pendingTheme,
		}
		return m, saveSettings(m.ctx, m.session, s)
	}

	if m.settingsFocus == 1 {
		switch msg.String() {
		case " ", "left", "right", "h", "l", "t":
			if m.pendingTheme == models.ThemeLight {
				m.pendingTheme = models.ThemeDark
			} else {
				m.pendingTheme = models.ThemeLight
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}
