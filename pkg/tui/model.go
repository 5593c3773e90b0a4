package tui

import (
	"context"
	"time"

	"soltabs/pkg/models"
	"soltabs/pkg/session"
	"soltabs/pkg/widget"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// User-facing alerts for a failed add.
const (
	alertNotFound   = "Invalid token or token not found."
	alertFetchError = "Failed to fetch token information. Please try again."
)

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time
type hydratedMsg struct{}
type sessionClosedMsg struct{}

type addResultMsg struct {
	address string
	err     error
}

type settingsSavedMsg struct {
	settings models.UserSettings
	err      error
}

// --- Model ---

type model struct {
	ctx     context.Context
	session *session.Controller
	sub     session.Subscriber
	chart   widget.ChartOptions

	width      int
	height     int
	loading    bool
	pending    bool
	lastUpdate time.Time
	spinner    spinner.Model

	statusMessage string
	alert         string

	tabs    []models.TokenRecord
	active  string
	history []models.PricePoint

	adding   bool
	addInput textinput.Model

	showDetail bool
	viewport   viewport.Model
	showGraph  bool
	showHelp   bool

	editingSettings bool
	settingsFocus   int
	apiKeyInput     textinput.Model
	pendingTheme    models.Theme

	theme models.Theme
	st    styles
}

func initialModel(ctx context.Context, c *session.Controller, chart widget.ChartOptions) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	addTi := textinput.New()
	addTi.Placeholder = "Token mint address"
	addTi.Width = 46
	addTi.CharLimit = 64

	keyTi := textinput.New()
	keyTi.Placeholder = "Jupiter API key (optional)"
	keyTi.Width = 40
	keyTi.EchoMode = textinput.EchoPassword

	theme := c.Settings().Theme

	return model{
		ctx:         ctx,
		session:     c,
		sub:         c.Subscribe(),
		chart:       chart,
		loading:     true,
		spinner:     s,
		addInput:    addTi,
		apiKeyInput: keyTi,
		viewport:    viewport.New(0, 0),
		theme:       theme,
		st:          newStyles(theme),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForSession(m.sub),
		hydrate(m.ctx, m.session),
		m.spinner.Tick,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }),
	)
}

func hydrate(ctx context.Context, c *session.Controller) tea.Cmd {
	return func() tea.Msg {
		c.Hydrate(ctx)
		return hydratedMsg{}
	}
}

func addToken(ctx context.Context, c *session.Controller, addr string) tea.Cmd {
	return func() tea.Msg {
		return addResultMsg{address: addr, err: c.AddOrSelectToken(ctx, addr)}
	}
}

func saveSettings(ctx context.Context, c *session.Controller, s models.UserSettings) tea.Cmd {
	return func() tea.Msg {
		return settingsSavedMsg{settings: s, err: c.UpdateSettings(ctx, s)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
