package tui

import (
	"context"

	"soltabs/pkg/session"
	"soltabs/pkg/widget"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the terminal UI until the user quits or ctx is cancelled.
func Start(ctx context.Context, c *session.Controller, chart widget.ChartOptions, version string) error {
	Version = version
	m := initialModel(ctx, c, chart)
	defer c.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
