package cli

import (
	"context"
	"fmt"
	"strings"

	"soltabs/pkg/format"
	"soltabs/pkg/models"
	"soltabs/pkg/persist"

	"github.com/spf13/cobra"
)

// withAdapter opens the configured store for a short-lived command.
func withAdapter(g *globalFlags, fn func(a *persist.Adapter) error) error {
	cfg, _, err := loadConfig(g.configPath)
	if err != nil {
		return err
	}
	s, _, err := openStore(cfg, g.ephemeral)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(persist.New(s))
}

func newSettingsCmd(g *globalFlags) *cobra.Command {
	var (
		apiKey string
		theme  string
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update the saved user settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return withAdapter(g, func(a *persist.Adapter) error {
				settings, err := a.LoadSettings(ctx)
				if err != nil {
					return err
				}
				changed := false
				if cmd.Flags().Changed("api-key") {
					settings.APIKey = strings.TrimSpace(apiKey)
					changed = true
				}
				if cmd.Flags().Changed("theme") {
					t := models.Theme(strings.ToLower(theme))
					if t != models.ThemeLight && t != models.ThemeDark {
						return fmt.Errorf("unknown theme %q (want light or dark)", theme)
					}
					settings.Theme = t
					changed = true
				}
				if changed {
					if err := a.SaveSettings(ctx, settings); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				key := "(not set)"
				if settings.APIKey != "" {
					key = maskKey(settings.APIKey)
				}
				fmt.Fprintf(out, "API key: %s\n", key)
				fmt.Fprintf(out, "Theme:   %s\n", settings.Theme)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Jupiter API key (empty to clear)")
	cmd.Flags().StringVar(&theme, "theme", "", "light or dark")
	return cmd
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func newTabsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List the saved tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return withAdapter(g, func(a *persist.Adapter) error {
				state, err := a.LoadTabs(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(state.Tabs) == 0 {
					fmt.Fprintln(out, "No saved tabs.")
					return nil
				}
				for i, addr := range state.Tabs {
					marker := " "
					if addr == state.Active {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %d  %s  %s\n", marker, i+1, format.TruncatedAddress(addr), addr)
				}
				return nil
			})
		},
	}
}
