// Package cli holds the soltabs commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"soltabs/pkg/server"
	"soltabs/pkg/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	ephemeral  bool
}

// Execute runs the root command.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

func NewRootCmd(version string) *cobra.Command {
	var (
		g          globalFlags
		withServer bool
		port       int
	)

	root := &cobra.Command{
		Use:   "soltabs",
		Short: "Track Solana tokens in tabs with live prices",
		Long: `soltabs keeps a set of Solana token tabs, refreshes the price of the
active one every few seconds and remembers the tabs between runs.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), &g, version, withServer, port, cmd.Flags().Changed("port"))
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to configuration file (default ~/.soltabs.yaml)")
	root.PersistentFlags().BoolVar(&g.ephemeral, "ephemeral", false, "keep state in memory only")
	root.Flags().BoolVar(&withServer, "server", false, "also serve the HTTP API")
	root.Flags().IntVar(&port, "port", 0, "port for the HTTP API (default from config)")

	root.AddCommand(
		newServeCmd(&g),
		newCheckCmd(&g),
		newSettingsCmd(&g),
		newTabsCmd(&g),
		newConfigCmd(&g),
		newVersionCmd(version),
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runTUI(parent context.Context, g *globalFlags, version string, withServer bool, port int, portSet bool) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	rt, err := newRuntime(g.configPath, runtimeOptions{logToFile: true, ephemeral: g.ephemeral})
	if err != nil {
		return err
	}
	defer rt.Close()

	if withServer {
		if !portSet {
			port = rt.cfg.Server.Port
		}
		srv := server.NewServer(rt.session, rt.metrics, rt.chartOptions(), rt.logger)
		go func() {
			if err := srv.Start(ctx, port); err != nil {
				rt.logger.Error("server error", "error", err)
			}
		}()
	}

	err = tui.Start(ctx, rt.session, rt.chartOptions(), version)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API without the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := newRuntime(g.configPath, runtimeOptions{ephemeral: g.ephemeral})
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("port") {
				port = rt.cfg.Server.Port
			}
			rt.session.Start(ctx)
			srv := server.NewServer(rt.session, rt.metrics, rt.chartOptions(), rt.logger)
			return srv.Start(ctx, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port for the HTTP API (default from config)")
	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "soltabs version %s\n", version)
		},
	}
}
