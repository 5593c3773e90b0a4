package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"soltabs/pkg/jupiter"
	"soltabs/pkg/models"
	"soltabs/pkg/persist"
	"soltabs/pkg/solana"

	"github.com/spf13/cobra"
)

type checkOptions struct {
	json   bool
	prune  bool
	dryRun bool
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test configuration, API access and saved tabs, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runCheck(cmd.Context(), g, opts, cmd.OutOrStdout())
			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(report)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "remove saved tabs the API no longer knows")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "perform a trial run with no changes made")
	return cmd
}

var errCheckFailed = errors.New("check failed")

func runCheck(ctx context.Context, g *globalFlags, opts checkOptions, out io.Writer) (models.CheckReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	say := func(format string, args ...interface{}) {
		if !opts.json {
			fmt.Fprintf(out, format, args...)
		}
	}

	var report models.CheckReport
	report.DryRun = opts.dryRun
	report.ValidStructure = true

	cfg, path, err := loadConfig(g.configPath)
	report.ConfigPath = path
	if err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		say("%v\n", err)
		return report, errCheckFailed
	}
	say("Testing configuration at: %s\n", path)

	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		for _, line := range strings.Split(err.Error(), "\n") {
			report.StructureErrors = append(report.StructureErrors, line)
			say("Error: %s\n", line)
		}
		return report, errCheckFailed
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := newClient(cfg, nil, logger)
	report.APIBaseURL = client.BaseURL()

	s, storePath, err := openStore(cfg, g.ephemeral)
	report.StoreBackend = cfg.Store.Backend
	report.StorePath = storePath
	if err != nil {
		report.SaveError = err.Error()
		say("Failed to open %s store at %s: %v\n", cfg.Store.Backend, storePath, err)
		return report, errCheckFailed
	}
	defer func() { _ = s.Close() }()
	if aside, err := recoveredState(s); err != nil {
		say("Saved state was unreadable (%v), moved to %s\n", err, aside)
	}
	adapter := persist.New(s)

	if settings, err := adapter.LoadSettings(ctx); err == nil && settings.APIKey != "" && cfg.API.APIKey == "" {
		client.SetAPIKey(settings.APIKey)
		report.APIBaseURL = client.BaseURL()
	}

	say("API: %s ... ", report.APIBaseURL)
	if err := client.Ping(ctx, solana.WrappedSOLMint); err != nil {
		say("Failed: %v\n", err)
	} else {
		report.APIReachable = true
		say("OK\n")
	}

	state, err := adapter.LoadTabs(ctx)
	if err != nil {
		say("Failed to read saved tabs: %v\n", err)
		report.SaveError = err.Error()
		return report, errCheckFailed
	}
	report.TabCount = len(state.Tabs)
	report.Active = state.Active
	say("Found %d saved tabs (%s: %s).\n", len(state.Tabs), cfg.Store.Backend, storePath)

	var keep []string
	for _, addr := range state.Tabs {
		res := models.TabResult{Address: addr}
		say("  Tab: %s ... ", addr)
		rec, err := client.FetchTokenInfo(ctx, addr)
		switch {
		case err == nil:
			res.Status = "ok"
			res.Symbol = rec.Symbol
			if rec.PriceData != nil {
				res.Price = rec.PriceData.Price
			}
			say("OK (%s)\n", rec.Symbol)
			keep = append(keep, addr)
		case errors.Is(err, jupiter.ErrNotFound):
			res.Status = "not_found"
			res.Error = err.Error()
			if opts.prune {
				res.Pruned = true
				say("NOT FOUND - PRUNED")
				if opts.dryRun {
					say(" (DRY RUN)")
				}
				say("\n")
			} else {
				say("NOT FOUND\n")
				keep = append(keep, addr)
			}
		default:
			res.Status = "error"
			res.Error = err.Error()
			say("Failed: %v\n", err)
			keep = append(keep, addr)
		}
		report.Tabs = append(report.Tabs, res)
	}

	if len(keep) != len(state.Tabs) {
		next := persist.TabsState{Tabs: keep, Active: state.Active}
		if !contains(keep, state.Active) && len(keep) > 0 {
			next.Active = keep[0]
		}
		say("\nUpdating saved tabs...\n")
		if opts.dryRun {
			say("Dry run enabled: tabs NOT saved.\n")
		} else if err := adapter.SaveTabs(ctx, next); err != nil {
			report.SaveError = err.Error()
			say("Failed to save tabs: %v\n", err)
		} else {
			report.StateUpdated = true
			say("Tabs saved successfully.\n")
		}
	}
	return report, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
