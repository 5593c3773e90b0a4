package cli

import (
	"fmt"
	"os"

	"soltabs/pkg/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the current configuration (defaults if none) to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent configuration backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(g.configPath)
			if err != nil {
				return err
			}
			backup, err := config.RestoreLastBackup(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, backup)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(g.configPath)
			if err != nil {
				return err
			}
			_, statErr := os.Stat(path)
			suffix := ""
			if os.IsNotExist(statErr) {
				suffix = " (not created yet)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", path, suffix)
			return nil
		},
	})
	return cmd
}
