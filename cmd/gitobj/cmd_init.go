package main

import (
	"fmt"
	"path/filepath"

	"github.com/odvcencio/gitobj/internal/backend"
	"github.com/odvcencio/gitobj/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd(g *globalFlags) *cobra.Command {
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Path = args[0]
			}
			if cfg.Path != "" {
				abs, err := filepath.Abs(cfg.Path)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				cfg.Path = abs
			}
			logger, err := g.logger(cmd, cfg)
			if err != nil {
				return err
			}

			db, err := backend.Init(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if err := db.Close(); err != nil {
				return err
			}

			if writeConfig {
				if err := config.WriteFile(g.config, cfg); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty %s repository in %s\n", cfg.Backend, cfg.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "save the effective configuration to --config")

	return cmd
}
