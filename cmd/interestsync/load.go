package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"interestsync/internal/config"
	"interestsync/internal/fixture"
)

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <fixture.yaml>",
		Short: "Seed the store from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0])
		},
	}
	return cmd
}

func runLoad(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	fx, err := fixture.ParseFile(path)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.WithoutCancel(ctx))

	loaded, err := fixture.Load(ctx, db, fx, cfg.Normalize.BatchSize)
	if err != nil {
		return fmt.Errorf("%w (%d documents written before the failure)", err, loaded)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d documents from %s.\n", loaded, path)
	return nil
}
