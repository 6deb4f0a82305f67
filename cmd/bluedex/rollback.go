package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/bluedex/internal/config"
)

func newRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback [alias]",
		Short: "Swap an alias back to the most recent index of the non-active color",
		Args:  cobra.ExactArgs(1),
		RunE:  runRollback,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	configureLogging(cfg.LogLevel)

	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	state, err := comps.coordinator.Rollback(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
