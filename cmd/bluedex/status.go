package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/bluedex/internal/config"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [alias]",
		Short: "Print the derived blue/green deployment status for an alias",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	configureLogging(cfg.LogLevel)

	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	state, err := comps.coordinator.GetStatus(ctx, args[0])
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
