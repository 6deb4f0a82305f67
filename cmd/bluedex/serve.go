package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/bluedex/internal/config"
	"github.com/go-go-golems/bluedex/internal/httpapi"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control plane and the session expiry sweeper",
		RunE:  runServe,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	configureLogging(cfg.LogLevel)

	comps, err := buildComponents(cfg)
	if err != nil {
		return fmt.Errorf("wiring components: %w", err)
	}

	server := httpapi.New(comps.gateway, comps.coordinator, comps.sessions, comps.probe)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Int("port", cfg.Port).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		err := comps.sessions.RunExpirySweep(groupCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
