package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/log-transporter/internal/audit"
	"github.com/SteelMorgan/log-transporter/internal/clickhouse"
	"github.com/SteelMorgan/log-transporter/internal/config"
	"github.com/SteelMorgan/log-transporter/internal/observability"
	"github.com/SteelMorgan/log-transporter/internal/remote"
	"github.com/SteelMorgan/log-transporter/internal/state"
	"github.com/SteelMorgan/log-transporter/internal/transfer"
)

func newRunCommand(configPath *string) *cobra.Command {
	var continuous bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run transfer cycles",
		Long:  "Runs one transfer cycle, or loops with the configured interval when --continuous is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
			logger.Info().
				Str("version", version).
				Int("sources", len(cfg.Sources)).
				Msg("Starting log transporter")

			if cfg.Tracing.Enabled {
				shutdown, err := observability.InitTracer(observability.TracerConfig{
					ServiceName:    "log-transporter",
					ServiceVersion: version,
					Endpoint:       cfg.Tracing.Endpoint,
					Protocol:       cfg.Tracing.Protocol,
					Enabled:        true,
				})
				if err != nil {
					logger.Error().Err(err).Msg("Failed to initialize tracer")
				} else {
					defer shutdown(context.Background())
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := state.NewBoltDBStore(cfg.StatePath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Load(ctx); err != nil {
				// Proceed with empty state; offsets rebuild over cycles
				logger.Warn().Err(err).Msg("Could not load state, starting empty")
			}

			orch := transfer.NewOrchestrator(
				cfg.SourceServers(),
				cfg.DestServer(),
				cfg.IntervalDuration(),
				remote.NewSSHDialer(logger),
				store,
				logger,
			)

			if cfg.Audit.Enabled {
				client, err := clickhouse.NewClient(clickhouse.Options{
					Host:     cfg.Audit.Host,
					Port:     cfg.Audit.Port,
					Database: cfg.Audit.Database,
					Username: cfg.Audit.Username,
					Password: cfg.Audit.Password,
				}, logger)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to connect to audit database, continuing without mirror")
				} else {
					mirror, err := audit.NewMirror(ctx, client, logger)
					if err != nil {
						logger.Error().Err(err).Msg("Failed to set up audit mirror, continuing without it")
						client.Close()
					} else {
						defer mirror.Close()
						orch.SetProgressSink(mirror)
					}
				}
			}

			if err := orch.Run(ctx, continuous); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Info().Msg("Received shutdown signal")
					return nil
				}
				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&continuous, "continuous", false, "Keep running, sleeping the configured interval between cycles")

	return cmd
}
