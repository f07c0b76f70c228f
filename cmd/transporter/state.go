package main

import (
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/log-transporter/internal/config"
	"github.com/SteelMorgan/log-transporter/internal/observability"
	"github.com/SteelMorgan/log-transporter/internal/state"
)

func newStateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect persisted transfer state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newStateListCommand(configPath))

	return cmd
}

func newStateListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transfer records and their offsets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger := observability.NewLogger("warn", "")

			store, err := state.NewBoltDBStore(cfg.StatePath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Source", "Path", "Offset", "Identity", "Updated"})

			for _, rec := range records {
				tw.AppendRow(table.Row{
					rec.SourceName,
					rec.Path,
					strconv.FormatUint(rec.Offset, 10),
					strconv.FormatUint(rec.FileIdentity, 10),
					rec.UpdatedAt.Format("2006-01-02 15:04:05"),
				})
			}

			tw.Render()
			return nil
		},
	}
}
