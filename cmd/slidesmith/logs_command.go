package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"slidesmith/internal/api"
	"slidesmith/internal/logging"
	"slidesmith/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var level string
	var deckID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		Long: "Show recent daemon log events. When the daemon is not running the\n" +
			"log file is tailed instead and the filters are ignored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client, err := ctx.client()
			if err != nil {
				return err
			}
			err = logs.Follow(cmd.Context(), client, logs.FollowOptions{
				Query: api.LogQuery{
					Limit:     lines,
					Component: component,
					DeckID:    deckID,
					Level:     level,
				},
				Follow:   follow,
				Interval: time.Second,
			}, func(evt api.LogEvent) {
				fmt.Fprintln(out, logs.FormatEvent(evt))
			})
			if api.IsUnavailable(err) {
				path := logging.FilePath(ctx.configValue())
				if path == "" {
					return errors.New("daemon not running and no log directory configured")
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Daemon not running; reading %s\n", path)
				err = logs.Tail(cmd.Context(), path, logs.TailOptions{Lines: lines, Follow: follow}, func(line string) {
					fmt.Fprintln(out, line)
				})
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return wrapDaemonError(err, ctx.bind())
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new events")
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Events per request, or trailing lines when reading the file")
	cmd.Flags().StringVar(&component, "component", "", "Only events from this component")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn or error")
	cmd.Flags().StringVar(&deckID, "deck", "", "Only events for this deck")
	return cmd
}
