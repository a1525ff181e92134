package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"slidesmith/internal/api"
	"slidesmith/internal/llm"
	"slidesmith/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var ping bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session and configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil && !api.IsUnavailable(err) {
				return wrapDaemonError(err, ctx.bind())
			}
			if err != nil {
				// No daemon: report the same checks from this process.
				status = api.DaemonStatus{
					Bind:            ctx.bind(),
					DatabasePath:    ctx.configValue().DatabasePath(),
					DefaultProvider: ctx.configValue().LLM.DefaultProvider,
					Providers:       ctx.configValue().ProviderNames(),
					Checks:          api.FromCheckResults(preflight.RunAll(cmd.Context(), ctx.configValue())),
				}
			}
			if ping {
				registry, err := llm.NewRegistry(ctx.configValue())
				if err != nil {
					return err
				}
				status.Checks = append(status.Checks, api.FromCheckResults(preflight.CheckProviders(cmd.Context(), registry))...)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&ping, "ping", false, "Send a minimal prompt to every configured provider")
	return cmd
}

func renderStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	printSection(out, "Daemon", colorize)
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d) on %s", status.PID, status.Bind), colorize))
		if status.StartedAt != "" {
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
		}
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running (expected at "+status.Bind+")", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Default provider", statusInfo, status.DefaultProvider, colorize))
	fmt.Fprintln(out)

	printSection(out, "Checks", colorize)
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	if !status.Running {
		return
	}
	fmt.Fprintln(out)
	printSection(out, "Session", colorize)
	label := status.SessionStatus
	if status.SessionTitle != "" {
		label = fmt.Sprintf("%s (%s)", status.SessionStatus, status.SessionTitle)
	}
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, label, colorize))
	rows := make([][]string, 0, len(status.Counts))
	total := 0
	for _, state := range api.SortedStates(status.Counts) {
		rows = append(rows, []string{state, strconv.Itoa(status.Counts[state])})
		total += status.Counts[state]
	}
	if total == 0 {
		fmt.Fprintln(out, "No slides in the session")
		return
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{header: "State"},
		{header: "Slides", align: alignRight},
	}, rows, []string{"Total", strconv.Itoa(total)}))
}
