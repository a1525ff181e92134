package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"slidesmith/internal/api"
	"slidesmith/internal/workflow"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Drive the daemon's editing session",
	}
	sessionCmd.AddCommand(
		newSessionShowCommand(ctx),
		newSessionOutlineCommand(ctx),
		newSessionConfirmCommand(ctx),
		newSessionSaveCommand(ctx),
		newSessionLoadCommand(ctx),
		newSessionExportCommand(ctx),
		newSessionImportCommand(ctx),
	)
	for _, action := range []struct{ name, short string }{
		{"pause", "Pause rendering after the current slide"},
		{"resume", "Resume a paused run"},
		{"cancel", "Stop rendering and return to outline review"},
		{"retry", "Re-queue failed slides"},
		{"reset", "Discard the session"},
	} {
		sessionCmd.AddCommand(newSessionControlCommand(ctx, action.name, action.short))
	}
	return sessionCmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the session and its slides",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				session, err := client.Session(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, session)
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSessionOutlineCommand(ctx *commandContext) *cobra.Command {
	var flags outlineFlags
	cmd := &cobra.Command{
		Use:   "outline [file]",
		Short: "Generate an outline in the daemon session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				session, err := client.GenerateOutline(cmd.Context(), api.OutlineRequest{
					SourceText: source,
					SlideCount: flags.slides,
					Audience:   flags.audience,
					Topic:      flags.topic,
					Language:   flags.language,
					Provider:   flags.provider,
					Model:      flags.model,
				})
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newSessionConfirmCommand(ctx *commandContext) *cobra.Command {
	var paletteFlag string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Accept the outline and start rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				session, err := client.Confirm(cmd.Context(), api.ConfirmRequest{Palette: paletteFlag})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rendering %d slides\n", len(session.Jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&paletteFlag, "palette", "", "Palette as name=#hex pairs or 18 comma-separated colors")
	return cmd
}

func newSessionControlCommand(ctx *commandContext, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				session, err := client.Control(cmd.Context(), action)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s (run %s)\n", session.Status, session.RunStatus)
				return nil
			})
		},
	}
}

func newSessionSaveCommand(ctx *commandContext) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the session as a deck version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				deck, err := client.Save(cmd.Context(), label)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved deck %s (%d slides)\n", deck.ID, len(deck.Slides))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Version label")
	return cmd
}

func newSessionLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load <deck-id>",
		Short: "Open a stored deck in the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				session, err := client.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
}

func newSessionExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the session as html, markdown, notes or json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				download, err := client.Export(cmd.Context(), format)
				if err != nil {
					return err
				}
				target, err := writeOutput(cmd.OutOrStdout(), output, download.Filename, download.Data)
				if err != nil {
					return err
				}
				if target != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", target)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", workflow.FormatProject, "Export format: html, markdown, notes or json")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output path (- for stdout)")
	return cmd
}

func newSessionImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <project.json>",
		Short: "Replace the session with a project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read project: %w", err)
			}
			return ctx.withClient(func(client *api.Client) error {
				session, err := client.Import(cmd.Context(), bytes.NewReader(data))
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
}

func printSession(out io.Writer, session api.Session) {
	title := session.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(out, "%s [%s]\n", title, session.Status)
	if session.DeckID != "" {
		fmt.Fprintf(out, "Deck: %s\n", session.DeckID)
	}
	if session.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", session.Error)
	}
	if len(session.Jobs) == 0 {
		return
	}
	rows := make([][]string, 0, len(session.Jobs))
	for i, job := range session.Jobs {
		state := job.State
		if job.Regenerating {
			state += " (regenerating)"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), job.Title, state, strconv.Itoa(job.RetryCount), job.Error})
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{header: "#", align: alignRight},
		{header: "Title", maxWidth: 40},
		{header: "State"},
		{header: "Retries", align: alignRight},
		{header: "Error", maxWidth: 40},
	}, rows, nil))
	fmt.Fprintf(out, "Cost: $%.4f\n", session.Cost)
}
