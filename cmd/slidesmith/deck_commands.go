package main

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/export"
	"slidesmith/internal/workflow"
)

const deckTimeLayout = "2006-01-02 15:04"

func newDeckCommand(ctx *commandContext) *cobra.Command {
	deckCmd := &cobra.Command{
		Use:   "deck",
		Short: "Inspect and manage stored decks",
	}
	deckCmd.AddCommand(
		newDeckListCommand(ctx),
		newDeckShowCommand(ctx),
		newDeckHistoryCommand(ctx),
		newDeckSlideHistoryCommand(ctx),
		newDeckRestoreCommand(ctx),
		newDeckExportCommand(ctx),
		newDeckDeleteCommand(ctx),
	)
	return deckCmd
}

func newDeckListCommand(ctx *commandContext) *cobra.Command {
	var query string
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored decks, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *deckstore.Store) error {
				decks, err := store.ListDecks(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, decks)
				}
				out := cmd.OutOrStdout()
				if len(decks) == 0 {
					fmt.Fprintln(out, "No decks stored")
					return nil
				}
				rows := make([][]string, 0, len(decks))
				for _, d := range decks {
					rows = append(rows, []string{
						d.ID,
						d.Title,
						strconv.Itoa(d.SlideCount),
						fmt.Sprintf("$%.4f", d.Cost),
						formatLocal(d.UpdatedAt),
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{header: "ID"},
					{header: "Title", maxWidth: 48},
					{header: "Slides", align: alignRight},
					{header: "Cost", align: alignRight},
					{header: "Updated"},
				}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter by title or topic")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum decks to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDeckShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <deck-id>",
		Short: "Show a deck and its slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *deckstore.Store) error {
				deck, err := store.GetDeck(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, deck)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n", deck.Title)
				fmt.Fprintf(out, "ID:       %s\n", deck.ID)
				if deck.Topic != "" {
					fmt.Fprintf(out, "Topic:    %s\n", deck.Topic)
				}
				if deck.Audience != "" {
					fmt.Fprintf(out, "Audience: %s\n", deck.Audience)
				}
				fmt.Fprintf(out, "Cost:     $%.4f\n", deck.Cost)
				fmt.Fprintf(out, "Updated:  %s\n", formatLocal(deck.UpdatedAt))
				rows := make([][]string, 0, len(deck.Slides))
				for _, s := range deck.Slides {
					rows = append(rows, []string{
						strconv.Itoa(s.Position),
						s.Title,
						s.LayoutHint,
						yesNo(s.HTML != "" && !s.Failed),
						yesNo(s.Notes != ""),
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{header: "#", align: alignRight},
					{header: "Title", maxWidth: 48},
					{header: "Layout"},
					{header: "Rendered"},
					{header: "Notes"},
				}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDeckHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <deck-id>",
		Short: "List saved versions of a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *deckstore.Store) error {
				versions, err := store.DeckHistory(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(versions) == 0 {
					fmt.Fprintln(out, "No saved versions")
					return nil
				}
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.Label,
						strconv.Itoa(v.SlideCount),
						formatLocal(v.CreatedAt),
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{header: "Version", align: alignRight},
					{header: "Label", maxWidth: 40},
					{header: "Slides", align: alignRight},
					{header: "Saved"},
				}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum versions to list")
	return cmd
}

func newDeckSlideHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "slide-history <deck-id> <position>",
		Short: "List rendered versions of one slide",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return fmt.Errorf("invalid slide position %q", args[1])
			}
			return ctx.withStore(func(store *deckstore.Store) error {
				versions, err := store.SlideHistory(cmd.Context(), args[0], position, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.Title,
						strconv.Itoa(len(v.HTML)),
						formatLocal(v.CreatedAt),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]tableColumn{
					{header: "Version", align: alignRight},
					{header: "Title", maxWidth: 40},
					{header: "Bytes", align: alignRight},
					{header: "Created"},
				}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum versions to list")
	return cmd
}

func newDeckRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <deck-id> <version>",
		Short: "Restore a deck to a saved version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[1])
			}
			return ctx.withStore(func(store *deckstore.Store) error {
				deck, err := store.RestoreDeckVersion(cmd.Context(), args[0], version)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to version %d (%d slides)\n", deck.ID, version, len(deck.Slides))
				return nil
			})
		},
	}
}

func newDeckExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	cmd := &cobra.Command{
		Use:   "export <deck-id>",
		Short: "Export a stored deck as html, markdown, notes or json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *deckstore.Store) error {
				deck, err := store.GetDeck(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				name, err := workflow.WriteDocument(&buf, export.FromDeck(deck), format)
				if err != nil {
					return err
				}
				target, err := writeOutput(cmd.OutOrStdout(), output, name, buf.Bytes())
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
	cmd.Flags().StringVarP(&format, "format", "f", workflow.FormatHTML, "Export format: html, markdown, notes or json")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output path (- for stdout)")
	return cmd
}

func newDeckDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <deck-id>",
		Short: "Delete a deck with its slides and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *deckstore.Store) error {
				if err := store.DeleteDeck(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted deck %s\n", args[0])
				return nil
			})
		},
	}
}

func formatLocal(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(deckTimeLayout)
}
