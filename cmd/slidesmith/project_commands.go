package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/export"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Move decks in and out of project files",
	}
	projectCmd.AddCommand(newProjectExportCommand(ctx), newProjectImportCommand(ctx))
	return projectCmd
}

func newProjectExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <deck-id>",
		Short: "Write a stored deck as a project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *deckstore.Store) error {
				deck, err := store.GetDeck(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				doc := export.FromDeck(deck)
				var buf bytes.Buffer
				if err := export.ExportProject(&buf, doc); err != nil {
					return err
				}
				target, err := writeOutput(cmd.OutOrStdout(), output, export.FileName(doc.Title, "slidesmith.json"), buf.Bytes())
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
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output path (- for stdout)")
	return cmd
}

func newProjectImportCommand(ctx *commandContext) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "import <project.json>",
		Short: "Store a project file as a new deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open project: %w", err)
			}
			defer file.Close()
			doc, err := export.ImportProject(file)
			if err != nil {
				return err
			}
			if strings.TrimSpace(title) != "" {
				doc.Title = title
			}
			return ctx.withStore(func(store *deckstore.Store) error {
				deck, err := store.CreateDeck(cmd.Context(), doc.Deck(""))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as deck %s (%d slides)\n", deck.Title, deck.ID, len(deck.Slides))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Override the deck title")
	return cmd
}
