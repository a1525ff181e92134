package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/workflow"
)

const renderPollInterval = 200 * time.Millisecond

type renderOptions struct {
	outline outlineFlags
	palette string
	format  string
	output  string
	save    bool
	label   string
	notes   bool
	verbose bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Outline and render a deck in one go",
		Long: "Plans slides for the source text, renders every slide and writes the result. " +
			"Runs in-process without a daemon; use --save to store the deck in the database.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			return runRender(cmd, ctx, source, opts)
		},
	}
	opts.outline.register(cmd)
	cmd.Flags().StringVar(&opts.palette, "palette", "", "Palette as name=#hex pairs or 18 comma-separated colors")
	cmd.Flags().StringVarP(&opts.format, "format", "f", workflow.FormatHTML, "Output format: html, markdown, notes or json")
	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output path (defaults to a name derived from the title; - for stdout)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the deck to the database")
	cmd.Flags().StringVar(&opts.label, "label", "", "Version label used with --save")
	cmd.Flags().BoolVar(&opts.notes, "notes", false, "Write speaker notes after rendering")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	return cmd
}

func runRender(cmd *cobra.Command, ctx *commandContext, source string, opts renderOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	pal := palette.Default()
	if strings.TrimSpace(opts.palette) != "" {
		if pal, err = palette.Parse(opts.palette); err != nil {
			return fmt.Errorf("invalid palette: %w", err)
		}
	}
	logger, err := cliLogger(cfg, opts.verbose)
	if err != nil {
		return err
	}
	registry, err := llm.NewRegistry(cfg)
	if err != nil {
		return err
	}
	var store *deckstore.Store
	if opts.save {
		if store, err = deckstore.Open(cfg, logger); err != nil {
			return fmt.Errorf("open deck store: %w", err)
		}
		defer store.Close()
	}

	manager := headlessManager(cfg, registry, store, logger)
	runCtx := cmd.Context()
	if err := manager.Open(runCtx); err != nil {
		return err
	}
	defer manager.Close()

	progress := cmd.ErrOrStderr()
	fmt.Fprintf(progress, "Planning %d slides...\n", opts.outline.slides)
	session, err := manager.GenerateOutline(runCtx, opts.outline.request(source))
	if err != nil {
		return err
	}
	fmt.Fprintf(progress, "Outline ready: %q (%d slides)\n", session.Title, len(session.Run.Jobs))

	if _, err := manager.ConfirmOutline(runCtx, pal); err != nil {
		return err
	}
	session, err = waitForRun(runCtx, manager, progress)
	if err != nil {
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = manager.Cancel(cancelCtx)
		return err
	}

	if opts.notes {
		applied, err := manager.GenerateNotes(runCtx, false)
		if err != nil {
			logger.Warn("speaker notes incomplete", logging.Error(err))
		}
		fmt.Fprintf(progress, "Speaker notes written for %d slides\n", applied)
	}
	if opts.save {
		deck, err := manager.SaveDeck(runCtx, opts.label)
		if err != nil {
			return err
		}
		fmt.Fprintf(progress, "Saved deck %s\n", deck.ID)
	}

	var buf bytes.Buffer
	filename, err := manager.Export(&buf, opts.format)
	if err != nil {
		return err
	}
	target, err := writeOutput(cmd.OutOrStdout(), opts.output, filename, buf.Bytes())
	if err != nil {
		return err
	}

	session = manager.Session()
	summary := fmt.Sprintf("Rendered %d/%d slides", session.Counts[queue.StateRendered], len(session.Run.Jobs))
	if failed := session.Counts[queue.StateFailed]; failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	fmt.Fprintf(progress, "%s (cost $%.4f)\n", summary, session.Cost)
	if target != "" {
		fmt.Fprintf(progress, "Wrote %s\n", target)
	}
	return nil
}

// waitForRun polls the session until the run completes, reporting each
// newly finished slide.
func waitForRun(ctx context.Context, manager *workflow.Manager, progress io.Writer) (workflow.Session, error) {
	ticker := time.NewTicker(renderPollInterval)
	defer ticker.Stop()
	reported := 0
	for {
		session := manager.Session()
		done := session.Counts[queue.StateRendered] + session.Counts[queue.StateFailed]
		if done > reported {
			fmt.Fprintf(progress, "  %d/%d slides done\n", done, len(session.Run.Jobs))
			reported = done
		}
		switch session.Status {
		case workflow.StatusComplete:
			return session, nil
		case workflow.StatusRendering:
		default:
			return session, fmt.Errorf("render stopped in state %s: %s", session.Status, session.Error)
		}
		select {
		case <-ctx.Done():
			return session, ctx.Err()
		case <-ticker.C:
		}
	}
}

// writeOutput writes data to path, "-" for stdout, or to filename in the
// working directory when path is empty. It returns the file written.
func writeOutput(stdout io.Writer, path, filename string, data []byte) (string, error) {
	switch path {
	case "-":
		_, err := stdout.Write(data)
		return "", err
	case "":
		path = filename
		if path == "" {
			path = "slidesmith-export"
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
