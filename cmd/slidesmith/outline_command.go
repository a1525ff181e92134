package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slidesmith/internal/llm"
	"slidesmith/internal/outline"
)

func newOutlineCommand(ctx *commandContext) *cobra.Command {
	var flags outlineFlags
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "outline [file]",
		Short: "Plan slides for a text without rendering them",
		Long:  "Reads source text from file (or stdin) and prints the planned slides. Runs in-process; no daemon is needed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			logger, err := cliLogger(cfg, verbose)
			if err != nil {
				return err
			}
			registry, err := llm.NewRegistry(cfg)
			if err != nil {
				return err
			}
			generator := outline.NewGenerator(registry, outline.Options{
				RetryAttempts: cfg.LLM.OutlineRetryAttempts,
				MaxTokens:     cfg.LLM.MaxOutputTokens,
			}, logger)
			result, err := generator.Generate(cmd.Context(), flags.request(source))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", result.Title)
			if result.Topic != "" && result.Topic != result.Title {
				fmt.Fprintf(out, "Topic: %s\n", result.Topic)
			}
			rows := make([][]string, 0, len(result.Jobs))
			for i, job := range result.Jobs {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					job.Title,
					job.LayoutHint,
					strings.Join(job.ContentPoints, "\n"),
				})
			}
			fmt.Fprint(out, renderTable([]tableColumn{
				{header: "#", align: alignRight},
				{header: "Title", maxWidth: 40},
				{header: "Layout"},
				{header: "Points", maxWidth: 60},
			}, rows, nil))
			fmt.Fprintf(out, "Estimated cost: $%.4f\n", result.Cost)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	return cmd
}
