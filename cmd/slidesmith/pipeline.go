package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slidesmith/internal/config"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/notifications"
	"slidesmith/internal/outline"
	"slidesmith/internal/queue"
	"slidesmith/internal/render"
	"slidesmith/internal/workflow"
)

// outlineFlags are shared by outline, render and session outline.
type outlineFlags struct {
	slides   int
	audience string
	topic    string
	language string
	provider string
	model    string
}

func (f *outlineFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.slides, "slides", "n", 8, "Number of slides to plan")
	cmd.Flags().StringVar(&f.audience, "audience", "", "Intended audience")
	cmd.Flags().StringVar(&f.topic, "topic", "", "Topic hint")
	cmd.Flags().StringVar(&f.language, "language", "", "Language for slide text")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Provider name (defaults to llm.default_provider)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model override")
}

func (f *outlineFlags) request(source string) outline.Request {
	return outline.Request{
		SourceText: source,
		SlideCount: f.slides,
		Audience:   f.audience,
		Topic:      f.topic,
		Language:   f.language,
		Provider:   f.provider,
		Model:      f.model,
	}
}

// readSource reads the source text from path, or stdin for "" and "-".
func readSource(cmd *cobra.Command, args []string) (string, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read source text: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("source text is empty")
	}
	return text, nil
}

// cliLogger logs to stderr at warn level unless verbose.
func cliLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// headlessManager wires a session manager for one CLI run. It never reads or
// writes the daemon's autosave file. store may be nil.
func headlessManager(cfg *config.Config, registry *llm.Registry, store *deckstore.Store, logger *slog.Logger) *workflow.Manager {
	opts := queue.OptionsFromConfig(cfg)
	opts.Placeholder = render.Placeholder
	opts.Logger = logger

	deps := workflow.Deps{
		Runner: queue.NewRunner(render.NewRenderer(registry, cfg.LLM.MaxOutputTokens, logger), opts),
		Outliner: outline.NewGenerator(registry, outline.Options{
			RetryAttempts: cfg.LLM.OutlineRetryAttempts,
			MaxTokens:     cfg.LLM.MaxOutputTokens,
		}, logger),
		Notes:           render.NewNotesWriter(registry, logger),
		Notifier:        notifications.NewService(cfg),
		Logger:          logger,
		DefaultProvider: registry.DefaultName(),
	}
	if store != nil {
		deps.Store = store
	}
	return workflow.NewManager(deps)
}
