package render

import (
	"context"
	"fmt"
	"log/slog"

	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/queue"
)

// Providers resolves provider names. *llm.Registry satisfies it.
type Providers interface {
	Get(name string) (llm.Provider, error)
}

// Renderer renders slides through the configured LLM providers.
type Renderer struct {
	providers Providers
	maxTokens int
	logger    *slog.Logger
}

// NewRenderer constructs a Renderer. maxTokens <= 0 uses the provider default.
func NewRenderer(providers Providers, maxTokens int, logger *slog.Logger) *Renderer {
	return &Renderer{
		providers: providers,
		maxTokens: maxTokens,
		logger:    logging.NewComponentLogger(logger, "render"),
	}
}

// Render issues exactly one provider request for the job.
func (r *Renderer) Render(ctx context.Context, req queue.RenderRequest) (queue.RenderResult, error) {
	provider, err := r.providers.Get(req.Context.Provider)
	if err != nil {
		return queue.RenderResult{}, err
	}

	llmReq := llm.Request{
		System:    slideSystemPrompt,
		Prompt:    BuildPrompt(req),
		MaxTokens: r.maxTokens,
		Model:     req.Context.Model,
	}
	if req.OnPartial != nil {
		onPartial := req.OnPartial
		llmReq.OnPartial = func(text string) {
			onPartial(CleanHTML(text))
		}
	}

	r.logger.Debug("render request",
		logging.String(logging.FieldJobID, req.Job.ID),
		logging.String("provider", provider.Name()),
		logging.Int("page", req.Page),
		logging.Int("prompt_chars", len(llmReq.Prompt)),
	)

	result, err := provider.Generate(ctx, llmReq)
	if err != nil {
		return queue.RenderResult{}, err
	}
	html := CleanHTML(result.Text)
	if html == "" {
		return queue.RenderResult{}, &llm.EmptyContentError{Provider: provider.Name(), Snippet: fmt.Sprintf("%q", result.Text)}
	}
	return queue.RenderResult{HTML: html, Model: result.Model, Cost: result.Cost}, nil
}
