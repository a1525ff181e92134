// Package outline asks an LLM for a slide-by-slide outline of source text
// and normalizes the response into pending render jobs.
package outline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
)

const (
	MinSlides = 1
	MaxSlides = 50

	maxPointsPerSlide = 8
)

// Providers resolves provider names. *llm.Registry satisfies it.
type Providers interface {
	Get(name string) (llm.Provider, error)
}

// Request describes an outline to generate.
type Request struct {
	SourceText string `json:"source_text"`
	SlideCount int    `json:"slide_count"`
	Audience   string `json:"audience,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Language   string `json:"language,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
}

// Outline is a normalized outline ready for review.
type Outline struct {
	Title string      `json:"title"`
	Topic string      `json:"topic"`
	Jobs  []queue.Job `json:"jobs"`
	Model string      `json:"model,omitempty"`
	Cost  float64     `json:"cost"`
}

// Options tune the generator.
type Options struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxTokens      int
	// Sleeper replaces time.Sleep between retries.
	Sleeper func(time.Duration)
}

// Generator produces outlines.
type Generator struct {
	providers Providers
	opts      Options
	logger    *slog.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(providers Providers, opts Options, logger *slog.Logger) *Generator {
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &Generator{
		providers: providers,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "outline"),
	}
}

type responsePayload struct {
	Title  string         `json:"title"`
	Topic  string         `json:"topic"`
	Slides []slidePayload `json:"slides"`
}

type slidePayload struct {
	Title         string   `json:"title"`
	Points        []string `json:"points"`
	ContentPoints []string `json:"content_points"`
	Layout        string   `json:"layout"`
	LayoutHint    string   `json:"layout_hint"`
	Notes         string   `json:"notes"`
}

// Generate issues one outline request (with transient-failure retries) and
// normalizes the result. Nothing is returned on failure.
func (g *Generator) Generate(ctx context.Context, req Request) (Outline, error) {
	if err := validate(req); err != nil {
		return Outline{}, err
	}
	provider, err := g.providers.Get(req.Provider)
	if err != nil {
		return Outline{}, err
	}
	var retryOpts []llm.RetryOption
	if g.opts.Sleeper != nil {
		retryOpts = append(retryOpts, llm.WithSleeper(g.opts.Sleeper))
	}
	provider = llm.WithRetry(provider, g.opts.RetryAttempts, g.opts.RetryBaseDelay, g.opts.RetryMaxDelay, retryOpts...)

	started := time.Now()
	res, err := provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(req),
		JSON:        true,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: llm.Float(0.4),
		Model:       req.Model,
	})
	if err != nil {
		return Outline{}, fmt.Errorf("generate outline: %w", err)
	}

	var payload responsePayload
	if err := llm.DecodeJSON(res.Text, &payload); err != nil {
		return Outline{}, services.Wrap(services.ErrExternal, "outline", "decode", "outline response was not valid JSON", err)
	}
	out := g.normalize(payload, req)
	if len(out.Jobs) == 0 {
		return Outline{}, services.Wrap(services.ErrExternal, "outline", "normalize", "outline response contained no slides", nil)
	}
	out.Model = res.Model
	out.Cost = res.Cost

	g.logger.Info("outline generated",
		logging.String("provider", provider.Name()),
		logging.Int("slides", len(out.Jobs)),
		logging.Float64("cost", out.Cost),
		logging.Duration("elapsed", time.Since(started)),
	)
	return out, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.SourceText) == "" {
		return services.Wrap(services.ErrValidation, "outline", "validate", "source text is required", nil)
	}
	if req.SlideCount < MinSlides || req.SlideCount > MaxSlides {
		return services.Wrap(services.ErrValidation, "outline", "validate",
			fmt.Sprintf("slide count must be between %d and %d", MinSlides, MaxSlides), nil)
	}
	return nil
}

func (g *Generator) normalize(payload responsePayload, req Request) Outline {
	out := Outline{
		Title: strings.TrimSpace(payload.Title),
		Topic: firstNonEmpty(req.Topic, payload.Topic, payload.Title),
	}
	if out.Title == "" {
		out.Title = firstNonEmpty(req.Topic, "Untitled deck")
	}
	for _, slide := range payload.Slides {
		if len(out.Jobs) >= req.SlideCount {
			break
		}
		points := slide.Points
		if len(points) == 0 {
			points = slide.ContentPoints
		}
		cleaned := make([]string, 0, len(points))
		for _, point := range points {
			if p := strings.TrimSpace(point); p != "" && len(cleaned) < maxPointsPerSlide {
				cleaned = append(cleaned, p)
			}
		}
		title := strings.TrimSpace(slide.Title)
		if title == "" && len(cleaned) == 0 {
			continue
		}
		if title == "" {
			title = fmt.Sprintf("Slide %d", len(out.Jobs)+1)
		}
		out.Jobs = append(out.Jobs, queue.Job{
			ID:            uuid.NewString(),
			Title:         title,
			ContentPoints: cleaned,
			LayoutHint:    layoutHint(firstNonEmpty(slide.Layout, slide.LayoutHint)),
			Notes:         strings.TrimSpace(slide.Notes),
			State:         queue.StatePending,
		})
	}
	return out
}

// layoutHint title-cases a hint; Casers are stateful so one is built per call.
func layoutHint(raw string) string {
	raw = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(raw))
	if raw == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(raw), " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
