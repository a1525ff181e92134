package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GoogleProvider talks to Gemini through the genai SDK.
type GoogleProvider struct {
	cfg        Config
	httpClient *http.Client
	prices     *PriceTable

	mu     sync.Mutex
	client *genai.Client
}

// NewGoogle constructs a Gemini provider. The SDK client is created on first use
// so a provider without credentials can still be registered.
func NewGoogle(cfg Config, opts ...Option) *GoogleProvider {
	cfg = cfg.normalized(KindGoogle, "")
	o := buildOptions(cfg, opts)
	return &GoogleProvider{cfg: cfg, httpClient: o.httpClient, prices: o.prices}
}

// Name returns the configured provider name.
func (p *GoogleProvider) Name() string { return p.cfg.Name }

func (p *GoogleProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     p.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.BaseURL + "/"}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: create genai client: %w", p.cfg.Name, err)
	}
	p.client = client
	return client, nil
}

// Generate issues one GenerateContent call, streaming when req.OnPartial is set.
func (p *GoogleProvider) Generate(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(p.cfg.Name, req); err != nil {
		return Result{}, err
	}
	if p.cfg.APIKey == "" {
		return Result{}, fmt.Errorf("%s: %w", p.cfg.Name, ErrMissingAPIKey)
	}
	client, err := p.sdk(ctx)
	if err != nil {
		return Result{}, err
	}

	model := pickModel(req, p.cfg.Model)
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req)),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		genCfg.Temperature = &t
	}
	contents := genai.Text(req.Prompt)

	var text, finishReason string
	if req.OnPartial != nil {
		var buf strings.Builder
		for chunk, err := range client.Models.GenerateContentStream(ctx, model, contents, genCfg) {
			if err != nil {
				return Result{}, fmt.Errorf("%s: stream: %w", p.cfg.Name, err)
			}
			if reason := candidateFinishReason(chunk); reason != "" {
				finishReason = reason
			}
			if delta := chunk.Text(); delta != "" {
				buf.WriteString(delta)
				req.OnPartial(buf.String())
			}
		}
		text = buf.String()
	} else {
		resp, err := client.Models.GenerateContent(ctx, model, contents, genCfg)
		if err != nil {
			return Result{}, fmt.Errorf("%s: generate: %w", p.cfg.Name, err)
		}
		text = resp.Text()
		finishReason = candidateFinishReason(resp)
		if resp.ModelVersion != "" {
			model = resp.ModelVersion
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &EmptyContentError{Provider: p.cfg.Name, FinishReason: finishReason}
	}
	return Result{
		Text:  text,
		Model: model,
		Cost:  p.prices.EstimateCost(model, promptChars(req), len([]rune(text))),
	}, nil
}

func candidateFinishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c != nil && c.FinishReason != "" {
			return string(c.FinishReason)
		}
	}
	return ""
}
