package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const jsonResponseType = "json_object"

// Config captures the runtime settings required to talk to one endpoint.
type Config struct {
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultHTTPTimeout
}

func (c Config) normalized(defaultName, defaultBase string) Config {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = defaultName
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBase
	}
	c.Model = strings.TrimSpace(c.Model)
	c.Referer = strings.TrimSpace(c.Referer)
	c.Title = strings.TrimSpace(c.Title)
	return c
}

// Option customizes an HTTP-backed provider.
type Option func(*options)

type options struct {
	httpClient *http.Client
	prices     *PriceTable
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithPrices sets the table used for cost estimates.
func WithPrices(prices *PriceTable) Option {
	return func(o *options) {
		o.prices = prices
	}
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.timeout()}
	}
	return o
}

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	cfg        Config
	httpClient *http.Client
	prices     *PriceTable
}

// NewOpenAI constructs an OpenAI-compatible provider.
func NewOpenAI(cfg Config, opts ...Option) *OpenAIProvider {
	cfg = cfg.normalized(KindOpenAI, "https://api.openai.com/v1")
	o := buildOptions(cfg, opts)
	return &OpenAIProvider{cfg: cfg, httpClient: o.httpClient, prices: o.prices}
}

// Name returns the configured provider name.
func (p *OpenAIProvider) Name() string { return p.cfg.Name }

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    *float64          `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// Generate issues one chat completion request, streaming when req.OnPartial is set.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(p.cfg.Name, req); err != nil {
		return Result{}, err
	}
	if p.cfg.APIKey == "" {
		return Result{}, fmt.Errorf("%s: %w", p.cfg.Name, ErrMissingAPIKey)
	}
	model := pickModel(req, p.cfg.Model)
	payload := chatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req),
		Stream:      req.OnPartial != nil,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		payload.ResponseFormat = map[string]string{"type": jsonResponseType}
	}

	resp, err := p.send(ctx, payload)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var text, finishReason, refusal, snippet string
	if payload.Stream {
		text, finishReason, err = p.readStream(resp.Body, req.OnPartial)
		if err != nil {
			return Result{}, fmt.Errorf("%s: read stream: %w", p.cfg.Name, err)
		}
	} else {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("%s: read body (timeout=%s): %w", p.cfg.Name, p.cfg.timeout(), err)
		}
		var completion chatCompletionResponse
		if err := json.Unmarshal(body, &completion); err != nil {
			return Result{}, fmt.Errorf("%s: decode response: %w", p.cfg.Name, err)
		}
		if completion.Error != nil {
			return Result{}, fmt.Errorf("%s: api error: %s", p.cfg.Name, strings.TrimSpace(completion.Error.Message))
		}
		if completion.Model != "" {
			model = completion.Model
		}
		for _, choice := range completion.Choices {
			if finishReason == "" {
				finishReason = strings.TrimSpace(choice.FinishReason)
			}
			if refusal == "" {
				refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
			}
			if text = firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
				break
			}
		}
		snippet = summarizePayloadSnippet(string(body))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &EmptyContentError{Provider: p.cfg.Name, FinishReason: finishReason, Refusal: refusal, Snippet: snippet}
	}
	return Result{
		Text:  text,
		Model: model,
		Cost:  p.prices.EstimateCost(model, promptChars(req), len([]rune(text))),
	}, nil
}

func (p *OpenAIProvider) send(ctx context.Context, payload chatCompletionRequest) (*http.Response, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode body: %w", p.cfg.Name, err)
	}
	endpoint := p.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", p.cfg.Name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if p.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", p.cfg.Referer)
		httpReq.Header.Set("Referer", p.cfg.Referer)
	}
	if p.cfg.Title != "" {
		httpReq.Header.Set("X-Title", p.cfg.Title)
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: http error (timeout=%s): %w", p.cfg.Name, p.cfg.timeout(), err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return resp, nil
}

func (p *OpenAIProvider) readStream(body io.Reader, onPartial func(string)) (string, string, error) {
	var (
		buf          strings.Builder
		finishReason string
		streamErr    error
	)
	err := readSSE(body, func(data string) bool {
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return true
		}
		if chunk.Error != nil {
			streamErr = fmt.Errorf("api error: %s", strings.TrimSpace(chunk.Error.Message))
			return false
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = *choice.FinishReason
			}
			if choice.Delta.Content == "" {
				continue
			}
			buf.WriteString(choice.Delta.Content)
			onPartial(buf.String())
		}
		return true
	})
	if streamErr != nil {
		return "", finishReason, streamErr
	}
	if err != nil {
		return "", finishReason, err
	}
	return buf.String(), finishReason, nil
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
