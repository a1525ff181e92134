package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	cfg        Config
	httpClient *http.Client
	prices     *PriceTable
}

// NewAnthropic constructs an Anthropic provider.
func NewAnthropic(cfg Config, opts ...Option) *AnthropicProvider {
	cfg = cfg.normalized(KindAnthropic, "https://api.anthropic.com/v1")
	o := buildOptions(cfg, opts)
	return &AnthropicProvider{cfg: cfg, httpClient: o.httpClient, prices: o.prices}
}

// Name returns the configured provider name.
func (p *AnthropicProvider) Name() string { return p.cfg.Name }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate issues one Messages request, streaming when req.OnPartial is set.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(p.cfg.Name, req); err != nil {
		return Result{}, err
	}
	if p.cfg.APIKey == "" {
		return Result{}, fmt.Errorf("%s: %w", p.cfg.Name, ErrMissingAPIKey)
	}
	model := pickModel(req, p.cfg.Model)
	system := strings.TrimSpace(req.System)
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}
	payload := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens(req),
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      req.OnPartial != nil,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: encode body: %w", p.cfg.Name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/messages", bytes.NewReader(encoded))
	if err != nil {
		return Result{}, fmt.Errorf("%s: new request: %w", p.cfg.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%s: http error (timeout=%s): %w", p.cfg.Name, p.cfg.timeout(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return Result{}, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
	}

	var text, stopReason, snippet string
	if payload.Stream {
		text, stopReason, err = readAnthropicStream(resp.Body, req.OnPartial)
		if err != nil {
			return Result{}, fmt.Errorf("%s: read stream: %w", p.cfg.Name, err)
		}
	} else {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("%s: read body: %w", p.cfg.Name, err)
		}
		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return Result{}, fmt.Errorf("%s: decode response: %w", p.cfg.Name, err)
		}
		if parsed.Error != nil {
			return Result{}, fmt.Errorf("%s: api error: %s", p.cfg.Name, parsed.Error.Message)
		}
		if parsed.Model != "" {
			model = parsed.Model
		}
		var b strings.Builder
		for _, block := range parsed.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
		stopReason = parsed.StopReason
		snippet = summarizePayloadSnippet(string(body))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &EmptyContentError{Provider: p.cfg.Name, FinishReason: stopReason, Snippet: snippet}
	}
	return Result{
		Text:  text,
		Model: model,
		Cost:  p.prices.EstimateCost(model, promptChars(req), len([]rune(text))),
	}, nil
}

func readAnthropicStream(body io.Reader, onPartial func(string)) (string, string, error) {
	var (
		buf        strings.Builder
		stopReason string
		streamErr  error
	)
	err := readSSE(body, func(data string) bool {
		var evt struct {
			Type  string `json:"type"`
			Delta *struct {
				Type       string `json:"type"`
				Text       string `json:"text,omitempty"`
				StopReason string `json:"stop_reason,omitempty"`
			} `json:"delta,omitempty"`
			Error *struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error,omitempty"`
		}
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return true
		}
		switch {
		case evt.Error != nil:
			streamErr = fmt.Errorf("api error: %s", evt.Error.Message)
			return false
		case evt.Type == "content_block_delta" && evt.Delta != nil && evt.Delta.Text != "":
			buf.WriteString(evt.Delta.Text)
			onPartial(buf.String())
		case evt.Type == "message_delta" && evt.Delta != nil && evt.Delta.StopReason != "":
			stopReason = evt.Delta.StopReason
		case evt.Type == "message_stop":
			return false
		}
		return true
	})
	if streamErr != nil {
		return "", stopReason, streamErr
	}
	if err != nil {
		return "", stopReason, err
	}
	return buf.String(), stopReason, nil
}
