// Package llm adapts the supported LLM providers to one Provider contract.
//
// Three provider kinds exist: OpenAI-compatible chat completions (OpenAI,
// OpenRouter, DeepSeek, Qwen, or any compatible base URL), the Anthropic
// Messages API, and Google Gemini through google.golang.org/genai. Each issues
// a single attempt per Generate call and can stream partial text through
// Request.OnPartial. Callers that want transport retries wrap a provider with
// WithRetry; the render queue does not, because it owns its own retry budget.
//
// Cost estimates use a characters/4 token proxy priced against a per-model
// table (see PriceTable). DecodeJSON tolerates code fences and prose around
// JSON payloads.
package llm
