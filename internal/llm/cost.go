package llm

import (
	"sort"
	"strings"
)

// Price is a per-model rate in dollars per million tokens.
type Price struct {
	Model            string
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPrices returns the built-in rates used when [[pricing]] does not
// override a model.
func DefaultPrices() []Price {
	return []Price{
		{Model: "gpt-4o-mini", InputPerMillion: 0.15, OutputPerMillion: 0.60},
		{Model: "gpt-4o", InputPerMillion: 2.50, OutputPerMillion: 10.00},
		{Model: "gpt-4.1", InputPerMillion: 2.00, OutputPerMillion: 8.00},
		{Model: "claude-sonnet", InputPerMillion: 3.00, OutputPerMillion: 15.00},
		{Model: "claude-haiku", InputPerMillion: 0.80, OutputPerMillion: 4.00},
		{Model: "claude-opus", InputPerMillion: 15.00, OutputPerMillion: 75.00},
		{Model: "gemini-2.5-flash", InputPerMillion: 0.30, OutputPerMillion: 2.50},
		{Model: "gemini-2.5-pro", InputPerMillion: 1.25, OutputPerMillion: 10.00},
		{Model: "deepseek-chat", InputPerMillion: 0.27, OutputPerMillion: 1.10},
		{Model: "qwen", InputPerMillion: 0.40, OutputPerMillion: 1.20},
	}
}

// PriceTable resolves model names to prices by longest prefix match.
type PriceTable struct {
	entries []Price
}

// NewPriceTable builds a table; later entries override earlier ones with the same model.
func NewPriceTable(prices ...Price) *PriceTable {
	byModel := make(map[string]Price, len(prices))
	for _, p := range prices {
		key := strings.ToLower(strings.TrimSpace(p.Model))
		if key == "" {
			continue
		}
		p.Model = key
		byModel[key] = p
	}
	entries := make([]Price, 0, len(byModel))
	for _, p := range byModel {
		entries = append(entries, p)
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].Model) != len(entries[j].Model) {
			return len(entries[i].Model) > len(entries[j].Model)
		}
		return entries[i].Model < entries[j].Model
	})
	return &PriceTable{entries: entries}
}

// Lookup returns the price for model. Provider prefixes such as "openai/" are
// tried both with and without the prefix.
func (t *PriceTable) Lookup(model string) (Price, bool) {
	if t == nil {
		return Price{}, false
	}
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return Price{}, false
	}
	candidates := []string{model}
	if _, bare, ok := strings.Cut(model, "/"); ok && bare != "" {
		candidates = append(candidates, bare)
	}
	for _, candidate := range candidates {
		for _, p := range t.entries {
			if strings.HasPrefix(candidate, p.Model) {
				return p, true
			}
		}
	}
	return Price{}, false
}

// EstimateCost prices a call using characters/4 as the token estimate for both
// directions. Unknown models cost zero.
func (t *PriceTable) EstimateCost(model string, inputChars, outputChars int) float64 {
	p, ok := t.Lookup(model)
	if !ok {
		return 0
	}
	if inputChars < 0 {
		inputChars = 0
	}
	if outputChars < 0 {
		outputChars = 0
	}
	in := float64(inputChars) / 4
	out := float64(outputChars) / 4
	return in*p.InputPerMillion/1e6 + out*p.OutputPerMillion/1e6
}

func promptChars(req Request) int {
	return len([]rune(req.System)) + len([]rune(req.Prompt))
}
