package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"slidesmith/internal/config"
	"slidesmith/internal/services"
)

// Registry holds the configured providers by name.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
	prices      *PriceTable
}

// NewRegistry builds one provider per [providers.<name>] section. The price
// table combines built-in defaults with [[pricing]] overrides.
func NewRegistry(cfg *config.Config, opts ...Option) (*Registry, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "registry", "config is nil", nil)
	}
	prices := DefaultPrices()
	for _, p := range cfg.Pricing {
		prices = append(prices, Price{Model: p.Model, InputPerMillion: p.InputPerMillion, OutputPerMillion: p.OutputPerMillion})
	}
	table := NewPriceTable(prices...)
	opts = append(opts, WithPrices(table))

	r := &Registry{
		providers:   make(map[string]Provider, len(cfg.Providers)),
		defaultName: cfg.LLM.DefaultProvider,
		prices:      table,
	}
	for _, name := range cfg.ProviderNames() {
		pc := cfg.Providers[name]
		llmCfg := Config{
			Name:           name,
			APIKey:         pc.APIKey,
			BaseURL:        pc.BaseURL,
			Model:          pc.Model,
			Referer:        pc.Referer,
			Title:          pc.Title,
			TimeoutSeconds: pc.TimeoutSeconds,
		}
		p, err := New(pc.Kind, llmCfg, opts...)
		if err != nil {
			return nil, err
		}
		r.providers[name] = p
	}
	return r, nil
}

// New constructs a provider of the given kind.
func New(kind string, cfg Config, opts ...Option) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindOpenAI, "":
		return NewOpenAI(cfg, opts...), nil
	case KindAnthropic:
		return NewAnthropic(cfg, opts...), nil
	case KindGoogle:
		return NewGoogle(cfg, opts...), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new provider", fmt.Sprintf("unknown provider kind %q", kind), nil)
	}
}

// Register adds or replaces a provider under its Name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[strings.ToLower(p.Name())] = p
	if r.defaultName == "" {
		r.defaultName = strings.ToLower(p.Name())
	}
}

// Get returns the named provider, or the default when name is empty.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "get provider", fmt.Sprintf("provider %q is not configured", name), nil)
	}
	return p, nil
}

// Default returns the default provider.
func (r *Registry) Default() (Provider, error) {
	return r.Get("")
}

// DefaultName returns the default provider name.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prices returns the table used for cost estimates.
func (r *Registry) Prices() *PriceTable {
	return r.prices
}
