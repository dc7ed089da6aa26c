package pricing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds USD prices per 1K tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Table maps provider to model to price.
type Table struct {
	Providers map[string]map[string]ModelPricing
}

func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var providers map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Providers: providers}, nil
}

// Lookup finds the price for model. An exact match under provider wins;
// otherwise the longest model key that prefixes the name is used, so dated
// releases such as claude-sonnet-4-5-20250929 resolve to claude-sonnet-4-5.
// An empty provider searches every provider.
func (t *Table) Lookup(provider, model string) (ModelPricing, bool) {
	if t == nil || t.Providers == nil || model == "" {
		return ModelPricing{}, false
	}
	var providers []string
	if provider != "" {
		providers = []string{provider}
	} else {
		for p := range t.Providers {
			providers = append(providers, p)
		}
		sort.Strings(providers)
	}
	best, bestLen, found := ModelPricing{}, 0, false
	for _, p := range providers {
		models := t.Providers[p]
		if price, ok := models[model]; ok {
			return price, true
		}
		for name, price := range models {
			if strings.HasPrefix(model, name) && len(name) > bestLen {
				best, bestLen, found = price, len(name), true
			}
		}
	}
	return best, found
}

// Cost calculates total cost for a request. Prices are per 1K tokens.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	p, ok := t.Lookup(provider, model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}
