// Package providers describes the lease providers known to the tool. The
// registry is an explicitly constructed value handed to consumers; there is
// no process-wide default mutated at import time.
package providers

import (
	"fmt"
	"sort"
)

// Provider is the static description of one lease provider.
type Provider struct {
	// ID is the provider identifier used across queue, cache and CLI,
	// e.g. "toyota_nl".
	ID string
	// Brands this provider carries. Single-brand providers list one.
	Brands []string
	// CacheFiles are the price cache file names attached to this
	// provider, relative to the cache directory. Multi-brand providers
	// have one per brand.
	CacheFiles []string
	// QuickCheckBaseURL is the storefront root for quick-check probes;
	// "" disables quick checks for the provider.
	QuickCheckBaseURL string
	// Models maps a brand to the model slugs worth quick-checking.
	Models map[string][]string
	// ScraperCommand launches the external full-price scraper for this
	// provider; see driver.CommandScraper.
	ScraperCommand []string
}

// Registry is an explicit collection of providers.
type Registry struct {
	byID map[string]*Provider
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Provider)}
}

// Register adds a provider. Registering a duplicate or empty ID is a
// configuration bug and returns an error rather than silently replacing.
func (r *Registry) Register(p *Provider) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("provider must have an ID")
	}
	if _, exists := r.byID[p.ID]; exists {
		return fmt.Errorf("provider %s already registered", p.ID)
	}
	r.byID[p.ID] = p
	return nil
}

// Get looks up a provider by ID.
func (r *Registry) Get(id string) (*Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IDs returns all registered provider IDs, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CacheFiles returns the provider-to-cache-files mapping in the shape
// pricecache.Reader consumes.
func (r *Registry) CacheFiles() map[string][]string {
	out := make(map[string][]string, len(r.byID))
	for id, p := range r.byID {
		out[id] = append([]string(nil), p.CacheFiles...)
	}
	return out
}

// Default returns the registry for the known Dutch lease storefronts.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []*Provider{
		{
			ID:         "toyota_nl",
			Brands:     []string{"Toyota"},
			CacheFiles: []string{"toyota_prices.json"},
		},
		{
			ID:         "suzuki_nl",
			Brands:     []string{"Suzuki"},
			CacheFiles: []string{"suzuki_prices.json"},
		},
		{
			ID:         "ayvens_nl",
			Brands:     []string{"Toyota", "Suzuki"},
			CacheFiles: []string{"ayvens_toyota_prices.json", "ayvens_suzuki_prices.json"},
		},
		{
			ID:                "leasys_nl",
			Brands:            []string{"Toyota", "Suzuki"},
			CacheFiles:        []string{"leasys_toyota_prices.json", "leasys_suzuki_prices.json"},
			QuickCheckBaseURL: "https://store.leasys.com/nl/private",
			Models: map[string][]string{
				"Suzuki": {"swift", "vitara", "s-cross"},
				"Toyota": {"yaris", "yaris-cross", "corolla", "aygo-x"},
			},
		},
	} {
		// The built-in set is known-good; Register only fails on
		// duplicates.
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}
