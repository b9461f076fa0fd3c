package processor

import (
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

// Extractor defines the interface for heuristic field extraction.
// Implementations are pure with respect to their inputs and safe to run
// in parallel.
type Extractor interface {
	// CanExtract returns true if this extractor handles the given category and layout
	CanExtract(cat domain.Category, layout domain.Layout) bool

	// Keys returns the canonical keys the extractor supports, in order
	Keys() []string

	// Extract returns a value for every requested key. Keys it cannot
	// find are missing.
	Extract(keys []string, lines []string) domain.Values

	// Name returns the extractor name for logging/audit
	Name() string
}

// Registry holds all registered extractors and dispatches to the right one
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a new extractor registry
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// DefaultRegistry registers the license-card extractor and the three screen layouts
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewLicenseExtractor(),
		NewScreenExtractor(domain.LayoutA),
		NewScreenExtractor(domain.LayoutB),
		NewScreenExtractor(domain.LayoutC),
	)
}

// Find returns the first extractor that can handle the category and layout
func (r *Registry) Find(cat domain.Category, layout domain.Layout) Extractor {
	for _, e := range r.extractors {
		if e.CanExtract(cat, layout) {
			return e
		}
	}
	return nil
}
