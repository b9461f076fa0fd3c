package processor

import (
	"fmt"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
)

// Selection is the outcome of one heuristic pass
type Selection struct {
	Layout domain.Layout
	// Expected is the coverage denominator
	Expected []string
	// Values holds every requested key
	Values    domain.Values
	Ambiguous bool
	// Scores holds the fill count per layout when the request was ambiguous
	Scores map[domain.Layout]int
}

// Dispatcher routes a request to the extractor that serves it
type Dispatcher struct {
	registry *Registry
	forced   domain.Layout
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithForcedLayout pins every screen request to l. Intended for diagnostics.
func WithForcedLayout(l domain.Layout) DispatcherOption {
	return func(d *Dispatcher) {
		d.forced = l
	}
}

// NewDispatcher creates a dispatcher over registry
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch extracts keys (canonical) from lines.
//
// License cards go to the license extractor and every requested key is
// expected. For screens, a key set contained in one layout tuple selects
// that layout (A, then B, then C) whatever the document says, and the full
// tuple becomes the denominator. Any other key set runs all three layouts on
// the keys each supports and the highest fill count wins, ties going to C,
// then B, then A.
func (d *Dispatcher) Dispatch(cat domain.Category, keys []string, lines []string) (Selection, error) {
	switch cat {
	case domain.CategoryLicense:
		ext := d.registry.Find(cat, "")
		if ext == nil {
			return Selection{}, fmt.Errorf("no extractor for %s: %w", cat, domain.ErrExtraction)
		}
		return Selection{
			Expected: keys,
			Values:   ext.Extract(keys, lines).Only(keys),
		}, nil

	case domain.CategoryScreen:
		if d.forced != "" {
			return d.single(d.forced, keys, lines)
		}
		if l, ok := schema.LayoutFor(keys); ok {
			return d.single(l, keys, lines)
		}
		return d.ambiguous(keys, lines)
	}

	return Selection{Expected: keys, Values: domain.NewValues(keys)}, nil
}

func (d *Dispatcher) single(l domain.Layout, keys []string, lines []string) (Selection, error) {
	ext := d.registry.Find(domain.CategoryScreen, l)
	if ext == nil {
		return Selection{}, fmt.Errorf("no extractor for layout %s: %w", l, domain.ErrExtraction)
	}
	return Selection{
		Layout:   l,
		Expected: ext.Keys(),
		Values:   ext.Extract(keys, lines).Only(keys),
	}, nil
}

func (d *Dispatcher) ambiguous(keys []string, lines []string) (Selection, error) {
	sel := Selection{Ambiguous: true, Scores: make(map[domain.Layout]int, len(domain.Layouts))}
	var winnerKeys []string
	var winnerVals domain.Values
	best := -1

	for _, l := range domain.Layouts {
		ext := d.registry.Find(domain.CategoryScreen, l)
		if ext == nil {
			return Selection{}, fmt.Errorf("no extractor for layout %s: %w", l, domain.ErrExtraction)
		}
		supported := supportedBy(l, keys)
		vals := ext.Extract(supported, lines)
		score := vals.FilledCount(supported)
		sel.Scores[l] = score

		// Layouts run A, B, C so >= hands ties to the later one.
		if score >= best {
			best = score
			sel.Layout = l
			winnerKeys = supported
			winnerVals = vals
		}
	}

	sel.Values = winnerVals.Only(keys)
	sel.Expected = winnerKeys
	if len(sel.Expected) == 0 {
		sel.Expected = keys
	}
	return sel, nil
}

func supportedBy(l domain.Layout, keys []string) []string {
	var out []string
	for _, k := range keys {
		if schema.Supports(l, k) {
			out = append(out, k)
		}
	}
	return out
}

// BestLayout scores fully-extracted screen values per layout tuple and
// returns the winner under the same tie-break as Dispatch.
func BestLayout(vals domain.Values) domain.Layout {
	winner, best := domain.LayoutA, -1
	for _, l := range domain.Layouts {
		if score := vals.FilledCount(schema.LayoutKeys(l)); score >= best {
			winner, best = l, score
		}
	}
	return winner
}
