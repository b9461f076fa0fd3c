// Package schema owns the known field-key sets, the per-category alias
// table, and the conversion between caller and canonical schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/pkg/errors"
)

// AllSentinel expands to the category superset
const AllSentinel = "ALL"

// LicenseKeys are the license-card fields
var LicenseKeys = []string{
	"nome", "inscricao", "seccional", "subsecao", "categoria",
	"endereco_profissional", "telefone_profissional", "situacao",
}

// layoutKeys are the canonical key tuples per screen layout
var layoutKeys = map[domain.Layout][]string{
	domain.LayoutA: {"data_base", "data_vencimento", "quantidade_parcelas", "produto", "sistema", "tipo_de_operacao", "tipo_de_sistema"},
	domain.LayoutB: {"pesquisa_por", "pesquisa_tipo", "sistema", "valor_parcela", "cidade"},
	domain.LayoutC: {"data_referencia", "selecao_de_parcelas", "total_de_parcelas"},
}

// ScreenSuperset is what ALL expands to for screens. It carries the
// data_verncimento spelling that callers historically send.
var ScreenSuperset = []string{
	"data_referencia", "selecao_de_parcelas", "total_de_parcelas",
	"pesquisa_por", "pesquisa_tipo", "sistema", "valor_parcela", "cidade",
	"data_base", "data_verncimento", "quantidade_parcelas", "produto",
	"tipo_de_operacao", "tipo_de_sistema",
}

var aliases = map[domain.Category]map[string]string{
	domain.CategoryScreen: {
		"data_verncimento": "data_vencimento",
	},
	domain.CategoryLicense: {},
}

// LayoutKeys returns a copy of the canonical tuple for l
func LayoutKeys(l domain.Layout) []string {
	return append([]string(nil), layoutKeys[l]...)
}

// LayoutFor returns the first layout (A, B, C) whose tuple contains every key.
func LayoutFor(keys []string) (domain.Layout, bool) {
	if len(keys) == 0 {
		return "", false
	}
	for _, l := range domain.Layouts {
		if subset(keys, layoutKeys[l]) {
			return l, true
		}
	}
	return "", false
}

// Supports reports whether layout l extracts key
func Supports(l domain.Layout, key string) bool {
	return contains(layoutKeys[l], key)
}

// Superset returns the caller-facing key superset for a category
func Superset(cat domain.Category) []string {
	switch cat {
	case domain.CategoryLicense:
		return append([]string(nil), LicenseKeys...)
	case domain.CategoryScreen:
		return append([]string(nil), ScreenSuperset...)
	}
	return nil
}

// Canonical returns the canonical spelling of key
func Canonical(cat domain.Category, key string) string {
	if c, ok := aliases[cat][key]; ok {
		return c
	}
	return key
}

// Canonicalize resolves aliases, keeping order. The first occurrence of a
// canonical key wins.
func Canonicalize(cat domain.Category, s domain.Schema) domain.Schema {
	out := make(domain.Schema, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		k := Canonical(cat, f.Key)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, domain.Field{Key: k, Description: f.Description})
	}
	return out
}

// Decanonicalize re-keys canonical values onto the caller's original keys
func Decanonicalize(cat domain.Category, original domain.Schema, canon domain.Values) domain.Values {
	out := make(domain.Values, len(original))
	for _, f := range original {
		out[f.Key] = canon[Canonical(cat, f.Key)]
	}
	return out
}

// FromKeys builds a schema with empty descriptions
func FromKeys(keys []string) domain.Schema {
	s := make(domain.Schema, len(keys))
	for i, k := range keys {
		s[i] = domain.Field{Key: k}
	}
	return s
}

// ForScreenType returns the tuple schema matching a screen sub-type, or the
// superset when t is unknown. Layout A uses the data_verncimento spelling.
func ForScreenType(t domain.ScreenType) domain.Schema {
	switch t {
	case domain.ScreenOperation:
		keys := LayoutKeys(domain.LayoutA)
		keys[1] = "data_verncimento"
		return FromKeys(keys)
	case domain.ScreenBillingLookup:
		return FromKeys(LayoutKeys(domain.LayoutB))
	case domain.ScreenBalanceDetails:
		return FromKeys(LayoutKeys(domain.LayoutC))
	}
	return FromKeys(ScreenSuperset)
}

// Resolve turns the raw extraction_schema parameter into a schema. raw is
// either the ALL sentinel or a JSON object of key to description.
func Resolve(cat domain.Category, raw string) (domain.Schema, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, AllSentinel) {
		keys := Superset(cat)
		if keys == nil {
			return nil, errors.BadRequest(fmt.Sprintf("no superset for label %q", cat))
		}
		return FromKeys(keys), nil
	}

	s, err := ParseJSON([]byte(raw))
	if err != nil {
		return nil, errors.Validation(map[string]string{"extraction_schema": err.Error()})
	}
	if err := Validate(cat, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseJSON decodes a JSON object into a schema preserving key order.
// Duplicate keys keep their first position.
func ParseJSON(b []byte) (domain.Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("must be a JSON object or %q", AllSentinel)
	}

	var out domain.Schema
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		key, _ := tok.(string)

		var desc any
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		d, _ := desc.(string)
		out = append(out, domain.Field{Key: key, Description: d})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("must not be empty")
	}
	return out, nil
}

// Validate rejects keys outside the category superset. Canonical spellings
// of aliased keys are accepted.
func Validate(cat domain.Category, s domain.Schema) error {
	allowed := Superset(cat)
	var unknown []string
	for _, f := range s {
		if contains(allowed, f.Key) || contains(allowed, Canonical(cat, f.Key)) || isAliasTarget(cat, f.Key) {
			continue
		}
		unknown = append(unknown, f.Key)
	}
	if len(unknown) > 0 {
		return errors.UnsupportedKeys(string(cat), unknown)
	}
	return nil
}

func isAliasTarget(cat domain.Category, key string) bool {
	for _, target := range aliases[cat] {
		if target == key {
			return true
		}
	}
	return false
}

func subset(keys, of []string) bool {
	for _, k := range keys {
		if !contains(of, k) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
