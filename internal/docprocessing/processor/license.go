package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
)

var addressStops = []string{
	"telefone profissional", "situa", "categoria", "seccional", "subse", "conselho seccional",
}

// lineRule scans every line in order and keeps the first non-empty value
type lineRule struct {
	key   string
	match func(low string) bool
	value func(d *document, i int, found domain.Values) string
	// fallback runs over the whole document when no line produced a value
	fallback func(d *document) string
}

func containsAny(subs ...string) func(string) bool {
	return func(low string) bool {
		for _, s := range subs {
			if strings.Contains(low, s) {
				return true
			}
		}
		return false
	}
}

// licenseRules run in this order. inscricao comes before subsecao so the
// sub-section cleaner can reject a copy of the registration number.
var licenseRules = []lineRule{
	{
		key:   "inscricao",
		match: containsAny("inscri"),
		value: func(d *document, i int, _ domain.Values) string {
			if v := group1(reRegAfterLabel, d.lines[i]); v != "" {
				return v
			}
			return nearLabel(d, i, reRegNum)
		},
		fallback: func(d *document) string {
			return reRegNum.FindString(strings.Join(d.lines, " "))
		},
	},
	{
		key:   "seccional",
		match: containsAny("seccional"),
		value: func(d *document, i int, _ domain.Values) string {
			return nearLabel(d, i, reUF)
		},
	},
	{
		key:   "subsecao",
		match: containsAny("subse", "conselho seccional"),
		value: subsection,
	},
	{
		key:   "categoria",
		match: containsAny("suplementar", "advog", "estagi"),
		value: func(d *document, i int, _ domain.Values) string {
			return collapse(strings.ToUpper(d.lines[i]))
		},
	},
	{
		key:   "endereco_profissional",
		match: containsAny("endereço profissional", "endereco profissional"),
		value: address,
	},
	{
		key:   "telefone_profissional",
		match: containsAny("telefone"),
		value: func(d *document, i int, _ domain.Values) string {
			if v := valueAfterLabel(d.lines[i], rePhone, d.next(i)); v != "" {
				return v
			}
			return valueAfterLabel(strings.Join(neighborhood(d.lines, i, 3), " "), rePhone, "")
		},
		fallback: func(d *document) string {
			return rePhone.FindString(strings.Join(d.lines, " "))
		},
	},
	{
		key:   "situacao",
		match: containsAny("situa"),
		value: func(d *document, i int, _ domain.Values) string {
			return strings.ToUpper(strings.TrimSpace(d.lines[i]))
		},
	},
}

// nearLabel searches the label line with its one-line neighborhood as the
// follow-up, then the two-line neighborhood.
func nearLabel(d *document, i int, re matcher) string {
	next := ""
	if d.hasNext(i) {
		next = strings.Join(neighborhood(d.lines, i, 1), " ")
	}
	if v := valueAfterLabel(d.lines[i], re, next); v != "" {
		return v
	}
	return valueAfterLabel(strings.Join(neighborhood(d.lines, i, 2), " "), re, "")
}

// subsection prefers the text after the label, then a "Conselho Seccional - X"
// phrase, then the following line.
func subsection(d *document, i int, found domain.Values) string {
	insc, _ := found["inscricao"].Get()
	ln := d.lines[i]

	if v := cleanSubsection(group1(reSubsection, ln), insc); v != "" {
		return v
	}
	if _, tail, ok := strings.Cut(ln, ":"); ok {
		if v := cleanSubsection(group1(reSubsection, tail), insc); v != "" {
			return v
		}
	} else if v := cleanSubsection(group1(reSubsection, strings.Join(neighborhood(d.lines, i, 1), " ")), insc); v != "" {
		return v
	}
	if strings.Contains(d.lower[i], "conselho seccional") {
		if v := cleanSubsection(group1(reSectionalCouncil, ln), insc); v != "" {
			return v
		}
	}
	if d.hasNext(i) {
		return cleanSubsection(d.next(i), insc)
	}
	return ""
}

// cleanSubsection drops the postal-code tail and rejects values that are
// numeric, letterless or a copy of the registration number.
func cleanSubsection(v, insc string) string {
	if v == "" {
		return ""
	}
	s := strings.Trim(strings.TrimSpace(rePostalTail.ReplaceAllString(v, "")), " :;|-")
	if s == "" || reOnlyDigits.MatchString(s) {
		return ""
	}
	if insc != "" && digitsOf(s) == digitsOf(insc) {
		return ""
	}
	if !hasLetter(s) {
		return ""
	}
	return collapse(s)
}

func address(d *document, i int, _ domain.Values) string {
	var parts []string
	if _, tail, ok := strings.Cut(d.lines[i], ":"); ok {
		if t := strings.TrimSpace(tail); t != "" {
			parts = append(parts, t)
		}
	}
	parts = append(parts, linesBetween(d.lines, i, addressStops, 6)...)

	joined := strings.TrimSpace(strings.Join(parts, " "))
	if loc := reAddressEnd.FindStringIndex(joined); loc != nil {
		if head := strings.TrimSpace(joined[:loc[0]]); head != "" {
			joined = head
		}
	}
	return joined
}

// name is the first line among the first six with a letter and at least three runes
func name(d *document) string {
	for _, ln := range d.lines[:min(6, len(d.lines))] {
		t := strings.TrimSpace(ln)
		if hasLetter(t) && utf8.RuneCountInString(t) >= 3 {
			return t
		}
	}
	return ""
}

// LicenseExtractor reads professional-license cards
type LicenseExtractor struct{}

func NewLicenseExtractor() *LicenseExtractor {
	return &LicenseExtractor{}
}

func (e *LicenseExtractor) Name() string {
	return "carteira_oab"
}

func (e *LicenseExtractor) CanExtract(cat domain.Category, _ domain.Layout) bool {
	return cat == domain.CategoryLicense
}

func (e *LicenseExtractor) Keys() []string {
	return schema.LicenseKeys
}

func (e *LicenseExtractor) Extract(keys []string, lines []string) domain.Values {
	d := newDocument(lines)
	out := domain.NewValues(keys)
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	if want["nome"] {
		out.Set("nome", name(d))
	}

	for _, r := range licenseRules {
		if !want[r.key] {
			continue
		}
		v := ""
		for i, low := range d.lower {
			if !r.match(low) {
				continue
			}
			if v = r.value(d, i, out); v != "" {
				break
			}
		}
		if v == "" && r.fallback != nil {
			v = r.fallback(d)
		}
		out.Set(r.key, v)
	}

	if sub, ok := out["subsecao"].Get(); ok && sub != "" {
		if insc, ok := out["inscricao"].Get(); ok && insc != "" && digitsOf(sub) == digitsOf(insc) {
			out["subsecao"] = domain.Missing()
		}
	}
	return out
}
