// Package normalize applies per-field cleanup to extracted values.
package normalize

import (
	"fmt"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

var regionKeys = map[string]bool{"uf": true, "u.f": true, "u.f.": true}

// Value normalizes v for key. Whitespace is always collapsed; region codes
// lose "UF" and colons and are upper-cased; status values are upper-cased;
// phone numbers with 10 or 11 digits are reformatted.
func Value(key, v string) string {
	v = strings.Join(strings.Fields(v), " ")
	k := strings.ToLower(key)

	switch {
	case strings.Contains(k, "seccional") || regionKeys[k]:
		v = strings.ReplaceAll(v, "UF", "")
		v = strings.ReplaceAll(v, ":", "")
		return strings.ToUpper(strings.TrimSpace(v))
	case strings.Contains(k, "situacao") || strings.Contains(k, "situação"):
		return strings.ToUpper(v)
	case strings.Contains(k, "telefone"):
		return Phone(v)
	}
	return v
}

// Phone formats 11 digits as (DD) DDDDD-DDDD and 10 digits as (DD) DDDD-DDDD.
// Anything else is returned unchanged.
func Phone(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()

	switch len(d) {
	case 11:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:7], d[7:])
	case 10:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:6], d[6:])
	}
	return v
}

// Values normalizes every present value. Missing values stay missing.
func Values(vs domain.Values) domain.Values {
	out := make(domain.Values, len(vs))
	for k, v := range vs {
		s, ok := v.Get()
		if !ok {
			out[k] = v
			continue
		}
		out[k] = domain.Present(Value(k, s))
	}
	return out
}
