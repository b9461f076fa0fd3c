package domain

// Value is a field value that is either missing or present. A present empty
// string is allowed but never counts as filled.
type Value struct {
	s  string
	ok bool
}

// Missing is the zero Value
func Missing() Value { return Value{} }

// Present wraps s
func Present(s string) Value { return Value{s: s, ok: true} }

// Get returns the string and whether the value is present
func (v Value) Get() (string, bool) { return v.s, v.ok }

// IsPresent reports whether the value is present, possibly empty
func (v Value) IsPresent() bool { return v.ok }

// Filled reports whether the value is present and non-empty
func (v Value) Filled() bool { return v.ok && v.s != "" }

// String collapses the value to the boundary form: missing becomes "".
func (v Value) String() string { return v.s }

// Values maps canonical keys to values. An absent key is missing.
type Values map[string]Value

// NewValues returns a map with every key missing
func NewValues(keys []string) Values {
	vals := make(Values, len(keys))
	for _, k := range keys {
		vals[k] = Missing()
	}
	return vals
}

// Set stores s as present when non-empty, leaving the key missing otherwise.
func (vs Values) Set(key, s string) {
	if s == "" {
		vs[key] = Missing()
		return
	}
	vs[key] = Present(s)
}

// FilledCount counts keys whose value is filled
func (vs Values) FilledCount(keys []string) int {
	n := 0
	for _, k := range keys {
		if vs[k].Filled() {
			n++
		}
	}
	return n
}

// Only returns a copy restricted to keys. Keys absent from vs are missing.
func (vs Values) Only(keys []string) Values {
	out := make(Values, len(keys))
	for _, k := range keys {
		out[k] = vs[k]
	}
	return out
}

// Clone returns a shallow copy
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

// Strings collapses every value to its boundary string
func (vs Values) Strings() map[string]string {
	out := make(map[string]string, len(vs))
	for k, v := range vs {
		out[k] = v.String()
	}
	return out
}

// Coverage is the filled fraction of expected. An empty set has coverage 1.
func Coverage(vs Values, expected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	return float64(vs.FilledCount(expected)) / float64(len(expected))
}
