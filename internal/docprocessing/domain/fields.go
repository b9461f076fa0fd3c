package domain

import (
	"bytes"
	"encoding/json"
)

// Fields is the boundary form of an extraction: every requested key mapped
// to a string, serialised in request order.
type Fields struct {
	keys   []string
	values map[string]string
}

func NewFields(keys []string, values map[string]string) Fields {
	f := Fields{keys: append([]string(nil), keys...), values: make(map[string]string, len(keys))}
	for _, k := range keys {
		f.values[k] = values[k]
	}
	return f
}

func (f Fields) Keys() []string { return append([]string(nil), f.keys...) }

func (f Fields) Get(key string) string { return f.values[key] }

func (f Fields) Len() int { return len(f.keys) }

// Map returns an unordered copy
func (f Fields) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the document's key order
func (f *Fields) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return err
	}
	f.keys = nil
	f.values = map[string]string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		k, _ := tok.(string)
		var v string
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if _, dup := f.values[k]; !dup {
			f.keys = append(f.keys, k)
		}
		f.values[k] = v
	}
	_, err := dec.Token()
	return err
}
