package fallback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

// ParseValues reads the model output. Prose around the first {...} span is
// ignored. The object is validated against a schema built from keys, and
// each value is stringified; null and absent keys become "".
func ParseValues(text string, keys []string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no json object in model output: %w", domain.ErrFallback)
	}
	raw := []byte(text[start : end+1])

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode model output: %v: %w", err, domain.ErrFallback)
	}
	if err := validate(keys, v); err != nil {
		return nil, err
	}

	obj := v.(map[string]any)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = stringify(obj[k])
	}
	return out, nil
}

func validate(keys []string, v any) error {
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	}
	schemaMap := map[string]any{"type": "object", "properties": props}

	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fallback.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("fallback.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("model output does not match schema: %v: %w", err, domain.ErrFallback)
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
