package fallback

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SystemPrompt tells the model to fill only the requested keys
const SystemPrompt = "Você é um extrator de campos. Leia o CONTEXTO e preencha APENAS as chaves pedidas.\n" +
	"- Responda em JSON válido.\n" +
	"- Use string vazia \"\" se não tiver certeza.\n" +
	"- Não invente valores.\n"

// BuildUserPrompt renders the label, key lists, optional hints and context
func BuildUserPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "LABEL: %s\n", req.Label)
	fmt.Fprintf(&sb, "TODAS_AS_CHAVES: %s\n", jsonList(req.AllKeys))
	fmt.Fprintf(&sb, "CHAVES_PENDENTES: %s\n", jsonList(req.Missing))

	if h := req.Hints; h != nil {
		if h.Instructions != "" {
			fmt.Fprintf(&sb, "INSTRUCOES: %s\n", h.Instructions)
		}
		if len(h.FieldAliases) > 0 {
			sb.WriteString("ALIASES:\n")
			keys := make([]string, 0, len(h.FieldAliases))
			for k := range h.FieldAliases {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, "- %s: %s\n", k, strings.Join(h.FieldAliases[k], ", "))
			}
		}
	}

	fmt.Fprintf(&sb, "\nCONTEXTO:\n\"\"\"\n%s\n\"\"\"", req.Context)
	return sb.String()
}

func jsonList(keys []string) string {
	if keys == nil {
		keys = []string{}
	}
	b, _ := json.Marshal(keys)
	return string(b)
}
