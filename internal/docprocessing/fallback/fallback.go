// Package fallback asks a language model to fill fields the heuristic pass
// left empty.
package fallback

import (
	"context"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

// Hints steer context selection and the prompt toward the right screen sections
type Hints struct {
	PrioritySections     []string            `json:"priority_sections,omitempty"`
	DeprioritizeSections []string            `json:"deprioritize_sections,omitempty"`
	FieldAliases         map[string][]string `json:"field_aliases,omitempty"`
	Instructions         string              `json:"instructions_pt,omitempty"`
}

// Request is one fill call
type Request struct {
	Label   domain.Category
	AllKeys []string
	Missing []string
	Context string
	Hints   *Hints
}

// Filler returns a value for each missing key. An empty value means not found.
type Filler interface {
	Fill(ctx context.Context, req Request) (map[string]string, error)
}

// FillerFunc adapts a function to Filler
type FillerFunc func(ctx context.Context, req Request) (map[string]string, error)

func (f FillerFunc) Fill(ctx context.Context, req Request) (map[string]string, error) {
	return f(ctx, req)
}

// ScreenAHints are the hints used for registration/consultation screens,
// whose top filters repeat labels of the selected operation.
func ScreenAHints() *Hints {
	return &Hints{
		PrioritySections:     []string{"Operação Selecionada", "Dados Básicos", "Resumo"},
		DeprioritizeSections: []string{"Consulta de Cobrança", "Pesquisar por", "Pesquisa por", "Filtro", "Tipo:"},
		FieldAliases: map[string][]string{
			"data_base":           {"Data Base", "Dt. Base", "Data da Base"},
			"data_verncimento":    {"Data Vencimento", "Dt. Vencimento", "Vencimento"},
			"quantidade_parcelas": {"Qtd. Parcelas", "Quantidade de Parcelas"},
			"produto":             {"Produto"},
			"sistema":             {"Sistema"},
			"tipo_de_operacao":    {"Tipo Operação", "Tipo de Operação"},
			"tipo_de_sistema":     {"Tipo Sistema", "Tipo de Sistema"},
		},
		Instructions: "Extraia APENAS valores das seções 'Operação Selecionada' e 'Dados Básicos'. " +
			"NÃO use valores de filtros do topo ('Consulta de Cobrança', 'Pesquisar por', 'Tipo:', 'Sistema: Contrato'). " +
			"Se houver rótulos repetidos, prefira os das seções prioritárias. " +
			"Responda exatamente nas chaves do schema fornecido.",
	}
}
