package processor

import (
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
)

const freeTextTrim = " |-:"

// layoutARules cover registration/consultation screens. The last two
// rules fill layout C fields when they are requested from this layout.
var layoutARules = []FieldRule{
	{
		Key:      "data_base",
		Anchors:  []string{"Data Base", "Dt. Base", "Base", "Data da Base", "Data Referência", "Data Referencia"},
		Pattern:  reDate,
		Fallback: nthDate(1),
	},
	{
		Key:      "data_vencimento",
		Anchors:  []string{"Data Vencimento", "Dt. Venc.", "Vcto", "Vencimento"},
		Pattern:  reDate,
		Fallback: nthDate(2),
	},
	{
		Key: "quantidade_parcelas",
		Anchors: []string{
			"Qtd. Parcelas", "Qtd Parc", "Qtd. Parc", "Qtd parcelas",
			"Quantidade de parcelas", "Qtde de parcelas", "Qtde",
		},
		Pattern:  reSmallInt,
		Fallback: quantityAnywhere,
	},
	{
		Key:         "produto",
		Anchors:     []string{"Produto"},
		Capture:     reProduct,
		NextCapture: reProductNext,
		Cut:         reNextLabel,
		Trim:        freeTextTrim,
	},
	{
		Key:         "sistema",
		Anchors:     []string{"Sistema"},
		Mask:        reSystemType,
		Capture:     reSystem,
		NextCapture: reSystemNext,
		Cut:         reNextLabel,
		Trim:        freeTextTrim,
	},
	{
		Key:         "tipo_de_operacao",
		Anchors:     []string{"Tipo Operação", "Tipo de Operação", "Tipo Operaçao", "Tipo Operacao", "Tipo de Operacao"},
		Capture:     reOperationType,
		NextCapture: reWholeLine,
		Cut:         reOperationCut,
		Trim:        freeTextTrim,
	},
	{
		Key:         "tipo_de_sistema",
		Anchors:     []string{"Tipo Sistema", "Tipo de Sistema", "Tipo do Sistema"},
		Capture:     reSystemKind,
		NextCapture: reWholeLine,
		Trim:        freeTextTrim,
	},
	{Key: "selecao_de_parcelas", Custom: selectionNearAnchor},
	{Key: "total_de_parcelas", Custom: firstTotalLine},
}

// layoutBRules cover filter/search screens
var layoutBRules = []FieldRule{
	{
		Key:         "pesquisa_por",
		Anchors:     []string{"Pesquisar por", "Pesquisa por"},
		Capture:     reSearchBy,
		NextCapture: reLeadingWords,
	},
	{
		Key:         "pesquisa_tipo",
		Anchors:     []string{"Tipo:"},
		Capture:     reSearchType,
		NextCapture: reLeadingWords,
	},
	{
		Key:         "sistema",
		Anchors:     []string{"Sistema"},
		Mask:        reSystemType,
		Capture:     reSystemWord,
		NextCapture: reLeadingLetter,
	},
	{
		Key:     "valor_parcela",
		Anchors: []string{"Vlr. Parc.", "VIr. Parc.", "Valor Parcela"},
		Pattern: reMoney,
	},
	{
		Key:         "cidade",
		Anchors:     []string{"Cidade"},
		Capture:     reCity,
		NextCapture: reCityNext,
	},
}

// layoutCRules cover detail/total screens
var layoutCRules = []FieldRule{
	{Key: "data_referencia", Custom: referenceDate},
	{Key: "selecao_de_parcelas", Custom: selectionAnywhere},
	{Key: "total_de_parcelas", Custom: totalFromFooter},
}

// ScreenExtractor applies one layout's rule table
type ScreenExtractor struct {
	layout domain.Layout
	rules  map[string]FieldRule
}

// NewScreenExtractor builds the extractor for layout l
func NewScreenExtractor(l domain.Layout) *ScreenExtractor {
	var table []FieldRule
	switch l {
	case domain.LayoutA:
		table = layoutARules
	case domain.LayoutB:
		table = layoutBRules
	case domain.LayoutC:
		table = layoutCRules
	}

	rules := make(map[string]FieldRule, len(table))
	for _, r := range table {
		rules[r.Key] = r
	}
	return &ScreenExtractor{layout: l, rules: rules}
}

func (e *ScreenExtractor) Name() string {
	return "screen_" + string(e.layout)
}

func (e *ScreenExtractor) CanExtract(cat domain.Category, l domain.Layout) bool {
	return cat == domain.CategoryScreen && l == e.layout
}

func (e *ScreenExtractor) Keys() []string {
	return schema.LayoutKeys(e.layout)
}

// Rule returns the rule for key
func (e *ScreenExtractor) Rule(key string) (FieldRule, bool) {
	r, ok := e.rules[key]
	return r, ok
}

// Extract runs the rule of every requested key. Keys without a rule stay missing.
func (e *ScreenExtractor) Extract(keys []string, lines []string) domain.Values {
	d := newDocument(lines)
	out := domain.NewValues(keys)
	for _, k := range keys {
		if r, ok := e.rules[k]; ok {
			out.Set(k, r.apply(d))
		}
	}
	return out
}
