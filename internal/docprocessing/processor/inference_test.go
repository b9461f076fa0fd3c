package processor_test

import (
	"testing"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
)

func TestInferCategory(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		lines    []string
		want     domain.Category
	}{
		{"filename", "/tmp/carteira_OAB_01.pdf", nil, domain.CategoryLicense},
		{"registration text", "doc.pdf", []string{"Inscrição 123"}, domain.CategoryLicense},
		{"professional address", "doc.pdf", []string{"Endereco Profissional: Rua A"}, domain.CategoryLicense},
		{"screen text", "doc.pdf", []string{"Data Base: 01/01/2024"}, domain.CategoryScreen},
		{"empty", "", nil, domain.CategoryScreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processor.InferCategory(tt.filename, tt.lines); got != tt.want {
				t.Errorf("InferCategory() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInferCategory_OnlyReadsHead(t *testing.T) {
	lines := make([]string, 130)
	for i := range lines {
		lines[i] = "Data Base"
	}
	lines[125] = "Seccional SP"

	if got := processor.InferCategory("doc.pdf", lines); got != domain.CategoryScreen {
		t.Errorf("InferCategory() = %s, want tela_sistema", got)
	}
}

func TestInferScreenType(t *testing.T) {
	tests := []struct {
		filename string
		want     domain.ScreenType
	}{
		{"tela_detalhamento.pdf", domain.ScreenBalanceDetails},
		{"parcelas.pdf", domain.ScreenBalanceDetails},
		{"consulta_x.pdf", domain.ScreenBillingLookup},
		{"cobranca.pdf", domain.ScreenBillingLookup},
		{"OPERACAO.pdf", domain.ScreenOperation},
		{"tela_sistema_1.pdf", ""},
		{"lote_2.pdf", ""},
		{"tela_sistema_3.pdf", ""},
		{"random.pdf", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := processor.InferScreenType(tt.filename); got != tt.want {
				t.Errorf("InferScreenType(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
