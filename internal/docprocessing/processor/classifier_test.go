package processor_test

import (
	"testing"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  domain.Layout
	}{
		{"detail title", []string{"Detalhamento de saldos por parcelas"}, domain.LayoutC},
		{"selection with total", []string{"Seleção de parcelas: Vencidas", "Total 10,00"}, domain.LayoutC},
		{"search with type marker", []string{"Pesquisar por: CPF", "Tipo: Pessoa Física"}, domain.LayoutB},
		{"operation and system type", []string{"Tipo de Operação: Compra", "Tipo de Sistema: Manual"}, domain.LayoutA},
		{"detail beats search", []string{"Pesquisar por: CPF", "Tipo: X", "Detalhamento de saldos por parcelas"}, domain.LayoutC},
		{"search beats operation", []string{"Pesquisa por: Nome", "Tipo: Ativo", "Tipo Operação: X", "Tipo Sistema: Y"}, domain.LayoutB},
		{"lone total", []string{"Total 5,00"}, domain.LayoutC},
		{"search without type marker", []string{"Pesquisar por: CPF"}, domain.LayoutA},
		{"no signal", []string{"nada aqui"}, domain.LayoutA},
		{"empty", nil, domain.LayoutA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processor.Classify(tt.lines); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}
