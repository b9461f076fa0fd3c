package processor_test

import (
	"testing"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
)

var licenseCard = []string{
	"JOÃO DA SILVA",
	"Inscrição: 123456",
	"Seccional: SP",
	"Subseção: CAMPINAS",
	"Categoria: ADVOGADO",
	"Endereço Profissional: Rua das Flores, 100",
	"Centro Campinas CEP 13010-000",
	"Telefone Profissional: (19) 99999-8888",
	"Situação: REGULAR",
}

func TestLicenseExtractor_CanExtract(t *testing.T) {
	e := processor.NewLicenseExtractor()

	if !e.CanExtract(domain.CategoryLicense, "") {
		t.Error("expected license extractor to accept carteira_oab")
	}
	if e.CanExtract(domain.CategoryScreen, domain.LayoutA) {
		t.Error("expected license extractor to reject tela_sistema")
	}
}

func TestLicenseExtractor_Card(t *testing.T) {
	e := processor.NewLicenseExtractor()
	got := e.Extract(schema.LicenseKeys, licenseCard)

	tests := []struct {
		key  string
		want string
	}{
		{"nome", "JOÃO DA SILVA"},
		{"inscricao", "123456"},
		{"seccional", "SP"},
		{"subsecao", "CAMPINAS"},
		{"categoria", "CATEGORIA: ADVOGADO"},
		{"endereco_profissional", "Rua das Flores, 100 Centro Campinas"},
		{"telefone_profissional", "(19) 99999-8888"},
		{"situacao", "SITUAÇÃO: REGULAR"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := got[tt.key].Get()
			if !ok {
				t.Fatalf("field %q missing", tt.key)
			}
			if v != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, v, tt.want)
			}
		})
	}
}

func TestLicenseExtractor_OnlyRequestedKeys(t *testing.T) {
	e := processor.NewLicenseExtractor()
	got := e.Extract([]string{"seccional"}, licenseCard)

	if len(got) != 1 {
		t.Fatalf("got %d keys, want 1", len(got))
	}
	if v, _ := got["seccional"].Get(); v != "SP" {
		t.Errorf("seccional = %q, want SP", v)
	}
}

func TestLicenseExtractor_SharedLineWithPostalCode(t *testing.T) {
	e := processor.NewLicenseExtractor()
	got := e.Extract([]string{"inscricao", "subsecao"}, []string{
		"MARIA SOUZA",
		"Inscrição 98765 Subseção: Londrina CEP 86000-000",
	})

	if v, _ := got["inscricao"].Get(); v != "98765" {
		t.Errorf("inscricao = %q, want 98765", v)
	}
	if v, _ := got["subsecao"].Get(); v != "Londrina" {
		t.Errorf("subsecao = %q, want Londrina", v)
	}
}

func TestLicenseExtractor_AddressEndIsCaseSensitive(t *testing.T) {
	e := processor.NewLicenseExtractor()
	got := e.Extract([]string{"endereco_profissional"}, []string{
		"MARIA SOUZA",
		"Endereço Profissional: Rua brasil novo, 20",
		"CEP 01000-000",
		"Telefone Profissional: (11) 3333-4444",
	})

	if v, _ := got["endereco_profissional"].Get(); v != "Rua brasil novo, 20" {
		t.Errorf("endereco_profissional = %q, want %q", v, "Rua brasil novo, 20")
	}
}

func TestLicenseExtractor_SubsectionRejectsRegistrationNumber(t *testing.T) {
	e := processor.NewLicenseExtractor()

	tests := []struct {
		name  string
		lines []string
	}{
		{"digits only", []string{"MARIA SOUZA", "Inscrição: 123456", "Subseção: 123456"}},
		{"digits on next line", []string{"MARIA SOUZA", "Inscrição: 123456", "Subseção", "123.456"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract([]string{"inscricao", "subsecao"}, tt.lines)
			if v, _ := got["inscricao"].Get(); v != "123456" {
				t.Errorf("inscricao = %q, want 123456", v)
			}
			if got["subsecao"].Filled() {
				t.Errorf("subsecao = %q, want missing", got["subsecao"].String())
			}
		})
	}
}

func TestLicenseExtractor_Fallbacks(t *testing.T) {
	e := processor.NewLicenseExtractor()
	lines := []string{"ANA PEREIRA", "Registro 654321", "Contato (11) 3333-4444"}

	got := e.Extract([]string{"inscricao", "telefone_profissional", "situacao"}, lines)

	if v, _ := got["inscricao"].Get(); v != "654321" {
		t.Errorf("inscricao = %q, want 654321", v)
	}
	if v, _ := got["telefone_profissional"].Get(); v != "(11) 3333-4444" {
		t.Errorf("telefone_profissional = %q, want (11) 3333-4444", v)
	}
	if got["situacao"].IsPresent() {
		t.Error("situacao should be missing")
	}
}
