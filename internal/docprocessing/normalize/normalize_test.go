package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

func TestValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		in   string
		want string
	}{
		{"collapse whitespace", "nome", "  JOÃO   DA\tSILVA ", "JOÃO DA SILVA"},
		{"region strips UF", "seccional", "UF: sp", "SP"},
		{"region alias key", "u.f.", " rj ", "RJ"},
		{"status upper", "situacao", "regular  ativo", "REGULAR ATIVO"},
		{"mobile phone", "telefone_profissional", "11999998888", "(11) 99999-8888"},
		{"landline phone", "telefone_profissional", "11 3333 4444", "(11) 3333-4444"},
		{"short phone unchanged", "telefone_profissional", "  3333-4444 ", "3333-4444"},
		{"unknown key", "produto", "Crédito  Pessoal", "Crédito Pessoal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.key, tt.in))
		})
	}
}

func TestValues(t *testing.T) {
	in := domain.Values{
		"seccional": domain.Present("UF sp"),
		"subsecao":  domain.Missing(),
		"situacao":  domain.Present(""),
	}

	got := Values(in)

	assert.Equal(t, "SP", got["seccional"].String())
	assert.False(t, got["subsecao"].IsPresent())
	assert.True(t, got["situacao"].IsPresent())
	assert.False(t, got["situacao"].Filled())
	assert.Equal(t, "UF sp", in["seccional"].String(), "input must not be mutated")
}
