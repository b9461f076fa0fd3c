package textlines

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	got := Clean([]string{"  Data Base:   01/01/2024 ", "", "\t", "Produto\tX"})
	assert.Equal(t, []string{"Data Base: 01/01/2024", "Produto X"}, got)
}

func TestTextReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tela.txt")
	require.NoError(t, os.WriteFile(path, []byte("Tipo de Operação: Compra\n\n  Tipo de Sistema: Manual  \n"), 0o600))

	lines, err := NewAutoReader().Lines(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tipo de Operação: Compra", "Tipo de Sistema: Manual"}, lines)
}

func TestTextReader_Missing(t *testing.T) {
	_, err := NewTextReader().Lines(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestPDFReader_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	lines, err := NewAutoReader().Lines(context.Background(), path)
	assert.Error(t, err)
	assert.Empty(t, lines)
}

func TestReaderFunc(t *testing.T) {
	r := ReaderFunc(func(ctx context.Context, path string) ([]string, error) {
		return []string{path}, nil
	})
	lines, err := r.Lines(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, lines)
}

func TestJoinRow(t *testing.T) {
	tests := []struct {
		name  string
		texts []pdf.Text
		want  string
	}{
		{
			name: "gap becomes space",
			texts: []pdf.Text{
				{S: "Data", X: 0, W: 20, FontSize: 10},
				{S: "Base", X: 25, W: 20, FontSize: 10},
			},
			want: "Data Base",
		},
		{
			name: "adjacent glyphs",
			texts: []pdf.Text{
				{S: "0", X: 0, W: 5, FontSize: 10},
				{S: "1", X: 5, W: 5, FontSize: 10},
			},
			want: "01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinRow(tt.texts))
		})
	}
}
