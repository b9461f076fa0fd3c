package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
)

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single", []float64{2}, 95, 2},
		{"min", []float64{3, 1, 2}, 0, 1},
		{"max", []float64{3, 1, 2}, 100, 3},
		{"median", []float64{4, 1, 3, 2}, 50, 2.5},
		{"p95 of five", []float64{1, 2, 3, 4, 5}, 95, 4.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestCompareFields(t *testing.T) {
	t.Parallel()

	golden := domain.NewFields([]string{"nome", "seccional", "situacao"}, map[string]string{
		"nome":      "João da Silva",
		"seccional": "SP",
		"situacao":  "Situação Regular",
	})
	got := domain.NewFields([]string{"nome", "seccional", "extra"}, map[string]string{
		"nome":      "  JOÃO DA SILVA ",
		"seccional": "RJ",
		"extra":     "ignored",
	})

	right, total, misses := compareFields(golden, got)

	assert.Equal(t, 1, right)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"seccional", "situacao"}, misses)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	c := &EvalCmd{SLALatency: 1, AccMinDoc: 0.8, AccMinGlobal: 0.8, Top: 1}
	docs := []docResult{
		{Label: domain.CategoryLicense, PDF: "a.pdf", Latency: 500 * time.Millisecond, Right: 4, Total: 4, Accuracy: 1},
		{Label: domain.CategoryScreen, PDF: "b.pdf", Latency: 2 * time.Second, Right: 1, Total: 3, Accuracy: 1.0 / 3},
		{Label: domain.CategoryLicense, PDF: "c.pdf", Latency: 1500 * time.Millisecond, Right: 3, Total: 4, Accuracy: 0.75},
	}

	b := c.summarize(docs, fallback.CostSummary{})

	assert.InDelta(t, 4.0/3, b.MeanLatency, 1e-9)
	assert.Equal(t, 1, b.DocsOK)
	assert.False(t, b.LatencyOK)
	assert.False(t, b.AccuracyOK)

	require.Len(t, b.Labels, 2)
	lic := b.Labels[0]
	assert.Equal(t, domain.CategoryLicense, lic.Label)
	assert.InDelta(t, 7.0/8, lic.Accuracy(), 1e-9)
	assert.Equal(t, "c.pdf", slowest(lic.Docs, c.Top)[0].PDF)
	assert.Equal(t, "c.pdf", leastAccurate(lic.Docs, c.Top)[0].PDF)
}

func TestSummarize_EmptyPassesSLA(t *testing.T) {
	t.Parallel()

	b := (&EvalCmd{SLALatency: 10, AccMinGlobal: 0.8}).summarize(nil, fallback.CostSummary{})

	assert.True(t, b.LatencyOK)
	assert.True(t, b.AccuracyOK)
}

func TestEval_ReportsAndFailsOnSLA(t *testing.T) {
	t.Parallel()

	pdfDir := t.TempDir()
	touch(t, pdfDir, "oab_1.pdf", "tela_detalhamento_3.pdf")
	dataset := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(dataset, []byte(`[
		{"label": "carteira_oab", "extraction_schema": {"nome": "JOÃO DA SILVA", "seccional": "SP"}, "pdf_path": "oab_1.pdf"},
		{"label": "tela_sistema", "extraction_schema": {"data_referencia": "31/01/2024", "total_de_parcelas": "9,99"}, "pdf_path": "tela_detalhamento_3.pdf"},
		{"label": "tela_sistema", "extraction_schema": {}, "pdf_path": "tela_detalhamento_3.pdf"},
		{"label": "carteira_oab", "extraction_schema": {"cpf": "1"}, "pdf_path": "oab_1.pdf"}
	]`), 0o644))

	reports := t.TempDir()
	csvPath := filepath.Join(reports, "bench.csv")
	xlsxPath := filepath.Join(reports, "bench.xlsx")

	ex := &stubExtractor{values: map[string]string{
		"nome":              "joão da silva",
		"seccional":         "SP",
		"data_referencia":   "31/01/2024",
		"total_de_parcelas": "1.234,56",
	}}
	stdout := &bytes.Buffer{}

	err := newTestMain(ex).Run(context.Background(), []string{
		"eval", dataset, pdfDir,
		"--verbose", "--fail-on-sla", "--acc-min-global", "0.9",
		"--csv", csvPath, "--xlsx", xlsxPath,
	}, stdout, &bytes.Buffer{})

	require.ErrorIs(t, err, errSLAViolated)
	assert.Len(t, ex.inputs, 2)
	assert.Equal(t, domain.ScreenBalanceDetails, ex.inputs[1].ScreenType)

	out := stdout.String()
	assert.Contains(t, out, "[MISS] tela_detalhamento_3.pdf: total_de_parcelas")
	assert.Contains(t, out, "Mean field accuracy: 75.00%")
	assert.Contains(t, out, "Tokens: prompt=120 | completion=30")
	assert.Contains(t, out, "Mean accuracy >= 90%: FAIL")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"carteira_oab", "oab_1.pdf"}, records[1][:2])
	assert.Equal(t, "1.000000", records[1][3])
	assert.Equal(t, "total_de_parcelas", records[2][4])

	wb, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Documents", "Labels", "Summary"}, wb.GetSheetList())
	v, err := wb.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestEval_PassesWithoutFailFlag(t *testing.T) {
	t.Parallel()

	pdfDir := t.TempDir()
	touch(t, pdfDir, "oab_1.pdf")
	dataset := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(dataset, []byte(`[
		{"label": "carteira_oab", "extraction_schema": {"nome": "A"}, "pdf_path": "oab_1.pdf"}
	]`), 0o644))

	m := newTestMain(&stubExtractor{})
	resets := 0
	m.ResetUsage = func() { resets++ }

	err := m.Run(context.Background(), []string{"eval", dataset, pdfDir}, &bytes.Buffer{}, &bytes.Buffer{})

	assert.NoError(t, err)
	assert.Equal(t, 1, resets)
}
