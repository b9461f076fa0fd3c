package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var csvHeader = []string{"label", "pdf", "latency_s", "accuracy_frac", "misses"}

func docRecord(d docResult) []string {
	return []string{
		string(d.Label),
		d.PDF,
		fmt.Sprintf("%.6f", d.Latency.Seconds()),
		fmt.Sprintf("%.6f", d.Accuracy),
		strings.Join(d.Misses, ";"),
	}
}

func writeCSV(path string, docs []docResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, d := range docs {
		if err := w.Write(docRecord(d)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// writeXLSX saves a workbook with a documents sheet, a per-label sheet and
// the overall summary.
func writeXLSX(path string, b benchmark) error {
	f := excelize.NewFile()
	defer f.Close()

	const (
		docsSheet    = "Documents"
		labelsSheet  = "Labels"
		summarySheet = "Summary"
	)
	if err := f.SetSheetName("Sheet1", docsSheet); err != nil {
		return err
	}
	for _, sheet := range []string{labelsSheet, summarySheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	writeRow := func(sheet string, row int, values ...any) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	for i, h := range csvHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(docsSheet, cell, h)
	}
	for i, d := range b.Docs {
		writeRow(docsSheet, i+2, string(d.Label), d.PDF, d.Latency.Seconds(), d.Accuracy, strings.Join(d.Misses, ";"))
	}
	_ = f.SetColWidth(docsSheet, "A", "A", 16)
	_ = f.SetColWidth(docsSheet, "B", "B", 32)
	_ = f.SetColWidth(docsSheet, "E", "E", 48)

	writeRow(labelsSheet, 1, "label", "documents", "mean_latency_s", "accuracy", "right", "total")
	for i, st := range b.Labels {
		writeRow(labelsSheet, i+2, string(st.Label), len(st.Docs), mean(st.Latencies), st.Accuracy(), st.Right, st.Total)
	}
	_ = f.SetColWidth(labelsSheet, "A", "A", 16)

	summary := [][]any{
		{"metric", "value"},
		{"documents", len(b.Docs)},
		{"mean_latency_s", b.MeanLatency},
		{"p95_latency_s", b.P95},
		{"p99_latency_s", b.P99},
		{"mean_accuracy", b.MeanAccuracy},
		{"documents_passing", b.DocsOK},
		{"prompt_tokens", b.Cost.PromptTokens},
		{"completion_tokens", b.Cost.CompletionTokens},
		{"usd_total", b.Cost.USDTotal},
		{"latency_sla", okOrFail(b.LatencyOK)},
		{"accuracy_sla", okOrFail(b.AccuracyOK)},
	}
	for i, r := range summary {
		writeRow(summarySheet, i+1, r...)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}
