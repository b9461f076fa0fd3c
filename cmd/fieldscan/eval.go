package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/service"
)

var errSLAViolated = errors.New("benchmark SLA violated")

// EvalCmd is the "eval" subcommand.
type EvalCmd struct {
	Dataset      string  `arg:"" help:"Dataset JSON whose extraction_schema holds the expected values"`
	PDFDir       string  `arg:"" name:"pdf-dir" help:"Directory the dataset pdf_path entries are relative to"`
	LLM          bool    `name:"llm" help:"Enable the language-model fallback pass"`
	Verbose      bool    `short:"v" help:"Print the missed keys of every document"`
	CSV          string  `name:"csv" type:"path" help:"Write per-document results as CSV"`
	XLSX         string  `name:"xlsx" type:"path" help:"Write the benchmark report as an XLSX workbook"`
	SLALatency   float64 `name:"sla-latency" default:"10" env:"SLA_LATENCY_S" help:"Maximum mean latency in seconds"`
	AccMinDoc    float64 `name:"acc-min-doc" default:"0.8" env:"ACC_MIN_DOC" help:"Accuracy a document needs to count as passing"`
	AccMinGlobal float64 `name:"acc-min-global" default:"0.8" env:"ACC_MIN_GLOBAL" help:"Minimum mean accuracy"`
	FailOnSLA    bool    `name:"fail-on-sla" env:"FAIL_ON_SLA" help:"Exit with status 1 when an SLA check fails"`
	Top          int     `name:"top" default:"3" env:"SHOW_TOP_N" help:"Slowest and least accurate documents listed per label"`
}

type docResult struct {
	Label    domain.Category
	PDF      string
	Latency  time.Duration
	Right    int
	Total    int
	Accuracy float64
	Misses   []string
}

type labelStats struct {
	Label     domain.Category
	Latencies []float64
	Right     int
	Total     int
	Docs      []docResult
}

// Accuracy is the field-level accuracy over every document of the label
func (s labelStats) Accuracy() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Right) / float64(s.Total)
}

type benchmark struct {
	Docs         []docResult
	Labels       []*labelStats
	MeanLatency  float64
	P95          float64
	P99          float64
	MeanAccuracy float64
	DocsOK       int
	Cost         fallback.CostSummary
	LatencyOK    bool
	AccuracyOK   bool
}

// Run executes the eval command.
func (c *EvalCmd) Run(deps *Dependencies) error {
	tasks, err := loadDataset(c.Dataset)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	deps.ResetUsage()
	var docs []docResult
	for _, t := range tasks {
		golden, ok := goldenOf(t)
		if !ok {
			continue
		}
		if err := schema.Validate(t.Label, schema.FromKeys(golden.Keys())); err != nil {
			fmt.Fprintf(deps.Stdout, "[SKIP] %s: %v\n", t.PDFPath, err)
			continue
		}
		path := resolvePath(c.PDFDir, t.PDFPath)
		if !fileExists(path) {
			fmt.Fprintf(deps.Stdout, "[SKIP] PDF not found: %s\n", path)
			continue
		}

		start := time.Now()
		out, report := deps.Extractor.Extract(deps.Ctx, service.Input{
			Path:        path,
			Category:    t.Label,
			Schema:      schema.FromKeys(golden.Keys()),
			ScreenType:  t.ScreenType,
			UseFallback: c.LLM,
		})
		latency := time.Since(start)
		if report.Error != "" {
			fmt.Fprintf(deps.Stdout, "[ERROR] failed to extract %s: %s\n", filepath.Base(path), report.Error)
		}

		right, total, misses := compareFields(golden, out.Fields)
		doc := docResult{
			Label:   t.Label,
			PDF:     filepath.Base(path),
			Latency: latency,
			Right:   right,
			Total:   total,
			Misses:  misses,
		}
		if total > 0 {
			doc.Accuracy = float64(right) / float64(total)
		}
		if c.Verbose && len(misses) > 0 {
			fmt.Fprintf(deps.Stdout, "[MISS] %s: %s\n", doc.PDF, strings.Join(misses, ", "))
		}
		docs = append(docs, doc)
	}

	b := c.summarize(docs, deps.Usage())
	c.print(deps.Stdout, b)

	if c.CSV != "" && len(docs) > 0 {
		if err := writeCSV(c.CSV, docs); err != nil {
			fmt.Fprintf(deps.Stderr, "error: failed to write CSV: %v\n", err)
			return err
		}
		fmt.Fprintf(deps.Stdout, "\n[OK] CSV saved to %s\n", c.CSV)
	}
	if c.XLSX != "" && len(docs) > 0 {
		if err := writeXLSX(c.XLSX, b); err != nil {
			fmt.Fprintf(deps.Stderr, "error: failed to write XLSX: %v\n", err)
			return err
		}
		fmt.Fprintf(deps.Stdout, "[OK] XLSX saved to %s\n", c.XLSX)
	}

	if len(docs) == 0 {
		fmt.Fprintln(deps.Stdout, "\n[WARN] no document processed, check the dataset paths")
	}
	if c.FailOnSLA && (!b.LatencyOK || !b.AccuracyOK) {
		return errSLAViolated
	}
	return nil
}

// goldenOf returns the expected values of a task, or false when the task
// lacks a label, a path or a non-empty object of expected values.
func goldenOf(t Task) (domain.Fields, bool) {
	var golden domain.Fields
	if t.Label == "" || t.PDFPath == "" || len(t.Schema) == 0 {
		return golden, false
	}
	if err := json.Unmarshal(t.Schema, &golden); err != nil || golden.Len() == 0 {
		return golden, false
	}
	return golden, true
}

// compareFields compares only the golden keys, trimmed and case-folded
func compareFields(golden, got domain.Fields) (right, total int, misses []string) {
	for _, k := range golden.Keys() {
		total++
		if strings.EqualFold(strings.TrimSpace(golden.Get(k)), strings.TrimSpace(got.Get(k))) {
			right++
			continue
		}
		misses = append(misses, k)
	}
	return right, total, misses
}

// percentile interpolates linearly between the closest ranks
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	xs := append([]float64(nil), values...)
	sort.Float64s(xs)
	if p <= 0 {
		return xs[0]
	}
	if p >= 100 {
		return xs[len(xs)-1]
	}

	k := float64(len(xs)-1) * p / 100
	f := int(k)
	c := min(f+1, len(xs)-1)
	if f == c {
		return xs[f]
	}
	return xs[f]*(float64(c)-k) + xs[c]*(k-float64(f))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func (c *EvalCmd) summarize(docs []docResult, cost fallback.CostSummary) benchmark {
	b := benchmark{Docs: docs, Cost: cost, LatencyOK: true, AccuracyOK: true}

	byLabel := map[domain.Category]*labelStats{}
	latencies := make([]float64, 0, len(docs))
	accs := make([]float64, 0, len(docs))
	for _, d := range docs {
		lat := d.Latency.Seconds()
		latencies = append(latencies, lat)
		accs = append(accs, d.Accuracy)
		if d.Accuracy >= c.AccMinDoc {
			b.DocsOK++
		}

		st, ok := byLabel[d.Label]
		if !ok {
			st = &labelStats{Label: d.Label}
			byLabel[d.Label] = st
			b.Labels = append(b.Labels, st)
		}
		st.Latencies = append(st.Latencies, lat)
		st.Right += d.Right
		st.Total += d.Total
		st.Docs = append(st.Docs, d)
	}

	if len(docs) > 0 {
		b.MeanLatency = mean(latencies)
		b.P95 = percentile(latencies, 95)
		b.P99 = percentile(latencies, 99)
		b.MeanAccuracy = mean(accs)
		b.LatencyOK = b.MeanLatency <= c.SLALatency
		b.AccuracyOK = b.MeanAccuracy >= c.AccMinGlobal
	}
	return b
}

// slowest returns up to n documents by descending latency
func slowest(docs []docResult, n int) []docResult {
	out := append([]docResult(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Latency > out[j].Latency })
	return out[:min(n, len(out))]
}

// leastAccurate returns up to n documents by ascending accuracy
func leastAccurate(docs []docResult, n int) []docResult {
	out := append([]docResult(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Accuracy < out[j].Accuracy })
	return out[:min(n, len(out))]
}

func pct(x float64) string {
	return fmt.Sprintf("%.2f%%", 100*x)
}

func okOrFail(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}

func (c *EvalCmd) print(w io.Writer, b benchmark) {
	fmt.Fprintln(w, "\n=== OVERALL ===")
	if len(b.Docs) > 0 {
		fmt.Fprintf(w, "Mean latency: %.3fs\n", b.MeanLatency)
		fmt.Fprintf(w, "p95: %.3fs | p99: %.3fs\n", b.P95, b.P99)
		fmt.Fprintf(w, "Mean field accuracy: %s\n", pct(b.MeanAccuracy))
		fmt.Fprintf(w, "Docs >= %d%%: %d/%d\n", int(c.AccMinDoc*100), b.DocsOK, len(b.Docs))
	}

	perDoc := 0.0
	if len(b.Docs) > 0 {
		perDoc = b.Cost.USDTotal / float64(len(b.Docs))
	}
	fmt.Fprintf(w, "Total cost (USD): %.6f | Mean cost/doc (USD): %.6f\n", b.Cost.USDTotal, perDoc)
	fmt.Fprintf(w, "Tokens: prompt=%d | completion=%d\n", b.Cost.PromptTokens, b.Cost.CompletionTokens)

	fmt.Fprintln(w, "\n=== BY LABEL ===")
	for _, st := range b.Labels {
		fmt.Fprintf(w, "- %s: mean_latency=%.3fs | accuracy=%s (%d/%d)\n",
			st.Label, mean(st.Latencies), pct(st.Accuracy()), st.Right, st.Total)

		var lat, acc []string
		for _, d := range slowest(st.Docs, c.Top) {
			lat = append(lat, fmt.Sprintf("%s=%.2fs", d.PDF, d.Latency.Seconds()))
		}
		for _, d := range leastAccurate(st.Docs, c.Top) {
			acc = append(acc, fmt.Sprintf("%s=%s", d.PDF, pct(d.Accuracy)))
		}
		fmt.Fprintf(w, "  slowest: %s\n", strings.Join(lat, ", "))
		fmt.Fprintf(w, "  least accurate: %s\n", strings.Join(acc, ", "))
	}

	fmt.Fprintln(w, "\n=== SLA ===")
	fmt.Fprintf(w, "- Mean latency <= %.1fs: %s\n", c.SLALatency, okOrFail(b.LatencyOK))
	fmt.Fprintf(w, "- Mean accuracy >= %d%%: %s\n", int(c.AccMinGlobal*100), okOrFail(b.AccuracyOK))
}
