package service

import (
	"context"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

// Input is a caller-level extraction request
type Input struct {
	Path        string
	Category    domain.Category
	Schema      domain.Schema
	ScreenType  domain.ScreenType
	UseFallback bool
}

// Extraction is the gated result aligned to the caller's schema
type Extraction struct {
	Fields      domain.Fields
	Report      domain.Report
	Diagnostics domain.Diagnostics
}

// RetryGate runs a deterministic first pass and, for screens whose layout
// coverage falls short, a second pass with the fallback forced. It is
// independent of the orchestrator's own coverage gate.
type RetryGate struct {
	orch      *Orchestrator
	reader    textlines.Reader
	threshold float64
	forced    domain.Layout
	log       *logger.Logger
}

// NewRetryGate creates a gate. forced pins the layout used for metric keys and hints.
func NewRetryGate(orch *Orchestrator, reader textlines.Reader, threshold float64, forced domain.Layout, log *logger.Logger) *RetryGate {
	if log == nil {
		log = logger.Nop()
	}
	return &RetryGate{
		orch:      orch,
		reader:    reader,
		threshold: threshold,
		forced:    forced,
		log:       log.WithComponent("retry_gate"),
	}
}

func (g *RetryGate) Extract(ctx context.Context, in Input) Extraction {
	req := Request{
		Path:       in.Path,
		Category:   in.Category,
		Schema:     in.Schema,
		ScreenType: in.ScreenType,
	}
	kept := g.orch.Run(ctx, req)

	var diag domain.Diagnostics
	if in.Category == domain.CategoryScreen {
		canRetry := in.UseFallback && g.orch.HasFiller()
		layout := g.layout(ctx, in.Path, kept.Report, canRetry)
		metricKeys := schema.LayoutKeys(layout)
		before := metricCoverage(in.Category, in.Schema, kept.Values, metricKeys)

		diag.Layout = layout
		diag.CoverageBefore = before
		best := before

		if before < g.threshold && canRetry {
			req.UseFallback = true
			if layout == domain.LayoutA {
				req.Hints = fallback.ScreenAHints()
			}
			retry := g.orch.Run(ctx, req)
			diag.FallbackRequested = true
			diag.FallbackUsed = retry.Report.FallbackUsed
			diag.FallbackError = retry.Report.FallbackError

			after := metricCoverage(in.Category, in.Schema, retry.Values, metricKeys)
			g.log.Debug().
				Str("layout", string(layout)).
				Float64("coverage_before", before).
				Float64("coverage_retry", after).
				Msg("fallback retry finished")
			if after > best {
				kept, best = retry, after
			}
		}
		diag.CoverageFinal = best
	}

	return Extraction{
		Fields:      Align(in.Schema, kept.Values),
		Report:      kept.Report,
		Diagnostics: diag,
	}
}

// layout reads and classifies the document only when a retry can follow.
// Otherwise the first pass layout is reused so a cache hit stays read-free.
func (g *RetryGate) layout(ctx context.Context, path string, first domain.Report, canRetry bool) domain.Layout {
	if g.forced != "" {
		return g.forced
	}
	if !canRetry {
		if first.Layout != "" {
			return first.Layout
		}
		return processor.Classify(nil)
	}
	lines, err := g.reader.Lines(ctx, path)
	if err != nil {
		g.log.Debug().Err(err).Msg("classification read failed, using default layout")
	}
	return processor.Classify(lines)
}

// metricCoverage measures caller-keyed values against a canonical tuple.
// Tuple keys the caller did not request count as unfilled.
func metricCoverage(cat domain.Category, s domain.Schema, vals domain.Values, keys []string) float64 {
	canon := make(domain.Values, len(s))
	for _, f := range s {
		k := schema.Canonical(cat, f.Key)
		if !canon[k].Filled() {
			canon[k] = vals[f.Key]
		}
	}
	return domain.Coverage(canon, keys)
}

// Align maps every schema key, in order, to its boundary string
func Align(s domain.Schema, vals domain.Values) domain.Fields {
	return domain.NewFields(s.Keys(), vals.Strings())
}
