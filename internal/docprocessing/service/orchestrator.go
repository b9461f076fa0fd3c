package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/metrics"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/normalize"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/storage"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

// fallbackExcluded lists keys never sent to the fallback collaborator
var fallbackExcluded = map[domain.Category]map[string]bool{
	domain.CategoryLicense: {"telefone_profissional": true},
}

// Request is one pipeline run
type Request struct {
	Path       string
	Category   domain.Category
	Schema     domain.Schema
	ScreenType domain.ScreenType
	// UseFallback forces a fallback pass when coverage is short and skips the cache lookup.
	UseFallback bool
	Hints       *fallback.Hints
}

// Result holds every requested key under the caller's original spelling
type Result struct {
	Values domain.Values
	Report domain.Report
}

// Options tune the pipeline gates
type Options struct {
	MinCoverage       float64
	MaxFallbackFields int
	StrictCategories  bool
}

// DefaultOptions matches the configuration defaults
func DefaultOptions() Options {
	return Options{MinCoverage: 0.9, MaxFallbackFields: 99}
}

// Orchestrator runs validate, cache check, heuristic pass, coverage check,
// optional fallback pass and cache decision for one document.
type Orchestrator struct {
	reader     textlines.Reader
	dispatcher *processor.Dispatcher
	cache      storage.ResultCache
	filler     fallback.Filler
	opts       Options
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithFiller sets the fallback collaborator. Without one the fallback pass is skipped.
func WithFiller(f fallback.Filler) OrchestratorOption {
	return func(o *Orchestrator) {
		o.filler = f
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an orchestrator. A nil cache disables caching.
func NewOrchestrator(reader textlines.Reader, dispatcher *processor.Dispatcher, cache storage.ResultCache, opts Options, log *logger.Logger, options ...OrchestratorOption) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		reader:     reader,
		dispatcher: dispatcher,
		cache:      cache,
		opts:       opts,
		log:        log.WithComponent("orchestrator"),
		now:        time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// HasFiller reports whether a fallback collaborator is configured
func (o *Orchestrator) HasFiller() bool {
	return o.filler != nil
}

// Run never fails: precondition, reader and extractor errors are logged and
// produce a result with every requested key missing.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	start := o.now()
	res, err := o.run(ctx, req)
	res.Report.DurationMs = o.now().Sub(start).Milliseconds()

	outcome := "ok"
	switch {
	case err != nil:
		o.log.Warn().Err(err).
			Str("category", string(req.Category)).
			Str("path", req.Path).
			Msg("extraction returned empty result")
		res = Result{
			Values: emptyValues(req.Schema),
			Report: domain.Report{DurationMs: res.Report.DurationMs, Error: err.Error()},
		}
		outcome = "empty"
	case res.Report.CacheHit:
		outcome = "cached"
	}
	o.metrics.ObserveExtraction(string(req.Category), string(res.Report.Layout), outcome, res.Report.Coverage, o.now().Sub(start))
	return res
}

func (o *Orchestrator) run(ctx context.Context, req Request) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v: %w", r, domain.ErrExtraction)
		}
	}()

	if err := o.validate(req); err != nil {
		return Result{}, err
	}

	canon := schema.Canonicalize(req.Category, req.Schema)
	keys := canon.Keys()
	log := o.log.With().Str("category", string(req.Category)).Strs("keys", keys).Logger()

	var screenType domain.ScreenType
	if req.Category == domain.CategoryScreen {
		screenType = req.ScreenType
	}

	var report domain.Report
	cacheKey := ""
	if fp, err := storage.FingerprintFile(req.Path); err != nil {
		log.Debug().Err(err).Msg("fingerprint unavailable, cache disabled for this call")
	} else {
		report.Fingerprint = fp
		cacheKey = storage.CacheKey(fp, req.Category, keys, screenType)
	}

	if o.cache != nil && cacheKey != "" && !req.UseFallback {
		cached, ok := o.cache.Get(cacheKey)
		o.metrics.CacheLookup(ok)
		if ok {
			log.Debug().Str("cache_key", cacheKey).Msg("cache hit")
			report.CacheHit = true
			report.Layout = cached.Layout
			report.ExpectedKeys = cached.Expected
			report.CoverageBefore = domain.Coverage(cached.Values, cached.Expected)
			report.Coverage = report.CoverageBefore
			return Result{Values: schema.Decanonicalize(req.Category, req.Schema, cached.Values), Report: report}, nil
		}
		log.Debug().Str("cache_key", cacheKey).Msg("cache miss")
	}

	lines, err := o.reader.Lines(ctx, req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read lines: %v: %w", err, domain.ErrCollaborator)
	}
	if len(lines) == 0 {
		return Result{}, fmt.Errorf("no text lines: %w", domain.ErrCollaborator)
	}

	sel, err := o.dispatcher.Dispatch(req.Category, keys, lines)
	if err != nil {
		return Result{}, err
	}
	vals := safeNormalize(sel.Values, log)

	report.Layout = sel.Layout
	report.ExpectedKeys = sel.Expected
	report.CoverageBefore = domain.Coverage(vals, sel.Expected)
	log.Debug().
		Str("layout", string(sel.Layout)).
		Bool("ambiguous", sel.Ambiguous).
		Float64("coverage", report.CoverageBefore).
		Int("filled", vals.FilledCount(sel.Expected)).
		Int("expected", len(sel.Expected)).
		Msg("heuristic pass done")

	if req.UseFallback && report.CoverageBefore < o.opts.MinCoverage {
		vals = o.fallbackPass(ctx, req, keys, lines, sel.Expected, vals, &report)
	}

	vals = safeNormalize(vals, log)
	report.Coverage = domain.Coverage(vals, sel.Expected)

	if o.cache != nil && cacheKey != "" {
		if report.Coverage >= o.opts.MinCoverage || report.FallbackUsed {
			o.cache.Set(cacheKey, storage.Entry{Values: vals, Layout: sel.Layout, Expected: sel.Expected})
			report.Cached = true
			log.Debug().Float64("coverage", report.Coverage).Msg("cache set")
		} else {
			log.Debug().Float64("coverage", report.Coverage).Msg("cache skip, coverage below threshold")
		}
	}

	return Result{Values: schema.Decanonicalize(req.Category, req.Schema, vals), Report: report}, nil
}

func (o *Orchestrator) validate(req Request) error {
	if len(req.Schema) == 0 {
		return fmt.Errorf("empty schema: %w", domain.ErrPrecondition)
	}
	if req.Category == "" {
		return fmt.Errorf("empty category: %w", domain.ErrPrecondition)
	}
	if o.opts.StrictCategories && !req.Category.Known() {
		return fmt.Errorf("unsupported category %q: %w", req.Category, domain.ErrPrecondition)
	}
	if req.Path == "" {
		return fmt.Errorf("empty document path: %w", domain.ErrPrecondition)
	}
	if _, err := os.Stat(req.Path); err != nil {
		return fmt.Errorf("document %q: %v: %w", req.Path, err, domain.ErrPrecondition)
	}
	return nil
}

// fallbackPass asks the collaborator for the expected keys still empty and
// merges every non-empty answer. Failures leave vals untouched.
func (o *Orchestrator) fallbackPass(ctx context.Context, req Request, keys, lines, expected []string, vals domain.Values, report *domain.Report) domain.Values {
	log := o.log.With().Str("category", string(req.Category)).Logger()

	if o.filler == nil {
		log.Debug().Msg("fallback skipped, no collaborator configured")
		o.metrics.FallbackCall("skipped")
		return vals
	}

	missing := missingKeys(req.Category, expected, vals)
	if len(missing) == 0 || len(missing) > o.opts.MaxFallbackFields {
		log.Debug().Int("missing", len(missing)).Msg("fallback skipped")
		o.metrics.FallbackCall("skipped")
		return vals
	}

	log.Debug().Strs("missing", missing).Msg("fallback activated")
	report.FallbackUsed = true
	out, err := o.filler.Fill(ctx, fallback.Request{
		Label:   req.Category,
		AllKeys: keys,
		Missing: missing,
		Context: BuildContext(req.Category, lines, missing, req.Hints),
		Hints:   req.Hints,
	})
	if err != nil {
		report.FallbackError = err.Error()
		log.Warn().Err(err).Msg("fallback failed, keeping heuristic values")
		o.metrics.FallbackCall("error")
		return vals
	}
	o.metrics.FallbackCall("ok")

	merged := vals.Clone()
	for _, k := range missing {
		if v := out[k]; v != "" {
			merged[k] = domain.Present(v)
		}
	}
	log.Debug().Float64("coverage", domain.Coverage(merged, expected)).Msg("coverage after fallback")
	return merged
}

func missingKeys(cat domain.Category, expected []string, vals domain.Values) []string {
	skip := fallbackExcluded[cat]
	var out []string
	for _, k := range expected {
		if !vals[k].Filled() && !skip[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func safeNormalize(vals domain.Values, log zerolog.Logger) (out domain.Values) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("normalization failed, keeping raw values")
			out = vals
		}
	}()
	return normalize.Values(vals)
}

func emptyValues(s domain.Schema) domain.Values {
	return domain.NewValues(s.Keys())
}
