package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/storage"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/testutil"
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

var detailScreen = []string{
	"Detalhamento de saldos por parcelas",
	"Total Geral 1.234,56",
}

var detailKeys = []string{"data_referencia", "selecao_de_parcelas", "total_de_parcelas"}

// countingReader counts how often the document is actually read
type countingReader struct {
	textlines.Reader
	calls atomic.Int32
}

func newCountingReader() *countingReader {
	return &countingReader{Reader: textlines.NewTextReader()}
}

func (r *countingReader) Lines(ctx context.Context, path string) ([]string, error) {
	r.calls.Add(1)
	return r.Reader.Lines(ctx, path)
}

// recordingFiller answers with fixed values and keeps every request
type recordingFiller struct {
	mu       sync.Mutex
	answer   map[string]string
	err      error
	requests []fallback.Request
}

func (f *recordingFiller) Fill(ctx context.Context, req fallback.Request) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

func (f *recordingFiller) calls() []fallback.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fallback.Request(nil), f.requests...)
}

func newTestOrchestrator(reader textlines.Reader, opts ...OrchestratorOption) (*Orchestrator, *storage.MemoryCache) {
	cache := storage.NewMemoryCache(storage.CacheOptions{})
	dispatcher := processor.NewDispatcher(processor.DefaultRegistry())
	return NewOrchestrator(reader, dispatcher, cache, DefaultOptions(), logger.Nop(), opts...), cache
}

func TestOrchestrator_CachesFullCoverage(t *testing.T) {
	reader := newCountingReader()
	orch, cache := newTestOrchestrator(reader)
	defer cache.Close()

	path := testutil.WriteDocument(t, "card.txt", licenseCard...)
	req := Request{Path: path, Category: domain.CategoryLicense, Schema: schema.FromKeys(schema.LicenseKeys)}

	first := orch.Run(context.Background(), req)
	require.Empty(t, first.Report.Error)
	assert.Equal(t, 1.0, first.Report.Coverage)
	assert.True(t, first.Report.Cached)
	assert.False(t, first.Report.CacheHit)

	second := orch.Run(context.Background(), req)
	assert.True(t, second.Report.CacheHit)
	assert.Equal(t, 1.0, second.Report.Coverage)
	assert.Equal(t, int32(1), reader.calls.Load(), "second run should be served from cache")
	assert.Equal(t, first.Values.Strings(), second.Values.Strings())
}

func TestOrchestrator_SkipsCacheBelowThreshold(t *testing.T) {
	reader := newCountingReader()
	orch, cache := newTestOrchestrator(reader)
	defer cache.Close()

	path := testutil.WriteDocument(t, "lorem.txt", "Lorem ipsum dolor sit amet", "consectetur adipiscing elit")
	req := Request{Path: path, Category: domain.CategoryScreen, Schema: schema.FromKeys(detailKeys)}

	first := orch.Run(context.Background(), req)
	assert.Equal(t, 0.0, first.Report.Coverage)
	assert.False(t, first.Report.Cached)

	orch.Run(context.Background(), req)
	assert.Equal(t, int32(2), reader.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestOrchestrator_UseFallbackSkipsLookup(t *testing.T) {
	reader := newCountingReader()
	orch, cache := newTestOrchestrator(reader)
	defer cache.Close()

	path := testutil.WriteDocument(t, "card.txt", licenseCard...)
	req := Request{
		Path:        path,
		Category:    domain.CategoryLicense,
		Schema:      schema.FromKeys(schema.LicenseKeys),
		UseFallback: true,
	}

	orch.Run(context.Background(), req)
	res := orch.Run(context.Background(), req)

	assert.False(t, res.Report.CacheHit)
	assert.True(t, res.Report.Cached)
	assert.Equal(t, int32(2), reader.calls.Load())
}

func TestOrchestrator_UseFallbackWithoutFillerIsNotCached(t *testing.T) {
	reader := newCountingReader()
	orch, cache := newTestOrchestrator(reader)
	defer cache.Close()

	path := testutil.WriteDocument(t, "lorem.txt", "Lorem ipsum dolor sit amet", "consectetur adipiscing elit")
	req := Request{Path: path, Category: domain.CategoryScreen, Schema: schema.FromKeys(detailKeys), UseFallback: true}

	first := orch.Run(context.Background(), req)
	assert.Equal(t, 0.0, first.Report.Coverage)
	assert.False(t, first.Report.FallbackUsed)
	assert.False(t, first.Report.Cached)
	assert.Equal(t, 0, cache.Len())

	req.UseFallback = false
	second := orch.Run(context.Background(), req)
	assert.False(t, second.Report.CacheHit)
	assert.Equal(t, int32(2), reader.calls.Load())
}

func TestOrchestrator_SkippedFallbackIsNotCached(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{"telefone_profissional": "(19) 99999-8888"}}
	orch, cache := newTestOrchestrator(textlines.NewTextReader(), WithFiller(filler))
	defer cache.Close()

	noPhone := append(append([]string(nil), licenseCard[:7]...), licenseCard[8])
	path := testutil.WriteDocument(t, "card.txt", noPhone...)
	res := orch.Run(context.Background(), Request{
		Path:        path,
		Category:    domain.CategoryLicense,
		Schema:      schema.FromKeys(schema.LicenseKeys),
		UseFallback: true,
	})

	assert.Empty(t, filler.calls(), "the phone is the only missing key and it is excluded")
	assert.InDelta(t, 7.0/8, res.Report.Coverage, 1e-9)
	assert.False(t, res.Report.FallbackUsed)
	assert.False(t, res.Report.Cached)
	assert.Equal(t, 0, cache.Len())
}

func TestOrchestrator_CacheHitReportsLayoutCoverage(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{"data_referencia": "31/12/2023"}}
	reader := newCountingReader()
	orch, cache := newTestOrchestrator(reader, WithFiller(filler))
	defer cache.Close()

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	req := Request{
		Path:        path,
		Category:    domain.CategoryScreen,
		Schema:      schema.FromKeys([]string{"total_de_parcelas"}),
		UseFallback: true,
	}

	first := orch.Run(context.Background(), req)
	require.True(t, first.Report.Cached)
	assert.InDelta(t, 2.0/3, first.Report.Coverage, 1e-9)

	req.UseFallback = false
	second := orch.Run(context.Background(), req)
	require.True(t, second.Report.CacheHit)
	assert.Equal(t, int32(1), reader.calls.Load())
	assert.Equal(t, first.Report.Coverage, second.Report.Coverage)
	assert.Equal(t, domain.LayoutC, second.Report.Layout)
	assert.Equal(t, first.Report.ExpectedKeys, second.Report.ExpectedKeys)
	assert.Equal(t, map[string]string{"total_de_parcelas": "1.234,56"}, second.Values.Strings())
}

func TestOrchestrator_FallbackMergesMissingKeys(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{
		"data_referencia":     "31/12/2023",
		"selecao_de_parcelas": "",
		"total_de_parcelas":   "9.999,99",
	}}
	orch, cache := newTestOrchestrator(textlines.NewTextReader(), WithFiller(filler))
	defer cache.Close()

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	res := orch.Run(context.Background(), Request{
		Path:        path,
		Category:    domain.CategoryScreen,
		Schema:      schema.FromKeys(detailKeys),
		UseFallback: true,
	})

	calls := filler.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"data_referencia", "selecao_de_parcelas"}, calls[0].Missing)
	assert.Equal(t, detailKeys, calls[0].AllKeys)
	assert.NotEmpty(t, calls[0].Context)

	got := res.Values.Strings()
	assert.Equal(t, "31/12/2023", got["data_referencia"])
	assert.Equal(t, "", got["selecao_de_parcelas"])
	assert.Equal(t, "1.234,56", got["total_de_parcelas"], "filled keys are never overwritten")

	assert.Equal(t, domain.LayoutC, res.Report.Layout)
	assert.InDelta(t, 1.0/3, res.Report.CoverageBefore, 1e-9)
	assert.InDelta(t, 2.0/3, res.Report.Coverage, 1e-9)
	assert.True(t, res.Report.FallbackUsed)
	assert.True(t, res.Report.Cached, "forced fallback runs are always cached")
}

func TestOrchestrator_FallbackErrorIsSwallowed(t *testing.T) {
	filler := &recordingFiller{err: errors.New("upstream timeout")}
	orch, cache := newTestOrchestrator(textlines.NewTextReader(), WithFiller(filler))
	defer cache.Close()

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	res := orch.Run(context.Background(), Request{
		Path:        path,
		Category:    domain.CategoryScreen,
		Schema:      schema.FromKeys(detailKeys),
		UseFallback: true,
	})

	assert.Empty(t, res.Report.Error)
	assert.Equal(t, "upstream timeout", res.Report.FallbackError)
	assert.Equal(t, "1.234,56", res.Values.Strings()["total_de_parcelas"])
	assert.InDelta(t, 1.0/3, res.Report.Coverage, 1e-9)
}

func TestOrchestrator_FallbackNotCalledWithoutFlag(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{"data_referencia": "31/12/2023"}}
	orch, cache := newTestOrchestrator(textlines.NewTextReader(), WithFiller(filler))
	defer cache.Close()

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	res := orch.Run(context.Background(), Request{
		Path:     path,
		Category: domain.CategoryScreen,
		Schema:   schema.FromKeys(detailKeys),
	})

	assert.Empty(t, filler.calls())
	assert.False(t, res.Report.FallbackUsed)
	assert.Equal(t, "", res.Values.Strings()["data_referencia"])
}

func TestOrchestrator_LicensePhoneNeverSentToFallback(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{}}
	orch, cache := newTestOrchestrator(textlines.NewTextReader(), WithFiller(filler))
	defer cache.Close()

	path := testutil.WriteDocument(t, "card.txt", "JOÃO DA SILVA", "Seccional: SP")
	orch.Run(context.Background(), Request{
		Path:        path,
		Category:    domain.CategoryLicense,
		Schema:      schema.FromKeys(schema.LicenseKeys),
		UseFallback: true,
	})

	calls := filler.calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Missing, "telefone_profissional")
	assert.IsIncreasing(t, calls[0].Missing)
}

func TestOrchestrator_PreconditionFailures(t *testing.T) {
	orch, cache := newTestOrchestrator(textlines.NewTextReader())
	defer cache.Close()

	path := testutil.WriteDocument(t, "card.txt", licenseCard...)
	keys := []string{"nome", "seccional"}

	tests := []struct {
		name string
		req  Request
	}{
		{"missing file", Request{Path: path + ".gone", Category: domain.CategoryLicense, Schema: schema.FromKeys(keys)}},
		{"empty path", Request{Category: domain.CategoryLicense, Schema: schema.FromKeys(keys)}},
		{"empty category", Request{Path: path, Schema: schema.FromKeys(keys)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := orch.Run(context.Background(), tt.req)

			assert.NotEmpty(t, res.Report.Error)
			assert.Equal(t, map[string]string{"nome": "", "seccional": ""}, res.Values.Strings())
			for _, k := range keys {
				assert.False(t, res.Values[k].IsPresent(), "%s should be missing", k)
			}
		})
	}
}

func TestOrchestrator_StrictCategories(t *testing.T) {
	opts := DefaultOptions()
	opts.StrictCategories = true
	orch := NewOrchestrator(textlines.NewTextReader(), processor.NewDispatcher(processor.DefaultRegistry()), nil, opts, nil)

	path := testutil.WriteDocument(t, "doc.txt", "Nome: X")
	res := orch.Run(context.Background(), Request{
		Path:     path,
		Category: domain.Category("passaporte"),
		Schema:   schema.FromKeys([]string{"nome"}),
	})
	assert.Contains(t, res.Report.Error, "unsupported category")

	opts.StrictCategories = false
	lenient := NewOrchestrator(textlines.NewTextReader(), processor.NewDispatcher(processor.DefaultRegistry()), nil, opts, nil)
	res = lenient.Run(context.Background(), Request{
		Path:     path,
		Category: domain.Category("passaporte"),
		Schema:   schema.FromKeys([]string{"nome"}),
	})
	assert.Empty(t, res.Report.Error)
	assert.Equal(t, "", res.Values.Strings()["nome"])
}

func TestOrchestrator_ReaderErrorDegrades(t *testing.T) {
	reader := textlines.ReaderFunc(func(ctx context.Context, path string) ([]string, error) {
		return nil, errors.New("corrupt xref table")
	})
	orch, cache := newTestOrchestrator(reader)
	defer cache.Close()

	path := testutil.WriteDocument(t, "broken.pdf", "%PDF-1.4")
	res := orch.Run(context.Background(), Request{
		Path:     path,
		Category: domain.CategoryLicense,
		Schema:   schema.FromKeys([]string{"nome"}),
	})

	assert.Contains(t, res.Report.Error, "corrupt xref table")
	assert.Equal(t, 0, cache.Len())
}

func TestOrchestrator_AliasRoundTrip(t *testing.T) {
	orch, cache := newTestOrchestrator(textlines.NewTextReader())
	defer cache.Close()

	path := testutil.WriteDocument(t, "op.txt",
		"Operação Selecionada",
		"Data Vencimento: 15/02/2024",
	)
	res := orch.Run(context.Background(), Request{
		Path:     path,
		Category: domain.CategoryScreen,
		Schema:   schema.FromKeys([]string{"data_verncimento"}),
	})

	got := res.Values.Strings()
	assert.Equal(t, map[string]string{"data_verncimento": "15/02/2024"}, got)
	assert.Equal(t, domain.LayoutA, res.Report.Layout)
}

func TestMissingKeys(t *testing.T) {
	vals := domain.Values{
		"nome":                  domain.Present("X"),
		"telefone_profissional": domain.Missing(),
		"seccional":             domain.Present(""),
		"inscricao":             domain.Missing(),
	}
	got := missingKeys(domain.CategoryLicense, []string{"nome", "telefone_profissional", "seccional", "inscricao"}, vals)
	assert.Equal(t, []string{"inscricao", "seccional"}, got)

	got = missingKeys(domain.CategoryScreen, []string{"telefone_profissional"}, vals)
	assert.Equal(t, []string{"telefone_profissional"}, got)
}
