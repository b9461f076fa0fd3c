package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/processor"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/schema"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/textlines"
	"github.com/fieldscan/fieldscan-backend/pkg/testutil"
)

func newTestGate(t *testing.T, filler *recordingFiller, forced domain.Layout) *RetryGate {
	t.Helper()
	reader := textlines.NewTextReader()
	var opts []OrchestratorOption
	if filler != nil {
		opts = append(opts, WithFiller(filler))
	}
	orch, cache := newTestOrchestrator(reader, opts...)
	t.Cleanup(cache.Close)
	return NewRetryGate(orch, reader, 0.9, forced, nil)
}

func TestRetryGate_KeepsBetterRetry(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{"data_referencia": "31/12/2023"}}
	gate := newTestGate(t, filler, "")

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	ext := gate.Extract(context.Background(), Input{
		Path:        path,
		Category:    domain.CategoryScreen,
		Schema:      schema.FromKeys(detailKeys),
		UseFallback: true,
	})

	require.Len(t, filler.calls(), 1)
	assert.Nil(t, filler.calls()[0].Hints, "hints are only sent for layout A")

	assert.Equal(t, detailKeys, ext.Fields.Keys())
	assert.Equal(t, "31/12/2023", ext.Fields.Get("data_referencia"))
	assert.Equal(t, "1.234,56", ext.Fields.Get("total_de_parcelas"))

	d := ext.Diagnostics
	assert.Equal(t, domain.LayoutC, d.Layout)
	assert.InDelta(t, 1.0/3, d.CoverageBefore, 1e-9)
	assert.InDelta(t, 2.0/3, d.CoverageFinal, 1e-9)
	assert.True(t, d.FallbackRequested)
	assert.True(t, d.FallbackUsed)
}

func TestRetryGate_KeepsFirstPassWhenRetryIsNotBetter(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{}}
	gate := newTestGate(t, filler, "")

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	ext := gate.Extract(context.Background(), Input{
		Path:        path,
		Category:    domain.CategoryScreen,
		Schema:      schema.FromKeys(detailKeys),
		UseFallback: true,
	})

	assert.Len(t, filler.calls(), 1)
	assert.False(t, ext.Report.FallbackUsed, "first pass report is kept")
	assert.True(t, ext.Diagnostics.FallbackRequested)
	assert.Equal(t, ext.Diagnostics.CoverageBefore, ext.Diagnostics.CoverageFinal)
}

func TestRetryGate_NoRetryWithoutFlagOrFiller(t *testing.T) {
	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)

	t.Run("flag off", func(t *testing.T) {
		filler := &recordingFiller{answer: map[string]string{"data_referencia": "31/12/2023"}}
		gate := newTestGate(t, filler, "")

		ext := gate.Extract(context.Background(), Input{
			Path:     path,
			Category: domain.CategoryScreen,
			Schema:   schema.FromKeys(detailKeys),
		})

		assert.Empty(t, filler.calls())
		assert.False(t, ext.Diagnostics.FallbackRequested)
		assert.Equal(t, "", ext.Fields.Get("data_referencia"))
	})

	t.Run("no filler", func(t *testing.T) {
		gate := newTestGate(t, nil, "")

		ext := gate.Extract(context.Background(), Input{
			Path:        path,
			Category:    domain.CategoryScreen,
			Schema:      schema.FromKeys(detailKeys),
			UseFallback: true,
		})

		assert.False(t, ext.Diagnostics.FallbackRequested)
		assert.InDelta(t, 1.0/3, ext.Diagnostics.CoverageFinal, 1e-9)
	})
}

func TestRetryGate_LayoutAUsesHints(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{"produto": "CDC"}}
	gate := newTestGate(t, filler, "")

	path := testutil.WriteDocument(t, "op.txt",
		"Consulta de Cobrança",
		"Operação Selecionada",
		"Data Base: 01/01/2024",
	)
	ext := gate.Extract(context.Background(), Input{
		Path:        path,
		Category:    domain.CategoryScreen,
		Schema:      schema.ForScreenType(domain.ScreenOperation),
		UseFallback: true,
	})

	calls := filler.calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Hints)
	assert.Contains(t, calls[0].Hints.PrioritySections, "Operação Selecionada")

	assert.Equal(t, domain.LayoutA, ext.Diagnostics.Layout)
	assert.Equal(t, "CDC", ext.Fields.Get("produto"))
	assert.Greater(t, ext.Diagnostics.CoverageFinal, ext.Diagnostics.CoverageBefore)
}

func TestRetryGate_MetricCountsUnrequestedTupleKeys(t *testing.T) {
	gate := newTestGate(t, nil, "")

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	ext := gate.Extract(context.Background(), Input{
		Path:     path,
		Category: domain.CategoryScreen,
		Schema:   schema.FromKeys([]string{"total_de_parcelas"}),
	})

	assert.Equal(t, "1.234,56", ext.Fields.Get("total_de_parcelas"))
	assert.InDelta(t, 1.0/3, ext.Diagnostics.CoverageBefore, 1e-9)
}

func TestRetryGate_ForcedLayout(t *testing.T) {
	gate := newTestGate(t, nil, domain.LayoutB)

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	ext := gate.Extract(context.Background(), Input{
		Path:     path,
		Category: domain.CategoryScreen,
		Schema:   schema.FromKeys(detailKeys),
	})

	assert.Equal(t, domain.LayoutB, ext.Diagnostics.Layout)
	assert.Equal(t, 0.0, ext.Diagnostics.CoverageBefore)
}

func TestRetryGate_LicenseHasNoDiagnostics(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{"nome": "X"}}
	gate := newTestGate(t, filler, "")

	path := testutil.WriteDocument(t, "card.txt", licenseCard...)
	ext := gate.Extract(context.Background(), Input{
		Path:        path,
		Category:    domain.CategoryLicense,
		Schema:      schema.FromKeys(schema.LicenseKeys),
		UseFallback: true,
	})

	assert.Empty(t, filler.calls())
	assert.Equal(t, domain.Diagnostics{}, ext.Diagnostics)
	assert.Equal(t, "SP", ext.Fields.Get("seccional"))
}

func TestAlign_OrderAndMissing(t *testing.T) {
	s := schema.FromKeys([]string{"situacao", "nome", "seccional"})
	vals := domain.Values{"nome": domain.Present("Maria"), "situacao": domain.Missing()}

	got := Align(s, vals)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `{"situacao":"","nome":"Maria","seccional":""}`, string(b))
}

func TestClassifyFallsBackForUnreadableDocument(t *testing.T) {
	reader := textlines.ReaderFunc(func(ctx context.Context, path string) ([]string, error) {
		return nil, assert.AnError
	})
	orch, cache := newTestOrchestrator(reader)
	defer cache.Close()
	gate := NewRetryGate(orch, reader, 0.9, "", nil)

	assert.Equal(t, processor.Classify(nil), gate.layout(context.Background(), "missing.pdf", domain.Report{}, true))
}

func TestRetryGate_CacheHitSkipsClassification(t *testing.T) {
	filler := &recordingFiller{answer: map[string]string{
		"data_referencia":     "31/12/2023",
		"selecao_de_parcelas": "1 a 12",
	}}
	reader := newCountingReader()
	orch, cache := newTestOrchestrator(reader, WithFiller(filler))
	defer cache.Close()
	gate := NewRetryGate(orch, reader, 0.9, "", nil)

	path := testutil.WriteDocument(t, "detail.txt", detailScreen...)
	in := Input{Path: path, Category: domain.CategoryScreen, Schema: schema.FromKeys(detailKeys), UseFallback: true}

	first := gate.Extract(context.Background(), in)
	require.True(t, first.Diagnostics.FallbackRequested)
	reads := reader.calls.Load()

	in.UseFallback = false
	second := gate.Extract(context.Background(), in)

	assert.True(t, second.Report.CacheHit)
	assert.Equal(t, reads, reader.calls.Load(), "a cache hit must not read the document")
	assert.Equal(t, domain.LayoutC, second.Diagnostics.Layout)
	assert.Equal(t, 1.0, second.Diagnostics.CoverageFinal)
}
