//go:build integration

package repository

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()
	s, err := testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatal(err)
	}
	suite = s

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func TestAuditRepository_RoundTrip(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Truncate(t, ctx, "extraction_audit")

	repo := NewAuditRepository(suite.DB)

	first := &domain.AuditEntry{
		Label:          "tela_sistema",
		Layout:         "A",
		Fingerprint:    "f00d",
		RequestedKeys:  "data_base|produto",
		CoverageBefore: 0.5,
		Coverage:       1,
		FallbackUsed:   true,
		DurationMs:     120,
	}
	second := &domain.AuditEntry{
		Label:         "carteira_oab",
		Fingerprint:   "beef",
		RequestedKeys: "nome",
		Coverage:      1,
		CacheHit:      true,
		DurationMs:    2,
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.False(t, first.CreatedAt.IsZero())

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	byDoc, err := repo.ListByFingerprint(ctx, "f00d")
	require.NoError(t, err)
	require.Len(t, byDoc, 1)
	assert.Equal(t, first.ID, byDoc[0].ID)
	assert.Equal(t, 0.5, byDoc[0].CoverageBefore)
	assert.True(t, byDoc[0].FallbackUsed)
}
