package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/handler"
	"github.com/fieldscan/fieldscan-backend/pkg/httputil"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	"github.com/fieldscan/fieldscan-backend/pkg/testutil"
)

type fakeAuditReader struct {
	entries   []domain.AuditEntry
	err       error
	lastLimit int
}

func (f *fakeAuditReader) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

func (f *fakeAuditReader) ListByFingerprint(ctx context.Context, fingerprint string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.Fingerprint == fingerprint {
			out = append(out, e)
		}
	}
	return out, f.err
}

func newAuditRouter(reader handler.AuditReader) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", handler.NewAuditHandler(reader, logger.Nop()).Routes)
	return r
}

func TestAudit_List(t *testing.T) {
	reader := &fakeAuditReader{entries: []domain.AuditEntry{
		{ID: "1", Label: "tela_sistema", Layout: "C", Fingerprint: "f00d", Coverage: 1, CreatedAt: time.Now()},
	}}
	router := newAuditRouter(reader)

	rr := testutil.ExecuteRequest(router, testutil.NewGetRequest(t, "/api/v1/audit?limit=5"))

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, 5, reader.lastLimit)

	var body struct {
		Success bool                `json:"success"`
		Data    []domain.AuditEntry `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "f00d", body.Data[0].Fingerprint)
}

func TestAudit_ListRejectsBadLimit(t *testing.T) {
	rr := testutil.ExecuteRequest(newAuditRouter(&fakeAuditReader{}), testutil.NewGetRequest(t, "/api/v1/audit?limit=abc"))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestAudit_ByFingerprint(t *testing.T) {
	reader := &fakeAuditReader{entries: []domain.AuditEntry{
		{ID: "1", Fingerprint: "f00d"},
		{ID: "2", Fingerprint: "beef"},
	}}
	router := newAuditRouter(reader)

	rr := testutil.ExecuteRequest(router, testutil.NewGetRequest(t, "/api/v1/audit/beef"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.ExecuteRequest(router, testutil.NewGetRequest(t, "/api/v1/audit/cafe"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	var body httputil.Response
	testutil.ParseJSONBody(t, rr, &body)
	assert.False(t, body.Success)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestAudit_StoreFailure(t *testing.T) {
	rr := testutil.ExecuteRequest(newAuditRouter(&fakeAuditReader{err: errors.New("connection refused")}),
		testutil.NewGetRequest(t, "/api/v1/audit"))

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
}
