package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/pkg/errors"
	"github.com/fieldscan/fieldscan-backend/pkg/httputil"
	"github.com/fieldscan/fieldscan-backend/pkg/logger"
)

// AuditReader lists recorded extractions
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	ListByFingerprint(ctx context.Context, fingerprint string) ([]domain.AuditEntry, error)
}

// AuditHandler exposes the extraction audit trail
type AuditHandler struct {
	audit AuditReader
	log   *logger.Logger
}

func NewAuditHandler(audit AuditReader, log *logger.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log}
}

// Routes mounts the audit endpoints on r
func (h *AuditHandler) Routes(r chi.Router) {
	r.Get("/audit", h.List)
	r.Get("/audit/{fingerprint}", h.ByFingerprint)
}

// List returns the latest audit entries. ?limit caps the count.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.Error(w, errors.Validation(map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = n
	}

	entries, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list audit entries")
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entries)
}

// ByFingerprint returns every extraction recorded for one document
func (h *AuditHandler) ByFingerprint(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.ListByFingerprint(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list audit entries by fingerprint")
		httputil.Error(w, err)
		return
	}
	if len(entries) == 0 {
		httputil.Error(w, errors.NotFound("audit entries"))
		return
	}
	httputil.JSON(w, http.StatusOK, entries)
}
