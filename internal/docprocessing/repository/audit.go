package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/pkg/database"
)

// AuditRepository persists the extraction audit trail. Entries are append-only.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts entry, assigning an ID when empty
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO extraction_audit (
			id, job_id, label, layout, fingerprint, requested_keys,
			coverage_before, coverage, fallback_used, cache_hit, duration_ms, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.JobID, entry.Label, entry.Layout, entry.Fingerprint,
		entry.RequestedKeys, entry.CoverageBefore, entry.Coverage,
		entry.FallbackUsed, entry.CacheHit, entry.DurationMs, entry.Error,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the latest entries, newest first
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var entries []domain.AuditEntry
	query := `SELECT * FROM extraction_audit ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ListByFingerprint returns every extraction recorded for one document
func (r *AuditRepository) ListByFingerprint(ctx context.Context, fingerprint string) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	query := `SELECT * FROM extraction_audit WHERE fingerprint = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &entries, query, fingerprint); err != nil {
		return nil, fmt.Errorf("list audit entries by fingerprint: %w", err)
	}
	return entries, nil
}
