package domain

import "time"

// Category is the document kind
type Category string

const (
	CategoryLicense Category = "carteira_oab"
	CategoryScreen  Category = "tela_sistema"
)

// Known reports whether c is one of the recognised categories
func (c Category) Known() bool {
	return c == CategoryLicense || c == CategoryScreen
}

// Layout is a system-screen field layout. Empty for license cards.
type Layout string

const (
	LayoutA Layout = "A" // registration / consultation
	LayoutB Layout = "B" // filter / search
	LayoutC Layout = "C" // detail / total
)

// Layouts lists every screen layout in ascending tie-break priority.
var Layouts = []Layout{LayoutA, LayoutB, LayoutC}

// ScreenType is the caller-supplied screen sub-type. It only refines the cache key.
type ScreenType string

const (
	ScreenOperation      ScreenType = "operacao"
	ScreenBillingLookup  ScreenType = "consulta_cobranca"
	ScreenBalanceDetails ScreenType = "detalhamento_saldos"
)

// Field is one requested schema entry
type Field struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Schema is an ordered set of requested fields with unique keys
type Schema []Field

// Keys returns the schema keys in order
func (s Schema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// ExtractionStatus represents the processing state of an extraction job
type ExtractionStatus string

const (
	StatusPending    ExtractionStatus = "pending"
	StatusProcessing ExtractionStatus = "processing"
	StatusCompleted  ExtractionStatus = "completed"
	StatusFailed     ExtractionStatus = "failed"
)

// Report describes how a pipeline run produced its values
type Report struct {
	Layout         Layout   `json:"layout,omitempty"`
	ExpectedKeys   []string `json:"expected_keys,omitempty"`
	CoverageBefore float64  `json:"coverage_before"`
	Coverage       float64  `json:"coverage"`
	CacheHit       bool     `json:"cache_hit"`
	FallbackUsed   bool     `json:"fallback_used"`
	FallbackError  string   `json:"fallback_error,omitempty"`
	Cached         bool     `json:"cached"`
	Fingerprint    string   `json:"-"`
	DurationMs     int64    `json:"duration_ms"`
	// Error is set when the run degraded to an all-missing result
	Error string `json:"error,omitempty"`
}

// Diagnostics is the debug block attached to a gated extraction
type Diagnostics struct {
	Layout            Layout  `json:"layout,omitempty"`
	CoverageBefore    float64 `json:"coverage_before"`
	CoverageFinal     float64 `json:"coverage_final"`
	FallbackRequested bool    `json:"fallback_requested"`
	FallbackUsed      bool    `json:"fallback_used"`
	FallbackError     string  `json:"fallback_error,omitempty"`
}

// Outcome is the boundary result: every requested key mapped to a string
type Outcome struct {
	Fields      Fields       `json:"fields"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// ExtractionJob is an asynchronous extraction tracked by the job store
type ExtractionJob struct {
	JobID     string           `json:"job_id"`
	Status    ExtractionStatus `json:"status"`
	Label     Category         `json:"label"`
	Outcome   *Outcome         `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AuditEntry is one row of the extraction audit trail
type AuditEntry struct {
	ID             string    `db:"id" json:"id"`
	JobID          string    `db:"job_id" json:"job_id,omitempty"`
	Label          string    `db:"label" json:"label"`
	Layout         string    `db:"layout" json:"layout,omitempty"`
	Fingerprint    string    `db:"fingerprint" json:"fingerprint"`
	RequestedKeys  string    `db:"requested_keys" json:"requested_keys"`
	CoverageBefore float64   `db:"coverage_before" json:"coverage_before"`
	Coverage       float64   `db:"coverage" json:"coverage"`
	FallbackUsed   bool      `db:"fallback_used" json:"fallback_used"`
	CacheHit       bool      `db:"cache_hit" json:"cache_hit"`
	DurationMs     int64     `db:"duration_ms" json:"duration_ms"`
	Error          string    `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
