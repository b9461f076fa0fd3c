package domain

import "errors"

// Pipeline error classes. They are logged by the orchestrator and never
// returned past it.
var (
	ErrPrecondition = errors.New("precondition failed")
	ErrCollaborator = errors.New("text extraction failed")
	ErrExtraction   = errors.New("field extraction failed")
	ErrFallback     = errors.New("fallback failed")
)
