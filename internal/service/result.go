package service

import (
	"errors"
	"time"

	"figmist-store/internal/models"
)

// Outcome is the variant of a data-access result
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeUnavailable
	OutcomeQuotaExceeded
	OutcomeValidationFailed
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeQuotaExceeded:
		return "quota_exceeded"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OutcomeOf classifies an error into a result variant
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return OutcomeQuotaExceeded
	case errors.Is(err, ErrValidation):
		return OutcomeValidationFailed
	case errors.Is(err, ErrTransport):
		return OutcomeUnavailable
	default:
		return OutcomeRejected
	}
}

// Source names where a result was served from
type Source string

const (
	SourceDatabase Source = "database"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

const warnDatabaseUnavailable = "Database unavailable - showing cached data"

// ProductPage is the result of a paginated listing
type ProductPage struct {
	Outcome    Outcome
	Products   []models.Product
	Pagination models.Pagination
	Source     Source
	Warning    string
	Err        error
}

// Success reports whether the listing produced products
func (r *ProductPage) Success() bool { return r.Outcome == OutcomeOK }

// ProductList is the result of an unpaginated listing
type ProductList struct {
	Outcome  Outcome
	Products []models.Product
	Source   Source
	Warning  string
	Err      error
}

// ProductResult is the result of a single product lookup
type ProductResult struct {
	Outcome Outcome
	Product *models.Product
	Source  Source
	Err     error
}

// MutationResult is the result of an admin product write
type MutationResult struct {
	Outcome Outcome
	ID      string
	Source  Source
	Warning string
	Err     error
}

// UploadResult carries a compressed inline image
type UploadResult struct {
	Outcome Outcome
	URL     string
	Bytes   int
	Err     error
}

// Diagnostics reports the state of the remote store connection
type Diagnostics struct {
	Timestamp        time.Time     `json:"timestamp"`
	Status           string        `json:"status"`
	ResponseTime     time.Duration `json:"response_time"`
	Count            int           `json:"count"`
	FallbackProducts int           `json:"fallback_products"`
	Error            string        `json:"error,omitempty"`
}
