package models

import (
	"encoding/json"
	"time"
)

// RetryStatus is the state of a FailureRecord.
//
//	pending ──► retrying ──► success
//	   ▲           │
//	   └───────────┼──► exhausted
//	               └──► manual_required ──► retrying ...
//
// resolved is the operator override, reachable from any state except
// success and retrying.
type RetryStatus string

const (
	RetryStatusPending        RetryStatus = "pending"
	RetryStatusRetrying       RetryStatus = "retrying"
	RetryStatusSuccess        RetryStatus = "success"
	RetryStatusExhausted      RetryStatus = "exhausted"
	RetryStatusManualRequired RetryStatus = "manual_required"
	RetryStatusResolved       RetryStatus = "resolved"
)

// Retriable reports whether a retry may be started from this status
func (s RetryStatus) Retriable() bool {
	return s == RetryStatusPending || s == RetryStatusManualRequired
}

// Terminal reports whether no further transitions happen automatically
func (s RetryStatus) Terminal() bool {
	return s == RetryStatusSuccess || s == RetryStatusExhausted || s == RetryStatusResolved
}

// ValidRetryStatuses defines the allowed retry statuses
var ValidRetryStatuses = map[RetryStatus]bool{
	RetryStatusPending:        true,
	RetryStatusRetrying:       true,
	RetryStatusSuccess:        true,
	RetryStatusExhausted:      true,
	RetryStatusManualRequired: true,
	RetryStatusResolved:       true,
}

// FailureRecord is the durable audit record of one failed screening API call.
// Records are never deleted.
type FailureRecord struct {
	ID              string          `json:"failure_id" db:"id"`
	Endpoint        string          `json:"endpoint" db:"endpoint"`
	Method          string          `json:"method" db:"method"`
	RequestSnapshot json.RawMessage `json:"request_snapshot,omitempty" db:"request_snapshot"`
	HTTPStatus      int             `json:"http_status,omitempty" db:"http_status"`
	ErrorCode       string          `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage    string          `json:"error_message" db:"error_message"`
	ErrorDetails    json.RawMessage `json:"error_details,omitempty" db:"error_details"`
	ExternalID      string          `json:"external_id,omitempty" db:"external_id"`
	RowNumber       int             `json:"row_number,omitempty" db:"row_number"`
	PackageID       string          `json:"package_id,omitempty" db:"package_id"`
	UploadID        string          `json:"upload_id,omitempty" db:"upload_id"`
	Environment     string          `json:"environment" db:"environment"`
	RetryCount      int             `json:"retry_count" db:"retry_count"`
	MaxRetries      int             `json:"max_retries" db:"max_retries"`
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty" db:"next_retry_at"`
	RetryStatus     RetryStatus     `json:"retry_status" db:"retry_status"`
	ResolutionNotes string          `json:"resolution_notes,omitempty" db:"resolution_notes"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	LastRetryAt     *time.Time      `json:"last_retry_at,omitempty" db:"last_retry_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// FailureFilter narrows failure listings; zero values match everything
type FailureFilter struct {
	Statuses    []RetryStatus
	UploadID    string
	Environment string
	Limit       int
}

// BatchRetryRequest selects failures for a batch retry. When IDs is empty
// the configured implicit scope applies.
type BatchRetryRequest struct {
	IDs      []string `json:"ids"`
	UploadID string   `json:"upload_id"`
}

// BatchRetrySummary is the outcome of a batch retry. Skipped counts
// selected records that were terminal or already being retried.
type BatchRetrySummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// ResolveRequest is the body of a manual resolve
type ResolveRequest struct {
	Notes string `json:"notes"`
}
