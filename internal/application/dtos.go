package application

import (
	"context"
	"time"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

// AllocateJobCommand triggers a clear-and-rebuild allocation run
type AllocateJobCommand struct {
	JobID string `json:"jobId" validate:"required"`
}

// PostJobCommand posts one movement phase of a job
type PostJobCommand struct {
	JobID  string `json:"jobId" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

// ScanPostCommand posts job rows matched by scanned identifiers, optionally
// partial by quantity.
type ScanPostCommand struct {
	JobID        string               `json:"jobId" validate:"required"`
	Action       domain.PostingAction `json:"action" validate:"required"`
	LocationCode string               `json:"locationCode,omitempty"`
	HUCode       string               `json:"huCode,omitempty"`
	Item         string               `json:"item,omitempty"`
	Quantity     float64              `json:"quantity,omitempty" validate:"gte=0"`
}

// ValidateCapacityCommand checks a hypothetical placement against a location
type ValidateCapacityCommand struct {
	Location     string  `json:"location" validate:"required"`
	Item         string  `json:"item" validate:"required"`
	Quantity     float64 `json:"quantity" validate:"required,gt=0"`
	HandlingUnit string  `json:"handlingUnit,omitempty"`
}

// AllocationLineDTO reports one demand line's allocation outcome
type AllocationLineDTO struct {
	LineNo       int     `json:"lineNo"`
	Item         string  `json:"item"`
	RequiredQty  float64 `json:"requiredQty"`
	AllocatedQty float64 `json:"allocatedQty"`
	Shortfall    float64 `json:"shortfall"`
	Rows         int     `json:"rows"`
}

// AllocationResultDTO is the outcome of one allocation run
type AllocationResultDTO struct {
	JobID       string              `json:"jobId"`
	JobType     string              `json:"jobType"`
	CreatedRows int                 `json:"createdRows"`
	CreatedQty  float64             `json:"createdQty"`
	Lines       []AllocationLineDTO `json:"lines,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
	AllocatedAt time.Time           `json:"allocatedAt"`
}

// MoveResultDTO is the outcome of a move allocation run
type MoveResultDTO struct {
	JobID        string    `json:"jobId"`
	CreatedPairs int       `json:"createdPairs"`
	Skipped      []string  `json:"skipped,omitempty"`
	AllocatedAt  time.Time `json:"allocatedAt"`
}

// PostingResultDTO is the outcome of one posting call
type PostingResultDTO struct {
	JobID        string    `json:"jobId"`
	Action       string    `json:"action"`
	EntriesAdded int       `json:"entriesAdded"`
	RowsPosted   int       `json:"rowsPosted"`
	Skipped      []string  `json:"skipped,omitempty"` // already-posted row IDs
	Warnings     []string  `json:"warnings,omitempty"`
	PostedAt     time.Time `json:"postedAt"`
}

// ScanPostResultDTO is the outcome of a scan-driven partial posting
type ScanPostResultDTO struct {
	JobID        string    `json:"jobId"`
	Action       string    `json:"action"`
	RowsPosted   int       `json:"rowsPosted"`
	PostedQty    float64   `json:"postedQty"`
	OutEntries   int       `json:"outEntries"`
	InEntries    int       `json:"inEntries"`
	Warnings     []string  `json:"warnings,omitempty"`
	PostedAt     time.Time `json:"postedAt"`
}

// CapacityValidationDTO reports a capacity check
type CapacityValidationDTO struct {
	Location    string                           `json:"location"`
	Valid       bool                             `json:"valid"`
	Violations  []domain.CapacityViolationDetail `json:"violations,omitempty"`
	Warnings    []string                         `json:"warnings,omitempty"`
	Utilization map[string]float64               `json:"utilization"`
}

// RefreshResultDTO reports a usage refresh sweep
type RefreshResultDTO struct {
	Refreshed int      `json:"refreshed"`
	Failed    []string `json:"failed,omitempty"`
}

// LedgerEntryDTO is one ledger entry for read queries
type LedgerEntryDTO struct {
	EntryID      string    `json:"entryId"`
	Item         string    `json:"item"`
	Location     string    `json:"location"`
	HandlingUnit string    `json:"handlingUnit,omitempty"`
	Batch        string    `json:"batch,omitempty"`
	Serial       string    `json:"serial,omitempty"`
	Quantity     float64   `json:"quantity"`
	BeginQty     float64   `json:"beginQty"`
	EndQty       float64   `json:"endQty"`
	JobID        string    `json:"jobId"`
	JobItemID    string    `json:"jobItemId"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason,omitempty"`
	PostedAt     time.Time `json:"postedAt"`
}

// BalanceDTO is one positive-balance row for read queries
type BalanceDTO struct {
	Item           string    `json:"item"`
	Location       string    `json:"location"`
	HandlingUnit   string    `json:"handlingUnit,omitempty"`
	Batch          string    `json:"batch,omitempty"`
	Serial         string    `json:"serial,omitempty"`
	Quantity       float64   `json:"quantity"`
	FirstStockedAt time.Time `json:"firstStockedAt"`
	LastStockedAt  time.Time `json:"lastStockedAt"`
}

func toLedgerEntryDTO(e domain.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		EntryID:      e.EntryID,
		Item:         e.Key.Item,
		Location:     e.Key.Location,
		HandlingUnit: e.Key.HandlingUnit,
		Batch:        e.Key.Batch,
		Serial:       e.Key.Serial,
		Quantity:     e.Quantity,
		BeginQty:     e.BeginQty,
		EndQty:       e.EndQty,
		JobID:        e.JobID,
		JobItemID:    e.JobItemID,
		Action:       e.Action,
		Reason:       e.Reason,
		PostedAt:     e.PostedAt,
	}
}

func toBalanceDTO(row domain.BalanceRow) BalanceDTO {
	return BalanceDTO{
		Item:           row.Key.Item,
		Location:       row.Key.Location,
		HandlingUnit:   row.Key.HandlingUnit,
		Batch:          row.Key.Batch,
		Serial:         row.Key.Serial,
		Quantity:       row.Quantity,
		FirstStockedAt: row.FirstStockedAt,
		LastStockedAt:  row.LastStockedAt,
	}
}

// EventPublisher delivers domain events to the message bus. Publishing is
// best-effort; failures are logged, never propagated to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event domain.DomainEvent) error
}

// TransactionRunner executes fn within one storage transaction. Repository
// calls made with the context fn receives join that transaction, so the
// ledger append and the job save commit or roll back together.
type TransactionRunner interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
