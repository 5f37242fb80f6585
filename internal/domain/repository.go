package domain

import (
	"context"
	"time"
)

// LedgerRepository is the append-only stock ledger store. Entries are never
// mutated or deleted; balances are always derived by scanning.
type LedgerRepository interface {
	// LastEntry returns the newest entry for a key, nil when the key has
	// never moved.
	LastEntry(ctx context.Context, key LedgerKey) (*LedgerEntry, error)

	// Append writes entries atomically, in order
	Append(ctx context.Context, entries []LedgerEntry) error

	// EntriesForKey returns all entries for a key ordered by posting time
	EntriesForKey(ctx context.Context, key LedgerKey) ([]LedgerEntry, error)

	// EntriesForJob returns all entries posted by a job
	EntriesForJob(ctx context.Context, jobID string) ([]LedgerEntry, error)

	// PositiveBalances returns the positive-balance rows for an item,
	// grouped by (location, HU, batch, serial)
	PositiveBalances(ctx context.Context, item string) ([]BalanceRow, error)

	// BalancesAtLocation returns positive-balance rows at a location
	BalancesAtLocation(ctx context.Context, location string) ([]BalanceRow, error)

	// BalancesOnHandlingUnit returns positive-balance rows on a handling unit
	BalancesOnHandlingUnit(ctx context.Context, huCode string) ([]BalanceRow, error)

	// LocationsOfHandlingUnits returns the set of locations where any of the
	// given handling units currently has positive balance
	LocationsOfHandlingUnits(ctx context.Context, huCodes []string) (map[string]bool, error)
}

// JobRepository stores job aggregates
type JobRepository interface {
	FindByID(ctx context.Context, jobID string) (*JobOrder, error)
	Save(ctx context.Context, job *JobOrder) error
}

// ItemRepository is the item master projection
type ItemRepository interface {
	FindByCode(ctx context.Context, code string) (*Item, error)
}

// LocationRepository is the location master projection. Usage snapshot and
// derived status are the only fields the engine writes.
type LocationRepository interface {
	FindByCode(ctx context.Context, code string) (*StorageLocation, error)
	FindByCodes(ctx context.Context, codes []string) ([]*StorageLocation, error)

	// ListUsable returns non-staging locations whose status does not block,
	// scope-filtered with wildcard semantics
	ListUsable(ctx context.Context, scope Scope) ([]*StorageLocation, error)

	// ListAll returns every location, for batch refresh sweeps
	ListAll(ctx context.Context) ([]*StorageLocation, error)

	// ResolveScanned resolves a scanned code: exact code first, then
	// barcode-like fields in order
	ResolveScanned(ctx context.Context, code string) (*StorageLocation, error)

	UpdateDerived(ctx context.Context, code string, status EntityStatus, usage Usage) error
}

// HandlingUnitRepository is the handling unit master projection
type HandlingUnitRepository interface {
	FindByCode(ctx context.Context, code string) (*HandlingUnit, error)
	FindByCodes(ctx context.Context, codes []string) ([]*HandlingUnit, error)
	CodesByType(ctx context.Context, huType string) ([]string, error)

	// ListUsable returns usable handling units, scope-filtered with wildcard
	// semantics
	ListUsable(ctx context.Context, scope Scope) ([]*HandlingUnit, error)

	ResolveScanned(ctx context.Context, code string) (*HandlingUnit, error)

	UpdateDerived(ctx context.Context, code string, status EntityStatus, usage Usage) error
}

// BatchRepository resolves batch master attributes
type BatchRepository interface {
	// Expiry returns the batch expiry, nil when the batch never expires or
	// is unknown
	Expiry(ctx context.Context, item, batch string) (*time.Time, error)

	// QualityGrade returns the batch quality grade, 0 when ungraded
	QualityGrade(ctx context.Context, item, batch string) (int, error)
}

// BOMRepository resolves VAS bills of materials
type BOMRepository interface {
	FindForParent(ctx context.Context, parentItem string, scope Scope) (*BOM, error)
}
