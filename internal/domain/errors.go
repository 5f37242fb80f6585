package domain

import "errors"

// Allocation and posting errors. Fatal errors abort the whole operation;
// InsufficientSupply and ConsolidationViolation surface as warnings instead.
var (
	ErrScopeViolation    = errors.New("scope violation")
	ErrStatusViolation   = errors.New("entity status blocks this action")
	ErrCapacityViolation = errors.New("capacity violation")
	ErrAnchoringConflict = errors.New("handling unit resolves to more than one destination")

	ErrNegativeBalance  = errors.New("ledger balance would go negative")
	ErrBrokenChain      = errors.New("ledger entry does not continue the running balance chain")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrZeroDelta        = errors.New("ledger delta cannot be zero")
	ErrAlreadyPosted    = errors.New("row already posted for this action")
	ErrNothingToPost    = errors.New("no unposted rows match")
	ErrJobNotFound      = errors.New("job not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrLocationNotFound = errors.New("storage location not found")
	ErrHUNotFound       = errors.New("handling unit not found")
	ErrBOMNotFound      = errors.New("bill of materials not found")
	ErrNoCandidates     = errors.New("no viable candidates")
	ErrScanUnresolved   = errors.New("scanned code does not resolve to a location or handling unit")
)
