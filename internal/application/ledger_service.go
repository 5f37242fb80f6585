package application

import (
	"context"
	"fmt"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// LedgerService exposes read-only ledger queries: movement history and
// derived balances. It never writes.
type LedgerService struct {
	ledger domain.LedgerRepository
	logger *logging.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(ledger domain.LedgerRepository, logger *logging.Logger) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		logger: logger.WithComponent("ledger-service"),
	}
}

// EntriesForJob returns every ledger entry a job has posted
func (s *LedgerService) EntriesForJob(ctx context.Context, jobID string) ([]LedgerEntryDTO, error) {
	entries, err := s.ledger.EntriesForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for job %s: %w", jobID, err)
	}

	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toLedgerEntryDTO(e))
	}
	return dtos, nil
}

// EntriesForKey returns the full movement history for one stock key. The
// chain is verified so a broken running balance surfaces as an error instead
// of silently wrong data.
func (s *LedgerService) EntriesForKey(ctx context.Context, key domain.LedgerKey) ([]LedgerEntryDTO, error) {
	entries, err := s.ledger.EntriesForKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for %s: %w", key.String(), err)
	}
	if err := domain.VerifyChain(entries); err != nil {
		return nil, err
	}

	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toLedgerEntryDTO(e))
	}
	return dtos, nil
}

// ItemBalances returns the item's positive balances grouped by key
func (s *LedgerService) ItemBalances(ctx context.Context, item string) ([]BalanceDTO, error) {
	rows, err := s.ledger.PositiveBalances(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances for %s: %w", item, err)
	}
	return toBalanceDTOs(rows), nil
}

// LocationBalances returns the positive balances held at a location
func (s *LedgerService) LocationBalances(ctx context.Context, location string) ([]BalanceDTO, error) {
	rows, err := s.ledger.BalancesAtLocation(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances at %s: %w", location, err)
	}
	return toBalanceDTOs(rows), nil
}

// HandlingUnitBalances returns the positive balances on a handling unit
func (s *LedgerService) HandlingUnitBalances(ctx context.Context, huCode string) ([]BalanceDTO, error) {
	rows, err := s.ledger.BalancesOnHandlingUnit(ctx, huCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances on %s: %w", huCode, err)
	}
	return toBalanceDTOs(rows), nil
}

func toBalanceDTOs(rows []domain.BalanceRow) []BalanceDTO {
	dtos := make([]BalanceDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toBalanceDTO(row))
	}
	return dtos
}
