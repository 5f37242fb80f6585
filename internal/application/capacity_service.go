package application

import (
	"context"
	"fmt"
	"time"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
	"github.com/agilasoft/logistics-sub000/pkg/metrics"
)

// CapacityService answers hypothetical placement checks and refreshes usage
// snapshots from ledger balances.
type CapacityService struct {
	items     domain.ItemRepository
	locations domain.LocationRepository
	hus       domain.HandlingUnitRepository
	ledger    domain.LedgerRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	cfg       domain.AllocationConfig
}

// NewCapacityService creates a new CapacityService
func NewCapacityService(
	items domain.ItemRepository,
	locations domain.LocationRepository,
	hus domain.HandlingUnitRepository,
	ledger domain.LedgerRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
	cfg domain.AllocationConfig,
) *CapacityService {
	return &CapacityService{
		items:     items,
		locations: locations,
		hus:       hus,
		ledger:    ledger,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("capacity-service"),
		cfg:       cfg,
	}
}

// ValidateStorageCapacity projects qty units of an item onto a location's
// current usage and reports violations, warnings and utilization. The check
// never mutates anything.
func (s *CapacityService) ValidateStorageCapacity(ctx context.Context, cmd ValidateCapacityCommand) (*CapacityValidationDTO, error) {
	loc, err := s.locations.FindByCode(ctx, cmd.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %s: %w", cmd.Location, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocationNotFound, cmd.Location)
	}

	item, err := s.items.FindByCode(ctx, cmd.Item)
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", cmd.Item, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, cmd.Item)
	}

	addsHU := false
	if cmd.HandlingUnit != "" {
		already, err := s.ledger.LocationsOfHandlingUnits(ctx, []string{cmd.HandlingUnit})
		if err != nil {
			return nil, fmt.Errorf("failed to locate HU %s: %w", cmd.HandlingUnit, err)
		}
		addsHU = !already[loc.Code]
	}

	tolerance := s.cfg.ToleranceFor(loc.Scope.Company)
	check := domain.ValidateCapacity(loc.EffectiveLimits(), loc.UsageSnapshot, item, cmd.Quantity, tolerance, addsHU)

	if !check.Valid && s.metrics != nil {
		for _, v := range check.Violations {
			s.metrics.RecordCapacityViolation(v.Dimension)
		}
	}
	s.publishAlerts(ctx, "location", loc.Code, check)

	return &CapacityValidationDTO{
		Location:    loc.Code,
		Valid:       check.Valid,
		Violations:  check.Violations,
		Warnings:    check.Warnings,
		Utilization: check.Utilization,
	}, nil
}

// RefreshLocation rebuilds one location's usage snapshot and derived status
// from current ledger balances.
func (s *CapacityService) RefreshLocation(ctx context.Context, code string) error {
	loc, err := s.locations.FindByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load location %s: %w", code, err)
	}
	if loc == nil {
		return fmt.Errorf("%w: %s", domain.ErrLocationNotFound, code)
	}

	rows, err := s.ledger.BalancesAtLocation(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load balances at %s: %w", code, err)
	}

	balance, usage := s.aggregate(ctx, rows)
	return s.locations.UpdateDerived(ctx, code, domain.DeriveStatus(loc.Status, balance), usage)
}

// RefreshHandlingUnit rebuilds one handling unit's usage snapshot and
// derived status from current ledger balances.
func (s *CapacityService) RefreshHandlingUnit(ctx context.Context, code string) error {
	hu, err := s.hus.FindByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load HU %s: %w", code, err)
	}
	if hu == nil {
		return fmt.Errorf("%w: %s", domain.ErrHUNotFound, code)
	}

	rows, err := s.ledger.BalancesOnHandlingUnit(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load balances on %s: %w", code, err)
	}

	balance, usage := s.aggregate(ctx, rows)
	return s.hus.UpdateDerived(ctx, code, domain.DeriveStatus(hu.Status, balance), usage)
}

// RefreshAllLocations sweeps every location, continuing past per-entity
// failures and collecting them rather than aborting the batch.
func (s *CapacityService) RefreshAllLocations(ctx context.Context) (*RefreshResultDTO, error) {
	locs, err := s.locations.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	result := &RefreshResultDTO{}
	for _, loc := range locs {
		if err := s.RefreshLocation(ctx, loc.Code); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("location refresh failed", "location", loc.Code)
			result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", loc.Code, err))
			continue
		}
		result.Refreshed++
	}

	s.logger.WithContext(ctx).Info("location refresh sweep completed",
		"refreshed", result.Refreshed, "failed", len(result.Failed))
	return result, nil
}

func (s *CapacityService) aggregate(ctx context.Context, rows []domain.BalanceRow) (float64, domain.Usage) {
	var balance float64
	var usage domain.Usage
	cache := map[string]*domain.Item{}
	husSeen := map[string]bool{}

	for _, row := range rows {
		balance += row.Quantity
		item, ok := cache[row.Key.Item]
		if !ok {
			item, _ = s.items.FindByCode(ctx, row.Key.Item)
			cache[row.Key.Item] = item
		}
		if item != nil {
			usage = usage.Add(item, row.Quantity)
		}
		if row.Key.HandlingUnit != "" && !husSeen[row.Key.HandlingUnit] {
			husSeen[row.Key.HandlingUnit] = true
			usage.HUCount++
		}
	}
	return balance, usage
}

func (s *CapacityService) publishAlerts(ctx context.Context, kind, code string, check domain.CapacityValidation) {
	if s.publisher == nil || len(check.Warnings) == 0 {
		return
	}
	for dimension, pct := range check.Utilization {
		event := &domain.CapacityAlertEvent{
			EntityKind: kind,
			EntityID:   code,
			Dimension:  dimension,
			Pct:        pct,
			RaisedAt:   time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, code, event); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("failed to publish capacity alert",
				"entity", code, "dimension", dimension)
		}
	}
}
