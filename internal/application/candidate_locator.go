package application

import (
	"context"
	"fmt"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// CandidateLocator finds and ranks viable supply and destination points for
// an item, scope- and capacity-filtered.
type CandidateLocator struct {
	ledger    domain.LedgerRepository
	items     domain.ItemRepository
	locations domain.LocationRepository
	hus       domain.HandlingUnitRepository
	batches   domain.BatchRepository
	logger    *logging.Logger
}

// NewCandidateLocator creates a new CandidateLocator
func NewCandidateLocator(
	ledger domain.LedgerRepository,
	items domain.ItemRepository,
	locations domain.LocationRepository,
	hus domain.HandlingUnitRepository,
	batches domain.BatchRepository,
	logger *logging.Logger,
) *CandidateLocator {
	return &CandidateLocator{
		ledger:    ledger,
		items:     items,
		locations: locations,
		hus:       hus,
		batches:   batches,
		logger:    logger.WithComponent("candidate-locator"),
	}
}

// OutboundCandidates returns ranked supply candidates for a pick line:
// positive-balance ledger rows for the item, grouped by (location, HU,
// batch, serial), scope-filtered, excluding staging and blocked entities.
func (l *CandidateLocator) OutboundCandidates(ctx context.Context, job *domain.JobOrder, line domain.JobOrderLine, item *domain.Item, cfg domain.AllocationConfig) ([]*domain.Candidate, error) {
	rows, err := l.ledger.PositiveBalances(ctx, item.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances for %s: %w", item.Code, err)
	}

	locCache, huCache, err := l.loadEntities(ctx, rows)
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.Candidate, 0, len(rows))
	for _, row := range rows {
		if line.Batch != "" && row.Key.Batch != line.Batch {
			continue
		}
		if line.Serial != "" && row.Key.Serial != line.Serial {
			continue
		}
		if line.HandlingUnit != "" && row.Key.HandlingUnit != line.HandlingUnit {
			continue
		}

		loc := locCache[row.Key.Location]
		if loc == nil || loc.StagingArea || !loc.IsUsable() || !loc.Scope.Matches(job.Scope) {
			continue
		}

		var hu *domain.HandlingUnit
		if row.Key.HandlingUnit != "" {
			hu = huCache[row.Key.HandlingUnit]
			if hu == nil || !hu.IsUsable() || !hu.Scope.Matches(job.Scope) {
				continue
			}
			if line.HUType != "" && hu.Type != line.HUType {
				continue
			}
		} else if line.HUType != "" {
			continue
		}

		c := &domain.Candidate{
			Location:       loc,
			HandlingUnit:   hu,
			Batch:          row.Key.Batch,
			Serial:         row.Key.Serial,
			Available:      row.Quantity,
			FirstStockedAt: row.FirstStockedAt,
			LastStockedAt:  row.LastStockedAt,
		}
		if row.Key.Batch != "" {
			if expiry, err := l.batches.Expiry(ctx, item.Code, row.Key.Batch); err == nil {
				c.Expiry = expiry
			}
			if grade, err := l.batches.QualityGrade(ctx, item.Code, row.Key.Batch); err == nil {
				c.QualityGrade = grade
			}
		}
		candidates = append(candidates, c)
	}

	domain.OrderCandidates(candidates, cfg.OrderingPolicyFor(item, line.Quantity))
	return candidates, nil
}

// destinationSearch carries the shared facts for one inbound search
type destinationSearch struct {
	job     *domain.JobOrder
	item    *domain.Item
	hu      *domain.HandlingUnit
	qty     float64
	staging *domain.StorageLocation
	anchors domain.AnchorMap
	cfg     domain.AllocationConfig
}

// DestinationCandidates returns ranked destination candidates for a putaway
// of qty units of item (on hu when assigned). The degradation ladder runs:
// capacity-valid candidates, capacity-invalid with a warning, reuse of a
// location already assigned in this run, and finally an emergency bypass of
// the level limit when configured.
func (l *CandidateLocator) DestinationCandidates(ctx context.Context, job *domain.JobOrder, item *domain.Item, hu *domain.HandlingUnit, qty float64, anchors domain.AnchorMap, cfg domain.AllocationConfig) ([]*domain.Candidate, []string, error) {
	var staging *domain.StorageLocation
	if job.StagingArea != "" {
		var err error
		staging, err = l.locations.FindByCode(ctx, job.StagingArea)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load staging area %s: %w", job.StagingArea, err)
		}
	}

	search := destinationSearch{
		job:     job,
		item:    item,
		hu:      hu,
		qty:     qty,
		staging: staging,
		anchors: anchors,
		cfg:     cfg,
	}

	var warnings []string

	candidates, err := l.collectDestinations(ctx, search, true)
	if err != nil {
		return nil, nil, err
	}

	valid := l.gateCapacity(candidates, search, &warnings)
	if valid > 0 || len(candidates) > 0 {
		if valid == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"no capacity-valid destination for %s; returning %d over-capacity candidates",
				item.Code, len(candidates)))
		}
		return candidates, warnings, nil
	}

	// Reuse a location already assigned to this run
	if reuse := l.reuseAssigned(ctx, search); reuse != nil {
		warnings = append(warnings, fmt.Sprintf(
			"no destination candidates for %s; reusing location %s already assigned in this run",
			item.Code, reuse.LocationCode()))
		return []*domain.Candidate{reuse}, warnings, nil
	}

	// Emergency bypass of the level limit
	if cfg.EmergencyFallbackAllowed {
		candidates, err = l.collectDestinations(ctx, search, false)
		if err != nil {
			return nil, nil, err
		}
		if len(candidates) > 0 {
			for _, c := range candidates {
				c.FallbackNote = "emergency fallback: allocation level limit bypassed"
			}
			l.gateCapacity(candidates, search, &warnings)
			warnings = append(warnings, fmt.Sprintf(
				"emergency fallback engaged for %s: level limit bypassed", item.Code))
			return candidates, warnings, nil
		}
	}

	warnings = append(warnings, fmt.Sprintf("no destination candidates found for %s", item.Code))
	return nil, warnings, nil
}

// collectDestinations assembles and ranks raw destination candidates.
// applyLevelLimit toggles the staging-prefix constraint.
func (l *CandidateLocator) collectDestinations(ctx context.Context, s destinationSearch, applyLevelLimit bool) ([]*domain.Candidate, error) {
	locs, err := l.locations.ListUsable(ctx, s.job.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}

	holdingItem, err := l.locationsHoldingItem(ctx, s.item.Code)
	if err != nil {
		return nil, err
	}

	exactHULocs, typeHULocs, err := l.handlingUnitLocations(ctx, s.hu)
	if err != nil {
		return nil, err
	}

	depth := s.job.LevelLimit
	if depth == 0 {
		depth = s.cfg.LevelLimitDepth
	}

	candidates := make([]*domain.Candidate, 0, len(locs))
	for _, loc := range locs {
		if loc.StagingArea {
			continue
		}
		// Strict storage-type filter: a non-matching type is never a candidate
		if !s.item.AcceptsStorageType(loc.StorageType) {
			continue
		}
		if applyLevelLimit && s.staging != nil && depth > 0 && !loc.SharesPrefix(s.staging, depth) {
			continue
		}

		candidates = append(candidates, &domain.Candidate{
			Location:        loc,
			HandlingUnit:    s.hu,
			Available:       -1,
			HoldsSameItem:   holdingItem[loc.Code],
			HoldsSameHU:     exactHULocs[loc.Code],
			HoldsSameHUType: typeHULocs[loc.Code],
		})
	}

	domain.OrderDestinationCandidates(candidates, s.cfg.OrderingPolicyFor(s.item, s.qty))
	return candidates, nil
}

// gateCapacity validates candidates in ranked order, checking at most the
// configured scan limit and stopping once enough valid ones are found.
// Returns the count of capacity-valid candidates and reorders the slice so
// valid candidates come first.
func (l *CandidateLocator) gateCapacity(candidates []*domain.Candidate, s destinationSearch, warnings *[]string) int {
	tolerance := s.cfg.ToleranceFor(s.job.Scope.Company)
	checked, valid := 0, 0

	for _, c := range candidates {
		if checked >= s.cfg.ScanLimit() {
			break
		}
		addsHU := s.hu != nil && !c.HoldsSameHU
		result := domain.ValidateCapacity(c.Location.EffectiveLimits(), c.Location.UsageSnapshot, s.item, s.qty, tolerance, addsHU)
		c.CapacityChecked = true
		c.CapacityValid = result.Valid
		*warnings = append(*warnings, result.Warnings...)
		checked++
		if result.Valid {
			valid++
			if valid >= s.cfg.ValidTarget() {
				break
			}
		}
	}

	domain.OrderDestinationCandidates(candidates, s.cfg.OrderingPolicyFor(s.item, s.qty))
	return valid
}

// reuseAssigned falls back to a location this run has already anchored the
// handling unit (or any unit) to.
func (l *CandidateLocator) reuseAssigned(ctx context.Context, s destinationSearch) *domain.Candidate {
	var code string
	if s.hu != nil {
		if dest, ok := s.anchors.Destination(s.hu.Code); ok {
			code = dest
		}
	}
	if code == "" {
		for _, dest := range s.anchors {
			code = dest
			break
		}
	}
	if code == "" {
		return nil
	}

	loc, err := l.locations.FindByCode(ctx, code)
	if err != nil || loc == nil || !loc.IsUsable() {
		return nil
	}
	return &domain.Candidate{
		Location:     loc,
		HandlingUnit: s.hu,
		Available:    -1,
		FallbackNote: "reused previously assigned location",
	}
}

// locationsHoldingItem returns the set of location codes with positive
// balance of the item (consolidation bins).
func (l *CandidateLocator) locationsHoldingItem(ctx context.Context, itemCode string) (map[string]bool, error) {
	rows, err := l.ledger.PositiveBalances(ctx, itemCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances for %s: %w", itemCode, err)
	}
	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		set[row.Key.Location] = true
	}
	return set, nil
}

// handlingUnitLocations returns where the exact unit sits and where units of
// the same type sit, for destination reunification.
func (l *CandidateLocator) handlingUnitLocations(ctx context.Context, hu *domain.HandlingUnit) (exact, sameType map[string]bool, err error) {
	exact = map[string]bool{}
	sameType = map[string]bool{}
	if hu == nil {
		return exact, sameType, nil
	}

	exact, err = l.ledger.LocationsOfHandlingUnits(ctx, []string{hu.Code})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate HU %s: %w", hu.Code, err)
	}

	if hu.Type != "" {
		codes, err := l.hus.CodesByType(ctx, hu.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list HUs of type %s: %w", hu.Type, err)
		}
		sameType, err = l.ledger.LocationsOfHandlingUnits(ctx, codes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to locate HUs of type %s: %w", hu.Type, err)
		}
	}
	return exact, sameType, nil
}

// loadEntities prefetches the locations and handling units referenced by
// balance rows.
func (l *CandidateLocator) loadEntities(ctx context.Context, rows []domain.BalanceRow) (map[string]*domain.StorageLocation, map[string]*domain.HandlingUnit, error) {
	locCodes := make([]string, 0, len(rows))
	huCodes := make([]string, 0, len(rows))
	seenLoc := map[string]bool{}
	seenHU := map[string]bool{}
	for _, row := range rows {
		if !seenLoc[row.Key.Location] {
			seenLoc[row.Key.Location] = true
			locCodes = append(locCodes, row.Key.Location)
		}
		if row.Key.HandlingUnit != "" && !seenHU[row.Key.HandlingUnit] {
			seenHU[row.Key.HandlingUnit] = true
			huCodes = append(huCodes, row.Key.HandlingUnit)
		}
	}

	locs, err := l.locations.FindByCodes(ctx, locCodes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load candidate locations: %w", err)
	}
	locCache := make(map[string]*domain.StorageLocation, len(locs))
	for _, loc := range locs {
		locCache[loc.Code] = loc
	}

	hus, err := l.hus.FindByCodes(ctx, huCodes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load candidate handling units: %w", err)
	}
	huCache := make(map[string]*domain.HandlingUnit, len(hus))
	for _, hu := range hus {
		huCache[hu.Code] = hu
	}

	return locCache, huCache, nil
}
