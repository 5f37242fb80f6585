package application

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	apperrors "github.com/agilasoft/logistics-sub000/pkg/errors"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
	"github.com/agilasoft/logistics-sub000/pkg/metrics"
)

// AllocationService runs the per-job-type orchestrators. Every run is a
// clear-and-rebuild: the job's planned items are wholly regenerated from its
// demand lines, so re-allocating is always safe.
type AllocationService struct {
	jobs      domain.JobRepository
	items     domain.ItemRepository
	locations domain.LocationRepository
	hus       domain.HandlingUnitRepository
	ledger    domain.LedgerRepository
	boms      domain.BOMRepository
	locator   *CandidateLocator
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	cfg       domain.AllocationConfig
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	jobs domain.JobRepository,
	items domain.ItemRepository,
	locations domain.LocationRepository,
	hus domain.HandlingUnitRepository,
	ledger domain.LedgerRepository,
	boms domain.BOMRepository,
	locator *CandidateLocator,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
	cfg domain.AllocationConfig,
) *AllocationService {
	return &AllocationService{
		jobs:      jobs,
		items:     items,
		locations: locations,
		hus:       hus,
		ledger:    ledger,
		boms:      boms,
		locator:   locator,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("allocation-service"),
		cfg:       cfg,
	}
}

// AllocatePick rebuilds a pick job's items: per demand line, an outbound
// candidate search ordered by the item's picking method, taken greedily.
// Insufficient supply is a warning with partial allocation, never an error.
func (s *AllocationService) AllocatePick(ctx context.Context, jobID string) (*AllocationResultDTO, error) {
	job, err := s.loadJob(ctx, jobID, domain.JobTypePick)
	if err != nil {
		return nil, err
	}

	job.ClearItems()
	result := &AllocationResultDTO{JobID: job.JobID, JobType: string(job.Type)}

	for _, line := range job.Lines {
		if err := s.allocatePickLine(ctx, job, line, 1.0, "", result); err != nil {
			s.recordRun(job, false, 0)
			return nil, err
		}
	}

	return s.finishAllocation(ctx, job, result)
}

// allocatePickLine plans one outbound demand line onto the job. sign is -1
// for VAS pick-direction rows, which carry negative quantities.
func (s *AllocationService) allocatePickLine(ctx context.Context, job *domain.JobOrder, line domain.JobOrderLine, sign float64, subAction domain.SubAction, result *AllocationResultDTO) error {
	item, err := s.loadItem(ctx, line.Item, job.Scope)
	if err != nil {
		return err
	}

	candidates, err := s.locator.OutboundCandidates(ctx, job, line, item, s.cfg)
	if err != nil {
		return err
	}

	allocations, shortfall := domain.GreedyAllocate(candidates, line.Quantity)

	lineDTO := AllocationLineDTO{
		LineNo:      line.LineNo,
		Item:        line.Item,
		RequiredQty: line.Quantity,
		Shortfall:   shortfall,
	}
	for _, alloc := range allocations {
		job.AppendItems(domain.JobItem{
			ItemID:       domain.NewJobItemID(),
			LineNo:       line.LineNo,
			Item:         item.Code,
			Quantity:     sign * alloc.Quantity,
			Location:     alloc.Candidate.LocationCode(),
			HandlingUnit: alloc.Candidate.HUCode(),
			Batch:        alloc.Candidate.Batch,
			Serial:       alloc.Candidate.Serial,
			SubAction:    subAction,
			Rationale:    alloc.Rationale,
		})
		lineDTO.AllocatedQty += alloc.Quantity
		lineDTO.Rows++
		result.CreatedQty += alloc.Quantity
	}
	result.CreatedRows += lineDTO.Rows

	if shortfall > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"line %d: insufficient supply of %s, short %.4g of %.4g",
			line.LineNo, line.Item, shortfall, line.Quantity))
	}
	result.Lines = append(result.Lines, lineDTO)
	return nil
}

// AllocatePutaway rebuilds a putaway job's items: handling unit assignment
// first, then a destination search per assignment, anchored so one unit
// resolves to one destination (or its overflow count) within the run.
func (s *AllocationService) AllocatePutaway(ctx context.Context, jobID string) (*AllocationResultDTO, error) {
	job, err := s.loadJob(ctx, jobID, domain.JobTypePutaway)
	if err != nil {
		return nil, err
	}

	job.ClearItems()
	result := &AllocationResultDTO{JobID: job.JobID, JobType: string(job.Type)}
	anchors := domain.AnchorMap{}

	for _, line := range job.Lines {
		if err := s.allocatePutawayLine(ctx, job, line, anchors, "", result); err != nil {
			s.recordRun(job, false, 0)
			return nil, err
		}
	}

	return s.finishAllocation(ctx, job, result)
}

func (s *AllocationService) allocatePutawayLine(ctx context.Context, job *domain.JobOrder, line domain.JobOrderLine, anchors domain.AnchorMap, subAction domain.SubAction, result *AllocationResultDTO) error {
	item, err := s.loadItem(ctx, line.Item, job.Scope)
	if err != nil {
		return err
	}

	assignments, residue, err := s.assignHandlingUnits(ctx, job, line, item, result)
	if err != nil {
		return err
	}

	lineDTO := AllocationLineDTO{
		LineNo:      line.LineNo,
		Item:        line.Item,
		RequiredQty: line.Quantity,
	}

	for _, assignment := range assignments {
		rows, err := s.planPutaway(ctx, job, item, assignment.HandlingUnit, assignment.Quantity,
			anchors, line, subAction, assignment.Rationale, result)
		if err != nil {
			return err
		}
		for _, row := range rows {
			lineDTO.AllocatedQty += math.Abs(row.Quantity)
			lineDTO.Rows++
		}
	}

	// Residue no handling unit could carry still needs a destination; it is
	// planned loose and flagged.
	if residue > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"line %d: %.4g of %s fits no handling unit, planned loose",
			line.LineNo, residue, line.Item))
		rows, err := s.planPutaway(ctx, job, item, nil, residue, anchors, line, subAction,
			"no handling unit had capacity", result)
		if err != nil {
			return err
		}
		for _, row := range rows {
			lineDTO.AllocatedQty += math.Abs(row.Quantity)
			lineDTO.Rows++
		}
	}

	lineDTO.Shortfall = line.Quantity - lineDTO.AllocatedQty
	if lineDTO.Shortfall < 0 {
		lineDTO.Shortfall = 0
	}
	result.CreatedRows += lineDTO.Rows
	result.CreatedQty += lineDTO.AllocatedQty
	result.Lines = append(result.Lines, lineDTO)
	return nil
}

// planPutaway turns one (item, HU, qty) requirement into destination-tagged
// job items, honoring anchoring and location overflow.
func (s *AllocationService) planPutaway(ctx context.Context, job *domain.JobOrder, item *domain.Item, hu *domain.HandlingUnit, qty float64, anchors domain.AnchorMap, line domain.JobOrderLine, subAction domain.SubAction, baseRationale string, result *AllocationResultDTO) ([]domain.JobItem, error) {
	huCode := ""
	if hu != nil {
		huCode = hu.Code

		// A unit already anchored in this run goes back to its destination
		if dest, ok := anchors.Destination(hu.Code); ok {
			row := s.newPutawayRow(job, item, line, subAction, qty, dest, huCode,
				baseRationale+"; HU already anchored to "+dest)
			return []domain.JobItem{row}, nil
		}
	}

	candidates, warnings, err := s.locator.DestinationCandidates(ctx, job, item, hu, qty, anchors, s.cfg)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	if len(candidates) == 0 {
		row := s.newPutawayRow(job, item, line, subAction, qty, "", huCode,
			baseRationale+"; no destination found")
		return []domain.JobItem{row}, nil
	}

	if hu != nil {
		result.Warnings = append(result.Warnings, s.consolidationWarnings(ctx, hu, item)...)

		if s.cfg.OverflowEnabled(job.Scope.Company) && hu.OverflowDestinations() > 1 {
			if rows := s.planOverflow(job, item, hu, qty, candidates, line, subAction, baseRationale); rows != nil {
				return rows, nil
			}
		}
	}

	best := candidates[0]
	if err := anchors.Bind(huCode, best.LocationCode()); err != nil {
		return nil, apperrors.ErrAnchoringConflict(err.Error())
	}
	row := s.newPutawayRow(job, item, line, subAction, qty, best.LocationCode(), huCode,
		joinRationale(baseRationale, domain.DescribeTake(best, qty)))
	return []domain.JobItem{row}, nil
}

// planOverflow splits a unit's requirement across its configured destination
// count. Returns nil when too few distinct destinations are available, in
// which case the caller falls back to a single anchored destination.
func (s *AllocationService) planOverflow(job *domain.JobOrder, item *domain.Item, hu *domain.HandlingUnit, qty float64, candidates []*domain.Candidate, line domain.JobOrderLine, subAction domain.SubAction, baseRationale string) []domain.JobItem {
	want := hu.OverflowDestinations()
	dests := make([]string, 0, want)
	seen := map[string]bool{}
	for _, c := range candidates {
		code := c.LocationCode()
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		dests = append(dests, code)
		if len(dests) == want {
			break
		}
	}
	if len(dests) < 2 {
		return nil
	}

	shares := domain.SplitForOverflow(dests, qty, item.Volume()*qty, item.Weight()*qty, s.cfg.SplitPrecision)
	rows := make([]domain.JobItem, 0, len(shares))
	for _, share := range shares {
		rows = append(rows, s.newPutawayRow(job, item, line, subAction, share.Quantity,
			share.Destination, hu.Code,
			fmt.Sprintf("%s; overflow share %.4g of %.4g across %d locations",
				baseRationale, share.Quantity, qty, len(shares))))
	}
	return rows
}

func (s *AllocationService) newPutawayRow(job *domain.JobOrder, item *domain.Item, line domain.JobOrderLine, subAction domain.SubAction, qty float64, destination, huCode, rationale string) domain.JobItem {
	row := domain.JobItem{
		ItemID:       domain.NewJobItemID(),
		LineNo:       line.LineNo,
		Item:         item.Code,
		Quantity:     qty,
		Destination:  destination,
		HandlingUnit: huCode,
		Batch:        line.Batch,
		Serial:       line.Serial,
		SubAction:    subAction,
		Rationale:    rationale,
	}
	job.AppendItems(row)
	return row
}

// assignHandlingUnits resolves which units carry a demand line: the explicit
// unit when requested, units of a requested type, otherwise the item's
// putaway policy. Overflow past an explicit unit's capacity continues down
// the policy ordering.
func (s *AllocationService) assignHandlingUnits(ctx context.Context, job *domain.JobOrder, line domain.JobOrderLine, item *domain.Item, result *AllocationResultDTO) ([]domain.HUAssignment, float64, error) {
	var ordered []*domain.HandlingUnit
	why := ""

	switch {
	case line.HandlingUnit != "":
		hu, err := s.hus.FindByCode(ctx, line.HandlingUnit)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load HU %s: %w", line.HandlingUnit, err)
		}
		if hu == nil {
			return nil, 0, fmt.Errorf("%w: %s", domain.ErrHUNotFound, line.HandlingUnit)
		}
		if err := domain.GuardScope("handling unit", hu.Code, hu.Scope, job.Scope); err != nil {
			return nil, 0, err
		}
		rest, err := s.policyOrderedHUs(ctx, job, item)
		if err != nil {
			return nil, 0, err
		}
		ordered = append([]*domain.HandlingUnit{hu}, withoutHU(rest, hu.Code)...)
		why = "requested unit " + hu.Code

	case line.HUType != "":
		all, err := s.hus.ListUsable(ctx, job.Scope)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list handling units: %w", err)
		}
		for _, hu := range all {
			if hu.Type == line.HUType {
				ordered = append(ordered, hu)
			}
		}
		s.orderByPolicy(ctx, ordered, item)
		why = "requested unit type " + line.HUType

	default:
		var err error
		ordered, err = s.policyOrderedHUs(ctx, job, item)
		if err != nil {
			return nil, 0, err
		}
		why = "putaway policy " + string(putawayPolicy(item))
	}

	assignments, residue := domain.PackIntoHandlingUnits(item, line.Quantity, ordered, why)
	return assignments, residue, nil
}

func putawayPolicy(item *domain.Item) domain.PutawayPolicy {
	if item.PutawayPolicy != "" {
		return item.PutawayPolicy
	}
	return domain.PutawayConsolidateSameItem
}

// policyOrderedHUs lists usable in-scope units ordered per the item's
// putaway policy: consolidation puts units already holding the item first,
// then both policies fall back to most free capacity first.
func (s *AllocationService) policyOrderedHUs(ctx context.Context, job *domain.JobOrder, item *domain.Item) ([]*domain.HandlingUnit, error) {
	units, err := s.hus.ListUsable(ctx, job.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list handling units: %w", err)
	}
	s.orderByPolicy(ctx, units, item)
	return units, nil
}

func (s *AllocationService) orderByPolicy(ctx context.Context, units []*domain.HandlingUnit, item *domain.Item) {
	holding := map[string]bool{}
	if putawayPolicy(item) == domain.PutawayConsolidateSameItem {
		if rows, err := s.ledger.PositiveBalances(ctx, item.Code); err == nil {
			for _, row := range rows {
				if row.Key.HandlingUnit != "" {
					holding[row.Key.HandlingUnit] = true
				}
			}
		}
	}

	free := func(hu *domain.HandlingUnit) float64 {
		v := hu.FreeVolume()
		if v < 0 {
			return math.MaxFloat64
		}
		return v
	}
	sort.SliceStable(units, func(i, j int) bool {
		if holding[units[i].Code] != holding[units[j].Code] {
			return holding[units[i].Code]
		}
		return free(units[i]) > free(units[j])
	})
}

func withoutHU(units []*domain.HandlingUnit, code string) []*domain.HandlingUnit {
	out := units[:0]
	for _, hu := range units {
		if hu.Code != code {
			out = append(out, hu)
		}
	}
	return out
}

// consolidationWarnings runs the mixing guard against a unit's current
// contents. Mixing violations warn, never block.
func (s *AllocationService) consolidationWarnings(ctx context.Context, hu *domain.HandlingUnit, incoming *domain.Item) []string {
	rows, err := s.ledger.BalancesOnHandlingUnit(ctx, hu.Code)
	if err != nil || len(rows) == 0 {
		return nil
	}

	contents := make([]domain.HUContent, 0, len(rows))
	cache := map[string]*domain.Item{}
	for _, row := range rows {
		content := domain.HUContent{Item: row.Key.Item}
		if other, err := s.lookupItem(ctx, cache, row.Key.Item); err == nil && other != nil {
			content.Customer = other.Customer
		}
		contents = append(contents, content)
	}

	return domain.CheckConsolidation(hu, contents, incoming, func(itemCode string) (bool, bool) {
		other, err := s.lookupItem(ctx, cache, itemCode)
		if err != nil || other == nil {
			return true, true
		}
		return other.AllowsLotConsolidation(), other.AllowsCustomerMixing()
	})
}

func (s *AllocationService) lookupItem(ctx context.Context, cache map[string]*domain.Item, code string) (*domain.Item, error) {
	if item, ok := cache[code]; ok {
		return item, nil
	}
	item, err := s.items.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	cache[code] = item
	return item, nil
}

// AllocateMove rebuilds a move job's items: one negative row at the declared
// from endpoint and one positive row at the declared to endpoint per line.
// No search runs; only scope validation applies.
func (s *AllocationService) AllocateMove(ctx context.Context, jobID string) (*MoveResultDTO, error) {
	job, err := s.loadJob(ctx, jobID, domain.JobTypeMove)
	if err != nil {
		return nil, err
	}

	job.ClearItems()
	result := &MoveResultDTO{JobID: job.JobID}

	for _, line := range job.Lines {
		if line.Quantity <= 0 || line.FromLocation == "" || line.ToLocation == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf(
				"line %d: incomplete move declaration", line.LineNo))
			continue
		}

		for _, code := range []string{line.FromLocation, line.ToLocation} {
			loc, err := s.locations.FindByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("failed to load location %s: %w", code, err)
			}
			if loc == nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrLocationNotFound, code)
			}
			if err := domain.GuardScope("location", code, loc.Scope, job.Scope); err != nil {
				return nil, err
			}
		}

		job.AppendItems(
			domain.JobItem{
				ItemID:       domain.NewJobItemID(),
				LineNo:       line.LineNo,
				Item:         line.Item,
				Quantity:     -line.Quantity,
				Location:     line.FromLocation,
				HandlingUnit: line.FromHandlingUnit,
				Batch:        line.Batch,
				Serial:       line.Serial,
				Rationale:    fmt.Sprintf("move out of %s", line.FromLocation),
			},
			domain.JobItem{
				ItemID:       domain.NewJobItemID(),
				LineNo:       line.LineNo,
				Item:         line.Item,
				Quantity:     line.Quantity,
				Location:     line.ToLocation,
				HandlingUnit: line.ToHandlingUnit,
				Batch:        line.Batch,
				Serial:       line.Serial,
				Rationale:    fmt.Sprintf("move into %s", line.ToLocation),
			},
		)
		result.CreatedPairs++
	}

	job.RecordAllocation(len(job.Items), 0, len(result.Skipped))
	if err := s.jobs.Save(ctx, job); err != nil {
		s.recordRun(job, false, 0)
		return nil, fmt.Errorf("failed to save job %s: %w", job.JobID, err)
	}
	s.publishEvents(ctx, job)
	s.recordRun(job, true, len(job.Items))
	result.AllocatedAt = job.UpdatedAt
	return result, nil
}

// AllocateVAS rebuilds a VAS job's items: each parent line expands through
// its BOM into pick-direction and putaway-direction lines, planned with the
// respective orchestrator logic against an in-memory line list and merged
// into one items list tagged by sub-action.
func (s *AllocationService) AllocateVAS(ctx context.Context, jobID string) (*AllocationResultDTO, error) {
	job, err := s.loadJob(ctx, jobID, domain.JobTypeVAS)
	if err != nil {
		return nil, err
	}

	job.ClearItems()
	result := &AllocationResultDTO{JobID: job.JobID, JobType: string(job.Type)}
	anchors := domain.AnchorMap{}

	for _, line := range job.Lines {
		bom, err := s.boms.FindForParent(ctx, line.Item, job.Scope)
		if err != nil {
			s.recordRun(job, false, 0)
			return nil, fmt.Errorf("failed to load BOM for %s: %w", line.Item, err)
		}
		if bom == nil {
			s.recordRun(job, false, 0)
			return nil, fmt.Errorf("%w: no BOM for parent %s", domain.ErrBOMNotFound, line.Item)
		}

		expanded, err := bom.Expand(line)
		if err != nil {
			s.recordRun(job, false, 0)
			return nil, err
		}

		for _, vasLine := range expanded {
			switch vasLine.SubAction {
			case domain.SubActionPick:
				err = s.allocatePickLine(ctx, job, vasLine.Line, -1.0, domain.SubActionPick, result)
			case domain.SubActionPutaway:
				err = s.allocatePutawayLine(ctx, job, vasLine.Line, anchors, domain.SubActionPutaway, result)
			}
			if err != nil {
				s.recordRun(job, false, 0)
				return nil, err
			}
		}
	}

	return s.finishAllocation(ctx, job, result)
}

// AllocateStocktake rebuilds a stocktake job's items: one signed adjustment
// row per non-zero counted-minus-system delta at the counted key.
func (s *AllocationService) AllocateStocktake(ctx context.Context, jobID string) (*AllocationResultDTO, error) {
	job, err := s.loadJob(ctx, jobID, domain.JobTypeStocktake)
	if err != nil {
		return nil, err
	}

	job.ClearItems()
	result := &AllocationResultDTO{JobID: job.JobID, JobType: string(job.Type)}

	for _, count := range job.CountLines {
		key := domain.LedgerKey{
			Item:         count.Item,
			Location:     count.Location,
			HandlingUnit: count.HandlingUnit,
			Batch:        count.Batch,
			Serial:       count.Serial,
		}
		last, err := s.ledger.LastEntry(ctx, key)
		if err != nil {
			s.recordRun(job, false, 0)
			return nil, fmt.Errorf("failed to read balance for %s: %w", key.String(), err)
		}

		system := 0.0
		if last != nil {
			system = last.EndQty
		}
		delta := count.CountedQty - system
		if math.Abs(delta) <= 1e-9 {
			continue
		}

		job.AppendItems(domain.JobItem{
			ItemID:       domain.NewJobItemID(),
			Item:         count.Item,
			Quantity:     delta,
			Location:     count.Location,
			HandlingUnit: count.HandlingUnit,
			Batch:        count.Batch,
			Serial:       count.Serial,
			Rationale:    fmt.Sprintf("counted %.4g against system %.4g", count.CountedQty, system),
		})
		result.CreatedRows++
		result.CreatedQty += delta
	}

	return s.finishAllocation(ctx, job, result)
}

func (s *AllocationService) loadJob(ctx context.Context, jobID string, want domain.JobType) (*domain.JobOrder, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if job.Type != want {
		return nil, apperrors.ErrBadRequest(fmt.Sprintf("job %s is a %s job, not %s", jobID, job.Type, want))
	}
	return job, nil
}

func (s *AllocationService) loadItem(ctx context.Context, code string, jobScope domain.Scope) (*domain.Item, error) {
	item, err := s.items.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", code, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, code)
	}
	if err := domain.GuardScope("item", item.Code, item.Scope, jobScope); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *AllocationService) finishAllocation(ctx context.Context, job *domain.JobOrder, result *AllocationResultDTO) (*AllocationResultDTO, error) {
	job.RecordAllocation(result.CreatedRows, result.CreatedQty, len(result.Warnings))
	if err := s.jobs.Save(ctx, job); err != nil {
		s.recordRun(job, false, 0)
		return nil, fmt.Errorf("failed to save job %s: %w", job.JobID, err)
	}
	s.publishEvents(ctx, job)
	s.recordRun(job, true, result.CreatedRows)
	result.AllocatedAt = job.UpdatedAt

	s.logger.WithContext(ctx).Info("allocation run completed",
		"jobId", job.JobID,
		"jobType", job.Type,
		"createdRows", result.CreatedRows,
		"warnings", len(result.Warnings))
	return result, nil
}

func (s *AllocationService) publishEvents(ctx context.Context, job *domain.JobOrder) {
	if s.publisher == nil {
		return
	}
	for _, event := range job.PullEvents() {
		if err := s.publisher.Publish(ctx, job.JobID, event); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("failed to publish event",
				"eventType", event.EventType(), "jobId", job.JobID)
		}
	}
}

func (s *AllocationService) recordRun(job *domain.JobOrder, success bool, items int) {
	if s.metrics != nil {
		s.metrics.RecordAllocationRun(string(job.Type), success, items)
	}
}

func joinRationale(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "; "
		}
		out += p
	}
	return out
}
