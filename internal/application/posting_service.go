package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	apperrors "github.com/agilasoft/logistics-sub000/pkg/errors"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
	"github.com/agilasoft/logistics-sub000/pkg/metrics"
)

// PostingService turns planned job items into ledger entries. Each posting
// call checks status, scope, capacity and anchoring preconditions up front
// with every offending row enumerated, writes the entries, then recomputes
// derived status and usage for every touched location and handling unit.
type PostingService struct {
	jobs      domain.JobRepository
	items     domain.ItemRepository
	locations domain.LocationRepository
	hus       domain.HandlingUnitRepository
	ledger    domain.LedgerRepository
	tx        TransactionRunner
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	cfg       domain.AllocationConfig
}

// NewPostingService creates a new PostingService
func NewPostingService(
	jobs domain.JobRepository,
	items domain.ItemRepository,
	locations domain.LocationRepository,
	hus domain.HandlingUnitRepository,
	ledger domain.LedgerRepository,
	tx TransactionRunner,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
	cfg domain.AllocationConfig,
) *PostingService {
	return &PostingService{
		jobs:      jobs,
		items:     items,
		locations: locations,
		hus:       hus,
		ledger:    ledger,
		tx:        tx,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("posting-service"),
		cfg:       cfg,
	}
}

// movement is one signed ledger delta a row produces when posted
type movement struct {
	key   domain.LedgerKey
	delta float64
}

// postingPlan describes one movement phase: which rows it selects, which
// one-way flag marks them, and what ledger deltas each row produces.
type postingPlan struct {
	action  domain.PostingAction
	ledgerA string // ledger action label

	selects   func(row *domain.JobItem) bool
	flagFor   func(row *domain.JobItem) domain.PostingAction
	movements func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error)

	// checkCapacity re-validates destinations against current usage before
	// any entry is written
	checkCapacity bool
	// checkAnchoring re-enforces one HU, one destination (or the overflow
	// count) across the job's putaway-direction rows
	checkAnchoring bool
	// releasePhase applies inactivate-on-release to emptied handling units
	releasePhase bool
}

func isPlain(row *domain.JobItem) bool { return row.SubAction == "" }

func stagingKey(job *domain.JobOrder, row *domain.JobItem) domain.LedgerKey {
	return domain.LedgerKey{
		Item:         row.Item,
		Location:     job.StagingArea,
		HandlingUnit: row.HandlingUnit,
		Batch:        row.Batch,
		Serial:       row.Serial,
	}
}

func rowKey(location string, row *domain.JobItem) domain.LedgerKey {
	return domain.LedgerKey{
		Item:         row.Item,
		Location:     location,
		HandlingUnit: row.HandlingUnit,
		Batch:        row.Batch,
		Serial:       row.Serial,
	}
}

// PostReceiving stages putaway-job rows in: +qty at the staging area.
func (s *PostingService) PostReceiving(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.receivingPlan())
}

// PostPick moves pick-job rows from source to staging as one atomic pair.
func (s *PostingService) PostPick(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.pickPlan())
}

// PostPutaway moves putaway-job rows from staging to their destination.
func (s *PostingService) PostPutaway(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.putawayPlan())
}

// PostRelease stages pick-job rows out: -qty at the staging area.
func (s *PostingService) PostRelease(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.releasePlan())
}

// PostVASPick moves pick-direction VAS rows from source to staging.
func (s *PostingService) PostVASPick(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.vasPickPlan())
}

// PostVAS runs the transform at staging: each row's signed quantity as-is,
// consuming staged pick-direction rows and producing putaway-direction ones.
// Pick-direction rows mark their stage-out flag, putaway-direction rows
// their stage-in flag.
func (s *PostingService) PostVAS(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.vasPlan())
}

// PostVASPutaway moves putaway-direction VAS rows from staging to their
// destination.
func (s *PostingService) PostVASPutaway(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, s.vasPutawayPlan())
}

// PostMove applies move-job rows: each row's signed quantity at its declared
// location. Single phase, so rows mark the putaway flag.
func (s *PostingService) PostMove(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, postingPlan{
		action:  domain.ActionPutaway,
		ledgerA: "move",
		selects: func(row *domain.JobItem) bool { return row.Location != "" && row.Quantity != 0 },
		flagFor: func(*domain.JobItem) domain.PostingAction { return domain.ActionPutaway },
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			return []movement{{key: rowKey(row.Location, row), delta: row.Quantity}}, nil
		},
	})
}

// PostStocktake applies stocktake adjustment rows: each signed delta at the
// counted key. Single phase, so rows mark the putaway flag.
func (s *PostingService) PostStocktake(ctx context.Context, cmd PostJobCommand) (*PostingResultDTO, error) {
	return s.post(ctx, cmd, postingPlan{
		action:  domain.ActionPutaway,
		ledgerA: "stocktake adjust",
		selects: func(row *domain.JobItem) bool { return row.Location != "" && row.Quantity != 0 },
		flagFor: func(*domain.JobItem) domain.PostingAction { return domain.ActionPutaway },
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			return []movement{{key: rowKey(row.Location, row), delta: row.Quantity}}, nil
		},
	})
}

func putawayMovements(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
	qty := math.Abs(row.Quantity)
	return []movement{
		{key: stagingKey(job, row), delta: -qty},
		{key: rowKey(row.Destination, row), delta: qty},
	}, nil
}

// post loads the job, selects the plan's rows and posts the unposted ones
func (s *PostingService) post(ctx context.Context, cmd PostJobCommand, plan postingPlan) (*PostingResultDTO, error) {
	job, err := s.jobs.FindByID(ctx, cmd.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", cmd.JobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, cmd.JobID)
	}

	var rows []*domain.JobItem
	for n := range job.Items {
		if plan.selects(&job.Items[n]) {
			rows = append(rows, &job.Items[n])
		}
	}

	return s.postRows(ctx, job, rows, plan, cmd.Reason)
}

// postRows is the shared posting core for whole-phase and scan-driven calls
func (s *PostingService) postRows(ctx context.Context, job *domain.JobOrder, rows []*domain.JobItem, plan postingPlan, reason string) (*PostingResultDTO, error) {
	result := &PostingResultDTO{JobID: job.JobID, Action: plan.ledgerA}

	// Re-posting is a no-op reported as skipped, never an error
	unposted := make([]*domain.JobItem, 0, len(rows))
	for _, row := range rows {
		if row.Posted(plan.flagFor(row)) {
			result.Skipped = append(result.Skipped, row.ItemID)
			continue
		}
		unposted = append(unposted, row)
	}

	if len(unposted) == 0 {
		if len(result.Skipped) == 0 {
			result.Warnings = append(result.Warnings, "no rows matched this action")
		}
		s.recordSkips(plan.ledgerA, len(result.Skipped))
		result.PostedAt = time.Now().UTC()
		return result, nil
	}

	touched, err := s.checkPreconditions(ctx, job, unposted, plan, result)
	if err != nil {
		return nil, err
	}

	entries, err := s.buildEntries(ctx, job, unposted, plan, reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, row := range unposted {
		if err := row.MarkPosted(plan.flagFor(row), now); err != nil {
			return nil, fmt.Errorf("failed to mark row %s: %w", row.ItemID, err)
		}
	}

	// The ledger entries and the job's posted flags commit or roll back
	// together; a flag without its entries (or the reverse) would let the
	// same row post twice or never.
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.Append(ctx, entries); err != nil {
			return fmt.Errorf("failed to append ledger entries: %w", err)
		}
		if err := s.jobs.Save(ctx, job); err != nil {
			return fmt.Errorf("failed to save job %s: %w", job.JobID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.EntriesAdded = len(entries)
	result.RowsPosted = len(unposted)
	result.PostedAt = now

	s.recomputeDerived(ctx, touched, plan.releasePhase)

	job.RecordPosting(plan.action, len(entries), len(result.Skipped))
	s.publishEvents(ctx, job)
	if s.metrics != nil {
		s.metrics.RecordMovementPosted(plan.ledgerA, len(entries))
	}
	s.recordSkips(plan.ledgerA, len(result.Skipped))

	s.logger.WithContext(ctx).Info("posting completed",
		"jobId", job.JobID,
		"action", plan.ledgerA,
		"entries", len(entries),
		"skipped", len(result.Skipped))
	return result, nil
}

// touchedSet accumulates the entities whose derived state a posting changed
type touchedSet struct {
	locations map[string]bool
	hus       map[string]bool
}

func newTouchedSet() *touchedSet {
	return &touchedSet{locations: map[string]bool{}, hus: map[string]bool{}}
}

// checkPreconditions enforces scope, status, capacity and anchoring before
// any write, enumerating every offending row at once.
func (s *PostingService) checkPreconditions(ctx context.Context, job *domain.JobOrder, rows []*domain.JobItem, plan postingPlan, result *PostingResultDTO) (*touchedSet, error) {
	touched := newTouchedSet()
	for _, row := range rows {
		movements, err := plan.movements(job, row)
		if err != nil {
			return nil, err
		}
		for _, m := range movements {
			touched.locations[m.key.Location] = true
			if m.key.HandlingUnit != "" {
				touched.hus[m.key.HandlingUnit] = true
			}
		}
	}

	var offenders []string

	locCodes := sortedKeys(touched.locations)
	locs, err := s.locations.FindByCodes(ctx, locCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	found := map[string]bool{}
	for _, loc := range locs {
		found[loc.Code] = true
		if err := domain.GuardScope("location", loc.Code, loc.Scope, job.Scope); err != nil {
			return nil, err
		}
		if loc.Status.Blocks() {
			offenders = append(offenders, fmt.Sprintf("location %s is %s", loc.Code, loc.Status))
		}
	}
	for _, code := range locCodes {
		if !found[code] {
			return nil, fmt.Errorf("%w: %s", domain.ErrLocationNotFound, code)
		}
	}

	huCodes := sortedKeys(touched.hus)
	hus, err := s.hus.FindByCodes(ctx, huCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to load handling units: %w", err)
	}
	for _, hu := range hus {
		if err := domain.GuardScope("handling unit", hu.Code, hu.Scope, job.Scope); err != nil {
			return nil, err
		}
		if hu.Status.Blocks() {
			offenders = append(offenders, fmt.Sprintf("HU %s is %s", hu.Code, hu.Status))
		}
	}

	if len(offenders) > 0 {
		return nil, apperrors.ErrStatusViolation(strings.Join(offenders, "; "))
	}

	if plan.checkAnchoring {
		if err := s.checkAnchoring(ctx, job); err != nil {
			return nil, err
		}
	}
	if plan.checkCapacity {
		if err := s.checkDestinationCapacity(ctx, job, rows, result); err != nil {
			return nil, err
		}
	}
	return touched, nil
}

// checkAnchoring re-enforces one HU, one destination across the whole job,
// allowing a unit's configured overflow count.
func (s *PostingService) checkAnchoring(ctx context.Context, job *domain.JobOrder) error {
	dests := map[string]map[string]bool{}
	for n := range job.Items {
		row := &job.Items[n]
		if row.HandlingUnit == "" || row.Destination == "" {
			continue
		}
		if dests[row.HandlingUnit] == nil {
			dests[row.HandlingUnit] = map[string]bool{}
		}
		dests[row.HandlingUnit][row.Destination] = true
	}

	var conflicts []string
	for huCode, set := range dests {
		allowed := 1
		if s.cfg.OverflowEnabled(job.Scope.Company) {
			if hu, err := s.hus.FindByCode(ctx, huCode); err == nil && hu != nil {
				allowed = hu.OverflowDestinations()
			}
		}
		if len(set) > allowed {
			conflicts = append(conflicts, fmt.Sprintf(
				"HU %s resolves to %d destinations (%s), %d allowed",
				huCode, len(set), strings.Join(sortedKeys(set), ", "), allowed))
		}
	}
	if len(conflicts) > 0 {
		return apperrors.ErrAnchoringConflict(strings.Join(conflicts, "; "))
	}
	return nil
}

// checkDestinationCapacity re-validates every destination against current
// usage plus everything this submission adds to it, with the company
// tolerance. Any violation rejects the whole submission.
func (s *PostingService) checkDestinationCapacity(ctx context.Context, job *domain.JobOrder, rows []*domain.JobItem, result *PostingResultDTO) error {
	tolerance := s.cfg.ToleranceFor(job.Scope.Company)
	itemCache := map[string]*domain.Item{}
	usageByDest := map[string]domain.Usage{}
	husAtDest := map[string]map[string]bool{}

	var violations []string
	for _, row := range rows {
		if row.Destination == "" {
			violations = append(violations, fmt.Sprintf("row %s has no destination", row.ItemID))
			continue
		}
		loc, err := s.locations.FindByCode(ctx, row.Destination)
		if err != nil || loc == nil {
			return fmt.Errorf("%w: %s", domain.ErrLocationNotFound, row.Destination)
		}

		item, err := s.lookupItem(ctx, itemCache, row.Item)
		if err != nil || item == nil {
			return fmt.Errorf("%w: %s", domain.ErrItemNotFound, row.Item)
		}

		usage, ok := usageByDest[row.Destination]
		if !ok {
			usage = loc.UsageSnapshot
		}

		addsHU := false
		if row.HandlingUnit != "" {
			if husAtDest[row.Destination] == nil {
				husAtDest[row.Destination] = map[string]bool{}
			}
			if !husAtDest[row.Destination][row.HandlingUnit] {
				husAtDest[row.Destination][row.HandlingUnit] = true
				addsHU = true
			}
		}

		qty := math.Abs(row.Quantity)
		check := domain.ValidateCapacity(loc.EffectiveLimits(), usage, item, qty, tolerance, addsHU)
		result.Warnings = append(result.Warnings, check.Warnings...)
		if !check.Valid {
			for _, v := range check.Violations {
				violations = append(violations, fmt.Sprintf("row %s at %s: %s", row.ItemID, row.Destination, v))
				if s.metrics != nil {
					s.metrics.RecordCapacityViolation(v.Dimension)
				}
			}
			continue
		}

		usage = usage.Add(item, qty)
		if addsHU {
			usage.HUCount++
		}
		usageByDest[row.Destination] = usage
	}

	if len(violations) > 0 {
		return apperrors.ErrCapacityViolation(strings.Join(violations, "; "))
	}
	return nil
}

// buildEntries chains ledger entries per key across the batch so the running
// balance stays consistent when several rows hit the same key.
func (s *PostingService) buildEntries(ctx context.Context, job *domain.JobOrder, rows []*domain.JobItem, plan postingPlan, reason string) ([]domain.LedgerEntry, error) {
	lastByKey := map[string]*domain.LedgerEntry{}
	entries := make([]domain.LedgerEntry, 0, len(rows)*2)

	for _, row := range rows {
		movements, err := plan.movements(job, row)
		if err != nil {
			return nil, err
		}
		for _, m := range movements {
			keyStr := m.key.String()
			last, ok := lastByKey[keyStr]
			if !ok {
				last, err = s.ledger.LastEntry(ctx, m.key)
				if err != nil {
					return nil, fmt.Errorf("failed to read last entry for %s: %w", keyStr, err)
				}
			}

			entry, err := domain.NextEntry(last, m.key, m.delta, job.JobID, row.ItemID, plan.ledgerA, reason, job.Scope)
			if err != nil {
				return nil, fmt.Errorf("row %s: %w", row.ItemID, err)
			}
			entries = append(entries, entry)
			lastByKey[keyStr] = &entries[len(entries)-1]
		}
	}
	return entries, nil
}

// recomputeDerived rebuilds status and usage snapshots for every touched
// entity from current ledger balances. Sweep failures are logged, never
// propagated; the ledger is already committed.
func (s *PostingService) recomputeDerived(ctx context.Context, touched *touchedSet, releasePhase bool) {
	itemCache := map[string]*domain.Item{}

	for _, code := range sortedKeys(touched.locations) {
		if err := s.refreshLocation(ctx, code, itemCache); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("location refresh failed", "location", code)
		}
	}
	for _, code := range sortedKeys(touched.hus) {
		if err := s.refreshHandlingUnit(ctx, code, itemCache, releasePhase); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("HU refresh failed", "hu", code)
		}
	}
}

func (s *PostingService) refreshLocation(ctx context.Context, code string, itemCache map[string]*domain.Item) error {
	loc, err := s.locations.FindByCode(ctx, code)
	if err != nil || loc == nil {
		return fmt.Errorf("location %s not loadable: %w", code, err)
	}

	rows, err := s.ledger.BalancesAtLocation(ctx, code)
	if err != nil {
		return err
	}

	balance, usage := s.aggregate(ctx, rows, itemCache)
	return s.locations.UpdateDerived(ctx, code, domain.DeriveStatus(loc.Status, balance), usage)
}

func (s *PostingService) refreshHandlingUnit(ctx context.Context, code string, itemCache map[string]*domain.Item, releasePhase bool) error {
	hu, err := s.hus.FindByCode(ctx, code)
	if err != nil || hu == nil {
		return fmt.Errorf("HU %s not loadable: %w", code, err)
	}

	rows, err := s.ledger.BalancesOnHandlingUnit(ctx, code)
	if err != nil {
		return err
	}

	balance, usage := s.aggregate(ctx, rows, itemCache)
	status := domain.DeriveStatus(hu.Status, balance)
	if releasePhase && hu.InactivateOnRelease && balance <= 0 {
		status = domain.StatusInactive
	}
	return s.hus.UpdateDerived(ctx, code, status, usage)
}

// aggregate sums balance and utilization over positive-balance rows
func (s *PostingService) aggregate(ctx context.Context, rows []domain.BalanceRow, itemCache map[string]*domain.Item) (float64, domain.Usage) {
	var balance float64
	var usage domain.Usage
	husSeen := map[string]bool{}

	for _, row := range rows {
		balance += row.Quantity
		if item, err := s.lookupItem(ctx, itemCache, row.Key.Item); err == nil && item != nil {
			usage = usage.Add(item, row.Quantity)
		}
		if row.Key.HandlingUnit != "" && !husSeen[row.Key.HandlingUnit] {
			husSeen[row.Key.HandlingUnit] = true
			usage.HUCount++
		}
	}
	return balance, usage
}

func (s *PostingService) lookupItem(ctx context.Context, cache map[string]*domain.Item, code string) (*domain.Item, error) {
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

func (s *PostingService) publishEvents(ctx context.Context, job *domain.JobOrder) {
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

func (s *PostingService) recordSkips(action string, count int) {
	if s.metrics != nil && count > 0 {
		s.metrics.RecordPostingSkipped(action, count)
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
