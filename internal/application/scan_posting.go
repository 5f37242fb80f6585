package application

import (
	"context"
	"fmt"
	"math"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	apperrors "github.com/agilasoft/logistics-sub000/pkg/errors"
)

// PostItemsByScan posts job rows matched by scanned identifiers, up to the
// requested quantity. A partially covered row is split into a posted portion
// and an unposted remainder sibling before posting.
func (s *PostingService) PostItemsByScan(ctx context.Context, cmd ScanPostCommand) (*ScanPostResultDTO, error) {
	job, err := s.jobs.FindByID(ctx, cmd.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", cmd.JobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, cmd.JobID)
	}

	plan, err := s.scanPlan(job, cmd.Action)
	if err != nil {
		return nil, err
	}

	var loc *domain.StorageLocation
	if cmd.LocationCode != "" {
		loc, err = s.locations.ResolveScanned(ctx, cmd.LocationCode)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve location scan: %w", err)
		}
		if loc == nil {
			return nil, fmt.Errorf("%w: location scan %q", domain.ErrScanUnresolved, cmd.LocationCode)
		}
	}
	var hu *domain.HandlingUnit
	if cmd.HUCode != "" {
		hu, err = s.hus.ResolveScanned(ctx, cmd.HUCode)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HU scan: %w", err)
		}
		if hu == nil {
			return nil, fmt.Errorf("%w: HU scan %q", domain.ErrScanUnresolved, cmd.HUCode)
		}
	}

	matched := s.matchScan(job, plan, cmd, loc, hu)
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: no unposted rows match the scan", domain.ErrNothingToPost)
	}

	selected, postedQty, err := s.takeQuantity(job, matched, cmd.Quantity)
	if err != nil {
		return nil, err
	}

	postResult, err := s.postRows(ctx, job, selected, plan, "scan posting")
	if err != nil {
		return nil, err
	}

	result := &ScanPostResultDTO{
		JobID:      job.JobID,
		Action:     plan.ledgerA,
		RowsPosted: postResult.RowsPosted,
		PostedQty:  postedQty,
		Warnings:   postResult.Warnings,
		PostedAt:   postResult.PostedAt,
	}
	for _, row := range selected {
		movements, err := plan.movements(job, row)
		if err != nil {
			continue
		}
		for _, m := range movements {
			if m.delta < 0 {
				result.OutEntries++
			} else {
				result.InEntries++
			}
		}
	}
	return result, nil
}

// scanPlan maps a scanned action onto the job type's posting plan
func (s *PostingService) scanPlan(job *domain.JobOrder, action domain.PostingAction) (postingPlan, error) {
	vas := job.Type == domain.JobTypeVAS

	switch action {
	case domain.ActionReceiving:
		return s.receivingPlan(), nil
	case domain.ActionPick:
		if vas {
			return s.vasPickPlan(), nil
		}
		return s.pickPlan(), nil
	case domain.ActionPutaway:
		if vas {
			return s.vasPutawayPlan(), nil
		}
		return s.putawayPlan(), nil
	case domain.ActionRelease:
		return s.releasePlan(), nil
	case domain.ActionVAS:
		return s.vasPlan(), nil
	default:
		return postingPlan{}, apperrors.ErrBadRequest(fmt.Sprintf("unknown posting action %q", action))
	}
}

// matchScan filters unposted plan rows by the resolved scan identifiers
func (s *PostingService) matchScan(job *domain.JobOrder, plan postingPlan, cmd ScanPostCommand, loc *domain.StorageLocation, hu *domain.HandlingUnit) []*domain.JobItem {
	var matched []*domain.JobItem
	for n := range job.Items {
		row := &job.Items[n]
		if !plan.selects(row) || row.Posted(plan.flagFor(row)) {
			continue
		}
		if cmd.Item != "" && row.Item != cmd.Item {
			continue
		}
		if hu != nil && row.HandlingUnit != hu.Code {
			continue
		}
		if loc != nil && !scanLocationMatches(job, row, cmd.Action, loc.Code) {
			continue
		}
		matched = append(matched, row)
	}
	return matched
}

// scanLocationMatches checks the scanned location against the field the
// action moves through: destination for putaway, source for pick, the job's
// staging area otherwise.
func scanLocationMatches(job *domain.JobOrder, row *domain.JobItem, action domain.PostingAction, locCode string) bool {
	switch action {
	case domain.ActionPutaway:
		return row.Destination == locCode
	case domain.ActionPick:
		return row.Location == locCode
	default:
		return job.StagingArea == locCode
	}
}

// takeQuantity selects whole rows up to the requested quantity, splitting
// the last row when it is only partially covered. Zero quantity takes all
// matched rows.
func (s *PostingService) takeQuantity(job *domain.JobOrder, matched []*domain.JobItem, qty float64) ([]*domain.JobItem, float64, error) {
	if qty <= 0 {
		var total float64
		for _, row := range matched {
			total += math.Abs(row.Quantity)
		}
		return matched, total, nil
	}

	// AppendItems can reallocate job.Items and orphan row pointers collected
	// earlier, so track IDs and resolve pointers once the list is final.
	var ids []string
	var taken float64
	remaining := qty

	for _, row := range matched {
		if remaining <= 0 {
			break
		}
		abs := math.Abs(row.Quantity)
		if abs <= remaining {
			ids = append(ids, row.ItemID)
			taken += abs
			remaining -= abs
			continue
		}

		portion, err := row.Split(remaining)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to split row %s: %w", row.ItemID, err)
		}
		job.AppendItems(*portion)
		ids = append(ids, portion.ItemID)
		taken += remaining
		remaining = 0
	}

	selected := make([]*domain.JobItem, 0, len(ids))
	for _, id := range ids {
		selected = append(selected, job.FindItem(id))
	}
	return selected, taken, nil
}

// Plan accessors so scan posting reuses the whole-phase definitions. Kept as
// methods because the plans close over nothing but the service config.
func (s *PostingService) receivingPlan() postingPlan {
	return postingPlan{
		action:  domain.ActionReceiving,
		ledgerA: string(domain.ActionReceiving),
		selects: func(row *domain.JobItem) bool {
			return isPlain(row) && row.Quantity > 0 && row.Destination != ""
		},
		flagFor: func(*domain.JobItem) domain.PostingAction { return domain.ActionReceiving },
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			return []movement{{key: stagingKey(job, row), delta: row.Quantity}}, nil
		},
	}
}

func (s *PostingService) pickPlan() postingPlan {
	return postingPlan{
		action:  domain.ActionPick,
		ledgerA: string(domain.ActionPick),
		selects: func(row *domain.JobItem) bool {
			return isPlain(row) && row.Quantity > 0 && row.Location != ""
		},
		flagFor: func(*domain.JobItem) domain.PostingAction { return domain.ActionPick },
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			return []movement{
				{key: rowKey(row.Location, row), delta: -row.Quantity},
				{key: stagingKey(job, row), delta: row.Quantity},
			}, nil
		},
	}
}

func (s *PostingService) putawayPlan() postingPlan {
	return postingPlan{
		action:  domain.ActionPutaway,
		ledgerA: string(domain.ActionPutaway),
		selects: func(row *domain.JobItem) bool {
			return isPlain(row) && row.Quantity > 0 && row.Destination != ""
		},
		flagFor:        func(*domain.JobItem) domain.PostingAction { return domain.ActionPutaway },
		movements:      putawayMovements,
		checkCapacity:  true,
		checkAnchoring: true,
	}
}

func (s *PostingService) releasePlan() postingPlan {
	return postingPlan{
		action:  domain.ActionRelease,
		ledgerA: string(domain.ActionRelease),
		selects: func(row *domain.JobItem) bool {
			return isPlain(row) && row.Quantity > 0 && row.Location != ""
		},
		flagFor: func(*domain.JobItem) domain.PostingAction { return domain.ActionRelease },
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			return []movement{{key: stagingKey(job, row), delta: -row.Quantity}}, nil
		},
		releasePhase: true,
	}
}

func (s *PostingService) vasPickPlan() postingPlan {
	return postingPlan{
		action:  domain.ActionPick,
		ledgerA: "vas pick",
		selects: func(row *domain.JobItem) bool { return row.SubAction == domain.SubActionPick },
		flagFor: func(*domain.JobItem) domain.PostingAction { return domain.ActionPick },
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			qty := math.Abs(row.Quantity)
			return []movement{
				{key: rowKey(row.Location, row), delta: -qty},
				{key: stagingKey(job, row), delta: qty},
			}, nil
		},
	}
}

func (s *PostingService) vasPlan() postingPlan {
	return postingPlan{
		action:  domain.ActionVAS,
		ledgerA: string(domain.ActionVAS),
		selects: func(row *domain.JobItem) bool { return row.SubAction != "" },
		flagFor: func(row *domain.JobItem) domain.PostingAction {
			if row.SubAction == domain.SubActionPick {
				return domain.ActionRelease
			}
			return domain.ActionReceiving
		},
		movements: func(job *domain.JobOrder, row *domain.JobItem) ([]movement, error) {
			delta := row.Quantity
			if row.SubAction == domain.SubActionPick && delta > 0 {
				delta = -delta
			}
			return []movement{{key: stagingKey(job, row), delta: delta}}, nil
		},
	}
}

func (s *PostingService) vasPutawayPlan() postingPlan {
	return postingPlan{
		action:  domain.ActionPutaway,
		ledgerA: "vas putaway",
		selects: func(row *domain.JobItem) bool {
			return row.SubAction == domain.SubActionPutaway && row.Destination != ""
		},
		flagFor:        func(*domain.JobItem) domain.PostingAction { return domain.ActionPutaway },
		movements:      putawayMovements,
		checkCapacity:  true,
		checkAnchoring: true,
	}
}
