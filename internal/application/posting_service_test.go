package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

func pickJob(f *fixture, qty float64) *domain.JobOrder {
	f.addItem(&domain.Item{Code: "ITEM-001", UnitVolume: 1})
	f.addLocation(&domain.StorageLocation{Code: "STAGE", StagingArea: true})
	f.addLocation(&domain.StorageLocation{Code: "L1"})
	f.seedStock(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}, qty, day("2024-01-01"))

	return f.addJob(&domain.JobOrder{
		JobID:       "JOB-1",
		Type:        domain.JobTypePick,
		Scope:       acme,
		StagingArea: "STAGE",
		Items: []domain.JobItem{{
			ItemID:   "JI-1",
			Item:     "ITEM-001",
			Quantity: qty,
			Location: "L1",
		}},
	})
}

func putawayJob(f *fixture, qty float64) *domain.JobOrder {
	f.addItem(&domain.Item{Code: "ITEM-001", UnitVolume: 1})
	f.addLocation(&domain.StorageLocation{Code: "STAGE", StagingArea: true})
	f.addLocation(&domain.StorageLocation{Code: "D-01"})

	return f.addJob(&domain.JobOrder{
		JobID:       "JOB-1",
		Type:        domain.JobTypePutaway,
		Scope:       acme,
		StagingArea: "STAGE",
		Items: []domain.JobItem{{
			ItemID:      "JI-1",
			Item:        "ITEM-001",
			Quantity:    qty,
			Destination: "D-01",
		}},
	})
}

func TestPostPick_MovesSourceToStaging(t *testing.T) {
	f := newFixture()
	pickJob(f, 5)

	result, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntriesAdded)
	assert.Equal(t, 1, result.RowsPosted)

	assert.Equal(t, 0.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}))
	assert.Equal(t, 5.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "STAGE"}))
	assert.True(t, f.jobs.jobs["JOB-1"].Items[0].Picked)
}

func TestPostPick_SecondCallSkips(t *testing.T) {
	f := newFixture()
	pickJob(f, 5)

	_, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	result, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.EntriesAdded)
	assert.Equal(t, 0, result.RowsPosted)
	assert.Equal(t, []string{"JI-1"}, result.Skipped)

	entries, err := f.ledger.EntriesForJob(context.Background(), "JOB-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "re-posting must not write new entries")
}

func TestPostPick_InsufficientSourceBalanceRejected(t *testing.T) {
	f := newFixture()
	job := pickJob(f, 5)
	job.Items[0].Quantity = 8 // more than the 5 on hand

	_, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	entries, _ := f.ledger.EntriesForJob(context.Background(), "JOB-1")
	assert.Empty(t, entries, "a rejected posting writes nothing")
	assert.False(t, job.Items[0].Picked)
}

func TestPostPick_FailedJobSaveRollsBackLedger(t *testing.T) {
	f := newFixture()
	pickJob(f, 5)
	f.jobs.saveErr = errors.New("connection reset")

	_, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.Error(t, err)

	entries, _ := f.ledger.EntriesForJob(context.Background(), "JOB-1")
	assert.Empty(t, entries, "ledger entries and posted flags commit together")
	assert.Equal(t, 5.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}))
}

func TestPostReceivingThenPutaway_StagingNetsToZero(t *testing.T) {
	f := newFixture()
	putawayJob(f, 10)

	_, err := f.posting.PostReceiving(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "STAGE"}))

	_, err = f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "STAGE"}))
	assert.Equal(t, 10.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "D-01"}))

	row := f.jobs.jobs["JOB-1"].Items[0]
	assert.True(t, row.Received)
	assert.True(t, row.PutAway)
	assert.False(t, row.Released)
}

func TestPostPutaway_RecomputesDerivedState(t *testing.T) {
	f := newFixture()
	putawayJob(f, 10)

	_, err := f.posting.PostReceiving(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)
	_, err = f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	dest := f.locations.locations["D-01"]
	assert.Equal(t, domain.StatusInUse, dest.Status)
	assert.Equal(t, 10.0, dest.UsageSnapshot.Volume)

	stage := f.locations.locations["STAGE"]
	assert.Equal(t, domain.StatusAvailable, stage.Status, "emptied staging reverts to available")
}

func TestPostPutaway_CapacityViolationRejectsSubmission(t *testing.T) {
	f := newFixture()
	job := putawayJob(f, 10)
	f.locations.locations["D-01"].Limits = domain.CapacityLimits{MaxVolume: 4}

	_, err := f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "D-01")

	entries, _ := f.ledger.EntriesForJob(context.Background(), "JOB-1")
	assert.Empty(t, entries)
	assert.False(t, job.Items[0].PutAway)
}

func TestPostPutaway_ToleranceAdmitsOverage(t *testing.T) {
	cfg := domain.DefaultAllocationConfig()
	cfg.ToleranceByCompany = map[string]float64{"ACME": 10}
	f := newFixtureWithConfig(cfg)
	putawayJob(f, 10)
	f.locations.locations["D-01"].Limits = domain.CapacityLimits{MaxVolume: 9.5}

	_, err := f.posting.PostReceiving(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)
	_, err = f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	assert.NoError(t, err, "10 against max 9.5 fits inside 10 percent tolerance")
}

func TestPostPutaway_CumulativeUsageAcrossRows(t *testing.T) {
	f := newFixture()
	job := putawayJob(f, 6)
	job.Items = append(job.Items, domain.JobItem{
		ItemID:      "JI-2",
		Item:        "ITEM-001",
		Quantity:    6,
		Destination: "D-01",
	})
	f.locations.locations["D-01"].Limits = domain.CapacityLimits{MaxVolume: 10}

	_, err := f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.Error(t, err, "each row fits alone but the submission as a whole does not")
}

func TestPostPutaway_AnchoringConflictRejected(t *testing.T) {
	f := newFixture()
	job := putawayJob(f, 5)
	job.Items[0].HandlingUnit = "PAL-1"
	job.Items = append(job.Items, domain.JobItem{
		ItemID:       "JI-2",
		Item:         "ITEM-001",
		Quantity:     5,
		Destination:  "D-02",
		HandlingUnit: "PAL-1",
	})
	f.addHU(&domain.HandlingUnit{Code: "PAL-1"})
	f.addLocation(&domain.StorageLocation{Code: "D-02"})

	_, err := f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAL-1")
	assert.Contains(t, err.Error(), "destinations")
}

func TestPostPutaway_OverflowAllowsConfiguredDestinations(t *testing.T) {
	cfg := domain.DefaultAllocationConfig()
	cfg.LocationOverflowByCompany = map[string]bool{"ACME": true}
	f := newFixtureWithConfig(cfg)

	job := putawayJob(f, 5)
	job.Items[0].HandlingUnit = "PAL-1"
	job.Items = append(job.Items, domain.JobItem{
		ItemID:       "JI-2",
		Item:         "ITEM-001",
		Quantity:     5,
		Destination:  "D-02",
		HandlingUnit: "PAL-1",
	})
	f.addHU(&domain.HandlingUnit{Code: "PAL-1", StorageLocationSize: 2})
	f.addLocation(&domain.StorageLocation{Code: "D-02"})

	_, err := f.posting.PostReceiving(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)
	_, err = f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	assert.NoError(t, err)
}

func TestPost_BlockedDestinationRejected(t *testing.T) {
	f := newFixture()
	putawayJob(f, 5)
	f.locations.locations["D-01"].Status = domain.StatusUnderMaintenance

	_, err := f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "D-01")
}

func TestPost_OutOfScopeLocationRejected(t *testing.T) {
	f := newFixture()
	putawayJob(f, 5)
	f.locations.locations["D-01"].Scope = domain.Scope{Company: "OTHER"}

	_, err := f.posting.PostPutaway(context.Background(), PostJobCommand{JobID: "JOB-1"})
	assert.ErrorIs(t, err, domain.ErrScopeViolation)
}

func TestPostRelease_InactivatesEmptiedUnit(t *testing.T) {
	f := newFixture()
	f.addItem(&domain.Item{Code: "ITEM-001", UnitVolume: 1})
	f.addLocation(&domain.StorageLocation{Code: "STAGE", StagingArea: true})
	f.addHU(&domain.HandlingUnit{Code: "PAL-1", InactivateOnRelease: true})
	f.seedStock(domain.LedgerKey{Item: "ITEM-001", Location: "STAGE", HandlingUnit: "PAL-1"}, 5, day("2024-01-01"))

	f.addJob(&domain.JobOrder{
		JobID:       "JOB-1",
		Type:        domain.JobTypePick,
		Scope:       acme,
		StagingArea: "STAGE",
		Items: []domain.JobItem{{
			ItemID:       "JI-1",
			Item:         "ITEM-001",
			Quantity:     5,
			Location:     "L1",
			HandlingUnit: "PAL-1",
		}},
	})

	_, err := f.posting.PostRelease(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "STAGE", HandlingUnit: "PAL-1"}))
	assert.Equal(t, domain.StatusInactive, f.hus.units["PAL-1"].Status)
}

func TestPostMove_SignedQuantitiesAtDeclaredLocations(t *testing.T) {
	f := newFixture()
	f.addItem(&domain.Item{Code: "ITEM-001", UnitVolume: 1})
	f.addLocation(&domain.StorageLocation{Code: "L1"})
	f.addLocation(&domain.StorageLocation{Code: "L2"})
	f.seedStock(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}, 10, day("2024-01-01"))

	f.addJob(&domain.JobOrder{
		JobID: "JOB-1",
		Type:  domain.JobTypeMove,
		Scope: acme,
		Items: []domain.JobItem{
			{ItemID: "JI-1", Item: "ITEM-001", Quantity: -10, Location: "L1"},
			{ItemID: "JI-2", Item: "ITEM-001", Quantity: 10, Location: "L2"},
		},
	})

	result, err := f.posting.PostMove(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntriesAdded)
	assert.Equal(t, 0.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}))
	assert.Equal(t, 10.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "L2"}))
}

func TestPostStocktake_AppliesAdjustments(t *testing.T) {
	f := newFixture()
	f.addItem(&domain.Item{Code: "ITEM-001", UnitVolume: 1})
	f.addLocation(&domain.StorageLocation{Code: "L1"})
	f.addLocation(&domain.StorageLocation{Code: "L2"})
	f.seedStock(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}, 5, day("2024-01-01"))
	f.seedStock(domain.LedgerKey{Item: "ITEM-001", Location: "L2"}, 4, day("2024-01-01"))

	f.addJob(&domain.JobOrder{
		JobID: "JOB-1",
		Type:  domain.JobTypeStocktake,
		Scope: acme,
		Items: []domain.JobItem{
			{ItemID: "JI-1", Item: "ITEM-001", Quantity: 3, Location: "L1"},
			{ItemID: "JI-2", Item: "ITEM-001", Quantity: -4, Location: "L2"},
		},
	})

	_, err := f.posting.PostStocktake(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 8.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "L1"}))
	assert.Equal(t, 0.0, f.ledger.balance(domain.LedgerKey{Item: "ITEM-001", Location: "L2"}))
}

func TestPostVAS_MarksDirectionalFlags(t *testing.T) {
	f := newFixture()
	f.addItem(&domain.Item{Code: "PART-A", UnitVolume: 1})
	f.addItem(&domain.Item{Code: "KIT-001", UnitVolume: 1})
	f.addLocation(&domain.StorageLocation{Code: "STAGE", StagingArea: true})
	f.seedStock(domain.LedgerKey{Item: "PART-A", Location: "STAGE"}, 10, day("2024-01-01"))

	f.addJob(&domain.JobOrder{
		JobID:       "JOB-1",
		Type:        domain.JobTypeVAS,
		Scope:       acme,
		StagingArea: "STAGE",
		Items: []domain.JobItem{
			{ItemID: "JI-1", Item: "PART-A", Quantity: -10, Location: "L1", SubAction: domain.SubActionPick},
			{ItemID: "JI-2", Item: "KIT-001", Quantity: 5, Destination: "D-01", SubAction: domain.SubActionPutaway},
		},
	})

	_, err := f.posting.PostVAS(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, f.ledger.balance(domain.LedgerKey{Item: "PART-A", Location: "STAGE"}),
		"the transform consumes staged components")
	assert.Equal(t, 5.0, f.ledger.balance(domain.LedgerKey{Item: "KIT-001", Location: "STAGE"}),
		"the transform produces the parent at staging")

	job := f.jobs.jobs["JOB-1"]
	assert.True(t, job.Items[0].Released, "pick-direction rows mark the stage-out flag")
	assert.False(t, job.Items[0].Picked)
	assert.True(t, job.Items[1].Received, "putaway-direction rows mark the stage-in flag")
	assert.False(t, job.Items[1].PutAway)
}

func TestPost_NoMatchingRowsWarns(t *testing.T) {
	f := newFixture()
	f.addJob(&domain.JobOrder{JobID: "JOB-1", Type: domain.JobTypePick, Scope: acme})

	result, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.EntriesAdded)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no rows matched")
}

func TestPost_UnknownJob(t *testing.T) {
	f := newFixture()

	_, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "NOPE"})
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestPost_PublishesMovementPostedEvent(t *testing.T) {
	f := newFixture()
	pickJob(f, 5)

	_, err := f.posting.PostPick(context.Background(), PostJobCommand{JobID: "JOB-1"})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	posted, ok := f.publisher.events[0].(*domain.MovementPostedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, posted.EntriesAdded)
}
