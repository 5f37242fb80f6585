package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// In-memory repository fakes backing the service tests. They implement the
// same contracts as the MongoDB repositories, including positive-balance
// grouping and scope wildcard filtering.

type memLedger struct {
	entries []domain.LedgerEntry
}

func (m *memLedger) LastEntry(_ context.Context, key domain.LedgerKey) (*domain.LedgerEntry, error) {
	for n := len(m.entries) - 1; n >= 0; n-- {
		if m.entries[n].Key == key {
			e := m.entries[n]
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memLedger) Append(_ context.Context, entries []domain.LedgerEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memLedger) EntriesForKey(_ context.Context, key domain.LedgerKey) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedger) EntriesForJob(_ context.Context, jobID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedger) PositiveBalances(_ context.Context, item string) ([]domain.BalanceRow, error) {
	return m.group(func(k domain.LedgerKey) bool { return k.Item == item }), nil
}

func (m *memLedger) BalancesAtLocation(_ context.Context, location string) ([]domain.BalanceRow, error) {
	return m.group(func(k domain.LedgerKey) bool { return k.Location == location }), nil
}

func (m *memLedger) BalancesOnHandlingUnit(_ context.Context, huCode string) ([]domain.BalanceRow, error) {
	return m.group(func(k domain.LedgerKey) bool { return k.HandlingUnit == huCode }), nil
}

func (m *memLedger) LocationsOfHandlingUnits(_ context.Context, huCodes []string) (map[string]bool, error) {
	wanted := map[string]bool{}
	for _, code := range huCodes {
		wanted[code] = true
	}
	out := map[string]bool{}
	for _, row := range m.group(func(k domain.LedgerKey) bool { return k.HandlingUnit != "" && wanted[k.HandlingUnit] }) {
		out[row.Key.Location] = true
	}
	return out, nil
}

func (m *memLedger) group(match func(domain.LedgerKey) bool) []domain.BalanceRow {
	byKey := map[domain.LedgerKey]*domain.BalanceRow{}
	var order []domain.LedgerKey
	for _, e := range m.entries {
		if !match(e.Key) {
			continue
		}
		row, ok := byKey[e.Key]
		if !ok {
			row = &domain.BalanceRow{Key: e.Key}
			byKey[e.Key] = row
			order = append(order, e.Key)
		}
		row.Quantity += e.Quantity
		if e.Quantity > 0 {
			if row.FirstStockedAt.IsZero() || e.PostedAt.Before(row.FirstStockedAt) {
				row.FirstStockedAt = e.PostedAt
			}
			if e.PostedAt.After(row.LastStockedAt) {
				row.LastStockedAt = e.PostedAt
			}
		}
	}

	var out []domain.BalanceRow
	for _, key := range order {
		if row := byKey[key]; row.Quantity > 0 {
			out = append(out, *row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FirstStockedAt.Before(out[j].FirstStockedAt)
	})
	return out
}

// balance sums every entry for a key, zero when the key never moved
func (m *memLedger) balance(key domain.LedgerKey) float64 {
	var total float64
	for _, e := range m.entries {
		if e.Key == key {
			total += e.Quantity
		}
	}
	return total
}

type memJobs struct {
	jobs    map[string]*domain.JobOrder
	saveErr error
}

func (m *memJobs) FindByID(_ context.Context, jobID string) (*domain.JobOrder, error) {
	return m.jobs[jobID], nil
}

func (m *memJobs) Save(_ context.Context, job *domain.JobOrder) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.jobs[job.JobID] = job
	return nil
}

type memItems struct {
	items map[string]*domain.Item
}

func (m *memItems) FindByCode(_ context.Context, code string) (*domain.Item, error) {
	return m.items[code], nil
}

type memLocations struct {
	locations map[string]*domain.StorageLocation
	updateErr map[string]error
}

func (m *memLocations) FindByCode(_ context.Context, code string) (*domain.StorageLocation, error) {
	return m.locations[code], nil
}

func (m *memLocations) FindByCodes(_ context.Context, codes []string) ([]*domain.StorageLocation, error) {
	var out []*domain.StorageLocation
	for _, code := range codes {
		if loc, ok := m.locations[code]; ok {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (m *memLocations) ListUsable(_ context.Context, scope domain.Scope) ([]*domain.StorageLocation, error) {
	var out []*domain.StorageLocation
	for _, loc := range m.locations {
		if loc.StagingArea || !loc.IsUsable() || !loc.Scope.Matches(scope) {
			continue
		}
		out = append(out, loc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BinPriority != out[j].BinPriority {
			return out[i].BinPriority < out[j].BinPriority
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *memLocations) ListAll(_ context.Context) ([]*domain.StorageLocation, error) {
	var out []*domain.StorageLocation
	for _, loc := range m.locations {
		out = append(out, loc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memLocations) ResolveScanned(_ context.Context, code string) (*domain.StorageLocation, error) {
	if loc, ok := m.locations[code]; ok {
		return loc, nil
	}
	for _, loc := range m.locations {
		if loc.Barcode == code {
			return loc, nil
		}
	}
	return nil, nil
}

func (m *memLocations) UpdateDerived(_ context.Context, code string, status domain.EntityStatus, usage domain.Usage) error {
	if err := m.updateErr[code]; err != nil {
		return err
	}
	loc, ok := m.locations[code]
	if !ok {
		return fmt.Errorf("location %s not found", code)
	}
	loc.Status = status
	loc.UsageSnapshot = usage
	return nil
}

type memHUs struct {
	units map[string]*domain.HandlingUnit
}

func (m *memHUs) FindByCode(_ context.Context, code string) (*domain.HandlingUnit, error) {
	return m.units[code], nil
}

func (m *memHUs) FindByCodes(_ context.Context, codes []string) ([]*domain.HandlingUnit, error) {
	var out []*domain.HandlingUnit
	for _, code := range codes {
		if hu, ok := m.units[code]; ok {
			out = append(out, hu)
		}
	}
	return out, nil
}

func (m *memHUs) CodesByType(_ context.Context, huType string) ([]string, error) {
	var out []string
	for _, hu := range m.units {
		if hu.Type == huType {
			out = append(out, hu.Code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memHUs) ListUsable(_ context.Context, scope domain.Scope) ([]*domain.HandlingUnit, error) {
	var out []*domain.HandlingUnit
	for _, hu := range m.units {
		if !hu.IsUsable() || !hu.Scope.Matches(scope) {
			continue
		}
		out = append(out, hu)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memHUs) ResolveScanned(_ context.Context, code string) (*domain.HandlingUnit, error) {
	if hu, ok := m.units[code]; ok {
		return hu, nil
	}
	for _, hu := range m.units {
		if hu.Barcode == code {
			return hu, nil
		}
	}
	return nil, nil
}

func (m *memHUs) UpdateDerived(_ context.Context, code string, status domain.EntityStatus, usage domain.Usage) error {
	hu, ok := m.units[code]
	if !ok {
		return fmt.Errorf("handling unit %s not found", code)
	}
	hu.Status = status
	hu.UsageSnapshot = usage
	return nil
}

type memBatches struct {
	expiries map[string]*time.Time
	grades   map[string]int
}

func batchKey(item, batch string) string { return item + "|" + batch }

func (m *memBatches) Expiry(_ context.Context, item, batch string) (*time.Time, error) {
	return m.expiries[batchKey(item, batch)], nil
}

func (m *memBatches) QualityGrade(_ context.Context, item, batch string) (int, error) {
	return m.grades[batchKey(item, batch)], nil
}

type memBOMs struct {
	boms []*domain.BOM
}

func (m *memBOMs) FindForParent(_ context.Context, parentItem string, scope domain.Scope) (*domain.BOM, error) {
	for _, bom := range m.boms {
		if bom.ParentItem == parentItem && bom.Scope.Matches(scope) {
			return bom, nil
		}
	}
	return nil, nil
}

// memTx mirrors the session transaction contract: a failed fn leaves the
// ledger exactly as it was before the call.
type memTx struct {
	ledger *memLedger
}

func (t *memTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	before := len(t.ledger.entries)
	if err := fn(ctx); err != nil {
		t.ledger.entries = t.ledger.entries[:before]
		return err
	}
	return nil
}

type capturePublisher struct {
	events []domain.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event domain.DomainEvent) error {
	p.events = append(p.events, event)
	return nil
}

// fixture wires the fakes into real services under a default config
type fixture struct {
	ledger    *memLedger
	jobs      *memJobs
	items     *memItems
	locations *memLocations
	hus       *memHUs
	batches   *memBatches
	boms      *memBOMs
	publisher *capturePublisher

	cfg domain.AllocationConfig

	allocation *AllocationService
	posting    *PostingService
	capacity   *CapacityService
	reader     *LedgerService
}

func newFixture() *fixture {
	return newFixtureWithConfig(domain.DefaultAllocationConfig())
}

func newFixtureWithConfig(cfg domain.AllocationConfig) *fixture {
	f := &fixture{
		ledger:    &memLedger{},
		jobs:      &memJobs{jobs: map[string]*domain.JobOrder{}},
		items:     &memItems{items: map[string]*domain.Item{}},
		locations: &memLocations{locations: map[string]*domain.StorageLocation{}, updateErr: map[string]error{}},
		hus:       &memHUs{units: map[string]*domain.HandlingUnit{}},
		batches:   &memBatches{expiries: map[string]*time.Time{}, grades: map[string]int{}},
		boms:      &memBOMs{},
		publisher: &capturePublisher{},
		cfg:       cfg,
	}

	logger := logging.New(logging.DefaultConfig("test"))
	locator := NewCandidateLocator(f.ledger, f.items, f.locations, f.hus, f.batches, logger)
	f.allocation = NewAllocationService(f.jobs, f.items, f.locations, f.hus, f.ledger, f.boms,
		locator, f.publisher, nil, logger, cfg)
	f.posting = NewPostingService(f.jobs, f.items, f.locations, f.hus, f.ledger,
		&memTx{ledger: f.ledger}, f.publisher, nil, logger, cfg)
	f.capacity = NewCapacityService(f.items, f.locations, f.hus, f.ledger,
		f.publisher, nil, logger, cfg)
	f.reader = NewLedgerService(f.ledger, logger)
	return f
}

func (f *fixture) addItem(item *domain.Item) *domain.Item {
	f.items.items[item.Code] = item
	return item
}

func (f *fixture) addLocation(loc *domain.StorageLocation) *domain.StorageLocation {
	if loc.Status == "" {
		loc.Status = domain.StatusAvailable
	}
	if loc.Path == "" {
		loc.Path = loc.Code
	}
	f.locations.locations[loc.Code] = loc
	return loc
}

func (f *fixture) addHU(hu *domain.HandlingUnit) *domain.HandlingUnit {
	if hu.Status == "" {
		hu.Status = domain.StatusAvailable
	}
	f.hus.units[hu.Code] = hu
	return hu
}

func (f *fixture) addJob(job *domain.JobOrder) *domain.JobOrder {
	f.jobs.jobs[job.JobID] = job
	return job
}

// seedStock appends a receiving entry continuing the key's chain
func (f *fixture) seedStock(key domain.LedgerKey, qty float64, at time.Time) {
	last, _ := f.ledger.LastEntry(context.Background(), key)
	begin := 0.0
	if last != nil {
		begin = last.EndQty
	}
	f.ledger.entries = append(f.ledger.entries, domain.LedgerEntry{
		EntryID:  domain.NewLedgerEntryID(),
		Key:      key,
		Quantity: qty,
		BeginQty: begin,
		EndQty:   begin + qty,
		PostedAt: at,
		JobID:    "SEED",
		Action:   "receiving",
	})
}
