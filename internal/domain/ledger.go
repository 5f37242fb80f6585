package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewLedgerEntryID creates a new unique ledger entry ID
func NewLedgerEntryID() string {
	timestamp := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("LE-%s-%s", timestamp, uuid.New().String()[:8])
}

// LedgerKey identifies one running-balance chain in the stock ledger
type LedgerKey struct {
	Item         string `bson:"item" json:"item"`
	Location     string `bson:"location" json:"location"`
	HandlingUnit string `bson:"handlingUnit,omitempty" json:"handlingUnit,omitempty"`
	Batch        string `bson:"batch,omitempty" json:"batch,omitempty"`
	Serial       string `bson:"serial,omitempty" json:"serial,omitempty"`
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%s@%s/hu=%s/batch=%s/serial=%s",
		k.Item, k.Location, k.HandlingUnit, k.Batch, k.Serial)
}

// LedgerEntry is one immutable movement fact. Entries are created only by the
// posting engine and never mutated or deleted. For a fixed key, entries
// ordered by PostedAt satisfy EndQty(n) = EndQty(n-1) + Quantity(n), and
// EndQty never goes negative.
type LedgerEntry struct {
	EntryID string    `bson:"entryId" json:"entryId"`
	Key     LedgerKey `bson:"key" json:"key"`

	Quantity float64 `bson:"quantity" json:"quantity"` // signed delta
	BeginQty float64 `bson:"beginQty" json:"beginQty"`
	EndQty   float64 `bson:"endQty" json:"endQty"`

	PostedAt time.Time `bson:"postedAt" json:"postedAt"`

	JobID     string `bson:"jobId" json:"jobId"`
	JobItemID string `bson:"jobItemId,omitempty" json:"jobItemId,omitempty"`
	Action    string `bson:"action" json:"action"`

	Scope  Scope  `bson:"scope" json:"scope"`
	Reason string `bson:"reason,omitempty" json:"reason,omitempty"`
}

// NextEntry builds the entry that continues the chain after last (nil when
// the key has never moved). A delta that would drive the balance negative is
// rejected, never clamped.
func NextEntry(last *LedgerEntry, key LedgerKey, delta float64, jobID, jobItemID, action, reason string, scope Scope) (LedgerEntry, error) {
	if delta == 0 {
		return LedgerEntry{}, ErrZeroDelta
	}

	begin := 0.0
	if last != nil {
		begin = last.EndQty
	}

	end := begin + delta
	if end < -capacityEpsilon {
		return LedgerEntry{}, fmt.Errorf("%w: %s has %.4f, movement of %.4f",
			ErrNegativeBalance, key, begin, delta)
	}
	if end < 0 {
		end = 0
	}

	return LedgerEntry{
		EntryID:   NewLedgerEntryID(),
		Key:       key,
		Quantity:  delta,
		BeginQty:  begin,
		EndQty:    end,
		PostedAt:  time.Now().UTC(),
		JobID:     jobID,
		JobItemID: jobItemID,
		Action:    action,
		Scope:     scope,
		Reason:    reason,
	}, nil
}

// VerifyChain checks the running-balance invariant over entries of one key,
// ordered by posting time.
func VerifyChain(entries []LedgerEntry) error {
	prev := 0.0
	for n, e := range entries {
		if e.BeginQty != prev {
			return fmt.Errorf("%w: entry %d begins at %.4f, previous ended at %.4f",
				ErrBrokenChain, n, e.BeginQty, prev)
		}
		if e.EndQty < 0 {
			return fmt.Errorf("%w: entry %d ends at %.4f", ErrNegativeBalance, n, e.EndQty)
		}
		if diff := e.EndQty - (e.BeginQty + e.Quantity); diff > capacityEpsilon || diff < -capacityEpsilon {
			return fmt.Errorf("%w: entry %d end %.4f != begin %.4f + delta %.4f",
				ErrBrokenChain, n, e.EndQty, e.BeginQty, e.Quantity)
		}
		prev = e.EndQty
	}
	return nil
}

// BalanceRow is one positive-balance grouping of ledger entries, the raw
// material for supply candidates and usage aggregation.
type BalanceRow struct {
	Key            LedgerKey `bson:"key" json:"key"`
	Quantity       float64   `bson:"quantity" json:"quantity"`
	FirstStockedAt time.Time `bson:"firstStockedAt" json:"firstStockedAt"`
	LastStockedAt  time.Time `bson:"lastStockedAt" json:"lastStockedAt"`
}
