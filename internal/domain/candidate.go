package domain

import (
	"sort"
	"time"
)

// Candidate is one viable supply point (outbound) or destination (inbound)
// for an item, assembled by the candidate locator and ranked here.
type Candidate struct {
	Location     *StorageLocation
	HandlingUnit *HandlingUnit

	Batch  string
	Serial string
	Expiry *time.Time

	// Available is the supply quantity (outbound) or the projected remaining
	// quantity the destination can still take (inbound); <0 means unbounded.
	Available float64

	FirstStockedAt time.Time
	LastStockedAt  time.Time

	QualityGrade int

	// Inbound ranking facts
	HoldsSameItem   bool // consolidation bin: already holds the item
	HoldsSameHU     bool // the exact handling unit currently sits here
	HoldsSameHUType bool // a handling unit of the same type sits here

	// Capacity gating outcome
	CapacityChecked bool
	CapacityValid   bool

	// FallbackNote names the degradation step that admitted this candidate
	FallbackNote string
}

// LocationCode returns the candidate's location code
func (c *Candidate) LocationCode() string {
	if c.Location == nil {
		return ""
	}
	return c.Location.Code
}

// HUCode returns the candidate's handling unit code, empty when loose stock
func (c *Candidate) HUCode() string {
	if c.HandlingUnit == nil {
		return ""
	}
	return c.HandlingUnit.Code
}

// CanCover reports whether the candidate alone satisfies the quantity
func (c *Candidate) CanCover(qty float64) bool {
	return c.Available < 0 || c.Available >= qty
}

// OrderingPolicy drives the candidate ranking chain. Flags mirror the item's
// and company's allocation preferences.
type OrderingPolicy struct {
	Method PickingMethod

	SingleLotPreference   bool
	FullUnitFirst         bool
	NearestLocationFirst  bool
	StorageTypePreference bool
	QualityGradePriority  bool

	RequiredQty float64

	// StorageTypeRank orders storage types for the item; nil disables rank 6
	StorageTypeRank func(storageType string) int
}

// methodCompare ranks two candidates by the picking method key alone.
// Returns <0 when a ranks before b, >0 after, 0 tie.
func methodCompare(a, b *Candidate, method PickingMethod) int {
	switch method {
	case PickingFEFO:
		return compareExpiry(a, b, true)
	case PickingLEFO:
		return compareExpiry(a, b, false)
	case PickingLIFO, PickingFMFO:
		return -a.LastStockedAt.Compare(b.LastStockedAt)
	default: // FIFO
		return a.FirstStockedAt.Compare(b.FirstStockedAt)
	}
}

// compareExpiry orders by expiry date; candidates without expiry always last
func compareExpiry(a, b *Candidate, earliestFirst bool) int {
	switch {
	case a.Expiry == nil && b.Expiry == nil:
		return 0
	case a.Expiry == nil:
		return 1
	case b.Expiry == nil:
		return -1
	}
	cmp := a.Expiry.Compare(*b.Expiry)
	if !earliestFirst {
		cmp = -cmp
	}
	return cmp
}

// boolFirst ranks candidates where the predicate holds before the rest
func boolFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// Compare applies the full ranking chain between two candidates
func (p OrderingPolicy) Compare(a, b *Candidate) int {
	if cmp := methodCompare(a, b, p.Method); cmp != 0 {
		return cmp
	}

	if p.SingleLotPreference {
		if cmp := boolFirst(a.CanCover(p.RequiredQty), b.CanCover(p.RequiredQty)); cmp != 0 {
			return cmp
		}
	}

	if p.FullUnitFirst {
		if cmp := boolFirst(a.HandlingUnit != nil, b.HandlingUnit != nil); cmp != 0 {
			return cmp
		}
	}

	if cmp := boolFirst(a.CanCover(p.RequiredQty), b.CanCover(p.RequiredQty)); cmp != 0 {
		return cmp
	}

	if p.NearestLocationFirst && a.Location != nil && b.Location != nil {
		if a.Location.BinPriority != b.Location.BinPriority {
			if a.Location.BinPriority < b.Location.BinPriority {
				return -1
			}
			return 1
		}
	}

	if p.StorageTypePreference && p.StorageTypeRank != nil && a.Location != nil && b.Location != nil {
		ra, rb := p.StorageTypeRank(a.Location.StorageType), p.StorageTypeRank(b.Location.StorageType)
		if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
	}

	if p.QualityGradePriority && a.QualityGrade != b.QualityGrade {
		if a.QualityGrade > b.QualityGrade {
			return -1
		}
		return 1
	}

	// Tie-break: larger available quantity first
	switch {
	case a.Available == b.Available:
		return 0
	case b.Available >= 0 && (a.Available < 0 || a.Available > b.Available):
		return -1
	default:
		return 1
	}
}

// OrderCandidates ranks supply candidates in place per the policy chain
func OrderCandidates(candidates []*Candidate, policy OrderingPolicy) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return policy.Compare(candidates[i], candidates[j]) < 0
	})
}

// destinationTier layers the handling-unit hierarchy above the general
// ordering: the unit's prior location first, then same-type locations.
func destinationTier(c *Candidate) int {
	switch {
	case c.HoldsSameHU:
		return 0
	case c.HoldsSameHUType:
		return 1
	default:
		return 2
	}
}

// OrderDestinationCandidates ranks destination candidates: capacity-valid
// before invalid, HU reunification tiers, then the general chain with
// consolidation bins ahead of empty ones.
func OrderDestinationCandidates(candidates []*Candidate, policy OrderingPolicy) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CapacityChecked && b.CapacityChecked && a.CapacityValid != b.CapacityValid {
			return a.CapacityValid
		}
		if ta, tb := destinationTier(a), destinationTier(b); ta != tb {
			return ta < tb
		}
		if a.HoldsSameItem != b.HoldsSameItem {
			return a.HoldsSameItem
		}
		return policy.Compare(a, b) < 0
	})
}
