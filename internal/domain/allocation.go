package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSplitPrecision is the decimal precision for overflow split rounding
const DefaultSplitPrecision = 2

// Allocation is one take from a ranked candidate
type Allocation struct {
	Candidate *Candidate
	Quantity  float64
	Rationale string
}

// GreedyAllocate walks ranked candidates taking min(available, remaining)
// from each until the requirement is satisfied or candidates are exhausted.
// A shortfall is returned, not raised: under-allocation is the caller's call.
func GreedyAllocate(candidates []*Candidate, required float64) ([]Allocation, float64) {
	remaining := required
	allocations := make([]Allocation, 0, len(candidates))

	for _, c := range candidates {
		if remaining <= 0 {
			break
		}

		take := remaining
		if c.Available >= 0 && c.Available < take {
			take = c.Available
		}
		if take <= 0 {
			continue
		}

		allocations = append(allocations, Allocation{
			Candidate: c,
			Quantity:  take,
			Rationale: DescribeTake(c, take),
		})
		remaining -= take
	}

	if remaining < 0 {
		remaining = 0
	}
	return allocations, remaining
}

// DescribeTake builds the operator-readable rationale for one take
func DescribeTake(c *Candidate, qty float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "allocated %.4g", qty)
	if loc := c.LocationCode(); loc != "" {
		fmt.Fprintf(&b, " from %s", loc)
	}
	if hu := c.HUCode(); hu != "" {
		fmt.Fprintf(&b, " on HU %s", hu)
	}
	if c.Batch != "" {
		fmt.Fprintf(&b, " batch %s", c.Batch)
	}
	if c.Expiry != nil {
		fmt.Fprintf(&b, " expiring %s", c.Expiry.Format("2006-01-02"))
	}
	switch {
	case c.HoldsSameHU:
		b.WriteString("; reunited with prior location of this HU")
	case c.HoldsSameHUType:
		b.WriteString("; location already holds this HU type")
	case c.HoldsSameItem:
		b.WriteString("; consolidation bin already holding this item")
	}
	if c.CapacityChecked && !c.CapacityValid {
		b.WriteString("; capacity check failed, admitted by fallback")
	}
	if c.FallbackNote != "" {
		fmt.Fprintf(&b, "; %s", c.FallbackNote)
	}
	return b.String()
}

// AnchorMap enforces the one-HU-one-destination invariant within a single
// allocation or posting run.
type AnchorMap map[string]string

// Bind anchors a handling unit to a destination. Binding the same unit to a
// second destination is an anchoring conflict.
func (m AnchorMap) Bind(huCode, destination string) error {
	if huCode == "" || destination == "" {
		return nil
	}
	if prior, ok := m[huCode]; ok && prior != destination {
		return fmt.Errorf("%w: HU %s anchored to %s, cannot also go to %s",
			ErrAnchoringConflict, huCode, prior, destination)
	}
	m[huCode] = destination
	return nil
}

// Destination returns the anchored destination for a handling unit, if any
func (m AnchorMap) Destination(huCode string) (string, bool) {
	dest, ok := m[huCode]
	return dest, ok
}

// OverflowShare is one destination's portion of an overflowing handling unit
type OverflowShare struct {
	Destination string  `json:"destination"`
	Quantity    float64 `json:"quantity"`
	Volume      float64 `json:"volume"`
	Weight      float64 `json:"weight"`
}

// SplitForOverflow spreads a handling unit's requirement across the given
// destinations proportionally. Every share but the last is rounded to the
// configured precision; the last absorbs the rounding remainder so the
// shares always sum to the originals.
func SplitForOverflow(destinations []string, qty, volume, weight float64, precision int32) []OverflowShare {
	n := len(destinations)
	if n == 0 {
		return nil
	}
	if precision < 0 {
		precision = DefaultSplitPrecision
	}

	shares := make([]OverflowShare, n)
	count := decimal.NewFromInt(int64(n))

	split := func(total float64, set func(i int, v float64)) {
		d := decimal.NewFromFloat(total)
		share := d.Div(count).Round(precision)
		var used decimal.Decimal
		for i := 0; i < n-1; i++ {
			set(i, share.InexactFloat64())
			used = used.Add(share)
		}
		set(n-1, d.Sub(used).Round(precision).InexactFloat64())
	}

	for i := range shares {
		shares[i].Destination = destinations[i]
	}
	split(qty, func(i int, v float64) { shares[i].Quantity = v })
	split(volume, func(i int, v float64) { shares[i].Volume = v })
	split(weight, func(i int, v float64) { shares[i].Weight = v })

	return shares
}

// HUAssignment is one handling unit chosen to carry part of a demand line
type HUAssignment struct {
	HandlingUnit *HandlingUnit
	Quantity     float64
	Rationale    string
}

// PackIntoHandlingUnits fills ordered handling units with qty units of item,
// splitting across units as capacity runs out. Residue that fits nowhere is
// returned, never dropped; the caller flags it.
func PackIntoHandlingUnits(item *Item, qty float64, ordered []*HandlingUnit, why string) ([]HUAssignment, float64) {
	remaining := qty
	assignments := make([]HUAssignment, 0, 1)

	for _, hu := range ordered {
		if remaining <= 0 {
			break
		}
		if !hu.IsUsable() {
			continue
		}

		take := remaining
		if fits := hu.RemainingUnits(item); fits >= 0 && fits < take {
			take = fits
		}
		if take <= 0 {
			continue
		}

		assignments = append(assignments, HUAssignment{
			HandlingUnit: hu,
			Quantity:     take,
			Rationale:    fmt.Sprintf("assigned %.4g to HU %s (%s)", take, hu.Code, why),
		})
		remaining -= take
	}

	if remaining < 0 {
		remaining = 0
	}
	return assignments, remaining
}

// HUContent summarizes what a handling unit currently holds, for the
// consolidation guard.
type HUContent struct {
	Item     string
	Customer string
}

// CheckConsolidation warns (never blocks) when placing item into a handling
// unit would mix items against lot_consolidation=0 or mix customers against
// allow_mix_with_other_customers=0 on either side.
func CheckConsolidation(hu *HandlingUnit, contents []HUContent, incoming *Item, existingAllowsMixing func(itemCode string) (lotOK, customerOK bool)) []string {
	if hu == nil || len(contents) == 0 {
		return nil
	}

	var warnings []string
	for _, c := range contents {
		if c.Item != incoming.Code {
			lotOK := incoming.AllowsLotConsolidation()
			otherLotOK := true
			if existingAllowsMixing != nil {
				otherLotOK, _ = existingAllowsMixing(c.Item)
			}
			if !lotOK || !otherLotOK {
				warnings = append(warnings, fmt.Sprintf(
					"HU %s mixes item %s with %s but lot consolidation is disabled",
					hu.Code, incoming.Code, c.Item))
			}
		}
		if c.Customer != "" && incoming.Customer != "" && c.Customer != incoming.Customer {
			custOK := incoming.AllowsCustomerMixing()
			otherCustOK := true
			if existingAllowsMixing != nil {
				_, otherCustOK = existingAllowsMixing(c.Item)
			}
			if !custOK || !otherCustOK {
				warnings = append(warnings, fmt.Sprintf(
					"HU %s mixes customer %s stock with %s but customer mixing is disabled",
					hu.Code, incoming.Customer, c.Customer))
			}
		}
	}
	return warnings
}
