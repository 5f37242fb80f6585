package domain

import "fmt"

// capacityEpsilon absorbs float rounding when comparing projected usage
// against a maximum.
const capacityEpsilon = 1e-5

// Default alert thresholds, used when an entity declares none
const (
	DefaultVolumeAlertPct = 80.0
	DefaultWeightAlertPct = 80.0
	DefaultHUSlotAlertPct = 90.0
)

// CapacityLimits holds the maximums for one storable entity. A zero maximum
// means that dimension is unconstrained, not always-violated.
type CapacityLimits struct {
	MaxVolume  float64 `bson:"maxVolume,omitempty" json:"maxVolume,omitempty"`
	MaxWeight  float64 `bson:"maxWeight,omitempty" json:"maxWeight,omitempty"`
	MaxHUSlots int     `bson:"maxHuSlots,omitempty" json:"maxHuSlots,omitempty"`

	VolumeUOM string `bson:"volumeUom,omitempty" json:"volumeUom,omitempty"`
	WeightUOM string `bson:"weightUom,omitempty" json:"weightUom,omitempty"`

	VolumeAlertPct float64 `bson:"volumeAlertPct,omitempty" json:"volumeAlertPct,omitempty"`
	WeightAlertPct float64 `bson:"weightAlertPct,omitempty" json:"weightAlertPct,omitempty"`
	HUSlotAlertPct float64 `bson:"huSlotAlertPct,omitempty" json:"huSlotAlertPct,omitempty"`
}

// Merge fills unset dimensions from type-level defaults
func (l CapacityLimits) Merge(defaults CapacityLimits) CapacityLimits {
	out := l
	if out.MaxVolume == 0 {
		out.MaxVolume = defaults.MaxVolume
	}
	if out.MaxWeight == 0 {
		out.MaxWeight = defaults.MaxWeight
	}
	if out.MaxHUSlots == 0 {
		out.MaxHUSlots = defaults.MaxHUSlots
	}
	if out.VolumeUOM == "" {
		out.VolumeUOM = defaults.VolumeUOM
	}
	if out.WeightUOM == "" {
		out.WeightUOM = defaults.WeightUOM
	}
	if out.VolumeAlertPct == 0 {
		out.VolumeAlertPct = defaults.VolumeAlertPct
	}
	if out.WeightAlertPct == 0 {
		out.WeightAlertPct = defaults.WeightAlertPct
	}
	if out.HUSlotAlertPct == 0 {
		out.HUSlotAlertPct = defaults.HUSlotAlertPct
	}
	return out
}

// alertPcts returns effective alert thresholds with defaults applied
func (l CapacityLimits) alertPcts() (vol, weight, slots float64) {
	vol, weight, slots = l.VolumeAlertPct, l.WeightAlertPct, l.HUSlotAlertPct
	if vol <= 0 {
		vol = DefaultVolumeAlertPct
	}
	if weight <= 0 {
		weight = DefaultWeightAlertPct
	}
	if slots <= 0 {
		slots = DefaultHUSlotAlertPct
	}
	return vol, weight, slots
}

// Usage is the current utilization snapshot of an entity, derived from
// positive ledger balances. It is never authoritative.
type Usage struct {
	Volume  float64 `bson:"volume" json:"volume"`
	Weight  float64 `bson:"weight" json:"weight"`
	HUCount int     `bson:"huCount" json:"huCount"`
}

// Add returns usage grown by qty units of the item (no HU slot change)
func (u Usage) Add(item *Item, qty float64) Usage {
	return Usage{
		Volume:  u.Volume + item.Volume()*qty,
		Weight:  u.Weight + item.Weight()*qty,
		HUCount: u.HUCount,
	}
}

// CapacityViolationDetail describes one exceeded dimension
type CapacityViolationDetail struct {
	Dimension string  `json:"dimension"` // volume | weight | hu_slots
	Current   float64 `json:"current"`
	Projected float64 `json:"projected"`
	Max       float64 `json:"max"`
	Tolerance float64 `json:"tolerancePct"`
}

func (v CapacityViolationDetail) String() string {
	return fmt.Sprintf("%s %.4f exceeds max %.4f (tolerance %.1f%%)",
		v.Dimension, v.Projected, v.Max, v.Tolerance)
}

// CapacityValidation is the result of validating a projected placement
type CapacityValidation struct {
	Valid       bool                      `json:"valid"`
	Violations  []CapacityViolationDetail `json:"violations,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
	Utilization map[string]float64        `json:"utilization"` // dimension -> projected pct
}

// ValidateCapacity projects qty units of item onto the current usage and
// checks every constrained dimension against max*(1+tolerance/100). Crossing
// an alert threshold without exceeding capacity yields a warning only.
// addsHU indicates one additional handling unit would occupy a slot.
func ValidateCapacity(limits CapacityLimits, usage Usage, item *Item, qty float64, tolerancePct float64, addsHU bool) CapacityValidation {
	result := CapacityValidation{
		Valid:       true,
		Utilization: make(map[string]float64),
	}

	volAlert, weightAlert, slotAlert := limits.alertPcts()
	factor := 1 + tolerancePct/100

	projVolume := usage.Volume + item.Volume()*qty
	projWeight := usage.Weight + item.Weight()*qty
	projHU := usage.HUCount
	if addsHU {
		projHU++
	}

	check := func(dimension string, current, projected, max, alertPct float64) {
		if max <= 0 {
			return
		}
		result.Utilization[dimension] = projected / max * 100
		if projected > max*factor+capacityEpsilon {
			result.Valid = false
			result.Violations = append(result.Violations, CapacityViolationDetail{
				Dimension: dimension,
				Current:   current,
				Projected: projected,
				Max:       max,
				Tolerance: tolerancePct,
			})
			return
		}
		if projected > max*alertPct/100 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%s utilization %.1f%% crosses the %.0f%% alert threshold",
				dimension, projected/max*100, alertPct))
		}
	}

	check("volume", usage.Volume, projVolume, limits.MaxVolume, volAlert)
	check("weight", usage.Weight, projWeight, limits.MaxWeight, weightAlert)
	check("hu_slots", float64(usage.HUCount), float64(projHU), float64(limits.MaxHUSlots), slotAlert)

	return result
}
