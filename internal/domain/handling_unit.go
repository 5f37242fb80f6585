package domain

// HandlingUnit is a container (pallet, box, tote) grouping items for movement
// and storage. StorageLocationSize is the number of destination locations the
// unit may span when location overflow is enabled.
type HandlingUnit struct {
	Code string `bson:"code" json:"code"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`

	Limits        CapacityLimits `bson:"limits" json:"limits"`
	TypeDefaults  CapacityLimits `bson:"typeDefaults,omitempty" json:"typeDefaults,omitempty"`
	UsageSnapshot Usage          `bson:"usageSnapshot" json:"usageSnapshot"`

	Status EntityStatus `bson:"status" json:"status"`
	Scope  Scope        `bson:"scope" json:"scope"`

	StorageLocationSize int  `bson:"storageLocationSize,omitempty" json:"storageLocationSize,omitempty"`
	InactivateOnRelease bool `bson:"inactivateOnRelease,omitempty" json:"inactivateOnRelease,omitempty"`

	Barcode string `bson:"barcode,omitempty" json:"barcode,omitempty"`
}

// EffectiveLimits merges entity limits with type-level defaults
func (h *HandlingUnit) EffectiveLimits() CapacityLimits {
	return h.Limits.Merge(h.TypeDefaults)
}

// IsUsable reports whether the handling unit can participate in allocation
func (h *HandlingUnit) IsUsable() bool {
	return !h.Status.Blocks()
}

// OverflowDestinations returns how many destinations this unit spans under
// location overflow; below 2 the anchoring invariant holds it to one.
func (h *HandlingUnit) OverflowDestinations() int {
	if h.StorageLocationSize < 2 {
		return 1
	}
	return h.StorageLocationSize
}

// FreeVolume returns remaining volume capacity, or -1 when unconstrained
func (h *HandlingUnit) FreeVolume() float64 {
	limits := h.EffectiveLimits()
	if limits.MaxVolume <= 0 {
		return -1
	}
	free := limits.MaxVolume - h.UsageSnapshot.Volume
	if free < 0 {
		return 0
	}
	return free
}

// FreeWeight returns remaining weight capacity, or -1 when unconstrained
func (h *HandlingUnit) FreeWeight() float64 {
	limits := h.EffectiveLimits()
	if limits.MaxWeight <= 0 {
		return -1
	}
	free := limits.MaxWeight - h.UsageSnapshot.Weight
	if free < 0 {
		return 0
	}
	return free
}

// RemainingUnits returns how many units of item still fit, or -1 when the
// unit is unconstrained on both volume and weight.
func (h *HandlingUnit) RemainingUnits(item *Item) float64 {
	byVolume, byWeight := -1.0, -1.0

	if fv := h.FreeVolume(); fv >= 0 && item.Volume() > 0 {
		byVolume = fv / item.Volume()
	}
	if fw := h.FreeWeight(); fw >= 0 && item.Weight() > 0 {
		byWeight = fw / item.Weight()
	}

	switch {
	case byVolume < 0 && byWeight < 0:
		return -1
	case byVolume < 0:
		return byWeight
	case byWeight < 0:
		return byVolume
	case byVolume < byWeight:
		return byVolume
	default:
		return byWeight
	}
}
