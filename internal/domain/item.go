package domain

// PickingMethod is the supply ordering policy an item prefers
type PickingMethod string

const (
	PickingFIFO PickingMethod = "FIFO" // earliest first-stocked first (default)
	PickingFEFO PickingMethod = "FEFO" // earliest expiry first, no-expiry last
	PickingLEFO PickingMethod = "LEFO" // latest expiry first
	PickingLIFO PickingMethod = "LIFO" // most recently stocked first
	PickingFMFO PickingMethod = "FMFO" // first movement first out, same key as LIFO
)

// IsValid checks if the picking method is valid
func (m PickingMethod) IsValid() bool {
	switch m {
	case PickingFIFO, PickingFEFO, PickingLEFO, PickingLIFO, PickingFMFO:
		return true
	default:
		return false
	}
}

// PutawayPolicy decides how handling units are auto-assigned on putaway
type PutawayPolicy string

const (
	// PutawayConsolidateSameItem prefers handling units already holding the item
	PutawayConsolidateSameItem PutawayPolicy = "Consolidate Same Item"
	// PutawayNearestEmpty prefers handling units with the most free capacity
	PutawayNearestEmpty PutawayPolicy = "Nearest Empty"
)

// Item is the item master projection the engine consumes. Dimensions are in
// the warehouse base UOM; volume falls back to length*width*height when unset.
type Item struct {
	Code     string `bson:"code" json:"code"`
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	Customer string `bson:"customer,omitempty" json:"customer,omitempty"`

	UnitVolume float64 `bson:"unitVolume,omitempty" json:"unitVolume,omitempty"`
	UnitWeight float64 `bson:"unitWeight,omitempty" json:"unitWeight,omitempty"`
	Length     float64 `bson:"length,omitempty" json:"length,omitempty"`
	Width      float64 `bson:"width,omitempty" json:"width,omitempty"`
	Height     float64 `bson:"height,omitempty" json:"height,omitempty"`

	PickingMethod PickingMethod `bson:"pickingMethod,omitempty" json:"pickingMethod,omitempty"`
	PutawayPolicy PutawayPolicy `bson:"putawayPolicy,omitempty" json:"putawayPolicy,omitempty"`

	// Consolidation policy. Pointers distinguish "unset" (allowed) from an
	// explicit 0 (forbidden) the way the master data does.
	LotConsolidation           *bool `bson:"lotConsolidation,omitempty" json:"lotConsolidation,omitempty"`
	AllowMixWithOtherCustomers *bool `bson:"allowMixWithOtherCustomers,omitempty" json:"allowMixWithOtherCustomers,omitempty"`

	PreferredStorageType string   `bson:"preferredStorageType,omitempty" json:"preferredStorageType,omitempty"`
	AllowedStorageTypes  []string `bson:"allowedStorageTypes,omitempty" json:"allowedStorageTypes,omitempty"`

	Scope Scope `bson:"scope" json:"scope"`
}

// Volume returns the unit volume, deriving it from dimensions when unset.
// Missing dimensions yield 0, which the capacity model treats as unconstrained.
func (i *Item) Volume() float64 {
	if i.UnitVolume > 0 {
		return i.UnitVolume
	}
	return i.Length * i.Width * i.Height
}

// Weight returns the unit weight, 0 when unknown
func (i *Item) Weight() float64 {
	return i.UnitWeight
}

// Method returns the picking method, defaulting to FIFO
func (i *Item) Method() PickingMethod {
	if i.PickingMethod.IsValid() {
		return i.PickingMethod
	}
	return PickingFIFO
}

// AllowsLotConsolidation reports whether the item may share a handling unit
// with other items. Unset means allowed.
func (i *Item) AllowsLotConsolidation() bool {
	return i.LotConsolidation == nil || *i.LotConsolidation
}

// AllowsCustomerMixing reports whether the item may share a handling unit with
// other customers' stock. Unset means allowed.
func (i *Item) AllowsCustomerMixing() bool {
	return i.AllowMixWithOtherCustomers == nil || *i.AllowMixWithOtherCustomers
}

// DeclaresStorageTypes reports whether the item restricts destination storage types
func (i *Item) DeclaresStorageTypes() bool {
	return i.PreferredStorageType != "" || len(i.AllowedStorageTypes) > 0
}

// AcceptsStorageType reports whether a destination storage type is allowed.
// An item with no declared types accepts everything; a declared set is strict.
func (i *Item) AcceptsStorageType(storageType string) bool {
	if !i.DeclaresStorageTypes() {
		return true
	}
	if storageType == i.PreferredStorageType && i.PreferredStorageType != "" {
		return true
	}
	for _, t := range i.AllowedStorageTypes {
		if t == storageType {
			return true
		}
	}
	return false
}

// StorageTypeRank orders destination storage types for this item: preferred
// first, then allowed in declared order, then everything else.
func (i *Item) StorageTypeRank(storageType string) int {
	if i.PreferredStorageType != "" && storageType == i.PreferredStorageType {
		return 0
	}
	for n, t := range i.AllowedStorageTypes {
		if t == storageType {
			return n + 1
		}
	}
	return len(i.AllowedStorageTypes) + 1
}
