package domain

import "strings"

// PathSeparator splits a storage location's hierarchical path
// (site/building/zone/aisle/bay/level).
const PathSeparator = "/"

// StorageLocation is the location master projection the engine consumes.
// UsageSnapshot is derived from the ledger by the capacity model and is the
// only field the engine ever writes back.
type StorageLocation struct {
	Code string `bson:"code" json:"code"`
	Name string `bson:"name,omitempty" json:"name,omitempty"`

	// Hierarchical path, e.g. "MNL/BLDG1/ZA/A-01/B-01/L1"
	Path string `bson:"path" json:"path"`

	StorageType string `bson:"storageType,omitempty" json:"storageType,omitempty"`
	StagingArea bool   `bson:"stagingArea,omitempty" json:"stagingArea,omitempty"`

	// BinPriority ranks locations for nearest-first ordering; lower is closer
	BinPriority int `bson:"binPriority,omitempty" json:"binPriority,omitempty"`

	Limits        CapacityLimits `bson:"limits" json:"limits"`
	TypeDefaults  CapacityLimits `bson:"typeDefaults,omitempty" json:"typeDefaults,omitempty"`
	UsageSnapshot Usage          `bson:"usageSnapshot" json:"usageSnapshot"`

	Status EntityStatus `bson:"status" json:"status"`
	Scope  Scope        `bson:"scope" json:"scope"`

	Barcode string `bson:"barcode,omitempty" json:"barcode,omitempty"`
}

// EffectiveLimits merges entity limits with type-level defaults
func (l *StorageLocation) EffectiveLimits() CapacityLimits {
	return l.Limits.Merge(l.TypeDefaults)
}

// PathPrefix returns the first depth segments of the hierarchical path.
// Depth 0 or a depth beyond the path returns the whole path.
func (l *StorageLocation) PathPrefix(depth int) string {
	if depth <= 0 {
		return l.Path
	}
	segments := strings.Split(l.Path, PathSeparator)
	if depth >= len(segments) {
		return l.Path
	}
	return strings.Join(segments[:depth], PathSeparator)
}

// SharesPrefix reports whether the location sits under the same hierarchy
// prefix as other, compared at the given depth.
func (l *StorageLocation) SharesPrefix(other *StorageLocation, depth int) bool {
	if other == nil || depth <= 0 {
		return true
	}
	return l.PathPrefix(depth) == other.PathPrefix(depth)
}

// IsUsable reports whether the location can participate in allocation
func (l *StorageLocation) IsUsable() bool {
	return !l.Status.Blocks()
}
