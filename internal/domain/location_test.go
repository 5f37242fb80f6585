package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageLocation_PathPrefix(t *testing.T) {
	loc := &StorageLocation{Code: "A-01-01", Path: "MNL/BLDG1/ZA/A-01/B-01/L1"}

	tests := []struct {
		name  string
		depth int
		want  string
	}{
		{"zero depth returns whole path", 0, "MNL/BLDG1/ZA/A-01/B-01/L1"},
		{"depth within path truncates", 3, "MNL/BLDG1/ZA"},
		{"depth beyond path returns whole path", 10, "MNL/BLDG1/ZA/A-01/B-01/L1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loc.PathPrefix(tt.depth))
		})
	}
}

func TestStorageLocation_SharesPrefix(t *testing.T) {
	staging := &StorageLocation{Code: "STG-1", Path: "MNL/BLDG1/STAGING/S1"}
	sameZone := &StorageLocation{Code: "A-01-01", Path: "MNL/BLDG1/ZA/A-01"}
	otherSite := &StorageLocation{Code: "C-01-01", Path: "CEB/BLDG1/ZA/C-01"}

	assert.True(t, sameZone.SharesPrefix(staging, 2))
	assert.False(t, otherSite.SharesPrefix(staging, 2))
	assert.True(t, otherSite.SharesPrefix(staging, 0), "zero depth disables the limit")
	assert.True(t, otherSite.SharesPrefix(nil, 3))
}

func TestItem_VolumeFallsBackToDimensions(t *testing.T) {
	explicit := &Item{UnitVolume: 5, Length: 2, Width: 2, Height: 2}
	assert.Equal(t, 5.0, explicit.Volume())

	derived := &Item{Length: 2, Width: 3, Height: 4}
	assert.Equal(t, 24.0, derived.Volume())

	unknown := &Item{}
	assert.Equal(t, 0.0, unknown.Volume())
}

func TestItem_AcceptsStorageType(t *testing.T) {
	open := &Item{Code: "ITEM-001"}
	assert.True(t, open.AcceptsStorageType("Rack"))

	strict := &Item{Code: "ITEM-002", PreferredStorageType: "Rack", AllowedStorageTypes: []string{"Shelf"}}
	assert.True(t, strict.AcceptsStorageType("Rack"))
	assert.True(t, strict.AcceptsStorageType("Shelf"))
	assert.False(t, strict.AcceptsStorageType("Floor"))
}

func TestItem_StorageTypeRank(t *testing.T) {
	item := &Item{Code: "ITEM-001", PreferredStorageType: "Rack", AllowedStorageTypes: []string{"Shelf", "Floor"}}

	assert.Equal(t, 0, item.StorageTypeRank("Rack"))
	assert.Equal(t, 1, item.StorageTypeRank("Shelf"))
	assert.Equal(t, 2, item.StorageTypeRank("Floor"))
	assert.Equal(t, 3, item.StorageTypeRank("Mezzanine"))
}

func TestHandlingUnit_RemainingUnits(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 2, UnitWeight: 5}

	tests := []struct {
		name string
		hu   *HandlingUnit
		want float64
	}{
		{
			name: "volume binds",
			hu:   &HandlingUnit{Limits: CapacityLimits{MaxVolume: 10, MaxWeight: 1000}},
			want: 5,
		},
		{
			name: "weight binds",
			hu:   &HandlingUnit{Limits: CapacityLimits{MaxVolume: 1000, MaxWeight: 10}},
			want: 2,
		},
		{
			name: "unconstrained",
			hu:   &HandlingUnit{},
			want: -1,
		},
		{
			name: "partially used",
			hu:   &HandlingUnit{Limits: CapacityLimits{MaxVolume: 10}, UsageSnapshot: Usage{Volume: 6}},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.hu.RemainingUnits(item))
		})
	}
}

func TestHandlingUnit_OverflowDestinations(t *testing.T) {
	assert.Equal(t, 1, (&HandlingUnit{}).OverflowDestinations())
	assert.Equal(t, 1, (&HandlingUnit{StorageLocationSize: 1}).OverflowDestinations())
	assert.Equal(t, 3, (&HandlingUnit{StorageLocationSize: 3}).OverflowDestinations())
}
