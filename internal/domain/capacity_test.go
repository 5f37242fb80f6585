package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCapacity_ToleranceBand(t *testing.T) {
	limits := CapacityLimits{MaxWeight: 100}
	usage := Usage{Weight: 90}
	item := &Item{Code: "ITEM-001", UnitWeight: 1}

	tests := []struct {
		name         string
		tolerancePct float64
		wantValid    bool
	}{
		{"15 over 90 against 100 at zero tolerance fails", 0, false},
		{"same placement at 5 percent tolerance passes", 5, true},
		{"same placement at 10 percent tolerance passes", 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateCapacity(limits, usage, item, 15, tt.tolerancePct, false)
			assert.Equal(t, tt.wantValid, result.Valid)
			if !tt.wantValid {
				assert.Len(t, result.Violations, 1)
				assert.Equal(t, "weight", result.Violations[0].Dimension)
				assert.Equal(t, 105.0, result.Violations[0].Projected)
			}
		})
	}
}

func TestValidateCapacity_ZeroMaxIsUnconstrained(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 5, UnitWeight: 5}

	result := ValidateCapacity(CapacityLimits{}, Usage{}, item, 1000000, 0, true)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Utilization)
}

func TestValidateCapacity_ReportsEveryViolatedDimension(t *testing.T) {
	limits := CapacityLimits{MaxVolume: 10, MaxWeight: 10, MaxHUSlots: 1}
	usage := Usage{Volume: 9, Weight: 9, HUCount: 1}
	item := &Item{Code: "ITEM-001", UnitVolume: 2, UnitWeight: 2}

	result := ValidateCapacity(limits, usage, item, 1, 0, true)

	assert.False(t, result.Valid)
	assert.Len(t, result.Violations, 3)
	dims := make(map[string]bool)
	for _, v := range result.Violations {
		dims[v.Dimension] = true
	}
	assert.True(t, dims["volume"])
	assert.True(t, dims["weight"])
	assert.True(t, dims["hu_slots"])
}

func TestValidateCapacity_AlertThresholdWarnsOnly(t *testing.T) {
	limits := CapacityLimits{MaxVolume: 100, VolumeAlertPct: 80}
	item := &Item{Code: "ITEM-001", UnitVolume: 1}

	result := ValidateCapacity(limits, Usage{Volume: 70}, item, 15, 0, false)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
	assert.Len(t, result.Warnings, 1)
	assert.InDelta(t, 85.0, result.Utilization["volume"], 0.001)
}

func TestValidateCapacity_ExactMaxPasses(t *testing.T) {
	limits := CapacityLimits{MaxWeight: 100}
	item := &Item{Code: "ITEM-001", UnitWeight: 10}

	result := ValidateCapacity(limits, Usage{Weight: 90}, item, 1, 0, false)

	assert.True(t, result.Valid)
}

func TestValidateCapacity_HUSlot(t *testing.T) {
	limits := CapacityLimits{MaxHUSlots: 2}
	item := &Item{Code: "ITEM-001"}

	full := ValidateCapacity(limits, Usage{HUCount: 2}, item, 1, 0, true)
	assert.False(t, full.Valid)

	sameUnit := ValidateCapacity(limits, Usage{HUCount: 2}, item, 1, 0, false)
	assert.True(t, sameUnit.Valid)
}

func TestCapacityLimits_Merge(t *testing.T) {
	entity := CapacityLimits{MaxVolume: 50}
	defaults := CapacityLimits{MaxVolume: 100, MaxWeight: 200, VolumeUOM: "m3"}

	merged := entity.Merge(defaults)

	assert.Equal(t, 50.0, merged.MaxVolume)
	assert.Equal(t, 200.0, merged.MaxWeight)
	assert.Equal(t, "m3", merged.VolumeUOM)
}

func TestUsage_Add(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 2, UnitWeight: 3}

	grown := Usage{Volume: 10, Weight: 10, HUCount: 1}.Add(item, 5)

	assert.Equal(t, 20.0, grown.Volume)
	assert.Equal(t, 25.0, grown.Weight)
	assert.Equal(t, 1, grown.HUCount)
}
