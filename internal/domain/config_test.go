package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocationConfig_ToleranceFor(t *testing.T) {
	cfg := AllocationConfig{
		ToleranceByCompany: map[string]float64{"ACME": 5},
		DefaultTolerance:   2,
	}

	assert.Equal(t, 5.0, cfg.ToleranceFor("ACME"))
	assert.Equal(t, 2.0, cfg.ToleranceFor("OTHER"))
}

func TestAllocationConfig_ScanBoundsDefault(t *testing.T) {
	var cfg AllocationConfig

	assert.Equal(t, DefaultCandidateScanLimit, cfg.ScanLimit())
	assert.Equal(t, DefaultCandidateValidTarget, cfg.ValidTarget())

	cfg.CandidateScanLimit = 50
	cfg.CandidateValidTarget = 10
	assert.Equal(t, 50, cfg.ScanLimit())
	assert.Equal(t, 10, cfg.ValidTarget())
}

func TestAllocationConfig_OrderingPolicyFor(t *testing.T) {
	cfg := AllocationConfig{SingleLotPreference: true, NearestLocationFirst: true}
	item := &Item{Code: "ITEM-001", PickingMethod: PickingFEFO}

	policy := cfg.OrderingPolicyFor(item, 25)

	assert.Equal(t, PickingFEFO, policy.Method)
	assert.True(t, policy.SingleLotPreference)
	assert.True(t, policy.NearestLocationFirst)
	assert.Equal(t, 25.0, policy.RequiredQty)
	assert.NotNil(t, policy.StorageTypeRank)
}

func TestAllocationConfig_MethodDefaultsToFIFO(t *testing.T) {
	policy := AllocationConfig{}.OrderingPolicyFor(&Item{Code: "ITEM-001"}, 1)
	assert.Equal(t, PickingFIFO, policy.Method)
}
