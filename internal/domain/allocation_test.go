package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorMap_Bind(t *testing.T) {
	anchors := AnchorMap{}

	require.NoError(t, anchors.Bind("PAL-1", "A-01-01"))
	require.NoError(t, anchors.Bind("PAL-1", "A-01-01"), "re-binding the same destination is fine")

	err := anchors.Bind("PAL-1", "B-02-02")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnchoringConflict)

	dest, ok := anchors.Destination("PAL-1")
	assert.True(t, ok)
	assert.Equal(t, "A-01-01", dest)
}

func TestAnchorMap_IgnoresEmptyBindings(t *testing.T) {
	anchors := AnchorMap{}

	assert.NoError(t, anchors.Bind("", "A-01-01"))
	assert.NoError(t, anchors.Bind("PAL-1", ""))

	_, ok := anchors.Destination("PAL-1")
	assert.False(t, ok)
}

func TestSplitForOverflow_SharesSumToTotals(t *testing.T) {
	shares := SplitForOverflow([]string{"D1", "D2", "D3"}, 10, 1.0, 2.5, 2)

	require.Len(t, shares, 3)

	var qty, vol, weight float64
	for _, s := range shares {
		qty += s.Quantity
		vol += s.Volume
		weight += s.Weight
	}
	assert.InDelta(t, 10.0, qty, 1e-9)
	assert.InDelta(t, 1.0, vol, 1e-9)
	assert.InDelta(t, 2.5, weight, 1e-9)
}

func TestSplitForOverflow_LastAbsorbsRemainder(t *testing.T) {
	shares := SplitForOverflow([]string{"D1", "D2", "D3"}, 10, 0, 0, 2)

	require.Len(t, shares, 3)
	assert.Equal(t, 3.33, shares[0].Quantity)
	assert.Equal(t, 3.33, shares[1].Quantity)
	assert.Equal(t, 3.34, shares[2].Quantity)
}

func TestSplitForOverflow_SingleDestination(t *testing.T) {
	shares := SplitForOverflow([]string{"D1"}, 7.5, 0, 0, 2)

	require.Len(t, shares, 1)
	assert.Equal(t, "D1", shares[0].Destination)
	assert.Equal(t, 7.5, shares[0].Quantity)
}

func TestSplitForOverflow_NoDestinations(t *testing.T) {
	assert.Nil(t, SplitForOverflow(nil, 10, 0, 0, 2))
}

func testHU(code string, maxVolume float64, usedVolume float64) *HandlingUnit {
	return &HandlingUnit{
		Code:          code,
		Status:        StatusAvailable,
		Limits:        CapacityLimits{MaxVolume: maxVolume},
		UsageSnapshot: Usage{Volume: usedVolume},
	}
}

func TestPackIntoHandlingUnits_SplitsAtCapacity(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 1}
	units := []*HandlingUnit{
		testHU("PAL-1", 6, 0),
		testHU("PAL-2", 10, 0),
	}

	assignments, residue := PackIntoHandlingUnits(item, 10, units, "policy")

	require.Len(t, assignments, 2)
	assert.Equal(t, "PAL-1", assignments[0].HandlingUnit.Code)
	assert.Equal(t, 6.0, assignments[0].Quantity)
	assert.Equal(t, "PAL-2", assignments[1].HandlingUnit.Code)
	assert.Equal(t, 4.0, assignments[1].Quantity)
	assert.Equal(t, 0.0, residue)
}

func TestPackIntoHandlingUnits_ReturnsResidue(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 1}
	units := []*HandlingUnit{testHU("PAL-1", 3, 0)}

	assignments, residue := PackIntoHandlingUnits(item, 10, units, "policy")

	require.Len(t, assignments, 1)
	assert.Equal(t, 3.0, assignments[0].Quantity)
	assert.Equal(t, 7.0, residue)
}

func TestPackIntoHandlingUnits_SkipsBlockedUnits(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 1}
	blocked := testHU("PAL-1", 100, 0)
	blocked.Status = StatusUnderMaintenance
	units := []*HandlingUnit{blocked, testHU("PAL-2", 100, 0)}

	assignments, residue := PackIntoHandlingUnits(item, 10, units, "policy")

	require.Len(t, assignments, 1)
	assert.Equal(t, "PAL-2", assignments[0].HandlingUnit.Code)
	assert.Equal(t, 0.0, residue)
}

func TestPackIntoHandlingUnits_UnconstrainedTakesAll(t *testing.T) {
	item := &Item{Code: "ITEM-001", UnitVolume: 1}
	units := []*HandlingUnit{testHU("PAL-1", 0, 0)}

	assignments, residue := PackIntoHandlingUnits(item, 999, units, "policy")

	require.Len(t, assignments, 1)
	assert.Equal(t, 999.0, assignments[0].Quantity)
	assert.Equal(t, 0.0, residue)
}

func boolPtr(b bool) *bool { return &b }

func TestCheckConsolidation(t *testing.T) {
	hu := testHU("PAL-1", 0, 0)

	tests := []struct {
		name         string
		contents     []HUContent
		incoming     *Item
		existing     func(string) (bool, bool)
		wantWarnings int
	}{
		{
			name:         "empty unit never warns",
			contents:     nil,
			incoming:     &Item{Code: "ITEM-001", LotConsolidation: boolPtr(false)},
			wantWarnings: 0,
		},
		{
			name:         "same item never warns",
			contents:     []HUContent{{Item: "ITEM-001"}},
			incoming:     &Item{Code: "ITEM-001", LotConsolidation: boolPtr(false)},
			wantWarnings: 0,
		},
		{
			name:         "mixing against incoming lot policy warns",
			contents:     []HUContent{{Item: "ITEM-002"}},
			incoming:     &Item{Code: "ITEM-001", LotConsolidation: boolPtr(false)},
			wantWarnings: 1,
		},
		{
			name:         "mixing against existing lot policy warns",
			contents:     []HUContent{{Item: "ITEM-002"}},
			incoming:     &Item{Code: "ITEM-001"},
			existing:     func(string) (bool, bool) { return false, true },
			wantWarnings: 1,
		},
		{
			name:         "mixing with consent passes",
			contents:     []HUContent{{Item: "ITEM-002"}},
			incoming:     &Item{Code: "ITEM-001"},
			wantWarnings: 0,
		},
		{
			name:         "customer mixing against policy warns",
			contents:     []HUContent{{Item: "ITEM-001", Customer: "CUST-B"}},
			incoming:     &Item{Code: "ITEM-001", Customer: "CUST-A", AllowMixWithOtherCustomers: boolPtr(false)},
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := CheckConsolidation(hu, tt.contents, tt.incoming, tt.existing)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestDescribeTake_NamesTheWinner(t *testing.T) {
	c := &Candidate{
		Location:     &StorageLocation{Code: "A-01-01"},
		HandlingUnit: &HandlingUnit{Code: "PAL-1"},
		Batch:        "LOT-A",
		HoldsSameHU:  true,
	}

	got := DescribeTake(c, 5)

	assert.Contains(t, got, "A-01-01")
	assert.Contains(t, got, "PAL-1")
	assert.Contains(t, got, "LOT-A")
	assert.Contains(t, got, "reunited")
}
