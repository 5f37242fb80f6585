package domain

// Candidate scan bounds for capacity gating
const (
	DefaultCandidateScanLimit   = 20
	DefaultCandidateValidTarget = 5
)

// AllocationConfig is the explicit configuration value handed into every
// orchestrator and locator call. The core never reads a live settings store.
type AllocationConfig struct {
	// LevelLimitDepth is the hierarchy depth within which destination
	// candidates must share the staging area's path prefix; 0 disables.
	LevelLimitDepth int

	// EmergencyFallbackAllowed gates the final level-limit bypass step of
	// the destination degradation ladder.
	EmergencyFallbackAllowed bool

	// LocationOverflowByCompany enables HU location overflow per company
	LocationOverflowByCompany map[string]bool

	// SplitPrecision is the decimal precision for overflow share rounding
	SplitPrecision int32

	// ToleranceByCompany is the capacity tolerance percentage per company
	ToleranceByCompany map[string]float64
	DefaultTolerance   float64

	// Candidate scan caps for capacity gating
	CandidateScanLimit   int
	CandidateValidTarget int

	// Ordering preferences applied on top of each item's picking method
	SingleLotPreference   bool
	FullUnitFirst         bool
	NearestLocationFirst  bool
	StorageTypePreference bool
	QualityGradePriority  bool
}

// DefaultAllocationConfig returns engine defaults
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		SplitPrecision:       DefaultSplitPrecision,
		CandidateScanLimit:   DefaultCandidateScanLimit,
		CandidateValidTarget: DefaultCandidateValidTarget,
		NearestLocationFirst: true,
	}
}

// ToleranceFor resolves the capacity tolerance percentage for a company
func (c AllocationConfig) ToleranceFor(company string) float64 {
	if pct, ok := c.ToleranceByCompany[company]; ok {
		return pct
	}
	return c.DefaultTolerance
}

// OverflowEnabled reports whether HU location overflow applies for a company
func (c AllocationConfig) OverflowEnabled(company string) bool {
	return c.LocationOverflowByCompany[company]
}

// ScanLimit returns the candidate scan cap with defaults applied
func (c AllocationConfig) ScanLimit() int {
	if c.CandidateScanLimit > 0 {
		return c.CandidateScanLimit
	}
	return DefaultCandidateScanLimit
}

// ValidTarget returns the early-stop count of capacity-valid candidates
func (c AllocationConfig) ValidTarget() int {
	if c.CandidateValidTarget > 0 {
		return c.CandidateValidTarget
	}
	return DefaultCandidateValidTarget
}

// OrderingPolicyFor builds the ranking policy for one item and requirement
func (c AllocationConfig) OrderingPolicyFor(item *Item, requiredQty float64) OrderingPolicy {
	return OrderingPolicy{
		Method:                item.Method(),
		SingleLotPreference:   c.SingleLotPreference,
		FullUnitFirst:         c.FullUnitFirst,
		NearestLocationFirst:  c.NearestLocationFirst,
		StorageTypePreference: c.StorageTypePreference,
		QualityGradePriority:  c.QualityGradePriority,
		RequiredQty:           requiredQty,
		StorageTypeRank:       item.StorageTypeRank,
	}
}
