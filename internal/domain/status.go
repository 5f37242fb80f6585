package domain

// EntityStatus represents the operational status of a location or handling unit
type EntityStatus string

const (
	StatusAvailable        EntityStatus = "Available"
	StatusInUse            EntityStatus = "In Use"
	StatusUnderMaintenance EntityStatus = "Under Maintenance"
	StatusInactive         EntityStatus = "Inactive"
)

// IsValid checks if the status is valid
func (s EntityStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusUnderMaintenance, StatusInactive:
		return true
	default:
		return false
	}
}

// IsSticky reports whether the status is a manual state that derived
// recomputation must never override.
func (s EntityStatus) IsSticky() bool {
	return s == StatusUnderMaintenance || s == StatusInactive
}

// Blocks reports whether the status blocks allocation and posting actions
func (s EntityStatus) Blocks() bool {
	return s == StatusUnderMaintenance || s == StatusInactive
}

// DeriveStatus computes the status implied by the current ledger balance.
// Sticky manual states survive; otherwise balance > 0 means In Use.
func DeriveStatus(current EntityStatus, balance float64) EntityStatus {
	if current.IsSticky() {
		return current
	}
	if balance > 0 {
		return StatusInUse
	}
	return StatusAvailable
}
