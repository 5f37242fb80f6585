package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType distinguishes the allocation orchestrators
type JobType string

const (
	JobTypePick      JobType = "Pick"
	JobTypePutaway   JobType = "Putaway"
	JobTypeMove      JobType = "Move"
	JobTypeVAS       JobType = "VAS"
	JobTypeStocktake JobType = "Stocktake"
)

// IsValid checks if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypePick, JobTypePutaway, JobTypeMove, JobTypeVAS, JobTypeStocktake:
		return true
	default:
		return false
	}
}

// PostingAction is one independently posted movement phase
type PostingAction string

const (
	ActionReceiving PostingAction = "receiving" // stage-in: +qty at staging
	ActionPick      PostingAction = "pick"      // -qty at source, +qty at staging
	ActionPutaway   PostingAction = "putaway"   // -qty at staging, +qty at destination
	ActionRelease   PostingAction = "release"   // stage-out: -qty at staging
	ActionVAS       PostingAction = "vas"       // signed qty at staging
)

// The VAS transform has no posting flag of its own: it marks the stage-out
// flag on pick-direction rows and the stage-in flag on putaway-direction
// rows, since each row passes through staging exactly once per direction.

// IsValid checks if the posting action is valid
func (a PostingAction) IsValid() bool {
	switch a {
	case ActionReceiving, ActionPick, ActionPutaway, ActionRelease, ActionVAS:
		return true
	default:
		return false
	}
}

// SubAction tags VAS items with the orchestrator that produced them, so
// three-phase posting (pick, transform, putaway) can select its rows.
type SubAction string

const (
	SubActionPick    SubAction = "Pick"
	SubActionPutaway SubAction = "Putaway"
)

// JobOrderLine is one demand line from the external order
type JobOrderLine struct {
	LineNo   int     `bson:"lineNo" json:"lineNo"`
	Item     string  `bson:"item" json:"item"`
	Quantity float64 `bson:"quantity" json:"quantity"` // unsigned demand

	// Optional fixed allocation inputs
	Batch           string `bson:"batch,omitempty" json:"batch,omitempty"`
	Serial          string `bson:"serial,omitempty" json:"serial,omitempty"`
	HandlingUnit    string `bson:"handlingUnit,omitempty" json:"handlingUnit,omitempty"`
	HUType          string `bson:"huType,omitempty" json:"huType,omitempty"`
	DestinationHint string `bson:"destinationHint,omitempty" json:"destinationHint,omitempty"`

	// Move jobs declare both endpoints explicitly
	FromLocation     string `bson:"fromLocation,omitempty" json:"fromLocation,omitempty"`
	FromHandlingUnit string `bson:"fromHandlingUnit,omitempty" json:"fromHandlingUnit,omitempty"`
	ToLocation       string `bson:"toLocation,omitempty" json:"toLocation,omitempty"`
	ToHandlingUnit   string `bson:"toHandlingUnit,omitempty" json:"toHandlingUnit,omitempty"`
}

// CountLine is one stocktake count capture
type CountLine struct {
	Item         string  `bson:"item" json:"item"`
	Location     string  `bson:"location" json:"location"`
	HandlingUnit string  `bson:"handlingUnit,omitempty" json:"handlingUnit,omitempty"`
	Batch        string  `bson:"batch,omitempty" json:"batch,omitempty"`
	Serial       string  `bson:"serial,omitempty" json:"serial,omitempty"`
	CountedQty   float64 `bson:"countedQty" json:"countedQty"`
}

// NewJobItemID creates a new unique job item ID
func NewJobItemID() string {
	timestamp := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("JI-%s-%s", timestamp, uuid.New().String()[:8])
}

// JobItem is one planned movement row produced by an allocation run. Posting
// flags are one-way: set exactly once, never unset.
type JobItem struct {
	ItemID string `bson:"itemId" json:"itemId"`
	LineNo int    `bson:"lineNo,omitempty" json:"lineNo,omitempty"`

	Item     string  `bson:"item" json:"item"`
	Quantity float64 `bson:"quantity" json:"quantity"` // signed

	// Location is the source side; Destination is the putaway target. The
	// posting engine derives staging->destination direction from Destination
	// being set.
	Location     string `bson:"location,omitempty" json:"location,omitempty"`
	Destination  string `bson:"destination,omitempty" json:"destination,omitempty"`
	HandlingUnit string `bson:"handlingUnit,omitempty" json:"handlingUnit,omitempty"`
	Batch        string `bson:"batch,omitempty" json:"batch,omitempty"`
	Serial       string `bson:"serial,omitempty" json:"serial,omitempty"`

	SubAction SubAction `bson:"subAction,omitempty" json:"subAction,omitempty"`

	Received   bool       `bson:"received" json:"received"`
	ReceivedAt *time.Time `bson:"receivedAt,omitempty" json:"receivedAt,omitempty"`
	Picked     bool       `bson:"picked" json:"picked"`
	PickedAt   *time.Time `bson:"pickedAt,omitempty" json:"pickedAt,omitempty"`
	PutAway    bool       `bson:"putAway" json:"putAway"`
	PutAwayAt  *time.Time `bson:"putAwayAt,omitempty" json:"putAwayAt,omitempty"`
	Released   bool       `bson:"released" json:"released"`
	ReleasedAt *time.Time `bson:"releasedAt,omitempty" json:"releasedAt,omitempty"`

	// Rationale records, in operator-readable form, why this row exists:
	// which candidate won, which fallback fired, which policy assigned the HU.
	Rationale string `bson:"rationale,omitempty" json:"rationale,omitempty"`
}

// Posted reports whether the row is already posted for the action
func (ji *JobItem) Posted(action PostingAction) bool {
	switch action {
	case ActionReceiving:
		return ji.Received
	case ActionPick:
		return ji.Picked
	case ActionPutaway:
		return ji.PutAway
	case ActionRelease:
		return ji.Released
	default:
		return false
	}
}

// MarkPosted sets the one-way flag for the action. Re-marking is rejected
// with ErrAlreadyPosted so the caller can report it as skipped.
func (ji *JobItem) MarkPosted(action PostingAction, at time.Time) error {
	if ji.Posted(action) {
		return ErrAlreadyPosted
	}
	switch action {
	case ActionReceiving:
		ji.Received = true
		ji.ReceivedAt = &at
	case ActionPick:
		ji.Picked = true
		ji.PickedAt = &at
	case ActionPutaway:
		ji.PutAway = true
		ji.PutAwayAt = &at
	case ActionRelease:
		ji.Released = true
		ji.ReleasedAt = &at
	default:
		return fmt.Errorf("unknown posting action %q", action)
	}
	return nil
}

// Split carves qty out of the row into a new sibling, preserving descriptive
// fields and posting flags. Used by scan-driven partial posting. The receiver
// keeps the remainder.
func (ji *JobItem) Split(qty float64) (*JobItem, error) {
	abs := ji.Quantity
	if abs < 0 {
		abs = -abs
	}
	if qty <= 0 || qty >= abs {
		return nil, fmt.Errorf("split quantity %.4f out of range (0, %.4f)", qty, abs)
	}

	sign := 1.0
	if ji.Quantity < 0 {
		sign = -1.0
	}

	portion := *ji
	portion.ItemID = NewJobItemID()
	portion.Quantity = sign * qty
	ji.Quantity = sign * (abs - qty)

	return &portion, nil
}

// JobOrder is the job aggregate: header, demand lines, planned items.
// Items are wholly regenerated (clear and rebuild) by each allocation run.
type JobOrder struct {
	JobID string  `bson:"jobId" json:"jobId"`
	Type  JobType `bson:"type" json:"type"`

	Scope       Scope  `bson:"scope" json:"scope"`
	StagingArea string `bson:"stagingArea,omitempty" json:"stagingArea,omitempty"`

	// LevelLimit is the hierarchy depth within which destination candidates
	// must share the staging area's path prefix; 0 falls back to config.
	LevelLimit int `bson:"levelLimit,omitempty" json:"levelLimit,omitempty"`

	Lines      []JobOrderLine `bson:"lines" json:"lines"`
	CountLines []CountLine    `bson:"countLines,omitempty" json:"countLines,omitempty"`
	Items      []JobItem      `bson:"items" json:"items"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// ClearItems drops all planned items ahead of an allocation rebuild
func (j *JobOrder) ClearItems() {
	j.Items = j.Items[:0]
	j.UpdatedAt = time.Now().UTC()
}

// AppendItems attaches newly planned items
func (j *JobOrder) AppendItems(items ...JobItem) {
	j.Items = append(j.Items, items...)
	j.UpdatedAt = time.Now().UTC()
}

// FindItem returns the planned item with the given ID, nil when absent
func (j *JobOrder) FindItem(itemID string) *JobItem {
	for n := range j.Items {
		if j.Items[n].ItemID == itemID {
			return &j.Items[n]
		}
	}
	return nil
}

// addDomainEvent adds a domain event
func (j *JobOrder) addDomainEvent(event DomainEvent) {
	j.DomainEvents = append(j.DomainEvents, event)
}

// PullEvents returns and clears pending domain events
func (j *JobOrder) PullEvents() []DomainEvent {
	events := j.DomainEvents
	j.DomainEvents = nil
	return events
}
