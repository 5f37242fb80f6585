package domain

import "time"

// DomainEvent is implemented by all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// JobAllocatedEvent is emitted when an allocation run rebuilds a job's items
type JobAllocatedEvent struct {
	JobID       string    `json:"jobId"`
	JobType     string    `json:"jobType"`
	CreatedRows int       `json:"createdRows"`
	CreatedQty  float64   `json:"createdQty"`
	Warnings    int       `json:"warnings"`
	AllocatedAt time.Time `json:"allocatedAt"`
}

func (e *JobAllocatedEvent) EventType() string     { return "wms.allocation.job.allocated" }
func (e *JobAllocatedEvent) OccurredAt() time.Time { return e.AllocatedAt }

// MovementPostedEvent is emitted for each posting call that wrote ledger entries
type MovementPostedEvent struct {
	JobID        string    `json:"jobId"`
	Action       string    `json:"action"`
	EntriesAdded int       `json:"entriesAdded"`
	RowsSkipped  int       `json:"rowsSkipped"`
	PostedAt     time.Time `json:"postedAt"`
}

func (e *MovementPostedEvent) EventType() string     { return "wms.ledger.movement.posted" }
func (e *MovementPostedEvent) OccurredAt() time.Time { return e.PostedAt }

// CapacityAlertEvent is emitted when a validation crosses an alert threshold
type CapacityAlertEvent struct {
	EntityKind string    `json:"entityKind"` // location | handling_unit
	EntityID   string    `json:"entityId"`
	Dimension  string    `json:"dimension"`
	Pct        float64   `json:"pct"`
	RaisedAt   time.Time `json:"raisedAt"`
}

func (e *CapacityAlertEvent) EventType() string     { return "wms.capacity.alert" }
func (e *CapacityAlertEvent) OccurredAt() time.Time { return e.RaisedAt }

// RecordAllocation records a completed allocation run on the job aggregate
// and emits the corresponding event.
func (j *JobOrder) RecordAllocation(createdRows int, createdQty float64, warnings int) {
	j.UpdatedAt = time.Now().UTC()
	j.addDomainEvent(&JobAllocatedEvent{
		JobID:       j.JobID,
		JobType:     string(j.Type),
		CreatedRows: createdRows,
		CreatedQty:  createdQty,
		Warnings:    warnings,
		AllocatedAt: j.UpdatedAt,
	})
}

// RecordPosting records a completed posting call on the job aggregate and
// emits the corresponding event.
func (j *JobOrder) RecordPosting(action PostingAction, entriesAdded, rowsSkipped int) {
	j.UpdatedAt = time.Now().UTC()
	j.addDomainEvent(&MovementPostedEvent{
		JobID:        j.JobID,
		Action:       string(action),
		EntriesAdded: entriesAdded,
		RowsSkipped:  rowsSkipped,
		PostedAt:     j.UpdatedAt,
	})
}
